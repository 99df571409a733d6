package services

import (
	"time"

	"pvp-match-system/models"
)

// TieBreakerService resolves the winner of a simultaneous-guess round where
// both players solved. The rule is fully deterministic: fewer guesses, then
// shorter solve time, then the lower user id.
type TieBreakerService struct{}

func (TieBreakerService) Resolve(userA string, stateA *models.GuessState, userB string, stateB *models.GuessState) string {
	if stateA.GuessCount != stateB.GuessCount {
		if stateA.GuessCount < stateB.GuessCount {
			return userA
		}
		return userB
	}

	ea := solveElapsed(stateA)
	eb := solveElapsed(stateB)
	if ea != eb {
		if ea < eb {
			return userA
		}
		return userB
	}

	if userA < userB {
		return userA
	}
	return userB
}

func solveElapsed(s *models.GuessState) time.Duration {
	if s.SolvedAt == nil {
		// unsolved sorts last
		return time.Duration(1<<63 - 1)
	}
	return s.SolvedAt.Sub(s.StartedAt)
}
