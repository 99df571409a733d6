package services

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"pvp-match-system/models"
)

// Shared per-player guess bookkeeping used by the classic, draft,
// locked_infos and reveal_race rounds.

// NewGuessStates initializes one GuessState per participant.
func NewGuessStates(userIDs []string, now time.Time) map[string]*models.GuessState {
	out := make(map[string]*models.GuessState, len(userIDs))
	for _, id := range userIDs {
		out[id] = &models.GuessState{
			StartedAt: now,
			Guesses:   []models.PlayerGuess{},
		}
	}
	return out
}

// GuessOutcome reports the result of applying one guess.
type GuessOutcome struct {
	Correct    bool
	BothSolved bool
}

// ApplyGuess validates and records one guess for userID. A repeated guess
// and any guess after the player solved are conflicts.
func ApplyGuess(states map[string]*models.GuessState, userID, guessPlayerID string, cmp *ComparisonResult, now time.Time) (GuessOutcome, error) {
	gs, ok := states[userID]
	if !ok {
		return GuessOutcome{}, fiber.NewError(fiber.StatusInternalServerError, "no guess state for participant "+userID)
	}
	if gs.SolvedAt != nil {
		return GuessOutcome{}, fiber.NewError(fiber.StatusConflict, "you already solved this round")
	}
	for _, g := range gs.Guesses {
		if g.PlayerID == guessPlayerID {
			return GuessOutcome{}, fiber.NewError(fiber.StatusConflict, "player already guessed")
		}
	}

	hints := models.JSONMap{}
	for _, f := range cmp.Fields {
		hints[f.Key] = map[string]any{"value": f.GuessValue, "state": f.State}
	}

	gs.Guesses = append(gs.Guesses, models.PlayerGuess{
		PlayerID: guessPlayerID,
		Correct:  cmp.Correct,
		Hints:    hints,
		At:       now,
	})
	gs.GuessCount++
	if cmp.Correct {
		t := now
		gs.SolvedAt = &t
	}

	both := true
	for _, s := range states {
		if s.SolvedAt == nil {
			both = false
			break
		}
	}
	return GuessOutcome{Correct: cmp.Correct, BothSolved: both}, nil
}

// GuessPublicView exposes the viewer's own full record but only the
// opponent's solve marker and guess count. The secret and the opponent's
// guess list never leave the server.
func GuessPublicView(states map[string]*models.GuessState, viewerID string) fiber.Map {
	out := fiber.Map{}
	for userID, s := range states {
		if userID == viewerID {
			out[userID] = fiber.Map{
				"started_at":  s.StartedAt,
				"solved_at":   s.SolvedAt,
				"guess_count": s.GuessCount,
				"guesses":     s.Guesses,
			}
			continue
		}
		out[userID] = fiber.Map{
			"solved_at":   s.SolvedAt,
			"guess_count": s.GuessCount,
		}
	}
	return out
}
