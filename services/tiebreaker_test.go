package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pvp-match-system/models"
)

func guessStateAt(start time.Time, guesses int, solvedAfter time.Duration) *models.GuessState {
	solved := start.Add(solvedAfter)
	return &models.GuessState{
		StartedAt:  start,
		SolvedAt:   &solved,
		GuessCount: guesses,
	}
}

func TestTieBreakerFewerGuessesWins(t *testing.T) {
	start := time.Now()
	tb := TieBreakerService{}

	a := guessStateAt(start, 3, 10*time.Second)
	b := guessStateAt(start, 2, 40*time.Second)

	assert.Equal(t, "user-b", tb.Resolve("user-a", a, "user-b", b))
	assert.Equal(t, "user-b", tb.Resolve("user-b", b, "user-a", a))
}

func TestTieBreakerFasterSolveWins(t *testing.T) {
	start := time.Now()
	tb := TieBreakerService{}

	a := guessStateAt(start, 2, 12*time.Second)
	b := guessStateAt(start, 2, 30*time.Second)

	assert.Equal(t, "user-a", tb.Resolve("user-a", a, "user-b", b))
}

func TestTieBreakerUnsolvedSortsLast(t *testing.T) {
	start := time.Now()
	tb := TieBreakerService{}

	a := &models.GuessState{StartedAt: start, GuessCount: 2}
	b := guessStateAt(start, 2, 5*time.Minute)

	assert.Equal(t, "user-b", tb.Resolve("user-a", a, "user-b", b))
}

func TestTieBreakerFullTieGoesToLowerUserID(t *testing.T) {
	start := time.Now()
	tb := TieBreakerService{}

	a := guessStateAt(start, 2, 10*time.Second)
	b := guessStateAt(start, 2, 10*time.Second)

	assert.Equal(t, "user-a", tb.Resolve("user-a", a, "user-b", b))
	assert.Equal(t, "user-a", tb.Resolve("user-b", b, "user-a", a))
}
