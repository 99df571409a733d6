package services

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyGuessRecordsHintsAndSolve(t *testing.T) {
	now := time.Now()
	states := NewGuessStates([]string{"user-a", "user-b"}, now)

	cmp, _ := stubCompare{}.Compare("lol", "faker", "caps")
	outcome, err := ApplyGuess(states, "user-a", "caps", cmp, now)
	require.NoError(t, err)
	assert.False(t, outcome.Correct)
	assert.False(t, outcome.BothSolved)
	assert.Equal(t, 1, states["user-a"].GuessCount)
	assert.Nil(t, states["user-a"].SolvedAt)
	require.Len(t, states["user-a"].Guesses, 1)
	assert.Contains(t, states["user-a"].Guesses[0].Hints, "team")

	cmp, _ = stubCompare{}.Compare("lol", "faker", "faker")
	outcome, err = ApplyGuess(states, "user-a", "faker", cmp, now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, outcome.Correct)
	assert.False(t, outcome.BothSolved)
	require.NotNil(t, states["user-a"].SolvedAt)

	outcome, err = ApplyGuess(states, "user-b", "faker", cmp, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, outcome.BothSolved)
}

func TestApplyGuessRejectsRepeatAndPostSolve(t *testing.T) {
	now := time.Now()
	states := NewGuessStates([]string{"user-a", "user-b"}, now)

	wrong, _ := stubCompare{}.Compare("lol", "faker", "caps")
	_, err := ApplyGuess(states, "user-a", "caps", wrong, now)
	require.NoError(t, err)

	_, err = ApplyGuess(states, "user-a", "caps", wrong, now)
	requireFiberStatus(t, err, fiber.StatusConflict)

	right, _ := stubCompare{}.Compare("lol", "faker", "faker")
	_, err = ApplyGuess(states, "user-a", "faker", right, now)
	require.NoError(t, err)

	_, err = ApplyGuess(states, "user-a", "chovy", wrong, now)
	requireFiberStatus(t, err, fiber.StatusConflict)
}

func TestApplyGuessUnknownParticipant(t *testing.T) {
	states := NewGuessStates([]string{"user-a", "user-b"}, time.Now())
	cmp, _ := stubCompare{}.Compare("lol", "faker", "caps")
	_, err := ApplyGuess(states, "stranger", "caps", cmp, time.Now())
	requireFiberStatus(t, err, fiber.StatusInternalServerError)
}

func TestGuessPublicViewHidesOpponentGuesses(t *testing.T) {
	now := time.Now()
	states := NewGuessStates([]string{"user-a", "user-b"}, now)
	cmp, _ := stubCompare{}.Compare("lol", "faker", "caps")
	_, err := ApplyGuess(states, "user-b", "caps", cmp, now)
	require.NoError(t, err)

	view := GuessPublicView(states, "user-a")

	own := view["user-a"].(fiber.Map)
	assert.Contains(t, own, "guesses")

	opp := view["user-b"].(fiber.Map)
	assert.NotContains(t, opp, "guesses")
	assert.Equal(t, 1, opp["guess_count"])
}
