package services

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvp-match-system/models"
)

func newRevealRaceFixture(t *testing.T) (*RevealRaceRound, *models.Match, []models.MatchPlayer, time.Time) {
	t.Helper()
	pool := newStubPool()
	h := NewRevealRaceRound(testPvpConfig(), NewSecretPlayerService(pool), NewHintValueService(pool), stubCompare{})

	m := newTestMatch(models.RoundRevealRace)
	players := testPlayers()
	start := time.Now()
	require.NoError(t, h.Initialize(m, players, start))
	return h, m, players, start
}

func TestRevealRaceTickSchedule(t *testing.T) {
	h, m, _, start := newRevealRaceFixture(t)
	d := m.State.Data.RevealRace
	require.NotNil(t, d)
	require.Len(t, d.RevealKeys, 4)

	// first key is due immediately
	changed, events, err := h.Tick(m, start)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, events, 1)
	assert.Equal(t, "hint_revealed", events[0].Type)
	assert.Equal(t, 1, d.RevealedCount)

	// nothing new inside the same interval
	changed, _, err = h.Tick(m, start.Add(3*time.Second))
	require.NoError(t, err)
	assert.False(t, changed)

	// a long gap catches up in one pass, capped by the key list
	changed, events, err = h.Tick(m, start.Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, events, 3)
	assert.Equal(t, 4, d.RevealedCount)
	assert.Len(t, d.Revealed, 4)

	changed, _, err = h.Tick(m, start.Add(20*time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRevealRaceWrongGuessLockout(t *testing.T) {
	h, m, players, start := newRevealRaceFixture(t)

	res, err := h.HandleAction(m, players, "user-a", Action{Type: ActionGuess, PlayerID: "caps"}, start)
	require.NoError(t, err)
	assert.False(t, res.RoundEnded)

	// locked out for the configured window
	_, err = h.HandleAction(m, players, "user-a", Action{Type: ActionGuess, PlayerID: "chovy"}, start.Add(2*time.Second))
	requireFiberStatus(t, err, fiber.StatusConflict)

	// the opponent is unaffected
	_, err = h.HandleAction(m, players, "user-b", Action{Type: ActionGuess, PlayerID: "chovy"}, start.Add(2*time.Second))
	require.NoError(t, err)

	// lockout expires
	res, err = h.HandleAction(m, players, "user-a", Action{Type: ActionGuess, PlayerID: "chovy"}, start.Add(6*time.Second))
	require.NoError(t, err)
	assert.False(t, res.RoundEnded)
}

func TestRevealRaceFirstCorrectGuessWins(t *testing.T) {
	h, m, players, start := newRevealRaceFixture(t)

	res, err := h.HandleAction(m, players, "user-b", Action{Type: ActionGuess, PlayerID: "faker"}, start)
	require.NoError(t, err)
	assert.True(t, res.RoundEnded)
	assert.Equal(t, "user-b", res.WinnerUserID)
}

func TestRevealRacePublicState(t *testing.T) {
	h, m, players, start := newRevealRaceFixture(t)

	_, _, err := h.Tick(m, start)
	require.NoError(t, err)

	_, err = h.HandleAction(m, players, "user-a", Action{Type: ActionGuess, PlayerID: "caps"}, start)
	require.NoError(t, err)

	view := h.PublicState(m, "user-a", start.Add(time.Second))
	assert.Equal(t, 1, view["revealed_count"])
	assert.Equal(t, 4, view["total_keys"])
	assert.Equal(t, start.Add(8*time.Second), view["next_reveal_at"])
	assert.Contains(t, view, "locked_until")

	// no lockout marker for the opponent
	oppView := h.PublicState(m, "user-b", start.Add(time.Second))
	assert.NotContains(t, oppView, "locked_until")
}
