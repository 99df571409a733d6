package services

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvp-match-system/models"
)

func newDraftFixture(t *testing.T) (*DraftRound, *models.Match, []models.MatchPlayer) {
	t.Helper()
	pool := newStubPool()
	h := NewDraftRound(testPvpConfig(), NewSecretPlayerService(pool), NewHintValueService(pool), stubCompare{}, TieBreakerService{})

	m := newTestMatch(models.RoundDraft)
	m.State.ChooserUserID = "user-a"
	players := testPlayers()
	require.NoError(t, h.Initialize(m, players, time.Now()))
	return h, m, players
}

func TestDraftChooseOrder(t *testing.T) {
	h, m, players := newDraftFixture(t)
	now := time.Now()
	d := m.State.Data.Draft
	require.NotNil(t, d)
	assert.Equal(t, models.DraftPhaseChooseOrder, d.Phase)

	// picking before the order was chosen
	_, err := h.HandleAction(m, players, "user-a", Action{Type: ActionPickKey, Key: "team"}, now)
	requireFiberStatus(t, err, fiber.StatusConflict)

	// only the chooser decides
	_, err = h.HandleAction(m, players, "user-b", Action{Type: ActionChooseFirstPicker, UserID: "user-b"}, now)
	requireFiberStatus(t, err, fiber.StatusForbidden)

	_, err = h.HandleAction(m, players, "user-a", Action{Type: ActionChooseFirstPicker, UserID: "stranger"}, now)
	requireFiberStatus(t, err, fiber.StatusBadRequest)

	res, err := h.HandleAction(m, players, "user-a", Action{Type: ActionChooseFirstPicker, UserID: "user-b"}, now)
	require.NoError(t, err)
	assert.False(t, res.RoundEnded)

	assert.Equal(t, models.DraftPhaseDraft, d.Phase)
	assert.Equal(t, []string{"user-b", "user-a", "user-a", "user-b"}, d.PickOrder)
	assert.Equal(t, "user-b", m.State.TurnUserID)

	_, err = h.HandleAction(m, players, "user-a", Action{Type: ActionChooseFirstPicker, UserID: "user-a"}, now)
	requireFiberStatus(t, err, fiber.StatusConflict)
}

func TestDraftSnakePicksAndReveal(t *testing.T) {
	h, m, players := newDraftFixture(t)
	now := time.Now()
	d := m.State.Data.Draft

	_, err := h.HandleAction(m, players, "user-a", Action{Type: ActionChooseFirstPicker, UserID: "user-a"}, now)
	require.NoError(t, err)

	// out of turn
	_, err = h.HandleAction(m, players, "user-b", Action{Type: ActionPickKey, Key: "team"}, now)
	requireFiberStatus(t, err, fiber.StatusConflict)

	_, err = h.HandleAction(m, players, "user-a", Action{Type: ActionPickKey, Key: "shoe_size"}, now)
	requireFiberStatus(t, err, fiber.StatusBadRequest)

	_, err = h.HandleAction(m, players, "user-a", Action{Type: ActionPickKey, Key: "team"}, now)
	require.NoError(t, err)
	assert.Equal(t, "user-b", m.State.TurnUserID)

	_, err = h.HandleAction(m, players, "user-b", Action{Type: ActionPickKey, Key: "team"}, now)
	requireFiberStatus(t, err, fiber.StatusConflict)

	_, err = h.HandleAction(m, players, "user-b", Action{Type: ActionPickKey, Key: "country"}, now)
	require.NoError(t, err)
	_, err = h.HandleAction(m, players, "user-b", Action{Type: ActionPickKey, Key: "role"}, now)
	require.NoError(t, err)

	res, err := h.HandleAction(m, players, "user-a", Action{Type: ActionPickKey, Key: "league"}, now)
	require.NoError(t, err)

	assert.Equal(t, models.DraftPhaseGuess, d.Phase)
	assert.Empty(t, m.State.TurnUserID)
	assert.Equal(t, map[string]string{
		"team": "T1", "country": "KR", "role": "mid", "league": "LCK",
	}, d.Revealed)

	var types []string
	for _, ev := range res.Events {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, "hints_revealed")
}

func TestDraftGuessPhaseTieBreak(t *testing.T) {
	h, m, players := newDraftFixture(t)
	now := time.Now()

	_, err := h.HandleAction(m, players, "user-a", Action{Type: ActionChooseFirstPicker, UserID: "user-a"}, now)
	require.NoError(t, err)
	for i, pick := range []struct{ user, key string }{
		{"user-a", "team"}, {"user-b", "country"}, {"user-b", "role"}, {"user-a", "league"},
	} {
		_, err := h.HandleAction(m, players, pick.user, Action{Type: ActionPickKey, Key: pick.key}, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	// a solves in one guess, b needs two
	res, err := h.HandleAction(m, players, "user-a", Action{Type: ActionGuess, PlayerID: "faker"}, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.False(t, res.RoundEnded)

	_, err = h.HandleAction(m, players, "user-b", Action{Type: ActionGuess, PlayerID: "caps"}, now.Add(11*time.Second))
	require.NoError(t, err)

	res, err = h.HandleAction(m, players, "user-b", Action{Type: ActionGuess, PlayerID: "faker"}, now.Add(12*time.Second))
	require.NoError(t, err)
	assert.True(t, res.RoundEnded)
	assert.Equal(t, "user-a", res.WinnerUserID)
}
