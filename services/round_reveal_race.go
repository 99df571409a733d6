package services

import (
	"math/rand"
	"time"

	"github.com/gofiber/fiber/v2"

	"pvp-match-system/config"
	"pvp-match-system/models"
)

// RevealRaceRound: one hint key becomes visible per elapsed interval,
// recomputed lazily from the persisted start timestamp. The first correct
// guess wins outright; a wrong guess locks that player out for a few
// seconds.
type RevealRaceRound struct {
	cfg     *config.PvpConfig
	secrets *SecretPlayerService
	hints   *HintValueService
	compare PlayerCompareService
}

func NewRevealRaceRound(cfg *config.PvpConfig, secrets *SecretPlayerService, hints *HintValueService, compare PlayerCompareService) *RevealRaceRound {
	return &RevealRaceRound{cfg: cfg, secrets: secrets, hints: hints, compare: compare}
}

func (h *RevealRaceRound) Type() string { return models.RoundRevealRace }

func (h *RevealRaceRound) Initialize(m *models.Match, players []models.MatchPlayer, now time.Time) error {
	game, ok := h.cfg.Game(m.Game)
	if !ok {
		return fiber.NewError(fiber.StatusInternalServerError, "no reveal_race configuration for game "+m.Game)
	}
	if len(game.RevealKeys) == 0 {
		return fiber.NewError(fiber.StatusInternalServerError, "reveal_race key list empty for game "+m.Game)
	}
	secret, err := h.secrets.PickSecret(m.Game)
	if err != nil {
		return err
	}

	keys := append([]string(nil), game.RevealKeys...)
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	m.State.Data.RevealRace = &models.RevealRaceData{
		SecretPlayerID: secret,
		StartedAt:      now,
		RevealKeys:     keys,
		Revealed:       map[string]string{},
		LockedUntil:    map[string]time.Time{},
		Players:        NewGuessStates(ParticipantService{}.UserIDs(players), now),
	}
	return nil
}

// targetRevealCount derives how many keys should be visible at `now`: one
// at start, one more per full interval since, capped by the key list. The
// cap bounds the catch-up loop after long gaps.
func (h *RevealRaceRound) targetRevealCount(d *models.RevealRaceData, now time.Time) int {
	elapsed := now.Sub(d.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	target := 1 + int(elapsed/h.cfg.RevealInterval())
	if target > len(d.RevealKeys) {
		target = len(d.RevealKeys)
	}
	return target
}

func (h *RevealRaceRound) Tick(m *models.Match, now time.Time) (bool, []EventDraft, error) {
	d := m.State.Data.RevealRace
	if d == nil {
		return false, nil, fiber.NewError(fiber.StatusInternalServerError, "reveal_race round state missing")
	}
	target := h.targetRevealCount(d, now)
	if target <= d.RevealedCount {
		return false, nil, nil
	}

	var events []EventDraft
	for d.RevealedCount < target {
		key := d.RevealKeys[d.RevealedCount]
		value, err := h.hints.HintValue(m.Game, d.SecretPlayerID, key)
		if err != nil {
			return false, nil, err
		}
		d.Revealed[key] = value
		d.RevealedCount++
		events = append(events, EventDraft{
			Type: "hint_revealed",
			Payload: models.JSONMap{
				"key":   key,
				"label": DisplayLabel(key),
				"value": value,
			},
		})
	}
	return true, events, nil
}

func (h *RevealRaceRound) PublicState(m *models.Match, userID string, now time.Time) fiber.Map {
	d := m.State.Data.RevealRace
	if d == nil {
		return fiber.Map{}
	}
	out := fiber.Map{
		"started_at":     d.StartedAt,
		"revealed":       d.Revealed,
		"revealed_count": d.RevealedCount,
		"total_keys":     len(d.RevealKeys),
		"players":        GuessPublicView(d.Players, userID),
	}
	if d.RevealedCount < len(d.RevealKeys) {
		out["next_reveal_at"] = d.StartedAt.Add(time.Duration(d.RevealedCount) * h.cfg.RevealInterval())
	}
	if until, ok := d.LockedUntil[userID]; ok && until.After(now) {
		out["locked_until"] = until
	}
	return out
}

func (h *RevealRaceRound) HandleAction(m *models.Match, players []models.MatchPlayer, userID string, action Action, now time.Time) (*ActionResult, error) {
	d := m.State.Data.RevealRace
	if d == nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "reveal_race round state missing")
	}
	if action.Type != ActionGuess {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unsupported action type: "+action.Type)
	}
	if action.PlayerID == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "player_id is required")
	}
	if until, ok := d.LockedUntil[userID]; ok && until.After(now) {
		return nil, fiber.NewError(fiber.StatusConflict, "guessing is temporarily locked")
	}

	cmp, err := h.compare.Compare(m.Game, d.SecretPlayerID, action.PlayerID)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	outcome, err := ApplyGuess(d.Players, userID, action.PlayerID, cmp, now)
	if err != nil {
		return nil, err
	}

	res := &ActionResult{
		Events: []EventDraft{{
			UserID: userID,
			Type:   "guess_submitted",
			Payload: models.JSONMap{
				"player_id": action.PlayerID,
				"correct":   outcome.Correct,
			},
		}},
	}
	if outcome.Correct {
		// winner-take-all: first correct guess ends the round
		res.RoundEnded = true
		res.WinnerUserID = userID
	} else {
		d.LockedUntil[userID] = now.Add(h.cfg.GuessLockout())
	}
	return res, nil
}
