package services

import (
	"math/rand"
	"time"

	"github.com/gofiber/fiber/v2"

	"pvp-match-system/config"
	"pvp-match-system/models"
)

const lockedInfoRevealCount = 2

// LockedInfosRound: two randomly chosen hint keys are revealed immediately
// at init, then the round plays like classic.
type LockedInfosRound struct {
	cfg      *config.PvpConfig
	secrets  *SecretPlayerService
	hints    *HintValueService
	compare  PlayerCompareService
	tieBreak TieBreakerService
}

func NewLockedInfosRound(cfg *config.PvpConfig, secrets *SecretPlayerService, hints *HintValueService, compare PlayerCompareService, tieBreak TieBreakerService) *LockedInfosRound {
	return &LockedInfosRound{cfg: cfg, secrets: secrets, hints: hints, compare: compare, tieBreak: tieBreak}
}

func (h *LockedInfosRound) Type() string { return models.RoundLockedInfos }

func (h *LockedInfosRound) Initialize(m *models.Match, players []models.MatchPlayer, now time.Time) error {
	game, ok := h.cfg.Game(m.Game)
	if !ok {
		return fiber.NewError(fiber.StatusInternalServerError, "no locked_infos configuration for game "+m.Game)
	}
	if len(game.LockedInfoKeys) < lockedInfoRevealCount {
		return fiber.NewError(fiber.StatusInternalServerError, "locked_infos key list too short for game "+m.Game)
	}
	secret, err := h.secrets.PickSecret(m.Game)
	if err != nil {
		return err
	}

	keys := append([]string(nil), game.LockedInfoKeys...)
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	keys = keys[:lockedInfoRevealCount]

	revealed, err := h.hints.ResolveHints(m.Game, secret, keys)
	if err != nil {
		return err
	}

	m.State.Data.LockedInfos = &models.LockedInfosData{
		SecretPlayerID: secret,
		RevealedKeys:   keys,
		Revealed:       revealed,
		Players:        NewGuessStates(ParticipantService{}.UserIDs(players), now),
	}
	return nil
}

func (h *LockedInfosRound) PublicState(m *models.Match, userID string, now time.Time) fiber.Map {
	d := m.State.Data.LockedInfos
	if d == nil {
		return fiber.Map{}
	}
	return fiber.Map{
		"revealed_keys": d.RevealedKeys,
		"revealed":      d.Revealed,
		"players":       GuessPublicView(d.Players, userID),
	}
}

func (h *LockedInfosRound) HandleAction(m *models.Match, players []models.MatchPlayer, userID string, action Action, now time.Time) (*ActionResult, error) {
	d := m.State.Data.LockedInfos
	if d == nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "locked_infos round state missing")
	}
	if action.Type != ActionGuess {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unsupported action type: "+action.Type)
	}
	if action.PlayerID == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "player_id is required")
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
	if outcome.BothSolved {
		a, b := players[0], players[1]
		res.RoundEnded = true
		res.WinnerUserID = h.tieBreak.Resolve(a.UserID, d.Players[a.UserID], b.UserID, d.Players[b.UserID])
	}
	return res, nil
}
