package services

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"pvp-match-system/models"
)

// ClassicRound: both players guess the same secret independently and
// simultaneously; the round ends when both have solved and the tie-break
// decides the winner.
type ClassicRound struct {
	secrets  *SecretPlayerService
	compare  PlayerCompareService
	tieBreak TieBreakerService
}

func NewClassicRound(secrets *SecretPlayerService, compare PlayerCompareService, tieBreak TieBreakerService) *ClassicRound {
	return &ClassicRound{secrets: secrets, compare: compare, tieBreak: tieBreak}
}

func (h *ClassicRound) Type() string { return models.RoundClassic }

func (h *ClassicRound) Initialize(m *models.Match, players []models.MatchPlayer, now time.Time) error {
	secret, err := h.secrets.PickSecret(m.Game)
	if err != nil {
		return err
	}
	m.State.Data.Classic = &models.GuessRoundData{
		SecretPlayerID: secret,
		Players:        NewGuessStates(ParticipantService{}.UserIDs(players), now),
	}
	return nil
}

func (h *ClassicRound) PublicState(m *models.Match, userID string, now time.Time) fiber.Map {
	d := m.State.Data.Classic
	if d == nil {
		return fiber.Map{}
	}
	return fiber.Map{
		"players": GuessPublicView(d.Players, userID),
	}
}

func (h *ClassicRound) HandleAction(m *models.Match, players []models.MatchPlayer, userID string, action Action, now time.Time) (*ActionResult, error) {
	d := m.State.Data.Classic
	if d == nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "classic round state missing")
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
