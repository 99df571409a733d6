package services

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"pvp-match-system/config"
	"pvp-match-system/models"
)

const draftPickCount = 4

// DraftRound: the chooser decides who drafts first, the two players pick
// four hint keys in snake order [A,B,B,A], then all four values are
// revealed and the round becomes a simultaneous guess phase.
type DraftRound struct {
	cfg      *config.PvpConfig
	secrets  *SecretPlayerService
	hints    *HintValueService
	compare  PlayerCompareService
	tieBreak TieBreakerService
}

func NewDraftRound(cfg *config.PvpConfig, secrets *SecretPlayerService, hints *HintValueService, compare PlayerCompareService, tieBreak TieBreakerService) *DraftRound {
	return &DraftRound{cfg: cfg, secrets: secrets, hints: hints, compare: compare, tieBreak: tieBreak}
}

func (h *DraftRound) Type() string      { return models.RoundDraft }
func (h *DraftRound) IsTurnBased() bool { return true }

func (h *DraftRound) Initialize(m *models.Match, players []models.MatchPlayer, now time.Time) error {
	game, ok := h.cfg.Game(m.Game)
	if !ok {
		return fiber.NewError(fiber.StatusInternalServerError, "no draft configuration for game "+m.Game)
	}
	if len(game.DraftKeys) < draftPickCount {
		return fiber.NewError(fiber.StatusInternalServerError, "draft key list too short for game "+m.Game)
	}
	secret, err := h.secrets.PickSecret(m.Game)
	if err != nil {
		return err
	}
	m.State.Data.Draft = &models.DraftRoundData{
		SecretPlayerID: secret,
		Phase:          models.DraftPhaseChooseOrder,
		Revealed:       map[string]string{},
	}
	return nil
}

func (h *DraftRound) PublicState(m *models.Match, userID string, now time.Time) fiber.Map {
	d := m.State.Data.Draft
	if d == nil {
		return fiber.Map{}
	}
	game, _ := h.cfg.Game(m.Game)
	out := fiber.Map{
		"phase":        d.Phase,
		"allowed_keys": game.DraftKeys,
		"picked_keys":  d.PickedKeys,
		"revealed":     d.Revealed,
		"turn_user_id": m.State.TurnUserID,
	}
	if d.Phase == models.DraftPhaseGuess {
		out["players"] = GuessPublicView(d.Players, userID)
	}
	return out
}

func (h *DraftRound) HandleAction(m *models.Match, players []models.MatchPlayer, userID string, action Action, now time.Time) (*ActionResult, error) {
	d := m.State.Data.Draft
	if d == nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "draft round state missing")
	}
	switch action.Type {
	case ActionChooseFirstPicker:
		return h.chooseFirstPicker(m, players, d, userID, action)
	case ActionPickKey:
		return h.pickKey(m, players, d, userID, action, now)
	case ActionGuess:
		return h.guess(m, players, d, userID, action, now)
	default:
		return nil, fiber.NewError(fiber.StatusBadRequest, "unsupported action type: "+action.Type)
	}
}

func (h *DraftRound) chooseFirstPicker(m *models.Match, players []models.MatchPlayer, d *models.DraftRoundData, userID string, action Action) (*ActionResult, error) {
	if d.Phase != models.DraftPhaseChooseOrder {
		return nil, fiber.NewError(fiber.StatusConflict, "draft order already chosen")
	}
	if userID != m.State.ChooserUserID {
		return nil, fiber.NewError(fiber.StatusForbidden, "only the chooser may pick the draft order")
	}
	first, err := ParticipantService{}.Require(players, action.UserID)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "first picker must be a participant")
	}
	second, err := ParticipantService{}.Opponent(players, first.UserID)
	if err != nil {
		return nil, err
	}

	// snake order: first picks 1st and 4th
	d.PickOrder = []string{first.UserID, second.UserID, second.UserID, first.UserID}
	d.PickIndex = 0
	d.Phase = models.DraftPhaseDraft
	m.State.TurnUserID = first.UserID

	return &ActionResult{
		Events: []EventDraft{{
			UserID: userID,
			Type:   "draft_order_chosen",
			Payload: models.JSONMap{
				"first_picker_user_id": first.UserID,
			},
		}},
	}, nil
}

func (h *DraftRound) pickKey(m *models.Match, players []models.MatchPlayer, d *models.DraftRoundData, userID string, action Action, now time.Time) (*ActionResult, error) {
	if d.Phase != models.DraftPhaseDraft {
		return nil, fiber.NewError(fiber.StatusConflict, "draft is not in the pick phase")
	}
	if len(d.PickOrder) != draftPickCount || d.PickIndex < 0 || d.PickIndex >= draftPickCount {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "corrupted draft pick plan")
	}
	if userID != d.PickOrder[d.PickIndex] {
		return nil, fiber.NewError(fiber.StatusConflict, "not your pick")
	}
	game, _ := h.cfg.Game(m.Game)
	if !contains(game.DraftKeys, action.Key) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid draft key: "+action.Key)
	}
	if contains(d.PickedKeys, action.Key) {
		return nil, fiber.NewError(fiber.StatusConflict, "key already picked")
	}

	d.PickedKeys = append(d.PickedKeys, action.Key)
	d.PickIndex++

	events := []EventDraft{{
		UserID: userID,
		Type:   "draft_pick",
		Payload: models.JSONMap{
			"key":   action.Key,
			"label": DisplayLabel(action.Key),
		},
	}}

	if d.PickIndex == draftPickCount {
		revealed, err := h.hints.ResolveHints(m.Game, d.SecretPlayerID, d.PickedKeys)
		if err != nil {
			return nil, err
		}
		d.Revealed = revealed
		d.Phase = models.DraftPhaseGuess
		d.Players = NewGuessStates(ParticipantService{}.UserIDs(players), now)
		m.State.TurnUserID = ""

		hintsPayload := models.JSONMap{}
		for k, v := range revealed {
			hintsPayload[k] = v
		}
		events = append(events, EventDraft{
			Type:    "hints_revealed",
			Payload: models.JSONMap{"hints": hintsPayload},
		})
	} else {
		m.State.TurnUserID = d.PickOrder[d.PickIndex]
	}

	return &ActionResult{Events: events}, nil
}

func (h *DraftRound) guess(m *models.Match, players []models.MatchPlayer, d *models.DraftRoundData, userID string, action Action, now time.Time) (*ActionResult, error) {
	if d.Phase != models.DraftPhaseGuess {
		return nil, fiber.NewError(fiber.StatusConflict, "draft is not in the guess phase")
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

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
