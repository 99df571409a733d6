package services

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"pvp-match-system/config"
	"pvp-match-system/models"
)

// WhoisRound: 20-questions elimination over the active roster. Players
// alternate turns; a turn is either a yes/no predicate that filters the
// candidate pool, or a direct guess. A wrong guess removes that candidate
// permanently; a correct guess wins.
type WhoisRound struct {
	cfg     *config.PvpConfig
	secrets *SecretPlayerService
	pool    PlayerPoolService
}

func NewWhoisRound(cfg *config.PvpConfig, secrets *SecretPlayerService, pool PlayerPoolService) *WhoisRound {
	return &WhoisRound{cfg: cfg, secrets: secrets, pool: pool}
}

func (h *WhoisRound) Type() string      { return models.RoundWhois }
func (h *WhoisRound) IsTurnBased() bool { return true }

func (h *WhoisRound) Initialize(m *models.Match, players []models.MatchPlayer, now time.Time) error {
	candidates, err := h.pool.Candidates(m.Game)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load candidate pool: "+err.Error())
	}
	if len(candidates) < 2 {
		return fiber.NewError(fiber.StatusInternalServerError, "candidate pool too small for game "+m.Game)
	}
	secret, err := h.secrets.PickSecret(m.Game)
	if err != nil {
		return err
	}
	if !contains(candidates, secret) {
		return fiber.NewError(fiber.StatusInternalServerError, "secret player missing from candidate pool")
	}
	m.State.Data.Whois = &models.WhoisRoundData{
		SecretPlayerID: secret,
		Phase:          models.WhoisPhaseChooseTurn,
		Candidates:     candidates,
	}
	return nil
}

func (h *WhoisRound) PublicState(m *models.Match, userID string, now time.Time) fiber.Map {
	d := m.State.Data.Whois
	if d == nil {
		return fiber.Map{}
	}
	game, _ := h.cfg.Game(m.Game)
	questions := fiber.Map{}
	for key, meta := range game.WhoisQuestions {
		questions[key] = fiber.Map{
			"label":     DisplayLabel(key),
			"type":      meta.Type,
			"operators": meta.Operators,
		}
	}
	return fiber.Map{
		"phase":        d.Phase,
		"candidates":   d.Candidates,
		"remaining":    len(d.Candidates),
		"asked":        d.Asked,
		"questions":    questions,
		"turn_user_id": m.State.TurnUserID,
	}
}

func (h *WhoisRound) HandleAction(m *models.Match, players []models.MatchPlayer, userID string, action Action, now time.Time) (*ActionResult, error) {
	d := m.State.Data.Whois
	if d == nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "whois round state missing")
	}
	switch action.Type {
	case ActionChooseFirstTurn:
		return h.chooseFirstTurn(m, players, d, userID, action)
	case ActionAsk:
		return h.ask(m, players, d, userID, action, now)
	case ActionGuess:
		return h.guess(m, players, d, userID, action)
	default:
		return nil, fiber.NewError(fiber.StatusBadRequest, "unsupported action type: "+action.Type)
	}
}

func (h *WhoisRound) chooseFirstTurn(m *models.Match, players []models.MatchPlayer, d *models.WhoisRoundData, userID string, action Action) (*ActionResult, error) {
	if d.Phase != models.WhoisPhaseChooseTurn {
		return nil, fiber.NewError(fiber.StatusConflict, "first turn already chosen")
	}
	if userID != m.State.ChooserUserID {
		return nil, fiber.NewError(fiber.StatusForbidden, "only the chooser may pick who asks first")
	}
	first, err := ParticipantService{}.Require(players, action.UserID)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "first turn must go to a participant")
	}

	d.Phase = models.WhoisPhasePlay
	m.State.TurnUserID = first.UserID

	return &ActionResult{
		Events: []EventDraft{{
			UserID: userID,
			Type:   "whois_first_turn_chosen",
			Payload: models.JSONMap{
				"first_turn_user_id": first.UserID,
			},
		}},
	}, nil
}

func (h *WhoisRound) requireTurn(m *models.Match, d *models.WhoisRoundData, userID string) error {
	if d.Phase != models.WhoisPhasePlay {
		return fiber.NewError(fiber.StatusConflict, "round has not started yet")
	}
	if userID != m.State.TurnUserID {
		return fiber.NewError(fiber.StatusConflict, "not your turn")
	}
	return nil
}

func (h *WhoisRound) passTurn(m *models.Match, players []models.MatchPlayer, userID string) {
	if opp, err := (ParticipantService{}).Opponent(players, userID); err == nil {
		m.State.TurnUserID = opp.UserID
	}
}

func (h *WhoisRound) ask(m *models.Match, players []models.MatchPlayer, d *models.WhoisRoundData, userID string, action Action, now time.Time) (*ActionResult, error) {
	if err := h.requireTurn(m, d, userID); err != nil {
		return nil, err
	}
	game, _ := h.cfg.Game(m.Game)
	meta, ok := game.WhoisQuestions[action.Key]
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid question key: "+action.Key)
	}
	if !contains(meta.Operators, action.Operator) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid operator for question key: "+action.Operator)
	}

	secretProfile, err := h.pool.PlayerProfile(m.Game, d.SecretPlayerID)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load secret profile: "+err.Error())
	}
	answer, err := EvaluatePredicate(meta, secretProfile[action.Key], action.Operator, action.Value)
	if err != nil {
		return nil, err
	}

	// keep every candidate whose answer matches the secret's answer; the
	// secret always matches itself, so the pool never empties
	kept := make([]string, 0, len(d.Candidates))
	for _, id := range d.Candidates {
		if id == d.SecretPlayerID {
			kept = append(kept, id)
			continue
		}
		profile, err := h.pool.PlayerProfile(m.Game, id)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load candidate profile: "+err.Error())
		}
		match, err := EvaluatePredicate(meta, profile[action.Key], action.Operator, action.Value)
		if err != nil {
			return nil, err
		}
		if match == answer {
			kept = append(kept, id)
		}
	}
	d.Candidates = kept
	d.Asked = append(d.Asked, models.WhoisQuestion{
		AskerUserID: userID,
		Key:         action.Key,
		Operator:    action.Operator,
		Value:       action.Value,
		Answer:      answer,
		Remaining:   len(kept),
		At:          now,
	})
	h.passTurn(m, players, userID)

	return &ActionResult{
		Events: []EventDraft{{
			UserID: userID,
			Type:   "question_asked",
			Payload: models.JSONMap{
				"key":       action.Key,
				"operator":  action.Operator,
				"value":     action.Value,
				"answer":    answer,
				"remaining": len(kept),
			},
		}},
	}, nil
}

func (h *WhoisRound) guess(m *models.Match, players []models.MatchPlayer, d *models.WhoisRoundData, userID string, action Action) (*ActionResult, error) {
	if err := h.requireTurn(m, d, userID); err != nil {
		return nil, err
	}
	if action.PlayerID == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "player_id is required")
	}
	if !contains(d.Candidates, action.PlayerID) {
		return nil, fiber.NewError(fiber.StatusNotFound, "player is not in the candidate pool")
	}

	if action.PlayerID == d.SecretPlayerID {
		return &ActionResult{
			RoundEnded:   true,
			WinnerUserID: userID,
			Events: []EventDraft{{
				UserID: userID,
				Type:   "whois_guess",
				Payload: models.JSONMap{
					"player_id": action.PlayerID,
					"correct":   true,
				},
			}},
		}, nil
	}

	kept := make([]string, 0, len(d.Candidates)-1)
	for _, id := range d.Candidates {
		if id != action.PlayerID {
			kept = append(kept, id)
		}
	}
	d.Candidates = kept
	d.WrongGuesses = append(d.WrongGuesses, action.PlayerID)
	h.passTurn(m, players, userID)

	return &ActionResult{
		Events: []EventDraft{{
			UserID: userID,
			Type:   "candidate_eliminated",
			Payload: models.JSONMap{
				"player_id": action.PlayerID,
				"remaining": len(kept),
			},
		}},
	}, nil
}
