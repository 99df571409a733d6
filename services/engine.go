package services

import (
	"errors"
	"math/rand"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pvp-match-system/config"
	"pvp-match-system/models"
)

// MatchEngine orchestrates the round lifecycle: lazy initialization,
// chooser selection, passive ticking, action handling and round/match
// completion. Every entry point locks the match row for the duration of
// one transaction, so concurrent operations on the same match serialize.
type MatchEngine struct {
	DB        *gorm.DB
	Cfg       *config.PvpConfig
	Factory   *RoundHandlerFactory
	Events    *EventService
	Lifecycle *MatchLifecycleService

	participants ParticipantService
}

func NewMatchEngine(db *gorm.DB, cfg *config.PvpConfig, factory *RoundHandlerFactory, events *EventService, lifecycle *MatchLifecycleService) *MatchEngine {
	return &MatchEngine{DB: db, Cfg: cfg, Factory: factory, Events: events, Lifecycle: lifecycle}
}

// lockMatch loads a match row under FOR UPDATE.
func lockMatch(tx *gorm.DB, matchID string) (*models.Match, error) {
	var m models.Match
	if err := forUpdate(tx).Where("id = ?", matchID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "match not found")
		}
		return nil, err
	}
	return &m, nil
}

// BuildMatchPayload returns the unified match payload for one participant,
// lazily initializing and ticking the current round first. Reads take the
// match lock because they may need to write.
func (e *MatchEngine) BuildMatchPayload(matchID, userID string) (fiber.Map, error) {
	var payload fiber.Map
	err := e.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, matchID)
		if err != nil {
			return err
		}
		players, err := e.participants.Participants(tx, m.ID)
		if err != nil {
			return err
		}
		if _, err := e.participants.Require(players, userID); err != nil {
			return err
		}

		if m.Status == models.MatchStatusActive {
			changed, err := e.ensureRound(tx, m, players, time.Now())
			if err != nil {
				return err
			}
			if changed {
				if err := tx.Save(m).Error; err != nil {
					return err
				}
			}
		}

		payload = e.payload(tx, m, players, userID, time.Now())
		return nil
	})
	return payload, err
}

// ensureRound initializes the current round if this index has not been
// initialized yet, then applies the handler's passive tick. Initialization
// is idempotent per round index: a second read neither re-rolls the secret
// nor re-picks the chooser.
func (e *MatchEngine) ensureRound(tx *gorm.DB, m *models.Match, players []models.MatchPlayer, now time.Time) (bool, error) {
	idx := m.CurrentRound
	if idx < 1 || idx > len(m.Rounds) {
		return false, fiber.NewError(fiber.StatusInternalServerError, "current round index out of range")
	}
	roundType := m.Rounds[idx-1]
	handler, err := e.Factory.Handler(roundType)
	if err != nil {
		return false, err
	}

	changed := false
	if !m.State.RoundInitialized {
		m.State.RoundType = roundType
		m.State.TurnUserID = ""
		m.State.Data = models.RoundData{}
		if err := handler.Initialize(m, players, now); err != nil {
			return false, err
		}
		e.ensureChooser(m, players, handler)
		m.State.RoundInitialized = true
		changed = true

		if err := e.Events.Emit(tx, m.ID, "", "round_started", models.JSONMap{
			"round":           idx,
			"round_type":      roundType,
			"chooser_user_id": m.State.ChooserUserID,
		}); err != nil {
			return false, err
		}
	}

	if ticker, ok := handler.(Ticker); ok {
		tickChanged, events, err := ticker.Tick(m, now)
		if err != nil {
			return false, err
		}
		if tickChanged {
			changed = true
			if err := e.Events.EmitDrafts(tx, m.ID, events); err != nil {
				return false, err
			}
		}
	}
	return changed, nil
}

// ensureChooser assigns the round's chooser: the previous round's winner,
// or a uniformly random participant when none is recorded (round one, or a
// state gap that should not occur in normal play). Turn-based rounds start
// with the chooser on turn.
func (e *MatchEngine) ensureChooser(m *models.Match, players []models.MatchPlayer, handler RoundHandler) {
	if m.State.ChooserUserID == "" {
		if m.State.LastRoundWinnerUserID != "" {
			m.State.ChooserUserID = m.State.LastRoundWinnerUserID
		} else {
			m.State.ChooserUserID = players[rand.Intn(len(players))].UserID
		}
	}
	if tb, ok := handler.(TurnBased); ok && tb.IsTurnBased() && m.State.TurnUserID == "" {
		m.State.TurnUserID = m.State.ChooserUserID
	}
}

// HandleRoundAction applies one client action to the current round and
// advances the round/match when it ends.
func (e *MatchEngine) HandleRoundAction(matchID, userID string, action Action) (fiber.Map, error) {
	var payload fiber.Map
	err := e.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchStatusActive {
			return fiber.NewError(fiber.StatusConflict, "match is not active")
		}
		players, err := e.participants.Participants(tx, m.ID)
		if err != nil {
			return err
		}
		actor, err := e.participants.Require(players, userID)
		if err != nil {
			return err
		}

		now := time.Now()
		// covers clients acting on a round they have not read yet
		if _, err := e.ensureRound(tx, m, players, now); err != nil {
			return err
		}

		handler, err := e.Factory.Handler(m.State.RoundType)
		if err != nil {
			return err
		}
		result, err := handler.HandleAction(m, players, userID, action, now)
		if err != nil {
			return err
		}

		actor.LastActionAt = &now
		if err := tx.Model(&models.MatchPlayer{}).
			Where("match_id = ? AND user_id = ?", m.ID, userID).
			Update("last_action_at", now).Error; err != nil {
			return err
		}
		if err := e.Events.EmitDrafts(tx, m.ID, result.Events); err != nil {
			return err
		}

		if !result.RoundEnded {
			if err := tx.Save(m).Error; err != nil {
				return err
			}
			payload = e.payload(tx, m, players, userID, now)
			return nil
		}

		payload, err = e.finishRound(tx, m, players, result.WinnerUserID, userID, now)
		return err
	})
	return payload, err
}

// finishRound credits the round winner and either finishes the match by
// points or advances to the next round.
func (e *MatchEngine) finishRound(tx *gorm.DB, m *models.Match, players []models.MatchPlayer, winnerUserID, viewerID string, now time.Time) (fiber.Map, error) {
	winner, err := e.participants.Require(players, winnerUserID)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "round winner is not a participant")
	}

	winner.Points++
	if err := tx.Model(&models.MatchPlayer{}).
		Where("match_id = ? AND user_id = ?", m.ID, winner.UserID).
		Update("points", winner.Points).Error; err != nil {
		return nil, err
	}
	m.State.LastRoundWinnerUserID = winner.UserID

	if err := e.Events.Emit(tx, m.ID, winner.UserID, "round_finished", models.JSONMap{
		"round":          m.CurrentRound,
		"round_type":     m.State.RoundType,
		"winner_user_id": winner.UserID,
		"points":         winner.Points,
	}); err != nil {
		return nil, err
	}

	if winner.Points >= m.BestOf/2+1 {
		if err := e.Lifecycle.finishTx(tx, m, winner.UserID, models.EndedReasonPoints); err != nil {
			return nil, err
		}
		return e.payload(tx, m, players, viewerID, now), nil
	}

	// next round re-initializes lazily on the next read
	m.CurrentRound++
	m.State.ChooserUserID = ""
	m.State.TurnUserID = ""
	m.State.RoundType = ""
	m.State.RoundInitialized = false
	m.State.Data = models.RoundData{}
	if err := tx.Save(m).Error; err != nil {
		return nil, err
	}
	return e.payload(tx, m, players, viewerID, now), nil
}

// payload builds the unified match payload filtered for one participant.
func (e *MatchEngine) payload(tx *gorm.DB, m *models.Match, players []models.MatchPlayer, userID string, now time.Time) fiber.Map {
	playerViews := make([]fiber.Map, 0, len(players))
	for _, p := range players {
		playerViews = append(playerViews, fiber.Map{
			"seat":         p.Seat,
			"user_id":      p.UserID,
			"name":         p.Name,
			"points":       p.Points,
			"last_seen_at": p.LastSeenAt,
		})
	}

	roundType := m.State.RoundType
	if roundType == "" && m.CurrentRound >= 1 && m.CurrentRound <= len(m.Rounds) {
		roundType = m.Rounds[m.CurrentRound-1]
	}

	out := fiber.Map{
		"id":              m.ID,
		"match_id":        m.ID,
		"game":            m.Game,
		"status":          m.Status,
		"best_of":         m.BestOf,
		"current_round":   m.CurrentRound,
		"rounds":          m.Rounds,
		"players":         playerViews,
		"last_event_id":   e.Events.LastEventID(tx, m.ID),
		"round_type":      roundType,
		"chooser_user_id": m.State.ChooserUserID,
	}

	if m.Status == models.MatchStatusActive && m.State.RoundInitialized {
		if handler, err := e.Factory.Handler(m.State.RoundType); err == nil {
			out["round"] = handler.PublicState(m, userID, now)
		}
	}
	if m.Status == models.MatchStatusFinished {
		out["winner_user_id"] = m.State.WinnerUserID
		out["ended_reason"] = m.State.EndedReason
		out["finished_at"] = m.FinishedAt
	}
	return out
}

// GetMatchHandler handles GET /pvp/matches/:id
func (e *MatchEngine) GetMatchHandler(c *fiber.Ctx) error {
	payload, err := e.BuildMatchPayload(c.Params("id"), c.Locals("user_id").(string))
	if err != nil {
		return err
	}
	return c.JSON(payload)
}

// GetRoundHandler handles GET /pvp/matches/:id/round
func (e *MatchEngine) GetRoundHandler(c *fiber.Ctx) error {
	payload, err := e.BuildMatchPayload(c.Params("id"), c.Locals("user_id").(string))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"match_id":        payload["match_id"],
		"status":          payload["status"],
		"current_round":   payload["current_round"],
		"round_type":      payload["round_type"],
		"chooser_user_id": payload["chooser_user_id"],
		"round":           payload["round"],
		"last_event_id":   payload["last_event_id"],
	})
}

// RoundActionHandler handles POST /pvp/matches/:id/round/action
func (e *MatchEngine) RoundActionHandler(c *fiber.Ctx) error {
	var req struct {
		Action Action `json:"action"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON: "+err.Error())
	}
	if req.Action.Type == "" {
		return fiber.NewError(fiber.StatusBadRequest, "action.type is required")
	}
	payload, err := e.HandleRoundAction(c.Params("id"), c.Locals("user_id").(string), req.Action)
	if err != nil {
		return err
	}
	return c.JSON(payload)
}

// MatchEventsHandler handles GET /pvp/matches/:id/events
func (e *MatchEngine) MatchEventsHandler(c *fiber.Ctx) error {
	matchID := c.Params("id")
	userID := c.Locals("user_id").(string)

	afterID, limit, err := cursorParams(c)
	if err != nil {
		return err
	}

	// participant check without lazy init
	players, err := e.participants.Participants(e.DB, matchID)
	if err != nil {
		return err
	}
	if _, err := e.participants.Require(players, userID); err != nil {
		return err
	}

	events, lastID, err := e.Events.FetchAfter(matchID, afterID, limit)
	if err != nil {
		return err
	}
	out := fiber.Map{
		"events":  events,
		"last_id": lastID,
	}
	if c.Query("include_state") == "1" {
		state, err := e.BuildMatchPayload(matchID, userID)
		if err != nil {
			return err
		}
		out["state"] = state
	}
	return c.JSON(out)
}
