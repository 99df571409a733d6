package services

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pvp-match-system/models"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

// EventService appends to and reads the per-match and per-lobby event logs.
// Events are append-only; ids are assigned at commit time and strictly
// increase, which gives clients a replay-safe cursor order.
type EventService struct {
	DB *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

// Emit appends one match event inside the caller's transaction.
func (s *EventService) Emit(tx *gorm.DB, matchID, userID, eventType string, payload models.JSONMap) error {
	if payload == nil {
		payload = models.JSONMap{}
	}
	ev := models.MatchEvent{
		MatchID: matchID,
		UserID:  userID,
		Type:    eventType,
		Payload: payload,
	}
	return tx.Create(&ev).Error
}

// EmitDrafts appends a handler's pending events in order.
func (s *EventService) EmitDrafts(tx *gorm.DB, matchID string, drafts []EventDraft) error {
	for _, d := range drafts {
		if err := s.Emit(tx, matchID, d.UserID, d.Type, d.Payload); err != nil {
			return err
		}
	}
	return nil
}

// FetchAfter returns up to limit events with id strictly greater than
// afterID, oldest first, plus the id of the last returned event (afterID
// when nothing new exists).
func (s *EventService) FetchAfter(matchID string, afterID uint64, limit int) ([]models.MatchEvent, uint64, error) {
	events := []models.MatchEvent{}
	if err := s.DB.Where("match_id = ? AND id > ?", matchID, afterID).
		Order("id ASC").
		Limit(clampLimit(limit)).
		Find(&events).Error; err != nil {
		return nil, 0, err
	}
	lastID := afterID
	if n := len(events); n > 0 {
		lastID = events[n-1].ID
	}
	return events, lastID, nil
}

// LastEventID returns the newest event id of a match (0 when the log is
// empty).
func (s *EventService) LastEventID(tx *gorm.DB, matchID string) uint64 {
	var ev models.MatchEvent
	if err := tx.Where("match_id = ?", matchID).Order("id DESC").First(&ev).Error; err != nil {
		return 0
	}
	return ev.ID
}

// EmitLobby appends one lobby event inside the caller's transaction.
func (s *EventService) EmitLobby(tx *gorm.DB, lobbyID, userID, eventType string, payload models.JSONMap) error {
	if payload == nil {
		payload = models.JSONMap{}
	}
	ev := models.LobbyEvent{
		LobbyID: lobbyID,
		UserID:  userID,
		Type:    eventType,
		Payload: payload,
	}
	return tx.Create(&ev).Error
}

// FetchLobbyAfter is the lobby-scoped counterpart of FetchAfter.
func (s *EventService) FetchLobbyAfter(lobbyID string, afterID uint64, limit int) ([]models.LobbyEvent, uint64, error) {
	events := []models.LobbyEvent{}
	if err := s.DB.Where("lobby_id = ? AND id > ?", lobbyID, afterID).
		Order("id ASC").
		Limit(clampLimit(limit)).
		Find(&events).Error; err != nil {
		return nil, 0, err
	}
	lastID := afterID
	if n := len(events); n > 0 {
		lastID = events[n-1].ID
	}
	return events, lastID, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultEventLimit
	}
	if limit > maxEventLimit {
		return maxEventLimit
	}
	return limit
}

// cursorParams reads the after_id / limit query pair used by every polling
// endpoint.
func cursorParams(c *fiber.Ctx) (uint64, int, error) {
	afterID := uint64(0)
	if raw := c.Query("after_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, fiber.NewError(fiber.StatusBadRequest, "invalid after_id")
		}
		afterID = v
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, fiber.NewError(fiber.StatusBadRequest, "invalid limit")
		}
		limit = v
	}
	return afterID, limit, nil
}
