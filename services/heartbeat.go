package services

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pvp-match-system/models"
)

// HeartbeatService records presence. A heartbeat only moves last_seen_at;
// gameplay idleness is tracked separately through last_action_at.
type HeartbeatService struct {
	DB     *gorm.DB
	Engine *MatchEngine

	participants ParticipantService
}

func NewHeartbeatService(db *gorm.DB, engine *MatchEngine) *HeartbeatService {
	return &HeartbeatService{DB: db, Engine: engine}
}

func (s *HeartbeatService) Heartbeat(matchID, userID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchStatusActive {
			return fiber.NewError(fiber.StatusConflict, "match is not active")
		}
		players, err := s.participants.Participants(tx, m.ID)
		if err != nil {
			return err
		}
		if _, err := s.participants.Require(players, userID); err != nil {
			return err
		}
		return tx.Model(&models.MatchPlayer{}).
			Where("match_id = ? AND user_id = ?", m.ID, userID).
			Update("last_seen_at", time.Now()).Error
	})
}

// HeartbeatHandler handles POST /pvp/matches/:id/heartbeat
func (s *HeartbeatService) HeartbeatHandler(c *fiber.Ctx) error {
	matchID := c.Params("id")
	userID := c.Locals("user_id").(string)
	if err := s.Heartbeat(matchID, userID); err != nil {
		return err
	}
	if c.Query("include_state") == "1" {
		state, err := s.Engine.BuildMatchPayload(matchID, userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"ok": true, "state": state})
	}
	return c.JSON(fiber.Map{"ok": true})
}
