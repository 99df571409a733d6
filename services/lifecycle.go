package services

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pvp-match-system/models"
)

// MatchLifecycleService owns the terminal transition of a match: forfeits
// (leave or AFK) and points-based completion. It releases both
// ActiveMatchLock rows so the participants can queue again.
type MatchLifecycleService struct {
	DB     *gorm.DB
	Events *EventService

	participants ParticipantService
}

func NewMatchLifecycleService(db *gorm.DB, events *EventService) *MatchLifecycleService {
	return &MatchLifecycleService{DB: db, Events: events}
}

// Forfeit ends an active match against userID; the opponent wins. Reason is
// "leave" or "afk".
func (s *MatchLifecycleService) Forfeit(matchID, userID, reason string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, matchID)
		if err != nil {
			return err
		}
		return s.forfeitTx(tx, m, userID, reason)
	})
}

// forfeitTx runs the forfeit inside an already-locked transaction.
func (s *MatchLifecycleService) forfeitTx(tx *gorm.DB, m *models.Match, userID, reason string) error {
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
	winner, err := s.participants.Opponent(players, userID)
	if err != nil {
		return err
	}

	if err := s.Events.Emit(tx, m.ID, userID, "player_forfeited", models.JSONMap{
		"reason": reason,
	}); err != nil {
		return err
	}
	return s.finishTx(tx, m, winner.UserID, reason)
}

// finishTx applies the terminal transition: status, winner, ended reason,
// lock release and the match_finished event. The caller's transaction is
// holding the match lock.
func (s *MatchLifecycleService) finishTx(tx *gorm.DB, m *models.Match, winnerUserID, reason string) error {
	now := time.Now()
	m.Status = models.MatchStatusFinished
	m.FinishedAt = &now
	m.State.EndedReason = reason
	m.State.WinnerUserID = winnerUserID
	if err := tx.Save(m).Error; err != nil {
		return err
	}

	if err := tx.Where("match_id = ?", m.ID).Delete(&models.ActiveMatchLock{}).Error; err != nil {
		return err
	}

	return s.Events.Emit(tx, m.ID, "", "match_finished", models.JSONMap{
		"winner_user_id": winnerUserID,
		"ended_reason":   reason,
	})
}

// LeaveMatchHandler handles POST /pvp/matches/:id/leave
func (s *MatchLifecycleService) LeaveMatchHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	if err := s.Forfeit(c.Params("id"), userID, models.EndedReasonLeave); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "match forfeited"})
}
