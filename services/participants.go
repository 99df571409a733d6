package services

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pvp-match-system/models"
)

// ParticipantService resolves and validates the two participants of a
// match.
type ParticipantService struct{}

// Participants loads both player rows of a match, ordered by seat. Any
// participant count other than two is a broken invariant.
func (ParticipantService) Participants(tx *gorm.DB, matchID string) ([]models.MatchPlayer, error) {
	var players []models.MatchPlayer
	if err := tx.Where("match_id = ?", matchID).Order("seat ASC").Find(&players).Error; err != nil {
		return nil, err
	}
	if len(players) != 2 {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "match does not have exactly two participants")
	}
	return players, nil
}

// Require returns the player row for userID or a Forbidden error.
func (ParticipantService) Require(players []models.MatchPlayer, userID string) (*models.MatchPlayer, error) {
	for i := range players {
		if players[i].UserID == userID {
			return &players[i], nil
		}
	}
	return nil, fiber.NewError(fiber.StatusForbidden, "you are not a participant of this match")
}

// Opponent returns the other participant.
func (ParticipantService) Opponent(players []models.MatchPlayer, userID string) (*models.MatchPlayer, error) {
	for i := range players {
		if players[i].UserID != userID {
			return &players[i], nil
		}
	}
	return nil, fiber.NewError(fiber.StatusInternalServerError, "no opponent found")
}

// UserIDs returns both participant ids, seat order.
func (ParticipantService) UserIDs(players []models.MatchPlayer) []string {
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.UserID
	}
	return ids
}
