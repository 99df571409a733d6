package services

import (
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pvp-match-system/config"
	"pvp-match-system/models"
)

// MatchmakingService pairs queued users FIFO per (game, best_of).
type MatchmakingService struct {
	DB     *gorm.DB
	Cfg    *config.PvpConfig
	Events *EventService
}

func NewMatchmakingService(db *gorm.DB, cfg *config.PvpConfig, events *EventService) *MatchmakingService {
	return &MatchmakingService{DB: db, Cfg: cfg, Events: events}
}

// JoinQueue enqueues a user and attempts an immediate pairing. A user who
// already holds an active match lock gets a reconnect signal instead.
func (s *MatchmakingService) JoinQueue(userID, userName, game string, bestOf int) (fiber.Map, error) {
	if _, ok := s.Cfg.Game(game); !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown game: "+game)
	}
	if !s.Cfg.ValidBestOf(bestOf) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid best_of value")
	}

	var lock models.ActiveMatchLock
	if err := s.DB.Where("user_id = ?", userID).First(&lock).Error; err == nil {
		return fiber.Map{"state": "in_match", "match_id": lock.MatchID}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var existing models.QueueEntry
	if err := s.DB.Where("user_id = ?", userID).First(&existing).Error; err == nil {
		if existing.Game != game {
			return nil, fiber.NewError(fiber.StatusConflict, "already queued for another game")
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	entry := models.QueueEntry{
		UserID:   userID,
		UserName: userName,
		Game:     game,
		BestOf:   bestOf,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"best_of", "user_name"}),
	}).Create(&entry).Error; err != nil {
		return nil, err
	}

	match, err := s.TryMatch(game, bestOf)
	if err != nil {
		return nil, err
	}
	if match != nil {
		return fiber.Map{"state": "matched", "match_id": match.ID}, nil
	}
	return fiber.Map{"state": "queued"}, nil
}

// TryMatch pops the two oldest queue entries for (game, best_of) and builds
// a match from them. Entries whose owner somehow already holds a match lock
// are dropped defensively; pairing then retries on the next call.
func (s *MatchmakingService) TryMatch(game string, bestOf int) (*models.Match, error) {
	var match *models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var entries []models.QueueEntry
		if err := forUpdate(tx).
			Where("game = ? AND best_of = ?", game, bestOf).
			Order("created_at ASC").
			Limit(2).
			Find(&entries).Error; err != nil {
			return err
		}
		if len(entries) < 2 {
			return nil
		}

		for _, e := range entries {
			var lock models.ActiveMatchLock
			if err := tx.Where("user_id = ?", e.UserID).First(&lock).Error; err == nil {
				log.Printf("[Matchmaking] dropping stale queue entry for %s (already in match %s)", e.UserID, lock.MatchID)
				if err := tx.Where("user_id = ?", e.UserID).Delete(&models.QueueEntry{}).Error; err != nil {
					return err
				}
				return nil
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		m, err := createMatchTx(tx, s.Cfg, s.Events, game, bestOf, [2]matchSeat{
			{UserID: entries[0].UserID, Name: entries[0].UserName},
			{UserID: entries[1].UserID, Name: entries[1].UserName},
		}, "queue")
		if err != nil {
			return err
		}

		ids := []string{entries[0].UserID, entries[1].UserID}
		if err := tx.Where("user_id IN ?", ids).Delete(&models.QueueEntry{}).Error; err != nil {
			return err
		}
		match = m
		return nil
	})
	return match, err
}

// LeaveQueue removes the user's queue entry unconditionally.
func (s *MatchmakingService) LeaveQueue(userID, game string) error {
	return s.DB.Where("user_id = ?", userID).Delete(&models.QueueEntry{}).Error
}

// Resume reports whether the user has an active match to reconnect to.
func (s *MatchmakingService) Resume(userID string) (fiber.Map, error) {
	var lock models.ActiveMatchLock
	if err := s.DB.Where("user_id = ?", userID).First(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.Map{"state": "none"}, nil
		}
		return nil, err
	}
	return fiber.Map{"state": "in_match", "match_id": lock.MatchID}, nil
}

type matchSeat struct {
	UserID string
	Name   string
}

// createMatchTx builds the Match + 2 MatchPlayer + 2 ActiveMatchLock rows
// atomically. Both matchmaking and lobby start go through this path, so the
// one-active-match-per-user invariant holds regardless of entry point.
func createMatchTx(tx *gorm.DB, cfg *config.PvpConfig, events *EventService, game string, bestOf int, seats [2]matchSeat, origin string) (*models.Match, error) {
	gameCfg, ok := cfg.Game(game)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown game: "+game)
	}
	if len(gameCfg.RoundPool) < bestOf {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "round pool smaller than best_of for game "+game)
	}

	pool := append([]string(nil), gameCfg.RoundPool...)
	if gameCfg.ShuffleRounds {
		rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}
	rounds := models.StringList(pool[:bestOf])

	now := time.Now()
	m := models.Match{
		ID:           uuid.NewString(),
		Game:         game,
		Status:       models.MatchStatusActive,
		BestOf:       bestOf,
		CurrentRound: 1,
		Rounds:       rounds,
		State:        models.MatchState{Origin: origin},
		StartedAt:    now,
	}
	if err := tx.Create(&m).Error; err != nil {
		return nil, err
	}

	for i, seat := range seats {
		p := models.MatchPlayer{
			ID:           uuid.NewString(),
			MatchID:      m.ID,
			UserID:       seat.UserID,
			Name:         seat.Name,
			Seat:         i + 1,
			LastSeenAt:   &now,
			LastActionAt: &now,
		}
		if err := tx.Create(&p).Error; err != nil {
			return nil, err
		}
		lock := models.ActiveMatchLock{UserID: seat.UserID, MatchID: m.ID}
		if err := tx.Create(&lock).Error; err != nil {
			// unique user_id violation: someone raced into another match
			return nil, fiber.NewError(fiber.StatusConflict, "participant already has an active match")
		}
	}

	if err := events.Emit(tx, m.ID, "", "match_created", models.JSONMap{
		"game":    game,
		"best_of": bestOf,
		"rounds":  rounds,
		"origin":  origin,
	}); err != nil {
		return nil, err
	}
	return &m, nil
}

// JoinQueueHandler handles POST /pvp/games/:game/queue/join
func (s *MatchmakingService) JoinQueueHandler(c *fiber.Ctx) error {
	var req struct {
		BestOf int `json:"best_of"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON: "+err.Error())
	}
	out, err := s.JoinQueue(
		c.Locals("user_id").(string),
		userName(c),
		c.Params("game"),
		req.BestOf,
	)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// LeaveQueueHandler handles POST /pvp/games/:game/queue/leave
func (s *MatchmakingService) LeaveQueueHandler(c *fiber.Ctx) error {
	if err := s.LeaveQueue(c.Locals("user_id").(string), c.Params("game")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "left queue"})
}

// ResumeHandler handles GET /pvp/resume
func (s *MatchmakingService) ResumeHandler(c *fiber.Ctx) error {
	out, err := s.Resume(c.Locals("user_id").(string))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func userName(c *fiber.Ctx) string {
	if name, ok := c.Locals("user_name").(string); ok && name != "" {
		return name
	}
	return c.Locals("user_id").(string)
}
