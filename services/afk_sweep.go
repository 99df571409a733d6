package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"

	"pvp-match-system/config"
	"pvp-match-system/models"
)

// AfkSweepService periodically forfeits absent or idle participants.
// Presence (heartbeat) is checked for both players; gameplay idleness only
// applies to the participant on turn in turn-based rounds.
type AfkSweepService struct {
	DB        *gorm.DB
	Cfg       *config.PvpConfig
	Lifecycle *MatchLifecycleService
}

func NewAfkSweepService(db *gorm.DB, cfg *config.PvpConfig, lifecycle *MatchLifecycleService) *AfkSweepService {
	return &AfkSweepService{DB: db, Cfg: cfg, Lifecycle: lifecycle}
}

// StartScheduler runs the sweep once per minute.
func (s *AfkSweepService) StartScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			s.Sweep(time.Now())
		}),
	)
}

// Sweep processes every active match independently; one failing match does
// not stop the pass.
func (s *AfkSweepService) Sweep(now time.Time) {
	var ids []string
	if err := s.DB.Model(&models.Match{}).
		Where("status = ?", models.MatchStatusActive).
		Pluck("id", &ids).Error; err != nil {
		log.Printf("[AfkSweep] DB error: %v", err)
		return
	}

	for _, id := range ids {
		if err := s.sweepMatch(id, now); err != nil {
			log.Printf("[AfkSweep] Failed to sweep match %s: %v", id, err)
		}
	}
}

// sweepMatch forfeits at most one participant per pass, under the match's
// lock so it can never race a live client action.
func (s *AfkSweepService) sweepMatch(matchID string, now time.Time) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatch(tx, matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchStatusActive {
			return nil
		}
		players, err := ParticipantService{}.Participants(tx, m.ID)
		if err != nil {
			return err
		}

		presenceCutoff := now.Add(-s.Cfg.AFKTimeout())
		idleCutoff := now.Add(-s.Cfg.IdleTimeout())

		turnBased := m.State.RoundType == models.RoundDraft || m.State.RoundType == models.RoundWhois
		turnUserID := m.State.TurnUserID

		for _, p := range players {
			if p.LastSeenAt == nil || p.LastSeenAt.Before(presenceCutoff) {
				log.Printf("[AfkSweep] forfeiting %s in match %s (absent)", p.UserID, m.ID)
				return s.Lifecycle.forfeitTx(tx, m, p.UserID, models.EndedReasonAFK)
			}
			idleApplies := !turnBased || p.UserID == turnUserID
			if idleApplies && (p.LastActionAt == nil || p.LastActionAt.Before(idleCutoff)) {
				log.Printf("[AfkSweep] forfeiting %s in match %s (idle)", p.UserID, m.ID)
				return s.Lifecycle.forfeitTx(tx, m, p.UserID, models.EndedReasonAFK)
			}
		}
		return nil
	})
}
