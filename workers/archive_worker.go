package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"pvp-match-system/models"
	"pvp-match-system/utils"
)

const archiveBatchSize = 20

// MatchArchiveWorker exports finished matches to object storage and purges
// their rows. This is the only path that ever deletes match events.
type MatchArchiveWorker struct {
	DB        *gorm.DB
	Storage   utils.ObjectStorage
	Retention time.Duration
}

func NewMatchArchiveWorker(db *gorm.DB, storage utils.ObjectStorage, retention time.Duration) *MatchArchiveWorker {
	return &MatchArchiveWorker{DB: db, Storage: storage, Retention: retention}
}

// MatchArchive is the JSON document written per match.
type MatchArchive struct {
	Match   models.Match        `json:"match"`
	Players []models.MatchPlayer `json:"players"`
	Events  []models.MatchEvent  `json:"events"`
}

// PollFinishedMatches runs the worker until ctx is cancelled.
func PollFinishedMatches(ctx context.Context, w *MatchArchiveWorker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("Starting match archive worker...")
	for {
		select {
		case <-ctx.Done():
			log.Println("Match archive worker stopping")
			return
		case <-ticker.C:
			w.Run(ctx)
		}
	}
}

// Run archives one batch of expired finished matches. A failure on one
// match is logged and does not stop the batch.
func (w *MatchArchiveWorker) Run(ctx context.Context) {
	cutoff := time.Now().Add(-w.Retention)
	var matches []models.Match
	if err := w.DB.Where("status = ? AND finished_at < ?", models.MatchStatusFinished, cutoff).
		Limit(archiveBatchSize).
		Find(&matches).Error; err != nil {
		log.Printf("[Archive] DB error: %v", err)
		return
	}

	for _, m := range matches {
		if err := w.archiveMatch(ctx, m); err != nil {
			log.Printf("[Archive] Failed to archive match %s: %v", m.ID, err)
		}
	}
}

func (w *MatchArchiveWorker) archiveMatch(ctx context.Context, m models.Match) error {
	archive := MatchArchive{Match: m}
	if err := w.DB.Where("match_id = ?", m.ID).Order("seat ASC").Find(&archive.Players).Error; err != nil {
		return err
	}
	if err := w.DB.Where("match_id = ?", m.ID).Order("id ASC").Find(&archive.Events).Error; err != nil {
		return err
	}

	key := fmt.Sprintf("matches/%s/match-%s.json", m.StartedAt.Format("2006/01"), m.ID)
	if err := w.Storage.PutJSON(ctx, key, archive); err != nil {
		return err
	}

	// upload succeeded; purge the rows
	return w.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("match_id = ?", m.ID).Delete(&models.MatchEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("match_id = ?", m.ID).Delete(&models.MatchPlayer{}).Error; err != nil {
			return err
		}
		// stray locks should not exist for a finished match, but the purge
		// is the last chance to drop them
		if err := tx.Where("match_id = ?", m.ID).Delete(&models.ActiveMatchLock{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("id = ?", m.ID).Delete(&models.Match{}).Error; err != nil {
			return err
		}
		log.Printf("✅ Archived match %s to %s", m.ID, key)
		return nil
	})
}
