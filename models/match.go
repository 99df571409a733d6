package models

import "time"

// Match is one head-to-head best-of-N match. The row is mutated only inside
// a locked transaction on its id.
type Match struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	Game         string     `gorm:"index;not null" json:"game"`
	Status       string     `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	BestOf       int        `gorm:"not null" json:"best_of"`
	CurrentRound int        `gorm:"not null;default:1" json:"current_round"`
	Rounds       StringList `gorm:"type:jsonb" json:"rounds"`
	State        MatchState `gorm:"type:jsonb" json:"state"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`

	Timestamps
}

// MatchPlayer is one of the exactly two participants of a match.
type MatchPlayer struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID      string     `gorm:"index;not null" json:"match_id"`
	UserID       string     `gorm:"index;not null" json:"user_id"`
	Name         string     `json:"name"`
	Seat         int        `gorm:"not null" json:"seat"` // 1 or 2
	Points       int        `gorm:"not null;default:0" json:"points"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`   // heartbeat
	LastActionAt *time.Time `json:"last_action_at,omitempty"` // gameplay action

	Timestamps
}

// MatchEvent is an append-only log entry. Rows are never updated; they are
// deleted only when the whole match is archived and purged. Ordering is by
// the auto-increment id.
type MatchEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID   string    `gorm:"index;not null" json:"match_id"`
	UserID    string    `gorm:"index" json:"user_id,omitempty"`
	Type      string    `gorm:"not null" json:"type"`
	Payload   JSONMap   `gorm:"type:jsonb" json:"payload"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ActiveMatchLock enforces the one-active-match-per-user invariant through
// the user_id primary key. Both rows are created atomically with the match
// and deleted only when it finishes.
type ActiveMatchLock struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	MatchID   string    `gorm:"index;not null" json:"match_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
