package models

import "time"

// QueueEntry is a user waiting in the matchmaking queue. One row per user;
// created_at is the FIFO pairing key.
type QueueEntry struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	UserName  string    `json:"user_name"`
	Game      string    `gorm:"index;not null" json:"game"`
	BestOf    int       `gorm:"not null" json:"best_of"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
