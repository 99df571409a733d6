package models

import "time"

// Lobby status values.
const (
	LobbyStatusOpen    = "open"
	LobbyStatusStarted = "started"
	LobbyStatusClosed  = "closed"
)

// Lobby is a private invite-code match setup owned by its host.
type Lobby struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"`
	Game        string `gorm:"index;not null" json:"game"`
	BestOf      int    `gorm:"not null" json:"best_of"`
	Status      string `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	HostUserID  string `gorm:"index;not null" json:"host_user_id"`
	HostName    string `json:"host_name"`
	GuestUserID string `gorm:"index" json:"guest_user_id,omitempty"`
	GuestName   string `json:"guest_name,omitempty"`
	MatchID     string `json:"match_id,omitempty"` // set when started

	Timestamps
}

// LobbyEvent is the lobby-scoped append-only log, polled the same way as
// match events.
type LobbyEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	LobbyID   string    `gorm:"index;not null" json:"lobby_id"`
	UserID    string    `gorm:"index" json:"user_id,omitempty"`
	Type      string    `gorm:"not null" json:"type"`
	Payload   JSONMap   `gorm:"type:jsonb" json:"payload"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
