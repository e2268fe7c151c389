package domain

import "time"

// UserInfo is the identity a client presents when joining a room.
type UserInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Member is an ephemeral room participant, keyed by connection ID. It exists
// from join until leave or disconnect and is never persisted.
type Member struct {
	ID       string    `json:"id"` // connection ID
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Activity kinds for transient per-member indicators.
const (
	ActivityDrawing = "drawing"
	ActivityWriting = "writing"
)
