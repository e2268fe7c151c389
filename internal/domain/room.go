package domain

import (
	"encoding/json"
	"time"
)

// Room is a named collaboration session with one shared document and chat
// thread. The document is an opaque structured value owned by the drawing
// client; the server stores and relays it without interpretation.
type Room struct {
	RoomID       string          `json:"roomId"`
	Document     json.RawMessage `json:"document"`
	LastModified time.Time       `json:"lastModified"`
	CreatedBy    string          `json:"createdBy"`
}

// RoomSummary is the listing projection of a room.
type RoomSummary struct {
	RoomID       string    `json:"roomId"`
	LastModified time.Time `json:"lastModified"`
	CreatedBy    string    `json:"createdBy"`
}
