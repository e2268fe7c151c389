package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Shivansh1251/DoodleSync/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

// Store is the persistence contract of the sync server: room documents and
// append-only chat history, keyed by room ID.
type Store interface {
	// GetDocument returns the last persisted document for a room, which may
	// be nil if the room was created without content. Returns ErrRoomNotFound
	// if the room has never been persisted.
	GetDocument(ctx context.Context, roomID string) (json.RawMessage, time.Time, error)

	// UpsertDocument creates or replaces the persisted document for a room
	// and bumps its last-modified timestamp.
	UpsertDocument(ctx context.Context, roomID string, doc json.RawMessage, authorID string) error

	// DeleteRoom removes the room and all of its chat messages. Deleting an
	// unknown room is a no-op.
	DeleteRoom(ctx context.Context, roomID string) error

	// AppendMessage appends a chat message to a room's history.
	AppendMessage(ctx context.Context, roomID string, msg domain.ChatMessage) error

	// RecentMessages returns up to limit messages for a room, newest first.
	RecentMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)

	// ListRooms returns up to limit room summaries, most recently modified
	// first.
	ListRooms(ctx context.Context, limit int) ([]domain.RoomSummary, error)
}
