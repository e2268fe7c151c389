package service

import (
	"context"
	"encoding/json"

	"github.com/Shivansh1251/DoodleSync/internal/domain"
	"github.com/Shivansh1251/DoodleSync/internal/hub"
)

// SyncService handles the per-connection event surface: room membership,
// document updates, chat, and transient activity broadcasts.
type SyncService interface {
	HandleJoinRoom(ctx context.Context, c *hub.Client, roomID string, user *domain.UserInfo) error
	HandleDocUpdate(ctx context.Context, c *hub.Client, roomID string, doc json.RawMessage) error
	HandleChatMessage(ctx context.Context, c *hub.Client, roomID string, msg *domain.ChatMessage) error
	HandleActivity(ctx context.Context, c *hub.Client, roomID, kind string, active bool) error
	HandleCursorMove(ctx context.Context, c *hub.Client, ev domain.CursorMoveEvent) error
	HandleLeaveRoom(ctx context.Context, c *hub.Client, roomID string) error
	HandleSaveRoom(ctx context.Context, c *hub.Client, roomID string) error
	HandleDisconnect(ctx context.Context, c *hub.Client) error
}

// HistoryService serves recent chat history in chronological order.
type HistoryService interface {
	GetRecent(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)
}

// RoomService serves the HTTP collaborator endpoints.
type RoomService interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, bool, error)
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)
	DeleteRoom(ctx context.Context, roomID string) error
}
