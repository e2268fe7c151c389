package domain

import (
	"encoding/json"
	"time"
)

// WebSocket event types from client.
const (
	EventJoinRoom    = "join-room"
	EventDocUpdate   = "doc-update"
	EventChatMessage = "chat-message"
	EventActivity    = "activity"
	EventCursorMove  = "cursor-move"
	EventLeaveRoom   = "leave-room"
	EventSaveRoom    = "save-room"
)

// WebSocket event types to client.
const (
	EventDocInit        = "doc-init"
	EventChatHistory    = "chat-history"
	EventPresenceUpdate = "presence-update"
	EventUserActivity   = "user-activity"
	EventCursorUpdate   = "cursor-update"
	EventError          = "error"
)

// Presence update kinds.
const (
	PresenceJoin  = "join"
	PresenceLeave = "leave"
)

// Error codes.
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Envelope is the base structure of every WebSocket event; Type selects the
// concrete payload.
type Envelope struct {
	Type string `json:"type"`
}

// Client -> Server events

type JoinRoomEvent struct {
	Type   string    `json:"type"`
	RoomID string    `json:"roomId"`
	User   *UserInfo `json:"user,omitempty"`
}

type DocUpdateEvent struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId"`
	Document json.RawMessage `json:"document"`
}

type ChatMessageEvent struct {
	Type    string       `json:"type"`
	RoomID  string       `json:"roomId"`
	Message *ChatMessage `json:"message"`
}

type ActivityEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Kind   string `json:"kind"`
	Active bool   `json:"active"`
}

type CursorMoveEvent struct {
	Type   string  `json:"type"`
	RoomID string  `json:"roomId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color,omitempty"`
}

type LeaveRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type SaveRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// Server -> Client events

type DocInitEvent struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId"`
	Document json.RawMessage `json:"document"`
}

type ChatHistoryEvent struct {
	Type     string        `json:"type"`
	RoomID   string        `json:"roomId"`
	Messages []ChatMessage `json:"messages"`
}

type ChatMessageOut struct {
	Type    string      `json:"type"`
	RoomID  string      `json:"roomId"`
	Message ChatMessage `json:"message"`
}

type PresenceUpdateEvent struct {
	Type      string   `json:"type"`
	RoomID    string   `json:"roomId"`
	Update    string   `json:"update"` // "join" or "leave"
	User      UserInfo `json:"user"`
	RoomUsers []Member `json:"roomUsers,omitempty"`
}

type UserActivityEvent struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Kind      string    `json:"kind"`
	Active    bool      `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}

type CursorUpdateEvent struct {
	Type       string  `json:"type"`
	RoomID     string  `json:"roomId"`
	UserID     string  `json:"userId"`
	UserName   string  `json:"userName"`
	UserAvatar string  `json:"userAvatar,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Color      string  `json:"color"`
	Timestamp  int64   `json:"timestamp"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorEvent(code, message string) *ErrorEvent {
	return &ErrorEvent{
		Type:    EventError,
		Code:    code,
		Message: message,
	}
}
