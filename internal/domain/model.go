package domain

import (
	"encoding/json"
	"time"

	"github.com/Shivansh1251/DoodleSync/pkg/database"
)

// RoomModel is the GORM model for the rooms table.
type RoomModel struct {
	RoomID       string            `gorm:"type:varchar(128);primaryKey"`
	Document     database.Document `gorm:"type:text"`
	LastModified time.Time         `gorm:"index;not null"`
	CreatedBy    string            `gorm:"type:varchar(128);not null;default:'Anonymous'"`
	CreatedAt    time.Time         `gorm:"autoCreateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts RoomModel to a domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		RoomID:       m.RoomID,
		Document:     json.RawMessage(m.Document),
		LastModified: m.LastModified,
		CreatedBy:    m.CreatedBy,
	}
}

// ChatMessageModel is the GORM model for the chat_messages table.
type ChatMessageModel struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	RoomID     string    `gorm:"type:varchar(128);index:idx_room_timestamp;not null"`
	MessageID  string    `gorm:"type:varchar(64);not null"`
	AuthorID   string    `gorm:"type:varchar(128)"`
	AuthorName string    `gorm:"type:varchar(128)"`
	Text       string    `gorm:"type:text;not null"`
	Timestamp  time.Time `gorm:"index:idx_room_timestamp;not null"`
	IsSystem   bool      `gorm:"not null;default:false"`
}

// TableName specifies the table name for ChatMessageModel.
func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts ChatMessageModel to a domain ChatMessage.
func (m *ChatMessageModel) ToDomain() ChatMessage {
	return ChatMessage{
		ID:        m.MessageID,
		Author:    Author{ID: m.AuthorID, Name: m.AuthorName},
		Text:      m.Text,
		Timestamp: m.Timestamp,
		IsSystem:  m.IsSystem,
	}
}

// ChatMessageToModel converts a domain ChatMessage to its GORM model.
func ChatMessageToModel(roomID string, msg ChatMessage) *ChatMessageModel {
	return &ChatMessageModel{
		RoomID:     roomID,
		MessageID:  msg.ID,
		AuthorID:   msg.Author.ID,
		AuthorName: msg.Author.Name,
		Text:       msg.Text,
		Timestamp:  msg.Timestamp,
		IsSystem:   msg.IsSystem,
	}
}
