package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Shivansh1251/DoodleSync/internal/domain"
	"github.com/Shivansh1251/DoodleSync/pkg/database"
	"github.com/Shivansh1251/DoodleSync/pkg/log"
)

// GormStore implements Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-based store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetDocument retrieves the persisted document for a room.
func (s *GormStore) GetDocument(ctx context.Context, roomID string) (json.RawMessage, time.Time, error) {
	l := log.Ctx(ctx)

	var model domain.RoomModel
	result := s.db.WithContext(ctx).First(&model, "room_id = ?", roomID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, time.Time{}, ErrRoomNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to get room document")
		return nil, time.Time{}, result.Error
	}
	room := model.ToDomain()
	return room.Document, room.LastModified, nil
}

// UpsertDocument creates or replaces the persisted document for a room.
func (s *GormStore) UpsertDocument(ctx context.Context, roomID string, doc json.RawMessage, authorID string) error {
	l := log.Ctx(ctx)

	if authorID == "" {
		authorID = "Anonymous"
	}

	model := domain.RoomModel{
		RoomID:       roomID,
		Document:     database.Document(doc),
		LastModified: time.Now().UTC(),
		CreatedBy:    authorID,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"document", "last_modified", "created_by"}),
	}).Create(&model)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to upsert room document")
		return result.Error
	}

	l.Debug().Str(log.FieldRoomID, roomID).Msg("room document persisted")
	return nil
}

// DeleteRoom removes the room row and cascades to its chat messages.
func (s *GormStore) DeleteRoom(ctx context.Context, roomID string) error {
	l := log.Ctx(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.RoomModel{}, "room_id = ?", roomID).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.ChatMessageModel{}, "room_id = ?", roomID).Error
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to delete room")
		return err
	}

	l.Debug().Str(log.FieldRoomID, roomID).Msg("room and chat history deleted")
	return nil
}

// AppendMessage appends a chat message to a room's history.
func (s *GormStore) AppendMessage(ctx context.Context, roomID string, msg domain.ChatMessage) error {
	l := log.Ctx(ctx)

	model := domain.ChatMessageToModel(roomID, msg)
	if result := s.db.WithContext(ctx).Create(model); result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to append chat message")
		return result.Error
	}
	return nil
}

// RecentMessages returns up to limit messages for a room, newest first.
func (s *GormStore) RecentMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	var models []domain.ChatMessageModel
	result := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to load chat messages")
		return nil, result.Error
	}

	messages := make([]domain.ChatMessage, len(models))
	for i, model := range models {
		messages[i] = model.ToDomain()
	}
	return messages, nil
}

// ListRooms returns up to limit room summaries, most recently modified first.
func (s *GormStore) ListRooms(ctx context.Context, limit int) ([]domain.RoomSummary, error) {
	l := log.Ctx(ctx)

	var models []domain.RoomModel
	result := s.db.WithContext(ctx).
		Select("room_id", "last_modified", "created_by").
		Order("last_modified DESC").
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Msg("failed to list rooms")
		return nil, result.Error
	}

	rooms := make([]domain.RoomSummary, len(models))
	for i, model := range models {
		rooms[i] = domain.RoomSummary{
			RoomID:       model.RoomID,
			LastModified: model.LastModified,
			CreatedBy:    model.CreatedBy,
		}
	}
	return rooms, nil
}
