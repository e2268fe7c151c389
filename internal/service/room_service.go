package service

import (
	"context"
	"errors"

	"github.com/Shivansh1251/DoodleSync/internal/cache"
	"github.com/Shivansh1251/DoodleSync/internal/domain"
	"github.com/Shivansh1251/DoodleSync/internal/registry"
	"github.com/Shivansh1251/DoodleSync/internal/repository"
	"github.com/Shivansh1251/DoodleSync/pkg/log"
)

type roomService struct {
	store    repository.Store
	registry *registry.Registry
	msgCache cache.MessageCache // may be nil
	listCap  int
}

// NewRoomService builds the room query service backing the HTTP endpoints.
func NewRoomService(store repository.Store, reg *registry.Registry, msgCache cache.MessageCache, listCap int) RoomService {
	if listCap <= 0 {
		listCap = 20
	}
	return &roomService{
		store:    store,
		registry: reg,
		msgCache: msgCache,
		listCap:  listCap,
	}
}

// GetRoom returns the room document, preferring the live in-memory state over
// the persisted one so callers see writes that have not flushed yet. The
// second return value reports whether the room exists at all.
func (s *roomService) GetRoom(ctx context.Context, roomID string) (*domain.Room, bool, error) {
	if doc := s.registry.GetSnapshot(roomID); doc != nil {
		return &domain.Room{
			RoomID:       roomID,
			Document:     doc,
			LastModified: s.registry.LastModified(roomID),
		}, true, nil
	}

	doc, lastModified, err := s.store.GetDocument(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &domain.Room{
		RoomID:       roomID,
		Document:     doc,
		LastModified: lastModified,
	}, true, nil
}

// ListRooms returns the most recently modified rooms.
func (s *roomService) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	return s.store.ListRooms(ctx, s.listCap)
}

// DeleteRoom removes the room from the live registry and the store, and
// drops any cached chat history.
func (s *roomService) DeleteRoom(ctx context.Context, roomID string) error {
	if err := s.registry.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	if s.msgCache != nil {
		if err := s.msgCache.Invalidate(ctx, roomID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to invalidate chat cache")
		}
	}
	return nil
}
