package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Shivansh1251/DoodleSync/internal/cache"
	"github.com/Shivansh1251/DoodleSync/internal/domain"
	"github.com/Shivansh1251/DoodleSync/internal/repository"
	"github.com/Shivansh1251/DoodleSync/pkg/log"
)

type historyService struct {
	store    repository.Store
	msgCache cache.MessageCache // may be nil
	cacheTTL time.Duration
	sf       singleflight.Group
}

// NewHistoryService builds a history service. msgCache may be nil, in which
// case every read goes to the store.
func NewHistoryService(store repository.Store, msgCache cache.MessageCache, cacheTTL time.Duration) HistoryService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &historyService{
		store:    store,
		msgCache: msgCache,
		cacheTTL: cacheTTL,
	}
}

// GetRecent returns the most recent messages of a room in chronological
// order. Concurrent lookups for the same room and limit collapse into one
// store query.
func (s *historyService) GetRecent(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	if s.msgCache != nil {
		key := s.msgCache.BuildKey(roomID, limit)
		messages, err := s.msgCache.Get(ctx, key)
		if err == nil {
			return messages, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("chat cache read failed")
		}
	}

	sfKey := fmt.Sprintf("%s:%d", roomID, limit)
	v, err, _ := s.sf.Do(sfKey, func() (interface{}, error) {
		messages, err := s.store.RecentMessages(ctx, roomID, limit)
		if err != nil {
			return nil, err
		}

		// The store returns newest first; clients render oldest first.
		reverse(messages)

		if s.msgCache != nil {
			key := s.msgCache.BuildKey(roomID, limit)
			if err := s.msgCache.Set(ctx, key, messages, s.cacheTTL); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("chat cache write failed")
			}
		}
		return messages, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ChatMessage), nil
}

func reverse(messages []domain.ChatMessage) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
