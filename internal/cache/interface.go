package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Shivansh1251/DoodleSync/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// MessageCache caches recent chat history pages so repeated room joins do
// not hit the database. Entries are invalidated whenever a room's history
// changes.
type MessageCache interface {
	Get(ctx context.Context, key string) ([]domain.ChatMessage, error)
	Set(ctx context.Context, key string, messages []domain.ChatMessage, ttl time.Duration) error
	Invalidate(ctx context.Context, roomID string) error
	BuildKey(roomID string, limit int) string
	Close() error
}
