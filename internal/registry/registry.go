package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Shivansh1251/DoodleSync/internal/repository"
	"github.com/Shivansh1251/DoodleSync/pkg/log"
)

// Config holds registry tuning knobs.
type Config struct {
	// QueueSize bounds the background persistence queue. When the queue is
	// full new writes are dropped with a warning; the cache stays
	// authoritative and a later update or save-room flush re-persists it.
	QueueSize int
	// WriteRetries is how many additional attempts a failed persistence
	// write gets before it is dropped.
	WriteRetries int
	// RetryBackoff is the pause between persistence attempts.
	RetryBackoff time.Duration
	// WriteTimeout bounds each individual persistence attempt.
	WriteTimeout time.Duration
}

// DefaultConfig returns the registry defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:    256,
		WriteRetries: 2,
		RetryBackoff: 250 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

type roomEntry struct {
	doc          json.RawMessage
	lastModified time.Time
}

type writeJob struct {
	roomID   string
	doc      json.RawMessage
	authorID string
}

// Registry is the single source of truth for the in-memory document snapshot
// of each active room. Updates are last-writer-wins: the cache is replaced
// unconditionally in server receipt order and mirrored to the store by a
// background worker that never blocks the broadcast path.
type Registry struct {
	store repository.Store
	cfg   Config

	mu    sync.RWMutex
	rooms map[string]*roomEntry

	sf singleflight.Group

	writes    chan writeJob
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    bool
}

// New creates a Registry and starts its persistence worker.
func New(store repository.Store, cfg Config) *Registry {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	r := &Registry{
		store:  store,
		cfg:    cfg,
		rooms:  make(map[string]*roomEntry),
		writes: make(chan writeJob, cfg.QueueSize),
	}

	r.wg.Add(1)
	go r.persistLoop()

	return r
}

// EnsureLoaded returns the room's cached document, loading it from the store
// on first access. Concurrent calls for the same room share a single fetch.
// A room with no persisted state yields a nil document.
func (r *Registry) EnsureLoaded(ctx context.Context, roomID string) (json.RawMessage, error) {
	r.mu.RLock()
	entry, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return entry.doc, nil
	}

	doc, err, _ := r.sf.Do(roomID, func() (interface{}, error) {
		// Re-check: an update may have landed while we waited on the flight.
		r.mu.RLock()
		entry, ok := r.rooms[roomID]
		r.mu.RUnlock()
		if ok {
			return entry.doc, nil
		}

		doc, lastModified, err := r.store.GetDocument(ctx, roomID)
		if err != nil {
			if !errors.Is(err, repository.ErrRoomNotFound) {
				return nil, err
			}
			doc, lastModified = nil, time.Time{}
		}

		r.mu.Lock()
		// An update that raced the fetch wins over the persisted state.
		if entry, ok := r.rooms[roomID]; ok {
			doc = entry.doc
		} else {
			r.rooms[roomID] = &roomEntry{doc: doc, lastModified: lastModified}
		}
		r.mu.Unlock()

		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return doc.(json.RawMessage), nil
}

// GetSnapshot returns the current cached document, nil if the room is not
// cached or has never had content.
func (r *Registry) GetSnapshot(roomID string) json.RawMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.rooms[roomID]; ok {
		return entry.doc
	}
	return nil
}

// LastModified returns when the cached document last changed.
func (r *Registry) LastModified(roomID string) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.rooms[roomID]; ok {
		return entry.lastModified
	}
	return time.Time{}
}

// ApplyUpdate replaces the cached snapshot unconditionally and schedules an
// asynchronous durable write. It never blocks on persistence.
func (r *Registry) ApplyUpdate(roomID string, doc json.RawMessage, authorID string) {
	now := time.Now().UTC()

	dropped := false

	r.mu.Lock()
	if entry, ok := r.rooms[roomID]; ok {
		entry.doc = doc
		entry.lastModified = now
	} else {
		r.rooms[roomID] = &roomEntry{doc: doc, lastModified: now}
	}
	// The send stays under the lock: Close flips closed while holding it,
	// so we can never race against close(r.writes).
	if !r.closed {
		select {
		case r.writes <- writeJob{roomID: roomID, doc: doc, authorID: authorID}:
		default:
			dropped = true
		}
	}
	r.mu.Unlock()

	if dropped {
		log.L().Warn().Str(log.FieldRoomID, roomID).Msg("persistence queue full, dropping write")
	}
}

// Flush synchronously persists the current cached document for a room. Used
// by save-room to force immediate durability. Unknown rooms are a no-op.
func (r *Registry) Flush(ctx context.Context, roomID string) error {
	r.mu.RLock()
	entry, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok || entry.doc == nil {
		return nil
	}
	return r.store.UpsertDocument(ctx, roomID, entry.doc, "")
}

// DeleteRoom evicts the cached snapshot and deletes the persisted document
// and all chat history for the room.
func (r *Registry) DeleteRoom(ctx context.Context, roomID string) error {
	r.mu.Lock()
	delete(r.rooms, roomID)
	r.mu.Unlock()
	r.sf.Forget(roomID)

	return r.store.DeleteRoom(ctx, roomID)
}

// Evict drops a room from the cache without touching persisted state.
func (r *Registry) Evict(roomID string) {
	r.mu.Lock()
	delete(r.rooms, roomID)
	r.mu.Unlock()
	r.sf.Forget(roomID)
}

// Close stops accepting writes and drains the persistence queue.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.writes)
		r.wg.Wait()
	})
}

func (r *Registry) persistLoop() {
	defer r.wg.Done()

	for job := range r.writes {
		r.persist(job)
	}
}

// persist attempts a durable write with bounded retry. Failures are logged
// and dropped: broadcast already happened against the in-memory snapshot and
// a later update will re-attempt persistence.
func (r *Registry) persist(job writeJob) {
	l := log.L()

	var err error
	for attempt := 0; attempt <= r.cfg.WriteRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(r.cfg.RetryBackoff)
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
		err = r.store.UpsertDocument(ctx, job.roomID, job.doc, job.authorID)
		cancel()
		if err == nil {
			return
		}

		l.Warn().Err(err).
			Str(log.FieldRoomID, job.roomID).
			Int("attempt", attempt+1).
			Msg("persistence write failed")
	}

	l.Error().Err(err).Str(log.FieldRoomID, job.roomID).Msg("dropping document write after retries")
}
