package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/Shivansh1251/DoodleSync/internal/domain"
	"github.com/Shivansh1251/DoodleSync/pkg/log"
)

// ExpiredFunc is called when a member's activity flag expires without an
// explicit inactive event, so the room can be told the member went idle.
type ExpiredFunc func(roomID string, member domain.Member, kind string)

// Tracker records which members are currently in which room along with their
// transient activity flags. Membership is in-memory only; a disconnected
// connection is removed exactly once and never lingers in a member set.
type Tracker struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*domain.Member // roomID -> connID -> member
	timers map[timerKey]*time.Timer
	closed bool

	activityWindow time.Duration
	onExpired      ExpiredFunc
}

type timerKey struct {
	roomID string
	connID string
	kind   string
}

// NewTracker creates a Tracker whose activity flags auto-expire after
// activityWindow if the client never sends an explicit inactive event.
func NewTracker(activityWindow time.Duration) *Tracker {
	return &Tracker{
		rooms:          make(map[string]map[string]*domain.Member),
		timers:         make(map[timerKey]*time.Timer),
		activityWindow: activityWindow,
	}
}

// OnActivityExpired registers the expiry callback. Set once during wiring,
// before connections are served.
func (t *Tracker) OnActivityExpired(fn ExpiredFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExpired = fn
}

// Join adds a member to a room's member set and returns the room's current
// member list. Joining the same room twice with the same connection is an
// upsert, never a duplicate entry.
func (t *Tracker) Join(roomID string, member domain.Member) []domain.Member {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		room = make(map[string]*domain.Member)
		t.rooms[roomID] = room
	}

	if existing, ok := room[member.ID]; ok {
		existing.UserID = member.UserID
		existing.Name = member.Name
		existing.Avatar = member.Avatar
	} else {
		m := member
		if m.JoinedAt.IsZero() {
			m.JoinedAt = time.Now().UTC()
		}
		room[member.ID] = &m
	}

	return membersLocked(room)
}

// Leave removes a member from a room. It reports whether the member was
// present, so callers can make leave side effects exactly-once even when an
// explicit leave-room races a transport close.
func (t *Tracker) Leave(roomID, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := room[connID]; !ok {
		return false
	}

	delete(room, connID)
	if len(room) == 0 {
		delete(t.rooms, roomID)
	}
	t.stopTimersLocked(roomID, connID)
	return true
}

// LeaveAll removes a connection from every room it is in and returns the
// rooms it left. Used on disconnect so no member set retains a fully
// disconnected connection.
func (t *Tracker) LeaveAll(connID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var left []string
	for roomID, room := range t.rooms {
		if _, ok := room[connID]; !ok {
			continue
		}
		delete(room, connID)
		if len(room) == 0 {
			delete(t.rooms, roomID)
		}
		t.stopTimersLocked(roomID, connID)
		left = append(left, roomID)
	}
	return left
}

// ListMembers returns a snapshot of the room's member list, oldest join
// first.
func (t *Tracker) ListMembers(roomID string) []domain.Member {
	t.mu.RLock()
	defer t.mu.RUnlock()

	room, ok := t.rooms[roomID]
	if !ok {
		return nil
	}
	return membersLocked(room)
}

// RoomCount returns how many members are in a room.
func (t *Tracker) RoomCount(roomID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms[roomID])
}

// SetActivity records a transient activity flag for a (room, member) pair.
// An active flag arms (or re-arms) an expiry timer; when it fires the expiry
// callback runs so the room can be told the member went idle. An explicit
// inactive event cancels the timer.
func (t *Tracker) SetActivity(roomID, connID, kind string, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	key := timerKey{roomID: roomID, connID: connID, kind: kind}
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}

	if !active {
		return
	}

	room, ok := t.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := room[connID]; !ok {
		return
	}

	t.timers[key] = time.AfterFunc(t.activityWindow, func() {
		t.expire(key)
	})
}

func (t *Tracker) expire(key timerKey) {
	t.mu.Lock()
	if _, ok := t.timers[key]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)

	var member *domain.Member
	if room, ok := t.rooms[key.roomID]; ok {
		member = room[key.connID]
	}
	fn := t.onExpired
	t.mu.Unlock()

	if member == nil || fn == nil {
		return
	}

	log.L().Debug().
		Str(log.FieldRoomID, key.roomID).
		Str(log.FieldClientID, key.connID).
		Str("kind", key.kind).
		Msg("activity flag expired")
	fn(key.roomID, *member, key.kind)
}

// Close stops all pending activity timers.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}

func (t *Tracker) stopTimersLocked(roomID, connID string) {
	for key, timer := range t.timers {
		if key.roomID == roomID && key.connID == connID {
			timer.Stop()
			delete(t.timers, key)
		}
	}
}

func membersLocked(room map[string]*domain.Member) []domain.Member {
	members := make([]domain.Member, 0, len(room))
	for _, m := range room {
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].ID < members[j].ID
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members
}
