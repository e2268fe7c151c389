package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivansh1251/DoodleSync/internal/config"
	"github.com/Shivansh1251/DoodleSync/internal/domain"
	"github.com/Shivansh1251/DoodleSync/internal/hub"
	"github.com/Shivansh1251/DoodleSync/internal/presence"
	"github.com/Shivansh1251/DoodleSync/internal/registry"
	"github.com/Shivansh1251/DoodleSync/internal/repository"
)

type memStore struct {
	mu       sync.Mutex
	docs     map[string]json.RawMessage
	messages map[string][]domain.ChatMessage
}

func newMemStore() *memStore {
	return &memStore{
		docs:     make(map[string]json.RawMessage),
		messages: make(map[string][]domain.ChatMessage),
	}
}

func (s *memStore) GetDocument(ctx context.Context, roomID string) (json.RawMessage, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[roomID]
	if !ok {
		return nil, time.Time{}, repository.ErrRoomNotFound
	}
	return doc, time.Now().UTC(), nil
}

func (s *memStore) UpsertDocument(ctx context.Context, roomID string, doc json.RawMessage, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[roomID] = doc
	return nil
}

func (s *memStore) DeleteRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, roomID)
	delete(s.messages, roomID)
	return nil
}

func (s *memStore) AppendMessage(ctx context.Context, roomID string, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[roomID] = append(s.messages[roomID], msg)
	return nil
}

func (s *memStore) RecentMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.messages[roomID]
	out := make([]domain.ChatMessage, 0, limit)
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

func (s *memStore) ListRooms(ctx context.Context, limit int) ([]domain.RoomSummary, error) {
	return nil, nil
}

func (s *memStore) messageCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[roomID])
}

func (s *memStore) document(roomID string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[roomID]
}

type testEnv struct {
	hub     *hub.Hub
	store   *memStore
	reg     *registry.Registry
	tracker *presence.Tracker
	sync    SyncService
}

func newTestEnv(t *testing.T, activityWindow time.Duration) *testEnv {
	t.Helper()

	store := newMemStore()
	reg := registry.New(store, registry.Config{
		QueueSize:    16,
		WriteRetries: 1,
		RetryBackoff: time.Millisecond,
		WriteTimeout: time.Second,
	})
	t.Cleanup(reg.Close)

	tracker := presence.NewTracker(activityWindow)
	t.Cleanup(tracker.Close)

	h := hub.NewHub(config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 1 << 20,
	})
	go h.Run()

	history := NewHistoryService(store, nil, time.Minute)
	syncSvc := NewSyncService(h, reg, tracker, store, history, nil, SyncConfig{
		SettleDelay:  0,
		HistoryLimit: 50,
	})

	return &testEnv{hub: h, store: store, reg: reg, tracker: tracker, sync: syncSvc}
}

func (e *testEnv) client(id string) *hub.Client {
	c := hub.NewClient(id, e.hub, nil)
	e.hub.Register(c)
	return c
}

func recvEventOfType(t *testing.T, c *hub.Client, eventType string) map[string]interface{} {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case data := <-c.Send:
			var ev map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &ev))
			if ev["type"] == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", eventType)
			return nil
		}
	}
}

func assertNoEvent(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func join(t *testing.T, e *testEnv, c *hub.Client, roomID, name string) {
	t.Helper()
	user := &domain.UserInfo{ID: "u-" + c.ID, Name: name}
	require.NoError(t, e.sync.HandleJoinRoom(context.Background(), c, roomID, user))
	recvEventOfType(t, c, domain.EventDocInit)
	recvEventOfType(t, c, domain.EventChatHistory)
	recvEventOfType(t, c, domain.EventPresenceUpdate)
}

func TestJoinNewRoomSendsEmptyDocAndHistory(t *testing.T) {
	e := newTestEnv(t, time.Second)
	c1 := e.client("c1")

	require.NoError(t, e.sync.HandleJoinRoom(context.Background(), c1, "room-1", &domain.UserInfo{ID: "u1", Name: "alice"}))

	ev := recvEventOfType(t, c1, domain.EventDocInit)
	assert.Equal(t, "room-1", ev["roomId"])
	assert.Nil(t, ev["document"])

	ev = recvEventOfType(t, c1, domain.EventChatHistory)
	assert.Empty(t, ev["messages"])

	ev = recvEventOfType(t, c1, domain.EventPresenceUpdate)
	assert.Equal(t, domain.PresenceJoin, ev["update"])
	user := ev["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["name"])
	roomUsers := ev["roomUsers"].([]interface{})
	assert.Len(t, roomUsers, 1)
}

func TestJoinDeliversPersistedDocument(t *testing.T) {
	e := newTestEnv(t, time.Second)
	e.store.docs["room-1"] = json.RawMessage(`{"shapes":["rect"]}`)
	c1 := e.client("c1")

	require.NoError(t, e.sync.HandleJoinRoom(context.Background(), c1, "room-1", &domain.UserInfo{ID: "u1", Name: "alice"}))

	ev := recvEventOfType(t, c1, domain.EventDocInit)
	doc, err := json.Marshal(ev["document"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"shapes":["rect"]}`, string(doc))
}

func TestJoinWithoutIdentityFallsBackToAnonymous(t *testing.T) {
	e := newTestEnv(t, time.Second)
	c1 := e.client("c1")

	require.NoError(t, e.sync.HandleJoinRoom(context.Background(), c1, "room-1", nil))
	recvEventOfType(t, c1, domain.EventDocInit)
	recvEventOfType(t, c1, domain.EventChatHistory)

	ev := recvEventOfType(t, c1, domain.EventPresenceUpdate)
	user := ev["user"].(map[string]interface{})
	assert.Equal(t, "Anonymous", user["name"])
	assert.Equal(t, "c1", user["id"])
}

func TestDocUpdateExcludesSenderAndPersists(t *testing.T) {
	e := newTestEnv(t, time.Second)
	c1 := e.client("c1")
	c2 := e.client("c2")
	join(t, e, c1, "room-1", "alice")
	join(t, e, c2, "room-1", "bob")
	recvEventOfType(t, c1, domain.EventPresenceUpdate) // bob's join

	doc := json.RawMessage(`{"shapes":["line"]}`)
	require.NoError(t, e.sync.HandleDocUpdate(context.Background(), c1, "room-1", doc))

	ev := recvEventOfType(t, c2, domain.EventDocUpdate)
	got, err := json.Marshal(ev["document"])
	require.NoError(t, err)
	assert.JSONEq(t, string(doc), string(got))
	assertNoEvent(t, c1)

	assert.JSONEq(t, string(doc), string(e.reg.GetSnapshot("room-1")))
	require.Eventually(t, func() bool {
		return string(e.store.document("room-1")) == string(doc)
	}, time.Second, 5*time.Millisecond)
}

func TestChatMessageEchoedToAllAndPersisted(t *testing.T) {
	e := newTestEnv(t, time.Second)
	c1 := e.client("c1")
	c2 := e.client("c2")
	join(t, e, c1, "room-1", "alice")
	join(t, e, c2, "room-1", "bob")
	recvEventOfType(t, c1, domain.EventPresenceUpdate)

	msg := &domain.ChatMessage{Text: "hello"}
	require.NoError(t, e.sync.HandleChatMessage(context.Background(), c1, "room-1", msg))

	for _, c := range []*hub.Client{c1, c2} {
		ev := recvEventOfType(t, c, domain.EventChatMessage)
		got := ev["message"].(map[string]interface{})
		assert.Equal(t, "hello", got["text"])
		author := got["author"].(map[string]interface{})
		assert.Equal(t, "alice", author["name"])
		assert.NotEmpty(t, got["id"])
	}

	require.Eventually(t, func() bool {
		return e.store.messageCount("room-1") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBlankChatMessageIsDropped(t *testing.T) {
	e := newTestEnv(t, time.Second)
	c1 := e.client("c1")
	join(t, e, c1, "room-1", "alice")

	require.NoError(t, e.sync.HandleChatMessage(context.Background(), c1, "room-1", &domain.ChatMessage{Text: "   "}))
	require.NoError(t, e.sync.HandleChatMessage(context.Background(), c1, "room-1", nil))

	assertNoEvent(t, c1)
	assert.Zero(t, e.store.messageCount("room-1"))
}

func TestLeaveRoomAnnouncesExactlyOnce(t *testing.T) {
	e := newTestEnv(t, time.Second)
	c1 := e.client("c1")
	c2 := e.client("c2")
	join(t, e, c1, "room-1", "alice")
	join(t, e, c2, "room-1", "bob")
	recvEventOfType(t, c1, domain.EventPresenceUpdate)

	require.NoError(t, e.sync.HandleLeaveRoom(context.Background(), c1, "room-1"))

	ev := recvEventOfType(t, c2, domain.EventChatMessage)
	got := ev["message"].(map[string]interface{})
	assert.Equal(t, "alice has left the room", got["text"])
	assert.Equal(t, true, got["isSystemMessage"])

	ev = recvEventOfType(t, c2, domain.EventPresenceUpdate)
	assert.Equal(t, domain.PresenceLeave, ev["update"])

	// The transport close that follows must not re-announce the leave.
	require.NoError(t, e.sync.HandleDisconnect(context.Background(), c1))
	assertNoEvent(t, c2)

	require.Eventually(t, func() bool {
		return e.store.messageCount("room-1") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDisconnectAnnouncesLeave(t *testing.T) {
	e := newTestEnv(t, time.Second)
	c1 := e.client("c1")
	c2 := e.client("c2")
	join(t, e, c1, "room-1", "alice")
	join(t, e, c2, "room-1", "bob")
	recvEventOfType(t, c1, domain.EventPresenceUpdate)

	require.NoError(t, e.sync.HandleDisconnect(context.Background(), c1))

	ev := recvEventOfType(t, c2, domain.EventPresenceUpdate)
	assert.Equal(t, domain.PresenceLeave, ev["update"])
	assert.Equal(t, 1, e.tracker.RoomCount("room-1"))
}

func TestJoinAnotherRoomLeavesCurrent(t *testing.T) {
	e := newTestEnv(t, time.Second)
	c1 := e.client("c1")
	c2 := e.client("c2")
	join(t, e, c1, "room-1", "alice")
	join(t, e, c2, "room-1", "bob")
	recvEventOfType(t, c1, domain.EventPresenceUpdate)

	join(t, e, c1, "room-2", "alice")

	ev := recvEventOfType(t, c2, domain.EventPresenceUpdate)
	assert.Equal(t, domain.PresenceLeave, ev["update"])
	assert.Equal(t, "room-2", c1.Session.CurrentRoom())
	assert.Equal(t, 1, e.tracker.RoomCount("room-1"))
	assert.Equal(t, 1, e.tracker.RoomCount("room-2"))
}

func TestSaveRoomFlushesDocument(t *testing.T) {
	e := newTestEnv(t, time.Second)
	c1 := e.client("c1")
	join(t, e, c1, "room-1", "alice")

	doc := json.RawMessage(`{"v":42}`)
	e.reg.ApplyUpdate("room-1", doc, "u-c1")

	require.NoError(t, e.sync.HandleSaveRoom(context.Background(), c1, "room-1"))
	assert.JSONEq(t, `{"v":42}`, string(e.store.document("room-1")))
}

func TestActivityBroadcastsAndExpires(t *testing.T) {
	e := newTestEnv(t, 30*time.Millisecond)
	c1 := e.client("c1")
	c2 := e.client("c2")
	join(t, e, c1, "room-1", "alice")
	join(t, e, c2, "room-1", "bob")
	recvEventOfType(t, c1, domain.EventPresenceUpdate)

	require.NoError(t, e.sync.HandleActivity(context.Background(), c1, "room-1", domain.ActivityDrawing, true))

	ev := recvEventOfType(t, c2, domain.EventUserActivity)
	assert.Equal(t, domain.ActivityDrawing, ev["kind"])
	assert.Equal(t, true, ev["active"])
	assert.Equal(t, "alice", ev["userName"])

	// Without a refresh the flag expires and the room hears it went idle.
	ev = recvEventOfType(t, c2, domain.EventUserActivity)
	assert.Equal(t, false, ev["active"])
}

func TestCursorMoveDefaultsColorAndExcludesSender(t *testing.T) {
	e := newTestEnv(t, time.Second)
	c1 := e.client("c1")
	c2 := e.client("c2")
	join(t, e, c1, "room-1", "alice")
	join(t, e, c2, "room-1", "bob")
	recvEventOfType(t, c1, domain.EventPresenceUpdate)

	require.NoError(t, e.sync.HandleCursorMove(context.Background(), c1, domain.CursorMoveEvent{
		RoomID: "room-1",
		X:      10,
		Y:      20,
	}))

	ev := recvEventOfType(t, c2, domain.EventCursorUpdate)
	assert.Equal(t, defaultCursorColor, ev["color"])
	assert.Equal(t, float64(10), ev["x"])
	assert.Equal(t, "alice", ev["userName"])
	assertNoEvent(t, c1)
}

func TestEmptyDocUpdateIsDropped(t *testing.T) {
	e := newTestEnv(t, time.Second)
	c1 := e.client("c1")
	join(t, e, c1, "room-1", "alice")

	require.NoError(t, e.sync.HandleDocUpdate(context.Background(), c1, "room-1", nil))
	assert.Nil(t, e.reg.GetSnapshot("room-1"))
}
