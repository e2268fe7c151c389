package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivansh1251/DoodleSync/internal/domain"
	"github.com/Shivansh1251/DoodleSync/pkg/database"
)

func setupStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &domain.RoomModel{}, &domain.ChatMessageModel{}))

	return NewGormStore(db)
}

func TestGetDocumentUnknownRoom(t *testing.T) {
	store := setupStore(t)

	_, _, err := store.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestUpsertDocumentRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc := json.RawMessage(`{"shapes":["rect","circle"]}`)
	require.NoError(t, store.UpsertDocument(ctx, "room-1", doc, "u1"))

	got, lastModified, err := store.GetDocument(ctx, "room-1")
	require.NoError(t, err)
	assert.JSONEq(t, string(doc), string(got))
	assert.False(t, lastModified.IsZero())
}

func TestUpsertDocumentReplacesExisting(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, "room-1", json.RawMessage(`{"v":1}`), "u1"))
	require.NoError(t, store.UpsertDocument(ctx, "room-1", json.RawMessage(`{"v":2}`), "u2"))

	got, _, err := store.GetDocument(ctx, "room-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))

	rooms, err := store.ListRooms(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
}

func TestUpsertDocumentDefaultsAnonymousAuthor(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, "room-1", json.RawMessage(`{}`), ""))

	rooms, err := store.ListRooms(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Anonymous", rooms[0].CreatedBy)
}

func TestRecentMessagesNewestFirstWithLimit(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, text := range []string{"first", "second", "third"} {
		require.NoError(t, store.AppendMessage(ctx, "room-1", domain.ChatMessage{
			ID:        text,
			Author:    domain.Author{ID: "u1", Name: "alice"},
			Text:      text,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	messages, err := store.RecentMessages(ctx, "room-1", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "third", messages[0].Text)
	assert.Equal(t, "second", messages[1].Text)
}

func TestRecentMessagesScopedToRoom(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "room-1", domain.ChatMessage{
		ID: "m1", Author: domain.Author{ID: "u1", Name: "alice"}, Text: "here", Timestamp: time.Now().UTC(),
	}))
	require.NoError(t, store.AppendMessage(ctx, "room-2", domain.ChatMessage{
		ID: "m2", Author: domain.Author{ID: "u2", Name: "bob"}, Text: "elsewhere", Timestamp: time.Now().UTC(),
	}))

	messages, err := store.RecentMessages(ctx, "room-1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "here", messages[0].Text)
}

func TestSystemMessageSurvivesRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "room-1", domain.ChatMessage{
		ID:        "m1",
		Author:    domain.SystemAuthor,
		Text:      "alice has left the room",
		Timestamp: time.Now().UTC(),
		IsSystem:  true,
	}))

	messages, err := store.RecentMessages(ctx, "room-1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsSystem)
	assert.Equal(t, domain.SystemAuthor.ID, messages[0].Author.ID)
}

func TestDeleteRoomCascadesToMessages(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, "room-1", json.RawMessage(`{}`), "u1"))
	require.NoError(t, store.AppendMessage(ctx, "room-1", domain.ChatMessage{
		ID: "m1", Author: domain.Author{ID: "u1", Name: "alice"}, Text: "bye", Timestamp: time.Now().UTC(),
	}))

	require.NoError(t, store.DeleteRoom(ctx, "room-1"))

	_, _, err := store.GetDocument(ctx, "room-1")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	messages, err := store.RecentMessages(ctx, "room-1", 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestDeleteUnknownRoomIsNoOp(t *testing.T) {
	store := setupStore(t)
	assert.NoError(t, store.DeleteRoom(context.Background(), "missing"))
}

func TestListRoomsMostRecentFirst(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, "old", json.RawMessage(`{}`), "u1"))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.UpsertDocument(ctx, "new", json.RawMessage(`{}`), "u1"))

	rooms, err := store.ListRooms(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "new", rooms[0].RoomID)
	assert.Equal(t, "old", rooms[1].RoomID)

	capped, err := store.ListRooms(ctx, 1)
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, "new", capped[0].RoomID)
}
