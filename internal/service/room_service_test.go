package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivansh1251/DoodleSync/internal/registry"
)

func newRoomServiceEnv(t *testing.T) (*memStore, *registry.Registry, RoomService) {
	t.Helper()
	store := newMemStore()
	reg := registry.New(store, registry.Config{QueueSize: 16, WriteTimeout: time.Second})
	t.Cleanup(reg.Close)
	return store, reg, NewRoomService(store, reg, nil, 20)
}

func TestGetRoomPrefersLiveSnapshot(t *testing.T) {
	store, reg, svc := newRoomServiceEnv(t)
	store.docs["room-1"] = json.RawMessage(`{"stale":true}`)
	reg.ApplyUpdate("room-1", json.RawMessage(`{"fresh":true}`), "u1")

	room, exists, err := svc.GetRoom(context.Background(), "room-1")
	require.NoError(t, err)
	require.True(t, exists)
	assert.JSONEq(t, `{"fresh":true}`, string(room.Document))
}

func TestGetRoomFallsBackToStore(t *testing.T) {
	store, _, svc := newRoomServiceEnv(t)
	store.docs["room-1"] = json.RawMessage(`{"persisted":true}`)

	room, exists, err := svc.GetRoom(context.Background(), "room-1")
	require.NoError(t, err)
	require.True(t, exists)
	assert.JSONEq(t, `{"persisted":true}`, string(room.Document))
}

func TestGetRoomUnknown(t *testing.T) {
	_, _, svc := newRoomServiceEnv(t)

	room, exists, err := svc.GetRoom(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, room)
}

func TestDeleteRoomClearsLiveAndPersistedState(t *testing.T) {
	store, reg, svc := newRoomServiceEnv(t)
	reg.ApplyUpdate("room-1", json.RawMessage(`{"v":2}`), "u1")
	require.Eventually(t, func() bool {
		return store.document("room-1") != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, svc.DeleteRoom(context.Background(), "room-1"))

	assert.Nil(t, reg.GetSnapshot("room-1"))
	_, exists, err := svc.GetRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.False(t, exists)
}
