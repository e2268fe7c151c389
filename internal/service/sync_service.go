package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivansh1251/DoodleSync/internal/cache"
	"github.com/Shivansh1251/DoodleSync/internal/domain"
	"github.com/Shivansh1251/DoodleSync/internal/hub"
	"github.com/Shivansh1251/DoodleSync/internal/presence"
	"github.com/Shivansh1251/DoodleSync/internal/registry"
	"github.com/Shivansh1251/DoodleSync/internal/repository"
	"github.com/Shivansh1251/DoodleSync/pkg/log"
)

const defaultCursorColor = "#6366f1"

// SyncConfig holds sync service tuning knobs.
type SyncConfig struct {
	// SettleDelay postpones the presence join broadcast so the join is fully
	// visible to membership queries before the room hears about it.
	SettleDelay time.Duration
	// HistoryLimit is how many chat messages a joining client receives.
	HistoryLimit int
	// PersistTimeout bounds the background chat persistence writes.
	PersistTimeout time.Duration
}

type syncService struct {
	hub      *hub.Hub
	registry *registry.Registry
	tracker  *presence.Tracker
	store    repository.Store
	history  HistoryService
	msgCache cache.MessageCache // may be nil
	cfg      SyncConfig
}

// NewSyncService wires the sync service and registers the activity expiry
// callback on the tracker.
func NewSyncService(
	h *hub.Hub,
	reg *registry.Registry,
	tracker *presence.Tracker,
	store repository.Store,
	history HistoryService,
	msgCache cache.MessageCache,
	cfg SyncConfig,
) SyncService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}

	s := &syncService{
		hub:      h,
		registry: reg,
		tracker:  tracker,
		store:    store,
		history:  history,
		msgCache: msgCache,
		cfg:      cfg,
	}

	tracker.OnActivityExpired(func(roomID string, member domain.Member, kind string) {
		s.broadcastActivity(roomID, member, kind, false)
	})

	return s
}

// HandleJoinRoom joins a client to a room: presence registration, document
// load, unicast doc-init and chat-history, then a room-wide presence
// announcement after the settling delay.
func (s *syncService) HandleJoinRoom(ctx context.Context, c *hub.Client, roomID string, user *domain.UserInfo) error {
	l := log.Ctx(ctx)

	identity := domain.UserInfo{ID: c.ID, Name: "Anonymous"}
	if user != nil {
		if user.ID != "" {
			identity.ID = user.ID
		}
		if user.Name != "" {
			identity.Name = user.Name
		}
		identity.Avatar = user.Avatar
	}
	c.Session.SetUser(identity)

	// A connection is in at most one room; joining another implies leaving.
	if current := c.Session.CurrentRoom(); current != "" && current != roomID {
		s.leaveRoom(ctx, c, current)
	}

	doc, err := s.registry.EnsureLoaded(ctx, roomID)
	if err != nil {
		// Transient load failures must not block the join; the client starts
		// from an empty document and converges on the next update.
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to load room document")
		doc = nil
	}

	s.tracker.Join(roomID, domain.Member{
		ID:     c.ID,
		UserID: identity.ID,
		Name:   identity.Name,
		Avatar: identity.Avatar,
	})
	s.hub.JoinRoom(c, roomID)
	c.Session.JoinRoom(roomID)

	c.SendMessage(&domain.DocInitEvent{
		Type:     domain.EventDocInit,
		RoomID:   roomID,
		Document: doc,
	})

	messages, err := s.history.GetRecent(ctx, roomID, s.cfg.HistoryLimit)
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to load chat history")
		messages = nil
	}
	c.SendMessage(&domain.ChatHistoryEvent{
		Type:     domain.EventChatHistory,
		RoomID:   roomID,
		Messages: messages,
	})

	l.Info().
		Str(log.FieldClientID, c.ID).
		Str(log.FieldRoomID, roomID).
		Str(log.FieldUserName, identity.Name).
		Msg("client joined room")

	announce := func() {
		s.hub.BroadcastToRoom(roomID, &domain.PresenceUpdateEvent{
			Type:      domain.EventPresenceUpdate,
			RoomID:    roomID,
			Update:    domain.PresenceJoin,
			User:      identity,
			RoomUsers: s.tracker.ListMembers(roomID),
		}, "")
	}
	if s.cfg.SettleDelay > 0 {
		time.AfterFunc(s.cfg.SettleDelay, announce)
	} else {
		announce()
	}

	return nil
}

// HandleDocUpdate applies a full-document replacement and relays it to every
// other member of the room. The last update the server receives wins.
func (s *syncService) HandleDocUpdate(ctx context.Context, c *hub.Client, roomID string, doc json.RawMessage) error {
	if len(doc) == 0 {
		log.Ctx(ctx).Debug().Str(log.FieldClientID, c.ID).Msg("dropping empty doc-update")
		return nil
	}

	s.registry.ApplyUpdate(roomID, doc, c.Session.UserInfo().ID)

	return s.hub.BroadcastToRoom(roomID, &domain.DocUpdateEvent{
		Type:     domain.EventDocUpdate,
		RoomID:   roomID,
		Document: doc,
	}, c.ID)
}

// HandleChatMessage persists a chat message and relays it to every member of
// the room including the sender, so the server echo is the source of truth.
func (s *syncService) HandleChatMessage(ctx context.Context, c *hub.Client, roomID string, msg *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		l.Debug().Str(log.FieldClientID, c.ID).Str(log.FieldRoomID, roomID).Msg("dropping invalid chat message")
		return nil
	}

	out := *msg
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	if out.Author.ID == "" {
		user := c.Session.UserInfo()
		out.Author = domain.Author{ID: user.ID, Name: user.Name}
	}

	s.persistMessage(roomID, out)

	return s.hub.BroadcastToRoom(roomID, &domain.ChatMessageOut{
		Type:    domain.EventChatMessage,
		RoomID:  roomID,
		Message: out,
	}, "")
}

// HandleActivity records a transient activity flag and relays it to the rest
// of the room. Activity is informational about others and never persisted.
func (s *syncService) HandleActivity(ctx context.Context, c *hub.Client, roomID, kind string, active bool) error {
	if kind == "" {
		log.Ctx(ctx).Debug().Str(log.FieldClientID, c.ID).Msg("dropping activity event without kind")
		return nil
	}

	s.tracker.SetActivity(roomID, c.ID, kind, active)

	user := c.Session.UserInfo()
	member := domain.Member{ID: c.ID, UserID: user.ID, Name: user.Name, Avatar: user.Avatar}
	return s.broadcastActivityExcluding(roomID, member, kind, active, c.ID)
}

// HandleCursorMove relays a cursor position to the rest of the room.
func (s *syncService) HandleCursorMove(ctx context.Context, c *hub.Client, ev domain.CursorMoveEvent) error {
	user := c.Session.UserInfo()

	color := ev.Color
	if color == "" {
		color = defaultCursorColor
	}

	return s.hub.BroadcastToRoom(ev.RoomID, &domain.CursorUpdateEvent{
		Type:       domain.EventCursorUpdate,
		RoomID:     ev.RoomID,
		UserID:     c.ID,
		UserName:   user.Name,
		UserAvatar: user.Avatar,
		X:          ev.X,
		Y:          ev.Y,
		Color:      color,
		Timestamp:  time.Now().UnixMilli(),
	}, c.ID)
}

// HandleLeaveRoom leaves a room explicitly. Leaving a room the client is not
// in is a no-op.
func (s *syncService) HandleLeaveRoom(ctx context.Context, c *hub.Client, roomID string) error {
	s.leaveRoom(ctx, c, roomID)
	return nil
}

// HandleSaveRoom forces immediate persistence of the room's cached document.
func (s *syncService) HandleSaveRoom(ctx context.Context, c *hub.Client, roomID string) error {
	if err := s.registry.Flush(ctx, roomID); err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldRoomID, roomID).Msg("save-room flush failed")
		c.SendMessage(domain.NewErrorEvent(domain.ErrCodeInternalError, "failed to save room"))
		return err
	}
	return nil
}

// HandleDisconnect cleans up a closing connection. Safe to call more than
// once; the leave side effects fire at most once per joined room.
func (s *syncService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	if current := c.Session.CurrentRoom(); current != "" {
		s.leaveRoom(ctx, c, current)
	}
	// Sweep any stale memberships; no broadcasts, the leave above already
	// announced the departure.
	s.tracker.LeaveAll(c.ID)
	return nil
}

// leaveRoom removes the client from a room and, if it was actually a member,
// emits the leave system chat message and presence broadcast. The presence
// tracker removal is the exactly-once gate: duplicate leave and disconnect
// signals fall through without re-broadcasting.
func (s *syncService) leaveRoom(ctx context.Context, c *hub.Client, roomID string) {
	user := c.Session.UserInfo()

	wasMember := s.tracker.Leave(roomID, c.ID)
	s.hub.LeaveRoom(c, roomID)
	if c.Session.CurrentRoom() == roomID {
		c.Session.LeaveRoom()
	}

	if !wasMember {
		return
	}

	log.Ctx(ctx).Info().
		Str(log.FieldClientID, c.ID).
		Str(log.FieldRoomID, roomID).
		Str(log.FieldUserName, user.Name).
		Msg("client left room")

	sysMsg := domain.ChatMessage{
		ID:        uuid.New().String(),
		Author:    domain.SystemAuthor,
		Text:      user.Name + " has left the room",
		Timestamp: time.Now().UTC(),
		IsSystem:  true,
	}
	s.persistMessage(roomID, sysMsg)

	s.hub.BroadcastToRoom(roomID, &domain.ChatMessageOut{
		Type:    domain.EventChatMessage,
		RoomID:  roomID,
		Message: sysMsg,
	}, "")

	s.hub.BroadcastToRoom(roomID, &domain.PresenceUpdateEvent{
		Type:   domain.EventPresenceUpdate,
		RoomID: roomID,
		Update: domain.PresenceLeave,
		User:   user,
	}, c.ID)
}

// persistMessage appends a chat message in the background so persistence
// latency never delays the broadcast.
func (s *syncService) persistMessage(roomID string, msg domain.ChatMessage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
		defer cancel()

		if err := s.store.AppendMessage(ctx, roomID, msg); err != nil {
			log.L().Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to persist chat message")
			return
		}
		if s.msgCache != nil {
			if err := s.msgCache.Invalidate(ctx, roomID); err != nil {
				log.L().Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to invalidate chat cache")
			}
		}
	}()
}

func (s *syncService) broadcastActivity(roomID string, member domain.Member, kind string, active bool) error {
	return s.broadcastActivityExcluding(roomID, member, kind, active, member.ID)
}

func (s *syncService) broadcastActivityExcluding(roomID string, member domain.Member, kind string, active bool, exclude string) error {
	return s.hub.BroadcastToRoom(roomID, &domain.UserActivityEvent{
		Type:      domain.EventUserActivity,
		RoomID:    roomID,
		UserID:    member.ID,
		UserName:  member.Name,
		Kind:      kind,
		Active:    active,
		Timestamp: time.Now().UTC(),
	}, exclude)
}
