package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Shivansh1251/DoodleSync/internal/domain"
	"github.com/Shivansh1251/DoodleSync/internal/hub"
	"github.com/Shivansh1251/DoodleSync/internal/service"
	"github.com/Shivansh1251/DoodleSync/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler accepts WebSocket connections and dispatches their events to the
// sync service.
type WSHandler struct {
	hub  *hub.Hub
	sync service.SyncService
}

func NewWSHandler(h *hub.Hub, sync service.SyncService) *WSHandler {
	return &WSHandler{hub: h, sync: sync}
}

// Handle upgrades the HTTP request and runs the connection's pumps.
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.L().Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn)
	client.SetDisconnectHandler(func(cl *hub.Client) {
		if err := h.sync.HandleDisconnect(context.Background(), cl); err != nil {
			log.L().Error().Err(err).Str(log.FieldClientID, cl.ID).Msg("disconnect cleanup failed")
		}
	})

	h.hub.Register(client)

	log.L().Info().Str(log.FieldClientID, client.ID).Msg("client connected")

	go client.WritePump()
	go client.ReadPump(h.dispatch)
}

// dispatch routes one inbound frame by its type field. Malformed frames are
// answered with an error event and dropped; they never close the connection.
func (h *WSHandler) dispatch(c *hub.Client, data []byte) {
	ctx := context.Background()
	l := log.L()

	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		l.Warn().Err(err).Str(log.FieldClientID, c.ID).Msg("malformed frame")
		c.SendMessage(domain.NewErrorEvent(domain.ErrCodeBadRequest, "malformed message"))
		return
	}

	var err error
	switch env.Type {
	case domain.EventJoinRoom:
		var ev domain.JoinRoomEvent
		if err = json.Unmarshal(data, &ev); err == nil {
			if ev.RoomID == "" {
				c.SendMessage(domain.NewErrorEvent(domain.ErrCodeBadRequest, "roomId is required"))
				return
			}
			err = h.sync.HandleJoinRoom(ctx, c, ev.RoomID, ev.User)
		}

	case domain.EventDocUpdate:
		var ev domain.DocUpdateEvent
		if err = json.Unmarshal(data, &ev); err == nil {
			room, ok := h.roomFor(c, ev.RoomID)
			if !ok {
				return
			}
			err = h.sync.HandleDocUpdate(ctx, c, room, ev.Document)
		}

	case domain.EventChatMessage:
		var ev domain.ChatMessageEvent
		if err = json.Unmarshal(data, &ev); err == nil {
			room, ok := h.roomFor(c, ev.RoomID)
			if !ok {
				return
			}
			err = h.sync.HandleChatMessage(ctx, c, room, ev.Message)
		}

	case domain.EventActivity:
		var ev domain.ActivityEvent
		if err = json.Unmarshal(data, &ev); err == nil {
			room, ok := h.roomFor(c, ev.RoomID)
			if !ok {
				return
			}
			err = h.sync.HandleActivity(ctx, c, room, ev.Kind, ev.Active)
		}

	case domain.EventCursorMove:
		var ev domain.CursorMoveEvent
		if err = json.Unmarshal(data, &ev); err == nil {
			room, ok := h.roomFor(c, ev.RoomID)
			if !ok {
				return
			}
			ev.RoomID = room
			err = h.sync.HandleCursorMove(ctx, c, ev)
		}

	case domain.EventLeaveRoom:
		var ev domain.LeaveRoomEvent
		if err = json.Unmarshal(data, &ev); err == nil {
			room, ok := h.roomFor(c, ev.RoomID)
			if !ok {
				return
			}
			err = h.sync.HandleLeaveRoom(ctx, c, room)
		}

	case domain.EventSaveRoom:
		var ev domain.SaveRoomEvent
		if err = json.Unmarshal(data, &ev); err == nil {
			room, ok := h.roomFor(c, ev.RoomID)
			if !ok {
				return
			}
			err = h.sync.HandleSaveRoom(ctx, c, room)
		}

	default:
		l.Debug().Str(log.FieldClientID, c.ID).Str("event_type", env.Type).Msg("unknown event type")
		c.SendMessage(domain.NewErrorEvent(domain.ErrCodeBadRequest, "unknown event type"))
		return
	}

	if err != nil {
		l.Error().Err(err).
			Str(log.FieldClientID, c.ID).
			Str("event_type", env.Type).
			Msg("event handling failed")
		c.SendMessage(domain.NewErrorEvent(domain.ErrCodeInternalError, "failed to process event"))
	}
}

// roomFor resolves an event's target room, defaulting to the client's
// current room when the frame omits it. A client that has never joined a
// room has no target; those frames are answered with an error and dropped
// so nothing is ever written under an empty room ID.
func (h *WSHandler) roomFor(c *hub.Client, roomID string) (string, bool) {
	if roomID == "" {
		roomID = c.Session.CurrentRoom()
	}
	if roomID == "" {
		c.SendMessage(domain.NewErrorEvent(domain.ErrCodeBadRequest, "roomId is required"))
		return "", false
	}
	return roomID, true
}
