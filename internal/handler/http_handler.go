package handler

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shivansh1251/DoodleSync/internal/service"
	"github.com/Shivansh1251/DoodleSync/pkg/log"
	"github.com/Shivansh1251/DoodleSync/pkg/response"
)

// HTTPHandler serves the REST endpoints collaborating clients use alongside
// the WebSocket connection.
type HTTPHandler struct {
	rooms        service.RoomService
	history      service.HistoryService
	historyLimit int
}

func NewHTTPHandler(rooms service.RoomService, history service.HistoryService, historyLimit int) *HTTPHandler {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &HTTPHandler{
		rooms:        rooms,
		history:      history,
		historyLimit: historyLimit,
	}
}

// RegisterRoutes mounts the API routes on the router.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/rooms", h.ListRooms)
		api.GET("/rooms/:roomId", h.GetRoom)
		api.GET("/rooms/:roomId/chat", h.GetChatHistory)
		api.DELETE("/rooms/:roomId", h.DeleteRoom)
	}
}

// Health reports service liveness.
func (h *HTTPHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// ListRooms returns the most recently modified rooms.
func (h *HTTPHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListRooms(c.Request.Context())
	if err != nil {
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to list rooms")
		response.InternalError(c, "failed to list rooms")
		return
	}
	response.Success(c, gin.H{"rooms": rooms})
}

// GetRoom returns a room's current document. Unknown rooms are not an error;
// the payload reports exists=false so clients can start a fresh canvas.
func (h *HTTPHandler) GetRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	if roomID == "" {
		response.BadRequest(c, "roomId is required")
		return
	}

	room, exists, err := h.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		log.Ctx(c.Request.Context()).Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to get room")
		response.InternalError(c, "failed to get room")
		return
	}

	if !exists {
		response.Success(c, gin.H{"exists": false})
		return
	}

	doc := room.Document
	if doc == nil {
		doc = json.RawMessage("null")
	}
	response.Success(c, gin.H{
		"exists":       true,
		"data":         doc,
		"lastModified": room.LastModified,
	})
}

// GetChatHistory returns a room's recent chat messages in chronological
// order. The limit query parameter is clamped to the configured maximum.
func (h *HTTPHandler) GetChatHistory(c *gin.Context) {
	roomID := c.Param("roomId")
	if roomID == "" {
		response.BadRequest(c, "roomId is required")
		return
	}

	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	messages, err := h.history.GetRecent(c.Request.Context(), roomID, limit)
	if err != nil {
		log.Ctx(c.Request.Context()).Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to load chat history")
		response.InternalError(c, "failed to load chat history")
		return
	}
	response.Success(c, gin.H{"messages": messages})
}

// DeleteRoom removes a room and its chat history.
func (h *HTTPHandler) DeleteRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	if roomID == "" {
		response.BadRequest(c, "roomId is required")
		return
	}

	if err := h.rooms.DeleteRoom(c.Request.Context(), roomID); err != nil {
		log.Ctx(c.Request.Context()).Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to delete room")
		response.InternalError(c, "failed to delete room")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
