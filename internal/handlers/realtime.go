package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/realtime"
	"github.com/voxlane/voxlane-backend/internal/requestdata"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.Hub

	mu      sync.RWMutex
	clients map[uuid.UUID]*realtime.Client // key: session id (UserToken.ID)
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{
		log:     log.With("handler", "RealtimeHandler"),
		hub:     hub,
		clients: make(map[uuid.UUID]*realtime.Client),
	}
}

func (rh *RealtimeHandler) session(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return uuid.Nil, uuid.Nil, false
	}
	if rd.SessionID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session id"})
		return uuid.Nil, uuid.Nil, false
	}
	return rd.UserID, rd.SessionID, true
}

// Stream opens the SSE connection for the session. Every session is
// subscribed to its user channel; project channels are added via Subscribe.
func (rh *RealtimeHandler) Stream(c *gin.Context) {
	userID, sessionID, ok := rh.session(c)
	if !ok {
		return
	}

	rh.mu.Lock()
	// A session gets one connection; a reconnect replaces the old one.
	if existing, found := rh.clients[sessionID]; found {
		rh.hub.CloseClient(existing)
		delete(rh.clients, sessionID)
	}
	client := rh.hub.NewClient(userID)
	rh.clients[sessionID] = client
	rh.mu.Unlock()

	rh.hub.AddChannel(client, realtime.UserChannel(userID))

	rh.hub.ServeHTTP(c.Writer, c.Request, client)

	rh.mu.Lock()
	delete(rh.clients, sessionID)
	rh.mu.Unlock()
	rh.hub.CloseClient(client)
}

func (rh *RealtimeHandler) Subscribe(c *gin.Context) {
	_, sessionID, ok := rh.session(c)
	if !ok {
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
		return
	}

	rh.mu.RLock()
	client, exists := rh.clients[sessionID]
	rh.mu.RUnlock()
	if !exists {
		c.JSON(http.StatusConflict, gin.H{"error": "no active realtime connection for this session"})
		return
	}

	rh.hub.AddChannel(client, req.Channel)
	RespondOK(c, gin.H{"message": "subscribed", "channel": req.Channel})
}

func (rh *RealtimeHandler) Unsubscribe(c *gin.Context) {
	_, sessionID, ok := rh.session(c)
	if !ok {
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
		return
	}

	rh.mu.RLock()
	client, exists := rh.clients[sessionID]
	rh.mu.RUnlock()
	if !exists {
		c.JSON(http.StatusConflict, gin.H{"error": "no active realtime connection for this session"})
		return
	}

	rh.hub.RemoveChannel(client, req.Channel)
	RespondOK(c, gin.H{"message": "unsubscribed", "channel": req.Channel})
}
