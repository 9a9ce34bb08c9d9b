package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/pulserelay/internal/relay"
	"github.com/lalith-99/pulserelay/internal/ws"
)

// Broadcast response statuses. "no_members" is a SUCCESS: the tenant
// existed (or was lazily created) and the fanout ran against an empty
// room. Callers that care can tell the two apart without parsing
// counts.
const (
	StatusDelivered = "delivered"
	StatusNoMembers = "no_members"
)

// BroadcastHandler is the control-plane trigger: a trusted backend
// pushes one payload into a tenant's room over plain HTTP, no
// websocket involved. Authorization is the static shared API key —
// deliberately simpler than the per-connection token gate, because the
// caller is our own backend, not an end user.
type BroadcastHandler struct {
	registry *relay.Registry
	apiKey   string
	logger   *zap.Logger
}

func NewBroadcastHandler(registry *relay.Registry, apiKey string, logger *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		registry: registry,
		apiKey:   apiKey,
		logger:   logger,
	}
}

type broadcastRequest struct {
	TenantID string `json:"tenantId"`
	APIKey   string `json:"apiKey"`
	Message  string `json:"message"`
	Room     string `json:"room"`
}

// Trigger handles POST /broadcast.
func (h *BroadcastHandler) Trigger(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TenantID == "" || req.Message == "" || req.APIKey == "" || req.Room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenantId, message, room or apiKey"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.apiKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
		return
	}

	payload, err := json.Marshal(ws.Envelope{
		Kind:    ws.KindMessage,
		Room:    req.Room,
		Payload: req.Message,
	})
	if err != nil {
		h.logger.Error("marshal broadcast frame", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "broadcast failed"})
		return
	}

	res, err := h.registry.SendToRoom(req.TenantID, req.Room, payload)
	if err != nil {
		// The only registry error here is a malformed tenant ID.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("broadcast delivered",
		zap.String("tenant", req.TenantID),
		zap.String("room", req.Room),
		zap.Int("attempted", res.Attempted),
		zap.Int("delivered", res.Delivered),
	)

	h.registry.Mirror(relay.DeliveryEvent{
		Namespace: req.TenantID,
		Room:      req.Room,
		Message:   "(Broadcast) " + req.Message,
	})

	status := StatusDelivered
	if res.Attempted == 0 {
		status = StatusNoMembers
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Message broadcasted successfully",
		"status":    status,
		"attempted": res.Attempted,
		"delivered": res.Delivered,
	})
}
