package ws

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lalith-99/pulserelay/internal/relay"
)

// Handler owns the real-time handshake endpoint:
// GET /ws/:tenantId?token=<jwt>.
type Handler struct {
	registry *relay.Registry
	gate     *relay.Gate
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(registry *relay.Registry, gate *relay.Gate, logger *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		gate:     gate,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Tokens, not origins, are the access control here —
			// the cross-origin story mirrors the permissive CORS the
			// relay's HTTP surface already has.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve runs the full connect path: tenant validation, the
// authorization gate, upgrade, registration, pumps. Authorization
// failures are answered BEFORE upgrading — a rejected client gets a
// plain 401 and never holds a websocket, so it can never appear in any
// membership snapshot.
func (h *Handler) Serve(c *gin.Context) {
	tenantID := c.Param("tenantId")
	if !relay.ValidTenantID(tenantID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}

	claims, err := h.gate.Authorize(tenantID, c.Query("token"))
	if err != nil {
		h.logger.Info("connection rejected",
			zap.String("tenant", tenantID),
			zap.Error(err),
		)
		c.JSON(authStatus(err), gin.H{"error": err.Error()})
		return
	}

	ns, err := h.registry.Namespace(tenantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		h.logger.Error("upgrade error", zap.Error(err))
		return
	}

	conn := NewConn(uuid.New().String(), claims, ns, h.registry, wsConn, h.logger)
	conn.Start()
}

func authStatus(err error) int {
	if errors.Is(err, relay.ErrMissingToken) ||
		errors.Is(err, relay.ErrInvalidToken) ||
		errors.Is(err, relay.ErrTenantMismatch) {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
