package api

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lalith-99/pulserelay/internal/relay"
)

// dashboardEvent is the frame shape pushed to dashboard sockets:
// {"event":"stats","data":{...}} or {"event":"message","data":{...}}.
type dashboardEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// DashboardHub tracks connected dashboard sockets and implements
// relay.Tap, so every fanout in the relay is mirrored to whoever is
// watching. Dashboard clients live here, NOT in the registry — which
// is how the stats report stays free of the observability channel
// itself.
type DashboardHub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*dashboardClient]struct{}
}

func NewDashboardHub(logger *zap.Logger) *DashboardHub {
	return &DashboardHub{
		logger:  logger,
		clients: make(map[*dashboardClient]struct{}),
	}
}

// MessageDelivered mirrors one delivery event to every dashboard
// socket. Non-blocking per client: a stalled dashboard loses mirror
// events, it never slows the relay down.
func (h *DashboardHub) MessageDelivered(ev relay.DeliveryEvent) {
	frame, err := json.Marshal(dashboardEvent{Event: "message", Data: ev})
	if err != nil {
		h.logger.Error("marshal dashboard event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.trySend(frame)
	}
}

func (h *DashboardHub) add(c *dashboardClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("dashboard connected", zap.Int("dashboards", count))
}

func (h *DashboardHub) remove(c *dashboardClient) {
	h.mu.Lock()
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("dashboard disconnected", zap.Int("dashboards", count))
}

type dashboardClient struct {
	ws   *websocket.Conn
	send chan []byte
}

func (c *dashboardClient) trySend(frame []byte) {
	select {
	case c.send <- frame:
	default:
	}
}
