package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lalith-99/pulserelay/internal/auth"
	"github.com/lalith-99/pulserelay/internal/middleware"
	"github.com/lalith-99/pulserelay/internal/relay"
)

const (
	dashboardWriteWait  = 10 * time.Second
	dashboardPongWait   = 60 * time.Second
	dashboardPingPeriod = (dashboardPongWait * 9) / 10

	// statsInterval is how often each dashboard socket gets a fresh
	// registry snapshot.
	statsInterval = 5 * time.Second
)

// DashboardHandler is the read-only operator surface: login/logout,
// a stats endpoint, and a websocket that streams periodic snapshots
// plus live delivery mirror events. It only observes the registry —
// nothing here mutates membership.
type DashboardHandler struct {
	registry *relay.Registry
	hub      *DashboardHub

	username string
	// passwordHash is a bcrypt hash of the configured password,
	// computed once at startup. Login then goes through
	// bcrypt.CompareHashAndPassword, which is constant-time — the
	// plaintext never sticks around on the handler.
	passwordHash []byte
	jwtSecret    string

	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewDashboardHandler(registry *relay.Registry, hub *DashboardHub, username, password, jwtSecret string, logger *zap.Logger) (*DashboardHandler, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash dashboard password: %w", err)
	}

	return &DashboardHandler{
		registry:     registry,
		hub:          hub,
		username:     username,
		passwordHash: hash,
		jwtSecret:    jwtSecret,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}, nil
}

type dashboardLoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Login handles POST /dashboard/login. On success it sets the session
// cookie and redirects to /dashboard, browser-style.
//
// Same generic 401 for wrong username and wrong password — no hints
// about which half was right.
func (h *DashboardHandler) Login(c *gin.Context) {
	var req dashboardLoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(h.passwordHash, []byte(req.Password))
	if !userOK || passErr != nil {
		c.String(http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := auth.GenerateDashboardToken(h.username, h.jwtSecret)
	if err != nil {
		h.logger.Error("failed to generate dashboard token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.SetCookie("dashboard_token", token, int(auth.DashboardTokenTTL.Seconds()), "/", "", false, true)
	c.Redirect(http.StatusFound, "/dashboard")
}

// Logout handles GET /dashboard/logout.
func (h *DashboardHandler) Logout(c *gin.Context) {
	c.SetCookie("dashboard_token", "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

// Stats handles GET /dashboard — the current registry snapshot as
// JSON. The dashboard front end is served elsewhere; this process
// exposes the data, not the chrome.
func (h *DashboardHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user":  middleware.GetDashboardUser(c),
		"stats": h.registry.Stats(),
	})
}

// ServeWS handles GET /dashboard/ws: a cookie-authenticated websocket
// that pushes a stats snapshot every statsInterval and mirrors
// delivery events as they happen.
func (h *DashboardHandler) ServeWS(c *gin.Context) {
	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("dashboard upgrade error", zap.Error(err))
		return
	}

	client := &dashboardClient{
		ws:   wsConn,
		send: make(chan []byte, 64),
	}
	h.hub.add(client)

	go h.writeLoop(client)
	go h.readLoop(client)
}

// readLoop exists to notice the disconnect. Dashboards only listen;
// anything they send is drained and ignored.
func (h *DashboardHandler) readLoop(client *dashboardClient) {
	defer func() {
		h.hub.remove(client)
		client.ws.Close()
	}()

	client.ws.SetReadLimit(512)
	client.ws.SetReadDeadline(time.Now().Add(dashboardPongWait))
	client.ws.SetPongHandler(func(string) error {
		client.ws.SetReadDeadline(time.Now().Add(dashboardPongWait))
		return nil
	})

	for {
		if _, _, err := client.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *DashboardHandler) writeLoop(client *dashboardClient) {
	statsTicker := time.NewTicker(statsInterval)
	pingTicker := time.NewTicker(dashboardPingPeriod)
	defer func() {
		statsTicker.Stop()
		pingTicker.Stop()
		client.ws.Close()
	}()

	for {
		select {
		case frame := <-client.send:
			client.ws.SetWriteDeadline(time.Now().Add(dashboardWriteWait))
			if err := client.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-statsTicker.C:
			frame, err := json.Marshal(dashboardEvent{Event: "stats", Data: h.registry.Stats()})
			if err != nil {
				h.logger.Error("marshal stats frame", zap.Error(err))
				continue
			}
			client.ws.SetWriteDeadline(time.Now().Add(dashboardWriteWait))
			if err := client.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-pingTicker.C:
			client.ws.SetWriteDeadline(time.Now().Add(dashboardWriteWait))
			if err := client.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Disabled is mounted on /dashboard when the operator has not
// configured credentials.
func Disabled(c *gin.Context) {
	c.String(http.StatusForbidden, "Dashboard is disabled.")
}
