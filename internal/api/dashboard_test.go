package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalith-99/pulserelay/internal/middleware"
	"github.com/lalith-99/pulserelay/internal/relay"
)

const (
	testDashUser = "operator"
	testDashPass = "correct horse battery staple"
)

func newDashboardRouter(t *testing.T) (*gin.Engine, *relay.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := relay.NewRegistry(zap.NewNop(), nil)
	hub := NewDashboardHub(zap.NewNop())
	h, err := NewDashboardHandler(registry, hub, testDashUser, testDashPass, testJWTSecret, zap.NewNop())
	require.NoError(t, err)

	router := gin.New()
	router.POST("/dashboard/login", h.Login)
	router.GET("/dashboard/logout", h.Logout)
	protected := router.Group("/dashboard")
	protected.Use(middleware.DashboardAuth(testJWTSecret))
	protected.GET("", h.Stats)
	return router, registry
}

func login(t *testing.T, router *gin.Engine, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/dashboard/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "dashboard_token" {
			return c
		}
	}
	t.Fatal("no dashboard_token cookie set")
	return nil
}

func TestDashboardLogin(t *testing.T) {
	tests := []struct {
		name       string
		username   string
		password   string
		wantStatus int
	}{
		{"wrong username", "intruder", testDashPass, http.StatusUnauthorized},
		{"wrong password", testDashUser, "guess", http.StatusUnauthorized},
		{"both wrong", "intruder", "guess", http.StatusUnauthorized},
		{"valid credentials", testDashUser, testDashPass, http.StatusFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newDashboardRouter(t)

			rec := login(t, router, tt.username, tt.password)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusFound {
				assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
				cookie := sessionCookie(t, rec)
				assert.True(t, cookie.HttpOnly)
				assert.NotEmpty(t, cookie.Value)
			}
		})
	}
}

func TestDashboardStats_RequiresSession(t *testing.T) {
	router, _ := newDashboardRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestDashboardStats_WithSession(t *testing.T) {
	router, registry := newDashboardRouter(t)
	ns, err := registry.Namespace("acme")
	require.NoError(t, err)
	ns.Register(&fakeConn{id: "c1", room: "lobby"})

	cookie := sessionCookie(t, login(t, router, testDashUser, testDashPass))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		User  string      `json:"user"`
		Stats relay.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testDashUser, resp.User)
	assert.Equal(t, []string{"acme"}, resp.Stats.Namespaces)
	assert.Equal(t, []string{"c1 (acme)"}, resp.Stats.Clients)
}

func TestDashboardStats_GarbageCookie(t *testing.T) {
	router, _ := newDashboardRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "dashboard_token", Value: "not-a-jwt"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestDashboardLogout_ClearsCookie(t *testing.T) {
	router, _ := newDashboardRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/logout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestDashboardDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/dashboard", Disabled)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDashboardHub_MirrorFansOutToClients(t *testing.T) {
	hub := NewDashboardHub(zap.NewNop())
	client := &dashboardClient{send: make(chan []byte, 1)}
	hub.add(client)

	hub.MessageDelivered(relay.DeliveryEvent{Namespace: "acme", Room: "lobby", Message: "hi"})

	select {
	case frame := <-client.send:
		assert.JSONEq(t,
			`{"event":"message","data":{"namespace":"acme","room":"lobby","message":"hi"}}`,
			string(frame))
	default:
		t.Fatal("expected a mirror frame on the dashboard client")
	}

	// A removed client gets nothing further.
	hub.remove(client)
	hub.MessageDelivered(relay.DeliveryEvent{Namespace: "acme", Room: "lobby", Message: "again"})
	assert.Empty(t, client.send)
}
