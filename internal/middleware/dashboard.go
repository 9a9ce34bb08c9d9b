package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/pulserelay/internal/auth"
)

// ContextKeyDashboardUser is where the guard stores the operator
// username for handlers downstream. A constant so a typo'd key is a
// compile error, not a silent nil.
const ContextKeyDashboardUser = "dashboard_user"

// DashboardAuth guards the operator dashboard. The session rides in an
// httpOnly cookie rather than an Authorization header because the
// dashboard is a browser surface: the cookie goes along automatically
// on the page load AND on the websocket handshake, with no script
// access to the token.
//
// Missing or invalid session redirects to the login page instead of
// answering 401 — the caller is a human in a browser, not an API
// client.
func DashboardAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("dashboard_token")
		if err != nil || token == "" {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}

		claims, err := auth.ParseDashboardToken(token, secret)
		if err != nil {
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}

		c.Set(ContextKeyDashboardUser, claims.Username)
		c.Next()
	}
}

// GetDashboardUser extracts the authenticated operator's username from
// the request context. Empty string if the guard did not run.
func GetDashboardUser(c *gin.Context) string {
	val, exists := c.Get(ContextKeyDashboardUser)
	if !exists {
		return ""
	}
	username, ok := val.(string)
	if !ok {
		return ""
	}
	return username
}
