package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/pulserelay/internal/auth"
	"github.com/lalith-99/pulserelay/internal/relay"
)

// TokenHandler issues connection tokens. This is the one endpoint an
// external service calls on behalf of its user before that user's
// client opens a websocket — so it is authorized by the backend API
// key, not by any per-user credential.
type TokenHandler struct {
	apiKey    string
	jwtSecret string
	logger    *zap.Logger
}

func NewTokenHandler(apiKey, jwtSecret string, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		apiKey:    apiKey,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

type tokenRequest struct {
	TenantID string         `json:"tenantId"`
	UserData map[string]any `json:"userData"`
	APIKey   string         `json:"apiKey"`
}

// Issue handles POST /auth/token.
//
// Flow:
//  1. tenantId and userData are required, and userData must carry the
//     room the connection will join — a token with no room is useless.
//  2. API key check, constant-time. subtle.ConstantTimeCompare, not
//     ==: a plain string comparison leaks how many leading bytes
//     matched through response timing.
//  3. Sign a 2h JWT embedding {tenantId, userData} and hand it back
//     with the inputs echoed, so the caller can forward everything to
//     its client in one shot.
func (h *TokenHandler) Issue(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TenantID == "" || req.UserData == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userData and tenantId required"})
		return
	}
	if !relay.ValidTenantID(req.TenantID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}
	if room, _ := req.UserData["room"].(string); room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userData must include a room"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.apiKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
		return
	}

	token, err := auth.GenerateConnectionToken(req.TenantID, req.UserData, h.jwtSecret)
	if err != nil {
		h.logger.Error("failed to generate connection token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"tenantId": req.TenantID,
		"userData": req.UserData,
	})
}
