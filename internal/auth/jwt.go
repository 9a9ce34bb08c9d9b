package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lalith-99/pulserelay/internal/relay"
)

// Token lifetimes. Connection tokens are what external services mint
// for their end users before connecting; dashboard tokens live in an
// httpOnly cookie for the operator session.
const (
	ConnectionTokenTTL = 2 * time.Hour
	DashboardTokenTTL  = 1 * time.Hour
)

// ConnectionClaims is the payload inside every connection token.
//
// UserData is deliberately an open map: the issuing service can embed
// whatever it wants about its user, and the relay only ever reads the
// one field it cares about — "room". Everything else rides along
// opaquely and comes back to the caller of /auth/token verbatim.
type ConnectionClaims struct {
	TenantID string         `json:"tenantId"`
	UserData map[string]any `json:"userData"`
	jwt.RegisteredClaims
}

// Room extracts the room label from UserData. Empty string if absent
// or not a string — callers treat that as a malformed token.
func (c *ConnectionClaims) Room() string {
	room, _ := c.UserData["room"].(string)
	return room
}

// GenerateConnectionToken creates the signed HS256 JWT a client
// presents on its websocket handshake.
//
// Why HS256? One shared secret, symmetric, fast — fine while issuance
// and verification live in the same process. Splitting the issuer out
// would mean switching to RS256 so only it holds the signing key.
func GenerateConnectionToken(tenantID string, userData map[string]any, secret string) (string, error) {
	now := time.Now()

	claims := ConnectionClaims{
		TenantID: tenantID,
		UserData: userData,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ConnectionTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "pulserelay",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseConnectionToken validates a connection token string and
// extracts the claims. It verifies the signature against our secret,
// the expiry, and that the signing method is HMAC — a token signed
// with "none" or an RSA key is rejected before signature checking
// (the classic algorithm-confusion attack).
func ParseConnectionToken(tokenString, secret string) (*ConnectionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ConnectionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*ConnectionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// Verifier adapts JWT verification to the relay.TokenVerifier
// interface the authorization gate consumes. It is stateless beyond
// the secret and safe for concurrent use.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

func (v *Verifier) Verify(token string) (relay.Claims, error) {
	claims, err := ParseConnectionToken(token, v.secret)
	if err != nil {
		return relay.Claims{}, err
	}

	room := claims.Room()
	if room == "" {
		return relay.Claims{}, fmt.Errorf("token userData carries no room")
	}

	return relay.Claims{
		TenantID: claims.TenantID,
		Room:     room,
	}, nil
}

// DashboardClaims is the payload of the operator-session cookie.
type DashboardClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateDashboardToken creates the short-lived session token set as
// the dashboard_token cookie after a successful operator login.
func GenerateDashboardToken(username, secret string) (string, error) {
	now := time.Now()

	claims := DashboardClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(DashboardTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "pulserelay",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign dashboard token: %w", err)
	}

	return signed, nil
}

// ParseDashboardToken validates an operator-session token.
func ParseDashboardToken(tokenString, secret string) (*DashboardClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DashboardClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard token: %w", err)
	}

	claims, ok := token.Claims.(*DashboardClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid dashboard token claims")
	}

	return claims, nil
}
