package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVerifier stands in for the JWT verifier: the gate treats
// verification as a black box, so its tests do too.
type stubVerifier struct {
	claims Claims
	err    error
}

func (s *stubVerifier) Verify(token string) (Claims, error) {
	return s.claims, s.err
}

func TestGate_Authorize(t *testing.T) {
	tests := []struct {
		name     string
		verifier TokenVerifier
		tenantID string
		token    string
		wantErr  error
	}{
		{
			name:     "missing token",
			verifier: &stubVerifier{},
			tenantID: "acme",
			token:    "",
			wantErr:  ErrMissingToken,
		},
		{
			name:     "verification failure",
			verifier: &stubVerifier{err: errors.New("token is expired")},
			tenantID: "acme",
			token:    "some-token",
			wantErr:  ErrInvalidToken,
		},
		{
			name:     "tenant mismatch",
			verifier: &stubVerifier{claims: Claims{TenantID: "other", Room: "lobby"}},
			tenantID: "acme",
			token:    "some-token",
			wantErr:  ErrTenantMismatch,
		},
		{
			name:     "authorized",
			verifier: &stubVerifier{claims: Claims{TenantID: "acme", Room: "lobby"}},
			tenantID: "acme",
			token:    "some-token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(tt.verifier)

			claims, err := gate.Authorize(tt.tenantID, tt.token)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "acme", claims.TenantID)
			assert.Equal(t, "lobby", claims.Room)
		})
	}
}

// A connection that fails authorization must never make it into
// membership: the gate refuses, the caller never registers.
func TestGate_RejectedNeverRegistered(t *testing.T) {
	gate := NewGate(&stubVerifier{err: errors.New("bad signature")})
	ns := newTestNamespace(t, "acme")

	_, err := gate.Authorize("acme", "forged-token")
	require.Error(t, err)

	// The connect path only registers on gate success; nothing was
	// registered, so no snapshot contains the connection and a fanout
	// finds nobody.
	assert.Empty(t, ns.MembersOf("lobby"))
	assert.Empty(t, ns.AllMembers())
	res := ns.SendToRoom("lobby", []byte("secret"))
	assert.Equal(t, DeliveryResult{}, res)
}
