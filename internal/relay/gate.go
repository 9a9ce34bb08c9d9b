package relay

// Claims is what survives token verification: who the connection
// belongs to and which room it joins. Transient — it exists only
// between authorization and registration, and is never stored.
type Claims struct {
	TenantID string
	Room     string
}

// TokenVerifier is the black-box capability the gate consumes.
// The real implementation (JWT, HS256) lives in internal/auth; the
// gate neither knows nor cares how verification works.
//
// Verify must check signature, expiry, and shape, and return an error
// for anything it cannot vouch for.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// Gate decides, once per connection attempt, whether a presented token
// admits the caller to a tenant's namespace. It is the ONLY place
// tenant isolation is enforced on the real-time path.
//
// The gate is stateless: it holds read-only dependencies and may be
// called from any number of goroutines at once.
type Gate struct {
	verifier TokenVerifier
}

func NewGate(verifier TokenVerifier) *Gate {
	return &Gate{verifier: verifier}
}

// Authorize validates the token and checks that it was issued for
// namespaceTenantID. On any error the caller must refuse to register
// the connection and close the transport — an unauthorized connection
// must never appear in any membership snapshot.
func (g *Gate) Authorize(namespaceTenantID, token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMissingToken
	}

	claims, err := g.verifier.Verify(token)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	if claims.TenantID != namespaceTenantID {
		return Claims{}, ErrTenantMismatch
	}

	return claims, nil
}
