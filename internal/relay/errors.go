package relay

import "errors"

// Authorization failures for the connection path. These are sentinel
// values so callers can branch with errors.Is; every one of them means
// "refuse this one connection attempt" — none of them is fatal to the
// process or to any other tenant.
var (
	// ErrMissingToken: the handshake presented no token at all.
	ErrMissingToken = errors.New("authentication error: no token provided")

	// ErrInvalidToken: the token failed verification — bad signature,
	// expired, or malformed.
	ErrInvalidToken = errors.New("authentication error: invalid or expired token")

	// ErrTenantMismatch: the token is valid but was issued for a
	// different tenant than the namespace being connected to.
	ErrTenantMismatch = errors.New("authentication error: tenant ID mismatch")
)

// ErrInvalidTenantID rejects tenant identifiers outside the safe
// character set before they are ever used as a routing key.
var ErrInvalidTenantID = errors.New("invalid tenant ID")
