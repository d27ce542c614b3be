package web

import (
	"errors"
	"net/http"
)

// ErrUnauthenticated means the request carried no resolvable user.
var ErrUnauthenticated = errors.New("web: authentication required")

// Identity resolves the requesting user. Token issuance and verification
// live outside this service; the server only needs a user id to scope
// every query by.
type Identity interface {
	Requester(r *http.Request) (string, error)
}

// HeaderIdentity trusts a user id header set by the fronting auth proxy.
type HeaderIdentity struct {
	Header string // defaults to X-User-ID
}

// Requester returns the user id from the configured header.
func (h HeaderIdentity) Requester(r *http.Request) (string, error) {
	name := h.Header
	if name == "" {
		name = "X-User-ID"
	}
	user := r.Header.Get(name)
	if user == "" {
		return "", ErrUnauthenticated
	}
	return user, nil
}
