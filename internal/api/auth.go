// Package api implements the HTTP surface of the herdroute service.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authorized reports whether the request carries the configured bearer
// token. An empty configured token leaves the API open, the dev default.
func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return false
	}
	tok := strings.TrimSpace(authz[len("Bearer "):])
	return subtle.ConstantTimeCompare([]byte(tok), []byte(s.authToken)) == 1
}

// requireAuth writes a 401 problem when the request is not authorized.
func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) bool {
	if s.authorized(r) {
		return true
	}
	writeProblem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required", r.URL.Path)
	return false
}
