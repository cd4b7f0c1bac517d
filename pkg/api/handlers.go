package api

import (
	"net/http"

	"github.com/packstore/packstore/pkg/domain"
	"github.com/packstore/packstore/pkg/entries"
)

// Handler provides HTTP handlers for the packstore API
type Handler struct {
	repo *entries.Repository
}

// NewHandler creates a new API handler with dependency injection
func NewHandler(repo *entries.Repository) *Handler {
	return &Handler{repo: repo}
}

// actorFromRequest reads the calling actor from request headers. Requests
// without identity headers get admin so single-user deployments work out of
// the box.
func actorFromRequest(r *http.Request) domain.Actor {
	id := r.Header.Get("X-Actor-Id")
	role := r.Header.Get("X-Actor-Role")
	if id == "" && role == "" {
		return domain.Actor{ID: "anonymous", Role: domain.RoleAdmin}
	}
	if id == "" {
		id = "anonymous"
	}
	return domain.Actor{ID: id, Role: domain.ParseRole(role)}
}
