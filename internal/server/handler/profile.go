package handler

import (
	"net/http"

	"github.com/alanyoungcy/basketbot/internal/strategy"
)

// ProfileSource exposes the active trader profile.
type ProfileSource interface {
	Profile() strategy.Profile
}

// ProfileHandler serves the active rule table and basket definitions.
type ProfileHandler struct {
	source ProfileSource
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(source ProfileSource) *ProfileHandler {
	return &ProfileHandler{source: source}
}

// Get returns the active profile.
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Profile())
}
