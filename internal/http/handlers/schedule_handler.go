package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/slotlink/api/internal/http/response"
)

// Schedule is the public page payload: owner profile plus the free slots
// computed server-side for the configured horizon.
func (h *Handlers) Schedule(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	view, err := h.bookings.Schedule(r.Context(), slug)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, view)
}
