package handlers

import (
	"net/http"

	"github.com/slotlink/api/internal/domain"
	"github.com/slotlink/api/internal/http/middleware"
	"github.com/slotlink/api/internal/http/response"
)

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)

	user, err := h.users.Get(r.Context(), claims.Sub)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, user)
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)

	var update domain.ProfileUpdate
	if err := decode(r, &update); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), claims.Sub, &update)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, user)
}
