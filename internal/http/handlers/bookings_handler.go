package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/slotlink/api/internal/domain"
	"github.com/slotlink/api/internal/http/middleware"
	"github.com/slotlink/api/internal/http/response"
	"github.com/slotlink/api/internal/service"
)

// StartBooking opens the booking handshake for an anonymous client: the
// candidate booking is parked on a nonce, nothing is written to the schedule.
func (h *Handlers) StartBooking(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingRequest
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	start, err := h.bookings.StartNonce(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, start)
}

// CreateBooking is the authenticated path: a logged-in client books a slot
// directly, skipping the chat handshake.
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)

	var req domain.BookingRequest
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	id := service.Identity{UserID: claims.Sub, TelegramUserID: claims.ChatID}
	booking, err := h.bookings.CreateForClient(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, booking)
}

func (h *Handlers) PendingBookings(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)

	pending, err := h.bookings.Pending(r.Context(), claims.Sub)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, pending)
}

type decisionRequest struct {
	Action string `json:"action"`
}

// DecideBooking lets the owner settle a pending booking from the web, the
// same transition the chat buttons drive.
func (h *Handlers) DecideBooking(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)

	bookingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	var req decisionRequest
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	action, ok := domain.ParseDecisionAction(req.Action)
	if !ok {
		response.BadRequest(w, "action must be approve or reject")
		return
	}

	id := service.Identity{UserID: claims.Sub, TelegramUserID: claims.ChatID}
	booking, err := h.bookings.Decide(r.Context(), id, bookingID, action, nil)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, booking)
}
