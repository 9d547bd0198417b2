// Package handlers implements the JSON API surface.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/slotlink/api/internal/domain"
	"github.com/slotlink/api/internal/http/response"
	"github.com/slotlink/api/internal/service"
	"github.com/slotlink/api/pkg/config"
	"github.com/slotlink/api/pkg/logger"
	"github.com/slotlink/api/pkg/session"
)

type Handlers struct {
	logins   service.LoginService
	bookings service.BookingService
	users    service.UserService
	sessions *session.Manager
	cfg      *config.Config
}

func New(
	logins service.LoginService,
	bookings service.BookingService,
	users service.UserService,
	sessions *session.Manager,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		logins:   logins,
		bookings: bookings,
		users:    users,
		sessions: sessions,
		cfg:      cfg,
	}
}

func decode(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeServiceError maps flow errors onto the JSON error surface.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "not found")
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, "not allowed")
	case errors.Is(err, domain.ErrSlotTaken):
		response.Conflict(w, "slot already taken", response.CodeSlotTaken)
	case errors.Is(err, domain.ErrSlugTaken):
		response.Conflict(w, "slug already taken", response.CodeSlugTaken)
	case errors.Is(err, domain.ErrAlreadyDecided):
		response.Conflict(w, "booking already decided", response.CodeAlreadyDecided)
	case errors.Is(err, domain.ErrExpired):
		response.Gone(w, "link expired")
	case errors.Is(err, domain.ErrInvalidToken):
		response.WriteError(w, http.StatusUnauthorized, "invalid or used token", response.CodeInvalidToken)
	default:
		logger.ErrorContext(r.Context(), "Unhandled service error", "error", err)
		response.InternalError(w, "internal error")
	}
}
