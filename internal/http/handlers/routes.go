package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	apimw "github.com/slotlink/api/internal/http/middleware"
	"github.com/slotlink/api/pkg/middleware"
	"github.com/slotlink/api/pkg/session"
)

// Routes assembles the full HTTP surface: the public API under /api/v1 and
// the chat webhook. Nonce-minting endpoints sit behind the rate limiter.
func Routes(
	h *Handlers,
	sessions *session.Manager,
	limiter *apimw.RateLimiter,
	webhook http.Handler,
	corsOrigins []string,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(apimw.ParseSession(sessions))

	r.Method(http.MethodPost, "/telegram/webhook", webhook)

	r.Route("/api/v1", func(r chi.Router) {
		// anonymous endpoints that mint secrets
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware())
			r.Post("/auth/telegram/start", h.StartLogin)
			r.Post("/bookings/start", h.StartBooking)
		})

		r.Get("/auth/telegram/finish", h.FinishLogin)
		r.Post("/auth/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Get("/schedule/{slug}", h.Schedule)

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireSession)
			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)
			r.Post("/bookings", h.CreateBooking)
			r.Get("/bookings/pending", h.PendingBookings)
			r.Post("/bookings/{id}/decision", h.DecideBooking)
		})
	})

	return r
}
