package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/mw"
)

func init() { Register("sessions", registerSessions) }

func registerSessions(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(submitLimit(d))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", handlers.CreateSession(d))
		r.Get("/{id}", handlers.GetSession(d))
		r.Delete("/{id}", handlers.DeleteSession(d))
		r.With(limit).Post("/{id}/complete", handlers.CompleteSession(d))
		r.Post("/{id}/take", handlers.TakeSession(d))
		r.Get("/{id}/events", handlers.SessionEvents(d))
		r.Get("/{id}/qr.png", handlers.SessionQR(d))
	})
}

func submitLimit(d deps.Deps) mw.RateLimitConfig {
	return mw.RateLimitConfig{
		Burst:             d.SubmitBurst,
		RefillPerIPPerMin: d.SubmitPerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
		Logger:            d.Logger,
		Now:               d.TimeNow,
	}
}
