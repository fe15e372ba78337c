package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/mw"
)

func init() { Register("add-app", registerAddApp) }

func registerAddApp(r chi.Router, d deps.Deps) {
	r.Get("/add-app/{id}", handlers.AddAppPage(d))
	r.With(mw.RateLimit(submitLimit(d))).Post("/add-app/{id}", handlers.AddAppSubmit(d))
}
