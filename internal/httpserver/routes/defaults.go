package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/handlers"
)

func init() { Register("defaults", registerDefaults) }

func registerDefaults(r chi.Router, d deps.Deps) {
	r.Get("/api/defaults", handlers.Defaults(d))
}
