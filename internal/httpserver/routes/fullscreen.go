package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/handlers"
)

func init() { Register("fullscreen", registerFullscreen) }

func registerFullscreen(r chi.Router, d deps.Deps) {
	r.Post("/api/fullscreen", handlers.Fullscreen(d))
}
