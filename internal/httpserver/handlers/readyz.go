package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz is ready once the relay backend answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.RedisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.RedisClient.Ping(ctx).Err(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, readyzResponse{
					Ready: false,
					Error: "redis unreachable",
				})
				return
			}
		}

		writeJSON(w, http.StatusOK, readyzResponse{
			Ready: true,
		})
	}
}
