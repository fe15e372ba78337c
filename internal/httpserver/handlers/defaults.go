package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/teslahub/internal/api"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/region"
)

var errUnknownRegion = errors.New("unknown region")

// Defaults serves the default bookmark set for a region. ?region= wins over
// ?tz=; with neither, only the Global entries are returned.
func Defaults(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		code := region.Global
		switch {
		case strings.TrimSpace(q.Get("region")) != "":
			c, ok := region.Parse(q.Get("region"))
			if !ok {
				writeError(w, http.StatusBadRequest, errUnknownRegion)
				return
			}
			code = c
		case strings.TrimSpace(q.Get("tz")) != "":
			code = region.Detect(strings.TrimSpace(q.Get("tz")))
		}

		writeJSON(w, http.StatusOK, api.DefaultsResponse{
			Region: string(code),
			Apps:   d.DefaultsIndex.ForRegion(code),
		})
	}
}
