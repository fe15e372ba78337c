package handlers

import (
	"fmt"
	"net/http"

	"github.com/MrSnakeDoc/teslahub/internal/api"
	"github.com/MrSnakeDoc/teslahub/internal/bridge"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
)

// Fullscreen builds the URL that reopens a list in a fullscreen tab. The
// session strategy parks the list in a relay session; if that fails the
// list goes inline.
func Fullscreen(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.FullscreenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
			return
		}
		if err := req.Apps.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		b := bridge.New(bridge.NewSessionCarrier(d.Relay), bridge.ParseStrategy(req.Strategy), d.Logger)
		v, err := b.Send(r.Context(), req.Apps)
		if err != nil {
			writeError(w, backendStatus(d, err), err)
			return
		}
		entry, err := bridge.EntryURL(d.PublicURL+"/", v)
		if err != nil {
			d.Logger.Error("failed to build entry url", logger.Error(err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		carrier := bridge.StrategyInline
		if v.Has(bridge.ParamSession) {
			carrier = bridge.StrategySession
		}
		writeJSON(w, http.StatusOK, api.FullscreenResponse{
			Carrier:   string(carrier),
			EntryURL:  entry,
			LaunchURL: bridge.WrapRedirect(entry, d.RedirectURL),
		})
	}
}
