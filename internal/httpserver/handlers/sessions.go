package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/MrSnakeDoc/teslahub/internal/api"
	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
)

const (
	qrSize         = 256
	eventWriteWait = 5 * time.Second
)

var errUnknownKind = errors.New("unknown session kind")

// CreateSession creates a pending relay session. The server stamps
// createdAt; the caller may choose the id.
func CreateSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateSessionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
			return
		}

		switch req.Kind {
		case "", domain.KindItem:
		case domain.KindList:
			if err := req.Apps.Validate(); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		default:
			writeError(w, http.StatusBadRequest, errUnknownKind)
			return
		}

		s, err := d.Relay.Deposit(r.Context(), relay.OpenRequest{
			Kind:      req.Kind,
			SessionID: strings.TrimSpace(req.SessionID),
			Name:      req.Name,
			URL:       req.URL,
			Apps:      req.Apps,
		})
		if err != nil {
			writeError(w, backendStatus(d, err), err)
			return
		}

		d.Logger.Info("relay session created",
			logger.String("session_id", s.SessionID),
			logger.String("kind", string(s.Kind)))

		writeJSON(w, http.StatusCreated, api.CreateSessionResponse{
			Session:   s,
			QRURL:     relay.QRURL(d.PublicURL, s.SessionID, req.Theme),
			ExpiresAt: d.Relay.ExpiresAt(s).UnixMilli(),
		})
	}
}

// GetSession returns the raw record.
func GetSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Relay.Backend().Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, backendStatus(d, err), err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// CompleteSession is the secondary device's submit. A missing session is
// 404, one that is no longer pending 410; both carry the expired reason,
// as a session is only ever missing after it was used or timed out. A
// session past its deadline is removed and answered like a missing one.
func CompleteSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CompleteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
			return
		}

		item, err := domain.NewItem(req.Name, req.URL)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		id := chi.URLParam(r, "id")
		if err := d.Relay.Complete(r.Context(), id, item.Name, item.URL); err != nil {
			status := backendStatus(d, err)
			switch status {
			case http.StatusNotFound, http.StatusGone:
				err = relay.ErrSessionExpired
			case http.StatusBadGateway:
				err = relay.ErrSubmitFailed
			}
			writeError(w, status, err)
			return
		}

		d.Logger.Info("relay session completed",
			logger.String("session_id", id))

		writeJSON(w, http.StatusOK, api.CompleteResponse{Name: item.Name, URL: item.URL})
	}
}

// DeleteSession is idempotent. With ?ifPending=1 it only deletes a pending
// session: 404 when it is missing, 410 when it was completed.
func DeleteSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if r.URL.Query().Get("ifPending") != "" {
			if err := d.Relay.Backend().DeleteIfPending(r.Context(), id); err != nil {
				writeError(w, backendStatus(d, err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := d.Relay.Backend().Delete(r.Context(), id); err != nil {
			writeError(w, backendStatus(d, err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// TakeSession returns a session and deletes it, once. ?kind= restricts it
// to one session kind: 422 on a mismatch, and the session is kept.
func TakeSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		kind := domain.SessionKind(r.URL.Query().Get("kind"))
		s, err := d.Relay.Consume(r.Context(), id, kind)
		if err != nil {
			writeError(w, backendStatus(d, err), err)
			return
		}
		d.Logger.Debug("relay session taken", logger.String("session_id", id))
		writeJSON(w, http.StatusOK, s)
	}
}

// SessionEvents streams relay.Event values over a websocket: the current
// state first, then every change, until the client leaves.
func SessionEvents(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns(d.AllowedOrigins),
		})
		if err != nil {
			d.Logger.Warn("websocket upgrade failed",
				logger.String("session_id", id),
				logger.Error(err))
			return
		}
		defer func() { _ = conn.CloseNow() }()

		// CloseRead cancels ctx when the client goes away.
		ctx := conn.CloseRead(r.Context())

		events, err := d.Relay.Backend().Subscribe(ctx, id)
		if err != nil {
			d.Logger.Error("failed to subscribe to relay session",
				logger.String("session_id", id),
				logger.Error(err))
			_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
			return
		}

		for ev := range events {
			if err := writeEvent(ctx, conn, ev); err != nil {
				d.Logger.Debug("session event stream closed",
					logger.String("session_id", id),
					logger.Error(err))
				return
			}
		}
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev relay.Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteWait)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}

// originPatterns turns CORS origins into the host patterns websocket.Accept
// expects. An empty list only admits same-host pages.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SessionQR renders the add-app URL of a pending session as a PNG.
func SessionQR(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := d.Relay.Inspect(r.Context(), id); err != nil {
			writeError(w, inspectStatus(err), err)
			return
		}

		var theme domain.Theme
		if t := r.URL.Query().Get("theme"); t != "" {
			theme = domain.ParseTheme(t)
		}
		png, err := qrcode.Encode(relay.QRURL(d.PublicURL, id, theme), qrcode.Medium, qrSize)
		if err != nil {
			d.Logger.Error("failed to render qr code",
				logger.String("session_id", id),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}

// inspectStatus maps relay.Inspect errors to status codes.
func inspectStatus(err error) int {
	switch {
	case errors.Is(err, relay.ErrNoSessionID):
		return http.StatusBadRequest
	case errors.Is(err, relay.ErrInvalidSession):
		return http.StatusNotFound
	case errors.Is(err, relay.ErrSessionExpired):
		return http.StatusGone
	default:
		return http.StatusBadGateway
	}
}
