package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
)

//go:embed templates/add_app.html
var templateFS embed.FS

var addAppTmpl = template.Must(template.ParseFS(templateFS, "templates/add_app.html"))

// Phone page states.
const (
	pageReady   = "ready"
	pageError   = "error"
	pageSuccess = "success"
)

// closeAfterMs is how long the success page stays before closing itself.
const closeAfterMs = 1500

type addAppPage struct {
	State        string
	Reason       string
	Theme        domain.Theme
	Action       string
	Name         string
	URL          string
	CloseAfterMs int
}

// AddAppPage is the page a phone opens from the QR code. It verifies the
// session before showing the form.
func AddAppPage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		page := addAppPage{
			State:  pageReady,
			Theme:  domain.ParseTheme(r.URL.Query().Get("theme")),
			Action: "/add-app/" + url.PathEscape(id),
		}

		if _, err := d.Relay.Inspect(r.Context(), id); err != nil {
			d.Logger.Info("add-app page rejected session",
				logger.String("session_id", id),
				logger.Error(err))
			page.State = pageError
			page.Reason = relay.Reason(err)
			renderAddApp(d, w, inspectStatus(err), page)
			return
		}

		renderAddApp(d, w, http.StatusOK, page)
	}
}

// AddAppSubmit handles the phone form. Validation and transient failures
// show the form again; a session that is gone ends the flow.
func AddAppSubmit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			renderAddApp(d, w, http.StatusBadRequest, addAppPage{
				State:  pageError,
				Reason: relay.Reason(err),
				Theme:  domain.ThemeLight,
			})
			return
		}

		page := addAppPage{
			State:  pageReady,
			Theme:  domain.ParseTheme(r.PostForm.Get("theme")),
			Action: "/add-app/" + url.PathEscape(id),
			Name:   r.PostForm.Get("name"),
			URL:    r.PostForm.Get("url"),
		}

		item, err := d.Relay.Submit(r.Context(), id, page.Name, page.URL)
		if err != nil {
			page.Reason = relay.Reason(err)
			status := http.StatusBadRequest
			switch {
			case relay.Retryable(err) && !domain.IsValidation(err):
				status = http.StatusBadGateway
				d.Logger.Error("add-app submit failed",
					logger.String("session_id", id),
					logger.Error(err))
			case !relay.Retryable(err):
				page.State = pageError
				status = http.StatusGone
			}
			renderAddApp(d, w, status, page)
			return
		}

		d.Logger.Info("add-app submitted",
			logger.String("session_id", id),
			logger.String("url", item.URL))

		renderAddApp(d, w, http.StatusOK, addAppPage{
			State:        pageSuccess,
			Theme:        page.Theme,
			CloseAfterMs: closeAfterMs,
		})
	}
}

func renderAddApp(d deps.Deps, w http.ResponseWriter, status int, page addAppPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := addAppTmpl.Execute(w, page); err != nil {
		d.Logger.Error("failed to render add-app page", logger.Error(err))
	}
}
