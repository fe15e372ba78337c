package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/mw"
)

func init() { Register("ops", registerOps) }

func allowCIDRs(d deps.Deps) Middleware {
	return mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)
}

func enforceHost(d deps.Deps) Middleware {
	return mw.EnforceHost(d.AllowedHosts, d.Logger)
}

func registerOps(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.With(allowCIDRs(d)).Get("/readyz", handlers.Readyz(d))
	r.With(allowCIDRs(d)).Get("/api/infra", handlers.Infra(d))
	r.With(operatorOnly(d)...).Post("/reload", handlers.Reload(d))
}
