package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

// group is a named set of routes sharing middlewares.
type group struct {
	name string
	reg  Registrar
	mws  []Middleware
}

var registry []group

// Register adds a route group. Files in this package call it from init.
func Register(name string, reg Registrar, mws ...Middleware) {
	registry = append(registry, group{name: name, reg: reg, mws: mws})
}

// RegisterAll mounts every group on r. Called once per router.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range registry {
		target := r
		if len(g.mws) > 0 {
			target = r.With(g.mws...)
		}
		g.reg(target, d)
		if d.Logger != nil {
			d.Logger.Debug("routes registered", logger.String("group", g.name))
		}
	}
}

// operatorOnly restricts a route to the configured networks and hosts.
func operatorOnly(d deps.Deps) []Middleware {
	return []Middleware{
		allowCIDRs(d),
		enforceHost(d),
	}
}
