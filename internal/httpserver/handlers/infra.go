package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
)

type componentStatus struct {
	OK            bool           `json:"ok"`
	EntriesLoaded *int           `json:"entries_loaded,omitempty"`
	Regions       map[string]int `json:"regions,omitempty"`
	LastReload    string         `json:"last_reload,omitempty"`
	Mode          string         `json:"mode,omitempty"`
	Impact        string         `json:"impact,omitempty"`
	Error         string         `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of the default set and of the relay backend.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"defaults": defaultsStatus(d),
			"relay":    relayStatus(r.Context(), d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     overallStatus(components),
			Components: components,
		})
	}
}

func defaultsStatus(d deps.Deps) componentStatus {
	if d.DefaultsIndex == nil {
		return componentStatus{OK: false, Error: "index not initialized"}
	}

	count := d.DefaultsIndex.Count()
	lastReload := d.DefaultsIndex.GetLastReload()
	lastReloadStr := "never"
	if !lastReload.IsZero() {
		lastReloadStr = lastReload.Format("2006-01-02 15:04:05")
	}

	regions := make(map[string]int)
	for code, n := range d.DefaultsIndex.RegionCounts() {
		regions[string(code)] = n
	}

	st := componentStatus{
		OK:            count > 0,
		EntriesLoaded: &count,
		Regions:       regions,
		LastReload:    lastReloadStr,
	}
	if count == 0 {
		st.Impact = "new-profiles-start-empty"
	}
	return st
}

func relayStatus(ctx context.Context, d deps.Deps) componentStatus {
	if d.Relay == nil {
		return componentStatus{
			OK:     false,
			Mode:   d.RelayBackend,
			Impact: "qr-and-fullscreen-disabled",
			Error:  "relay not initialized",
		}
	}
	if d.RedisClient == nil {
		return componentStatus{
			OK:     true,
			Mode:   "memory",
			Impact: "sessions-lost-on-restart",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "redis",
			Impact: "qr-and-fullscreen-disabled",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:   true,
		Mode: "redis",
	}
}

func overallStatus(components map[string]componentStatus) string {
	// The relay is what the server exists for
	if relay, exists := components["relay"]; exists && !relay.OK {
		return "critical"
	}

	// Missing defaults only affect profiles that bootstrap now
	if defaults, exists := components["defaults"]; exists && !defaults.OK {
		return "degraded"
	}

	return "ok"
}
