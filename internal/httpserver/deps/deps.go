package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/teslahub/internal/index"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time     // for testing, defaults to time.Now
	AllowedHosts   []string             // Host headers allowed to access the admin endpoints
	AllowedCIDRS   []string             // IPs allowed to access readyz/reload endpoints
	AllowedOrigins []string             // CORS origins allowed to call the API
	TrustProxy     bool                 // true if running behind a trusted reverse proxy (e.g., cloudflared)
	PublicURL      string               // base of the QR links
	RedirectURL    string               // redirector prefix for fullscreen launch URLs
	DefaultsFile   string               // Path to the default bookmark set
	RelayBackend   string               // "redis" | "memory", reported by /api/infra
	RedisClient    *redis.Client        // Redis client connection (nil with the memory backend)
	Relay          *relay.Manager       // relay sessions
	DefaultsIndex  *index.DefaultsIndex // In-memory default bookmark set
	ReloadTrigger  chan struct{}        // Channel to trigger manual defaults reload
	SubmitBurst    int                  // phone submissions allowed in a burst per client
	SubmitPerMin   int                  // phone submissions refilled per minute per client
}

// Now returns d.TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
