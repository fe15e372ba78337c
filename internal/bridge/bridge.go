// Package bridge moves a whole bookmark list into and out of a context that
// cannot read the profile's storage, through URL query parameters.
//
// Two carriers exist: the list inline in the URL, or only a relay session
// id whose record holds the list.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
)

// Query parameters of the fullscreen entry URL.
const (
	ParamApps       = "apps"
	ParamFullscreen = "fullscreen"
	ParamSession    = "fullscreen_session"
)

// DefaultRedirector escapes the in-car browser chrome.
const DefaultRedirector = "https://www.youtube.com/redirect?q="

var (
	ErrNoPayload = errors.New("no bridge payload")
	ErrMalformed = errors.New("malformed bridge payload")
	ErrAmbiguous = errors.New("both inline and session payloads present")
)

// Carrier is one way of moving a list through a URL.
type Carrier interface {
	Name() string
	Send(ctx context.Context, list domain.BookmarkList) (url.Values, error)
	Receive(ctx context.Context, v url.Values) (domain.BookmarkList, error)
}

// Strategy names the preferred carrier.
type Strategy string

const (
	StrategyInline  Strategy = "inline"
	StrategySession Strategy = "session"
)

// ParseStrategy falls back to inline for anything unknown.
func ParseStrategy(s string) Strategy {
	if Strategy(strings.ToLower(strings.TrimSpace(s))) == StrategySession {
		return StrategySession
	}
	return StrategyInline
}

// Bridge picks a carrier for sending and recognises both on receipt.
type Bridge struct {
	inline  Carrier
	session Carrier // may be nil
	prefer  Strategy
	logger  logger.Logger
}

// New returns a Bridge. session may be nil, in which case everything goes
// inline.
func New(session Carrier, prefer Strategy, log logger.Logger) *Bridge {
	if log == nil {
		log = logger.NewNop()
	}
	return &Bridge{
		inline:  InlineCarrier{},
		session: session,
		prefer:  prefer,
		logger:  log,
	}
}

// Send encodes list with the preferred carrier. A failing session carrier
// falls back to inline.
func (b *Bridge) Send(ctx context.Context, list domain.BookmarkList) (url.Values, error) {
	if b.prefer == StrategySession && b.session != nil {
		v, err := b.session.Send(ctx, list)
		if err == nil {
			return v, nil
		}
		b.logger.Warn("session carrier failed, falling back to inline",
			logger.Int("items", len(list)),
			logger.Error(err))
	}
	return b.inline.Send(ctx, list)
}

// Receive decodes an incoming hand-off. Anything unusable, including a
// hand-off carrying both parameters, is logged and reported as ok=false so
// the caller keeps its own state.
func (b *Bridge) Receive(ctx context.Context, v url.Values) (domain.BookmarkList, bool) {
	hasInline := v.Get(ParamApps) != ""
	hasSession := v.Get(ParamSession) != ""

	var c Carrier
	switch {
	case hasInline && hasSession:
		b.logger.Warn("ignoring bridge hand-off", logger.Error(ErrAmbiguous))
		return nil, false
	case hasInline:
		c = b.inline
	case hasSession:
		if b.session == nil {
			b.logger.Warn("session hand-off received but no relay is configured")
			return nil, false
		}
		c = b.session
	default:
		return nil, false
	}

	list, err := c.Receive(ctx, v)
	if err != nil {
		b.logger.Warn("failed to decode bridge hand-off",
			logger.String("carrier", c.Name()),
			logger.Error(err))
		return nil, false
	}
	return list, true
}

// EntryURL adds v to the query of base.
func EntryURL(base string, v url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	for k, vals := range v {
		for _, val := range vals {
			q.Add(k, val)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// WrapRedirect routes entry through an external redirector. An empty
// redirector returns entry unchanged.
func WrapRedirect(entry, redirector string) string {
	if redirector == "" {
		return entry
	}
	return redirector + url.QueryEscape(entry)
}

// IsFullscreen reports whether v marks a fullscreen entry.
func IsFullscreen(v url.Values) bool {
	return v.Get(ParamFullscreen) == "1" || v.Get(ParamSession) != ""
}
