// Package relayclient talks to a teslahub server: it is a relay.Backend
// over HTTP and websocket, and a source of default bookmarks.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrSnakeDoc/teslahub/internal/api"
	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/region"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
	"github.com/MrSnakeDoc/teslahub/internal/utils"
)

// Client is a remote relay backend.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger logger.Logger
}

var _ relay.Backend = (*Client)(nil)

// New returns a client for the server at baseURL. httpClient may be nil.
func New(baseURL string, httpClient *http.Client, log logger.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{base: u, http: httpClient, logger: log}, nil
}

// BaseURL is the server address without a trailing slash.
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) Create(ctx context.Context, s *domain.RelaySession) error {
	_, err := c.CreateSession(ctx, api.CreateSessionRequest{
		SessionID: s.SessionID,
		Kind:      s.Kind,
		Name:      s.Name,
		URL:       s.URL,
		Apps:      s.Apps,
	})
	return err
}

// CreateSession creates a session and returns it with its QR URL. The
// server stamps createdAt.
func (c *Client) CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.CreateSessionResponse, error) {
	var out api.CreateSessionResponse
	status, err := c.do(ctx, http.MethodPost, "/api/sessions", req, &out)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusCreated, http.StatusOK:
		return &out, nil
	case http.StatusConflict:
		return nil, relay.ErrExists
	default:
		return nil, fmt.Errorf("create session: unexpected status %d", status)
	}
}

func (c *Client) Get(ctx context.Context, id string) (*domain.RelaySession, error) {
	var s domain.RelaySession
	status, err := c.do(ctx, http.MethodGet, sessionPath(id, ""), nil, &s)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return &s, nil
	case http.StatusNotFound:
		return nil, relay.ErrNotFound
	default:
		return nil, fmt.Errorf("get session: unexpected status %d", status)
	}
}

// Complete submits through the server: 404 is a missing session, 410 one
// that is no longer pending. The server also answers 404 for a session
// past its deadline.
func (c *Client) Complete(ctx context.Context, id, name, rawURL string) error {
	status, err := c.do(ctx, http.MethodPost, sessionPath(id, "/complete"),
		api.CompleteRequest{Name: name, URL: rawURL}, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return relay.ErrNotFound
	case http.StatusGone:
		return relay.ErrNotPending
	case http.StatusBadRequest:
		return fmt.Errorf("%w: rejected by server", domain.ErrInvalidURL)
	default:
		return fmt.Errorf("complete session: unexpected status %d", status)
	}
}

func (c *Client) Delete(ctx context.Context, id string) error {
	status, err := c.do(ctx, http.MethodDelete, sessionPath(id, ""), nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK && status != http.StatusNotFound {
		return fmt.Errorf("delete session: unexpected status %d", status)
	}
	return nil
}

// Take consumes a session on the server.
func (c *Client) Take(ctx context.Context, id string, kind domain.SessionKind) (*domain.RelaySession, error) {
	path := sessionPath(id, "/take")
	if kind != "" {
		path += "?kind=" + url.QueryEscape(string(kind))
	}
	var s domain.RelaySession
	status, err := c.do(ctx, http.MethodPost, path, nil, &s)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return &s, nil
	case http.StatusNotFound:
		return nil, relay.ErrNotFound
	case http.StatusUnprocessableEntity:
		return nil, relay.ErrWrongKind
	default:
		return nil, fmt.Errorf("take session: unexpected status %d", status)
	}
}

func (c *Client) DeleteIfPending(ctx context.Context, id string) error {
	status, err := c.do(ctx, http.MethodDelete, sessionPath(id, "?ifPending=1"), nil, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return relay.ErrNotFound
	case http.StatusGone:
		return relay.ErrNotPending
	default:
		return fmt.Errorf("delete session: unexpected status %d", status)
	}
}

// Subscribe opens the session's websocket event stream.
func (c *Client) Subscribe(ctx context.Context, id string) (<-chan relay.Event, error) {
	wsURL := *c.base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimRight(wsURL.Path, "/") + sessionPath(id, "/events")

	// The stream outlives any request timeout; ctx bounds it instead.
	streamClient := *c.http
	streamClient.Timeout = 0

	conn, _, err := websocket.Dial(ctx, wsURL.String(), &websocket.DialOptions{HTTPClient: &streamClient})
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	// List hand-offs can exceed the default frame limit.
	conn.SetReadLimit(1 << 20)

	out := make(chan relay.Event)
	go func() {
		defer close(out)
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

		for {
			var ev relay.Event
			if err := wsjson.Read(ctx, conn, &ev); err != nil {
				if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
					c.logger.Warn("session event stream ended",
						logger.String("session_id", id),
						logger.Error(err))
				}
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Defaults fetches the default set for r. It satisfies tab.DefaultsSource.
func (c *Client) Defaults(ctx context.Context, r region.Code) (domain.BookmarkList, error) {
	var out api.DefaultsResponse
	path := "/api/defaults?region=" + url.QueryEscape(string(r))
	status, err := c.do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch defaults: unexpected status %d", status)
	}
	return out.Apps, nil
}

// do sends body as JSON and decodes a 2xx reply into out. Non-2xx replies
// are returned as a status with a nil error; transport failures as error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode >= 300 {
		var e api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			c.logger.Debug("server rejected request",
				logger.String("path", path),
				logger.Int("status", resp.StatusCode),
				logger.String("error", e.Error))
		}
		return resp.StatusCode, nil
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func sessionPath(id, suffix string) string {
	return "/api/sessions/" + url.PathEscape(id) + suffix
}
