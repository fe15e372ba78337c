// Package api holds the JSON bodies shared by the HTTP handlers and the
// relay client.
package api

import "github.com/MrSnakeDoc/teslahub/internal/domain"

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	SessionID string              `json:"sessionId,omitempty"`
	Kind      domain.SessionKind  `json:"kind,omitempty"`
	Name      string              `json:"name,omitempty"`
	URL       string              `json:"url,omitempty"`
	Apps      domain.BookmarkList `json:"apps,omitempty"`
	Theme     domain.Theme        `json:"theme,omitempty"`
}

// CreateSessionResponse answers POST /api/sessions. ExpiresAt is in
// milliseconds since the epoch; the server refuses completions after it.
type CreateSessionResponse struct {
	Session   *domain.RelaySession `json:"session"`
	QRURL     string               `json:"qrUrl"`
	ExpiresAt int64                `json:"expiresAt"`
}

// CompleteRequest is the body of POST /api/sessions/{id}/complete.
type CompleteRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CompleteResponse echoes the stored bookmark fields.
type CompleteResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DefaultsResponse answers GET /api/defaults.
type DefaultsResponse struct {
	Region string              `json:"region"`
	Apps   domain.BookmarkList `json:"apps"`
}

// FullscreenRequest is the body of POST /api/fullscreen.
type FullscreenRequest struct {
	Apps     domain.BookmarkList `json:"apps"`
	Strategy string              `json:"strategy,omitempty"`
}

// FullscreenResponse carries the entry URL and the same URL wrapped in the
// configured redirector, which is what the in-car browser should open.
type FullscreenResponse struct {
	Carrier   string `json:"carrier"`
	EntryURL  string `json:"entryUrl"`
	LaunchURL string `json:"launchUrl"`
}

// ErrorResponse is the body of every error reply. Reason is the text meant
// for the user.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
