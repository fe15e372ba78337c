// Package relay is the cross-device mailbox: a primary tab opens a session,
// a phone completes it, the primary consumes it exactly once.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
)

// Backend errors.
var (
	ErrNotFound   = errors.New("session not found")
	ErrNotPending = errors.New("session is not pending")
	ErrExists     = errors.New("session already exists")
	ErrWrongKind  = errors.New("session carries another kind")
)

// Event is one change notification for a session. Deleted is set when the
// record is gone; Session is nil then.
type Event struct {
	SessionID string               `json:"sessionId"`
	Session   *domain.RelaySession `json:"session,omitempty"`
	Deleted   bool                 `json:"deleted,omitempty"`
}

// Backend is the realtime key/value store holding relay sessions.
type Backend interface {
	// Create stores a new record. ErrExists if the id is taken.
	Create(ctx context.Context, s *domain.RelaySession) error

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.RelaySession, error)

	// Complete moves a pending record to completed with the payload.
	// ErrNotFound when absent, ErrNotPending in any other state.
	Complete(ctx context.Context, id, name, url string) error

	// Delete removes the record. Deleting twice is not an error.
	Delete(ctx context.Context, id string) error

	// Take returns the record and deletes it in one step, so only one
	// caller ever gets it. A non-empty kind that does not match leaves the
	// record in place and returns ErrWrongKind.
	Take(ctx context.Context, id string, kind domain.SessionKind) (*domain.RelaySession, error)

	// DeleteIfPending removes the record only while it is pending.
	// ErrNotFound when absent, ErrNotPending when it moved on; the record is
	// kept then.
	DeleteIfPending(ctx context.Context, id string) error

	// Subscribe sends the current value first, then every change, until
	// ctx is done. The channel is closed afterwards.
	Subscribe(ctx context.Context, id string) (<-chan Event, error)
}

// SweepBackend can list records by creation time.
type SweepBackend interface {
	Backend
	// CreatedBefore returns the ids of records created at or before cutoff.
	CreatedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}
