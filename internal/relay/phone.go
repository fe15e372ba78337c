package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
)

// Errors seen by the device completing a session. Each has a fixed
// human-readable reason (see Reason).
var (
	ErrNoSessionID    = errors.New("no session id")
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired or already used")
	ErrVerifyFailed   = errors.New("session verification failed")
	ErrSubmitFailed   = errors.New("submit failed")
)

// Reason returns the message shown to the user for err.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSessionID):
		return "No session ID provided."
	case errors.Is(err, ErrInvalidSession):
		return "This QR session is invalid or has expired."
	case errors.Is(err, ErrSessionExpired):
		return "This QR code has already been used or has expired."
	case errors.Is(err, ErrVerifyFailed):
		return "Failed to verify the session."
	case errors.Is(err, ErrSubmitFailed):
		return "Failed to send data. Please try again."
	case domain.IsValidation(err):
		if errors.Is(err, domain.ErrInvalidURL) {
			return "Please enter a valid URL."
		}
		return "Please fill in both fields."
	default:
		return "Something went wrong."
	}
}

// Retryable reports whether the user may submit again after err.
func Retryable(err error) bool {
	return errors.Is(err, ErrSubmitFailed) || domain.IsValidation(err)
}

// Inspect loads a session for the completing device and checks that it can
// still be completed.
func Inspect(ctx context.Context, b Backend, id string) (*domain.RelaySession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNoSessionID
	}

	s, err := b.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	if !s.IsPending() {
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Submit completes session id with a bookmark. The name and url are
// validated and the url normalized first. A session that is gone or no
// longer pending yields ErrSessionExpired, so a late submission is never
// accepted.
func Submit(ctx context.Context, b Backend, id, name, rawURL string) (domain.BookmarkItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.BookmarkItem{}, ErrNoSessionID
	}
	n, err := domain.CleanName(name)
	if err != nil {
		return domain.BookmarkItem{}, err
	}
	u, err := domain.NormalizeURL(rawURL)
	if err != nil {
		return domain.BookmarkItem{}, err
	}

	switch err := b.Complete(ctx, id, n, u); {
	case err == nil:
		return domain.BookmarkItem{Name: n, URL: u}, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotPending):
		return domain.BookmarkItem{}, ErrSessionExpired
	default:
		return domain.BookmarkItem{}, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
}
