package domain

import "time"

// SessionStatus is the relay mailbox lifecycle.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusCompleted SessionStatus = "completed"
)

// Valid reports whether s is one of the two known states. Anything else is
// terminal for both parties.
func (s SessionStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// SessionKind tells what the mailbox carries.
type SessionKind string

const (
	// KindItem carries one name/url pair (QR add, edit in place).
	KindItem SessionKind = "item"
	// KindList carries a whole list (fullscreen hand-off).
	KindList SessionKind = "list"
)

// RelaySession is a single-consumption mailbox shared by exactly two
// parties: the creator and one consumer.
type RelaySession struct {
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
	Kind      SessionKind   `json:"kind,omitempty"`
	Name      string        `json:"name,omitempty"`
	URL       string        `json:"url,omitempty"`
	Apps      BookmarkList  `json:"apps,omitempty"`
	CreatedAt int64         `json:"createdAt"` // epoch milliseconds
}

func (s *RelaySession) IsPending() bool   { return s != nil && s.Status == StatusPending }
func (s *RelaySession) IsCompleted() bool { return s != nil && s.Status == StatusCompleted }

// Created converts CreatedAt to a time.Time.
func (s *RelaySession) Created() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

// Age is how long ago the session was created.
func (s *RelaySession) Age(now time.Time) time.Duration {
	return now.Sub(s.Created())
}

// OlderThan reports whether the session was created at or before now-horizon.
func (s *RelaySession) OlderThan(now time.Time, horizon time.Duration) bool {
	return s.CreatedAt <= now.Add(-horizon).UnixMilli()
}

// Clone deep-copies the session, including Apps.
func (s *RelaySession) Clone() *RelaySession {
	if s == nil {
		return nil
	}
	c := *s
	c.Apps = s.Apps.Clone()
	return &c
}
