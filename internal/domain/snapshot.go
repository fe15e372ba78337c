package domain

import "time"

// VersionedSnapshot is the version ledger record stored next to the list.
//
// Version is the only arbitration key. UpdatedAt is informational and must
// never decide precedence.
type VersionedSnapshot struct {
	Version   int64  `json:"version"`
	UpdatedAt int64  `json:"updatedAt"` // epoch milliseconds
	SourceID  string `json:"sourceId"`
}

// ShouldApply reports whether a consumer that last applied localVersion and
// identifies itself as self must adopt s.
func (s VersionedSnapshot) ShouldApply(localVersion int64, self string) bool {
	return s.Version > localVersion && s.SourceID != self
}

// IsZero reports whether no commit was ever recorded.
func (s VersionedSnapshot) IsZero() bool {
	return s.Version == 0 && s.SourceID == ""
}

// UpdatedTime converts UpdatedAt to a time.Time.
func (s VersionedSnapshot) UpdatedTime() time.Time {
	return time.UnixMilli(s.UpdatedAt)
}
