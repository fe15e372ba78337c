// Package storage is the durable per-profile key/value area shared by every
// tab of one browser profile, the Go counterpart of window.localStorage.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the area cannot be read or written at all.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrQuotaExceeded means a write would grow the area past its quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Change is a storage-level change notification for one key.
type Change struct {
	Key      string
	OldValue string
	NewValue string
	Removed  bool
}

// Storage is implemented by Memory and File.
//
// Every watcher sees every change, including changes made through the same
// handle. Filtering self-echoes is the ledger's job.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// SetItems writes all pairs or none of them.
	SetItems(ctx context.Context, items map[string]string) error
	Remove(ctx context.Context, keys ...string) error
	// Watch streams changes until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan Change, error)
}

// diff returns the per-key changes between two states of the area.
func diff(before, after map[string]string) []Change {
	var changes []Change
	for k, nv := range after {
		ov, had := before[k]
		if !had || ov != nv {
			changes = append(changes, Change{Key: k, OldValue: ov, NewValue: nv})
		}
	}
	for k, ov := range before {
		if _, still := after[k]; !still {
			changes = append(changes, Change{Key: k, OldValue: ov, Removed: true})
		}
	}
	return changes
}
