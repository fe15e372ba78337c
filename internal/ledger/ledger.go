// Package ledger is the bookmark store and its version ledger: every
// mutation of a profile's list goes through Commit.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/storage"
)

const (
	// KeyApps holds the committed list.
	KeyApps = "teslahub_apps"
	// KeySnapshot holds the VersionedSnapshot of the committed list.
	KeySnapshot = "teslahub_apps_meta"
	// KeyTheme holds the theme preference.
	KeyTheme = "teslahub_theme"
)

// Commit labels, recorded in logs only.
const (
	LabelAdd       = "add"
	LabelEdit      = "edit"
	LabelDelete    = "delete"
	LabelReorder   = "reorder"
	LabelReset     = "reset"
	LabelBootstrap = "bootstrap"
	LabelRelay     = "relay"
	LabelBridge    = "bridge"
	LabelRetry     = "retry"
)

// ErrCommitFailed wraps any storage failure during Commit or Reset. Nothing
// was persisted when it is returned.
var ErrCommitFailed = errors.New("commit failed")

// ErrCorrupt is returned when the stored list or snapshot cannot be decoded.
var ErrCorrupt = errors.New("stored data is corrupt")

// One mutex per storage area, so every Store sharing an area in this
// process serializes its read-increment-write.
var (
	areaLocksMu sync.Mutex
	areaLocks   = map[storage.Storage]*sync.Mutex{}
)

func areaLock(s storage.Storage) *sync.Mutex {
	areaLocksMu.Lock()
	defer areaLocksMu.Unlock()
	mu, ok := areaLocks[s]
	if !ok {
		mu = &sync.Mutex{}
		areaLocks[s] = mu
	}
	return mu
}

// Store reads and commits one profile's list.
type Store struct {
	storage storage.Storage
	logger  logger.Logger
	now     func() time.Time
	mu      *sync.Mutex
}

// New returns a Store over s. now may be nil.
func New(s storage.Storage, log logger.Logger, now func() time.Time) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		storage: s,
		logger:  log,
		now:     now,
		mu:      areaLock(s),
	}
}

// Storage exposes the underlying area (for watching).
func (s *Store) Storage() storage.Storage { return s.storage }

// Load returns the committed list. ok is false when nothing was ever
// committed (or after Reset).
func (s *Store) Load(ctx context.Context) (domain.BookmarkList, bool, error) {
	raw, ok, err := s.storage.Get(ctx, KeyApps)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read list: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	list, err := DecodeList(raw)
	if err != nil {
		return nil, false, err
	}
	return list, true, nil
}

// Snapshot returns the stored ledger record, or the zero snapshot.
func (s *Store) Snapshot(ctx context.Context) (domain.VersionedSnapshot, error) {
	raw, ok, err := s.storage.Get(ctx, KeySnapshot)
	if err != nil {
		return domain.VersionedSnapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if !ok {
		return domain.VersionedSnapshot{}, nil
	}
	return DecodeSnapshot(raw)
}

// Read returns list and snapshot together.
func (s *Store) Read(ctx context.Context) (domain.BookmarkList, domain.VersionedSnapshot, bool, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, domain.VersionedSnapshot{}, false, err
	}
	list, ok, err := s.Load(ctx)
	if err != nil {
		return nil, domain.VersionedSnapshot{}, false, err
	}
	return list, snap, ok, nil
}

// Commit persists list as the next version on behalf of sourceID.
func (s *Store) Commit(ctx context.Context, list domain.BookmarkList, sourceID, label string) (domain.VersionedSnapshot, error) {
	if err := list.Validate(); err != nil {
		return domain.VersionedSnapshot{}, fmt.Errorf("refusing to commit invalid list: %w", err)
	}
	if list == nil {
		list = domain.BookmarkList{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.Snapshot(ctx)
	if err != nil && !errors.Is(err, ErrCorrupt) {
		s.logger.Error("commit failed reading ledger",
			logger.String("label", label),
			logger.Error(err))
		return domain.VersionedSnapshot{}, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	if errors.Is(err, ErrCorrupt) {
		// A corrupt ledger restarts the sequence at 1.
		s.logger.Warn("ledger record corrupt, restarting version sequence",
			logger.Error(err))
	}

	next := domain.VersionedSnapshot{
		Version:   last.Version + 1,
		UpdatedAt: s.now().UnixMilli(),
		SourceID:  sourceID,
	}

	appsJSON, err := json.Marshal(list)
	if err != nil {
		return domain.VersionedSnapshot{}, fmt.Errorf("failed to marshal list: %w", err)
	}
	snapJSON, err := json.Marshal(next)
	if err != nil {
		return domain.VersionedSnapshot{}, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.storage.SetItems(ctx, map[string]string{
		KeyApps:     string(appsJSON),
		KeySnapshot: string(snapJSON),
	}); err != nil {
		s.logger.Error("commit failed",
			logger.String("label", label),
			logger.Int64("version", next.Version),
			logger.Error(err))
		return domain.VersionedSnapshot{}, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	s.logger.Debug("committed",
		logger.String("label", label),
		logger.Int64("version", next.Version),
		logger.Int("items", len(list)),
		logger.String("source_id", sourceID))

	return next, nil
}

// Reset clears list and ledger. The next Commit starts again at version 1.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Remove(ctx, KeyApps, KeySnapshot); err != nil {
		s.logger.Error("reset failed", logger.Error(err))
		return fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	return nil
}

// Theme returns the stored preference, or "" when unset.
func (s *Store) Theme(ctx context.Context) (domain.Theme, error) {
	raw, ok, err := s.storage.Get(ctx, KeyTheme)
	if err != nil || !ok {
		return "", err
	}
	return domain.ParseTheme(raw), nil
}

// SetTheme stores the preference. It is not versioned.
func (s *Store) SetTheme(ctx context.Context, t domain.Theme) error {
	return s.storage.SetItems(ctx, map[string]string{KeyTheme: string(t)})
}

// DecodeList parses a stored list.
func DecodeList(raw string) (domain.BookmarkList, error) {
	var list domain.BookmarkList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrCorrupt, err)
	}
	return list, nil
}

// DecodeSnapshot parses a stored ledger record.
func DecodeSnapshot(raw string) (domain.VersionedSnapshot, error) {
	var snap domain.VersionedSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return domain.VersionedSnapshot{}, fmt.Errorf("%w: snapshot: %v", ErrCorrupt, err)
	}
	return snap, nil
}
