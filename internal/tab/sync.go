package tab

import (
	"context"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/fanout"
	"github.com/MrSnakeDoc/teslahub/internal/ledger"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/storage"
)

// incoming handles an event from another tab now, or after the current
// drag settles.
func (s *Session) incoming(ctx context.Context, fn func(context.Context)) {
	if s.state == StateDragging {
		s.deferred = append(s.deferred, fn)
		return
	}
	fn(ctx)
}

// settle replays what arrived during a drag.
func (s *Session) settle(ctx context.Context) {
	queued := s.deferred
	s.deferred = nil
	for _, fn := range queued {
		fn(ctx)
	}
}

func (s *Session) onMessage(ctx context.Context, m fanout.Message) {
	switch m.Type {
	case fanout.TypeAppsUpdate:
		snap := m.Snapshot()
		if !snap.ShouldApply(s.version, s.sourceID) {
			return
		}
		if err := m.Apps.Validate(); err != nil {
			s.log.Warn("ignoring malformed fanout update",
				logger.Int64("version", m.Version),
				logger.Error(err))
			return
		}
		s.adopt(m.Apps, snap, false)

	case fanout.TypeAppsReset:
		if m.SourceID == s.sourceID {
			return
		}
		s.resync(ctx)

	default:
		s.log.Debug("ignoring unknown fanout message", logger.String("type", m.Type))
	}
}

func (s *Session) onSnapshotChange(ctx context.Context, ch storage.Change) {
	if ch.Removed {
		s.resync(ctx)
		return
	}

	snap, err := ledger.DecodeSnapshot(ch.NewValue)
	if err != nil {
		s.log.Warn("ignoring undecodable snapshot change", logger.Error(err))
		return
	}
	if !snap.ShouldApply(s.version, s.sourceID) {
		return
	}

	// The notification carries only the snapshot; the list is re-read.
	list, ok, err := s.ledger.Load(ctx)
	if err != nil || !ok {
		s.log.Warn("snapshot changed but the list could not be read",
			logger.Int64("version", snap.Version),
			logger.Error(err))
		return
	}
	s.adopt(list, snap, false)
}

// resync follows a reset made by some tab. The local version is dropped to
// 0 so the fresh sequence is accepted, then whatever the store holds now
// is taken as is.
func (s *Session) resync(ctx context.Context) {
	s.version = 0

	list, snap, ok, err := s.ledger.Read(ctx)
	if err != nil {
		s.log.Warn("failed to re-read store after reset", logger.Error(err))
		return
	}
	if snap.IsZero() {
		return
	}
	if snap.SourceID == s.sourceID {
		// Our own reset: we already hold this state.
		s.version = snap.Version
		return
	}
	if !ok {
		return
	}
	s.adopt(list, snap, true)
}

func (s *Session) adopt(list domain.BookmarkList, snap domain.VersionedSnapshot, reset bool) {
	s.items = list.Clone()
	if s.items == nil {
		s.items = domain.BookmarkList{}
	}
	s.version = snap.Version
	s.pending = false

	s.log.Debug("adopted update",
		logger.Int64("version", snap.Version),
		logger.String("from", snap.SourceID),
		logger.Bool("reset", reset))

	s.emit(Update{Items: s.items.Clone(), Snapshot: snap, Reset: reset})
}
