// Package tab implements one tab of the launcher: a working copy of the
// bookmark list that commits through the ledger and adopts newer commits
// from the other tabs of the same profile.
//
// A Session owns a single goroutine. Public operations, fanout messages and
// storage changes are all processed there, one at a time.
package tab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/fanout"
	"github.com/MrSnakeDoc/teslahub/internal/ledger"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/region"
	"github.com/MrSnakeDoc/teslahub/internal/storage"
)

// State of the tab's editing state machine.
type State string

const (
	StateReady    State = "ready"
	StateEditing  State = "editing"
	StateDragging State = "dragging"
	StateClosed   State = "closed"
)

var (
	ErrClosed         = errors.New("tab session is closed")
	ErrDragInProgress = errors.New("a drag is in progress")
	ErrNotDragging    = errors.New("no drag in progress")
)

// DefaultsSource provides the default set used to bootstrap an empty
// profile.
type DefaultsSource interface {
	Defaults(ctx context.Context, r region.Code) (domain.BookmarkList, error)
}

// Options configure Open. Storage is required.
type Options struct {
	Storage storage.Storage

	// Hub is the same-device fanout. Nil disables it; storage changes
	// still propagate.
	Hub     *fanout.Hub
	Channel string

	// Ledger defaults to ledger.New(Storage, Logger, Now).
	Ledger *ledger.Store

	Defaults DefaultsSource

	// TimeZone picks the default region. Empty uses the process zone.
	TimeZone string

	// Fullscreen marks a tab opened through the bridge.
	Fullscreen bool

	Logger logger.Logger
	Now    func() time.Time
}

// Update is emitted on Updates whenever the tab adopts state it did not
// produce itself.
type Update struct {
	Items    domain.BookmarkList
	Snapshot domain.VersionedSnapshot
	// Reset is set when the update follows a reset by another tab.
	Reset bool
}

type command struct {
	fn    func() error
	reply chan error
}

// Session is one tab. Create it with Open and release it with Close.
type Session struct {
	sourceID   string
	fullscreen bool
	region     region.Code

	log      logger.Logger
	ledger   *ledger.Store
	defaults DefaultsSource
	port     *fanout.Port

	cmds    chan command
	updates chan Update
	done    chan struct{}
	cancel  context.CancelFunc

	closeOnce sync.Once

	// Owned by the run goroutine.
	items    domain.BookmarkList
	version  int64
	state    State
	pending  bool
	theme    domain.Theme
	drag     *dragState
	deferred []func(context.Context)
}

type dragState struct {
	index  int
	origin domain.BookmarkList
	prev   State
}

// Open loads the profile, bootstrapping it from the default set when it
// was never committed, and starts listening to the other tabs.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Storage == nil {
		return nil, errors.New("tab: storage is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	led := opts.Ledger
	if led == nil {
		led = ledger.New(opts.Storage, log, opts.Now)
	}
	code := region.Local()
	if opts.TimeZone != "" {
		code = region.Detect(opts.TimeZone)
	}

	sourceID := uuid.NewString()
	s := &Session{
		sourceID:   sourceID,
		fullscreen: opts.Fullscreen,
		region:     code,
		log:        log.With(logger.String("source_id", sourceID)),
		ledger:     led,
		defaults:   opts.Defaults,
		cmds:       make(chan command),
		updates:    make(chan Update, 16),
		done:       make(chan struct{}),
		state:      StateReady,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// Listen before loading so nothing committed in between is missed.
	var changes <-chan storage.Change
	if ch, err := opts.Storage.Watch(runCtx); err != nil {
		s.log.Warn("storage watch unavailable, other tabs will only be seen through fanout",
			logger.Error(err))
	} else {
		changes = ch
	}

	var msgs <-chan fanout.Message
	if opts.Hub != nil {
		name := opts.Channel
		if name == "" {
			name = fanout.DefaultChannel
		}
		s.port = opts.Hub.Join(name)
		msgs = s.port.Messages()
	}

	s.load(ctx)

	s.log.Debug("tab opened",
		logger.Int64("version", s.version),
		logger.Int("items", len(s.items)),
		logger.String("region", string(s.region)))

	go s.run(runCtx, changes, msgs)
	return s, nil
}

// load seeds the working copy and local version from the ledger.
func (s *Session) load(ctx context.Context) {
	snap, err := s.ledger.Snapshot(ctx)
	if err != nil {
		s.log.Warn("failed to read ledger, starting from version 0", logger.Error(err))
		snap = domain.VersionedSnapshot{}
	}
	s.version = snap.Version

	list, ok, err := s.ledger.Load(ctx)
	if err != nil {
		s.log.Warn("failed to load bookmarks, bootstrapping defaults", logger.Error(err))
		ok = false
	}
	if ok {
		s.items = list
	} else {
		_ = s.bootstrap(ctx, ledger.LabelBootstrap)
	}

	if th, err := s.ledger.Theme(ctx); err == nil && th != "" {
		s.theme = th
	} else {
		s.theme = domain.ThemeLight
	}
}

// bootstrap replaces the working copy with the default set and commits it.
// A failed fetch leaves an empty, uncommitted list.
func (s *Session) bootstrap(ctx context.Context, label string) error {
	var list domain.BookmarkList
	if s.defaults != nil {
		var err error
		list, err = s.defaults.Defaults(ctx, s.region)
		if err != nil {
			s.log.Warn("failed to fetch default bookmarks",
				logger.String("region", string(s.region)),
				logger.Error(err))
			s.items = domain.BookmarkList{}
			s.pending = true
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	if list == nil {
		list = domain.BookmarkList{}
	}
	s.items = list.Clone()
	return s.commit(ctx, label)
}

func (s *Session) run(ctx context.Context, changes <-chan storage.Change, msgs <-chan fanout.Message) {
	defer func() {
		s.state = StateClosed
		close(s.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-s.cmds:
			c.reply <- c.fn()

		case m, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			s.incoming(ctx, func(ctx context.Context) { s.onMessage(ctx, m) })

		case ch, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if ch.Key != ledger.KeySnapshot {
				continue
			}
			s.incoming(ctx, func(ctx context.Context) { s.onSnapshotChange(ctx, ch) })
		}
	}
}

// do runs fn on the session goroutine and waits for it.
func (s *Session) do(fn func() error) error {
	c := command{fn: fn, reply: make(chan error, 1)}
	select {
	case s.cmds <- c:
	case <-s.done:
		return ErrClosed
	}
	select {
	case err := <-c.reply:
		return err
	case <-s.done:
		return ErrClosed
	}
}

// query is do for read-only accessors: after Close the fields are frozen
// and read directly.
func (s *Session) query(fn func()) {
	err := s.do(func() error { fn(); return nil })
	if errors.Is(err, ErrClosed) {
		<-s.done
		fn()
	}
}

// commit persists the working copy and tells the other tabs.
func (s *Session) commit(ctx context.Context, label string) error {
	return s.commitAs(ctx, label, fanout.TypeAppsUpdate)
}

func (s *Session) commitAs(ctx context.Context, label, msgType string) error {
	snap, err := s.ledger.Commit(ctx, s.items, s.sourceID, label)
	if err != nil {
		s.pending = true
		return err
	}
	s.version = snap.Version
	s.pending = false

	if s.port != nil {
		s.port.Post(fanout.Message{
			Type:      msgType,
			Version:   snap.Version,
			Apps:      s.items.Clone(),
			SourceID:  snap.SourceID,
			UpdatedAt: snap.UpdatedAt,
		})
	}
	return nil
}

func (s *Session) emit(u Update) {
	select {
	case s.updates <- u:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- u:
	default:
	}
	s.log.Debug("update queue full, dropped oldest")
}

// Close stops listening and releases the fanout port. Safe to call more
// than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		if s.port != nil {
			s.port.Close()
		}
		close(s.updates)
		s.log.Debug("tab closed")
	})
	return nil
}
