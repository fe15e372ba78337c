package tab

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/fanout"
	"github.com/MrSnakeDoc/teslahub/internal/ledger"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
)

// SourceID identifies this tab in the ledger. It is not persisted.
func (s *Session) SourceID() string {
	return s.sourceID
}

func (s *Session) Fullscreen() bool {
	return s.fullscreen
}

// Updates delivers the state adopted from other tabs. It is closed by
// Close.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Items returns a copy of the working list.
func (s *Session) Items() domain.BookmarkList {
	var out domain.BookmarkList
	s.query(func() { out = s.items.Clone() })
	return out
}

// Version is the last version this tab committed or adopted.
func (s *Session) Version() int64 {
	var v int64
	s.query(func() { v = s.version })
	return v
}

func (s *Session) State() State {
	var st State
	s.query(func() { st = s.state })
	return st
}

// PendingChanges reports a working copy that failed to persist.
func (s *Session) PendingChanges() bool {
	var p bool
	s.query(func() { p = s.pending })
	return p
}

func (s *Session) Theme() domain.Theme {
	var t domain.Theme
	s.query(func() { t = s.theme })
	return t
}

func (s *Session) EnterEditMode() error {
	return s.do(func() error {
		if s.state == StateDragging {
			return ErrDragInProgress
		}
		s.state = StateEditing
		return nil
	})
}

// ExitEditMode leaves edit mode and retries a commit that failed earlier.
func (s *Session) ExitEditMode(ctx context.Context) error {
	return s.do(func() error {
		if s.state == StateDragging {
			return ErrDragInProgress
		}
		s.state = StateReady
		if !s.pending {
			return nil
		}
		return s.commit(ctx, ledger.LabelRetry)
	})
}

// Add appends a new bookmark and commits. Invalid input is rejected before
// anything is written.
func (s *Session) Add(ctx context.Context, name, rawURL string) (domain.BookmarkItem, error) {
	var item domain.BookmarkItem
	err := s.do(func() error {
		if s.state == StateDragging {
			return ErrDragInProgress
		}
		it, err := domain.NewItem(name, rawURL)
		if err != nil {
			return err
		}
		item = it
		next := s.items.Clone()
		s.items = append(next, it)
		return s.commit(ctx, ledger.LabelAdd)
	})
	return item, err
}

// Edit replaces the name and url of id in place.
func (s *Session) Edit(ctx context.Context, id, name, rawURL string) (domain.BookmarkItem, error) {
	var item domain.BookmarkItem
	err := s.do(func() error {
		if s.state == StateDragging {
			return ErrDragInProgress
		}
		i := s.items.IndexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
		}
		n, err := domain.CleanName(name)
		if err != nil {
			return err
		}
		u, err := domain.NormalizeURL(rawURL)
		if err != nil {
			return err
		}
		next := s.items.Clone()
		next[i].Name = n
		next[i].URL = u
		item = next[i]
		s.items = next
		return s.commit(ctx, ledger.LabelEdit)
	})
	return item, err
}

func (s *Session) Delete(ctx context.Context, id string) error {
	return s.do(func() error {
		if s.state == StateDragging {
			return ErrDragInProgress
		}
		i := s.items.IndexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
		}
		next := make(domain.BookmarkList, 0, len(s.items)-1)
		next = append(next, s.items[:i]...)
		next = append(next, s.items[i+1:]...)
		s.items = next
		return s.commit(ctx, ledger.LabelDelete)
	})
}

// Move is a reorder in one step, without drag frames.
func (s *Session) Move(ctx context.Context, from, to int) error {
	return s.do(func() error {
		if s.state == StateDragging {
			return ErrDragInProgress
		}
		next, err := s.items.Move(from, to)
		if err != nil {
			return err
		}
		if next.Equal(s.items) {
			return nil
		}
		s.items = next
		return s.commit(ctx, ledger.LabelReorder)
	})
}

// BeginDrag picks up the item at index. Nothing is committed until Drop.
func (s *Session) BeginDrag(index int) error {
	return s.do(func() error {
		if s.state == StateDragging {
			return ErrDragInProgress
		}
		if index < 0 || index >= len(s.items) {
			return fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, index)
		}
		s.drag = &dragState{index: index, origin: s.items.Clone(), prev: s.state}
		s.state = StateDragging
		return nil
	})
}

// DragOver moves the dragged item to index in the working copy only.
func (s *Session) DragOver(index int) error {
	return s.do(func() error {
		return s.dragTo(index)
	})
}

// Drop settles the drag at index and commits the new order if it changed.
func (s *Session) Drop(ctx context.Context, index int) error {
	return s.do(func() error {
		if err := s.dragTo(index); err != nil {
			return err
		}
		d := s.drag
		s.drag = nil
		s.state = d.prev

		var err error
		if !s.items.Equal(d.origin) {
			err = s.commit(ctx, ledger.LabelReorder)
		}
		s.settle(ctx)
		return err
	})
}

// CancelDrag restores the order from before BeginDrag.
func (s *Session) CancelDrag(ctx context.Context) error {
	return s.do(func() error {
		if s.state != StateDragging {
			return ErrNotDragging
		}
		s.items = s.drag.origin
		s.state = s.drag.prev
		s.drag = nil
		s.settle(ctx)
		return nil
	})
}

func (s *Session) dragTo(index int) error {
	if s.state != StateDragging {
		return ErrNotDragging
	}
	if index == s.drag.index {
		return nil
	}
	next, err := s.items.Move(s.drag.index, index)
	if err != nil {
		return err
	}
	s.items = next
	if index >= len(next) {
		index = len(next) - 1
	}
	s.drag.index = index
	return nil
}

// Reset clears the store and ledger, re-bootstraps the default set and
// commits it as version 1 of a fresh sequence.
func (s *Session) Reset(ctx context.Context) error {
	return s.do(func() error {
		if s.state == StateDragging {
			return ErrDragInProgress
		}
		if err := s.ledger.Reset(ctx); err != nil {
			return err
		}
		s.version = 0

		var list domain.BookmarkList
		if s.defaults != nil {
			var err error
			list, err = s.defaults.Defaults(ctx, s.region)
			if err != nil {
				s.log.Warn("failed to fetch default bookmarks on reset, using an empty list",
					logger.Error(err))
				list = nil
			}
		}
		if list == nil {
			list = domain.BookmarkList{}
		}
		s.items = list.Clone()
		s.state = StateReady
		return s.commitAs(ctx, ledger.LabelReset, fanout.TypeAppsReset)
	})
}

// Apply replaces the working copy with a list injected from outside the
// tab (relay or bridge) and commits it under label.
func (s *Session) Apply(ctx context.Context, list domain.BookmarkList, label string) error {
	if err := list.Validate(); err != nil {
		return err
	}
	return s.do(func() error {
		if s.state == StateDragging {
			return ErrDragInProgress
		}
		s.items = list.Clone()
		if s.items == nil {
			s.items = domain.BookmarkList{}
		}
		return s.commit(ctx, label)
	})
}

// ToggleTheme flips and persists the theme. The new value is kept even
// when it cannot be stored.
func (s *Session) ToggleTheme(ctx context.Context) (domain.Theme, error) {
	var t domain.Theme
	err := s.do(func() error {
		s.theme = s.theme.Toggle()
		t = s.theme
		if err := s.ledger.SetTheme(ctx, s.theme); err != nil {
			s.log.Warn("failed to persist theme", logger.Error(err))
			return fmt.Errorf("%w: %v", ledger.ErrCommitFailed, err)
		}
		return nil
	})
	return t, err
}
