package relay

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
)

const subscriberQueue = 16

// MemoryBackend keeps sessions in process. It backs tests and single-node
// deployments without Redis.
type MemoryBackend struct {
	mu       sync.Mutex
	sessions map[string]*domain.RelaySession
	subs     map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan Event
}

// send never blocks. Events carry the full state, so when the queue is
// full the oldest one is dropped.
func (s *subscriber) send(ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		sessions: map[string]*domain.RelaySession{},
		subs:     map[string]map[*subscriber]struct{}{},
	}
}

func (m *MemoryBackend) Create(_ context.Context, s *domain.RelaySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.SessionID]; ok {
		return ErrExists
	}
	m.sessions[s.SessionID] = s.Clone()
	m.notify(s.SessionID)
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, id string) (*domain.RelaySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryBackend) Complete(_ context.Context, id, name, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if !s.IsPending() {
		return ErrNotPending
	}
	next := s.Clone()
	next.Status = domain.StatusCompleted
	next.Name = name
	next.URL = url
	m.sessions[id] = next
	m.notify(id)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return nil
	}
	delete(m.sessions, id)
	m.notify(id)
	return nil
}

func (m *MemoryBackend) Take(_ context.Context, id string, kind domain.SessionKind) (*domain.RelaySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if kind != "" && s.Kind != kind {
		return nil, ErrWrongKind
	}
	delete(m.sessions, id)
	m.notify(id)
	return s.Clone(), nil
}

func (m *MemoryBackend) DeleteIfPending(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if !s.IsPending() {
		return ErrNotPending
	}
	delete(m.sessions, id)
	m.notify(id)
	return nil
}

func (m *MemoryBackend) Subscribe(ctx context.Context, id string) (<-chan Event, error) {
	sub := &subscriber{ch: make(chan Event, subscriberQueue)}

	m.mu.Lock()
	peers, ok := m.subs[id]
	if !ok {
		peers = map[*subscriber]struct{}{}
		m.subs[id] = peers
	}
	peers[sub] = struct{}{}
	sub.send(m.event(id))
	m.mu.Unlock()

	out := make(chan Event)
	go func() {
		defer close(out)
		defer m.unsubscribe(id, sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-sub.ch:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *MemoryBackend) CreatedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := cutoff.UnixMilli()
	var ids []string
	for id, s := range m.sessions {
		if s.CreatedAt <= limit {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Len reports how many records are stored.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryBackend) unsubscribe(id string, sub *subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()

	peers := m.subs[id]
	delete(peers, sub)
	if len(peers) == 0 {
		delete(m.subs, id)
	}
}

// event must be called with mu held.
func (m *MemoryBackend) event(id string) Event {
	s, ok := m.sessions[id]
	if !ok {
		return Event{SessionID: id, Deleted: true}
	}
	return Event{SessionID: id, Session: s.Clone()}
}

// notify must be called with mu held.
func (m *MemoryBackend) notify(id string) {
	peers := m.subs[id]
	if len(peers) == 0 {
		return
	}
	ev := m.event(id)
	for sub := range peers {
		sub.send(Event{SessionID: ev.SessionID, Session: ev.Session.Clone(), Deleted: ev.Deleted})
	}
}
