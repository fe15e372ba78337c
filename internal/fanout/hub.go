// Package fanout delivers committed updates to the other sessions of one
// device, like a browser BroadcastChannel.
package fanout

import (
	"sync"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
)

const (
	TypeAppsUpdate = "apps-update"
	TypeAppsReset  = "apps-reset"
)

// DefaultChannel is the channel every tab of a profile joins.
const DefaultChannel = "teslahub_apps_sync"

const defaultQueue = 64

// Message is what a committing session broadcasts.
type Message struct {
	Type      string              `json:"type"`
	Version   int64               `json:"version"`
	Apps      domain.BookmarkList `json:"apps,omitempty"`
	SourceID  string              `json:"sourceId"`
	UpdatedAt int64               `json:"updatedAt"`
}

// Snapshot returns the ledger record carried by m.
func (m Message) Snapshot() domain.VersionedSnapshot {
	return domain.VersionedSnapshot{Version: m.Version, UpdatedAt: m.UpdatedAt, SourceID: m.SourceID}
}

// Hub owns named channels. The zero value is not usable; call NewHub.
type Hub struct {
	logger logger.Logger
	queue  int

	mu       sync.Mutex
	channels map[string]map[*Port]struct{}
}

// NewHub returns a Hub whose ports buffer up to queue messages each.
// queue <= 0 selects the default.
func NewHub(log logger.Logger, queue int) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	if queue <= 0 {
		queue = defaultQueue
	}
	return &Hub{
		logger:   log,
		queue:    queue,
		channels: map[string]map[*Port]struct{}{},
	}
}

// Join attaches a new port to the named channel.
func (h *Hub) Join(name string) *Port {
	p := &Port{
		hub:  h,
		name: name,
		ch:   make(chan Message, h.queue),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	peers, ok := h.channels[name]
	if !ok {
		peers = map[*Port]struct{}{}
		h.channels[name] = peers
	}
	peers[p] = struct{}{}
	return p
}

// Members reports how many ports are joined to name.
func (h *Hub) Members(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[name])
}

func (h *Hub) post(from *Port, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for p := range h.channels[from.name] {
		if p == from {
			continue
		}
		if p.deliver(msg) {
			h.logger.Warn("fanout queue full, dropped oldest message",
				logger.String("channel", from.name),
				logger.String("type", msg.Type),
				logger.Int64("version", msg.Version))
		}
	}
}

func (h *Hub) leave(p *Port) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers := h.channels[p.name]
	delete(peers, p)
	if len(peers) == 0 {
		delete(h.channels, p.name)
	}
}

// Port is one member of a channel.
type Port struct {
	hub  *Hub
	name string

	mu     sync.Mutex
	ch     chan Message
	closed bool
}

// Post delivers msg to every other port on the channel. It never blocks.
func (p *Port) Post(msg Message) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	p.hub.post(p, msg)
}

// Messages returns the receive side. It is closed by Close.
func (p *Port) Messages() <-chan Message { return p.ch }

// Close leaves the channel. Safe to call more than once.
func (p *Port) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.hub.leave(p)

	p.mu.Lock()
	close(p.ch)
	p.mu.Unlock()
}

// deliver enqueues msg, evicting the oldest queued message when full.
// It reports whether something was dropped.
func (p *Port) deliver(msg Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}

	select {
	case p.ch <- msg:
		return false
	default:
	}

	select {
	case <-p.ch:
	default:
	}
	select {
	case p.ch <- msg:
	default:
	}
	return true
}
