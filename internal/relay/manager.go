package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
)

// DefaultTimeout bounds how long a pending session can be completed.
const DefaultTimeout = 5 * time.Minute

// OpenRequest describes the session a primary tab creates.
type OpenRequest struct {
	Kind domain.SessionKind
	// SessionID is normally empty and generated.
	SessionID string
	// Name and URL prefill an edit-in-place flow.
	Name string
	URL  string
	// Apps is the payload of a list session.
	Apps domain.BookmarkList
}

// OutcomeKind tells how a session ended for its creator.
type OutcomeKind string

const (
	Completed OutcomeKind = "completed"
	Expired   OutcomeKind = "expired"
	Invalid   OutcomeKind = "invalid"
	Failed    OutcomeKind = "failed"
)

// Outcome is delivered once on Handle.Result.
type Outcome struct {
	Kind    OutcomeKind
	Session *domain.RelaySession // set for Completed
	Err     error                // set for Failed
}

// Item returns the bookmark fields carried by a completed session.
func (o Outcome) Item() (name, url string) {
	if o.Session == nil {
		return "", ""
	}
	return o.Session.Name, o.Session.URL
}

// Manager is the creator side of the relay.
type Manager struct {
	backend Backend
	timeout time.Duration
	logger  logger.Logger
	now     func() time.Time
}

// NewManager returns a Manager. timeout <= 0 selects DefaultTimeout; now
// may be nil.
func NewManager(b Backend, timeout time.Duration, log logger.Logger, now func() time.Time) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{backend: b, timeout: timeout, logger: log, now: now}
}

func (m *Manager) Backend() Backend {
	return m.backend
}

func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Deposit creates a pending session without waiting for it. Used for list
// hand-offs whose reader consumes the record itself.
func (m *Manager) Deposit(ctx context.Context, req OpenRequest) (*domain.RelaySession, error) {
	s := m.newSession(req)
	if err := m.backend.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create relay session: %w", err)
	}
	m.logger.Debug("relay session deposited",
		logger.String("session_id", s.SessionID),
		logger.String("kind", string(s.Kind)))
	return s, nil
}

// Open creates a pending session, subscribes to it and arms the timeout.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Handle, error) {
	s, err := m.Deposit(ctx, req)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	events, err := m.backend.Subscribe(watchCtx, s.SessionID)
	if err != nil {
		cancel()
		_ = m.backend.Delete(ctx, s.SessionID)
		return nil, fmt.Errorf("failed to subscribe to relay session: %w", err)
	}

	h := &Handle{
		m:       m,
		session: s,
		result:  make(chan Outcome, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.watch(watchCtx, events)

	m.logger.Info("relay session opened",
		logger.String("session_id", s.SessionID),
		logger.Duration("timeout", m.timeout))
	return h, nil
}

// Consume reads a session and deletes it in one backend step. Of two
// concurrent calls only one gets the record, the other ErrNotFound. A
// non-empty kind that does not match returns ErrWrongKind and keeps the
// record.
func (m *Manager) Consume(ctx context.Context, id string, kind domain.SessionKind) (*domain.RelaySession, error) {
	return m.backend.Take(ctx, id, kind)
}

// ExpiresAt is when s stops accepting a completion.
func (m *Manager) ExpiresAt(s *domain.RelaySession) time.Time {
	return time.UnixMilli(s.CreatedAt).Add(m.timeout)
}

// Inspect is the package Inspect with the timeout enforced: a pending
// session past its deadline is deleted and reported as expired.
func (m *Manager) Inspect(ctx context.Context, id string) (*domain.RelaySession, error) {
	s, err := Inspect(ctx, m.backend, id)
	if err != nil {
		return nil, err
	}
	if m.reapOverdue(ctx, s) {
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Submit is the package Submit with the timeout enforced.
func (m *Manager) Submit(ctx context.Context, id, name, rawURL string) (domain.BookmarkItem, error) {
	return Submit(ctx, deadlineBackend{Backend: m.backend, m: m}, id, name, rawURL)
}

// Complete is Backend.Complete with the timeout enforced. A session past
// its deadline is deleted and reported as ErrNotFound.
func (m *Manager) Complete(ctx context.Context, id, name, url string) error {
	return deadlineBackend{Backend: m.backend, m: m}.Complete(ctx, id, name, url)
}

// reapOverdue deletes s when it is still pending after its deadline and
// reports whether it is gone.
func (m *Manager) reapOverdue(ctx context.Context, s *domain.RelaySession) bool {
	if !s.IsPending() || m.now().Before(m.ExpiresAt(s)) {
		return false
	}
	switch err := m.backend.DeleteIfPending(ctx, s.SessionID); {
	case err == nil, errors.Is(err, ErrNotFound):
		m.logger.Info("relay session past its deadline removed",
			logger.String("session_id", s.SessionID))
		return true
	case errors.Is(err, ErrNotPending):
		return false
	default:
		m.logger.Warn("failed to remove overdue session, the sweep will remove it",
			logger.String("session_id", s.SessionID),
			logger.Error(err))
		return true
	}
}

// deadlineBackend refuses completions of sessions older than the timeout,
// whether or not a creator is still watching them.
type deadlineBackend struct {
	Backend
	m *Manager
}

func (d deadlineBackend) Complete(ctx context.Context, id, name, url string) error {
	s, err := d.Backend.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.m.reapOverdue(ctx, s) {
		return ErrNotFound
	}
	return d.Backend.Complete(ctx, id, name, url)
}

func (m *Manager) newSession(req OpenRequest) *domain.RelaySession {
	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	kind := req.Kind
	if kind == "" {
		kind = domain.KindItem
	}
	return &domain.RelaySession{
		SessionID: id,
		Status:    domain.StatusPending,
		Kind:      kind,
		Name:      req.Name,
		URL:       req.URL,
		Apps:      req.Apps.Clone(),
		CreatedAt: m.now().UnixMilli(),
	}
}

// QRURL builds https://<host>/add-app/<id>?theme=<theme> from the public
// base URL. theme is omitted when empty.
func QRURL(base, sessionID string, theme domain.Theme) string {
	u := strings.TrimRight(base, "/") + "/add-app/" + url.PathEscape(sessionID)
	if theme != "" {
		u += "?theme=" + url.QueryEscape(string(theme))
	}
	return u
}

// Handle tracks one opened session until it ends.
type Handle struct {
	m       *Manager
	session *domain.RelaySession

	result chan Outcome
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	abandoned bool
}

func (h *Handle) ID() string {
	return h.session.SessionID
}

func (h *Handle) Session() *domain.RelaySession {
	return h.session.Clone()
}

// QRURL is the page the phone opens.
func (h *Handle) QRURL(base string, theme domain.Theme) string {
	return QRURL(base, h.session.SessionID, theme)
}

// Result delivers exactly one Outcome and is then closed. After Abandon it
// is closed without one.
func (h *Handle) Result() <-chan Outcome { return h.result }

// Done is closed once the handle stopped watching.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Abandon stops waiting and deletes the session if it is still pending.
func (h *Handle) Abandon(ctx context.Context) error {
	h.mu.Lock()
	h.abandoned = true
	h.mu.Unlock()

	h.cancel()
	<-h.done

	err := h.m.backend.DeleteIfPending(ctx, h.ID())
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotPending) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete abandoned session: %w", err)
	}
	h.m.logger.Debug("relay session abandoned", logger.String("session_id", h.ID()))
	return nil
}

func (h *Handle) watch(ctx context.Context, events <-chan Event) {
	defer close(h.done)

	timer := time.NewTimer(h.m.timeout)
	defer timer.Stop()

	log := h.m.logger.With(logger.String("session_id", h.ID()))

	for {
		select {
		case <-ctx.Done():
			h.finish(nil)
			return

		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					h.finish(nil)
					return
				}
				h.finish(&Outcome{Kind: Failed, Err: errors.New("relay subscription closed")})
				return
			}
			if ev.Deleted || ev.Session == nil {
				log.Info("relay session vanished")
				h.finish(&Outcome{Kind: Invalid})
				return
			}
			switch ev.Session.Status {
			case domain.StatusPending:
				continue
			case domain.StatusCompleted:
				h.finish(h.consume(log, ev.Session))
				return
			default:
				log.Warn("relay session in unknown state",
					logger.String("status", string(ev.Session.Status)))
				h.finish(&Outcome{Kind: Invalid})
				return
			}

		case <-timer.C:
			h.finish(h.expire(log))
			return
		}
	}
}

// consume deletes a completed session so it cannot be read twice.
func (h *Handle) consume(log logger.Logger, s *domain.RelaySession) *Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.m.backend.Delete(ctx, s.SessionID); err != nil {
		log.Warn("failed to delete consumed session, the sweep will remove it",
			logger.Error(err))
	}
	log.Info("relay session completed")
	return &Outcome{Kind: Completed, Session: s.Clone()}
}

// expire deletes the session if nobody completed it in time. The delete is
// conditional, so a completion landing right before the timer wins.
func (h *Handle) expire(log logger.Logger) *Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := h.m.backend.DeleteIfPending(ctx, h.ID())
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		log.Info("relay session timed out")
		return &Outcome{Kind: Expired}
	case errors.Is(err, ErrNotPending):
		// Completed right before the timer fired.
	default:
		log.Error("failed to delete timed out session", logger.Error(err))
		return &Outcome{Kind: Failed, Err: err}
	}

	s, err := h.m.backend.Get(ctx, h.ID())
	switch {
	case errors.Is(err, ErrNotFound):
		log.Info("relay session vanished")
		return &Outcome{Kind: Invalid}
	case err != nil:
		log.Error("failed to read completed session", logger.Error(err))
		return &Outcome{Kind: Failed, Err: err}
	case s.IsCompleted():
		return h.consume(log, s)
	default:
		log.Warn("relay session in unknown state", logger.String("status", string(s.Status)))
		return &Outcome{Kind: Invalid}
	}
}

func (h *Handle) finish(o *Outcome) {
	h.mu.Lock()
	abandoned := h.abandoned
	h.mu.Unlock()

	if o != nil && !abandoned {
		h.result <- *o
	}
	close(h.result)
	h.cancel()
}
