package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
)

// brokenBackend fails every call with err.
type brokenBackend struct {
	*MemoryBackend
	err error
}

func (b *brokenBackend) Get(context.Context, string) (*domain.RelaySession, error) {
	return nil, b.err
}

func (b *brokenBackend) Complete(context.Context, string, string, string) error {
	return b.err
}

// completesOnTimeout lets a phone submission land between the timer firing
// and the timeout delete.
type completesOnTimeout struct {
	*MemoryBackend
}

func (b completesOnTimeout) DeleteIfPending(ctx context.Context, id string) error {
	if err := b.MemoryBackend.Complete(ctx, id, "Plex", "https://app.plex.tv"); err != nil {
		return err
	}
	return b.MemoryBackend.DeleteIfPending(ctx, id)
}

func waitOutcome(t *testing.T, h *Handle) Outcome {
	t.Helper()
	select {
	case o, ok := <-h.Result():
		require.True(t, ok, "result closed without an outcome")
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome")
	}
	return Outcome{}
}

func TestOpenCompleteConsume(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m := NewManager(b, time.Minute, nil, nil)

	h, err := m.Open(ctx, OpenRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID())

	s, err := Inspect(ctx, b, h.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, s.Status)
	assert.Equal(t, domain.KindItem, s.Kind)

	item, err := Submit(ctx, b, h.ID(), " Spotify ", "open.spotify.com")
	require.NoError(t, err)
	assert.Equal(t, "https://open.spotify.com", item.URL)

	o := waitOutcome(t, h)
	assert.Equal(t, Completed, o.Kind)
	name, url := o.Item()
	assert.Equal(t, "Spotify", name)
	assert.Equal(t, "https://open.spotify.com", url)

	<-h.Done()
	_, err = b.Get(ctx, h.ID())
	assert.ErrorIs(t, err, ErrNotFound, "completed session must be consumed")

	_, ok := <-h.Result()
	assert.False(t, ok)
}

func TestTimeoutDeletesAndRejectsLateSubmit(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m := NewManager(b, 50*time.Millisecond, nil, nil)

	h, err := m.Open(ctx, OpenRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", h.ID())

	o := waitOutcome(t, h)
	assert.Equal(t, Expired, o.Kind)
	assert.Equal(t, 0, b.Len())

	_, err = Submit(ctx, b, "s1", "Late", "late.com")
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, "This QR code has already been used or has expired.", Reason(err))
	assert.Equal(t, 0, b.Len(), "late submit must not recreate the session")
}

func TestConsumeIsSingleRead(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m := NewManager(b, 0, nil, nil)
	assert.Equal(t, DefaultTimeout, m.Timeout())

	apps := domain.BookmarkList{{ID: "a", Name: "A", URL: "https://a.com"}}
	s, err := m.Deposit(ctx, OpenRequest{Kind: domain.KindList, Apps: apps})
	require.NoError(t, err)
	require.NoError(t, b.Complete(ctx, s.SessionID, "", ""))

	got, err := m.Consume(ctx, s.SessionID, domain.KindList)
	require.NoError(t, err)
	assert.True(t, apps.Equal(got.Apps))

	_, err = m.Consume(ctx, s.SessionID, domain.KindList)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentConsumeDeliversOnce(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m := NewManager(b, time.Minute, nil, nil)

	for round := 0; round < 50; round++ {
		s, err := m.Deposit(ctx, OpenRequest{Kind: domain.KindList, Apps: domain.BookmarkList{}})
		require.NoError(t, err)

		const readers = 8
		start := make(chan struct{})
		results := make(chan error, readers)
		var wg sync.WaitGroup
		for i := 0; i < readers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := m.Consume(ctx, s.SessionID, domain.KindList)
				results <- err
			}()
		}
		close(start)
		wg.Wait()
		close(results)

		delivered := 0
		for err := range results {
			if err == nil {
				delivered++
				continue
			}
			assert.ErrorIs(t, err, ErrNotFound)
		}
		require.Equal(t, 1, delivered, "round %d", round)
	}
	assert.Equal(t, 0, b.Len())
}

func TestConsumeWrongKindKeepsSession(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m := NewManager(b, time.Minute, nil, nil)

	s, err := m.Deposit(ctx, OpenRequest{Kind: domain.KindItem})
	require.NoError(t, err)

	_, err = m.Consume(ctx, s.SessionID, domain.KindList)
	require.ErrorIs(t, err, ErrWrongKind)
	assert.Equal(t, 1, b.Len())

	got, err := m.Consume(ctx, s.SessionID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.KindItem, got.Kind)
}

func TestMemoryDeleteIfPending(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.Create(ctx, &domain.RelaySession{SessionID: "p", Status: domain.StatusPending}))
	require.NoError(t, b.Create(ctx, &domain.RelaySession{SessionID: "c", Status: domain.StatusCompleted}))

	require.NoError(t, b.DeleteIfPending(ctx, "p"))
	assert.ErrorIs(t, b.DeleteIfPending(ctx, "p"), ErrNotFound)
	assert.ErrorIs(t, b.DeleteIfPending(ctx, "c"), ErrNotPending)

	_, err := b.Get(ctx, "c")
	assert.NoError(t, err, "a completed session is kept")
}

func TestCompletionRacingTimeoutWins(t *testing.T) {
	ctx := context.Background()
	b := completesOnTimeout{MemoryBackend: NewMemoryBackend()}
	m := NewManager(b, 50*time.Millisecond, nil, nil)

	h, err := m.Open(ctx, OpenRequest{})
	require.NoError(t, err)

	o := waitOutcome(t, h)
	require.Equal(t, Completed, o.Kind, "an accepted submission must reach the creator")
	name, u := o.Item()
	assert.Equal(t, "Plex", name)
	assert.Equal(t, "https://app.plex.tv", u)

	<-h.Done()
	assert.Equal(t, 0, b.Len())
}

func TestDeadlineEnforcedWithoutWatcher(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	now := time.UnixMilli(1_700_000_000_000)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	m := NewManager(b, time.Minute, nil, clock)

	early, err := m.Deposit(ctx, OpenRequest{})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), m.ExpiresAt(early))

	late, err := m.Deposit(ctx, OpenRequest{})
	require.NoError(t, err)

	advance(30 * time.Second)
	_, err = m.Inspect(ctx, early.SessionID)
	require.NoError(t, err)
	_, err = m.Submit(ctx, early.SessionID, "Plex", "app.plex.tv")
	require.NoError(t, err)

	advance(time.Minute)
	_, err = m.Inspect(ctx, late.SessionID)
	require.ErrorIs(t, err, ErrSessionExpired)
	_, err = b.Get(ctx, late.SessionID)
	assert.ErrorIs(t, err, ErrNotFound, "an overdue session is removed")

	_, err = m.Submit(ctx, late.SessionID, "Late", "late.com")
	assert.ErrorIs(t, err, ErrSessionExpired)

	// A completed session stays readable past the deadline until consumed.
	_, err = m.Consume(ctx, early.SessionID, "")
	assert.NoError(t, err)
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.Create(ctx, &domain.RelaySession{SessionID: "p", Status: domain.StatusPending}))
	require.NoError(t, b.Create(ctx, &domain.RelaySession{SessionID: "c", Status: domain.StatusCompleted}))
	require.NoError(t, b.Create(ctx, &domain.RelaySession{SessionID: "x", Status: "archived"}))

	tests := []struct {
		name    string
		backend Backend
		id      string
		wantErr error
		reason  string
	}{
		{name: "pending", backend: b, id: "p"},
		{name: "no id", backend: b, id: " ", wantErr: ErrNoSessionID, reason: "No session ID provided."},
		{name: "unknown", backend: b, id: "nope", wantErr: ErrInvalidSession, reason: "This QR session is invalid or has expired."},
		{name: "completed", backend: b, id: "c", wantErr: ErrSessionExpired, reason: "This QR code has already been used or has expired."},
		{name: "unknown status", backend: b, id: "x", wantErr: ErrSessionExpired},
		{name: "backend down", backend: &brokenBackend{MemoryBackend: b, err: errors.New("network")}, id: "p",
			wantErr: ErrVerifyFailed, reason: "Failed to verify the session."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Inspect(ctx, tt.backend, tt.id)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.id, s.SessionID)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, Reason(err))
			}
		})
	}
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.Create(ctx, &domain.RelaySession{SessionID: "p", Status: domain.StatusPending}))

	_, err := Submit(ctx, b, "p", "  ", "example.com")
	require.ErrorIs(t, err, domain.ErrEmptyName)
	assert.True(t, Retryable(err))
	assert.Equal(t, "Please fill in both fields.", Reason(err))

	_, err = Submit(ctx, b, "p", "Name", "")
	require.ErrorIs(t, err, domain.ErrEmptyURL)

	s, err := b.Get(ctx, "p")
	require.NoError(t, err)
	assert.True(t, s.IsPending(), "rejected input must not complete the session")
}

func TestSubmitBackendFailureIsRetryable(t *testing.T) {
	b := &brokenBackend{MemoryBackend: NewMemoryBackend(), err: errors.New("permission denied")}
	_, err := Submit(context.Background(), b, "p", "Name", "x.com")
	require.ErrorIs(t, err, ErrSubmitFailed)
	assert.True(t, Retryable(err))
	assert.Equal(t, "Failed to send data. Please try again.", Reason(err))
}

func TestAbandonDeletesPending(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m := NewManager(b, time.Minute, nil, nil)

	h, err := m.Open(ctx, OpenRequest{})
	require.NoError(t, err)
	require.NoError(t, h.Abandon(ctx))

	assert.Equal(t, 0, b.Len())
	_, ok := <-h.Result()
	assert.False(t, ok, "abandoned handle delivers no outcome")
}

func TestSessionDeletedElsewhereIsInvalid(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	m := NewManager(b, time.Minute, nil, nil)

	h, err := m.Open(ctx, OpenRequest{})
	require.NoError(t, err)
	require.NoError(t, b.Delete(ctx, h.ID()))

	assert.Equal(t, Invalid, waitOutcome(t, h).Kind)
}

func TestMemorySubscribeSendsCurrentThenChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewMemoryBackend()

	events, err := b.Subscribe(ctx, "s")
	require.NoError(t, err)
	assert.True(t, (<-events).Deleted)

	require.NoError(t, b.Create(ctx, &domain.RelaySession{SessionID: "s", Status: domain.StatusPending}))
	assert.True(t, (<-events).Session.IsPending())

	require.NoError(t, b.Complete(ctx, "s", "n", "https://n.com"))
	ev := <-events
	assert.True(t, ev.Session.IsCompleted())
	assert.Equal(t, "n", ev.Session.Name)

	assert.ErrorIs(t, b.Complete(ctx, "s", "again", "https://a.com"), ErrNotPending)
	assert.ErrorIs(t, b.Create(ctx, &domain.RelaySession{SessionID: "s"}), ErrExists)

	cancel()
	for range events {
	}
}

func TestMemoryCreatedBefore(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	now := time.UnixMilli(10_000_000)
	require.NoError(t, b.Create(ctx, &domain.RelaySession{SessionID: "old", CreatedAt: now.Add(-2 * time.Hour).UnixMilli()}))
	require.NoError(t, b.Create(ctx, &domain.RelaySession{SessionID: "edge", CreatedAt: now.Add(-time.Hour).UnixMilli()}))
	require.NoError(t, b.Create(ctx, &domain.RelaySession{SessionID: "new", CreatedAt: now.UnixMilli()}))

	ids, err := b.CreatedBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"edge", "old"}, ids)
}

func TestQRURL(t *testing.T) {
	assert.Equal(t, "https://hub.example.com/add-app/abc?theme=dark",
		QRURL("https://hub.example.com/", "abc", domain.ThemeDark))
	assert.Equal(t, "https://hub.example.com/add-app/abc",
		QRURL("https://hub.example.com", "abc", ""))
}
