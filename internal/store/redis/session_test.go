package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, nil), mr
}

func pending(id string, created time.Time) *domain.RelaySession {
	return &domain.RelaySession{
		SessionID: id,
		Status:    domain.StatusPending,
		Kind:      domain.KindItem,
		CreatedAt: created.UnixMilli(),
	}
}

func nextEvent(t *testing.T, ch <-chan relay.Event) relay.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return relay.Event{}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "teslahub:session:abc", SessionKey("abc"))
	assert.Equal(t, "teslahub:session-events:abc", EventsChannel("abc"))

	id, err := ExtractSessionID(SessionKey("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = ExtractSessionID("teslahub:session:")
	assert.Error(t, err)
}

func TestCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	require.NoError(t, s.Create(ctx, pending("s1", time.Now())))
	assert.True(t, mr.Exists(SessionKey("s1")))
	assert.ErrorIs(t, s.Create(ctx, pending("s1", time.Now())), relay.ErrExists)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)

	require.NoError(t, s.Delete(ctx, "s1"))
	require.NoError(t, s.Delete(ctx, "s1"), "delete twice is a no-op")

	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, relay.ErrNotFound)
}

func TestCompleteIsConditional(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	assert.ErrorIs(t, s.Complete(ctx, "missing", "n", "https://n.com"), relay.ErrNotFound)

	require.NoError(t, s.Create(ctx, pending("s1", time.Now())))
	require.NoError(t, s.Complete(ctx, "s1", "Netflix", "https://netflix.com"))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.IsCompleted())
	assert.Equal(t, "Netflix", got.Name)

	assert.ErrorIs(t, s.Complete(ctx, "s1", "Other", "https://other.com"), relay.ErrNotPending)
}

func TestTakeHandsOutOnce(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	_, err := s.Take(ctx, "missing", "")
	assert.ErrorIs(t, err, relay.ErrNotFound)

	require.NoError(t, s.Create(ctx, pending("item", time.Now())))
	_, err = s.Take(ctx, "item", domain.KindList)
	require.ErrorIs(t, err, relay.ErrWrongKind)
	assert.True(t, mr.Exists(SessionKey("item")), "a wrong-kind take keeps the session")

	list := pending("list", time.Now())
	list.Kind = domain.KindList
	require.NoError(t, s.Create(ctx, list))

	var delivered atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Take(ctx, "list", domain.KindList); err == nil {
				delivered.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), delivered.Load())
	assert.False(t, mr.Exists(SessionKey("list")))
	ids, err := s.CreatedBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"item"}, ids, "taken session leaves the index")
}

func TestDeleteIfPending(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	assert.ErrorIs(t, s.DeleteIfPending(ctx, "missing"), relay.ErrNotFound)

	require.NoError(t, s.Create(ctx, pending("p", time.Now())))
	require.NoError(t, s.Create(ctx, pending("c", time.Now())))
	require.NoError(t, s.Complete(ctx, "c", "Netflix", "https://netflix.com"))

	require.NoError(t, s.DeleteIfPending(ctx, "p"))
	assert.False(t, mr.Exists(SessionKey("p")))

	require.ErrorIs(t, s.DeleteIfPending(ctx, "c"), relay.ErrNotPending)
	got, err := s.Get(ctx, "c")
	require.NoError(t, err, "a completed session is kept")
	assert.Equal(t, "Netflix", got.Name)
}

func TestCreatedBefore(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	now := time.Now()

	require.NoError(t, s.Create(ctx, pending("old", now.Add(-2*time.Hour))))
	require.NoError(t, s.Create(ctx, pending("new", now)))

	ids, err := s.CreatedBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids)

	require.NoError(t, s.Delete(ctx, "old"))
	ids, err = s.CreatedBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSubscribeStreamsChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := newTestStore(t)

	require.NoError(t, s.Create(ctx, pending("s1", time.Now())))

	events, err := s.Subscribe(ctx, "s1")
	require.NoError(t, err)

	ev := nextEvent(t, events)
	require.NotNil(t, ev.Session)
	assert.True(t, ev.Session.IsPending())

	require.NoError(t, s.Complete(ctx, "s1", "n", "https://n.com"))
	ev = nextEvent(t, events)
	require.NotNil(t, ev.Session)
	assert.True(t, ev.Session.IsCompleted())

	require.NoError(t, s.Delete(ctx, "s1"))
	ev = nextEvent(t, events)
	assert.True(t, ev.Deleted)
}

func TestManagerOverRedis(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	m := relay.NewManager(s, time.Minute, nil, nil)

	h, err := m.Open(ctx, relay.OpenRequest{})
	require.NoError(t, err)

	_, err = relay.Submit(ctx, s, h.ID(), "Maps", "maps.google.com")
	require.NoError(t, err)

	select {
	case o := <-h.Result():
		assert.Equal(t, relay.Completed, o.Kind)
		assert.Equal(t, "https://maps.google.com", o.Session.URL)
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome")
	}

	<-h.Done()
	_, err = s.Get(ctx, h.ID())
	assert.ErrorIs(t, err, relay.ErrNotFound)
}
