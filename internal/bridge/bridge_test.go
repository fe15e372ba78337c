package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
)

var sample = domain.BookmarkList{
	{ID: "a", Name: "YouTube", URL: "https://www.youtube.com"},
	{ID: "b", Name: "Ünïcode & co", URL: "https://example.com/?q=1&r=2"},
	{ID: "c", Name: "Maps", URL: "https://maps.google.com"},
}

// failingCarrier always fails to send.
type failingCarrier struct{}

func (failingCarrier) Name() string { return "failing" }
func (failingCarrier) Send(context.Context, domain.BookmarkList) (url.Values, error) {
	return nil, errors.New("relay down")
}
func (failingCarrier) Receive(context.Context, url.Values) (domain.BookmarkList, error) {
	return nil, errors.New("relay down")
}

func TestInlineRoundTripThroughURL(t *testing.T) {
	ctx := context.Background()
	v, err := InlineCarrier{}.Send(ctx, sample)
	require.NoError(t, err)
	assert.Equal(t, "1", v.Get(ParamFullscreen))

	entry, err := EntryURL("https://hub.example.com/", v)
	require.NoError(t, err)

	u, err := url.Parse(entry)
	require.NoError(t, err)

	got, err := InlineCarrier{}.Receive(ctx, u.Query())
	require.NoError(t, err)
	assert.True(t, sample.Equal(got))
	assert.True(t, IsFullscreen(u.Query()))
}

func TestInlineRoundTripThroughRedirect(t *testing.T) {
	ctx := context.Background()
	v, err := InlineCarrier{}.Send(ctx, sample)
	require.NoError(t, err)
	entry, err := EntryURL("https://hub.example.com/", v)
	require.NoError(t, err)

	wrapped := WrapRedirect(entry, DefaultRedirector)
	outer, err := url.Parse(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "www.youtube.com", outer.Host)

	inner, err := url.Parse(outer.Query().Get("q"))
	require.NoError(t, err)
	got, err := InlineCarrier{}.Receive(ctx, inner.Query())
	require.NoError(t, err)
	assert.True(t, sample.Equal(got))

	assert.Equal(t, entry, WrapRedirect(entry, ""))
}

func TestInlineAcceptsOtherAlphabets(t *testing.T) {
	raw := []byte(`[{"id":"a","name":"A","url":"https://a.com/?x=>>>"}]`)
	for name, enc := range map[string]*base64.Encoding{
		"url":     base64.URLEncoding,
		"raw std": base64.RawStdEncoding,
		"raw url": base64.RawURLEncoding,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := InlineCarrier{}.Receive(context.Background(), url.Values{ParamApps: {enc.EncodeToString(raw)}})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "a", got[0].ID)
		})
	}
}

func TestInlineRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		v    url.Values
		want error
	}{
		{name: "absent", v: url.Values{}, want: ErrNoPayload},
		{name: "not base64", v: url.Values{ParamApps: {"%%%"}}, want: ErrMalformed},
		{name: "not json", v: url.Values{ParamApps: {base64.StdEncoding.EncodeToString([]byte("nope"))}}, want: ErrMalformed},
		{name: "duplicate ids", v: url.Values{ParamApps: {base64.StdEncoding.EncodeToString([]byte(`[{"id":"a"},{"id":"a"}]`))}}, want: ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InlineCarrier{}.Receive(context.Background(), tt.v)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSessionCarrierConsumesOnce(t *testing.T) {
	ctx := context.Background()
	backend := relay.NewMemoryBackend()
	c := NewSessionCarrier(relay.NewManager(backend, time.Minute, nil, nil))

	v, err := c.Send(ctx, sample)
	require.NoError(t, err)
	require.NotEmpty(t, v.Get(ParamSession))
	assert.Empty(t, v.Get(ParamApps))

	got, err := c.Receive(ctx, v)
	require.NoError(t, err)
	assert.True(t, sample.Equal(got))
	assert.Equal(t, 0, backend.Len())

	_, err = c.Receive(ctx, v)
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestSessionCarrierRejectsItemSession(t *testing.T) {
	ctx := context.Background()
	backend := relay.NewMemoryBackend()
	m := relay.NewManager(backend, time.Minute, nil, nil)
	s, err := m.Deposit(ctx, relay.OpenRequest{Kind: domain.KindItem})
	require.NoError(t, err)

	_, err = NewSessionCarrier(m).Receive(ctx, url.Values{ParamSession: {s.SessionID}})
	assert.ErrorIs(t, err, ErrMalformed)

	kept, err := backend.Get(ctx, s.SessionID)
	require.NoError(t, err, "an item session must survive a list read")
	assert.True(t, kept.IsPending())
	require.NoError(t, m.Complete(ctx, s.SessionID, "Plex", "https://app.plex.tv"))
}

func TestBridgePrefersSessionAndFallsBack(t *testing.T) {
	ctx := context.Background()
	backend := relay.NewMemoryBackend()
	session := NewSessionCarrier(relay.NewManager(backend, time.Minute, nil, nil))

	b := New(session, StrategySession, nil)
	v, err := b.Send(ctx, sample)
	require.NoError(t, err)
	assert.NotEmpty(t, v.Get(ParamSession))

	got, ok := b.Receive(ctx, v)
	require.True(t, ok)
	assert.True(t, sample.Equal(got))

	fallback := New(failingCarrier{}, StrategySession, nil)
	v, err = fallback.Send(ctx, sample)
	require.NoError(t, err)
	assert.NotEmpty(t, v.Get(ParamApps), "failed session carrier falls back to inline")

	inlineOnly := New(nil, StrategySession, nil)
	v, err = inlineOnly.Send(ctx, sample)
	require.NoError(t, err)
	assert.NotEmpty(t, v.Get(ParamApps))
}

func TestBridgeReceiveNeverFails(t *testing.T) {
	ctx := context.Background()
	backend := relay.NewMemoryBackend()
	b := New(NewSessionCarrier(relay.NewManager(backend, time.Minute, nil, nil)), StrategyInline, nil)

	inline, err := InlineCarrier{}.Send(ctx, sample)
	require.NoError(t, err)

	both := url.Values{ParamApps: inline[ParamApps], ParamSession: {"s1"}}
	_, ok := b.Receive(ctx, both)
	assert.False(t, ok, "both parameters are rejected")

	_, ok = b.Receive(ctx, url.Values{ParamApps: {"!!!"}})
	assert.False(t, ok)

	_, ok = b.Receive(ctx, url.Values{ParamSession: {"unknown"}})
	assert.False(t, ok)

	_, ok = b.Receive(ctx, url.Values{})
	assert.False(t, ok)

	_, ok = New(nil, StrategyInline, nil).Receive(ctx, url.Values{ParamSession: {"s1"}})
	assert.False(t, ok)
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, StrategySession, ParseStrategy(" Session "))
	assert.Equal(t, StrategyInline, ParseStrategy("inline"))
	assert.Equal(t, StrategyInline, ParseStrategy("carrier-pigeon"))
}
