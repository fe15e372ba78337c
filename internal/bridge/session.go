package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
)

// SessionCarrier stores the list in a relay session and passes only its
// id: ?fullscreen_session=<id>. Receiving consumes the record.
type SessionCarrier struct {
	manager *relay.Manager
}

func NewSessionCarrier(m *relay.Manager) *SessionCarrier {
	return &SessionCarrier{manager: m}
}

func (c *SessionCarrier) Name() string { return string(StrategySession) }

func (c *SessionCarrier) Send(ctx context.Context, list domain.BookmarkList) (url.Values, error) {
	if err := list.Validate(); err != nil {
		return nil, err
	}
	if list == nil {
		list = domain.BookmarkList{}
	}
	s, err := c.manager.Deposit(ctx, relay.OpenRequest{Kind: domain.KindList, Apps: list})
	if err != nil {
		return nil, err
	}
	return url.Values{ParamSession: {s.SessionID}}, nil
}

func (c *SessionCarrier) Receive(ctx context.Context, v url.Values) (domain.BookmarkList, error) {
	id := v.Get(ParamSession)
	if id == "" {
		return nil, ErrNoPayload
	}

	s, err := c.manager.Consume(ctx, id, domain.KindList)
	switch {
	case errors.Is(err, relay.ErrNotFound):
		return nil, fmt.Errorf("%w: session %s is gone", ErrNoPayload, id)
	case errors.Is(err, relay.ErrWrongKind):
		return nil, fmt.Errorf("%w: session %s is not a list", ErrMalformed, id)
	case err != nil:
		return nil, err
	}
	if err := s.Apps.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	list := s.Apps
	if list == nil {
		list = domain.BookmarkList{}
	}
	return list, nil
}
