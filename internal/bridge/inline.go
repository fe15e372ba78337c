package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
)

// InlineCarrier puts the whole list in the URL as base64 JSON:
// ?apps=<base64>&fullscreen=1
type InlineCarrier struct{}

func (InlineCarrier) Name() string { return string(StrategyInline) }

func (InlineCarrier) Send(_ context.Context, list domain.BookmarkList) (url.Values, error) {
	if list == nil {
		list = domain.BookmarkList{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("failed to encode list: %w", err)
	}
	return url.Values{
		ParamApps:       {base64.StdEncoding.EncodeToString(data)},
		ParamFullscreen: {"1"},
	}, nil
}

func (InlineCarrier) Receive(_ context.Context, v url.Values) (domain.BookmarkList, error) {
	raw := v.Get(ParamApps)
	if raw == "" {
		return nil, ErrNoPayload
	}

	data, err := decodeBase64(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var list domain.BookmarkList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := list.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if list == nil {
		list = domain.BookmarkList{}
	}
	return list, nil
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not. A
// '+' that went through a form decoder arrives as a space.
func decodeBase64(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, " ", "+")
	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
