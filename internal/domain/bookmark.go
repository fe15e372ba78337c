package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// BookmarkItem is a single web-app shortcut on the launcher grid.
type BookmarkItem struct {
	// ID is opaque and stable, unique within one list.
	ID string `json:"id"`

	// Name is the display label. Never empty after trimming.
	Name string `json:"name"`

	// URL is always absolute (see NormalizeURL).
	URL string `json:"url"`
}

// BookmarkList is the ordered grid. Order drives the layout.
type BookmarkList []BookmarkItem

var schemeRe = regexp.MustCompile(`(?i)^https?://`)

// NormalizeURL trims raw, prepends https:// when no http(s) scheme is
// present and checks that the result parses with a host.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyURL
	}
	if !schemeRe.MatchString(s) {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" || strings.ContainsAny(u.Host, " \t") {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}
	return s, nil
}

// CleanName trims the label and rejects blank ones.
func CleanName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", ErrEmptyName
	}
	return n, nil
}

// NewItem validates name and rawURL and returns an item with a fresh ID.
// The name is checked first so a blank name is reported even when the URL
// is also bad.
func NewItem(name, rawURL string) (BookmarkItem, error) {
	n, err := CleanName(name)
	if err != nil {
		return BookmarkItem{}, err
	}
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return BookmarkItem{}, err
	}
	return BookmarkItem{ID: uuid.NewString(), Name: n, URL: u}, nil
}

// Validate reports the first invalid item or duplicate ID.
func (l BookmarkList) Validate() error {
	seen := make(map[string]struct{}, len(l))
	for i, it := range l {
		if it.ID == "" {
			return fmt.Errorf("item %d: %w", i, ErrMissingID)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("item %d (%s): %w", i, it.ID, ErrDuplicateID)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}

// Clone returns a copy that shares nothing with l.
func (l BookmarkList) Clone() BookmarkList {
	if l == nil {
		return nil
	}
	out := make(BookmarkList, len(l))
	copy(out, l)
	return out
}

// IndexOf returns the position of id, or -1.
func (l BookmarkList) IndexOf(id string) int {
	for i, it := range l {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Move removes the item at from and inserts it at to, like the grid's drop
// handler. A to past the end appends. The receiver is not modified.
func (l BookmarkList) Move(from, to int) (BookmarkList, error) {
	if from < 0 || from >= len(l) {
		return nil, fmt.Errorf("%w: from=%d len=%d", ErrIndexOutOfRange, from, len(l))
	}
	if to < 0 {
		return nil, fmt.Errorf("%w: to=%d", ErrIndexOutOfRange, to)
	}

	out := make(BookmarkList, 0, len(l))
	out = append(out, l[:from]...)
	out = append(out, l[from+1:]...)
	moved := l[from]

	if to >= len(out) {
		return append(out, moved), nil
	}
	out = append(out[:to+1], out[to:]...)
	out[to] = moved
	return out, nil
}

// Equal compares ids, names, urls and order.
func (l BookmarkList) Equal(other BookmarkList) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}
