package domain

import (
	"errors"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "bare host gets https", raw: "example.com", want: "https://example.com"},
		{name: "surrounding spaces trimmed", raw: "  example.com/path  ", want: "https://example.com/path"},
		{name: "https kept", raw: "https://netflix.com", want: "https://netflix.com"},
		{name: "http kept", raw: "http://intranet.local:8080", want: "http://intranet.local:8080"},
		{name: "scheme match is case-insensitive", raw: "HTTPS://Example.com", want: "HTTPS://Example.com"},
		{name: "empty", raw: "", wantErr: ErrEmptyURL},
		{name: "whitespace only", raw: "   ", wantErr: ErrEmptyURL},
		{name: "scheme without host", raw: "https://", wantErr: ErrInvalidURL},
		{name: "space in host", raw: "exa mple.com", wantErr: ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NormalizeURL(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
				}
				if !IsValidation(err) {
					t.Errorf("IsValidation(%v) = false, want true", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeURL(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNewItem(t *testing.T) {
	item, err := NewItem("  Netflix ", "netflix.com")
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	if item.ID == "" {
		t.Error("NewItem() should assign an id")
	}
	if item.Name != "Netflix" {
		t.Errorf("Name = %q, want %q", item.Name, "Netflix")
	}
	if item.URL != "https://netflix.com" {
		t.Errorf("URL = %q, want %q", item.URL, "https://netflix.com")
	}

	other, _ := NewItem("Netflix", "netflix.com")
	if other.ID == item.ID {
		t.Error("NewItem() should assign distinct ids")
	}
}

func TestNewItemRejectsBlankNameFirst(t *testing.T) {
	_, err := NewItem("  ", "example.com")
	if !errors.Is(err, ErrEmptyName) {
		t.Fatalf("NewItem() error = %v, want %v", err, ErrEmptyName)
	}

	_, err = NewItem("", "")
	if !errors.Is(err, ErrEmptyName) {
		t.Fatalf("NewItem() with both empty error = %v, want %v", err, ErrEmptyName)
	}
}

func TestBookmarkListValidate(t *testing.T) {
	ok := BookmarkList{{ID: "a", Name: "A", URL: "https://a.com"}, {ID: "b", Name: "B", URL: "https://b.com"}}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	dup := BookmarkList{{ID: "a"}, {ID: "a"}}
	if err := dup.Validate(); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Validate() = %v, want %v", err, ErrDuplicateID)
	}

	missing := BookmarkList{{Name: "x"}}
	if err := missing.Validate(); !errors.Is(err, ErrMissingID) {
		t.Errorf("Validate() = %v, want %v", err, ErrMissingID)
	}
}

func ids(l BookmarkList) string {
	s := ""
	for _, it := range l {
		s += it.ID
	}
	return s
}

func TestBookmarkListMove(t *testing.T) {
	base := BookmarkList{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	tests := []struct {
		name     string
		from, to int
		want     string
		wantErr  bool
	}{
		{name: "forward", from: 0, to: 2, want: "bcad"},
		{name: "backward", from: 3, to: 0, want: "dabc"},
		{name: "same position", from: 1, to: 1, want: "abcd"},
		{name: "past end appends", from: 0, to: 10, want: "bcda"},
		{name: "last slot", from: 1, to: 3, want: "acdb"},
		{name: "bad from", from: 4, to: 0, wantErr: true},
		{name: "negative to", from: 0, to: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := base.Move(tt.from, tt.to)
			if tt.wantErr {
				if !errors.Is(err, ErrIndexOutOfRange) {
					t.Fatalf("Move() error = %v, want %v", err, ErrIndexOutOfRange)
				}
				return
			}
			if err != nil {
				t.Fatalf("Move() unexpected error: %v", err)
			}
			if ids(got) != tt.want {
				t.Errorf("Move(%d, %d) = %s, want %s", tt.from, tt.to, ids(got), tt.want)
			}
			if ids(base) != "abcd" {
				t.Errorf("Move() modified the receiver: %s", ids(base))
			}
		})
	}
}

func TestBookmarkListCloneAndEqual(t *testing.T) {
	l := BookmarkList{{ID: "a", Name: "X", URL: "https://x.com"}}
	c := l.Clone()
	if !l.Equal(c) {
		t.Fatal("Clone() should be Equal to the original")
	}
	c[0].Name = "Y"
	if l[0].Name != "X" {
		t.Error("Clone() shares storage with the original")
	}
	if l.Equal(c) {
		t.Error("Equal() should detect a changed name")
	}
	if BookmarkList(nil).Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestSnapshotShouldApply(t *testing.T) {
	tests := []struct {
		name  string
		snap  VersionedSnapshot
		local int64
		self  string
		want  bool
	}{
		{name: "newer from peer", snap: VersionedSnapshot{Version: 2, SourceID: "b"}, local: 1, self: "a", want: true},
		{name: "equal version", snap: VersionedSnapshot{Version: 1, SourceID: "b"}, local: 1, self: "a", want: false},
		{name: "stale", snap: VersionedSnapshot{Version: 1, SourceID: "b"}, local: 3, self: "a", want: false},
		{name: "self echo", snap: VersionedSnapshot{Version: 5, SourceID: "a"}, local: 1, self: "a", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.ShouldApply(tt.local, tt.self); got != tt.want {
				t.Errorf("ShouldApply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThemeToggle(t *testing.T) {
	if ThemeLight.Toggle() != ThemeDark || ThemeDark.Toggle() != ThemeLight {
		t.Error("Toggle() should flip light and dark")
	}
	if ParseTheme("neon") != ThemeLight {
		t.Error("ParseTheme() should fall back to light")
	}
}
