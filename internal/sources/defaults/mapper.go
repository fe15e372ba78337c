package defaults

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/region"
)

// Bookmark is a normalized default entry.
type Bookmark struct {
	Item   domain.BookmarkItem
	Region region.Code
}

// Mapper converts the raw document to normalized bookmarks
type Mapper struct{}

// NewMapper creates a new mapper
func NewMapper() *Mapper {
	return &Mapper{}
}

// Map normalizes every usable entry. Entries without a name, with an
// unusable URL or an unknown region are skipped; so are repeated URLs
// within one region. A document with nothing usable is an error.
func (m *Mapper) Map(doc Document) ([]Bookmark, error) {
	out := make([]Bookmark, 0, len(doc))
	seen := make(map[region.Code]map[string]struct{})

	for _, e := range doc {
		name, err := domain.CleanName(e.Name)
		if err != nil {
			continue
		}
		u, err := domain.NormalizeURL(e.URL)
		if err != nil {
			continue
		}
		code, ok := region.Parse(e.Region)
		if !ok {
			if e.Region != "" {
				continue
			}
			code = region.Global
		}

		if seen[code] == nil {
			seen[code] = make(map[string]struct{})
		}
		if _, dup := seen[code][u]; dup {
			continue
		}
		seen[code][u] = struct{}{}

		out = append(out, Bookmark{
			Item: domain.BookmarkItem{
				ID:   generateBookmarkID(u),
				Name: name,
				URL:  u,
			},
			Region: code,
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no valid bookmarks found in defaults")
	}
	return out, nil
}

// ForRegion returns the entries of code followed by the Global ones, in
// file order, without repeating a URL.
func ForRegion(all []Bookmark, code region.Code) domain.BookmarkList {
	list := domain.BookmarkList{}
	seen := make(map[string]struct{})

	add := func(want region.Code) {
		for _, b := range all {
			if b.Region != want {
				continue
			}
			if _, dup := seen[b.Item.URL]; dup {
				continue
			}
			seen[b.Item.URL] = struct{}{}
			list = append(list, b.Item)
		}
	}

	if code != region.Global {
		add(code)
	}
	add(region.Global)
	return list
}

// generateBookmarkID creates a stable ID from a URL using SHA-256 hash
// This ensures that the same URL always produces the same ID,
// even if the name changes
func generateBookmarkID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}
