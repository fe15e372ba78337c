package defaults

import (
	"context"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/region"
)

// FileSource reads the file on every call. It suits the CLI, where a
// profile is bootstrapped once.
type FileSource struct {
	loader *Loader
	mapper *Mapper
}

func NewFileSource(path string) *FileSource {
	return &FileSource{loader: NewLoader(path), mapper: NewMapper()}
}

// Defaults returns the set for r.
func (s *FileSource) Defaults(_ context.Context, r region.Code) (domain.BookmarkList, error) {
	doc, err := s.loader.Load()
	if err != nil {
		return nil, err
	}
	all, err := s.mapper.Map(doc)
	if err != nil {
		return nil, err
	}
	return ForRegion(all, r), nil
}
