package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/teslahub/internal/logger"
)

// File keeps a profile as one JSON object on disk. Separate processes
// opening the same path behave like tabs of one browser: Watch reports
// changes made by any of them.
//
// Writes go to a temp file that is renamed over the profile, so readers
// never observe a half-written area.
type File struct {
	path   string
	logger logger.Logger

	mu sync.Mutex // serializes read-modify-write inside this process
}

// NewFile opens (or lazily creates) the profile at path.
func NewFile(path string, log logger.Logger) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profile path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create profile directory: %v", ErrUnavailable, err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &File{path: abs, logger: log}, nil
}

// Path returns the absolute profile path.
func (f *File) Path() string { return f.path }

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	items, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := items[key]
	return v, ok, nil
}

func (f *File) SetItems(_ context.Context, items map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read()
	if err != nil {
		return err
	}
	for k, v := range items {
		current[k] = v
	}
	return f.write(current)
}

func (f *File) Remove(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := current[k]; ok {
			delete(current, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.write(current)
}

// Watch watches the profile directory and diffs the file on every event
// that touches it.
func (f *File) Watch(ctx context.Context) (<-chan Change, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(f.path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch profile directory: %w", err)
	}

	last, err := f.read()
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}

	var bc broadcaster
	out := bc.add(ctx)

	go func() {
		defer func() { _ = fsw.Close() }()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != f.path {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}

				now, err := f.read()
				if err != nil {
					// Caught mid-replace or unreadable: the next event re-diffs.
					f.logger.Debug("profile re-read failed",
						logger.String("path", f.path),
						logger.Error(err))
					continue
				}
				bc.publish(diff(last, now))
				last = now

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				f.logger.Warn("profile watcher error",
					logger.String("path", f.path),
					logger.Error(err))
			}
		}
	}()

	return out, nil
}

func (f *File) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}

	items := map[string]string{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: corrupt profile: %v", ErrUnavailable, err)
	}
	return items, nil
}

func (f *File) write(items map[string]string) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".profile-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
