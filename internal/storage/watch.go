package storage

import (
	"context"
	"sync"
)

// watcher buffers changes for one subscriber so a slow reader never blocks
// a writer and never loses an event.
type watcher struct {
	out    chan Change
	signal chan struct{}

	mu    sync.Mutex
	queue []Change
}

func (w *watcher) push(changes []Change) {
	w.mu.Lock()
	w.queue = append(w.queue, changes...)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) pop() (Change, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return Change{}, false
	}
	next := w.queue[0]
	w.queue = w.queue[1:]
	return next, true
}

// pump delivers queued changes until ctx is done.
func (w *watcher) pump(ctx context.Context, done func()) {
	defer close(w.out)
	defer done()

	for {
		next, ok := w.pop()
		if !ok {
			select {
			case <-w.signal:
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case w.out <- next:
		case <-ctx.Done():
			return
		}
	}
}

func newWatcher() *watcher {
	return &watcher{
		out:    make(chan Change),
		signal: make(chan struct{}, 1),
	}
}

// broadcaster fans changes out to every live watcher.
type broadcaster struct {
	mu       sync.Mutex
	watchers map[*watcher]struct{}
}

func (b *broadcaster) add(ctx context.Context) <-chan Change {
	w := newWatcher()

	b.mu.Lock()
	if b.watchers == nil {
		b.watchers = make(map[*watcher]struct{})
	}
	b.watchers[w] = struct{}{}
	b.mu.Unlock()

	go w.pump(ctx, func() { b.remove(w) })
	return w.out
}

func (b *broadcaster) remove(w *watcher) {
	b.mu.Lock()
	delete(b.watchers, w)
	b.mu.Unlock()
}

func (b *broadcaster) publish(changes []Change) {
	if len(changes) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for w := range b.watchers {
		w.push(changes)
	}
}
