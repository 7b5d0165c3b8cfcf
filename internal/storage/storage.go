package storage

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrQuotaExceeded is returned by Set when a value is larger than the
	// configured quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrUnavailable wraps backend failures (disk, network, database).
	ErrUnavailable = errors.New("storage unavailable")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("storage closed")
)

// Event reports that a key was written or removed, possibly by another
// client sharing the same backend.
type Event struct {
	Key string
	// Origin identifies the Storage handle that made the change. It is empty
	// when the backend cannot tell (file watches).
	Origin string
}

// Storage is a synchronous string key/value store shared by every client
// pointed at the same backend.
type Storage interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	// Watch calls fn for every change seen on the backend, including this
	// handle's own writes. The returned function stops delivery.
	Watch(fn func(Event)) (stop func())
	// Origin is this handle's id as carried in Event.Origin.
	Origin() string
	Close() error
}

// Option tunes a backend.
type Option func(*options)

type options struct {
	quota  int
	origin string
}

// WithQuota caps the size in bytes of a single stored value. Zero disables
// the cap.
func WithQuota(bytes int) Option {
	return func(o *options) {
		if bytes > 0 {
			o.quota = bytes
		}
	}
}

// WithOrigin overrides the generated handle id.
func WithOrigin(origin string) Option {
	return func(o *options) {
		if origin != "" {
			o.origin = origin
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{origin: uuid.NewString()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) checkQuota(value string) error {
	if o.quota > 0 && len(value) > o.quota {
		return ErrQuotaExceeded
	}
	return nil
}

// watchers is an ordered set of change callbacks.
type watchers struct {
	mu    sync.Mutex
	next  int
	order []int
	fns   map[int]func(Event)
}

func (w *watchers) add(fn func(Event)) func() {
	w.mu.Lock()
	if w.fns == nil {
		w.fns = make(map[int]func(Event))
	}
	w.next++
	id := w.next
	w.fns[id] = fn
	w.order = append(w.order, id)
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.fns, id)
			for i, v := range w.order {
				if v == id {
					w.order = append(w.order[:i:i], w.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (w *watchers) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.fns)
}

func (w *watchers) emit(ev Event) {
	w.mu.Lock()
	fns := make([]func(Event), 0, len(w.order))
	for _, id := range w.order {
		fns = append(fns, w.fns[id])
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
