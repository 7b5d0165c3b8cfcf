package storage

import (
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const tempPrefix = ".tmp-"

// File stores one file per key under a directory. Writes are atomic renames,
// so a concurrent reader sees either the old or the new value. Changes made
// by other processes are picked up with fsnotify.
type File struct {
	dir  string
	opts options

	mu      sync.Mutex
	closed  bool
	watch   watchers
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

var _ Storage = (*File)(nil)

// NewFile opens (creating if needed) a directory-backed store.
func NewFile(dir string, opts ...Option) (*File, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create storage dir: %v", ErrUnavailable, err)
	}
	return &File{dir: dir, opts: buildOptions(opts), done: make(chan struct{})}, nil
}

// Get implements Storage.
func (f *File) Get(key string) (string, bool, error) {
	if f.isClosed() {
		return "", false, ErrClosed
	}
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	return string(data), true, nil
}

// Set implements Storage.
func (f *File) Set(key, value string) error {
	if err := f.opts.checkQuota(value); err != nil {
		return err
	}
	if f.isClosed() {
		return ErrClosed
	}

	tmp, err := os.CreateTemp(f.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrUnavailable, key, err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Remove implements Storage.
func (f *File) Remove(key string) error {
	if f.isClosed() {
		return ErrClosed
	}
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Watch implements Storage. The fsnotify watcher starts with the first
// callback; if it cannot start, no events are delivered and callers must
// rely on polling.
func (f *File) Watch(fn func(Event)) func() {
	stop := f.watch.add(fn)
	f.startWatcher()
	return stop
}

// Origin implements Storage.
func (f *File) Origin() string {
	return f.opts.origin
}

// Close implements Storage.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.done)
	watcher := f.watcher
	f.mu.Unlock()

	var err error
	if watcher != nil {
		err = watcher.Close()
	}
	f.wg.Wait()
	return err
}

func (f *File) startWatcher() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.watcher != nil {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("storage watch unavailable", "dir", f.dir, "error", err)
		return
	}
	if err := watcher.Add(f.dir); err != nil {
		_ = watcher.Close()
		log.Warn("storage watch unavailable", "dir", f.dir, "error", err)
		return
	}
	f.watcher = watcher

	f.wg.Add(1)
	go f.loop(watcher)
}

func (f *File) loop(watcher *fsnotify.Watcher) {
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			key, ok := f.keyFor(ev.Name)
			if !ok {
				continue
			}
			f.watch.emit(Event{Key: key})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("storage watch error", "dir", f.dir, "error", err)
		}
	}
}

func (f *File) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *File) path(key string) string {
	name := url.PathEscape(key)
	// Leading dots would hide the file, collide with temp files or escape dir.
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return filepath.Join(f.dir, name)
}

func (f *File) keyFor(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, tempPrefix) {
		return "", false
	}
	key, err := url.PathUnescape(base)
	if err != nil {
		return "", false
	}
	return key, true
}
