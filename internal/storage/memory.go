package storage

import "sync"

// Memory is an in-process backend. Handles created with Tab share data and
// see each other's changes, which is how tests model several clients on one
// machine.
type Memory struct {
	shared *memoryShared
	opts   options
}

type memoryShared struct {
	mu      sync.Mutex
	data    map[string]string
	closed  bool
	watch   watchers
	done    chan struct{}
	stopped sync.WaitGroup

	// pending is unbounded so writers never wait on watchers.
	pendingMu sync.Mutex
	pending   []Event
	wake      chan struct{}
}

var _ Storage = (*Memory)(nil)

// NewMemory returns an empty in-memory backend.
func NewMemory(opts ...Option) *Memory {
	shared := &memoryShared{
		data: make(map[string]string),
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
	}
	shared.stopped.Add(1)
	go shared.dispatch()
	return &Memory{shared: shared, opts: buildOptions(opts)}
}

// Tab returns another handle over the same data with its own origin.
func (m *Memory) Tab(opts ...Option) *Memory {
	o := buildOptions(opts)
	if o.quota == 0 {
		o.quota = m.opts.quota
	}
	return &Memory{shared: m.shared, opts: o}
}

// Get implements Storage.
func (m *Memory) Get(key string) (string, bool, error) {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	if m.shared.closed {
		return "", false, ErrClosed
	}
	value, ok := m.shared.data[key]
	return value, ok, nil
}

// Set implements Storage.
func (m *Memory) Set(key, value string) error {
	if err := m.opts.checkQuota(value); err != nil {
		return err
	}
	m.shared.mu.Lock()
	if m.shared.closed {
		m.shared.mu.Unlock()
		return ErrClosed
	}
	m.shared.data[key] = value
	m.shared.mu.Unlock()

	m.shared.publish(Event{Key: key, Origin: m.opts.origin})
	return nil
}

// Remove implements Storage.
func (m *Memory) Remove(key string) error {
	m.shared.mu.Lock()
	if m.shared.closed {
		m.shared.mu.Unlock()
		return ErrClosed
	}
	_, existed := m.shared.data[key]
	delete(m.shared.data, key)
	m.shared.mu.Unlock()

	if existed {
		m.shared.publish(Event{Key: key, Origin: m.opts.origin})
	}
	return nil
}

// Watch implements Storage. Events are delivered in order on a separate
// goroutine so a callback may call back into any handle.
func (m *Memory) Watch(fn func(Event)) func() {
	return m.shared.watch.add(fn)
}

// Origin implements Storage.
func (m *Memory) Origin() string {
	return m.opts.origin
}

// Close stops event delivery for every handle sharing this data.
func (m *Memory) Close() error {
	m.shared.mu.Lock()
	if m.shared.closed {
		m.shared.mu.Unlock()
		return nil
	}
	m.shared.closed = true
	close(m.shared.done)
	m.shared.mu.Unlock()

	m.shared.stopped.Wait()
	return nil
}

func (s *memoryShared) publish(ev Event) {
	s.pendingMu.Lock()
	s.pending = append(s.pending, ev)
	s.pendingMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *memoryShared) takePending() []Event {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch
}

func (s *memoryShared) dispatch() {
	defer s.stopped.Done()
	for {
		select {
		case <-s.wake:
			for _, ev := range s.takePending() {
				s.watch.emit(ev)
			}
		case <-s.done:
			return
		}
	}
}
