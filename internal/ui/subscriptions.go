package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bobmap/internal/social"
)

// eventBuffer bounds the store events waiting for a redraw. Dropped events
// are harmless since the view reads current values from the store.
const eventBuffer = 64

// subscriptions tracks the store topics the visible cards depend on. It is
// shared by every copy of the model.
type subscriptions struct {
	store  *social.Store
	events chan social.Event

	mu     sync.Mutex
	active map[string]func()
	closed bool
}

func newSubscriptions(store *social.Store) *subscriptions {
	return &subscriptions{
		store:  store,
		events: make(chan social.Event, eventBuffer),
		active: make(map[string]func()),
	}
}

// set subscribes to topics not yet watched and drops those no longer wanted.
func (s *subscriptions) set(topics []string) {
	if s.store == nil {
		return
	}
	want := make(map[string]bool, len(topics))
	for _, topic := range topics {
		want[topic] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for topic, unsubscribe := range s.active {
		if !want[topic] {
			unsubscribe()
			delete(s.active, topic)
		}
	}
	for topic := range want {
		if _, ok := s.active[topic]; ok {
			continue
		}
		s.active[topic] = s.store.Subscribe(topic, s.forward)
	}
}

// count reports how many topics are currently watched.
func (s *subscriptions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// close unsubscribes everything. Later calls to set are ignored.
func (s *subscriptions) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, unsubscribe := range s.active {
		unsubscribe()
		delete(s.active, topic)
	}
	s.closed = true
}

func (s *subscriptions) forward(ev social.Event) {
	select {
	case s.events <- ev:
	default:
	}
}

func waitForEvent(ch <-chan social.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return storeEventMsg(ev)
	}
}
