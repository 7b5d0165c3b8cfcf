package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

const eventWait = 2 * time.Second

func collectEvents(t *testing.T, s Storage) (<-chan Event, func()) {
	t.Helper()
	ch := make(chan Event, 64)
	stop := s.Watch(func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	return ch, stop
}

func waitEvent(t *testing.T, ch <-chan Event, key string) Event {
	t.Helper()
	deadline := time.After(eventWait)
	for {
		select {
		case ev := <-ch:
			if ev.Key == key {
				return ev
			}
		case <-deadline:
			t.Fatalf("no event for key %q within %v", key, eventWait)
			return Event{}
		}
	}
}

// exerciseBasics runs the read/write contract shared by every backend.
func exerciseBasics(t *testing.T, s Storage) {
	t.Helper()

	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want not found", ok, err)
	}
	if err := s.Set("bobmap.social.u1", `{"version":1}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get("bobmap.social.u1")
	if err != nil || !ok || got != `{"version":1}` {
		t.Fatalf("Get = %q ok=%v err=%v", got, ok, err)
	}
	if err := s.Set("bobmap.social.u1", `{"version":2}`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _, _ := s.Get("bobmap.social.u1"); got != `{"version":2}` {
		t.Fatalf("after overwrite Get = %q", got)
	}
	if err := s.Remove("bobmap.social.u1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := s.Get("bobmap.social.u1"); ok {
		t.Fatalf("key still present after Remove")
	}
	if err := s.Remove("bobmap.social.u1"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestMemoryBasics(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	exerciseBasics(t, m)
}

func TestMemoryQuota(t *testing.T) {
	m := NewMemory(WithQuota(4))
	defer m.Close()

	if err := m.Set("k", "1234"); err != nil {
		t.Fatalf("Set at quota: %v", err)
	}
	err := m.Set("k", "12345")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Set over quota err = %v, want ErrQuotaExceeded", err)
	}
	if got, _, _ := m.Get("k"); got != "1234" {
		t.Fatalf("rejected write changed value to %q", got)
	}
}

func TestMemoryTabsShareDataAndEvents(t *testing.T) {
	a := NewMemory(WithOrigin("tab-a"))
	defer a.Close()
	b := a.Tab(WithOrigin("tab-b"))

	events, stop := collectEvents(t, b)
	defer stop()

	if err := a.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ev := waitEvent(t, events, "k")
	if ev.Origin != "tab-a" {
		t.Fatalf("event origin = %q, want tab-a", ev.Origin)
	}
	if got, ok, _ := b.Get("k"); !ok || got != "v" {
		t.Fatalf("tab b Get = %q ok=%v", got, ok)
	}
	if a.Origin() == b.Origin() {
		t.Fatalf("tabs share origin %q", a.Origin())
	}
}

func TestMemorySetDoesNotWaitForSlowWatcher(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	release := make(chan struct{})
	var mu sync.Mutex
	var seen []string
	stop := m.Watch(func(ev Event) {
		<-release
		mu.Lock()
		seen = append(seen, ev.Key)
		mu.Unlock()
	})
	defer stop()

	const writes = 1000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < writes; i++ {
			if err := m.Set(fmt.Sprintf("k%d", i), "v"); err != nil {
				t.Errorf("Set: %v", err)
				return
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(eventWait):
		close(release)
		t.Fatalf("Set blocked behind a stalled watcher")
	}

	close(release)
	deadline := time.Now().Add(eventWait)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == writes {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("delivered %d events, want %d", n, writes)
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, key := range seen {
		if want := fmt.Sprintf("k%d", i); key != want {
			t.Fatalf("event %d key = %q, want %q", i, key, want)
		}
	}
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := m.Set("k", "v"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Set after close err = %v, want ErrClosed", err)
	}
	if _, _, err := m.Get("k"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Get after close err = %v, want ErrClosed", err)
	}
}

func TestWatchersStopIsIdempotentAndOrdered(t *testing.T) {
	var w watchers
	var order []int

	stop1 := w.add(func(Event) { order = append(order, 1) })
	w.add(func(Event) { order = append(order, 2) })
	stop3 := w.add(func(Event) { order = append(order, 3) })

	w.emit(Event{Key: "k"})
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order = %v, want [1 2 3]", order)
	}

	stop1()
	stop1()
	stop3()
	order = nil
	w.emit(Event{Key: "k"})
	if len(order) != 1 || order[0] != 2 {
		t.Fatalf("after stop order = %v, want [2]", order)
	}
	if w.len() != 1 {
		t.Fatalf("len = %d, want 1", w.len())
	}
}

func TestDefaultOriginsAreUnique(t *testing.T) {
	a := buildOptions(nil)
	b := buildOptions(nil)
	if a.origin == "" || a.origin == b.origin {
		t.Fatalf("origins = %q, %q; want distinct non-empty", a.origin, b.origin)
	}
}
