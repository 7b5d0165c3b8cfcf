package social

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeAPI struct {
	mu    sync.Mutex
	calls []string
	err   error
	// block, when set for a call name, is received from before returning.
	block map[string]chan error
}

func (f *fakeAPI) call(name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	ch := f.block[name]
	err := f.err
	f.mu.Unlock()
	if ch != nil {
		return <-ch
	}
	return err
}

func (f *fakeAPI) Like(_ context.Context, s Subject) error   { return f.call("like " + s.Key()) }
func (f *fakeAPI) Unlike(_ context.Context, s Subject) error { return f.call("unlike " + s.Key()) }
func (f *fakeAPI) Save(_ context.Context, s Subject, note string) error {
	return f.call("save " + s.Key() + " " + note)
}
func (f *fakeAPI) Unsave(_ context.Context, s Subject) error { return f.call("unsave " + s.Key()) }
func (f *fakeAPI) Follow(_ context.Context, id string) error { return f.call("follow " + id) }
func (f *fakeAPI) Unfollow(_ context.Context, id string) error {
	return f.call("unfollow " + id)
}

func (f *fakeAPI) callLog() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.calls, "; ")
}

type toasts struct {
	mu   sync.Mutex
	msgs []string
}

func (t *toasts) Notify(msg string) {
	t.mu.Lock()
	t.msgs = append(t.msgs, msg)
	t.mu.Unlock()
}

func (t *toasts) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

func newTestActions(t *testing.T, userID string) (*Actions, *Store, *fakeAPI, *toasts, *fakeIdentity) {
	t.Helper()
	store, _, id := newTestStore(t, userID)
	api := &fakeAPI{}
	notes := &toasts{}
	return NewActions(store, api, notes), store, api, notes, id
}

var p1 = Subject{Type: Playlist, ID: "p1"}

func TestActions_LikeSuccess(t *testing.T) {
	a, store, api, notes, _ := newTestActions(t, "u1")

	m, err := a.ToggleLike(context.Background(), p1)
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if !m.Active || !store.IsLiked(Playlist, "p1") {
		t.Fatalf("like not applied: %#v", m)
	}
	if _, err := a.ToggleLike(context.Background(), p1); err != nil {
		t.Fatalf("second ToggleLike: %v", err)
	}
	if got := api.callLog(); got != "like playlist:p1; unlike playlist:p1" {
		t.Fatalf("api calls = %q", got)
	}
	if notes.count() != 0 {
		t.Fatalf("toast on success")
	}
}

func TestActions_FailureRollsBack(t *testing.T) {
	a, store, api, notes, _ := newTestActions(t, "u1")
	api.err = errors.New("503")
	store.GetCount(Playlist, "p1", 9)

	var seen []bool
	defer store.Subscribe(LikeTopic(Playlist, "p1"), func(ev Event) { seen = append(seen, ev.Active) })()

	_, err := a.ToggleLike(context.Background(), p1)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want wrapped api error", err)
	}
	if store.IsLiked(Playlist, "p1") {
		t.Fatalf("like not rolled back")
	}
	if got := store.GetCount(Playlist, "p1", 9); got != 9 {
		t.Fatalf("count = %d after rollback, want 9", got)
	}
	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Fatalf("like events = %v, want [true false]", seen)
	}
	if notes.count() != 1 || notes.msgs[0] != FailureMessage {
		t.Fatalf("toasts = %v", notes.msgs)
	}
}

func TestActions_StaleFailureIgnored(t *testing.T) {
	a, store, api, notes, _ := newTestActions(t, "u1")
	release := make(chan error)
	api.block = map[string]chan error{"like playlist:p1": release}

	done := make(chan error, 1)
	go func() {
		_, err := a.ToggleLike(context.Background(), p1)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !store.IsLiked(Playlist, "p1") {
		if time.Now().After(deadline) {
			t.Fatalf("optimistic like never applied")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := a.ToggleLike(context.Background(), p1); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	release <- errors.New("timeout")

	if err := <-done; err == nil {
		t.Fatalf("stale failure returned nil error")
	}
	if store.IsLiked(Playlist, "p1") {
		t.Fatalf("stale rollback re-liked the subject")
	}
	if notes.count() != 0 {
		t.Fatalf("stale failure raised a toast")
	}
}

func TestActions_RequireLogin(t *testing.T) {
	a, _, api, _, _ := newTestActions(t, "")

	if _, err := a.ToggleLike(context.Background(), p1); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("ToggleLike err = %v, want ErrNotLoggedIn", err)
	}
	if _, err := a.ToggleSave(context.Background(), p1, ""); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("ToggleSave err = %v, want ErrNotLoggedIn", err)
	}
	if _, err := a.Follow(context.Background(), "u2", Snapshot{}); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("Follow err = %v, want ErrNotLoggedIn", err)
	}
	if got := api.callLog(); got != "" {
		t.Fatalf("api called while logged out: %q", got)
	}
}

func TestActions_Validation(t *testing.T) {
	a, _, api, _, _ := newTestActions(t, "u1")

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"unknown type", func() error {
			_, err := a.ToggleLike(context.Background(), Subject{Type: "podcast", ID: "x"})
			return err
		}, ErrInvalidInput},
		{"empty id", func() error {
			_, err := a.ToggleLike(context.Background(), Subject{Type: Playlist})
			return err
		}, ErrInvalidInput},
		{"long note", func() error {
			_, err := a.ToggleSave(context.Background(), p1, strings.Repeat("x", 201))
			return err
		}, ErrInvalidInput},
		{"empty followee", func() error {
			_, err := a.Follow(context.Background(), "", Snapshot{})
			return err
		}, ErrInvalidInput},
		{"self follow", func() error {
			_, err := a.Follow(context.Background(), "u1", Snapshot{})
			return err
		}, ErrSelfFollow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if got := api.callLog(); got != "" {
		t.Fatalf("api called for invalid input: %q", got)
	}
}

func TestActions_SaveSendsNoteOnlyWhenSaving(t *testing.T) {
	a, _, api, _, _ := newTestActions(t, "u1")
	r1 := Subject{Type: Restaurant, ID: "r1"}

	if _, err := a.ToggleSave(context.Background(), r1, "from list"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := a.ToggleSave(context.Background(), r1, "from list"); err != nil {
		t.Fatalf("unsave: %v", err)
	}
	if got := api.callLog(); got != "save restaurant:r1 from list; unsave restaurant:r1" {
		t.Fatalf("api calls = %q", got)
	}
}

func TestActions_FollowFlow(t *testing.T) {
	a, store, api, notes, _ := newTestActions(t, "u1")
	ctx := context.Background()

	if _, err := a.Follow(ctx, "u2", Snapshot{Username: "kim"}); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if _, err := a.Follow(ctx, "u2", Snapshot{Username: "kim"}); err != nil {
		t.Fatalf("second Follow: %v", err)
	}
	if _, err := a.ToggleFollow(ctx, "u2", Snapshot{}); err != nil {
		t.Fatalf("ToggleFollow: %v", err)
	}
	if _, err := a.Unfollow(ctx, "u2"); err != nil {
		t.Fatalf("Unfollow no-op: %v", err)
	}
	if got := api.callLog(); got != "follow u2; unfollow u2" {
		t.Fatalf("api calls = %q", got)
	}

	api.err = errors.New("boom")
	if _, err := a.ToggleFollow(ctx, "u3", Snapshot{Username: "lee"}); err == nil {
		t.Fatalf("failed follow returned nil")
	}
	if store.IsFollowing("u3") {
		t.Fatalf("failed follow not rolled back")
	}
	if notes.count() != 1 {
		t.Fatalf("toasts = %d, want 1", notes.count())
	}
}

func TestActions_NilNotifier(t *testing.T) {
	store, _, _ := newTestStore(t, "u1")
	a := NewActions(store, &fakeAPI{err: errors.New("x")}, nil)
	if _, err := a.ToggleLike(context.Background(), p1); err == nil {
		t.Fatalf("err = nil")
	}
}
