package ui

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bobmap/internal/bobmap"
	"github.com/five82/bobmap/internal/social"
	"github.com/five82/bobmap/internal/state"
	"github.com/five82/bobmap/internal/storage"
)

type staticViewer struct{ id, name string }

func (v staticViewer) UserID() string   { return v.id }
func (v staticViewer) Username() string { return v.name }

type fakeActions struct {
	mu    sync.Mutex
	calls []string
	notes []string
	err   error
	store *social.Store
}

func (f *fakeActions) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeActions) ToggleLike(_ context.Context, subject social.Subject) (social.Mutation, error) {
	f.record("like " + subject.Key())
	if f.err != nil {
		return social.Mutation{}, f.err
	}
	return f.store.MutateLike(subject.Type, subject.ID), nil
}

func (f *fakeActions) ToggleSave(_ context.Context, subject social.Subject, note string) (social.Mutation, error) {
	f.record("save " + subject.Key())
	f.mu.Lock()
	f.notes = append(f.notes, note)
	f.mu.Unlock()
	return social.Mutation{}, f.err
}

func (f *fakeActions) ToggleFollow(_ context.Context, followeeID string, _ social.Snapshot) (social.Mutation, error) {
	f.record("follow " + followeeID)
	return social.Mutation{}, f.err
}

func testFeed() []bobmap.Playlist {
	return []bobmap.Playlist{
		{
			ID:        "p1",
			Title:     "Seongsu lunch",
			Curator:   bobmap.Curator{ID: "c1", Username: "kim"},
			LikeCount: 10,
			Restaurants: []bobmap.Restaurant{
				{ID: "r1", Name: "Noodle Bar", Category: "noodles", LikeCount: 3},
				{ID: "r2", Name: "Dumpling House", Category: "dumplings"},
			},
		},
		{ID: "p2", Title: "Late night", Curator: bobmap.Curator{ID: "c2", Username: "lee"}},
	}
}

func newTestModel(t *testing.T, actions *fakeActions) (Model, *social.Store) {
	t.Helper()
	mem := storage.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })
	store := social.NewStore(mem, staticViewer{id: "u1"})
	t.Cleanup(store.Close)

	feed := &state.Store{}
	feed.Update(testFeed(), nil)

	if actions != nil {
		actions.store = store
	}
	var acts Actions
	if actions != nil {
		acts = actions
	}
	m := New(Options{
		Social:    store,
		Feed:      feed,
		Actions:   acts,
		Viewer:    staticViewer{id: "u1", name: "park"},
		PrefsPath: t.TempDir() + "/prefs.toml",
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 20})
	m = update(t, m, snapshotMsg(feed.Snapshot()))
	return m, store
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return out
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBuildCards_PlaylistThenRestaurants(t *testing.T) {
	cards := buildCards(state.Snapshot{Playlists: testFeed()})
	want := []string{"playlist:p1", "restaurant:r1", "restaurant:r2", "playlist:p2"}
	if len(cards) != len(want) {
		t.Fatalf("len(cards) = %d, want %d", len(cards), len(want))
	}
	for i, key := range want {
		if got := cards[i].subject.Key(); got != key {
			t.Fatalf("cards[%d] = %s, want %s", i, got, key)
		}
	}
	if got := cards[1].saveNote(); got != "saved from Seongsu lunch" {
		t.Fatalf("restaurant saveNote = %q", got)
	}
	if got := cards[0].saveNote(); got != "" {
		t.Fatalf("playlist saveNote = %q, want empty", got)
	}
	if got := len(cards[0].topics()); got != 4 {
		t.Fatalf("playlist topics = %d, want 4 (with follow)", got)
	}
	if got := len(cards[1].topics()); got != 3 {
		t.Fatalf("restaurant topics = %d, want 3", got)
	}
}

func TestSaveNoteFitsServerLimit(t *testing.T) {
	c := card{
		subject: social.Subject{Type: social.Restaurant, ID: "r1"},
		parent:  strings.Repeat("성수동 점심 ", 60),
	}
	note := c.saveNote()
	if n := utf8.RuneCountInString(note); n > social.MaxNoteLength {
		t.Fatalf("saveNote length = %d runes, want <= %d", n, social.MaxNoteLength)
	}
	if !strings.HasPrefix(note, "saved from ") {
		t.Fatalf("saveNote = %q, want saved from prefix", note)
	}
}

func TestModel_SubscribesVisibleCards(t *testing.T) {
	m, _ := newTestModel(t, nil)

	// 2 playlists with follow topics + 2 restaurants.
	if got, want := m.subs.count(), 4+3+3+4; got != want {
		t.Fatalf("subscriptions = %d, want %d", got, want)
	}

	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: chromeLines + 1})
	if got := m.subs.count(); got != 4 {
		t.Fatalf("subscriptions with one visible row = %d, want 4", got)
	}

	m = update(t, m, keyPress("j"))
	if got := m.subs.count(); got != 3 {
		t.Fatalf("subscriptions after moving to restaurant = %d, want 3", got)
	}
}

func TestModel_StoreEventsReachChannel(t *testing.T) {
	m, store := newTestModel(t, nil)
	// Rendering records the feed count as the starting point.
	_ = m.View()

	store.ToggleLike(social.Playlist, "p1")

	select {
	case ev := <-m.subs.events:
		switch ev.Topic {
		case social.LikeTopic(social.Playlist, "p1"), social.LikeCountTopic(social.Playlist, "p1"):
		default:
			t.Fatalf("forwarded topic = %q, want p1 like topics", ev.Topic)
		}
	case <-time.After(time.Second):
		t.Fatalf("no store event forwarded")
	}

	if row := m.renderCard(m.cards[0], false); !strings.Contains(row, "♥") || !strings.Contains(row, "11") {
		t.Fatalf("card after like = %q, want liked marker and count 11", row)
	}
}

func TestModel_LikeKeyRunsAction(t *testing.T) {
	actions := &fakeActions{}
	m, store := newTestModel(t, actions)

	_, cmd := m.Update(keyPress("l"))
	if cmd == nil {
		t.Fatalf("like key returned no command")
	}
	msg := cmd()
	done, ok := msg.(actionDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("command result = %#v, want successful actionDoneMsg", msg)
	}
	if len(actions.calls) != 1 || actions.calls[0] != "like playlist:p1" {
		t.Fatalf("calls = %v", actions.calls)
	}
	if !store.IsLiked(social.Playlist, "p1") {
		t.Fatalf("store not updated by like action")
	}
}

func TestModel_SaveRestaurantAttachesPlaylistNote(t *testing.T) {
	actions := &fakeActions{}
	m, _ := newTestModel(t, actions)

	m = update(t, m, keyPress("j"))
	_, cmd := m.Update(keyPress("s"))
	if cmd == nil {
		t.Fatalf("save key returned no command")
	}
	cmd()
	if len(actions.notes) != 1 || actions.notes[0] != "saved from Seongsu lunch" {
		t.Fatalf("notes = %v", actions.notes)
	}
}

func TestModel_FollowUsesCurator(t *testing.T) {
	actions := &fakeActions{}
	m, _ := newTestModel(t, actions)

	m = update(t, m, keyPress("G"))
	_, cmd := m.Update(keyPress("f"))
	if cmd == nil {
		t.Fatalf("follow key returned no command")
	}
	cmd()
	if len(actions.calls) != 1 || actions.calls[0] != "follow c2" {
		t.Fatalf("calls = %v, want [follow c2]", actions.calls)
	}
}

func TestModel_LoginRequiredToast(t *testing.T) {
	m, _ := newTestModel(t, nil)

	m = update(t, m, actionDoneMsg{err: social.ErrNotLoggedIn})
	if !m.toast.active(m.now()) || m.toast.text != loginRequired {
		t.Fatalf("toast = %+v, want %q", m.toast, loginRequired)
	}

	m.toast = toast{}
	m = update(t, m, actionDoneMsg{err: errors.New("boom")})
	if m.toast.active(m.now()) {
		t.Fatalf("generic failure raised a toast: %+v", m.toast)
	}
}

func TestModel_NoticeBecomesToast(t *testing.T) {
	notifier := NewNotifier()
	m := New(Options{Notifier: notifier})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 10})

	notifier.Notify(social.FailureMessage)
	msg := waitForNotice(m.notices)()
	m = update(t, m, msg)

	if got := m.renderFooter(); !strings.Contains(got, social.FailureMessage) {
		t.Fatalf("footer = %q, want failure message", got)
	}

	m.now = func() time.Time { return time.Now().Add(toastDuration + time.Second) }
	if m.toast.active(m.now()) {
		t.Fatalf("toast still active after expiry")
	}
}

func TestModel_SyncShowsSuccessToast(t *testing.T) {
	m := New(Options{})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 10})
	m = update(t, m, syncedMsg{})

	if !m.toast.active(m.now()) || !m.toast.ok || m.toast.text != syncDone {
		t.Fatalf("toast = %+v, want ok %q", m.toast, syncDone)
	}
	if got := m.renderFooter(); !strings.Contains(got, syncDone) {
		t.Fatalf("footer = %q, want sync message", got)
	}
}

func TestModel_QuitReleasesSubscriptions(t *testing.T) {
	m, _ := newTestModel(t, nil)
	if m.subs.count() == 0 {
		t.Fatalf("expected subscriptions before quit")
	}

	_, cmd := m.Update(keyPress("q"))
	if cmd == nil {
		t.Fatalf("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("quit command did not return tea.QuitMsg")
	}
	if got := m.subs.count(); got != 0 {
		t.Fatalf("subscriptions after quit = %d, want 0", got)
	}

	m.watchVisible()
	if got := m.subs.count(); got != 0 {
		t.Fatalf("subscriptions after close = %d, want 0", got)
	}
}

func TestModel_Navigation(t *testing.T) {
	m, _ := newTestModel(t, nil)

	m = update(t, m, keyPress("k"))
	if m.selected != 0 {
		t.Fatalf("selected after k at top = %d, want 0", m.selected)
	}
	m = update(t, m, keyPress("G"))
	if m.selected != 3 {
		t.Fatalf("selected after G = %d, want 3", m.selected)
	}
	m = update(t, m, keyPress("j"))
	if m.selected != 3 {
		t.Fatalf("selected after j at bottom = %d, want 3", m.selected)
	}
	m = update(t, m, keyPress("g"))
	if m.selected != 0 {
		t.Fatalf("selected after g = %d, want 0", m.selected)
	}
}

func TestModel_SnapshotShrinkClampsSelection(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m = update(t, m, keyPress("G"))

	m = update(t, m, snapshotMsg(state.Snapshot{HasFeed: true, Playlists: testFeed()[1:]}))
	if m.selected != 0 {
		t.Fatalf("selected = %d, want 0", m.selected)
	}
}

func TestModel_ThemeCyclePersists(t *testing.T) {
	m, _ := newTestModel(t, nil)
	before := m.theme.Name

	m = update(t, m, keyPress("T"))
	if m.theme.Name == before {
		t.Fatalf("theme did not change from %q", before)
	}
}

func TestVisibleRange_KeepsSelection(t *testing.T) {
	m := Model{height: chromeLines + 2, cards: make([]card, 10)}
	for _, sel := range []int{0, 4, 9} {
		m.selected = sel
		start, end := m.visibleRange()
		if end-start != 2 || sel < start || sel >= end {
			t.Fatalf("selected %d: range [%d,%d)", sel, start, end)
		}
	}
}

func TestView_HeaderShowsUserAndMode(t *testing.T) {
	m, _ := newTestModel(t, nil)
	out := m.View()
	if !strings.Contains(out, "@park") {
		t.Fatalf("view missing user label")
	}
	if !strings.Contains(out, "Seongsu lunch") {
		t.Fatalf("view missing playlist card")
	}

	m.viewer = nil
	if got := m.userLabel(); got != "guest" {
		t.Fatalf("userLabel without viewer = %q, want guest", got)
	}
}

func TestModel_LogPanel(t *testing.T) {
	path := t.TempDir() + "/bobmap.log"
	content := "time=t level=INFO msg=started\ntime=t level=WARN msg=\"storage unavailable\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	m := New(Options{LogPath: path})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 10})

	next, cmd := m.Update(keyPress("L"))
	m = next.(Model)
	if !m.showLogs || cmd == nil {
		t.Fatalf("log key: showLogs=%v cmd=%v", m.showLogs, cmd)
	}
	m = update(t, m, cmd())
	if len(m.logLines) != 2 {
		t.Fatalf("log lines = %d, want 2", len(m.logLines))
	}
	if out := m.View(); !strings.Contains(out, "storage unavailable") {
		t.Fatalf("view missing log line")
	}

	m = update(t, m, keyPress("L"))
	if m.showLogs {
		t.Fatalf("second L did not close the log panel")
	}
}
