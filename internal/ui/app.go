package ui

import (
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bobmap/internal/prefs"
	"github.com/five82/bobmap/internal/social"
	"github.com/five82/bobmap/internal/state"
)

// loginRequired is shown when an action is attempted without a session.
const loginRequired = "로그인이 필요합니다"

// syncDone confirms a manual sync.
const syncDone = "동기화 완료"

// Actions performs optimistic social actions on behalf of the UI.
type Actions interface {
	ToggleLike(ctx context.Context, subject social.Subject) (social.Mutation, error)
	ToggleSave(ctx context.Context, subject social.Subject, note string) (social.Mutation, error)
	ToggleFollow(ctx context.Context, followeeID string, snapshot social.Snapshot) (social.Mutation, error)
}

// Viewer describes the signed-in user shown in the header.
type Viewer interface {
	UserID() string
	Username() string
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Social    *social.Store
	Feed      *state.Store
	Actions   Actions
	Viewer    Viewer
	Notifier  *Notifier
	Sync      func()
	PollTick  time.Duration
	ThemeName string
	PrefsPath string
	LogPath   string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	social    *social.Store
	feed      *state.Store
	actions   Actions
	viewer    Viewer
	notices   <-chan string
	sync      func()
	prefsPath string
	logPath   string
	pollTick  time.Duration

	// UI state
	theme    Theme
	keys     keyMap
	help     help.Model
	width    int
	height   int
	ready    bool
	showHelp bool
	showLogs bool
	toast    toast
	now      func() time.Time

	// Data state
	snapshot state.Snapshot
	cards    []card
	selected int
	logLines []string
	logErr   error

	subs *subscriptions
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = time.Second
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewNotifier()
	}

	return Model{
		ctx:       ctx,
		social:    opts.Social,
		feed:      opts.Feed,
		actions:   opts.Actions,
		viewer:    opts.Viewer,
		notices:   notifier.C(),
		sync:      opts.Sync,
		prefsPath: prefsPath,
		logPath:   opts.LogPath,
		pollTick:  pollTick,
		theme:     GetTheme(opts.ThemeName),
		keys:      DefaultKeyMap(),
		help:      help.New(),
		now:       time.Now,
		subs:      newSubscriptions(opts.Social),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.pollTick),
		waitForEvent(m.subs.events),
		waitForNotice(m.notices),
	}
	// Fetch snapshot immediately on start
	if m.feed != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.feed))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		m.watchVisible()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.cards = buildCards(m.snapshot)
		m.clampSelection()
		m.watchVisible()
		return m, nil

	case storeEventMsg:
		// The view reads the store directly; the event only triggers a redraw.
		return m, waitForEvent(m.subs.events)

	case noticeMsg:
		m.toast = newToast(string(msg), m.now())
		return m, waitForNotice(m.notices)

	case actionDoneMsg:
		return m.handleActionDone(msg)

	case logsMsg:
		m.logLines = msg.lines
		m.logErr = msg.err
		return m, nil

	case syncedMsg:
		m.toast = newOKToast(syncDone, m.now())
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.subs.close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		name := m.theme.Name
		if err := prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Theme = name }); err != nil {
			log.Warn("save theme preference failed", "error", err)
		}
		return m, nil

	case key.Matches(msg, m.keys.Logs):
		m.showLogs = !m.showLogs
		if m.showLogs {
			return m, readLogsCmd(m.logPath)
		}
		return m, nil

	case key.Matches(msg, m.keys.Sync):
		return m, syncCmd(m.sync)

	case key.Matches(msg, m.keys.Like):
		c, ok := m.current()
		if !ok {
			return m, nil
		}
		return m, m.likeCmd(c)

	case key.Matches(msg, m.keys.Save):
		c, ok := m.current()
		if !ok {
			return m, nil
		}
		return m, m.saveCmd(c)

	case key.Matches(msg, m.keys.Follow):
		c, ok := m.current()
		if !ok || c.curator.ID == "" {
			return m, nil
		}
		return m, m.followCmd(c)
	}

	return m.handleListKey(msg)
}

// handleListKey moves the selection.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := len(m.cards)
	if count == 0 {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selected < count-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selected = count - 1
	default:
		return m, nil
	}

	m.watchVisible()
	return m, nil
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.feed != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.feed))
	}
	if m.showLogs {
		if cmd := readLogsCmd(m.logPath); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	if !m.toast.active(m.now()) {
		m.toast = toast{}
	}

	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

func (m Model) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err == nil {
		return m, nil
	}
	if errors.Is(msg.err, social.ErrNotLoggedIn) {
		m.toast = newToast(loginRequired, m.now())
		return m, nil
	}
	// Rollback failures already reached the notifier.
	log.Debug("action failed", "error", msg.err)
	return m, nil
}

func (m Model) current() (card, bool) {
	if m.selected < 0 || m.selected >= len(m.cards) {
		return card{}, false
	}
	return m.cards[m.selected], true
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.cards) {
		m.selected = len(m.cards) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// watchVisible keeps store subscriptions in line with the cards on screen.
func (m Model) watchVisible() {
	if !m.ready {
		return
	}
	start, end := m.visibleRange()
	var topics []string
	for _, c := range m.cards[start:end] {
		topics = append(topics, c.topics()...)
	}
	m.subs.set(topics)
}

func (m Model) likeCmd(c card) tea.Cmd {
	if m.actions == nil {
		return nil
	}
	ctx, actions := m.ctx, m.actions
	return func() tea.Msg {
		_, err := actions.ToggleLike(ctx, c.subject)
		return actionDoneMsg{err: err}
	}
}

func (m Model) saveCmd(c card) tea.Cmd {
	if m.actions == nil {
		return nil
	}
	ctx, actions := m.ctx, m.actions
	note := c.saveNote()
	return func() tea.Msg {
		_, err := actions.ToggleSave(ctx, c.subject, note)
		return actionDoneMsg{err: err}
	}
}

func (m Model) followCmd(c card) tea.Cmd {
	if m.actions == nil {
		return nil
	}
	ctx, actions := m.ctx, m.actions
	return func() tea.Msg {
		_, err := actions.ToggleFollow(ctx, c.curator.ID, c.curator.Snapshot())
		return actionDoneMsg{err: err}
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type storeEventMsg social.Event

type noticeMsg string

type actionDoneMsg struct {
	err error
}

type syncedMsg struct{}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func syncCmd(sync func()) tea.Cmd {
	if sync == nil {
		return nil
	}
	return func() tea.Msg {
		sync()
		return syncedMsg{}
	}
}

func waitForNotice(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(msg)
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	defer m.subs.close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
