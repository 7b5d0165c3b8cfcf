package app

import (
	"context"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/five82/bobmap/internal/auth"
	"github.com/five82/bobmap/internal/bobmap"
	"github.com/five82/bobmap/internal/config"
	"github.com/five82/bobmap/internal/prefs"
	"github.com/five82/bobmap/internal/social"
	"github.com/five82/bobmap/internal/state"
	"github.com/five82/bobmap/internal/storage"
	"github.com/five82/bobmap/internal/ui"
)

// uiTick is how often the UI re-reads the feed snapshot.
const uiTick = time.Second

// Options configure the bobmap application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/bobmap/prefs.toml
	SyncEvery  int    // seconds; zero uses the config value
	Storage    string // backend override; empty uses the config value
	Token      string // logs in with this token and remembers it
	Logout     bool   // forgets the remembered session
}

// Run boots the bobmap TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Storage != "" {
		cfg.Storage.Backend = opts.Storage
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		log.Warn("load preferences failed", "error", err)
	}

	session := &auth.Session{}
	if err := restoreSession(session, userPrefs, opts); err != nil {
		return err
	}

	st := openStorage(cfg.Storage)
	defer st.Close()

	store := social.NewStore(st, session)
	defer store.Close()
	stopWatch := st.Watch(store.HandleStorageEvent)
	defer stopWatch()

	client, err := bobmap.NewClient(cfg.APIURL, session)
	if err != nil {
		return fmt.Errorf("init bobmap client: %w", err)
	}

	notifier := ui.NewNotifier()
	actions := social.NewActions(store, client, notifier)
	feed := &state.Store{}

	interval := time.Duration(cfg.SyncSeconds) * time.Second
	if opts.SyncEvery > 0 {
		interval = time.Duration(opts.SyncEvery) * time.Second
	}
	StartPoller(ctx, store, feed, client, interval)

	log.Info("bobmap started",
		"api", cfg.APIURL,
		"storage", cfg.Storage.Backend,
		"mode", store.Mode(),
		"user", session.UserID(),
	)

	return ui.Run(ui.Options{
		Context:   ctx,
		Social:    store,
		Feed:      feed,
		Actions:   actions,
		Viewer:    session,
		Notifier:  notifier,
		Sync:      store.SyncWithRemote,
		PollTick:  uiTick,
		ThemeName: userPrefs.Theme,
		PrefsPath: opts.PrefsPath,
		LogPath:   cfg.LogFile,
	})
}

// restoreSession applies the login flags, falling back to the token
// remembered in preferences.
func restoreSession(session *auth.Session, userPrefs prefs.Prefs, opts Options) error {
	switch {
	case opts.Logout:
		if err := prefs.Update(opts.PrefsPath, func(p *prefs.Prefs) { p.Token = "" }); err != nil {
			log.Warn("clear stored session failed", "error", err)
		}
		return nil

	case opts.Token != "":
		if err := session.Login(opts.Token); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := prefs.Update(opts.PrefsPath, func(p *prefs.Prefs) { p.Token = opts.Token }); err != nil {
			log.Warn("remember session failed", "error", err)
		}
		return nil

	case userPrefs.Token != "":
		if err := session.Login(userPrefs.Token); err != nil {
			log.Warn("stored session rejected; continuing logged out", "error", err)
		}
	}
	return nil
}

// openStorage opens the configured backend. When it cannot be opened the
// app continues on in-memory storage so the session still works.
func openStorage(cfg config.Storage) storage.Storage {
	st, err := storage.Open(cfg)
	if err != nil {
		log.Warn("storage unavailable; using memory for this session",
			"backend", cfg.Backend,
			"error", err,
		)
		return storage.NewMemory(storage.WithQuota(cfg.QuotaBytes))
	}
	return st
}

// setupLogging routes slog to the configured log file. The TUI owns the
// terminal, so without a file logs are discarded.
func setupLogging(cfg config.Config) (func(), error) {
	var level log.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var out io.Writer = io.Discard
	closeFn := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = file
		closeFn = func() { _ = file.Close() }
	}

	log.SetDefault(log.New(log.NewTextHandler(out, &log.HandlerOptions{Level: level})))
	return closeFn, nil
}
