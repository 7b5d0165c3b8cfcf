// Package app is the composition root of the bobmap client.
//
// # Overview
//
// Run wires configuration, the session, durable storage, the social state
// store, the API client and the UI together, then blocks in the TUI until
// the user quits or the context is cancelled.
//
// # Startup
//
//  1. Load ~/.config/bobmap/config.toml (defaults when missing, BOBMAP_* env overrides)
//  2. Route slog output to the configured log file
//  3. Restore the session from -token, or from the token remembered in prefs
//  4. Open the storage backend, falling back to memory when it cannot be opened
//  5. Build the social store and subscribe it to storage change events
//  6. Build the API client, the action reconciler and the toast notifier
//  7. Start the background poller and run the UI
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()        Read config
//	       ├─────> auth.Session         Current user
//	       ├─────> storage.Open()       Durable key/value storage
//	       ├─────> social.NewStore()    Per-user social state
//	       ├─────> storage.Watch()      Push path from other clients
//	       ├─────> StartPoller()        Pull path and server counts
//	       └─────> ui.Run()             Start TUI (blocks)
//
// # Polling Behavior
//
// Each poll first calls SyncWithRemote so writes made by other clients that
// share the storage are picked up even when the backend cannot push events.
// It then fetches the playlist feed into the state store and refreshes like
// counts for every feed subject with bounded concurrency, applying each with
// ReconcileCount. Feed failures back off exponentially, capped at 30 seconds;
// a failed stats request leaves that subject's local count untouched.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Configuration file unreadable or invalid
//   - Log file cannot be opened
//   - A -token flag that does not decode
//
// Recoverable errors (logged, the app continues):
//   - Storage backend unavailable (memory-only session)
//   - A remembered token that expired or does not decode (logged out)
//   - Feed and stats poll failures
package app
