// Package state holds the playlist feed shared by the background poller and
// the UI.
//
// # Overview
//
// The poller fetches /api/playlists on its own schedule and calls Update.
// The UI reads Snapshot whenever it redraws. Store mediates between the two
// goroutines with a sync.RWMutex; the lock is held only while copying, never
// during network I/O or rendering.
//
// Social state (likes, saves, follows, counters) does not live here. It is
// owned by social.Store, which has its own notifications. This package only
// answers "what is in the feed and is the server reachable".
//
// # Update Semantics
//
//	// Success: replace the feed
//	store.Update(playlists, nil)
//	→ snapshot.Playlists = playlists
//	→ snapshot.HasFeed = true
//	→ snapshot.LastError = nil
//	→ snapshot.ConsecutiveFailures = 0
//
//	// Failure: keep the old feed, record the error
//	store.Update(nil, err)
//	→ snapshot.Playlists = <unchanged>
//	→ snapshot.LastError = err
//	→ snapshot.ConsecutiveFailures++
//
// IsOffline turns true after two failed polls in a row, which the UI shows
// in its status line.
//
// # Defensive Copying
//
// Update and Snapshot clone the playlist slice and each playlist's
// restaurant slice, and wrap LastError in a fresh error value, so neither
// side can mutate what the other holds.
//
// # Testing Considerations
//
// The zero Store is ready to use:
//
//	store := &state.Store{}
package state
