package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/bobmap/internal/bobmap"
	"github.com/five82/bobmap/internal/social"
)

// Snapshot represents the latest feed data available to the UI.
type Snapshot struct {
	Playlists           []bobmap.Playlist
	HasFeed             bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Subjects lists every playlist and restaurant in the feed once, playlists
// first.
func (s Snapshot) Subjects() []social.Subject {
	seen := make(map[social.Subject]bool)
	var out []social.Subject
	add := func(subject social.Subject) {
		if subject.ID == "" || seen[subject] {
			return
		}
		seen[subject] = true
		out = append(out, subject)
	}
	for _, p := range s.Playlists {
		add(p.Subject())
	}
	for _, p := range s.Playlists {
		for _, r := range p.Restaurants {
			add(r.Subject())
		}
	}
	return out
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored feed. When err is non-nil the previous data is
// kept but the error is recorded for visibility.
func (s *Store) Update(playlists []bobmap.Playlist, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Playlists = clonePlaylists(playlists)
	s.snapshot.HasFeed = true
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Playlists = clonePlaylists(s.snapshot.Playlists)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func clonePlaylists(items []bobmap.Playlist) []bobmap.Playlist {
	if len(items) == 0 {
		return nil
	}
	dup := make([]bobmap.Playlist, len(items))
	copy(dup, items)
	for i := range dup {
		if len(dup[i].Restaurants) > 0 {
			dup[i].Restaurants = append([]bobmap.Restaurant(nil), dup[i].Restaurants...)
		}
	}
	return dup
}
