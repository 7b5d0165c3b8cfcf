package social

import (
	"time"
)

// SubjectType names the kind of entity a like or save points at.
type SubjectType string

const (
	Playlist   SubjectType = "playlist"
	Restaurant SubjectType = "restaurant"
)

// SubjectTypes lists every valid SubjectType in document order.
var SubjectTypes = []SubjectType{Playlist, Restaurant}

// Valid reports whether t is a known subject type.
func (t SubjectType) Valid() bool {
	return t == Playlist || t == Restaurant
}

// Subject identifies a playlist or restaurant.
type Subject struct {
	Type SubjectType `validate:"required,oneof=playlist restaurant"`
	ID   string      `validate:"required,max=128"`
}

// Key is the "<type>:<id>" form used for counter entries.
func (s Subject) Key() string {
	return string(s.Type) + ":" + s.ID
}

func (s Subject) String() string {
	return s.Key()
}

// LikeRecord is one user's like of one subject.
type LikeRecord struct {
	SubjectID   string
	SubjectType SubjectType
	UserID      string
}

// SaveRecord is a bookmark of a subject. Note is fixed when the record is
// created.
type SaveRecord struct {
	SubjectID   string
	SubjectType SubjectType
	UserID      string
	Note        string
	SavedAt     time.Time
}

// Snapshot holds the followee's display fields captured at follow time.
type Snapshot struct {
	Username string `validate:"max=64"`
	Bio      string `validate:"max=500"`
}

// FollowRecord is the current user following another user.
type FollowRecord struct {
	FollowerID string
	FolloweeID string
	Snapshot   Snapshot
}

// Mode reports whether the store is writing through to storage.
type Mode string

const (
	ModePersistent Mode = "persistent"
	ModeMemoryOnly Mode = "memory-only"
)
