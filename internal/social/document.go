package social

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	documentVersion = 1
	keyPrefix       = "bobmap.social."
)

// StorageKey is the storage key holding userID's document.
func StorageKey(userID string) string {
	return keyPrefix + userID
}

// document is the persisted JSON shape.
type document struct {
	Version          int              `json:"version"`
	LikedPlaylists   []string         `json:"likedPlaylists"`
	LikedRestaurants []string         `json:"likedRestaurants"`
	SavedPlaylists   []savedPlaylist  `json:"savedPlaylists"`
	SavedRestaurants []savedPlace     `json:"savedRestaurants"`
	Following        []followingEntry `json:"following"`
	Counters         map[string]int   `json:"counters"`
}

type savedPlaylist struct {
	PlaylistID string    `json:"playlistId"`
	Note       string    `json:"note,omitempty"`
	SavedAt    time.Time `json:"savedAt"`
}

type savedPlace struct {
	RestaurantID string    `json:"restaurantId"`
	Note         string    `json:"note,omitempty"`
	SavedAt      time.Time `json:"savedAt"`
}

type followingEntry struct {
	FolloweeID string `json:"followeeId"`
	Username   string `json:"username"`
	Bio        string `json:"bio,omitempty"`
}

// state is the in-memory form of one user's document.
type state struct {
	likes     map[SubjectType][]string
	saves     map[SubjectType][]SaveRecord
	following []FollowRecord
	counters  map[string]int
}

func newState() *state {
	return &state{
		likes:    make(map[SubjectType][]string),
		saves:    make(map[SubjectType][]SaveRecord),
		counters: make(map[string]int),
	}
}

// decodeState parses raw into a state for userID. Duplicate entries collapse
// and negative counters clamp to zero.
func decodeState(raw, userID string) (*state, error) {
	st := newState()
	if raw == "" {
		return st, nil
	}

	var doc document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return st, fmt.Errorf("decode social document: %w", err)
	}
	if doc.Version > documentVersion {
		return st, fmt.Errorf("decode social document: unsupported version %d", doc.Version)
	}

	st.likes[Playlist] = dedupe(doc.LikedPlaylists)
	st.likes[Restaurant] = dedupe(doc.LikedRestaurants)
	for _, e := range doc.SavedPlaylists {
		st.addSave(SaveRecord{SubjectID: e.PlaylistID, SubjectType: Playlist, UserID: userID, Note: e.Note, SavedAt: e.SavedAt})
	}
	for _, e := range doc.SavedRestaurants {
		st.addSave(SaveRecord{SubjectID: e.RestaurantID, SubjectType: Restaurant, UserID: userID, Note: e.Note, SavedAt: e.SavedAt})
	}
	for _, e := range doc.Following {
		if e.FolloweeID == "" || e.FolloweeID == userID || st.followIndex(e.FolloweeID) >= 0 {
			continue
		}
		st.following = append(st.following, FollowRecord{
			FollowerID: userID,
			FolloweeID: e.FolloweeID,
			Snapshot:   Snapshot{Username: e.Username, Bio: e.Bio},
		})
	}
	for k, v := range doc.Counters {
		st.counters[k] = max(0, v)
	}
	return st, nil
}

func (st *state) encode() (string, error) {
	doc := document{
		Version:          documentVersion,
		LikedPlaylists:   nonNil(st.likes[Playlist]),
		LikedRestaurants: nonNil(st.likes[Restaurant]),
		SavedPlaylists:   []savedPlaylist{},
		SavedRestaurants: []savedPlace{},
		Following:        []followingEntry{},
		Counters:         st.counters,
	}
	for _, r := range st.saves[Playlist] {
		doc.SavedPlaylists = append(doc.SavedPlaylists, savedPlaylist{PlaylistID: r.SubjectID, Note: r.Note, SavedAt: r.SavedAt})
	}
	for _, r := range st.saves[Restaurant] {
		doc.SavedRestaurants = append(doc.SavedRestaurants, savedPlace{RestaurantID: r.SubjectID, Note: r.Note, SavedAt: r.SavedAt})
	}
	for _, f := range st.following {
		doc.Following = append(doc.Following, followingEntry{FolloweeID: f.FolloweeID, Username: f.Snapshot.Username, Bio: f.Snapshot.Bio})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode social document: %w", err)
	}
	return string(data), nil
}

func (st *state) liked(t SubjectType, id string) bool {
	return slices.Contains(st.likes[t], id)
}

func (st *state) setLiked(t SubjectType, id string, on bool) {
	ids := st.likes[t]
	i := slices.Index(ids, id)
	switch {
	case on && i < 0:
		st.likes[t] = append(ids, id)
	case !on && i >= 0:
		st.likes[t] = slices.Delete(slices.Clone(ids), i, i+1)
	}
}

func (st *state) saveIndex(t SubjectType, id string) int {
	return slices.IndexFunc(st.saves[t], func(r SaveRecord) bool { return r.SubjectID == id })
}

func (st *state) addSave(r SaveRecord) {
	if r.SubjectID == "" || st.saveIndex(r.SubjectType, r.SubjectID) >= 0 {
		return
	}
	st.saves[r.SubjectType] = append(st.saves[r.SubjectType], r)
}

func (st *state) removeSave(t SubjectType, id string) (SaveRecord, bool) {
	i := st.saveIndex(t, id)
	if i < 0 {
		return SaveRecord{}, false
	}
	r := st.saves[t][i]
	st.saves[t] = slices.Delete(slices.Clone(st.saves[t]), i, i+1)
	return r, true
}

func (st *state) followIndex(followeeID string) int {
	return slices.IndexFunc(st.following, func(f FollowRecord) bool { return f.FolloweeID == followeeID })
}

func (st *state) removeFollow(followeeID string) (FollowRecord, bool) {
	i := st.followIndex(followeeID)
	if i < 0 {
		return FollowRecord{}, false
	}
	f := st.following[i]
	st.following = slices.Delete(slices.Clone(st.following), i, i+1)
	return f, true
}

// adjustCounter moves key by delta from base when no entry exists yet.
func (st *state) adjustCounter(key string, base, delta int) int {
	v, ok := st.counters[key]
	if !ok {
		v = base
	}
	v = max(0, v+delta)
	st.counters[key] = v
	return v
}

// topics returns the value of every topic this state can answer for userID.
func (st *state) topics(userID string) map[string]Event {
	out := make(map[string]Event)
	if userID == "" {
		return out
	}
	for _, t := range SubjectTypes {
		topic := LikesTopic(t, userID)
		out[topic] = Event{Topic: topic, IDs: slices.Clone(st.likes[t])}
		for _, id := range st.likes[t] {
			topic := LikeTopic(t, id)
			out[topic] = Event{Topic: topic, Active: true}
		}

		topic = SavedTopic(t, userID)
		out[topic] = Event{Topic: topic, Saves: slices.Clone(st.saves[t])}
		for _, r := range st.saves[t] {
			topic := SaveTopic(t, r.SubjectID)
			out[topic] = Event{Topic: topic, Active: true}
		}
	}

	topic := FollowingTopic(userID)
	out[topic] = Event{Topic: topic, Following: slices.Clone(st.following)}
	for _, f := range st.following {
		topic := FollowTopic(f.FolloweeID)
		out[topic] = Event{Topic: topic, Active: true}
	}

	for key, n := range st.counters {
		t, id, ok := splitKey(key)
		if !ok {
			continue
		}
		topic := LikeCountTopic(t, id)
		out[topic] = Event{Topic: topic, Count: n}
	}
	return out
}

// diffTopics lists the events whose values differ between before and after.
// A membership topic missing from after reports Active=false. A counter
// missing from after is not reported since its value falls back to the
// caller's baseline.
func diffTopics(before, after map[string]Event) []Event {
	var events []Event
	for topic, ev := range after {
		if prev, ok := before[topic]; !ok || !prev.equal(ev) {
			events = append(events, ev)
		}
	}
	for topic, prev := range before {
		if _, ok := after[topic]; ok {
			continue
		}
		if prev.Active {
			events = append(events, Event{Topic: topic})
		}
	}
	slices.SortFunc(events, func(a, b Event) int { return strings.Compare(a.Topic, b.Topic) })
	return events
}

func splitKey(key string) (SubjectType, string, bool) {
	for _, t := range SubjectTypes {
		if id, ok := strings.CutPrefix(key, string(t)+":"); ok && id != "" {
			return t, id, true
		}
	}
	return "", "", false
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
