package social

import (
	log "log/slog"
	"slices"
	"sync"
	"time"

	"github.com/five82/bobmap/internal/storage"
)

// Identity supplies the current user. The store reads it on every call and
// never writes it.
type Identity interface {
	UserID() string
}

// changeSource is implemented by identities that announce user switches,
// such as *auth.Session.
type changeSource interface {
	OnChange(fn func(userID string)) func()
}

// Kind names what a Mutation changed.
type Kind string

const (
	KindLike   Kind = "like"
	KindSave   Kind = "save"
	KindFollow Kind = "follow"
)

// Mutation describes one optimistic change. Seq increases per subject, so
// only the latest mutation for a subject may be reverted.
type Mutation struct {
	Kind       Kind
	Subject    Subject
	FolloweeID string
	UserID     string
	Seq        uint64
	// Active is the state after the change: liked, saved or following.
	Active bool
	// Changed is false when the call was a no-op (logged out, invalid input,
	// already in the requested follow state).
	Changed bool

	prevSave   SaveRecord
	prevFollow FollowRecord
}

func (m Mutation) key() string {
	if m.Kind == KindFollow {
		return string(KindFollow) + ":" + m.FolloweeID
	}
	return string(m.Kind) + ":" + m.Subject.Key()
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now for SavedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type subscriber struct {
	id int
	fn func(Event)
}

// Store is the single source of truth for the current user's likes, saves,
// follows and like counters. It is safe for concurrent use. Subscribers are
// called on the goroutine that made the change, after the store lock is
// released, in subscription order.
type Store struct {
	storage  storage.Storage
	identity Identity
	now      func() time.Time

	stopIdentity func()
	closeOnce    sync.Once

	mu        sync.Mutex
	userID    string
	loaded    bool
	st        *state
	degraded  bool
	offline   map[string]*state
	seq       map[string]uint64
	baselines map[string]int

	subMu   sync.Mutex
	subs    map[string][]subscriber
	nextSub int
}

// NewStore loads the current user's document from st. A nil st runs the
// store in memory only. When identity can announce user switches the store
// reloads on each switch; otherwise it notices on the next call.
func NewStore(st storage.Storage, identity Identity, opts ...Option) *Store {
	s := &Store{
		storage:   st,
		identity:  identity,
		now:       time.Now,
		st:        newState(),
		degraded:  st == nil,
		offline:   make(map[string]*state),
		seq:       make(map[string]uint64),
		baselines: make(map[string]int),
		subs:      make(map[string][]subscriber),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.unlock(s.lock())
	if src, ok := identity.(changeSource); ok {
		s.stopIdentity = src.OnChange(func(string) { s.unlock(s.lock()) })
	}
	return s
}

// Close detaches the store from its identity. It does not close storage.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.stopIdentity != nil {
			s.stopIdentity()
		}
	})
}

// Mode reports whether changes still reach storage.
func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return ModeMemoryOnly
	}
	return ModePersistent
}

// UserID returns the user whose state is loaded.
func (s *Store) UserID() string {
	events := s.lock()
	uid := s.userID
	s.unlock(events)
	return uid
}

// IsLiked reports whether the current user likes the subject. It is false
// when logged out.
func (s *Store) IsLiked(t SubjectType, id string) bool {
	events := s.lock()
	liked := s.userID != "" && s.st.liked(t, id)
	s.unlock(events)
	return liked
}

// IsSaved reports whether the current user saved the subject.
func (s *Store) IsSaved(t SubjectType, id string) bool {
	events := s.lock()
	saved := s.userID != "" && s.st.saveIndex(t, id) >= 0
	s.unlock(events)
	return saved
}

// IsFollowing reports whether the current user follows followeeID.
func (s *Store) IsFollowing(followeeID string) bool {
	events := s.lock()
	following := s.userID != "" && s.st.followIndex(followeeID) >= 0
	s.unlock(events)
	return following
}

// GetCount returns the local like count for the subject, or baseline when
// no local entry exists yet. The baseline is remembered as the starting
// point for the first toggle.
func (s *Store) GetCount(t SubjectType, id string, baseline int) int {
	key := Subject{Type: t, ID: id}.Key()

	events := s.lock()
	n, ok := s.st.counters[key]
	if !ok || s.userID == "" {
		s.baselines[key] = baseline
		n = max(0, baseline)
	}
	s.unlock(events)
	return n
}

// Liked returns the current user's likes of type t in the order they were
// made.
func (s *Store) Liked(t SubjectType) []LikeRecord {
	events := s.lock()
	var likes []LikeRecord
	if s.userID != "" {
		for _, id := range s.st.likes[t] {
			likes = append(likes, LikeRecord{SubjectID: id, SubjectType: t, UserID: s.userID})
		}
	}
	s.unlock(events)
	return likes
}

// Saved returns the current user's save records of type t.
func (s *Store) Saved(t SubjectType) []SaveRecord {
	events := s.lock()
	var saves []SaveRecord
	if s.userID != "" {
		saves = slices.Clone(s.st.saves[t])
	}
	s.unlock(events)
	return saves
}

// Following returns the current user's follow records.
func (s *Store) Following() []FollowRecord {
	events := s.lock()
	var follows []FollowRecord
	if s.userID != "" {
		follows = slices.Clone(s.st.following)
	}
	s.unlock(events)
	return follows
}

// ToggleLike flips the like and returns the new state. It returns false
// and changes nothing when logged out.
func (s *Store) ToggleLike(t SubjectType, id string) bool {
	return s.MutateLike(t, id).Active
}

// ToggleSave flips the save and returns the new state. note is recorded
// only when the subject becomes saved.
func (s *Store) ToggleSave(t SubjectType, id, note string) bool {
	return s.MutateSave(t, id, note).Active
}

// FollowUser starts following followeeID. Following yourself is ignored.
func (s *Store) FollowUser(followeeID string, snapshot Snapshot) {
	s.MutateFollow(followeeID, snapshot)
}

// UnfollowUser stops following followeeID.
func (s *Store) UnfollowUser(followeeID string) {
	s.MutateUnfollow(followeeID)
}

// MutateLike is ToggleLike returning the Mutation for a later Revert.
func (s *Store) MutateLike(t SubjectType, id string) Mutation {
	events := s.lock()
	if s.userID == "" || !t.Valid() || id == "" {
		s.unlock(events)
		return Mutation{}
	}

	subject := Subject{Type: t, ID: id}
	on := !s.st.liked(t, id)
	events = append(events, s.applyLikeLocked(subject, on)...)
	m := s.issueLocked(Mutation{Kind: KindLike, Subject: subject, Active: on})
	s.persistLocked()
	s.unlock(events)
	return m
}

// MutateSave is ToggleSave returning the Mutation for a later Revert.
func (s *Store) MutateSave(t SubjectType, id, note string) Mutation {
	events := s.lock()
	if s.userID == "" || !t.Valid() || id == "" {
		s.unlock(events)
		return Mutation{}
	}

	subject := Subject{Type: t, ID: id}
	m := Mutation{Kind: KindSave, Subject: subject}
	if prev, ok := s.st.removeSave(t, id); ok {
		m.prevSave = prev
	} else {
		s.st.addSave(SaveRecord{SubjectID: id, SubjectType: t, UserID: s.userID, Note: note, SavedAt: s.now().UTC()})
		m.Active = true
	}
	events = append(events, s.saveEventsLocked(subject)...)
	m = s.issueLocked(m)
	s.persistLocked()
	s.unlock(events)
	return m
}

// MutateFollow is FollowUser returning the Mutation for a later Revert.
// Following an already followed user changes nothing and reports
// Changed=false.
func (s *Store) MutateFollow(followeeID string, snapshot Snapshot) Mutation {
	events := s.lock()
	if s.userID == "" || followeeID == "" || followeeID == s.userID {
		s.unlock(events)
		return Mutation{}
	}

	m := Mutation{Kind: KindFollow, FolloweeID: followeeID, UserID: s.userID, Active: true}
	if s.st.followIndex(followeeID) >= 0 {
		s.unlock(events)
		return m
	}
	s.st.following = append(s.st.following, FollowRecord{FollowerID: s.userID, FolloweeID: followeeID, Snapshot: snapshot})
	events = append(events, s.followEventsLocked(followeeID)...)
	m = s.issueLocked(m)
	s.persistLocked()
	s.unlock(events)
	return m
}

// MutateUnfollow is UnfollowUser returning the Mutation for a later Revert.
func (s *Store) MutateUnfollow(followeeID string) Mutation {
	events := s.lock()
	if s.userID == "" || followeeID == "" {
		s.unlock(events)
		return Mutation{}
	}

	m := Mutation{Kind: KindFollow, FolloweeID: followeeID, UserID: s.userID}
	prev, ok := s.st.removeFollow(followeeID)
	if !ok {
		s.unlock(events)
		return m
	}
	m.prevFollow = prev
	events = append(events, s.followEventsLocked(followeeID)...)
	m = s.issueLocked(m)
	s.persistLocked()
	s.unlock(events)
	return m
}

// IsLatest reports whether m is the most recent mutation issued for its
// subject and still applies to the current user.
func (s *Store) IsLatest(m Mutation) bool {
	events := s.lock()
	latest := s.isLatestLocked(m)
	s.unlock(events)
	return latest
}

// Revert undoes m if it is still the latest mutation for its subject and
// reports whether it did. Stale mutations are discarded, so a late failure
// for an action the user has since reversed cannot clobber newer state.
// A reverted unsave restores the original record, note included.
func (s *Store) Revert(m Mutation) bool {
	events := s.lock()
	if !s.isLatestLocked(m) {
		s.unlock(events)
		return false
	}
	s.seq[m.key()]++

	switch m.Kind {
	case KindLike:
		events = append(events, s.applyLikeLocked(m.Subject, !m.Active)...)
	case KindSave:
		if m.Active {
			s.st.removeSave(m.Subject.Type, m.Subject.ID)
		} else {
			s.st.addSave(m.prevSave)
		}
		events = append(events, s.saveEventsLocked(m.Subject)...)
	case KindFollow:
		if m.Active {
			s.st.removeFollow(m.FolloweeID)
		} else if s.st.followIndex(m.FolloweeID) < 0 {
			s.st.following = append(s.st.following, m.prevFollow)
		}
		events = append(events, s.followEventsLocked(m.FolloweeID)...)
	}
	s.persistLocked()
	s.unlock(events)
	return true
}

// ReconcileCount replaces the local like count with a fresh server count.
// The latest fetch wins; no merging with local adjustments is attempted.
func (s *Store) ReconcileCount(t SubjectType, id string, count int) {
	if !t.Valid() || id == "" {
		return
	}
	key := Subject{Type: t, ID: id}.Key()
	count = max(0, count)

	events := s.lock()
	s.baselines[key] = count
	if s.userID == "" {
		s.unlock(events)
		return
	}
	if prev, ok := s.st.counters[key]; ok && prev == count {
		s.unlock(events)
		return
	}
	s.st.counters[key] = count
	topic := LikeCountTopic(t, id)
	events = append(events, Event{Topic: topic, Count: count})
	s.persistLocked()
	s.unlock(events)
}

// SyncWithRemote rereads the current user's document from storage and
// notifies the topics whose values changed. In memory-only mode it does
// nothing.
func (s *Store) SyncWithRemote() {
	events := s.lock()
	if s.degraded || s.userID == "" {
		s.unlock(events)
		return
	}
	next := s.readLocked(s.userID)
	if next == nil {
		s.unlock(events)
		return
	}
	before := s.st.topics(s.userID)
	s.st = next
	events = append(events, diffTopics(before, s.st.topics(s.userID))...)
	s.unlock(events)
}

// HandleStorageEvent syncs when another client wrote the current user's
// document. Events from this store's own storage handle are ignored.
func (s *Store) HandleStorageEvent(ev storage.Event) {
	if s.storage == nil {
		return
	}
	if ev.Origin != "" && ev.Origin == s.storage.Origin() {
		return
	}
	if ev.Key != StorageKey(s.UserID()) {
		return
	}
	s.SyncWithRemote()
}

// Subscribe registers fn for topic. The returned function unsubscribes and
// may be called more than once. Callers must unsubscribe when the view that
// subscribed goes away.
func (s *Store) Subscribe(topic string, fn func(Event)) func() {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[topic] = append(s.subs[topic], subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			subs := s.subs[topic]
			i := slices.IndexFunc(subs, func(sub subscriber) bool { return sub.id == id })
			if i < 0 {
				return
			}
			subs = slices.Delete(slices.Clone(subs), i, i+1)
			if len(subs) == 0 {
				delete(s.subs, topic)
				return
			}
			s.subs[topic] = subs
		})
	}
}

// lock takes the store lock and loads the identity's current user if it
// changed. The returned events must be handed to unlock.
func (s *Store) lock() []Event {
	s.mu.Lock()
	uid := ""
	if s.identity != nil {
		uid = s.identity.UserID()
	}
	if s.loaded && uid == s.userID {
		return nil
	}
	return s.switchUserLocked(uid)
}

func (s *Store) unlock(events []Event) {
	s.mu.Unlock()
	s.publish(events)
}

func (s *Store) publish(events []Event) {
	for _, ev := range events {
		s.subMu.Lock()
		subs := slices.Clone(s.subs[ev.Topic])
		s.subMu.Unlock()
		for _, sub := range subs {
			sub.fn(ev)
		}
	}
}

func (s *Store) switchUserLocked(uid string) []Event {
	before := s.st.topics(s.userID)
	if s.degraded && s.userID != "" {
		s.offline[s.userID] = s.st
	}

	s.userID = uid
	s.loaded = true
	s.st = nil
	if uid != "" {
		s.st = s.readLocked(uid)
	}
	if s.st == nil {
		s.st = newState()
	}
	return diffTopics(before, s.st.topics(uid))
}

// readLocked returns nil when storage failed.
func (s *Store) readLocked(uid string) *state {
	if s.degraded {
		if st, ok := s.offline[uid]; ok {
			return st
		}
		return newState()
	}

	raw, ok, err := s.storage.Get(StorageKey(uid))
	if err != nil {
		s.degradeLocked("read", err)
		return nil
	}
	if !ok {
		return newState()
	}
	st, err := decodeState(raw, uid)
	if err != nil {
		log.Warn("discarding malformed social document", "user", uid, "error", err)
	}
	return st
}

func (s *Store) persistLocked() {
	if s.degraded || s.userID == "" {
		return
	}
	raw, err := s.st.encode()
	if err != nil {
		s.degradeLocked("encode", err)
		return
	}
	if err := s.storage.Set(StorageKey(s.userID), raw); err != nil {
		s.degradeLocked("write", err)
	}
}

func (s *Store) degradeLocked(op string, err error) {
	if s.degraded {
		return
	}
	s.degraded = true
	log.Warn("social storage unavailable; keeping state in memory for this session",
		"op", op, "user", s.userID, "error", err)
}

func (s *Store) issueLocked(m Mutation) Mutation {
	key := m.key()
	s.seq[key]++
	m.Seq = s.seq[key]
	m.UserID = s.userID
	m.Changed = true
	return m
}

func (s *Store) isLatestLocked(m Mutation) bool {
	return m.Changed && m.UserID != "" && m.UserID == s.userID && s.seq[m.key()] == m.Seq
}

// applyLikeLocked sets membership and moves the counter only when the
// membership actually changed.
func (s *Store) applyLikeLocked(subject Subject, on bool) []Event {
	t, id := subject.Type, subject.ID
	if s.st.liked(t, id) != on {
		s.st.setLiked(t, id, on)
		delta := -1
		if on {
			delta = 1
		}
		s.st.adjustCounter(subject.Key(), s.baselines[subject.Key()], delta)
	}

	events := []Event{
		{Topic: LikeTopic(t, id), Active: on},
		{Topic: LikesTopic(t, s.userID), IDs: slices.Clone(s.st.likes[t])},
	}
	if n, ok := s.st.counters[subject.Key()]; ok {
		events = append(events, Event{Topic: LikeCountTopic(t, id), Count: n})
	}
	return events
}

func (s *Store) saveEventsLocked(subject Subject) []Event {
	t, id := subject.Type, subject.ID
	return []Event{
		{Topic: SaveTopic(t, id), Active: s.st.saveIndex(t, id) >= 0},
		{Topic: SavedTopic(t, s.userID), Saves: slices.Clone(s.st.saves[t])},
	}
}

func (s *Store) followEventsLocked(followeeID string) []Event {
	return []Event{
		{Topic: FollowTopic(followeeID), Active: s.st.followIndex(followeeID) >= 0},
		{Topic: FollowingTopic(s.userID), Following: slices.Clone(s.st.following)},
	}
}
