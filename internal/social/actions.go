package social

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"github.com/go-playground/validator/v10"
)

// FailureMessage is the toast shown when a server call fails and the
// optimistic change is rolled back.
const FailureMessage = "처리 중 오류가 발생했습니다"

var (
	// ErrNotLoggedIn is returned by every action when no user is current.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSelfFollow is returned when a user tries to follow themselves.
	ErrSelfFollow = errors.New("cannot follow yourself")
)

// API performs the authoritative mutations on the server.
type API interface {
	Like(ctx context.Context, subject Subject) error
	Unlike(ctx context.Context, subject Subject) error
	Save(ctx context.Context, subject Subject, note string) error
	Unsave(ctx context.Context, subject Subject) error
	Follow(ctx context.Context, userID string) error
	Unfollow(ctx context.Context, userID string) error
}

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(msg string) { f(msg) }

// MaxNoteLength is the longest save note, in runes, the server accepts.
// Keep in step with the validate tag on saveInput.Note.
const MaxNoteLength = 200

type saveInput struct {
	Subject Subject
	Note    string `validate:"max=200"`
}

type followInput struct {
	FolloweeID string `validate:"required,max=128"`
	Snapshot   Snapshot
}

// Actions runs the optimistic update protocol: change the store, call the
// server, and roll back if the call fails and no newer action on the same
// subject has been issued since.
type Actions struct {
	store    *Store
	api      API
	notifier Notifier
	validate *validator.Validate
}

// NewActions wires store and api. notifier may be nil.
func NewActions(store *Store, api API, notifier Notifier) *Actions {
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}
	return &Actions{store: store, api: api, notifier: notifier, validate: validator.New()}
}

// ToggleLike likes or unlikes subject.
func (a *Actions) ToggleLike(ctx context.Context, subject Subject) (Mutation, error) {
	if err := a.check(subject); err != nil {
		return Mutation{}, err
	}
	m := a.store.MutateLike(subject.Type, subject.ID)
	if !m.Changed {
		return m, ErrNotLoggedIn
	}

	var err error
	if m.Active {
		err = a.api.Like(ctx, subject)
	} else {
		err = a.api.Unlike(ctx, subject)
	}
	return m, a.settle(m, err)
}

// ToggleSave saves or unsaves subject. note is sent only when saving.
func (a *Actions) ToggleSave(ctx context.Context, subject Subject, note string) (Mutation, error) {
	if err := a.check(saveInput{Subject: subject, Note: note}); err != nil {
		return Mutation{}, err
	}
	m := a.store.MutateSave(subject.Type, subject.ID, note)
	if !m.Changed {
		return m, ErrNotLoggedIn
	}

	var err error
	if m.Active {
		err = a.api.Save(ctx, subject, note)
	} else {
		err = a.api.Unsave(ctx, subject)
	}
	return m, a.settle(m, err)
}

// Follow follows followeeID. Following someone already followed makes no
// server call.
func (a *Actions) Follow(ctx context.Context, followeeID string, snapshot Snapshot) (Mutation, error) {
	if err := a.checkFollow(followeeID, snapshot); err != nil {
		return Mutation{}, err
	}
	m := a.store.MutateFollow(followeeID, snapshot)
	if !m.Changed {
		return m, nil
	}
	return m, a.settle(m, a.api.Follow(ctx, followeeID))
}

// Unfollow stops following followeeID.
func (a *Actions) Unfollow(ctx context.Context, followeeID string) (Mutation, error) {
	if err := a.checkFollow(followeeID, Snapshot{}); err != nil {
		return Mutation{}, err
	}
	m := a.store.MutateUnfollow(followeeID)
	if !m.Changed {
		return m, nil
	}
	return m, a.settle(m, a.api.Unfollow(ctx, followeeID))
}

// ToggleFollow follows or unfollows depending on the current state.
func (a *Actions) ToggleFollow(ctx context.Context, followeeID string, snapshot Snapshot) (Mutation, error) {
	if a.store.IsFollowing(followeeID) {
		return a.Unfollow(ctx, followeeID)
	}
	return a.Follow(ctx, followeeID, snapshot)
}

func (a *Actions) check(input any) error {
	if a.store.UserID() == "" {
		return ErrNotLoggedIn
	}
	if err := a.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (a *Actions) checkFollow(followeeID string, snapshot Snapshot) error {
	if err := a.check(followInput{FolloweeID: followeeID, Snapshot: snapshot}); err != nil {
		return err
	}
	if followeeID == a.store.UserID() {
		return ErrSelfFollow
	}
	return nil
}

// settle rolls m back when the server call failed. A failure for a stale
// mutation is reported but leaves the store alone, since a newer action now
// owns the subject.
func (a *Actions) settle(m Mutation, err error) error {
	if err == nil {
		return nil
	}
	if a.store.Revert(m) {
		log.Warn("social action failed; rolled back", "kind", m.Kind, "target", m.key(), "seq", m.Seq, "error", err)
		a.notifier.Notify(FailureMessage)
	} else {
		log.Debug("social action failed after a newer action", "kind", m.Kind, "target", m.key(), "seq", m.Seq, "error", err)
	}
	return fmt.Errorf("%s %s: %w", m.Kind, m.key(), err)
}
