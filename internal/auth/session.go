package auth

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned when a token cannot be decoded or names no user.
	ErrTokenInvalid = errors.New("session token invalid")
	// ErrTokenExpired is returned when a token's exp claim is in the past.
	ErrTokenExpired = errors.New("session token expired")
)

// Identity is the read-only view of the current login used by the store and
// the API client.
type Identity interface {
	UserID() string
	Token() string
}

// Claims are the fields bobmap reads from a session token.
type Claims struct {
	UserID   UserID `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// UserID accepts both string and numeric user ids from the token payload.
type UserID string

// UnmarshalJSON implements json.Unmarshaler.
func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*u = ""
		return nil
	}
	if data[0] == '"' {
		*u = UserID(strings.Trim(string(data), `"`))
		return nil
	}
	*u = UserID(data)
	return nil
}

// ParseToken decodes the claims of a session token without verifying its
// signature; the client never holds the signing key. Expiry is checked
// against now.
func ParseToken(token string, now time.Time) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(strings.TrimSpace(token), &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return Claims{}, ErrTokenExpired
	}
	if strings.TrimSpace(string(claims.UserID)) == "" {
		claims.UserID = UserID(claims.Subject)
	}
	if strings.TrimSpace(string(claims.UserID)) == "" {
		return Claims{}, fmt.Errorf("%w: no user id claim", ErrTokenInvalid)
	}
	return claims, nil
}

type listener struct {
	id int
	fn func(userID string)
}

// Session holds the logged-in user. The zero value is logged out and ready
// to use.
type Session struct {
	mu        sync.RWMutex
	userID    string
	username  string
	token     string
	listeners []listener
	nextID    int

	now func() time.Time
}

var _ Identity = (*Session)(nil)

// Login decodes token and makes its user current. Listeners are notified
// when the user changes.
func (s *Session) Login(token string) error {
	claims, err := ParseToken(token, s.clock())
	if err != nil {
		return err
	}

	s.mu.Lock()
	changed := s.userID != string(claims.UserID)
	s.userID = string(claims.UserID)
	s.username = claims.Username
	s.token = strings.TrimSpace(token)
	fns := s.snapshotListeners()
	s.mu.Unlock()

	if changed {
		notify(fns, string(claims.UserID))
	}
	return nil
}

// Logout clears the current user.
func (s *Session) Logout() {
	s.mu.Lock()
	changed := s.userID != ""
	s.userID = ""
	s.username = ""
	s.token = ""
	fns := s.snapshotListeners()
	s.mu.Unlock()

	if changed {
		notify(fns, "")
	}
}

// UserID returns the current user id, or "" when logged out.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Username returns the display name from the token, if present.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Token returns the raw bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// LoggedIn reports whether a user is current.
func (s *Session) LoggedIn() bool {
	return s.UserID() != ""
}

// OnChange registers fn to run after the current user changes. The returned
// function removes the registration.
func (s *Session) OnChange(fn func(userID string)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Session) snapshotListeners() []func(string) {
	fns := make([]func(string), len(s.listeners))
	for i, l := range s.listeners {
		fns[i] = l.fn
	}
	return fns
}

func (s *Session) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func notify(fns []func(string), userID string) {
	for _, fn := range fns {
		fn(userID)
	}
}
