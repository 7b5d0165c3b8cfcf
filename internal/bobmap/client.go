package bobmap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/five82/bobmap/internal/social"
)

// ErrStatus is wrapped by every non-2xx response.
var ErrStatus = errors.New("unexpected status")

// StatusError carries the status of a failed call.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api %s %s returned status %d", e.Method, e.Path, e.Code)
}

// Unwrap lets errors.Is match ErrStatus.
func (e *StatusError) Unwrap() error { return ErrStatus }

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token() string
}

// Fetcher is the read side of the API used by the poller.
type Fetcher interface {
	FetchPlaylists(ctx context.Context) ([]Playlist, error)
	FetchStats(ctx context.Context, subject social.Subject) (Stats, error)
}

var (
	_ social.API = (*Client)(nil)
	_ Fetcher    = (*Client)(nil)
)

// Client talks to the BobMap REST API.
type Client struct {
	http *resty.Client
}

const (
	defaultAPIURL    = "127.0.0.1:8080"
	defaultUserAgent = "bobmap/0.1"
	requestTimeout   = 5 * time.Second
)

// NewClient builds a Client for apiURL. tokens may be nil for anonymous
// access.
func NewClient(apiURL string, tokens TokenSource) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}

	rc := resty.New().
		SetBaseURL(base.String()).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", defaultUserAgent).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	if tokens != nil {
		rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			if token := tokens.Token(); token != "" {
				req.SetAuthToken(token)
			}
			return nil
		})
	}
	return &Client{http: rc}, nil
}

// Like records a like on the server.
func (c *Client) Like(ctx context.Context, subject social.Subject) error {
	return c.do(ctx, http.MethodPost, subjectPath(subject, "like"), nil, nil)
}

// Unlike removes a like.
func (c *Client) Unlike(ctx context.Context, subject social.Subject) error {
	return c.do(ctx, http.MethodDelete, subjectPath(subject, "like"), nil, nil)
}

// Save bookmarks subject with an optional note.
func (c *Client) Save(ctx context.Context, subject social.Subject, note string) error {
	return c.do(ctx, http.MethodPost, subjectPath(subject, "save"), saveRequest{Note: note}, nil)
}

// Unsave removes a bookmark.
func (c *Client) Unsave(ctx context.Context, subject social.Subject) error {
	return c.do(ctx, http.MethodDelete, subjectPath(subject, "save"), nil, nil)
}

// Follow follows userID.
func (c *Client) Follow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/api/users/"+url.PathEscape(userID)+"/follow", nil, nil)
}

// Unfollow stops following userID.
func (c *Client) Unfollow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(userID)+"/follow", nil, nil)
}

// FetchStats retrieves the authoritative counts for subject.
func (c *Client) FetchStats(ctx context.Context, subject social.Subject) (Stats, error) {
	var payload Stats
	if err := c.do(ctx, http.MethodGet, subjectPath(subject, "stats"), nil, &payload); err != nil {
		return Stats{}, err
	}
	return payload, nil
}

// FetchPlaylists retrieves the playlist feed.
func (c *Client) FetchPlaylists(ctx context.Context) ([]Playlist, error) {
	var payload PlaylistsResponse
	if err := c.do(ctx, http.MethodGet, "/api/playlists", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if dest != nil {
		req.SetResult(dest)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode()}
	}
	return nil
}

func subjectPath(subject social.Subject, action string) string {
	return "/api/" + string(subject.Type) + "s/" + url.PathEscape(subject.ID) + "/" + action
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = defaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", apiURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
