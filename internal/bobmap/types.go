package bobmap

import "github.com/five82/bobmap/internal/social"

// PlaylistsResponse mirrors /api/playlists.
type PlaylistsResponse struct {
	Items []Playlist `json:"items"`
}

// Playlist is a curated list of restaurants.
type Playlist struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Curator     Curator      `json:"curator"`
	LikeCount   int          `json:"likeCount"`
	SaveCount   int          `json:"saveCount"`
	Restaurants []Restaurant `json:"restaurants"`
}

// Subject returns the social subject for p.
func (p Playlist) Subject() social.Subject {
	return social.Subject{Type: social.Playlist, ID: p.ID}
}

// Curator is the local expert who published a playlist.
type Curator struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bio      string `json:"bio"`
}

// Snapshot returns the display fields stored with a follow.
func (c Curator) Snapshot() social.Snapshot {
	return social.Snapshot{Username: c.Username, Bio: c.Bio}
}

// Restaurant is a single place within a playlist.
type Restaurant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Address   string `json:"address"`
	LikeCount int    `json:"likeCount"`
}

// Subject returns the social subject for r.
func (r Restaurant) Subject() social.Subject {
	return social.Subject{Type: social.Restaurant, ID: r.ID}
}

// Stats mirrors /api/<type>s/<id>/stats.
type Stats struct {
	LikeCount int `json:"likeCount"`
	SaveCount int `json:"saveCount"`
}

type saveRequest struct {
	Note string `json:"note,omitempty"`
}
