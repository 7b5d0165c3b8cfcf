package ui

import (
	"fmt"

	"github.com/five82/bobmap/internal/bobmap"
	"github.com/five82/bobmap/internal/social"
	"github.com/five82/bobmap/internal/state"
)

// card is one selectable row: a playlist or one of its restaurants.
type card struct {
	subject  social.Subject
	title    string
	detail   string
	baseline int
	curator  bobmap.Curator
	// parent is the playlist title for restaurant cards.
	parent string
}

// buildCards flattens the feed into rows, each playlist followed by its
// restaurants.
func buildCards(snap state.Snapshot) []card {
	var cards []card
	for _, p := range snap.Playlists {
		detail := ""
		if p.Curator.Username != "" {
			detail = "@" + p.Curator.Username
		}
		cards = append(cards, card{
			subject:  p.Subject(),
			title:    p.Title,
			detail:   detail,
			baseline: p.LikeCount,
			curator:  p.Curator,
		})
		for _, r := range p.Restaurants {
			cards = append(cards, card{
				subject:  r.Subject(),
				title:    r.Name,
				detail:   r.Category,
				baseline: r.LikeCount,
				curator:  p.Curator,
				parent:   p.Title,
			})
		}
	}
	return cards
}

func (c card) isRestaurant() bool {
	return c.subject.Type == social.Restaurant
}

// saveNote is attached when a restaurant is saved from inside a playlist.
func (c card) saveNote() string {
	if !c.isRestaurant() || c.parent == "" {
		return ""
	}
	return truncate(fmt.Sprintf("saved from %s", c.parent), social.MaxNoteLength)
}

// topics lists the store topics whose values this card displays.
func (c card) topics() []string {
	out := []string{
		social.LikeTopic(c.subject.Type, c.subject.ID),
		social.LikeCountTopic(c.subject.Type, c.subject.ID),
		social.SaveTopic(c.subject.Type, c.subject.ID),
	}
	if !c.isRestaurant() && c.curator.ID != "" {
		out = append(out, social.FollowTopic(c.curator.ID))
	}
	return out
}
