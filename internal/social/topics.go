package social

// Collection topics carry the whole collection for one user.

// LikesTopic carries Event.IDs, the liked subject ids of type t.
func LikesTopic(t SubjectType, userID string) string {
	return "likes_" + string(t) + "_" + userID
}

// SavedTopic carries Event.Saves.
func SavedTopic(t SubjectType, userID string) string {
	return "saved_" + string(t) + "_" + userID
}

// FollowingTopic carries Event.Following.
func FollowingTopic(userID string) string {
	return "following_" + userID
}

// Subject topics carry one scalar for one subject.

// LikeCountTopic carries Event.Count.
func LikeCountTopic(t SubjectType, subjectID string) string {
	return "like_count_" + string(t) + "_" + subjectID
}

// LikeTopic carries Event.Active.
func LikeTopic(t SubjectType, subjectID string) string {
	return "like_" + string(t) + "_" + subjectID
}

// SaveTopic carries Event.Active.
func SaveTopic(t SubjectType, subjectID string) string {
	return "save_" + string(t) + "_" + subjectID
}

// FollowTopic carries Event.Active.
func FollowTopic(followeeID string) string {
	return "follow_" + followeeID
}

// Event is delivered to subscribers. Only the field matching the topic kind
// is meaningful.
type Event struct {
	Topic     string
	Active    bool
	Count     int
	IDs       []string
	Saves     []SaveRecord
	Following []FollowRecord
}

func (e Event) equal(o Event) bool {
	if e.Topic != o.Topic || e.Active != o.Active || e.Count != o.Count {
		return false
	}
	if len(e.IDs) != len(o.IDs) || len(e.Saves) != len(o.Saves) || len(e.Following) != len(o.Following) {
		return false
	}
	for i := range e.IDs {
		if e.IDs[i] != o.IDs[i] {
			return false
		}
	}
	for i := range e.Saves {
		a, b := e.Saves[i], o.Saves[i]
		if a.SubjectID != b.SubjectID || a.SubjectType != b.SubjectType || a.UserID != b.UserID ||
			a.Note != b.Note || !a.SavedAt.Equal(b.SavedAt) {
			return false
		}
	}
	for i := range e.Following {
		if e.Following[i] != o.Following[i] {
			return false
		}
	}
	return true
}
