// Package social holds the current user's likes, saves, follows and like
// counters, and keeps every view that shows them consistent.
//
// # Store
//
// Store is constructed explicitly and shared by reference. Reads such as
// IsLiked and GetCount never touch storage; toggles update memory, write the
// user's whole document synchronously and then notify subscribers. Logged
// out, every toggle is a no-op that returns false.
//
// State is keyed by user id. When the Identity reports a different user the
// store loads that user's document, so accounts never see each other's data.
//
// # Topics
//
// Subscribers pick a topic string. Collection topics (LikesTopic, SavedTopic,
// FollowingTopic) deliver the whole collection. Subject topics (LikeTopic,
// SaveTopic, FollowTopic, LikeCountTopic) deliver one value for one subject,
// so a card for one playlist is not woken by toggles on another. Delivery is
// synchronous, in subscription order, after the store lock is released;
// callbacks may call back into the store.
//
// # Optimistic updates
//
// Each MutateLike, MutateSave, MutateFollow and MutateUnfollow returns a
// Mutation with a per-subject sequence number. Revert undoes a mutation only
// while it is the latest one issued for that subject. Actions wraps this
// protocol: toggle, call the server, and on failure revert and raise
// FailureMessage through a Notifier. A failure arriving after the user acted
// again on the same subject is dropped.
//
// # Persistence
//
// The document is JSON under StorageKey(userID):
//
//	{"version":1,
//	 "likedPlaylists":["p1"], "likedRestaurants":[],
//	 "savedPlaylists":[{"playlistId":"p2","note":"...","savedAt":"..."}],
//	 "savedRestaurants":[{"restaurantId":"r1","savedAt":"..."}],
//	 "following":[{"followeeId":"u2","username":"kim","bio":"..."}],
//	 "counters":{"playlist:p1":12}}
//
// Writes are last-write-wins for the whole document. A document that fails
// to decode is treated as empty. If storage fails the store logs once and
// keeps going in memory for the rest of the session (Mode reports it).
//
// SyncWithRemote rereads the document and notifies only topics whose values
// changed. HandleStorageEvent calls it for writes by other clients.
//
// # Counters
//
// GetCount returns the local entry or the caller's baseline, which is
// remembered as the starting point for the first toggle. ReconcileCount
// overwrites the entry with a fresh server count.
package social
