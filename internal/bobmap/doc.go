// Package bobmap is the HTTP client for the BobMap REST API.
//
// Client implements social.API, the write side used by the optimistic
// action reconciler, and Fetcher, the read side used by the background
// poller:
//
//	POST/DELETE /api/playlists/{id}/like     Like, Unlike
//	POST/DELETE /api/restaurants/{id}/save   Save, Unsave
//	POST/DELETE /api/users/{id}/follow       Follow, Unfollow
//	GET         /api/{type}s/{id}/stats      FetchStats
//	GET         /api/playlists               FetchPlaylists
//
// Requests go through go-resty with a 5 second timeout, goccy/go-json as
// the codec, and the session token as a bearer header when one is set.
// Any status of 400 or above becomes a *StatusError wrapping ErrStatus.
package bobmap
