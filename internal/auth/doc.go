// Package auth is bobmap's identity provider.
//
// A Session holds the current user id and bearer token. Tokens are JWTs
// issued by the BobMap API; the client decodes their claims to learn the
// user id (user_id, falling back to sub) but does not verify signatures,
// since only the server holds the key. The server remains the authority on
// whether a token is accepted.
//
// Other packages read the session through the Identity interface and
// subscribe to login changes with OnChange, which is how the social store
// switches to the new user's persisted document.
package auth
