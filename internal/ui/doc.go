// Package ui implements the bobmap terminal interface using Bubble Tea.
//
// The model lists feed playlists and their restaurants as cards. It is a
// regular call site of the social store: rendering reads like, save, follow
// and count values straight from the store, and the model subscribes to the
// subject topics of the cards currently on screen so remote changes and
// rollbacks trigger a redraw. Subscriptions follow the visible window and are
// released when the program exits.
//
// Actions run as Bubble Tea commands through social.Actions. Failures reported
// by the action reconciler arrive on a Notifier and render as short-lived
// toasts in the footer.
package ui
