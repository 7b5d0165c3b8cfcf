// Package logtail reads the tail of the bobmap log file for display in the
// TUI.
//
// Read keeps a ring buffer of the last maxLines lines, so memory stays
// bounded by the number of lines requested rather than the file size. Level
// and Message pick apart lines written by slog's text handler so the UI can
// color them by severity.
package logtail
