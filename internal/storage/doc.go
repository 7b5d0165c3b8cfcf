// Package storage provides the durable key/value backends the social store
// persists into.
//
// # Contract
//
// Storage is deliberately small: synchronous string Get, Set and Remove, a
// Watch callback for changes, and an Origin id. Every handle pointed at the
// same backend sees the same data, so several running clients share state
// the way browser tabs share local storage.
//
// # Backends
//
//   - Memory: a map guarded by a mutex. Tab returns a second handle over the
//     same map, used by tests to model two clients in one process.
//   - File: one file per key in a directory. Writes go through a temp file
//     and rename. fsnotify reports changes made by other processes; these
//     events carry no origin.
//   - SQLite: a kv table in a modernc.org/sqlite database plus a kv_changes
//     log recording the writer's origin. Watchers poll the log.
//   - Redis: plain GET/SET/DEL with a PUBLISH on RedisChangeChannel inside
//     the same MULTI block.
//
// Open picks one from config.Storage.
//
// # Errors
//
// Backend failures wrap ErrUnavailable. A value larger than the quota set
// with WithQuota is rejected with ErrQuotaExceeded. Callers treat both as
// "storage is gone" and keep working in memory.
//
// # Events
//
// Watch callbacks run on a backend goroutine, never while a backend lock is
// held, and in registration order. A handle receives events for its own
// writes too; compare Event.Origin with Origin to skip them.
package storage
