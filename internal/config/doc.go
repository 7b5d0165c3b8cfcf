// Package config loads bobmap's startup configuration.
//
// # Resolution Order
//
//  1. Hardcoded defaults
//  2. ~/.config/bobmap/config.toml, or the path passed to Load
//  3. BOBMAP_* environment variables
//
// A missing config file is not an error; bobmap works out of the box against a
// local API with file-backed storage under ~/.local/share/bobmap.
//
// # TOML Format
//
//	api_url = "https://api.bobmap.kr"
//	sync_seconds = 10
//	log_level = "info"
//	log_file = "~/.local/share/bobmap/bobmap.log"
//
//	[storage]
//	backend = "redis"          # memory | file | sqlite | redis
//	dir = "~/.local/share/bobmap/storage"
//	sqlite_path = "~/.local/share/bobmap/storage.db"
//	redis_addr = "127.0.0.1:6379"
//	quota_bytes = 5242880
//
// Empty values fall back to defaults. Tilde paths are expanded. The final
// Config is validated; an unknown backend or a redis backend without an
// address is rejected.
package config
