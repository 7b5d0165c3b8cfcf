package storage

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/five82/bobmap/internal/config"
)

// Open builds the backend selected by cfg.
func Open(cfg config.Storage, opts ...Option) (Storage, error) {
	opts = append([]Option{WithQuota(cfg.QuotaBytes)}, opts...)

	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(opts...), nil
	case config.BackendFile, "":
		return NewFile(cfg.Dir, opts...)
	case config.BackendSQLite:
		return OpenSQLite(cfg.SQLitePath, opts...)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedis(client, opts...), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
