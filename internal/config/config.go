package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
)

// Storage backend names accepted by the storage.backend setting.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config captures everything bobmap needs at startup.
type Config struct {
	APIURL      string `env:"BOBMAP_API_URL" validate:"required,url"`
	SyncSeconds int    `env:"BOBMAP_SYNC_SECONDS" validate:"gte=1"`
	LogLevel    string `env:"BOBMAP_LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFile     string `env:"BOBMAP_LOG_FILE"`
	Storage     Storage
}

// Storage selects and configures the durable key/value backend.
type Storage struct {
	Backend       string `env:"BOBMAP_STORAGE" validate:"oneof=memory file sqlite redis"`
	Dir           string `env:"BOBMAP_STORAGE_DIR"`
	SQLitePath    string `env:"BOBMAP_SQLITE_PATH"`
	RedisAddr     string `env:"BOBMAP_REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword string `env:"BOBMAP_REDIS_PASSWORD"`
	RedisDB       int    `env:"BOBMAP_REDIS_DB" validate:"gte=0"`
	QuotaBytes    int    `env:"BOBMAP_STORAGE_QUOTA" validate:"gte=0"`
}

const (
	defaultConfigPath  = "~/.config/bobmap/config.toml"
	defaultDataDir     = "~/.local/share/bobmap"
	defaultAPIURL      = "http://127.0.0.1:8080"
	defaultSyncSeconds = 10
	defaultLogLevel    = "info"
	defaultQuotaBytes  = 5 << 20 // same order as a browser origin's localStorage
)

var validate = validator.New()

// Load locates and parses the bobmap config, falling back to defaults when
// missing. Environment variables override file values.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := defaults()

	bytes, err := readFile(resolved)
	if err != nil {
		return Config{}, err
	}
	if bytes != nil {
		if err := apply(&cfg, bytes); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	dataDir := mustExpand(defaultDataDir)
	return Config{
		APIURL:      defaultAPIURL,
		SyncSeconds: defaultSyncSeconds,
		LogLevel:    defaultLogLevel,
		LogFile:     filepath.Join(dataDir, "bobmap.log"),
		Storage: Storage{
			Backend:    BackendFile,
			Dir:        filepath.Join(dataDir, "storage"),
			SQLitePath: filepath.Join(dataDir, "storage.db"),
			QuotaBytes: defaultQuotaBytes,
		},
	}
}

func readFile(resolved string) ([]byte, error) {
	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return bytes, nil
}

func apply(cfg *Config, bytes []byte) error {
	var raw struct {
		APIURL      string `toml:"api_url"`
		SyncSeconds int    `toml:"sync_seconds"`
		LogLevel    string `toml:"log_level"`
		LogFile     string `toml:"log_file"`
		Storage     struct {
			Backend       string `toml:"backend"`
			Dir           string `toml:"dir"`
			SQLitePath    string `toml:"sqlite_path"`
			RedisAddr     string `toml:"redis_addr"`
			RedisPassword string `toml:"redis_password"`
			RedisDB       int    `toml:"redis_db"`
			QuotaBytes    *int   `toml:"quota_bytes"`
		} `toml:"storage"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&cfg.APIURL, raw.APIURL)
	setString(&cfg.LogLevel, raw.LogLevel)
	setString(&cfg.LogFile, raw.LogFile)
	if raw.SyncSeconds > 0 {
		cfg.SyncSeconds = raw.SyncSeconds
	}

	setString(&cfg.Storage.Backend, raw.Storage.Backend)
	setString(&cfg.Storage.Dir, raw.Storage.Dir)
	setString(&cfg.Storage.SQLitePath, raw.Storage.SQLitePath)
	setString(&cfg.Storage.RedisAddr, raw.Storage.RedisAddr)
	cfg.Storage.RedisPassword = raw.Storage.RedisPassword
	cfg.Storage.RedisDB = raw.Storage.RedisDB
	if raw.Storage.QuotaBytes != nil {
		cfg.Storage.QuotaBytes = *raw.Storage.QuotaBytes
	}
	return nil
}

func setString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

func (c *Config) normalize() {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.LogFile != "" {
		c.LogFile = mustExpand(c.LogFile)
	}
	c.Storage.Dir = mustExpand(c.Storage.Dir)
	c.Storage.SQLitePath = mustExpand(c.Storage.SQLitePath)
}

// DefaultPath returns the config file location used when none is given.
func DefaultPath() string {
	return defaultConfigPath
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
