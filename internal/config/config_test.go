package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, defaultAPIURL)
	}
	if cfg.SyncSeconds != defaultSyncSeconds {
		t.Fatalf("SyncSeconds = %d, want %d", cfg.SyncSeconds, defaultSyncSeconds)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Fatalf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendFile)
	}
	if !strings.HasPrefix(cfg.Storage.Dir, home) {
		t.Fatalf("Storage.Dir = %q, want it under HOME %q", cfg.Storage.Dir, home)
	}
	if cfg.Storage.QuotaBytes != defaultQuotaBytes {
		t.Fatalf("QuotaBytes = %d, want %d", cfg.Storage.QuotaBytes, defaultQuotaBytes)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_url = "  https://api.bobmap.kr/  "
sync_seconds = 30
log_level = " DEBUG "

[storage]
backend = "sqlite"
sqlite_path = "  ~/bobmap/state.db  "
quota_bytes = 0
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "https://api.bobmap.kr" {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, "https://api.bobmap.kr")
	}
	if cfg.SyncSeconds != 30 {
		t.Fatalf("SyncSeconds = %d, want 30", cfg.SyncSeconds)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Fatalf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Storage.SQLitePath != filepath.Join(home, "bobmap", "state.db") {
		t.Fatalf("SQLitePath = %q, want under HOME", cfg.Storage.SQLitePath)
	}
	if cfg.Storage.QuotaBytes != 0 {
		t.Fatalf("QuotaBytes = %d, want explicit 0", cfg.Storage.QuotaBytes)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_url = "https://file.example"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("BOBMAP_API_URL", "https://env.example")
	t.Setenv("BOBMAP_STORAGE", "redis")
	t.Setenv("BOBMAP_REDIS_ADDR", "127.0.0.1:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "https://env.example" {
		t.Fatalf("APIURL = %q, want env value", cfg.APIURL)
	}
	if cfg.Storage.Backend != BackendRedis || cfg.Storage.RedisAddr != "127.0.0.1:6379" {
		t.Fatalf("Storage = %#v, want redis at 127.0.0.1:6379", cfg.Storage)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "[storage]\nbackend = \"floppy\"\n"},
		{"redis without addr", "[storage]\nbackend = \"redis\"\n"},
		{"bad log level", "log_level = \"loud\"\n"},
		{"bad url", "api_url = \"not a url\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatalf("Load returned nil error, want validation error")
			}
			if !strings.Contains(err.Error(), "invalid config") {
				t.Fatalf("Load error = %q, want it to mention invalid config", err.Error())
			}
		})
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_url = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
