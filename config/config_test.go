package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"watchlater/curate"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// isolate points HOME and the working directory at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := DefaultConfig()
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if want := filepath.Join(dir, ".config", "watchlater", "token.json"); cfg.TokenFile != want {
		t.Errorf("TokenFile = %q, want %q", cfg.TokenFile, want)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "watchlater.yaml", `
playlist_id: PL123
since: "2023-08-30"
timezone: UTC
titles_blocklist: titles.txt
on_insert_error: continue
uploads_source: feed
max_retries: 3
initial_backoff: 2s
max_backoff: 1m
request_timeout: 10s
page_size: 25
host_rates:
  www.youtube.com: 1
  youtube.googleapis.com: 0
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := DefaultConfig()
	want.PlaylistID = "PL123"
	want.Since = "2023-08-30"
	want.Timezone = "UTC"
	want.TitlesBlocklist = "titles.txt"
	want.OnInsertError = string(curate.InsertContinue)
	want.UploadsSource = UploadsFromFeed
	want.MaxRetries = 3
	want.InitialBackoff = Duration(2 * time.Second)
	want.MaxBackoff = Duration(time.Minute)
	want.RequestTimeout = Duration(10 * time.Second)
	want.PageSize = 25
	want.HostRates = map[string]float64{"www.youtube.com": 1, "youtube.googleapis.com": 0}
	want.Path = "watchlater.yaml"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	// An explicit path reads the same file.
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error = %v", path, err)
	}
	if cfg.Path != path || cfg.PlaylistID != "PL123" {
		t.Errorf("Load(%q) = path %q, playlist %q", path, cfg.Path, cfg.PlaylistID)
	}
}

func TestLoadJSONFromConfigDir(t *testing.T) {
	dir := isolate(t)
	cfgDir := filepath.Join(dir, ".config", "watchlater")
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, cfgDir, "watchlater.json", `{"playlist_id": "PLjson", "request_timeout": "45s"}`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PlaylistID != "PLjson" || cfg.RequestTimeout != Duration(45*time.Second) || cfg.Path != path {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown yaml key", "watchlater.yaml", "playlist: PL1\n", "field playlist not found"},
		{"unknown json key", "watchlater.json", `{"playlist": "PL1"}`, "unknown field"},
		{"bad duration", "watchlater.yaml", "max_backoff: soon\n", "invalid duration"},
		{"invalid value", "watchlater.yaml", "on_insert_error: retry\n", "on_insert_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			writeFile(t, dir, tt.file, tt.content)

			_, err := Load("")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	dir := isolate(t)
	if _, err := Load(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("Load() of a missing explicit path succeeded")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "watchlater.yaml", "playlist_id: PLfile\nmax_retries: 1\n")
	t.Setenv("WATCHLATER_PLAYLIST_ID", "PLenv")
	t.Setenv("WATCHLATER_MAX_RETRIES", "4")
	t.Setenv("WATCHLATER_MAX_BACKOFF", "2m")
	t.Setenv("WATCHLATER_REQUESTS_PER_SECOND", "0.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PlaylistID != "PLenv" || cfg.MaxRetries != 4 || cfg.MaxBackoff != Duration(2*time.Minute) || cfg.RequestsPerSecond != 0.5 {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoadFromEnvErrors(t *testing.T) {
	tests := map[string]string{
		"WATCHLATER_MAX_RETRIES":         "many",
		"WATCHLATER_REQUEST_TIMEOUT":     "10",
		"WATCHLATER_REQUESTS_PER_SECOND": "fast",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			cfg := DefaultConfig()
			lookup := func(k string) (string, bool) {
				if k == key {
					return value, true
				}
				return "", false
			}
			err := cfg.loadFromEnv(lookup)
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Errorf("loadFromEnv() error = %v, want one naming %s", err, key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"valid since", func(c *Config) { c.Since = "2023-08-30" }, false},
		{"bad since", func(c *Config) { c.Since = "30.08.2023" }, true},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
		{"insert policy continue", func(c *Config) { c.OnInsertError = "continue" }, false},
		{"unknown insert policy", func(c *Config) { c.OnInsertError = "retry" }, true},
		{"bad uploads source", func(c *Config) { c.UploadsSource = "scrape" }, true},
		{"no client secret", func(c *Config) { c.ClientSecret = "" }, true},
		{"no token file", func(c *Config) { c.TokenFile = "" }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"zero backoff", func(c *Config) { c.InitialBackoff = 0 }, true},
		{"max below initial", func(c *Config) { c.MaxBackoff = Duration(time.Millisecond) }, true},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }, true},
		{"zero rate disables throttling", func(c *Config) { c.RequestsPerSecond = 0 }, false},
		{"host rate", func(c *Config) { c.HostRates = map[string]float64{"www.youtube.com": 0.5} }, false},
		{"negative host rate", func(c *Config) { c.HostRates = map[string]float64{"www.youtube.com": -1} }, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"page size too big", func(c *Config) { c.PageSize = 51 }, true},
		{"page size zero", func(c *Config) { c.PageSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	if loc, err := cfg.Location(); err != nil || loc != time.Local {
		t.Errorf("Location() = %v, %v; want Local", loc, err)
	}

	cfg.Timezone = "UTC"
	if loc, err := cfg.Location(); err != nil || loc.String() != "UTC" {
		t.Errorf("Location() = %v, %v; want UTC", loc, err)
	}
}

func TestRetryConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.InitialBackoff = Duration(500 * time.Millisecond)

	rc := cfg.RetryConfig()
	if rc.MaxRetries != 2 || rc.InitialBackoff != 500*time.Millisecond || rc.MaxBackoff != 30*time.Second {
		t.Errorf("RetryConfig() = %+v", rc)
	}
	if rc.Multiplier <= 1 {
		t.Errorf("RetryConfig().Multiplier = %v, want > 1", rc.Multiplier)
	}
}
