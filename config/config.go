// Package config manages application configuration.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"watchlater/curate"
	"watchlater/internal/retry"
)

// Uploads sources accepted by Validate.
const (
	UploadsFromAPI  = "api"
	UploadsFromFeed = "feed"
)

// Duration is a time.Duration that reads as "30s" or "1m30s" in YAML and JSON.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText formats d as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config holds all settings of a curation run.
type Config struct {
	// PlaylistID is the playlist videos are appended to.
	PlaylistID string `json:"playlist_id" yaml:"playlist_id"`
	// Since is the cutoff date, YYYY-MM-DD, read as midnight in Timezone.
	Since string `json:"since" yaml:"since"`
	// Timezone is an IANA zone name. Empty means the system zone.
	Timezone string `json:"timezone" yaml:"timezone"`

	ChannelsBlocklist string `json:"channels_blocklist" yaml:"channels_blocklist"`
	TitlesBlocklist   string `json:"titles_blocklist" yaml:"titles_blocklist"`

	// ClientSecret is the OAuth installed-app client secrets file.
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	// TokenFile caches the OAuth token between runs.
	TokenFile string `json:"token_file" yaml:"token_file"`

	// OnInsertError names a curate.InsertPolicy: "abort" or "continue".
	OnInsertError string `json:"on_insert_error" yaml:"on_insert_error"`
	// UploadsSource is "api" (paginated, quota-billed) or "feed" (public
	// feed, latest 15 uploads only).
	UploadsSource string `json:"uploads_source" yaml:"uploads_source"`

	// Retry settings. MaxRetries 0 means every call is attempted once.
	MaxRetries     int      `json:"max_retries" yaml:"max_retries"`
	InitialBackoff Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     Duration `json:"max_backoff" yaml:"max_backoff"`

	// Transport settings. RequestsPerSecond 0 disables throttling.
	RequestsPerSecond float64  `json:"requests_per_second" yaml:"requests_per_second"`
	// HostRates overrides RequestsPerSecond per host, for example
	// www.youtube.com for the public feed. 0 disables throttling for that host.
	HostRates map[string]float64 `json:"host_rates,omitempty" yaml:"host_rates"`
	RequestTimeout    Duration `json:"request_timeout" yaml:"request_timeout"`
	PageSize          int      `json:"page_size" yaml:"page_size"`

	// Path is the file the config was read from, empty if none.
	Path string `json:"-" yaml:"-"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		ClientSecret:      "client_secret.json",
		TokenFile:         filepath.Join(Dir(), "token.json"),
		OnInsertError:     string(curate.InsertAbort),
		UploadsSource:     UploadsFromAPI,
		MaxRetries:        0,
		InitialBackoff:    Duration(1 * time.Second),
		MaxBackoff:        Duration(30 * time.Second),
		RequestsPerSecond: 5,
		RequestTimeout:    Duration(30 * time.Second),
		PageSize:          50,
	}
}

// Dir is the per-user configuration directory, ~/.config/watchlater.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".watchlater"
	}
	return filepath.Join(home, ".config", "watchlater")
}

// Load reads defaults, then the config file, then WATCHLATER_* environment
// variables, and validates the result. An explicit path must exist; without
// one the working directory and Dir are searched and a missing file is fine.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(path); err != nil {
		if path != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func searchPaths() []string {
	names := []string{"watchlater.yaml", "watchlater.yml", "watchlater.json"}
	paths := append([]string(nil), names...)
	for _, name := range names {
		paths = append(paths, filepath.Join(Dir(), name))
	}
	return paths
}

func (c *Config) loadFromFile(path string) error {
	paths := searchPaths()
	if path != "" {
		paths = []string{path}
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == "" {
				continue
			}
			return err
		}

		if err := c.decode(p, data); err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		c.Path = p
		return nil
	}

	return os.ErrNotExist
}

// decode picks the format from the file extension. Unknown keys are errors.
func (c *Config) decode(path string, data []byte) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(c)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"WATCHLATER_PLAYLIST_ID":        &c.PlaylistID,
		"WATCHLATER_SINCE":              &c.Since,
		"WATCHLATER_TIMEZONE":           &c.Timezone,
		"WATCHLATER_CHANNELS_BLOCKLIST": &c.ChannelsBlocklist,
		"WATCHLATER_TITLES_BLOCKLIST":   &c.TitlesBlocklist,
		"WATCHLATER_CLIENT_SECRET":      &c.ClientSecret,
		"WATCHLATER_TOKEN_FILE":         &c.TokenFile,
		"WATCHLATER_ON_INSERT_ERROR":    &c.OnInsertError,
		"WATCHLATER_UPLOADS_SOURCE":     &c.UploadsSource,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WATCHLATER_MAX_RETRIES": &c.MaxRetries,
		"WATCHLATER_PAGE_SIZE":   &c.PageSize,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*Duration{
		"WATCHLATER_INITIAL_BACKOFF": &c.InitialBackoff,
		"WATCHLATER_MAX_BACKOFF":     &c.MaxBackoff,
		"WATCHLATER_REQUEST_TIMEOUT": &c.RequestTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	if v, ok := lookup("WATCHLATER_REQUESTS_PER_SECOND"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("WATCHLATER_REQUESTS_PER_SECOND: %w", err)
		}
		c.RequestsPerSecond = f
	}
	return nil
}

// Validate checks that configuration values are valid and consistent. It does
// not require PlaylistID or Since, which commands check for themselves.
func (c *Config) Validate() error {
	if c.Since != "" {
		if _, err := time.Parse(time.DateOnly, c.Since); err != nil {
			return fmt.Errorf("since must be YYYY-MM-DD: %w", err)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := curate.ParseInsertPolicy(c.OnInsertError); err != nil {
		return fmt.Errorf("on_insert_error: %w", err)
	}
	switch c.UploadsSource {
	case UploadsFromAPI, UploadsFromFeed:
	default:
		return fmt.Errorf("uploads_source must be %q or %q", UploadsFromAPI, UploadsFromFeed)
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret must be set")
	}
	if c.TokenFile == "" {
		return fmt.Errorf("token_file must be set")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be non-negative")
	}
	for host, rps := range c.HostRates {
		if rps < 0 {
			return fmt.Errorf("host_rates: %s must be non-negative", host)
		}
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.PageSize < 1 || c.PageSize > 50 {
		return fmt.Errorf("page_size must be between 1 and 50")
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// RetryConfig builds the retry policy for API calls.
func (c *Config) RetryConfig() retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = c.MaxRetries
	rc.InitialBackoff = c.InitialBackoff.Std()
	rc.MaxBackoff = c.MaxBackoff.Std()
	return rc
}
