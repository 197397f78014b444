// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported storage backends.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultDistricts is the district allow-list used when DISTRICTS is unset.
var DefaultDistricts = []string{
	"Kreuzberg", "Friedrichshain", "Pankow", "Neukölln", "Mitte", "Tempelhof", "Schöneberg",
}

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	StorageBackend   string
	DatabasePath     string
	DataDir          string
	LogLevel         string
	LogFile          string
	AllowedUsers     []int64

	TargetURL      string
	RequestMethod  string
	RequestForm    string
	RequestTimeout time.Duration
	Headers        map[string]string

	RentCeiling     float64
	Districts       []string
	IncludeKeywords []string
	ExcludeKeywords []string

	PollInterval   time.Duration
	DetailLinkBase string
	NotifyRate     float64
}

// DefaultHeaders returns the browser-like header set sent with every fetch.
// Upstream rejects requests that look like scripts, so these matter for
// liveness only.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      defaultUserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7",
		"Referer":         "https://www.inberlinwohnen.de/",
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	cfg := &Config{
		TelegramBotToken: token,
		StorageBackend:   strings.ToLower(envOr("STORAGE_BACKEND", BackendSQLite)),
		DatabasePath:     envOr("DATABASE_PATH", "./data/flatbot.db"),
		DataDir:          envOr("DATA_DIR", "./data"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFile:          os.Getenv("LOG_FILE"),
		TargetURL:        envOr("TARGET_URL", "https://www.inberlinwohnen.de/wohnungsfinder/"),
		RequestMethod:    strings.ToUpper(envOr("REQUEST_METHOD", "GET")),
		RequestForm:      os.Getenv("REQUEST_FORM"),
		DetailLinkBase:   envOr("DETAIL_LINK_BASE", "https://www.inberlinwohnen.de/wohnungsfinder/?oID="),
		Districts:        DefaultDistricts,
		IncludeKeywords:  splitList(os.Getenv("INCLUDE_KEYWORDS")),
		ExcludeKeywords:  splitList(os.Getenv("EXCLUDE_KEYWORDS")),
	}

	switch cfg.StorageBackend {
	case BackendSQLite, BackendJSON:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q, use: sqlite, json", cfg.StorageBackend)
	}

	if _, err := url.ParseRequestURI(cfg.TargetURL); err != nil {
		return nil, fmt.Errorf("invalid TARGET_URL %q: %w", cfg.TargetURL, err)
	}
	if cfg.RequestMethod != "GET" && cfg.RequestMethod != "POST" {
		return nil, fmt.Errorf("invalid REQUEST_METHOD %q, use: GET, POST", cfg.RequestMethod)
	}

	var err error
	if cfg.AllowedUsers, err = parseUserIDs(os.Getenv("ALLOWED_USERS")); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = positiveDuration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = positiveDuration("POLL_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RentCeiling, err = positiveFloat("RENT_CEILING", 1000); err != nil {
		return nil, err
	}
	if cfg.NotifyRate, err = positiveFloat("NOTIFY_RATE", 20); err != nil {
		return nil, err
	}
	if raw := os.Getenv("DISTRICTS"); raw != "" {
		cfg.Districts = splitList(raw)
	}
	if cfg.Headers, err = parseHeaders(os.Getenv("REQUEST_HEADERS")); err != nil {
		return nil, err
	}
	if ua := os.Getenv("USER_AGENT"); ua != "" {
		cfg.Headers["User-Agent"] = ua
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, s := range splitList(raw) {
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		ids = append(ids, uid)
	}
	return ids, nil
}

func positiveDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}

func positiveFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return v, nil
}

// parseHeaders merges "Name: value" lines over DefaultHeaders.
func parseHeaders(raw string) (map[string]string, error) {
	headers := DefaultHeaders()
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header line %q in REQUEST_HEADERS, want \"Name: value\"", line)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
