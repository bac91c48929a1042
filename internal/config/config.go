package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Monitor   MonitorConfig
	Platforms []PlatformConfig
	Sheets    SheetsConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Notify    NotifyConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// MonitorConfig holds polling cadence and comparison thresholds.
type MonitorConfig struct {
	PollIntervalHours      int
	StalenessHours         int
	PriceDropThresholdPct  float64
	RestockLeadDays        int
	ExpiryWarningDays      int
	ListCronSchedule       string
	CycleTimeoutMinutes    int
	MaxAttempts            int
	PerPlatformConcurrency int
	MaxConcurrency         int
	SearchLimit            int
}

// PlatformConfig describes one storefront adapter registration.
type PlatformConfig struct {
	ID      string
	BaseURL string
	APIKey  string
}

// SheetsConfig contains configuration required to reach the inventory
// workbook on Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// RedisConfig holds settings for the optional notification dedup cache.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// NotifyConfig holds the outbound notification sink settings.
type NotifyConfig struct {
	WebhookURL string
	AuthToken  string
}

// StalenessThreshold returns the maximum observation age eligible for a
// comparison.
func (m MonitorConfig) StalenessThreshold() time.Duration {
	return time.Duration(m.StalenessHours) * time.Hour
}

// RestockLeadTime returns the forecast window that triggers restocking.
func (m MonitorConfig) RestockLeadTime() time.Duration {
	return time.Duration(m.RestockLeadDays) * 24 * time.Hour
}

// ExpiryWarning returns the window in which expiring items join the restock
// set.
func (m MonitorConfig) ExpiryWarning() time.Duration {
	return time.Duration(m.ExpiryWarningDays) * 24 * time.Hour
}

// CycleTimeout returns the hard deadline for one polling cycle.
func (m MonitorConfig) CycleTimeout() time.Duration {
	return time.Duration(m.CycleTimeoutMinutes) * time.Minute
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	platforms, err := parsePlatforms(os.Getenv("PLATFORM_SOURCES"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Monitor: MonitorConfig{
			PollIntervalHours:      getenvInt("POLL_INTERVAL_HOURS", 6),
			StalenessHours:         getenvInt("STALENESS_HOURS", 24),
			PriceDropThresholdPct:  getenvFloat("PRICE_DROP_THRESHOLD_PCT", 5),
			RestockLeadDays:        getenvInt("RESTOCK_LEAD_DAYS", 3),
			ExpiryWarningDays:      getenvInt("EXPIRY_WARNING_DAYS", 3),
			ListCronSchedule:       getenvWithDefault("LIST_CRON_SCHEDULE", "0 10 * * 0"),
			CycleTimeoutMinutes:    getenvInt("CYCLE_TIMEOUT_MINUTES", 10),
			MaxAttempts:            getenvInt("POLL_MAX_ATTEMPTS", 3),
			PerPlatformConcurrency: getenvInt("PER_PLATFORM_CONCURRENCY", 2),
			MaxConcurrency:         getenvInt("MAX_CONCURRENCY", 8),
			SearchLimit:            getenvInt("SEARCH_LIMIT", 5),
		},
		Platforms: platforms,
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_INVENTORY_ID"),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "pantrywatch"),
		},
		Redis: RedisConfig{
			Enabled:  os.Getenv("REDIS_ADDR") != "",
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Notify: NotifyConfig{
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
			AuthToken:  os.Getenv("NOTIFY_AUTH_TOKEN"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated and the
// recognized options hold sane values.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.Monitor.PollIntervalHours <= 0:
		return errors.New("POLL_INTERVAL_HOURS must be positive")
	case c.Monitor.StalenessHours <= 0:
		return errors.New("STALENESS_HOURS must be positive")
	case c.Monitor.PriceDropThresholdPct <= 0 || c.Monitor.PriceDropThresholdPct >= 100:
		return errors.New("PRICE_DROP_THRESHOLD_PCT must be between 0 and 100")
	case c.Monitor.RestockLeadDays < 0:
		return errors.New("RESTOCK_LEAD_DAYS must not be negative")
	case c.Monitor.MaxAttempts <= 0:
		return errors.New("POLL_MAX_ATTEMPTS must be positive")
	case c.Monitor.PerPlatformConcurrency <= 0:
		return errors.New("PER_PLATFORM_CONCURRENCY must be positive")
	case c.Monitor.MaxConcurrency < c.Monitor.PerPlatformConcurrency:
		return errors.New("MAX_CONCURRENCY must be at least PER_PLATFORM_CONCURRENCY")
	}

	if c.Monitor.ListCronSchedule == "" {
		return errors.New("LIST_CRON_SCHEDULE must be provided")
	}

	if len(c.Platforms) == 0 {
		return errors.New("PLATFORM_SOURCES must list at least one platform")
	}

	if c.Sheets.CredentialsPath == "" {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
	}

	if c.Sheets.SpreadsheetID == "" {
		return errors.New("GOOGLE_SHEET_INVENTORY_ID must be provided")
	}

	if c.MongoDB.URI == "" {
		return errors.New("MONGODB_URI must be provided")
	}

	return nil
}

// parsePlatforms parses PLATFORM_SOURCES, a comma separated list of
// id=base_url pairs, optionally id=base_url|api_key.
func parsePlatforms(value string) ([]PlatformConfig, error) {
	if value == "" {
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []PlatformConfig

	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, rest, ok := strings.Cut(entry, "=")
		if !ok || id == "" || rest == "" {
			return nil, fmt.Errorf("invalid PLATFORM_SOURCES entry %q", entry)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate platform id %q in PLATFORM_SOURCES", id)
		}
		seen[id] = true

		baseURL, apiKey, _ := strings.Cut(rest, "|")
		out = append(out, PlatformConfig{ID: id, BaseURL: baseURL, APIKey: apiKey})
	}

	return out, nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return fallback
}
