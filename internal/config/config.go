package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Config holds monitor-wide configuration, loaded once from the environment.
type Config struct {
	// Persistence backend: "memory" (default), "sqlite" or "datastore".
	StoreBackend string
	DatabasePath string // used when StoreBackend == "sqlite"
	ProjectID    string // used when StoreBackend == "datastore"

	// Timeouts (spec §5, §6)
	MonitorTimeout time.Duration // per-feed MonitorWorker timeout, default 600s
	SendTimeout    time.Duration // per-sub send timeout, default 510s

	// FeedStateTable (spec §4.B)
	MinimalInterval time.Duration // LOCKED auto-clear interval; <= 1m disables locking

	// PeriodicDriver (spec §4.H) tick cadence; the original runs this off an
	// external cron, so there's no source value to mirror — grounded on the
	// teacher's SchedulerConfig.CleanupInterval default instead.
	TickInterval time.Duration

	// UpdateDetector (spec §4.F)
	DefaultInterval    time.Duration // fallback feed.interval
	DeferWarnThreshold int           // log a warning every N consecutive errors
	DeferStopThreshold int           // deactivate the feed after N consecutive errors
	BackoffThreshold   int           // start back-off after N consecutive errors
	BackoffCapMinutes  int           // cap on the per-step back-off minutes
	BackoffMaxFactor   int           // cap on the back-off multiplier
	TTLFloorSeconds    int           // spec §4.F.1 RSSHub TTL floor, default 300s
	HashRetentionMin   int           // floor for max(2*len(entries), N), default 100

	// DeliveryFanout (spec §4.G)
	BlockedTolerance int // consecutive failures before unsub-all, default 5

	// StatsAggregator (spec §4.A)
	Tier1SummaryPeriod time.Duration // default 600s

	// Rate limiting (domain stack: golang.org/x/time/rate)
	RateLimitRequestsPerMinute int
	RateLimitBurstSize         int

	// Transport
	BotToken string

	// HTTP debug/metrics surface
	Port string
}

var globalConfig *Config

// ResetForTesting resets the global config singleton. Used only in tests.
func ResetForTesting() {
	globalConfig = nil
}

// Load loads configuration from environment variables, caching the result.
func Load() *Config {
	if globalConfig != nil {
		return globalConfig
	}

	globalConfig = &Config{
		StoreBackend: getEnvOrDefault("STORE_BACKEND", "memory"),
		DatabasePath: getEnvOrDefault("DATABASE_PATH", "./feedmonitor.db"),
		ProjectID:    os.Getenv("GOOGLE_CLOUD_PROJECT"),

		MonitorTimeout: parseDuration(os.Getenv("MONITOR_TIMEOUT"), 600*time.Second),
		SendTimeout:    parseDuration(os.Getenv("SEND_TIMEOUT"), 510*time.Second),

		MinimalInterval: parseDuration(os.Getenv("MINIMAL_INTERVAL"), 10*time.Minute),
		TickInterval:    parseDuration(os.Getenv("TICK_INTERVAL"), time.Minute),

		DefaultInterval:    parseDuration(os.Getenv("DEFAULT_INTERVAL"), 10*time.Minute),
		DeferWarnThreshold: parseInt(os.Getenv("DEFER_WARN_THRESHOLD"), 20),
		DeferStopThreshold: parseInt(os.Getenv("DEFER_STOP_THRESHOLD"), 100),
		BackoffThreshold:   parseInt(os.Getenv("BACKOFF_THRESHOLD"), 10),
		BackoffCapMinutes:  parseInt(os.Getenv("BACKOFF_CAP_MINUTES"), 15),
		BackoffMaxFactor:   parseInt(os.Getenv("BACKOFF_MAX_FACTOR"), 5),
		TTLFloorSeconds:    parseInt(os.Getenv("TTL_FLOOR_SECONDS"), 300),
		HashRetentionMin:   parseInt(os.Getenv("HASH_RETENTION_MIN"), 100),

		BlockedTolerance: parseInt(os.Getenv("BLOCKED_TOLERANCE"), 5),

		Tier1SummaryPeriod: parseDuration(os.Getenv("TIER1_SUMMARY_PERIOD"), 600*time.Second),

		RateLimitRequestsPerMinute: parseInt(os.Getenv("RATE_LIMIT_REQUESTS_PER_MINUTE"), 120),
		RateLimitBurstSize:         parseInt(os.Getenv("RATE_LIMIT_BURST_SIZE"), 30),

		BotToken: os.Getenv("BOT_TOKEN"),

		Port: getEnvOrDefault("PORT", "8080"),
	}

	return globalConfig
}

// Get returns the current configuration, loading it if needed.
func Get() *Config {
	if globalConfig == nil {
		return Load()
	}
	return globalConfig
}

// LoadBotToken resolves the Transport bot token, preferring an explicit
// BOT_TOKEN env var and falling back to Secret Manager when a project is
// configured.
func LoadBotToken(ctx context.Context, cfg *Config) (string, error) {
	if cfg.BotToken != "" {
		return cfg.BotToken, nil
	}
	if cfg.ProjectID == "" {
		return "", fmt.Errorf("BOT_TOKEN is not set and GOOGLE_CLOUD_PROJECT is not configured")
	}
	return getSecret(ctx, cfg.ProjectID, getEnvOrDefault("BOT_TOKEN_SECRET_NAME", "bot-token"))
}

func getSecret(ctx context.Context, projectID, secretName string) (string, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create secret manager client: %w", err)
	}
	defer func() { _ = client.Close() }()

	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretName),
	}

	result, err := client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}

	return string(result.Payload.Data), nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseInt parses an integer from string with a default value.
func parseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return defaultValue
}

// parseDuration parses a duration from string with a default value.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return defaultValue
}
