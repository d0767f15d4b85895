package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envAdbPath         = "ADB_RESCUE_ADB_PATH"
	envDevconPath      = "ADB_RESCUE_DEVCON_PATH"
	envSerial          = "ADB_RESCUE_SERIAL"
	envPhaseTimeout    = "ADB_RESCUE_TIMEOUT"
	envPollInterval    = "ADB_RESCUE_POLL_INTERVAL"
	envLogLevel        = "ADB_RESCUE_LOG_LEVEL"
	envProfilePath     = "ADB_RESCUE_PROFILE"
	envWebhookURL      = "ADB_RESCUE_WEBHOOK_URL"
	envSlackWebhookURL = "ADB_RESCUE_SLACK_WEBHOOK_URL"
	envWatchInterval   = "ADB_RESCUE_WATCH_INTERVAL"
	envHealthPort      = "ADB_RESCUE_HEALTH_PORT"
	envMetricsPort     = "ADB_RESCUE_METRICS_PORT"
)

const (
	defaultAdbPath       = "adb"
	defaultDevconPath    = "devcon"
	defaultPhaseTimeout  = 30 * time.Second
	defaultPollInterval  = 2 * time.Second
	defaultWatchInterval = 30 * time.Second
)

// Config describes one invocation: tool paths, targeting, timing,
// notification endpoints, and watch-mode wiring. All values reach the
// core as plain parameters.
type Config struct {
	AdbPath         string
	DevconPath      string
	Serial          string
	PhaseTimeout    time.Duration
	PollInterval    time.Duration
	DryRun          bool
	LogLevel        string
	ProfilePath     string
	WebhookURL      string
	SlackWebhookURL string
	WatchInterval   time.Duration
	HealthPort      int
	MetricsPort     int
}

// Load reads configuration from environment variables and a local
// .env file if present. Existing environment variables take
// precedence over .env values; flags applied by the CLI take
// precedence over both.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AdbPath:       defaultAdbPath,
		DevconPath:    defaultDevconPath,
		PhaseTimeout:  defaultPhaseTimeout,
		PollInterval:  defaultPollInterval,
		WatchInterval: defaultWatchInterval,
	}

	if value, ok := lookupTrimmed(envAdbPath); ok {
		cfg.AdbPath = value
	}
	if value, ok := lookupTrimmed(envDevconPath); ok {
		cfg.DevconPath = value
	}
	if value, ok := lookupTrimmed(envSerial); ok {
		cfg.Serial = value
	}
	if value, ok := lookupTrimmed(envLogLevel); ok {
		cfg.LogLevel = value
	}
	if value, ok := lookupTrimmed(envProfilePath); ok {
		cfg.ProfilePath = value
	}
	if value, ok := lookupTrimmed(envWebhookURL); ok {
		cfg.WebhookURL = value
	}
	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		cfg.SlackWebhookURL = value
	}

	var err error
	if cfg.PhaseTimeout, err = durationEnv(envPhaseTimeout, cfg.PhaseTimeout); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = durationEnv(envPollInterval, cfg.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.WatchInterval, err = durationEnv(envWatchInterval, cfg.WatchInterval); err != nil {
		return Config{}, err
	}
	if cfg.HealthPort, err = portEnv(envHealthPort); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = portEnv(envMetricsPort); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the program assumes.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AdbPath) == "" {
		return errors.New("adb path must not be empty")
	}
	if strings.TrimSpace(c.DevconPath) == "" {
		return errors.New("devcon path must not be empty")
	}
	if c.PhaseTimeout <= 0 {
		return errors.New("phase timeout must be greater than zero")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}
	if c.WatchInterval <= 0 {
		return errors.New("watch interval must be greater than zero")
	}
	if c.HealthPort < 0 || c.HealthPort > 65535 {
		return fmt.Errorf("health port %d out of range", c.HealthPort)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("metrics port %d out of range", c.MetricsPort)
	}
	if err := validateURL(c.WebhookURL, "webhook url"); err != nil {
		return err
	}
	if err := validateURL(c.SlackWebhookURL, "slack webhook url"); err != nil {
		return err
	}
	return nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		// Bare numbers are read as seconds, matching the CLI flag.
		seconds, convErr := strconv.Atoi(value)
		if convErr != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		parsed = time.Duration(seconds) * time.Second
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", key)
	}
	return parsed, nil
}

func portEnv(key string) (int, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return port, nil
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}
	return err
}

func validateURL(value, name string) error {
	if value == "" {
		return nil
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
