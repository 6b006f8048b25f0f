package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grade watch service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string

	JWTSecret string

	EncryptionKey []byte

	PortalBaseURL  string
	PortalTimeout  time.Duration
	PortalTimezone string

	// Daily window during which the portal is known to be offline.
	// Sweeps are skipped while the local hour is inside [start, end).
	MaintenanceStartHour int
	MaintenanceEndHour   int

	SweepSchedule         string
	SweepEnabledByDefault bool
	GroupCooldown         time.Duration
	FullSyncMaxAge        time.Duration
	UserSyncCooldown      time.Duration
	MaxPortalSessions     int
	RetryDelays           []time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADEWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GradeWatch API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("portal.base_url", "https://portal.aau.edu.et")
	v.SetDefault("portal.timeout", "30s")
	v.SetDefault("portal.timezone", "Africa/Addis_Ababa")
	v.SetDefault("maintenance.start_hour", 0)
	v.SetDefault("maintenance.end_hour", 6)
	v.SetDefault("sweep.schedule", "@every 1h")
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.group_cooldown", "30m")
	v.SetDefault("sweep.full_sync_max_age", "24h")
	v.SetDefault("sweep.max_sessions", 4)
	v.SetDefault("user_sync.cooldown", "30m")
	v.SetDefault("user_sync.retry_delays", "2m,5m,10m")

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		JWTSecret:             v.GetString("jwt.secret"),
		PortalBaseURL:         v.GetString("portal.base_url"),
		PortalTimezone:        v.GetString("portal.timezone"),
		MaintenanceStartHour:  v.GetInt("maintenance.start_hour"),
		MaintenanceEndHour:    v.GetInt("maintenance.end_hour"),
		SweepSchedule:         v.GetString("sweep.schedule"),
		SweepEnabledByDefault: v.GetBool("sweep.enabled"),
		MaxPortalSessions:     v.GetInt("sweep.max_sessions"),
	}

	var err error
	if cfg.PortalTimeout, err = parseDuration(v, "portal.timeout", "30s"); err != nil {
		return Config{}, err
	}
	if cfg.GroupCooldown, err = parseDuration(v, "sweep.group_cooldown", "30m"); err != nil {
		return Config{}, err
	}
	if cfg.FullSyncMaxAge, err = parseDuration(v, "sweep.full_sync_max_age", "24h"); err != nil {
		return Config{}, err
	}
	if cfg.UserSyncCooldown, err = parseDuration(v, "user_sync.cooldown", "30m"); err != nil {
		return Config{}, err
	}

	cfg.RetryDelays, err = parseDelayList(v.GetString("user_sync.retry_delays"))
	if err != nil {
		return Config{}, err
	}

	keyString := v.GetString("encryption.key")
	if keyString == "" {
		return Config{}, fmt.Errorf("encryption key must be provided")
	}
	cfg.EncryptionKey, err = base64.StdEncoding.DecodeString(keyString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid encryption key: %w", err)
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MaxPortalSessions <= 0 {
		cfg.MaxPortalSessions = 4
	}

	if cfg.MaintenanceStartHour < 0 || cfg.MaintenanceStartHour > 23 ||
		cfg.MaintenanceEndHour < 0 || cfg.MaintenanceEndHour > 24 {
		return Config{}, fmt.Errorf("maintenance hours out of range")
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		raw = fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return d, nil
}

func parseDelayList(raw string) ([]time.Duration, error) {
	parts := strings.Split(raw, ",")
	delays := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("invalid retry delay %q: %w", part, err)
		}
		delays = append(delays, d)
	}
	if len(delays) == 0 {
		return nil, fmt.Errorf("at least one retry delay is required")
	}
	return delays, nil
}
