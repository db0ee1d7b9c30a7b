package worker

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"newsintel/internal/pkg/config"
)

// WorkerConfig holds the scheduling parameters of the worker.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// Invalid values never stop the worker: each falls back to its default
// with a warning and a fallback metric.
type WorkerConfig struct {
	// FetchSchedule is the fetch cadence: a standard cron expression or a
	// descriptor such as "@every 5m".
	// Default: "@every 5m"
	FetchSchedule string

	// CleanupSchedule is the retention sweep cadence, same syntax.
	// Default: "@every 24h"
	CleanupSchedule string

	// RetentionDays is the age after which dated articles are deleted.
	// Range: 0-3650
	// Default: 30
	RetentionDays int

	// CycleTimeout bounds a single fetch cycle. The cycle is not cancelled
	// by shutdown, only by this timeout.
	// Range: 1m-4h
	// Default: 10 minutes
	CycleTimeout time.Duration

	// ErrorBackoff is the pause after a failed fetch cycle.
	// Default: 10 seconds
	ErrorBackoff time.Duration

	// HealthPort is the port number for the health check HTTP server.
	// Range: 1024-65535 (avoid privileged ports)
	// Default: 9091
	HealthPort int

	// HealthStaleAfter makes /health/ready fail when no fetch cycle has
	// succeeded for this long. Zero disables the check.
	// Default: 0
	HealthStaleAfter time.Duration
}

// DefaultConfig returns a WorkerConfig with the default cadences.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		FetchSchedule:   "@every 5m",
		CleanupSchedule: "@every 24h",
		RetentionDays:   30,
		CycleTimeout:    10 * time.Minute,
		ErrorBackoff:    10 * time.Second,
		HealthPort:      9091,
	}
}

// Validate checks every field and returns all failures together.
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateCronSchedule(c.FetchSchedule); err != nil {
		errors = append(errors, fmt.Errorf("fetch schedule: %w", err))
	}
	if err := config.ValidateCronSchedule(c.CleanupSchedule); err != nil {
		errors = append(errors, fmt.Errorf("cleanup schedule: %w", err))
	}
	if err := config.ValidateIntRange(c.RetentionDays, 0, 3650); err != nil {
		errors = append(errors, fmt.Errorf("retention days: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.CycleTimeout); err != nil {
		errors = append(errors, fmt.Errorf("cycle timeout: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.ErrorBackoff); err != nil {
		errors = append(errors, fmt.Errorf("error backoff: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}
	return nil
}

// LoadConfigFromEnv loads worker configuration from environment variables
// with validation and automatic fallback to default values on failure.
//
// Environment variables:
//   - FETCH_SCHEDULE: cron expression or descriptor (default: "@every 5m")
//   - FETCH_INTERVAL_MINUTES: used when FETCH_SCHEDULE is unset
//   - CLEANUP_SCHEDULE: cron expression or descriptor (default: "@every 24h")
//   - CLEANUP_INTERVAL_HOURS: used when CLEANUP_SCHEDULE is unset
//   - NEWS_RETENTION_DAYS: integer 0-3650 (default: 30)
//   - CYCLE_TIMEOUT: duration 1m-4h (default: 10m)
//   - WORKER_HEALTH_PORT: integer 1024-65535 (default: 9091)
//   - WORKER_HEALTH_STALE_AFTER: duration, 0 disables (default: 0)
//
// The returned error is always nil (fail-open strategy).
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	var cm *config.ConfigMetrics
	if metrics != nil {
		cm = metrics.ConfigMetrics
	}

	cfg.FetchSchedule = loadSchedule(logger, cm, "fetch_schedule",
		"FETCH_SCHEDULE", "FETCH_INTERVAL_MINUTES", time.Minute, cfg.FetchSchedule)
	cfg.CleanupSchedule = loadSchedule(logger, cm, "cleanup_schedule",
		"CLEANUP_SCHEDULE", "CLEANUP_INTERVAL_HOURS", time.Hour, cfg.CleanupSchedule)

	cfg.RetentionDays = config.LoadEnvInt("NEWS_RETENTION_DAYS", cfg.RetentionDays, func(v int) error {
		return config.ValidateIntRange(v, 0, 3650)
	}).ResolveTo(logger, "retention_days", cm)

	cfg.CycleTimeout = config.LoadEnvDuration("CYCLE_TIMEOUT", cfg.CycleTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Minute, 4*time.Hour)
	}).ResolveTo(logger, "cycle_timeout", cm)

	cfg.HealthPort = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	}).ResolveTo(logger, "health_port", cm)

	cfg.HealthStaleAfter = config.LoadEnvDuration("WORKER_HEALTH_STALE_AFTER", cfg.HealthStaleAfter, func(d time.Duration) error {
		if d < 0 {
			return fmt.Errorf("must not be negative")
		}
		return nil
	}).ResolveTo(logger, "health_stale_after", cm)

	if cm != nil {
		cm.RecordLoadTimestamp()
	}
	return &cfg, nil
}

// loadSchedule reads a cadence from scheduleKey, or failing that from an
// integer interval in intervalKey expressed in unit.
func loadSchedule(logger *slog.Logger, cm *config.ConfigMetrics, field, scheduleKey, intervalKey string, unit time.Duration, def string) string {
	if os.Getenv(scheduleKey) == "" {
		if raw := os.Getenv(intervalKey); raw != "" {
			n, err := strconv.Atoi(raw)
			if err == nil && n > 0 {
				return fmt.Sprintf("@every %s", time.Duration(n)*unit)
			}
			config.LoadResult[string]{
				Value:           def,
				Warnings:        []string{fmt.Sprintf("Invalid %s='%s': must be a positive integer, falling back to default '%s'", intervalKey, raw, def)},
				FallbackApplied: true,
			}.ResolveTo(logger, field, cm)
			return def
		}
	}
	return config.LoadEnvWithFallback(scheduleKey, def, config.ValidateCronSchedule).
		ResolveTo(logger, field, cm)
}
