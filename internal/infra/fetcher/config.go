package fetcher

import (
	"fmt"
	"time"

	"newsintel/internal/pkg/config"
)

// Config controls how article pages are fetched for the excerpt fill.
//
// Security settings:
//   - DenyPrivateIPs blocks hosts resolving to loopback, private or link-local addresses
//   - MaxBodySize bounds memory used per page
//   - MaxRedirects bounds redirect chains; every hop is validated
type Config struct {
	Timeout        time.Duration
	MaxBodySize    int64
	MaxRedirects   int
	DenyPrivateIPs bool
	// MaxChars truncates the extracted text. Zero keeps the full text.
	MaxChars  int
	UserAgent string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		MaxBodySize:    10 * 1024 * 1024, // 10MB
		MaxRedirects:   5,
		DenyPrivateIPs: true,
		MaxChars:       4000,
		UserAgent:      "NewsIntelBot/1.0",
	}
}

// Validate checks that the limits are usable.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	minBodySize := int64(1024)              // 1KB
	maxBodySize := int64(100 * 1024 * 1024) // 100MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}
	if c.MaxChars < 0 {
		return fmt.Errorf("max chars must be non-negative, got %d", c.MaxChars)
	}
	return nil
}

// LoadConfigFromEnv reads the EXCERPT_FETCH_* variables. Invalid values
// fall back to the defaults and are recorded in m.
//
//   - EXCERPT_FETCH_TIMEOUT: duration, 1s to 2m (default: 10s)
//   - EXCERPT_FETCH_MAX_BODY_SIZE: bytes, 1KB to 100MB (default: 10485760)
//   - EXCERPT_FETCH_MAX_REDIRECTS: 0 to 10 (default: 5)
//   - EXCERPT_FETCH_DENY_PRIVATE_IPS: bool (default: true)
//   - EXCERPT_FETCH_MAX_CHARS: 0 to 100000 (default: 4000)
func LoadConfigFromEnv(m *config.ConfigMetrics) Config {
	cfg := DefaultConfig()
	cfg.Timeout = config.LoadEnvDuration("EXCERPT_FETCH_TIMEOUT", cfg.Timeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, 2*time.Minute)
	}).Resolve("excerpt_fetch_timeout", m)
	cfg.MaxBodySize = int64(config.LoadEnvInt("EXCERPT_FETCH_MAX_BODY_SIZE", int(cfg.MaxBodySize), func(v int) error {
		return config.ValidateIntRange(v, 1024, 100*1024*1024)
	}).Resolve("excerpt_fetch_max_body_size", m))
	cfg.MaxRedirects = config.LoadEnvInt("EXCERPT_FETCH_MAX_REDIRECTS", cfg.MaxRedirects, func(v int) error {
		return config.ValidateIntRange(v, 0, 10)
	}).Resolve("excerpt_fetch_max_redirects", m)
	cfg.DenyPrivateIPs = config.LoadEnvBool("EXCERPT_FETCH_DENY_PRIVATE_IPS", cfg.DenyPrivateIPs).
		Resolve("excerpt_fetch_deny_private_ips", m)
	cfg.MaxChars = config.LoadEnvInt("EXCERPT_FETCH_MAX_CHARS", cfg.MaxChars, func(v int) error {
		return config.ValidateIntRange(v, 0, 100000)
	}).Resolve("excerpt_fetch_max_chars", m)
	return cfg
}
