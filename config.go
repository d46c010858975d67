package sessioncore

import (
	"errors"
	"time"
)

// Config aggregates tunables for a Manager. Zero values are filled from
// defaultConfig by Builder; a fully zero Config is valid.
type Config struct {
	Refresh RefreshConfig
	Metrics MetricsConfig
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls proactive token refresh.
type RefreshConfig struct {
	// SafetyMargin is how long before access expiry the scheduler wakes
	// up, chosen so a refresh completes before true expiry under normal
	// network latency.
	SafetyMargin time.Duration

	// CallTimeout bounds a single backend refresh exchange.
	CallTimeout time.Duration

	// MaxRetries bounds scheduler retries after a transient backend
	// failure. Other failures are never retried automatically.
	MaxRetries int

	// RetryBackoff and RetryBackoffMax shape the retry delays;
	// RetryJitter spreads concurrently failing contexts apart.
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	RetryJitter     time.Duration
}

// MetricsConfig toggles the atomic counter block.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Refresh: RefreshConfig{
			SafetyMargin:    30 * time.Second,
			CallTimeout:     10 * time.Second,
			MaxRetries:      3,
			RetryBackoff:    2 * time.Second,
			RetryBackoffMax: 30 * time.Second,
			RetryJitter:     500 * time.Millisecond,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func (c *Config) fillDefaults() {
	def := defaultConfig()

	if c.Refresh.SafetyMargin == 0 {
		c.Refresh.SafetyMargin = def.Refresh.SafetyMargin
	}
	if c.Refresh.CallTimeout == 0 {
		c.Refresh.CallTimeout = def.Refresh.CallTimeout
	}
	if c.Refresh.RetryBackoff == 0 {
		c.Refresh.RetryBackoff = def.Refresh.RetryBackoff
	}
	if c.Refresh.RetryBackoffMax == 0 {
		c.Refresh.RetryBackoffMax = def.Refresh.RetryBackoffMax
	}
}

func (c Config) validate() error {
	if c.Refresh.SafetyMargin < 0 {
		return errors.New("refresh safety margin must not be negative")
	}
	if c.Refresh.CallTimeout <= 0 {
		return errors.New("refresh call timeout must be positive")
	}
	if c.Refresh.MaxRetries < 0 {
		return errors.New("refresh max retries must not be negative")
	}
	if c.Refresh.RetryBackoff <= 0 || c.Refresh.RetryBackoffMax < c.Refresh.RetryBackoff {
		return errors.New("refresh retry backoff misconfigured")
	}
	if c.Refresh.RetryJitter < 0 {
		return errors.New("refresh retry jitter must not be negative")
	}
	return nil
}
