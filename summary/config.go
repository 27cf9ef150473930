package summary

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	// DefaultInterval is the number of AI turns between automatic summaries.
	DefaultInterval = 15

	// DefaultModel is the model used for summarization.
	// A faster/cheaper model than the main response model is recommended.
	DefaultModel = "claude-3-5-haiku-20241022"

	// DefaultMaxTokens is the maximum tokens for the summarization response.
	DefaultMaxTokens = 4096

	// DefaultTemperature keeps summarization output near-deterministic.
	DefaultTemperature = 0.2

	// DefaultLockGrace is how long a finished lock entry lingers so that
	// near-simultaneous re-triggers join the completed operation instead of
	// restarting it.
	DefaultLockGrace = 2 * time.Second

	// DefaultMaxAttempts is the number of generation attempts per trigger.
	DefaultMaxAttempts = 2

	// DefaultRetryBackoff is the fixed delay between generation attempts.
	DefaultRetryBackoff = time.Second

	// DefaultMinKeywords and DefaultMaxKeywords bound the keyword list the
	// model is asked for and the fallback extractor produces.
	DefaultMinKeywords = 5
	DefaultMaxKeywords = 10

	// DefaultMinSummaryWords is the minimum word count the prompt demands
	// for the prose body.
	DefaultMinSummaryWords = 200
)

// Config holds summarization configuration.
type Config struct {
	// Interval is the number of AI turns between automatic summaries.
	// Default: 15
	Interval int

	// Model is the model used for summarization.
	// Default: "claude-3-5-haiku-20241022"
	Model string

	// MaxTokens is the maximum tokens for the summarization response.
	// Default: 4096
	MaxTokens int

	// Temperature for the summarization call.
	// Default: 0.2
	Temperature float64

	// LockGrace is how long a completed lock entry lingers before removal.
	// Default: 2s
	LockGrace time.Duration

	// MaxAttempts is the number of generation attempts per trigger.
	// Default: 2
	MaxAttempts int

	// RetryBackoff is the fixed delay between generation attempts.
	// Default: 1s
	RetryBackoff time.Duration
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() *Config {
	return &Config{
		Interval:     DefaultInterval,
		Model:        DefaultModel,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultTemperature,
		LockGrace:    DefaultLockGrace,
		MaxAttempts:  DefaultMaxAttempts,
		RetryBackoff: DefaultRetryBackoff,
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidConfig, c.Interval)
	}

	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidConfig, c.MaxTokens)
	}

	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("%w: temperature must be between 0 and 1, got %f", ErrInvalidConfig, c.Temperature)
	}

	if c.LockGrace < 0 {
		return fmt.Errorf("%w: lock_grace must be non-negative, got %s", ErrInvalidConfig, c.LockGrace)
	}

	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts must be positive, got %d", ErrInvalidConfig, c.MaxAttempts)
	}

	if c.RetryBackoff < 0 {
		return fmt.Errorf("%w: retry_backoff must be non-negative, got %s", ErrInvalidConfig, c.RetryBackoff)
	}

	return nil
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.LockGrace == 0 {
		c.LockGrace = DefaultLockGrace
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
}
