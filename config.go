package animachat

import (
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pipe1800/anima-chat-sub000/hooks"
	"github.com/pipe1800/anima-chat-sub000/prompt"
	"github.com/pipe1800/anima-chat-sub000/summary"
)

// Default configuration values.
const (
	// DefaultTokenBudget is the estimated-token budget for the recency window.
	DefaultTokenBudget = 3000

	// DefaultMaxResponseTokens is the maximum tokens for the main response.
	DefaultMaxResponseTokens = 2048

	// DefaultTurnTimeout bounds one turn end to end. A hung provider call
	// fails the turn instead of stalling it forever.
	DefaultTurnTimeout = 120 * time.Second
)

// Config holds the required configuration for an Engine.
// The database driver is passed separately to New() to enable type inference.
//
// Example:
//
//	drv := pgxv5.New(pool)
//	engine, _ := animachat.New(drv, animachat.Config{
//	    Client: &client,
//	    Model:  "claude-sonnet-4-5-20250929",
//	})
type Config struct {
	// Client is the Anthropic API client (required)
	Client *anthropic.Client

	// Model is the model ID used for responses when the user's plan does not
	// pin one (required)
	Model string
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Client == nil {
		return fmt.Errorf("%w: Anthropic client is required", ErrInvalidConfig)
	}

	if c.Model == "" {
		return fmt.Errorf("%w: Model is required", ErrInvalidConfig)
	}

	return nil
}

// internalConfig holds the full engine configuration including optional
// parameters set through Options.
type internalConfig struct {
	// Required from Config
	client *anthropic.Client
	model  string

	// Optional parameters
	tokenBudget       int
	maxResponseTokens int64
	turnTimeout       time.Duration
	mode              prompt.ChatMode
	summaryConfig     summary.Config
	logger            Logger
	hooks             *hooks.Registry
	extractor         Extractor
	completer         summary.Completer
	responder         Responder
}

// newInternalConfig creates an internalConfig with defaults from Config.
func newInternalConfig(cfg Config) *internalConfig {
	return &internalConfig{
		client:            cfg.Client,
		model:             cfg.Model,
		tokenBudget:       DefaultTokenBudget,
		maxResponseTokens: DefaultMaxResponseTokens,
		turnTimeout:       DefaultTurnTimeout,
		mode:              prompt.ChatModeNarrative,
		summaryConfig:     *summary.DefaultConfig(),
		logger:            noopLogger{},
		hooks:             hooks.NewRegistry(),
	}
}
