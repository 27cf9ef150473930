package animachat

import (
	"fmt"
	"time"

	"github.com/pipe1800/anima-chat-sub000/hooks"
	"github.com/pipe1800/anima-chat-sub000/prompt"
	"github.com/pipe1800/anima-chat-sub000/summary"
)

// Option is a functional option for configuring an Engine.
type Option func(*internalConfig) error

// WithLogger sets the engine logger.
func WithLogger(logger Logger) Option {
	return func(c *internalConfig) error {
		if logger == nil {
			return fmt.Errorf("%w: logger must not be nil", ErrInvalidConfig)
		}
		c.logger = logger
		return nil
	}
}

// WithHooks sets the hook registry the engine notifies.
func WithHooks(registry *hooks.Registry) Option {
	return func(c *internalConfig) error {
		if registry == nil {
			return fmt.Errorf("%w: hook registry must not be nil", ErrInvalidConfig)
		}
		c.hooks = registry
		return nil
	}
}

// WithTokenBudget sets the estimated-token budget for the recency window.
func WithTokenBudget(budget int) Option {
	return func(c *internalConfig) error {
		if budget <= 0 {
			return fmt.Errorf("%w: token budget must be positive, got %d", ErrInvalidConfig, budget)
		}
		c.tokenBudget = budget
		return nil
	}
}

// WithMaxResponseTokens sets the maximum tokens for the main response.
func WithMaxResponseTokens(n int64) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return fmt.Errorf("%w: max response tokens must be positive, got %d", ErrInvalidConfig, n)
		}
		c.maxResponseTokens = n
		return nil
	}
}

// WithTurnTimeout bounds one turn end to end.
func WithTurnTimeout(d time.Duration) Option {
	return func(c *internalConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: turn timeout must be positive, got %s", ErrInvalidConfig, d)
		}
		c.turnTimeout = d
		return nil
	}
}

// WithChatMode sets the default response style for turns that do not specify
// one.
func WithChatMode(mode prompt.ChatMode) Option {
	return func(c *internalConfig) error {
		c.mode = mode
		return nil
	}
}

// WithSummaryConfig overrides the summarization configuration.
func WithSummaryConfig(cfg summary.Config) Option {
	return func(c *internalConfig) error {
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.summaryConfig = cfg
		return nil
	}
}

// WithExtractor sets the situational-context extractor dispatched after each
// finalized turn.
func WithExtractor(extractor Extractor) Option {
	return func(c *internalConfig) error {
		c.extractor = extractor
		return nil
	}
}

// WithCompleter overrides the summarization model client. Intended for tests
// and alternative providers.
func WithCompleter(completer summary.Completer) Option {
	return func(c *internalConfig) error {
		c.completer = completer
		return nil
	}
}

// WithResponder overrides the main response model client. Intended for tests
// and alternative providers.
func WithResponder(responder Responder) Option {
	return func(c *internalConfig) error {
		c.responder = responder
		return nil
	}
}
