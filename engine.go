package animachat

import (
	"fmt"

	"github.com/pipe1800/anima-chat-sub000/driver"
	"github.com/pipe1800/anima-chat-sub000/hooks"
	"github.com/pipe1800/anima-chat-sub000/storage"
	"github.com/pipe1800/anima-chat-sub000/summary"
)

// Engine runs chat turns against one database. It is safe for concurrent use;
// turns for different conversations run fully in parallel and concurrent
// turns on one conversation converge on a single summarization.
type Engine[TTx any] struct {
	driver driver.Driver[TTx]
	store  storage.Store
	config *internalConfig

	locks     *summary.LockManager
	trigger   *summary.TriggerEvaluator
	generator *summary.Generator
	responder Responder
	hooks     *hooks.Registry
	logger    Logger
	extractor Extractor
}

// New creates an Engine with the given driver, configuration, and options.
func New[TTx any](drv driver.Driver[TTx], cfg Config, opts ...Option) (*Engine[TTx], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if drv == nil || !drv.PoolIsSet() {
		return nil, fmt.Errorf("%w: database driver with a configured pool is required", ErrInvalidConfig)
	}

	internal := newInternalConfig(cfg)
	for _, opt := range opts {
		if err := opt(internal); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	summaryCfg := internal.summaryConfig
	summaryCfg.ApplyDefaults()
	if err := summaryCfg.Validate(); err != nil {
		return nil, err
	}
	internal.summaryConfig = summaryCfg

	completer := internal.completer
	if completer == nil {
		completer = summary.NewAnthropicCompleter(cfg.Client, summaryCfg.Model, summaryCfg.MaxTokens, summaryCfg.Temperature)
	}

	responder := internal.responder
	if responder == nil {
		responder = newAnthropicResponder(cfg.Client)
	}

	locks := summary.NewLockManager(summaryCfg.LockGrace)

	return &Engine[TTx]{
		driver:    drv,
		store:     drv.GetStore(),
		config:    internal,
		locks:     locks,
		trigger:   summary.NewTriggerEvaluator(summaryCfg.Interval, locks),
		generator: summary.NewGenerator(completer, internal.logger),
		responder: responder,
		hooks:     internal.hooks,
		logger:    internal.logger,
		extractor: internal.extractor,
	}, nil
}

// Store returns the engine's storage layer, for callers that need direct
// read access (e.g. the admin UI).
func (e *Engine[TTx]) Store() storage.Store {
	return e.store
}

// Hooks returns the engine's hook registry.
func (e *Engine[TTx]) Hooks() *hooks.Registry {
	return e.hooks
}
