package ui

// Default configuration values.
const (
	DefaultPageSize = 25
)

// Config holds UI package configuration.
type Config struct {
	// BasePath is the URL prefix where the UI is mounted.
	// For example, if mounted at "/admin/", set BasePath to "/admin".
	// Defaults to empty string (root mount).
	BasePath string

	// PageSize caps list responses. Defaults to 25.
	PageSize int

	// Logger for structured logging. If nil, logging is disabled.
	Logger Logger
}

// Logger interface for structured logging.
// Compatible with animachat.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		PageSize: DefaultPageSize,
	}
}

// applyDefaults fills in default values for zero-valued fields.
func (c *Config) applyDefaults() {
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	if c.PageSize < 1 {
		return ErrInvalidConfig
	}
	return nil
}
