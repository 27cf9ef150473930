package testutil

import (
	"context"
	"sync"
)

// ScriptedCompleter is a summary.Completer fake that returns queued
// responses in order. Once the script runs out it repeats the last entry.
type ScriptedCompleter struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

// NewScriptedCompleter creates a completer that replies with the given
// responses in order.
func NewScriptedCompleter(responses ...string) *ScriptedCompleter {
	return &ScriptedCompleter{responses: responses, errs: make([]error, len(responses))}
}

// QueueError appends a failing call to the script.
func (c *ScriptedCompleter) QueueError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, "")
	c.errs = append(c.errs, err)
}

// Queue appends a successful call to the script.
func (c *ScriptedCompleter) Queue(response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response)
	c.errs = append(c.errs, nil)
}

// Complete returns the next scripted response.
func (c *ScriptedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.calls
	c.calls++
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	if idx < 0 {
		return "", nil
	}
	return c.responses[idx], c.errs[idx]
}

// Calls returns how many times Complete ran.
func (c *ScriptedCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
