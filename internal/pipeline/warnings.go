package pipeline

import (
	"fmt"
	"sync"

	"lesion-report/internal/errs"
)

// Collector accumulates non-fatal warnings from every pipeline stage so
// they end up, in order, in the final document. Safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	warnings []errs.Warning
}

func NewCollector() *Collector {
	return &Collector{warnings: []errs.Warning{}}
}

// Add records a single warning for a stage.
func (c *Collector) Add(stage, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, errs.Warning{Stage: stage, Message: fmt.Sprintf(format, args...)})
}

// Extend appends warnings already produced by a stage.
func (c *Collector) Extend(ws []errs.Warning) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, ws...)
}

// Count returns the number of collected warnings.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.warnings)
}

// Strings renders the warnings in collection order.
func (c *Collector) Strings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.warnings))
	for i, w := range c.warnings {
		out[i] = w.String()
	}
	return out
}
