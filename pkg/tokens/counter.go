package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kcaldas/tubechan/pkg/events"
	"github.com/kcaldas/tubechan/pkg/logging"
)

// DefaultTimeout bounds a single call to the counting service.
const DefaultTimeout = 10 * time.Second

var errNoCount = errors.New("token service returned no count")

// Option configures a Counter.
type Option func(*Counter)

// WithModel sets the model id passed to the service.
func WithModel(model string) Option {
	return func(c *Counter) {
		c.model = model
	}
}

// WithTimeout bounds each service call. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Counter) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger injects a custom logger implementation.
func WithLogger(logger logging.Logger) Option {
	return func(c *Counter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPublisher reports fallbacks on the event bus.
func WithPublisher(publisher events.Publisher) Option {
	return func(c *Counter) {
		if publisher != nil {
			c.publisher = publisher
		}
	}
}

// WithBackendName labels fallback reports.
func WithBackendName(name string) Option {
	return func(c *Counter) {
		c.backend = name
	}
}

// Counter measures transcripts through a Service and degrades to Estimate
// whenever the service fails. Count never returns an error.
type Counter struct {
	service   Service
	model     string
	backend   string
	timeout   time.Duration
	logger    logging.Logger
	publisher events.Publisher
	fallbacks atomic.Int64
}

// NewCounter wraps service. A nil service means estimate-only counting.
func NewCounter(service Service, opts ...Option) *Counter {
	c := &Counter{
		service:   service,
		backend:   "service",
		timeout:   DefaultTimeout,
		logger:    logging.NewComponentLogger("tokens"),
		publisher: &events.NoOpEventBus{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Count joins contents with Separator and counts them.
func (c *Counter) Count(ctx context.Context, contents ...string) int {
	total, _ := c.count(ctx, Join(contents))
	return total
}

// Backend names the service behind the counter.
func (c *Counter) Backend() string {
	if c.service == nil {
		return BackendEstimate
	}
	return c.backend
}

// Fallbacks returns how many times the estimate replaced a service answer.
func (c *Counter) Fallbacks() int64 {
	return c.fallbacks.Load()
}

// Pass starts a measurement pass. Once a pass has fallen back to the
// estimate it keeps estimating, so one decision sequence never mixes two
// accountings.
func (c *Counter) Pass() *Pass {
	return &Pass{counter: c}
}

func (c *Counter) count(ctx context.Context, text string) (int, bool) {
	if c.service == nil {
		return Estimate(text), true
	}

	total, err := c.callService(ctx, text)
	if err == nil {
		c.logger.Debug("token count from service", "backend", c.backend, "tokens", total)
		return total, true
	}

	estimate := Estimate(text)
	c.fallbacks.Add(1)
	c.logger.Warn("token service failed, using length estimate",
		"backend", c.backend, "error", err, "tokens", estimate)
	events.Emit(c.publisher, events.TokenFallbackEvent{
		Backend: c.backend,
		Reason:  err.Error(),
		Tokens:  estimate,
	})
	return estimate, false
}

func (c *Counter) callService(ctx context.Context, text string) (total int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("token service panicked: %v", r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.service.CountTokens(callCtx, c.model, text)
	if err != nil {
		return 0, err
	}
	if result == nil || result.TotalTokens < 0 {
		return 0, errNoCount
	}
	return result.TotalTokens, nil
}

// Pass is a counter scoped to one prepare/optimize/expand sequence.
type Pass struct {
	counter  *Counter
	degraded bool
}

// Count measures contents, estimating for the rest of the pass after the
// first service failure.
func (p *Pass) Count(ctx context.Context, contents ...string) int {
	text := Join(contents)
	if p.degraded {
		return Estimate(text)
	}
	total, ok := p.counter.count(ctx, text)
	if !ok {
		p.degraded = true
	}
	return total
}

// Degraded reports whether the pass switched to the estimate.
func (p *Pass) Degraded() bool {
	return p.degraded
}
