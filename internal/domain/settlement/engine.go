// Package settlement turns reported match results into atomic score
// changes and reverts the most recent one on request.
package settlement

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
)

// Engine settles and reverts matches against a Store.
type Engine struct {
	store  Store
	clock  clock.Clock
	newID  func() string
	logger logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock sets the clock stamping match and effect rows.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithIDGenerator sets the generator for new row ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		clock: clock.New(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Named("settlement")
	}
	return e
}

// observe records latency and, on failure, the failure code and a log line
// at a level matching the error kind.
func (e *Engine) observe(ctx context.Context, operation string, start time.Time, err error, fields ...logger.Field) {
	metrics.RecordSettlementLatency(operation, float64(time.Since(start).Microseconds())/1000)
	if err == nil {
		return
	}
	code := errs.Code(err)
	metrics.RecordSettlementFailure(operation, code)
	fields = append(fields, logger.String("code", code), logger.Error(err))
	if code == errs.CodeInternal || code == errs.CodeConflict {
		e.logger.Error(ctx, operation+" failed", fields...)
		return
	}
	e.logger.Warn(ctx, operation+" rejected", fields...)
}
