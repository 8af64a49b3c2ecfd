// Package router fans writes out to a primary and a secondary store and
// routes each read to exactly one of them.
//
// A [Router] wraps one primary [store.Adapter] and an optional secondary one
// for a single entity type. Reads go to the secondary only when it is enabled
// and the "use-secondary" flag is on for the caller; a failed secondary read
// falls back to the primary. Writes are always attempted on both stores and
// the flag decides whose result the caller sees. Only a write that no
// applicable store completed surfaces as an error, a [DualWriteFailure].
//
// Adapter panics are recovered and every adapter call can be bounded by a
// timeout, so a hung secondary cannot hold a caller forever.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/surrealdb/dualstore/pkg/constants"
	"github.com/surrealdb/dualstore/pkg/flags"
	"github.com/surrealdb/dualstore/pkg/logger"
	"github.com/surrealdb/dualstore/pkg/metrics"
	"github.com/surrealdb/dualstore/pkg/store"
)

const (
	kindRead  = "read"
	kindWrite = "write"
)

type options struct {
	enabled    bool
	timeout    time.Duration
	concurrent bool
	logger     logger.Logger
	metrics    *metrics.Recorder
}

type Option func(*options)

// WithEnabled sets the deployment-level secondary switch. Defaults to true.
func WithEnabled(enabled bool) Option {
	return func(o *options) { o.enabled = enabled }
}

// WithTimeout bounds every adapter call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithConcurrentWrites runs the two sides of a write in parallel.
func WithConcurrentWrites(concurrent bool) Option {
	return func(o *options) { o.concurrent = concurrent }
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(o *options) { o.metrics = m }
}

type Router[T any, ID comparable] struct {
	entity     string
	primary    store.Adapter[T, ID]
	secondary  store.Adapter[T, ID]
	flags      flags.Source
	enabled    atomic.Bool
	timeout    time.Duration
	concurrent bool
	logger     logger.Logger
	metrics    *metrics.Recorder
}

// New builds a router for one entity type. secondary may be nil when no
// secondary store is configured; pass an untyped nil, not a nil pointer.
// A nil source routes every read to the primary.
func New[T any, ID comparable](entity string, primary, secondary store.Adapter[T, ID], source flags.Source, opts ...Option) *Router[T, ID] {
	o := options{enabled: true, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	r := &Router[T, ID]{
		entity:     entity,
		primary:    primary,
		secondary:  secondary,
		flags:      source,
		timeout:    o.timeout,
		concurrent: o.concurrent,
		logger:     o.logger,
		metrics:    o.metrics,
	}
	r.enabled.Store(o.enabled)
	return r
}

func (r *Router[T, ID]) Entity() string { return r.entity }

func (r *Router[T, ID]) Primary() store.Adapter[T, ID] { return r.primary }

// Secondary returns the secondary adapter, or nil when none is configured.
func (r *Router[T, ID]) Secondary() store.Adapter[T, ID] { return r.secondary }

// IsSecondaryEnabled is true iff a secondary is configured and switched on.
func (r *Router[T, ID]) IsSecondaryEnabled() bool {
	return r.secondary != nil && r.enabled.Load()
}

// SetSecondaryEnabled flips the deployment switch.
func (r *Router[T, ID]) SetSecondaryEnabled(enabled bool) {
	r.enabled.Store(enabled)
}

// ShouldUseSecondaryForRead evaluates the routing flag for callerID. It is
// false whenever the secondary is unavailable, and a failing flag source is
// logged and treated as false.
func (r *Router[T, ID]) ShouldUseSecondaryForRead(ctx context.Context, callerID string) bool {
	if !r.IsSecondaryEnabled() || r.flags == nil {
		return false
	}
	use, err := r.lookupFlag(ctx, callerID)
	if err != nil {
		r.metrics.FlagError()
		r.logger.Warn("routing flag lookup failed, using primary",
			"entity", r.entity,
			"error", &FlagSourceError{Key: constants.FlagUseSecondary, CallerID: callerID, Err: err})
		return false
	}
	return use
}

func (r *Router[T, ID]) lookupFlag(ctx context.Context, callerID string) (use bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			use, err = false, fmt.Errorf("flag source panic: %v", p)
		}
	}()
	return r.flags.GetBoolean(ctx, callerID, constants.FlagUseSecondary, false)
}

// Read routes a read returning T. See the package-level Read for the rules.
func (r *Router[T, ID]) Read(ctx context.Context, callerID string, primaryOp, secondaryOp func(context.Context) (T, error)) (T, error) {
	return Read[T](ctx, r, callerID, primaryOp, secondaryOp)
}

// Write fans out a write returning T. See the package-level Write.
func (r *Router[T, ID]) Write(ctx context.Context, callerID string, primaryOp, secondaryOp func(context.Context) (T, error)) (T, error) {
	return Write[T](ctx, r, callerID, primaryOp, secondaryOp)
}

// WriteSystem is Write on behalf of the synthetic "system" caller.
func (r *Router[T, ID]) WriteSystem(ctx context.Context, primaryOp, secondaryOp func(context.Context) (T, error)) (T, error) {
	return Write[T](ctx, r, constants.SystemCaller, primaryOp, secondaryOp)
}

// Read executes exactly one logical read.
//
// Without an enabled secondary, or when the flag is off for callerID, only
// primaryOp runs and its result and error are returned unchanged, except that
// a timeout or panic becomes an *AdapterError. When the flag is on,
// secondaryOp runs first; if it fails the failure is logged as an
// *AdapterError and primaryOp serves the call instead.
func Read[R any, T any, ID comparable](ctx context.Context, r *Router[T, ID], callerID string, primaryOp, secondaryOp func(context.Context) (R, error)) (R, error) {
	if r.ShouldUseSecondaryForRead(ctx, callerID) {
		v, err := call(ctx, r, constants.Secondary, kindRead, secondaryOp)
		if err == nil {
			return v, nil
		}
		err = adapterError(r, constants.Secondary, kindRead, err)
		r.metrics.ReadFallback(r.entity)
		r.logger.Warn("secondary read failed, falling back to primary",
			"entity", r.entity, "caller", callerID, "error", err)
	}
	return call(ctx, r, constants.Primary, kindRead, primaryOp)
}

// Write attempts primaryOp and, when the secondary is enabled, secondaryOp;
// neither side's failure stops the other. The result is chosen as follows:
// the secondary value if the flag is on for callerID and the secondary
// succeeded, otherwise the primary value if the primary succeeded, otherwise
// a *DualWriteFailure carrying every cause, each as an *AdapterError.
func Write[R any, T any, ID comparable](ctx context.Context, r *Router[T, ID], callerID string, primaryOp, secondaryOp func(context.Context) (R, error)) (R, error) {
	dual := r.IsSecondaryEnabled()

	var (
		primaryVal, secondaryVal R
		primaryErr, secondaryErr error
	)
	switch {
	case dual && r.concurrent:
		var g errgroup.Group
		g.Go(func() error {
			primaryVal, primaryErr = call(ctx, r, constants.Primary, kindWrite, primaryOp)
			return nil
		})
		g.Go(func() error {
			secondaryVal, secondaryErr = call(ctx, r, constants.Secondary, kindWrite, secondaryOp)
			return nil
		})
		_ = g.Wait()
	case dual:
		primaryVal, primaryErr = call(ctx, r, constants.Primary, kindWrite, primaryOp)
		secondaryVal, secondaryErr = call(ctx, r, constants.Secondary, kindWrite, secondaryOp)
	default:
		primaryVal, primaryErr = call(ctx, r, constants.Primary, kindWrite, primaryOp)
	}

	primaryErr = adapterError(r, constants.Primary, kindWrite, primaryErr)
	secondaryErr = adapterError(r, constants.Secondary, kindWrite, secondaryErr)
	useSecondary := dual && r.ShouldUseSecondaryForRead(ctx, callerID)

	if primaryErr != nil {
		r.logger.Warn("primary write failed", "entity", r.entity, "caller", callerID, "error", primaryErr)
	}
	if dual && secondaryErr != nil {
		r.logger.Warn("secondary write failed", "entity", r.entity, "caller", callerID, "error", secondaryErr)
	}

	if useSecondary && secondaryErr == nil {
		return secondaryVal, nil
	}
	if primaryErr == nil {
		return primaryVal, nil
	}

	failure := &DualWriteFailure{Entity: r.entity, Primary: primaryErr}
	if dual {
		failure.Secondary = secondaryErr
	}
	r.metrics.WriteFailure(r.entity)
	r.logger.Error("write failed on every applicable store", "entity", r.entity, "caller", callerID, "error", failure)
	var zero R
	return zero, failure
}

// call runs one adapter operation with the router's timeout, converting
// panics and timeouts into *AdapterError and recording metrics. Other errors
// come back as the adapter returned them.
func call[R any, T any, ID comparable](ctx context.Context, r *Router[T, ID], side constants.StoreSide, kind string, op func(context.Context) (R, error)) (R, error) {
	started := time.Now()
	v, err := invoke(ctx, r.timeout, op)
	if err != nil && (errors.Is(err, constants.ErrAdapterTimeout) || isPanic(err)) {
		err = adapterError(r, side, kind, err)
	}
	r.metrics.ObserveOperation(r.entity, string(side), kind, started, err)
	return v, err
}

// adapterError tags err with the store and operation it came from. Nil and
// errors that already carry an *AdapterError pass through.
func adapterError[T any, ID comparable](r *Router[T, ID], side constants.StoreSide, kind string, err error) error {
	var adapterErr *AdapterError
	if err == nil || errors.As(err, &adapterErr) {
		return err
	}
	return &AdapterError{Entity: r.entity, Side: side, Kind: kind, Err: err}
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("adapter panic: %v", p.value)
}

func isPanic(err error) bool {
	var p *panicError
	return errors.As(err, &p)
}

func protect[R any](ctx context.Context, op func(context.Context) (R, error)) (v R, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero R
			v, err = zero, &panicError{value: p}
		}
	}()
	return op(ctx)
}

type outcome[R any] struct {
	val R
	err error
}

func invoke[R any](ctx context.Context, timeout time.Duration, op func(context.Context) (R, error)) (R, error) {
	if timeout <= 0 {
		return protect(ctx, op)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[R], 1)
	go func() {
		v, err := protect(ctx, op)
		done <- outcome[R]{val: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out.val, fmt.Errorf("%w after %s: %w", constants.ErrAdapterTimeout, timeout, out.err)
		}
		return out.val, out.err
	case <-ctx.Done():
		var zero R
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", constants.ErrAdapterTimeout, timeout)
		}
		return zero, ctx.Err()
	}
}
