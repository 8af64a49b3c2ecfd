// Package reconcile copies records that exist in only one of the two stores
// to the other, and audits how far the stores have drifted apart.
//
// Copies are additive: a record already present on the destination (by id)
// is never touched, which makes every pass idempotent. A record that fails to
// copy is logged and skipped. The consistency check compares record counts
// only; it does not diff individual records.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/dualstore/pkg/constants"
	"github.com/surrealdb/dualstore/pkg/logger"
	"github.com/surrealdb/dualstore/pkg/metrics"
	"github.com/surrealdb/dualstore/pkg/router"
	"github.com/surrealdb/dualstore/pkg/store"
)

type Direction string

const (
	ToSecondary Direction = "to_secondary"
	ToPrimary   Direction = "to_primary"
)

const secondaryUnavailable = "Secondary database not available"

// ItemError is one record that could not be copied.
type ItemError struct {
	Entity    string
	Direction Direction
	ID        any
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("sync %s %v %s: %v", e.Entity, e.ID, e.Direction, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

type ConsistencyReport struct {
	Entity          string    `json:"entity"`
	PrimaryCount    int64     `json:"primaryCount"`
	SecondaryCount  int64     `json:"secondaryCount"`
	Inconsistencies int64     `json:"inconsistencies"`
	InSync          bool      `json:"isConsistent"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
}

// Syncer reconciles one entity type.
type Syncer interface {
	Entity() string
	Label() string
	SyncToSecondary(ctx context.Context) (int, error)
	SyncToPrimary(ctx context.Context) (int, error)
	VerifyConsistency(ctx context.Context) (ConsistencyReport, error)
}

type options struct {
	label   string
	logger  logger.Logger
	metrics *metrics.Recorder
}

type Option func(*options)

// WithLabel sets the name used in sync messages, e.g. "Cart Items".
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(o *options) { o.metrics = m }
}

// Engine reconciles one entity type between a router's two adapters.
type Engine[T store.Entity[ID], ID comparable] struct {
	entity    string
	label     string
	primary   store.Adapter[T, ID]
	secondary store.Adapter[T, ID]
	enabled   func() bool
	logger    logger.Logger
	metrics   *metrics.Recorder
}

// NewEngine reuses the router's adapters and its secondary switch.
func NewEngine[T store.Entity[ID], ID comparable](r *router.Router[T, ID], opts ...Option) *Engine[T, ID] {
	o := options{label: r.Entity(), logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[T, ID]{
		entity:    r.Entity(),
		label:     o.label,
		primary:   r.Primary(),
		secondary: r.Secondary(),
		enabled:   r.IsSecondaryEnabled,
		logger:    o.logger,
		metrics:   o.metrics,
	}
}

func (e *Engine[T, ID]) Entity() string { return e.entity }

func (e *Engine[T, ID]) Label() string { return e.label }

func (e *Engine[T, ID]) available() bool {
	return e.secondary != nil && e.enabled()
}

// SyncToSecondary copies records missing from the secondary and returns how
// many were copied. It returns 0 without reading anything when the secondary
// is unavailable. An error means the primary could not be listed.
func (e *Engine[T, ID]) SyncToSecondary(ctx context.Context) (int, error) {
	if !e.available() {
		return 0, nil
	}
	return e.copyMissing(ctx, e.primary, e.secondary, ToSecondary)
}

// SyncToPrimary is SyncToSecondary in the other direction.
func (e *Engine[T, ID]) SyncToPrimary(ctx context.Context) (int, error) {
	if !e.available() {
		return 0, nil
	}
	return e.copyMissing(ctx, e.secondary, e.primary, ToPrimary)
}

func (e *Engine[T, ID]) copyMissing(ctx context.Context, from, to store.Adapter[T, ID], dir Direction) (int, error) {
	e.logger.Info("starting sync", "entity", e.entity, "direction", dir)

	items, err := from.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s from %s: %w", e.entity, dir.source(), err)
	}

	synced, failed := 0, 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			e.metrics.Synced(e.entity, string(dir), synced, failed)
			return synced, err
		}
		id := item.EntityID()
		exists, err := to.ExistsByID(ctx, id)
		if err == nil && exists {
			continue
		}
		if err == nil {
			_, err = to.Save(ctx, item)
		}
		if err != nil {
			failed++
			e.logger.Error("failed to sync record",
				"error", &ItemError{Entity: e.entity, Direction: dir, ID: id, Err: err})
			continue
		}
		synced++
	}

	e.metrics.Synced(e.entity, string(dir), synced, failed)
	e.logger.Info("sync finished", "entity", e.entity, "direction", dir, "synced", synced, "failed", failed)
	return synced, nil
}

// VerifyConsistency compares record counts. On failure the report carries
// Inconsistencies -1 and the error is also returned.
func (e *Engine[T, ID]) VerifyConsistency(ctx context.Context) (ConsistencyReport, error) {
	report := ConsistencyReport{Entity: e.entity, Timestamp: time.Now()}
	if !e.available() {
		report.Message = secondaryUnavailable
		return report, nil
	}

	primaryCount, err := e.primary.Count(ctx)
	if err == nil {
		report.PrimaryCount = primaryCount
		report.SecondaryCount, err = e.secondary.Count(ctx)
	}
	if err != nil {
		e.logger.Error("consistency check failed", "entity", e.entity, "error", err)
		report.PrimaryCount, report.SecondaryCount = 0, 0
		report.Inconsistencies = -1
		report.Message = "Consistency check failed: " + err.Error()
		return report, err
	}

	delta := report.PrimaryCount - report.SecondaryCount
	if delta < 0 {
		delta = -delta
	}
	report.Inconsistencies = delta
	report.InSync = delta == 0
	if report.InSync {
		report.Message = "Databases are consistent"
	} else {
		report.Message = fmt.Sprintf("Inconsistency detected: Primary has %d items, Secondary has %d items",
			report.PrimaryCount, report.SecondaryCount)
	}
	e.metrics.Consistency(e.entity, delta)
	e.logger.Info("consistency check completed", "entity", e.entity, "message", report.Message)
	return report, nil
}

// source names the store a direction reads from.
func (d Direction) source() constants.StoreSide {
	if d == ToPrimary {
		return constants.Secondary
	}
	return constants.Primary
}
