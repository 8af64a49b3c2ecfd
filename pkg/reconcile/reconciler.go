package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/surrealdb/dualstore/pkg/constants"
	"github.com/surrealdb/dualstore/pkg/logger"
)

type SyncResult struct {
	PrimaryToSecondary int          `json:"primaryToSecondaryCount"`
	SecondaryToPrimary int          `json:"secondaryToPrimaryCount"`
	Success            bool         `json:"success"`
	Message            string       `json:"message"`
	Timestamp          time.Time    `json:"timestamp"`
	Entities           []EntitySync `json:"entities,omitempty"`
}

type EntitySync struct {
	Entity             string `json:"entity"`
	PrimaryToSecondary int    `json:"primaryToSecondaryCount"`
	SecondaryToPrimary int    `json:"secondaryToPrimaryCount"`
}

// Reconciler runs its syncers in registration order. Both directions of one
// entity run concurrently; the next entity starts only after both finish, so
// parents can be registered before the records that reference them.
type Reconciler struct {
	syncers []Syncer
	enabled func() bool
	logger  logger.Logger

	mu        sync.Mutex
	last      *SyncResult
	syncCount int
}

func New(enabled func() bool, l logger.Logger) *Reconciler {
	if l == nil {
		l = logger.Nop()
	}
	return &Reconciler{enabled: enabled, logger: l}
}

func (r *Reconciler) Register(syncers ...Syncer) {
	r.syncers = append(r.syncers, syncers...)
}

func (r *Reconciler) Entities() []string {
	names := make([]string, 0, len(r.syncers))
	for _, s := range r.syncers {
		names = append(names, s.Entity())
	}
	return names
}

func (r *Reconciler) Syncer(entity string) (Syncer, error) {
	for _, s := range r.syncers {
		if s.Entity() == entity {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", constants.ErrUnknownEntity, entity)
}

// PerformBidirectionalSync copies missing records in both directions for
// every registered entity.
func (r *Reconciler) PerformBidirectionalSync(ctx context.Context) SyncResult {
	result := r.bidirectional(ctx)
	r.mu.Lock()
	r.last = &result
	r.syncCount++
	r.mu.Unlock()
	return result
}

func (r *Reconciler) bidirectional(ctx context.Context) SyncResult {
	if !r.enabled() {
		return SyncResult{Message: secondaryUnavailable, Timestamp: time.Now()}
	}

	r.logger.Info("starting bidirectional sync", "entities", len(r.syncers))
	var result SyncResult
	parts := make([]string, 0, len(r.syncers))
	for _, s := range r.syncers {
		var toSecondary, toPrimary int
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			toSecondary, err = s.SyncToSecondary(gctx)
			return err
		})
		g.Go(func() (err error) {
			toPrimary, err = s.SyncToPrimary(gctx)
			return err
		})
		err := g.Wait()

		result.PrimaryToSecondary += toSecondary
		result.SecondaryToPrimary += toPrimary
		result.Entities = append(result.Entities, EntitySync{
			Entity:             s.Entity(),
			PrimaryToSecondary: toSecondary,
			SecondaryToPrimary: toPrimary,
		})
		if err != nil {
			r.logger.Error("bidirectional sync failed", "entity", s.Entity(), "error", err)
			result.Message = "Sync failed: " + err.Error()
			result.Timestamp = time.Now()
			return result
		}
		parts = append(parts, fmt.Sprintf("%s: %d->%d", s.Label(), toSecondary, toPrimary))
	}

	result.Success = true
	result.Message = "Sync completed successfully. " + strings.Join(parts, ", ")
	result.Timestamp = time.Now()
	r.logger.Info("bidirectional sync completed", "message", result.Message)
	return result
}

// SyncEntity runs one direction for one entity.
func (r *Reconciler) SyncEntity(ctx context.Context, entity string, dir Direction) (int, error) {
	s, err := r.Syncer(entity)
	if err != nil {
		return 0, err
	}
	switch dir {
	case ToSecondary:
		return s.SyncToSecondary(ctx)
	case ToPrimary:
		return s.SyncToPrimary(ctx)
	default:
		return 0, fmt.Errorf("unknown sync direction %q", dir)
	}
}

func (r *Reconciler) VerifyConsistency(ctx context.Context, entity string) (ConsistencyReport, error) {
	s, err := r.Syncer(entity)
	if err != nil {
		return ConsistencyReport{}, err
	}
	return s.VerifyConsistency(ctx)
}

// VerifyAll returns one report per entity. A failed check is reported in its
// entry and does not stop the others.
func (r *Reconciler) VerifyAll(ctx context.Context) []ConsistencyReport {
	reports := make([]ConsistencyReport, 0, len(r.syncers))
	for _, s := range r.syncers {
		report, _ := s.VerifyConsistency(ctx)
		reports = append(reports, report)
	}
	return reports
}

// LastResult returns the most recent bidirectional sync and how many have run.
func (r *Reconciler) LastResult() (SyncResult, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return SyncResult{}, r.syncCount, false
	}
	return *r.last, r.syncCount, true
}

// StartContinuousSync runs a bidirectional sync every interval until ctx is
// done. Ticks where paused reports true are skipped; paused may be nil. It
// returns immediately.
func (r *Reconciler) StartContinuousSync(ctx context.Context, interval time.Duration, paused func() bool) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("continuous sync stopped")
				return
			case <-ticker.C:
				if paused != nil && paused() {
					r.logger.Debug("scheduled sync skipped while paused")
					continue
				}
				result := r.PerformBidirectionalSync(ctx)
				if !result.Success {
					r.logger.Warn("scheduled sync did not succeed", "message", result.Message)
				}
			}
		}
	}()
}
