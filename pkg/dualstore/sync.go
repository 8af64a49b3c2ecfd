package dualstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/surrealdb/dualstore/pkg/constants"
	"github.com/surrealdb/dualstore/pkg/reconcile"
)

// ErrInconsistent is returned by Verify when any entity type has a different
// record count in the two stores.
var ErrInconsistent = errors.New("stores are not consistent")

func (a *App) checkSyncable() error {
	if !a.IsSecondaryEnabled() {
		return constants.ErrSecondaryUnavailable
	}
	if a.IsReadOnly() {
		return fmt.Errorf("sync needs write access: %w", constants.ErrReadOnly)
	}
	return nil
}

// Sync runs one reconciliation pass and prints the result as JSON.
func (a *App) Sync(ctx context.Context, cmd *SyncCommand) error {
	if err := a.checkSyncable(); err != nil {
		return err
	}
	out := writerOr(cmd.Out)

	if cmd.Direction == DirectionBoth || cmd.Direction == "" {
		result := a.reconciler.PerformBidirectionalSync(ctx)
		if err := printJSON(out, result); err != nil {
			return err
		}
		if !result.Success {
			return errors.New(result.Message)
		}
		return nil
	}

	dir := reconcile.ToSecondary
	if cmd.Direction == DirectionReverse {
		dir = reconcile.ToPrimary
	}
	entities := a.reconciler.Entities()
	if cmd.Entity != "" {
		entities = []string{cmd.Entity}
	}

	counts := make(map[string]int, len(entities))
	for _, entity := range entities {
		n, err := a.reconciler.SyncEntity(ctx, entity, dir)
		if err != nil {
			return fmt.Errorf("failed to sync %s: %w", entity, err)
		}
		counts[entity] = n
	}
	return printJSON(out, map[string]any{"direction": dir, "synced": counts})
}

// Verify prints a consistency report per entity type.
func (a *App) Verify(ctx context.Context, cmd *VerifyCommand) error {
	if !a.IsSecondaryEnabled() {
		return constants.ErrSecondaryUnavailable
	}
	reports := a.reconciler.VerifyAll(ctx)
	if err := printJSON(writerOr(cmd.Out), reports); err != nil {
		return err
	}
	for _, r := range reports {
		if !r.InSync {
			return ErrInconsistent
		}
	}
	return nil
}

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
