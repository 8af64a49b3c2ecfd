package dualstore

import (
	"context"
	"fmt"
)

// Migrate creates or updates the schema of every entity type in both stores.
// It is safe to run repeatedly. In-memory stores need no schema and are
// skipped.
func (a *App) Migrate(ctx context.Context) error {
	a.log.Info("running database migrations")
	for _, m := range a.migrations {
		if err := m.m.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate %s in %s store: %w", m.entity, m.side, err)
		}
	}
	a.log.Info("migrations completed successfully", "tables", len(a.migrations))
	return nil
}
