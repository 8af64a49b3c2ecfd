package dualstore

import "io"

// Command is one CLI sub-command with its own options. [Main] dispatches on
// the concrete type.
type Command interface {
	// Name matches the sub-command on the command line.
	Name() string
}

// MigrateCommand creates or updates the schema in both stores.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }

// RunCommand serves the HTTP API until the context is cancelled.
type RunCommand struct {
	// Migrate runs schema migrations before the server starts.
	Migrate bool
}

func (c *RunCommand) Name() string { return "run" }

// Sync directions accepted on the command line.
const (
	DirectionBoth    = "both"
	DirectionForward = "forward"
	DirectionReverse = "reverse"
)

// SyncCommand runs one reconciliation pass.
type SyncCommand struct {
	// Direction is "both", "forward" (primary to secondary) or "reverse".
	Direction string
	// Entity restricts a one-way sync to a single entity type.
	Entity string
	Out    io.Writer
}

func (c *SyncCommand) Name() string { return "sync" }

// VerifyCommand prints a consistency report for every entity type and fails
// when any of them is out of sync.
type VerifyCommand struct {
	Out io.Writer
}

func (c *VerifyCommand) Name() string { return "verify" }
