package dualstore

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/surrealdb/dualstore/pkg/config"
)

const usage = `subcommand required

Usage: dualstore [flags] <command> [command flags]

Commands:
  run       Start the HTTP server
  migrate   Create or update the schema in both stores
  sync      Copy records missing on either side
  verify    Compare record counts between the stores

Examples:
  dualstore -config dualstore.yaml run
  dualstore run -migrate
  dualstore -port 8090 -read-only run
  dualstore sync                              # both directions
  dualstore sync -direction forward           # primary to secondary
  dualstore sync -direction reverse -entity products
  dualstore verify`

// Parse parses the command line into a command and the configuration shared
// by all commands. Global flags override the loaded configuration.
func Parse(args []string) (Command, *config.Config, error) {
	flagSet := flag.NewFlagSet("dualstore", flag.ContinueOnError)

	var (
		configFile = flagSet.String("config", "", "Configuration file (yaml, toml or json)")
		port       = flagSet.Int("port", 0, "Server port")
		logLevel   = flagSet.String("log-level", "", "Log level: debug, info, warn, error")
		readOnly   = flagSet.Bool("read-only", false, "Start in read-only mode")
		noSecond   = flagSet.Bool("primary-only", false, "Run without the secondary store")
	)
	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remaining := flagSet.Args()
	if len(remaining) == 0 {
		return nil, nil, fmt.Errorf(usage)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, nil, err
	}
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "log-level":
			cfg.Log.Level = *logLevel
		case "read-only":
			cfg.ReadOnly = *readOnly
		case "primary-only":
			cfg.Secondary.Datasource.Enabled = !*noSecond
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	cmd, err := parseCommand(remaining[0], remaining[1:], os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	return cmd, cfg, nil
}

func parseCommand(name string, args []string, out io.Writer) (Command, error) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	switch name {
	case "run":
		migrate := flagSet.Bool("migrate", false, "Run schema migrations before serving")
		if err := flagSet.Parse(args); err != nil {
			return nil, err
		}
		return &RunCommand{Migrate: *migrate}, nil
	case "migrate":
		if err := flagSet.Parse(args); err != nil {
			return nil, err
		}
		return &MigrateCommand{}, nil
	case "sync":
		direction := flagSet.String("direction", DirectionBoth, "Sync direction: both, forward (primary to secondary) or reverse")
		entity := flagSet.String("entity", "", "Limit a one-way sync to one entity type")
		if err := flagSet.Parse(args); err != nil {
			return nil, err
		}
		switch *direction {
		case DirectionBoth, DirectionForward, DirectionReverse:
		default:
			return nil, fmt.Errorf("invalid sync direction: %s (must be 'both', 'forward' or 'reverse')", *direction)
		}
		if *entity != "" && *direction == DirectionBoth {
			return nil, fmt.Errorf("-entity requires -direction forward or reverse")
		}
		return &SyncCommand{Direction: *direction, Entity: *entity, Out: out}, nil
	case "verify":
		if err := flagSet.Parse(args); err != nil {
			return nil, err
		}
		return &VerifyCommand{Out: out}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s\n\nValid commands: run, migrate, sync, verify", name)
	}
}
