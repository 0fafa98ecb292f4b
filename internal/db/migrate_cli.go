package db

import (
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	// the schema is left alone until the action runs
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	migrations := MigrationsFS()

	switch action {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "All migrations applied")

	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		fmt.Fprintln(out, "Rolled back one migration")

	case "status", "version":
		version, dirty, err := database.MigrateVersion(migrations)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Current version: %d\n", version)
		if dirty {
			fmt.Fprintln(out, "Database is DIRTY; fix the schema by hand then run 'migrate force <version>'")
		}

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: vitals migrate force <version_number>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number %q: %w", args[1], err)
		}
		if err := database.MigrateForce(migrations, version); err != nil {
			return err
		}
		fmt.Fprintf(out, "Forced version to %d\n", version)

	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
	return nil
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: vitals [-db path] migrate <action>

Actions:
  up                Apply all pending migrations
  down              Roll back the most recent migration
  status            Show the current schema version
  version           Alias for status
  force <version>   Record <version> without running migrations (dirty recovery)
  help              Show this help
`)
}
