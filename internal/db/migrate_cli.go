package db

import (
	"fmt"
	"io"
	"io/fs"
	"log"
)

// RunMigrateCommand handles the 'migrate' subcommand. Status output is
// written to out; failures are returned rather than exiting so the caller
// decides how to report them.
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

	migrationsFS := MigrationsFS()

	// Open database connection without running migrations
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		return handleMigrateUp(database, migrationsFS, out)
	case "down":
		return handleMigrateDown(database, migrationsFS, out)
	case "status":
		return handleMigrateStatus(database, migrationsFS, out)
	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

// handleMigrateUp applies all pending migrations
func handleMigrateUp(database *DB, migrationsFS fs.FS, out io.Writer) error {
	log.Printf("Running migrations...")
	if err := database.MigrateUp(migrationsFS); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

// handleMigrateDown rolls back one migration
func handleMigrateDown(database *DB, migrationsFS fs.FS, out io.Writer) error {
	log.Printf("Rolling back one migration...")
	if err := database.MigrateDown(migrationsFS); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

// handleMigrateStatus displays the current migration status
func handleMigrateStatus(database *DB, migrationsFS fs.FS, out io.Writer) error {
	status, err := database.GetMigrationStatus(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(out, "Latest version: %d\n", status.LatestVersion)
	fmt.Fprintf(out, "Dirty: %v\n", status.Dirty)
	fmt.Fprintf(out, "Schema migrations table exists: %v\n", status.SchemaMigrationsExists)

	if status.Dirty {
		fmt.Fprintln(out, "\nWARNING: Database is in a dirty state!")
		fmt.Fprintln(out, "A migration failed mid-execution. Inspect the database before retrying.")
	} else if status.Pending() {
		fmt.Fprintf(out, "\n%d migration(s) pending. Run: ptv-track migrate up -db <path>\n",
			status.LatestVersion-status.CurrentVersion)
	}
	return nil
}

// PrintMigrateHelp prints the migrate subcommand usage.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: ptv-track migrate <command> -db <path>")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  up       Apply all pending migrations")
	fmt.Fprintln(out, "  down     Roll back the most recent migration")
	fmt.Fprintln(out, "  status   Show current migration status")
	fmt.Fprintln(out, "  help     Show this help message")
}
