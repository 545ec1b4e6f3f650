// Command migrate manages the blog schema for either supported dialect.
//
//	migrate [-driver sqlite|postgres] [-dsn DSN] up | auto | status | down <version> | sql <version> [up|down]
//
// -driver and -dsn override DB_DRIVER and DATABASE_URL. The sql subcommand prints a
// migration script for the chosen dialect without connecting.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"inkwell/internal/config"
	"inkwell/internal/database"

	"gorm.io/gorm"
)

var errUsage = errors.New("usage: migrate [-driver sqlite|postgres] [-dsn DSN] <up|auto|status|down <version>|sql <version> [up|down]>")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	driver := fs.String("driver", "", "database dialect (sqlite or postgres); defaults to DB_DRIVER")
	dsn := fs.String("dsn", "", "connection string; defaults to DATABASE_URL")
	if err := fs.Parse(args); err != nil || fs.NArg() < 1 {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *driver != "" {
		cfg.DBDriver = *driver
	}
	if *dsn != "" {
		cfg.DatabaseURL = *dsn
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cmd := strings.ToLower(strings.TrimSpace(fs.Arg(0)))
	if cmd == "sql" {
		return printScript(out, cfg.DBDriver, fs.Args()[1:])
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	switch cmd {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		fmt.Fprintf(out, "%s migrations applied\n", cfg.DBDriver)
		return printTables(ctx, out, db)
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		fmt.Fprintln(out, "automigrations applied")
		return printTables(ctx, out, db)
	case "status":
		return printStatus(ctx, out, db, cfg)
	case "down":
		if fs.NArg() < 2 {
			return errUsage
		}
		version, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", fs.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		fmt.Fprintf(out, "rolled back %s migration %d\n", cfg.DBDriver, version)
		return nil
	default:
		return errUsage
	}
}

// printStatus lists every migration of the connection's dialect and the blog tables with row counts.
func printStatus(ctx context.Context, out io.Writer, db *gorm.DB, cfg *config.Config) error {
	cfg.DBSchemaMode = database.SchemaModeSQL
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	migrations, err := database.GetMigrations(status.Dialect)
	if err != nil {
		return err
	}

	pending := make(map[int]bool, len(status.PendingMigrations))
	for _, m := range status.PendingMigrations {
		pending[m.Version] = true
	}

	fmt.Fprintf(out, "dialect=%s env=%s applied=%d pending=%d\n",
		status.Dialect, status.Environment, len(status.AppliedVersions), len(status.PendingMigrations))
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, m := range migrations {
		state := "applied"
		if pending[m.Version] {
			state = "pending"
		}
		fmt.Fprintf(w, "%s\t%s\n", m.String(), state)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return printTables(ctx, out, db)
}

func printTables(ctx context.Context, out io.Writer, db *gorm.DB) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, table := range database.ManagedTables() {
		if !db.WithContext(ctx).Migrator().HasTable(table) {
			fmt.Fprintf(w, "%s\tmissing\n", table)
			continue
		}
		var rows int64
		if err := db.WithContext(ctx).Table(table).Count(&rows).Error; err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		fmt.Fprintf(w, "%s\t%d rows\n", table, rows)
	}
	return w.Flush()
}

func printScript(out io.Writer, dialect string, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	direction := "up"
	if len(args) > 1 {
		direction = strings.ToLower(args[1])
	}

	migrations, err := database.GetMigrations(dialect)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.Version != version {
			continue
		}
		switch direction {
		case "up":
			_, err = io.WriteString(out, m.UpScript)
		case "down":
			_, err = io.WriteString(out, m.DownScript)
		default:
			return errUsage
		}
		return err
	}
	return fmt.Errorf("no %s migration with version %d", dialect, version)
}
