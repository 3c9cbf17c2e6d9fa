package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/config"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/database"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fs := ff.NewFlagSet("migrate")
	var (
		dir = fs.StringLong("migrations", cfg.MigrationsPath, "Directory holding the SQL migrations")
		dsn = fs.StringLong("database-url", cfg.PostgresURL(), "Postgres connection URL")
	)
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("EXPENSES")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		return err
	}

	rest := fs.GetArgs()
	if len(rest) < 1 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs, "migrate [flags] <up|down|version|force> [N]"))
		return fmt.Errorf("missing command")
	}

	m, err := migrate.New("file://"+*dir, *dsn)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer database.CloseMigrator(m)

	log := logger.Get()
	switch rest[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
		log.Info("Migrations applied successfully")

	case "down":
		steps := 1
		if len(rest) > 1 {
			steps, err = strconv.Atoi(rest[1])
			if err != nil {
				return fmt.Errorf("invalid step count: %w", err)
			}
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
		log.Infof("Rolled back %d migration(s)", steps)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		log.Infof("Version: %d, Dirty: %v", version, dirty)

	case "force":
		if len(rest) < 2 {
			return fmt.Errorf("usage: migrate force <version>")
		}
		version, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force failed: %w", err)
		}
		log.Infof("Forced version to %d", version)

	default:
		return fmt.Errorf("unknown command %q: use up, down, version or force", rest[0])
	}

	return nil
}
