package main

import (
	"SynthPool/internal/observability"
	"SynthPool/internal/persistence"
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate <up|down|status>")
	fmt.Fprintln(os.Stderr, "  up     - apply all pending migrations")
	fmt.Fprintln(os.Stderr, "  down   - roll back the last applied migration")
	fmt.Fprintln(os.Stderr, "  status - list applied migrations")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Environment:")
	fmt.Fprintln(os.Stderr, "  SYNTH_POSTGRES_DSN    - Postgres connection string")
	fmt.Fprintln(os.Stderr, "  SYNTH_MIGRATIONS_DIR  - migrations directory (default: migrations)")
	os.Exit(2)
}

func main() {
	if len(os.Args) != 2 {
		usage()
	}

	log := observability.NewLogger("migrate")

	pgURL := os.Getenv("SYNTH_POSTGRES_DSN")
	if pgURL == "" {
		pgURL = "postgres://localhost:5432/synthpool?sslmode=disable"
	}
	migrationsDir := os.Getenv("SYNTH_MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	db, err := sql.Open("postgres", pgURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open postgres")
	}
	defer db.Close()

	ctx := context.Background()
	migrator := persistence.NewMigrator(log, db, migrationsDir)

	switch os.Args[1] {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate up")
		}
		log.Info().Msg("schema up to date")

	case "down":
		if err := migrator.Down(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate down")
		}

	case "status":
		applied, err := migrator.Applied(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("migration status")
		}
		if len(applied) == 0 {
			fmt.Println("no migrations applied")
			return
		}
		for _, a := range applied {
			fmt.Printf("%06d  %-30s  %s\n", a.Version, a.Name, a.AppliedAt.Format("2006-01-02 15:04:05 MST"))
		}

	default:
		usage()
	}
}
