package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// migrationLockID serializes schema changes across concurrently starting
// pool instances (pg_advisory_lock key, arbitrary but fixed).
const migrationLockID = 0x53594e5448

// Migration is one versioned schema change: NNNNNN_name.up.sql with a
// matching .down.sql rollback.
type Migration struct {
	Version  int64
	Name     string
	UpFile   string
	DownFile string
}

// AppliedMigration is one row of the bookkeeping table.
type AppliedMigration struct {
	Version   int64
	Name      string
	AppliedAt time.Time
}

// Migrator applies the pool schema to Postgres. Bookkeeping lives in
// synth.schema_migrations, next to the tables it describes.
type Migrator struct {
	log zerolog.Logger
	db  *sql.DB
	dir string
}

func NewMigrator(log zerolog.Logger, db *sql.DB, dir string) *Migrator {
	return &Migrator{log: log, db: db, dir: dir}
}

// Up applies every pending migration in version order.
func (m *Migrator) Up(ctx context.Context) error {
	return m.withLock(ctx, func() error {
		applied, err := m.appliedVersions(ctx)
		if err != nil {
			return err
		}
		migrations, err := m.load()
		if err != nil {
			return err
		}

		for _, mig := range migrations {
			if applied[mig.Version] {
				continue
			}
			if mig.UpFile == "" {
				return fmt.Errorf("migration %06d_%s has no up file", mig.Version, mig.Name)
			}
			if err := m.apply(ctx, mig); err != nil {
				return err
			}
			m.log.Info().
				Int64("version", mig.Version).
				Str("name", mig.Name).
				Msg("migration applied")
		}
		return nil
	})
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	return m.withLock(ctx, func() error {
		var version int64
		err := m.db.QueryRowContext(ctx,
			`SELECT version FROM synth.schema_migrations ORDER BY version DESC LIMIT 1`,
		).Scan(&version)
		if err == sql.ErrNoRows {
			m.log.Info().Msg("no migrations to roll back")
			return nil
		}
		if err != nil {
			return fmt.Errorf("latest applied version: %w", err)
		}

		migrations, err := m.load()
		if err != nil {
			return err
		}
		var target *Migration
		for i := range migrations {
			if migrations[i].Version == version {
				target = &migrations[i]
				break
			}
		}
		if target == nil || target.DownFile == "" {
			return fmt.Errorf("no down file for applied version %d", version)
		}

		sqlText, err := os.ReadFile(filepath.Join(m.dir, target.DownFile))
		if err != nil {
			return fmt.Errorf("read %s: %w", target.DownFile, err)
		}
		tx, err := m.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(sqlText)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec %s: %w", target.DownFile, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM synth.schema_migrations WHERE version = $1`, version,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("unrecord version %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		m.log.Info().
			Int64("version", target.Version).
			Str("name", target.Name).
			Msg("migration rolled back")
		return nil
	})
}

// Applied lists the bookkeeping rows, oldest first.
func (m *Migrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	if err := m.ensureBookkeeping(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx,
		`SELECT version, name, applied_at FROM synth.schema_migrations ORDER BY version`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var a AppliedMigration
		if err := rows.Scan(&a.Version, &a.Name, &a.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	sqlText, err := os.ReadFile(filepath.Join(m.dir, mig.UpFile))
	if err != nil {
		return fmt.Errorf("read %s: %w", mig.UpFile, err)
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(sqlText)); err != nil {
		tx.Rollback()
		return fmt.Errorf("exec %s: %w", mig.UpFile, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO synth.schema_migrations (version, name) VALUES ($1, $2)`,
		mig.Version, mig.Name,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("record version %d: %w", mig.Version, err)
	}
	return tx.Commit()
}

func (m *Migrator) withLock(ctx context.Context, fn func() error) error {
	if err := m.ensureBookkeeping(ctx); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer m.db.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, migrationLockID)
	return fn()
}

func (m *Migrator) ensureBookkeeping(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE SCHEMA IF NOT EXISTS synth;
		CREATE TABLE IF NOT EXISTS synth.schema_migrations (
			version    BIGINT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure migration bookkeeping: %w", err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int64]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM synth.schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// load scans the migration directory and pairs up/down files by their
// numeric version prefix, e.g. 000001_operation_log.up.sql.
func (m *Migrator) load() ([]Migration, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migration dir %s: %w", m.dir, err)
	}

	byVersion := make(map[int64]*Migration)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration file %s: missing version prefix", name)
		}
		version, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration file %s: %w", name, err)
		}

		mig := byVersion[version]
		if mig == nil {
			mig = &Migration{Version: version}
			byVersion[version] = mig
		}
		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			mig.Name = strings.TrimSuffix(rest, ".up.sql")
			mig.UpFile = name
		case strings.HasSuffix(rest, ".down.sql"):
			mig.DownFile = name
		default:
			return nil, fmt.Errorf("migration file %s: want .up.sql or .down.sql", name)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		out = append(out, *mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
