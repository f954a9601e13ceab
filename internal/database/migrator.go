// Package database manages the schema migrations applied at startup.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	filename   TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrator applies *.up.sql files in lexical order, each inside its own
// transaction together with its ledger row. Files already present in the
// ledger are skipped, so every replica can run migrations at boot.
type Migrator struct {
	db  *sql.DB
	log *slog.Logger
}

// NewMigrator constructs a Migrator that logs through the provided logger.
func NewMigrator(db *sql.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}

	return &Migrator{db: db, log: log}
}

// ApplyDir applies every pending migration found in dir.
func (m *Migrator) ApplyDir(ctx context.Context, dir string) error {
	if _, err := m.db.ExecContext(ctx, ledgerDDL); err != nil {
		return fmt.Errorf("create migrations ledger: %w", err)
	}

	pending, err := m.pendingFiles(ctx, dir)
	if err != nil {
		return err
	}

	log := m.log.With(slog.String("dir", dir))
	if len(pending) == 0 {
		log.Info("schema up to date")
		return nil
	}

	for _, path := range pending {
		if err := m.apply(ctx, log, path); err != nil {
			return err
		}
	}

	log.Info("migrations applied", slog.Int("count", len(pending)))
	return nil
}

// pendingFiles lists dir's *.up.sql files not yet in the ledger, sorted.
func (m *Migrator) pendingFiles(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %q: %w", dir, err)
	}

	applied, err := m.appliedSet(ctx)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		if applied[name] {
			continue
		}
		pending = append(pending, filepath.Join(dir, name))
	}

	sort.Strings(pending)
	return pending, nil
}

func (m *Migrator) appliedSet(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read migrations ledger: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan migrations ledger: %w", err)
		}
		applied[name] = true
	}

	return applied, rows.Err()
}

// apply runs one migration file and records it, atomically.
func (m *Migrator) apply(ctx context.Context, log *slog.Logger, path string) error {
	name := filepath.Base(path)
	log = log.With(slog.String("file", name))
	log.Info("applying migration")

	// #nosec G304: migration paths are controlled by deployment
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %q: %w", path, err)
	}

	statements := strings.TrimSpace(string(data))
	if statements == "" {
		log.Warn("migration is empty, skipping")
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %q: %w", name, err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			log.Error("rollback error", slog.Any("error", rbErr))
		}
	}()

	if _, err := tx.ExecContext(ctx, statements); err != nil {
		return fmt.Errorf("execute migration %q: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("record migration %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %q: %w", name, err)
	}

	return nil
}
