package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationFile is one embedded schema step, e.g. 001_results.sql
type MigrationFile struct {
	Version string
	Name    string
	SQL     []byte
}

// Migrator applies embedded migrations once each, recording a checksum
type Migrator struct {
	db *sqlx.DB
}

// NewMigrator creates a new migrator
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db}
}

// Up executes all pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := migrationFiles()
	if err != nil {
		return fmt.Errorf("failed to find migration files: %w", err)
	}

	for _, file := range files {
		sum := calculateChecksum(file.SQL)
		if prev, ok := applied[file.Version]; ok {
			if prev != sum {
				return fmt.Errorf("migration %s changed after it was applied", file.Name)
			}
			continue
		}
		if err := m.apply(ctx, file, sum); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name, err)
		}
	}
	return nil
}

// applied returns version -> checksum of recorded migrations
func (m *Migrator) applied(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Version  string `db:"version"`
		Checksum string `db:"checksum"`
	}
	if err := m.db.SelectContext(ctx, &rows, "SELECT version, checksum FROM schema_migrations"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Version] = r.Checksum
	}
	return out, nil
}

func (m *Migrator) apply(ctx context.Context, file MigrationFile, checksum string) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// one statement per Exec keeps both drivers happy
	for _, stmt := range splitStatements(string(file.SQL)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
	}

	insert := tx.Rebind("INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)")
	if _, err := tx.ExecContext(ctx, insert, file.Version, checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// calculateChecksum computes SHA256 checksum of migration content
func calculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

func migrationFiles() ([]MigrationFile, error) {
	paths, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	var files []MigrationFile
	for _, path := range paths {
		base := strings.TrimPrefix(path, "migrations/")
		parts := strings.SplitN(base, "_", 2)
		if len(parts) < 2 {
			continue
		}
		data, err := migrationFS.ReadFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, MigrationFile{Version: parts[0], Name: base, SQL: data})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})
	return files, nil
}

func splitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
