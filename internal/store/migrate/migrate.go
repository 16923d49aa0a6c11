// Package migrate applies the embedded schema through database/sql.
package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/store"
)

const versionsTable = `
	CREATE TABLE IF NOT EXISTS schema_versions (
		checksum   VARCHAR(64) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// Version is one applied schema revision.
type Version struct {
	Checksum  string    `db:"checksum"`
	AppliedAt time.Time `db:"applied_at"`
}

type Migrator struct {
	db     *sqlx.DB
	log    *zap.Logger
	schema string
}

// Connect opens a lib/pq connection and verifies it.
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(2)
	return db, nil
}

func NewMigrator(db *sqlx.DB, log *zap.Logger) *Migrator {
	return &Migrator{db: db, log: log, schema: store.Schema}
}

// Checksum identifies a schema revision.
func Checksum(schema string) string {
	sum := sha256.Sum256([]byte(schema))
	return hex.EncodeToString(sum[:])
}

// Up applies the schema unless this exact revision was applied before. It
// reports whether anything ran.
func (m *Migrator) Up(ctx context.Context) (bool, error) {
	if _, err := m.db.ExecContext(ctx, versionsTable); err != nil {
		return false, fmt.Errorf("create versions table: %w", err)
	}

	checksum := Checksum(m.schema)
	var n int
	if err := m.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM schema_versions WHERE checksum = $1`, checksum); err != nil {
		return false, fmt.Errorf("read versions: %w", err)
	}
	if n > 0 {
		m.log.Info("schema up to date", zap.String("checksum", checksum))
		return false, nil
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.schema); err != nil {
		return false, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_versions (checksum) VALUES ($1)`, checksum); err != nil {
		return false, fmt.Errorf("record version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	m.log.Info("schema applied", zap.String("checksum", checksum))
	return true, nil
}

// History lists applied revisions, newest first.
func (m *Migrator) History(ctx context.Context) ([]Version, error) {
	var out []Version
	err := m.db.SelectContext(ctx, &out, `SELECT checksum, applied_at FROM schema_versions ORDER BY applied_at DESC`)
	return out, err
}
