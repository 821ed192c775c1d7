// Package storage persists secrets, versions, stage labels and tags in
// SQLite and exposes the query surface the API handlers build on.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// Store wraps the SQLite database handle.
type Store struct {
	db *sql.DB
}

// Secret is a row of the secrets table. Nullable columns use pointers.
type Secret struct {
	ARN               string
	Name              string
	Description       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
	ScheduledDeleteAt *time.Time
}

// SecretVersion is a row of the secrets_versions table together with the
// stage labels attached to it.
type SecretVersion struct {
	SecretARN      string
	VersionID      string
	SecretString   *string
	SecretBinary   []byte
	CreatedAt      time.Time
	LastAccessedAt *time.Time
	Stages         []string
}

// Tag is a key/value pair attached to a secret.
type Tag struct {
	Key   string
	Value string
}

// SecretValue pairs a secret with one of its versions, as resolved for
// value reads.
type SecretValue struct {
	Secret  Secret
	Version SecretVersion
}

// SecretDetails is the aggregate view a DescribeSecret / ListSecrets
// entry is built from.
type SecretDetails struct {
	Secret           Secret
	Tags             []Tag
	VersionsToStages map[string][]string
	LastChangedAt    time.Time
	LastAccessedAt   *time.Time
}

// Open opens (creating it if necessary) the SQLite database at path and
// applies pending migrations. Foreign key enforcement is switched on via
// the DSN so that cascading deletes work.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=1&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles a single writer; funnel all writes through one
	// connection instead of relying on busy retries.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("path", path).Debug("Database opened")

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsUniqueViolation reports whether err is a SQLite unique or primary key
// constraint violation.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so queries can run inside
// or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// unixMilli converts a nullable Unix-millisecond column to a time pointer
func unixMilli(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
