package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	// Register the MySQL driver for the settings connection.
	_ "github.com/go-sql-driver/mysql"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
)

// identifierPattern restricts the settings table name to a plain identifier,
// since table names cannot be bound as query parameters.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SettingsEnforcer applies enforced configuration rows to the application
// database. Enforcement is desired-state: the upsert overwrites whatever
// value is present, including manual edits.
type SettingsEnforcer interface {
	Enforce(ctx context.Context, entries []deploy.SettingEntry) error
}

// SQLEnforcer enforces settings over a live SQL connection.
type SQLEnforcer struct {
	db    *sql.DB
	table string
}

// OpenSQLEnforcer connects to the application database.
// The caller owns the returned enforcer and must Close it.
func OpenSQLEnforcer(dsn, table string) (*SQLEnforcer, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid settings table name %q", table)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}

	return &SQLEnforcer{db: db, table: table}, nil
}

// Enforce upserts every entry by its (path, scope, scope_id) key.
// It stops at the first failing statement.
func (e *SQLEnforcer) Enforce(ctx context.Context, entries []deploy.SettingEntry) error {
	//nolint:gosec // table is validated against identifierPattern in the constructor.
	query := fmt.Sprintf(
		"INSERT INTO %s (path, scope, scope_id, value) VALUES (?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE value = VALUES(value)",
		e.table,
	)

	for _, entry := range entries {
		if _, err := e.db.ExecContext(ctx, query,
			entry.Path, entry.Scope, entry.ScopeID, entry.Value); err != nil {
			return fmt.Errorf("enforce %s/%s/%d: %w", entry.Scope, entry.Path, entry.ScopeID, err)
		}
	}

	return nil
}

// Close releases the database connection.
func (e *SQLEnforcer) Close() error {
	return e.db.Close()
}
