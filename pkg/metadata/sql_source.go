package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// DefaultTable holds service documents for SQLSource
const DefaultTable = "metadata_documents"

// SQLSource reads documents from a table with service, api_version and
// document columns. The document column holds JSON or YAML text.
type SQLSource struct {
	db     *sql.DB
	table  string
	dollar bool
}

// SQLOption configures a SQLSource
type SQLOption func(*SQLSource)

// WithTable overrides the document table name
func WithTable(table string) SQLOption {
	return func(s *SQLSource) {
		s.table = table
	}
}

// WithDollarPlaceholders switches to $1-style placeholders (PostgreSQL)
func WithDollarPlaceholders() SQLOption {
	return func(s *SQLSource) {
		s.dollar = true
	}
}

// NewSQLSource creates a source reading from db
func NewSQLSource(db *sql.DB, opts ...SQLOption) *SQLSource {
	s := &SQLSource{db: db, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the table the source reads from
func (s *SQLSource) Name() string {
	return "sql:" + s.table
}

func (s *SQLSource) placeholder(n int) string {
	if s.dollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// EnsureSchema creates the document table if it does not exist
func (s *SQLSource) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	service TEXT NOT NULL,
	api_version TEXT NOT NULL,
	document TEXT NOT NULL,
	PRIMARY KEY (service, api_version)
)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}
	return nil
}

// Put stores or replaces a raw document
func (s *SQLSource) Put(ctx context.Context, service, version string, document []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	del := fmt.Sprintf("DELETE FROM %s WHERE service = %s AND api_version = %s",
		s.table, s.placeholder(1), s.placeholder(2))
	if _, err := tx.ExecContext(ctx, del, service, version); err != nil {
		return fmt.Errorf("failed to replace %s-%s: %w", service, version, err)
	}

	ins := fmt.Sprintf("INSERT INTO %s (service, api_version, document) VALUES (%s, %s, %s)",
		s.table, s.placeholder(1), s.placeholder(2), s.placeholder(3))
	if _, err := tx.ExecContext(ctx, ins, service, version, string(document)); err != nil {
		return fmt.Errorf("failed to store %s-%s: %w", service, version, err)
	}

	return tx.Commit()
}

// Versions lists the versions stored for service
func (s *SQLSource) Versions(ctx context.Context, service string) ([]string, error) {
	query := fmt.Sprintf("SELECT api_version FROM %s WHERE service = %s", s.table, s.placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, service)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for %s: %w", service, err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list versions for %s: %w", service, err)
	}

	sort.Strings(versions)
	return versions, nil
}

// Fetch reads and decodes one stored document
func (s *SQLSource) Fetch(ctx context.Context, service, version string) (*ServiceDescription, string, error) {
	query := fmt.Sprintf("SELECT document FROM %s WHERE service = %s AND api_version = %s",
		s.table, s.placeholder(1), s.placeholder(2))

	var document []byte
	err := s.db.QueryRowContext(ctx, query, service, version).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", &MetadataNotFoundError{Service: service, APIVersion: version}
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s-%s: %w", service, version, err)
	}

	desc, err := Decode(document, "")
	if err != nil {
		return nil, "", fmt.Errorf("%s-%s: %w", service, version, err)
	}
	return desc, fmt.Sprintf("%s/%s-%s", s.Name(), service, version), nil
}
