package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/seenimoa/bmrs/pkg/models"
)

// Postgres loads a table into a PostgreSQL table named after the report,
// creating it if needed. Numeric columns are typed NUMERIC, the rest TEXT.
// Rows are loaded with COPY inside one transaction.
//
// The sink is append-only: every Write adds its rows, so loading the same
// range twice stores it twice. An existing table is never altered; when its
// columns or types do not fit the new rows the COPY fails and the whole
// Write rolls back. Deduplicate downstream, or target a fresh schema.
type Postgres struct {
	db     *sql.DB
	schema string
}

var _ Sink = (*Postgres)(nil)

// NewPostgres wraps an open database handle. An empty schema means "public".
func NewPostgres(db *sql.DB, schema string) *Postgres {
	if schema == "" {
		schema = "public"
	}
	return &Postgres{db: db, schema: schema}
}

// OpenPostgres connects using a lib/pq DSN.
func OpenPostgres(dsn, schema string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres sink: no dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgres(db, schema), nil
}

// TableName returns the table a report is loaded into.
func TableName(report string) string {
	return strings.ToLower(report)
}

// CreateTableSQL returns the DDL for t's columns.
func (p *Postgres) CreateTableSQL(report string, t *models.Table) string {
	numeric := make(map[string]bool)
	for _, c := range t.NumericColumns() {
		numeric[c] = true
	}
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		typ := "TEXT"
		if numeric[c] {
			typ = "NUMERIC"
		}
		defs[i] = pq.QuoteIdentifier(c) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (%s)",
		pq.QuoteIdentifier(p.schema), pq.QuoteIdentifier(TableName(report)), strings.Join(defs, ", "))
}

// Write implements Sink.
func (p *Postgres) Write(ctx context.Context, target Target, t *models.Table) (string, error) {
	location := p.schema + "." + TableName(target.Report)
	if len(t.Columns) == 0 {
		return location, nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, p.CreateTableSQL(target.Report, t)); err != nil {
		return "", fmt.Errorf("create table %s: %w", location, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(p.schema, TableName(target.Report), t.Columns...))
	if err != nil {
		return "", fmt.Errorf("prepare copy: %w", err)
	}

	numeric := make([]bool, len(t.Columns))
	for _, c := range t.NumericColumns() {
		numeric[t.Column(c)] = true
	}
	for i, row := range t.Rows {
		args := make([]any, len(row))
		for j, v := range row {
			if numeric[j] && strings.TrimSpace(v) == "" {
				args[j] = nil
				continue
			}
			args[j] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			return "", fmt.Errorf("copy row %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return "", fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return "", fmt.Errorf("close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return location, nil
}

// Close implements Sink.
func (p *Postgres) Close() error { return p.db.Close() }
