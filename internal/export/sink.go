// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package export writes completed query results into a PostgreSQL table.
//
// The table is created on first use from the result's column metadata and
// rows are bulk-loaded with COPY inside one transaction, so a failed export
// leaves no partial rows behind.
package export

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"duners/cli/internal/dune"
	"duners/cli/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/pterm/pterm"
)

// Beginner starts transactions; *pgxpool.Pool and *pgx.Conn implement it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Sink exports results through a Postgres connection.
type Sink struct {
	db  Beginner
	log *pterm.Logger
}

// New returns a sink using db.
func New(db Beginner) *Sink {
	return &Sink{db: db, log: logging.Default()}
}

// Column is one target column.
type Column struct {
	Name string
	Type string
}

// Columns derives the target schema from result metadata. Rows carrying keys
// absent from the metadata add jsonb columns, in sorted order, after the
// declared ones.
func Columns(res *dune.Result) []Column {
	var cols []Column
	seen := map[string]bool{}
	for i, name := range res.Metadata.ColumnNames {
		typ := ""
		if i < len(res.Metadata.ColumnTypes) {
			typ = res.Metadata.ColumnTypes[i]
		}
		cols = append(cols, Column{Name: name, Type: PostgresType(typ)})
		seen[name] = true
	}
	var extra []string
	for _, r := range res.Rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		cols = append(cols, Column{Name: k, Type: pgJSONB})
	}
	return cols
}

// TableIdentifier splits "schema.table" into a pgx identifier.
func TableIdentifier(table string) (pgx.Identifier, error) {
	parts := strings.Split(strings.TrimSpace(table), ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return pgx.Identifier(parts), nil
}

// CreateTableSQL returns the DDL for the target table.
func CreateTableSQL(table pgx.Identifier, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + c.Type
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table.Sanitize(), strings.Join(defs, ", "))
}

// Write appends res's rows to table, creating it if needed, and returns the
// number of rows copied.
func (s *Sink) Write(ctx context.Context, table string, res *dune.Result) (int64, error) {
	if res == nil {
		return 0, fmt.Errorf("no result to export")
	}
	ident, err := TableIdentifier(table)
	if err != nil {
		return 0, err
	}
	cols := Columns(res)
	if len(cols) == 0 {
		return 0, fmt.Errorf("result has no columns")
	}

	values := make([][]any, len(res.Rows))
	for i, r := range res.Rows {
		line := make([]any, len(cols))
		for j, c := range cols {
			v, err := convert(c.Type, r[c.Name])
			if err != nil {
				return 0, fmt.Errorf("row %d column %q: %w", i, c.Name, err)
			}
			line[j] = v
		}
		values[i] = line
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if _, err := tx.Exec(ctx, CreateTableSQL(ident, cols)); err != nil {
		return 0, fmt.Errorf("create table %s: %w", ident.Sanitize(), err)
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	n, err := tx.CopyFrom(ctx, ident, names, pgx.CopyFromRows(values))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", ident.Sanitize(), err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.log.Debug("exported rows", s.log.Args("table", ident.Sanitize(), "rows", n))
	return n, nil
}
