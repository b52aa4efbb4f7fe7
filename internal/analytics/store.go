// Package analytics exposes the surveillance case database to the agent as
// read-only tools. The database is opened with mode=ro and query_only on
// every connection, so even a query that slipped past the firewall cannot
// mutate anything.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// DefaultMaxRows caps result sets returned to the oracle. Large result
// sets waste context; analytical questions should aggregate instead.
const DefaultMaxRows = 20

// Table is one tabular query result, rendered column-major agnostic.
// Truncated is set when the query produced more rows than the cap.
type Table struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated,omitempty"`
}

// Querier runs one read-only query. CaseStore implements it; tests inject
// fakes.
type Querier interface {
	Query(ctx context.Context, query string) (Table, error)
}

// CaseStore is the read-only handle on the case database.
type CaseStore struct {
	db      *sql.DB
	maxRows int
}

// OpenCaseStore opens the database read-only. Every pooled connection
// carries query_only, so concurrent runs share the store safely.
func OpenCaseStore(path string, maxRows int) (*CaseStore, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=query_only(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("analytics: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("analytics: open %s: %w", path, err)
	}
	return &CaseStore{db: db, maxRows: maxRows}, nil
}

// Close releases the connection pool.
func (s *CaseStore) Close() error { return s.db.Close() }

// Query runs one statement and scans every column as text. At most maxRows
// rows are returned; the excess only flips Truncated.
func (s *CaseStore) Query(ctx context.Context, query string) (Table, error) {
	return s.QueryN(ctx, query, s.maxRows)
}

// QueryN is Query with an explicit row cap, for internal callers (chart
// series, reports) that need more than the oracle-facing default.
func (s *CaseStore) QueryN(ctx context.Context, query string, maxRows int) (Table, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return Table{}, fmt.Errorf("analytics: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Table{}, fmt.Errorf("analytics: columns: %w", err)
	}

	table := Table{Columns: cols}
	raw := make([]sql.NullString, len(cols))
	scan := make([]any, len(cols))
	for i := range raw {
		scan[i] = &raw[i]
	}

	for rows.Next() {
		if len(table.Rows) == maxRows {
			table.Truncated = true
			break
		}
		if err := rows.Scan(scan...); err != nil {
			return Table{}, fmt.Errorf("analytics: scan: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range raw {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("analytics: iterate: %w", err)
	}
	return table, nil
}

// Markdown renders the table as a GitHub-style markdown table.
func (t Table) Markdown() string {
	if len(t.Columns) == 0 {
		return "(empty result)"
	}
	var b strings.Builder
	b.WriteString("| " + strings.Join(t.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(t.Columns)) + "\n")
	for _, row := range t.Rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
