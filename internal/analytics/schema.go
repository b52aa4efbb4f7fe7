package analytics

import (
	"context"
	"fmt"
	"strings"
)

// ColumnInfo describes one column of the case table, with the most common
// values so the oracle can write filters without guessing encodings.
type ColumnInfo struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Samples []string `json:"samples,omitempty"`
}

const sampleLimit = 5

// DescribeTable returns column metadata plus the top sample values per
// column. The table name is interpolated, so it is restricted to a plain
// identifier.
func (s *CaseStore) DescribeTable(ctx context.Context, table string) ([]ColumnInfo, error) {
	if !plainIdentifier(table) {
		return nil, fmt.Errorf("analytics: invalid table name %q", table)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("analytics: table_info: %w", err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("analytics: scan table_info: %w", err)
		}
		cols = append(cols, ColumnInfo{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics: iterate table_info: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("analytics: table %q not found", table)
	}

	for i := range cols {
		samples, err := s.topValues(ctx, table, cols[i].Name)
		if err != nil {
			return nil, err
		}
		cols[i].Samples = samples
	}
	return cols, nil
}

// topValues returns the most frequent non-null values of one column.
func (s *CaseStore) topValues(ctx context.Context, table, column string) ([]string, error) {
	if !plainIdentifier(column) {
		return nil, fmt.Errorf("analytics: invalid column name %q", column)
	}
	query := fmt.Sprintf(
		`SELECT %[1]s FROM %[2]s WHERE %[1]s IS NOT NULL GROUP BY %[1]s ORDER BY COUNT(*) DESC LIMIT %[3]d`,
		column, table, sampleLimit,
	)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("analytics: sample %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("analytics: scan sample: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SchemaMarkdown renders column metadata for inclusion in a prompt or
// observation.
func SchemaMarkdown(table string, cols []ColumnInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table `%s`:\n", table)
	for _, c := range cols {
		fmt.Fprintf(&b, "- `%s` (%s)", c.Name, c.Type)
		if len(c.Samples) > 0 {
			fmt.Fprintf(&b, " examples: %s", strings.Join(c.Samples, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func plainIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
