package sqlguard

import (
	"errors"
	"testing"
)

func newTestValidator() *Validator {
	return NewValidator([]string{"srag_cases"})
}

func TestValidate_AllowsReadOnlyAggregates(t *testing.T) {
	t.Parallel()

	queries := []string{
		"SELECT COUNT(*) FROM srag_cases",
		"select outcome_lbl, count(*) * 100.0 / nullif(sum(count(*)) over (), 0) from srag_cases group by 1",
		"  \n\tSELECT MAX(notified_at) FROM srag_cases",
		"-- leading comment\nSELECT age FROM srag_cases WHERE age > 60",
		"/* block */ SELECT * FROM srag_cases LIMIT 20",
		"WITH weekly AS (SELECT date_trunc('week', notified_at) w, COUNT(*) c FROM srag_cases GROUP BY 1) SELECT * FROM weekly",
		"SELECT a.age FROM srag_cases a JOIN srag_cases b ON a.age = b.age",
		"SELECT * FROM main.srag_cases",
		"SELECT * FROM srag_cases; SELECT COUNT(*) FROM srag_cases",
		`SELECT * FROM "srag_cases"`,
		"SELECT * FROM `srag_cases` LIMIT 5",
		`WITH "weekly" AS (SELECT 1 AS c FROM srag_cases) SELECT * FROM "weekly"`,
	}

	v := newTestValidator()
	for _, q := range queries {
		if err := v.Validate(q); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", q, err)
		}
	}
}

func TestValidate_RejectsDeniedStatements(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query   string
		keyword string
	}{
		{"DROP TABLE srag_cases", "drop"},
		{"drop table srag_cases", "drop"},
		{"  DELETE FROM srag_cases", "delete"},
		{"\n\tTRUNCATE srag_cases", "truncate"},
		{"UPDATE srag_cases SET age = 0", "update"},
		{"INSERT INTO srag_cases VALUES (1)", "insert"},
		{"ALTER TABLE srag_cases DROP COLUMN age", "alter"},
		{"GRANT ALL ON srag_cases TO public", "grant"},
		{"PRAGMA writable_schema = 1", "pragma"},
		{"-- harmless\nDrOp TABLE srag_cases", "drop"},
		{"/* hide */ DELETE FROM srag_cases", "delete"},
		{"SELECT * FROM srag_cases; DROP TABLE srag_cases;", "drop"},
		{"SELECT 1; SELECT 2; \n -- x\n   TRUNCATE srag_cases", "truncate"},
		{"WITH x AS (SELECT 1) DELETE FROM srag_cases", "delete"},
		{"WITH x AS (SELECT 1) INSERT INTO srag_cases VALUES (1)", "insert"},
		{"WITH x AS (SELECT 1), y AS (SELECT 2) UPDATE srag_cases SET age = 0", "update"},
		{"WITH x AS (SELECT 1) VACUUM", "vacuum"},
	}

	v := newTestValidator()
	for _, tc := range cases {
		err := v.Validate(tc.query)
		if err == nil {
			t.Errorf("Validate(%q) = nil, want rejection", tc.query)
			continue
		}
		var unsafe *UnsafeQueryError
		if !errors.As(err, &unsafe) {
			t.Errorf("Validate(%q): error type %T, want *UnsafeQueryError", tc.query, err)
			continue
		}
		if unsafe.Kind != ViolationStatement {
			t.Errorf("Validate(%q): kind = %s, want %s", tc.query, unsafe.Kind, ViolationStatement)
		}
		if unsafe.Offending != tc.keyword {
			t.Errorf("Validate(%q): offending = %q, want %q", tc.query, unsafe.Offending, tc.keyword)
		}
	}
}

func TestValidate_RejectsForeignIdentifiers(t *testing.T) {
	t.Parallel()

	v := newTestValidator()

	cases := []string{
		"SELECT * FROM users",
		"SELECT * FROM srag_cases JOIN patients ON true",
		"SELECT * FROM srag_cases, sqlite_master",
		"SELECT (SELECT secret FROM credentials) FROM srag_cases",
	}
	for _, q := range cases {
		err := v.Validate(q)
		if err == nil {
			t.Errorf("Validate(%q) = nil, want identifier rejection", q)
			continue
		}
		var unsafe *UnsafeQueryError
		if !errors.As(err, &unsafe) || unsafe.Kind != ViolationIdentifier {
			t.Errorf("Validate(%q): got %v, want unknown_identifier", q, err)
		}
	}
}

func TestValidate_RejectsQuotedForeignIdentifiers(t *testing.T) {
	t.Parallel()

	v := newTestValidator()

	cases := []string{
		`SELECT * FROM "patients"`,
		"SELECT * FROM `patients`",
		"SELECT * FROM [patients]",
		"SELECT * FROM 'patients'",
		`SELECT * FROM "patients`, // unterminated quoting still screened
		`SELECT * FROM srag_cases JOIN "credentials" ON true`,
	}
	for _, q := range cases {
		err := v.Validate(q)
		if err == nil {
			t.Errorf("Validate(%q) = nil, want identifier rejection", q)
			continue
		}
		var unsafe *UnsafeQueryError
		if !errors.As(err, &unsafe) || unsafe.Kind != ViolationIdentifier {
			t.Errorf("Validate(%q): got %v, want unknown_identifier", q, err)
		}
	}
}

func TestValidate_MainStatementAliasDoesNotWidenAllowList(t *testing.T) {
	t.Parallel()

	v := newTestValidator()
	q := "WITH t AS (SELECT 1) SELECT age AS patients FROM patients"
	err := v.Validate(q)
	var unsafe *UnsafeQueryError
	if !errors.As(err, &unsafe) || unsafe.Kind != ViolationIdentifier {
		t.Fatalf("Validate(%q): got %v, want unknown_identifier", q, err)
	}
}

func TestValidate_KeywordInsideLiteralIsFine(t *testing.T) {
	t.Parallel()

	v := newTestValidator()
	q := "SELECT * FROM srag_cases WHERE outcome_lbl = 'delete; drop table'"
	if err := v.Validate(q); err != nil {
		t.Fatalf("Validate(%q) = %v, want nil", q, err)
	}
}

func TestValidate_OffendingIdentifierReported(t *testing.T) {
	t.Parallel()

	v := newTestValidator()
	err := v.Validate("SELECT * FROM sqlite_master")
	var unsafe *UnsafeQueryError
	if !errors.As(err, &unsafe) {
		t.Fatalf("got %v, want *UnsafeQueryError", err)
	}
	if unsafe.Offending != "sqlite_master" {
		t.Fatalf("offending = %q, want sqlite_master", unsafe.Offending)
	}
}
