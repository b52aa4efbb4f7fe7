// Package sqlguard is the SQL execution firewall. It screens oracle-generated
// queries before they reach the analytical store: every statement in the
// input must carry an allowed verb in statement position, and every table
// referenced must belong to the declared analytical schema. The policy is
// deny-by-keyword so the oracle keeps full freedom to compose read-only
// aggregate SQL.
package sqlguard

import (
	"fmt"
	"strings"
)

// deniedVerbs is the fixed deny-list of mutating and administrative
// statement keywords, matched against the verb in statement position.
var deniedVerbs = map[string]struct{}{
	"insert":   {},
	"update":   {},
	"delete":   {},
	"merge":    {},
	"replace":  {},
	"upsert":   {},
	"drop":     {},
	"truncate": {},
	"alter":    {},
	"create":   {},
	"grant":    {},
	"revoke":   {},
	"attach":   {},
	"detach":   {},
	"vacuum":   {},
	"pragma":   {},
	"copy":     {},
	"import":   {},
	"export":   {},
	"install":  {},
	"load":     {},
	"set":      {},
	"call":     {},
	"begin":    {},
	"commit":   {},
	"rollback": {},
}

// deniedAnywhere is the subset of mutating keywords rejected wherever they
// appear as a bare token, not only in statement position. A CTE prefix or
// other framing must not smuggle them past the verb check.
var deniedAnywhere = map[string]struct{}{
	"insert":   {},
	"update":   {},
	"delete":   {},
	"drop":     {},
	"truncate": {},
	"alter":    {},
	"merge":    {},
	"upsert":   {},
}

// ViolationKind distinguishes the two firewall policies.
type ViolationKind string

// Violation kinds.
const (
	ViolationStatement  ViolationKind = "denied_statement"
	ViolationIdentifier ViolationKind = "unknown_identifier"
)

// UnsafeQueryError is the classified rejection returned by Validate.
// Offending carries the keyword or identifier that triggered the rejection,
// for the audit trail.
type UnsafeQueryError struct {
	Kind      ViolationKind
	Offending string
}

// Error implements error.
func (e *UnsafeQueryError) Error() string {
	switch e.Kind {
	case ViolationStatement:
		return fmt.Sprintf("sqlguard: statement type not permitted: %s", strings.ToUpper(e.Offending))
	default:
		return fmt.Sprintf("sqlguard: identifier outside analytical schema: %s", e.Offending)
	}
}

// Validator enforces the firewall policy for one analytical schema.
type Validator struct {
	allowedTables map[string]struct{}
}

// NewValidator creates a validator that admits only the given tables.
// Matching is case-insensitive.
func NewValidator(allowedTables []string) *Validator {
	allowed := make(map[string]struct{}, len(allowedTables))
	for _, t := range allowedTables {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	return &Validator{allowedTables: allowed}
}

// Validate screens a query string. Every statement must independently pass
// both the verb deny-list and the table allow-list. On success the query may
// be submitted to the executor; on failure it must not be.
func (v *Validator) Validate(query string) error {
	for _, stmt := range splitStatements(query) {
		tokens := tokenize(stmt)
		if len(tokens) == 0 {
			continue
		}

		verb := statementVerb(tokens)
		if _, denied := deniedVerbs[verb]; denied {
			return &UnsafeQueryError{Kind: ViolationStatement, Offending: verb}
		}
		for _, tok := range tokens {
			low := strings.ToLower(tok)
			if _, denied := deniedAnywhere[low]; denied {
				return &UnsafeQueryError{Kind: ViolationStatement, Offending: low}
			}
		}

		if err := v.checkTables(tokens); err != nil {
			return err
		}
	}
	return nil
}

// statementVerb returns the lowercase verb in statement position. For a
// plain statement that is the leading token; for a WITH statement it is the
// token after the CTE definition list, so a CTE prefix cannot hide the verb.
func statementVerb(tokens []string) string {
	if !strings.EqualFold(tokens[0], "with") {
		return strings.ToLower(tokens[0])
	}
	depth := 0
	for i := 1; i < len(tokens)-1; i++ {
		switch tokens[i] {
		case "(":
			depth++
		case ")":
			depth--
			// A comma continues the CTE list; anything else starts
			// the main statement.
			if depth == 0 && tokens[i+1] != "," {
				return strings.ToLower(tokens[i+1])
			}
		}
	}
	return strings.ToLower(tokens[0])
}

// checkTables walks tokens and verifies every identifier that follows a
// FROM or JOIN keyword. Names introduced by a WITH clause are legal targets
// for the rest of the statement.
func (v *Validator) checkTables(tokens []string) error {
	ctes := cteNames(tokens)

	for i := 0; i < len(tokens)-1; i++ {
		kw := strings.ToLower(tokens[i])
		if kw != "from" && kw != "join" {
			continue
		}
		for _, ref := range tableRefs(tokens, i+1) {
			name := strings.ToLower(ref)
			// Strip a schema qualifier: main.cases → cases.
			if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
				name = name[dot+1:]
			}
			if _, ok := v.allowedTables[name]; ok {
				continue
			}
			if _, ok := ctes[name]; ok {
				continue
			}
			return &UnsafeQueryError{Kind: ViolationIdentifier, Offending: ref}
		}
	}
	return nil
}

// tableRefs collects the identifiers of one FROM/JOIN clause starting at
// start: the first identifier, plus comma-separated follow-ups. Quoted names
// in any dialect's quoting style count as identifiers. Subqueries open with
// a parenthesis and are validated by their own FROM token.
func tableRefs(tokens []string, start int) []string {
	var refs []string
	expectName := true
	for i := start; i < len(tokens); i++ {
		tok := tokens[i]
		if expectName {
			if tok == "(" {
				return refs // subquery; inner FROM handled separately
			}
			if name, ok := unquoteIdent(tok); ok {
				refs = append(refs, name)
			} else if isIdentifier(tok) {
				refs = append(refs, tok)
			}
			expectName = false
			continue
		}
		if tok == "," {
			expectName = true
			continue
		}
		// An alias keeps the clause open; anything else ends it.
		if strings.EqualFold(tok, "as") || isIdentifier(tok) {
			continue
		}
		if _, ok := unquoteIdent(tok); ok {
			continue
		}
		return refs
	}
	return refs
}

// unquoteIdent strips identifier quoting from a token: "name" and 'name'
// (SQLite), `name` (MySQL), [name] (SQL Server). The closing delimiter is
// optional so an unterminated quoted name is still screened.
func unquoteIdent(tok string) (string, bool) {
	if tok == "" {
		return "", false
	}
	var closing byte
	switch tok[0] {
	case '"':
		closing = '"'
	case '\'':
		closing = '\''
	case '`':
		closing = '`'
	case '[':
		closing = ']'
	default:
		return "", false
	}
	inner := tok[1:]
	if len(inner) > 0 && inner[len(inner)-1] == closing {
		inner = inner[:len(inner)-1]
	}
	return inner, true
}

// cteNames returns the set of names defined in a WITH clause, lowercase.
// Only names in the definition list count; an AS inside a CTE body or in the
// main statement must not widen the allow-list.
func cteNames(tokens []string) map[string]struct{} {
	names := make(map[string]struct{})
	if len(tokens) == 0 || !strings.EqualFold(tokens[0], "with") {
		return names
	}
	// Pattern: WITH name AS ( ... ) [, name AS ( ... )]*
	depth := 0
	for i := 1; i < len(tokens)-1; i++ {
		switch tokens[i] {
		case "(":
			depth++
			continue
		case ")":
			depth--
			if depth == 0 && tokens[i+1] != "," {
				return names // main statement begins
			}
			continue
		}
		if depth != 0 {
			continue
		}
		name := tokens[i]
		if unquoted, ok := unquoteIdent(name); ok {
			name = unquoted
		} else if !isIdentifier(name) {
			continue
		}
		if strings.EqualFold(tokens[i+1], "as") {
			names[strings.ToLower(name)] = struct{}{}
		}
	}
	return names
}

// splitStatements splits a query on statement terminators, ignoring
// semicolons inside string literals, and strips comments from each piece.
func splitStatements(query string) []string {
	var stmts []string
	var b strings.Builder
	inString := byte(0)

	stripped := stripComments(query)
	for i := 0; i < len(stripped); i++ {
		ch := stripped[i]
		switch {
		case inString != 0:
			b.WriteByte(ch)
			if ch == inString {
				inString = 0
			}
		case ch == '\'' || ch == '"':
			inString = ch
			b.WriteByte(ch)
		case ch == ';':
			stmts = append(stmts, b.String())
			b.Reset()
		default:
			b.WriteByte(ch)
		}
	}
	stmts = append(stmts, b.String())

	out := stmts[:0]
	for _, s := range stmts {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripComments removes -- line comments and /* */ block comments.
// Comment markers inside string literals are preserved.
func stripComments(s string) string {
	var b strings.Builder
	inString := byte(0)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inString != 0:
			b.WriteByte(ch)
			if ch == inString {
				inString = 0
			}
		case ch == '\'' || ch == '"':
			inString = ch
			b.WriteByte(ch)
		case ch == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte('\n')
		case ch == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++ // consume the trailing '/'
			b.WriteByte(' ')
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// tokenize splits a statement into identifiers, numbers, quoted names or
// string literals (delimiters kept) and single-character punctuation. Good
// enough for verb and table screening; this is a firewall, not a SQL parser.
func tokenize(stmt string) []string {
	var tokens []string
	i := 0
	for i < len(stmt) {
		ch := stmt[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '\'' || ch == '"' || ch == '`' || ch == '[':
			quote := ch
			if quote == '[' {
				quote = ']'
			}
			j := i + 1
			for j < len(stmt) && stmt[j] != quote {
				j++
			}
			tokens = append(tokens, stmt[i:min(j+1, len(stmt))])
			i = j + 1
		case isIdentChar(ch):
			j := i
			for j < len(stmt) && (isIdentChar(stmt[j]) || stmt[j] == '.') {
				j++
			}
			tokens = append(tokens, stmt[i:j])
			i = j
		default:
			tokens = append(tokens, string(ch))
			i++
		}
	}
	return tokens
}

func isIdentChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// isIdentifier reports whether tok starts like a SQL identifier.
func isIdentifier(tok string) bool {
	if tok == "" {
		return false
	}
	b := tok[0]
	if b >= '0' && b <= '9' {
		return false
	}
	if !isIdentChar(b) {
		return false
	}
	// Keywords that can follow FROM/JOIN without being table names.
	switch strings.ToLower(tok) {
	case "select", "lateral", "unnest", "values", "as", "on", "using",
		"where", "group", "order", "having", "limit", "inner", "outer",
		"left", "right", "full", "cross", "natural", "join", "union",
		"intersect", "except", "window", "qualify":
		return false
	}
	return true
}
