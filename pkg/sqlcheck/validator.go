// Package sqlcheck validates generated SQL before it is cached or handed
// to the downstream executor. Execution itself is out of scope; this is a
// safety screen, not a parser.
package sqlcheck

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

var (
	// ErrEmptySQL indicates generation returned no usable SQL.
	ErrEmptySQL = errors.New("generated SQL is empty")
	// ErrMultipleStatements indicates the SQL contains multiple statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed")
	// ErrNotReadOnly indicates the SQL is not a read-only query.
	ErrNotReadOnly = errors.New("only SELECT/WITH queries are allowed")
)

// codeFencePattern strips markdown fencing that models sometimes wrap
// around generated SQL.
var codeFencePattern = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")

// forbiddenLeadingKeywords are statement kinds the engine never emits
// downstream.
var forbiddenLeadingKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"truncate", "grant", "revoke", "merge", "call", "exec",
}

// Result contains the normalized SQL and any validation error.
type Result struct {
	NormalizedSQL string
	Error         error
	Fingerprint   string // libinjection fingerprint when a pattern matched
}

// Valid reports whether validation passed.
func (r Result) Valid() bool {
	return r.Error == nil
}

// Validate normalizes generated SQL and screens it:
// 1. strip markdown fencing and trailing semicolon
// 2. reject empty output and multiple statements
// 3. reject anything that is not a read-only SELECT/WITH query
// 4. screen string literals for injection-shaped content
func Validate(sql string) Result {
	normalized := Normalize(sql)
	if normalized == "" {
		return Result{Error: ErrEmptySQL}
	}

	if hasSemicolonOutsideStrings(normalized) {
		return Result{NormalizedSQL: normalized, Error: ErrMultipleStatements}
	}

	lower := strings.ToLower(normalized)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		for _, kw := range forbiddenLeadingKeywords {
			if strings.HasPrefix(lower, kw) {
				return Result{NormalizedSQL: normalized, Error: fmt.Errorf("%w: statement starts with %q", ErrNotReadOnly, kw)}
			}
		}
		return Result{NormalizedSQL: normalized, Error: ErrNotReadOnly}
	}

	if fp := checkLiteralsForInjection(normalized); fp != "" {
		return Result{
			NormalizedSQL: normalized,
			Error:         fmt.Errorf("string literal failed injection screen (fingerprint %s)", fp),
			Fingerprint:   fp,
		}
	}

	return Result{NormalizedSQL: normalized}
}

// Normalize strips markdown code fences, surrounding whitespace and a
// single trailing semicolon.
func Normalize(sql string) string {
	sql = strings.TrimSpace(sql)
	if m := codeFencePattern.FindStringSubmatch(sql); m != nil {
		sql = strings.TrimSpace(m[1])
	}
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}

// checkLiteralsForInjection runs libinjection over each single-quoted
// literal. Generated SQL embeds question-derived values as literals, so
// this is where injection-shaped content would surface.
func checkLiteralsForInjection(sql string) string {
	for _, literal := range extractStringLiterals(sql) {
		if isSQLi, fingerprint := libinjection.IsSQLi(literal); isSQLi {
			return string(fingerprint)
		}
	}
	return ""
}

// extractStringLiterals returns the contents of single-quoted literals,
// honoring '' escapes.
func extractStringLiterals(sql string) []string {
	var literals []string
	var current strings.Builder
	inString := false

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if !inString {
			if ch == '\'' {
				inString = true
				current.Reset()
			}
			continue
		}
		if ch == '\'' {
			// Doubled quote is an escaped quote inside the literal.
			if i+1 < len(runes) && runes[i+1] == '\'' {
				current.WriteRune('\'')
				i++
				continue
			}
			inString = false
			if current.Len() > 0 {
				literals = append(literals, current.String())
			}
			continue
		}
		current.WriteRune(ch)
	}
	return literals
}

// hasSemicolonOutsideStrings returns true if the SQL contains any
// semicolon outside of string literals.
func hasSemicolonOutsideStrings(sql string) bool {
	inString := false
	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if inString {
			if ch == '\'' {
				if i+1 < len(runes) && runes[i+1] == '\'' {
					i++
					continue
				}
				inString = false
			}
			continue
		}
		switch ch {
		case ';':
			return true
		case '\'':
			inString = true
		}
	}
	return false
}
