// Package sqlguard inspects candidate SQL before it is handed to the tool
// host. It is policy, not a parser: classification is by leading keyword and
// statement-separator scanning, and it rejects on ambiguity.
package sqlguard

import (
	"fmt"
	"strings"
)

type Mode string

const (
	ModeReadOnly  Mode = "read-only"
	ModeReadWrite Mode = "read-write"
)

var (
	readOnlyKeywords  = []string{"SELECT", "WITH"}
	readWriteKeywords = []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE"}
)

// ValidationError reports why a candidate statement was rejected. Reason is
// safe to echo back into a retried generation prompt.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid statement: " + e.Reason
}

// Statement is a candidate that passed validation, with trailing statement
// separators stripped.
type Statement struct {
	Text string
}

// Validate checks candidate against the allowlist for mode. Validation is
// idempotent: validating a returned Statement's Text yields the same text.
func Validate(candidate string, mode Mode) (Statement, error) {
	text := strings.TrimSpace(candidate)
	if text == "" {
		return Statement{}, &ValidationError{Reason: "statement is empty"}
	}

	text = stripTrailingSeparators(text)
	if text == "" {
		return Statement{}, &ValidationError{Reason: "statement is empty"}
	}
	if strings.ContainsRune(text, ';') {
		return Statement{}, &ValidationError{Reason: "multiple SQL statements are not allowed; submit exactly one statement"}
	}

	keyword := leadingKeyword(text)
	if keyword == "" {
		return Statement{}, &ValidationError{Reason: "text does not begin with a SQL keyword"}
	}
	for _, allowed := range allowlist(mode) {
		if keyword == allowed {
			return Statement{Text: text}, nil
		}
	}
	return Statement{}, &ValidationError{
		Reason: fmt.Sprintf("statement type %s is not allowed in %s mode (allowed: %s)",
			keyword, mode, strings.Join(allowlist(mode), ", ")),
	}
}

// ModeFor maps the allow-writes configuration flag to a validation mode.
func ModeFor(allowWrites bool) Mode {
	if allowWrites {
		return ModeReadWrite
	}
	return ModeReadOnly
}

func allowlist(mode Mode) []string {
	if mode == ModeReadWrite {
		return readWriteKeywords
	}
	return readOnlyKeywords
}

func leadingKeyword(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	word := strings.ToUpper(fields[0])
	for _, r := range word {
		if (r < 'A' || r > 'Z') && r != '_' {
			return ""
		}
	}
	return word
}

func stripTrailingSeparators(text string) string {
	trimmed := strings.TrimSpace(text)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
