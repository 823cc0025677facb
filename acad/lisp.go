package acad

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NormalizePath converts a path to the forward-slash form AutoLISP string
// literals accept without extra escaping.
func NormalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return strings.ReplaceAll(abs, "\\", "/")
}

// QuoteString escapes backslashes and quotes for an AutoLISP string literal.
func QuoteString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, `"`, `\"`)
}

// LoadCommand builds the expression that loads a LISP file.
func LoadCommand(path string) string {
	return fmt.Sprintf("(load \"%s\")", QuoteString(NormalizePath(path)))
}

// Script wraps a raw LISP expression with start/end prompt markers so the
// resulting transcript and last-prompt output is unambiguously delimited.
// Multiple lines are submitted in one command send.
func Script(expr, markerID string) string {
	return strings.Join([]string{
		fmt.Sprintf(`(prompt "\n[MCP:LISP id=%s start]")`, markerID),
		"(princ)",
		expr,
		fmt.Sprintf(`(prompt "\n[MCP:LISP id=%s end]")`, markerID),
		"(princ)",
	}, "\n")
}
