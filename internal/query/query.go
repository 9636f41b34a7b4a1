// Package query parses search input into free-text or structured path queries
// and evaluates path expressions against parsed records.
package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuerySyntax is wrapped by every parse failure.
var ErrInvalidQuerySyntax = errors.New("invalid query syntax")

// SyntaxError locates a parse failure within the input.
type SyntaxError struct {
	Input  string
	Pos    int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid query %q at offset %d: %s", e.Input, e.Pos, e.Reason)
}

func (e *SyntaxError) Unwrap() error { return ErrInvalidQuerySyntax }

// Kind distinguishes the two query forms.
type Kind int

const (
	KindText Kind = iota
	KindPath
)

func (k Kind) String() string {
	if k == KindPath {
		return "path"
	}
	return "text"
}

// Query is an immutable parsed search request.
type Query struct {
	Kind Kind
	// Raw is the input as given.
	Raw string
	// Text is the free-text pattern. Empty for path queries.
	Text string
	// Path is set for path queries.
	Path      *Path
	MatchCase bool
}

// Empty reports whether the query would match nothing and should reset a
// search rather than start one.
func (q Query) Empty() bool {
	return q.Kind == KindText && strings.TrimSpace(q.Text) == ""
}

// Parse classifies input: anything starting with '$' after leading spaces is
// a path expression, everything else is a literal free-text pattern.
//
// A '$' input that does not parse and holds none of '.', '[' or '=' is taken
// as text, so "$100" searches for the literal string. A leading "\$" always
// searches for the text after the backslash.
func Parse(input string, matchCase bool) (Query, error) {
	q := Query{Raw: input, MatchCase: matchCase, Kind: KindText, Text: input}
	trimmed := strings.TrimSpace(input)
	switch {
	case strings.HasPrefix(trimmed, `\$`):
		q.Text = strings.Replace(input, `\$`, "$", 1)
		return q, nil
	case !strings.HasPrefix(trimmed, "$"):
		return q, nil
	}

	p, err := ParsePath(input)
	if err != nil {
		if !strings.ContainsAny(trimmed[1:], ".[=") {
			return q, nil
		}
		return Query{}, err
	}
	q.Kind = KindPath
	q.Text = ""
	q.Path = p
	return q, nil
}
