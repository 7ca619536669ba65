// Package expressions checks the syntax of the expressions embedded in flow
// steps: assertions, conditions, loop sources and output extraction paths.
//
// Nothing here evaluates an expression. Checks are either a cheap structural
// heuristic (Balanced) or a real parse with the dialect's own library.
package expressions

import (
	"fmt"
	"strings"
)

// Checker verifies that an expression is syntactically valid in one dialect.
type Checker interface {
	Name() string
	Check(expression string) error
}

// Dialect names an expression language.
type Dialect string

const (
	DialectExpr Dialect = "expr"
	DialectCEL  Dialect = "cel"
	DialectJQ   Dialect = "jq"
)

// ParseDialect maps the `engine` key of a step config to a Dialect. An empty
// value selects expr, the default language of assertions and conditions.
func ParseDialect(s string) (Dialect, bool) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case "", DialectExpr:
		return DialectExpr, true
	case DialectCEL:
		return DialectCEL, true
	case DialectJQ:
		return DialectJQ, true
	}
	return DialectExpr, false
}

// Set holds one checker per dialect. Safe for concurrent use.
type Set struct {
	expr *ExprChecker
	cel  *CELChecker
	jq   *JQChecker
}

// NewSet creates checkers for every dialect.
func NewSet() (*Set, error) {
	celChecker, err := NewCELChecker()
	if err != nil {
		return nil, err
	}
	return &Set{
		expr: NewExprChecker(),
		cel:  celChecker,
		jq:   NewJQChecker(),
	}, nil
}

// For returns the checker of the given dialect. Unknown dialects get expr.
func (s *Set) For(d Dialect) Checker {
	switch d {
	case DialectCEL:
		return s.cel
	case DialectJQ:
		return s.jq
	default:
		return s.expr
	}
}

// IsTemplated reports whether the expression still contains template
// placeholders that are substituted before evaluation. Such expressions
// cannot be parsed as written.
func IsTemplated(expression string) bool {
	return strings.Contains(expression, "{{") || strings.Contains(expression, "${")
}

// Balanced checks that brackets, braces and parentheses nest correctly and
// that every quoted string is terminated. Bracket characters inside quotes
// are ignored.
func Balanced(expression string) error {
	var stack []rune
	var quote rune
	escaped := false

	for i, r := range expression {
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}

		switch r {
		case '"', '\'', '`':
			quote = r
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != opening(r) {
				return fmt.Errorf("unexpected %q at offset %d", r, i)
			}
			stack = stack[:len(stack)-1]
		}
	}

	if quote != 0 {
		return fmt.Errorf("unterminated %c-quoted string", quote)
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}

func opening(closer rune) rune {
	switch closer {
	case ')':
		return '('
	case ']':
		return '['
	default:
		return '{'
	}
}
