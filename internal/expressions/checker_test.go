package expressions

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgraph/pkg/schema"
)

// --- Interface compliance ---

func TestCheckers_ImplementChecker(t *testing.T) {
	var _ Checker = (*ExprChecker)(nil)
	var _ Checker = (*CELChecker)(nil)
	var _ Checker = (*JQChecker)(nil)
}

// --- Balanced ---

func TestBalanced(t *testing.T) {
	tests := []struct {
		name string
		expr string
		ok   bool
	}{
		{"plain", "status == 200", true},
		{"nested", `len(body.items[0].tags) > 0 && {"a": [1, 2]}.a != nil`, true},
		{"bracket in string", `body.name == "a(b"`, true},
		{"escaped quote", `body.msg == "say \"hi\""`, true},
		{"backtick", "`raw (` == x", true},
		{"unclosed paren", "len(body.items > 0", false},
		{"stray closer", "status == 200)", false},
		{"mismatched", "body[0)", false},
		{"unterminated string", `body.name == "abc`, false},
		{"empty", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Balanced(tc.expr)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestBalanced_Messages(t *testing.T) {
	assert.EqualError(t, Balanced("a)"), `unexpected ')' at offset 1`)
	assert.EqualError(t, Balanced("f(["), `unclosed '['`)
	assert.EqualError(t, Balanced("'x"), "unterminated '-quoted string")
}

func TestIsTemplated(t *testing.T) {
	assert.True(t, IsTemplated("{{token}} != nil"))
	assert.True(t, IsTemplated("${count} > 1"))
	assert.False(t, IsTemplated("count > 1"))
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"": DialectExpr, "expr": DialectExpr, "CEL": DialectCEL, " jq ": DialectJQ} {
		got, ok := ParseDialect(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseDialect("lua")
	assert.False(t, ok)
}

// --- Expr ---

func TestExprChecker(t *testing.T) {
	c := NewExprChecker()
	assert.Equal(t, "expr", c.Name())

	for _, ok := range []string{
		"status == 200",
		`body.status in ["ok", "done"]`,
		"len(body.items) > 0 && headers.token != nil",
		"response.time < 500",
	} {
		assert.NoError(t, c.Check(ok), ok)
	}

	for _, bad := range []string{"status ==", "== 200", "len(body"} {
		assert.Error(t, c.Check(bad), bad)
	}
}

func TestExprChecker_ErrorIsStructured(t *testing.T) {
	err := NewExprChecker().Check("status ==")
	require.Error(t, err)

	var fe *schema.FlowError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)
	assert.Equal(t, "status ==", fe.Details["expression"])
	assert.NotNil(t, fe.Cause)
}

func TestExprChecker_Empty(t *testing.T) {
	assert.Error(t, NewExprChecker().Check(""))
}

func TestExprChecker_CachesResults(t *testing.T) {
	c := NewExprChecker()
	first := c.Check("status ==")
	second := c.Check("status ==")
	assert.Same(t, first, second)
	assert.Len(t, c.cache, 1)
}

func TestExprChecker_Concurrent(t *testing.T) {
	c := NewExprChecker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Check("status == 200"))
		}()
	}
	wg.Wait()
}

// --- CEL ---

func TestCELChecker(t *testing.T) {
	c, err := NewCELChecker()
	require.NoError(t, err)
	assert.Equal(t, "cel", c.Name())

	for _, ok := range []string{
		"status == 200",
		"body.items.size() > 0",
		`has(body.id) && body.id.startsWith("ord_")`,
	} {
		assert.NoError(t, c.Check(ok), ok)
	}

	for _, bad := range []string{"status ==", "body.items.size(", "a ? b"} {
		assert.Error(t, c.Check(bad), bad)
	}
	assert.Error(t, c.Check(""))
}

// --- jq ---

func TestJQChecker(t *testing.T) {
	c := NewJQChecker()
	assert.Equal(t, "jq", c.Name())

	for _, ok := range []string{".", ".body.id", ".items[] | select(.active) | .id", "[.items[].price] | add"} {
		assert.NoError(t, c.Check(ok), ok)
	}

	assert.Error(t, c.Check(".items[ | .id"), "parse error")
	assert.Error(t, c.Check("no_such_function(1)"), "compile error")
	assert.Error(t, c.Check(""))
}

func TestJSONPathToJQ(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"$", ".", true},
		{"$.body.id", ".body.id", true},
		{"$.items[0].name", ".items[0].name", true},
		{"$.items[*].id", ".items[].id", true},
		{"$['x-request-id']", `.["x-request-id"]`, true},
		{"$[0]", ".[0]", true},
		{"$..id", "", false},
		{"$.items[?(@.a)]", "", false},
		{"body.id", "", false},
		{"$body", "", false},
	}
	c := NewJQChecker()
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := JSONPathToJQ(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
			if ok {
				assert.NoError(t, c.Check(got))
			}
		})
	}
}

// --- Set ---

func TestSet_For(t *testing.T) {
	s, err := NewSet()
	require.NoError(t, err)

	assert.Equal(t, "expr", s.For(DialectExpr).Name())
	assert.Equal(t, "cel", s.For(DialectCEL).Name())
	assert.Equal(t, "jq", s.For(DialectJQ).Name())
	assert.Equal(t, "expr", s.For("unknown").Name())
}
