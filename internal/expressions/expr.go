package expressions

import (
	"sync"

	"github.com/expr-lang/expr"

	"github.com/rendis/flowgraph/pkg/schema"
)

// ExprChecker compiles expressions with expr-lang/expr, the language of
// assertions and conditions. Variables are left undeclared so any response
// field name is accepted.
// Thread-safe: results are cached per expression.
type ExprChecker struct {
	mu    sync.RWMutex
	cache map[string]error
}

// NewExprChecker creates a new expr syntax checker.
func NewExprChecker() *ExprChecker {
	return &ExprChecker{
		cache: make(map[string]error),
	}
}

// Name returns the dialect identifier.
func (c *ExprChecker) Name() string {
	return string(DialectExpr)
}

// Check compiles the expression and reports the first syntax error.
func (c *ExprChecker) Check(expression string) error {
	if expression == "" {
		return schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}

	c.mu.RLock()
	if err, ok := c.cache[expression]; ok {
		c.mu.RUnlock()
		return err
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if err, ok := c.cache[expression]; ok {
		return err
	}

	var result error
	if _, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	); err != nil {
		result = schema.NewErrorf(schema.ErrCodeValidation,
			"expr syntax error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	c.cache[expression] = result
	return result
}

var _ Checker = (*ExprChecker)(nil)
