package expressions

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rendis/flowgraph/pkg/schema"
)

// CELChecker parses expressions with Google's Common Expression Language.
// Only syntax is checked: variable names are not known ahead of execution,
// so the expression is parsed but never type-checked.
// Thread-safe: results are cached per expression.
type CELChecker struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]error
}

// NewCELChecker creates a new CEL syntax checker.
func NewCELChecker() (*CELChecker, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &CELChecker{
		env:   env,
		cache: make(map[string]error),
	}, nil
}

// Name returns the dialect identifier.
func (c *CELChecker) Name() string {
	return string(DialectCEL)
}

// Check parses the expression and reports the first syntax error.
func (c *CELChecker) Check(expression string) error {
	if expression == "" {
		return schema.NewError(schema.ErrCodeValidation, "empty CEL expression")
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
	if _, issues := c.env.Parse(expression); issues != nil && issues.Err() != nil {
		result = schema.NewErrorf(schema.ErrCodeValidation,
			"CEL syntax error in %q: %s", expression, issues.Err().Error()).
			WithCause(issues.Err()).
			WithDetails(map[string]any{"expression": expression})
	}

	c.cache[expression] = result
	return result
}

var _ Checker = (*CELChecker)(nil)
