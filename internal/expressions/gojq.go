package expressions

import (
	"strings"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/rendis/flowgraph/pkg/schema"
)

// JQChecker parses and compiles jq programs with gojq. It covers transform
// expressions and, through JSONPathToJQ, output extraction paths.
// Thread-safe: results are cached per expression.
type JQChecker struct {
	mu    sync.RWMutex
	cache map[string]error
}

// NewJQChecker creates a new jq syntax checker.
func NewJQChecker() *JQChecker {
	return &JQChecker{
		cache: make(map[string]error),
	}
}

// Name returns the dialect identifier.
func (c *JQChecker) Name() string {
	return string(DialectJQ)
}

// Check parses and compiles the program and reports the first error.
// Compilation catches references to undefined functions.
func (c *JQChecker) Check(expression string) error {
	if expression == "" {
		return schema.NewError(schema.ErrCodeValidation, "empty jq expression")
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

	c.cache[expression] = compileJQ(expression)
	return c.cache[expression]
}

func compileJQ(expression string) error {
	query, err := gojq.Parse(expression)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"jq parse error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	if _, err := gojq.Compile(query,
		gojq.WithEnvironLoader(func() []string { return nil }),
	); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"jq compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	return nil
}

// JSONPathToJQ translates the JSONPath subset used by step outputs
// ($.a.b, $.a[0], $.a[*].b, $['a']) into the equivalent jq path. The second
// result is false for paths outside that subset, such as recursive descent
// or filters.
func JSONPathToJQ(path string) (string, bool) {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "$") {
		return "", false
	}
	rest := path[1:]
	if strings.Contains(rest, "..") || strings.Contains(rest, "?(") {
		return "", false
	}

	rest = strings.ReplaceAll(rest, "[*]", "[]")
	rest = strings.ReplaceAll(rest, "['", `["`)
	rest = strings.ReplaceAll(rest, "']", `"]`)

	switch {
	case rest == "":
		return ".", true
	case strings.HasPrefix(rest, "."):
		return rest, true
	case strings.HasPrefix(rest, "["):
		return "." + rest, true
	default:
		return "", false
	}
}
