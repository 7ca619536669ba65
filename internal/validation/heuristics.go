package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rendis/flowgraph/internal/expressions"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkURL accepts absolute URLs with one of the given schemes. Values that
// still hold template placeholders only need balanced braces.
func checkURL(raw string, schemes ...string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("url is empty")
	}
	if expressions.IsTemplated(raw) {
		return expressions.Balanced(raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url %q does not parse: %v", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url %q must be absolute (scheme://host/...)", raw)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return fmt.Errorf("url %q has scheme %q, expected %s", raw, u.Scheme, strings.Join(schemes, " or "))
}

// checkDuration accepts Go durations ("1m30s"), plain millisecond counts and
// non-negative numbers. Templated strings only need balanced braces.
func checkDuration(v any) error {
	switch d := v.(type) {
	case int:
		if d < 0 {
			return fmt.Errorf("duration %d is negative", d)
		}
		return nil
	case int64:
		if d < 0 {
			return fmt.Errorf("duration %d is negative", d)
		}
		return nil
	case float64:
		if d < 0 {
			return fmt.Errorf("duration %v is negative", d)
		}
		return nil
	case string:
		return checkDurationString(d)
	default:
		return fmt.Errorf("duration must be a string or a number, got %T", v)
	}
}

func checkDurationString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("duration is empty")
	}
	if expressions.IsTemplated(s) {
		return expressions.Balanced(s)
	}
	if _, err := strconv.ParseUint(s, 10, 64); err == nil {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q (use e.g. 500ms, 30s, 1m)", s)
	}
	if d < 0 {
		return fmt.Errorf("duration %q is negative", s)
	}
	return nil
}

// checkJSONPath accepts paths rooted at $ with balanced brackets.
func checkJSONPath(path string) error {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "$") {
		return fmt.Errorf("path %q must start with $", path)
	}
	if err := expressions.Balanced(path); err != nil {
		return fmt.Errorf("path %q: %v", path, err)
	}
	return nil
}

// isBlank reports whether a config value counts as missing.
func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

func configString(cfg map[string]any, key string) (string, bool) {
	s, ok := cfg[key].(string)
	return s, ok
}
