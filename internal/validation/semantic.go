package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/flowgraph/internal/expressions"
	"github.com/rendis/flowgraph/pkg/schema"
)

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// validateSteps applies the per-kind field rules to every step.
func (v *Validator) validateSteps(def *schema.FlowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	walkTree(def, func(sv stepVisit) {
		v.validateStep(sv.step, sv.path, result)
	})
	return result
}

func (v *Validator) validateStep(step *schema.Step, path string, result *schema.ValidationResult) {
	spec := schema.Spec(step.Action)
	if spec.Category == schema.CategoryUnknown {
		return // reported by the tree stage
	}

	cfg := step.Config
	for _, key := range spec.Required {
		if isBlank(cfg[key]) {
			result.AddError(step.ID, "config."+key, schema.IssueMissingField,
				fmt.Sprintf("%s requires config.%s", step.Action, key)).Path = path
		}
	}

	dialect := v.dialect(step, path, result)
	for i, a := range step.Assert {
		v.checkExpression(step, fmt.Sprintf("assert[%d]", i), a, dialect, result)
	}
	for name, p := range step.Output {
		v.checkOutput(step, name, p, result)
	}

	switch step.Action {
	case schema.ActionHTTPRequest:
		v.checkHTTP(step, result)
	case schema.ActionWebSocket:
		checkURLField(step, "url", result, "ws", "wss")
	case schema.ActionBrowser:
		checkURLField(step, "url", result, "http", "https")
	case schema.ActionGRPC:
		if addr, ok := configString(cfg, "address"); ok && addr != "" && !expressions.IsTemplated(addr) && !strings.Contains(addr, ":") {
			result.AddWarning(step.ID, "config.address", schema.IssueInvalidField,
				fmt.Sprintf("grpc address %q has no port", addr))
		}
	case schema.ActionKafkaProduce, schema.ActionKafkaConsume:
		switch cfg["brokers"].(type) {
		case nil, string, []any, []string:
		default:
			result.AddError(step.ID, "config.brokers", schema.IssueInvalidField,
				"brokers must be a string or a list of host:port entries")
		}
	case schema.ActionDelay:
		checkDurationField(step, "duration", result)
	case schema.ActionAssert:
		if len(step.Assert) == 0 {
			result.AddWarning(step.ID, "assert", schema.IssueMissingField, "assert step has no assertions")
		}
	case schema.ActionTransform:
		if e, ok := configString(cfg, "expression"); ok {
			v.checkExpression(step, "config.expression", e, expressions.DialectJQ, result)
		}
	case schema.ActionCondition:
		if c, ok := configString(cfg, "condition"); ok && c != "" {
			v.checkExpression(step, "config.condition", c, dialect, result)
		}
	case schema.ActionWaitUntil:
		if c, ok := configString(cfg, "condition"); ok && c != "" {
			v.checkExpression(step, "config.condition", c, dialect, result)
		}
		checkDurationField(step, "timeout", result)
		checkDurationField(step, "interval", result)
	case schema.ActionForEach:
		v.checkLoop(step, dialect, result)
	case schema.ActionParallel:
		if _, ok := cfg["steps"].([]any); cfg["steps"] != nil && !ok {
			result.AddError(step.ID, "config.steps", schema.IssueInvalidField, "parallel steps must be a list")
		}
	case schema.ActionMockServerStart:
		if p, ok := cfg["port"]; ok {
			checkPort(step, p, result)
		}
	case schema.ActionContractVerify:
		checkURLField(step, "provider_base_url", result, "http", "https")
	case schema.ActionDatabaseQuery, schema.ActionLog, schema.ActionRunFlow,
		schema.ActionMockServerStop, schema.ActionMockServerConfigure, schema.ActionContractGenerate:
		// Required fields only.
	}
}

// dialect reads the optional `engine` key selecting the expression language
// of the step's assertions and conditions.
func (v *Validator) dialect(step *schema.Step, path string, result *schema.ValidationResult) expressions.Dialect {
	raw, _ := configString(step.Config, "engine")
	d, ok := expressions.ParseDialect(raw)
	if !ok {
		issue := result.AddWarning(step.ID, "config.engine", schema.IssueInvalidField,
			fmt.Sprintf("unknown expression engine %q, falling back to expr", raw))
		issue.Path = path
		issue.Suggestion = "use expr, cel or jq"
	}
	return d
}

// checkExpression applies the bracket-balance heuristic (error) and, in
// strict mode, a real parse in the step's dialect (warning). Templated
// expressions skip the strict parse.
func (v *Validator) checkExpression(step *schema.Step, field, expression string, dialect expressions.Dialect, result *schema.ValidationResult) {
	if strings.TrimSpace(expression) == "" {
		result.AddError(step.ID, field, schema.IssueExpression, "expression is empty")
		return
	}
	if err := expressions.Balanced(expression); err != nil {
		result.AddError(step.ID, field, schema.IssueExpression,
			fmt.Sprintf("malformed expression %q: %v", expression, err))
		return
	}
	if !v.strict || expressions.IsTemplated(expression) {
		return
	}
	if err := v.checkers.For(dialect).Check(expression); err != nil {
		result.AddWarning(step.ID, field, schema.IssueExpression, issueMessage(err))
	}
}

func (v *Validator) checkOutput(step *schema.Step, name, path string, result *schema.ValidationResult) {
	field := "output." + name
	if !identifierPattern.MatchString(name) {
		result.AddWarning(step.ID, field, schema.IssueInvalidField,
			fmt.Sprintf("output variable %q is not a valid identifier", name))
	}
	if path == "" {
		return // reported by the schema stage
	}
	if expressions.IsTemplated(path) {
		return
	}
	if err := checkJSONPath(path); err != nil {
		issue := result.AddError(step.ID, field, schema.IssueInvalidField, err.Error())
		issue.Suggestion = "extraction paths look like $.body.id"
		return
	}
	if !v.strict {
		return
	}
	if q, ok := expressions.JSONPathToJQ(path); ok {
		if err := v.checkers.For(expressions.DialectJQ).Check(q); err != nil {
			result.AddWarning(step.ID, field, schema.IssueInvalidField, issueMessage(err))
		}
	}
}

func (v *Validator) checkHTTP(step *schema.Step, result *schema.ValidationResult) {
	cfg := step.Config
	if m, ok := configString(cfg, "method"); ok && m != "" && !httpMethods[strings.ToUpper(m)] && !expressions.IsTemplated(m) {
		issue := result.AddError(step.ID, "config.method", schema.IssueInvalidField,
			fmt.Sprintf("unsupported HTTP method %q", m))
		issue.Suggestion = "use GET, POST, PUT, PATCH, DELETE, HEAD or OPTIONS"
	}
	checkURLField(step, "url", result, "http", "https")

	if h, ok := cfg["headers"]; ok && h != nil {
		if _, isMap := h.(map[string]any); !isMap {
			result.AddWarning(step.ID, "config.headers", schema.IssueInvalidField, "headers should be a key/value map")
		}
	}
	if body, ok := configString(cfg, "body"); ok {
		trimmed := strings.TrimSpace(body)
		if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) &&
			!expressions.IsTemplated(trimmed) && !json.Valid([]byte(trimmed)) {
			result.AddWarning(step.ID, "config.body", schema.IssueInvalidField, "body looks like JSON but does not parse")
		}
	}
	if len(step.Assert) == 0 {
		issue := result.AddInfo(step.ID, "assert", schema.IssueSuggestion, "request has no assertions")
		issue.Suggestion = "assert on the response, e.g. status == 200"
	}
}

func (v *Validator) checkLoop(step *schema.Step, dialect expressions.Dialect, result *schema.ValidationResult) {
	switch items := step.Config["items"].(type) {
	case string:
		if items != "" && !expressions.IsTemplated(items) {
			v.checkExpression(step, "config.items", items, dialect, result)
		}
	case []any, nil:
	default:
		result.AddError(step.ID, "config.items", schema.IssueInvalidField,
			"items must be a list or an expression producing one")
	}
	if name, ok := configString(step.Config, "item_name"); ok && name != "" && !identifierPattern.MatchString(name) {
		result.AddWarning(step.ID, "config.item_name", schema.IssueInvalidField,
			fmt.Sprintf("item_name %q is not a valid identifier", name))
	}
}

func checkURLField(step *schema.Step, key string, result *schema.ValidationResult, schemes ...string) {
	raw, ok := step.Config[key]
	if !ok || isBlank(raw) {
		return // missing is reported with the required fields
	}
	s, isString := raw.(string)
	if !isString {
		result.AddError(step.ID, "config."+key, schema.IssueInvalidField, key+" must be a string")
		return
	}
	if err := checkURL(s, schemes...); err != nil {
		result.AddError(step.ID, "config."+key, schema.IssueInvalidField, err.Error())
	}
}

func checkDurationField(step *schema.Step, key string, result *schema.ValidationResult) {
	raw, ok := step.Config[key]
	if !ok || raw == nil {
		return
	}
	if err := checkDuration(raw); err != nil {
		result.AddError(step.ID, "config."+key, schema.IssueInvalidField, err.Error())
	}
}

func checkPort(step *schema.Step, raw any, result *schema.ValidationResult) {
	var port float64
	switch p := raw.(type) {
	case int:
		port = float64(p)
	case int64:
		port = float64(p)
	case float64:
		port = p
	default:
		result.AddError(step.ID, "config.port", schema.IssueInvalidField, "port must be a number")
		return
	}
	if port < 1 || port > 65535 || port != float64(int(port)) {
		result.AddError(step.ID, "config.port", schema.IssueInvalidField,
			fmt.Sprintf("port %v is outside 1-65535", raw))
	}
}

// issueMessage extracts the human part of a structured error.
func issueMessage(err error) string {
	if fe, ok := err.(*schema.FlowError); ok {
		return fe.Message
	}
	return err.Error()
}
