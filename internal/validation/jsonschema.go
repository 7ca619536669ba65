package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/flowgraph/pkg/schema"
)

const flowSchemaURL = "https://flowgraph.dev/schemas/flow.json"

// flowSchemaJSON is the JSON Schema of the flow tree. It covers shape rules
// the typed model cannot express; per-kind rules live in semantic.go.
const flowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowgraph.dev/schemas/flow.json",
  "type": "object",
  "required": ["steps"],
  "properties": {
    "name": { "type": "string" },
    "description": { "type": "string" },
    "suite": { "type": "string" },
    "tags": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 },
      "uniqueItems": true
    },
    "env": { "type": "object" },
    "schedule": { "type": "string" },
    "setup": { "$ref": "#/$defs/steps" },
    "steps": { "$ref": "#/$defs/steps" },
    "teardown": { "$ref": "#/$defs/steps" }
  },
  "$defs": {
    "steps": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/step" }
    },
    "step": {
      "type": "object",
      "required": ["id", "action"],
      "properties": {
        "id": { "type": "string" },
        "action": { "type": "string" },
        "name": { "type": "string" },
        "description": { "type": "string" },
        "config": { "type": "object" },
        "assert": {
          "type": "array",
          "items": { "type": "string" }
        },
        "output": {
          "type": "object",
          "propertyNames": { "minLength": 1 },
          "additionalProperties": { "type": "string", "minLength": 1 }
        },
        "retry": { "$ref": "#/$defs/retry" },
        "timeout": { "type": "string" },
        "then": { "$ref": "#/$defs/steps" },
        "else": { "$ref": "#/$defs/steps" },
        "body": { "$ref": "#/$defs/steps" }
      }
    },
    "retry": {
      "type": "object",
      "required": ["max_attempts"],
      "properties": {
        "max_attempts": {
          "type": "integer",
          "minimum": 0,
          "maximum": 100
        },
        "delay": { "type": "string" },
        "backoff": {
          "type": "string",
          "enum": ["constant", "linear", "exponential"]
        }
      },
      "additionalProperties": false
    }
  }
}`

// StructuralValidator checks a flow tree against the flow JSON Schema
// (Draft 2020-12). It is safe for concurrent use.
type StructuralValidator struct {
	flowSchema *jsonschema.Schema
}

// NewStructuralValidator compiles the flow schema.
func NewStructuralValidator() (*StructuralValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(flowSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal flow schema: %w", err)
	}
	if err := c.AddResource(flowSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add flow schema resource: %w", err)
	}

	compiled, err := c.Compile(flowSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile flow schema: %w", err)
	}

	return &StructuralValidator{flowSchema: compiled}, nil
}

// Validate reports every schema violation as an error issue. The issue's
// Field is the JSON pointer of the offending value and, when the pointer
// falls inside a step, StepID names that step.
func (v *StructuralValidator) Validate(def *schema.FlowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	doc, err := toJSONValue(def)
	if err != nil {
		result.AddError("", "", schema.IssueSchema, "flow cannot be serialized: "+err.Error())
		return result
	}

	err = v.flowSchema.Validate(doc)
	if err == nil {
		return result
	}

	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		result.AddError("", "", schema.IssueSchema, err.Error())
		return result
	}
	for _, leaf := range collectViolations(verr) {
		pointer := "/" + strings.Join(leaf.InstanceLocation, "/")
		result.AddError(stepAtLocation(def, leaf.InstanceLocation), pointer, schema.IssueSchema,
			fmt.Sprintf("%s: %s", pointer, leaf.Error()))
	}
	return result
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

// collectViolations walks a ValidationError tree and returns its leaves.
func collectViolations(verr *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(verr.Causes) == 0 {
		return []*jsonschema.ValidationError{verr}
	}

	var leaves []*jsonschema.ValidationError
	for _, cause := range verr.Causes {
		leaves = append(leaves, collectViolations(cause)...)
	}
	return leaves
}

// stepAtLocation resolves a JSON pointer such as /steps/1/then/0/retry to
// the id of the innermost step it passes through.
func stepAtLocation(def *schema.FlowDefinition, loc []string) string {
	if def == nil || len(loc) < 2 {
		return ""
	}

	var steps []schema.Step
	switch loc[0] {
	case "setup":
		steps = def.Setup
	case "steps":
		steps = def.Steps
	case "teardown":
		steps = def.Teardown
	default:
		return ""
	}

	id := ""
	for i := 1; i < len(loc); i += 2 {
		idx, err := strconv.Atoi(loc[i])
		if err != nil || idx < 0 || idx >= len(steps) {
			break
		}
		step := &steps[idx]
		id = step.ID

		if i+1 >= len(loc) {
			break
		}
		switch loc[i+1] {
		case "then":
			steps = step.Then
		case "else":
			steps = step.Else
		case "body":
			steps = step.Body
		default:
			return id
		}
	}
	return id
}
