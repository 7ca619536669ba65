package schema

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// flowDocument is the wrapped text form: a top-level `flow:` key.
type flowDocument struct {
	Flow *FlowDefinition `yaml:"flow"`
}

// ParseYAML parses the indented text form of a flow. Both a bare definition
// and one wrapped under a top-level `flow:` key are accepted. Action kinds
// written with a legacy alias are normalized.
func ParseYAML(data []byte) (*FlowDefinition, error) {
	var probe map[string]yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, NewError(ErrCodeParse, "invalid YAML").WithCause(err)
	}

	def := &FlowDefinition{}
	if _, wrapped := probe["flow"]; wrapped {
		doc := flowDocument{Flow: def}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, NewError(ErrCodeParse, "invalid flow document").WithCause(err)
		}
	} else if err := yaml.Unmarshal(data, def); err != nil {
		return nil, NewError(ErrCodeParse, "invalid flow document").WithCause(err)
	}

	normalizeActions(def)
	return def, nil
}

// ToYAML renders the flow in its indented text form.
func ToYAML(def *FlowDefinition) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return nil, NewError(ErrCodeParse, "failed to marshal flow to YAML").WithCause(err)
	}
	if err := enc.Close(); err != nil {
		return nil, NewError(ErrCodeParse, "failed to marshal flow to YAML").WithCause(err)
	}
	return buf.Bytes(), nil
}

// ParseJSON decodes the JSON-serializable tree form.
func ParseJSON(data []byte) (*FlowDefinition, error) {
	def := &FlowDefinition{}
	if err := json.Unmarshal(data, def); err != nil {
		return nil, NewError(ErrCodeParse, "invalid flow JSON").WithCause(err)
	}
	normalizeActions(def)
	return def, nil
}

// ParseGraphJSON decodes a graph interchange document.
func ParseGraphJSON(data []byte) (*Graph, error) {
	g := &Graph{}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, NewError(ErrCodeParse, "invalid graph JSON").WithCause(err)
	}
	return g, nil
}

// normalizeActions rewrites aliased action names to their canonical kind.
// Unknown names are left as written so validation can report them.
func normalizeActions(def *FlowDefinition) {
	Walk(def, func(_ StepPath, step *Step) {
		if k, ok := ParseActionKind(string(step.Action)); ok {
			step.Action = k
		}
	})
}
