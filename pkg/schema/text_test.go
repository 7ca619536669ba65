package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wrappedFlowYAML = `
flow:
  name: Order API
  tags: [smoke]
  setup:
    - id: seed
      action: database_query
      config:
        query: INSERT INTO orders VALUES (1)
  steps:
    - id: create
      action: http_request
      name: Create order
      config:
        method: POST
        url: http://localhost:8080/orders
      assert:
        - status == 201
      output:
        order_id: $.body.id
      retry:
        max_attempts: 3
        delay: 1s
      timeout: 30s
    - id: wait
      action: wait_for
      config:
        condition: status == "ready"
`

func TestParseYAML_Wrapped(t *testing.T) {
	def, err := ParseYAML([]byte(wrappedFlowYAML))
	require.NoError(t, err)

	assert.Equal(t, "Order API", def.Name)
	assert.Equal(t, []string{"smoke"}, def.Tags)
	require.Len(t, def.Setup, 1)
	require.Len(t, def.Steps, 2)

	create := def.Steps[0]
	assert.Equal(t, ActionHTTPRequest, create.Action)
	assert.Equal(t, "POST", create.Config["method"])
	assert.Equal(t, []string{"status == 201"}, create.Assert)
	assert.Equal(t, "$.body.id", create.Output["order_id"])
	require.NotNil(t, create.Retry)
	assert.Equal(t, 3, create.Retry.MaxAttempts)
	assert.Equal(t, "30s", create.Timeout)

	assert.Equal(t, ActionWaitUntil, def.Steps[1].Action, "legacy alias is normalized")
}

func TestParseYAML_Bare(t *testing.T) {
	def, err := ParseYAML([]byte(`
name: bare
steps:
  - id: a
    action: log
    config: {message: hi}
`))
	require.NoError(t, err)
	assert.Equal(t, "bare", def.Name)
	require.Len(t, def.Steps, 1)
	assert.Equal(t, ActionLog, def.Steps[0].Action)
}

func TestParseYAML_Invalid(t *testing.T) {
	_, err := ParseYAML([]byte("steps: [unclosed"))
	require.Error(t, err)

	fe, ok := err.(*FlowError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeParse, fe.Code)
}

func TestParseYAML_UnknownActionKeptForValidation(t *testing.T) {
	def, err := ParseYAML([]byte("name: x\nsteps:\n  - id: a\n    action: teleport\n"))
	require.NoError(t, err)
	assert.Equal(t, ActionKind("teleport"), def.Steps[0].Action)
}

func TestYAMLRoundTrip(t *testing.T) {
	def, err := ParseYAML([]byte(wrappedFlowYAML))
	require.NoError(t, err)

	out, err := ToYAML(def)
	require.NoError(t, err)

	again, err := ParseYAML(out)
	require.NoError(t, err)
	assert.Equal(t, def, again)
}

func TestYAMLRoundTrip_NestedBranches(t *testing.T) {
	def := nestedFlow()
	out, err := ToYAML(def)
	require.NoError(t, err)
	assert.Contains(t, string(out), "then:")
	assert.Contains(t, string(out), "body:")

	again, err := ParseYAML(out)
	require.NoError(t, err)
	assert.Equal(t, def, again)
}

func TestParseJSON(t *testing.T) {
	def, err := ParseJSON([]byte(`{"name":"j","steps":[{"id":"a","action":"wait_for"}]}`))
	require.NoError(t, err)
	assert.Equal(t, ActionWaitUntil, def.Steps[0].Action)

	_, err = ParseJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestParseGraphJSON(t *testing.T) {
	g, err := ParseGraphJSON([]byte(`{
		"nodes":[{"id":"a","type":"flowNode","position":{"x":1,"y":2},"data":{"section":"main"}}],
		"edges":[{"id":"e","source":"a","target":"b","sourceHandle":"then"}]}`))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, NodeKindFlow, g.Nodes[0].Kind)
	assert.Equal(t, Position{X: 1, Y: 2}, g.Nodes[0].Position)
	assert.Equal(t, HandleThen, g.Edges[0].SourceHandle)
}
