package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgraph/internal/engine"
	"github.com/rendis/flowgraph/internal/layout"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/pkg/schema"
)

// --- Helpers ---

func newTestServer(t *testing.T) *FlowgraphServer {
	t.Helper()
	logger := logging.New(&bytes.Buffer{}, "debug")
	eng, err := engine.New(engine.Config{}, logger)
	require.NoError(t, err)
	s, err := NewFlowgraphServer(FlowgraphServerDeps{Engine: eng, Logger: logger})
	require.NoError(t, err)
	return s
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

// toArg round-trips v through JSON so it arrives the way a client sends it.
func toArg(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func loginFlow() *schema.FlowDefinition {
	return &schema.FlowDefinition{
		Name: "login",
		Steps: []schema.Step{
			{
				ID:     "post_login",
				Action: schema.ActionHTTPRequest,
				Config: map[string]any{"method": "POST", "url": "https://api.example.com/login"},
				Assert: []string{"status == 200"},
			},
			{
				ID:     "check_token",
				Action: schema.ActionCondition,
				Config: map[string]any{"condition": "body.token != ''"},
				Then:   []schema.Step{{ID: "ok", Action: schema.ActionLog, Config: map[string]any{"message": "ok"}}},
			},
		},
	}
}

const loginYAML = `
flow:
  name: login
  steps:
    - id: post_login
      action: http
      config:
        method: POST
        url: https://api.example.com/login
      assert:
        - status == 200
`

func toGraph(t *testing.T, s *FlowgraphServer, def *schema.FlowDefinition) map[string]any {
	t.Helper()
	result, err := s.handleToGraph(context.Background(), buildRequest("flowgraph.to_graph", map[string]any{
		"flow": toArg(t, def),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))
	var g map[string]any
	unmarshalResult(t, result, &g)
	return g
}

// --- to_graph ---

func TestToGraphTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleToGraph(context.Background(), buildRequest("flowgraph.to_graph", map[string]any{
		"flow": toArg(t, loginFlow()),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var g schema.Graph
	unmarshalResult(t, result, &g)
	idx := g.NodeIndex()
	assert.Contains(t, idx, "post_login")
	assert.Contains(t, idx, "check_token")
	assert.Contains(t, idx, "ok")
	assert.Contains(t, idx, schema.MarkerID(schema.SectionMain))
}

func TestToGraphToolFromYAML(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleToGraph(context.Background(), buildRequest("flowgraph.to_graph", map[string]any{
		"yaml":    loginYAML,
		"arrange": true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var g schema.Graph
	unmarshalResult(t, result, &g)
	idx := g.NodeIndex()
	require.Contains(t, idx, "post_login")
	assert.Equal(t, schema.ActionHTTPRequest, g.Nodes[idx["post_login"]].Data.Action)
}

func TestToGraphToolMissingInput(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleToGraph(context.Background(), buildRequest("flowgraph.to_graph", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "flow or yaml")
}

func TestToGraphToolBadYAML(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleToGraph(context.Background(), buildRequest("flowgraph.to_graph", map[string]any{
		"yaml": "steps: [unclosed",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "invalid yaml")
}

// --- to_tree ---

func TestToTreeToolRoundTrip(t *testing.T) {
	s := newTestServer(t)
	def := loginFlow()
	g := toGraph(t, s, def)

	result, err := s.handleToTree(context.Background(), buildRequest("flowgraph.to_tree", map[string]any{
		"graph":    g,
		"previous": toArg(t, def),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out struct {
		Flow   schema.FlowDefinition `json:"flow"`
		Issues []schema.Issue        `json:"issues"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, "login", out.Flow.Name)
	assert.Empty(t, out.Issues)
	require.Len(t, out.Flow.Steps, 2)
	assert.Equal(t, "check_token", out.Flow.Steps[1].ID)
	require.Len(t, out.Flow.Steps[1].Then, 1)
	assert.Equal(t, "ok", out.Flow.Steps[1].Then[0].ID)
}

func TestToTreeToolYAML(t *testing.T) {
	s := newTestServer(t)
	g := toGraph(t, s, loginFlow())

	result, err := s.handleToTree(context.Background(), buildRequest("flowgraph.to_tree", map[string]any{
		"graph":  g,
		"format": "yaml",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	def, err := schema.ParseYAML([]byte(extractText(t, result)))
	require.NoError(t, err)
	assert.Len(t, def.Steps, 2)
}

func TestToTreeToolErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing graph", map[string]any{}, "graph is required"},
		{"bad format", map[string]any{"graph": map[string]any{"nodes": []any{}}, "format": "xml"}, "format must be"},
		{"bad graph", map[string]any{"graph": map[string]any{"nodes": "nope"}}, "invalid graph"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := s.handleToTree(context.Background(), buildRequest("flowgraph.to_tree", tc.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, extractText(t, result), tc.want)
		})
	}
}

// --- layout ---

func TestLayoutTool(t *testing.T) {
	s := newTestServer(t)
	g := toGraph(t, s, loginFlow())

	result, err := s.handleLayout(context.Background(), buildRequest("flowgraph.layout", map[string]any{
		"graph":        g,
		"direction":    "LR",
		"rank_spacing": 200.0,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	var out struct {
		Graph schema.Graph `json:"graph"`
		Box   layout.Box   `json:"bounding_box"`
	}
	unmarshalResult(t, result, &out)

	ranks := layout.Ranks(out.Graph.Nodes, out.Graph.Edges)
	idx := out.Graph.NodeIndex()
	for id, r := range ranks {
		assert.Equal(t, float64(r)*200, out.Graph.Nodes[idx[id]].Position.X, id)
	}
	assert.Equal(t, layout.NodesBoundingBox(out.Graph.Nodes), out.Box)
}

func TestLayoutToolErrors(t *testing.T) {
	s := newTestServer(t)
	g := toGraph(t, s, loginFlow())

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing graph", map[string]any{}, "graph is required"},
		{"bad direction", map[string]any{"graph": g, "direction": "RL"}, "direction must be"},
		{"negative spacing", map[string]any{"graph": g, "node_spacing": -1.0}, "must not be negative"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := s.handleLayout(context.Background(), buildRequest("flowgraph.layout", tc.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, extractText(t, result), tc.want)
		})
	}
}

// --- validate ---

type validateOutput struct {
	Valid    bool           `json:"valid"`
	Errors   int            `json:"errors"`
	Warnings int            `json:"warnings"`
	Issues   []schema.Issue `json:"issues"`
}

func TestValidateToolValidFlow(t *testing.T) {
	s := newTestServer(t)
	def := loginFlow()

	result, err := s.handleValidate(context.Background(), buildRequest("flowgraph.validate", map[string]any{
		"flow":  toArg(t, def),
		"graph": toGraph(t, s, def),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out validateOutput
	unmarshalResult(t, result, &out)
	assert.True(t, out.Valid, "issues: %v", out.Issues)
	assert.Zero(t, out.Errors)
	assert.NotNil(t, out.Issues)
}

func TestValidateToolReportsIssues(t *testing.T) {
	s := newTestServer(t)
	def := loginFlow()
	def.Steps[0].Config = map[string]any{"method": "FETCH"}

	result, err := s.handleValidate(context.Background(), buildRequest("flowgraph.validate", map[string]any{
		"flow": toArg(t, def),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out validateOutput
	unmarshalResult(t, result, &out)
	assert.False(t, out.Valid)
	assert.Positive(t, out.Errors)

	stepIDs := make(map[string]bool)
	for _, is := range out.Issues {
		stepIDs[is.StepID] = true
	}
	assert.True(t, stepIDs["post_login"])
}

func TestValidateToolMissingInput(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleValidate(context.Background(), buildRequest("flowgraph.validate", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- mermaid ---

func TestMermaidTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleMermaid(context.Background(), buildRequest("flowgraph.mermaid", map[string]any{
		"flow": toArg(t, loginFlow()),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := extractText(t, result)
	assert.True(t, strings.HasPrefix(text, "graph TD"))
	assert.Contains(t, text, "%% login")
	assert.Contains(t, text, "check_token -->|then| ok")
}

func TestMermaidToolASCIIWithIssues(t *testing.T) {
	s := newTestServer(t)
	def := loginFlow()
	def.Steps[0].Config = map[string]any{}

	result, err := s.handleMermaid(context.Background(), buildRequest("flowgraph.mermaid", map[string]any{
		"flow":   toArg(t, def),
		"format": "ascii",
		"issues": true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := extractText(t, result)
	assert.Contains(t, text, "=== login ===")
	assert.Contains(t, text, "[ERR]")
}

func TestMermaidToolErrors(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleMermaid(context.Background(), buildRequest("flowgraph.mermaid", map[string]any{
		"flow":   toArg(t, loginFlow()),
		"format": "image",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "format must be")

	result, err = s.handleMermaid(context.Background(), buildRequest("flowgraph.mermaid", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- new_node ---

func TestNewNodeTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleNewNode(context.Background(), buildRequest("flowgraph.new_node", map[string]any{
		"action":  "condition",
		"section": "teardown",
		"x":       40.0,
		"y":       120.0,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var node schema.Node
	unmarshalResult(t, result, &node)
	assert.Regexp(t, `^step_[0-9a-f]{8}$`, node.ID)
	assert.Equal(t, schema.NodeKindCondition, node.Kind)
	assert.Equal(t, schema.SectionTeardown, node.Data.Section)
	assert.Equal(t, schema.Position{X: 40, Y: 120}, node.Position)
	require.NotNil(t, node.Data.Step)
	assert.Equal(t, node.ID, node.Data.Step.ID)
	assert.Contains(t, node.Data.Step.Config, "condition")
}

func TestNewNodeToolAlias(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleNewNode(context.Background(), buildRequest("flowgraph.new_node", map[string]any{
		"action": "wait_for",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var node schema.Node
	unmarshalResult(t, result, &node)
	assert.Equal(t, schema.ActionWaitUntil, node.Data.Action)
	assert.Empty(t, node.Data.Section)
}

func TestNewNodeToolErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing action", map[string]any{}, "action is required"},
		{"unknown action", map[string]any{"action": "teleport"}, "unknown action"},
		{"bad section", map[string]any{"action": "log", "section": "middle"}, "section must be"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := s.handleNewNode(context.Background(), buildRequest("flowgraph.new_node", tc.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, extractText(t, result), tc.want)
		})
	}
}

// --- Test helpers ---

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}
