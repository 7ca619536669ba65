package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgraph/internal/layout"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/pkg/schema"
)

// --- Helpers ---

const checkoutYAML = `flow:
  name: checkout
  setup:
    - id: seed
      action: database_query
      config:
        query: INSERT INTO carts VALUES (1)
  steps:
    - id: pay
      action: http_request
      config:
        method: POST
        url: https://shop.example.com/pay
      assert:
        - status == 201
    - id: approved
      action: condition
      config:
        condition: body.approved
      then:
        - id: ship
          action: log
          config:
            message: shipping
      else:
        - id: refund
          action: log
          config:
            message: refunding
`

const brokenYAML = `name: broken
steps:
  - id: call
    action: http_request
    config:
      method: FETCH
`

type testCLI struct {
	*cli
	out *bytes.Buffer
	err *bytes.Buffer
	dir string
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	var out, errOut bytes.Buffer
	dir := t.TempDir()
	return &testCLI{
		cli: &cli{
			cfg:      defaultConfig(),
			settings: filepath.Join(dir, ".flowgraph", "settings.json"),
			stdin:    strings.NewReader(""),
			stdout:   &out,
			stderr:   &errOut,
			logger:   logging.New(&errOut, "debug"),
		},
		out: &out,
		err: &errOut,
		dir: dir,
	}
}

func (tc *testCLI) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(tc.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (tc *testCLI) run(t *testing.T, command string, args ...string) error {
	t.Helper()
	tc.out.Reset()
	return tc.cli.run(context.Background(), command, args)
}

func (tc *testCLI) graphFile(t *testing.T) string {
	t.Helper()
	flow := tc.write(t, "checkout.yaml", checkoutYAML)
	out := filepath.Join(tc.dir, "checkout.graph.json")
	require.NoError(t, tc.run(t, "graph", "-o", out, flow))
	return out
}

// --- graph / tree ---

func TestGraphCommand(t *testing.T) {
	tc := newTestCLI(t)
	flow := tc.write(t, "checkout.yaml", checkoutYAML)

	require.NoError(t, tc.run(t, "graph", flow))

	g, err := schema.ParseGraphJSON(tc.out.Bytes())
	require.NoError(t, err)
	idx := g.NodeIndex()
	for _, id := range []string{"seed", "pay", "approved", "ship", "refund"} {
		assert.Contains(t, idx, id)
	}
	assert.Contains(t, tc.err.String(), "flow loaded")
	assert.Contains(t, tc.err.String(), "tool=graph")
}

func TestGraphCommandArrangeFromStdin(t *testing.T) {
	tc := newTestCLI(t)
	tc.stdin = strings.NewReader(checkoutYAML)

	require.NoError(t, tc.run(t, "graph", "-arrange", "-direction", "LR", "-"))

	g, err := schema.ParseGraphJSON(tc.out.Bytes())
	require.NoError(t, err)
	ranks := layout.Ranks(g.Nodes, g.Edges)
	idx := g.NodeIndex()
	for id, r := range ranks {
		assert.Equal(t, float64(r)*layout.DefaultRankSpacing, g.Nodes[idx[id]].Position.X, id)
	}
}

func TestTreeCommandRoundTrip(t *testing.T) {
	tc := newTestCLI(t)
	graph := tc.graphFile(t)
	previous := filepath.Join(tc.dir, "checkout.yaml")

	require.NoError(t, tc.run(t, "tree", "-previous", previous, graph))

	got, err := schema.ParseYAML(tc.out.Bytes())
	require.NoError(t, err)
	want, err := schema.ParseYAML([]byte(checkoutYAML))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTreeCommandJSON(t *testing.T) {
	tc := newTestCLI(t)
	graph := tc.graphFile(t)

	require.NoError(t, tc.run(t, "tree", "-format", "json", graph))

	def, err := schema.ParseJSON(tc.out.Bytes())
	require.NoError(t, err)
	assert.Len(t, def.Setup, 1)
	assert.Len(t, def.Steps, 2)
}

func TestTreeCommandErrors(t *testing.T) {
	tc := newTestCLI(t)

	assert.ErrorContains(t, tc.run(t, "tree"), "exactly one file")
	assert.ErrorContains(t, tc.run(t, "tree", "-format", "toml", "x.json"), "format must be")

	err := tc.run(t, "tree", filepath.Join(tc.dir, "missing.json"))
	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeNotFound, fe.Code)
}

// --- layout ---

func TestLayoutCommand(t *testing.T) {
	tc := newTestCLI(t)
	graph := tc.graphFile(t)

	require.NoError(t, tc.run(t, "layout", "-rank-spacing", "100", "-viewport-width", "1000", graph))

	g, err := schema.ParseGraphJSON(tc.out.Bytes())
	require.NoError(t, err)
	box := layout.NodesBoundingBox(g.Nodes)
	assert.InDelta(t, 500, box.MinX+box.Width()/2, 0.001)
}

func TestLayoutCommandBadDirection(t *testing.T) {
	tc := newTestCLI(t)
	graph := tc.graphFile(t)

	assert.ErrorContains(t, tc.run(t, "layout", "-direction", "up", graph), "invalid direction")
}

// --- validate ---

func TestValidateCommand(t *testing.T) {
	tc := newTestCLI(t)
	good := tc.write(t, "good.yaml", checkoutYAML)

	require.NoError(t, tc.run(t, "validate", good))
	assert.Contains(t, tc.out.String(), "good.yaml: ok")
}

func TestValidateCommandWithGraph(t *testing.T) {
	tc := newTestCLI(t)
	graph := tc.graphFile(t)
	flow := filepath.Join(tc.dir, "checkout.yaml")

	require.NoError(t, tc.run(t, "validate", "-graph", graph, flow))
	assert.Contains(t, tc.out.String(), "checkout.yaml: ok")
}

func TestValidateCommandReportsInvalid(t *testing.T) {
	tc := newTestCLI(t)
	good := tc.write(t, "good.yaml", checkoutYAML)
	bad := tc.write(t, "bad.yaml", brokenYAML)
	missing := filepath.Join(tc.dir, "missing.yaml")

	err := tc.run(t, "validate", good, bad, missing)
	assert.ErrorIs(t, err, errInvalid)

	out := tc.out.String()
	assert.Contains(t, out, "good.yaml: ok")
	assert.Contains(t, out, "bad.yaml: ")
	assert.Contains(t, out, "step call")
	assert.Contains(t, out, "missing.yaml: ")
}

func TestValidateCommandJSON(t *testing.T) {
	tc := newTestCLI(t)
	good := tc.write(t, "good.yaml", checkoutYAML)
	bad := tc.write(t, "bad.yaml", brokenYAML)

	err := tc.run(t, "validate", "-json", good, bad)
	assert.ErrorIs(t, err, errInvalid)

	var reports []fileReport
	require.NoError(t, json.Unmarshal(tc.out.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, good, reports[0].File)
	assert.True(t, reports[0].Valid)
	assert.NotNil(t, reports[0].Issues)
	assert.False(t, reports[1].Valid)
	assert.NotEmpty(t, reports[1].Issues)
}

func TestValidateCommandArgs(t *testing.T) {
	tc := newTestCLI(t)

	assert.ErrorContains(t, tc.run(t, "validate"), "at least one flow file")
	assert.ErrorContains(t, tc.run(t, "validate", "-graph", "g.json", "a.yaml", "b.yaml"), "exactly one flow file")
}

// --- mermaid ---

func TestMermaidCommand(t *testing.T) {
	tc := newTestCLI(t)
	flow := tc.write(t, "checkout.yaml", checkoutYAML)

	require.NoError(t, tc.run(t, "mermaid", flow))

	out := tc.out.String()
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "%% checkout")
	assert.Contains(t, out, "approved -->|then| ship")
	assert.Contains(t, out, "approved -->|else| refund")
}

func TestMermaidCommandASCIIFromGraph(t *testing.T) {
	tc := newTestCLI(t)
	graph := tc.graphFile(t)

	require.NoError(t, tc.run(t, "mermaid", "-graph", "-format", "ascii", graph))
	assert.Contains(t, tc.out.String(), "<condition>")
}

func TestMermaidCommandIssues(t *testing.T) {
	tc := newTestCLI(t)
	bad := tc.write(t, "bad.yaml", brokenYAML)

	require.NoError(t, tc.run(t, "mermaid", "-issues", bad))
	assert.Contains(t, tc.out.String(), "class call invalid")
}

// --- new-node / init / dispatch ---

func TestNewNodeCommand(t *testing.T) {
	tc := newTestCLI(t)

	require.NoError(t, tc.run(t, "new-node", "-action", "for_each", "-section", "main", "-x", "10", "-y", "20"))

	var node schema.Node
	require.NoError(t, json.Unmarshal(tc.out.Bytes(), &node))
	assert.Equal(t, schema.NodeKindLoop, node.Kind)
	assert.Equal(t, schema.SectionMain, node.Data.Section)
	assert.Equal(t, schema.Position{X: 10, Y: 20}, node.Position)

	assert.ErrorContains(t, tc.run(t, "new-node"), "-action is required")
	assert.ErrorContains(t, tc.run(t, "new-node", "-action", "teleport"), "unknown action")
	assert.ErrorContains(t, tc.run(t, "new-node", "-action", "log", "-section", "middle"), "section must be")
}

func TestInitCommand(t *testing.T) {
	tc := newTestCLI(t)

	require.NoError(t, tc.run(t, "init", "-direction", "LR", "-strict"))
	assert.Contains(t, tc.out.String(), "Config written to")

	cfg := loadConfigFrom(tc.settings, mapEnv(nil))
	assert.Equal(t, "LR", cfg.Direction)
	assert.True(t, cfg.StrictExpressions)

	assert.ErrorContains(t, tc.run(t, "init"), "already exists")
	assert.NoError(t, tc.run(t, "init", "-force"))
	assert.ErrorContains(t, tc.run(t, "init", "-force", "-direction", "up"), "invalid direction")
}

func TestRunDispatch(t *testing.T) {
	tc := newTestCLI(t)

	require.NoError(t, tc.run(t, "version"))
	assert.Equal(t, "dev\n", tc.out.String())

	require.NoError(t, tc.run(t, "help"))
	assert.Contains(t, tc.out.String(), "Commands:")

	assert.ErrorContains(t, tc.run(t, "paint"), `unknown command "paint"`)
}
