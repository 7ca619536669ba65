package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/flowgraph/internal/catalog"
	"github.com/rendis/flowgraph/internal/diagram"
	"github.com/rendis/flowgraph/internal/layout"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/pkg/schema"
)

// handleToGraph converts a flow tree into a canvas graph.
func (s *FlowgraphServer) handleToGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flowgraph.to_graph")

	def, err := flowArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if def == nil {
		return mcp.NewToolResultError("one of flow or yaml is required"), nil
	}

	g, err := s.engine.Load(ctx, def)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("conversion failed: %v", err)), nil
	}
	if req.GetBool("arrange", false) {
		if g, err = s.engine.Arrange(ctx, g); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("layout failed: %v", err)), nil
		}
	}

	return marshalResult(g)
}

// handleToTree collapses a graph back into a flow tree.
func (s *FlowgraphServer) handleToTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flowgraph.to_tree")

	g, err := graphArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if g == nil {
		return mcp.NewToolResultError("graph is required"), nil
	}
	previous, err := objectArg(req, "previous", schema.ParseJSON)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	format := req.GetString("format", "json")
	if format != "json" && format != "yaml" {
		return mcp.NewToolResultError("format must be json or yaml"), nil
	}

	def, issues, err := s.engine.Collapse(ctx, g, previous)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("conversion failed: %v", err)), nil
	}

	if format == "yaml" {
		text, yamlErr := schema.ToYAML(def)
		if yamlErr != nil {
			return mcp.NewToolResultError(yamlErr.Error()), nil
		}
		return mcp.NewToolResultText(string(text)), nil
	}

	return marshalResult(map[string]any{
		"flow":   def,
		"issues": nonNilIssues(issues),
	})
}

// handleLayout auto-arranges a graph.
func (s *FlowgraphServer) handleLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flowgraph.layout")

	g, err := graphArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if g == nil {
		return mcp.NewToolResultError("graph is required"), nil
	}

	dir, ok := layout.ParseDirection(req.GetString("direction", ""))
	if !ok {
		return mcp.NewToolResultError("direction must be TB or LR"), nil
	}
	opts := layout.Options{
		Direction:   dir,
		NodeSpacing: req.GetFloat("node_spacing", 0),
		RankSpacing: req.GetFloat("rank_spacing", 0),
	}
	if opts.NodeSpacing < 0 || opts.RankSpacing < 0 {
		return mcp.NewToolResultError("spacing must not be negative"), nil
	}

	out, err := s.engine.ArrangeWith(ctx, g, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("layout failed: %v", err)), nil
	}

	return marshalResult(map[string]any{
		"graph":        out,
		"bounding_box": layout.NodesBoundingBox(out.Nodes),
	})
}

// handleValidate checks a tree, a graph, or both.
func (s *FlowgraphServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flowgraph.validate")

	def, err := flowArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := graphArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if def == nil && g == nil {
		return mcp.NewToolResultError("at least one of flow, yaml or graph is required"), nil
	}

	result := s.engine.Check(ctx, def, g)

	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   len(result.Errors()),
		"warnings": len(result.Warnings()),
		"issues":   nonNilIssues(result.Issues),
	})
}

// handleMermaid renders a flow or graph as text.
func (s *FlowgraphServer) handleMermaid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flowgraph.mermaid")

	format := req.GetString("format", "mermaid")
	if format != "mermaid" && format != "ascii" {
		return mcp.NewToolResultError("format must be mermaid or ascii"), nil
	}

	def, err := flowArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := graphArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if def == nil && g == nil {
		return mcp.NewToolResultError("at least one of flow, yaml or graph is required"), nil
	}

	if g == nil {
		if g, err = s.engine.Load(ctx, def); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("conversion failed: %v", err)), nil
		}
	}

	opts := diagram.Options{}
	if def != nil {
		opts.Title = def.Name
	}
	if req.GetBool("issues", false) {
		opts.Issues = s.engine.Check(ctx, def, g).Issues
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(g, opts)), nil
	default:
		return mcp.NewToolResultText(diagram.RenderMermaid(g, opts)), nil
	}
}

// handleNewNode creates a node with default configuration for a new step.
func (s *FlowgraphServer) handleNewNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("action is required"), nil
	}
	kind, ok := schema.ParseActionKind(action)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q", action)), nil
	}

	section := schema.SectionName(req.GetString("section", ""))
	if section != "" && !section.Valid() {
		return mcp.NewToolResultError("section must be setup, main or teardown"), nil
	}

	node := catalog.NewNode(kind, section, schema.Position{
		X: req.GetFloat("x", 0),
		Y: req.GetFloat("y", 0),
	})

	s.logger.DebugContext(logging.WithStepID(logging.WithTool(ctx, "flowgraph.new_node"), node.ID), "node created", "action", string(kind))
	return marshalResult(node)
}

// --- Argument decoding ---

// flowArg reads the flow from the "flow" object or, failing that, the "yaml"
// text. Both absent yields nil without error.
func flowArg(req mcp.CallToolRequest) (*schema.FlowDefinition, error) {
	def, err := objectArg(req, "flow", schema.ParseJSON)
	if err != nil || def != nil {
		return def, err
	}
	text := req.GetString("yaml", "")
	if text == "" {
		return nil, nil
	}
	def, err = schema.ParseYAML([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	return def, nil
}

func graphArg(req mcp.CallToolRequest) (*schema.Graph, error) {
	return objectArg(req, "graph", schema.ParseGraphJSON)
}

// objectArg re-encodes the object argument key and decodes it with parse.
func objectArg[T any](req mcp.CallToolRequest, key string, parse func([]byte) (*T, error)) (*T, error) {
	raw := mcp.ParseStringMap(req, key, nil)
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	v, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func nonNilIssues(issues []schema.Issue) []schema.Issue {
	if issues == nil {
		return []schema.Issue{}
	}
	return issues
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
