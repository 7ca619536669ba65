// Package mcp exposes the flow graph engine as MCP tools over stdio so that
// editors and agents can convert, arrange, validate and render flows.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowgraph/internal/engine"
	"github.com/rendis/flowgraph/pkg/schema"
)

// FlowgraphServerDeps holds the dependencies for creating a FlowgraphServer.
type FlowgraphServerDeps struct {
	Engine *engine.Engine
	Logger *slog.Logger
}

// FlowgraphServer wraps an MCP server with flow graph tool handlers.
type FlowgraphServer struct {
	engine    *engine.Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewFlowgraphServer creates a new FlowgraphServer with all 6 tools registered.
// A nil engine is replaced by one with default configuration.
func NewFlowgraphServer(deps FlowgraphServerDeps) (*FlowgraphServer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	eng := deps.Engine
	if eng == nil {
		var err error
		if eng, err = engine.New(engine.Config{}, logger); err != nil {
			return nil, err
		}
	}

	s := &FlowgraphServer{
		engine: eng,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"flowgraph",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Flowgraph converts test flows between their step tree (YAML/JSON) and a node/edge canvas graph. Use flowgraph.to_graph to open a flow on a canvas, flowgraph.to_tree to save an edited graph, flowgraph.layout to auto-arrange, flowgraph.validate before saving, flowgraph.mermaid to render, and flowgraph.new_node to create a node for a new step."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowgraphServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowgraphServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *FlowgraphServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: toGraphTool(), Handler: s.handleToGraph},
		{Tool: toTreeTool(), Handler: s.handleToTree},
		{Tool: layoutTool(), Handler: s.handleLayout},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: mermaidTool(), Handler: s.handleMermaid},
		{Tool: newNodeTool(), Handler: s.handleNewNode},
	}
}

// --- Tool definitions ---

func toGraphTool() mcp.Tool {
	return mcp.NewTool("flowgraph.to_graph",
		mcp.WithDescription("Convert a flow step tree into a canvas graph"),
		mcp.WithObject("flow", mcp.Description("Flow definition object (name, setup, steps, teardown)")),
		mcp.WithString("yaml", mcp.Description("Flow definition as YAML text, used when flow is absent")),
		mcp.WithBoolean("arrange", mcp.Description("Run auto layout on the result")),
	)
}

func toTreeTool() mcp.Tool {
	return mcp.NewTool("flowgraph.to_tree",
		mcp.WithDescription("Collapse an edited canvas graph back into a flow step tree"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph object with nodes and edges")),
		mcp.WithObject("previous", mcp.Description("Last saved flow; supplies name, tags, env and schedule")),
		mcp.WithString("format", mcp.Enum("json", "yaml"), mcp.Description("Output format (default: json)")),
	)
}

func layoutTool() mcp.Tool {
	return mcp.NewTool("flowgraph.layout",
		mcp.WithDescription("Auto-arrange the nodes of a canvas graph"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph object with nodes and edges")),
		mcp.WithString("direction", mcp.Enum("TB", "LR"), mcp.Description("Layout direction (default: TB)")),
		mcp.WithNumber("node_spacing", mcp.Description("Distance between nodes of one rank")),
		mcp.WithNumber("rank_spacing", mcp.Description("Distance between ranks")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("flowgraph.validate",
		mcp.WithDescription("Validate a flow tree and/or canvas graph and list issues"),
		mcp.WithObject("flow", mcp.Description("Flow definition object")),
		mcp.WithString("yaml", mcp.Description("Flow definition as YAML text, used when flow is absent")),
		mcp.WithObject("graph", mcp.Description("Graph object with nodes and edges")),
	)
}

func mermaidTool() mcp.Tool {
	return mcp.NewTool("flowgraph.mermaid",
		mcp.WithDescription("Render a flow or graph as a Mermaid flowchart or ASCII sketch"),
		mcp.WithObject("flow", mcp.Description("Flow definition object")),
		mcp.WithString("yaml", mcp.Description("Flow definition as YAML text")),
		mcp.WithObject("graph", mcp.Description("Graph object; takes precedence over flow")),
		mcp.WithString("format", mcp.Enum("mermaid", "ascii"), mcp.Description("Output format (default: mermaid)")),
		mcp.WithBoolean("issues", mcp.Description("Highlight nodes with validation issues")),
	)
}

func newNodeTool() mcp.Tool {
	kinds := make([]string, 0, len(schema.ActionKinds))
	for _, k := range schema.ActionKinds {
		kinds = append(kinds, string(k))
	}
	return mcp.NewTool("flowgraph.new_node",
		mcp.WithDescription("Create a canvas node for a new step with default configuration"),
		mcp.WithString("action", mcp.Required(), mcp.Enum(kinds...), mcp.Description("Action kind of the new step")),
		mcp.WithString("section", mcp.Enum("setup", "main", "teardown"), mcp.Description("Owning section; omit to place by position")),
		mcp.WithNumber("x", mcp.Description("Canvas x coordinate")),
		mcp.WithNumber("y", mcp.Description("Canvas y coordinate")),
	)
}
