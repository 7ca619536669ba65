// Package engine is the single entry point editors and transports call on
// each editor event: load a tree onto the canvas, collapse the canvas back
// into a tree, auto-arrange, and check before saving. It holds no flow state
// between calls.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/flowgraph/internal/convert"
	"github.com/rendis/flowgraph/internal/layout"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/internal/validation"
	"github.com/rendis/flowgraph/pkg/schema"
)

// DefaultPoolSize is the default concurrency of batch validation.
const DefaultPoolSize = 4

// Config holds configuration for the engine.
type Config struct {
	Layout            layout.Options
	VerticalGap       float64 // gap between stacked nodes on load; 0 = converter default
	ViewportWidth     float64 // Arrange centers the flow in this width; 0 disables centering
	ArrangeOnLoad     bool    // run AutoLayout after TreeToGraph in Load
	StrictExpressions bool
	PoolSize          int // max concurrent validations in CheckAll
}

// Engine wires the converter, layout engine and validator together.
// It is safe for concurrent use.
type Engine struct {
	cfg       Config
	validator *validation.Validator
	logger    *slog.Logger
}

// New creates an Engine. A nil logger discards output.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	v, err := validation.NewValidator(validation.WithStrictExpressions(cfg.StrictExpressions))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "validator setup failed").WithCause(err)
	}
	return &Engine{cfg: cfg, validator: v, logger: logger}, nil
}

// Load turns a tree into a canvas graph, arranging it when configured to.
func (e *Engine) Load(ctx context.Context, def *schema.FlowDefinition) (*schema.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeConversion, "flow is required")
	}
	ctx = logging.WithFlowID(ctx, def.Name)
	start := time.Now()

	g := convert.TreeToGraph(def, e.convertOptions()...)
	if e.cfg.ArrangeOnLoad {
		g = e.arrange(g, e.cfg.Layout)
	}

	e.logger.DebugContext(ctx, "flow loaded",
		slog.Int("steps", def.StepCount()),
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("edges", len(g.Edges)),
		slog.Duration("took", time.Since(start)),
	)
	return g, nil
}

// Collapse turns an edited graph back into a tree. Metadata comes from
// previous, which may be nil for a brand-new flow. The returned issues
// report nodes the converter dropped or re-homed.
func (e *Engine) Collapse(ctx context.Context, g *schema.Graph, previous *schema.FlowDefinition) (*schema.FlowDefinition, []schema.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if g == nil {
		return nil, nil, schema.NewError(schema.ErrCodeConversion, "graph is required")
	}
	if previous != nil {
		ctx = logging.WithFlowID(ctx, previous.Name)
	}
	start := time.Now()

	def, issues := convert.GraphToTree(g, previous)
	for _, is := range issues {
		e.logger.WarnContext(logging.WithStepID(ctx, is.StepID), "graph collapse", slog.String("code", is.Code), slog.String("issue", is.Message))
	}

	e.logger.DebugContext(ctx, "graph collapsed",
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("steps", def.StepCount()),
		slog.Int("issues", len(issues)),
		slog.Duration("took", time.Since(start)),
	)
	return def, issues, nil
}

// Arrange lays g out with the configured options and returns a new graph.
func (e *Engine) Arrange(ctx context.Context, g *schema.Graph) (*schema.Graph, error) {
	return e.ArrangeWith(ctx, g, e.cfg.Layout)
}

// ArrangeWith lays g out with per-call options. Zero fields fall back to the
// layout defaults.
func (e *Engine) ArrangeWith(ctx context.Context, g *schema.Graph, opts layout.Options) (*schema.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, schema.NewError(schema.ErrCodeConversion, "graph is required")
	}
	start := time.Now()
	out := e.arrange(g, opts)

	box := layout.NodesBoundingBox(out.Nodes)
	e.logger.DebugContext(ctx, "graph arranged",
		slog.Int("nodes", len(out.Nodes)),
		slog.String("direction", string(opts.Direction)),
		slog.Float64("width", box.Width()),
		slog.Float64("height", box.Height()),
		slog.Duration("took", time.Since(start)),
	)
	return out, nil
}

func (e *Engine) arrange(g *schema.Graph, opts layout.Options) *schema.Graph {
	out := g.Clone()
	out.Nodes = layout.AutoLayout(out.Nodes, out.Edges, opts)
	if e.cfg.ViewportWidth > 0 {
		out.Nodes = layout.CenterFlow(out.Nodes, e.cfg.ViewportWidth)
	}
	return out
}

// Check validates the tree, the graph, or both. It never fails; a nil
// pair comes back as an invalid result.
func (e *Engine) Check(ctx context.Context, def *schema.FlowDefinition, g *schema.Graph) *schema.ValidationResult {
	if def != nil {
		ctx = logging.WithFlowID(ctx, def.Name)
	}
	start := time.Now()

	result := e.validator.Validate(def, g)

	e.logger.DebugContext(ctx, "flow checked",
		slog.Bool("valid", result.Valid()),
		slog.Int("errors", len(result.Errors())),
		slog.Int("warnings", len(result.Warnings())),
		slog.Duration("took", time.Since(start)),
	)
	return result
}

// PrepareSave collapses g and validates both the resulting tree and g. The
// converter's own issues are merged into the result.
func (e *Engine) PrepareSave(ctx context.Context, g *schema.Graph, previous *schema.FlowDefinition) (*schema.FlowDefinition, *schema.ValidationResult, error) {
	def, issues, err := e.Collapse(ctx, g, previous)
	if err != nil {
		return nil, nil, err
	}

	result := &schema.ValidationResult{Issues: append([]schema.Issue(nil), issues...)}
	result.Merge(e.Check(ctx, def, g))

	if !result.Valid() {
		e.logger.InfoContext(logging.WithFlowID(ctx, def.Name), "flow has blocking issues", slog.Int("errors", len(result.Errors())))
	}
	return def, result, nil
}

func (e *Engine) convertOptions() []convert.Option {
	var opts []convert.Option
	if e.cfg.Layout.BranchSpacing > 0 {
		opts = append(opts, convert.WithBranchOffset(e.cfg.Layout.BranchSpacing))
	}
	if e.cfg.VerticalGap > 0 {
		opts = append(opts, convert.WithVerticalGap(e.cfg.VerticalGap))
	}
	return opts
}
