package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/flowgraph/internal/catalog"
	"github.com/rendis/flowgraph/internal/diagram"
	"github.com/rendis/flowgraph/internal/engine"
	"github.com/rendis/flowgraph/pkg/mcp"
	"github.com/rendis/flowgraph/pkg/schema"
)

func (c *cli) runGraph(ctx context.Context, args []string) error {
	fs := c.newFlagSet("graph")
	cfg := c.cfg
	arrange := fs.Bool("arrange", false, "auto-arrange the graph after conversion")
	out := fs.String("o", "", "output file (default: stdout)")
	fs.Float64Var(&cfg.BranchSpacing, "branch-spacing", cfg.BranchSpacing, "horizontal offset of condition branches")
	fs.StringVar(&cfg.Direction, "direction", cfg.Direction, "layout direction when arranging: TB or LR")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := oneFile(fs)
	if err != nil {
		return err
	}

	def, err := c.readFlow(path)
	if err != nil {
		return err
	}
	eng, err := c.newEngine(cfg)
	if err != nil {
		return err
	}

	g, err := eng.Load(ctx, def)
	if err != nil {
		return err
	}
	if *arrange {
		if g, err = eng.Arrange(ctx, g); err != nil {
			return err
		}
	}
	return c.writeJSON(*out, g)
}

func (c *cli) runTree(ctx context.Context, args []string) error {
	fs := c.newFlagSet("tree")
	previousPath := fs.String("previous", "", "last saved flow; supplies name and metadata")
	format := fs.String("format", "yaml", "output format: yaml or json")
	out := fs.String("o", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := oneFile(fs)
	if err != nil {
		return err
	}
	if *format != "yaml" && *format != "json" {
		return fmt.Errorf("format must be yaml or json, got %q", *format)
	}

	g, err := c.readGraph(path)
	if err != nil {
		return err
	}
	var previous *schema.FlowDefinition
	if *previousPath != "" {
		if previous, err = c.readFlow(*previousPath); err != nil {
			return err
		}
	}
	eng, err := c.newEngine(c.cfg)
	if err != nil {
		return err
	}

	def, issues, err := eng.Collapse(ctx, g, previous)
	if err != nil {
		return err
	}
	for _, is := range issues {
		fmt.Fprintf(c.stderr, "%s\n", is)
	}

	if *format == "json" {
		return c.writeJSON(*out, def)
	}
	data, err := schema.ToYAML(def)
	if err != nil {
		return err
	}
	return c.writeOutput(*out, data)
}

func (c *cli) runLayout(ctx context.Context, args []string) error {
	fs := c.newFlagSet("layout")
	cfg := c.cfg
	out := fs.String("o", "", "output file (default: stdout)")
	fs.StringVar(&cfg.Direction, "direction", cfg.Direction, "layout direction: TB or LR")
	fs.Float64Var(&cfg.NodeSpacing, "node-spacing", cfg.NodeSpacing, "distance between nodes of one rank")
	fs.Float64Var(&cfg.RankSpacing, "rank-spacing", cfg.RankSpacing, "distance between ranks")
	fs.Float64Var(&cfg.ViewportWidth, "viewport-width", cfg.ViewportWidth, "center the flow in this width (0 disables)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := oneFile(fs)
	if err != nil {
		return err
	}

	g, err := c.readGraph(path)
	if err != nil {
		return err
	}
	eng, err := c.newEngine(cfg)
	if err != nil {
		return err
	}

	arranged, err := eng.Arrange(ctx, g)
	if err != nil {
		return err
	}
	return c.writeJSON(*out, arranged)
}

func (c *cli) runValidate(ctx context.Context, args []string) error {
	fs := c.newFlagSet("validate")
	cfg := c.cfg
	graphPath := fs.String("graph", "", "graph file checked together with a single flow")
	asJSON := fs.Bool("json", false, "print results as JSON")
	fs.BoolVar(&cfg.StrictExpressions, "strict", cfg.StrictExpressions, "check expression syntax with the dialect parsers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return errors.New("at least one flow file is required")
	}
	if *graphPath != "" && len(paths) > 1 {
		return errors.New("-graph needs exactly one flow file")
	}

	eng, err := c.newEngine(cfg)
	if err != nil {
		return err
	}

	var docs []engine.Document
	var failed []engine.BatchResult
	for _, p := range paths {
		def, readErr := c.readFlow(p)
		if readErr != nil {
			failed = append(failed, engine.BatchResult{Name: p, Err: readErr})
			continue
		}
		doc := engine.Document{Name: p, Def: def}
		if *graphPath != "" {
			if doc.Graph, err = c.readGraph(*graphPath); err != nil {
				return err
			}
		}
		docs = append(docs, doc)
	}

	results, metrics := eng.CheckAll(ctx, docs)
	results = append(results, failed...)
	c.logger.DebugContext(ctx, "validation finished",
		"checked", metrics.Checked,
		"invalid", metrics.Invalid,
		"unreadable", len(failed),
	)

	invalid := len(failed) > 0
	for _, r := range results {
		if r.Err != nil || !r.Result.Valid() {
			invalid = true
		}
	}

	if *asJSON {
		if err := c.writeJSON("", reportJSON(results)); err != nil {
			return err
		}
	} else {
		printReport(c.stdout, results)
	}

	if invalid {
		return errInvalid
	}
	return nil
}

// fileReport is the JSON shape of one validated file.
type fileReport struct {
	File   string         `json:"file"`
	Valid  bool           `json:"valid"`
	Error  string         `json:"error,omitempty"`
	Issues []schema.Issue `json:"issues"`
}

func reportJSON(results []engine.BatchResult) []fileReport {
	out := make([]fileReport, 0, len(results))
	for _, r := range results {
		rep := fileReport{File: r.Name, Issues: []schema.Issue{}}
		if r.Err != nil {
			rep.Error = r.Err.Error()
		} else {
			rep.Valid = r.Result.Valid()
			if r.Result.Issues != nil {
				rep.Issues = r.Result.Issues
			}
		}
		out = append(out, rep)
	}
	return out
}

func printReport(w io.Writer, results []engine.BatchResult) {
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s: %v\n", r.Name, r.Err)
			continue
		}
		errs, warns := len(r.Result.Errors()), len(r.Result.Warnings())
		switch {
		case len(r.Result.Issues) == 0:
			fmt.Fprintf(w, "%s: ok\n", r.Name)
		default:
			fmt.Fprintf(w, "%s: %d error(s), %d warning(s)\n", r.Name, errs, warns)
		}
		for _, is := range r.Result.Issues {
			fmt.Fprintf(w, "  %s\n", is)
		}
	}
}

func (c *cli) runMermaid(ctx context.Context, args []string) error {
	fs := c.newFlagSet("mermaid")
	format := fs.String("format", "mermaid", "output format: mermaid or ascii")
	isGraph := fs.Bool("graph", false, "input is a graph JSON file instead of a flow")
	withIssues := fs.Bool("issues", false, "highlight nodes with validation issues")
	direction := fs.String("direction", "TD", "flowchart direction: TD or LR")
	out := fs.String("o", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := oneFile(fs)
	if err != nil {
		return err
	}
	if *format != "mermaid" && *format != "ascii" {
		return fmt.Errorf("format must be mermaid or ascii, got %q", *format)
	}

	eng, err := c.newEngine(c.cfg)
	if err != nil {
		return err
	}

	var def *schema.FlowDefinition
	var g *schema.Graph
	if *isGraph {
		g, err = c.readGraph(path)
	} else if def, err = c.readFlow(path); err == nil {
		g, err = eng.Load(ctx, def)
	}
	if err != nil {
		return err
	}

	opts := diagram.Options{Direction: *direction}
	if def != nil {
		opts.Title = def.Name
	}
	if *withIssues {
		opts.Issues = eng.Check(ctx, def, g).Issues
	}

	text := diagram.RenderMermaid(g, opts)
	if *format == "ascii" {
		text = diagram.RenderASCII(g, opts)
	}
	return c.writeOutput(*out, []byte(text))
}

func (c *cli) runNewNode(_ context.Context, args []string) error {
	fs := c.newFlagSet("new-node")
	action := fs.String("action", "", "action kind of the new step (required)")
	section := fs.String("section", "", "owning section: setup, main or teardown")
	x := fs.Float64("x", 0, "canvas x coordinate")
	y := fs.Float64("y", 0, "canvas y coordinate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *action == "" {
		return errors.New("-action is required")
	}
	kind, ok := schema.ParseActionKind(*action)
	if !ok {
		return fmt.Errorf("unknown action %q", *action)
	}
	sec := schema.SectionName(*section)
	if sec != "" && !sec.Valid() {
		return fmt.Errorf("section must be setup, main or teardown, got %q", *section)
	}

	node := catalog.NewNode(kind, sec, schema.Position{X: *x, Y: *y})
	return c.writeJSON("", node)
}

func (c *cli) runServe(ctx context.Context, args []string) error {
	fs := c.newFlagSet("serve")
	cfg := c.cfg
	fs.BoolVar(&cfg.StrictExpressions, "strict", cfg.StrictExpressions, "check expression syntax with the dialect parsers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, err := c.newEngine(cfg)
	if err != nil {
		return err
	}
	srv, err := mcp.NewFlowgraphServer(mcp.FlowgraphServerDeps{Engine: eng, Logger: c.logger})
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "mcp server listening on stdio", "version", version)
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// --- helpers ---

func (c *cli) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *cli) newEngine(cfg Config) (*engine.Engine, error) {
	ec, err := cfg.engineConfig()
	if err != nil {
		return nil, err
	}
	return engine.New(ec, c.logger)
}

func oneFile(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s expects exactly one file, got %d", fs.Name(), fs.NArg())
	}
	return fs.Arg(0), nil
}

// readInput reads path, or stdin when path is "-".
func (c *cli) readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(c.stdin)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeParse, "cannot read stdin").WithCause(err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "cannot read %s", path).WithCause(err)
	}
	return data, nil
}

// readFlow parses a flow file; .json files use the JSON form, everything
// else the YAML form.
func (c *cli) readFlow(path string) (*schema.FlowDefinition, error) {
	data, err := c.readInput(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return schema.ParseJSON(data)
	}
	return schema.ParseYAML(data)
}

func (c *cli) readGraph(path string) (*schema.Graph, error) {
	data, err := c.readInput(path)
	if err != nil {
		return nil, err
	}
	return schema.ParseGraphJSON(data)
}

func (c *cli) writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := c.stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *cli) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return c.writeOutput(path, append(data, '\n'))
}
