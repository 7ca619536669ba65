// Command flowgraph converts test flows between their step tree and canvas
// graph forms, arranges and validates them, and serves the same operations
// over MCP stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rendis/flowgraph/internal/logging"
)

const usageText = `Usage: flowgraph <command> [flags] [files]

Commands:
  graph      convert a flow (YAML or JSON) into a canvas graph
  tree       collapse a graph back into a flow
  layout     auto-arrange a graph
  validate   validate one or more flows
  mermaid    render a flow or graph as Mermaid or ASCII
  new-node   create a node for a new step
  serve      run the MCP server on stdio
  init       write ~/.flowgraph/settings.json
  version    print the version

Flags come before files. Use "-" to read from stdin.
`

// errInvalid reports that validation found blocking issues; they are
// already printed.
var errInvalid = errors.New("flow has validation errors")

// cli carries the loaded configuration and streams for one invocation.
type cli struct {
	cfg      Config
	settings string // settings.json path written by init
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	cfg := loadConfig()
	c := &cli{
		cfg:      cfg,
		settings: settingsPath(),
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		logger:   logging.New(os.Stderr, cfg.LogLevel),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	ctx = logging.WithTool(ctx, command)
	switch command {
	case "graph":
		return c.runGraph(ctx, args)
	case "tree":
		return c.runTree(ctx, args)
	case "layout":
		return c.runLayout(ctx, args)
	case "validate":
		return c.runValidate(ctx, args)
	case "mermaid":
		return c.runMermaid(ctx, args)
	case "new-node":
		return c.runNewNode(ctx, args)
	case "serve":
		return c.runServe(ctx, args)
	case "init":
		return c.runInit(args)
	case "version", "--version", "-v":
		printVersion(c.stdout)
		return nil
	case "help", "--help", "-h":
		fmt.Fprint(c.stdout, usageText)
		return nil
	default:
		fmt.Fprint(c.stderr, usageText)
		return fmt.Errorf("unknown command %q", command)
	}
}
