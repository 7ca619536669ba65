// gen-diagrams generates sample graph and diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/flowgraph/internal/diagram"
	"github.com/rendis/flowgraph/internal/engine"
	"github.com/rendis/flowgraph/pkg/schema"
)

func main() {
	// Checkout flow: seed → pay → condition(approved?) → ship | refund → for_each(notify) ; teardown cleanup
	def := &schema.FlowDefinition{
		Name:  "checkout",
		Setup: []schema.Step{{ID: "seed-cart", Action: schema.ActionDatabaseQuery, Config: map[string]any{"query": "INSERT INTO carts VALUES (1)"}}},
		Steps: []schema.Step{
			{ID: "pay", Name: "Pay order", Action: schema.ActionHTTPRequest,
				Config: map[string]any{"method": "POST", "url": "https://shop.example.com/pay"},
				Assert: []string{"status == 201"},
				Output: map[string]string{"approved": "$.body.approved"}},
			{ID: "check-approval", Action: schema.ActionCondition,
				Config: map[string]any{"condition": "approved == true"},
				Then:   []schema.Step{{ID: "ship", Action: schema.ActionKafkaProduce, Config: map[string]any{"brokers": []any{"localhost:9092"}, "topic": "shipments"}}},
				Else:   []schema.Step{{ID: "refund", Action: schema.ActionHTTPRequest, Config: map[string]any{"method": "POST", "url": "https://shop.example.com/refund"}}},
			},
			{ID: "notify", Action: schema.ActionForEach,
				Config: map[string]any{"items": "${recipients}", "item_name": "recipient"},
				Body:   []schema.Step{{ID: "send-mail", Action: schema.ActionLog, Config: map[string]any{"message": "mail ${recipient}"}}},
			},
		},
		Teardown: []schema.Step{{ID: "cleanup", Action: schema.ActionDatabaseQuery, Config: map[string]any{"query": "DELETE FROM carts"}}},
	}

	eng, err := engine.New(engine.Config{ArrangeOnLoad: true, ViewportWidth: 1200}, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine error: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()

	g, err := eng.Load(ctx, def)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load error: %v\n", err)
		os.Exit(1)
	}
	issues := eng.Check(ctx, def, g).Issues

	outDir := filepath.Join("docs", "assets")
	os.MkdirAll(outDir, 0o755)

	opts := diagram.Options{Title: def.Name, Issues: issues}

	// ASCII
	ascii := diagram.RenderASCII(g, opts)
	os.WriteFile(filepath.Join(outDir, "diagram-ascii.txt"), []byte(ascii), 0o644)
	fmt.Println("=== ASCII ===")
	fmt.Println(ascii)

	// Mermaid
	mermaid := diagram.RenderMermaid(g, opts)
	os.WriteFile(filepath.Join(outDir, "diagram-mermaid.md"), []byte("```mermaid\n"+mermaid+"```\n"), 0o644)
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	// Graph interchange
	graphPath := filepath.Join(outDir, "graph-sample.json")
	os.WriteFile(graphPath, mustJSON(g), 0o644)
	fmt.Printf("=== Graph ===\nWritten: %s (%d nodes, %d edges, %d issues)\n", graphPath, len(g.Nodes), len(g.Edges), len(issues))
}

func mustJSON(v any) []byte {
	data, _ := json.MarshalIndent(v, "", "  ")
	return data
}
