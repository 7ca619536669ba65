package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/flowgraph/internal/layout"
	"github.com/rendis/flowgraph/pkg/schema"
)

// issueTag returns a short ASCII indicator for a severity.
func issueTag(s schema.Severity) string {
	switch s {
	case schema.SeverityError:
		return "[ERR]"
	case schema.SeverityWarning:
		return "[WARN]"
	default:
		return ""
	}
}

// RenderASCII renders g as a text diagram: one row of boxes per layout rank,
// in the same column order AutoLayout uses.
func RenderASCII(g *schema.Graph, opts Options) string {
	var b strings.Builder

	if opts.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", opts.Title))
	}
	if g == nil {
		return b.String()
	}

	byID := make(map[string]*schema.Node, len(g.Nodes))
	for i := range g.Nodes {
		if _, dup := byID[g.Nodes[i].ID]; !dup {
			byID[g.Nodes[i].ID] = &g.Nodes[i]
		}
	}
	severities := worstSeverity(opts.Issues)

	levels := layout.Levels(g.Nodes, g.Edges)
	for i, level := range levels {
		var boxes []asciiBox
		for _, id := range level {
			if n := byID[id]; n != nil {
				boxes = append(boxes, makeBox(n, severities[id]))
			}
		}
		renderBoxRow(&b, boxes)

		if i < len(levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

func makeBox(n *schema.Node, sev schema.Severity) asciiBox {
	contentLines := []string{firstLine(nodeLabel(n))}
	switch n.Kind {
	case schema.NodeKindCondition:
		contentLines = append(contentLines, "<condition>")
	case schema.NodeKindLoop:
		contentLines = append(contentLines, fmt.Sprintf("<loop x%d>", n.Data.BodyCount))
	}
	if tag := issueTag(sev); tag != "" {
		contentLines = append(contentLines, tag)
	}

	maxLen := 0
	for _, line := range contentLines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	width := maxLen + 4 // 2 border + 2 padding

	var lines []string
	lines = append(lines, "┌"+strings.Repeat("─", width-2)+"┐")
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-len(content))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")

	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		if len(box.lines) > maxHeight {
			maxHeight = len(box.lines)
		}
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// renderConnector draws a vertical connector between ranks.
func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}
