// Package diagram renders a flow graph as text: Mermaid flowcharts for
// documentation and issue trackers, and an ASCII sketch for terminals.
package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rendis/flowgraph/pkg/schema"
)

// Options controls rendering.
type Options struct {
	Title     string
	Direction string         // "TD" (default) or "LR"
	Issues    []schema.Issue // marks nodes with error/warning classes
}

// RenderMermaid renders g as a Mermaid flowchart. Each section becomes a
// subgraph; markers are not drawn as nodes.
func RenderMermaid(g *schema.Graph, opts Options) string {
	var b strings.Builder

	dir := "TD"
	if strings.EqualFold(opts.Direction, "LR") {
		dir = "LR"
	}
	b.WriteString(fmt.Sprintf("graph %s\n", dir))

	if opts.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", opts.Title))
	}
	if g == nil {
		return b.String()
	}

	for _, group := range groupBySection(g) {
		b.WriteString(fmt.Sprintf("    subgraph %s[\"%s\"]\n", mermaidSafeID("section_"+string(group.section)), group.section))
		for _, n := range group.nodes {
			b.WriteString(fmt.Sprintf("        %s\n", mermaidNodeDef(n)))
		}
		b.WriteString("    end\n")
	}

	for _, e := range g.Edges {
		if isMarkerID(g, e.Source) || isMarkerID(g, e.Target) {
			continue
		}
		label := ""
		if e.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(e.Label))
		} else if e.SourceHandle != schema.HandleNone {
			label = fmt.Sprintf("|%s|", e.SourceHandle)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(e.Source), label, mermaidSafeID(e.Target)))
	}

	// Issue class definitions.
	b.WriteString("\n")
	b.WriteString("    classDef invalid fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	b.WriteString("    classDef warning fill:#b7791a,stroke:#8a5c14,color:#fff\n")
	b.WriteString("    classDef loop stroke-dasharray:5 5\n")

	for _, n := range g.Nodes {
		if n.Kind == schema.NodeKindLoop {
			b.WriteString(fmt.Sprintf("    class %s loop\n", mermaidSafeID(n.ID)))
		}
	}
	severities := worstSeverity(opts.Issues)
	ids := make([]string, 0, len(severities))
	for id := range severities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if cls := mermaidIssueClass(severities[id]); cls != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(id), cls))
		}
	}

	return b.String()
}

type sectionGroup struct {
	section schema.SectionName
	nodes   []*schema.Node
}

// groupBySection buckets semantic nodes by their section tag in section
// order. Untagged nodes go to main.
func groupBySection(g *schema.Graph) []sectionGroup {
	buckets := make(map[schema.SectionName][]*schema.Node)
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.IsMarker() {
			continue
		}
		s := n.Data.Section
		if !s.Valid() {
			s = schema.SectionMain
		}
		buckets[s] = append(buckets[s], n)
	}

	var groups []sectionGroup
	for _, s := range schema.SectionOrder {
		if len(buckets[s]) > 0 {
			groups = append(groups, sectionGroup{section: s, nodes: buckets[s]})
		}
	}
	return groups
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(n *schema.Node) string {
	id := mermaidSafeID(n.ID)
	label := mermaidEscapeLabel(firstLine(nodeLabel(n)))

	switch n.Kind {
	case schema.NodeKindCondition:
		return fmt.Sprintf("%s{%q}", id, label)
	case schema.NodeKindLoop:
		return fmt.Sprintf("%s[[%q]]", id, fmt.Sprintf("%s (%d steps)", label, n.Data.BodyCount))
	default:
		if n.Data.Action == schema.ActionDelay || n.Data.Action == schema.ActionWaitUntil {
			return fmt.Sprintf("%s([%q])", id, label)
		}
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

func nodeLabel(n *schema.Node) string {
	if n.Data.Label != "" {
		return n.Data.Label
	}
	return n.ID
}

func isMarkerID(g *schema.Graph, id string) bool {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return g.Nodes[i].IsMarker()
		}
	}
	return false
}

// worstSeverity maps each step id to the most severe issue reported for it.
func worstSeverity(issues []schema.Issue) map[string]schema.Severity {
	out := make(map[string]schema.Severity)
	for _, is := range issues {
		if is.StepID == "" {
			continue
		}
		if cur, ok := out[is.StepID]; !ok || severityRank(is.Severity) > severityRank(cur) {
			out[is.StepID] = is.Severity
		}
	}
	return out
}

func severityRank(s schema.Severity) int {
	switch s {
	case schema.SeverityError:
		return 2
	case schema.SeverityWarning:
		return 1
	default:
		return 0
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidEscapeLabel drops characters that break quoted Mermaid labels.
func mermaidEscapeLabel(s string) string {
	return strings.NewReplacer(`"`, "'", "|", "/").Replace(s)
}

// mermaidIssueClass maps a severity to a Mermaid class name.
func mermaidIssueClass(s schema.Severity) string {
	switch s {
	case schema.SeverityError:
		return "invalid"
	case schema.SeverityWarning:
		return "warning"
	default:
		return ""
	}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}
