package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/flowgraph/pkg/schema"
)

// validateGraph checks the canvas view: node ids and kinds, edge endpoints,
// condition handles, tracking against the tree, cycles and reachability.
// def may be nil.
func validateGraph(g *schema.Graph, def *schema.FlowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	nodes := make(map[string]*schema.Node, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" {
			result.AddError("", "id", schema.IssueMissingID, fmt.Sprintf("node at index %d has no id", i))
			continue
		}
		if _, dup := nodes[n.ID]; dup {
			result.AddError(n.ID, "id", schema.IssueDuplicateID, fmt.Sprintf("duplicate node id %q", n.ID))
			continue
		}
		nodes[n.ID] = n
		checkNode(n, result)
	}

	// Semantic edges only: markers and dangling endpoints are reported and
	// left out of the cycle and reachability analysis.
	var semantic []schema.Edge
	for _, e := range g.Edges {
		src, srcOK := nodes[e.Source]
		tgt, tgtOK := nodes[e.Target]
		if !srcOK || !tgtOK {
			missing := e.Source
			if srcOK {
				missing = e.Target
			}
			result.AddError("", "edges", schema.IssueDanglingEdge,
				fmt.Sprintf("edge %q references unknown node %q", e.ID, missing))
			continue
		}
		if src.IsMarker() || tgt.IsMarker() {
			result.AddError("", "edges", schema.IssueMarkerEdge,
				fmt.Sprintf("edge %q touches a section marker", e.ID))
			continue
		}
		checkHandle(src, e, result)
		if e.Source != e.Target {
			semantic = append(semantic, e)
		}
	}

	if def != nil {
		checkTracked(g, def, result)
	}
	if hasCycle(nodes, semantic) {
		result.AddWarning("", "edges", schema.IssueInvalidStructure,
			"graph contains a cycle; the tree form cannot represent it")
	}
	checkReachable(g, nodes, semantic, result)

	return result
}

func checkNode(n *schema.Node, result *schema.ValidationResult) {
	if !n.Kind.Valid() {
		result.AddError(n.ID, "type", schema.IssueInvalidStructure, fmt.Sprintf("unknown node type %q", n.Kind))
		return
	}
	if n.IsMarker() {
		if !n.Data.Section.Valid() {
			result.AddWarning(n.ID, "data.section", schema.IssueInvalidStructure,
				fmt.Sprintf("section marker names unknown section %q", n.Data.Section))
		}
		return
	}

	raw := n.Data.Action
	if raw == "" && n.Data.Step != nil {
		raw = n.Data.Step.Action
	}
	action, ok := schema.ParseActionKind(string(raw))
	if !ok {
		issue := result.AddError(n.ID, "data.action", schema.IssueUnknownAction,
			fmt.Sprintf("node has unknown action %q", action))
		if s := closestAction(string(action)); s != "" {
			issue.Suggestion = fmt.Sprintf("did you mean %q?", s)
		}
		return
	}
	if want := schema.Spec(action).NodeKind; want != n.Kind {
		result.AddWarning(n.ID, "type", schema.IssueInvalidStructure,
			fmt.Sprintf("%s step is drawn as %s, expected %s", action, n.Kind, want))
	}
}

func checkHandle(src *schema.Node, e schema.Edge, result *schema.ValidationResult) {
	if src.Kind != schema.NodeKindCondition {
		if e.SourceHandle != schema.HandleNone {
			result.AddError(src.ID, "edges", schema.IssueHandle,
				fmt.Sprintf("edge %q uses handle %q on a non-condition node", e.ID, e.SourceHandle))
		}
		return
	}
	switch e.SourceHandle {
	case schema.HandleThen, schema.HandleElse, schema.HandleContinue:
	case schema.HandleNone:
		issue := result.AddWarning(src.ID, "edges", schema.IssueHandle,
			fmt.Sprintf("edge %q leaves the condition without a then/else/continue handle", e.ID))
		issue.Suggestion = "connect from the then, else or continue output"
	default:
		result.AddError(src.ID, "edges", schema.IssueHandle,
			fmt.Sprintf("edge %q uses unknown handle %q", e.ID, e.SourceHandle))
	}
}

// checkTracked flags semantic nodes with no counterpart in the tree, which
// appear when the canvas was edited after the last collapse.
func checkTracked(g *schema.Graph, def *schema.FlowDefinition, result *schema.ValidationResult) {
	known := make(map[string]bool)
	schema.Walk(def, func(_ schema.StepPath, s *schema.Step) {
		known[s.ID] = true
	})
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.IsMarker() || n.ID == "" || known[n.ID] {
			continue
		}
		result.AddWarning(n.ID, "", schema.IssueUntracked,
			fmt.Sprintf("node %q is not part of the saved flow yet", n.ID))
	}
}

// hasCycle runs Kahn's algorithm over the semantic nodes.
func hasCycle(nodes map[string]*schema.Node, edges []schema.Edge) bool {
	inDegree := make(map[string]int, len(nodes))
	out := make(map[string][]string, len(nodes))
	for id, n := range nodes {
		if !n.IsMarker() {
			inDegree[id] = 0
		}
	}
	for _, e := range edges {
		out[e.Source] = append(out[e.Source], e.Target)
		inDegree[e.Target]++
	}

	queue := make([]string, 0, len(inDegree))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range out[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return visited != len(inDegree)
}

// checkReachable runs a BFS from one entry node per section: the top-level
// node of that section without incoming edges that sits highest on the
// canvas. Every other semantic node must be reachable from an entry.
func checkReachable(g *schema.Graph, nodes map[string]*schema.Node, edges []schema.Edge, result *schema.ValidationResult) {
	out := make(map[string][]string, len(nodes))
	hasIncoming := make(map[string]bool, len(nodes))
	for _, e := range edges {
		out[e.Source] = append(out[e.Source], e.Target)
		hasIncoming[e.Target] = true
	}

	sections := schema.NewSectionIndex(g)
	entries := make(map[schema.SectionName]*schema.Node)
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if nodes[n.ID] != n || n.IsMarker() || n.Data.ParentID != "" || hasIncoming[n.ID] {
			continue
		}
		section := sections.Of(n)
		if cur, ok := entries[section]; !ok || above(n, cur) {
			entries[section] = n
		}
	}

	reachable := make(map[string]bool, len(nodes))
	queue := make([]string, 0, len(entries))
	for _, section := range schema.SectionOrder {
		if n, ok := entries[section]; ok {
			reachable[n.ID] = true
			queue = append(queue, n.ID)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range out[id] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	var unreachable []string
	for id, n := range nodes {
		if !n.IsMarker() && !reachable[id] {
			unreachable = append(unreachable, id)
		}
	}
	sort.Strings(unreachable)
	for _, id := range unreachable {
		issue := result.AddError(id, "", schema.IssueUnreachable,
			fmt.Sprintf("node %q is unreachable from the start of its section", id))
		issue.Suggestion = "connect it to the preceding step or delete it"
	}
}

// above orders nodes by (y, x, id).
func above(a, b *schema.Node) bool {
	if a.Position.Y != b.Position.Y {
		return a.Position.Y < b.Position.Y
	}
	if a.Position.X != b.Position.X {
		return a.Position.X < b.Position.X
	}
	return a.ID < b.ID
}
