// Package convert translates between the declarative step tree of a flow and
// its positioned node/edge graph.
//
// Both directions are total: they never fail on well-typed input. Problems the
// reverse direction runs into come back as a list of non-fatal issues.
package convert

import (
	"strings"

	"github.com/rendis/flowgraph/pkg/schema"
)

// placement is the cursor handed down the recursion. It is passed by value:
// each call sees exactly where it starts and reports where it ended through
// its fragment.
type placement struct {
	x, y     float64
	section  schema.SectionName
	parentID string
	branch   schema.Branch
}

// fragment is the output of converting one step or one sequence.
type fragment struct {
	nodes []schema.Node
	edges []schema.Edge
	first string // id of the first node
	empty bool
	last  tail
	endY  float64 // bottom edge of the lowest node
}

// tail is the node a following sibling connects from.
type tail struct {
	id   string
	kind schema.NodeKind
}

func (f *fragment) absorb(other fragment) {
	f.nodes = append(f.nodes, other.nodes...)
	f.edges = append(f.edges, other.edges...)
}

// TreeToGraph converts a flow tree into a positioned graph. Every non-empty
// section gets a marker node stacked above its content; markers are never
// edge endpoints. Condition branches become real nodes offset to either side
// of the condition; loop bodies stay inside the loop node's payload.
func TreeToGraph(def *schema.FlowDefinition, opts ...Option) *schema.Graph {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	g := &schema.Graph{Nodes: []schema.Node{}, Edges: []schema.Edge{}}
	if def == nil {
		return g
	}

	c := converter{opts: o}
	y := o.origin.Y
	for _, section := range schema.SectionOrder {
		steps := def.Section(section)
		if len(steps) == 0 {
			continue
		}

		marker := markerNode(section, o.origin.X, y)
		g.Nodes = append(g.Nodes, marker)

		frag := c.sequence(steps, placement{
			x:       o.origin.X,
			y:       y + marker.Height + o.verticalGap,
			section: section,
		})
		g.Nodes = append(g.Nodes, frag.nodes...)
		g.Edges = append(g.Edges, frag.edges...)
		y = frag.endY + 2*o.verticalGap
	}
	return g
}

type converter struct {
	opts options
}

// sequence converts an ordered list of steps laid out top to bottom in one
// column, linking consecutive nodes.
func (c converter) sequence(steps []schema.Step, p placement) fragment {
	out := fragment{endY: p.y, empty: len(steps) == 0}
	for i := range steps {
		if i > 0 {
			p.y = out.endY + c.opts.verticalGap
		}
		frag := c.step(&steps[i], p)
		if i > 0 {
			out.edges = append(out.edges, sequentialEdge(out.last, frag.first))
		} else {
			out.first = frag.first
		}
		out.absorb(frag)
		out.last = frag.last
		out.endY = frag.endY
	}
	return out
}

// step converts a single step and, for a condition, both of its branches.
func (c converter) step(step *schema.Step, p placement) fragment {
	node := stepNode(step, p)
	out := fragment{
		nodes: []schema.Node{node},
		first: node.ID,
		last:  tail{id: node.ID, kind: node.Kind},
		endY:  p.y + node.Height,
	}

	if node.Kind != schema.NodeKindCondition {
		return out
	}

	branchY := p.y + node.Height + c.opts.verticalGap
	branches := []struct {
		steps  []schema.Step
		branch schema.Branch
		handle schema.Handle
		x      float64
	}{
		{step.Then, schema.BranchThen, schema.HandleThen, p.x - c.opts.branchOffset},
		{step.Else, schema.BranchElse, schema.HandleElse, p.x + c.opts.branchOffset},
	}
	for _, b := range branches {
		frag := c.sequence(b.steps, placement{
			x:        b.x,
			y:        branchY,
			section:  p.section,
			parentID: step.ID,
			branch:   b.branch,
		})
		if frag.empty {
			continue
		}
		out.edges = append(out.edges, handleEdge(node.ID, b.handle, frag.first))
		out.absorb(frag)
		if frag.endY > out.endY {
			out.endY = frag.endY
		}
	}
	return out
}

func stepNode(step *schema.Step, p placement) schema.Node {
	kind := schema.Spec(step.Action).NodeKind
	width, height := schema.NodeSize(kind, len(step.Body))

	payload := step.Clone()
	// Branches are represented by their own nodes.
	payload.Then, payload.Else = nil, nil

	return schema.Node{
		ID:       step.ID,
		Kind:     kind,
		Position: schema.Position{X: p.x, Y: p.y},
		Width:    width,
		Height:   height,
		Data: schema.NodeData{
			Label:     step.DisplayName(),
			Action:    step.Action,
			Step:      &payload,
			Section:   p.section,
			ParentID:  p.parentID,
			Branch:    p.branch,
			BodyCount: len(step.Body),
		},
	}
}

func markerNode(section schema.SectionName, x, y float64) schema.Node {
	width, height := schema.NodeSize(schema.NodeKindSectionMarker, 0)
	return schema.Node{
		ID:       schema.MarkerID(section),
		Kind:     schema.NodeKindSectionMarker,
		Position: schema.Position{X: x, Y: y},
		Width:    width,
		Height:   height,
		Data: schema.NodeData{
			Label:   sectionLabel(section),
			Section: section,
		},
	}
}

// sequentialEdge links two consecutive nodes. A condition node has no
// unlabeled output, so its successor hangs off the continue port.
func sequentialEdge(source tail, target string) schema.Edge {
	if source.kind == schema.NodeKindCondition {
		return handleEdge(source.id, schema.HandleContinue, target)
	}
	return schema.Edge{
		ID:     EdgeID(source.id, schema.HandleNone, target),
		Source: source.id,
		Target: target,
	}
}

func handleEdge(source string, handle schema.Handle, target string) schema.Edge {
	return schema.Edge{
		ID:           EdgeID(source, handle, target),
		Source:       source,
		Target:       target,
		SourceHandle: handle,
		Label:        string(handle),
	}
}

// EdgeID returns the deterministic id of an edge.
func EdgeID(source string, handle schema.Handle, target string) string {
	if handle == schema.HandleNone {
		return "e-" + source + "-" + target
	}
	return "e-" + source + "-" + string(handle) + "-" + target
}

func sectionLabel(section schema.SectionName) string {
	s := string(section)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
