// Package layout assigns positions to graph nodes with a layered
// (longest-path) placement and barycenter crossing reduction.
//
// All functions are pure: they return new node slices and never fail. Input
// positions are ignored and recomputed.
package layout

import "github.com/rendis/flowgraph/pkg/schema"

// Direction is the flow direction of ranks.
type Direction string

const (
	TopToBottom Direction = "TB"
	LeftToRight Direction = "LR"
)

// Default spacing constants.
const (
	DefaultNodeSpacing   = 250.0
	DefaultRankSpacing   = 150.0
	DefaultBranchSpacing = 300.0
)

// Options controls AutoLayout. Zero fields take their default.
type Options struct {
	Direction     Direction `json:"direction,omitempty"`
	NodeSpacing   float64   `json:"node_spacing,omitempty"`   // distance between columns of one rank
	RankSpacing   float64   `json:"rank_spacing,omitempty"`   // distance between ranks
	BranchSpacing float64   `json:"branch_spacing,omitempty"` // horizontal offset of condition branches at conversion time
}

// DefaultOptions returns the default layout options.
func DefaultOptions() Options {
	return Options{
		Direction:     TopToBottom,
		NodeSpacing:   DefaultNodeSpacing,
		RankSpacing:   DefaultRankSpacing,
		BranchSpacing: DefaultBranchSpacing,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Direction != LeftToRight {
		o.Direction = d.Direction
	}
	if o.NodeSpacing <= 0 {
		o.NodeSpacing = d.NodeSpacing
	}
	if o.RankSpacing <= 0 {
		o.RankSpacing = d.RankSpacing
	}
	if o.BranchSpacing <= 0 {
		o.BranchSpacing = d.BranchSpacing
	}
	return o
}

// ParseDirection maps a user-supplied string to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case TopToBottom, "":
		return TopToBottom, true
	case LeftToRight:
		return LeftToRight, true
	}
	return TopToBottom, false
}

// AutoLayout returns a copy of nodes with freshly computed positions.
// Node and edge sets are never changed; only positions are.
//
// Semantic nodes are layered so that every edge points to a lower rank,
// ordered within each rank by the barycenter of their parents and centered
// around x = 0. Section markers take no part in ranking; they share one row
// above rank 0. An empty node set is returned unchanged.
func AutoLayout(nodes []schema.Node, edges []schema.Edge, opts Options) []schema.Node {
	if len(nodes) == 0 {
		return nodes
	}
	opts = opts.withDefaults()

	g := newLayered(nodes, edges)
	columns := g.order()

	positions := make(map[string]schema.Position, len(g.ids)+len(g.markers))
	for rank, ids := range columns {
		for col, id := range ids {
			positions[id] = place(rank, col, len(ids), opts)
		}
	}
	for col, id := range g.markers {
		positions[id] = place(-1, col, len(g.markers), opts)
	}

	out := make([]schema.Node, len(nodes))
	copy(out, nodes)
	for i := range out {
		out[i].Position = positions[out[i].ID]
	}
	return out
}

// place computes the coordinate of column col among count nodes of a rank.
func place(rank, col, count int, opts Options) schema.Position {
	width := float64(count-1) * opts.NodeSpacing
	across := -width/2 + float64(col)*opts.NodeSpacing
	along := float64(rank) * opts.RankSpacing

	if opts.Direction == LeftToRight {
		return schema.Position{X: along, Y: across}
	}
	return schema.Position{X: across, Y: along}
}
