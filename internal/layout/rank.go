package layout

import (
	"sort"

	"github.com/rendis/flowgraph/pkg/schema"
)

// layered is the adjacency view the ranking and ordering passes work on.
// Markers, self-edges and edges touching unknown ids are left out.
type layered struct {
	ids     []string // semantic node ids, input order, first occurrence
	markers []string // marker ids, section order
	labels  map[string]string
	out     map[string][]string
	in      map[string][]string
	rank    map[string]int
}

func newLayered(nodes []schema.Node, edges []schema.Edge) *layered {
	g := &layered{
		labels: make(map[string]string, len(nodes)),
		out:    make(map[string][]string),
		in:     make(map[string][]string),
	}

	known := make(map[string]bool, len(nodes))
	markerSection := make(map[string]schema.SectionName)
	for i := range nodes {
		n := &nodes[i]
		if _, dup := g.labels[n.ID]; dup {
			continue
		}
		label := n.Data.Label
		if label == "" {
			label = n.ID
		}
		g.labels[n.ID] = label

		if n.IsMarker() {
			g.markers = append(g.markers, n.ID)
			markerSection[n.ID] = n.Data.Section
			continue
		}
		g.ids = append(g.ids, n.ID)
		known[n.ID] = true
	}
	sortMarkers(g.markers, markerSection)

	seen := make(map[[2]string]bool, len(edges))
	for _, e := range edges {
		if e.Source == e.Target || !known[e.Source] || !known[e.Target] {
			continue
		}
		key := [2]string{e.Source, e.Target}
		if seen[key] {
			continue
		}
		seen[key] = true
		g.out[e.Source] = append(g.out[e.Source], e.Target)
		g.in[e.Target] = append(g.in[e.Target], e.Source)
	}

	g.rank = g.assignRanks()
	return g
}

// assignRanks performs longest-path layering. Roots start at rank 0 and a
// node's rank is raised whenever a parent is found deeper than before. Ranks
// are capped at len(ids)-1, which bounds the traversal on cyclic input; nodes
// no root reaches stay at rank 0.
func (g *layered) assignRanks() map[string]int {
	rank := make(map[string]int, len(g.ids))
	for _, id := range g.ids {
		rank[id] = 0
	}
	limit := len(g.ids) - 1

	queue := make([]string, 0, len(g.ids))
	for _, id := range g.ids {
		if len(g.in[id]) == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		next := rank[id] + 1
		if next > limit {
			continue
		}
		for _, child := range g.out[id] {
			if next > rank[child] {
				rank[child] = next
				queue = append(queue, child)
			}
		}
	}
	return rank
}

// Ranks returns the layer of every non-marker node. For every edge u→v
// between distinct known nodes of an acyclic graph, rank(v) >= rank(u)+1.
func Ranks(nodes []schema.Node, edges []schema.Edge) map[string]int {
	return newLayered(nodes, edges).rank
}

// Levels returns the non-marker node ids grouped by rank, each rank in the
// column order AutoLayout uses.
func Levels(nodes []schema.Node, edges []schema.Edge) [][]string {
	g := newLayered(nodes, edges)
	if len(g.ids) == 0 {
		return nil
	}
	return g.order()
}

func sortMarkers(ids []string, sections map[string]schema.SectionName) {
	order := make(map[schema.SectionName]int, len(schema.SectionOrder))
	for i, s := range schema.SectionOrder {
		order[s] = i
	}
	weight := func(id string) int {
		if w, ok := order[sections[id]]; ok {
			return w
		}
		return len(order)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		wi, wj := weight(ids[i]), weight(ids[j])
		if wi != wj {
			return wi < wj
		}
		return ids[i] < ids[j]
	})
}
