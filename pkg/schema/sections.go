package schema

import (
	"math"
	"sort"
	"strings"
)

// SectionIndex resolves which section owns a graph node. A valid section tag
// wins. An untagged node belongs to the nearest marker row at or above it
// and, within that row, to the horizontally closest marker. A node above
// every marker belongs to main.
type SectionIndex struct {
	markers []sectionMarker // top to bottom, then left to right
	ignored []string
}

type sectionMarker struct {
	pos     Position
	section SectionName
}

// NewSectionIndex indexes the section markers of g. A marker without a valid
// section tag falls back to the section named by its id.
func NewSectionIndex(g *Graph) *SectionIndex {
	idx := &SectionIndex{}
	if g == nil {
		return idx
	}
	for i := range g.Nodes {
		m := &g.Nodes[i]
		if !m.IsMarker() {
			continue
		}
		section := m.Data.Section
		if !section.Valid() {
			section = SectionName(strings.TrimPrefix(m.ID, MarkerID("")))
		}
		if !section.Valid() {
			idx.ignored = append(idx.ignored, m.ID)
			continue
		}
		idx.markers = append(idx.markers, sectionMarker{pos: m.Position, section: section})
	}
	sort.SliceStable(idx.markers, func(i, j int) bool {
		a, b := idx.markers[i].pos, idx.markers[j].pos
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return idx
}

// Ignored returns the ids of markers that name no known section.
func (idx *SectionIndex) Ignored() []string {
	return idx.ignored
}

// Of returns the section that owns n.
func (idx *SectionIndex) Of(n *Node) SectionName {
	if n.Data.Section.Valid() {
		return n.Data.Section
	}
	return idx.At(n.Position)
}

// At returns the section owning an untagged node at pos.
func (idx *SectionIndex) At(pos Position) SectionName {
	last := -1
	for i, m := range idx.markers {
		if m.pos.Y > pos.Y {
			break
		}
		last = i
	}
	if last < 0 {
		return SectionMain
	}

	rowY := idx.markers[last].pos.Y
	best := last
	for i := last; i >= 0 && idx.markers[i].pos.Y == rowY; i-- {
		if math.Abs(idx.markers[i].pos.X-pos.X) <= math.Abs(idx.markers[best].pos.X-pos.X) {
			best = i
		}
	}
	return idx.markers[best].section
}

// SectionOf returns the section that owns n within g. Callers resolving many
// nodes should build one SectionIndex instead.
func (g *Graph) SectionOf(n *Node) SectionName {
	return NewSectionIndex(g).Of(n)
}
