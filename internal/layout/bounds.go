package layout

import "github.com/rendis/flowgraph/pkg/schema"

// TopPadding is the space CenterFlow leaves above the topmost node.
const TopPadding = 50.0

// Box is an axis-aligned bounding box.
type Box struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

func (b Box) Width() float64  { return b.MaxX - b.MinX }
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// NodesBoundingBox returns the box covering every node, each treated as the
// nominal node footprint anchored at its position. The zero Box is returned
// for no nodes.
func NodesBoundingBox(nodes []schema.Node) Box {
	if len(nodes) == 0 {
		return Box{}
	}
	b := Box{
		MinX: nodes[0].Position.X,
		MinY: nodes[0].Position.Y,
		MaxX: nodes[0].Position.X,
		MaxY: nodes[0].Position.Y,
	}
	for _, n := range nodes[1:] {
		b.MinX = min(b.MinX, n.Position.X)
		b.MinY = min(b.MinY, n.Position.Y)
		b.MaxX = max(b.MaxX, n.Position.X)
		b.MaxY = max(b.MaxY, n.Position.Y)
	}
	b.MaxX += schema.NominalNodeWidth
	b.MaxY += schema.NominalNodeHeight
	return b
}

// CenterFlow returns a copy of nodes translated so their bounding box is
// horizontally centered in a viewport of the given width, with TopPadding
// above the topmost node.
func CenterFlow(nodes []schema.Node, viewportWidth float64) []schema.Node {
	if len(nodes) == 0 {
		return nodes
	}
	b := NodesBoundingBox(nodes)
	dx := (viewportWidth-b.Width())/2 - b.MinX
	dy := TopPadding - b.MinY

	out := make([]schema.Node, len(nodes))
	copy(out, nodes)
	for i := range out {
		out[i].Position.X += dx
		out[i].Position.Y += dy
	}
	return out
}
