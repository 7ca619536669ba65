package schema

// NodeKind classifies a graph node.
type NodeKind string

const (
	NodeKindFlow          NodeKind = "flowNode"
	NodeKindCondition     NodeKind = "conditionNode"
	NodeKindLoop          NodeKind = "loopNode"
	NodeKindSectionMarker NodeKind = "sectionMarker"
)

// Valid reports whether k is one of the known node kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case NodeKindFlow, NodeKindCondition, NodeKindLoop, NodeKindSectionMarker:
		return true
	}
	return false
}

// Handle names an output port of a condition node.
type Handle string

const (
	HandleNone     Handle = ""
	HandleThen     Handle = "then"
	HandleElse     Handle = "else"
	HandleContinue Handle = "continue"
)

// Graph is the positioned node/edge view of a flow. It is derived from the
// tree and has no independent persistence.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Position is a layout-relative coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one positioned element of the graph.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"type"`
	Position Position `json:"position"`
	Width    float64  `json:"width,omitempty"`
	Height   float64  `json:"height,omitempty"`
	Data     NodeData `json:"data"`
}

// NodeData is the payload of a node. Semantic nodes carry their Step and an
// explicit owning section; nested branch nodes also carry ParentID and Branch.
// Section markers only set Label and Section.
type NodeData struct {
	Label     string      `json:"label,omitempty"`
	Action    ActionKind  `json:"action,omitempty"`
	Step      *Step       `json:"step,omitempty"`
	Section   SectionName `json:"section,omitempty"`
	ParentID  string      `json:"parent_id,omitempty"`
	Branch    Branch      `json:"branch,omitempty"`
	BodyCount int         `json:"body_count,omitempty"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle Handle `json:"sourceHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// IsMarker reports whether the node is a non-semantic section marker.
func (n *Node) IsMarker() bool {
	return n.Kind == NodeKindSectionMarker
}

// MarkerID returns the synthetic id of a section's marker node.
func MarkerID(section SectionName) string {
	return "section-" + string(section)
}

// Nominal node footprint used for centering and bounding boxes.
const (
	NominalNodeWidth  = 200.0
	NominalNodeHeight = 80.0
)

// NodeSize returns the footprint for a node of the given kind. bodyCount is
// the number of nested steps summarized inside a loop container.
func NodeSize(kind NodeKind, bodyCount int) (width, height float64) {
	switch kind {
	case NodeKindFlow:
		return NominalNodeWidth, NominalNodeHeight
	case NodeKindCondition:
		return 100, 100
	case NodeKindLoop:
		return 240, 80 + 40*float64(bodyCount)
	case NodeKindSectionMarker:
		return NominalNodeWidth, 40
	default:
		return NominalNodeWidth, NominalNodeHeight
	}
}

// NodeIndex maps node ids to their position in g.Nodes. The first
// occurrence wins when ids repeat.
func (g *Graph) NodeIndex() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i := range g.Nodes {
		if _, ok := idx[g.Nodes[i].ID]; !ok {
			idx[g.Nodes[i].ID] = i
		}
	}
	return idx
}

// Clone returns a copy of the graph whose nodes and edges can be modified
// without touching g.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)
	return out
}
