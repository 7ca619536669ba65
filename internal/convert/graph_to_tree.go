package convert

import (
	"fmt"
	"sort"

	"github.com/rendis/flowgraph/pkg/schema"
)

// GraphToTree collapses a graph back into a flow tree.
//
// Section membership comes from each node's section tag; untagged nodes fall
// back to the nearest marker above them (main when there is none). Condition
// branches are rebuilt from nodes tagged with a parent id and branch name.
// Within a sequence, nodes are ordered by position. Live edits on a node
// (its action and label) win over the stored step payload. Metadata with no graph
// representation is carried over from previous, which may be nil.
//
// Nodes that cannot be mapped to a step are dropped and reported in the
// returned issues; GraphToTree itself never fails.
func GraphToTree(g *schema.Graph, previous *schema.FlowDefinition) (*schema.FlowDefinition, []schema.Issue) {
	def := &schema.FlowDefinition{}
	def.CopyMetadata(previous)
	if g == nil {
		return def, nil
	}

	c := collapser{
		children: make(map[string]map[schema.Branch][]*candidate),
		byID:     make(map[string]*candidate),
		emitted:  make(map[string]bool),
	}
	c.collect(g)
	c.reportMarkerEdges(g)
	c.assignSections(g)
	c.link()

	for _, section := range schema.SectionOrder {
		def.SetSection(section, c.emit(c.roots[section]))
	}
	c.rescueUnemitted(def)

	return def, c.issues
}

// candidate is a node that survived the mapping checks.
type candidate struct {
	node    *schema.Node
	action  schema.ActionKind
	section schema.SectionName
}

type collapser struct {
	markers  []*schema.Node
	nodes    []*candidate // in graph order
	byID     map[string]*candidate
	roots    map[schema.SectionName][]*candidate
	children map[string]map[schema.Branch][]*candidate
	emitted  map[string]bool
	issues   []schema.Issue
}

func (c *collapser) warn(stepID, code, format string, args ...any) {
	c.issues = append(c.issues, schema.Issue{
		Severity: schema.SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		StepID:   stepID,
	})
}

func (c *collapser) info(stepID, code, format string, args ...any) {
	c.issues = append(c.issues, schema.Issue{
		Severity: schema.SeverityInfo,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		StepID:   stepID,
	})
}

// collect splits markers from semantic nodes and drops what cannot map to a
// step: unknown node kinds, unknown actions and repeated ids.
func (c *collapser) collect(g *schema.Graph) {
	seen := make(map[string]bool, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.IsMarker() {
			c.markers = append(c.markers, n)
			continue
		}
		if !n.Kind.Valid() {
			c.warn(n.ID, schema.IssueDroppedNode, "node %q has unknown kind %q and was dropped", n.ID, n.Kind)
			continue
		}
		action, ok := nodeAction(n)
		if !ok {
			c.warn(n.ID, schema.IssueDroppedNode, "node %q has unknown action %q and was dropped", n.ID, action)
			continue
		}
		if seen[n.ID] {
			c.warn(n.ID, schema.IssueDuplicateID, "node id %q appears more than once; only the first was kept", n.ID)
			continue
		}
		seen[n.ID] = true

		cand := &candidate{node: n, action: action}
		c.nodes = append(c.nodes, cand)
		c.byID[n.ID] = cand
	}
}

// nodeAction resolves the action of a node: the live data tag wins over the
// stored payload.
func nodeAction(n *schema.Node) (schema.ActionKind, bool) {
	raw := n.Data.Action
	if raw == "" && n.Data.Step != nil {
		raw = n.Data.Step.Action
	}
	return schema.ParseActionKind(string(raw))
}

func (c *collapser) reportMarkerEdges(g *schema.Graph) {
	isMarker := make(map[string]bool, len(c.markers))
	for _, m := range c.markers {
		isMarker[m.ID] = true
	}
	for _, e := range g.Edges {
		if isMarker[e.Source] || isMarker[e.Target] {
			c.info("", schema.IssueMarkerEdge, "edge %q touches a section marker and was ignored", e.ID)
		}
	}
}

// assignSections resolves the owning section of every candidate. A valid
// section tag wins; otherwise the node's position is matched against the
// markers.
func (c *collapser) assignSections(g *schema.Graph) {
	sections := schema.NewSectionIndex(g)
	for _, id := range sections.Ignored() {
		c.warn(id, schema.IssueDroppedNode, "section marker %q names no known section and was ignored", id)
	}
	for _, cand := range c.nodes {
		cand.section = sections.Of(cand.node)
	}
}

// link files every candidate either under its section or under the branch
// of its parent condition. Nodes pointing at a parent that cannot own them
// are re-homed to their section.
func (c *collapser) link() {
	c.roots = make(map[schema.SectionName][]*candidate, len(schema.SectionOrder))
	for _, cand := range c.nodes {
		data := cand.node.Data
		if data.ParentID == "" {
			c.roots[cand.section] = append(c.roots[cand.section], cand)
			continue
		}

		parent, ok := c.byID[data.ParentID]
		switch {
		case !ok:
			c.warn(cand.node.ID, schema.IssueOrphanNode,
				"node %q references missing parent %q; moved to section %s", cand.node.ID, data.ParentID, cand.section)
		case parent.action != schema.ActionCondition || (data.Branch != schema.BranchThen && data.Branch != schema.BranchElse):
			c.warn(cand.node.ID, schema.IssueOrphanNode,
				"node %q cannot be nested under %q as %q; moved to section %s", cand.node.ID, data.ParentID, data.Branch, cand.section)
		default:
			if c.children[parent.node.ID] == nil {
				c.children[parent.node.ID] = make(map[schema.Branch][]*candidate, 2)
			}
			c.children[parent.node.ID][data.Branch] = append(c.children[parent.node.ID][data.Branch], cand)
			continue
		}
		c.roots[cand.section] = append(c.roots[cand.section], cand)
	}
}

// emit turns an unordered group of sibling candidates into an ordered step
// sequence, recursing into condition branches. It returns nil for an empty
// group so untouched sections stay absent.
func (c *collapser) emit(group []*candidate) []schema.Step {
	ordered := make([]*candidate, 0, len(group))
	for _, cand := range group {
		if !c.emitted[cand.node.ID] {
			ordered = append(ordered, cand)
		}
	}
	if len(ordered) == 0 {
		return nil
	}
	sortByPosition(ordered)

	steps := make([]schema.Step, 0, len(ordered))
	for _, cand := range ordered {
		c.emitted[cand.node.ID] = true
		steps = append(steps, c.toStep(cand))
	}
	return steps
}

func (c *collapser) toStep(cand *candidate) schema.Step {
	n := cand.node
	var step schema.Step
	if n.Data.Step != nil {
		step = n.Data.Step.Clone()
		if n.Data.Label != "" && n.Data.Label != n.Data.Step.DisplayName() {
			step.Name = n.Data.Label
		}
	} else if n.Data.Label != "" && n.Data.Label != n.ID {
		step.Name = n.Data.Label
	}
	step.ID = n.ID
	step.Action = cand.action

	if cand.action == schema.ActionCondition {
		branches := c.children[n.ID]
		step.Then = c.emit(branches[schema.BranchThen])
		step.Else = c.emit(branches[schema.BranchElse])
	} else {
		step.Then, step.Else = nil, nil
	}
	if cand.action != schema.ActionForEach {
		step.Body = nil
	}
	return step
}

// rescueUnemitted appends candidates that no section reached, which only
// happens when parent links form a cycle.
func (c *collapser) rescueUnemitted(def *schema.FlowDefinition) {
	for _, cand := range c.nodes {
		if c.emitted[cand.node.ID] {
			continue
		}
		c.warn(cand.node.ID, schema.IssueOrphanNode,
			"node %q is part of a parent cycle; moved to section %s", cand.node.ID, cand.section)
		steps := c.emit([]*candidate{cand})
		def.SetSection(cand.section, append(def.Section(cand.section), steps...))
	}
}

func sortByPosition(group []*candidate) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i].node, group[j].node
		if a.Position.Y != b.Position.Y {
			return a.Position.Y < b.Position.Y
		}
		if a.Position.X != b.Position.X {
			return a.Position.X < b.Position.X
		}
		return a.ID < b.ID
	})
}
