package core

type (
	// CategoryNode is one node of a wallet's category tree.
	CategoryNode struct {
		Category
		Children []CategoryNode `json:"children,omitempty"`
	}

	// TreeRow is a flattened node ready for indented rendering.
	TreeRow struct {
		Category
		Depth       int
		HasChildren bool
		Expanded    bool
	}

	// IDSet tracks which node ids the user has expanded. It is view
	// state, kept apart from the tree itself.
	IDSet map[int64]struct{}
)

func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Toggle(id int64) {
	if s.Has(id) {
		delete(s, id)
		return
	}
	s[id] = struct{}{}
}

func (s IDSet) IDs() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// BuildTree arranges a flat category list into parent/child nodes.
// Input order is preserved among roots and among siblings. A child whose
// parent is missing from the list is promoted to a root so it stays
// visible instead of silently disappearing.
func BuildTree(flat []Category) []CategoryNode {
	known := make(map[int64]bool, len(flat))
	for _, c := range flat {
		known[c.ID] = true
	}
	byParent := make(map[int64][]Category)
	var roots []Category
	for _, c := range flat {
		if c.ParentID != nil && known[*c.ParentID] {
			byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
			continue
		}
		roots = append(roots, c)
	}
	var build func(c Category) CategoryNode
	build = func(c Category) CategoryNode {
		node := CategoryNode{Category: c}
		for _, child := range byParent[c.ID] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}
	out := make([]CategoryNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r))
	}
	return out
}

// CountNodes reports the number of nodes in the forest, children included.
// An empty forest counts zero.
func CountNodes(nodes []CategoryNode) int {
	n := 0
	for _, node := range nodes {
		n += 1 + CountNodes(node.Children)
	}
	return n
}

// FlattenTree linearizes the forest depth first, every parent before its
// children and sibling order preserved. Children of nodes absent from
// expanded are skipped entirely.
func FlattenTree(nodes []CategoryNode, expanded IDSet) []TreeRow {
	var rows []TreeRow
	var walk func(nodes []CategoryNode, depth int)
	walk = func(nodes []CategoryNode, depth int) {
		for _, n := range nodes {
			open := expanded.Has(n.ID) && len(n.Children) > 0
			rows = append(rows, TreeRow{
				Category:    n.Category,
				Depth:       depth,
				HasChildren: len(n.Children) > 0,
				Expanded:    open,
			})
			if open {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(nodes, 0)
	return rows
}

// Descendants collects the ids of every node below id in the flat list.
func Descendants(flat []Category, id int64) IDSet {
	children := make(map[int64][]int64)
	for _, c := range flat {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}
	out := IDSet{}
	var walk func(id int64)
	walk = func(id int64) {
		for _, child := range children[id] {
			if out.Has(child) {
				continue // malformed cyclic input, stop here
			}
			out[child] = struct{}{}
			walk(child)
		}
	}
	walk(id)
	return out
}

// ParentCandidates lists the root categories eligible as parent of the
// category being edited. The edited node and everything under it are
// excluded so a save can never close a loop. Pass 0 when creating.
func ParentCandidates(flat []Category, editing int64) []Category {
	desc := Descendants(flat, editing)
	var out []Category
	for _, c := range flat {
		if c.ParentID != nil {
			continue
		}
		if c.ID == editing || desc.Has(c.ID) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// WouldCreateCycle reports whether reparenting id under newParent would
// close a loop, self-parenting included. A newParent of 0 means becoming
// a root, which is always safe.
func WouldCreateCycle(flat []Category, id, newParent int64) bool {
	if newParent == 0 {
		return false
	}
	if id == newParent {
		return true
	}
	return Descendants(flat, id).Has(newParent)
}
