package graph

// Edge is a directed, purely illustrative link between two nodes.
type Edge struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source"`
	TargetNodeID string `json:"target"`
}

// Graph is a detached copy of a composition's nodes and edges.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node returns the node with the given id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Neighbors returns the nodes connected to id by an edge in either
// direction, in edge order, without repeats.
func (g Graph) Neighbors(id string) []Node {
	seen := make(map[string]bool)
	var out []Node
	for _, e := range g.Edges {
		var other string
		switch id {
		case e.SourceNodeID:
			other = e.TargetNodeID
		case e.TargetNodeID:
			other = e.SourceNodeID
		default:
			continue
		}
		if seen[other] {
			continue
		}
		seen[other] = true
		if n, ok := g.Node(other); ok {
			out = append(out, n)
		}
	}
	return out
}

// Clone returns a deep copy of g.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	copy(out.Edges, g.Edges)
	return out
}
