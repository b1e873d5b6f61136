package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	apperrors "assetcomposer/internal/errors"
	"assetcomposer/internal/uuid"
)

// Store holds the working copy of one composition. Every operation either
// succeeds or returns an AppError and leaves the store untouched; after any
// operation every edge endpoint names a current node and ids are unique
// within their collection.
//
// Store is not safe for concurrent use.
type Store struct {
	nodes []Node
	edges []Edge
	newID func() string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{newID: uuid.New}
}

// NewStoreWithIDs returns an empty store that draws edge ids from gen.
func NewStoreWithIDs(gen func() string) *Store {
	return &Store{newID: gen}
}

// Len returns the number of nodes and edges.
func (s *Store) Len() (nodes, edges int) {
	return len(s.nodes), len(s.edges)
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	i := s.nodeIndex(id)
	if i < 0 {
		return Node{}, false
	}
	return s.nodes[i].Clone(), true
}

// Snapshot returns a deep copy of the current graph.
func (s *Store) Snapshot() Graph {
	return Graph{Nodes: s.nodes, Edges: s.edges}.Clone()
}

// AddNode appends n.
func (s *Store) AddNode(n Node) error {
	if s.nodeIndex(n.ID) >= 0 {
		return apperrors.WithMessage(apperrors.ErrDuplicateID, fmt.Sprintf("node %q already exists", n.ID))
	}
	if err := Validate(n); err != nil {
		return err
	}
	s.nodes = append(s.nodes, n.Clone())
	return nil
}

// RemoveNode removes the node and every edge incident to it.
func (s *Store) RemoveNode(id string) error {
	i := s.nodeIndex(id)
	if i < 0 {
		return nodeNotFound(id)
	}
	s.nodes = slices.Delete(s.nodes, i, i+1)
	s.edges = slices.DeleteFunc(s.edges, func(e Edge) bool {
		return e.SourceNodeID == id || e.TargetNodeID == id
	})
	return nil
}

// UpdateNodeData shallow-merges patch into the top-level fields of the
// node's payload. Unknown fields and merges that produce invalid data are
// rejected.
func (s *Store) UpdateNodeData(id string, patch map[string]json.RawMessage) error {
	i := s.nodeIndex(id)
	if i < 0 {
		return nodeNotFound(id)
	}

	merged, err := mergeData(s.nodes[i].Data, patch)
	if err != nil {
		return invalidNodeData(fmt.Errorf("node %q: %w", id, err))
	}

	updated := s.nodes[i]
	updated.Data = merged
	if err := Validate(updated); err != nil {
		return err
	}
	s.nodes[i] = updated
	return nil
}

// MoveNode sets the canvas position of a node.
func (s *Store) MoveNode(id string, pos Position) error {
	i := s.nodeIndex(id)
	if i < 0 {
		return nodeNotFound(id)
	}
	s.nodes[i].Position = pos
	return nil
}

// Connect adds an edge from sourceID to targetID. Parallel edges and
// self-loops are allowed.
func (s *Store) Connect(sourceID, targetID string) (Edge, error) {
	if s.nodeIndex(sourceID) < 0 {
		return Edge{}, nodeNotFound(sourceID)
	}
	if s.nodeIndex(targetID) < 0 {
		return Edge{}, nodeNotFound(targetID)
	}

	id := s.newID()
	for s.edgeIndex(id) >= 0 {
		id = s.newID()
	}
	e := Edge{ID: id, SourceNodeID: sourceID, TargetNodeID: targetID}
	s.edges = append(s.edges, e)
	return e, nil
}

// Disconnect removes the edge if present.
func (s *Store) Disconnect(edgeID string) {
	if i := s.edgeIndex(edgeID); i >= 0 {
		s.edges = slices.Delete(s.edges, i, i+1)
	}
}

// ReplaceAll swaps the whole graph for nodes and edges after checking that
// ids are unique, node payloads are valid and every edge endpoint exists.
func (s *Store) ReplaceAll(nodes []Node, edges []Edge) error {
	if err := CheckGraph(nodes, edges); err != nil {
		return err
	}
	g := Graph{Nodes: nodes, Edges: edges}.Clone()
	s.nodes, s.edges = g.Nodes, g.Edges
	return nil
}

// CheckGraph reports whether nodes and edges form a consistent graph.
func CheckGraph(nodes []Node, edges []Edge) error {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if ids[n.ID] {
			return invalidGraph("duplicate node id %q", n.ID)
		}
		if err := Validate(n); err != nil {
			return apperrors.Wrap(invalidGraph("%v", err), err)
		}
		ids[n.ID] = true
	}

	edgeIDs := make(map[string]bool, len(edges))
	for _, e := range edges {
		if e.ID == "" {
			return invalidGraph("edge id is required")
		}
		if edgeIDs[e.ID] {
			return invalidGraph("duplicate edge id %q", e.ID)
		}
		edgeIDs[e.ID] = true
		if !ids[e.SourceNodeID] {
			return invalidGraph("edge %q references missing source node %q", e.ID, e.SourceNodeID)
		}
		if !ids[e.TargetNodeID] {
			return invalidGraph("edge %q references missing target node %q", e.ID, e.TargetNodeID)
		}
	}
	return nil
}

// RecordLink names the persisted row backing part of a node. Index is the
// entry position inside a cashflow or formula set of the saved graph and is
// ignored for source assets.
type RecordLink struct {
	NodeID   string `json:"node_id"`
	Index    int    `json:"index"`
	RecordID string `json:"record_id"`
}

// ApplyRecordLinks stamps the record ids of a save of saved onto the store.
// The store may have been edited since saved was taken, so an entry is
// matched by its saved contents rather than its position, and a link is
// skipped when its node or entry was removed or changed in the meantime.
// It returns the number of links applied.
func (s *Store) ApplyRecordLinks(saved Graph, links []RecordLink) int {
	applied := 0
	for _, l := range links {
		i := s.nodeIndex(l.NodeID)
		was, ok := saved.Node(l.NodeID)
		if i < 0 || !ok {
			continue
		}
		switch d := s.nodes[i].Data.(type) {
		case *SourceAssetData:
			prev, ok := was.Data.(*SourceAssetData)
			if ok && d.AssetRef == prev.AssetRef {
				d.AssetRef = l.RecordID
				applied++
			}
		case *CashflowSetData:
			prev, ok := was.Data.(*CashflowSetData)
			if !ok || l.Index < 0 || l.Index >= len(prev.Entries) {
				continue
			}
			if j := slices.Index(d.Entries, prev.Entries[l.Index]); j >= 0 {
				d.Entries[j].ID = l.RecordID
				applied++
			}
		case *FormulaSetData:
			prev, ok := was.Data.(*FormulaSetData)
			if !ok || l.Index < 0 || l.Index >= len(prev.Formulas) {
				continue
			}
			if j := slices.Index(d.Formulas, prev.Formulas[l.Index]); j >= 0 {
				d.Formulas[j].ID = l.RecordID
				applied++
			}
		case *RiskProfileData:
			// Risk profiles have no backing rows.
		}
	}
	return applied
}

func (s *Store) nodeIndex(id string) int {
	return slices.IndexFunc(s.nodes, func(n Node) bool { return n.ID == id })
}

func (s *Store) edgeIndex(id string) int {
	return slices.IndexFunc(s.edges, func(e Edge) bool { return e.ID == id })
}

// mergeData overlays patch onto the JSON form of d and decodes the result
// back into the same variant.
func mergeData(d NodeData, patch map[string]json.RawMessage) (NodeData, error) {
	current, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(current, &fields); err != nil {
		return nil, err
	}
	for k, v := range patch {
		if string(bytes.TrimSpace(v)) == "null" {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return decodeData(d.NodeType(), merged, true)
}

func nodeNotFound(id string) error {
	return apperrors.WithMessage(apperrors.ErrNodeNotFound, fmt.Sprintf("node %q not found", id))
}

func invalidGraph(format string, args ...any) *apperrors.AppError {
	return apperrors.WithMessage(apperrors.ErrInvalidGraph, fmt.Sprintf(format, args...))
}
