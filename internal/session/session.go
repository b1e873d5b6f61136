// Package session drives one editing session over a composition graph:
// loading, edits, save, export and import, with the state machine that
// decides which of those are allowed at any moment.
package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"assetcomposer/internal/codec"
	apperrors "assetcomposer/internal/errors"
	"assetcomposer/internal/graph"
	"assetcomposer/internal/services"
)

// State is a session's position in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateSaving    State = "saving"
	StateExporting State = "exporting"
	StateImporting State = "importing"
	StateError     State = "error"
)

// DefaultName names compositions that were never given one.
const DefaultName = "Untitled Composition"

// Persister is the part of the persistence adapter a session needs.
type Persister interface {
	Hydrate(ownerID, assetID string) (*graph.Graph, error)
	Save(ownerID string, req services.SaveRequest) (*services.SaveResult, error)
}

// Notification is a dismissible report of the last failed operation.
type Notification struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// View is a detached copy of a session's observable state.
type View struct {
	ID            string        `json:"id"`
	State         State         `json:"state"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	AssetID       string        `json:"asset_id,omitempty"`
	CompositionID string        `json:"composition_id,omitempty"`
	Graph         graph.Graph   `json:"graph"`
	Notification  *Notification `json:"notification,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Exported is an encoded composition document ready to be written out.
type Exported struct {
	FileName string
	Data     []byte
}

// Session owns one graph store. Store mutations happen under mu; calls to the
// persister happen outside it so edits keep flowing during a save.
type Session struct {
	id        string
	ownerID   string
	persister Persister
	now       func() time.Time
	log       *zap.SugaredLogger

	mu            sync.Mutex
	state         State
	store         *graph.Store
	name          string
	description   string
	assetID       string
	compositionID string
	lastErr       error
	updatedAt     time.Time
}

// New creates an idle session. Call Start or Open before editing.
func New(id, ownerID string, persister Persister, opts ...Option) *Session {
	o := applyOptions(opts)
	return &Session{
		id:        id,
		ownerID:   ownerID,
		persister: persister,
		now:       o.now,
		log:       o.log.With("session_id", id, "owner_id", ownerID),
		state:     StateIdle,
		store:     graph.NewStore(),
		name:      DefaultName,
		updatedAt: o.now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// OwnerID returns the id of the user the session belongs to.
func (s *Session) OwnerID() string { return s.ownerID }

// Start moves an idle session to ready. With an asset id the session first
// hydrates from it; a failed hydrate leaves the session in the error state.
func (s *Session) Start(assetID string) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return apperrors.ErrSessionNotReady
	}
	if assetID == "" {
		s.transition(StateReady)
		s.mu.Unlock()
		return nil
	}
	s.assetID = assetID
	s.transition(StateLoading)
	s.mu.Unlock()

	g, err := s.persister.Hydrate(s.ownerID, assetID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = s.store.ReplaceAll(g.Nodes, g.Edges)
	}
	if err != nil {
		s.fail(StateError, "load", err)
		return err
	}
	if len(g.Nodes) > 0 {
		if data, ok := g.Nodes[0].Data.(*graph.SourceAssetData); ok && data.Name != "" {
			s.name = data.Name
		}
	}
	s.transition(StateReady)
	return nil
}

// Open moves an idle session to ready with a previously saved composition.
// Subsequent saves update that composition.
func (s *Session) Open(compositionID, name, description string, g graph.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return apperrors.ErrSessionNotReady
	}
	s.transition(StateLoading)
	if err := s.store.ReplaceAll(g.Nodes, g.Edges); err != nil {
		s.fail(StateError, "open", err)
		return err
	}
	s.compositionID = compositionID
	s.name = name
	s.description = description
	s.transition(StateReady)
	return nil
}

// View returns a detached copy of the session state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:            s.id,
		State:         s.state,
		Name:          s.name,
		Description:   s.description,
		AssetID:       s.assetID,
		CompositionID: s.compositionID,
		Graph:         s.store.Snapshot(),
		UpdatedAt:     s.updatedAt,
	}
	if s.lastErr != nil {
		v.Notification = notificationFor(s.lastErr)
	}
	return v
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent failure that has not been dismissed.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// DismissError clears the notification. A session stuck in the error state
// is reset to an empty ready graph.
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = nil
	if s.state == StateError {
		s.store = graph.NewStore()
		s.assetID = ""
		s.compositionID = ""
		s.transition(StateReady)
	}
	s.touch()
}

// IdleSince reports when the session last changed.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Rename sets the name and description used by the next save or export.
func (s *Session) Rename(name, description string) error {
	return s.edit(func() error {
		if name == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "Composition name is required")
		}
		s.name = name
		s.description = description
		return nil
	})
}

// CreateNode adds a fresh node of type t. A nil position is randomized.
func (s *Session) CreateNode(t graph.NodeType, pos *graph.Position) (graph.Node, error) {
	n, err := graph.NewNode(t, pos)
	if err != nil {
		return graph.Node{}, err
	}
	if err := s.AddNode(n); err != nil {
		return graph.Node{}, err
	}
	return n, nil
}

// AddNode adds a caller-built node.
func (s *Session) AddNode(n graph.Node) error {
	return s.edit(func() error { return s.store.AddNode(n) })
}

// RemoveNode removes a node and its incident edges.
func (s *Session) RemoveNode(id string) error {
	return s.edit(func() error { return s.store.RemoveNode(id) })
}

// UpdateNodeData merges patch into a node's data and returns the updated node.
func (s *Session) UpdateNodeData(id string, patch map[string]json.RawMessage) (graph.Node, error) {
	var n graph.Node
	err := s.edit(func() error {
		if err := s.store.UpdateNodeData(id, patch); err != nil {
			return err
		}
		n, _ = s.store.Node(id)
		return nil
	})
	return n, err
}

// LinkNewAsset creates a backing asset for a source asset node through
// create and stores the new id as the node's assetRef. It runs only in the
// ready state and holds the session for the duration, so the node cannot be
// removed or saved between the two steps.
func (s *Session) LinkNewAsset(nodeID string, create func(graph.Node) (string, error)) (graph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
	case StateSaving, StateImporting:
		return graph.Node{}, apperrors.ErrOperationInProgress
	case StateIdle, StateLoading, StateExporting, StateError:
		return graph.Node{}, apperrors.ErrSessionNotReady
	}

	n, ok := s.store.Node(nodeID)
	if !ok {
		return graph.Node{}, apperrors.ErrNodeNotFound
	}
	assetID, err := create(n)
	if err != nil {
		return graph.Node{}, err
	}
	ref, err := json.Marshal(assetID)
	if err != nil {
		return graph.Node{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.store.UpdateNodeData(nodeID, map[string]json.RawMessage{"assetRef": ref}); err != nil {
		return graph.Node{}, err
	}
	s.touch()
	n, _ = s.store.Node(nodeID)
	s.log.Infow("asset linked to node", "node_id", nodeID, "asset_id", assetID)
	return n, nil
}

// MoveNode sets a node's canvas position.
func (s *Session) MoveNode(id string, pos graph.Position) error {
	return s.edit(func() error { return s.store.MoveNode(id, pos) })
}

// Connect adds an edge between two existing nodes.
func (s *Session) Connect(sourceID, targetID string) (graph.Edge, error) {
	var e graph.Edge
	err := s.edit(func() error {
		var err error
		e, err = s.store.Connect(sourceID, targetID)
		return err
	})
	return e, err
}

// Disconnect removes an edge. Unknown edge ids are ignored.
func (s *Session) Disconnect(edgeID string) error {
	return s.edit(func() error {
		s.store.Disconnect(edgeID)
		return nil
	})
}

// Save persists the graph as it is when Save is called. Edits made while the
// save is in flight are kept in the session but not written by it. A failed
// save leaves the graph unchanged and returns the session to ready.
func (s *Session) Save() (*services.SaveResult, error) {
	s.mu.Lock()
	if err := s.begin(StateSaving); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	req := services.SaveRequest{
		Graph:         s.store.Snapshot(),
		Name:          s.name,
		Description:   s.description,
		CompositionID: s.compositionID,
	}
	s.mu.Unlock()

	result, err := s.persister.Save(s.ownerID, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fail(StateReady, "save", err)
		return nil, err
	}
	s.compositionID = result.CompositionID
	applied := s.store.ApplyRecordLinks(req.Graph, result.Links)
	s.lastErr = nil
	s.log.Infow("composition saved",
		"composition_id", result.CompositionID,
		"links_applied", applied,
	)
	s.transition(StateReady)
	return result, nil
}

// Export encodes the current graph as a composition document.
func (s *Session) Export() (*Exported, error) {
	s.mu.Lock()
	if err := s.begin(StateExporting); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	g := s.store.Snapshot()
	name, description := s.name, s.description
	at := s.now()
	s.mu.Unlock()

	data, err := codec.Encode(codec.Export(g, name, description, at))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fail(StateReady, "export", err)
		return nil, err
	}
	s.transition(StateReady)
	return &Exported{FileName: codec.FileName(name, at), Data: data}, nil
}

// Import replaces the graph, name and description with those of an encoded
// document. On failure the graph is unchanged. The imported graph is saved as
// a new composition.
func (s *Session) Import(data []byte) (*codec.Decoded, error) {
	s.mu.Lock()
	if err := s.begin(StateImporting); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	decoded, err := codec.Decode(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = s.store.ReplaceAll(decoded.Graph.Nodes, decoded.Graph.Edges)
	}
	if err != nil {
		s.fail(StateReady, "import", err)
		return nil, err
	}
	s.name = decoded.Name
	if s.name == "" {
		s.name = DefaultName
	}
	s.description = decoded.Description
	s.compositionID = ""
	s.lastErr = nil
	s.transition(StateReady)
	return decoded, nil
}

// begin enters a non-reentrant operation state. Callers hold mu.
func (s *Session) begin(next State) error {
	switch s.state {
	case StateReady:
		s.transition(next)
		return nil
	case StateSaving, StateImporting:
		if next == StateSaving || next == StateImporting {
			return apperrors.ErrOperationInProgress
		}
		return apperrors.ErrSessionNotReady
	case StateIdle, StateLoading, StateExporting, StateError:
		return apperrors.ErrSessionNotReady
	}
	return apperrors.ErrSessionNotReady
}

// edit runs fn under mu when the session accepts edits.
func (s *Session) edit(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady, StateSaving:
	case StateIdle, StateLoading, StateExporting, StateImporting, StateError:
		return apperrors.ErrSessionNotReady
	}
	if err := fn(); err != nil {
		return err
	}
	s.touch()
	return nil
}

// fail records err as the session notification and moves to next. Callers hold mu.
func (s *Session) fail(next State, op string, err error) {
	s.lastErr = err
	s.log.Errorw("session operation failed",
		"operation", op,
		"state", s.state,
		"next_state", next,
		"error", err,
	)
	s.transition(next)
}

func (s *Session) transition(next State) {
	if s.state != next {
		s.log.Debugw("session state changed", "from", s.state, "to", next)
	}
	s.state = next
	s.touch()
}

func (s *Session) touch() {
	s.updatedAt = s.now()
}

func notificationFor(err error) *Notification {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return &Notification{Code: appErr.Code, Message: appErr.Message}
	}
	return &Notification{Code: apperrors.ErrInternalServer.Code, Message: apperrors.ErrInternalServer.Message}
}
