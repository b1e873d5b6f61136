package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "assetcomposer/internal/errors"
	"assetcomposer/internal/graph"
	"assetcomposer/internal/services"
	"assetcomposer/internal/session"
)

// SessionHandler exposes composition editing sessions over HTTP.
type SessionHandler struct {
	sessions           *session.Manager
	compositionService services.CompositionServicer
	auditService       services.AuditServicer
	maxImportBytes     int64
}

// NewSessionHandler creates a new SessionHandler. Uploaded composition files
// larger than maxImportBytes are rejected.
func NewSessionHandler(sessions *session.Manager, compositionService services.CompositionServicer, auditService services.AuditServicer, maxImportBytes int64) *SessionHandler {
	return &SessionHandler{
		sessions:           sessions,
		compositionService: compositionService,
		auditService:       auditService,
		maxImportBytes:     maxImportBytes,
	}
}

// CreateSessionRequest starts a session, hydrated from AssetID when given.
type CreateSessionRequest struct {
	AssetID     string `json:"asset_id" binding:"omitempty,uuid"`
	Name        string `json:"name" binding:"max=200"`
	Description string `json:"description" binding:"max=1000"`
}

// RenameSessionRequest sets the name and description used on save and export.
type RenameSessionRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=1000"`
}

// AddNodeRequest adds a node. Without data the node type's defaults are used.
type AddNodeRequest struct {
	ID       string          `json:"id" binding:"omitempty,uuid"`
	Type     graph.NodeType  `json:"type" binding:"required,node_type"`
	Position *graph.Position `json:"position"`
	Data     json.RawMessage `json:"data" swaggertype:"object"`
}

// ConnectRequest links two nodes.
type ConnectRequest struct {
	Source string `json:"source" binding:"required"`
	Target string `json:"target" binding:"required"`
}

// SaveResponse is the outcome of a save and the session after it.
type SaveResponse struct {
	Result  *services.SaveResult `json:"result"`
	Session session.View         `json:"session"`
}

// CreateSession handles starting a new editing session
// @Summary     Start a composition session
// @Description Start an empty session, or one hydrated from an existing asset
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateSessionRequest false "Session options"
// @Success     201 {object} session.View
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, bindError(err))
			return
		}
	}

	s := h.sessions.Create(userID)
	if err := s.Start(req.AssetID); err != nil {
		_ = h.sessions.Close(userID, s.ID())
		respondWithError(c, err)
		return
	}
	if req.Name != "" {
		if err := s.Rename(req.Name, req.Description); err != nil {
			respondWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, s.View())
}

// GetSession handles reading a session
// @Summary     Get a composition session
// @Tags        sessions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Session ID"
// @Success     200 {object} session.View
// @Failure     404 {object} ErrorResponse "Session not found"
// @Router      /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// CloseSession handles discarding a session and its unsaved edits
// @Summary     Close a composition session
// @Tags        sessions
// @Security    BearerAuth
// @Param       id path string true "Session ID"
// @Success     204
// @Failure     404 {object} ErrorResponse "Session not found"
// @Router      /sessions/{id} [delete]
func (h *SessionHandler) CloseSession(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.sessions.Close(userID, c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RenameSession handles setting the composition name and description
// @Summary     Rename a composition
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Session ID"
// @Param       request body RenameSessionRequest true "Name and description"
// @Success     200 {object} session.View
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Session not ready"
// @Router      /sessions/{id} [patch]
func (h *SessionHandler) RenameSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	if err := s.Rename(req.Name, req.Description); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// AddNode handles adding a node to the session graph
// @Summary     Add a node
// @Description Add a node of the given type. Data is optional and replaces the type's defaults.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string         true "Session ID"
// @Param       request body AddNodeRequest true "Node"
// @Success     201 {object} graph.Node
// @Failure     400 {object} ErrorResponse "Invalid node data"
// @Failure     409 {object} ErrorResponse "Duplicate id or session not ready"
// @Router      /sessions/{id}/nodes [post]
func (h *SessionHandler) AddNode(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req AddNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	n, err := graph.NewNode(req.Type, req.Position)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if req.ID != "" {
		n.ID = req.ID
	}
	if len(req.Data) > 0 {
		raw, err := json.Marshal(struct {
			ID       string          `json:"id"`
			Type     graph.NodeType  `json:"type"`
			Position graph.Position  `json:"position"`
			Data     json.RawMessage `json:"data"`
		}{n.ID, n.Type, n.Position, req.Data})
		if err == nil {
			err = json.Unmarshal(raw, &n)
		}
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidNodeData, err.Error()))
			return
		}
	}

	if err := s.AddNode(n); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

// UpdateNode handles merging a data patch into a node
// @Summary     Update node data
// @Description Shallow-merge the given fields into the node's data. A null value clears a field.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string true "Session ID"
// @Param       nodeId  path string true "Node ID"
// @Param       request body object true "Data patch"
// @Success     200 {object} graph.Node
// @Failure     400 {object} ErrorResponse "Invalid node data"
// @Failure     404 {object} ErrorResponse "Node not found"
// @Router      /sessions/{id}/nodes/{nodeId} [patch]
func (h *SessionHandler) UpdateNode(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var patch map[string]json.RawMessage
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	n, err := s.UpdateNodeData(c.Param("nodeId"), patch)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// MoveNode handles moving a node on the canvas
// @Summary     Move a node
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string         true "Session ID"
// @Param       nodeId  path string         true "Node ID"
// @Param       request body graph.Position true "New position"
// @Success     200 {object} graph.Position
// @Failure     404 {object} ErrorResponse "Node not found"
// @Router      /sessions/{id}/nodes/{nodeId}/position [put]
func (h *SessionHandler) MoveNode(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var pos graph.Position
	if err := c.ShouldBindJSON(&pos); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	if err := s.MoveNode(c.Param("nodeId"), pos); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

// RemoveNode handles removing a node and its edges
// @Summary     Remove a node
// @Tags        sessions
// @Security    BearerAuth
// @Param       id     path string true "Session ID"
// @Param       nodeId path string true "Node ID"
// @Success     204
// @Failure     404 {object} ErrorResponse "Node not found"
// @Router      /sessions/{id}/nodes/{nodeId} [delete]
func (h *SessionHandler) RemoveNode(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.RemoveNode(c.Param("nodeId")); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateAssetFromNode handles persisting a source asset node as a new asset
// @Summary     Create an asset from a node
// @Description Persist a source asset node as a new asset in the default portfolio and link the node to it
// @Tags        sessions
// @Produce     json
// @Security    BearerAuth
// @Param       id     path string true "Session ID"
// @Param       nodeId path string true "Node ID"
// @Success     201 {object} graph.Node
// @Failure     400 {object} ErrorResponse "Not a source asset node"
// @Failure     404 {object} ErrorResponse "Node not found"
// @Failure     409 {object} ErrorResponse "Session busy or not ready"
// @Router      /sessions/{id}/nodes/{nodeId}/asset [post]
func (h *SessionHandler) CreateAssetFromNode(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	updated, err := s.LinkNewAsset(c.Param("nodeId"), func(node graph.Node) (string, error) {
		return h.compositionService.CreateAssetFromNode(s.OwnerID(), node)
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, updated)
}

// Connect handles adding an edge
// @Summary     Connect two nodes
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string         true "Session ID"
// @Param       request body ConnectRequest true "Edge endpoints"
// @Success     201 {object} graph.Edge
// @Failure     404 {object} ErrorResponse "Node not found"
// @Router      /sessions/{id}/edges [post]
func (h *SessionHandler) Connect(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	e, err := s.Connect(req.Source, req.Target)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// Disconnect handles removing an edge
// @Summary     Remove an edge
// @Description Removing an edge that does not exist is not an error
// @Tags        sessions
// @Security    BearerAuth
// @Param       id     path string true "Session ID"
// @Param       edgeId path string true "Edge ID"
// @Success     204
// @Router      /sessions/{id}/edges/{edgeId} [delete]
func (h *SessionHandler) Disconnect(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Disconnect(c.Param("edgeId")); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Save handles persisting the session graph
// @Summary     Save the composition
// @Description Persist the graph as it is now. Edits made while the save runs are kept but not saved.
// @Tags        sessions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Session ID"
// @Success     200 {object} SaveResponse
// @Failure     409 {object} ErrorResponse "Save or import already in progress"
// @Failure     500 {object} ErrorResponse "Persistence failure"
// @Router      /sessions/{id}/save [post]
func (h *SessionHandler) Save(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	result, err := s.Save()
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(s.OwnerID(), services.AuditActionCompositionSave, "composition", result.CompositionID, c.ClientIP(),
		map[string]interface{}{
			"assets":    result.AssetsWritten,
			"cashflows": result.CashflowsUpserted,
			"formulas":  result.FormulasUpserted,
		})
	c.JSON(http.StatusOK, SaveResponse{Result: result, Session: s.View()})
}

// Export handles downloading the session graph as a composition file
// @Summary     Export the composition
// @Tags        sessions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Session ID"
// @Success     200 {file} file "Composition document"
// @Failure     409 {object} ErrorResponse "Session not ready"
// @Router      /sessions/{id}/export [get]
func (h *SessionHandler) Export(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	exported, err := s.Export()
	if err != nil {
		respondWithError(c, err)
		return
	}

	view := s.View()
	h.auditService.Log(s.OwnerID(), services.AuditActionCompositionExport, "composition", view.CompositionID, c.ClientIP(),
		map[string]interface{}{"file": exported.FileName})
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exported.FileName))
	c.Data(http.StatusOK, "application/json", exported.Data)
}

// Import handles replacing the session graph with an uploaded composition file
// @Summary     Import a composition
// @Description Replace the graph with an uploaded .json composition file. The graph is unchanged if the file is rejected.
// @Tags        sessions
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       id   path     string true "Session ID"
// @Param       file formData file   true "Composition file (.json)"
// @Success     200 {object} session.View
// @Failure     400 {object} ErrorResponse "Invalid file"
// @Failure     409 {object} ErrorResponse "Save or import already in progress"
// @Router      /sessions/{id}/import [post]
func (h *SessionHandler) Import(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "A composition file is required"))
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".json") {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Composition files must have a .json extension"))
		return
	}
	if file.Size > h.maxImportBytes {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("Composition file exceeds %d bytes", h.maxImportBytes)))
		return
	}

	f, err := file.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxImportBytes))
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	decoded, err := s.Import(data)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(s.OwnerID(), services.AuditActionCompositionImport, "session", s.ID(), c.ClientIP(),
		map[string]interface{}{
			"file":    file.Filename,
			"wrapper": decoded.Wrapper,
			"nodes":   len(decoded.Graph.Nodes),
			"edges":   len(decoded.Graph.Edges),
		})
	c.JSON(http.StatusOK, s.View())
}

// DismissError handles clearing the session notification
// @Summary     Dismiss the session error
// @Description Clear the last failure. A session that failed to load is reset to an empty graph.
// @Tags        sessions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Session ID"
// @Success     200 {object} session.View
// @Router      /sessions/{id}/error [delete]
func (h *SessionHandler) DismissError(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.DismissError()
	c.JSON(http.StatusOK, s.View())
}

// session resolves the caller's session from the :id path parameter, writing
// the error response itself when it cannot.
func (h *SessionHandler) session(c *gin.Context) (*session.Session, bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}
	s, err := h.sessions.Get(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}
	return s, true
}
