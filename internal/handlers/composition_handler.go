package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "assetcomposer/internal/errors"
	"assetcomposer/internal/pagination"
	"assetcomposer/internal/services"
	"assetcomposer/internal/session"
)

// CompositionHandler serves saved compositions.
type CompositionHandler struct {
	compositionService services.CompositionServicer
	sessions           *session.Manager
}

// NewCompositionHandler creates a new CompositionHandler
func NewCompositionHandler(compositionService services.CompositionServicer, sessions *session.Manager) *CompositionHandler {
	return &CompositionHandler{compositionService: compositionService, sessions: sessions}
}

// ListCompositions handles listing the caller's saved compositions
// @Summary     List compositions
// @Description Saved compositions, most recently saved first. Graphs are omitted.
// @Tags        compositions
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Page size (default 20, max 100)"
// @Param       sort      query string false "updated_at, created_at, name or node_count; prefix - for descending (default -updated_at)"
// @Success     200 {object} pagination.PageResponse[models.Composition]
// @Failure     400 {object} ErrorResponse "Invalid pagination"
// @Router      /compositions [get]
func (h *CompositionHandler) ListCompositions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.compositionService.ListCompositions(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetComposition handles reading one saved composition
// @Summary     Get a composition
// @Tags        compositions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Composition ID"
// @Success     200 {object} map[string]models.Composition "Wrapped in \"composition\""
// @Failure     404 {object} ErrorResponse "Composition not found"
// @Router      /compositions/{id} [get]
func (h *CompositionHandler) GetComposition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id", apperrors.ErrCompositionNotFound)
	if err != nil {
		respondWithError(c, err)
		return
	}

	composition, err := h.compositionService.GetComposition(userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"composition": composition})
}

// OpenComposition handles starting a session on a saved composition
// @Summary     Open a composition
// @Description Start an editing session on a saved composition. Saving the session updates it.
// @Tags        compositions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Composition ID"
// @Success     201 {object} session.View
// @Failure     404 {object} ErrorResponse "Composition not found"
// @Router      /compositions/{id}/open [post]
func (h *CompositionHandler) OpenComposition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id", apperrors.ErrCompositionNotFound)
	if err != nil {
		respondWithError(c, err)
		return
	}

	opened, err := h.compositionService.OpenComposition(userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	s := h.sessions.Create(userID)
	if err := s.Open(opened.Composition.ID, opened.Composition.Name, opened.Composition.Description, opened.Graph); err != nil {
		_ = h.sessions.Close(userID, s.ID())
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.View())
}

// GetDefaultPortfolio handles reading the portfolio new assets are saved into
// @Summary     Get the default portfolio
// @Description Returns the caller's default portfolio, creating it on first use
// @Tags        compositions
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]models.Portfolio "Wrapped in \"portfolio\""
// @Router      /portfolio/default [get]
func (h *CompositionHandler) GetDefaultPortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.compositionService.GetOrCreateDefaultPortfolio(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}
