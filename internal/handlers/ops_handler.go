package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"assetcomposer/internal/logger"
	"assetcomposer/internal/session"
)

// OpsHandler serves operational endpoints guarded by the ops API key.
type OpsHandler struct {
	sessions    *session.Manager
	idleTimeout time.Duration
	now         func() time.Time
}

// NewOpsHandler creates a new OpsHandler. Sessions idle for longer than
// idleTimeout are pruned on request.
func NewOpsHandler(sessions *session.Manager, idleTimeout time.Duration) *OpsHandler {
	return &OpsHandler{sessions: sessions, idleTimeout: idleTimeout, now: time.Now}
}

// SessionStats handles reporting the number of open sessions
// @Summary     Session statistics
// @Tags        ops
// @Produce     json
// @Param       X-API-Key header string true "Ops API key"
// @Success     200 {object} map[string]int
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /ops/sessions [get]
func (h *OpsHandler) SessionStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"open_sessions": h.sessions.Len()})
}

// PruneSessions handles closing idle sessions
// @Summary     Prune idle sessions
// @Tags        ops
// @Produce     json
// @Param       X-API-Key header string true "Ops API key"
// @Success     200 {object} map[string]int
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /ops/sessions/prune [post]
func (h *OpsHandler) PruneSessions(c *gin.Context) {
	pruned := h.sessions.Prune(h.now().Add(-h.idleTimeout))
	logger.Named("ops").Infow("pruned idle sessions", "pruned", pruned, "remaining", h.sessions.Len())
	c.JSON(http.StatusOK, gin.H{"pruned": pruned, "open_sessions": h.sessions.Len()})
}
