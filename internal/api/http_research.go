package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"genstudio/internal/entity"
	"genstudio/internal/service"
)

// SubmitResearch runs retrieval for the query and schedules the synthesis as
// an async job. Sources are returned immediately so the client can render
// them while the synthesis generates.
func (h *HTTPHandler) SubmitResearch(c *gin.Context) {
	if h.orchestrator == nil {
		ServiceUnavailable(c, "generation service not available")
		return
	}
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	resp, err := h.orchestrator.Research(c.Request.Context(), user, req.Query)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuotaExceeded):
			QuotaExceeded(c, err.Error())
		case errors.Is(err, service.ErrResearchUnavailable):
			ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeResearchUnavailable, "research is not configured")
		default:
			logrus.WithError(err).Error("research request failed")
			InternalError(c, "research request failed")
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}
