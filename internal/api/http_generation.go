package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"genstudio/internal/entity"
	"genstudio/internal/service"
)

// SubmitGeneration accepts a generation request and returns the job id right
// away; clients poll for the outcome.
func (h *HTTPHandler) SubmitGeneration(c *gin.Context) {
	if h.orchestrator == nil {
		ServiceUnavailable(c, "generation service not available")
		return
	}
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.SubmitGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	resp, err := h.orchestrator.Submit(c.Request.Context(), user, req)
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// GetGeneration polls one job by id.
func (h *HTTPHandler) GetGeneration(c *gin.Context) {
	if h.orchestrator == nil {
		ServiceUnavailable(c, "generation service not available")
		return
	}
	user := CurrentUser(c)
	jobID := strings.TrimSpace(c.Param("id"))
	if jobID == "" {
		MissingField(c, "id")
		return
	}

	view, err := h.orchestrator.Poll(c.Request.Context(), user, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			NotFound(c, ErrCodeJobNotFound, "job not found")
			return
		}
		logrus.WithError(err).WithField("job_id", jobID).Error("failed to poll job")
		InternalError(c, "failed to load job")
		return
	}

	view.ResultRef = h.publicResultURL(view.ResultRef)
	c.JSON(http.StatusOK, view)
}

// ListGenerations returns the caller's job history.
func (h *HTTPHandler) ListGenerations(c *gin.Context) {
	if h.orchestrator == nil {
		ServiceUnavailable(c, "generation service not available")
		return
	}
	user := CurrentUser(c)

	var query entity.JobQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}
	if query.PageSize > 100 {
		query.PageSize = 100
	}
	if user.IsAdmin() && strings.EqualFold(c.Query("scope"), "all") {
		query.IncludeAll = true
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	views, meta, err := h.orchestrator.ListJobs(ctx, user, &query)
	if err != nil {
		logrus.WithError(err).Error("failed to list jobs")
		InternalError(c, "failed to load jobs")
		return
	}
	for i := range views {
		views[i].ResultRef = h.publicResultURL(views[i].ResultRef)
	}

	c.JSON(http.StatusOK, gin.H{"jobs": views, "meta": meta})
}

// RegenerateGeneration replays a terminal job, optionally with a new prompt
// or model selection. The body may be empty.
func (h *HTTPHandler) RegenerateGeneration(c *gin.Context) {
	if h.orchestrator == nil {
		ServiceUnavailable(c, "generation service not available")
		return
	}
	user := CurrentUser(c)
	jobID := strings.TrimSpace(c.Param("id"))
	if jobID == "" {
		MissingField(c, "id")
		return
	}

	var req entity.SubmitGenerationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			InvalidPayload(c)
			return
		}
	}

	resp, err := h.orchestrator.Regenerate(c.Request.Context(), user, jobID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			NotFound(c, ErrCodeJobNotFound, "job not found")
		case errors.Is(err, service.ErrJobStillRunning):
			ErrorResponse(c, http.StatusConflict, ErrCodeJobNotTerminal, "job has not finished yet")
		case errors.Is(err, service.ErrQuotaExceeded):
			QuotaExceeded(c, err.Error())
		default:
			logrus.WithError(err).WithField("job_id", jobID).Error("failed to regenerate job")
			InternalError(c, "failed to regenerate job")
		}
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *HTTPHandler) writeSubmitError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrQuotaExceeded) {
		QuotaExceeded(c, err.Error())
		return
	}
	msg := err.Error()
	if strings.Contains(msg, "unsupported job kind") || strings.Contains(msg, "required") {
		BadRequest(c, ErrCodeInvalidRequest, msg)
		return
	}
	logrus.WithError(err).Error("failed to submit generation")
	InternalError(c, "failed to submit generation")
}
