package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"genstudio/internal/entity"
)

// ListUsageEntries returns the caller's usage ledger. Admins can pass
// scope=all to see every account.
func (h *HTTPHandler) ListUsageEntries(c *gin.Context) {
	if h.repo == nil {
		ServiceUnavailable(c, "usage ledger not available")
		return
	}
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var query entity.UsageQuery
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

	query.OwnerEmail = user.Email
	if user.IsAdmin() && strings.EqualFold(c.Query("scope"), "all") {
		query.IncludeAll = true
		query.OwnerEmail = ""
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	entries, meta, err := h.repo.ListUsageEntries(ctx, &query)
	if err != nil {
		logrus.WithError(err).Error("failed to list usage entries")
		InternalError(c, "failed to load usage entries")
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "meta": meta})
}
