package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pricing-engine/internal/models"

	"github.com/gin-gonic/gin"
)

const maxAuditLimit = 1000

func (h *Handler) listAuditLogs(c *gin.Context) {
	filter, err := auditFilter(c)
	if err != nil {
		badRequest(c, "Invalid query", err)
		return
	}

	logs, err := h.audit.ListLogs(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

func (h *Handler) auditStats(c *gin.Context) {
	filter, err := auditFilter(c)
	if err != nil {
		badRequest(c, "Invalid query", err)
		return
	}

	stats, err := h.audit.Stats(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// auditFilter reads product_id, since, until (RFC3339), days, limit and
// offset from the query string
func auditFilter(c *gin.Context) (models.AuditFilter, error) {
	var filter models.AuditFilter

	if v := c.Query("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("product_id: %w", err)
		}
		filter.ProductID = &id
	}

	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("since: %w", err)
		}
		filter.Since = &t
	} else if v := c.Query("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return filter, errors.New("days must be a positive integer")
		}
		t := time.Now().AddDate(0, 0, -days)
		filter.Since = &t
	}

	if v := c.Query("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("until: %w", err)
		}
		filter.Until = &t
	}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		if limit > maxAuditLimit {
			limit = maxAuditLimit
		}
		filter.Limit = limit
	}

	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}

	return filter, nil
}
