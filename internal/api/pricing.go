package api

import (
	"context"
	"net/http"
	"time"

	"pricing-engine/internal/models"
	"pricing-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// computePrice handles price computation
func (h *Handler) computePrice(c *gin.Context) {
	var req service.PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	result, err := h.pricing.ComputePrice(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	c.Header(requestIDHeader, requestID)
	c.JSON(http.StatusOK, result)

	h.publishPriceComputed(c.Request.Context(), result, models.RequestMeta{
		RequestID: requestID,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}

// publishPriceComputed emits the audit event for result. Failures are
// logged and never reach the caller.
func (h *Handler) publishPriceComputed(ctx context.Context, result *models.PricingResult, meta models.RequestMeta) {
	if h.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	event := &models.PriceComputedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePriceComputed,
			Timestamp: time.Now(),
		},
		Result:  *result,
		Request: meta,
	}
	if err := h.events.PublishPriceComputed(ctx, event); err != nil {
		h.logger.Error("Failed to publish price event",
			zap.Int64("product_id", result.ProductID),
			zap.Error(err))
	}
}

// simulatePromotion handles single promotion simulation
func (h *Handler) simulatePromotion(c *gin.Context) {
	var req service.SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	result, err := h.simulation.SimulatePromotion(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"simulation": true,
		"result":     result,
	})
}

// simulatePromotions handles multi-promotion simulation
func (h *Handler) simulatePromotions(c *gin.Context) {
	var req service.MultiSimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	result, err := h.simulation.SimulateMultiple(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"simulation": true,
		"result":     result,
	})
}

// compareScenarios handles scenario comparison
func (h *Handler) compareScenarios(c *gin.Context) {
	var req service.ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	result, err := h.simulation.CompareScenarios(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"simulation": true,
		"result":     result,
	})
}
