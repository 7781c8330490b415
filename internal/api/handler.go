package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pricing-engine/internal/models"
	"pricing-engine/internal/money"
	"pricing-engine/internal/service"
	"pricing-engine/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PriceEventPublisher announces computed prices for the audit trail
type PriceEventPublisher interface {
	PublishPriceComputed(ctx context.Context, event *models.PriceComputedEvent) error
}

// Services groups the services the HTTP layer exposes
type Services struct {
	Pricing    *service.PricingService
	Simulation *service.SimulationService
	Promotions *service.PromotionService
	Products   *service.ProductService
	Audit      *service.AuditService
}

// Handler contains HTTP handlers
type Handler struct {
	pricing    *service.PricingService
	simulation *service.SimulationService
	promotions *service.PromotionService
	products   *service.ProductService
	audit      *service.AuditService
	events     PriceEventPublisher
	ready      func(ctx context.Context) error
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler. events and ready may be nil.
func NewHandler(svc Services, events PriceEventPublisher, ready func(ctx context.Context) error) *Handler {
	return &Handler{
		pricing:    svc.Pricing,
		simulation: svc.Simulation,
		promotions: svc.Promotions,
		products:   svc.Products,
		audit:      svc.Audit,
		events:     events,
		ready:      ready,
		logger:     util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/price", h.computePrice)

		simulate := v1.Group("/simulate")
		simulate.POST("/promotion", h.simulatePromotion)
		simulate.POST("/promotions", h.simulatePromotions)
		simulate.POST("/scenarios", h.compareScenarios)

		v1.GET("/promotions", h.listPromotions)
		v1.POST("/promotions", h.createPromotion)
		v1.POST("/promotions/validate", h.validatePromotion)
		v1.GET("/promotions/:id", h.getPromotion)
		v1.PUT("/promotions/:id", h.updatePromotion)
		v1.PATCH("/promotions/:id", h.updatePromotion)
		v1.DELETE("/promotions/:id", h.deletePromotion)

		v1.GET("/products", h.listProducts)
		v1.POST("/products", h.createProduct)
		v1.GET("/products/:id", h.getProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.PATCH("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)

		v1.GET("/audit-logs", h.listAuditLogs)
		v1.GET("/audit-logs/stats", h.auditStats)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports whether the backing store answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"details": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// writeError maps service errors to HTTP responses
func writeError(c *gin.Context, err error) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    "Validation failed",
			"errors":   verr.Errors,
			"warnings": verr.Warnings,
		})
	case errors.Is(err, models.ErrProductNotFound), errors.Is(err, models.ErrPromotionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"details": err.Error(),
		})
	case errors.Is(err, money.ErrUnsupportedCurrency), errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidPatch):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
	default:
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// idParam parses the :id path parameter, answering 400 when malformed
func idParam(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+what+" ID", nil)
		return 0, false
	}
	return id, true
}

// requestLogger logs one structured line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
