package api

import (
	"net/http"

	"pricing-engine/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listPromotions(c *gin.Context) {
	promos, err := h.promotions.ListPromotions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promotions": promos, "count": len(promos)})
}

func (h *Handler) getPromotion(c *gin.Context) {
	id, ok := idParam(c, "promotion")
	if !ok {
		return
	}

	promo, err := h.promotions.GetPromotion(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, promo)
}

func (h *Handler) createPromotion(c *gin.Context) {
	var in service.PromotionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	res, err := h.promotions.CreatePromotion(c.Request.Context(), &in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// validatePromotion reports errors and warnings without storing anything
func (h *Handler) validatePromotion(c *gin.Context) {
	var in service.PromotionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	report, err := h.promotions.Validate(c.Request.Context(), &in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// updatePromotion takes a JSON merge patch (RFC 7396)
func (h *Handler) updatePromotion(c *gin.Context) {
	id, ok := idParam(c, "promotion")
	if !ok {
		return
	}

	patch, err := c.GetRawData()
	if err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	res, err := h.promotions.UpdatePromotion(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) deletePromotion(c *gin.Context) {
	id, ok := idParam(c, "promotion")
	if !ok {
		return
	}

	if err := h.promotions.DeletePromotion(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.products.ListProducts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := idParam(c, "product")
	if !ok {
		return
	}

	product, err := h.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	product, err := h.products.CreateProduct(c.Request.Context(), &in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := idParam(c, "product")
	if !ok {
		return
	}

	patch, err := c.GetRawData()
	if err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	product, err := h.products.UpdateProduct(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := idParam(c, "product")
	if !ok {
		return
	}

	if err := h.products.DeleteProduct(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
