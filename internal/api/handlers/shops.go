package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/walkup/printq/internal/core"
)

type ToggleUploadsRequest struct {
	IsAcceptingUploads *bool `json:"is_accepting_uploads" binding:"required"`
}

type ShopHandler struct {
	manager *core.Manager
}

func NewShopHandler(manager *core.Manager) *ShopHandler {
	return &ShopHandler{manager: manager}
}

func (h *ShopHandler) GetShop(c *gin.Context) {
	shop, err := h.manager.GetShop(c.Request.Context(), c.Param("shopId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, shop)
}

func (h *ShopHandler) ToggleUploads(c *gin.Context) {
	var req ToggleUploadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shop, err := h.manager.ToggleShopAcceptingUploads(c.Request.Context(), c.Param("shopId"), *req.IsAcceptingUploads)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, shop)
}

func (h *ShopHandler) RegisterRoutes(r *gin.RouterGroup, auth gin.HandlerFunc) {
	shops := r.Group("/shops")
	{
		shops.GET("/:shopId", h.GetShop)
		shops.PUT("/:shopId/toggle-uploads", auth, h.ToggleUploads)
	}
}
