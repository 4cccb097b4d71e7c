package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/services"
)

// ItemStore операции над позициями (services.ItemService)
type ItemStore interface {
	CreateItem(ctx context.Context, in services.CreateItemInput) (*models.Item, error)
	UpdateItem(ctx context.Context, id string, in services.UpdateItemInput) (*models.Item, error)
	AdjustQuantity(ctx context.Context, id string, in services.AdjustInput) (*models.Item, error)
	DeleteItem(ctx context.Context, id string, detachComponents bool) (services.DeleteResult, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
	ListItems(ctx context.Context, filter services.ItemFilter) ([]models.Item, error)
}

// ItemController API позиций склада: сырье, упаковка, готовая продукция
type ItemController struct {
	items ItemStore
}

func NewItemController(items ItemStore) *ItemController {
	return &ItemController{items: items}
}

// ListItems GET /api/v1/items?kind=raw_material&low_stock=true
func (ic *ItemController) ListItems(c *gin.Context) {
	lowStock, _ := strconv.ParseBool(c.DefaultQuery("low_stock", "false"))
	items, err := ic.items.ListItems(c.Request.Context(), services.ItemFilter{
		Kind:         models.ItemKind(c.Query("kind")),
		LowStockOnly: lowStock,
	})
	if err != nil {
		respondError(c, "api", "ItemController.ListItems", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// CreateItem POST /api/v1/items
func (ic *ItemController) CreateItem(c *gin.Context) {
	var req services.CreateItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	item, err := ic.items.CreateItem(c.Request.Context(), req)
	if err != nil {
		respondError(c, "api", "ItemController.CreateItem", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetItem GET /api/v1/items/:id
func (ic *ItemController) GetItem(c *gin.Context) {
	item, err := ic.items.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "api", "ItemController.GetItem", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateItem PUT /api/v1/items/:id
func (ic *ItemController) UpdateItem(c *gin.Context) {
	var req services.UpdateItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	item, err := ic.items.UpdateItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "api", "ItemController.UpdateItem", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteItem DELETE /api/v1/items/:id?detach_components=true
func (ic *ItemController) DeleteItem(c *gin.Context) {
	detach, _ := strconv.ParseBool(c.DefaultQuery("detach_components", "false"))
	result, err := ic.items.DeleteItem(c.Request.Context(), c.Param("id"), detach)
	if err != nil {
		respondError(c, "api", "ItemController.DeleteItem", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AdjustQuantity POST /api/v1/items/:id/adjust
func (ic *ItemController) AdjustQuantity(c *gin.Context) {
	var req services.AdjustInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	item, err := ic.items.AdjustQuantity(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "api", "ItemController.AdjustQuantity", err)
		return
	}
	c.JSON(http.StatusOK, item)
}
