package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/services"
)

// BOMStore состав продуктов (services.BOMService)
type BOMStore interface {
	SetComponents(ctx context.Context, productID string, inputs []services.ComponentInput) (*services.ComponentsResult, error)
	GetComponents(ctx context.Context, productID string) ([]models.BOMEdge, error)
	Expand(ctx context.Context, productID string, outputQty decimal.Decimal) ([]services.Requirement, error)
	WhereUsed(ctx context.Context, componentID string) ([]services.WhereUsedEntry, error)
	Dependencies(ctx context.Context) ([]services.ProductDependencies, error)
}

// CostRoller пересчет цены продукта (services.CostRollupService)
type CostRoller interface {
	RecomputeCost(ctx context.Context, productID string) (decimal.Decimal, error)
}

// BOMController API состава готовой продукции
type BOMController struct {
	bom    BOMStore
	rollup CostRoller
}

func NewBOMController(bom BOMStore, rollup CostRoller) *BOMController {
	return &BOMController{bom: bom, rollup: rollup}
}

type setComponentsRequest struct {
	Components []services.ComponentInput `json:"components"`
}

// GetComponents GET /api/v1/finished-products/:id/components
func (bc *BOMController) GetComponents(c *gin.Context) {
	edges, err := bc.bom.GetComponents(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "api", "BOMController.GetComponents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"finished_product_id": c.Param("id"), "components": edges})
}

// SetComponents PUT /api/v1/finished-products/:id/components
// Полностью заменяет состав; в ответе пересчитанная unit_price.
func (bc *BOMController) SetComponents(c *gin.Context) {
	var req setComponentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.Components == nil {
		req.Components = []services.ComponentInput{}
	}
	result, err := bc.bom.SetComponents(c.Request.Context(), c.Param("id"), req.Components)
	if err != nil {
		respondError(c, "api", "BOMController.SetComponents", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Expand GET /api/v1/finished-products/:id/expand?quantity=60
func (bc *BOMController) Expand(c *gin.Context) {
	qty, err := decimal.NewFromString(c.DefaultQuery("quantity", "1"))
	if err != nil {
		respondError(c, "api", "BOMController.Expand", services.NewValidationError("quantity", "must be a number"))
		return
	}
	reqs, err := bc.bom.Expand(c.Request.Context(), c.Param("id"), qty)
	if err != nil {
		respondError(c, "api", "BOMController.Expand", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"finished_product_id": c.Param("id"), "quantity": qty, "requirements": reqs})
}

// RecomputeCost POST /api/v1/finished-products/:id/recompute-cost
func (bc *BOMController) RecomputeCost(c *gin.Context) {
	price, err := bc.rollup.RecomputeCost(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "api", "BOMController.RecomputeCost", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"finished_product_id": c.Param("id"), "unit_price": price})
}

// WhereUsed GET /api/v1/items/:id/where-used
func (bc *BOMController) WhereUsed(c *gin.Context) {
	entries, err := bc.bom.WhereUsed(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "api", "BOMController.WhereUsed", err)
		return
	}
	if entries == nil {
		entries = []services.WhereUsedEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"component_id": c.Param("id"), "products": entries})
}

// Dependencies GET /api/v1/bom/dependencies
func (bc *BOMController) Dependencies(c *gin.Context) {
	deps, err := bc.bom.Dependencies(c.Request.Context())
	if err != nil {
		respondError(c, "api", "BOMController.Dependencies", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": deps, "count": len(deps)})
}
