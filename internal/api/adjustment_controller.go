package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/services"
)

// AdjustmentLedger закупки и списания (services.AdjustmentService)
type AdjustmentLedger interface {
	RecordPurchase(ctx context.Context, in services.PurchaseInput) (*services.AdjustmentResult, error)
	RecordLoss(ctx context.Context, in services.LossInput) (*services.AdjustmentResult, error)
	ListAdjustments(ctx context.Context, filter services.AdjustmentFilter) ([]models.AdjustmentEvent, error)
}

// AdjustmentController API закупок и списаний
type AdjustmentController struct {
	ledger AdjustmentLedger
}

func NewAdjustmentController(ledger AdjustmentLedger) *AdjustmentController {
	return &AdjustmentController{ledger: ledger}
}

// RecordPurchase POST /api/v1/purchases
func (ac *AdjustmentController) RecordPurchase(c *gin.Context) {
	var req services.PurchaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := ac.ledger.RecordPurchase(c.Request.Context(), req)
	if err != nil {
		respondError(c, "api", "AdjustmentController.RecordPurchase", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// RecordLoss POST /api/v1/losses
func (ac *AdjustmentController) RecordLoss(c *gin.Context) {
	var req services.LossInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := ac.ledger.RecordLoss(c.Request.Context(), req)
	if err != nil {
		respondError(c, "api", "AdjustmentController.RecordLoss", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListPurchases GET /api/v1/purchases?item_id=&limit=
func (ac *AdjustmentController) ListPurchases(c *gin.Context) {
	ac.list(c, models.AdjustmentPurchase, "purchases")
}

// ListLosses GET /api/v1/losses?item_id=&limit=
func (ac *AdjustmentController) ListLosses(c *gin.Context) {
	ac.list(c, models.AdjustmentLoss, "losses")
}

func (ac *AdjustmentController) list(c *gin.Context, kind models.AdjustmentKind, key string) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	events, err := ac.ledger.ListAdjustments(c.Request.Context(), services.AdjustmentFilter{
		ItemID: c.Query("item_id"),
		Kind:   kind,
		Limit:  limit,
	})
	if err != nil {
		respondError(c, "api", "AdjustmentController.list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: events, "count": len(events)})
}
