package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/services"
)

// BatchProcessor производственные партии (services.ProductionService)
type BatchProcessor interface {
	RecordBatch(ctx context.Context, in services.RecordBatchInput) (*services.BatchResult, error)
	PreviewBatch(ctx context.Context, lines []services.BatchLineInput) (*services.BatchPreview, error)
	CompleteBatch(ctx context.Context, id string) (*services.BatchResult, error)
	CancelBatch(ctx context.Context, id string) (*models.ProductionBatch, error)
	UpdateBatch(ctx context.Context, id string, in services.UpdateBatchInput) (*models.ProductionBatch, error)
	ReverseBatch(ctx context.Context, id, reason string) (*services.BatchResult, error)
	GetBatch(ctx context.Context, id string) (*models.ProductionBatch, error)
	ListBatches(ctx context.Context, filter services.BatchFilter) ([]models.ProductionBatch, error)
}

// ProductionController API производственных партий
type ProductionController struct {
	batches BatchProcessor
}

func NewProductionController(batches BatchProcessor) *ProductionController {
	return &ProductionController{batches: batches}
}

// batchResponse формат ответа проведения партии
func batchResponse(result *services.BatchResult) gin.H {
	consumed := result.ComponentsConsumed
	if consumed == nil {
		consumed = []services.ConsumedComponent{}
	}
	resp := gin.H{
		"batch_id":            result.Batch.ID,
		"batch":               result.Batch,
		"components_consumed": consumed,
	}
	if len(result.ComponentsNotReturned) > 0 {
		resp["components_not_returned"] = result.ComponentsNotReturned
	}
	return resp
}

// ListBatches GET /api/v1/production-batches?status=completed&limit=20
func (pc *ProductionController) ListBatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	batches, err := pc.batches.ListBatches(c.Request.Context(), services.BatchFilter{
		Status: models.BatchStatus(c.Query("status")),
		Limit:  limit,
	})
	if err != nil {
		respondError(c, "api", "ProductionController.ListBatches", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches, "count": len(batches)})
}

// RecordBatch POST /api/v1/production-batches
func (pc *ProductionController) RecordBatch(c *gin.Context) {
	var req services.RecordBatchInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := pc.batches.RecordBatch(c.Request.Context(), req)
	if err != nil {
		respondError(c, "api", "ProductionController.RecordBatch", err)
		return
	}
	c.JSON(http.StatusCreated, batchResponse(result))
}

// PreviewBatch POST /api/v1/production-batches/preview
func (pc *ProductionController) PreviewBatch(c *gin.Context) {
	var req struct {
		Lines []services.BatchLineInput `json:"lines"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	preview, err := pc.batches.PreviewBatch(c.Request.Context(), req.Lines)
	if err != nil {
		respondError(c, "api", "ProductionController.PreviewBatch", err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// GetBatch GET /api/v1/production-batches/:id
func (pc *ProductionController) GetBatch(c *gin.Context) {
	batch, err := pc.batches.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "api", "ProductionController.GetBatch", err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// UpdateBatch PUT /api/v1/production-batches/:id
func (pc *ProductionController) UpdateBatch(c *gin.Context) {
	var req services.UpdateBatchInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	batch, err := pc.batches.UpdateBatch(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "api", "ProductionController.UpdateBatch", err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// CompleteBatch POST /api/v1/production-batches/:id/complete
func (pc *ProductionController) CompleteBatch(c *gin.Context) {
	result, err := pc.batches.CompleteBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "api", "ProductionController.CompleteBatch", err)
		return
	}
	c.JSON(http.StatusOK, batchResponse(result))
}

// CancelBatch POST /api/v1/production-batches/:id/cancel
func (pc *ProductionController) CancelBatch(c *gin.Context) {
	batch, err := pc.batches.CancelBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "api", "ProductionController.CancelBatch", err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// ReverseBatch POST /api/v1/production-batches/:id/reverse
// Тело необязательно: {"reason": "..."}
func (pc *ProductionController) ReverseBatch(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}
	result, err := pc.batches.ReverseBatch(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, "api", "ProductionController.ReverseBatch", err)
		return
	}
	c.JSON(http.StatusOK, batchResponse(result))
}
