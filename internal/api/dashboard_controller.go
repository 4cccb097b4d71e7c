package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/services"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

// DashboardReader сводки (services.DashboardService)
type DashboardReader interface {
	Summary(ctx context.Context) (*services.DashboardSummary, error)
	LowStock(ctx context.Context) ([]models.Item, error)
}

// InventoryExporter XLSX выгрузка (services.ReportService)
type InventoryExporter interface {
	ExportInventory(ctx context.Context) (*excelize.File, string, error)
}

// DashboardController дашборд и отчеты
type DashboardController struct {
	dashboard DashboardReader
	reports   InventoryExporter
}

func NewDashboardController(dashboard DashboardReader, reports InventoryExporter) *DashboardController {
	return &DashboardController{dashboard: dashboard, reports: reports}
}

// Summary GET /api/v1/dashboard/summary
func (dc *DashboardController) Summary(c *gin.Context) {
	summary, err := dc.dashboard.Summary(c.Request.Context())
	if err != nil {
		respondError(c, "api", "DashboardController.Summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// LowStock GET /api/v1/dashboard/low-stock
func (dc *DashboardController) LowStock(c *gin.Context) {
	items, err := dc.dashboard.LowStock(c.Request.Context())
	if err != nil {
		respondError(c, "api", "DashboardController.LowStock", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// ExportInventory GET /api/v1/reports/inventory.xlsx
func (dc *DashboardController) ExportInventory(c *gin.Context) {
	f, filename, err := dc.reports.ExportInventory(c.Request.Context())
	if err != nil {
		respondError(c, "api", "DashboardController.ExportInventory", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			utils.Logger().Warnf("⚠️ failed to close workbook: %v", err)
		}
	}()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		utils.LogError("api", "DashboardController.ExportInventory", "write workbook", filename, err)
	}
}
