package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

// RouterDeps контроллеры и настройки HTTP слоя
type RouterDeps struct {
	Items          *ItemController
	BOM            *BOMController
	Production     *ProductionController
	Adjustments    *AdjustmentController
	Dashboard      *DashboardController
	Hub            *Hub
	AllowedOrigins []string
	Health         func() error // nil = всегда ok
}

// NewRouter собирает gin движок со всеми маршрутами /api/v1
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health до CORS и логирования, его дергает платформа
	r.GET("/api/v1/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "details": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "aroma-stock-buddy"})
	})

	r.Use(RequestLogger())
	r.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	v1 := r.Group("/api/v1")

	if ic := deps.Items; ic != nil {
		items := v1.Group("/items")
		{
			items.GET("", ic.ListItems)
			items.POST("", ic.CreateItem)
			items.GET("/:id", ic.GetItem)
			items.PUT("/:id", ic.UpdateItem)
			items.DELETE("/:id", ic.DeleteItem)
			items.POST("/:id/adjust", ic.AdjustQuantity)
			if deps.BOM != nil {
				items.GET("/:id/where-used", deps.BOM.WhereUsed)
			}
		}
	}

	if bc := deps.BOM; bc != nil {
		products := v1.Group("/finished-products")
		{
			products.GET("/:id/components", bc.GetComponents)
			products.PUT("/:id/components", bc.SetComponents)
			products.GET("/:id/expand", bc.Expand)
			products.POST("/:id/recompute-cost", bc.RecomputeCost)
		}
		v1.GET("/bom/dependencies", bc.Dependencies)
	}

	if pc := deps.Production; pc != nil {
		batches := v1.Group("/production-batches")
		{
			batches.GET("", pc.ListBatches)
			batches.POST("", pc.RecordBatch)
			batches.POST("/preview", pc.PreviewBatch)
			batches.GET("/:id", pc.GetBatch)
			batches.PUT("/:id", pc.UpdateBatch)
			batches.POST("/:id/complete", pc.CompleteBatch)
			batches.POST("/:id/cancel", pc.CancelBatch)
			batches.POST("/:id/reverse", pc.ReverseBatch)
		}
	}

	if ac := deps.Adjustments; ac != nil {
		v1.POST("/purchases", ac.RecordPurchase)
		v1.GET("/purchases", ac.ListPurchases)
		v1.POST("/losses", ac.RecordLoss)
		v1.GET("/losses", ac.ListLosses)
	}

	if dc := deps.Dashboard; dc != nil {
		v1.GET("/dashboard/summary", dc.Summary)
		v1.GET("/dashboard/low-stock", dc.LowStock)
		v1.GET("/reports/inventory.xlsx", dc.ExportInventory)
	}

	if deps.Hub != nil {
		v1.GET("/ws/inventory", deps.Hub.ServeWS)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// RequestLogger логирует метод, путь, статус и задержку каждого запроса
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		entry := utils.Logger().WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  status,
			"latency": time.Since(start).String(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("🌐 request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("🌐 request rejected")
		default:
			entry.Info("🌐 request")
		}
	}
}
