package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/events"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

const dashboardCacheKey = "dashboard:summary"

// Cache JSON кэш (utils.RedisClient)
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// KindSummary сводка по типу позиций
type KindSummary struct {
	Kind       models.ItemKind `json:"kind"`
	Count      int64           `json:"count"`
	TotalValue decimal.Decimal `json:"total_value"`
	LowStock   int64           `json:"low_stock"`
}

// DashboardSummary данные главной страницы
type DashboardSummary struct {
	Kinds               []KindSummary            `json:"kinds"`
	TotalItems          int64                    `json:"total_items"`
	TotalInventoryValue decimal.Decimal          `json:"total_inventory_value"`
	LowStockCount       int64                    `json:"low_stock_count"`
	BatchesByStatus     map[string]int64         `json:"batches_by_status"`
	RecentBatches       []models.ProductionBatch `json:"recent_batches"`
	GeneratedAt         time.Time                `json:"generated_at"`
}

// DashboardService сводки для дашборда; кэш сбрасывается событиями склада
type DashboardService struct {
	db    *gorm.DB
	cache Cache
	ttl   time.Duration
	// epoch растет при каждой инвалидации; снимок, посчитанный до нее, в кэш не пишется
	epoch atomic.Uint64
}

// NewDashboardService cache может быть nil, ttl <= 0 выключает кэш
func NewDashboardService(db *gorm.DB, cache Cache, ttl time.Duration) *DashboardService {
	return &DashboardService{db: db, cache: cache, ttl: ttl}
}

func (s *DashboardService) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

// Summary считает сводку параллельными запросами
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	if s.cacheEnabled() {
		var cached DashboardSummary
		err := s.cache.GetJSON(ctx, dashboardCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, utils.ErrCacheMiss) {
			utils.Logger().Warnf("⚠️ dashboard cache read failed: %v", err)
		}
	}

	epoch := s.epoch.Load()
	summary := &DashboardSummary{GeneratedAt: time.Now().UTC()}
	g, gctx := errgroup.WithContext(ctx)
	db := s.db.WithContext(gctx)

	var kindRows []KindSummary
	g.Go(func() error {
		return db.Model(&models.Item{}).
			Select("kind, COUNT(*) AS count, COALESCE(SUM(total_value), 0) AS total_value, " +
				"COUNT(*) FILTER (WHERE quantity_in_stock < reorder_point) AS low_stock").
			Group("kind").
			Scan(&kindRows).Error
	})

	var statusRows []struct {
		Status string
		Count  int64
	}
	g.Go(func() error {
		return db.Model(&models.ProductionBatch{}).
			Select("status, COUNT(*) AS count").
			Group("status").
			Scan(&statusRows).Error
	})

	g.Go(func() error {
		return db.Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
			Preload("Lines.FinishedProduct").
			Order("created_at DESC").
			Limit(5).
			Find(&summary.RecentBatches).Error
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.Kinds = mergeKindSummaries(kindRows)
	summary.TotalInventoryValue = decimal.Zero
	for _, k := range summary.Kinds {
		summary.TotalItems += k.Count
		summary.LowStockCount += k.LowStock
		summary.TotalInventoryValue = summary.TotalInventoryValue.Add(k.TotalValue)
	}
	summary.BatchesByStatus = map[string]int64{
		string(models.BatchInProgress): 0,
		string(models.BatchCompleted):  0,
		string(models.BatchCancelled):  0,
	}
	for _, r := range statusRows {
		summary.BatchesByStatus[r.Status] = r.Count
	}

	s.storeSnapshot(ctx, epoch, summary)
	return summary, nil
}

// storeSnapshot кладет сводку в кэш, если за время расчета не было изменений
func (s *DashboardService) storeSnapshot(ctx context.Context, epoch uint64, summary *DashboardSummary) {
	if !s.cacheEnabled() {
		return
	}
	if s.epoch.Load() != epoch {
		utils.Logger().Debug("🔄 dashboard summary устарела во время расчета, в кэш не пишем")
		return
	}
	if err := s.cache.SetJSON(ctx, dashboardCacheKey, summary, s.ttl); err != nil {
		utils.Logger().Warnf("⚠️ dashboard cache write failed: %v", err)
		return
	}
	// инвалидация между проверкой и записью: убираем только что записанное
	if s.epoch.Load() != epoch {
		if err := s.cache.Delete(ctx, dashboardCacheKey); err != nil {
			utils.Logger().Warnf("⚠️ dashboard cache delete failed: %v", err)
		}
	}
}

// mergeKindSummaries всегда возвращает три типа в фиксированном порядке
func mergeKindSummaries(rows []KindSummary) []KindSummary {
	order := []models.ItemKind{models.KindRawMaterial, models.KindPackaging, models.KindFinishedProduct}
	byKind := make(map[models.ItemKind]KindSummary, len(rows))
	for _, r := range rows {
		byKind[r.Kind] = r
	}
	result := make([]KindSummary, 0, len(order))
	for _, k := range order {
		row, ok := byKind[k]
		if !ok {
			row = KindSummary{Kind: k, TotalValue: decimal.Zero}
		}
		result = append(result, row)
	}
	return result
}

// LowStock позиции с остатком ниже точки перезаказа, самые дефицитные первыми
func (s *DashboardService) LowStock(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := s.db.WithContext(ctx).
		Where("quantity_in_stock < reorder_point").
		Order("(reorder_point - quantity_in_stock) DESC, sku").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Publish сбрасывает кэш сводки после любой изменяющей операции
func (s *DashboardService) Publish(ctx context.Context, _ events.Event) error {
	s.epoch.Add(1)
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, dashboardCacheKey)
}
