package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/config"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/events"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
)

// PurchaseInput закупка сырья или упаковки
type PurchaseInput struct {
	ItemID   string          `json:"item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Supplier string          `json:"supplier" binding:"required"`
	Date     *time.Time      `json:"date"`
}

// LossInput списание (бой, порча, недостача)
type LossInput struct {
	ItemID   string          `json:"item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason" binding:"required"`
	Date     *time.Time      `json:"date"`
}

// AdjustmentResult событие журнала и состояние позиции после него
type AdjustmentResult struct {
	Event            *models.AdjustmentEvent `json:"event"`
	QuantityInStock  decimal.Decimal         `json:"quantity_in_stock"`
	Rate             decimal.Decimal         `json:"rate"`
	TotalValue       decimal.Decimal         `json:"total_value"`
	CostImpact       *decimal.Decimal        `json:"cost_impact,omitempty"`
	AffectedProducts []string                `json:"affected_products,omitempty"`
}

// AdjustmentFilter фильтр журнала
type AdjustmentFilter struct {
	ItemID string
	Kind   models.AdjustmentKind
	Limit  int
}

// AdjustmentService журнал закупок, списаний и корректировок
type AdjustmentService struct {
	store      *Store
	costMethod string
}

// NewAdjustmentService costMethod: config.CostMethodWeightedAverage или config.CostMethodLastPrice
func NewAdjustmentService(store *Store, costMethod string) *AdjustmentService {
	if costMethod != config.CostMethodLastPrice {
		costMethod = config.CostMethodWeightedAverage
	}
	return &AdjustmentService{store: store, costMethod: costMethod}
}

// RecordPurchase приход с пересчетом себестоимости и цен продуктов
func (s *AdjustmentService) RecordPurchase(ctx context.Context, in PurchaseInput) (*AdjustmentResult, error) {
	qty, unitCost := round4(in.Quantity), round4(in.UnitCost)
	supplier := strings.TrimSpace(in.Supplier)

	verr := &ValidationError{Fields: map[string]string{}}
	checkItemID(verr, in.ItemID)
	if !qty.IsPositive() {
		verr.Fields["quantity"] = "must be greater than 0"
	}
	if unitCost.IsNegative() {
		verr.Fields["unit_cost"] = "must not be negative"
	}
	if supplier == "" {
		verr.Fields["supplier"] = "required"
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	var result *AdjustmentResult
	err := s.store.inTx(ctx, func(tx *gorm.DB) error {
		item, err := lockItem(tx, in.ItemID)
		if err != nil {
			return err
		}
		if !item.Kind.IsComponent() {
			return NewValidationError("item_id", "purchases are recorded for raw materials and packaging only")
		}

		newCost := unitCost
		if s.costMethod == config.CostMethodWeightedAverage {
			newCost = WeightedAverageCost(item.QuantityInStock, item.UnitCost, qty, unitCost)
		}
		costChanged := !newCost.Equal(item.UnitCost)
		item.QuantityInStock = item.QuantityInStock.Add(qty)
		item.SetRate(newCost)
		if err := saveItemValues(tx, item); err != nil {
			return err
		}

		event := &models.AdjustmentEvent{
			ItemID:        item.ID,
			ItemKind:      item.Kind,
			ItemSKU:       item.SKU,
			Kind:          models.AdjustmentPurchase,
			QuantityDelta: qty,
			UnitCost:      unitCost,
			TotalCost:     qty.Mul(unitCost).Round(models.ValueScale),
			Supplier:      supplier,
			EventDate:     eventDate(in.Date),
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}

		var affected []string
		if costChanged {
			if affected, err = recomputeAffectedTx(tx, item.ID); err != nil {
				return err
			}
		}
		result = &AdjustmentResult{
			Event:            event,
			QuantityInStock:  item.QuantityInStock,
			Rate:             item.Rate(),
			TotalValue:       item.TotalValue,
			AffectedProducts: affected,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.publish(ctx, events.New(events.PurchaseRecorded, result.Event.ID,
		append([]string{in.ItemID}, result.AffectedProducts...), result))
	return result, nil
}

// RecordLoss списание любой позиции; ставка не меняется, cost_impact = quantity * rate
func (s *AdjustmentService) RecordLoss(ctx context.Context, in LossInput) (*AdjustmentResult, error) {
	qty := round4(in.Quantity)
	reason := strings.TrimSpace(in.Reason)

	verr := &ValidationError{Fields: map[string]string{}}
	checkItemID(verr, in.ItemID)
	if !qty.IsPositive() {
		verr.Fields["quantity"] = "must be greater than 0"
	}
	if reason == "" {
		verr.Fields["reason"] = "required"
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	var result *AdjustmentResult
	err := s.store.inTx(ctx, func(tx *gorm.DB) error {
		item, err := lockItem(tx, in.ItemID)
		if err != nil {
			return err
		}
		if err := applyDelta(tx, item, qty.Neg(), false); err != nil {
			return err
		}

		impact := qty.Mul(item.Rate()).Round(models.ValueScale)
		event := &models.AdjustmentEvent{
			ItemID:        item.ID,
			ItemKind:      item.Kind,
			ItemSKU:       item.SKU,
			Kind:          models.AdjustmentLoss,
			QuantityDelta: qty.Neg(),
			UnitCost:      item.Rate(),
			CostImpact:    impact,
			Reason:        reason,
			EventDate:     eventDate(in.Date),
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		result = &AdjustmentResult{
			Event:           event,
			QuantityInStock: item.QuantityInStock,
			Rate:            item.Rate(),
			TotalValue:      item.TotalValue,
			CostImpact:      &impact,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.publish(ctx, events.New(events.LossRecorded, result.Event.ID, []string{in.ItemID}, result))
	return result, nil
}

// ListAdjustments журнал, новые записи первыми
func (s *AdjustmentService) ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]models.AdjustmentEvent, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, NewValidationError("kind", "must be one of purchase, loss, correction, batch_reversal")
	}
	if filter.ItemID != "" && !validID(filter.ItemID) {
		return nil, NewValidationError("item_id", "must be a valid UUID")
	}
	query := s.store.db.WithContext(ctx).Model(&models.AdjustmentEvent{})
	if filter.ItemID != "" {
		query = query.Where("item_id = ?", filter.ItemID)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}

	var list []models.AdjustmentEvent
	err := query.Order("created_at DESC").Limit(normalizeLimit(filter.Limit, 100, 1000)).Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func checkItemID(verr *ValidationError, id string) {
	switch {
	case id == "":
		verr.Fields["item_id"] = "required"
	case !validID(id):
		verr.Fields["item_id"] = "must be a valid UUID"
	}
}

func eventDate(date *time.Time) time.Time {
	if date == nil || date.IsZero() {
		return time.Now().UTC()
	}
	return date.UTC()
}
