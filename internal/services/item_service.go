package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/events"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
)

// CreateItemInput данные новой позиции
type CreateItemInput struct {
	Kind            models.ItemKind `json:"kind" binding:"required"`
	SKU             string          `json:"sku" binding:"required"`
	Name            string          `json:"name" binding:"required"`
	Unit            string          `json:"unit"`
	MaterialType    string          `json:"material_type"`
	PackagingType   string          `json:"packaging_type"`
	Size            string          `json:"size"`
	VolumeConfig    string          `json:"volume_config"`
	QuantityInStock decimal.Decimal `json:"quantity_in_stock"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	ReorderPoint    decimal.Decimal `json:"reorder_point"`
}

// UpdateItemInput частичное обновление; nil = без изменений.
// SKU и Kind принимаются только чтобы отклонить попытку их изменить.
type UpdateItemInput struct {
	SKU           *string          `json:"sku"`
	Kind          *models.ItemKind `json:"kind"`
	Name          *string          `json:"name"`
	MaterialType  *string          `json:"material_type"`
	PackagingType *string          `json:"packaging_type"`
	Size          *string          `json:"size"`
	VolumeConfig  *string          `json:"volume_config"`
	UnitCost      *decimal.Decimal `json:"unit_cost"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	ReorderPoint  *decimal.Decimal `json:"reorder_point"`
}

// AdjustInput ручная корректировка остатка
type AdjustInput struct {
	Delta         decimal.Decimal `json:"delta"`
	AllowNegative bool            `json:"allow_negative"`
	Reason        string          `json:"reason"`
}

// ItemFilter фильтр списка позиций
type ItemFilter struct {
	Kind         models.ItemKind
	LowStockOnly bool
}

// DeleteStatus итог удаления
type DeleteStatus string

const (
	DeleteDeleted DeleteStatus = "deleted"
	DeleteBlocked DeleteStatus = "blocked"
)

// DeleteResult результат DeleteItem: либо удалено, либо заблокировано ссылками
type DeleteResult struct {
	Status           DeleteStatus    `json:"status"`
	ItemID           string          `json:"item_id"`
	DetachedProducts []string        `json:"detached_products,omitempty"` // продукты, у которых убран компонент
	InUse            *ItemInUseError `json:"in_use,omitempty"`
}

// ItemService управляет позициями склада
type ItemService struct {
	store *Store
}

func NewItemService(store *Store) *ItemService {
	return &ItemService{store: store}
}

// CreateItem создает позицию; total_value считается из остатка и ставки
func (s *ItemService) CreateItem(ctx context.Context, in CreateItemInput) (*models.Item, error) {
	item, verr := buildItem(in)
	if verr != nil {
		return nil, verr
	}

	err := s.store.inTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Item{}).Where("sku = ?", item.SKU).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return NewValidationError("sku", "already exists")
		}
		if err := tx.Create(item).Error; err != nil {
			if isUniqueViolation(err) {
				return NewValidationError("sku", "already exists")
			}
			return fmt.Errorf("create item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.publish(ctx, events.New(events.ItemCreated, item.ID, []string{item.ID}, item))
	return item, nil
}

func buildItem(in CreateItemInput) (*models.Item, *ValidationError) {
	verr := &ValidationError{Fields: map[string]string{}}

	if !in.Kind.Valid() {
		verr.Fields["kind"] = "must be one of raw_material, packaging, finished_product"
	}
	sku := strings.TrimSpace(in.SKU)
	if sku == "" {
		verr.Fields["sku"] = "required"
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		verr.Fields["name"] = "required"
	}
	unit := strings.TrimSpace(in.Unit)
	if in.Kind.Valid() {
		if unit == "" {
			unit = in.Kind.DefaultUnit()
		} else if unit != in.Kind.DefaultUnit() {
			verr.Fields["unit"] = fmt.Sprintf("%s items are measured in %s", in.Kind, in.Kind.DefaultUnit())
		}
	}

	nonNegative(verr, "quantity_in_stock", in.QuantityInStock)
	nonNegative(verr, "unit_cost", in.UnitCost)
	nonNegative(verr, "unit_price", in.UnitPrice)
	nonNegative(verr, "reorder_point", in.ReorderPoint)

	item := &models.Item{
		Kind:            in.Kind,
		SKU:             sku,
		Name:            name,
		Unit:            unit,
		QuantityInStock: round4(in.QuantityInStock),
		ReorderPoint:    round4(in.ReorderPoint),
	}
	switch in.Kind {
	case models.KindFinishedProduct:
		if in.UnitCost.IsPositive() {
			verr.Fields["unit_cost"] = "finished products carry unit_price, not unit_cost"
		}
		item.UnitPrice = round4(in.UnitPrice)
	case models.KindRawMaterial, models.KindPackaging:
		if in.UnitPrice.IsPositive() {
			verr.Fields["unit_price"] = "components carry unit_cost, not unit_price"
		}
		item.UnitCost = round4(in.UnitCost)
	}
	applyDescriptive(verr, item, &in.MaterialType, &in.PackagingType, &in.Size, &in.VolumeConfig)

	if len(verr.Fields) > 0 {
		return nil, verr
	}
	item.RecalculateTotalValue()
	return item, nil
}

// applyDescriptive проверяет описательные атрибуты по типу позиции и переносит их в item
func applyDescriptive(verr *ValidationError, item *models.Item, materialType, packagingType, size, volumeConfig *string) {
	if materialType != nil && *materialType != "" {
		switch {
		case item.Kind == models.KindPackaging:
			verr.Fields["material_type"] = "not applicable to packaging"
		case !slices.Contains(models.MaterialTypes, *materialType):
			verr.Fields["material_type"] = "must be one of " + strings.Join(models.MaterialTypes, ", ")
		default:
			item.MaterialType = *materialType
		}
	}
	if packagingType != nil && *packagingType != "" {
		switch {
		case item.Kind != models.KindPackaging:
			verr.Fields["packaging_type"] = "only applicable to packaging"
		case !slices.Contains(models.PackagingTypes, *packagingType):
			verr.Fields["packaging_type"] = "must be one of " + strings.Join(models.PackagingTypes, ", ")
		default:
			item.PackagingType = *packagingType
		}
	}
	if size != nil && *size != "" {
		if item.Kind != models.KindPackaging {
			verr.Fields["size"] = "only applicable to packaging"
		} else {
			item.Size = strings.TrimSpace(*size)
		}
	}
	if volumeConfig != nil && *volumeConfig != "" {
		switch {
		case item.Kind != models.KindFinishedProduct:
			verr.Fields["volume_config"] = "only applicable to finished products"
		case !slices.Contains(models.VolumeConfigs, *volumeConfig):
			verr.Fields["volume_config"] = "must be one of " + strings.Join(models.VolumeConfigs, ", ")
		default:
			item.VolumeConfig = *volumeConfig
		}
	}
}

func nonNegative(verr *ValidationError, field string, v decimal.Decimal) {
	if v.IsNegative() {
		verr.Fields[field] = "must not be negative"
	}
}

// UpdateItem меняет имя, ставку, точку перезаказа и описательные атрибуты.
// Смена себестоимости компонента пересчитывает цены продуктов в той же транзакции.
func (s *ItemService) UpdateItem(ctx context.Context, id string, in UpdateItemInput) (*models.Item, error) {
	var (
		item     *models.Item
		affected []string
	)
	err := s.store.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		affected = nil
		item, err = lockItem(tx, id)
		if err != nil {
			return err
		}

		verr := &ValidationError{Fields: map[string]string{}}
		if in.SKU != nil && strings.TrimSpace(*in.SKU) != item.SKU {
			verr.Fields["sku"] = "is immutable"
		}
		if in.Kind != nil && *in.Kind != item.Kind {
			verr.Fields["kind"] = "is immutable"
		}
		if in.Name != nil {
			if name := strings.TrimSpace(*in.Name); name == "" {
				verr.Fields["name"] = "required"
			} else {
				item.Name = name
			}
		}
		if in.ReorderPoint != nil {
			nonNegative(verr, "reorder_point", *in.ReorderPoint)
			item.ReorderPoint = round4(*in.ReorderPoint)
		}
		applyDescriptive(verr, item, in.MaterialType, in.PackagingType, in.Size, in.VolumeConfig)

		costChanged := false
		switch item.Kind {
		case models.KindFinishedProduct:
			if in.UnitCost != nil {
				verr.Fields["unit_cost"] = "finished products carry unit_price, not unit_cost"
			}
			if in.UnitPrice != nil && !round4(*in.UnitPrice).Equal(item.UnitPrice) {
				nonNegative(verr, "unit_price", *in.UnitPrice)
				var edges int64
				if err := tx.Model(&models.BOMEdge{}).Where("finished_product_id = ?", id).Count(&edges).Error; err != nil {
					return err
				}
				if edges > 0 {
					verr.Fields["unit_price"] = "derived from components while the bill of materials is defined"
				}
				item.SetRate(*in.UnitPrice)
			}
		default:
			if in.UnitPrice != nil {
				verr.Fields["unit_price"] = "components carry unit_cost, not unit_price"
			}
			if in.UnitCost != nil && !round4(*in.UnitCost).Equal(item.UnitCost) {
				nonNegative(verr, "unit_cost", *in.UnitCost)
				item.SetRate(*in.UnitCost)
				costChanged = true
			}
		}
		if len(verr.Fields) > 0 {
			return verr
		}

		err = tx.Model(&models.Item{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":           item.Name,
			"reorder_point":  item.ReorderPoint,
			"material_type":  item.MaterialType,
			"packaging_type": item.PackagingType,
			"size":           item.Size,
			"volume_config":  item.VolumeConfig,
		}).Error
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		if err := saveItemValues(tx, item); err != nil {
			return fmt.Errorf("update item values: %w", err)
		}
		if costChanged {
			affected, err = recomputeAffectedTx(tx, id)
			if err != nil {
				return fmt.Errorf("recompute affected products: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.publish(ctx, events.New(events.ItemUpdated, id, append([]string{id}, affected...), item))
	return item, nil
}

// AdjustQuantity корректировка остатка на delta с записью события correction
func (s *ItemService) AdjustQuantity(ctx context.Context, id string, in AdjustInput) (*models.Item, error) {
	delta := round4(in.Delta)
	verr := &ValidationError{Fields: map[string]string{}}
	if delta.IsZero() {
		verr.Fields["delta"] = "must not be zero"
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		verr.Fields["reason"] = "required"
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	var item *models.Item
	err := s.store.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		item, err = lockItem(tx, id)
		if err != nil {
			return err
		}
		if err := applyDelta(tx, item, delta, in.AllowNegative); err != nil {
			return err
		}
		return tx.Create(&models.AdjustmentEvent{
			ItemID:        item.ID,
			ItemKind:      item.Kind,
			ItemSKU:       item.SKU,
			Kind:          models.AdjustmentCorrection,
			QuantityDelta: delta,
			UnitCost:      item.Rate(),
			Reason:        reason,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.store.publish(ctx, events.New(events.ItemAdjusted, id, []string{id},
		map[string]string{"delta": delta.String(), "reason": reason}))
	return item, nil
}

// DeleteItem удаляет позицию без ссылок. С detachComponents сначала убирает ее из составов
// и пересчитывает цены продуктов; строки партий блокируют удаление всегда.
func (s *ItemService) DeleteItem(ctx context.Context, id string, detachComponents bool) (DeleteResult, error) {
	result := DeleteResult{ItemID: id}
	err := s.store.inTx(ctx, func(tx *gorm.DB) error {
		result = DeleteResult{ItemID: id}
		item, err := lockItem(tx, id)
		if err != nil {
			return err
		}

		inUse := &ItemInUseError{ItemID: id}
		if item.Kind.IsComponent() {
			if err := tx.Model(&models.BOMEdge{}).Where("component_id = ?", id).Count(&inUse.UsedInProducts).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&models.BatchLineItem{}).Where("finished_product_id = ?", id).Count(&inUse.BatchLineCount).Error; err != nil {
				return err
			}
		}
		if inUse.BatchLineCount > 0 || (inUse.UsedInProducts > 0 && !detachComponents) {
			result.Status = DeleteBlocked
			result.InUse = inUse
			return inUse
		}

		if inUse.UsedInProducts > 0 {
			var productIDs []string
			if err := tx.Model(&models.BOMEdge{}).Where("component_id = ?", id).
				Order("finished_product_id").Pluck("finished_product_id", &productIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("component_id = ?", id).Delete(&models.BOMEdge{}).Error; err != nil {
				return fmt.Errorf("detach component: %w", err)
			}
			if result.DetachedProducts, err = recomputeProductsTx(tx, productIDs); err != nil {
				return fmt.Errorf("recompute detached products: %w", err)
			}
		}

		if err := tx.Where("finished_product_id = ?", id).Delete(&models.BOMEdge{}).Error; err != nil {
			return fmt.Errorf("delete own components: %w", err)
		}
		if err := tx.Delete(&models.Item{}, "id = ?", id).Error; err != nil {
			if isForeignKeyViolation(err) {
				return inUse
			}
			return fmt.Errorf("delete item: %w", err)
		}
		result.Status = DeleteDeleted
		return nil
	})
	if err != nil {
		return result, err
	}

	s.store.publish(ctx, events.New(events.ItemDeleted, id, append([]string{id}, result.DetachedProducts...), nil))
	return result, nil
}

// GetItem позиция по id
func (s *ItemService) GetItem(ctx context.Context, id string) (*models.Item, error) {
	return findItem(s.store.db.WithContext(ctx), id)
}

// ListItems позиции по типу и/или с остатком ниже точки перезаказа
func (s *ItemService) ListItems(ctx context.Context, filter ItemFilter) ([]models.Item, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, NewValidationError("kind", "must be one of raw_material, packaging, finished_product")
	}

	query := s.store.db.WithContext(ctx).Model(&models.Item{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.LowStockOnly {
		query = query.Where("quantity_in_stock < reorder_point")
	}

	var items []models.Item
	if err := query.Order("kind, sku").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
