package services

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/events"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
)

// CostRollupService пересчитывает цену готовой продукции из себестоимости компонентов
type CostRollupService struct {
	store *Store
}

func NewCostRollupService(store *Store) *CostRollupService {
	return &CostRollupService{store: store}
}

// RecomputeCost пересчитывает цену одного продукта в отдельной транзакции
func (s *CostRollupService) RecomputeCost(ctx context.Context, productID string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.store.inTx(ctx, func(tx *gorm.DB) error {
		product, err := lockItem(tx, productID)
		if err != nil {
			return err
		}
		if product.Kind != models.KindFinishedProduct {
			return NewValidationError("finished_product_id", "item is not a finished product")
		}
		price, _, err = recomputeCostTx(tx, product)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.store.publish(ctx, events.New(events.CostRecomputed, productID, []string{productID},
		map[string]string{"unit_price": price.String()}))
	return price, nil
}

// RecomputeAffected пересчитывает все продукты, в которые входит компонент
func (s *CostRollupService) RecomputeAffected(ctx context.Context, componentID string) ([]string, error) {
	var affected []string
	err := s.store.inTx(ctx, func(tx *gorm.DB) error {
		if _, err := lockItem(tx, componentID); err != nil {
			return err
		}
		var err error
		affected, err = recomputeAffectedTx(tx, componentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(affected) > 0 {
		s.store.publish(ctx, events.New(events.CostRecomputed, componentID, affected, nil))
	}
	return affected, nil
}

// recomputeCostTx цена = Σ cost*qty по ребрам. Продукт без ребер сохраняет последнюю цену.
// product должен быть заблокирован вызывающим.
func recomputeCostTx(tx *gorm.DB, product *models.Item) (decimal.Decimal, bool, error) {
	var edges []models.BOMEdge
	if err := tx.Where("finished_product_id = ?", product.ID).Find(&edges).Error; err != nil {
		return decimal.Zero, false, err
	}
	if len(edges) == 0 {
		return product.UnitPrice, false, nil
	}

	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ComponentID)
	}
	var components []models.Item
	if err := tx.Where("id IN ?", ids).Find(&components).Error; err != nil {
		return decimal.Zero, false, err
	}
	byID := make(map[string]*models.Item, len(components))
	for i := range components {
		byID[components[i].ID] = &components[i]
	}

	price := RollupUnitPrice(edges, byID)
	if price.Equal(product.UnitPrice) {
		return price, false, nil
	}
	product.SetRate(price)
	if err := saveItemValues(tx, product); err != nil {
		return decimal.Zero, false, err
	}
	return price, true, nil
}

// recomputeAffectedTx пересчитывает продукты, использующие компонент; возвращает их id
func recomputeAffectedTx(tx *gorm.DB, componentID string) ([]string, error) {
	var productIDs []string
	err := tx.Model(&models.BOMEdge{}).
		Distinct("finished_product_id").
		Where("component_id = ?", componentID).
		Order("finished_product_id").
		Pluck("finished_product_id", &productIDs).Error
	if err != nil {
		return nil, err
	}
	return recomputeProductsTx(tx, productIDs)
}

func recomputeProductsTx(tx *gorm.DB, productIDs []string) ([]string, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	products, err := lockItems(tx, productIDs)
	if err != nil {
		return nil, err
	}
	ids := sortedKeys(products)
	for _, id := range ids {
		if _, _, err := recomputeCostTx(tx, products[id]); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
