package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/events"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
)

// ComponentInput одна строка состава продукта
type ComponentInput struct {
	ComponentID      string          `json:"component_id"`
	QuantityRequired decimal.Decimal `json:"quantity_required"`
}

// ComponentsResult состав продукта после замены и пересчитанная цена
type ComponentsResult struct {
	FinishedProductID string           `json:"finished_product_id"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	Components        []models.BOMEdge `json:"components"`
}

// Requirement потребность в компоненте для заданного выпуска
type Requirement struct {
	ItemID    string          `json:"item_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Kind      models.ItemKind `json:"kind"`
	Unit      string          `json:"unit"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

// WhereUsedEntry продукт, в который входит компонент
type WhereUsedEntry struct {
	FinishedProductID string          `json:"finished_product_id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	QuantityRequired  decimal.Decimal `json:"quantity_required"`
}

// ProductDependencies продукт и все его компоненты (карта зависимостей SKU)
type ProductDependencies struct {
	Product    models.Item      `json:"product"`
	Components []models.BOMEdge `json:"components"`
}

// BOMService владеет ребрами состава (finished product → component)
type BOMService struct {
	store *Store
}

func NewBOMService(store *Store) *BOMService {
	return &BOMService{store: store}
}

// SetComponents атомарно заменяет состав продукта и пересчитывает его цену
func (s *BOMService) SetComponents(ctx context.Context, productID string, inputs []ComponentInput) (*ComponentsResult, error) {
	if verr := validateComponentInputs(inputs); verr != nil {
		return nil, verr
	}

	var result *ComponentsResult
	err := s.store.inTx(ctx, func(tx *gorm.DB) error {
		product, err := lockItem(tx, productID)
		if err != nil {
			return err
		}
		if product.Kind != models.KindFinishedProduct {
			return NewValidationError("finished_product_id", "item is not a finished product")
		}

		ids := make([]string, 0, len(inputs))
		for _, in := range inputs {
			ids = append(ids, in.ComponentID)
		}
		var components []models.Item
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Find(&components).Error; err != nil {
				return err
			}
		}
		byID := make(map[string]*models.Item, len(components))
		for i := range components {
			byID[components[i].ID] = &components[i]
		}

		verr := &ValidationError{Fields: map[string]string{}}
		for i, in := range inputs {
			c, ok := byID[in.ComponentID]
			switch {
			case !ok:
				verr.Fields[fmt.Sprintf("components[%d].component_id", i)] = "item not found"
			case !c.Kind.IsComponent():
				verr.Fields[fmt.Sprintf("components[%d].component_id", i)] = "component must be a raw material or packaging item"
			}
		}
		if len(verr.Fields) > 0 {
			return verr
		}

		if err := tx.Where("finished_product_id = ?", productID).Delete(&models.BOMEdge{}).Error; err != nil {
			return fmt.Errorf("delete components: %w", err)
		}
		edges := make([]models.BOMEdge, 0, len(inputs))
		for _, in := range inputs {
			edges = append(edges, models.BOMEdge{
				FinishedProductID: productID,
				ComponentID:       in.ComponentID,
				QuantityRequired:  round4(in.QuantityRequired),
			})
		}
		if len(edges) > 0 {
			if err := tx.Create(&edges).Error; err != nil {
				return fmt.Errorf("create components: %w", err)
			}
		}

		price, _, err := recomputeCostTx(tx, product)
		if err != nil {
			return err
		}
		for i := range edges {
			edges[i].Component = byID[edges[i].ComponentID]
		}
		sortEdgesBySKU(edges)
		result = &ComponentsResult{FinishedProductID: productID, UnitPrice: price, Components: edges}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.publish(ctx, events.New(events.BOMUpdated, productID, []string{productID},
		map[string]string{"unit_price": result.UnitPrice.String()}))
	return result, nil
}

func validateComponentInputs(inputs []ComponentInput) *ValidationError {
	verr := &ValidationError{Fields: map[string]string{}}
	seen := make(map[string]int, len(inputs))
	for i, in := range inputs {
		if in.ComponentID == "" {
			verr.Fields[fmt.Sprintf("components[%d].component_id", i)] = "required"
			continue
		}
		if !validID(in.ComponentID) {
			verr.Fields[fmt.Sprintf("components[%d].component_id", i)] = "must be a valid UUID"
			continue
		}
		if !round4(in.QuantityRequired).IsPositive() {
			verr.Fields[fmt.Sprintf("components[%d].quantity_required", i)] = "must be greater than 0"
		}
		if first, dup := seen[in.ComponentID]; dup {
			verr.Fields[fmt.Sprintf("components[%d].component_id", i)] =
				fmt.Sprintf("duplicate component (already listed at position %d)", first)
			continue
		}
		seen[in.ComponentID] = i
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// GetComponents состав продукта с данными компонентов
func (s *BOMService) GetComponents(ctx context.Context, productID string) ([]models.BOMEdge, error) {
	db := s.store.db.WithContext(ctx)
	product, err := findItem(db, productID)
	if err != nil {
		return nil, err
	}
	if product.Kind != models.KindFinishedProduct {
		return nil, NewValidationError("finished_product_id", "item is not a finished product")
	}

	var edges []models.BOMEdge
	if err := db.Preload("Component").Where("finished_product_id = ?", productID).Find(&edges).Error; err != nil {
		return nil, err
	}
	sortEdgesBySKU(edges)
	return edges, nil
}

// Expand потребность в компонентах на outputQty единиц продукта. Ничего не меняет.
func (s *BOMService) Expand(ctx context.Context, productID string, outputQty decimal.Decimal) ([]Requirement, error) {
	outputQty = round4(outputQty)
	if !outputQty.IsPositive() {
		return nil, NewValidationError("quantity", "must be greater than 0")
	}
	edges, err := s.GetComponents(ctx, productID)
	if err != nil {
		return nil, err
	}

	stock := make(map[string]*models.Item, len(edges))
	for i := range edges {
		if edges[i].Component != nil {
			stock[edges[i].ComponentID] = edges[i].Component
		}
	}
	return buildRequirements(ExpandComponents(edges, outputQty), stock), nil
}

// buildRequirements объединяет потребности с текущими остатками, сортировка по SKU
func buildRequirements(required map[string]decimal.Decimal, stock map[string]*models.Item) []Requirement {
	result := make([]Requirement, 0, len(required))
	for id, need := range required {
		r := Requirement{ItemID: id, Required: need, Available: decimal.Zero, Shortfall: decimal.Zero}
		if item, ok := stock[id]; ok {
			r.SKU, r.Name, r.Kind, r.Unit = item.SKU, item.Name, item.Kind, item.Unit
			r.Available = item.QuantityInStock
		}
		if r.Available.LessThan(need) {
			r.Shortfall = need.Sub(r.Available)
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SKU != result[j].SKU {
			return result[i].SKU < result[j].SKU
		}
		return result[i].ItemID < result[j].ItemID
	})
	return result
}

// WhereUsed продукты, в состав которых входит компонент
func (s *BOMService) WhereUsed(ctx context.Context, componentID string) ([]WhereUsedEntry, error) {
	db := s.store.db.WithContext(ctx)
	if _, err := findItem(db, componentID); err != nil {
		return nil, err
	}

	var entries []WhereUsedEntry
	err := db.Table("bom_edges AS e").
		Select("e.finished_product_id, p.sku, p.name, e.quantity_required").
		Joins("JOIN items p ON p.id = e.finished_product_id").
		Where("e.component_id = ?", componentID).
		Order("p.sku").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Dependencies все готовые продукты с их компонентами
func (s *BOMService) Dependencies(ctx context.Context) ([]ProductDependencies, error) {
	db := s.store.db.WithContext(ctx)

	var products []models.Item
	if err := db.Where("kind = ?", models.KindFinishedProduct).Order("sku").Find(&products).Error; err != nil {
		return nil, err
	}
	var edges []models.BOMEdge
	if err := db.Preload("Component").Find(&edges).Error; err != nil {
		return nil, err
	}

	byProduct := make(map[string][]models.BOMEdge, len(products))
	for _, e := range edges {
		byProduct[e.FinishedProductID] = append(byProduct[e.FinishedProductID], e)
	}

	result := make([]ProductDependencies, 0, len(products))
	for _, p := range products {
		components := byProduct[p.ID]
		if components == nil {
			components = []models.BOMEdge{}
		}
		sortEdgesBySKU(components)
		result = append(result, ProductDependencies{Product: p, Components: components})
	}
	return result, nil
}

func sortEdgesBySKU(edges []models.BOMEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i].Component, edges[j].Component
		if a == nil || b == nil {
			return edges[i].ComponentID < edges[j].ComponentID
		}
		return a.SKU < b.SKU
	})
}
