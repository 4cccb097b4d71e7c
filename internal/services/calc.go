package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
)

// Чистые функции расчета: разворот BOM, нехватки, себестоимость. Без БД.

// ExpandComponents componentID → quantity_required * outputQty, 4 знака
func ExpandComponents(edges []models.BOMEdge, outputQty decimal.Decimal) map[string]decimal.Decimal {
	return MergeRequirements(expandExact(edges, outputQty))
}

// expandExact то же без округления: строки партии суммируются точно
func expandExact(edges []models.BOMEdge, outputQty decimal.Decimal) map[string]decimal.Decimal {
	result := make(map[string]decimal.Decimal, len(edges))
	for _, e := range edges {
		result[e.ComponentID] = result[e.ComponentID].Add(e.QuantityRequired.Mul(outputQty))
	}
	return result
}

// MergeRequirements суммирует потребности нескольких строк партии.
// Округление до 4 знаков один раз, на итоговую сумму по компоненту.
func MergeRequirements(parts ...map[string]decimal.Decimal) map[string]decimal.Decimal {
	result := make(map[string]decimal.Decimal)
	for _, part := range parts {
		for id, qty := range part {
			result[id] = result[id].Add(qty)
		}
	}
	for id, qty := range result {
		result[id] = qty.Round(models.QuantityScale)
	}
	return result
}

// FindShortfalls возвращает все компоненты, которых меньше, чем требуется.
// Отсутствующий в stock компонент считается с нулевым остатком.
// Результат отсортирован по SKU, затем по ID.
func FindShortfalls(required map[string]decimal.Decimal, stock map[string]*models.Item) []Shortfall {
	var shortfalls []Shortfall
	for id, need := range required {
		s := Shortfall{ItemID: id, Required: need, Available: decimal.Zero}
		if item, ok := stock[id]; ok {
			s.SKU = item.SKU
			s.Name = item.Name
			s.Available = item.QuantityInStock
		}
		if s.Available.LessThan(need) {
			s.Shortfall = need.Sub(s.Available)
			shortfalls = append(shortfalls, s)
		}
	}
	sort.Slice(shortfalls, func(i, j int) bool {
		if shortfalls[i].SKU != shortfalls[j].SKU {
			return shortfalls[i].SKU < shortfalls[j].SKU
		}
		return shortfalls[i].ItemID < shortfalls[j].ItemID
	})
	return shortfalls
}

// WeightedAverageCost (oldQty*oldCost + q*c) / (oldQty + q), 4 знака.
// При oldQty <= 0 новая себестоимость равна входящей.
func WeightedAverageCost(oldQty, oldCost, inQty, inCost decimal.Decimal) decimal.Decimal {
	total := oldQty.Add(inQty)
	if !oldQty.IsPositive() || !total.IsPositive() {
		return inCost.Round(models.QuantityScale)
	}
	value := oldQty.Mul(oldCost).Add(inQty.Mul(inCost))
	return value.Div(total).Round(models.QuantityScale)
}

// RollupUnitPrice Σ component.unit_cost * quantity_required, 4 знака.
// Компоненты без записи в components не учитываются.
func RollupUnitPrice(edges []models.BOMEdge, components map[string]*models.Item) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range edges {
		c, ok := components[e.ComponentID]
		if !ok {
			continue
		}
		sum = sum.Add(c.UnitCost.Mul(e.QuantityRequired))
	}
	return sum.Round(models.QuantityScale)
}

// sortedKeys ID в порядке возрастания: блокировки строк всегда берутся в одном порядке
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
