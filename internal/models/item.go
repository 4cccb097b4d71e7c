package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemKind тип складской позиции
type ItemKind string

const (
	KindRawMaterial     ItemKind = "raw_material"
	KindPackaging       ItemKind = "packaging"
	KindFinishedProduct ItemKind = "finished_product"
)

// Valid сообщает, известен ли тип
func (k ItemKind) Valid() bool {
	switch k {
	case KindRawMaterial, KindPackaging, KindFinishedProduct:
		return true
	}
	return false
}

// IsComponent: только сырье и упаковка могут входить в состав готовой продукции
func (k ItemKind) IsComponent() bool {
	return k == KindRawMaterial || k == KindPackaging
}

// DefaultUnit единица измерения по типу: сырье в мл, остальное в штуках
func (k ItemKind) DefaultUnit() string {
	if k == KindRawMaterial {
		return "ml"
	}
	return "pcs"
}

var (
	MaterialTypes  = []string{"essential_oil", "carrier_oil"}
	PackagingTypes = []string{"bottle", "cap", "dropper", "inner_box", "outer_box"}
	VolumeConfigs  = []string{"essential_10ml", "essential_30ml", "carrier_30ml", "carrier_70ml", "carrier_140ml"}
)

// QuantityScale знаков после запятой у количества и ставки; ValueScale у стоимости
const (
	QuantityScale = 4
	ValueScale    = 2
)

// Item складская позиция: сырье, упаковка или готовая продукция
type Item struct {
	ID              string          `json:"id" gorm:"type:uuid;primaryKey"`
	Kind            ItemKind        `json:"kind" gorm:"type:varchar(20);not null;index"`
	SKU             string          `json:"sku" gorm:"type:varchar(64);not null;uniqueIndex"`
	Name            string          `json:"name" gorm:"type:varchar(255);not null"`
	Unit            string          `json:"unit" gorm:"type:varchar(10);not null"`
	MaterialType    string          `json:"material_type,omitempty" gorm:"type:varchar(20)"`  // сырье и готовая продукция
	PackagingType   string          `json:"packaging_type,omitempty" gorm:"type:varchar(20)"` // только упаковка
	Size            string          `json:"size,omitempty" gorm:"type:varchar(50)"`
	VolumeConfig    string          `json:"volume_config,omitempty" gorm:"type:varchar(20)"`
	QuantityInStock decimal.Decimal `json:"quantity_in_stock" gorm:"type:decimal(20,4);not null;default:0"`
	UnitCost        decimal.Decimal `json:"unit_cost" gorm:"type:decimal(20,4);not null;default:0"`
	UnitPrice       decimal.Decimal `json:"unit_price" gorm:"type:decimal(20,4);not null;default:0"`
	ReorderPoint    decimal.Decimal `json:"reorder_point" gorm:"type:decimal(20,4);not null;default:0"`
	TotalValue      decimal.Decimal `json:"total_value" gorm:"type:decimal(20,2);not null;default:0"` // только через RecalculateTotalValue
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (Item) TableName() string {
	return "items"
}

// BeforeCreate генерирует UUID
func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	i.RecalculateTotalValue()
	return nil
}

// Rate ставка для оценки: себестоимость для компонентов, цена для готовой продукции
func (i *Item) Rate() decimal.Decimal {
	if i.Kind == KindFinishedProduct {
		return i.UnitPrice
	}
	return i.UnitCost
}

// SetRate меняет ставку и пересчитывает стоимость остатка
func (i *Item) SetRate(rate decimal.Decimal) {
	rate = rate.Round(QuantityScale)
	if i.Kind == KindFinishedProduct {
		i.UnitPrice = rate
	} else {
		i.UnitCost = rate
	}
	i.RecalculateTotalValue()
}

// ApplyDelta меняет остаток и пересчитывает стоимость. Проверку на минус делает вызывающий.
func (i *Item) ApplyDelta(delta decimal.Decimal) {
	i.QuantityInStock = i.QuantityInStock.Add(delta).Round(QuantityScale)
	i.RecalculateTotalValue()
}

// RecalculateTotalValue total_value = round(quantity * rate, 2)
func (i *Item) RecalculateTotalValue() {
	i.TotalValue = i.QuantityInStock.Mul(i.Rate()).Round(ValueScale)
}

// IsLowStock остаток ниже точки перезаказа
func (i *Item) IsLowStock() bool {
	return i.QuantityInStock.LessThan(i.ReorderPoint)
}
