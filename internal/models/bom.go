package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BOMEdge компонент готовой продукции: сколько единиц компонента уходит на одну единицу продукта
type BOMEdge struct {
	ID                string          `json:"id" gorm:"type:uuid;primaryKey"`
	FinishedProductID string          `json:"finished_product_id" gorm:"type:uuid;not null;uniqueIndex:idx_bom_product_component,priority:1"`
	ComponentID       string          `json:"component_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_bom_product_component,priority:2"`
	QuantityRequired  decimal.Decimal `json:"quantity_required" gorm:"type:decimal(20,4);not null"`
	CreatedAt         time.Time       `json:"created_at" gorm:"autoCreateTime"`

	// Relations: ребра удаляются вместе с продуктом, компонент с ребрами удалить нельзя
	FinishedProduct *Item `json:"-" gorm:"foreignKey:FinishedProductID;constraint:OnDelete:CASCADE"`
	Component       *Item `json:"component,omitempty" gorm:"foreignKey:ComponentID;constraint:OnDelete:RESTRICT"`
}

// TableName указывает имя таблицы
func (BOMEdge) TableName() string {
	return "bom_edges"
}

// BeforeCreate генерирует UUID
func (e *BOMEdge) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
