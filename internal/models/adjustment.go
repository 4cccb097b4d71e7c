package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdjustmentKind тип движения вне производства
type AdjustmentKind string

const (
	AdjustmentPurchase      AdjustmentKind = "purchase"
	AdjustmentLoss          AdjustmentKind = "loss"
	AdjustmentCorrection    AdjustmentKind = "correction"
	AdjustmentBatchReversal AdjustmentKind = "batch_reversal"
)

// Valid сообщает, известен ли тип
func (k AdjustmentKind) Valid() bool {
	switch k {
	case AdjustmentPurchase, AdjustmentLoss, AdjustmentCorrection, AdjustmentBatchReversal:
		return true
	}
	return false
}

// AdjustmentEvent запись журнала корректировок (только добавление).
// ItemSKU хранится копией: журнал переживает удаление позиции.
type AdjustmentEvent struct {
	ID            string          `json:"id" gorm:"type:uuid;primaryKey"`
	ItemID        string          `json:"item_id" gorm:"type:uuid;not null;index:idx_adjustment_item_time,priority:1"`
	ItemKind      ItemKind        `json:"item_kind" gorm:"type:varchar(20);not null"`
	ItemSKU       string          `json:"item_sku" gorm:"type:varchar(64);not null"`
	Kind          AdjustmentKind  `json:"kind" gorm:"type:varchar(20);not null;index"`
	QuantityDelta decimal.Decimal `json:"quantity_delta" gorm:"type:decimal(20,4);not null"`
	UnitCost      decimal.Decimal `json:"unit_cost" gorm:"type:decimal(20,4);not null;default:0"`
	TotalCost     decimal.Decimal `json:"total_cost" gorm:"type:decimal(20,2);not null;default:0"`  // закупка
	CostImpact    decimal.Decimal `json:"cost_impact" gorm:"type:decimal(20,2);not null;default:0"` // списание
	Supplier      string          `json:"supplier,omitempty" gorm:"type:varchar(255)"`
	Reason        string          `json:"reason,omitempty" gorm:"type:text"`
	ReferenceID   *string         `json:"reference_id,omitempty" gorm:"type:uuid;index"`
	EventDate     time.Time       `json:"event_date" gorm:"type:date;not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime;index:idx_adjustment_item_time,priority:2"`
}

// TableName указывает имя таблицы
func (AdjustmentEvent) TableName() string {
	return "adjustment_events"
}

// BeforeCreate генерирует UUID
func (a *AdjustmentEvent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.EventDate.IsZero() {
		a.EventDate = time.Now().UTC()
	}
	return nil
}
