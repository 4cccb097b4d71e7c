package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BatchStatus статус производственной партии
type BatchStatus string

const (
	BatchInProgress BatchStatus = "in_progress"
	BatchCompleted  BatchStatus = "completed"
	BatchCancelled  BatchStatus = "cancelled"
)

// Valid сообщает, известен ли статус
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchInProgress, BatchCompleted, BatchCancelled:
		return true
	}
	return false
}

// CanTransitionTo разрешены только in_progress → completed и in_progress → cancelled
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	return s == BatchInProgress && (next == BatchCompleted || next == BatchCancelled)
}

// ProductionBatch производственная партия (прогон), а не партия хранения
type ProductionBatch struct {
	ID             string          `json:"id" gorm:"type:uuid;primaryKey"`
	BatchNumber    string          `json:"batch_number" gorm:"type:varchar(50);not null;uniqueIndex"`
	ProductionDate time.Time       `json:"production_date" gorm:"type:date;not null"`
	Status         BatchStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	Notes          string          `json:"notes" gorm:"type:text"`
	CompletedAt    *time.Time      `json:"completed_at"`
	CancelledAt    *time.Time      `json:"cancelled_at"`
	ReversedAt     *time.Time      `json:"reversed_at"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
	Lines          []BatchLineItem `json:"lines" gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`

	// Consumptions фактическое списание при проведении; сторно возвращает ровно его
	Consumptions []BatchConsumption `json:"consumptions,omitempty" gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
}

// TableName указывает имя таблицы
func (ProductionBatch) TableName() string {
	return "production_batches"
}

// BeforeCreate генерирует UUID и номер партии
func (b *ProductionBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.BatchNumber == "" {
		b.BatchNumber = NewBatchNumber(b.ProductionDate)
	}
	return nil
}

// NewBatchNumber формат PB-YYYYMMDD-XXXXXX
func NewBatchNumber(date time.Time) string {
	if date.IsZero() {
		date = time.Now().UTC()
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("PB-%s-%s", date.Format("20060102"), suffix)
}

// BatchLineItem строка партии: сколько единиц готовой продукции произведено
type BatchLineItem struct {
	ID                string          `json:"id" gorm:"type:uuid;primaryKey"`
	BatchID           string          `json:"batch_id" gorm:"type:uuid;not null;index"`
	FinishedProductID string          `json:"finished_product_id" gorm:"type:uuid;not null;index"`
	Quantity          decimal.Decimal `json:"quantity" gorm:"type:decimal(20,4);not null"`
	Position          int             `json:"position" gorm:"not null;default:0"`

	FinishedProduct *Item `json:"finished_product,omitempty" gorm:"foreignKey:FinishedProductID;constraint:OnDelete:RESTRICT"`
}

// TableName указывает имя таблицы
func (BatchLineItem) TableName() string {
	return "batch_line_items"
}

// BeforeCreate генерирует UUID
func (l *BatchLineItem) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// BatchConsumption сколько компонента списала партия.
// Без FK на items: компонент может быть удален, снимок SKU остается.
type BatchConsumption struct {
	ID           string          `json:"id" gorm:"type:uuid;primaryKey"`
	BatchID      string          `json:"batch_id" gorm:"type:uuid;not null;uniqueIndex:idx_batch_consumption_component"`
	ComponentID  string          `json:"component_id" gorm:"type:uuid;not null;uniqueIndex:idx_batch_consumption_component;index"`
	ComponentSKU string          `json:"component_sku" gorm:"type:varchar(64);not null"`
	Quantity     decimal.Decimal `json:"quantity" gorm:"type:decimal(20,4);not null"`
	UnitCost     decimal.Decimal `json:"unit_cost" gorm:"type:decimal(20,4);not null;default:0"`
}

// TableName указывает имя таблицы
func (BatchConsumption) TableName() string {
	return "batch_consumptions"
}

// BeforeCreate генерирует UUID
func (c *BatchConsumption) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
