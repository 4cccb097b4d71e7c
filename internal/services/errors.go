package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/database"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
)

// ValidationError ошибки входных данных: поле → сообщение
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError запись не найдена
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InsufficientStockError операция увела бы остаток в минус
type InsufficientStockError struct {
	ItemID    string          `json:"item_id"`
	SKU       string          `json:"sku"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s, available %s", e.SKU, e.Requested, e.Available)
}

// Shortfall нехватка одного компонента для партии
type Shortfall struct {
	ItemID    string          `json:"item_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

// InsufficientComponentsError перечисляет все компоненты, которых не хватает
type InsufficientComponentsError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientComponentsError) Error() string {
	skus := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		skus = append(skus, fmt.Sprintf("%s (short %s)", s.SKU, s.Shortfall))
	}
	return "insufficient components: " + strings.Join(skus, ", ")
}

// ItemInUseError удаление заблокировано ссылками
type ItemInUseError struct {
	ItemID         string `json:"item_id"`
	UsedInProducts int64  `json:"used_in_products"`
	BatchLineCount int64  `json:"batch_lines"`
}

func (e *ItemInUseError) Error() string {
	var reasons []string
	if e.UsedInProducts > 0 {
		reasons = append(reasons, fmt.Sprintf("component of %d product(s)", e.UsedInProducts))
	}
	if e.BatchLineCount > 0 {
		reasons = append(reasons, fmt.Sprintf("referenced by %d batch line(s)", e.BatchLineCount))
	}
	return fmt.Sprintf("item %s is in use: %s", e.ItemID, strings.Join(reasons, ", "))
}

// InvalidTransitionError недопустимый переход статуса партии
type InvalidTransitionError struct {
	From models.BatchStatus `json:"from"`
	To   models.BatchStatus `json:"to"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid batch transition %s -> %s", e.From, e.To)
}

// ConflictError конкурентная операция: ретраи исчерпаны или партия уже обрабатывается
type ConflictError struct {
	Reason string
	Err    error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conflict: %s: %v", e.Reason, e.Err)
	}
	return "conflict: " + e.Reason
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// asConflict превращает исчерпанные ретраи SERIALIZABLE в ConflictError
func asConflict(err error) error {
	if errors.Is(err, database.ErrRetriesExhausted) {
		return &ConflictError{Reason: "concurrent modification, retry later", Err: err}
	}
	return err
}
