package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/database"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/events"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

// Store общие зависимости сервисов склада: БД, ретраи SERIALIZABLE и публикация событий
type Store struct {
	db        *gorm.DB
	retrier   *database.Retrier
	publisher events.Publisher
}

// NewStore создает Store. publisher может быть nil.
func NewStore(db *gorm.DB, retrier *database.Retrier, publisher events.Publisher) *Store {
	if retrier == nil {
		retrier = database.NewRetrier(5, 10*time.Millisecond)
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Store{db: db, retrier: retrier, publisher: publisher}
}

// DB для read-only запросов
func (s *Store) DB() *gorm.DB {
	return s.db
}

// inTx выполняет fn в SERIALIZABLE транзакции с ретраями
func (s *Store) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return asInvalidInput(asConflict(s.retrier.Serializable(ctx, s.db, fn)))
}

// asInvalidInput страховка: значение, не прошедшее приведение типа в Postgres,
// это ошибка ввода, а не внутренняя
func asInvalidInput(err error) error {
	if err != nil && isInvalidTextRepresentation(err) {
		return &ValidationError{Fields: map[string]string{"input": "malformed value"}}
	}
	return err
}

// publish вызывается только после коммита
func (s *Store) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		utils.LogError("services", "Store.publish", "event publish failed", string(e.Type), err)
	}
}

// validID id в каноническом виде UUID (36 символов). Другие строки
// в колонку uuid не попадут: Postgres ответит 22P02.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// onlyValidIDs отбрасывает id, которых заведомо нет в БД
func onlyValidIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

// lockItems читает позиции с SELECT ... FOR UPDATE в порядке возрастания id.
// Некорректные id просто не находятся.
func lockItems(tx *gorm.DB, ids []string) (map[string]*models.Item, error) {
	ids = onlyValidIDs(ids)
	result := make(map[string]*models.Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var items []models.Item
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for i := range items {
		result[items[i].ID] = &items[i]
	}
	return result, nil
}

func lockItem(tx *gorm.DB, id string) (*models.Item, error) {
	items, err := lockItems(tx, []string{id})
	if err != nil {
		return nil, err
	}
	item, ok := items[id]
	if !ok {
		return nil, &NotFoundError{Entity: "item", ID: id}
	}
	return item, nil
}

func findItem(db *gorm.DB, id string) (*models.Item, error) {
	if !validID(id) {
		return nil, &NotFoundError{Entity: "item", ID: id}
	}
	var item models.Item
	if err := db.Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "item", ID: id}
		}
		return nil, err
	}
	return &item, nil
}

// saveItemValues пишет остаток, ставки и total_value одной строкой
func saveItemValues(tx *gorm.DB, item *models.Item) error {
	item.RecalculateTotalValue()
	return tx.Model(&models.Item{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"quantity_in_stock": item.QuantityInStock,
		"unit_cost":         item.UnitCost,
		"unit_price":        item.UnitPrice,
		"total_value":       item.TotalValue,
		"updated_at":        time.Now().UTC(),
	}).Error
}

// applyDelta меняет остаток заблокированной позиции. Без allowNegative остаток не уходит в минус.
func applyDelta(tx *gorm.DB, item *models.Item, delta decimal.Decimal, allowNegative bool) error {
	next := item.QuantityInStock.Add(delta)
	if next.IsNegative() && !allowNegative {
		return &InsufficientStockError{
			ItemID:    item.ID,
			SKU:       item.SKU,
			Requested: delta.Neg(),
			Available: item.QuantityInStock,
		}
	}
	item.ApplyDelta(delta)
	return saveItemValues(tx, item)
}

// round4 приводит входящее количество/ставку к 4 знакам
func round4(v decimal.Decimal) decimal.Decimal {
	return v.Round(models.QuantityScale)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isInvalidTextRepresentation 22P02: строка не приводится к типу колонки
func isInvalidTextRepresentation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func normalizeLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
