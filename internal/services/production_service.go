package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/events"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

// batchLockTTL время жизни блокировки перехода статуса партии в Redis
const batchLockTTL = 30 * time.Second

// BatchLocker распределенная блокировка (utils.RedisClient)
type BatchLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (*redislock.Lock, error)
}

// BatchLineInput строка партии
type BatchLineInput struct {
	FinishedProductID string          `json:"finished_product_id"`
	Quantity          decimal.Decimal `json:"quantity"`
}

// RecordBatchInput новая производственная партия
type RecordBatchInput struct {
	Lines          []BatchLineInput   `json:"lines"`
	Notes          string             `json:"notes"`
	Status         models.BatchStatus `json:"status"` // completed по умолчанию
	BatchNumber    string             `json:"batch_number"`
	ProductionDate *time.Time         `json:"production_date"`
}

// UpdateBatchInput правка партии: заметки всегда, строки только в in_progress
type UpdateBatchInput struct {
	Notes          *string          `json:"notes"`
	ProductionDate *time.Time       `json:"production_date"`
	Lines          []BatchLineInput `json:"lines"` // nil = без изменений
}

// ConsumedComponent списанный компонент и остаток после списания
type ConsumedComponent struct {
	ItemID    string          `json:"item_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Remaining decimal.Decimal `json:"remaining"`
}

// BatchResult партия и списанные компоненты (пусто для in_progress).
// При сторно ComponentsNotReturned содержит удаленные с момента проведения компоненты.
type BatchResult struct {
	Batch                 *models.ProductionBatch `json:"batch"`
	ComponentsConsumed    []ConsumedComponent     `json:"components_consumed"`
	ComponentsNotReturned []ConsumedComponent     `json:"components_not_returned,omitempty"`
}

// BatchPreview потребности и нехватки без изменения остатков
type BatchPreview struct {
	Requirements []Requirement `json:"requirements"`
	Shortfalls   []Shortfall   `json:"shortfalls"`
	CanProduce   bool          `json:"can_produce"`
}

// BatchFilter фильтр списка партий
type BatchFilter struct {
	Status models.BatchStatus
	Limit  int
}

// ProductionService проводит производственные партии: компоненты → готовая продукция
type ProductionService struct {
	store  *Store
	locker BatchLocker
}

// NewProductionService locker может быть nil: тогда партии сериализует только БД
func NewProductionService(store *Store, locker BatchLocker) *ProductionService {
	return &ProductionService{store: store, locker: locker}
}

// guard берет best-effort блокировку Redis на ключ партии.
// Занятая блокировка = повторная отправка той же партии → ConflictError.
// Недоступный Redis не мешает: корректность обеспечивает SERIALIZABLE.
func (s *ProductionService) guard(ctx context.Context, key string) (func(), error) {
	noop := func() {}
	if s.locker == nil || key == "" {
		return noop, nil
	}
	lock, err := s.locker.Obtain(ctx, "lock:batch:"+key, batchLockTTL)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, &ConflictError{Reason: fmt.Sprintf("batch %s is already being processed", key)}
	}
	if err != nil {
		utils.Logger().WithField("batch", key).Warn("⚠️ error obtaining redis lock; proceeding without redis lock: " + err.Error())
		return noop, nil
	}
	return func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			utils.Logger().WithField("batch", key).Warn("⚠️ failed to release redis lock: " + releaseErr.Error())
		}
	}, nil
}

// RecordBatch создает партию. В статусе completed списывает компоненты и приходует продукцию
// одной транзакцией; любая ошибка откатывает все.
func (s *ProductionService) RecordBatch(ctx context.Context, in RecordBatchInput) (*BatchResult, error) {
	status := in.Status
	if status == "" {
		status = models.BatchCompleted
	}
	verr := &ValidationError{Fields: map[string]string{}}
	if status != models.BatchCompleted && status != models.BatchInProgress {
		verr.Fields["status"] = "must be in_progress or completed"
	}
	lines := validateBatchLines(verr, in.Lines)
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	batchNumber := strings.TrimSpace(in.BatchNumber)
	release, err := s.guard(ctx, batchNumber)
	if err != nil {
		return nil, err
	}
	defer release()

	productionDate := time.Now().UTC()
	if in.ProductionDate != nil && !in.ProductionDate.IsZero() {
		productionDate = in.ProductionDate.UTC()
	}

	var result *BatchResult
	err = s.store.inTx(ctx, func(tx *gorm.DB) error {
		if batchNumber != "" {
			var count int64
			if err := tx.Model(&models.ProductionBatch{}).Where("batch_number = ?", batchNumber).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return NewValidationError("batch_number", "already exists")
			}
		}

		batch := &models.ProductionBatch{
			BatchNumber:    batchNumber,
			ProductionDate: productionDate,
			Status:         status,
			Notes:          strings.TrimSpace(in.Notes),
			Lines:          lines,
		}

		var consumed []ConsumedComponent
		if status == models.BatchCompleted {
			var err error
			if consumed, err = produceTx(tx, lines); err != nil {
				return err
			}
			now := time.Now().UTC()
			batch.CompletedAt = &now
			batch.Consumptions = consumptionRows("", consumed)
		} else if _, _, err := planBatchTx(tx, lines); err != nil {
			return err
		}

		if err := tx.Create(batch).Error; err != nil {
			if isUniqueViolation(err) {
				return NewValidationError("batch_number", "already exists")
			}
			return fmt.Errorf("create batch: %w", err)
		}
		result = &BatchResult{Batch: batch, ComponentsConsumed: consumed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.publish(ctx, events.New(events.BatchRecorded, result.Batch.ID,
		batchItemIDs(result.Batch.Lines, result.ComponentsConsumed), result))
	return result, nil
}

// PreviewBatch шаги разворота и проверки без изменений
func (s *ProductionService) PreviewBatch(ctx context.Context, lines []BatchLineInput) (*BatchPreview, error) {
	verr := &ValidationError{Fields: map[string]string{}}
	batchLines := validateBatchLines(verr, lines)
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	required, stock, err := planBatchTx(s.store.db.WithContext(ctx), batchLines)
	if err != nil {
		return nil, err
	}
	shortfalls := FindShortfalls(required, stock)
	if shortfalls == nil {
		shortfalls = []Shortfall{}
	}
	return &BatchPreview{
		Requirements: buildRequirements(required, stock),
		Shortfalls:   shortfalls,
		CanProduce:   len(shortfalls) == 0,
	}, nil
}

// CompleteBatch in_progress → completed: то же движение остатков, что и RecordBatch
func (s *ProductionService) CompleteBatch(ctx context.Context, id string) (*BatchResult, error) {
	if !validID(id) {
		return nil, &NotFoundError{Entity: "production batch", ID: id}
	}
	release, err := s.guard(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *BatchResult
	err = s.store.inTx(ctx, func(tx *gorm.DB) error {
		batch, err := lockBatch(tx, id)
		if err != nil {
			return err
		}
		if !batch.Status.CanTransitionTo(models.BatchCompleted) {
			return &InvalidTransitionError{From: batch.Status, To: models.BatchCompleted}
		}

		consumed, err := produceTx(tx, batch.Lines)
		if err != nil {
			return err
		}
		rows := consumptionRows(id, consumed)
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("record batch consumption: %w", err)
		}
		batch.Consumptions = rows
		now := time.Now().UTC()
		batch.Status = models.BatchCompleted
		batch.CompletedAt = &now
		if err := tx.Model(&models.ProductionBatch{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":       batch.Status,
			"completed_at": now,
			"updated_at":   now,
		}).Error; err != nil {
			return fmt.Errorf("complete batch: %w", err)
		}
		result = &BatchResult{Batch: batch, ComponentsConsumed: consumed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.publish(ctx, events.New(events.BatchCompleted, id,
		batchItemIDs(result.Batch.Lines, result.ComponentsConsumed), result))
	return result, nil
}

// CancelBatch in_progress → cancelled, остатки не меняются
func (s *ProductionService) CancelBatch(ctx context.Context, id string) (*models.ProductionBatch, error) {
	if !validID(id) {
		return nil, &NotFoundError{Entity: "production batch", ID: id}
	}
	release, err := s.guard(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	var batch *models.ProductionBatch
	err = s.store.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		batch, err = lockBatch(tx, id)
		if err != nil {
			return err
		}
		if !batch.Status.CanTransitionTo(models.BatchCancelled) {
			return &InvalidTransitionError{From: batch.Status, To: models.BatchCancelled}
		}
		now := time.Now().UTC()
		batch.Status = models.BatchCancelled
		batch.CancelledAt = &now
		return tx.Model(&models.ProductionBatch{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":       batch.Status,
			"cancelled_at": now,
			"updated_at":   now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.store.publish(ctx, events.New(events.BatchCancelled, id, nil, batch))
	return batch, nil
}

// UpdateBatch меняет заметки и дату; строки можно заменить только пока партия in_progress
func (s *ProductionService) UpdateBatch(ctx context.Context, id string, in UpdateBatchInput) (*models.ProductionBatch, error) {
	if !validID(id) {
		return nil, &NotFoundError{Entity: "production batch", ID: id}
	}
	var lines []models.BatchLineItem
	if in.Lines != nil {
		verr := &ValidationError{Fields: map[string]string{}}
		lines = validateBatchLines(verr, in.Lines)
		if len(verr.Fields) > 0 {
			return nil, verr
		}
	}

	release, err := s.guard(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	var batch *models.ProductionBatch
	err = s.store.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		batch, err = lockBatch(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"updated_at": time.Now().UTC()}
		if in.Notes != nil {
			batch.Notes = strings.TrimSpace(*in.Notes)
			updates["notes"] = batch.Notes
		}
		if in.ProductionDate != nil && !in.ProductionDate.IsZero() {
			batch.ProductionDate = in.ProductionDate.UTC()
			updates["production_date"] = batch.ProductionDate
		}

		if in.Lines != nil {
			if batch.Status != models.BatchInProgress {
				return NewValidationError("lines", "can only be changed while the batch is in_progress")
			}
			if _, _, err := planBatchTx(tx, lines); err != nil {
				return err
			}
			if err := tx.Where("batch_id = ?", id).Delete(&models.BatchLineItem{}).Error; err != nil {
				return fmt.Errorf("delete batch lines: %w", err)
			}
			for i := range lines {
				lines[i].BatchID = id
			}
			if err := tx.Create(&lines).Error; err != nil {
				return fmt.Errorf("create batch lines: %w", err)
			}
			batch.Lines = lines
		}

		return tx.Model(&models.ProductionBatch{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	s.store.publish(ctx, events.New(events.BatchUpdated, id, nil, batch))
	return batch, nil
}

// ReverseBatch компенсирует проведенную партию один раз: компоненты возвращаются
// в том количестве, в каком были списаны (не по текущему BOM), продукция списывается
// (не ниже нуля), пишутся события batch_reversal.
func (s *ProductionService) ReverseBatch(ctx context.Context, id, reason string) (*BatchResult, error) {
	if !validID(id) {
		return nil, &NotFoundError{Entity: "production batch", ID: id}
	}
	release, err := s.guard(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	reason = strings.TrimSpace(reason)
	var result *BatchResult
	err = s.store.inTx(ctx, func(tx *gorm.DB) error {
		batch, err := lockBatch(tx, id)
		if err != nil {
			return err
		}
		if batch.Status != models.BatchCompleted || batch.ReversedAt != nil {
			return &InvalidTransitionError{From: batch.Status, To: "reversed"}
		}

		if len(batch.Consumptions) == 0 {
			return NewValidationError("batch", "no consumption record for this batch; it cannot be reversed")
		}
		consumedByID := make(map[string]models.BatchConsumption, len(batch.Consumptions))
		credits := make(map[string]decimal.Decimal, len(batch.Consumptions)+len(batch.Lines))
		for _, c := range batch.Consumptions {
			consumedByID[c.ComponentID] = c
			credits[c.ComponentID] = credits[c.ComponentID].Add(c.Quantity)
		}
		for _, l := range batch.Lines {
			credits[l.FinishedProductID] = credits[l.FinishedProductID].Sub(l.Quantity)
		}

		items, err := lockItems(tx, sortedKeys(credits))
		if err != nil {
			return err
		}
		if reason == "" {
			reason = "reversal of batch " + batch.BatchNumber
		}
		returned := make([]ConsumedComponent, 0, len(batch.Consumptions))
		var notReturned []ConsumedComponent
		for _, itemID := range sortedKeys(credits) {
			item, ok := items[itemID]
			if !ok {
				c, isComponent := consumedByID[itemID]
				if !isComponent {
					return &NotFoundError{Entity: "item", ID: itemID}
				}
				// компонент удален после проведения: вернуть некуда
				utils.Logger().WithField("batch", batch.BatchNumber).
					Warnf("⚠️ компонент %s удален, %s не возвращено на склад", c.ComponentSKU, c.Quantity)
				notReturned = append(notReturned, ConsumedComponent{
					ItemID: c.ComponentID, SKU: c.ComponentSKU,
					Quantity: c.Quantity, UnitCost: c.UnitCost, Remaining: decimal.Zero,
				})
				continue
			}
			delta := credits[itemID]
			if err := applyDelta(tx, item, delta, false); err != nil {
				return err
			}
			if err := tx.Create(&models.AdjustmentEvent{
				ItemID:        item.ID,
				ItemKind:      item.Kind,
				ItemSKU:       item.SKU,
				Kind:          models.AdjustmentBatchReversal,
				QuantityDelta: delta,
				UnitCost:      item.Rate(),
				Reason:        reason,
				ReferenceID:   &batch.ID,
			}).Error; err != nil {
				return fmt.Errorf("write reversal event: %w", err)
			}
			if item.Kind.IsComponent() {
				returned = append(returned, ConsumedComponent{
					ItemID: item.ID, SKU: item.SKU, Name: item.Name,
					Quantity: delta, UnitCost: item.UnitCost, Remaining: item.QuantityInStock,
				})
			}
		}
		sortConsumed(returned)
		sortConsumed(notReturned)

		now := time.Now().UTC()
		batch.ReversedAt = &now
		if err := tx.Model(&models.ProductionBatch{}).Where("id = ?", id).Updates(map[string]interface{}{
			"reversed_at": now,
			"updated_at":  now,
		}).Error; err != nil {
			return fmt.Errorf("mark batch reversed: %w", err)
		}
		result = &BatchResult{Batch: batch, ComponentsConsumed: returned, ComponentsNotReturned: notReturned}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.publish(ctx, events.New(events.BatchReversed, id,
		batchItemIDs(result.Batch.Lines, result.ComponentsConsumed), result))
	return result, nil
}

// GetBatch партия со строками в порядке position
func (s *ProductionService) GetBatch(ctx context.Context, id string) (*models.ProductionBatch, error) {
	if !validID(id) {
		return nil, &NotFoundError{Entity: "production batch", ID: id}
	}
	var batch models.ProductionBatch
	err := s.store.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Lines.FinishedProduct").
		Preload("Consumptions").
		Where("id = ?", id).
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Entity: "production batch", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListBatches последние партии, новые первыми
func (s *ProductionService) ListBatches(ctx context.Context, filter BatchFilter) ([]models.ProductionBatch, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, NewValidationError("status", "must be one of in_progress, completed, cancelled")
	}
	query := s.store.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Lines.FinishedProduct")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var batches []models.ProductionBatch
	err := query.Order("created_at DESC").Limit(normalizeLimit(filter.Limit, 50, 500)).Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// validateBatchLines количество > 0, без повторов продукта; возвращает строки с position
func validateBatchLines(verr *ValidationError, inputs []BatchLineInput) []models.BatchLineItem {
	if len(inputs) == 0 {
		verr.Fields["lines"] = "at least one line is required"
		return nil
	}
	seen := make(map[string]int, len(inputs))
	lines := make([]models.BatchLineItem, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("lines[%d]", i)
		if in.FinishedProductID == "" {
			verr.Fields[field+".finished_product_id"] = "required"
			continue
		}
		if !validID(in.FinishedProductID) {
			verr.Fields[field+".finished_product_id"] = "must be a valid UUID"
			continue
		}
		if first, dup := seen[in.FinishedProductID]; dup {
			verr.Fields[field+".finished_product_id"] = fmt.Sprintf("duplicate product (already listed at position %d)", first)
			continue
		}
		seen[in.FinishedProductID] = i
		qty := round4(in.Quantity)
		if !qty.IsPositive() {
			verr.Fields[field+".quantity"] = "must be greater than 0"
		}
		lines = append(lines, models.BatchLineItem{
			FinishedProductID: in.FinishedProductID,
			Quantity:          qty,
			Position:          i,
		})
	}
	return lines
}

// expandLinesTx проверяет продукты строк и суммирует потребность в компонентах
func expandLinesTx(tx *gorm.DB, lines []models.BatchLineItem) (map[string]decimal.Decimal, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.FinishedProductID)
	}

	var products []models.Item
	if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	kinds := make(map[string]models.ItemKind, len(products))
	for _, p := range products {
		kinds[p.ID] = p.Kind
	}

	var edges []models.BOMEdge
	if err := tx.Where("finished_product_id IN ?", ids).Find(&edges).Error; err != nil {
		return nil, err
	}
	byProduct := make(map[string][]models.BOMEdge, len(ids))
	for _, e := range edges {
		byProduct[e.FinishedProductID] = append(byProduct[e.FinishedProductID], e)
	}

	verr := &ValidationError{Fields: map[string]string{}}
	parts := make([]map[string]decimal.Decimal, 0, len(lines))
	for _, l := range lines {
		field := fmt.Sprintf("lines[%d].finished_product_id", l.Position)
		kind, ok := kinds[l.FinishedProductID]
		switch {
		case !ok:
			verr.Fields[field] = "item not found"
		case kind != models.KindFinishedProduct:
			verr.Fields[field] = "item is not a finished product"
		case len(byProduct[l.FinishedProductID]) == 0:
			verr.Fields[field] = "finished product has no components defined"
		default:
			parts = append(parts, expandExact(byProduct[l.FinishedProductID], l.Quantity))
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return MergeRequirements(parts...), nil
}

// planBatchTx разворот строк и текущие остатки компонентов (без блокировок)
func planBatchTx(tx *gorm.DB, lines []models.BatchLineItem) (map[string]decimal.Decimal, map[string]*models.Item, error) {
	required, err := expandLinesTx(tx, lines)
	if err != nil {
		return nil, nil, err
	}
	var components []models.Item
	if err := tx.Where("id IN ?", sortedKeys(required)).Find(&components).Error; err != nil {
		return nil, nil, err
	}
	stock := make(map[string]*models.Item, len(components))
	for i := range components {
		stock[components[i].ID] = &components[i]
	}
	return required, stock, nil
}

// produceTx проверка остатков под FOR UPDATE, списание компонентов, приход продукции
func produceTx(tx *gorm.DB, lines []models.BatchLineItem) ([]ConsumedComponent, error) {
	required, err := expandLinesTx(tx, lines)
	if err != nil {
		return nil, err
	}

	ids := sortedKeys(required)
	for _, l := range lines {
		ids = append(ids, l.FinishedProductID)
	}
	sort.Strings(ids)
	items, err := lockItems(tx, ids)
	if err != nil {
		return nil, err
	}

	if shortfalls := FindShortfalls(required, items); len(shortfalls) > 0 {
		return nil, &InsufficientComponentsError{Shortfalls: shortfalls}
	}

	consumed := make([]ConsumedComponent, 0, len(required))
	for _, cid := range sortedKeys(required) {
		item := items[cid]
		if err := applyDelta(tx, item, required[cid].Neg(), false); err != nil {
			return nil, err
		}
		consumed = append(consumed, ConsumedComponent{
			ItemID: item.ID, SKU: item.SKU, Name: item.Name,
			Quantity: required[cid], UnitCost: item.UnitCost, Remaining: item.QuantityInStock,
		})
	}
	for _, l := range lines {
		product, ok := items[l.FinishedProductID]
		if !ok {
			return nil, &NotFoundError{Entity: "item", ID: l.FinishedProductID}
		}
		if err := applyDelta(tx, product, l.Quantity, false); err != nil {
			return nil, err
		}
	}
	sortConsumed(consumed)
	return consumed, nil
}

func lockBatch(tx *gorm.DB, id string) (*models.ProductionBatch, error) {
	if !validID(id) {
		return nil, &NotFoundError{Entity: "production batch", ID: id}
	}
	var batch models.ProductionBatch
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Entity: "production batch", ID: id}
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Where("batch_id = ?", id).Order("position").Find(&batch.Lines).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("batch_id = ?", id).Find(&batch.Consumptions).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// consumptionRows строки batch_consumptions из фактического списания
func consumptionRows(batchID string, consumed []ConsumedComponent) []models.BatchConsumption {
	rows := make([]models.BatchConsumption, 0, len(consumed))
	for _, c := range consumed {
		rows = append(rows, models.BatchConsumption{
			BatchID:      batchID,
			ComponentID:  c.ItemID,
			ComponentSKU: c.SKU,
			Quantity:     c.Quantity,
			UnitCost:     c.UnitCost,
		})
	}
	return rows
}

func sortConsumed(c []ConsumedComponent) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].SKU != c[j].SKU {
			return c[i].SKU < c[j].SKU
		}
		return c[i].ItemID < c[j].ItemID
	})
}

func batchItemIDs(lines []models.BatchLineItem, consumed []ConsumedComponent) []string {
	ids := make([]string, 0, len(lines)+len(consumed))
	for _, l := range lines {
		ids = append(ids, l.FinishedProductID)
	}
	for _, c := range consumed {
		ids = append(ids, c.ItemID)
	}
	return ids
}
