package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

// ErrRetriesExhausted транзакция так и не прошла из-за serialization failure / deadlock
var ErrRetriesExhausted = errors.New("serialization retries exhausted")

// Retrier выполняет SERIALIZABLE транзакции с повтором при конфликте
type Retrier struct {
	MaxRetries int
	BaseDelay  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier создает Retrier; maxRetries < 1 трактуется как одна попытка
func NewRetrier(maxRetries int, baseDelay time.Duration) *Retrier {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Retrier{MaxRetries: maxRetries, BaseDelay: baseDelay, sleep: sleepCtx}
}

// Serializable выполняет fn в транзакции SERIALIZABLE.
// fn может быть вызвана несколько раз, поэтому не должна иметь побочных эффектов вне tx.
func (r *Retrier) Serializable(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return r.Do(ctx, func() error {
		return db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
	})
}

// Do повторяет attempt, пока ошибка является serialization failure
func (r *Retrier) Do(ctx context.Context, attempt func() error) error {
	var err error
	for i := 0; i < r.MaxRetries; i++ {
		err = attempt()
		if err == nil {
			if i > 0 {
				utils.Logger().Debugf("✅ транзакция прошла после %d попыток", i+1)
			}
			return nil
		}
		if !IsSerializationFailure(err) {
			return err
		}
		if i == r.MaxRetries-1 {
			break
		}

		// Exponential backoff with jitter
		delay := r.BaseDelay*time.Duration(1<<uint(i)) + time.Duration(rand.Intn(10))*time.Millisecond
		utils.Logger().Warnf("⚠️ serialization failure (попытка %d/%d), retry через %v", i+1, r.MaxRetries, delay)
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, r.MaxRetries, err)
}

// IsSerializationFailure проверяет коды PostgreSQL:
// 40001 - serialization_failure, 40P01 - deadlock_detected
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
