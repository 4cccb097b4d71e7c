package events

import (
	"context"
	"time"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

// Type тип события склада
type Type string

const (
	ItemCreated      Type = "item.created"
	ItemUpdated      Type = "item.updated"
	ItemDeleted      Type = "item.deleted"
	ItemAdjusted     Type = "item.adjusted"
	BOMUpdated       Type = "bom.updated"
	CostRecomputed   Type = "cost.recomputed"
	BatchRecorded    Type = "batch.recorded"
	BatchUpdated     Type = "batch.updated"
	BatchCompleted   Type = "batch.completed"
	BatchCancelled   Type = "batch.cancelled"
	BatchReversed    Type = "batch.reversed"
	PurchaseRecorded Type = "adjustment.purchase"
	LossRecorded     Type = "adjustment.loss"
)

// Event публикуется после коммита каждой изменяющей операции
type Event struct {
	Type     Type      `json:"type"`
	EntityID string    `json:"entity_id"`
	ItemIDs  []string  `json:"item_ids,omitempty"` // позиции, у которых поменялся остаток или ставка
	At       time.Time `json:"at"`
	Payload  any       `json:"payload,omitempty"`
}

// New создает событие с текущим временем
func New(t Type, entityID string, itemIDs []string, payload any) Event {
	return Event{Type: t, EntityID: entityID, ItemIDs: itemIDs, At: time.Now().UTC(), Payload: payload}
}

// Publisher получатель событий. Ошибка публикации не откатывает уже закоммиченную операцию.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc адаптер функции к Publisher
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Nop ничего не делает
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout рассылает событие всем получателям; ошибки только логируются
type Fanout struct {
	publishers []Publisher
}

func NewFanout(publishers ...Publisher) *Fanout {
	f := &Fanout{}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Add подключает получателя после создания (хаб WebSocket стартует позже сервисов)
func (f *Fanout) Add(p Publisher) {
	if p != nil {
		f.publishers = append(f.publishers, p)
	}
}

func (f *Fanout) Publish(ctx context.Context, e Event) error {
	for _, p := range f.publishers {
		if err := p.Publish(ctx, e); err != nil {
			utils.LogError("events", "Fanout.Publish", "publish failed", string(e.Type), err)
		}
	}
	return nil
}
