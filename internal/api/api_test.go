package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/database"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/events"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/services"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/testutil"
)

type fakeItems struct {
	ItemStore
	created  services.CreateItemInput
	filter   services.ItemFilter
	detached bool
	err      error
}

func (f *fakeItems) CreateItem(_ context.Context, in services.CreateItemInput) (*models.Item, error) {
	f.created = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Item{ID: "item-1", Kind: in.Kind, SKU: in.SKU, Name: in.Name, QuantityInStock: in.QuantityInStock}, nil
}

func (f *fakeItems) ListItems(_ context.Context, filter services.ItemFilter) ([]models.Item, error) {
	f.filter = filter
	return []models.Item{{ID: "a", SKU: "EO-A"}, {ID: "b", SKU: "BTL-B"}}, f.err
}

func (f *fakeItems) GetItem(_ context.Context, id string) (*models.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Item{ID: id}, nil
}

func (f *fakeItems) DeleteItem(_ context.Context, id string, detach bool) (services.DeleteResult, error) {
	f.detached = detach
	if f.err != nil {
		return services.DeleteResult{Status: services.DeleteBlocked, ItemID: id}, f.err
	}
	return services.DeleteResult{Status: services.DeleteDeleted, ItemID: id}, nil
}

type fakeBatches struct {
	BatchProcessor
	recorded services.RecordBatchInput
	reason   string
	err      error
}

func (f *fakeBatches) RecordBatch(_ context.Context, in services.RecordBatchInput) (*services.BatchResult, error) {
	f.recorded = in
	if f.err != nil {
		return nil, f.err
	}
	return &services.BatchResult{
		Batch: &models.ProductionBatch{ID: "batch-1", Status: models.BatchCompleted},
		ComponentsConsumed: []services.ConsumedComponent{
			{ItemID: "oil", SKU: "EO-A", Quantity: decimal.RequireFromString("50"), Remaining: decimal.RequireFromString("450")},
		},
	}, nil
}

func (f *fakeBatches) ReverseBatch(_ context.Context, id, reason string) (*services.BatchResult, error) {
	f.reason = reason
	if f.err != nil {
		return nil, f.err
	}
	return &services.BatchResult{Batch: &models.ProductionBatch{ID: id}}, nil
}

type fakeLedger struct {
	AdjustmentLedger
	filter services.AdjustmentFilter
}

func (f *fakeLedger) ListAdjustments(_ context.Context, filter services.AdjustmentFilter) ([]models.AdjustmentEvent, error) {
	f.filter = filter
	return []models.AdjustmentEvent{}, nil
}

func newTestRouter(items *fakeItems, batches *fakeBatches, ledger *fakeLedger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterDeps{
		Items:       NewItemController(items),
		Production:  NewProductionController(batches),
		Adjustments: NewAdjustmentController(ledger),
	})
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeItems{}, &fakeBatches{}, &fakeLedger{})
	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", testutil.ParseResponse(w)["status"])
}

func TestCreateItem(t *testing.T) {
	items := &fakeItems{}
	r := newTestRouter(items, &fakeBatches{}, &fakeLedger{})

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/items", map[string]interface{}{
		"kind": "raw_material", "sku": "EO-A", "name": "EssentialOilA", "quantity_in_stock": "500", "unit_cost": 0.2,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "EO-A", items.created.SKU)
	assert.True(t, items.created.UnitCost.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, "item-1", testutil.ParseResponse(w)["id"])
}

func TestCreateItem_BindingErrors(t *testing.T) {
	r := newTestRouter(&fakeItems{}, &fakeBatches{}, &fakeLedger{})

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/items", map[string]interface{}{"kind": "packaging"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := testutil.ParseResponse(w)
	assert.Equal(t, "ValidationError", body["error"])
	details := body["details"].(map[string]interface{})
	assert.Equal(t, "required", details["sku"])
	assert.Equal(t, "required", details["name"])

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/items", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListItems_Filters(t *testing.T) {
	items := &fakeItems{}
	r := newTestRouter(items, &fakeBatches{}, &fakeLedger{})

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/items?kind=packaging&low_stock=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.KindPackaging, items.filter.Kind)
	assert.True(t, items.filter.LowStockOnly)
	assert.EqualValues(t, 2, testutil.ParseResponse(w)["count"])
}

func TestDeleteItem_InUse(t *testing.T) {
	items := &fakeItems{err: &services.ItemInUseError{ItemID: "oil", UsedInProducts: 2}}
	r := newTestRouter(items, &fakeBatches{}, &fakeLedger{})

	w := testutil.DoRequest(r, http.MethodDelete, "/api/v1/items/oil?detach_components=true", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, items.detached)
	body := testutil.ParseResponse(w)
	assert.Equal(t, "ItemInUse", body["error"])
	assert.EqualValues(t, 2, body["in_use"].(map[string]interface{})["used_in_products"])
}

func TestRecordBatch(t *testing.T) {
	batches := &fakeBatches{}
	r := newTestRouter(&fakeItems{}, batches, &fakeLedger{})

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/production-batches", map[string]interface{}{
		"lines": []map[string]interface{}{{"finished_product_id": "product", "quantity": 5}},
		"notes": "morning",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, batches.recorded.Lines, 1)
	assert.True(t, batches.recorded.Lines[0].Quantity.Equal(decimal.NewFromInt(5)))

	body := testutil.ParseResponse(w)
	assert.Equal(t, "batch-1", body["batch_id"])
	consumed := body["components_consumed"].([]interface{})
	require.Len(t, consumed, 1)
	assert.Equal(t, "450", consumed[0].(map[string]interface{})["remaining"])
}

func TestRecordBatch_InsufficientComponents(t *testing.T) {
	batches := &fakeBatches{err: &services.InsufficientComponentsError{Shortfalls: []services.Shortfall{{
		ItemID: "oil", SKU: "EO-A",
		Required:  decimal.RequireFromString("10000"),
		Available: decimal.RequireFromString("5"),
		Shortfall: decimal.RequireFromString("9995"),
	}}}}
	r := newTestRouter(&fakeItems{}, batches, &fakeLedger{})

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/production-batches", map[string]interface{}{
		"lines": []map[string]interface{}{{"finished_product_id": "product", "quantity": 1000}},
	})
	require.Equal(t, http.StatusConflict, w.Code)
	body := testutil.ParseResponse(w)
	assert.Equal(t, "InsufficientComponents", body["error"])
	shortfalls := body["shortfalls"].([]interface{})
	require.Len(t, shortfalls, 1)
	assert.Equal(t, "9995", shortfalls[0].(map[string]interface{})["shortfall"])
}

func TestReverseBatch_OptionalBody(t *testing.T) {
	batches := &fakeBatches{}
	r := newTestRouter(&fakeItems{}, batches, &fakeLedger{})

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/production-batches/b1/reverse", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, batches.reason)

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/production-batches/b1/reverse", map[string]string{"reason": "wrong oil"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "wrong oil", batches.reason)
}

func TestListLosses_UsesLossKind(t *testing.T) {
	ledger := &fakeLedger{}
	r := newTestRouter(&fakeItems{}, &fakeBatches{}, ledger)

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/losses?item_id=oil&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AdjustmentLoss, ledger.filter.Kind)
	assert.Equal(t, "oil", ledger.filter.ItemID)
	assert.Equal(t, 5, ledger.filter.Limit)
}

func TestRespondError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		kind       string
		retryAfter string
	}{
		{"validation", services.NewValidationError("sku", "required"), http.StatusBadRequest, "ValidationError", ""},
		{"not found", &services.NotFoundError{Entity: "item", ID: "x"}, http.StatusNotFound, "NotFound", ""},
		{"wrapped not found", fmt.Errorf("load: %w", &services.NotFoundError{Entity: "item", ID: "x"}), http.StatusNotFound, "NotFound", ""},
		{"insufficient stock", &services.InsufficientStockError{SKU: "EO-A"}, http.StatusConflict, "InsufficientStock", ""},
		{"transition", &services.InvalidTransitionError{From: models.BatchCompleted, To: models.BatchCancelled}, http.StatusConflict, "InvalidTransition", ""},
		{"conflict", &services.ConflictError{Reason: "busy", Err: database.ErrRetriesExhausted}, http.StatusConflict, "Conflict", "1"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "InternalError", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.SetupRouter()
			r.GET("/x", func(c *gin.Context) { respondError(c, "api", "test", tt.err) })

			w := testutil.DoRequest(r, http.MethodGet, "/x", nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.kind, testutil.ParseResponse(w)["error"])
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))
		})
	}
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "sku", toSnake("SKU"))
	assert.Equal(t, "item_id", toSnake("ItemID"))
	assert.Equal(t, "finished_product_id", toSnake("FinishedProductID"))
	assert.Equal(t, "lines[0].quantity", toSnake("Lines[0].Quantity"))
}

func TestCORS_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterDeps{Items: NewItemController(&fakeItems{}), AllowedOrigins: []string{"https://stock.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/items", nil)
	req.Header.Set("Origin", "https://stock.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://stock.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHub_PublishQueuesEvent(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.Publish(context.Background(), events.New(events.BatchRecorded, "batch-1", []string{"oil"}, nil)))

	msg := <-hub.broadcast
	var got events.Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, events.BatchRecorded, got.Type)
	assert.Equal(t, []string{"oil"}, got.ItemIDs)
	assert.Zero(t, hub.GetClientsCount())
}

func TestHub_BroadcastDropsWhenFull(t *testing.T) {
	hub := &Hub{broadcast: make(chan []byte, 1)}
	assert.True(t, hub.BroadcastMessage([]byte("a")))
	assert.False(t, hub.BroadcastMessage([]byte("b")))
}
