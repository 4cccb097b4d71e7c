package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/config"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/database"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/events"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/testutil"
)

type inventoryEnv struct {
	db          *gorm.DB
	items       *ItemService
	bom         *BOMService
	rollup      *CostRollupService
	production  *ProductionService
	adjustments *AdjustmentService
	dashboard   *DashboardService
	published   *[]events.Type
}

func setupInventory(t *testing.T) *inventoryEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	var mu sync.Mutex
	var published []events.Type
	recorder := events.PublisherFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, e.Type)
		return nil
	})

	store := NewStore(db, database.NewRetrier(10, 5*time.Millisecond), recorder)
	items := NewItemService(store)
	bom := NewBOMService(store)
	return &inventoryEnv{
		db:          db,
		items:       items,
		bom:         bom,
		rollup:      NewCostRollupService(store),
		production:  NewProductionService(store, nil),
		adjustments: NewAdjustmentService(store, config.CostMethodWeightedAverage),
		dashboard:   NewDashboardService(db, nil, 0),
		published:   &published,
	}
}

// seedScenario EssentialOilA 500ml @0.20, BottleB 100 @0.50, ProductC = 10ml + 1 bottle
func (e *inventoryEnv) seedScenario(t *testing.T) (oil, bottle, product *models.Item) {
	t.Helper()
	ctx := context.Background()
	var err error

	oil, err = e.items.CreateItem(ctx, CreateItemInput{Kind: models.KindRawMaterial, SKU: "EO-A", Name: "EssentialOilA",
		MaterialType: "essential_oil", QuantityInStock: dec("500"), UnitCost: dec("0.20"), ReorderPoint: dec("100")})
	require.NoError(t, err)
	bottle, err = e.items.CreateItem(ctx, CreateItemInput{Kind: models.KindPackaging, SKU: "BTL-B", Name: "BottleB",
		PackagingType: "bottle", Size: "10ml", QuantityInStock: dec("100"), UnitCost: dec("0.50"), ReorderPoint: dec("20")})
	require.NoError(t, err)
	product, err = e.items.CreateItem(ctx, CreateItemInput{Kind: models.KindFinishedProduct, SKU: "PRD-C", Name: "ProductC",
		VolumeConfig: "essential_10ml"})
	require.NoError(t, err)

	res, err := e.bom.SetComponents(ctx, product.ID, []ComponentInput{
		{ComponentID: oil.ID, QuantityRequired: dec("10")},
		{ComponentID: bottle.ID, QuantityRequired: dec("1")},
	})
	require.NoError(t, err)
	assertDecimal(t, "2.50", res.UnitPrice)
	return oil, bottle, product
}

func (e *inventoryEnv) reload(t *testing.T, id string) *models.Item {
	t.Helper()
	item, err := e.items.GetItem(context.Background(), id)
	require.NoError(t, err)
	return item
}

func (e *inventoryEnv) assertTotalValues(t *testing.T) {
	t.Helper()
	var items []models.Item
	require.NoError(t, e.db.Find(&items).Error)
	for _, it := range items {
		want := it.QuantityInStock.Mul(it.Rate()).Round(models.ValueScale)
		assert.Truef(t, want.Equal(it.TotalValue), "%s total_value %s, want %s", it.SKU, it.TotalValue, want)
	}
}

func TestScenario_BatchAndPurchase(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, bottle, product := env.seedScenario(t)

	res, err := env.production.RecordBatch(ctx, RecordBatchInput{
		Lines: []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("5")}},
		Notes: "first run",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, res.Batch.Status)
	assert.Regexp(t, `^PB-\d{8}-[0-9A-F]{6}$`, res.Batch.BatchNumber)
	require.Len(t, res.ComponentsConsumed, 2)

	assertDecimal(t, "450", env.reload(t, oil.ID).QuantityInStock)
	assertDecimal(t, "95", env.reload(t, bottle.ID).QuantityInStock)
	p := env.reload(t, product.ID)
	assertDecimal(t, "5", p.QuantityInStock)
	assertDecimal(t, "12.50", p.TotalValue)

	purchase, err := env.adjustments.RecordPurchase(ctx, PurchaseInput{
		ItemID: oil.ID, Quantity: dec("200"), UnitCost: dec("0.30"), Supplier: "Aroma Supplies",
	})
	require.NoError(t, err)
	assertDecimal(t, "0.2308", purchase.Rate)
	assertDecimal(t, "650", purchase.QuantityInStock)
	assert.Equal(t, []string{product.ID}, purchase.AffectedProducts)
	assertDecimal(t, "60", purchase.Event.TotalCost)

	assertDecimal(t, "2.8080", env.reload(t, product.ID).UnitPrice)
	env.assertTotalValues(t)
	assert.Contains(t, *env.published, events.BatchRecorded)
	assert.Contains(t, *env.published, events.PurchaseRecorded)
}

func TestRecordBatch_AtomicOnShortage(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, err := env.items.CreateItem(ctx, CreateItemInput{Kind: models.KindRawMaterial, SKU: "EO-S", Name: "Scarce oil",
		QuantityInStock: dec("5"), UnitCost: dec("1")})
	require.NoError(t, err)
	product, err := env.items.CreateItem(ctx, CreateItemInput{Kind: models.KindFinishedProduct, SKU: "PRD-S", Name: "Scarce product"})
	require.NoError(t, err)
	_, err = env.bom.SetComponents(ctx, product.ID, []ComponentInput{{ComponentID: oil.ID, QuantityRequired: dec("10")}})
	require.NoError(t, err)

	_, err = env.production.RecordBatch(ctx, RecordBatchInput{
		Lines: []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("1000")}},
	})

	var short *InsufficientComponentsError
	require.ErrorAs(t, err, &short)
	require.Len(t, short.Shortfalls, 1)
	assertDecimal(t, "10000", short.Shortfalls[0].Required)
	assertDecimal(t, "5", short.Shortfalls[0].Available)
	assertDecimal(t, "5", env.reload(t, oil.ID).QuantityInStock)
	assertDecimal(t, "0", env.reload(t, product.ID).QuantityInStock)

	var batches int64
	require.NoError(t, env.db.Model(&models.ProductionBatch{}).Count(&batches).Error)
	assert.Zero(t, batches)
}

func TestRecordBatch_Conservation_MultipleLines(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, bottle, productC := env.seedScenario(t)

	productD, err := env.items.CreateItem(ctx, CreateItemInput{Kind: models.KindFinishedProduct, SKU: "PRD-D", Name: "ProductD"})
	require.NoError(t, err)
	_, err = env.bom.SetComponents(ctx, productD.ID, []ComponentInput{
		{ComponentID: oil.ID, QuantityRequired: dec("30")},
		{ComponentID: bottle.ID, QuantityRequired: dec("1")},
	})
	require.NoError(t, err)

	_, err = env.production.RecordBatch(ctx, RecordBatchInput{Lines: []BatchLineInput{
		{FinishedProductID: productC.ID, Quantity: dec("2")},
		{FinishedProductID: productD.ID, Quantity: dec("3")},
	}})
	require.NoError(t, err)

	// oil: 2*10 + 3*30 = 110; bottles: 2 + 3 = 5
	assertDecimal(t, "390", env.reload(t, oil.ID).QuantityInStock)
	assertDecimal(t, "95", env.reload(t, bottle.ID).QuantityInStock)
	assertDecimal(t, "2", env.reload(t, productC.ID).QuantityInStock)
	assertDecimal(t, "3", env.reload(t, productD.ID).QuantityInStock)
	env.assertTotalValues(t)
}

func TestRecordBatch_Validation(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, _, product := env.seedScenario(t)
	empty, err := env.items.CreateItem(ctx, CreateItemInput{Kind: models.KindFinishedProduct, SKU: "PRD-E", Name: "No BOM"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		lines []BatchLineInput
		field string
	}{
		{"no lines", nil, "lines"},
		{"zero quantity", []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("0")}}, "lines[0].quantity"},
		{"duplicate product", []BatchLineInput{
			{FinishedProductID: product.ID, Quantity: dec("1")},
			{FinishedProductID: product.ID, Quantity: dec("2")},
		}, "lines[1].finished_product_id"},
		{"component as product", []BatchLineInput{{FinishedProductID: oil.ID, Quantity: dec("1")}}, "lines[0].finished_product_id"},
		{"product without components", []BatchLineInput{{FinishedProductID: empty.ID, Quantity: dec("1")}}, "lines[0].finished_product_id"},
		{"malformed product id", []BatchLineInput{{FinishedProductID: "x", Quantity: dec("1")}}, "lines[0].finished_product_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.production.RecordBatch(ctx, RecordBatchInput{Lines: tt.lines})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestBatchLifecycle(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, bottle, product := env.seedScenario(t)

	res, err := env.production.RecordBatch(ctx, RecordBatchInput{
		Lines:       []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("4")}},
		Status:      models.BatchInProgress,
		BatchNumber: "PB-MANUAL-1",
	})
	require.NoError(t, err)
	assert.Empty(t, res.ComponentsConsumed)
	assertDecimal(t, "500", env.reload(t, oil.ID).QuantityInStock)

	_, err = env.production.RecordBatch(ctx, RecordBatchInput{
		Lines:       []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("1")}},
		BatchNumber: "PB-MANUAL-1",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "batch_number")

	notes := "bigger run"
	updated, err := env.production.UpdateBatch(ctx, res.Batch.ID, UpdateBatchInput{
		Notes: &notes,
		Lines: []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("6")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "bigger run", updated.Notes)

	completed, err := env.production.CompleteBatch(ctx, res.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, completed.Batch.Status)
	assertDecimal(t, "440", env.reload(t, oil.ID).QuantityInStock)
	assertDecimal(t, "94", env.reload(t, bottle.ID).QuantityInStock)
	assertDecimal(t, "6", env.reload(t, product.ID).QuantityInStock)

	_, err = env.production.CompleteBatch(ctx, res.Batch.ID)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	_, err = env.production.CancelBatch(ctx, res.Batch.ID)
	require.ErrorAs(t, err, &terr)

	_, err = env.production.UpdateBatch(ctx, res.Batch.ID, UpdateBatchInput{
		Lines: []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("1")}},
	})
	require.ErrorAs(t, err, &verr)

	reversed, err := env.production.ReverseBatch(ctx, res.Batch.ID, "")
	require.NoError(t, err)
	require.NotNil(t, reversed.Batch.ReversedAt)
	assert.Equal(t, models.BatchCompleted, reversed.Batch.Status)
	assertDecimal(t, "500", env.reload(t, oil.ID).QuantityInStock)
	assertDecimal(t, "100", env.reload(t, bottle.ID).QuantityInStock)
	assertDecimal(t, "0", env.reload(t, product.ID).QuantityInStock)

	_, err = env.production.ReverseBatch(ctx, res.Batch.ID, "")
	require.ErrorAs(t, err, &terr)

	log, err := env.adjustments.ListAdjustments(ctx, AdjustmentFilter{Kind: models.AdjustmentBatchReversal})
	require.NoError(t, err)
	assert.Len(t, log, 3)
	env.assertTotalValues(t)

	got, err := env.production.GetBatch(ctx, res.Batch.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assertDecimal(t, "6", got.Lines[0].Quantity)
}

func TestCancelBatch_MovesNoStock(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, _, product := env.seedScenario(t)

	res, err := env.production.RecordBatch(ctx, RecordBatchInput{
		Lines:  []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("2")}},
		Status: models.BatchInProgress,
	})
	require.NoError(t, err)

	cancelled, err := env.production.CancelBatch(ctx, res.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assertDecimal(t, "500", env.reload(t, oil.ID).QuantityInStock)

	list, err := env.production.ListBatches(ctx, BatchFilter{Status: models.BatchCancelled})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestReverseBatch_BoundedByFinishedStock(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	_, _, product := env.seedScenario(t)

	res, err := env.production.RecordBatch(ctx, RecordBatchInput{
		Lines: []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("3")}},
	})
	require.NoError(t, err)
	_, err = env.adjustments.RecordLoss(ctx, LossInput{ItemID: product.ID, Quantity: dec("2"), Reason: "broken bottles"})
	require.NoError(t, err)

	_, err = env.production.ReverseBatch(ctx, res.Batch.ID, "wrong recipe")
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "PRD-C", stockErr.SKU)

	got, err := env.production.GetBatch(ctx, res.Batch.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReversedAt)
}

func TestSetComponents_Validation(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, _, product := env.seedScenario(t)
	other, err := env.items.CreateItem(ctx, CreateItemInput{Kind: models.KindFinishedProduct, SKU: "PRD-X", Name: "Other"})
	require.NoError(t, err)

	_, err = env.bom.SetComponents(ctx, product.ID, []ComponentInput{{ComponentID: other.ID, QuantityRequired: dec("1")}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = env.bom.SetComponents(ctx, product.ID, []ComponentInput{
		{ComponentID: oil.ID, QuantityRequired: dec("1")},
		{ComponentID: oil.ID, QuantityRequired: dec("2")},
	})
	require.ErrorAs(t, err, &verr)

	_, err = env.bom.SetComponents(ctx, product.ID, []ComponentInput{{ComponentID: oil.ID, QuantityRequired: dec("-1")}})
	require.ErrorAs(t, err, &verr)

	_, err = env.bom.SetComponents(ctx, oil.ID, nil)
	require.ErrorAs(t, err, &verr)

	_, err = env.bom.SetComponents(ctx, product.ID, []ComponentInput{{ComponentID: "not-a-uuid", QuantityRequired: dec("1")}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be a valid UUID", verr.Fields["components[0].component_id"])

	// отклоненные изменения не трогают состав
	edges, err := env.bom.GetComponents(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	// пустой состав сохраняет последнюю цену
	res, err := env.bom.SetComponents(ctx, product.ID, []ComponentInput{})
	require.NoError(t, err)
	assert.Empty(t, res.Components)
	assertDecimal(t, "2.5", env.reload(t, product.ID).UnitPrice)
}

func TestExpandAndWhereUsed(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, bottle, product := env.seedScenario(t)

	reqs, err := env.bom.Expand(ctx, product.ID, dec("60"))
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, bottle.ID, reqs[0].ItemID)
	assertDecimal(t, "60", reqs[0].Required)
	assertDecimal(t, "0", reqs[0].Shortfall)
	assert.Equal(t, oil.ID, reqs[1].ItemID)
	assertDecimal(t, "600", reqs[1].Required)
	assertDecimal(t, "100", reqs[1].Shortfall)

	used, err := env.bom.WhereUsed(ctx, oil.ID)
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, "PRD-C", used[0].SKU)
	assertDecimal(t, "10", used[0].QuantityRequired)

	deps, err := env.bom.Dependencies(ctx)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Len(t, deps[0].Components, 2)

	preview, err := env.production.PreviewBatch(ctx, []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("60")}})
	require.NoError(t, err)
	assert.False(t, preview.CanProduce)
	require.Len(t, preview.Shortfalls, 1)
	assert.Equal(t, "EO-A", preview.Shortfalls[0].SKU)
}

func TestUpdateItem_CostChangeRollsUp(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	_, bottle, product := env.seedScenario(t)

	cost := dec("0.75")
	updated, err := env.items.UpdateItem(ctx, bottle.ID, UpdateItemInput{UnitCost: &cost})
	require.NoError(t, err)
	assertDecimal(t, "75", updated.TotalValue)
	assertDecimal(t, "2.75", env.reload(t, product.ID).UnitPrice)

	price := dec("9.99")
	_, err = env.items.UpdateItem(ctx, product.ID, UpdateItemInput{UnitPrice: &price})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "unit_price")

	sku := "NEW-SKU"
	_, err = env.items.UpdateItem(ctx, bottle.ID, UpdateItemInput{SKU: &sku})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "sku")

	rollup, err := env.rollup.RecomputeCost(ctx, product.ID)
	require.NoError(t, err)
	assertDecimal(t, "2.75", rollup)
}

func TestUpdateItem_ManualPriceWithoutComponents(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	product, err := env.items.CreateItem(ctx, CreateItemInput{Kind: models.KindFinishedProduct, SKU: "PRD-M", Name: "Manual",
		QuantityInStock: dec("4"), UnitPrice: dec("3")})
	require.NoError(t, err)
	assertDecimal(t, "12", product.TotalValue)

	price := dec("3.5")
	updated, err := env.items.UpdateItem(ctx, product.ID, UpdateItemInput{UnitPrice: &price})
	require.NoError(t, err)
	assertDecimal(t, "14", updated.TotalValue)
}

func TestCreateItem_Validation(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	env.seedScenario(t)

	_, err := env.items.CreateItem(ctx, CreateItemInput{Kind: models.KindRawMaterial, SKU: "EO-A", Name: "Duplicate"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "sku")

	_, err = env.items.CreateItem(ctx, CreateItemInput{Kind: models.KindPackaging, SKU: "CAP-1", Name: "Cap",
		Unit: "ml", QuantityInStock: dec("-1"), PackagingType: "lid"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "unit")
	assert.Contains(t, verr.Fields, "quantity_in_stock")
	assert.Contains(t, verr.Fields, "packaging_type")
}

func TestAdjustQuantity(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, _, _ := env.seedScenario(t)

	_, err := env.items.AdjustQuantity(ctx, oil.ID, AdjustInput{Delta: dec("-501"), Reason: "stocktake"})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assertDecimal(t, "501", stockErr.Requested)
	assertDecimal(t, "500", stockErr.Available)

	item, err := env.items.AdjustQuantity(ctx, oil.ID, AdjustInput{Delta: dec("-501"), AllowNegative: true, Reason: "stocktake"})
	require.NoError(t, err)
	assertDecimal(t, "-1", item.QuantityInStock)
	assertDecimal(t, "-0.2", item.TotalValue)

	log, err := env.adjustments.ListAdjustments(ctx, AdjustmentFilter{ItemID: oil.ID, Kind: models.AdjustmentCorrection})
	require.NoError(t, err)
	require.Len(t, log, 1)
	assertDecimal(t, "-501", log[0].QuantityDelta)
}

func TestRecordLossAndPurchaseRules(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, _, product := env.seedScenario(t)

	loss, err := env.adjustments.RecordLoss(ctx, LossInput{ItemID: oil.ID, Quantity: dec("25"), Reason: "spill"})
	require.NoError(t, err)
	require.NotNil(t, loss.CostImpact)
	assertDecimal(t, "5", *loss.CostImpact)
	assertDecimal(t, "475", loss.QuantityInStock)
	assertDecimal(t, "0.2", loss.Rate)

	_, err = env.adjustments.RecordLoss(ctx, LossInput{ItemID: oil.ID, Quantity: dec("1000"), Reason: "spill"})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	_, err = env.adjustments.RecordPurchase(ctx, PurchaseInput{ItemID: product.ID, Quantity: dec("1"), UnitCost: dec("1"), Supplier: "x"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = env.adjustments.RecordPurchase(ctx, PurchaseInput{ItemID: oil.ID, Quantity: dec("0"), UnitCost: dec("1")})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "quantity")
	assert.Contains(t, verr.Fields, "supplier")

	last := NewAdjustmentService(env.production.store, config.CostMethodLastPrice)
	res, err := last.RecordPurchase(ctx, PurchaseInput{ItemID: oil.ID, Quantity: dec("10"), UnitCost: dec("0.40"), Supplier: "x"})
	require.NoError(t, err)
	assertDecimal(t, "0.4", res.Rate)
	assertDecimal(t, "4.5", env.reload(t, product.ID).UnitPrice)
}

func TestDeleteItem(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, bottle, product := env.seedScenario(t)

	res, err := env.items.DeleteItem(ctx, oil.ID, false)
	var inUse *ItemInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, DeleteBlocked, res.Status)
	assert.EqualValues(t, 1, inUse.UsedInProducts)

	res, err = env.items.DeleteItem(ctx, bottle.ID, true)
	require.NoError(t, err)
	assert.Equal(t, DeleteDeleted, res.Status)
	assert.Equal(t, []string{product.ID}, res.DetachedProducts)
	assertDecimal(t, "2", env.reload(t, product.ID).UnitPrice)

	_, err = env.production.RecordBatch(ctx, RecordBatchInput{
		Lines: []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("1")}},
	})
	require.NoError(t, err)

	res, err = env.items.DeleteItem(ctx, product.ID, true)
	require.ErrorAs(t, err, &inUse)
	assert.EqualValues(t, 1, inUse.BatchLineCount)
	assert.Equal(t, DeleteBlocked, res.Status)

	_, err = env.items.GetItem(ctx, bottle.ID)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestConcurrentBatches_NeverOversell(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, err := env.items.CreateItem(ctx, CreateItemInput{Kind: models.KindRawMaterial, SKU: "EO-RACE", Name: "Race oil",
		QuantityInStock: dec("100"), UnitCost: dec("1")})
	require.NoError(t, err)
	product, err := env.items.CreateItem(ctx, CreateItemInput{Kind: models.KindFinishedProduct, SKU: "PRD-RACE", Name: "Race product"})
	require.NoError(t, err)
	_, err = env.bom.SetComponents(ctx, product.ID, []ComponentInput{{ComponentID: oil.ID, QuantityRequired: dec("10")}})
	require.NoError(t, err)

	const workers = 15
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.production.RecordBatch(ctx, RecordBatchInput{
				Lines: []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("1")}},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			var short *InsufficientComponentsError
			var conflict *ConflictError
			if !errors.As(err, &short) && !errors.As(err, &conflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	o := env.reload(t, oil.ID)
	p := env.reload(t, product.ID)
	assert.False(t, o.QuantityInStock.IsNegative())
	assertDecimal(t, "10", p.QuantityInStock.Add(o.QuantityInStock.Div(dec("10"))))
	assert.LessOrEqual(t, succeeded, 10)
	assert.Equal(t, int64(succeeded), p.QuantityInStock.IntPart())
	env.assertTotalValues(t)
}

func TestDashboardSummary(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, _, product := env.seedScenario(t)

	_, err := env.production.RecordBatch(ctx, RecordBatchInput{
		Lines: []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("45")}},
	})
	require.NoError(t, err)

	summary, err := env.dashboard.Summary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, summary.TotalItems)
	require.Len(t, summary.Kinds, 3)
	assert.Equal(t, models.KindRawMaterial, summary.Kinds[0].Kind)
	assert.EqualValues(t, 1, summary.BatchesByStatus["completed"])
	require.Len(t, summary.RecentBatches, 1)
	// oil 50ml @0.20 + bottles 55 @0.50 + product 45 @2.50
	assertDecimal(t, "150", summary.TotalInventoryValue)

	low, err := env.dashboard.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, oil.ID, low[0].ID)
}

func TestReverseBatch_CreditsRecordedConsumption(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, bottle, product := env.seedScenario(t)

	res, err := env.production.RecordBatch(ctx, RecordBatchInput{
		Lines: []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("5")}},
	})
	require.NoError(t, err)
	require.Len(t, res.Batch.Consumptions, 2)
	assertDecimal(t, "450", env.reload(t, oil.ID).QuantityInStock)

	// рецепт изменился после проведения
	_, err = env.bom.SetComponents(ctx, product.ID, []ComponentInput{
		{ComponentID: oil.ID, QuantityRequired: dec("20")},
		{ComponentID: bottle.ID, QuantityRequired: dec("1")},
	})
	require.NoError(t, err)

	rev, err := env.production.ReverseBatch(ctx, res.Batch.ID, "")
	require.NoError(t, err)
	assert.Empty(t, rev.ComponentsNotReturned)
	assertDecimal(t, "500", env.reload(t, oil.ID).QuantityInStock)
	assertDecimal(t, "100", env.reload(t, bottle.ID).QuantityInStock)
	assertDecimal(t, "0", env.reload(t, product.ID).QuantityInStock)

	// партия по новому рецепту, затем состав очищен: сторно все равно проходит
	res, err = env.production.RecordBatch(ctx, RecordBatchInput{
		Lines: []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("2")}},
	})
	require.NoError(t, err)
	assertDecimal(t, "460", env.reload(t, oil.ID).QuantityInStock)
	_, err = env.bom.SetComponents(ctx, product.ID, []ComponentInput{})
	require.NoError(t, err)

	_, err = env.production.ReverseBatch(ctx, res.Batch.ID, "")
	require.NoError(t, err)
	assertDecimal(t, "500", env.reload(t, oil.ID).QuantityInStock)
	assertDecimal(t, "100", env.reload(t, bottle.ID).QuantityInStock)
	env.assertTotalValues(t)
}

func TestReverseBatch_ReportsDeletedComponent(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	oil, bottle, product := env.seedScenario(t)

	res, err := env.production.RecordBatch(ctx, RecordBatchInput{
		Lines: []BatchLineInput{{FinishedProductID: product.ID, Quantity: dec("3")}},
	})
	require.NoError(t, err)

	_, err = env.items.DeleteItem(ctx, bottle.ID, true)
	require.NoError(t, err)

	rev, err := env.production.ReverseBatch(ctx, res.Batch.ID, "returned by QA")
	require.NoError(t, err)
	assertDecimal(t, "500", env.reload(t, oil.ID).QuantityInStock)
	require.Len(t, rev.ComponentsNotReturned, 1)
	assert.Equal(t, bottle.ID, rev.ComponentsNotReturned[0].ItemID)
	assert.Equal(t, "BTL-B", rev.ComponentsNotReturned[0].SKU)
	assertDecimal(t, "3", rev.ComponentsNotReturned[0].Quantity)

	batch, err := env.production.GetBatch(ctx, res.Batch.ID)
	require.NoError(t, err)
	assert.NotNil(t, batch.ReversedAt)
	assert.Len(t, batch.Consumptions, 2)
}

func TestMalformedIDs(t *testing.T) {
	env := setupInventory(t)
	ctx := context.Background()
	env.seedScenario(t)

	var nf *NotFoundError
	var verr *ValidationError

	_, err := env.items.GetItem(ctx, "abc")
	assert.ErrorAs(t, err, &nf)
	_, err = env.items.AdjustQuantity(ctx, "abc", AdjustInput{Delta: dec("1"), Reason: "count"})
	assert.ErrorAs(t, err, &nf)
	_, err = env.bom.WhereUsed(ctx, "abc")
	assert.ErrorAs(t, err, &nf)
	_, err = env.rollup.RecomputeCost(ctx, "abc")
	assert.ErrorAs(t, err, &nf)
	_, err = env.production.GetBatch(ctx, "abc")
	assert.ErrorAs(t, err, &nf)
	_, err = env.production.ReverseBatch(ctx, "abc", "")
	assert.ErrorAs(t, err, &nf)

	_, err = env.adjustments.RecordPurchase(ctx, PurchaseInput{ItemID: "x", Quantity: dec("1"), UnitCost: dec("1"), Supplier: "S"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be a valid UUID", verr.Fields["item_id"])
	_, err = env.adjustments.ListAdjustments(ctx, AdjustmentFilter{ItemID: "x"})
	assert.ErrorAs(t, err, &verr)
}
