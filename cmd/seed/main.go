package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/config"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/database"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/services"
	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

type seedItem struct {
	services.CreateItemInput
	components map[string]string // SKU компонента → количество на единицу
}

var catalog = []seedItem{
	{CreateItemInput: services.CreateItemInput{Kind: models.KindRawMaterial, SKU: "EO-LAV", Name: "Lavender essential oil",
		MaterialType: "essential_oil", QuantityInStock: d("500"), UnitCost: d("0.20"), ReorderPoint: d("100")}},
	{CreateItemInput: services.CreateItemInput{Kind: models.KindRawMaterial, SKU: "EO-PEP", Name: "Peppermint essential oil",
		MaterialType: "essential_oil", QuantityInStock: d("300"), UnitCost: d("0.18"), ReorderPoint: d("100")}},
	{CreateItemInput: services.CreateItemInput{Kind: models.KindRawMaterial, SKU: "CO-JOJ", Name: "Jojoba carrier oil",
		MaterialType: "carrier_oil", QuantityInStock: d("2000"), UnitCost: d("0.05"), ReorderPoint: d("500")}},
	{CreateItemInput: services.CreateItemInput{Kind: models.KindPackaging, SKU: "BTL-10", Name: "Amber bottle 10ml",
		PackagingType: "bottle", Size: "10ml", QuantityInStock: d("100"), UnitCost: d("0.50"), ReorderPoint: d("20")}},
	{CreateItemInput: services.CreateItemInput{Kind: models.KindPackaging, SKU: "BTL-30", Name: "Amber bottle 30ml",
		PackagingType: "bottle", Size: "30ml", QuantityInStock: d("80"), UnitCost: d("0.70"), ReorderPoint: d("20")}},
	{CreateItemInput: services.CreateItemInput{Kind: models.KindPackaging, SKU: "DRP-18", Name: "Dropper cap 18mm",
		PackagingType: "dropper", Size: "18mm", QuantityInStock: d("150"), UnitCost: d("0.12"), ReorderPoint: d("30")}},
	{CreateItemInput: services.CreateItemInput{Kind: models.KindPackaging, SKU: "BOX-S", Name: "Inner box small",
		PackagingType: "inner_box", Size: "small", QuantityInStock: d("200"), UnitCost: d("0.08"), ReorderPoint: d("50")}},
	{
		CreateItemInput: services.CreateItemInput{Kind: models.KindFinishedProduct, SKU: "LAV-10", Name: "Lavender 10ml",
			VolumeConfig: "essential_10ml", ReorderPoint: d("10")},
		components: map[string]string{"EO-LAV": "10", "BTL-10": "1"},
	},
	{
		CreateItemInput: services.CreateItemInput{Kind: models.KindFinishedProduct, SKU: "PEP-10", Name: "Peppermint 10ml boxed",
			VolumeConfig: "essential_10ml", ReorderPoint: d("10")},
		components: map[string]string{"EO-PEP": "10", "BTL-10": "1", "DRP-18": "1", "BOX-S": "1"},
	},
	{
		CreateItemInput: services.CreateItemInput{Kind: models.KindFinishedProduct, SKU: "JOJ-30", Name: "Jojoba 30ml",
			VolumeConfig: "carrier_30ml", ReorderPoint: d("5")},
		components: map[string]string{"CO-JOJ": "30", "BTL-30": "1", "DRP-18": "1"},
	},
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func main() {
	withBatch := flag.Bool("batch", false, "провести тестовую партию LAV-10 x5 после загрузки")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		utils.Logger().Info("ℹ️ .env файл не найден, используем переменные окружения системы")
	}
	cfg := config.Load()
	log := utils.InitLogger(cfg.LogLevel, false)

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ PostgreSQL connection failed: %v", err)
	}
	defer database.ClosePostgres(db)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	ctx := context.Background()
	store := services.NewStore(db, database.NewRetrier(cfg.TxMaxRetries, cfg.TxRetryBaseDelay), nil)
	items := services.NewItemService(store)
	bom := services.NewBOMService(store)

	existing, err := items.ListItems(ctx, services.ItemFilter{})
	if err != nil {
		log.Fatalf("❌ list items: %v", err)
	}
	bySKU := make(map[string]string, len(existing))
	for _, it := range existing {
		bySKU[it.SKU] = it.ID
	}

	created := 0
	for _, s := range catalog {
		if _, ok := bySKU[s.SKU]; ok {
			log.Infof("⏭️  %s уже существует, пропускаем", s.SKU)
			continue
		}
		item, err := items.CreateItem(ctx, s.CreateItemInput)
		if err != nil {
			log.Fatalf("❌ create %s: %v", s.SKU, err)
		}
		bySKU[item.SKU] = item.ID
		created++
	}
	log.Infof("✅ Позиции загружены: создано %d, всего в каталоге %d", created, len(catalog))

	for _, s := range catalog {
		if len(s.components) == 0 {
			continue
		}
		inputs := make([]services.ComponentInput, 0, len(s.components))
		for sku, qty := range s.components {
			inputs = append(inputs, services.ComponentInput{ComponentID: bySKU[sku], QuantityRequired: d(qty)})
		}
		res, err := bom.SetComponents(ctx, bySKU[s.SKU], inputs)
		if err != nil {
			log.Fatalf("❌ set components %s: %v", s.SKU, err)
		}
		log.Infof("🧪 %s: %d компонентов, цена %s", s.SKU, len(res.Components), res.UnitPrice.StringFixed(4))
	}

	if *withBatch {
		production := services.NewProductionService(store, nil)
		res, err := production.RecordBatch(ctx, services.RecordBatchInput{
			Lines: []services.BatchLineInput{{FinishedProductID: bySKU["LAV-10"], Quantity: d("5")}},
			Notes: "seed",
		})
		if err != nil {
			log.Errorf("❌ seed batch: %v", err)
			os.Exit(1)
		}
		for _, c := range res.ComponentsConsumed {
			log.Infof("📦 %s: списано %s, остаток %s", c.SKU, c.Quantity, c.Remaining)
		}
		log.Infof("✅ Партия %s проведена", res.Batch.BatchNumber)
	}
}
