package models

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

// AutoMigrate создает/обновляет таблицы склада. Порядок важен из-за внешних ключей.
func AutoMigrate(db *gorm.DB) error {
	tables := []interface{}{
		&Item{},
		&BOMEdge{},
		&ProductionBatch{},
		&BatchLineItem{},
		&BatchConsumption{},
		&AdjustmentEvent{},
	}
	for _, t := range tables {
		if err := db.AutoMigrate(t); err != nil {
			return fmt.Errorf("auto migrate %T: %w", t, err)
		}
	}

	// Ограничения, которые GORM не умеет описать тегами
	checks := []string{
		`DO $$ BEGIN
			ALTER TABLE items ADD CONSTRAINT chk_items_quantity_scale CHECK (quantity_in_stock = round(quantity_in_stock, 4));
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
		`DO $$ BEGIN
			ALTER TABLE bom_edges ADD CONSTRAINT chk_bom_quantity_positive CHECK (quantity_required > 0);
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
		`DO $$ BEGIN
			ALTER TABLE batch_line_items ADD CONSTRAINT chk_batch_line_quantity_positive CHECK (quantity > 0);
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
		`DO $$ BEGIN
			ALTER TABLE batch_consumptions ADD CONSTRAINT chk_batch_consumption_quantity_positive CHECK (quantity > 0);
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	}
	for _, stmt := range checks {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("add check constraint: %w", err)
		}
	}

	utils.Logger().Info("✅ Inventory tables migrated successfully")
	return nil
}
