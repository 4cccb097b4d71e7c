package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/models"
)

var (
	rawMaterialHeaders = []string{"SKU", "Название", "Тип", "Ед.", "Остаток", "Себестоимость", "Точка перезаказа", "Стоимость"}
	packagingHeaders   = []string{"SKU", "Название", "Тип упаковки", "Размер", "Остаток", "Себестоимость", "Точка перезаказа", "Стоимость"}
	productHeaders     = []string{"SKU", "Название", "Тип", "Объем", "Остаток", "Цена", "Точка перезаказа", "Стоимость"}
	bomHeaders         = []string{"SKU продукта", "Продукт", "SKU компонента", "Компонент", "Кол-во на ед.", "Себестоимость", "Сумма"}
)

// ReportService выгрузка остатков в XLSX
type ReportService struct {
	items *ItemService
	bom   *BOMService
}

func NewReportService(items *ItemService, bom *BOMService) *ReportService {
	return &ReportService{items: items, bom: bom}
}

// ExportInventory лист на каждый тип позиций и лист состава
func (s *ReportService) ExportInventory(ctx context.Context) (*excelize.File, string, error) {
	items, err := s.items.ListItems(ctx, ItemFilter{})
	if err != nil {
		return nil, "", fmt.Errorf("list items: %w", err)
	}
	deps, err := s.bom.Dependencies(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list dependencies: %w", err)
	}

	f, err := BuildInventoryWorkbook(items, deps)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("inventory_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	return f, filename, nil
}

// BuildInventoryWorkbook собирает книгу из уже загруженных данных
func BuildInventoryWorkbook(items []models.Item, deps []ProductDependencies) (*excelize.File, error) {
	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, err
	}

	byKind := map[models.ItemKind][]models.Item{}
	for _, it := range items {
		byKind[it.Kind] = append(byKind[it.Kind], it)
	}

	sheets := []struct {
		name    string
		headers []string
		kind    models.ItemKind
		row     func(it models.Item) []interface{}
	}{
		{"Raw materials", rawMaterialHeaders, models.KindRawMaterial, func(it models.Item) []interface{} {
			return []interface{}{it.SKU, it.Name, it.MaterialType, it.Unit, it.QuantityInStock.InexactFloat64(),
				it.UnitCost.InexactFloat64(), it.ReorderPoint.InexactFloat64(), it.TotalValue.InexactFloat64()}
		}},
		{"Packaging", packagingHeaders, models.KindPackaging, func(it models.Item) []interface{} {
			return []interface{}{it.SKU, it.Name, it.PackagingType, it.Size, it.QuantityInStock.InexactFloat64(),
				it.UnitCost.InexactFloat64(), it.ReorderPoint.InexactFloat64(), it.TotalValue.InexactFloat64()}
		}},
		{"Finished products", productHeaders, models.KindFinishedProduct, func(it models.Item) []interface{} {
			return []interface{}{it.SKU, it.Name, it.MaterialType, it.VolumeConfig, it.QuantityInStock.InexactFloat64(),
				it.UnitPrice.InexactFloat64(), it.ReorderPoint.InexactFloat64(), it.TotalValue.InexactFloat64()}
		}},
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return nil, err
		}
		if err := writeHeader(f, sh.name, sh.headers, headerStyle); err != nil {
			return nil, err
		}
		for r, it := range byKind[sh.kind] {
			values := sh.row(it)
			if err := f.SetSheetRow(sh.name, fmt.Sprintf("A%d", r+2), &values); err != nil {
				return nil, err
			}
		}
	}

	const bomSheet = "BOM"
	if _, err := f.NewSheet(bomSheet); err != nil {
		return nil, err
	}
	if err := writeHeader(f, bomSheet, bomHeaders, headerStyle); err != nil {
		return nil, err
	}
	row := 2
	for _, d := range deps {
		for _, e := range d.Components {
			var sku, name string
			var cost, lineCost float64
			if e.Component != nil {
				sku, name = e.Component.SKU, e.Component.Name
				cost = e.Component.UnitCost.InexactFloat64()
				lineCost = e.Component.UnitCost.Mul(e.QuantityRequired).Round(models.QuantityScale).InexactFloat64()
			}
			values := []interface{}{d.Product.SKU, d.Product.Name, sku, name, e.QuantityRequired.InexactFloat64(), cost, lineCost}
			if err := f.SetSheetRow(bomSheet, fmt.Sprintf("A%d", row), &values); err != nil {
				return nil, err
			}
			row++
		}
	}
	return f, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		cell := col + "1"
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, 18); err != nil {
			return err
		}
	}
	return nil
}
