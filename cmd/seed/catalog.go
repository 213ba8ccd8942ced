package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet columns, matched case-insensitively against the header row.
// Rows sharing a slug (or title when slug is blank) become variants of
// one product; product-level cells are taken from the first such row.
const (
	colTitle       = "title"
	colSlug        = "slug"
	colPrice       = "price"
	colDescription = "description"
	colImage       = "image"
	colSKU         = "sku"
	colSize        = "size"
	colColor       = "color"
	colStock       = "stock"
	colPublished   = "published"
)

var requiredColumns = []string{colTitle, colPrice, colSKU}

type importReport struct {
	Variants int
	Skipped  []string
}

func readCatalogFile(path string) ([]model.Product, *importReport, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()
	return readCatalog(f)
}

func readCatalog(f *excelize.File) ([]model.Product, *importReport, error) {
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no data found in XLSX file")
	}

	columns := make(map[string]int)
	for i, header := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", name)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	report := &importReport{}
	var products []model.Product
	index := make(map[string]int)
	seenSKU := make(map[string]bool)

	for i, row := range rows[1:] {
		line := i + 2
		title := cell(row, colTitle)
		sku := cell(row, colSKU)
		if title == "" && sku == "" {
			continue
		}
		if title == "" || sku == "" {
			report.Skipped = append(report.Skipped, fmt.Sprintf("row %d: title and sku are required", line))
			continue
		}
		if seenSKU[sku] {
			report.Skipped = append(report.Skipped, fmt.Sprintf("row %d: duplicate sku %s", line, sku))
			continue
		}

		stock := 0
		if s := cell(row, colStock); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				report.Skipped = append(report.Skipped, fmt.Sprintf("row %d: invalid stock %q", line, s))
				continue
			}
			stock = n
		}

		slug := cell(row, colSlug)
		if slug == "" {
			slug = model.GenerateSlug(title)
		}

		pos, ok := index[slug]
		if !ok {
			price, err := decimal.NewFromString(cell(row, colPrice))
			if err != nil || !price.IsPositive() {
				report.Skipped = append(report.Skipped, fmt.Sprintf("row %d: invalid price %q", line, cell(row, colPrice)))
				continue
			}
			product := model.Product{
				Title:       title,
				Slug:        slug,
				Description: cell(row, colDescription),
				BasePrice:   price,
				IsPublished: parsePublished(cell(row, colPublished)),
				Images:      []string{},
			}
			if image := cell(row, colImage); image != "" {
				product.Images = append(product.Images, image)
			}
			products = append(products, product)
			pos = len(products) - 1
			index[slug] = pos
		}

		seenSKU[sku] = true
		products[pos].Variants = append(products[pos].Variants, model.ProductVariant{
			SKU:           sku,
			Size:          cell(row, colSize),
			Color:         cell(row, colColor),
			StockQuantity: stock,
		})
		report.Variants++
	}

	return products, report, nil
}

// parsePublished defaults to published when the cell is blank.
func parsePublished(s string) bool {
	if s == "" {
		return true
	}
	switch strings.ToLower(s) {
	case "no", "n", "false", "0":
		return false
	}
	return true
}
