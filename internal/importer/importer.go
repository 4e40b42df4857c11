// Package importer turns a catalogue spreadsheet into game records.
//
// The first row of the sheet is the header. Recognised columns are Name,
// displayName, catalogueName, image, catalogueGameId, category, providerName,
// popularity, tableId, featured and "Published On"; other columns are ignored.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/thruflo/gamecheck/internal/model"
)

// Column headers.
const (
	ColName            = "Name"
	ColDisplayName     = "displayName"
	ColCatalogueName   = "catalogueName"
	ColImage           = "image"
	ColCatalogueGameID = "catalogueGameId"
	ColCategory        = "category"
	ColProvider        = "providerName"
	ColPopularity      = "popularity"
	ColTableID         = "tableId"
	ColFeatured        = "featured"
	ColPublishedOn     = "Published On"
)

// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Row is one data row keyed by header.
type Row map[string]string

// ReadFile reads rows from an .xlsx (first sheet) or .csv file.
func ReadFile(path string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func readXLSX(path string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return toRows(records), nil
}

// ReadCSV reads rows from CSV data with a header line.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return toRows(records), nil
}

// toRows keys records by the header row and drops blank rows.
func toRows(records [][]string) []Row {
	if len(records) == 0 {
		return nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var rows []Row
	for _, rec := range records[1:] {
		row := Row{}
		for i, v := range rec {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				row[header[i]] = v
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

// RowsToItems maps rows to items in order. Rows without a Name get the ID
// "Game<n>" where n is the 1-based row position.
func RowsToItems(rows []Row) []model.Item {
	items := make([]model.Item, len(rows))
	for i, row := range rows {
		items[i] = rowToItem(i, row)
	}
	return items
}

func rowToItem(index int, row Row) model.Item {
	name := row[ColName]
	id := name
	if id == "" {
		id = "Game" + strconv.Itoa(index+1)
	}

	return model.Item{
		ID:              id,
		Name:            name,
		DisplayName:     firstNonEmpty(row[ColDisplayName], name),
		CatalogueName:   firstNonEmpty(row[ColCatalogueName], name),
		CatalogueGameID: row[ColCatalogueGameID],
		Provider:        firstNonEmpty(row[ColProvider], model.DefaultProvider),
		Category:        firstNonEmpty(row[ColCategory], model.DefaultCategory),
		Image:           row[ColImage],
		Popularity:      parseInt(row[ColPopularity]),
		TableID:         row[ColTableID],
		Featured:        parseBool(row[ColFeatured]),
		Published:       row[ColPublishedOn] != "",
		Status:          model.StatusUnknown,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseInt accepts integers and spreadsheet floats; anything else is 0.
func parseInt(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}
