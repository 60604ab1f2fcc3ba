package statement

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// sheet is the first worksheet of a workbook. raw carries unformatted cell
// values where the engine can provide them, aligned with rows.
type sheet struct {
	rows [][]string
	raw  [][]string
}

// SpreadsheetAdapter parses xlsx workbooks and falls back to the legacy xls
// reader when the bytes are not an OOXML package.
type SpreadsheetAdapter struct{}

// NewSpreadsheetAdapter creates a spreadsheet adapter.
func NewSpreadsheetAdapter() *SpreadsheetAdapter {
	return &SpreadsheetAdapter{}
}

// Parse reads the first sheet, uses its first row as the header and maps the
// remaining non-blank rows.
func (a *SpreadsheetAdapter) Parse(data []byte) ([]CanonicalRow, error) {
	sh, err := readWorkbook(data)
	if err != nil {
		return nil, &FormatError{Format: FormatSpreadsheet, Err: err}
	}
	if len(sh.rows) == 0 {
		return nil, nil
	}

	cols := detectColumns(sh.rows[0])
	// Workbooks without recognisable headers are read as date, description, ...
	if cols.date < 0 {
		cols.date = 0
	}
	if cols.description < 0 {
		cols.description = 1
	}

	var rows []CanonicalRow
	for i := 1; i < len(sh.rows); i++ {
		cells := sh.rows[i]
		if isBlank(cells) {
			continue
		}
		if cols.date < len(cells) && i < len(sh.raw) && cols.date < len(sh.raw[i]) {
			cells = append([]string(nil), cells...)
			cells[cols.date] = dateCell(cells[cols.date], sh.raw[i][cols.date])
		}
		rows = append(rows, cols.rowFromCells(cells))
	}
	return rows, nil
}

func readWorkbook(data []byte) (*sheet, error) {
	sh, xlsxErr := readXLSX(data)
	if xlsxErr == nil {
		return sh, nil
	}
	sh, xlsErr := readXLS(data)
	if xlsErr == nil {
		return sh, nil
	}
	return nil, fmt.Errorf("xlsx: %v; xls: %w", xlsxErr, xlsErr)
}

func readXLSX(data []byte) (*sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("readXLSX: open: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, errors.New("readXLSX: workbook has no sheets")
	}

	rows, err := f.GetRows(names[0])
	if err != nil {
		return nil, fmt.Errorf("readXLSX: rows: %w", err)
	}
	raw, err := f.GetRows(names[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("readXLSX: raw rows: %w", err)
	}
	return &sheet{rows: rows, raw: raw}, nil
}

func readXLS(data []byte) (sh *sheet, err error) {
	// The xls reader panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			sh, err = nil, fmt.Errorf("readXLS: reader crashed: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("readXLS: open: %w", err)
	}
	if len(wb.GetSheets()) == 0 {
		return nil, errors.New("readXLS: workbook has no sheets")
	}
	ws, err := wb.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("readXLS: sheet: %w", err)
	}

	var rows [][]string
	for _, row := range ws.GetRows() {
		var cells []string
		for _, cell := range row.GetCols() {
			cells = append(cells, cell.GetString())
		}
		rows = append(rows, cells)
	}
	return &sheet{rows: rows}, nil
}

// dateCell turns a date cell shown with a locale number format (for example
// "1/31/24") into an ISO date using the underlying serial number. Cells that
// are text, or already render the raw value, are returned unchanged.
func dateCell(formatted, raw string) string {
	if formatted == raw || strings.TrimSpace(raw) == "" {
		return formatted
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return formatted
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return formatted
	}
	return t.Format("2006-01-02")
}
