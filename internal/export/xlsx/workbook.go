// Package xlsx writes annual reports as four-sheet OOXML workbooks.
package xlsx

import (
	"errors"
	"fmt"
	"slices"

	"github.com/xuri/excelize/v2"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	SheetPayslips       = "Payslips"
	SheetLineItems      = "LineItems"
	SheetMonthlySummary = "MonthlySummary"
	SheetEmployers      = "Employers"

	minColumnWidth = 10
	defaultSheet   = "Sheet1"
	numFmtFixed2   = 2
)

var (
	ErrInconsistentSchema = errors.New("sheet rows do not match the header columns")
	ErrRender             = errors.New("render workbook")
)

type Cell struct {
	Key   string
	Value any
}

// Row is an ordered set of named cells. The keys of a sheet's first row make
// up its header.
type Row []Cell

func (r Row) keys() []string {
	keys := make([]string, len(r))
	for i, cell := range r {
		keys[i] = cell.Key
	}
	return keys
}

func (r Row) values() []any {
	values := make([]any, len(r))
	for i, cell := range r {
		values[i] = cell.Value
	}
	return values
}

type Sheet struct {
	Name string
	Rows []Row
}

// Header is derived from the first row; a sheet without rows has no columns.
func (s Sheet) Header() []string {
	if len(s.Rows) == 0 {
		return nil
	}
	return s.Rows[0].keys()
}

func (s Sheet) validate() error {
	header := s.Header()
	for i, row := range s.Rows {
		if !slices.Equal(row.keys(), header) {
			return fmt.Errorf("%w: sheet %s row %d", ErrInconsistentSchema, s.Name, i+1)
		}
	}
	return nil
}

// Write serializes the sheets in order. Every sheet is checked before anything
// is written, so an inconsistent sheet yields an error and no bytes.
func Write(sheets []Sheet) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrRender, r)
		}
	}()

	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets", ErrRender)
	}
	for _, sheet := range sheets {
		if err := sheet.validate(); err != nil {
			return nil, err
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmtFixed2})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRender, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRender, err)
		}
		if err := writeSheet(f, sheet, amountStyle); err != nil {
			return nil, fmt.Errorf("%w: sheet %s: %v", ErrRender, sheet.Name, err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet Sheet, amountStyle int) error {
	header := sheet.Header()
	if len(header) > 0 {
		headerRow := make([]any, len(header))
		for i, key := range header {
			headerRow[i] = key
		}
		if err := f.SetSheetRow(sheet.Name, "A1", &headerRow); err != nil {
			return err
		}
	}

	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row.values()
		if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
			return err
		}
	}

	for col, key := range header {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet.Name, name, name, columnWidth(key)); err != nil {
			return err
		}
		if _, numeric := sheet.Rows[0][col].Value.(float64); numeric {
			last := fmt.Sprintf("%s%d", name, len(sheet.Rows)+1)
			if err := f.SetCellStyle(sheet.Name, name+"2", last, amountStyle); err != nil {
				return err
			}
		}
	}

	return f.SetPanes(sheet.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
		Selection: []excelize.Selection{
			{SQRef: "A2", ActiveCell: "A2", Pane: "bottomLeft"},
		},
	})
}

// columnWidth grows with the header length and never drops below the minimum.
func columnWidth(header string) float64 {
	return max(minColumnWidth, float64(len(header))*1.2+2)
}
