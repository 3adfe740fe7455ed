// Package export renders a report as a styled spreadsheet. Styling lives
// here only; the engine hands over plain typed rows.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/optpnl/pnl-engine/internal/model"
	"github.com/optpnl/pnl-engine/internal/report"
)

// SheetName is the worksheet holding the summary.
const SheetName = "Script-Wise Summary"

// ContentType is the MIME type of the workbook written by WriteXLSX.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Fill colors.
const (
	colorHeader   = "D9E1F2"
	colorOpen     = "FFF2CC"
	colorProfit   = "C6EFCE"
	colorLoss     = "FFC7CE"
	colorSubtotal = "EDEDED"
)

// amountColumns are right aligned.
var amountColumns = map[int]bool{6: true, 8: true, report.ColRealizedPnL: true}

type styles struct {
	header, plain, amount, open, openAmount, profit, loss, total int
}

// WriteXLSX writes rep as a single-sheet workbook.
func WriteXLSX(w io.Writer, rep *report.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		return err
	}

	widths := make([]int, len(report.Columns))
	header := make([]any, len(report.Columns))
	for i, c := range report.Columns {
		header[i] = c
		widths[i] = len(c)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	if err := setRowStyle(f, 1, st.header); err != nil {
		return err
	}

	for i, line := range rep.Lines() {
		rowNum := i + 2
		text := line.Strings()
		for col, v := range line.Values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			if err := f.SetCellValue(SheetName, cell, cellValue(v)); err != nil {
				return fmt.Errorf("export: %s: %w", cell, err)
			}
			if n := len(text[col]); n > widths[col] {
				widths[col] = n
			}
			if err := f.SetCellStyle(SheetName, cell, cell, st.pick(line, col)); err != nil {
				return fmt.Errorf("export: style %s: %w", cell, err)
			}
		}
	}

	for i, width := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, name, name, float64(width+2)); err != nil {
			return fmt.Errorf("export: column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func newStyles(f *excelize.File) (*styles, error) {
	center := &excelize.Alignment{Horizontal: "center"}
	right := &excelize.Alignment{Horizontal: "right"}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
	}

	st := &styles{}
	defs := []struct {
		dst   *int
		style excelize.Style
	}{
		{&st.header, excelize.Style{Font: &excelize.Font{Bold: true}, Fill: fill(colorHeader), Alignment: center}},
		{&st.plain, excelize.Style{Alignment: center}},
		{&st.amount, excelize.Style{Alignment: right}},
		{&st.open, excelize.Style{Fill: fill(colorOpen), Alignment: center}},
		{&st.openAmount, excelize.Style{Fill: fill(colorOpen), Alignment: right}},
		{&st.profit, excelize.Style{Fill: fill(colorProfit), Alignment: right}},
		{&st.loss, excelize.Style{Fill: fill(colorLoss), Alignment: right}},
		{&st.total, excelize.Style{Font: &excelize.Font{Bold: true}, Fill: fill(colorSubtotal), Alignment: right}},
	}
	for _, def := range defs {
		s := def.style
		id, err := f.NewStyle(&s)
		if err != nil {
			return nil, fmt.Errorf("export: style: %w", err)
		}
		*def.dst = id
	}
	return st, nil
}

// pick chooses the cell style: total rows bold, open rows yellow, realized
// P&L green or red by sign.
func (s *styles) pick(line report.Line, col int) int {
	switch {
	case line.Kind != report.DetailLine:
		return s.total
	case line.Status == model.Open:
		if amountColumns[col] {
			return s.openAmount
		}
		return s.open
	case col == report.ColRealizedPnL:
		if pnl, ok := line.Values[col].(decimal.Decimal); ok {
			switch pnl.Sign() {
			case 1:
				return s.profit
			case -1:
				return s.loss
			}
		}
		return s.amount
	case amountColumns[col]:
		return s.amount
	}
	return s.plain
}

func setRowStyle(f *excelize.File, row, style int) error {
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(report.Columns), row)
	if err := f.SetCellStyle(SheetName, first, last, style); err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	return nil
}

// cellValue converts engine values into spreadsheet cells. Decimals become
// numbers at this presentation boundary only.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		return x.InexactFloat64()
	}
	return v
}
