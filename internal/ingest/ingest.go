// Package ingest normalizes broker trade exports into validated executions.
//
// A broker file is a header row followed by one fill per row, with the
// columns Symbol/ScripId, Ser/Exp/Group, Strike Price, Option Type, B/S,
// Quantity, Price and, optionally, Trade Date. Without a Trade Date column
// the date comes from the file name (TRADESddmmyyyy.xlsx).
package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/optpnl/pnl-engine/internal/contract"
	"github.com/optpnl/pnl-engine/internal/model"
)

// Broker export column headers.
const (
	ColSymbol     = "Symbol/ScripId"
	ColExpiry     = "Ser/Exp/Group"
	ColStrike     = "Strike Price"
	ColOptionType = "Option Type"
	ColSide       = "B/S"
	ColQuantity   = "Quantity"
	ColPrice      = "Price"
	ColTradeDate  = "Trade Date"
)

var requiredColumns = []string{
	ColSymbol, ColExpiry, ColStrike, ColOptionType, ColSide, ColQuantity, ColPrice,
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "02-01-2006", "02/01/2006", "02012006", "02-Jan-2006"}

// expiryLayout is how broker files spell expiries, e.g. 25JUL2024.
const expiryLayout = "02Jan2006"

// Excel serials between these bounds (1954 to 2119) are read as dates when
// they appear in the expiry column.
const (
	minExpirySerial = 20000
	maxExpirySerial = 80000
)

// fileDateRegex matches the ddmmyyyy stamp in names like TRADES01072024.xlsx.
var fileDateRegex = regexp.MustCompile(`(\d{8})`)

var (
	ErrMissingColumns    = errors.New("ingest: missing required columns")
	ErrUnsupportedFormat = errors.New("ingest: unsupported file format")
	ErrEmptyFile         = errors.New("ingest: file has no header row")
)

// MissingColumnsError lists the required columns absent from a file. The
// whole batch is refused when this is returned.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }

// Result is a normalized batch: the accepted executions in file order and
// the rows that failed validation.
type Result struct {
	Source     string                 `json:"source"`
	Executions []model.TradeExecution `json:"executions"`
	Rejected   []model.Rejection      `json:"rejected"`
}

// Parse dispatches on the file extension.
func Parse(r io.Reader, name string) (*Result, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ParseXLSX(r, name)
	case ".csv":
		return ParseCSV(r, name)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// ParseXLSX reads the first worksheet of a workbook.
func ParseXLSX(r io.Reader, name string) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: open workbook %s: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("ingest: read sheet %s: %w", sheets[0], err)
	}
	return Normalize(rows, name)
}

// Normalize maps a header row plus data rows onto executions. Rows that fail
// validation are rejected one by one; a missing required column rejects the
// whole batch.
func Normalize(records [][]string, name string) (*Result, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}

	index := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		index[strings.TrimSpace(h)] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}

	_, hasDateCol := index[ColTradeDate]
	var fileDate time.Time
	if !hasDateCol {
		d, err := TradeDateFromName(name)
		if err != nil {
			missing = append(missing, ColTradeDate)
		}
		fileDate = d
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	res := &Result{
		Source:     filepath.Base(name),
		Executions: make([]model.TradeExecution, 0, len(records)-1),
		Rejected:   []model.Rejection{},
	}
	for i, rec := range records[1:] {
		rowNum := i + 2 // 1-based, header is row 1
		if blank(rec) {
			continue
		}
		cell := func(col string) string {
			j, ok := index[col]
			if !ok || j >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[j])
		}

		e, err := parseRow(cell, fileDate, hasDateCol)
		if err == nil {
			err = e.Validate()
		}
		if err != nil {
			res.Rejected = append(res.Rejected, model.Rejection{Row: rowNum, Reason: err.Error()})
			continue
		}
		res.Executions = append(res.Executions, e)
	}
	return res, nil
}

func parseRow(cell func(string) string, fileDate time.Time, hasDateCol bool) (model.TradeExecution, error) {
	var e model.TradeExecution

	e.Symbol = strings.ToUpper(cell(ColSymbol))
	e.Expiry = NormalizeExpiry(cell(ColExpiry))

	strike, err := parseDecimal(cell(ColStrike))
	if err != nil {
		return e, fmt.Errorf("strike: %w", err)
	}
	e.Strike = strike

	if e.OptionType, err = contract.ParseOptionType(cell(ColOptionType)); err != nil {
		return e, err
	}
	if e.Side, err = contract.ParseSide(cell(ColSide)); err != nil {
		return e, err
	}

	qty, err := parseDecimal(cell(ColQuantity))
	if err != nil {
		return e, fmt.Errorf("quantity: %w", err)
	}
	if e.Quantity, err = Quantity(qty); err != nil {
		return e, err
	}

	if e.Price, err = parseDecimal(cell(ColPrice)); err != nil {
		return e, fmt.Errorf("price: %w", err)
	}

	e.TradeDate = fileDate
	if hasDateCol {
		if e.TradeDate, err = ParseTradeDate(cell(ColTradeDate)); err != nil {
			return e, err
		}
	}
	return e, nil
}

// ParseTradeDate accepts the common broker layouts and Excel date serials.
func ParseTradeDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.TruncateDate(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return model.TruncateDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("trade date: cannot parse %q", s)
}

// NormalizeExpiry trims an expiry label. A date-typed workbook cell reaches
// here as an Excel serial and is rewritten in the broker's 25JUL2024 form,
// so the same contract keys alike from XLSX and CSV.
func NormalizeExpiry(s string) string {
	s = strings.TrimSpace(s)
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial < minExpirySerial || serial > maxExpirySerial {
		return s
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return s
	}
	return strings.ToUpper(t.Format(expiryLayout))
}

// TradeDateFromName extracts the ddmmyyyy stamp from a broker file name.
func TradeDateFromName(name string) (time.Time, error) {
	m := fileDateRegex.FindString(filepath.Base(name))
	if m == "" {
		return time.Time{}, fmt.Errorf("ingest: no ddmmyyyy date in file name %q", name)
	}
	t, err := time.Parse("02012006", m)
	if err != nil {
		return time.Time{}, fmt.Errorf("ingest: bad date in file name %q: %w", name, err)
	}
	return t, nil
}

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// Quantity converts a parsed quantity to a lot count. Fractions and values
// outside the int64 range are refused rather than truncated.
func Quantity(qty decimal.Decimal) (int64, error) {
	if !qty.IsInteger() {
		return 0, fmt.Errorf("quantity: %s is not a whole number", qty)
	}
	if qty.GreaterThan(maxQuantity) || qty.LessThan(maxQuantity.Neg()) {
		return 0, fmt.Errorf("quantity: %s is out of range", qty)
	}
	return qty.IntPart(), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, errors.New("empty value")
	}
	return decimal.NewFromString(s)
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
