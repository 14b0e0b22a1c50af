package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Column offsets in the two source sheets. The sheets are human-maintained
// and the layout is fixed by the upstream report, not configurable.
const (
	metricColDate    = 1  // B
	metricColCode    = 3  // D
	metricColRevenue = 7  // H
	metricColSignups = 12 // M
	metricColFTD     = 13 // N
	metricColQP      = 14 // O
	metricColBrand   = 20 // U

	expenseColDate   = 0 // A
	expenseColCode   = 1 // B
	expenseColAmount = 6 // G
)

// ParseMetricRow converts one raw metrics row, as returned by the Sheets
// API, into a MetricRecord. Missing or malformed cells degrade to zero or
// empty values; spreadsheet data is human-edited and expected to be
// incomplete, so parsing never fails.
func ParseMetricRow(row []any) MetricRecord {
	return MetricRecord{
		Date:          NormalizeDate(cellString(row, metricColDate)),
		Code:          cellString(row, metricColCode),
		Brand:         cellString(row, metricColBrand),
		Visits:        0, // reserved, not present in the sheet
		Registrations: cellInt(row, metricColSignups),
		FTD:           cellInt(row, metricColFTD),
		QP:            cellInt(row, metricColQP),
		Revenue:       cellFloat(row, metricColRevenue),
	}
}

// ParseExpenseRow extracts the (code, date) key and the expense amount from
// one raw expense row, with the same leniency as ParseMetricRow.
func ParseExpenseRow(row []any) (code, date string, amount float64) {
	return cellString(row, expenseColCode),
		NormalizeDate(cellString(row, expenseColDate)),
		cellFloat(row, expenseColAmount)
}

func cellString(row []any, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

// cellInt coerces a cell to an integer count. Decimal cells are truncated;
// anything else counts as zero.
func cellInt(row []any, idx int) int {
	s := cellString(row, idx)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, ok := parseDecimal(s); ok {
		return int(f)
	}
	return 0
}

func cellFloat(row []any, idx int) float64 {
	if f, ok := parseDecimal(cellString(row, idx)); ok {
		return f
	}
	return 0
}

// parseDecimal accepts both dot and comma decimal separators.
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
