package core

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var exportHeader = []string{
	"Date", "Code", "Brand", "Signup", "FTD", "Q-FTD",
	"Revenue", "Expense", "Profit", "ROI",
}

// WriteCSV writes the filtered table rows as comma-separated text with a
// trailing TOTAL row re-summing the rows it was given. The total ROI is
// derived from the total profit and expense, with the same zero-expense
// guard as per-row ROI.
func WriteCSV(w io.Writer, rows []AggregatedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	var total AggregatedRecord
	for _, r := range rows {
		total.Registrations += r.Registrations
		total.FTD += r.FTD
		total.QP += r.QP
		total.Revenue += r.Revenue
		total.Expense += r.Expense
		total.Profit += r.Profit
		if err := cw.Write([]string{
			r.Date,
			r.Code,
			r.Brand,
			strconv.Itoa(r.Registrations),
			strconv.Itoa(r.FTD),
			strconv.Itoa(r.QP),
			formatAmount(r.Revenue),
			formatAmount(r.Expense),
			formatAmount(r.Profit),
			formatROI(r.ROI),
		}); err != nil {
			return err
		}
	}

	totalROI := 0.0
	if total.Expense > 0 {
		totalROI = total.Profit / total.Expense * 100
	}
	if err := cw.Write([]string{
		"TOTAL",
		"",
		"",
		strconv.Itoa(total.Registrations),
		strconv.Itoa(total.FTD),
		strconv.Itoa(total.QP),
		formatAmount(total.Revenue),
		formatAmount(total.Expense),
		formatAmount(total.Profit),
		formatROI(totalROI),
	}); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename names a download taken at t.
func ExportFilename(t time.Time) string {
	return "dashboard_export_" + t.Format("20060102_150405") + ".csv"
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func formatROI(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
