package core

type (
	// MetricRecord is one observation for a campaign code on one day,
	// as parsed from the metrics sheet.
	MetricRecord struct {
		Date          string  `json:"date"`
		Code          string  `json:"code"`
		Brand         string  `json:"brand"`
		Visits        int     `json:"visits"` // not available in the source sheet, always 0
		Registrations int     `json:"registrations"`
		FTD           int     `json:"ftd"`
		QP            int     `json:"qp"`
		Revenue       float64 `json:"revenue"`
	}

	// AggregatedRecord is a MetricRecord summed per (code, date) with the
	// expense side joined in.
	AggregatedRecord struct {
		MetricRecord
		Expense float64 `json:"expense"`
		Profit  float64 `json:"profit"`
		ROI     float64 `json:"roi"`
	}

	// Dataset bundles the grouped table view with the ungrouped raw rows
	// kept for brand-level analysis.
	Dataset struct {
		Table []AggregatedRecord `json:"tableData"`
		Raw   []MetricRecord     `json:"rawData"`
	}

	// BrandSummary aggregates raw rows by brand.
	BrandSummary struct {
		Brand   string  `json:"brand"`
		FTD     int     `json:"ftd"`
		Revenue float64 `json:"revenue"`
	}
)

// groupKey identifies one (code, date) group. "|" is not expected in
// either field.
func groupKey(code, date string) string {
	return code + "|" + date
}
