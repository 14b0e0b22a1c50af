package core

import (
	"sort"
	"time"
)

// PipelineOptions are the reconciliation constants that used to be
// hard-coded in the original report: which campaign codes to keep and the
// first day of interest.
type PipelineOptions struct {
	// AllowedCodes is the campaign code allow-list. Rows with any other
	// code are dropped.
	AllowedCodes []string
	// Cutoff is the inclusive lower bound on the row date, compared at day
	// granularity. Zero means no cutoff.
	Cutoff time.Time
}

func (o PipelineOptions) allowed() map[string]struct{} {
	set := make(map[string]struct{}, len(o.AllowedCodes))
	for _, c := range o.AllowedCodes {
		set[c] = struct{}{}
	}
	return set
}

// BuildRaw parses every metrics row and keeps those whose code is in the
// allow-list and whose date is on or after the cutoff. Rows whose date does
// not normalize to a valid calendar day are dropped, since they cannot be
// placed relative to the cutoff. Source row order is preserved.
func BuildRaw(rows [][]any, opts PipelineOptions) []MetricRecord {
	allowed := opts.allowed()
	cutoff := dayOf(opts.Cutoff)
	out := make([]MetricRecord, 0, len(rows))
	for _, row := range rows {
		rec := ParseMetricRow(row)
		if _, ok := allowed[rec.Code]; !ok {
			continue
		}
		day, ok := ParseDay(rec.Date)
		if !ok {
			continue
		}
		if !opts.Cutoff.IsZero() && day.Before(cutoff) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Aggregate groups raw records by (code, date), summing the numeric
// metrics. The first record seeds the group; later records add into it, and
// the first non-empty brand seen for a group wins. Expense, profit and ROI
// are left at zero for JoinExpenses. Groups come out in first-seen order.
func Aggregate(raw []MetricRecord) []AggregatedRecord {
	groups := make(map[string]*AggregatedRecord, len(raw))
	order := make([]string, 0, len(raw))
	for _, r := range raw {
		key := groupKey(r.Code, r.Date)
		g, ok := groups[key]
		if !ok {
			rec := AggregatedRecord{MetricRecord: r}
			groups[key] = &rec
			order = append(order, key)
			continue
		}
		g.Registrations += r.Registrations
		g.FTD += r.FTD
		g.QP += r.QP
		g.Revenue += r.Revenue
		if g.Brand == "" && r.Brand != "" {
			g.Brand = r.Brand
		}
	}
	out := make([]AggregatedRecord, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out
}

// SumExpenses builds the expense-by-key map from raw expense rows. Multiple
// rows sharing a (code, date) key sum rather than overwrite.
func SumExpenses(rows [][]any) map[string]float64 {
	expenses := make(map[string]float64, len(rows))
	for _, row := range rows {
		code, date, amount := ParseExpenseRow(row)
		expenses[groupKey(code, date)] += amount
	}
	return expenses
}

// JoinExpenses left-joins the expense map onto the grouped records. A group
// with no matching expense entry is kept with expense 0, so profit equals
// revenue and ROI is 0. ROI is only derived when expense is positive, never
// a division by zero. The result is sorted ascending by date then code.
func JoinExpenses(groups []AggregatedRecord, expenses map[string]float64) []AggregatedRecord {
	out := make([]AggregatedRecord, len(groups))
	for i, g := range groups {
		g.Expense = expenses[groupKey(g.Code, g.Date)]
		g.Profit = g.Revenue - g.Expense
		if g.Expense > 0 {
			g.ROI = g.Profit / g.Expense * 100
		} else {
			g.ROI = 0
		}
		out[i] = g
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// BuildDataset runs the full reconciliation pass over freshly fetched
// metrics and expense rows.
func BuildDataset(metricRows, expenseRows [][]any, opts PipelineOptions) Dataset {
	raw := BuildRaw(metricRows, opts)
	table := JoinExpenses(Aggregate(raw), SumExpenses(expenseRows))
	return Dataset{Table: table, Raw: raw}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
