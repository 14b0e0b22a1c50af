package core

import "strings"

// CountryCodes maps a country label to the campaign codes that run in it.
// One country may carry several codes.
type CountryCodes map[string][]string

// Codes returns the union of codes implied by the selected countries.
// Unknown countries contribute nothing.
func (cc CountryCodes) Codes(countries []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, country := range countries {
		for _, code := range cc[country] {
			set[code] = struct{}{}
		}
	}
	return set
}

// FilterSpec is one filter interaction over an already-fetched dataset.
// Zero values mean "no restriction" for that stage.
type FilterSpec struct {
	// Countries selects code sets via the country mapping. An empty
	// selection applies no country restriction at all; it does not mean
	// "match nothing".
	Countries []string `json:"countries"`
	// Start and End bound the date range inclusively, in canonical
	// YYYY-MM-DD form.
	Start string `json:"start"`
	End   string `json:"end"`
	// Code is a case-insensitive substring match on the campaign code.
	Code string `json:"code"`
}

// IsZero reports whether the filter restricts nothing.
func (f FilterSpec) IsZero() bool {
	return len(f.Countries) == 0 && f.Start == "" && f.End == "" && f.Code == ""
}

// Apply derives a filtered view of ds. All stages combine with AND
// semantics and run identically over the table and raw sides, so the
// displayed table and the brand chart stay consistent. The source dataset
// is never mutated; repeated application with the same spec is a no-op on
// the result.
func (f FilterSpec) Apply(ds Dataset, countries CountryCodes) Dataset {
	codeSet := countries.Codes(f.Countries)
	needle := strings.ToLower(f.Code)

	keep := func(code, date string) bool {
		// Unknown countries derive no codes, so a selection of only
		// unknown countries leaves an empty set and restricts nothing.
		if len(codeSet) > 0 {
			if _, ok := codeSet[code]; !ok {
				return false
			}
		}
		if f.Start != "" && date < f.Start {
			return false
		}
		if f.End != "" && date > f.End {
			return false
		}
		if needle != "" && !strings.Contains(strings.ToLower(code), needle) {
			return false
		}
		return true
	}

	out := Dataset{
		Table: make([]AggregatedRecord, 0, len(ds.Table)),
		Raw:   make([]MetricRecord, 0, len(ds.Raw)),
	}
	for _, r := range ds.Table {
		if keep(r.Code, r.Date) {
			out.Table = append(out.Table, r)
		}
	}
	for _, r := range ds.Raw {
		if keep(r.Code, r.Date) {
			out.Raw = append(out.Raw, r)
		}
	}
	return out
}
