package core

import "sort"

// TopBrands aggregates raw records by brand, summing FTDs and revenue, and
// returns at most limit brands ordered by FTD descending. Records without a
// brand are skipped; they cannot be attributed. Ties keep first-seen order.
func TopBrands(raw []MetricRecord, limit int) []BrandSummary {
	byBrand := make(map[string]*BrandSummary)
	order := make([]string, 0)
	for _, r := range raw {
		if r.Brand == "" {
			continue
		}
		s, ok := byBrand[r.Brand]
		if !ok {
			byBrand[r.Brand] = &BrandSummary{Brand: r.Brand, FTD: r.FTD, Revenue: r.Revenue}
			order = append(order, r.Brand)
			continue
		}
		s.FTD += r.FTD
		s.Revenue += r.Revenue
	}
	out := make([]BrandSummary, 0, len(order))
	for _, brand := range order {
		out = append(out, *byBrand[brand])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FTD > out[j].FTD })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
