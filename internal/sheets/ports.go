package sheets

import "context"

// RangeReader is the outbound port for the spreadsheet-backed store. A
// range read returns the rows of the addressed range in sheet order, each
// row an ordered sequence of cell values, or fails as a whole.
type RangeReader interface {
	ReadRange(ctx context.Context, rng string) ([][]any, error)
}
