package memory

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
)

// Store is an in-memory RangeReader used as the dev backend and as the test
// double for everything above the fetch boundary.
type Store struct {
	mu     sync.Mutex
	ranges map[string][][]any
}

func New() *Store {
	return &Store{ranges: make(map[string][][]any)}
}

// NewFromFiles seeds the store from CSV files under base: metrics.csv rows
// answer the metrics range, expenses.csv the expense range. Missing files
// leave the range empty.
func NewFromFiles(base, metricsRange, expenseRange string) *Store {
	s := New()
	s.Seed(metricsRange, readCSV(filepath.Join(base, "metrics.csv")))
	s.Seed(expenseRange, readCSV(filepath.Join(base, "expenses.csv")))
	return s
}

// Seed replaces the rows served for a range.
func (s *Store) Seed(rng string, rows [][]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranges[rng] = rows
}

// ReadRange returns a copy of the seeded rows. Unseeded ranges read as
// empty, mirroring an empty sheet.
func (s *Store) ReadRange(_ context.Context, rng string) ([][]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.ranges[rng]
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = append([]any(nil), row...)
	}
	return out, nil
}

func readCSV(path string) [][]any {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil
	}
	rows := make([][]any, 0, len(records))
	for _, record := range records {
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = cell
		}
		rows = append(rows, row)
	}
	return rows
}
