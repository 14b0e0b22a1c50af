package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"adboard/internal/core"
	"adboard/internal/sheets/memory"
)

const (
	testMetricsRange = "Test_data!A2:Z"
	testExpenseRange = "Manual!A2:G"
)

func metricRow(date, code, brand, signups, ftd, qp, revenue string) []any {
	row := make([]any, 21)
	for i := range row {
		row[i] = ""
	}
	row[1] = date
	row[3] = code
	row[7] = revenue
	row[12] = signups
	row[13] = ftd
	row[14] = qp
	row[20] = brand
	return row
}

func seededStore() *memory.Store {
	s := memory.New()
	s.Seed(testMetricsRange, [][]any{
		metricRow("2025-11-02", "CXNL01", "", "1", "5", "0", "100"),
		metricRow("2025-11-02", "CXNL01", "X", "2", "3", "1", "50"),
		metricRow("2025-10-01", "CXNL01", "", "9", "9", "9", "900"), // pre-cutoff
	})
	s.Seed(testExpenseRange, [][]any{
		{"2025-11-02", "CXNL01", "", "", "", "", "60"},
	})
	return s
}

func testService(reader *memory.Store, opts Options) *Service {
	opts.MetricsRange = testMetricsRange
	opts.ExpenseRange = testExpenseRange
	opts.Pipeline = core.PipelineOptions{
		AllowedCodes: []string{"CXNL01", "CXSE01"},
		Cutoff:       time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
	}
	return New(reader, opts)
}

func TestService_Refresh(t *testing.T) {
	svc := testService(seededStore(), Options{})

	if _, err := svc.Snapshot(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("want ErrNoSnapshot before first refresh, got %v", err)
	}

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snap, err := svc.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.FetchedAt.IsZero() {
		t.Fatal("snapshot has no fetch time")
	}
	if len(snap.Data.Raw) != 2 {
		t.Fatalf("raw rows: %d", len(snap.Data.Raw))
	}
	if len(snap.Data.Table) != 1 {
		t.Fatalf("table rows: %d", len(snap.Data.Table))
	}
	rec := snap.Data.Table[0]
	if rec.Revenue != 150 || rec.FTD != 8 || rec.Brand != "X" ||
		rec.Expense != 60 || rec.Profit != 90 || rec.ROI != 150 {
		t.Fatalf("table record: %+v", rec)
	}
}

type failingReader struct{ failRange string }

func (f failingReader) ReadRange(_ context.Context, rng string) ([][]any, error) {
	if rng == f.failRange || f.failRange == "*" {
		return nil, errors.New("boom")
	}
	return nil, nil
}

func TestService_RefreshFailsWholeCycle(t *testing.T) {
	for _, failing := range []string{testMetricsRange, testExpenseRange, "*"} {
		svc := testService(nil, Options{})
		svc.reader = failingReader{failRange: failing}
		if err := svc.Refresh(context.Background()); err == nil {
			t.Fatalf("refresh should fail when %q fails", failing)
		}
		if _, err := svc.Snapshot(); !errors.Is(err, ErrNoSnapshot) {
			t.Fatal("failed cycle must not publish a snapshot")
		}
	}
}

func TestService_FailedRefreshKeepsPriorSnapshot(t *testing.T) {
	store := seededStore()
	svc := testService(store, Options{})
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	before, _ := svc.Snapshot()

	svc.reader = failingReader{failRange: "*"}
	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("want refresh failure")
	}

	after, err := svc.Snapshot()
	if err != nil {
		t.Fatalf("snapshot after failed cycle: %v", err)
	}
	if !after.FetchedAt.Equal(before.FetchedAt) {
		t.Fatal("failed cycle replaced the prior snapshot")
	}
}

type fakeStore struct {
	saved  []Snapshot
	loaded Snapshot
	err    error
}

func (f *fakeStore) Save(_ context.Context, snap Snapshot) error {
	f.saved = append(f.saved, snap)
	return nil
}

func (f *fakeStore) LoadLatest(_ context.Context) (Snapshot, error) {
	return f.loaded, f.err
}

func TestService_WarmStart(t *testing.T) {
	persisted := Snapshot{
		Data:      core.Dataset{Raw: []core.MetricRecord{{Code: "CXNL01", Date: "2025-11-02"}}},
		FetchedAt: time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC),
	}
	svc := testService(seededStore(), Options{Store: &fakeStore{loaded: persisted}})

	svc.WarmStart(context.Background())
	snap, err := svc.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.FetchedAt.Equal(persisted.FetchedAt) {
		t.Fatalf("warm start did not install persisted snapshot: %+v", snap)
	}

	// A live snapshot must never be replaced by a warm start.
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	svc.WarmStart(context.Background())
	snap, _ = svc.Snapshot()
	if snap.FetchedAt.Equal(persisted.FetchedAt) {
		t.Fatal("warm start overwrote a live snapshot")
	}
}

func TestService_RefreshPersists(t *testing.T) {
	store := &fakeStore{err: errors.New("empty")}
	svc := testService(seededStore(), Options{Store: store})
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("want 1 persisted snapshot, got %d", len(store.saved))
	}
}

type fakeNotifier struct{ notified []Snapshot }

func (f *fakeNotifier) NotifyRefreshed(_ context.Context, snap Snapshot) error {
	f.notified = append(f.notified, snap)
	return nil
}

func TestService_RefreshNotifies(t *testing.T) {
	n := &fakeNotifier{}
	svc := testService(seededStore(), Options{Notifier: n})
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(n.notified) != 1 || len(n.notified[0].Data.Table) != 1 {
		t.Fatalf("notification: %+v", n.notified)
	}
}
