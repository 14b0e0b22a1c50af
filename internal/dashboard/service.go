package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"adboard/internal/core"
	applog "adboard/internal/log"
	"adboard/internal/metrics"
	"adboard/internal/sheets"
)

// ErrNoSnapshot is returned before the first successful refresh when no
// persisted snapshot could be loaded either.
var ErrNoSnapshot = errors.New("no snapshot available")

// Snapshot is one fully-built result of a fetch-aggregate-join pass. The
// datasets are never mutated after the swap; readers share them.
type Snapshot struct {
	Data      core.Dataset `json:"data"`
	FetchedAt time.Time    `json:"fetchedAt"`
}

type (
	// SnapshotStore persists the latest snapshot across restarts.
	SnapshotStore interface {
		Save(ctx context.Context, snap Snapshot) error
		LoadLatest(ctx context.Context) (Snapshot, error)
	}

	// RefreshNotifier is told about each successful refresh.
	RefreshNotifier interface {
		NotifyRefreshed(ctx context.Context, snap Snapshot) error
	}
)

// Options wires a Service. Store, Notifier and Metrics are optional.
type Options struct {
	MetricsRange string
	ExpenseRange string
	Pipeline     core.PipelineOptions

	Store    SnapshotStore
	Notifier RefreshNotifier
	Metrics  *metrics.Metrics
	Logger   *applog.Logger
}

// Service owns the refresh cycle: it fetches both sheet ranges, runs the
// reconciliation pipeline, and publishes the result as an atomic snapshot.
type Service struct {
	reader sheets.RangeReader
	opts   Options
	log    *applog.Logger

	mu   sync.RWMutex
	snap Snapshot
}

func New(reader sheets.RangeReader, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.ParseLevel(""), applog.ComponentDashboard)
	}
	return &Service{
		reader: reader,
		opts:   opts,
		log:    logger.WithComponent(applog.ComponentDashboard),
	}
}

// Snapshot returns the currently published snapshot.
func (s *Service) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.FetchedAt.IsZero() {
		return Snapshot{}, ErrNoSnapshot
	}
	return s.snap, nil
}

// SnapshotTime returns the fetch time of the current snapshot, zero when
// none exists.
func (s *Service) SnapshotTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.FetchedAt
}

// WarmStart loads the persisted snapshot, if any, so the service can serve
// previously displayed data before the first fetch completes. A miss is not
// an error.
func (s *Service) WarmStart(ctx context.Context) {
	if s.opts.Store == nil {
		return
	}
	snap, err := s.opts.Store.LoadLatest(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "No persisted snapshot to warm-start from", applog.FieldError, err.Error())
		return
	}
	s.mu.Lock()
	if s.snap.FetchedAt.IsZero() {
		s.snap = snap
	}
	s.mu.Unlock()
	s.log.InfoContext(ctx, "Warm-started from persisted snapshot",
		applog.FieldFetchedAt, snap.FetchedAt,
		applog.FieldTableRows, len(snap.Data.Table),
		applog.FieldRawRows, len(snap.Data.Raw))
}

// Refresh runs one fetch cycle: both ranges are read concurrently and both
// must succeed, otherwise the cycle fails with no partial data and the
// prior snapshot stays in place. On success the new snapshot replaces the
// old one atomically from the caller's perspective.
func (s *Service) Refresh(ctx context.Context) error {
	start := time.Now()
	if m := s.opts.Metrics; m != nil {
		m.RefreshTotal.Inc()
		defer func() { m.RefreshDuration.Observe(time.Since(start).Seconds()) }()
	}

	var metricRows, expenseRows [][]any
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.reader.ReadRange(gctx, s.opts.MetricsRange)
		if err != nil {
			return fmt.Errorf("fetch metrics range: %w", err)
		}
		metricRows = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.reader.ReadRange(gctx, s.opts.ExpenseRange)
		if err != nil {
			return fmt.Errorf("fetch expense range: %w", err)
		}
		expenseRows = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		if m := s.opts.Metrics; m != nil {
			m.RefreshFailures.Inc()
		}
		return err
	}

	snap := Snapshot{
		Data:      core.BuildDataset(metricRows, expenseRows, s.opts.Pipeline),
		FetchedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	if m := s.opts.Metrics; m != nil {
		m.RowsFetched.WithLabelValues(s.opts.MetricsRange).Add(float64(len(metricRows)))
		m.RowsFetched.WithLabelValues(s.opts.ExpenseRange).Add(float64(len(expenseRows)))
		m.TableRows.Set(float64(len(snap.Data.Table)))
		m.RawRows.Set(float64(len(snap.Data.Raw)))
	}

	s.log.InfoContext(ctx, "Snapshot refreshed",
		applog.FieldRowsIn, len(metricRows),
		applog.FieldRowsKept, len(snap.Data.Raw),
		applog.FieldTableRows, len(snap.Data.Table),
		applog.FieldDuration, time.Since(start).Milliseconds())

	// Persistence and notification are best-effort; the snapshot is
	// already live.
	if s.opts.Store != nil {
		if err := s.opts.Store.Save(ctx, snap); err != nil {
			s.log.ErrorContext(ctx, "Persist snapshot failed", applog.FieldError, err.Error())
		}
	}
	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.NotifyRefreshed(ctx, snap); err != nil {
			s.log.ErrorContext(ctx, "Refresh notification failed", applog.FieldError, err.Error())
		}
	}
	return nil
}

// Run refreshes on a fixed interval until ctx is done. A failed cycle is
// logged and the previous snapshot stays visible; there is no retry before
// the next tick.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.log.ErrorContext(ctx, "Refresh cycle failed", applog.FieldError, err.Error())
			}
		case <-ctx.Done():
			return
		}
	}
}
