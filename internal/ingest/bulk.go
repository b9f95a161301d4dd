package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"meshstore/internal/calendar"
	"meshstore/internal/csvsource"
	"meshstore/internal/meshid"
)

// errBulkAllocFailed signals that the dense year buffer could not be
// allocated, triggering the spec §4.6 fallback to streaming-cell mode.
var errBulkAllocFailed = errors.New("ingest: bulk-year buffer allocation failed")

// bulkRun holds the state shared by every producer in one bulk-year run.
// All records in one run must belong to one calendar year (spec §4.6: "the
// year is captured from the first record and becomes a run-level
// invariant"); yearMu guards that capture.
type bulkRun struct {
	cols int

	yearMu   sync.Mutex
	year     int
	yearSet  bool
	rows     int
	buf      []int32
	bufMu    sync.Mutex
}

func (p *Pipeline) runBulk(ctx context.Context, files []string, report Report) (Report, error) {
	report.Mode = "bulk-year"
	counters := &recordCounters{}
	run := &bulkRun{cols: p.engine.N()}

	parts := partitionFiles(files, p.cfg.Producers)
	g, gctx := errgroup.WithContext(ctx)
	for _, part := range parts {
		part := part
		g.Go(func() error {
			return p.produceBulk(gctx, part, run, counters)
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, errBulkAllocFailed) {
			return report, errBulkAllocFailed
		}
		report.RowsProcessed = counters.rows.Load()
		report.Errors = counters.errors.Load()
		report.UniqueTimestamps = counters.uniqueCount()
		return report, err
	}

	report.RowsProcessed = counters.rows.Load()
	report.Errors = counters.errors.Load()
	report.UniqueTimestamps = counters.uniqueCount()

	if !run.yearSet {
		// No valid record was seen at all; nothing to write.
		return report, nil
	}

	startIdx, err := p.cal.ToIndex(fmt.Sprintf("%04d-01-01 00:00:00", run.year))
	if err != nil {
		return report, fmt.Errorf("ingest: bulk run start index: %w", err)
	}
	currentT, _, _, _ := p.engine.Dimensions()
	newT := startIdx + int64(run.rows)
	if newT > currentT {
		if err := p.engine.ExtendTime(newT); err != nil {
			return report, err
		}
	}
	if err := p.engine.WriteBulk(run.buf, startIdx, run.rows, run.cols); err != nil {
		return report, err
	}
	return report, nil
}

func (p *Pipeline) produceBulk(ctx context.Context, files []string, run *bulkRun, counters *recordCounters) error {
	for _, path := range files {
		if err := p.produceFileBulk(ctx, path, run, counters); err != nil {
			if errors.Is(err, errBulkAllocFailed) {
				return err
			}
			continue
		}
	}
	return nil
}

func (p *Pipeline) produceFileBulk(ctx context.Context, path string, run *bulkRun, counters *recordCounters) error {
	reader, err := openReader(ctx, p.source, path)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		rec, err := reader.Next()
		if errors.Is(err, csvsource.ErrEnd) {
			return nil
		}
		if errors.Is(err, csvsource.ErrRecord) {
			counters.errors.Add(1)
			continue
		}
		if err != nil {
			return err
		}

		year, row, err := calendar.RowInYear(rec.Date, rec.Time)
		if err != nil {
			counters.errors.Add(1)
			continue
		}
		if err := run.ensureYear(year); err != nil {
			return err
		}
		if run.year != year {
			counters.errors.Add(1)
			continue
		}

		m := p.resolver.Resolve(rec.Area)
		if m == meshid.NotFound {
			counters.errors.Add(1)
			continue
		}

		run.bufMu.Lock()
		run.buf[row*run.cols+m] = rec.Population
		run.bufMu.Unlock()

		counters.rows.Add(1)
		counters.addTime(int64(row)) // distinct within one run's single year, per spec I2
	}
}

// ensureYear captures the run's year from the first record observed across
// all producers and allocates the dense buffer; subsequent calls are no-ops
// once the year is set.
func (run *bulkRun) ensureYear(year int) error {
	run.yearMu.Lock()
	defer run.yearMu.Unlock()
	if run.yearSet {
		return nil
	}
	rows := calendar.HoursInYear(year)
	buf, err := allocateBuffer(rows, run.cols)
	if err != nil {
		return errBulkAllocFailed
	}
	run.year = year
	run.rows = rows
	run.buf = buf
	run.yearSet = true
	return nil
}

// allocateBuffer allocates the dense row-major year buffer, recovering from
// a runtime allocation panic so the caller can fall back to streaming mode
// (spec §4.6) instead of crashing the process.
func allocateBuffer(rows, cols int) (buf []int32, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, errBulkAllocFailed
		}
	}()
	return make([]int32, rows*cols), nil
}
