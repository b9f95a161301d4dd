// Package ingest implements the ingestion pipeline (spec C7): CSV shard
// paths are statically partitioned across producers, resolved through the
// mesh-ID resolver and calendar, and written into the chunked matrix —
// either streaming-cell by streaming-cell through the bounded queue, or as
// one dense bulk-year buffer.
//
// The producer/consumer fan-out is grounded on the errgroup-coordinated
// goroutine topology in
// _examples/intelligencedev-manifold/internal/agent/warpp.go, generalized
// from warpp's fixed two-stage pipeline to spec C7's P-producer/1-consumer
// topology.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"meshstore/internal/calendar"
	"meshstore/internal/csvsource"
	"meshstore/internal/matrix"
	"meshstore/internal/meshid"
	"meshstore/internal/shardsource"
)

// Mode selects the ingestion strategy (spec §4.6, "mode selection ... at
// pipeline construction").
type Mode int

const (
	// StreamingCell is the default mode: one work item per record through
	// the bounded queue to a single matrix-writer consumer.
	StreamingCell Mode = iota
	// BulkYear allocates one dense row-major buffer per calendar year and
	// writes it in a single matrix call.
	BulkYear
)

// Config parameterizes one ingestion run.
type Config struct {
	Mode          Mode
	Producers     int // P, spec default cap 32
	QueueCapacity int // spec default 1024
}

// DefaultConfig matches spec §4.6's stated defaults.
func DefaultConfig() Config {
	return Config{Mode: StreamingCell, Producers: 8, QueueCapacity: 1024}
}

// Report is the aggregated outcome of one ingestion run (spec §7, extended
// by S4.2 for the optional ClickHouse sink).
type Report struct {
	RunID            string
	StartedAt        time.Time
	Mode             string
	RowsProcessed    int64
	UniqueTimestamps int64
	Errors           int64
}

// Pipeline wires C1 (resolver), C2 (calendar), C5 (matrix engine), and the
// shard source together to run one ingestion (spec data-flow: "CSV shard
// paths -> C3 (per-producer) -> per-record ... -> C4 -> C7 consumer -> C5
// write").
type Pipeline struct {
	cfg      Config
	source   shardsource.Source
	resolver *meshid.Resolver
	cal      *calendar.Calendar
	engine   *matrix.Engine
}

// New constructs a Pipeline over the given shard source, resolver,
// calendar, and matrix engine.
func New(cfg Config, source shardsource.Source, resolver *meshid.Resolver, cal *calendar.Calendar, engine *matrix.Engine) *Pipeline {
	if cfg.Producers <= 0 {
		cfg.Producers = DefaultConfig().Producers
	}
	if cfg.Producers > 32 {
		cfg.Producers = 32
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultConfig().QueueCapacity
	}
	return &Pipeline{cfg: cfg, source: source, resolver: resolver, cal: cal, engine: engine}
}

// Run ingests every shard named in files. Files are statically partitioned
// over producers: file i goes to producer i mod P (spec §4.6).
//
// Bulk mode falls back to streaming if the dense buffer cannot be
// allocated (spec §4.6, "fallback from bulk to streaming is permitted if
// the buffer allocation fails").
func (p *Pipeline) Run(ctx context.Context, files []string) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	if p.cfg.Mode == BulkYear {
		rep, err := p.runBulk(ctx, files, report)
		if errors.Is(err, errBulkAllocFailed) {
			report.Mode = "streaming-cell"
			return p.runStreaming(ctx, files, report)
		}
		return rep, err
	}

	report.Mode = "streaming-cell"
	return p.runStreaming(ctx, files, report)
}

func partitionFiles(files []string, producers int) [][]string {
	parts := make([][]string, producers)
	for i, f := range files {
		pi := i % producers
		parts[pi] = append(parts[pi], f)
	}
	return parts
}

// growthTarget applies the spec §4.6 amortized growth rule:
// max(ceil(T*3/2), t+100).
func growthTarget(current, t int64) int64 {
	grown := (current*3 + 1) / 2
	min := t + 100
	if grown > min {
		return grown
	}
	return min
}

// recordCounters aggregates per-run stats across concurrently running
// producers and the single consumer; every field is safe for concurrent
// use without an external lock.
type recordCounters struct {
	rows   atomic.Int64
	errors atomic.Int64
	times  sync.Map // hour-index -> struct{}, for UniqueTimestamps
}

func (c *recordCounters) addTime(t int64) {
	c.times.Store(t, struct{}{})
}

func (c *recordCounters) uniqueCount() int64 {
	var n int64
	c.times.Range(func(_, _ any) bool { n++; return true })
	return n
}

func openReader(ctx context.Context, source shardsource.Source, path string) (*csvsource.Reader, error) {
	rc, err := source.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open shard %s: %w", path, err)
	}
	r, err := csvsource.OpenCloser(rc)
	if err != nil {
		return nil, fmt.Errorf("ingest: header check %s: %w", path, err)
	}
	return r, nil
}
