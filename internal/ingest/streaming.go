package ingest

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"meshstore/internal/csvsource"
	"meshstore/internal/meshid"
	"meshstore/internal/queue"
)

// runStreaming implements spec §4.6's streaming-cell mode: each producer
// resolves and enqueues one work item per record; a single consumer
// dequeues, extends the matrix as needed, and issues write_cell.
func (p *Pipeline) runStreaming(ctx context.Context, files []string, report Report) (Report, error) {
	q := queue.New(p.cfg.QueueCapacity)
	counters := &recordCounters{}

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- p.consume(ctx, q, counters)
	}()

	parts := partitionFiles(files, p.cfg.Producers)
	g, gctx := errgroup.WithContext(ctx)
	for _, part := range parts {
		part := part
		g.Go(func() error {
			return p.produceStreaming(gctx, part, q, counters)
		})
	}
	producerErr := g.Wait()

	_ = q.Shutdown(ctx)
	consumerErr := <-consumerDone

	report.RowsProcessed = counters.rows.Load()
	report.Errors = counters.errors.Load()
	report.UniqueTimestamps = counters.uniqueCount()

	if producerErr != nil {
		return report, producerErr
	}
	return report, consumerErr
}

func (p *Pipeline) produceStreaming(ctx context.Context, files []string, q *queue.Queue, counters *recordCounters) error {
	for _, path := range files {
		if err := p.produceFileStreaming(ctx, path, q, counters); err != nil {
			// A per-file open failure is logged and the file is skipped
			// (spec §4.6); it does not abort the run.
			log.Warn().Err(err).Str("component", "ingest").Str("shard", path).Msg("skipping shard")
			continue
		}
	}
	return nil
}

func (p *Pipeline) produceFileStreaming(ctx context.Context, path string, q *queue.Queue, counters *recordCounters) error {
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

		m := p.resolver.Resolve(rec.Area)
		if m == meshid.NotFound {
			counters.errors.Add(1)
			continue
		}
		t, err := p.cal.ToIndexFields(rec.Date, rec.Time)
		if err != nil {
			counters.errors.Add(1)
			continue
		}

		if err := q.Enqueue(ctx, queue.Item{T: t, M: m, V: rec.Population}); err != nil {
			return err
		}
	}
}

func (p *Pipeline) consume(ctx context.Context, q *queue.Queue, counters *recordCounters) error {
	for {
		item, ok, err := q.Dequeue(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		currentT, _, _, _ := p.engine.Dimensions()
		if item.T >= currentT {
			if err := p.engine.ExtendTime(growthTarget(currentT, item.T)); err != nil {
				return err
			}
		}
		if err := p.engine.WriteCell(item.T, item.M, item.V); err != nil {
			return err
		}
		counters.rows.Add(1)
		counters.addTime(item.T)
	}
}
