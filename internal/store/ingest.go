package store

import (
	"context"
	"fmt"

	"meshstore/internal/ingest"
	"meshstore/internal/shardsource"
)

// RunIngest wires this store's resolver, calendar, and matrix engine into an
// ingestion pipeline (spec C7) and runs it over files from source. It is the
// only point where the store façade hands its internals to another package,
// kept here rather than exported so CLI callers never touch C1/C2/C5 directly.
func (s *Store) RunIngest(ctx context.Context, cfg ingest.Config, source shardsource.Source, files []string) (ingest.Report, error) {
	if s.virtual != nil {
		return ingest.Report{}, fmt.Errorf("store: ingest is not supported on a virtual store; ingest into the new slab directly")
	}
	if s.readonly {
		return ingest.Report{}, fmt.Errorf("store: ingest requires a read-write store")
	}
	pipeline := ingest.New(cfg, source, s.resolver, s.cal, s.engine)
	return pipeline.Run(ctx, files)
}
