// Package shardsource abstracts where CSV ingestion shards live: a local
// directory, an in-memory fixture (for tests), or an S3 bucket. It is a
// narrowed adaptation of the teacher's internal/objectstore package: the
// same interface-per-backend, sentinel-error shape, but trimmed to the two
// operations ingestion actually needs (enumerate shards, stream one open).
package shardsource

import (
	"context"
	"errors"
	"io"
	"sort"
)

// ErrNotFound is returned when a requested shard key does not exist.
var ErrNotFound = errors.New("shardsource: shard not found")

// Source enumerates and opens CSV shards for the ingestion pipeline (C7).
// Implementations must be safe for concurrent use: up to 32 producers may
// call Open concurrently (spec §4.6).
type Source interface {
	// List returns shard keys under prefix, sorted so that producer
	// assignment ("file i goes to producer i mod P", spec §4.6) is
	// deterministic across runs.
	List(ctx context.Context, prefix string) ([]string, error)
	// Open opens one shard for a single streaming read pass. The caller
	// must close the returned reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

func sortedCopy(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	return out
}
