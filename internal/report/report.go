// Package report implements the ingestion report sink (spec §7's
// aggregated report, extended by SPEC_FULL §4 S4.2): an optional
// ClickHouse-backed persistence of one row per ingestion run, strictly
// additive to the in-memory ingest.Report the pipeline already returns.
//
// Grounded on the ClickHouse-backed metrics/report sink pattern in
// _examples/intelligencedev-manifold's services layer generalized to a
// single append-only run-log table; sink failures are logged and
// swallowed (spec S4.2: "ingestion succeeds identically if the sink is
// absent or unreachable").
package report

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"

	"meshstore/internal/config"
	"meshstore/internal/ingest"
)

// Sink persists ingestion reports. A Sink without a connection (returned by
// NewNoop or Dial with an empty DSN) is valid and simply discards every
// report; so is a nil *Sink.
type Sink struct {
	conn  clickhouse.Conn
	table string
	log   zerolog.Logger
}

// NewNoop returns a Sink that discards every report, for runs with no
// configured ClickHouse DSN.
func NewNoop() *Sink {
	return &Sink{}
}

// Dial connects to ClickHouse per cfg. If cfg.DSN is empty it returns a
// no-op Sink rather than an error, since the sink is optional (S4.2).
func Dial(cfg config.ClickHouseConfig, log zerolog.Logger) (*Sink, error) {
	if cfg.DSN == "" {
		return NewNoop(), nil
	}
	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("report: parse clickhouse dsn: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("report: open clickhouse connection: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = "meshstore_ingestion_runs"
	}
	return &Sink{conn: conn, table: table, log: log}, nil
}

// EnsureTable creates the run-log table if it does not already exist.
func (s *Sink) EnsureTable(ctx context.Context) error {
	if s == nil || s.conn == nil {
		return nil
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id            String,
	started_at        DateTime,
	mode              String,
	rows_processed    UInt64,
	unique_timestamps UInt64,
	errors            UInt64
) ENGINE = MergeTree ORDER BY started_at`, s.table)
	if err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("report: ensure table: %w", err)
	}
	return nil
}

// Record persists one ingestion run. Failures are logged and swallowed,
// never propagated to the caller — the sink is best-effort (S4.2).
func (s *Sink) Record(ctx context.Context, r ingest.Report) {
	if s == nil || s.conn == nil {
		return
	}
	q := fmt.Sprintf("INSERT INTO %s (run_id, started_at, mode, rows_processed, unique_timestamps, errors) VALUES (?, ?, ?, ?, ?, ?)", s.table)
	err := s.conn.Exec(ctx, q,
		r.RunID, r.StartedAt, r.Mode,
		uint64(r.RowsProcessed), uint64(r.UniqueTimestamps), uint64(r.Errors),
	)
	if err != nil {
		s.log.Warn().Err(err).Str("run_id", r.RunID).Msg("ingestion report sink write failed")
	}
}

// Close releases the underlying connection, if any.
func (s *Sink) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
