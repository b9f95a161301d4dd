// Command gridingest is the ingest CLI front-end (spec §6's "create ingest"
// binary): a thin wrapper that loads configuration, opens or creates a
// store, and runs the ingestion pipeline over a directory of CSV shards.
// Flag parsing and argument validation are the only things this binary
// does itself; everything else is the store façade (spec §1's explicit
// non-goal: "the two command-line front-ends and their argument parsers").
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"meshstore/internal/config"
	"meshstore/internal/ingest"
	"meshstore/internal/logging"
	"meshstore/internal/matrix"
	"meshstore/internal/report"
	"meshstore/internal/shardsource"
	"meshstore/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("gridingest", flag.ContinueOnError)
	output := fs.String("output", "", "store directory to create or open (required)")
	directory := fs.String("directory", "", "directory of CSV shards to ingest (required)")
	pattern := fs.String("pattern", "*.csv", "glob pattern for shard files within directory")
	configPath := fs.String("config", "", "optional YAML config overlay")
	bulkWrite := fs.Bool("bulk-write", false, "use bulk-year ingestion mode instead of streaming-cell")
	create := fs.Bool("create", false, "create a new store at output before ingesting")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *output == "" || *directory == "" {
		fmt.Fprintln(os.Stderr, "gridingest: -output and -directory are required")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridingest: %v\n", err)
		return 1
	}
	logging.Init(cfg.LogPath, cfg.LogLevel)
	log := logging.For("gridingest")

	ctx := context.Background()

	var s *store.Store
	if *create {
		universe := fixtureUniverse(cfg.MeshCount)
		s, err = store.Create(*output, universe, 0, matrix.Geometry(cfg.Geometry), cfg.Epoch, cfg.CacheBytes)
	} else {
		s, err = store.OpenReadWrite(*output, cfg.CacheBytes)
	}
	if err != nil {
		log.Error().Err(err).Msg("open store")
		return 1
	}
	defer s.Close(ctx)

	source := shardsource.NewLocalSource(*directory, *pattern)
	files, err := source.List(ctx, "")
	if err != nil {
		log.Error().Err(err).Msg("list shards")
		return 1
	}
	if len(files) == 0 {
		log.Warn().Str("directory", *directory).Str("pattern", *pattern).Msg("no shards matched")
	}

	mode := ingest.StreamingCell
	if *bulkWrite || cfg.Bulk {
		mode = ingest.BulkYear
	}
	pipelineCfg := ingest.Config{Mode: mode, Producers: cfg.Producers, QueueCapacity: cfg.QueueCapacity}

	rep, err := s.RunIngest(ctx, pipelineCfg, source, files)
	if err != nil {
		log.Error().Err(err).Msg("ingestion pipeline failed")
		return 1
	}
	if err := s.Flush(); err != nil {
		log.Error().Err(err).Msg("flush store")
		return 1
	}

	sink, err := report.Dial(cfg.ClickHouse, log)
	if err != nil {
		log.Warn().Err(err).Msg("ingestion report sink unavailable")
	} else {
		if err := sink.EnsureTable(ctx); err != nil {
			log.Warn().Err(err).Msg("ensure ingestion report table")
		}
		sink.Record(ctx, rep)
		sink.Close()
	}

	log.Info().
		Str("run_id", rep.RunID).
		Str("mode", rep.Mode).
		Int64("rows_processed", rep.RowsProcessed).
		Int64("unique_timestamps", rep.UniqueTimestamps).
		Int64("errors", rep.Errors).
		Msg("ingestion complete")
	return 0
}

// fixtureUniverse synthesizes a mesh-key universe of the requested
// cardinality for -create. A real deployment supplies its universe from the
// mesh-code registry (spec §1, out of scope here); this keeps the CLI usable
// standalone.
func fixtureUniverse(n int) []uint32 {
	universe := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		universe = append(universe, uint32(362000000+i))
	}
	return universe
}
