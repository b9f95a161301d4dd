// Command gridreader is the read CLI front-end (spec §6's "reader point"
// and "reader range" binaries): a thin wrapper over store.OpenReadOnly and
// the two datetime-indexed read flavors. Like gridingest, argument parsing
// is the only thing this binary does itself (spec §1's non-goal).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"meshstore/internal/config"
	"meshstore/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}
	switch args[0] {
	case "point":
		return runPoint(args[1:])
	case "range":
		return runRange(args[1:])
	default:
		usage()
		return 1
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: gridreader point -file DIR -mesh KEY -datetime DT [-config PATH]")
	fmt.Fprintln(os.Stderr, "       gridreader range -file DIR -mesh KEY -start DT -end DT [-raw] [-config PATH]")
}

func runPoint(args []string) int {
	fs := flag.NewFlagSet("gridreader point", flag.ContinueOnError)
	file := fs.String("file", "", "store directory (required)")
	mesh := fs.String("mesh", "", "mesh key, e.g. 3622 5734 1 (required)")
	datetime := fs.String("datetime", "", "YYYY-MM-DD HH:MM:SS (required)")
	configPath := fs.String("config", "", "optional YAML config overlay")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *file == "" || *mesh == "" || *datetime == "" {
		fmt.Fprintln(os.Stderr, "gridreader point: -file, -mesh, and -datetime are required")
		return 1
	}
	meshKey, err := parseMeshKey(*mesh)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridreader: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridreader: %v\n", err)
		return 1
	}

	s, err := store.OpenReadOnly(*file, cfg.CacheBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridreader: open store: %v\n", err)
		return 1
	}
	defer s.Close(context.Background())

	v, err := s.ReadCellByDatetime(*datetime, meshKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridreader: %v\n", err)
		return 1
	}
	fmt.Println(v)
	return 0
}

func runRange(args []string) int {
	fs := flag.NewFlagSet("gridreader range", flag.ContinueOnError)
	file := fs.String("file", "", "store directory (required)")
	mesh := fs.String("mesh", "", "mesh key (required)")
	start := fs.String("start", "", "YYYY-MM-DD HH:MM:SS (required)")
	end := fs.String("end", "", "YYYY-MM-DD HH:MM:SS (required)")
	raw := fs.Bool("raw", false, "emit little-endian uint32 values to stdout instead of text")
	configPath := fs.String("config", "", "optional YAML config overlay")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *file == "" || *mesh == "" || *start == "" || *end == "" {
		fmt.Fprintln(os.Stderr, "gridreader range: -file, -mesh, -start, and -end are required")
		return 1
	}
	meshKey, err := parseMeshKey(*mesh)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridreader: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridreader: %v\n", err)
		return 1
	}

	s, err := store.OpenReadOnly(*file, cfg.CacheBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridreader: open store: %v\n", err)
		return 1
	}
	defer s.Close(context.Background())

	values, err := s.ReadColumnRangeByDatetime(*start, *end, meshKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridreader: %v\n", err)
		return 1
	}

	if *raw {
		buf := make([]byte, 4*len(values))
		for i, v := range values {
			u := uint32(v)
			off := i * 4
			buf[off] = byte(u)
			buf[off+1] = byte(u >> 8)
			buf[off+2] = byte(u >> 16)
			buf[off+3] = byte(u >> 24)
		}
		if _, err := os.Stdout.Write(buf); err != nil {
			fmt.Fprintf(os.Stderr, "gridreader: write stdout: %v\n", err)
			return 1
		}
		return 0
	}

	for _, v := range values {
		fmt.Println(v)
	}
	return 0
}

// parseMeshKey accepts either a plain decimal mesh code or one with spaces
// between its component groups (e.g. "3622 5734 1"), matching the grid
// square ID's conventional display form.
func parseMeshKey(s string) (uint32, error) {
	s = strings.ReplaceAll(s, " ", "")
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mesh key %q: %w", s, err)
	}
	return uint32(n), nil
}
