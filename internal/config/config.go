// Package config loads meshstore's runtime configuration from environment
// variables, an optional .env file, and an optional YAML overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ChunkGeometry describes the on-disk tiling of the matrix. It is an
// invariant of a store's file layout once created (spec I1).
type ChunkGeometry struct {
	ChunkT int `yaml:"chunk_t"`
	ChunkM int `yaml:"chunk_m"`
}

// DefaultChunkGeometry is the standard configuration named in spec §3:
// one leap-year in hours by 16 mesh columns.
var DefaultChunkGeometry = ChunkGeometry{ChunkT: 8784, ChunkM: 16}

// DefaultMeshCount is the historical universe size this format was designed
// around (spec §4.8's "documented quirk"). It seeds fixture generation only;
// the façade's bounds check always uses the opened store's actual N.
const DefaultMeshCount = 1553332

// ClickHouseConfig configures the optional ingestion-report sink (SPEC_FULL §4, S4.2).
type ClickHouseConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// S3Config configures the optional S3-backed shard source (SPEC_FULL §2).
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Prefix string `yaml:"prefix"`
}

// Config is meshstore's process-wide configuration.
type Config struct {
	// StorePath is the backing file path for the matrix store.
	StorePath string `yaml:"store_path"`
	// Epoch is the store's local wall-clock epoch, format "YYYY-MM-DD HH:MM:SS".
	Epoch string `yaml:"epoch"`
	// Geometry is the chunk tiling. Only meaningful at store creation time.
	Geometry ChunkGeometry `yaml:"geometry"`
	// MeshCount is the fixed mesh universe cardinality for a new store.
	MeshCount int `yaml:"mesh_count"`

	// CacheBytes bounds the chunk cache (spec §4.3 default ~32MiB).
	CacheBytes int64 `yaml:"cache_bytes"`
	// QueueCapacity bounds the ingestion work queue (spec §4.6 default 1024).
	QueueCapacity int `yaml:"queue_capacity"`
	// Producers caps concurrent CSV-reader producers (spec §4.6 default up to 32).
	Producers int `yaml:"producers"`
	// Bulk selects whole-year bulk-assembly ingestion mode over streaming-cell mode.
	Bulk bool `yaml:"bulk"`

	// ShardBackend names the CSV shard source: "local", "memory", or "s3".
	// cmd/gridingest reads shards from its local -directory whatever this is
	// set to.
	ShardBackend string   `yaml:"shard_backend"`
	S3           S3Config `yaml:"s3"`

	// LogLevel and LogPath configure the process logger.
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`

	// ClickHouse configures the optional ingestion-report sink; left zero-value disables it.
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

const (
	defaultCacheBytes    = 32 << 20 // ~32MiB, spec §4.3
	defaultQueueCapacity = 1024     // spec §4.6
	defaultProducers     = 8
)

func defaults() Config {
	return Config{
		Geometry:      DefaultChunkGeometry,
		MeshCount:     DefaultMeshCount,
		CacheBytes:    defaultCacheBytes,
		QueueCapacity: defaultQueueCapacity,
		Producers:     defaultProducers,
		ShardBackend:  "local",
		LogLevel:      "info",
	}
}

// Load builds a Config from defaults, an optional YAML file, a .env file,
// and environment variables, in that order of increasing precedence —
// mirroring the teacher's internal/config/loader.go layering, generalized
// from an AI-gateway's settings to a store's settings.
func Load(yamlPath string) (Config, error) {
	cfg := defaults()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", yamlPath, err)
		}
	}

	// .env values override the YAML overlay but not explicit process environment,
	// matching godotenv.Load semantics (first match wins, per spec §6).
	_ = godotenv.Load()

	applyEnv(&cfg)

	if cfg.Geometry.ChunkT <= 0 || cfg.Geometry.ChunkM <= 0 {
		return Config{}, fmt.Errorf("config: invalid chunk geometry %+v", cfg.Geometry)
	}
	if cfg.MeshCount <= 0 {
		return Config{}, fmt.Errorf("config: mesh_count must be positive, got %d", cfg.MeshCount)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("MESHSTORE_FILE_PATH")); v != "" {
		cfg.StorePath = v
	}
	if v := strings.TrimSpace(os.Getenv("MESHSTORE_EPOCH")); v != "" {
		cfg.Epoch = v
	}
	if v := strings.TrimSpace(os.Getenv("MESHSTORE_CACHE_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.CacheBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MESHSTORE_QUEUE_CAPACITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueCapacity = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MESHSTORE_PRODUCERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Producers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MESHSTORE_BULK")); v != "" {
		cfg.Bulk = v == "1" || strings.EqualFold(v, "true")
	}
	if v := strings.TrimSpace(os.Getenv("MESHSTORE_SHARD_BACKEND")); v != "" {
		cfg.ShardBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("MESHSTORE_S3_BUCKET")); v != "" {
		cfg.S3.Bucket = v
	}
	if v := strings.TrimSpace(os.Getenv("MESHSTORE_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("MESHSTORE_CLICKHOUSE_DSN")); v != "" {
		cfg.ClickHouse.DSN = v
	}
}
