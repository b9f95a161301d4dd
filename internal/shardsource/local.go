package shardsource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalSource enumerates CSV shards from a local directory. This is the
// default backend (spec §6's CLI "directory, pattern" flags); it fills the
// gap left by the teacher's objectstore package, which only shipped
// memory and S3 backends.
type LocalSource struct {
	Dir     string
	Pattern string // glob pattern, e.g. "*.csv"; empty matches everything
}

// NewLocalSource creates a LocalSource rooted at dir.
func NewLocalSource(dir, pattern string) *LocalSource {
	return &LocalSource{Dir: dir, Pattern: pattern}
}

// List returns Dir-relative shard keys under prefix (a subdirectory of Dir)
// matching Pattern; each key can be passed to Open as is.
func (l *LocalSource) List(_ context.Context, prefix string) ([]string, error) {
	root := l.Dir
	if prefix != "" {
		root = filepath.Join(l.Dir, prefix)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("shardsource: read dir %q: %w", root, err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if l.Pattern != "" {
			ok, err := filepath.Match(l.Pattern, name)
			if err != nil {
				return nil, fmt.Errorf("shardsource: bad pattern %q: %w", l.Pattern, err)
			}
			if !ok {
				continue
			}
		}
		keys = append(keys, filepath.Join(prefix, name))
	}
	return sortedCopy(keys), nil
}

// Open opens the shard at the given absolute or Dir-relative path.
func (l *LocalSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path := key
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.Dir, key)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("shardsource: open %q: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("shardsource: open %q: %w", path, err)
	}
	return f, nil
}

var _ Source = (*LocalSource)(nil)
