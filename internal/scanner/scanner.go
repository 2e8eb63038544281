// Package scanner walks a model directory tree and reconciles it with the
// content-addressed index: new files are hashed and recorded, moved files
// gain locations, and locations whose files disappeared are removed.
package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jkoski/flowdeps/internal/errors"
	"github.com/jkoski/flowdeps/internal/logging"
	"github.com/jkoski/flowdeps/internal/modelindex"
	"github.com/jkoski/flowdeps/internal/observability/metrics"
)

// IndexWriter is the slice of the index store the scanner writes through.
type IndexWriter interface {
	EnsureModel(ctx context.Context, hash string, size int64) error
	AddLocation(ctx context.Context, hash, relativePath, filename string, modTime time.Time) error
	TouchLocation(ctx context.Context, relativePath string, seen time.Time) error
	RemoveLocation(ctx context.Context, relativePath string) (bool, error)
	GetAllLocations(ctx context.Context) ([]modelindex.ModelLocation, error)
	GetStats(ctx context.Context) (modelindex.Stats, error)
}

// Config controls a scan.
type Config struct {
	// Root is the models directory to walk.
	Root string
	// Extensions lists the file extensions treated as models, with leading
	// dots, e.g. ".safetensors".
	Extensions []string
	// Workers bounds concurrent hashing. Zero means GOMAXPROCS.
	Workers int
}

// Result summarizes one scan pass.
type Result struct {
	Scanned  int
	Hashed   int
	Skipped  int
	Removed  int
	Failed   int
	Duration time.Duration
}

// Scanner reconciles a directory tree with the index.
type Scanner struct {
	index   IndexWriter
	cfg     Config
	metrics *metrics.ModelIndexMetrics
	log     *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMetrics attaches index metrics.
func WithMetrics(m *metrics.ModelIndexMetrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithLogger overrides the default service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scanner) { s.log = log }
}

// New creates a Scanner.
func New(index IndexWriter, cfg Config, opts ...Option) *Scanner {
	s := &Scanner{
		index: index,
		cfg:   cfg,
		log:   logging.ForService("scanner"),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type foundFile struct {
	relativePath string
	absPath      string
	size         int64
	modTime      time.Time
}

// Scan walks the root, hashes new or changed files concurrently, records
// their locations, and prunes locations whose files are gone. Unreadable
// files are counted and logged, not fatal.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	if _, err := os.Stat(s.cfg.Root); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryScan).
			Context("root", s.cfg.Root).
			Build()
	}

	known, err := s.knownLocations(ctx)
	if err != nil {
		return nil, err
	}

	files, err := s.walk()
	if err != nil {
		return nil, err
	}
	result.Scanned = len(files)

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	seen := make(map[string]struct{}, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range files {
		f := f
		mu.Lock()
		seen[f.relativePath] = struct{}{}
		mu.Unlock()

		// Unchanged mtime: the stored hash still holds. The sighting is
		// still recorded so last-seen reflects the latest scan.
		if loc, ok := known[f.relativePath]; ok && loc.ModTime.Equal(f.modTime) {
			if err := s.index.TouchLocation(ctx, f.relativePath, start); err != nil {
				return nil, err
			}
			mu.Lock()
			result.Skipped++
			mu.Unlock()
			s.metrics.RecordScanFile("skipped")
			continue
		}

		g.Go(func() error {
			hash, err := hashFile(f.absPath)
			if err != nil {
				s.log.Warn("failed to hash model file", "path", f.relativePath, "error", err)
				mu.Lock()
				result.Failed++
				mu.Unlock()
				s.metrics.RecordScanFile("failed")
				return nil
			}
			if err := s.index.EnsureModel(gctx, hash, f.size); err != nil {
				return err
			}
			if err := s.index.AddLocation(gctx, hash, f.relativePath, filepath.Base(f.relativePath), f.modTime); err != nil {
				return err
			}
			mu.Lock()
			result.Hashed++
			mu.Unlock()
			s.metrics.RecordScanFile("hashed")
			s.log.Debug("indexed model file", "path", f.relativePath, "hash", hash[:12])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryScan).
			Context("root", s.cfg.Root).
			Build()
	}

	// Prune locations whose files no longer exist under the root.
	for path := range known {
		if _, ok := seen[path]; ok {
			continue
		}
		removed, err := s.index.RemoveLocation(ctx, path)
		if err != nil {
			return nil, err
		}
		if removed {
			result.Removed++
			s.metrics.RecordScanFile("removed")
			s.log.Debug("removed stale location", "path", path)
		}
	}

	if stats, err := s.index.GetStats(ctx); err == nil {
		s.metrics.UpdateIndexSize(stats.TotalModels, stats.TotalLocations)
	}

	result.Duration = time.Since(start)
	s.metrics.RecordScan(result.Duration)
	s.log.Info("scan complete",
		"root", s.cfg.Root,
		"scanned", result.Scanned,
		"hashed", result.Hashed,
		"skipped", result.Skipped,
		"removed", result.Removed,
		"failed", result.Failed,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// knownLocations maps relative path to its stored location record.
func (s *Scanner) knownLocations(ctx context.Context) (map[string]modelindex.ModelLocation, error) {
	locations, err := s.index.GetAllLocations(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]modelindex.ModelLocation, len(locations))
	for _, loc := range locations {
		known[loc.RelativePath] = loc
	}
	return known, nil
}

// walk collects model files under the root. Paths are recorded relative to
// the root with forward slashes, matching how workflows reference them.
func (s *Scanner) walk() ([]foundFile, error) {
	var files []foundFile
	err := filepath.WalkDir(s.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != s.cfg.Root {
				return fs.SkipDir
			}
			return nil
		}
		if !s.isModelFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.cfg.Root, path)
		if err != nil {
			return err
		}
		files = append(files, foundFile{
			relativePath: filepath.ToSlash(rel),
			absPath:      path,
			size:         info.Size(),
			modTime:      info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryScan).
			Context("root", s.cfg.Root).
			Build()
	}
	return files, nil
}

func (s *Scanner) isModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range s.cfg.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// hashFile computes the sha256 of a file as lowercase hex.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
