// Package registry tracks locally installed node types and the packs that
// provide them.
package registry

import (
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/antonholmquist/jason"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jkoski/flowdeps/internal/errors"
	"github.com/jkoski/flowdeps/internal/logging"
)

// Entry describes the pack providing one installed node type.
type Entry struct {
	PackID  string
	Version string
	// RepositoryURL is the pack's source repository when node metadata
	// carries one; used for URL-based matching of unknown packs.
	RepositoryURL string
}

// Registry answers whether a node type is locally installed and with what
// pack. Derived per-pack metadata is cached with a TTL since registries are
// re-read frequently during interactive fix sessions.
type Registry struct {
	entries map[string]Entry
	cache   *gocache.Cache
	log     *slog.Logger
}

// New builds a registry from node type entries.
func New(entries map[string]Entry, cacheTTL time.Duration) *Registry {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	r := &Registry{
		entries: entries,
		cache:   gocache.New(cacheTTL, 2*cacheTTL),
		log:     logging.ForService("registry"),
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Load reads a registry file: a JSON object mapping node type to
// {pack, version, repository}.
func Load(path string, cacheTTL time.Duration) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("registry").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close() //nolint:errcheck // read-only file

	root, err := jason.NewObjectFromReader(f)
	if err != nil {
		return nil, errors.New(err).
			Component("registry").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	entries := make(map[string]Entry)
	for nodeType, v := range root.Map() {
		obj, err := v.Object()
		if err != nil {
			continue
		}
		var e Entry
		e.PackID, _ = obj.GetString("pack")
		e.Version, _ = obj.GetString("version")
		e.RepositoryURL, _ = obj.GetString("repository")
		if e.PackID == "" {
			continue
		}
		entries[nodeType] = e
	}

	return New(entries, cacheTTL), nil
}

// Lookup reports whether nodeType is installed and with what pack.
func (r *Registry) Lookup(nodeType string) (Entry, bool) {
	e, ok := r.entries[nodeType]
	return e, ok
}

// PackVersions returns the distinct installed versions attributed to a pack,
// sorted. Cached per pack id.
func (r *Registry) PackVersions(packID string) []string {
	if cached, ok := r.cache.Get(packID); ok {
		return cached.([]string)
	}

	seen := make(map[string]struct{})
	var versions []string
	for _, e := range r.entries {
		if e.PackID != packID || e.Version == "" {
			continue
		}
		if _, dup := seen[e.Version]; dup {
			continue
		}
		seen[e.Version] = struct{}{}
		versions = append(versions, e.Version)
	}
	sort.Strings(versions)

	r.cache.Set(packID, versions, gocache.DefaultExpiration)
	return versions
}

// NodeTypes returns all installed node types, sorted.
func (r *Registry) NodeTypes() []string {
	types := make([]string, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
