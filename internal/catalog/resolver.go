package catalog

import (
	"log/slog"

	"github.com/jkoski/flowdeps/internal/logging"
)

// Resolver maps between pack ids and normalized repository URLs, both
// directions. Only canonical https://host/owner/repo forms are stored as
// keys; catalog entries whose URL cannot be canonicalized are simply not
// resolvable by URL.
type Resolver struct {
	byURL map[string]string // canonical URL -> pack id
	byID  map[string]string // pack id -> canonical URL
	log   *slog.Logger
}

// NewResolver builds the bidirectional URL map from a catalog.
func NewResolver(c *Catalog) *Resolver {
	r := &Resolver{
		byURL: make(map[string]string),
		byID:  make(map[string]string),
		log:   logging.ForService("catalog"),
	}
	if r.log == nil {
		r.log = slog.Default()
	}

	for _, p := range c.All() {
		canonical, ok := CanonicalGitURL(p.RepositoryURL)
		if !ok {
			if p.RepositoryURL != "" {
				r.log.Debug("pack repository URL not canonicalizable",
					"pack", p.ID, "repository", p.RepositoryURL)
			}
			continue
		}
		// First pack wins a contested URL; ids are unique in the catalog
		if _, taken := r.byURL[canonical]; !taken {
			r.byURL[canonical] = p.ID
		}
		r.byID[p.ID] = canonical
	}
	return r
}

// PackByURL resolves a repository reference (any accepted git URL form) to
// a pack id.
func (r *Resolver) PackByURL(rawURL string) (string, bool) {
	canonical, ok := CanonicalGitURL(rawURL)
	if !ok {
		return "", false
	}
	id, ok := r.byURL[canonical]
	return id, ok
}

// URLByPack returns the canonical repository URL for a pack id.
func (r *Resolver) URLByPack(id string) (string, bool) {
	u, ok := r.byID[id]
	return u, ok
}
