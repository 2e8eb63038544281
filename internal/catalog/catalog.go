// Package catalog holds the external node-pack catalog and resolves node
// packs by their source repository URL.
package catalog

import (
	"os"
	"sort"

	"github.com/antonholmquist/jason"

	"github.com/jkoski/flowdeps/internal/errors"
)

// ErrPackNotFound indicates the requested pack id is not in the catalog.
var ErrPackNotFound = errors.NewStd("node pack not found in catalog")

// GlobalNodePackage is one catalog entry. Owned by the external catalog,
// read-only to the resolution engine.
type GlobalNodePackage struct {
	ID            string
	Name          string
	Description   string
	Author        string
	RepositoryURL string
	Stars         int64
	License       string
}

// Catalog is an explicitly constructed, immutable view over the node-pack
// catalog. There is no lazy global instance; callers build one and pass it
// where it is needed.
type Catalog struct {
	packs   map[string]*GlobalNodePackage
	ordered []*GlobalNodePackage
}

// NewCatalog builds a catalog from entries. Entry order is normalized to
// sorted pack id so iteration is deterministic.
func NewCatalog(packs []*GlobalNodePackage) *Catalog {
	c := &Catalog{packs: make(map[string]*GlobalNodePackage, len(packs))}
	for _, p := range packs {
		if p == nil || p.ID == "" {
			continue
		}
		if _, dup := c.packs[p.ID]; dup {
			continue
		}
		c.packs[p.ID] = p
		c.ordered = append(c.ordered, p)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].ID < c.ordered[j].ID })
	return c
}

// Load reads a JSON catalog file: a top-level object mapping pack id to
// {name, description, author, repository, stars, license}. Unknown fields
// are ignored.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("catalog").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close() //nolint:errcheck // read-only file

	root, err := jason.NewObjectFromReader(f)
	if err != nil {
		return nil, errors.New(err).
			Component("catalog").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	var packs []*GlobalNodePackage
	for id, v := range root.Map() {
		obj, err := v.Object()
		if err != nil {
			continue
		}
		p := &GlobalNodePackage{ID: id}
		p.Name, _ = obj.GetString("name")
		p.Description, _ = obj.GetString("description")
		p.Author, _ = obj.GetString("author")
		p.RepositoryURL, _ = obj.GetString("repository")
		p.Stars, _ = obj.GetInt64("stars")
		p.License, _ = obj.GetString("license")
		packs = append(packs, p)
	}

	return NewCatalog(packs), nil
}

// Get returns the pack for id.
func (c *Catalog) Get(id string) (*GlobalNodePackage, bool) {
	p, ok := c.packs[id]
	return p, ok
}

// All returns the catalog entries in pack-id order.
func (c *Catalog) All() []*GlobalNodePackage {
	return c.ordered
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.ordered)
}
