// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package templates caches the PDF template artifacts that field-fill
// generation consumes. It keeps two independent TTL caches: metadata
// (existence, size, field names) and raw content bytes. Content is the
// expensive load, so its TTL is usually the longer of the two.
package templates

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"leasedocs/internal/cache"
	"leasedocs/internal/models"
	"leasedocs/internal/region"
)

// Metadata describes a template artifact for one (region, kind) pair.
// It is derived and read-only: rebuilt on cache miss or invalidation,
// immutable once cached for its TTL.
type Metadata struct {
	Exists     bool
	SizeBytes  int64
	FieldNames []string
	SourcePath string
	Region     string
	Kind       models.DocumentKind
}

// FieldLister introspects a template artifact's named form fields.
// Implemented by the pdf package; faked in tests.
type FieldLister interface {
	ListFields(path string) ([]string, error)
}

// Config holds the tunables for the template cache.
type Config struct {
	// Dirs is the ordered list of candidate directories searched for
	// template files. The first directory containing the file wins.
	// Multiple candidates tolerate differing working directories
	// between local, CI, and production.
	Dirs []string

	MetadataTTL time.Duration
	ContentTTL  time.Duration
	MaxEntries  int

	// SweepInterval is how often expired entries are removed. Zero
	// disables the background sweeper.
	SweepInterval time.Duration
}

type key struct {
	region string
	kind   models.DocumentKind
}

// Cache lazily loads template metadata and content from the filesystem.
type Cache struct {
	cfg    Config
	fields FieldLister

	meta    *cache.TTLMap[key, Metadata]
	content *cache.TTLMap[key, []byte]

	// Filesystem hooks, replaced by tests to count reads.
	stat     func(string) (os.FileInfo, error)
	readFile func(string) ([]byte, error)
}

// New creates a template cache. fields may be nil, in which case field
// introspection is skipped and metadata carries an empty field list.
func New(cfg Config, fields FieldLister) *Cache {
	if cfg.MetadataTTL <= 0 {
		cfg.MetadataTTL = 5 * time.Minute
	}
	if cfg.ContentTTL <= 0 {
		cfg.ContentTTL = 30 * time.Minute
	}
	return &Cache{
		cfg:      cfg,
		fields:   fields,
		meta:     cache.NewTTLMap[key, Metadata]("template-metadata", cfg.MetadataTTL, cfg.MaxEntries),
		content:  cache.NewTTLMap[key, []byte]("template-content", cfg.ContentTTL, cfg.MaxEntries),
		stat:     os.Stat,
		readFile: os.ReadFile,
	}
}

// Start launches the periodic sweepers. They stop when ctx is cancelled
// and never keep the process alive on their own.
func (c *Cache) Start(ctx context.Context) {
	c.meta.StartSweeper(ctx, c.cfg.SweepInterval)
	c.content.StartSweeper(ctx, c.cfg.SweepInterval)
}

// Filename returns the template filename for a region and kind, e.g.
// "Colorado_Lease_Agreement.pdf". Spaces in display names become
// underscores.
func Filename(regionCode string, kind models.DocumentKind) string {
	display := strings.ReplaceAll(region.DisplayName(regionCode), " ", "_")
	return fmt.Sprintf("%s_%s_Agreement.pdf", display, kind)
}

// Metadata returns the cached metadata for (region, kind), rebuilding it
// on miss. A missing template is not an error: the returned metadata has
// Exists=false and callers decide how to degrade.
func (c *Cache) Metadata(regionCode string, kind models.DocumentKind) Metadata {
	k := key{region: strings.ToUpper(regionCode), kind: kind}
	if m, ok := c.meta.Get(k); ok {
		return m
	}

	m := c.buildMetadata(k)
	c.meta.Put(k, m)
	return m
}

// Content returns the cached template bytes for (region, kind), or nil
// when no template is deployed. Callers decide whether nil is fatal.
func (c *Cache) Content(regionCode string, kind models.DocumentKind) ([]byte, error) {
	k := key{region: strings.ToUpper(regionCode), kind: kind}
	if b, ok := c.content.Get(k); ok {
		return b, nil
	}

	m := c.Metadata(k.region, kind)
	if !m.Exists {
		return nil, nil
	}

	b, err := c.readFile(m.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", m.SourcePath, err)
	}
	c.content.Put(k, b)
	slog.Debug("template content loaded", "region", k.region, "kind", kind, "bytes", len(b))
	return b, nil
}

// Invalidate removes both metadata and content for (region, kind)
// immediately, bypassing TTL. Used after a template file is known to
// have changed on disk.
func (c *Cache) Invalidate(regionCode string, kind models.DocumentKind) {
	k := key{region: strings.ToUpper(regionCode), kind: kind}
	c.meta.Delete(k)
	c.content.Delete(k)
	slog.Info("template cache invalidated", "region", k.region, "kind", kind)
}

// Prewarm eagerly loads content for the given region and kinds. It is
// best-effort: failures are logged and never fatal to startup.
func (c *Cache) Prewarm(ctx context.Context, regionCode string, kinds []models.DocumentKind) {
	for _, kind := range kinds {
		select {
		case <-ctx.Done():
			return
		default:
		}
		b, err := c.Content(regionCode, kind)
		switch {
		case err != nil:
			slog.Warn("template prewarm failed", "region", regionCode, "kind", kind, "error", err)
		case b == nil:
			slog.Warn("template prewarm skipped, no template deployed", "region", regionCode, "kind", kind)
		default:
			slog.Info("template prewarmed", "region", regionCode, "kind", kind, "bytes", len(b))
		}
	}
}

// buildMetadata searches the candidate directories in order and
// introspects the first existing file. "File does not exist at this
// candidate" is an expected outcome, not an error.
func (c *Cache) buildMetadata(k key) Metadata {
	m := Metadata{Region: k.region, Kind: k.kind}
	name := Filename(k.region, k.kind)

	for _, dir := range c.cfg.Dirs {
		path := filepath.Join(dir, name)
		info, err := c.stat(path)
		if err != nil {
			continue
		}
		m.Exists = true
		m.SizeBytes = info.Size()
		m.SourcePath = path
		m.FieldNames = c.introspect(path)
		return m
	}

	slog.Warn("template not found in any candidate directory",
		"region", k.region, "kind", k.kind, "file", name, "dirs", len(c.cfg.Dirs))
	return m
}

// introspect lists the template's named form fields. Failure is
// non-fatal: templates without readable field dictionaries still render
// through the HTML path, so we return an empty list and warn.
func (c *Cache) introspect(path string) []string {
	if c.fields == nil {
		return nil
	}
	fields, err := c.fields.ListFields(path)
	if err != nil {
		slog.Warn("template field introspection failed", "path", path, "error", err)
		return nil
	}
	return fields
}
