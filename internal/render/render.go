// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render memoizes rendered document HTML. It keeps two caches:
// compiled Go templates keyed by document kind (L1, effectively permanent
// for the process lifetime since compilation is expensive and kinds are
// few), and fully-rendered HTML keyed by a content hash of the input data
// (so identical inputs across calls skip template execution entirely).
// An optional Valkey-backed remote tier shares rendered output across
// service instances; remote failures always degrade to a local recompute.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"leasedocs/internal/cache"
	"leasedocs/internal/models"
)

// RemoteCache is the optional shared tier for rendered HTML.
// Implemented by cache.HTMLCache; nil disables the tier.
type RemoteCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, html string, ttl time.Duration)
}

// Config holds the tunables for the render cache.
type Config struct {
	// OutputTTL bounds how long rendered HTML is reused.
	OutputTTL time.Duration

	// MaxEntries caps the rendered-output cache; oldest entries are
	// evicted first. CompiledMax caps the compiled-template cache.
	MaxEntries  int
	CompiledMax int

	SweepInterval time.Duration
}

// Options tune a single Render call.
type Options struct {
	// Key overrides the derived content-hash cache key.
	Key string

	// TTL overrides the configured output TTL for this entry.
	TTL time.Duration
}

// Cache compiles document templates and memoizes their rendered output.
type Cache struct {
	cfg  Config
	fsys fs.FS

	compiled *cache.TTLMap[models.DocumentKind, *template.Template]
	output   *cache.TTLMap[string, string]
	remote   RemoteCache

	// Instrumentation counters; Render runs concurrently from handlers.
	compiles atomic.Int64
	executes atomic.Int64
}

// New creates a render cache reading template sources from fsys
// (templates/<kind>.html.tmpl). remote may be nil.
func New(cfg Config, fsys fs.FS, remote RemoteCache) *Cache {
	if cfg.OutputTTL <= 0 {
		cfg.OutputTTL = 5 * time.Minute
	}
	if cfg.CompiledMax <= 0 {
		cfg.CompiledMax = 16
	}
	return &Cache{
		cfg:  cfg,
		fsys: fsys,
		// Compiled templates never expire; the count cap alone bounds them.
		compiled: cache.NewTTLMap[models.DocumentKind, *template.Template]("render-compiled", 0, cfg.CompiledMax),
		output:   cache.NewTTLMap[string, string]("render-output", cfg.OutputTTL, cfg.MaxEntries),
		remote:   remote,
	}
}

// Start launches the periodic sweeper for the rendered-output cache.
func (c *Cache) Start(ctx context.Context) {
	c.output.StartSweeper(ctx, c.cfg.SweepInterval)
}

// Key derives the stable cache key for (kind, data): the document kind
// plus an xxhash of the JSON-serialized data. Identical data always
// produces the same key, enabling cross-call memoization.
func Key(kind models.DocumentKind, data any) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("serialize render data: %w", err)
	}
	return fmt.Sprintf("%s:%016x", kind, xxhash.Sum64(b)), nil
}

// Render returns the HTML for a document kind and data, serving from
// cache when possible. On miss it compiles (or reuses the compiled
// template), executes it, caches the result with TTL, and returns it.
func (c *Cache) Render(ctx context.Context, kind models.DocumentKind, data any, opts Options) (string, error) {
	key := opts.Key
	if key == "" {
		var err error
		key, err = Key(kind, data)
		if err != nil {
			return "", err
		}
	}

	if html, ok := c.output.Get(key); ok {
		return html, nil
	}
	if c.remote != nil {
		if html, ok := c.remote.Get(ctx, key); ok {
			c.store(ctx, key, html, opts.TTL, false)
			return html, nil
		}
	}

	tmpl, err := c.template(kind)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	c.executes.Add(1)
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s document: %w", kind, err)
	}

	html := buf.String()
	c.store(ctx, key, html, opts.TTL, true)
	slog.Debug("document rendered", "kind", kind, "key", key, "bytes", len(html))
	return html, nil
}

// Invalidate drops one rendered entry from the local cache.
func (c *Cache) Invalidate(key string) {
	c.output.Delete(key)
}

// store writes a rendered result to the local tier and, when it was
// freshly rendered here, to the remote tier as well.
func (c *Cache) store(ctx context.Context, key, html string, ttl time.Duration, toRemote bool) {
	if ttl <= 0 {
		ttl = c.cfg.OutputTTL
	}
	c.output.PutTTL(key, html, ttl)
	if toRemote && c.remote != nil {
		c.remote.Set(ctx, key, html, ttl)
	}
}

// template returns the compiled template for kind, compiling and caching
// it on first use.
func (c *Cache) template(kind models.DocumentKind) (*template.Template, error) {
	if tmpl, ok := c.compiled.Get(kind); ok {
		return tmpl, nil
	}

	name := fmt.Sprintf("templates/%s.html.tmpl", strings.ToLower(kind.String()))
	src, err := fs.ReadFile(c.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("load %s template: %w", kind, err)
	}

	c.compiles.Add(1)
	tmpl, err := template.New(string(kind)).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("compile %s template: %w", kind, err)
	}
	c.compiled.Put(kind, tmpl)
	slog.Debug("document template compiled", "kind", kind)
	return tmpl, nil
}
