// Package docgen orchestrates document generation: it resolves the
// jurisdiction, picks the strategy (PDF form filling or HTML rendering
// through the headless engine), and returns raw PDF bytes for the
// caller to persist or stream.
package docgen

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"leasedocs/internal/models"
	"leasedocs/internal/region"
	"leasedocs/internal/render"
	"leasedocs/internal/templates"
)

// TemplateSource supplies cached template artifacts. Implemented by
// templates.Cache.
type TemplateSource interface {
	Metadata(regionCode string, kind models.DocumentKind) templates.Metadata
	Content(regionCode string, kind models.DocumentKind) ([]byte, error)
}

// FormFiller fills and flattens PDF form templates. Implemented by
// pdf.Toolkit.
type FormFiller interface {
	Fill(tpl []byte, values map[string]string) ([]byte, []string, error)
	Flatten(in []byte) ([]byte, error)
}

// HTMLRenderer produces document HTML from a kind and data. Implemented
// by render.Cache.
type HTMLRenderer interface {
	Render(ctx context.Context, kind models.DocumentKind, data any, opts render.Options) (string, error)
}

// Rasterizer turns HTML into PDF bytes. Implemented by engine.Pool.
type Rasterizer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// Options tune a single generation call.
type Options struct {
	// Region is the requested jurisdiction code; empty resolves to the
	// configured default.
	Region string

	// Kind selects the document template; zero value means KindLease.
	Kind models.DocumentKind

	// FailOnUnsupportedRegion turns region fallbacks into errors.
	FailOnUnsupportedRegion bool

	// Validate confirms template metadata exists for the resolved
	// region before loading content.
	Validate bool

	// CacheKey and CacheTTL pass through to the render cache on the
	// HTML path.
	CacheKey string
	CacheTTL time.Duration
}

// Generator is the shared entry point for both generation strategies.
type Generator struct {
	regions  *region.Validator
	source   TemplateSource
	filler   FormFiller
	renderer HTMLRenderer
	raster   Rasterizer
}

// New creates a generator. The HTML path pieces (renderer, raster) and
// the field-fill pieces (source, filler) may each be nil when only one
// strategy is deployed.
func New(regions *region.Validator, source TemplateSource, filler FormFiller, renderer HTMLRenderer, raster Rasterizer) *Generator {
	return &Generator{
		regions:  regions,
		source:   source,
		filler:   filler,
		renderer: renderer,
		raster:   raster,
	}
}

// GenerateFromFields produces a flattened PDF by filling the named form
// fields of the jurisdiction's template, and reports the region whose
// template was actually used — after default resolution and template
// fallback — so callers record the real jurisdiction, not the request.
// Fields absent from the template are skipped and reported once,
// aggregated, at the end — templates evolve independently of the
// field-mapping code.
func (g *Generator) GenerateFromFields(ctx context.Context, fields map[string]string, entityID string, opts Options) ([]byte, string, error) {
	kind := opts.Kind
	if kind == "" {
		kind = models.KindLease
	}

	res, err := g.regions.Validate(opts.Region, region.Options{
		FailOnUnsupported: opts.FailOnUnsupportedRegion,
		LogWarnings:       true,
	})
	if err != nil {
		return nil, "", err
	}
	regionCode := res.ResolvedCode

	if opts.Validate {
		regionCode, err = g.confirmDeployed(regionCode, kind)
		if err != nil {
			return nil, "", err
		}
	}

	content, regionCode, err := g.loadContent(regionCode, kind)
	if err != nil {
		return nil, "", err
	}

	filled, filledNames, err := g.filler.Fill(content, fields)
	if err != nil {
		return nil, "", fmt.Errorf("generate %s document for region %s: %w", kind, regionCode, err)
	}

	if missing := missingFields(fields, filledNames); len(missing) > 0 {
		// One aggregated line, not one per field.
		slog.Warn("fields not present in template, skipped",
			"entity", entityID, "region", regionCode, "kind", kind,
			"missing", missing, "count", len(missing))
	}

	out, err := g.filler.Flatten(filled)
	if err != nil {
		return nil, "", fmt.Errorf("generate %s document for region %s: %w", kind, regionCode, err)
	}

	slog.Info("document generated from fields",
		"entity", entityID, "region", regionCode, "kind", kind,
		"fields_filled", len(filledNames), "bytes", len(out))
	return out, regionCode, nil
}

// GenerateFromTemplate produces a PDF by rendering the kind's HTML
// template with data (cached) and rasterizing it through the engine.
// Returns the resolved region alongside the bytes.
func (g *Generator) GenerateFromTemplate(ctx context.Context, kind models.DocumentKind, data any, opts Options) ([]byte, string, error) {
	if kind == "" {
		kind = models.KindLease
	}

	res, err := g.regions.Validate(opts.Region, region.Options{
		FailOnUnsupported: opts.FailOnUnsupportedRegion,
		LogWarnings:       true,
	})
	if err != nil {
		return nil, "", err
	}

	html, err := g.renderer.Render(ctx, kind, data, render.Options{Key: opts.CacheKey, TTL: opts.CacheTTL})
	if err != nil {
		return nil, "", fmt.Errorf("generate %s document for region %s: %w", kind, res.ResolvedCode, err)
	}

	pdf, err := g.raster.RenderPDF(ctx, html)
	if err != nil {
		return nil, "", fmt.Errorf("generate %s document for region %s: %w", kind, res.ResolvedCode, err)
	}
	return pdf, res.ResolvedCode, nil
}

// confirmDeployed checks template metadata for the resolved region,
// falling back once to the default region. If the resolved region
// already is the default there is nothing further to degrade to.
func (g *Generator) confirmDeployed(regionCode string, kind models.DocumentKind) (string, error) {
	if g.source.Metadata(regionCode, kind).Exists {
		return regionCode, nil
	}
	if regionCode == g.regions.Default() {
		return "", fmt.Errorf("no %s template deployed for default region %s", kind, regionCode)
	}
	def := g.regions.Default()
	slog.Warn("template missing for region, substituting default",
		"region", regionCode, "default", def, "kind", kind)
	if !g.source.Metadata(def, kind).Exists {
		return "", fmt.Errorf("no %s template deployed for region %s or default %s", kind, regionCode, def)
	}
	return def, nil
}

// loadContent loads template bytes for the region, with the same
// one-level fallback to the default region.
func (g *Generator) loadContent(regionCode string, kind models.DocumentKind) ([]byte, string, error) {
	content, err := g.source.Content(regionCode, kind)
	if err != nil {
		return nil, regionCode, fmt.Errorf("generate %s document for region %s: %w", kind, regionCode, err)
	}
	if content != nil {
		return content, regionCode, nil
	}

	def := g.regions.Default()
	if regionCode == def {
		return nil, regionCode, fmt.Errorf("no %s template deployed for default region %s", kind, def)
	}

	slog.Warn("template missing for region, substituting default",
		"region", regionCode, "default", def, "kind", kind)
	content, err = g.source.Content(def, kind)
	if err != nil {
		return nil, def, fmt.Errorf("generate %s document for region %s: %w", kind, def, err)
	}
	if content == nil {
		return nil, def, fmt.Errorf("no %s template deployed for region %s or default %s", kind, regionCode, def)
	}
	return content, def, nil
}

// missingFields returns the requested field names that were not filled,
// sorted for stable log output.
func missingFields(requested map[string]string, filled []string) []string {
	set := make(map[string]struct{}, len(filled))
	for _, name := range filled {
		set[name] = struct{}{}
	}
	var missing []string
	for name := range requested {
		if _, ok := set[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
