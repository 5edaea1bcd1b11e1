// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Env != "development" || !cfg.IsDev() {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.DefaultRegion != "CO" {
		t.Errorf("DefaultRegion = %q, want CO", cfg.DefaultRegion)
	}
	if cfg.TemplateMetadataTTL != 5*time.Minute {
		t.Errorf("TemplateMetadataTTL = %v", cfg.TemplateMetadataTTL)
	}
	if cfg.TemplateContentTTL != 30*time.Minute {
		t.Errorf("TemplateContentTTL = %v", cfg.TemplateContentTTL)
	}
	if cfg.EngineMemoryThreshold != 1<<30 {
		t.Errorf("EngineMemoryThreshold = %d", cfg.EngineMemoryThreshold)
	}
	if cfg.UploadRetries != 3 {
		t.Errorf("UploadRetries = %d", cfg.UploadRetries)
	}
	if len(cfg.TemplateDirs) != 3 {
		t.Errorf("TemplateDirs = %v", cfg.TemplateDirs)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DEFAULT_REGION", "TX")
	t.Setenv("TEMPLATE_METADATA_TTL_MS", "1500")
	t.Setenv("CACHE_MAX_ENTRIES", "64")
	t.Setenv("ENGINE_MEMORY_THRESHOLD_BYTES", "536870912")
	t.Setenv("TEMPLATE_DIRS", " /srv/tpl , ./local ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.DefaultRegion != "TX" {
		t.Errorf("DefaultRegion = %q", cfg.DefaultRegion)
	}
	if cfg.TemplateMetadataTTL != 1500*time.Millisecond {
		t.Errorf("TemplateMetadataTTL = %v", cfg.TemplateMetadataTTL)
	}
	if cfg.CacheMaxEntries != 64 {
		t.Errorf("CacheMaxEntries = %d", cfg.CacheMaxEntries)
	}
	if cfg.EngineMemoryThreshold != 512<<20 {
		t.Errorf("EngineMemoryThreshold = %d", cfg.EngineMemoryThreshold)
	}
	want := []string{"/srv/tpl", "./local"}
	if len(cfg.TemplateDirs) != len(want) || cfg.TemplateDirs[0] != want[0] || cfg.TemplateDirs[1] != want[1] {
		t.Errorf("TemplateDirs = %v, want %v", cfg.TemplateDirs, want)
	}
}

func TestLoadMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("CACHE_MAX_ENTRIES", "lots")
	t.Setenv("TEMPLATE_CONTENT_TTL_MS", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheMaxEntries != 128 {
		t.Errorf("CacheMaxEntries = %d, want default 128", cfg.CacheMaxEntries)
	}
	if cfg.TemplateContentTTL != 30*time.Minute {
		t.Errorf("TemplateContentTTL = %v, want default", cfg.TemplateContentTTL)
	}
}

func TestLoadZeroTTLAllowed(t *testing.T) {
	t.Setenv("RENDER_TTL_MS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RenderTTL != 0 {
		t.Errorf("RenderTTL = %v, want 0 (explicit)", cfg.RenderTTL)
	}
}

func TestLoadProductionGuards(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Error("production load succeeded without S3_ENDPOINT")
	}

	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("POSTGRES_HOST", "db")
	if _, err := Load(); err == nil {
		t.Error("production load succeeded with default POSTGRES_PASSWORD")
	}

	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IsDev() {
		t.Error("IsDev true in production")
	}
}

func TestDSNAndAddr(t *testing.T) {
	cfg := &Config{
		Host: "0.0.0.0", Port: "8080",
		DBUser: "app", DBPassword: "pw", DBHost: "db", DBPort: "5432", DBName: "leasedocs",
	}
	if got := cfg.DSN(); got != "postgres://app:pw@db:5432/leasedocs?sslmode=disable" {
		t.Errorf("DSN = %q", got)
	}
	if got := cfg.Addr(); got != "0.0.0.0:8080" {
		t.Errorf("Addr = %q", got)
	}
}
