// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// html.go provides a Valkey-backed cache for fully-rendered document HTML
// (L2). When a document body has been rendered from a template, the HTML
// is stored in Valkey so other service instances can skip template
// execution for identical inputs. Every failure here is soft: a broken
// L2 degrades to a recompute, never to a failed generation.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// htmlKeyPrefix is the Valkey key prefix for cached rendered HTML.
	htmlKeyPrefix = "docgen:html:"

	// DefaultHTMLTTL is how long rendered HTML stays cached when the
	// caller does not supply a TTL.
	DefaultHTMLTTL = 5 * time.Minute
)

// HTMLCache stores rendered document HTML in Valkey.
type HTMLCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHTMLCache creates a rendered-HTML cache backed by the given Valkey
// client.
func NewHTMLCache(client *redis.Client, ttl time.Duration) *HTMLCache {
	if ttl <= 0 {
		ttl = DefaultHTMLTTL
	}
	return &HTMLCache{client: client, ttl: ttl}
}

// Get retrieves cached HTML for a render key. Returns false on miss or
// on any Valkey error.
func (hc *HTMLCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := hc.client.Get(ctx, htmlKeyPrefix+key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		slog.Warn("html cache get error", "key", key, "error", err)
		return "", false
	}
	slog.Debug("html cache hit", "key", key)
	return val, true
}

// Set stores rendered HTML for a render key. A non-positive ttl falls
// back to the cache default. Errors are logged and swallowed.
func (hc *HTMLCache) Set(ctx context.Context, key, html string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = hc.ttl
	}
	if err := hc.client.Set(ctx, htmlKeyPrefix+key, html, ttl).Err(); err != nil {
		slog.Warn("html cache set error", "key", key, "error", err)
	}
}

// Invalidate removes a single rendered document from the cache.
func (hc *HTMLCache) Invalidate(ctx context.Context, key string) {
	if err := hc.client.Del(ctx, htmlKeyPrefix+key).Err(); err != nil {
		slog.Warn("html cache invalidate error", "key", key, "error", err)
	}
}
