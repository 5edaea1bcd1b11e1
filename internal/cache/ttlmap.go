// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package cache provides the in-memory TTL caches used by the template
// and render layers (L1) and the optional Valkey-backed rendered-output
// cache (L2).
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// entry wraps a cached value with its insertion time and lifetime.
// An entry is logically absent once now-cachedAt exceeds ttl; absence
// triggers a reload by the caller, never an error.
type entry[V any] struct {
	value    V
	cachedAt time.Time
	ttl      time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.cachedAt) > e.ttl
}

// TTLMap is a concurrency-safe map with per-entry TTL, a hard entry
// count cap with insertion-order eviction, and a periodic sweep for
// expired entries. A defaultTTL of zero means entries never expire
// (used for compiled templates, which live for the process lifetime).
type TTLMap[K comparable, V any] struct {
	name       string
	defaultTTL time.Duration
	maxEntries int

	mu      sync.RWMutex
	entries map[K]entry[V]
	order   []K // insertion order, oldest first

	// now is swapped out by tests to control expiry.
	now func() time.Time
}

// NewTTLMap creates an empty cache. name is used in log lines only.
// maxEntries <= 0 disables the count cap.
func NewTTLMap[K comparable, V any](name string, defaultTTL time.Duration, maxEntries int) *TTLMap[K, V] {
	return &TTLMap[K, V]{
		name:       name,
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		entries:    make(map[K]entry[V]),
		now:        time.Now,
	}
}

// Get returns the cached value for key. Expired entries are treated as
// absent and removed lazily.
func (m *TTLMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	now := m.now()
	m.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(now) {
		m.mu.Lock()
		// Re-check under the write lock: another goroutine may have
		// replaced the entry since we released the read lock.
		if cur, ok := m.entries[key]; ok && cur.expired(m.now()) {
			delete(m.entries, key)
			m.removeFromOrder(key)
		}
		m.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key with the cache's default TTL.
func (m *TTLMap[K, V]) Put(key K, value V) {
	m.PutTTL(key, value, m.defaultTTL)
}

// PutTTL stores value under key with an explicit TTL. A ttl of zero
// means the entry never expires. The whole entry is replaced atomically,
// so a racing Get sees either the old or the new value, never a mix.
func (m *TTLMap[K, V]) PutTTL(key K, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		m.order = append(m.order, key)
	}
	m.entries[key] = entry[V]{value: value, cachedAt: m.now(), ttl: ttl}
	m.evictOverCap()
}

// Delete removes key immediately, bypassing TTL.
func (m *TTLMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	m.removeFromOrder(key)
}

// Len returns the number of live entries, including not-yet-swept
// expired ones.
func (m *TTLMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep removes all expired entries. Called periodically by the sweeper
// goroutine; also safe to call directly.
func (m *TTLMap[K, V]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	m.compactOrder()
	if removed > 0 {
		slog.Debug("cache sweep", "cache", m.name, "removed", removed, "remaining", len(m.entries))
	}
	return removed
}

// StartSweeper launches a background goroutine that sweeps expired
// entries every interval until ctx is cancelled. The goroutine holds no
// resources of its own, so cancelling ctx is the only shutdown step.
func (m *TTLMap[K, V]) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// evictOverCap drops the oldest entries until the map fits the cap.
// Insertion-order eviction is deliberate: recency tracking is not worth
// the bookkeeping for caches this small. Must be called with m.mu held.
func (m *TTLMap[K, V]) evictOverCap() {
	if m.maxEntries <= 0 {
		return
	}
	for len(m.entries) > m.maxEntries && len(m.order) > 0 {
		oldest := m.order[0]
		m.order = m.order[1:]
		if _, ok := m.entries[oldest]; ok {
			delete(m.entries, oldest)
			slog.Debug("cache evicted oldest entry", "cache", m.name, "size", len(m.entries))
		}
	}
}

// removeFromOrder drops key's slot from the insertion order. Every
// removal path must call this: a stale slot would later pair with a
// re-inserted entry and make eviction drop the fresh value as if it
// were oldest. Must be called with m.mu held.
func (m *TTLMap[K, V]) removeFromOrder(key K) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// compactOrder drops order slots whose keys are no longer present.
// Must be called with m.mu held.
func (m *TTLMap[K, V]) compactOrder() {
	if len(m.order) == len(m.entries) {
		return
	}
	kept := m.order[:0]
	for _, k := range m.order {
		if _, ok := m.entries[k]; ok {
			kept = append(kept, k)
		}
	}
	m.order = kept
}
