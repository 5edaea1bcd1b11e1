// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package engine owns the single long-lived headless Chromium process
// that rasterizes document HTML to PDF. The process is launched lazily,
// shared by concurrent render sessions, and recycled when a throttled
// memory check finds it idle and over the configured threshold. It is
// never destroyed while a session is open.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRenderFailed is the only error callers see for launch, session,
// content, or rasterize failures. The underlying cause is logged; this
// component never retries internally — retry, if any, belongs to the
// caller.
var ErrRenderFailed = errors.New("rendering failed")

// Process is a running rendering engine. Exactly one live instance
// exists per pool at any time.
type Process interface {
	// NewSession opens a render session (a browser tab).
	NewSession(ctx context.Context) (Session, error)
	// Close terminates the process. Close errors are swallowed by the
	// pool; a dying process is replaced on next demand either way.
	Close() error
}

// Session is one in-flight HTML-to-PDF render.
type Session interface {
	Render(ctx context.Context, html string) ([]byte, error)
	Close() error
}

// Launcher starts a new engine process. Implemented by ChromeLauncher;
// faked in tests.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// MemoryProbe reports the engine process's resident memory in bytes.
type MemoryProbe func() (uint64, error)

// Config holds the pool tunables.
type Config struct {
	// MemoryThreshold is the resident-set size above which an idle
	// process is recycled. Zero disables recycling.
	MemoryThreshold uint64

	// CheckInterval throttles memory checks: the probe runs at most
	// once per interval regardless of call rate.
	CheckInterval time.Duration
}

// Pool manages the engine process lifecycle and the openSessions count
// that gates recycling.
type Pool struct {
	cfg      Config
	launcher Launcher
	probe    MemoryProbe

	mu           sync.Mutex
	proc         Process
	openSessions int
	lastCheck    time.Time

	now func() time.Time
}

// NewPool creates a pool. probe may be nil, which disables recycling.
func NewPool(cfg Config, launcher Launcher, probe MemoryProbe) *Pool {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	return &Pool{
		cfg:      cfg,
		launcher: launcher,
		probe:    probe,
		now:      time.Now,
	}
}

// Start launches the periodic memory check. The goroutine stops when
// ctx is cancelled and does not keep the process alive on its own.
func (p *Pool) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.checkMemory()
			}
		}
	}()
}

// RenderPDF rasterizes html to PDF bytes using the pooled process.
// Session cleanup runs on every path, success or failure, so a stuck or
// cancelled render can never leak an open session and permanently block
// recycling.
func (p *Pool) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	proc, err := p.acquire(ctx)
	if err != nil {
		slog.Error("engine launch failed", "error", err)
		return nil, ErrRenderFailed
	}
	defer p.release()

	sess, err := proc.NewSession(ctx)
	if err != nil {
		slog.Error("engine session open failed", "error", err)
		return nil, ErrRenderFailed
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			slog.Debug("engine session close error", "error", cerr)
		}
	}()

	pdf, err := sess.Render(ctx, html)
	if err != nil {
		slog.Error("engine render failed", "error", err)
		return nil, ErrRenderFailed
	}
	return pdf, nil
}

// Close shuts the live process down. Called on graceful shutdown; close
// errors are swallowed.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked("shutdown")
}

// OpenSessions returns the number of in-flight render sessions.
func (p *Pool) OpenSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openSessions
}

// acquire returns the live process, launching one if needed, and counts
// the caller as an open session. A throttled memory check runs first so
// an over-threshold idle process is replaced before taking new work.
func (p *Pool) acquire(ctx context.Context) (Process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.maybeRecycleLocked()

	if p.proc == nil {
		proc, err := p.launcher.Launch(ctx)
		if err != nil {
			return nil, err
		}
		p.proc = proc
		slog.Info("engine process launched")
	}

	p.openSessions++
	return p.proc, nil
}

// release decrements the session count. Runs in a deferred block so it
// executes regardless of how the render ended.
func (p *Pool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openSessions--
	if p.openSessions < 0 {
		// Would indicate a release without acquire; clamp and complain.
		slog.Error("engine session count underflow")
		p.openSessions = 0
	}
}

// checkMemory runs one recycle check from the periodic timer.
func (p *Pool) checkMemory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeRecycleLocked()
}

// maybeRecycleLocked recycles the process when the throttle interval has
// elapsed, the process is idle, and resident memory is over threshold.
// If sessions are open at check time the check is deferred to the next
// interval — in-flight work is never interrupted. Must be called with
// p.mu held.
func (p *Pool) maybeRecycleLocked() {
	if p.proc == nil || p.probe == nil || p.cfg.MemoryThreshold == 0 {
		return
	}
	now := p.now()
	if now.Sub(p.lastCheck) < p.cfg.CheckInterval {
		return
	}
	p.lastCheck = now

	if p.openSessions > 0 {
		slog.Debug("engine memory check skipped, sessions open", "open_sessions", p.openSessions)
		return
	}

	rss, err := p.probe()
	if err != nil {
		slog.Warn("engine memory probe failed", "error", err)
		return
	}
	if rss <= p.cfg.MemoryThreshold {
		return
	}

	slog.Info("engine over memory threshold, recycling",
		"rss_bytes", rss, "threshold_bytes", p.cfg.MemoryThreshold)
	p.closeLocked("memory threshold")
}

// closeLocked terminates the live process, swallowing close errors.
// The next acquire launches a fresh one. Must be called with p.mu held.
func (p *Pool) closeLocked(reason string) {
	if p.proc == nil {
		return
	}
	if err := p.proc.Close(); err != nil {
		slog.Debug("engine process close error", "reason", reason, "error", err)
	}
	p.proc = nil
	slog.Info("engine process closed", "reason", reason)
}
