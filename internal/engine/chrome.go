// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// chrome.go implements the Process and Session interfaces on top of a
// headless Chromium driven over the DevTools protocol via chromedp.
// One Chromium process serves all sessions; each session is a tab.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeLauncher starts headless Chromium processes.
type ChromeLauncher struct {
	// ExecPath overrides the Chromium binary location. Empty means
	// chromedp's default lookup.
	ExecPath string
}

// Launch starts a Chromium process and verifies it responds before
// returning. The returned process owns the allocator and the root
// browser context; closing it terminates Chromium.
func (l *ChromeLauncher) Launch(ctx context.Context) (Process, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if path := strings.TrimSpace(l.ExecPath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}

	// The allocator must outlive the launching request, so it hangs off
	// the background context, not ctx.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	// The first context created from the allocator owns the browser
	// process; sessions are tabs created from it.
	rootCtx, rootCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(rootCtx, chromedp.Navigate("about:blank")); err != nil {
		rootCancel()
		allocCancel()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	return &chromeProcess{
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
		allocCancel: allocCancel,
	}, nil
}

type chromeProcess struct {
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	allocCancel context.CancelFunc
}

func (p *chromeProcess) NewSession(ctx context.Context) (Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(p.rootCtx)

	// Propagate caller cancellation into the tab so a timed-out render
	// still tears its tab down.
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				tabCancel()
			case <-tabCtx.Done():
			}
		}()
	}
	return &chromeSession{ctx: tabCtx, cancel: tabCancel}, nil
}

func (p *chromeProcess) Close() error {
	p.rootCancel()
	p.allocCancel()
	return nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Render loads html into the tab and prints it to PDF.
func (s *chromeSession) Render(ctx context.Context, html string) ([]byte, error) {
	var pdf []byte
	err := chromedp.Run(s.ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("frame tree: %w", err)
			}
			if err := page.SetDocumentContent(tree.Frame.ID, html).Do(ctx); err != nil {
				return fmt.Errorf("set content: %w", err)
			}
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("print to pdf: %w", err)
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}
