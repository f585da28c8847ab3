package browser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/playwright-community/playwright-go"
)

// Start launches Chromium, hooks page lifecycle callbacks and opens the
// start URLs. A second call after a failure reuses the running browser and
// skips start URLs that are already open.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	bctx := h.bctx
	h.mu.Unlock()

	if bctx == nil {
		var err error
		if bctx, err = h.launch(); err != nil {
			return err
		}
		bctx.OnPage(h.watch)
	}

	for _, url := range h.opts.StartURLs {
		if h.opened(url) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := bctx.NewPage()
		if err != nil {
			return fmt.Errorf("open page: %w", err)
		}
		if _, err := p.Goto(url); err != nil {
			h.logger.Warn().Err(err).Str("url", url).Msg("start url failed to load")
		}
	}

	h.logger.Info().Bool("headless", h.opts.Headless).Int("start_urls", len(h.opts.StartURLs)).Msg("browser started")
	return nil
}

// launch runs the playwright driver and opens a Chromium context.
func (h *Host) launch() (playwright.BrowserContext, error) {
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if h.opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(h.opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext()
	if err != nil {
		browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	h.mu.Lock()
	h.pw, h.browser, h.bctx = pw, browser, bctx
	h.mu.Unlock()
	return bctx, nil
}

// watch tracks a new page and wires its callbacks.
func (h *Host) watch(p playwright.Page) {
	id := h.track(p)

	p.OnFrameNavigated(func(f playwright.Frame) {
		if f == p.MainFrame() {
			h.navigated(id)
		}
	})
	p.OnClose(func(playwright.Page) {
		h.untrack(id)
	})
}

// Ping reports whether the browser is still connected.
func (h *Host) Ping(context.Context) error {
	h.mu.Lock()
	b := h.browser
	h.mu.Unlock()
	if b == nil || !b.IsConnected() {
		return errors.New("browser not connected")
	}
	return nil
}

// Stop closes every tab as part of a window close and shuts playwright
// down. Records of tabs closed this way are kept.
func (h *Host) Stop() error {
	h.mu.Lock()
	h.closing = true
	pw, browser, bctx := h.pw, h.browser, h.bctx
	h.mu.Unlock()

	var errs []error
	if bctx != nil {
		errs = append(errs, bctx.Close())
	}
	if browser != nil {
		errs = append(errs, browser.Close())
	}
	if pw != nil {
		if err := pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}
	h.logger.Info().Msg("browser stopped")
	return errors.Join(errs...)
}
