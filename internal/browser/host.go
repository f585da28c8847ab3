// Package browser implements the tab host on top of a Playwright-driven
// Chromium: each page is a tab, and page lifecycle callbacks become host
// events on the bus.
package browser

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/tabpile/internal/errors"
	"github.com/p-blackswan/tabpile/internal/event"
	"github.com/p-blackswan/tabpile/internal/tabs"
)

// audibleScript reports whether any media element is producing sound.
const audibleScript = `() => Array.from(document.querySelectorAll('audio, video'))
	.some(m => !m.paused && !m.muted && m.volume > 0)`

// page is the part of playwright.Page the host needs.
type page interface {
	URL() string
	Title() (string, error)
	Close(options ...playwright.PageCloseOptions) error
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
}

type entry struct {
	tab  tabs.Tab
	page page
}

// Options configures the browser.
type Options struct {
	Headless  bool
	StartURLs []string
	Install   bool // download browsers before launch
}

// Host is a tabs.Host and an event.Source.
type Host struct {
	opts   Options
	clock  clockwork.Clock
	logger zerolog.Logger

	mu      sync.Mutex
	nextID  int
	entries map[int]*entry
	active  int
	closing bool
	ctx     context.Context
	out     chan<- event.Event

	// Events that found the bus full, delivered in order by one flusher.
	emitMu   sync.Mutex
	pending  []event.Event
	flushing bool

	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
}

// NewHost creates a Host. Start launches the browser.
func NewHost(opts Options, clock clockwork.Clock, logger zerolog.Logger) *Host {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Host{
		opts:    opts,
		clock:   clock,
		logger:  logger.With().Str("component", "browser").Logger(),
		entries: make(map[int]*entry),
		ctx:     context.Background(),
	}
}

func (h *Host) Name() string { return event.SourceHost }

// Subscribe starts delivering tab events to out.
func (h *Host) Subscribe(ctx context.Context, out chan<- event.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.out != nil {
		return fmt.Errorf("browser host already subscribed")
	}
	h.ctx = ctx
	h.out = out
	return nil
}

// Query returns fresh snapshots of the tabs matching q.
func (h *Host) Query(ctx context.Context, q tabs.Query) ([]tabs.Tab, error) {
	h.mu.Lock()
	ids := make([]int, 0, len(h.entries))
	for id := range h.entries {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	sort.Ints(ids)

	out := make([]tabs.Tab, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tab, err := h.snapshot(id)
		if err != nil {
			// Closed while we were iterating.
			continue
		}
		if q.Matches(tab) {
			out = append(out, tab)
		}
	}
	return out, nil
}

// Get returns a fresh snapshot of tab id.
func (h *Host) Get(ctx context.Context, id int) (tabs.Tab, error) {
	if err := ctx.Err(); err != nil {
		return tabs.Tab{}, err
	}
	return h.snapshot(id)
}

// Close closes the page behind tab id. The removal event follows from the
// page close callback.
func (h *Host) Close(_ context.Context, id int) error {
	h.mu.Lock()
	e, ok := h.entries[id]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("tab %d: %w", id, perrors.ErrNotFound)
	}
	if err := e.page.Close(); err != nil {
		return fmt.Errorf("close tab %d: %w", id, err)
	}
	return nil
}

// Activate makes tab id the active tab.
func (h *Host) Activate(id int) error {
	h.mu.Lock()
	if _, ok := h.entries[id]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("tab %d: %w", id, perrors.ErrNotFound)
	}
	h.activateLocked(id)
	h.mu.Unlock()

	h.emit(event.Activated(id))
	return nil
}

// snapshot refreshes URL, title and audibility outside the lock since each
// is a round trip to the browser.
func (h *Host) snapshot(id int) (tabs.Tab, error) {
	h.mu.Lock()
	e, ok := h.entries[id]
	if !ok {
		h.mu.Unlock()
		return tabs.Tab{}, fmt.Errorf("tab %d: %w", id, perrors.ErrNotFound)
	}
	tab, p := e.tab, e.page
	h.mu.Unlock()

	tab.URL = p.URL()
	if title, err := p.Title(); err == nil {
		tab.Title = title
	}
	if v, err := p.Evaluate(audibleScript); err == nil {
		audible, _ := v.(bool)
		tab.Audible = audible
	} else {
		h.logger.Debug().Err(err).Int("tab", id).Msg("audible probe failed")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.entries[id]; ok {
		cur.tab.URL, cur.tab.Title, cur.tab.Audible = tab.URL, tab.Title, tab.Audible
		tab.Active = cur.tab.Active
		tab.LastAccessed = cur.tab.LastAccessed
	}
	return tab, nil
}

// track registers a new page as the active tab and returns its ID.
func (h *Host) track(p page) int {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.entries[id] = &entry{
		page: p,
		tab: tabs.Tab{
			ID:           id,
			WindowID:     1,
			URL:          p.URL(),
			LastAccessed: h.clock.Now().UnixMilli(),
		},
	}
	h.activateLocked(id)
	h.mu.Unlock()

	h.logger.Debug().Int("tab", id).Str("url", p.URL()).Msg("tab opened")
	h.emit(event.Activated(id))
	return id
}

// opened reports whether a tracked tab already shows url.
func (h *Host) opened(url string) bool {
	key := tabs.Key(url)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entries {
		if tabs.Key(e.tab.URL) == key {
			return true
		}
	}
	return false
}

// navigated records a main-frame navigation of tab id.
func (h *Host) navigated(id int) {
	tab, err := h.snapshot(id)
	if err != nil {
		return
	}
	h.emit(event.Updated(tab, tabs.ChangeInfo{URL: tab.URL}))
}

// untrack forgets tab id after its page closed.
func (h *Host) untrack(id int) {
	h.mu.Lock()
	e, ok := h.entries[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.entries, id)
	closing := h.closing
	successor := 0
	if h.active == id {
		h.active = 0
		if !closing {
			successor = h.mostRecentLocked()
			if successor != 0 {
				h.activateLocked(successor)
			}
		}
	}
	tab := e.tab
	h.mu.Unlock()

	h.logger.Debug().Int("tab", id).Bool("window_closing", closing).Msg("tab closed")
	h.emit(event.Removed(tab, tabs.RemoveInfo{WindowClosing: closing}))
	if successor != 0 {
		h.emit(event.Activated(successor))
	}
}

// mostRecentLocked returns the most recently accessed tab, or 0 when none
// is left.
func (h *Host) mostRecentLocked() int {
	best := 0
	var bestAt int64
	for id, e := range h.entries {
		at := e.tab.LastAccessed
		if best == 0 || at > bestAt || (at == bestAt && id > best) {
			best, bestAt = id, at
		}
	}
	return best
}

func (h *Host) activateLocked(id int) {
	now := h.clock.Now().UnixMilli()
	if prev, ok := h.entries[h.active]; ok && h.active != id {
		prev.tab.Active = false
		prev.tab.LastAccessed = now
	}
	cur := h.entries[id]
	cur.tab.Active = true
	cur.tab.LastAccessed = now
	h.active = id
}

// emit sends ev to the subscriber without blocking playwright's
// dispatcher. When the bus is full, ev and every later event are queued and
// delivered in order by a single flusher goroutine.
func (h *Host) emit(ev event.Event) {
	h.mu.Lock()
	out, ctx := h.out, h.ctx
	h.mu.Unlock()
	if out == nil {
		return
	}

	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	if !h.flushing {
		select {
		case out <- ev:
			return
		default:
		}
		h.flushing = true
		go h.flush(ctx, out)
		h.logger.Warn().Str("type", ev.Type).Int("tab", ev.TabID).Msg("event bus full, queueing")
	}
	h.pending = append(h.pending, ev)
}

// flush drains pending into out until the queue is empty or ctx ends.
func (h *Host) flush(ctx context.Context, out chan<- event.Event) {
	for {
		h.emitMu.Lock()
		if len(h.pending) == 0 {
			h.flushing = false
			h.emitMu.Unlock()
			return
		}
		ev := h.pending[0]
		h.pending = h.pending[1:]
		h.emitMu.Unlock()

		select {
		case out <- ev:
		case <-ctx.Done():
			h.emitMu.Lock()
			h.pending = nil
			h.flushing = false
			h.emitMu.Unlock()
			return
		}
	}
}
