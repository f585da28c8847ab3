package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/tabpile/internal/affordance"
	perrors "github.com/p-blackswan/tabpile/internal/errors"
	"github.com/p-blackswan/tabpile/internal/event"
	"github.com/p-blackswan/tabpile/internal/record"
	"github.com/p-blackswan/tabpile/internal/tabs"
	"github.com/p-blackswan/tabpile/pkg/kvstore"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// mockHost is an in-memory tab host.
type mockHost struct {
	mu       sync.Mutex
	tabs     map[int]tabs.Tab
	fresh    map[int]tabs.Tab // overrides Get results
	closed   []int
	queryErr error
	closeErr error
	// queryGate, when set, blocks Query until it is closed.
	queryGate chan struct{}
	queried   chan struct{}
}

func newMockHost(list ...tabs.Tab) *mockHost {
	h := &mockHost{tabs: make(map[int]tabs.Tab), fresh: make(map[int]tabs.Tab)}
	for _, tab := range list {
		h.tabs[tab.ID] = tab
	}
	return h
}

func (h *mockHost) Query(_ context.Context, q tabs.Query) ([]tabs.Tab, error) {
	if h.queried != nil {
		h.queried <- struct{}{}
	}
	if h.queryGate != nil {
		<-h.queryGate
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.queryErr != nil {
		return nil, h.queryErr
	}
	var out []tabs.Tab
	for _, tab := range h.tabs {
		if q.Matches(tab) {
			out = append(out, tab)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (h *mockHost) Get(_ context.Context, id int) (tabs.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if tab, ok := h.fresh[id]; ok {
		return tab, nil
	}
	tab, ok := h.tabs[id]
	if !ok {
		return tabs.Tab{}, fmt.Errorf("tab %d: %w", id, perrors.ErrNotFound)
	}
	return tab, nil
}

func (h *mockHost) Close(_ context.Context, id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closeErr != nil {
		return h.closeErr
	}
	delete(h.tabs, id)
	h.closed = append(h.closed, id)
	return nil
}

func (h *mockHost) Closed() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.closed...)
}

// mockBookmarks records folders and entries.
type mockBookmarks struct {
	mu             sync.Mutex
	items          []tabs.Bookmark
	searchErr      error
	createEntryErr error
	folderCreates  int
	nextID         int
}

func (b *mockBookmarks) Search(_ context.Context, title string) ([]tabs.Bookmark, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.searchErr != nil {
		return nil, b.searchErr
	}
	var out []tabs.Bookmark
	for _, bm := range b.items {
		if bm.Title == title {
			out = append(out, bm)
		}
	}
	return out, nil
}

func (b *mockBookmarks) CreateFolder(_ context.Context, title string) (tabs.Bookmark, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.folderCreates++
	b.nextID++
	bm := tabs.Bookmark{ID: fmt.Sprintf("f%d", b.nextID), Title: title, Folder: true}
	b.items = append(b.items, bm)
	return bm, nil
}

func (b *mockBookmarks) CreateEntry(_ context.Context, e tabs.Entry) (tabs.Bookmark, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createEntryErr != nil {
		return tabs.Bookmark{}, b.createEntryErr
	}
	b.nextID++
	bm := tabs.Bookmark{ID: fmt.Sprintf("e%d", b.nextID), Title: e.Title, URL: e.URL, ParentID: e.ParentID}
	b.items = append(b.items, bm)
	return bm, nil
}

func (b *mockBookmarks) Entries() []tabs.Bookmark {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []tabs.Bookmark
	for _, bm := range b.items {
		if !bm.Folder {
			out = append(out, bm)
		}
	}
	return out
}

// mockTimer records schedule calls.
type mockTimer struct {
	mu        sync.Mutex
	scheduled map[string]time.Duration
	cleared   []string
	calls     []string
}

func newMockTimer() *mockTimer {
	return &mockTimer{scheduled: make(map[string]time.Duration)}
}

func (m *mockTimer) Schedule(name string, period time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled[name] = period
	m.calls = append(m.calls, "schedule:"+name)
	return nil
}

func (m *mockTimer) Clear(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "clear:"+name)
	_, ok := m.scheduled[name]
	delete(m.scheduled, name)
	if ok {
		m.cleared = append(m.cleared, name)
	}
	return ok
}

type testEnv struct {
	tr        *Tracker
	host      *mockHost
	bookmarks *mockBookmarks
	timer     *mockTimer
	controls  *affordance.Registry
	records   *record.Adapter
	clock     *clockwork.FakeClock
}

func newTestEnv(t *testing.T, list ...tabs.Tab) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	env := &testEnv{
		host:      newMockHost(list...),
		bookmarks: &mockBookmarks{},
		timer:     newMockTimer(),
		controls:  affordance.NewRegistry(event.NewBus(8)),
		records:   record.NewAdapter(kvstore.NewMemoryStore(), clock, zerolog.Nop()),
		clock:     clock,
	}
	env.tr = New(DefaultConfig(), Deps{
		Host:       env.host,
		Records:    env.records,
		Bookmarks:  env.bookmarks,
		Timer:      env.timer,
		Affordance: env.controls,
		Clock:      clock,
	}, zerolog.Nop())
	return env
}

// ms converts a time to Unix milliseconds.
func ms(at time.Time) int64 { return at.UnixMilli() }
