// Package tabs defines the tab model and the collaborator contracts the
// lifecycle tracker depends on: the tab host, the bookmark store, the
// periodic timer and the toggle affordance.
package tabs

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"time"
)

// DefaultSchemes are the URL schemes whose tabs can be archived.
var DefaultSchemes = []string{"http", "https"}

// Tab is a host-reported snapshot of an open tab.
type Tab struct {
	ID           int    `json:"id"`
	WindowID     int    `json:"window_id"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	LastAccessed int64  `json:"last_accessed"` // Unix ms
	Active       bool   `json:"active"`
	Pinned       bool   `json:"pinned"`
	Audible      bool   `json:"audible"`
	Incognito    bool   `json:"incognito"`
}

// Key returns the resource key of the tab.
func (t Tab) Key() string { return Key(t.URL) }

// Exempt reports whether the tab is permanently excluded from archiving and
// from showing an override control: private-browsing, pinned or audible.
func (t Tab) Exempt() bool {
	return t.Incognito || t.Pinned || t.Audible
}

// Key normalizes a URL into a resource key by dropping the fragment.
// Two fragment-addressed views of a resource share one lifecycle record.
func Key(rawURL string) string {
	key, _, _ := strings.Cut(rawURL, "#")
	return key
}

// SchemeSet decides which URLs are archivable.
type SchemeSet []string

// Supports reports whether rawURL parses and uses one of the schemes.
func (s SchemeSet) Supports(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return false
	}
	return slices.Contains(s, strings.ToLower(u.Scheme))
}

// ChangeInfo lists the fields that changed in an update event.
// Empty strings mean "unchanged".
type ChangeInfo struct {
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// RemoveInfo describes a tab removal.
type RemoveInfo struct {
	WindowClosing bool `json:"window_closing"`
}

// Query filters tabs. Nil fields match anything.
type Query struct {
	Active  *bool
	Audible *bool
	Pinned  *bool
}

// Matches reports whether t satisfies the query.
func (q Query) Matches(t Tab) bool {
	if q.Active != nil && *q.Active != t.Active {
		return false
	}
	if q.Audible != nil && *q.Audible != t.Audible {
		return false
	}
	if q.Pinned != nil && *q.Pinned != t.Pinned {
		return false
	}
	return true
}

// Bool returns a pointer to b, for building queries.
func Bool(b bool) *bool { return &b }

// Host is the windowing/tab host.
type Host interface {
	Query(ctx context.Context, q Query) ([]Tab, error)
	Get(ctx context.Context, id int) (Tab, error)
	Close(ctx context.Context, id int) error
}

// Bookmark is a folder or an archive entry in the bookmark store.
type Bookmark struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Folder    bool      `json:"folder"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is a request to create an archive entry.
type Entry struct {
	Title    string
	URL      string
	ParentID string
}

// Bookmarks is the bookmark/archive store.
type Bookmarks interface {
	Search(ctx context.Context, title string) ([]Bookmark, error)
	CreateFolder(ctx context.Context, title string) (Bookmark, error)
	CreateEntry(ctx context.Context, e Entry) (Bookmark, error)
}

// Timer schedules a recurring named trigger. Firings are delivered as
// events by the implementation.
type Timer interface {
	Schedule(name string, period time.Duration) error
	Clear(name string) bool
}

// Icon is the visual state of the override control.
type Icon string

const (
	IconEnabled  Icon = "icons/enabled.svg"
	IconDisabled Icon = "icons/disabled.svg"
)

// Affordance is the per-tab toggle control. Clicks are delivered as events
// by the implementation.
type Affordance interface {
	Show(ctx context.Context, tabID int) error
	Hide(ctx context.Context, tabID int) error
	SetIcon(ctx context.Context, tabID int, icon Icon) error
	SetLabel(ctx context.Context, tabID int, label string) error
}
