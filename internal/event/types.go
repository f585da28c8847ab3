// Package event defines the Event type, the Source interface and the
// in-process bus that carries host, timer and affordance events to the
// lifecycle tracker.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/p-blackswan/tabpile/internal/tabs"
)

// Source identifiers for well-known event sources.
const (
	SourceHost       = "host"
	SourceTimer      = "timer"
	SourceAffordance = "affordance"
	SourceMgmt       = "mgmt"
)

// Type identifiers for well-known event types.
const (
	TypeActivated = "activated"
	TypeUpdated   = "updated"
	TypeRemoved   = "removed"
	TypeFired     = "fired"
	TypeClicked   = "clicked"
)

// Event is one host, timer or affordance notification.
type Event struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// TabID is set for tab events. Tab carries the host's snapshot when the
	// source has one; otherwise the consumer looks the tab up.
	TabID   int             `json:"tab_id,omitempty"`
	Tab     *tabs.Tab       `json:"tab,omitempty"`
	Changed tabs.ChangeInfo `json:"changed,omitempty"`
	Removed tabs.RemoveInfo `json:"removed,omitempty"`

	// Name is the timer name for TypeFired.
	Name string `json:"name,omitempty"`
}

// Source is implemented by anything that can emit events.
type Source interface {
	// Name returns the source identifier (e.g. "timer").
	Name() string

	// Subscribe starts delivering events to out until ctx is cancelled.
	// Subscribe must be non-blocking; it should start a goroutine internally.
	Subscribe(ctx context.Context, out chan<- Event) error
}

// Publisher accepts single events, e.g. from HTTP handlers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

func newEvent(source, evType string) Event {
	return Event{
		ID:        uuid.New().String(),
		Source:    source,
		Type:      evType,
		Timestamp: time.Now().UTC(),
	}
}

// Activated reports that tabID became the active tab.
func Activated(tabID int) Event {
	ev := newEvent(SourceHost, TypeActivated)
	ev.TabID = tabID
	return ev
}

// Updated reports changed fields of tab.
func Updated(tab tabs.Tab, changed tabs.ChangeInfo) Event {
	ev := newEvent(SourceHost, TypeUpdated)
	ev.TabID = tab.ID
	ev.Tab = &tab
	ev.Changed = changed
	return ev
}

// Removed reports that tab was closed.
func Removed(tab tabs.Tab, info tabs.RemoveInfo) Event {
	ev := newEvent(SourceHost, TypeRemoved)
	ev.TabID = tab.ID
	ev.Tab = &tab
	ev.Removed = info
	return ev
}

// Fired reports a firing of the named timer.
func Fired(source, name string) Event {
	ev := newEvent(source, TypeFired)
	ev.Name = name
	return ev
}

// Clicked reports a click on the override control of tabID.
func Clicked(tabID int) Event {
	ev := newEvent(SourceAffordance, TypeClicked)
	ev.TabID = tabID
	return ev
}
