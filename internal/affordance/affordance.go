// Package affordance keeps the per-tab override control state that the
// management API renders, and turns clicks on it into events.
package affordance

import (
	"context"
	"fmt"
	"sort"
	"sync"

	perrors "github.com/p-blackswan/tabpile/internal/errors"
	"github.com/p-blackswan/tabpile/internal/event"
	"github.com/p-blackswan/tabpile/internal/tabs"
)

// Control is the rendered state of one tab's override control.
type Control struct {
	TabID   int       `json:"tab_id"`
	Visible bool      `json:"visible"`
	Icon    tabs.Icon `json:"icon"`
	Label   string    `json:"label"`
}

// Registry implements tabs.Affordance in memory.
type Registry struct {
	pub event.Publisher

	mu       sync.RWMutex
	controls map[int]*Control
}

// NewRegistry creates a Registry that publishes clicks to pub.
func NewRegistry(pub event.Publisher) *Registry {
	return &Registry{
		pub:      pub,
		controls: make(map[int]*Control),
	}
}

func (r *Registry) control(tabID int) *Control {
	c, ok := r.controls[tabID]
	if !ok {
		c = &Control{TabID: tabID, Icon: tabs.IconEnabled}
		r.controls[tabID] = c
	}
	return c
}

func (r *Registry) Show(_ context.Context, tabID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.control(tabID).Visible = true
	return nil
}

// Hide hides the control and forgets its state.
func (r *Registry) Hide(_ context.Context, tabID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controls, tabID)
	return nil
}

func (r *Registry) SetIcon(_ context.Context, tabID int, icon tabs.Icon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.control(tabID).Icon = icon
	return nil
}

func (r *Registry) SetLabel(_ context.Context, tabID int, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.control(tabID).Label = label
	return nil
}

// Get returns a copy of the control for tabID.
func (r *Registry) Get(tabID int) (Control, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controls[tabID]
	if !ok {
		return Control{}, false
	}
	return *c, true
}

// List returns the visible controls ordered by tab ID.
func (r *Registry) List() []Control {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Control, 0, len(r.controls))
	for _, c := range r.controls {
		if c.Visible {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
	return out
}

// Click delivers a click on the control of tabID. Hidden controls cannot
// be clicked.
func (r *Registry) Click(ctx context.Context, tabID int) error {
	c, ok := r.Get(tabID)
	if !ok || !c.Visible {
		return fmt.Errorf("tab %d has no visible control: %w", tabID, perrors.ErrNotFound)
	}
	if err := r.pub.Publish(ctx, event.Clicked(tabID)); err != nil {
		return perrors.Wrap(perrors.Affordance, "click", err)
	}
	return nil
}
