// Package tracker implements the tab lifecycle state machine: activity
// resets idle time, the override control exempts a resource, and a periodic
// sweep archives tabs idle for longer than the configured max age.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/tabpile/internal/errors"
	"github.com/p-blackswan/tabpile/internal/metrics"
	"github.com/p-blackswan/tabpile/internal/record"
	"github.com/p-blackswan/tabpile/internal/tabs"
)

// Override control labels. The label names the action a click performs.
const (
	LabelEnable  = "Enable Pile of Shame"
	LabelDisable = "Disable Pile of Shame"
)

// Config holds tracker settings.
type Config struct {
	FolderName  string        // archive folder title
	TimerName   string        // periodic sweep timer
	SweepPeriod time.Duration // timer period
	Schemes     tabs.SchemeSet
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		FolderName:  "Pile of Shame",
		TimerName:   "pos_alarm",
		SweepPeriod: time.Minute,
		Schemes:     tabs.SchemeSet(tabs.DefaultSchemes),
	}
}

// Deps are the collaborators the tracker drives.
type Deps struct {
	Host       tabs.Host
	Records    *record.Adapter
	Bookmarks  tabs.Bookmarks
	Timer      tabs.Timer
	Affordance tabs.Affordance
	Metrics    *metrics.Metrics
	Clock      clockwork.Clock
}

// Destination is the resolved archive folder. It is produced once by setup
// and read by every archive call.
type Destination struct {
	FolderID string `json:"folder_id"`
	Title    string `json:"title"`
}

// Tracker owns lifecycle state transitions.
type Tracker struct {
	cfg        Config
	host       tabs.Host
	records    *record.Adapter
	bookmarks  tabs.Bookmarks
	timer      tabs.Timer
	affordance tabs.Affordance
	metrics    *metrics.Metrics
	clock      clockwork.Clock
	logger     zerolog.Logger

	destMu sync.RWMutex
	dest   *Destination

	sweeping atomic.Bool
}

// New creates a Tracker. Zero config fields take DefaultConfig values.
func New(cfg Config, deps Deps, logger zerolog.Logger) *Tracker {
	def := DefaultConfig()
	if cfg.FolderName == "" {
		cfg.FolderName = def.FolderName
	}
	if cfg.TimerName == "" {
		cfg.TimerName = def.TimerName
	}
	if cfg.SweepPeriod <= 0 {
		cfg.SweepPeriod = def.SweepPeriod
	}
	if len(cfg.Schemes) == 0 {
		cfg.Schemes = def.Schemes
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	return &Tracker{
		cfg:        cfg,
		host:       deps.Host,
		records:    deps.Records,
		bookmarks:  deps.Bookmarks,
		timer:      deps.Timer,
		affordance: deps.Affordance,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		logger:     logger.With().Str("component", "tracker").Logger(),
	}
}

// Config returns the effective configuration.
func (t *Tracker) Config() Config { return t.cfg }

// Destination returns the resolved archive folder, if any.
func (t *Tracker) Destination() (Destination, bool) {
	t.destMu.RLock()
	defer t.destMu.RUnlock()
	if t.dest == nil {
		return Destination{}, false
	}
	return *t.dest, true
}

// OnActivated resets the idle clock of the tab's resource.
func (t *Tracker) OnActivated(ctx context.Context, tab tabs.Tab) error {
	if _, err := t.records.UpsertPartial(ctx, tab.Key(), record.Touch(t.clock.Now())); err != nil {
		return fmt.Errorf("activate tab %d: %w", tab.ID, err)
	}
	t.logger.Debug().Int("tab", tab.ID).Str("key", tab.Key()).Msg("idle clock reset on activation")
	return nil
}

// OnUpdated resets the idle clock when the tab navigated and shows the
// override control for eligible tabs. Updates without a URL change are
// ignored.
func (t *Tracker) OnUpdated(ctx context.Context, tab tabs.Tab, changed tabs.ChangeInfo) error {
	if changed.URL == "" {
		return nil
	}

	rec, err := t.records.UpsertPartial(ctx, tab.Key(), record.Touch(t.clock.Now()))
	if err != nil {
		return fmt.Errorf("update tab %d: %w", tab.ID, err)
	}
	t.logger.Debug().Int("tab", tab.ID).Str("key", tab.Key()).Msg("idle clock reset on navigation")

	if tab.Exempt() || !t.cfg.Schemes.Supports(tab.URL) {
		return nil
	}
	return t.render(ctx, tab.ID, rec)
}

// OnRemoved hides the tab's control and, unless the whole window is
// closing, forgets the resource.
func (t *Tracker) OnRemoved(ctx context.Context, tab tabs.Tab, info tabs.RemoveInfo) error {
	var errs []error
	if err := t.affordance.Hide(ctx, tab.ID); err != nil {
		errs = append(errs, perrors.Wrap(perrors.Affordance, "hide", err))
	}

	if info.WindowClosing {
		t.logger.Debug().Int("tab", tab.ID).Msg("window closing, record kept")
		return errors.Join(errs...)
	}

	if err := t.records.Remove(ctx, tab.Key()); err != nil {
		errs = append(errs, err)
	} else {
		t.logger.Debug().Int("tab", tab.ID).Str("key", tab.Key()).Msg("record removed")
	}
	return errors.Join(errs...)
}

// ToggleOverride flips the disabled flag of the tab's resource and
// refreshes its control.
func (t *Tracker) ToggleOverride(ctx context.Context, tab tabs.Tab) (record.Record, error) {
	rec, err := t.records.Toggle(ctx, tab.Key())
	if err != nil {
		return record.Record{}, fmt.Errorf("toggle tab %d: %w", tab.ID, err)
	}
	t.metrics.RecordToggle(rec.Disabled)
	t.logger.Info().Int("tab", tab.ID).Str("key", tab.Key()).Bool("disabled", rec.Disabled).Msg("override toggled")

	return rec, t.render(ctx, tab.ID, rec)
}

// IconFor returns the control icon and label for a record.
func IconFor(rec record.Record) (tabs.Icon, string) {
	if rec.Disabled {
		return tabs.IconDisabled, LabelEnable
	}
	return tabs.IconEnabled, LabelDisable
}

// render shows the control of tabID with the icon and label for rec.
func (t *Tracker) render(ctx context.Context, tabID int, rec record.Record) error {
	icon, label := IconFor(rec)
	if err := t.affordance.Show(ctx, tabID); err != nil {
		return perrors.Wrap(perrors.Affordance, "show", err)
	}
	if err := t.affordance.SetIcon(ctx, tabID, icon); err != nil {
		return perrors.Wrap(perrors.Affordance, "set_icon", err)
	}
	if err := t.affordance.SetLabel(ctx, tabID, label); err != nil {
		return perrors.Wrap(perrors.Affordance, "set_label", err)
	}
	return nil
}
