package tracker

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/p-blackswan/tabpile/internal/errors"
	"github.com/p-blackswan/tabpile/internal/event"
	"github.com/p-blackswan/tabpile/internal/tabs"
)

// Dispatch routes one event to its tracker operation.
func (t *Tracker) Dispatch(ctx context.Context, ev event.Event) error {
	t.metrics.RecordEvent(ev.Source, ev.Type)

	switch ev.Type {
	case event.TypeActivated:
		tab, err := t.tabFor(ctx, ev)
		if err != nil {
			return err
		}
		return t.OnActivated(ctx, tab)

	case event.TypeUpdated:
		tab, err := t.tabFor(ctx, ev)
		if err != nil {
			return err
		}
		return t.OnUpdated(ctx, tab, ev.Changed)

	case event.TypeRemoved:
		// The host no longer knows a removed tab, so the event must carry it.
		if ev.Tab == nil {
			return fmt.Errorf("removed event for tab %d has no snapshot: %w", ev.TabID, perrors.ErrInvalidInput)
		}
		return t.OnRemoved(ctx, *ev.Tab, ev.Removed)

	case event.TypeClicked:
		tab, err := t.tabFor(ctx, ev)
		if err != nil {
			return err
		}
		_, err = t.ToggleOverride(ctx, tab)
		return err

	case event.TypeFired:
		if ev.Name != t.cfg.TimerName {
			t.logger.Debug().Str("timer", ev.Name).Msg("ignoring unknown timer")
			return nil
		}
		_, err := t.Sweep(ctx)
		return err

	default:
		t.logger.Debug().Str("type", ev.Type).Str("source", ev.Source).Msg("ignoring unknown event")
		return nil
	}
}

// Run dispatches events one at a time until ctx is cancelled or events is
// closed. Dispatch errors are logged and never stop the loop.
func (t *Tracker) Run(ctx context.Context, events <-chan event.Event) error {
	t.logger.Info().Msg("tracker started")
	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("tracker stopped")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			err := t.Dispatch(ctx, ev)
			switch {
			case err == nil:
			case errors.Is(err, perrors.ErrSweepInProgress):
				t.logger.Info().Str("event", ev.ID).Msg("sweep in progress, firing dropped")
			default:
				t.logger.Error().Err(err).
					Str("event", ev.ID).
					Str("type", ev.Type).
					Int("tab", ev.TabID).
					Msg("event handling failed")
			}
		}
	}
}

func (t *Tracker) tabFor(ctx context.Context, ev event.Event) (tabs.Tab, error) {
	if ev.Tab != nil {
		return *ev.Tab, nil
	}
	tab, err := t.host.Get(ctx, ev.TabID)
	if err != nil {
		return tabs.Tab{}, perrors.Wrap(perrors.Host, "get", err)
	}
	return tab, nil
}
