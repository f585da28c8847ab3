package tracker

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/p-blackswan/tabpile/internal/errors"
	"github.com/p-blackswan/tabpile/internal/tabs"
)

// Setup prepares the tracker: it clears and re-arms the sweep timer,
// resolves the archive folder, and makes sure every open non-private tab on
// a supported scheme has a record and a correct control. Failures are
// collected so one bad tab does not stop the rest.
func (t *Tracker) Setup(ctx context.Context) error {
	var errs []error

	if t.timer.Clear(t.cfg.TimerName) {
		t.logger.Debug().Str("timer", t.cfg.TimerName).Msg("cleared previous timer")
	}

	if _, err := t.resolveDestination(ctx); err != nil {
		errs = append(errs, err)
	}

	open, err := t.host.Query(ctx, tabs.Query{})
	if err != nil {
		errs = append(errs, perrors.Wrap(perrors.Host, "query", err))
	}

	created := 0
	for _, tab := range open {
		if tab.Incognito {
			continue
		}
		if !t.cfg.Schemes.Supports(tab.URL) {
			t.logger.Debug().Int("tab", tab.ID).Str("url", tab.URL).Msg("unsupported scheme")
			continue
		}

		rec, isNew, err := t.records.Ensure(ctx, tab.Key())
		if err != nil {
			errs = append(errs, fmt.Errorf("ensure tab %d: %w", tab.ID, err))
			continue
		}
		if isNew {
			created++
		}
		if err := t.render(ctx, tab.ID, rec); err != nil {
			errs = append(errs, fmt.Errorf("render tab %d: %w", tab.ID, err))
		}
	}

	if err := t.timer.Schedule(t.cfg.TimerName, t.cfg.SweepPeriod); err != nil {
		errs = append(errs, perrors.Wrap(perrors.Timer, "schedule", err))
	}

	t.logger.Info().
		Int("tabs", len(open)).
		Int("records_created", created).
		Str("timer", t.cfg.TimerName).
		Dur("period", t.cfg.SweepPeriod).
		Msg("setup complete")

	return errors.Join(errs...)
}

// destination returns the resolved folder, resolving it lazily if setup
// could not.
func (t *Tracker) destination(ctx context.Context) (Destination, error) {
	if d, ok := t.Destination(); ok {
		return d, nil
	}
	d, err := t.resolveDestination(ctx)
	if err != nil {
		return Destination{}, fmt.Errorf("%w: %w", perrors.ErrNotReady, err)
	}
	return d, nil
}

// resolveDestination finds the archive folder by title or creates it.
func (t *Tracker) resolveDestination(ctx context.Context) (Destination, error) {
	t.destMu.Lock()
	defer t.destMu.Unlock()

	if t.dest != nil {
		return *t.dest, nil
	}

	found, err := t.bookmarks.Search(ctx, t.cfg.FolderName)
	if err != nil {
		return Destination{}, perrors.Wrap(perrors.Bookmarks, "search", err)
	}

	var folder *tabs.Bookmark
	for i := range found {
		if found[i].Folder {
			folder = &found[i]
			break
		}
	}

	if folder == nil {
		created, err := t.bookmarks.CreateFolder(ctx, t.cfg.FolderName)
		if err != nil {
			return Destination{}, perrors.Wrap(perrors.Bookmarks, "create_folder", err)
		}
		folder = &created
		t.logger.Info().Str("folder_id", created.ID).Str("title", created.Title).Msg("archive folder created")
	}

	t.dest = &Destination{FolderID: folder.ID, Title: folder.Title}
	return *t.dest, nil
}
