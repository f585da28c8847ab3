package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	perrors "github.com/p-blackswan/tabpile/internal/errors"
	"github.com/p-blackswan/tabpile/internal/tabs"
)

// errNavigated marks a candidate whose URL changed between the sweep query
// and the archive re-check.
var errNavigated = errors.New("tab navigated since sweep started")

// SweepReport summarizes one sweep.
type SweepReport struct {
	Checked   int           `json:"checked"`
	Archived  int           `json:"archived"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Threshold time.Duration `json:"threshold"`
	Duration  time.Duration `json:"duration"`
}

// Sweep archives every idle, non-exempt, enabled tab older than the max age.
// Only one sweep runs at a time; a concurrent call returns
// ErrSweepInProgress. Per-tab failures are logged and counted without
// stopping the sweep.
func (t *Tracker) Sweep(ctx context.Context) (report SweepReport, err error) {
	if !t.sweeping.CompareAndSwap(false, true) {
		t.logger.Info().Msg("sweep already running, skipping")
		t.metrics.RecordSweep("skipped", 0, 0)
		return report, perrors.ErrSweepInProgress
	}
	defer t.sweeping.Store(false)

	start := t.clock.Now()
	result := "ok"
	defer func() {
		report.Duration = t.clock.Since(start)
		t.metrics.RecordSweep(result, report.Duration.Seconds(), report.Checked)
	}()

	dest, err := t.destination(ctx)
	if err != nil {
		result = "not_ready"
		t.logger.Warn().Err(err).Msg("sweep skipped, archive folder unavailable")
		return report, err
	}

	threshold, err := t.records.ThresholdDuration(ctx)
	if err != nil {
		result = "error"
		return report, fmt.Errorf("read max age: %w", err)
	}
	report.Threshold = threshold

	candidates, err := t.host.Query(ctx, tabs.Query{
		Active:  tabs.Bool(false),
		Audible: tabs.Bool(false),
		Pinned:  tabs.Bool(false),
	})
	if err != nil {
		result = "error"
		return report, perrors.Wrap(perrors.Host, "query", err)
	}

	now := t.clock.Now().UnixMilli()
	archived := make(map[int]bool, len(candidates))

	for _, tab := range candidates {
		if err := ctx.Err(); err != nil {
			result = "cancelled"
			return report, err
		}
		if archived[tab.ID] {
			continue
		}
		report.Checked++

		due, err := t.due(ctx, tab, now, threshold)
		if err != nil {
			report.Failed++
			t.logger.Error().Err(err).Int("tab", tab.ID).Msg("check failed")
			continue
		}
		if !due {
			report.Skipped++
			continue
		}

		switch err := t.archive(ctx, dest, tab); {
		case err == nil:
			archived[tab.ID] = true
			report.Archived++
		case errors.Is(err, perrors.ErrExempt), errors.Is(err, errNavigated):
			report.Skipped++
			t.logger.Debug().Err(err).Int("tab", tab.ID).Msg("archive skipped")
		default:
			report.Failed++
			t.logger.Error().Err(err).Int("tab", tab.ID).Str("url", tab.URL).Msg("archive failed")
		}
	}

	if report.Failed > 0 {
		result = "partial"
	}
	t.logger.Info().
		Int("checked", report.Checked).
		Int("archived", report.Archived).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("threshold", threshold).
		Msg("sweep complete")

	return report, nil
}

// due reports whether tab is old enough to archive.
func (t *Tracker) due(ctx context.Context, tab tabs.Tab, now int64, threshold time.Duration) (bool, error) {
	if tab.Exempt() {
		return false, nil
	}
	if !t.cfg.Schemes.Supports(tab.URL) {
		t.logger.Debug().Int("tab", tab.ID).Str("url", tab.URL).Msg("unsupported scheme")
		return false, nil
	}

	rec, _, err := t.records.Get(ctx, tab.Key())
	if err != nil {
		return false, err
	}
	if rec.Disabled {
		return false, nil
	}

	age := now - rec.IdleSinceOr(tab.LastAccessed)
	t.logger.Debug().Int("tab", tab.ID).Int64("age_ms", age).Msg("checked tab")
	return age > threshold.Milliseconds(), nil
}

// archive saves tab into the archive folder, then forgets its record and
// closes it. Nothing is removed or closed unless the entry was created.
func (t *Tracker) archive(ctx context.Context, dest Destination, tab tabs.Tab) error {
	fresh, err := t.host.Get(ctx, tab.ID)
	if err != nil {
		t.metrics.RecordArchiveFailure("refresh")
		return perrors.Wrap(perrors.Host, "get", err)
	}
	if fresh.Exempt() || fresh.Active {
		return perrors.ErrExempt
	}
	if fresh.Key() != tab.Key() {
		return errNavigated
	}

	entry, err := t.bookmarks.CreateEntry(ctx, tabs.Entry{
		Title:    fresh.Title,
		URL:      fresh.Key(),
		ParentID: dest.FolderID,
	})
	if err != nil {
		t.metrics.RecordArchiveFailure("create_entry")
		return perrors.Wrap(perrors.Bookmarks, "create_entry", err)
	}

	if err := t.records.Remove(ctx, fresh.Key()); err != nil {
		t.metrics.RecordArchiveFailure("remove_record")
		t.logger.Warn().Err(err).Str("key", fresh.Key()).Msg("archived but record not removed")
	}

	if err := t.host.Close(ctx, fresh.ID); err != nil {
		t.metrics.RecordArchiveFailure("close_tab")
		return perrors.Wrap(perrors.Host, "close", err)
	}

	t.metrics.RecordArchived()
	t.logger.Info().
		Int("tab", fresh.ID).
		Str("url", entry.URL).
		Str("entry_id", entry.ID).
		Msg("tab archived")
	return nil
}
