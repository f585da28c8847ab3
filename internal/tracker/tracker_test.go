package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/tabpile/internal/record"
	"github.com/p-blackswan/tabpile/internal/tabs"
)

func idleTab(id int, url string) tabs.Tab {
	return tabs.Tab{ID: id, WindowID: 1, URL: url, Title: "Tab " + url, LastAccessed: ms(epoch)}
}

func TestOnActivated_ResetsIdleSince(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tab := idleTab(1, "https://example.com/a")

	require.NoError(t, env.tr.OnActivated(ctx, tab))
	rec, found, err := env.records.Get(ctx, tab.Key())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ms(epoch), rec.IdleSince)
	assert.False(t, rec.Disabled)
}

func TestMergeInvariant_ActivityKeepsDisabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tab := idleTab(1, "https://example.com/a")

	_, err := env.tr.ToggleOverride(ctx, tab)
	require.NoError(t, err)

	env.clock.Advance(5 * time.Minute)
	require.NoError(t, env.tr.OnActivated(ctx, tab))

	rec, _, err := env.records.Get(ctx, tab.Key())
	require.NoError(t, err)
	assert.True(t, rec.Disabled)
	assert.Equal(t, ms(epoch.Add(5*time.Minute)), rec.IdleSince)
}

func TestOnUpdated_IgnoresNonURLChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tab := idleTab(1, "https://example.com/a")

	require.NoError(t, env.tr.OnUpdated(ctx, tab, tabs.ChangeInfo{Title: "new"}))
	_, found, err := env.records.Get(ctx, tab.Key())
	require.NoError(t, err)
	assert.False(t, found)
	_, shown := env.controls.Get(tab.ID)
	assert.False(t, shown)
}

func TestOnUpdated_ShowsControlWithState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tab := idleTab(1, "https://example.com/a#top")

	_, err := env.records.UpsertPartial(ctx, tab.Key(), record.SetDisabled(true))
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	require.NoError(t, env.tr.OnUpdated(ctx, tab, tabs.ChangeInfo{URL: tab.URL}))

	rec, _, err := env.records.Get(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, ms(epoch.Add(time.Minute)), rec.IdleSince)
	assert.True(t, rec.Disabled)

	c, ok := env.controls.Get(tab.ID)
	require.True(t, ok)
	assert.True(t, c.Visible)
	assert.Equal(t, tabs.IconDisabled, c.Icon)
	assert.Equal(t, LabelEnable, c.Label)
}

func TestOnUpdated_NoControlForExemptOrUnsupported(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pinned := idleTab(1, "https://example.com/p")
	pinned.Pinned = true
	audible := idleTab(2, "https://example.com/m")
	audible.Audible = true
	private := idleTab(3, "https://example.com/i")
	private.Incognito = true
	blank := idleTab(4, "about:blank")

	for _, tab := range []tabs.Tab{pinned, audible, private, blank} {
		require.NoError(t, env.tr.OnUpdated(ctx, tab, tabs.ChangeInfo{URL: tab.URL}))
		_, shown := env.controls.Get(tab.ID)
		assert.False(t, shown, "tab %d", tab.ID)

		_, found, err := env.records.Get(ctx, tab.Key())
		require.NoError(t, err)
		assert.True(t, found, "idle clock still resets for tab %d", tab.ID)
	}
}

func TestOnRemoved_NormalCloseForgetsRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tab := idleTab(1, "https://example.com/a")

	require.NoError(t, env.tr.OnUpdated(ctx, tab, tabs.ChangeInfo{URL: tab.URL}))
	require.NoError(t, env.tr.OnRemoved(ctx, tab, tabs.RemoveInfo{}))

	_, found, err := env.records.Get(ctx, tab.Key())
	require.NoError(t, err)
	assert.False(t, found)
	_, shown := env.controls.Get(tab.ID)
	assert.False(t, shown)
}

func TestOnRemoved_WindowClosingKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tab := idleTab(1, "https://example.com/a")

	require.NoError(t, env.tr.OnUpdated(ctx, tab, tabs.ChangeInfo{URL: tab.URL}))
	require.NoError(t, env.tr.OnRemoved(ctx, tab, tabs.RemoveInfo{WindowClosing: true}))

	_, found, err := env.records.Get(ctx, tab.Key())
	require.NoError(t, err)
	assert.True(t, found)
	_, shown := env.controls.Get(tab.ID)
	assert.False(t, shown)
}

func TestToggleOverride_DoubleToggleRestores(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tab := idleTab(1, "https://example.com/a")

	rec, err := env.tr.ToggleOverride(ctx, tab)
	require.NoError(t, err)
	assert.True(t, rec.Disabled)
	c, _ := env.controls.Get(tab.ID)
	assert.Equal(t, tabs.IconDisabled, c.Icon)
	assert.Equal(t, LabelEnable, c.Label)

	rec, err = env.tr.ToggleOverride(ctx, tab)
	require.NoError(t, err)
	assert.False(t, rec.Disabled)
	c, _ = env.controls.Get(tab.ID)
	assert.Equal(t, tabs.IconEnabled, c.Icon)
	assert.Equal(t, LabelDisable, c.Label)

	stored, _, err := env.records.Get(ctx, tab.Key())
	require.NoError(t, err)
	assert.False(t, stored.Disabled)
	assert.Equal(t, ms(epoch), stored.IdleSince)
}

func TestIconFor(t *testing.T) {
	icon, label := IconFor(record.Record{})
	assert.Equal(t, tabs.IconEnabled, icon)
	assert.Equal(t, "Disable Pile of Shame", label)

	icon, label = IconFor(record.Record{Disabled: true})
	assert.Equal(t, tabs.IconDisabled, icon)
	assert.Equal(t, "Enable Pile of Shame", label)
}

func TestNew_AppliesDefaults(t *testing.T) {
	env := newTestEnv(t)
	tr := New(Config{}, Deps{Records: env.records}, zerolog.Nop())
	cfg := tr.Config()
	assert.Equal(t, "Pile of Shame", cfg.FolderName)
	assert.Equal(t, "pos_alarm", cfg.TimerName)
	assert.Equal(t, time.Minute, cfg.SweepPeriod)
	assert.True(t, cfg.Schemes.Supports("https://example.com"))
	assert.False(t, cfg.Schemes.Supports("ftp://example.com"))
}
