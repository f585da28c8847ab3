package affordance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/tabpile/internal/errors"
	"github.com/p-blackswan/tabpile/internal/event"
	"github.com/p-blackswan/tabpile/internal/tabs"
)

func TestRegistry_ShowSetHide(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(event.NewBus(1))

	require.NoError(t, r.Show(ctx, 4))
	require.NoError(t, r.SetIcon(ctx, 4, tabs.IconDisabled))
	require.NoError(t, r.SetLabel(ctx, 4, "Enable Pile of Shame"))

	c, ok := r.Get(4)
	require.True(t, ok)
	assert.True(t, c.Visible)
	assert.Equal(t, tabs.IconDisabled, c.Icon)
	assert.Equal(t, "Enable Pile of Shame", c.Label)

	require.NoError(t, r.Hide(ctx, 4))
	_, ok = r.Get(4)
	assert.False(t, ok)
}

func TestRegistry_ListOnlyVisible(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(event.NewBus(1))

	require.NoError(t, r.Show(ctx, 9))
	require.NoError(t, r.Show(ctx, 2))
	require.NoError(t, r.SetLabel(ctx, 5, "hidden"))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].TabID)
	assert.Equal(t, 9, list[1].TabID)
}

func TestRegistry_ClickPublishes(t *testing.T) {
	ctx := context.Background()
	bus := event.NewBus(1)
	r := NewRegistry(bus)

	require.NoError(t, r.Show(ctx, 3))
	require.NoError(t, r.Click(ctx, 3))

	ev := <-bus.C()
	assert.Equal(t, event.TypeClicked, ev.Type)
	assert.Equal(t, 3, ev.TabID)
}

func TestRegistry_ClickHidden(t *testing.T) {
	r := NewRegistry(event.NewBus(1))
	err := r.Click(context.Background(), 3)
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestRegistry_ClickPublishFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := event.NewBus(1)
	r := NewRegistry(bus)
	require.NoError(t, r.Show(ctx, 1))
	require.NoError(t, bus.Publish(ctx, event.Activated(1))) // fill the buffer
	cancel()

	err := r.Click(ctx, 1)
	assert.True(t, perrors.IsCollaborator(err, perrors.Affordance))
	assert.ErrorIs(t, err, context.Canceled)
}
