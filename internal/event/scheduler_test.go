package event

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_Name(t *testing.T) {
	assert.Equal(t, SourceTimer, NewScheduler(nil, zerolog.Nop()).Name())
}

func TestScheduler_RejectsNonPositivePeriod(t *testing.T) {
	s := NewScheduler(nil, zerolog.Nop())
	assert.Error(t, s.Schedule("pos_alarm", 0))
	assert.Empty(t, s.Scheduled())
}

func TestScheduler_FiresOnFakeClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(clock, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Event, 10)
	require.NoError(t, s.Subscribe(ctx, out))
	require.NoError(t, s.Schedule("pos_alarm", time.Minute))

	clock.Advance(time.Minute)

	select {
	case ev := <-out:
		assert.Equal(t, TypeFired, ev.Type)
		assert.Equal(t, SourceTimer, ev.Source)
		assert.Equal(t, "pos_alarm", ev.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fired event")
	}
}

func TestScheduler_ScheduleBeforeSubscribe(t *testing.T) {
	s := NewScheduler(nil, zerolog.Nop())
	require.NoError(t, s.Schedule("fast", 20*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out := make(chan Event, 10)
	require.NoError(t, s.Subscribe(ctx, out))

	select {
	case ev := <-out:
		assert.Equal(t, "fast", ev.Name)
	case <-ctx.Done():
		t.Fatal("expected at least one fired event")
	}
}

func TestScheduler_RescheduleReplaces(t *testing.T) {
	s := NewScheduler(nil, zerolog.Nop())
	require.NoError(t, s.Schedule("pos_alarm", time.Minute))
	require.NoError(t, s.Schedule("pos_alarm", 2*time.Minute))
	assert.Equal(t, []string{"pos_alarm"}, s.Scheduled())
}

func TestScheduler_Clear(t *testing.T) {
	s := NewScheduler(nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Event, 100)
	require.NoError(t, s.Subscribe(ctx, out))
	require.NoError(t, s.Schedule("fast", 10*time.Millisecond))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.Clear("fast"))
	assert.False(t, s.Clear("fast"))
	assert.Empty(t, s.Scheduled())

	// Let an in-flight send land, then drain and make sure nothing follows.
	time.Sleep(20 * time.Millisecond)
	for len(out) > 0 {
		<-out
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, len(out))
}

func TestScheduler_SubscribeTwice(t *testing.T) {
	s := NewScheduler(nil, zerolog.Nop())
	out := make(chan Event, 1)
	require.NoError(t, s.Subscribe(context.Background(), out))
	assert.Error(t, s.Subscribe(context.Background(), out))
}

func TestBus_AttachAndPublish(t *testing.T) {
	bus := NewBus(4)
	s := NewScheduler(nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Attach(ctx, s))
	require.NoError(t, bus.Publish(ctx, Clicked(5)))

	ev := <-bus.C()
	assert.Equal(t, TypeClicked, ev.Type)
	assert.Equal(t, 5, ev.TabID)
}

func TestBus_PublishRespectsContext(t *testing.T) {
	bus := NewBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Publish(ctx, Clicked(1)))

	cancel()
	err := bus.Publish(ctx, Clicked(2))
	assert.ErrorIs(t, err, context.Canceled)
}
