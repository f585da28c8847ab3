package event

import (
	"context"
	"fmt"
)

// Bus is a buffered channel shared by every source. A single consumer
// drains it, so events are handled one at a time in arrival order.
type Bus struct {
	ch chan Event
}

// NewBus creates a bus with the given buffer size.
func NewBus(size int) *Bus {
	if size < 1 {
		size = 1
	}
	return &Bus{ch: make(chan Event, size)}
}

// C returns the receive side for the consumer.
func (b *Bus) C() <-chan Event { return b.ch }

// Attach subscribes each source to the bus.
func (b *Bus) Attach(ctx context.Context, sources ...Source) error {
	for _, src := range sources {
		if err := src.Subscribe(ctx, b.ch); err != nil {
			return fmt.Errorf("subscribe %s: %w", src.Name(), err)
		}
	}
	return nil
}

// Publish enqueues ev, blocking until there is room or ctx ends.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
