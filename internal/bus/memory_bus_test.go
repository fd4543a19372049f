// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "requests")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, "requests", "hello"))

	select {
	case got := <-sub.C():
		require.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("expected event, got none")
	}
}

func TestMemoryBus_PublishNeverBlocksOnFullQueue(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "requests")
	require.NoError(t, err)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueSize*4; i++ {
			require.NoError(t, b.Publish(ctx, "requests", i))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked despite a full, undrained subscriber queue")
	}

	// The subscriber's queue holds at most queueSize entries, and they are
	// the most recent ones published (oldest-dropped).
	drained := 0
	last := -1
	for {
		select {
		case v := <-sub.C():
			drained++
			last = v.(int)
			continue
		default:
		}
		break
	}
	require.LessOrEqual(t, drained, queueSize)
	require.Equal(t, queueSize*4-1, last)
}

func TestMemoryBus_CloseStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "requests")
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	// Publishing after close must not panic: Close leaves the channel open and
	// removes the subscription from the topic's fan-out list.
	require.NoError(t, b.Publish(ctx, "requests", "ignored"))
}

func TestMemoryBus_TopicsAreIsolated(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	subA, err := b.Subscribe(ctx, "a")
	require.NoError(t, err)
	defer subA.Close()

	subB, err := b.Subscribe(ctx, "b")
	require.NoError(t, err)
	defer subB.Close()

	require.NoError(t, b.Publish(ctx, "a", "only-a"))

	select {
	case v := <-subA.C():
		require.Equal(t, "only-a", v)
	case <-time.After(time.Second):
		t.Fatal("expected event on topic a")
	}

	select {
	case <-subB.C():
		t.Fatal("topic b should not have received topic a's event")
	case <-time.After(50 * time.Millisecond):
	}
}
