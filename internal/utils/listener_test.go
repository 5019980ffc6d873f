package utils_test

import (
	"testing"

	"github.com/satconnect/go-sdk/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster(t *testing.T) {
	b := utils.NewBroadcaster[int]()

	first := b.Subscribe(4)
	second := b.Subscribe(4)

	dropped := b.Publish(21)
	require.Zero(t, dropped)
	require.Equal(t, 21, <-first)
	require.Equal(t, 21, <-second)

	b.Unsubscribe(second)
	_, ok := <-second
	require.False(t, ok)

	require.Zero(t, b.Publish(42))
	require.Equal(t, 42, <-first)

	b.Close()
	_, ok = <-first
	require.False(t, ok)

	// Subscribing after close yields a closed channel.
	late := b.Subscribe(1)
	_, ok = <-late
	require.False(t, ok)
}

func TestBroadcasterDropsSaturatedListeners(t *testing.T) {
	b := utils.NewBroadcaster[int]()
	defer b.Close()

	slow := b.Subscribe(1)
	require.Zero(t, b.Publish(1))

	// The buffer is full now, the next publish drops the listener.
	require.Equal(t, 1, b.Publish(2))

	// The buffered event is still readable, then the channel is closed.
	v, ok := <-slow
	require.True(t, ok)
	require.Equal(t, 1, v)
	_, ok = <-slow
	require.False(t, ok)
}
