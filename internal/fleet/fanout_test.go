package fleet

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOut_OrderAndErrors(t *testing.T) {
	boom := errors.New("boom")
	out := FanOut(context.Background(), []string{"a", "b", "a", "c"}, 2, func(ctx context.Context, host string) (string, error) {
		if host == "b" {
			return "", boom
		}
		return "hello " + host, nil
	})

	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "b", "c"}, out.Hosts())
	assert.Equal(t, []string{"a", "c"}, out.Succeeded().Hosts())
	assert.Equal(t, []string{"b"}, out.Failed().Hosts())

	o, ok := out.Get("c")
	require.True(t, ok)
	assert.Equal(t, "hello c", o.Value)

	err := out.Err()
	assert.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "b: boom")
}

func TestFanOut_LimitsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	hosts := []string{"h1", "h2", "h3", "h4", "h5", "h6"}

	FanOut(context.Background(), hosts, 2, func(ctx context.Context, host string) (struct{}, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFanOut_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	out := FanOut(ctx, []string{"a"}, 0, func(ctx context.Context, host string) (int, error) {
		called = true
		return 1, nil
	})

	assert.False(t, called)
	assert.ErrorIs(t, out.Err(), context.Canceled)
}

func TestFanOut_NoHosts(t *testing.T) {
	out := FanOut(context.Background(), nil, 4, func(ctx context.Context, host string) (int, error) {
		return 0, nil
	})
	assert.Empty(t, out)
	assert.NoError(t, out.Err())
}
