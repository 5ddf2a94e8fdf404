package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_Coalesces(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	var calls atomic.Int32
	release := make(chan struct{})

	const n = 32
	var wg sync.WaitGroup
	results := make([]int, n)
	var sharedCount atomic.Int32
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, shared, err := g.Do(context.Background(), "k", func(context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
			if shared {
				sharedCount.Add(1)
			}
		}(i)
	}

	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		c, ok := g.m["k"]
		return ok && c.dups == n-1
	}, time.Second, time.Millisecond, "followers never joined")
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, int32(n), sharedCount.Load())
	assert.Zero(t, g.InFlight())
}

func TestGroup_FollowerContext(t *testing.T) {
	t.Parallel()

	var g Group[string, string]
	release := make(chan struct{})
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		v, _, err := g.Do(context.Background(), "k", func(context.Context) (string, error) {
			<-release
			return "v", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "v", v)
	}()
	require.Eventually(t, func() bool { return g.InFlight() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := g.Do(ctx, "k", func(context.Context) (string, error) {
		t.Fatal("follower must not run fn")
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-leaderDone
}

func TestGroup_Panic(t *testing.T) {
	t.Parallel()

	var g Group[int, int]
	_, _, err := g.Do(context.Background(), 1, func(context.Context) (int, error) { panic("bad") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Zero(t, g.InFlight())

	boom := errors.New("boom")
	_, shared, err := g.Do(context.Background(), 1, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, shared)
}
