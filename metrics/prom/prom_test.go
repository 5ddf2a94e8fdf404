package prom

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/tilestream/streamer"
	"github.com/IvanBrykalov/tilestream/tier"
	"github.com/IvanBrykalov/tilestream/viewport"
)

func TestAdapter_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg, "tilestream", "test", prometheus.Labels{"session": "s1"})

	a.Hit()
	a.Hit()
	a.Miss()
	a.Evict(streamer.EvictBudget)
	a.Evict(streamer.EvictPurge)
	a.Evict(streamer.EvictBudget)
	a.Size(3, 4096)
	a.Decode(streamer.DecodeOK, 5*time.Millisecond)
	a.Decode(streamer.DecodeCanceled, 0)
	a.Queue(7, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.misses))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.evicts.WithLabelValues("budget")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.evicts.WithLabelValues("purge")))
	assert.Equal(t, 3.0, testutil.ToFloat64(a.sizeEnt))
	assert.Equal(t, 4096.0, testutil.ToFloat64(a.sizeBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.decodes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.decodes.WithLabelValues("canceled")))
	assert.Equal(t, 7.0, testutil.ToFloat64(a.queueDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.inFlight))

	n, err := testutil.GatherAndCount(reg, "tilestream_test_decode_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type oneEntity struct{}

func (oneEntity) Source(string) (tier.Source, bool) {
	return tier.Single(tier.Variants{tier.Low: "k"}), true
}
func (oneEntity) Bounds(string) (viewport.Rect, bool) { return viewport.Rect{}, false }

// The adapter plugs into a live streamer.
func TestAdapter_WithStreamer(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg, "tilestream", "", nil)
	s := streamer.New(streamer.Options{
		Fetcher: streamer.FetcherFunc(func(context.Context, tier.Key) ([]byte, error) { return nil, nil }),
		Decoder: streamer.DecoderFunc(func(context.Context, tier.Key, []byte) (image.Image, error) {
			return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
		}),
		Registry: oneEntity{},
		Metrics:  a,
	})
	t.Cleanup(func() { _ = s.Close() })

	out, tk := s.RequestTier("x", tier.Low)
	require.Equal(t, streamer.Scheduled, out)
	_, err := tk.Wait(context.Background())
	require.NoError(t, err)

	out, _ = s.RequestTier("y", tier.Low)
	assert.Equal(t, streamer.SwappedImmediately, out)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.hits))
	assert.Equal(t, 16.0, testutil.ToFloat64(a.sizeBytes))
}
