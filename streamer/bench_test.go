package streamer

import (
	"context"
	"image"
	"strconv"
	"testing"

	"github.com/IvanBrykalov/tilestream/tier"
)

var tinyDecoder = DecoderFunc(func(context.Context, tier.Key, []byte) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
})

var instantFetcher = FetcherFunc(func(context.Context, tier.Key) ([]byte, error) { return nil, nil })

// BenchmarkStreamer_SwapHit measures the synchronous cache-hit path: one entity flips
// between two resident tiers.
func BenchmarkStreamer_SwapHit(b *testing.B) {
	reg := newRegistry()
	reg.add("a", variants("a"))
	s := New(Options{Fetcher: instantFetcher, Decoder: tinyDecoder, Registry: reg})
	b.Cleanup(func() { _ = s.Close() })

	for _, tr := range []tier.Tier{tier.Low, tier.High} {
		_, tk := s.RequestTier("a", tr)
		if _, err := tk.Wait(context.Background()); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.RequestTier("a", tier.Tier(i&1)*tier.High)
	}
}

// BenchmarkStreamer_ColdLoad measures the full schedule→decode→settle path
// with zero-cost I/O.
func BenchmarkStreamer_ColdLoad(b *testing.B) {
	reg := newRegistry()
	for i := 0; i < b.N; i++ {
		id := strconv.Itoa(i)
		reg.add(id, tier.Variants{tier.Medium: id})
	}
	s := New(Options{Fetcher: instantFetcher, Decoder: tinyDecoder, Registry: reg, Budget: 1 << 20})
	b.Cleanup(func() { _ = s.Close() })

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := strconv.Itoa(i)
		_, tk := s.RequestTier(id, tier.Medium)
		if _, err := tk.Wait(context.Background()); err != nil {
			b.Fatal(err)
		}
		s.Release(id)
	}
}
