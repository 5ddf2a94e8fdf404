package streamer

import "time"

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                               {}
func (NoopMetrics) Miss()                              {}
func (NoopMetrics) Evict(EvictReason)                  {}
func (NoopMetrics) Size(entries int, bytes int64)      {}
func (NoopMetrics) Decode(DecodeResult, time.Duration) {}
func (NoopMetrics) Queue(depth, inFlight int)          {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
