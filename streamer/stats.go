package streamer

// Stats is a read-only diagnostics snapshot.
type Stats struct {
	TotalBytes  int64 // decoded bytes resident in the cache
	BudgetBytes int64 // configured budget, 0 = unbounded
	Entries     int   // resident cache entries
	InFlight    int   // decodes running right now
	QueueDepth  int   // tasks waiting for a worker
	Entities    int   // entities tracked (displaying or waiting)

	Decoded  int64 // successful decodes
	Failed   int64 // fetch or decode failures
	Canceled int64 // tasks dropped at the safe point
	Evicted  int64 // entries evicted for any reason
}

// Stats returns a consistent snapshot of the streamer state.
func (s *Streamer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalBytes:  s.cache.bytes,
		BudgetBytes: s.cache.budget,
		Entries:     s.cache.len,
		InFlight:    s.inFlight,
		QueueDepth:  s.queue.Len(),
		Entities:    len(s.entities),
		Decoded:     s.decoded,
		Failed:      s.failed,
		Canceled:    s.canceled,
		Evicted:     s.evicted,
	}
}
