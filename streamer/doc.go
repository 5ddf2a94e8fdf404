// Package streamer is a tiered bitmap streaming cache for canvas-style
// viewers: many visual entities, each able to display one of several
// resolutions of an image, sharing a bounded pool of decoded textures.
//
// Design
//
//   - Tiers: every entity exposes Low/Medium/High variants (see package
//     tier). RequestTier resolves the wanted tier against what the entity
//     actually has, falling back along a fixed order.
//
//   - Cache: decoded textures are reference counted, one reference per
//     entity displaying them, and kept on an intrusive MRU↔LRU list with
//     byte accounting (width × height × 4). Releasing the last reference
//     does not free the texture; it just becomes an eviction candidate.
//
//   - Budget: when resident bytes cross HighWatermark × Budget, unreferenced
//     entries idle for at least EvictionGrace are evicted LRU-first until
//     LowWatermark × Budget is reached. Referenced entries are never evicted.
//
//   - Scheduling: cache misses become decode tasks in a priority queue keyed
//     by resource. Priorities come from the viewport (package viewport):
//     the view center first, then the rest of the view, then Near and Far
//     off-screen bands; ties are FIFO. Exactly Concurrency workers pull
//     from it.
//
//   - Single-flight: all entities waiting on the same key share one task and
//     receive the same *Texture.
//
//   - Cancellation: a superseded or cancelled request withdraws its desire.
//     A worker drops a task nobody desires before fetching; once fetching
//     has begun the decode completes and is cached for reuse.
//
//   - Consistency: queue, task table, desire counts and cache are updated
//     under one mutex, so no caller ever sees one of them ahead of another.
//
// Basic usage
//
//	s := streamer.New(streamer.Options{
//	    Fetcher:  fetcher,  // bytes by key (see package source)
//	    Registry: registry, // entity sources and bounds
//	    Viewport: view,
//	    Budget:   256 << 20,
//	})
//	defer s.Close()
//
//	switch out, tk := s.RequestTier("card-42", tier.High); out {
//	case streamer.Scheduled:
//	    go func() {
//	        if tex, err := tk.Wait(ctx); err == nil {
//	            upload(tex)
//	        }
//	    }()
//	case streamer.SwappedImmediately:
//	    tex, _, _ := s.Texture("card-42")
//	    upload(tex)
//	}
//
//	// after pan/zoom
//	s.RefreshPriorities()
//
// All methods are safe for concurrent use.
package streamer
