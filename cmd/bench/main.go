// Command bench pans a viewport across a synthetic board of WebP tiles and
// reports how the streamer keeps up. Prometheus metrics are served on /metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/tilestream/config"
	"github.com/IvanBrykalov/tilestream/decode"
	pmet "github.com/IvanBrykalov/tilestream/metrics/prom"
	"github.com/IvanBrykalov/tilestream/source"
	"github.com/IvanBrykalov/tilestream/source/billyfs"
	"github.com/IvanBrykalov/tilestream/source/lrucache"
	"github.com/IvanBrykalov/tilestream/streamer"
	"github.com/IvanBrykalov/tilestream/tier"
	"github.com/IvanBrykalov/tilestream/viewport"
)

// CLI is the bench command line. Flags override the config file.
type CLI struct {
	Config string `help:"YAML config file." type:"path" default:"tilestream.yaml"`

	Cols     int           `help:"Board columns." default:"48"`
	Rows     int           `help:"Board rows." default:"32"`
	TileSize int           `help:"High-tier tile edge in pixels." default:"256"`
	ViewW    float64       `help:"Viewport width." default:"1920"`
	ViewH    float64       `help:"Viewport height." default:"1080"`
	Duration time.Duration `help:"How long to pan." default:"10s"`
	Frame    time.Duration `help:"Frame interval." default:"16ms"`
	Seed     int64         `help:"Random seed (0 = time based)." default:"0"`

	Concurrency int    `help:"Decode workers (overrides config)."`
	Budget      string `help:"Decoded-bytes budget such as 128MiB (overrides config)."`
	LogLevel    string `help:"debug | info | warn | error (overrides config)."`

	HTTP  string `help:"Serve Prometheus metrics at addr; empty disables." default:":8080"`
	Pprof string `help:"Serve pprof at addr; empty disables."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("bench"),
		kong.Description("Pan a viewport over synthetic tiles and measure the streamer."),
	)
	if err := cli.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// Run executes the benchmark.
func (c *CLI) Run() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	if c.Pprof != "" {
		go func() {
			log.Info("pprof serving", "addr", c.Pprof)
			log.Warn("pprof stopped", "err", http.ListenAndServe(c.Pprof, nil))
		}()
	}
	metrics := pmet.New(nil, "tilestream", "bench", nil)
	if c.HTTP != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Info("metrics serving", "addr", c.HTTP)
			log.Warn("metrics stopped", "err", http.ListenAndServe(c.HTTP, nil))
		}()
	}

	// ---- Tiles ----
	board := newGrid(c.Cols, c.Rows, c.TileSize)
	base, err := cfg.OpenSource()
	if err != nil {
		return err
	}
	if fs, ok := base.(*billyfs.FS); ok {
		start := time.Now()
		n, err := board.populate(fs)
		if err != nil {
			return fmt.Errorf("generate tiles: %w", err)
		}
		log.Info("tiles generated", "tiles", len(board.ids), "encoded", humanize.IBytes(uint64(n)),
			"took", time.Since(start).Round(time.Millisecond))
	}
	cached, err := cfg.WrapCache(base)
	if err != nil {
		return err
	}
	fetcher := source.NewRouter(cached).Handle("file", billyfs.NewOS("/"))

	// ---- Streamer ----
	view := &panner{}
	view.set(viewport.Rect{W: c.ViewW, H: c.ViewH})
	opt := cfg.Options()
	opt.Fetcher = fetcher
	opt.Decoder = decode.New(decode.Options{MaxDimension: cfg.Decode.MaxDimension})
	opt.Registry = board
	opt.Viewport = view
	opt.Metrics = metrics
	opt.Logger = log
	s := streamer.New(opt)
	defer func() { _ = s.Close() }()

	// ---- Pan ----
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	res := c.pan(s, board, view, cfg.Viewer, rand.New(rand.NewSource(seed)))

	// ---- Report ----
	st := s.Stats()
	fmt.Printf("board=%dx%d tile=%d view=%.0fx%.0f workers=%d budget=%s dur=%v seed=%d\n",
		c.Cols, c.Rows, c.TileSize, c.ViewW, c.ViewH, opt.Concurrency, humanize.IBytes(uint64(opt.Budget)), c.Duration, seed)
	fmt.Printf("frames=%d requests=%d  satisfied=%d swapped=%d scheduled=%d unavailable=%d\n",
		res.frames, res.total(), res.outcomes[streamer.AlreadySatisfied], res.outcomes[streamer.SwappedImmediately],
		res.outcomes[streamer.Scheduled], res.outcomes[streamer.Unavailable])
	fmt.Printf("decoded=%d failed=%d canceled=%d evicted=%d\n", st.Decoded, st.Failed, st.Canceled, st.Evicted)
	fmt.Printf("resident=%s (%d textures) queue=%d in-flight=%d\n",
		humanize.IBytes(uint64(st.TotalBytes)), st.Entries, st.QueueDepth, st.InFlight)
	if lc, ok := cached.(*lrucache.Cache); ok {
		bs := lc.Stats()
		fmt.Printf("byte cache: hits=%d misses=%d coalesced=%d entries=%d\n", bs.Hits, bs.Misses, bs.Coalesced, bs.Entries)
	}
	return nil
}

func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if c.Concurrency > 0 {
		cfg.Streamer.Concurrency = c.Concurrency
	}
	if c.Budget != "" {
		n, err := humanize.ParseBytes(c.Budget)
		if err != nil {
			return nil, fmt.Errorf("--budget: %w", err)
		}
		cfg.Streamer.Budget = config.ByteSize(n)
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger picks a text handler for terminals and JSON otherwise, unless
// the format is pinned.
func newLogger(lc config.Log, f *os.File) (*slog.Logger, error) {
	lvl, err := lc.SlogLevel()
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	text := lc.Format == "text"
	if lc.Format == "" || lc.Format == "auto" {
		text = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if text {
		return slog.New(slog.NewTextHandler(f, hopts)), nil
	}
	return slog.New(slog.NewJSONHandler(f, hopts)), nil
}

// panner is the bench viewport: a rectangle moved by the pan loop.
type panner struct {
	mu sync.Mutex
	r  viewport.Rect
}

func (p *panner) Visible() viewport.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r
}

func (p *panner) set(r viewport.Rect) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.r = r
}

type panResult struct {
	frames   int
	outcomes map[streamer.Outcome]int
}

func (r panResult) total() int {
	n := 0
	for _, v := range r.outcomes {
		n += v
	}
	return n
}

// pan drifts the view toward random targets. Every frame each tile asks
// for the tier of its band; Far tiles are released as off-screen culling
// would.
func (c *CLI) pan(s *streamer.Streamer, g *grid, view *panner, tiers config.Viewer, rnd *rand.Rand) panResult {
	res := panResult{outcomes: make(map[streamer.Outcome]int)}
	prio := viewport.Prioritizer{Padding: streamer.DefaultPadding}
	bw, bh := g.Extent()
	maxX, maxY := max(bw-c.ViewW, 0), max(bh-c.ViewH, 0)

	target := view.Visible()
	tick := time.NewTicker(c.Frame)
	defer tick.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), c.Duration)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return res
		case <-tick.C:
		}
		res.frames++

		cur := view.Visible()
		if math.Abs(cur.X-target.X) < 1 && math.Abs(cur.Y-target.Y) < 1 {
			target.X, target.Y = rnd.Float64()*maxX, rnd.Float64()*maxY
		}
		cur.X += (target.X - cur.X) * 0.1
		cur.Y += (target.Y - cur.Y) * 0.1
		view.set(cur)

		for _, id := range g.ids {
			var want tier.Tier
			switch p := prio.Priority(cur, g.bounds[id]); {
			case p < viewport.Near:
				want = tiers.InView
			case p == viewport.Near:
				want = tiers.Near
			default:
				s.Release(id)
				continue
			}
			out, _ := s.RequestTier(id, want)
			res.outcomes[out]++
		}
		s.RefreshPriorities()
	}
}
