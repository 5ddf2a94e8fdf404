package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/HugoSmits86/nativewebp"

	"github.com/IvanBrykalov/tilestream/source/billyfs"
	"github.com/IvanBrykalov/tilestream/tier"
	"github.com/IvanBrykalov/tilestream/viewport"
)

// grid is a board of cols×rows square tiles, each with three WebP variants.
// It implements streamer.Registry; it never changes after construction.
type grid struct {
	cols, rows int
	size       float64
	ids        []string
	variants   map[string]tier.Variants
	bounds     map[string]viewport.Rect
}

// tierScale is the edge length of each tier relative to the High tile.
var tierScale = map[tier.Tier]int{tier.Low: 8, tier.Medium: 2, tier.High: 1}

func newGrid(cols, rows, size int) *grid {
	g := &grid{
		cols:     cols,
		rows:     rows,
		size:     float64(size),
		variants: make(map[string]tier.Variants, cols*rows),
		bounds:   make(map[string]viewport.Rect, cols*rows),
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			id := fmt.Sprintf("%d,%d", c, r)
			v := tier.Variants{}
			for t := range tierScale {
				v[t] = fmt.Sprintf("tiles/%d/%d@%s.webp", r, c, t)
			}
			g.ids = append(g.ids, id)
			g.variants[id] = v
			g.bounds[id] = viewport.Rect{X: float64(c * size), Y: float64(r * size), W: g.size, H: g.size}
		}
	}
	return g
}

func (g *grid) Source(id string) (tier.Source, bool) {
	v, ok := g.variants[id]
	return tier.Single(v), ok
}

func (g *grid) Bounds(id string) (viewport.Rect, bool) {
	b, ok := g.bounds[id]
	return b, ok
}

// Extent is the full board size in canvas units.
func (g *grid) Extent() (w, h float64) { return float64(g.cols) * g.size, float64(g.rows) * g.size }

// populate encodes every variant of every tile into fs.
func (g *grid) populate(fs *billyfs.FS) (int64, error) {
	var total int64
	var buf bytes.Buffer
	for i, id := range g.ids {
		for t, scale := range tierScale {
			edge := max(int(g.size)/scale, 1)
			buf.Reset()
			if err := nativewebp.Encode(&buf, swatch(edge, i), nil); err != nil {
				return total, fmt.Errorf("encode %s@%s: %w", id, t, err)
			}
			if err := fs.Put(tier.Key(g.variants[id][t]), buf.Bytes()); err != nil {
				return total, err
			}
			total += int64(buf.Len())
		}
	}
	return total, nil
}

// swatch is a flat tile with a darker border; the hue varies per tile so
// encoded sizes differ a little.
func swatch(edge, seed int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, edge, edge))
	fill := color.NRGBA{R: uint8(seed * 37), G: uint8(seed * 91), B: uint8(seed * 13), A: 255}
	border := color.NRGBA{R: fill.R / 2, G: fill.G / 2, B: fill.B / 2, A: 255}
	for y := 0; y < edge; y++ {
		for x := 0; x < edge; x++ {
			if x == 0 || y == 0 || x == edge-1 || y == edge-1 {
				img.SetNRGBA(x, y, border)
			} else {
				img.SetNRGBA(x, y, fill)
			}
		}
	}
	return img
}
