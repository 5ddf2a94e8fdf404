// Package viewport turns canvas geometry into decode priorities.
//
// Tiles inside the visible rectangle get a priority equal to the distance
// between their center and the view center, normalized by the view diagonal,
// so the middle of the screen loads first. Off-screen tiles fall into two
// flat bands: Near (inside the padded view) and Far (everything else).
// Lower values are more urgent.
package viewport

import "math"

// Priority bands for off-screen tiles. In-view priorities never exceed 0.5
// (half the normalized diagonal), so both bands always sort after them.
const (
	Near = 2.0
	Far  = 3.0
)

// Rect is an axis-aligned rectangle in canvas coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Center returns the center point of r.
func (r Rect) Center() (x, y float64) { return r.X + r.W/2, r.Y + r.H/2 }

// Intersects reports whether r and o overlap (touching edges do not count).
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Pad grows r on every side by frac of its own width/height.
func (r Rect) Pad(frac float64) Rect {
	dx, dy := r.W*frac, r.H*frac
	return Rect{X: r.X - dx, Y: r.Y - dy, W: r.W + 2*dx, H: r.H + 2*dy}
}

// Provider exposes the current visible rectangle.
type Provider interface {
	Visible() Rect
}

// Static is a Provider with a fixed rectangle; handy for tests and batch use.
type Static Rect

// Visible implements Provider.
func (s Static) Visible() Rect { return Rect(s) }

// Prioritizer computes task priorities from tile bounds.
type Prioritizer struct {
	// Padding is the margin, as a fraction of the view size, inside which
	// off-screen tiles count as Near.
	Padding float64
}

// Priority returns the decode priority of a tile with the given bounds.
func (p Prioritizer) Priority(view, bounds Rect) float64 {
	if view.Empty() || bounds.Empty() {
		return Far
	}
	if bounds.Intersects(view) {
		vx, vy := view.Center()
		bx, by := bounds.Center()
		diag := math.Hypot(view.W, view.H)
		d := math.Hypot(bx-vx, by-vy) / diag
		return math.Min(d, 0.5)
	}
	if p.Padding > 0 && bounds.Intersects(view.Pad(p.Padding)) {
		return Near
	}
	return Far
}
