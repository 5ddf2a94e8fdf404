package tier

// Fallback orders. The exact tier always comes first, then the next richer
// tier, then whatever is left.
var (
	orderLow    = [...]Tier{Low, Medium, High}
	orderMedium = [...]Tier{Medium, High, Low}
	orderHigh   = [...]Tier{High, Medium, Low}

	// With CapRichest, High is only a last resort.
	orderMediumCapped = [...]Tier{Medium, Low, High}
)

// Resolver turns (Source, Tier) into a resource key. It has no state beyond
// its configuration and is safe for concurrent use.
type Resolver struct {
	// CapRichest treats High requests as Medium and demotes High variants to
	// a last resort, for memory-constrained sessions.
	CapRichest bool
}

// Order returns the fallback sequence the resolver walks for want.
func (r Resolver) Order(want Tier) []Tier {
	if r.CapRichest && (want == High || want == Medium) {
		return orderMediumCapped[:]
	}
	switch want {
	case Low:
		return orderLow[:]
	case Medium:
		return orderMedium[:]
	default:
		return orderHigh[:]
	}
}

// Resolve returns the key of the best available variant for want, together
// with the tier it was taken from. ok is false when the source has no usable
// variant at all.
func (r Resolver) Resolve(src Source, want Tier) (key Key, effective Tier, ok bool) {
	v := src.variants()
	if len(v) == 0 {
		return None, 0, false
	}
	for _, t := range r.Order(want) {
		if u, found := v[t]; found && u != "" {
			return Key(u), t, true
		}
	}
	return None, 0, false
}
