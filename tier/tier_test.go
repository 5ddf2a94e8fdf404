package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ExactTier(t *testing.T) {
	t.Parallel()

	src := Single(Variants{Low: "l.webp", Medium: "m.webp", High: "h.webp"})
	var r Resolver
	for want, key := range map[Tier]Key{Low: "l.webp", Medium: "m.webp", High: "h.webp"} {
		k, eff, ok := r.Resolve(src, want)
		require.True(t, ok)
		assert.Equal(t, key, k)
		assert.Equal(t, want, eff)
	}
}

func TestResolve_FallbackPrefersRicher(t *testing.T) {
	t.Parallel()

	var r Resolver
	k, eff, ok := r.Resolve(Single(Variants{Medium: "m", High: "h"}), Low)
	require.True(t, ok)
	assert.Equal(t, Key("m"), k)
	assert.Equal(t, Medium, eff)

	k, eff, ok = r.Resolve(Single(Variants{Low: "l", High: "h"}), Medium)
	require.True(t, ok)
	assert.Equal(t, Key("h"), k)
	assert.Equal(t, High, eff)

	k, _, ok = r.Resolve(Single(Variants{Low: "l"}), High)
	require.True(t, ok)
	assert.Equal(t, Key("l"), k)
}

func TestResolve_CapRichest(t *testing.T) {
	t.Parallel()

	r := Resolver{CapRichest: true}
	all := Single(Variants{Low: "l", Medium: "m", High: "h"})

	k, eff, ok := r.Resolve(all, High)
	require.True(t, ok)
	assert.Equal(t, Key("m"), k)
	assert.Equal(t, Medium, eff)

	k, _, _ = r.Resolve(Single(Variants{Low: "l", High: "h"}), Medium)
	assert.Equal(t, Key("l"), k, "capped medium must fall back down before up")

	k, _, ok = r.Resolve(Single(Variants{High: "h"}), High)
	require.True(t, ok)
	assert.Equal(t, Key("h"), k, "high stays usable as a last resort")
}

func TestResolve_None(t *testing.T) {
	t.Parallel()

	var r Resolver
	_, _, ok := r.Resolve(Source{}, High)
	assert.False(t, ok)
	_, _, ok = r.Resolve(Single(Variants{Low: ""}), Low)
	assert.False(t, ok, "empty URLs do not count as variants")
	_, _, ok = r.Resolve(MultiFace("front"), Low)
	assert.False(t, ok)
}

func TestResolve_MultiFace(t *testing.T) {
	t.Parallel()

	front := Face{Name: "front", Variants: Variants{Low: "f-l", High: "f-h"}}
	back := Face{Name: "back", Variants: Variants{Low: "b-l"}}
	var r Resolver

	k, _, _ := r.Resolve(MultiFace("back", front, back), High)
	assert.Equal(t, Key("b-l"), k)

	k, _, _ = r.Resolve(MultiFace("", front, back), High)
	assert.Equal(t, Key("f-h"), k, "empty face selects the first face")

	k, _, _ = r.Resolve(MultiFace("side", front, back), Low)
	assert.Equal(t, Key("f-l"), k, "unknown face selects the first face")
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	src := Single(Variants{Low: "l", Medium: "m"})
	var r Resolver
	first, _, _ := r.Resolve(src, High)
	for i := 0; i < 100; i++ {
		k, _, _ := r.Resolve(src, High)
		require.Equal(t, first, k)
	}
}

func TestParseTier(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Tier{"low": Low, "MED": Medium, " high ": High, "full": High} {
		got, err := ParseTier(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseTier("ultra")
	assert.Error(t, err)

	var tt Tier
	require.NoError(t, tt.UnmarshalText([]byte("medium")))
	assert.Equal(t, Medium, tt)
	b, _ := High.MarshalText()
	assert.Equal(t, "high", string(b))
	assert.Equal(t, "tier(7)", Tier(7).String())
	assert.False(t, Tier(7).Valid())
}
