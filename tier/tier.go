// Package tier maps an entity's image variants and a requested quality tier
// to the canonical resource key the streamer should load.
package tier

import (
	"fmt"
	"strings"
)

// Tier is a discrete quality level of a decodable asset.
type Tier uint8

const (
	// Low is the thumbnail-sized variant.
	Low Tier = iota
	// Medium is the screen-sized preview.
	Medium
	// High is the full-resolution image.
	High
)

// String implements fmt.Stringer.
func (t Tier) String() string {
	switch t {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the declared tiers.
func (t Tier) Valid() bool { return t <= High }

// ParseTier parses "low", "medium"/"med" or "high" (case-insensitive).
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "thumb", "thumbnail":
		return Low, nil
	case "medium", "med":
		return Medium, nil
	case "high", "full":
		return High, nil
	default:
		return 0, fmt.Errorf("tier: unknown tier %q", s)
	}
}

// UnmarshalText lets tiers appear in YAML and flag values.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Key identifies one decodable asset at one tier. Keys are opaque to the
// streamer; in practice they are URLs or object paths.
type Key string

// None is returned when no variant could be resolved.
const None Key = ""
