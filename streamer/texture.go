package streamer

import (
	"image"

	"github.com/IvanBrykalov/tilestream/decode"
	"github.com/IvanBrykalov/tilestream/tier"
)

// Texture is a decoded, shareable bitmap. Every entity that asked for the
// same key receives the same *Texture. Treat Image as read-only.
type Texture struct {
	Key   tier.Key
	Image image.Image
	bytes int64
}

func newTexture(key tier.Key, img image.Image) *Texture {
	return &Texture{Key: key, Image: img, bytes: decode.ByteSize(img)}
}

// Bytes is the accounted size: width × height × 4.
func (t *Texture) Bytes() int64 { return t.bytes }

// Width returns the bitmap width in pixels.
func (t *Texture) Width() int { return t.Image.Bounds().Dx() }

// Height returns the bitmap height in pixels.
func (t *Texture) Height() int { return t.Image.Bounds().Dy() }
