// Package decode turns raw encoded image bytes into premultiplied RGBA
// bitmaps ready for upload. Supported formats: PNG, JPEG, GIF, WebP, BMP and
// TGA. The format is chosen by magic bytes; TGA has no magic and is picked by
// a ".tga" key suffix.
package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/IvanBrykalov/tilestream/tier"
)

// ErrUnknownFormat is returned when no decoder recognizes the bytes.
var ErrUnknownFormat = errors.New("decode: unknown image format")

// ErrEmpty is returned for zero-length input.
var ErrEmpty = errors.New("decode: empty input")

type format struct {
	name   string
	match  func([]byte) bool
	decode func(io.Reader) (image.Image, error)
}

var formats = []format{
	{"png", prefix("\x89PNG\r\n\x1a\n"), png.Decode},
	{"jpeg", prefix("\xff\xd8"), jpeg.Decode},
	{"gif", prefix("GIF8"), gif.Decode},
	{"webp", isWebP, webp.Decode},
	{"bmp", prefix("BM"), bmp.Decode},
}

func prefix(p string) func([]byte) bool {
	return func(b []byte) bool { return bytes.HasPrefix(b, []byte(p)) }
}

func isWebP(b []byte) bool {
	return len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WEBP"
}

// Options configures a Decoder.
type Options struct {
	// MaxDimension caps the longer side of decoded bitmaps; larger images are
	// downscaled with aspect ratio preserved. 0 disables scaling.
	MaxDimension int
}

// Decoder decodes encoded bytes into *image.RGBA. It is stateless and safe
// for concurrent use.
type Decoder struct {
	opt Options
}

// New returns a Decoder.
func New(opt Options) *Decoder {
	if opt.MaxDimension < 0 {
		opt.MaxDimension = 0
	}
	return &Decoder{opt: opt}
}

// Format reports the detected format name for data, or "" if unknown.
func Format(key tier.Key, data []byte) string {
	for _, f := range formats {
		if f.match(data) {
			return f.name
		}
	}
	if isTGAKey(key) {
		return "tga"
	}
	return ""
}

// Decode decodes data (loaded for key) into a premultiplied RGBA bitmap.
func (d *Decoder) Decode(ctx context.Context, key tier.Key, data []byte) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	dec := decoderFor(key, data)
	if dec == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, key)
	}
	img, err := dec(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %s: %w", key, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("decode: %s: empty bounds %v", key, b)
	}
	return d.toRGBA(img), nil
}

func decoderFor(key tier.Key, data []byte) func(io.Reader) (image.Image, error) {
	for _, f := range formats {
		if f.match(data) {
			return f.decode
		}
	}
	if isTGAKey(key) {
		return tga.Decode
	}
	return nil
}

func isTGAKey(key tier.Key) bool {
	return strings.HasSuffix(strings.ToLower(string(key)), ".tga")
}

// toRGBA converts src to *image.RGBA anchored at (0,0), downscaling it when
// it exceeds MaxDimension. Drawing into an RGBA destination premultiplies
// alpha, so the scaler does not produce dark fringes at transparent edges.
func (d *Decoder) toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), d.opt.MaxDimension)

	if w == b.Dx() && h == b.Dy() {
		if rgba, ok := src.(*image.RGBA); ok && b.Min == (image.Point{}) {
			return rgba
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// fit scales (w, h) so the longer side is at most limit, keeping at least
// one pixel on each side.
func fit(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(h*limit/w, 1)
	}
	return max(w*limit/h, 1), limit
}

// ByteSize is the in-memory footprint of a decoded bitmap: 4 bytes per pixel.
func ByteSize(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
