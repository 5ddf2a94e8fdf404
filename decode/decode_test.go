package decode

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/HugoSmits86/nativewebp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.NRGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode_PNG(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, checker(8, 4))
	img, err := New(Options{}).Decode(context.Background(), "a.png", data)
	require.NoError(t, err)

	rgba, ok := img.(*image.RGBA)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 8, 4), rgba.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, rgba.RGBAAt(0, 0))
	assert.Equal(t, int64(8*4*4), ByteSize(img))
	assert.Equal(t, "png", Format("a.png", data))
}

func TestDecode_WebPLossless(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, nativewebp.Encode(&buf, checker(16, 16), nil))
	assert.Equal(t, "webp", Format("tile.webp", buf.Bytes()))

	img, err := New(Options{}).Decode(context.Background(), "tile.webp", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.(*image.RGBA).RGBAAt(1, 0))
}

func TestDecode_BMP(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, checker(3, 5)))
	img, err := New(Options{}).Decode(context.Background(), "x.bmp", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 5), img.Bounds())
}

func TestDecode_Downscale(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, checker(200, 50))
	img, err := New(Options{MaxDimension: 64}).Decode(context.Background(), "big.png", data)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 16), img.Bounds())
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	d := New(Options{})
	_, err := d.Decode(context.Background(), "x.png", nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = d.Decode(context.Background(), "x.bin", []byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	// Right magic, broken body.
	_, err = d.Decode(context.Background(), "x.png", []byte("\x89PNG\r\n\x1a\ngarbage"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnknownFormat))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Decode(ctx, "x.png", encodePNG(t, checker(1, 1)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFit(t *testing.T) {
	t.Parallel()

	cases := []struct{ w, h, limit, ww, wh int }{
		{100, 100, 0, 100, 100},
		{100, 50, 200, 100, 50},
		{400, 100, 100, 100, 25},
		{100, 400, 100, 25, 100},
		{1000, 1, 10, 10, 1},
	}
	for _, c := range cases {
		w, h := fit(c.w, c.h, c.limit)
		assert.Equal(t, c.ww, w)
		assert.Equal(t, c.wh, h)
	}
	assert.Equal(t, "tga", Format("Foo.TGA", []byte{0, 0, 2}))
	assert.Equal(t, "", Format("foo.raw", []byte{0, 0, 2}))
}
