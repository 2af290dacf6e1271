package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func makeTGAHeader(imageType byte, w, h int, bpp byte, topToBottom bool) []byte {
	hdr := make([]byte, 18)
	hdr[2] = imageType
	hdr[12], hdr[13] = byte(w), byte(w>>8)
	hdr[14], hdr[15] = byte(h), byte(h>>8)
	hdr[16] = bpp
	if topToBottom {
		hdr[17] = 0x20
	}
	return hdr
}

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func TestDecodeTGA_Uncompressed(t *testing.T) {
	// Bottom-up 2x2, BGR: first stored row is the bottom one.
	data := makeTGAHeader(TGATypeUncompressed, 2, 2, 24, false)
	data = append(data,
		0, 0, 255, 0, 255, 0, // red, green
		255, 0, 0, 255, 255, 255, // blue, white
	)

	img, err := DecodeTGA(data)
	require.NoError(t, err)
	assert.Equal(t, red, img.RGBAAt(0, 1))
	assert.Equal(t, green, img.RGBAAt(1, 1))
	assert.Equal(t, blue, img.RGBAAt(0, 0))
	assert.Equal(t, white, img.RGBAAt(1, 0))
}

func TestDecodeTGA_RLE(t *testing.T) {
	data := makeTGAHeader(TGATypeRLE, 3, 1, 32, true)
	data = append(data,
		0x81, 0, 0, 255, 128, // run of two red pixels, alpha 128
		0x00, 255, 0, 0, 255, // one raw blue pixel
	)

	img, err := DecodeTGA(data)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, A: 128}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, A: 128}, img.RGBAAt(1, 0))
	assert.Equal(t, blue, img.RGBAAt(2, 0))
}

func TestDecodeTGA_Errors(t *testing.T) {
	colorMapped := makeTGAHeader(TGATypeUncompressed, 1, 1, 24, false)
	colorMapped[1] = 1

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", []byte{0, 0, 2}, ErrTruncatedTGA},
		{"color mapped", colorMapped, ErrUnsupportedTGA},
		{"grayscale", makeTGAHeader(3, 1, 1, 8, false), ErrUnsupportedTGA},
		{"16 bit", makeTGAHeader(TGATypeUncompressed, 1, 1, 16, false), ErrUnsupportedTGA},
		{"short pixels", append(makeTGAHeader(TGATypeUncompressed, 2, 1, 24, false), 1, 2, 3), ErrTruncatedTGA},
		{"short rle", append(makeTGAHeader(TGATypeRLE, 2, 1, 24, false), 0x81, 1), ErrTruncatedTGA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTGA(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, red)
	img.Set(1, 0, green)
	img.Set(0, 1, blue)
	img.Set(1, 1, white)
	return img
}

func TestDecode_SniffsFormats(t *testing.T) {
	var pngBuf, bmpBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, testImage()))
	require.NoError(t, bmp.Encode(&bmpBuf, testImage()))

	for name, data := range map[string][]byte{"map.png": pngBuf.Bytes(), "map.bmp": bmpBuf.Bytes()} {
		t.Run(name, func(t *testing.T) {
			img, err := Load(name, data, false)
			require.NoError(t, err)
			assert.Equal(t, red, img.RGBAAt(0, 0))
			assert.Equal(t, white, img.RGBAAt(1, 1))
			assert.Equal(t, 8, img.Stride)
		})
	}
}

func TestDecode_TGAByExtension(t *testing.T) {
	data := append(makeTGAHeader(TGATypeUncompressed, 1, 1, 24, false), 0, 255, 0)
	img, err := Load("MAP.TGA", data, false)
	require.NoError(t, err)
	assert.Equal(t, green, img.RGBAAt(0, 0))

	_, err = Load("map.png", data, false)
	assert.Error(t, err)
}

func TestToRGBA_Flip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1, 3))
	src.SetRGBA(0, 0, red)
	src.SetRGBA(0, 1, green)
	src.SetRGBA(0, 2, blue)

	flipped := ToRGBA(src, true)
	assert.Equal(t, blue, flipped.RGBAAt(0, 0))
	assert.Equal(t, green, flipped.RGBAAt(0, 1))
	assert.Equal(t, red, flipped.RGBAAt(0, 2))
	assert.Equal(t, red, src.RGBAAt(0, 0), "source must not be modified")

	assert.Same(t, src, ToRGBA(src, false))
}

func TestToRGBA_SubImage(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 4, 4))
	full.SetRGBA(2, 2, green)
	sub := full.SubImage(image.Rect(2, 2, 4, 4))

	out := ToRGBA(sub, false)
	assert.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
	assert.Equal(t, green, out.RGBAAt(0, 0))
	assert.Equal(t, 8, out.Stride)
}
