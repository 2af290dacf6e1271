package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
)

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("empty image")

// Decode decodes a texture file. TGA has no magic number and is picked by
// extension; everything else is sniffed by the registered image decoders.
func Decode(name string, data []byte) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(name), ".tga") {
		img, err := DecodeTGA(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// ToRGBA converts any image to a tightly packed *image.RGBA anchored at the
// origin, optionally flipping rows so the first row is the bottom one.
func ToRGBA(img image.Image, flipY bool) *image.RGBA {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) || rgba.Stride != 4*b.Dx() {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	} else if flipY {
		rgba = &image.RGBA{Pix: append([]byte(nil), rgba.Pix...), Stride: rgba.Stride, Rect: rgba.Rect}
	}

	if flipY {
		row := make([]byte, rgba.Stride)
		h := rgba.Rect.Dy()
		for y := 0; y < h/2; y++ {
			top := rgba.Pix[y*rgba.Stride : (y+1)*rgba.Stride]
			bottom := rgba.Pix[(h-1-y)*rgba.Stride : (h-y)*rgba.Stride]
			copy(row, top)
			copy(top, bottom)
			copy(bottom, row)
		}
	}
	return rgba
}

// Load decodes a texture file into an upload-ready RGBA image.
func Load(name string, data []byte, flipY bool) (*image.RGBA, error) {
	img, err := Decode(name, data)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode %s: %w", name, ErrEmptyImage)
	}
	return ToRGBA(img, flipY), nil
}
