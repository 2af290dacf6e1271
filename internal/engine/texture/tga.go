// Package texture decodes texture maps referenced by models into RGBA images
// ready for upload.
package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeRLE          = 10 // RLE compressed true-color
)

var (
	ErrUnsupportedTGA = errors.New("unsupported TGA")
	ErrTruncatedTGA   = errors.New("TGA data truncated")
)

const tgaHeaderSize = 18

type tgaHeader struct {
	idLength      int
	colorMapType  byte
	imageType     byte
	width, height int
	bytesPerPixel int
	topToBottom   bool
}

func parseTGAHeader(data []byte) (tgaHeader, error) {
	if len(data) < tgaHeaderSize {
		return tgaHeader{}, fmt.Errorf("header: %w", ErrTruncatedTGA)
	}
	h := tgaHeader{
		idLength:     int(data[0]),
		colorMapType: data[1],
		imageType:    data[2],
		width:        int(data[12]) | int(data[13])<<8,
		height:       int(data[14]) | int(data[15])<<8,
		// bit 5 of the descriptor: rows stored top to bottom
		topToBottom: data[17]&0x20 != 0,
	}
	bpp := int(data[16])

	switch {
	case h.colorMapType != 0:
		return h, fmt.Errorf("%w: color-mapped", ErrUnsupportedTGA)
	case h.imageType != TGATypeUncompressed && h.imageType != TGATypeRLE:
		return h, fmt.Errorf("%w: type %d", ErrUnsupportedTGA, h.imageType)
	case bpp != 24 && bpp != 32:
		return h, fmt.Errorf("%w: %d bits per pixel", ErrUnsupportedTGA, bpp)
	}
	h.bytesPerPixel = bpp / 8
	return h, nil
}

// tgaWriter stores pixels in stream order, flipping rows for bottom-up files.
type tgaWriter struct {
	img  *image.RGBA
	h    tgaHeader
	next int
}

func (w *tgaWriter) full() bool {
	return w.next >= w.h.width*w.h.height
}

func (w *tgaWriter) put(c color.RGBA) {
	x, y := w.next%w.h.width, w.next/w.h.width
	if !w.h.topToBottom {
		y = w.h.height - 1 - y
	}
	w.img.SetRGBA(x, y, c)
	w.next++
}

// bgra reads one pixel stored as BGR or BGRA.
func bgra(p []byte) color.RGBA {
	c := color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}
	if len(p) == 4 {
		c.A = p[3]
	}
	return c
}

// DecodeTGA decodes uncompressed and RLE compressed true-color TGA files.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	h, err := parseTGAHeader(data)
	if err != nil {
		return nil, err
	}

	offset := tgaHeaderSize + h.idLength
	if offset > len(data) {
		return nil, fmt.Errorf("image id: %w", ErrTruncatedTGA)
	}
	pixels := data[offset:]

	w := &tgaWriter{img: image.NewRGBA(image.Rect(0, 0, h.width, h.height)), h: h}
	bpp := h.bytesPerPixel

	if h.imageType == TGATypeUncompressed {
		if len(pixels) < h.width*h.height*bpp {
			return nil, fmt.Errorf("pixel data: %w", ErrTruncatedTGA)
		}
		for i := 0; !w.full(); i += bpp {
			w.put(bgra(pixels[i : i+bpp]))
		}
		return w.img, nil
	}

	i := 0
	for !w.full() {
		if i >= len(pixels) {
			return nil, fmt.Errorf("rle packet: %w", ErrTruncatedTGA)
		}
		packet := pixels[i]
		i++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// run of one repeated pixel
			if i+bpp > len(pixels) {
				return nil, fmt.Errorf("rle run: %w", ErrTruncatedTGA)
			}
			c := bgra(pixels[i : i+bpp])
			i += bpp
			for n := 0; n < count && !w.full(); n++ {
				w.put(c)
			}
			continue
		}

		// raw packet
		for n := 0; n < count && !w.full(); n++ {
			if i+bpp > len(pixels) {
				return nil, fmt.Errorf("raw packet: %w", ErrTruncatedTGA)
			}
			w.put(bgra(pixels[i : i+bpp]))
			i += bpp
		}
	}
	return w.img, nil
}
