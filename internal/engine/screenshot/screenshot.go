// Package screenshot saves frames read back from the GPU as PNG files.
package screenshot

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// Capture writes screenshots into a directory.
type Capture struct {
	dir    string
	prefix string
	now    func() time.Time
}

// New creates a capture that names files <prefix>_<timestamp>.png in dir.
func New(dir, prefix string) *Capture {
	return &Capture{dir: dir, prefix: prefix, now: time.Now}
}

// Dir returns the output directory.
func (c *Capture) Dir() string {
	return c.dir
}

// Filename returns the path the next capture is written to. Captures
// within the same second get a numeric suffix.
func (c *Capture) Filename() string {
	base := fmt.Sprintf("%s_%s", c.prefix, c.now().Format("2006-01-02_15-04-05"))
	name := filepath.Join(c.dir, base+".png")
	for i := 2; ; i++ {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return name
		}
		name = filepath.Join(c.dir, fmt.Sprintf("%s_%d.png", base, i))
	}
}

// Save writes bottom-up RGBA pixels, as GL reads them, flipped upright.
func (c *Capture) Save(pixels []byte, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("invalid size %dx%d", width, height)
	}
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		copy(img.Pix[y*img.Stride:y*img.Stride+rowSize], pixels[src:src+rowSize])
	}
	return c.SaveImage(img)
}

// SaveImage writes an image as PNG.
func (c *Capture) SaveImage(img image.Image) (string, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	filename := c.Filename()
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}

	if err := png.Encode(file, img); err != nil {
		file.Close()
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return filename, file.Close()
}
