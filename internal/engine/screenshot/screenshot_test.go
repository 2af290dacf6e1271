package screenshot

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedCapture(t *testing.T) *Capture {
	c := New(filepath.Join(t.TempDir(), "shots"), "shaderbench")
	c.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	return c
}

func TestSave_FlipsRows(t *testing.T) {
	c := fixedCapture(t)

	// Two rows, bottom row red, top row blue, as GL returns them.
	pixels := []byte{
		255, 0, 0, 255,
		0, 0, 255, 255,
	}
	name, err := c.Save(pixels, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "shaderbench_2026-03-04_05-06-07.png", filepath.Base(name))

	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{0, 0, 255, 255}, color.RGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, color.RGBAModel.Convert(img.At(0, 1)))
}

func TestSave_SameSecondGetsSuffix(t *testing.T) {
	c := fixedCapture(t)
	px := make([]byte, 4)

	first, err := c.Save(px, 1, 1)
	require.NoError(t, err)
	second, err := c.Save(px, 1, 1)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, "_2.png"), second)
}

func TestSave_Invalid(t *testing.T) {
	c := fixedCapture(t)

	_, err := c.Save(make([]byte, 3), 1, 1)
	assert.ErrorContains(t, err, "mismatch")

	_, err = c.Save(nil, 0, 0)
	assert.Error(t, err)
}
