package gpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/Faultbox/shaderbench/pkg/formats"
)

// ErrEmptyModel is returned when a decoded model has no faces to upload.
var ErrEmptyModel = errors.New("model has no faces")

// Model is an uploaded model. It is never mutated after creation; a texture
// arriving later produces a new Model via WithTexture.
type Model struct {
	Vertices Buffer
	Indices  Buffer
	Colors   Buffer // zero when the model has no colors
	Normals  Buffer // zero when the model has no normals
	UVs      Buffer // zero when the model has no texture coordinates
	Texture  Texture

	VertexCount int32
	IndexCount  int32
	Primitive   Primitive
}

// HasColors reports whether a color buffer was uploaded.
func (m *Model) HasColors() bool { return m.Colors != 0 }

// HasNormals reports whether a normal buffer was uploaded.
func (m *Model) HasNormals() bool { return m.Normals != 0 }

// HasUVs reports whether a texture coordinate buffer was uploaded.
func (m *Model) HasUVs() bool { return m.UVs != 0 }

// HasTexture reports whether a texture is attached.
func (m *Model) HasTexture() bool { return m.Texture != 0 }

// WithTexture returns a copy of the model with the texture attached.
func (m *Model) WithTexture(t Texture) *Model {
	c := *m
	c.Texture = t
	return &c
}

// Binder uploads flat buffers and images. It makes no decisions: every
// failure is returned to the caller as is.
type Binder struct {
	dev ResourceDevice
}

// NewBinder creates a binder on the given device.
func NewBinder(dev ResourceDevice) *Binder {
	return &Binder{dev: dev}
}

// UploadVertexData uploads a float buffer.
func (b *Binder) UploadVertexData(data []float32) (Buffer, error) {
	buf, err := b.dev.NewVertexBuffer(data)
	if err != nil {
		return 0, fmt.Errorf("vertex data: %w", err)
	}
	return buf, nil
}

// UploadIndexData uploads a 16-bit index buffer.
func (b *Binder) UploadIndexData(data []uint16) (Buffer, error) {
	buf, err := b.dev.NewIndexBuffer(data)
	if err != nil {
		return 0, fmt.Errorf("index data: %w", err)
	}
	return buf, nil
}

// UploadTexture uploads an RGBA image with mipmaps.
func (b *Binder) UploadTexture(img *image.RGBA) (Texture, error) {
	tex, err := b.dev.NewTexture(img)
	if err != nil {
		return 0, fmt.Errorf("texture: %w", err)
	}
	return tex, nil
}

// UploadModel uploads every buffer the decoded model carries. Handles created
// before a failing upload are released.
func (b *Binder) UploadModel(m *formats.DecodedModel) (*Model, error) {
	if len(m.Indices) == 0 {
		return nil, ErrEmptyModel
	}

	out := &Model{
		VertexCount: int32(m.VertexCount()),
		IndexCount:  int32(len(m.Indices)),
		Primitive:   Triangles,
	}

	var err error
	if out.Vertices, err = b.UploadVertexData(m.Vertices); err != nil {
		return nil, err
	}
	if out.Indices, err = b.UploadIndexData(m.Indices); err != nil {
		b.Release(out)
		return nil, err
	}
	if m.HasColors {
		if out.Colors, err = b.UploadVertexData(m.Colors); err != nil {
			b.Release(out)
			return nil, err
		}
	}
	if m.HasNormals {
		if out.Normals, err = b.UploadVertexData(m.Normals); err != nil {
			b.Release(out)
			return nil, err
		}
	}
	if m.HasUV {
		if out.UVs, err = b.UploadVertexData(m.UVs); err != nil {
			b.Release(out)
			return nil, err
		}
	}
	return out, nil
}

// Release frees every handle the model owns, texture included.
func (b *Binder) Release(m *Model) {
	if m == nil {
		return
	}
	for _, buf := range []Buffer{m.Vertices, m.Indices, m.Colors, m.Normals, m.UVs} {
		if buf != 0 {
			b.dev.DeleteBuffer(buf)
		}
	}
	if m.Texture != 0 {
		b.dev.DeleteTexture(m.Texture)
	}
}
