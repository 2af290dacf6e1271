// Package gputest provides an in-memory gpu.Device for tests.
package gputest

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/Faultbox/shaderbench/internal/engine/gpu"
)

// CompileFailMarker makes CompileShader fail when present in the source.
const CompileFailMarker = "#error"

// LinkFailMarker makes LinkProgram fail when present in either stage.
const LinkFailMarker = "#link-error"

// ErrInjected is returned by injected failures.
var ErrInjected = errors.New("injected failure")

// DrawCall records one DrawIndexed.
type DrawCall struct {
	Program gpu.Program
	Mode    gpu.Primitive
	Count   int32
}

// TextureBinding records one BindTexture.
type TextureBinding struct {
	Unit    int32
	Texture gpu.Texture
	Sampler int32
}

type shaderRec struct {
	stage  gpu.Stage
	source string
}

type programRec struct {
	source string
	locs   map[string]int32
	next   int32
}

// Device records every call so tests can assert on the GPU-visible effects.
type Device struct {
	next uint32

	VertexBuffers map[gpu.Buffer][]float32
	IndexBuffers  map[gpu.Buffer][]uint16
	Textures      map[gpu.Texture]image.Rectangle
	Shaders       map[gpu.Shader]gpu.Stage
	Programs      map[gpu.Program]bool

	// FailBufferAfter makes the buffer creation after N successful ones fail.
	// Negative disables the injection.
	FailBufferAfter int
	// FailTextures makes every NewTexture call fail.
	FailTextures bool
	// UniformErrors injects a push failure for a uniform location.
	UniformErrors map[int32]error

	Current    gpu.Program
	Attributes map[int32]gpu.Buffer
	Sizes      map[int32]int32
	Index      gpu.Buffer
	Bound      []TextureBinding
	Uniforms   map[int32][]float32
	Draws      []DrawCall
	Frames     int
	Clear      [4]float32
	Width      int
	Height     int

	shaders  map[gpu.Shader]shaderRec
	programs map[gpu.Program]*programRec
	buffers  int
}

var _ gpu.Device = (*Device)(nil)

// New creates an empty fake device.
func New() *Device {
	return &Device{
		VertexBuffers:   make(map[gpu.Buffer][]float32),
		IndexBuffers:    make(map[gpu.Buffer][]uint16),
		Textures:        make(map[gpu.Texture]image.Rectangle),
		Shaders:         make(map[gpu.Shader]gpu.Stage),
		Programs:        make(map[gpu.Program]bool),
		FailBufferAfter: -1,
		UniformErrors:   make(map[int32]error),
		Attributes:      make(map[int32]gpu.Buffer),
		Sizes:           make(map[int32]int32),
		Uniforms:        make(map[int32][]float32),
		shaders:         make(map[gpu.Shader]shaderRec),
		programs:        make(map[gpu.Program]*programRec),
	}
}

func (d *Device) id() uint32 {
	d.next++
	return d.next
}

// Live reports the number of buffers, textures, shaders and programs not yet
// deleted.
func (d *Device) Live() int {
	return len(d.VertexBuffers) + len(d.IndexBuffers) + len(d.Textures) + len(d.Shaders) + len(d.Programs)
}

func (d *Device) bufferAllowed() error {
	if d.FailBufferAfter >= 0 && d.buffers >= d.FailBufferAfter {
		return fmt.Errorf("buffer %d: %w: %w", d.buffers, ErrInjected, gpu.ErrResource)
	}
	d.buffers++
	return nil
}

func (d *Device) NewVertexBuffer(data []float32) (gpu.Buffer, error) {
	if err := d.bufferAllowed(); err != nil {
		return 0, err
	}
	b := gpu.Buffer(d.id())
	d.VertexBuffers[b] = append([]float32(nil), data...)
	return b, nil
}

func (d *Device) NewIndexBuffer(data []uint16) (gpu.Buffer, error) {
	if err := d.bufferAllowed(); err != nil {
		return 0, err
	}
	b := gpu.Buffer(d.id())
	d.IndexBuffers[b] = append([]uint16(nil), data...)
	return b, nil
}

func (d *Device) NewTexture(img *image.RGBA) (gpu.Texture, error) {
	if d.FailTextures {
		return 0, fmt.Errorf("texture: %w: %w", ErrInjected, gpu.ErrResource)
	}
	t := gpu.Texture(d.id())
	d.Textures[t] = img.Bounds()
	return t, nil
}

func (d *Device) DeleteBuffer(b gpu.Buffer) {
	delete(d.VertexBuffers, b)
	delete(d.IndexBuffers, b)
}

func (d *Device) DeleteTexture(t gpu.Texture) {
	delete(d.Textures, t)
}

func (d *Device) CompileShader(stage gpu.Stage, source string) (gpu.Shader, error) {
	if strings.Contains(source, CompileFailMarker) {
		return 0, &gpu.CompileError{Stage: stage, Log: "ERROR: 0:1: '#error' : " + stage.String()}
	}
	s := gpu.Shader(d.id())
	d.Shaders[s] = stage
	d.shaders[s] = shaderRec{stage: stage, source: source}
	return s, nil
}

func (d *Device) DeleteShader(s gpu.Shader) {
	delete(d.Shaders, s)
	delete(d.shaders, s)
}

func (d *Device) LinkProgram(vs, fs gpu.Shader) (gpu.Program, error) {
	v, ok := d.shaders[vs]
	if !ok || v.stage != gpu.StageVertex {
		return 0, &gpu.LinkError{Log: "missing vertex shader"}
	}
	f, ok := d.shaders[fs]
	if !ok || f.stage != gpu.StageFragment {
		return 0, &gpu.LinkError{Log: "missing fragment shader"}
	}
	src := v.source + "\n" + f.source
	if strings.Contains(src, LinkFailMarker) {
		return 0, &gpu.LinkError{Log: "ERROR: Linking failed"}
	}
	p := gpu.Program(d.id())
	d.Programs[p] = true
	d.programs[p] = &programRec{source: src, locs: make(map[string]int32)}
	return p, nil
}

func (d *Device) DeleteProgram(p gpu.Program) {
	delete(d.Programs, p)
	delete(d.programs, p)
}

// location hands out sequential locations to names that occur in the
// program source.
func (d *Device) location(p gpu.Program, name string) int32 {
	rec, ok := d.programs[p]
	if !ok || !strings.Contains(rec.source, name) {
		return gpu.NoLocation
	}
	if loc, ok := rec.locs[name]; ok {
		return loc
	}
	loc := rec.next
	rec.next++
	rec.locs[name] = loc
	return loc
}

func (d *Device) AttribLocation(p gpu.Program, name string) int32 {
	return d.location(p, name)
}

func (d *Device) UniformLocation(p gpu.Program, name string) int32 {
	return d.location(p, name)
}

func (d *Device) Viewport(width, height int) {
	d.Width, d.Height = width, height
}

func (d *Device) BeginFrame(clear [4]float32) {
	d.Frames++
	d.Clear = clear
	d.Bound = d.Bound[:0]
}

func (d *Device) UseProgram(p gpu.Program) {
	d.Current = p
}

func (d *Device) ResetAttributes() {
	clear(d.Attributes)
	clear(d.Sizes)
}

func (d *Device) BindAttribute(loc int32, b gpu.Buffer, size int32) {
	d.Attributes[loc] = b
	d.Sizes[loc] = size
}

func (d *Device) BindIndexBuffer(b gpu.Buffer) {
	d.Index = b
}

func (d *Device) BindTexture(unit int32, t gpu.Texture, sampler int32) {
	d.Bound = append(d.Bound, TextureBinding{Unit: unit, Texture: t, Sampler: sampler})
}

func (d *Device) push(loc int32, want int, v []float32) error {
	if err, ok := d.UniformErrors[loc]; ok {
		return err
	}
	if len(v) != want {
		return fmt.Errorf("uniform %d wants %d components, got %d", loc, want, len(v))
	}
	d.Uniforms[loc] = append([]float32(nil), v...)
	return nil
}

func (d *Device) UniformVector(loc int32, n int, v []float32) error {
	return d.push(loc, n, v)
}

func (d *Device) UniformMatrix(loc int32, n int, v []float32) error {
	return d.push(loc, n*n, v)
}

func (d *Device) DrawIndexed(mode gpu.Primitive, count int32) {
	d.Draws = append(d.Draws, DrawCall{Program: d.Current, Mode: mode, Count: count})
}
