// Package renderer draws one frame of the loaded model with the active
// shader program.
package renderer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderbench/internal/engine/camera"
	"github.com/Faultbox/shaderbench/internal/engine/gpu"
	"github.com/Faultbox/shaderbench/internal/engine/shader"
	"github.com/Faultbox/shaderbench/internal/logger"
	"github.com/Faultbox/shaderbench/internal/uniform"
)

// DefaultClearColor is the background behind the model.
var DefaultClearColor = [4]float32{0.25, 0.25, 0.25, 1}

// RenderState is everything a frame reads. The application mutates it
// between frames on the render thread.
type RenderState struct {
	Model    *gpu.Model
	Ready    bool
	Camera   *camera.ModelViewer
	Registry *uniform.Registry
	Pipeline *shader.Pipeline

	ClearColor [4]float32
}

// SkipReason says why a frame was not drawn.
type SkipReason int

const (
	NotSkipped SkipReason = iota
	SkipNoProgram
	SkipNoModel
	SkipNotReady
)

func (s SkipReason) String() string {
	switch s {
	case NotSkipped:
		return "drawn"
	case SkipNoProgram:
		return "no program"
	case SkipNoModel:
		return "no model"
	case SkipNotReady:
		return "model not ready"
	default:
		return fmt.Sprintf("SkipReason(%d)", int(s))
	}
}

// UniformError is a uniform that could not be pushed this frame.
type UniformError struct {
	Name string
	Err  error
}

func (e UniformError) Error() string {
	return fmt.Sprintf("uniform %s: %v", e.Name, e.Err)
}

func (e UniformError) Unwrap() error {
	return e.Err
}

// FrameResult describes what a frame did.
type FrameResult struct {
	Drawn bool
	Skip  SkipReason

	// Attribute locations that received a buffer.
	Bound []string

	UniformErrors []UniformError
}

// Renderer issues the per-frame device calls.
type Renderer struct {
	dev   gpu.DrawDevice
	state *RenderState
	log   *zap.Logger
}

// New creates a renderer over the given state.
func New(dev gpu.DrawDevice, state *RenderState) *Renderer {
	if state.ClearColor == [4]float32{} {
		state.ClearColor = DefaultClearColor
	}
	return &Renderer{dev: dev, state: state, log: logger.Named("renderer")}
}

// State returns the render state.
func (r *Renderer) State() *RenderState {
	return r.state
}

// Resize handles window resize and returns the drawable size.
func (r *Renderer) Resize(width, height int) (int, int) {
	w, h := r.state.Camera.Resize(width, height)
	r.dev.Viewport(w, h)
	r.log.Debug("resized", zap.Int("width", w), zap.Int("height", h))
	return w, h
}

// Frame draws the model once. It never blocks and never fails: a missing
// program or model skips the frame, and uniform failures are reported in the
// result.
func (r *Renderer) Frame() FrameResult {
	s := r.state

	var prog *shader.Program
	if s.Pipeline != nil {
		prog = s.Pipeline.Active()
	}
	switch {
	case prog == nil:
		return FrameResult{Skip: SkipNoProgram}
	case s.Model == nil:
		return FrameResult{Skip: SkipNoModel}
	case !s.Ready:
		return FrameResult{Skip: SkipNotReady}
	}

	var res FrameResult
	m := s.Model
	a := prog.Attributes

	r.dev.BeginFrame(s.ClearColor)
	r.dev.UseProgram(prog.Handle)
	r.dev.ResetAttributes()

	bind := func(name string, loc int32, buf gpu.Buffer, size int32) bool {
		if loc == gpu.NoLocation || buf == 0 {
			return false
		}
		r.dev.BindAttribute(loc, buf, size)
		res.Bound = append(res.Bound, name)
		return true
	}
	bind(shader.AttrPosition, a.Position, m.Vertices, 3)
	bind(shader.AttrColor, a.Color, m.Colors, 4)
	bind(shader.AttrNormal, a.Normal, m.Normals, 3)
	if bind(shader.AttrTexCoord, a.TexCoord, m.UVs, 2) && m.HasTexture() {
		r.dev.BindTexture(0, m.Texture, prog.UniformLocation(shader.SamplerUniform))
	}

	if s.Camera != nil {
		s.Camera.Advance()
		s.Camera.Update()
	}

	if s.Registry != nil {
		res.UniformErrors = r.pushUniforms(prog, s.Registry)
	}

	r.dev.BindIndexBuffer(m.Indices)
	r.dev.DrawIndexed(m.Primitive, m.IndexCount)

	res.Drawn = true
	return res
}

func (r *Renderer) pushUniforms(prog *shader.Program, reg *uniform.Registry) []UniformError {
	var errs []UniformError
	for _, u := range reg.All() {
		loc := prog.UniformLocation(u.Name())
		if loc == gpu.NoLocation {
			continue
		}

		v := u.Value()
		if v == nil {
			err := u.Err()
			if err == nil {
				err = uniform.ErrConversion
			}
			errs = append(errs, UniformError{Name: u.Name(), Err: err})
			continue
		}

		var err error
		t := u.Type()
		if t.IsMatrix() {
			err = r.dev.UniformMatrix(loc, t.Dim(), v)
		} else {
			err = r.dev.UniformVector(loc, t.Components(), v)
		}
		if err != nil {
			errs = append(errs, UniformError{Name: u.Name(), Err: err})
		}
	}

	for _, e := range errs {
		r.log.Debug("uniform skipped", zap.String("uniform", e.Name), zap.Error(e.Err))
	}
	return errs
}
