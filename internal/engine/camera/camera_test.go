package camera

import (
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/Faultbox/shaderbench/internal/uniform"
)

var _ uniform.Bindings = (*ModelViewer)(nil)

func TestDefaults(t *testing.T) {
	c := NewModelViewer()
	assert.Equal(t, float32(5.2), c.Distance)
	assert.Equal(t, Perspective, c.Projection)
	assert.False(t, c.Dragging())
}

func TestPan(t *testing.T) {
	c := NewModelViewer()
	c.RotationX, c.RotationY = 0.5, 1

	c.PanStart()
	assert.True(t, c.Dragging())
	c.PanMove(10, 20)
	c.PanMove(30, -40)
	assert.InDelta(t, 0.5-0.4, c.RotationX, 1e-6)
	assert.InDelta(t, 1+0.3, c.RotationY, 1e-6)

	c.PanEnd()
	assert.False(t, c.Dragging())
}

func TestWheelClampsDistance(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy float32
		want   float32
		yaw    float32
	}{
		{"zoom in", 0, 100, 4.2, 0},
		{"clamp near", 0, 10000, 1, 0},
		{"clamp far", 0, -10000, 25, 0},
		{"turn", 50, 0, 5.2, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewModelViewer()
			c.Wheel(tt.dx, tt.dy)
			assert.InDelta(t, tt.want, c.Distance, 1e-5)
			assert.InDelta(t, tt.yaw, c.RotationY, 1e-6)
		})
	}
}

func TestPinch(t *testing.T) {
	c := NewModelViewer()
	c.PinchStart()
	c.PinchMove(5, true)
	assert.InDelta(t, 4.2, c.Distance, 1e-5)
	c.PinchMove(5, false)
	assert.InDelta(t, 6.2, c.Distance, 1e-5)
	c.PinchMove(1000, false)
	assert.Equal(t, float32(25), c.Distance)
}

func TestAdvance(t *testing.T) {
	c := NewModelViewer()
	c.Advance()
	assert.Zero(t, c.AutoRotationY)

	c.AutoRotate = true
	c.Advance()
	assert.InDelta(t, 0.025, c.AutoRotationY, 1e-7)

	c.PanStart()
	c.Advance()
	assert.InDelta(t, 0.025, c.AutoRotationY, 1e-7)
}

func assertMat(t *testing.T, want []float32, got []float32) {
	t.Helper()
	assert.InDeltaSlice(t, want, got, 1e-4)
}

func TestMatrices(t *testing.T) {
	c := NewModelViewer()
	c.RotationX, c.RotationY, c.AutoRotationY = 0.3, 0.7, 0.2
	c.Distance = 8
	c.Update()

	view := mgl32.Translate3D(0, 0, -8)
	model := mgl32.HomogRotate3DX(0.3).Mul4(mgl32.HomogRotate3DY(0.9))
	mv := view.Mul4(model)
	normal := mv.Mat3().Inv().Transpose()

	v, m, modelView, n := c.ViewMatrix(), c.ModelMatrix(), c.ModelViewMatrix(), c.NormalMatrix()
	assertMat(t, view[:], v[:])
	assertMat(t, model[:], m[:])
	assertMat(t, mv[:], modelView[:])
	assertMat(t, normal[:], n[:])
}

func TestProjection(t *testing.T) {
	c := NewModelViewer()
	w, h := c.Resize(800, 400)
	assert.Equal(t, 800, w)
	assert.Equal(t, 400, h)

	persp := mgl32.Perspective(gomath.Pi/4, 2, 0.1, 1000)
	p := c.ProjectionMatrix()
	assertMat(t, persp[:], p[:])

	assert.Equal(t, Orthographic, c.ToggleProjection())
	ortho := mgl32.Ortho(-4, 4, -2, 2, 0.1, 1000)
	p = c.ProjectionMatrix()
	assertMat(t, ortho[:], p[:])

	assert.Equal(t, Perspective, c.ToggleProjection())
}

func TestResizeSampleFactor(t *testing.T) {
	c := NewModelViewer()
	c.SampleFactor = 2
	w, h := c.Resize(640, 0)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 1, h)

	sw, sh := c.Size()
	assert.Equal(t, w, sw)
	assert.Equal(t, h, sh)
}

func TestParseProjection(t *testing.T) {
	assert.Equal(t, Orthographic, ParseProjection("orthographic"))
	assert.Equal(t, Perspective, ParseProjection("perspective"))
	assert.Equal(t, Perspective, ParseProjection(""))
	assert.Equal(t, "orthographic", Orthographic.String())
}
