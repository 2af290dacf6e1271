// Package camera provides the model viewer camera: an orbit around the
// origin driven by drag, wheel and pinch input, plus the projection and
// transform matrices the built-in uniforms expose.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Projection selects the projection matrix.
type Projection int

const (
	Perspective Projection = iota
	Orthographic
)

func (p Projection) String() string {
	if p == Orthographic {
		return "orthographic"
	}
	return "perspective"
}

// ParseProjection maps a config value to a Projection. Unknown values are
// perspective.
func ParseProjection(s string) Projection {
	if s == "orthographic" || s == "ortho" {
		return Orthographic
	}
	return Perspective
}

// Projection parameters.
const (
	FieldOfView = math.Pi / 4
	Near        = 0.1
	Far         = 1000.0
	OrthoExtent = 2.0
)

// ModelViewer rotates the model in front of a fixed camera.
type ModelViewer struct {
	// Model rotation (radians)
	RotationX     float32
	RotationY     float32
	AutoRotationY float32

	// Camera distance along -Z
	Distance    float32
	MinDistance float32
	MaxDistance float32

	// Sensitivity
	DragSensitivity  float32
	WheelSensitivity float32
	PinchSensitivity float32

	AutoRotate     bool
	AutoRotateStep float32
	Projection     Projection

	// SampleFactor scales the window size to the drawable size.
	SampleFactor float32

	panStartX, panStartY float32
	pinchStart           float32
	dragging             bool

	width, height int
	perspective   mgl32.Mat4
	ortho         mgl32.Mat4

	view      mgl32.Mat4
	model     mgl32.Mat4
	modelView mgl32.Mat4
	normal    mgl32.Mat3
}

// NewModelViewer creates a viewer with default settings.
func NewModelViewer() *ModelViewer {
	c := &ModelViewer{
		Distance:         5.2,
		MinDistance:      1,
		MaxDistance:      25,
		DragSensitivity:  0.01,
		WheelSensitivity: 0.01,
		PinchSensitivity: 0.2,
		AutoRotateStep:   0.025,
		SampleFactor:     1,
	}
	c.Resize(1, 1)
	c.Update()
	return c
}

// PanStart records the rotation a drag starts from.
func (c *ModelViewer) PanStart() {
	c.panStartX = c.RotationX
	c.panStartY = c.RotationY
	c.dragging = true
}

// PanMove applies the total drag delta since PanStart.
func (c *ModelViewer) PanMove(deltaX, deltaY float32) {
	c.RotationX = c.panStartX + deltaY*c.DragSensitivity
	c.RotationY = c.panStartY + deltaX*c.DragSensitivity
	c.Update()
}

// PanEnd ends a drag.
func (c *ModelViewer) PanEnd() {
	c.dragging = false
}

// Dragging reports whether a drag is in progress.
func (c *ModelViewer) Dragging() bool {
	return c.dragging
}

// Wheel turns the model with horizontal scroll and zooms with vertical
// scroll. Deltas are in pixels.
func (c *ModelViewer) Wheel(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.WheelSensitivity
	c.Distance -= deltaY * c.WheelSensitivity
	c.clampDistance()
	c.Update()
}

// PinchStart records the distance a pinch starts from.
func (c *ModelViewer) PinchStart() {
	c.pinchStart = c.Distance
}

// PinchMove zooms by the total pinch distance since PinchStart. Pinching out
// moves the camera closer.
func (c *ModelViewer) PinchMove(distance float32, out bool) {
	if out {
		c.Distance = c.pinchStart - c.PinchSensitivity*distance
	} else {
		c.Distance = c.pinchStart + c.PinchSensitivity*distance
	}
	c.clampDistance()
	c.Update()
}

func (c *ModelViewer) clampDistance() {
	if c.Distance < c.MinDistance {
		c.Distance = c.MinDistance
	}
	if c.Distance > c.MaxDistance {
		c.Distance = c.MaxDistance
	}
}

// Advance steps the auto rotation unless a drag is in progress.
func (c *ModelViewer) Advance() {
	if c.AutoRotate && !c.dragging {
		c.AutoRotationY += c.AutoRotateStep
	}
}

// Update recomputes the view, model, model-view and normal matrices.
func (c *ModelViewer) Update() {
	c.view = mgl32.Translate3D(0, 0, -c.Distance)
	c.model = mgl32.HomogRotate3DX(c.RotationX).Mul4(mgl32.HomogRotate3DY(c.RotationY + c.AutoRotationY))
	c.modelView = c.view.Mul4(c.model)
	c.normal = c.modelView.Mat3().Inv().Transpose()
}

// ToggleProjection switches between perspective and orthographic.
func (c *ModelViewer) ToggleProjection() Projection {
	if c.Projection == Perspective {
		c.Projection = Orthographic
	} else {
		c.Projection = Perspective
	}
	return c.Projection
}

// Resize rebuilds both projections for a window size and returns the
// drawable size.
func (c *ModelViewer) Resize(width, height int) (int, int) {
	factor := c.SampleFactor
	if factor <= 0 {
		factor = 1
	}
	c.width = max(1, int(float32(width)*factor))
	c.height = max(1, int(float32(height)*factor))

	ratio := float32(c.width) / float32(c.height)
	c.ortho = mgl32.Ortho(-ratio*OrthoExtent, ratio*OrthoExtent, -OrthoExtent, OrthoExtent, Near, Far)
	c.perspective = mgl32.Perspective(FieldOfView, ratio, Near, Far)
	return c.width, c.height
}

// Size returns the drawable size.
func (c *ModelViewer) Size() (int, int) {
	return c.width, c.height
}

// ProjectionMatrix returns the active projection.
func (c *ModelViewer) ProjectionMatrix() mgl32.Mat4 {
	if c.Projection == Orthographic {
		return c.ortho
	}
	return c.perspective
}

func (c *ModelViewer) ViewMatrix() mgl32.Mat4      { return c.view }
func (c *ModelViewer) ModelMatrix() mgl32.Mat4     { return c.model }
func (c *ModelViewer) ModelViewMatrix() mgl32.Mat4 { return c.modelView }
func (c *ModelViewer) NormalMatrix() mgl32.Mat3    { return c.normal }
