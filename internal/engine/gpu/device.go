// Package gpu defines the graphics device boundary: opaque handles, the
// device interfaces the shader pipeline and frame renderer drive, and the
// binder that turns decoded models into GPU resources.
package gpu

import (
	"errors"
	"fmt"
	"image"
)

// Opaque GPU object handles. Zero is never a valid handle.
type (
	Buffer  uint32
	Texture uint32
	Shader  uint32
	Program uint32
)

// NoLocation marks an attribute or uniform the program does not expose.
const NoLocation int32 = -1

// Stage identifies a shader stage.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Primitive is a draw mode. Values match the GL enums.
type Primitive uint32

const (
	Points    Primitive = 0x0000
	Lines     Primitive = 0x0001
	Triangles Primitive = 0x0004
)

// ErrResource is wrapped by every handle-creation failure.
var ErrResource = errors.New("gpu resource creation failed")

// CompileError carries the compiler log of a failed shader stage.
type CompileError struct {
	Stage Stage
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s shader: %s", e.Stage, e.Log)
}

// LinkError carries the linker log of a failed program.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return "link: " + e.Log
}

// ResourceDevice creates and frees buffers and textures.
type ResourceDevice interface {
	NewVertexBuffer(data []float32) (Buffer, error)
	NewIndexBuffer(data []uint16) (Buffer, error)
	NewTexture(img *image.RGBA) (Texture, error)
	DeleteBuffer(b Buffer)
	DeleteTexture(t Texture)
}

// ShaderDevice compiles and links shader programs.
// CompileShader returns a *CompileError and LinkProgram a *LinkError when the
// driver rejects the source.
type ShaderDevice interface {
	CompileShader(stage Stage, source string) (Shader, error)
	DeleteShader(s Shader)
	LinkProgram(vs, fs Shader) (Program, error)
	DeleteProgram(p Program)
	AttribLocation(p Program, name string) int32
	UniformLocation(p Program, name string) int32
}

// DrawDevice issues per-frame state changes and draw calls.
type DrawDevice interface {
	Viewport(width, height int)
	BeginFrame(clear [4]float32)
	UseProgram(p Program)
	ResetAttributes()
	BindAttribute(loc int32, b Buffer, size int32)
	BindIndexBuffer(b Buffer)
	BindTexture(unit int32, t Texture, sampler int32)
	// UniformVector uploads a float or an n-component vector.
	UniformVector(loc int32, n int, v []float32) error
	// UniformMatrix uploads an n×n column-major matrix.
	UniformMatrix(loc int32, n int, v []float32) error
	DrawIndexed(mode Primitive, count int32)
}

// Device is the complete graphics device.
type Device interface {
	ResourceDevice
	ShaderDevice
	DrawDevice
}
