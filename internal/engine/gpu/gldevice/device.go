// Package gldevice implements gpu.Device on OpenGL 4.1 core.
// Every method must be called on the thread that owns the GL context.
package gldevice

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderbench/internal/engine/gpu"
	"github.com/Faultbox/shaderbench/internal/logger"
)

// Device is an OpenGL implementation of gpu.Device.
type Device struct {
	vao     uint32
	enabled map[uint32]struct{}
}

var _ gpu.Device = (*Device)(nil)

// New initializes OpenGL and binds the single vertex array object the core
// profile requires.
// IMPORTANT: Must be called AFTER the OpenGL context is created!
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		zap.String("glsl", gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))),
	)

	d := &Device{enabled: make(map[uint32]struct{})}
	gl.GenVertexArrays(1, &d.vao)
	if d.vao == 0 {
		return nil, fmt.Errorf("vertex array: %w", gpu.ErrResource)
	}
	gl.BindVertexArray(d.vao)
	return d, nil
}

// Close deletes the vertex array object.
func (d *Device) Close() {
	if d.vao != 0 {
		gl.BindVertexArray(0)
		gl.DeleteVertexArrays(1, &d.vao)
		d.vao = 0
	}
}

func (d *Device) NewVertexBuffer(data []float32) (gpu.Buffer, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty vertex buffer: %w", gpu.ErrResource)
	}
	return d.newBuffer(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data))
}

func (d *Device) NewIndexBuffer(data []uint16) (gpu.Buffer, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty index buffer: %w", gpu.ErrResource)
	}
	return d.newBuffer(gl.ELEMENT_ARRAY_BUFFER, len(data)*2, gl.Ptr(data))
}

func (d *Device) newBuffer(target uint32, size int, ptr unsafe.Pointer) (gpu.Buffer, error) {
	var id uint32
	gl.GenBuffers(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("gen buffer: %w", gpu.ErrResource)
	}
	gl.BindBuffer(target, id)
	gl.BufferData(target, size, ptr, gl.STATIC_DRAW)
	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteBuffers(1, &id)
		return 0, fmt.Errorf("buffer data (0x%x): %w", code, gpu.ErrResource)
	}
	return gpu.Buffer(id), nil
}

func (d *Device) NewTexture(img *image.RGBA) (gpu.Texture, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 || len(img.Pix) == 0 {
		return 0, fmt.Errorf("empty image: %w", gpu.ErrResource)
	}

	var id uint32
	gl.GenTextures(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("gen texture: %w", gpu.ErrResource)
	}
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteTextures(1, &id)
		return 0, fmt.Errorf("texture upload (0x%x): %w", code, gpu.ErrResource)
	}
	return gpu.Texture(id), nil
}

func (d *Device) DeleteBuffer(b gpu.Buffer) {
	id := uint32(b)
	gl.DeleteBuffers(1, &id)
}

func (d *Device) DeleteTexture(t gpu.Texture) {
	id := uint32(t)
	gl.DeleteTextures(1, &id)
}

func (d *Device) CompileShader(stage gpu.Stage, source string) (gpu.Shader, error) {
	kind := uint32(gl.VERTEX_SHADER)
	if stage == gpu.StageFragment {
		kind = gl.FRAGMENT_SHADER
	}

	shader := gl.CreateShader(kind)
	if shader == 0 {
		return 0, fmt.Errorf("create %s shader: %w", stage, gpu.ErrResource)
	}
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, &gpu.CompileError{Stage: stage, Log: gl.GoStr(&log[0])}
	}
	return gpu.Shader(shader), nil
}

func (d *Device) DeleteShader(s gpu.Shader) {
	gl.DeleteShader(uint32(s))
}

func (d *Device) LinkProgram(vs, fs gpu.Shader) (gpu.Program, error) {
	program := gl.CreateProgram()
	if program == 0 {
		return 0, fmt.Errorf("create program: %w", gpu.ErrResource)
	}
	gl.AttachShader(program, uint32(vs))
	gl.AttachShader(program, uint32(fs))
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(program, logLen, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, &gpu.LinkError{Log: gl.GoStr(&log[0])}
	}

	gl.DetachShader(program, uint32(vs))
	gl.DetachShader(program, uint32(fs))
	return gpu.Program(program), nil
}

func (d *Device) DeleteProgram(p gpu.Program) {
	gl.DeleteProgram(uint32(p))
}

func (d *Device) AttribLocation(p gpu.Program, name string) int32 {
	return gl.GetAttribLocation(uint32(p), gl.Str(name+"\x00"))
}

func (d *Device) UniformLocation(p gpu.Program, name string) int32 {
	return gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00"))
}

func (d *Device) Viewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

// ReadPixels reads the back buffer as bottom-up RGBA rows.
func (d *Device) ReadPixels(width, height int) []byte {
	pixels := make([]byte, width*height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels
}

func (d *Device) BeginFrame(clear [4]float32) {
	gl.ClearColor(clear[0], clear[1], clear[2], clear[3])
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (d *Device) UseProgram(p gpu.Program) {
	gl.UseProgram(uint32(p))
}

// ResetAttributes disables every attribute array enabled since the last reset.
func (d *Device) ResetAttributes() {
	for loc := range d.enabled {
		gl.DisableVertexAttribArray(loc)
	}
	clear(d.enabled)
}

func (d *Device) BindAttribute(loc int32, b gpu.Buffer, size int32) {
	if loc < 0 {
		return
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b))
	gl.VertexAttribPointer(uint32(loc), size, gl.FLOAT, false, 0, nil)
	gl.EnableVertexAttribArray(uint32(loc))
	d.enabled[uint32(loc)] = struct{}{}
}

func (d *Device) BindIndexBuffer(b gpu.Buffer) {
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, uint32(b))
}

func (d *Device) BindTexture(unit int32, t gpu.Texture, sampler int32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(t))
	if sampler >= 0 {
		gl.Uniform1i(sampler, unit)
	}
}

func (d *Device) UniformVector(loc int32, n int, v []float32) error {
	if len(v) != n {
		return fmt.Errorf("vector uniform wants %d components, got %d", n, len(v))
	}
	clearErrors()
	switch n {
	case 1:
		gl.Uniform1f(loc, v[0])
	case 2:
		gl.Uniform2fv(loc, 1, &v[0])
	case 3:
		gl.Uniform3fv(loc, 1, &v[0])
	case 4:
		gl.Uniform4fv(loc, 1, &v[0])
	default:
		return fmt.Errorf("unsupported vector size %d", n)
	}
	return checkError("uniform vector")
}

func (d *Device) UniformMatrix(loc int32, n int, v []float32) error {
	if len(v) != n*n {
		return fmt.Errorf("matrix uniform wants %d components, got %d", n*n, len(v))
	}
	clearErrors()
	switch n {
	case 2:
		gl.UniformMatrix2fv(loc, 1, false, &v[0])
	case 3:
		gl.UniformMatrix3fv(loc, 1, false, &v[0])
	case 4:
		gl.UniformMatrix4fv(loc, 1, false, &v[0])
	default:
		return fmt.Errorf("unsupported matrix size %d", n)
	}
	return checkError("uniform matrix")
}

func (d *Device) DrawIndexed(mode gpu.Primitive, count int32) {
	gl.DrawElements(uint32(mode), count, gl.UNSIGNED_SHORT, nil)
}

// getError is swapped in tests, which run without a GL context.
var getError = gl.GetError

// maxPendingErrors bounds clearErrors; a lost context can report errors
// forever.
const maxPendingErrors = 32

// clearErrors drops errors left by earlier calls so checkError only sees
// what the next call raises.
func clearErrors() {
	for i := 0; i < maxPendingErrors && getError() != gl.NO_ERROR; i++ {
	}
}

// checkError reports the first pending GL error, typically a type mismatch
// between the uploaded value and the uniform the shader declares.
func checkError(op string) error {
	if code := getError(); code != gl.NO_ERROR {
		return fmt.Errorf("%s: GL error 0x%x", op, code)
	}
	return nil
}
