// Package shader implements the live compile/link pipeline: two source stages,
// each compiled on every edit, and an active program that is only replaced
// by a successful link.
package shader

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderbench/internal/engine/gpu"
	"github.com/Faultbox/shaderbench/internal/logger"
)

// Attribute and sampler names a program may declare.
const (
	AttrPosition = "aPosition"
	AttrColor    = "aColor"
	AttrNormal   = "aNormal"
	AttrTexCoord = "aTextureCoord"

	SamplerUniform = "uSampler"
)

// Status is the outcome of the most recent compile of a stage.
type Status int

const (
	StatusEmpty Status = iota
	StatusCompiled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusCompiled:
		return "compiled"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Attributes holds the resolved attribute locations of a program.
// Absent attributes are gpu.NoLocation.
type Attributes struct {
	Position int32
	Color    int32
	Normal   int32
	TexCoord int32
}

// Program is a linked program with its resolved locations.
type Program struct {
	Handle     gpu.Program
	Attributes Attributes

	dev      gpu.ShaderDevice
	uniforms map[string]int32
}

func newProgram(dev gpu.ShaderDevice, handle gpu.Program) *Program {
	return &Program{
		Handle: handle,
		Attributes: Attributes{
			Position: dev.AttribLocation(handle, AttrPosition),
			Color:    dev.AttribLocation(handle, AttrColor),
			Normal:   dev.AttribLocation(handle, AttrNormal),
			TexCoord: dev.AttribLocation(handle, AttrTexCoord),
		},
		dev:      dev,
		uniforms: make(map[string]int32),
	}
}

// UniformLocation returns the location of a uniform, or gpu.NoLocation when
// the program does not use it. Lookups are cached for the program's lifetime.
func (p *Program) UniformLocation(name string) int32 {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	loc := p.dev.UniformLocation(p.Handle, name)
	p.uniforms[name] = loc
	return loc
}

// Diagnostics are the messages of the last compile of each stage and of the
// last link attempt. Empty strings mean success.
type Diagnostics struct {
	Vertex   string
	Fragment string
	Link     string
}

// OK reports whether there is nothing to show.
func (d Diagnostics) OK() bool {
	return d.Vertex == "" && d.Fragment == "" && d.Link == ""
}

func (d Diagnostics) String() string {
	var parts []string
	if d.Vertex != "" {
		parts = append(parts, "vertex: "+d.Vertex)
	}
	if d.Fragment != "" {
		parts = append(parts, "fragment: "+d.Fragment)
	}
	if d.Link != "" {
		parts = append(parts, "link: "+d.Link)
	}
	return strings.Join(parts, "\n")
}

type stage struct {
	source string
	shader gpu.Shader
	status Status
	diag   string
}

// Pipeline tracks both stages and the active program.
type Pipeline struct {
	dev      gpu.ShaderDevice
	stages   [2]stage
	active   *Program
	linkDiag string
	log      *zap.Logger
}

// NewPipeline creates an empty pipeline. Nothing is drawable until both
// stages compile and link.
func NewPipeline(dev gpu.ShaderDevice) *Pipeline {
	return &Pipeline{dev: dev, log: logger.Named("shader")}
}

// SetVertexSource compiles new vertex source and relinks on success.
func (p *Pipeline) SetVertexSource(src string) error {
	return p.setSource(gpu.StageVertex, src)
}

// SetFragmentSource compiles new fragment source and relinks on success.
func (p *Pipeline) SetFragmentSource(src string) error {
	return p.setSource(gpu.StageFragment, src)
}

func (p *Pipeline) setSource(st gpu.Stage, src string) error {
	s := &p.stages[st]
	s.source = src

	sh, err := p.dev.CompileShader(st, src)
	if err != nil {
		// The stale handle no longer matches the source being edited.
		if s.shader != 0 {
			p.dev.DeleteShader(s.shader)
			s.shader = 0
		}
		s.status = StatusFailed
		s.diag = diagnostic(err)
		p.log.Warn("compile failed", zap.Stringer("stage", st), zap.String("log", s.diag))
		return err
	}

	if s.shader != 0 {
		p.dev.DeleteShader(s.shader)
	}
	s.shader = sh
	s.status = StatusCompiled
	s.diag = ""
	p.log.Debug("compiled", zap.Stringer("stage", st))

	return p.Relink()
}

// Relink links the two compiled stages into a new active program. It does
// nothing unless both stages compiled on their latest attempt. On failure the
// previous program stays active.
func (p *Pipeline) Relink() error {
	vs, fs := &p.stages[gpu.StageVertex], &p.stages[gpu.StageFragment]
	if vs.status != StatusCompiled || fs.status != StatusCompiled {
		return nil
	}

	handle, err := p.dev.LinkProgram(vs.shader, fs.shader)
	if err != nil {
		p.linkDiag = diagnostic(err)
		p.log.Warn("link failed", zap.String("log", p.linkDiag))
		return err
	}

	prev := p.active
	p.active = newProgram(p.dev, handle)
	p.linkDiag = ""
	if prev != nil {
		p.dev.DeleteProgram(prev.Handle)
	}

	a := p.active.Attributes
	p.log.Info("program linked",
		zap.Uint32("program", uint32(handle)),
		zap.Int32("aPosition", a.Position),
		zap.Int32("aColor", a.Color),
		zap.Int32("aNormal", a.Normal),
		zap.Int32("aTextureCoord", a.TexCoord),
	)
	return nil
}

// Recompile compiles both stored sources again, e.g. after the driver lost
// them or the user asked for it.
func (p *Pipeline) Recompile() error {
	var errs []error
	for _, st := range []gpu.Stage{gpu.StageVertex, gpu.StageFragment} {
		if p.stages[st].status == StatusEmpty {
			continue
		}
		if err := p.setSource(st, p.stages[st].source); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Active returns the program to draw with, or nil.
func (p *Pipeline) Active() *Program {
	return p.active
}

// Status returns the status of a stage.
func (p *Pipeline) Status(st gpu.Stage) Status {
	return p.stages[st].status
}

// Source returns the most recent source of a stage.
func (p *Pipeline) Source(st gpu.Stage) string {
	return p.stages[st].source
}

// Diagnostics returns the current compile and link messages.
func (p *Pipeline) Diagnostics() Diagnostics {
	return Diagnostics{
		Vertex:   p.stages[gpu.StageVertex].diag,
		Fragment: p.stages[gpu.StageFragment].diag,
		Link:     p.linkDiag,
	}
}

// Close releases the stage shaders and the active program.
func (p *Pipeline) Close() {
	for i := range p.stages {
		if p.stages[i].shader != 0 {
			p.dev.DeleteShader(p.stages[i].shader)
		}
		p.stages[i] = stage{}
	}
	if p.active != nil {
		p.dev.DeleteProgram(p.active.Handle)
		p.active = nil
	}
}

func diagnostic(err error) string {
	var ce *gpu.CompileError
	if errors.As(err, &ce) {
		return strings.TrimSpace(ce.Log)
	}
	var le *gpu.LinkError
	if errors.As(err, &le) {
		return strings.TrimSpace(le.Log)
	}
	return err.Error()
}
