package shader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/shaderbench/internal/engine/gpu"
	"github.com/Faultbox/shaderbench/internal/engine/gpu/gputest"
)

const (
	vertexSrc = `#version 410 core
in vec3 aPosition;
in vec3 aNormal;
uniform mat4 projectionMatrix;
void main() { gl_Position = projectionMatrix * vec4(aPosition, 1.0); }`

	fragmentSrc = `#version 410 core
out vec4 fragColor;
void main() { fragColor = vec4(1.0); }`
)

func linked(t *testing.T) (*Pipeline, *gputest.Device) {
	t.Helper()
	dev := gputest.New()
	p := NewPipeline(dev)
	require.NoError(t, p.SetVertexSource(vertexSrc))
	require.NoError(t, p.SetFragmentSource(fragmentSrc))
	require.NotNil(t, p.Active())
	return p, dev
}

func TestPipeline_NoProgramUntilBothStages(t *testing.T) {
	dev := gputest.New()
	p := NewPipeline(dev)
	assert.Equal(t, StatusEmpty, p.Status(gpu.StageVertex))

	require.NoError(t, p.SetVertexSource(vertexSrc))
	assert.Equal(t, StatusCompiled, p.Status(gpu.StageVertex))
	assert.Equal(t, StatusEmpty, p.Status(gpu.StageFragment))
	assert.Nil(t, p.Active())
	assert.Empty(t, dev.Programs)

	require.NoError(t, p.Relink())
	assert.Nil(t, p.Active())
}

func TestPipeline_ResolvesAttributes(t *testing.T) {
	p, _ := linked(t)
	a := p.Active().Attributes

	assert.NotEqual(t, gpu.NoLocation, a.Position)
	assert.NotEqual(t, gpu.NoLocation, a.Normal)
	assert.Equal(t, gpu.NoLocation, a.Color)
	assert.Equal(t, gpu.NoLocation, a.TexCoord)

	assert.NotEqual(t, gpu.NoLocation, p.Active().UniformLocation("projectionMatrix"))
	assert.Equal(t, gpu.NoLocation, p.Active().UniformLocation("time"))
	assert.Equal(t, gpu.NoLocation, p.Active().UniformLocation(SamplerUniform))
}

func TestPipeline_CompileErrorKeepsProgram(t *testing.T) {
	p, dev := linked(t)
	prev := p.Active()

	err := p.SetVertexSource(vertexSrc + "\n#error broken")
	var ce *gpu.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, gpu.StageVertex, ce.Stage)

	assert.Equal(t, StatusFailed, p.Status(gpu.StageVertex))
	assert.Same(t, prev, p.Active(), "previous program must stay active")
	assert.True(t, dev.Programs[prev.Handle])

	d := p.Diagnostics()
	assert.Contains(t, d.Vertex, "#error")
	assert.Empty(t, d.Fragment)
	assert.False(t, d.OK())

	// A failed stage blocks relinking even if the other stage changes.
	require.NoError(t, p.SetFragmentSource(fragmentSrc+"\n// edit"))
	assert.Same(t, prev, p.Active())

	// Fixing the vertex stage links a replacement and frees the old program.
	require.NoError(t, p.SetVertexSource(vertexSrc))
	assert.NotSame(t, prev, p.Active())
	assert.False(t, dev.Programs[prev.Handle])
	assert.True(t, p.Diagnostics().OK())
}

func TestPipeline_LinkErrorKeepsProgram(t *testing.T) {
	p, _ := linked(t)
	prev := p.Active()

	err := p.SetFragmentSource(fragmentSrc + "\n" + gputest.LinkFailMarker)
	var le *gpu.LinkError
	require.True(t, errors.As(err, &le))

	assert.Equal(t, StatusCompiled, p.Status(gpu.StageFragment))
	assert.Same(t, prev, p.Active())
	assert.NotEmpty(t, p.Diagnostics().Link)
	assert.Contains(t, p.Diagnostics().String(), "link: ")
}

func TestPipeline_RelinkReplacesProgram(t *testing.T) {
	p, dev := linked(t)
	prev := p.Active()

	require.NoError(t, p.Relink())
	assert.NotSame(t, prev, p.Active())
	assert.Len(t, dev.Programs, 1)
}

func TestPipeline_Recompile(t *testing.T) {
	p, dev := linked(t)
	prev := p.Active()

	require.NoError(t, p.Recompile())
	assert.NotSame(t, prev, p.Active())
	assert.Len(t, dev.Shaders, 2)
	assert.Equal(t, vertexSrc, p.Source(gpu.StageVertex))
}

func TestPipeline_Close(t *testing.T) {
	p, dev := linked(t)
	p.Close()

	assert.Nil(t, p.Active())
	assert.Zero(t, dev.Live())
	assert.Equal(t, StatusEmpty, p.Status(gpu.StageFragment))
}
