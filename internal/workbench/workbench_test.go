package workbench

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/shaderbench/internal/config"
	"github.com/Faultbox/shaderbench/internal/engine/camera"
	"github.com/Faultbox/shaderbench/internal/engine/gpu/gputest"
	"github.com/Faultbox/shaderbench/internal/workbench/shaders"
	"github.com/Faultbox/shaderbench/pkg/grf"
)

const (
	triangle = `{"metadata":{"formatVersion":3.1},"vertices":[0,0,0,1,0,0,0,1,0],"faces":[0,0,1,2]}`
	quad     = `{"metadata":{"formatVersion":3.1},"vertices":[0,0,0,1,0,0,1,1,0,0,1,0],"faces":[1,0,1,2,3]}`
	index    = `{"models":{"Triangle":"triangle.json","Quad":"quad.json","Broken":"broken.json"}}`
)

type fixture struct {
	dir string
	dev *gputest.Device
	wb  *Workbench
}

func newFixture(t *testing.T, modify func(*config.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()
	models := filepath.Join(dir, "models")
	require.NoError(t, os.MkdirAll(models, 0o755))
	for name, body := range map[string]string{
		"index.json":    index,
		"triangle.json": triangle,
		"quad.json":     quad,
		"broken.json":   `{"metadata":{"formatVersion":2}}`,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(models, name), []byte(body), 0o644))
	}

	cfg := config.Default()
	cfg.Workspace.Dir = filepath.Join(dir, "work")
	cfg.Models.Source = models
	if modify != nil {
		modify(cfg)
	}

	dev := gputest.New()
	wb, err := New(context.Background(), cfg, dev)
	require.NoError(t, err)
	t.Cleanup(wb.Close)
	return &fixture{dir: dir, dev: dev, wb: wb}
}

func (f *fixture) workPath(name string) string {
	return filepath.Join(f.dir, "work", name)
}

// settle runs Update until cond holds.
func (f *fixture) settle(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.wb.Update()
		return cond()
	}, 3*time.Second, 10*time.Millisecond)
}

// edit replaces a workspace file by rename, the way many editors save, so
// the watcher never sees it half written.
func (f *fixture) edit(t *testing.T, name, text string) {
	t.Helper()
	tmp := f.workPath("." + name + ".tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(text), 0o644))
	require.NoError(t, os.Rename(tmp, f.workPath(name)))
}

func (f *fixture) ready() bool {
	st := f.wb.State()
	return st.Model != nil && st.Ready && f.wb.Status() == "ok"
}

func TestNew_CreatesWorkspaceFromDefaults(t *testing.T) {
	f := newFixture(t, nil)

	for name, want := range map[string]string{
		"shader.vert":   shaders.VertexShader,
		"shader.frag":   shaders.FragmentShader,
		"uniforms.yaml": shaders.UniformSheet,
	} {
		data, err := os.ReadFile(f.workPath(name))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(data), name)
	}

	assert.NotNil(t, f.wb.Pipeline().Active())
	user := f.wb.Registry().Mutable()
	require.Len(t, user, 3)
	assert.Equal(t, "lightDirection", user[0].Name())
	assert.NoError(t, user[0].Err())
}

func TestNew_LoadsFirstIndexedModel(t *testing.T) {
	f := newFixture(t, nil)
	require.Len(t, f.wb.Models(), 3)

	f.settle(t, f.ready)
	assert.Equal(t, "Triangle", f.wb.ModelName())
	assert.Contains(t, f.wb.Title(), "Triangle")
	assert.Contains(t, f.wb.Title(), "[ok]")

	res := f.wb.Frame()
	assert.True(t, res.Drawn)
	assert.Empty(t, res.UniformErrors)
	require.Len(t, f.dev.Draws, 1)
	assert.Equal(t, int32(3), f.dev.Draws[0].Count)
}

func TestNew_DefaultModelByName(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Models.Default = "Quad" })
	f.settle(t, f.ready)
	assert.Equal(t, "Quad", f.wb.ModelName())
}

func TestNew_MissingModelSource(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Models.Source = filepath.Join(t.TempDir(), "nope") })

	assert.Empty(t, f.wb.Models())
	f.wb.Update()
	assert.Equal(t, "no model", f.wb.ModelName())
	assert.False(t, f.wb.Frame().Drawn)
}

func TestNew_ArchiveModelSource(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		out := filepath.Join(filepath.Dir(c.Models.Source), "models.grf")
		_, err := grf.PackDir(c.Models.Source, out)
		require.NoError(t, err)
		require.NoError(t, os.RemoveAll(c.Models.Source))
		c.Models.Source = out
		c.Models.Default = "Quad"
	})

	require.Len(t, f.wb.Models(), 3)
	f.settle(t, f.ready)
	assert.Equal(t, "Quad", f.wb.ModelName())
}

func TestNew_AppliesViewerConfig(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Viewer.AutoRotate = false
		c.Viewer.Projection = "orthographic"
		c.Viewer.CameraDistance = 9
	})
	cam := f.wb.Camera()
	assert.False(t, cam.AutoRotate)
	assert.Equal(t, camera.Orthographic, cam.Projection)
	assert.Equal(t, float32(9), cam.Distance)

	assert.True(t, f.wb.ToggleAutoRotate())
	assert.Equal(t, camera.Perspective, f.wb.ToggleProjection())
}

func TestNextModel_Wraps(t *testing.T) {
	f := newFixture(t, nil)
	f.settle(t, f.ready)

	e, ok := f.wb.NextModel(1)
	require.True(t, ok)
	assert.Equal(t, "Quad", e.Name)
	f.settle(t, f.ready)
	assert.Equal(t, "Quad", f.wb.ModelName())

	e, _ = f.wb.NextModel(-2)
	assert.Equal(t, "Broken", e.Name)
	f.settle(t, func() bool { return f.wb.Status() == "model failed" })
	assert.Equal(t, "Quad", f.wb.ModelName(), "failed load keeps the previous model")
	assert.True(t, f.wb.Frame().Drawn)

	e, _ = f.wb.NextModel(1)
	assert.Equal(t, "Triangle", e.Name)
}

func TestAddAndRemoveUniform_WriteSheet(t *testing.T) {
	f := newFixture(t, nil)

	u := f.wb.AddUniform()
	assert.Equal(t, "newUniform", u.Name())
	data, err := os.ReadFile(f.workPath("uniforms.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "newUniform")

	prog := f.wb.Pipeline().Active()
	require.True(t, f.wb.RemoveLastUniform())
	assert.NotSame(t, prog, f.wb.Pipeline().Active(), "removal relinks")

	data, err = os.ReadFile(f.workPath("uniforms.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "newUniform")

	for f.wb.RemoveLastUniform() {
	}
	assert.Empty(t, f.wb.Registry().Mutable())
	assert.Equal(t, 3, f.wb.Registry().Len(), "built-ins are never removed")
}

func TestSheetEdit_SyncsRegistry(t *testing.T) {
	f := newFixture(t, nil)

	sheet := "- name: time\n  value: 2\n- name: \"\"\n  type: vec2\n  value: 1 2\n"
	f.edit(t, "uniforms.yaml", sheet)

	f.settle(t, func() bool {
		user := f.wb.Registry().Mutable()
		return len(user) == 2 && user[0].Name() == "time"
	})

	user := f.wb.Registry().Mutable()
	assert.Equal(t, "newUniform", user[1].Name())

	data, err := os.ReadFile(f.workPath("uniforms.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "newUniform", "auto names are written back")
}

func TestShaderEdit_RecompilesAndKeepsProgramOnError(t *testing.T) {
	f := newFixture(t, nil)
	prog := f.wb.Pipeline().Active()
	require.NotNil(t, prog)

	broken := shaders.FragmentShader + "\n#error\n"
	f.edit(t, "shader.frag", broken)

	f.settle(t, func() bool { return f.wb.Status() == "fragment shader error" })
	assert.Same(t, prog, f.wb.Pipeline().Active())
	assert.NotEmpty(t, f.wb.Pipeline().Diagnostics().Fragment)

	f.edit(t, "shader.frag", shaders.FragmentShader)
	f.settle(t, func() bool { return f.wb.Pipeline().Diagnostics().OK() })
	assert.NotSame(t, prog, f.wb.Pipeline().Active())
}

func TestRecompile(t *testing.T) {
	f := newFixture(t, nil)
	prog := f.wb.Pipeline().Active()

	require.NoError(t, f.wb.Recompile())
	assert.NotSame(t, prog, f.wb.Pipeline().Active())

	require.NoError(t, os.WriteFile(f.workPath("shader.vert"), []byte("#error"), 0o644))
	assert.Error(t, f.wb.Recompile())
	assert.Equal(t, "vertex shader error", f.wb.Status())
}

func TestSessionRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	path := filepath.Join(f.wb.SessionDir(), "glow.json")

	require.NoError(t, f.wb.SaveSession(path))
	assert.Equal(t, "glow", f.wb.SessionName())
	assert.Equal(t, path, f.wb.DefaultSessionPath())

	f.wb.AddUniform()
	require.NoError(t, os.WriteFile(f.workPath("shader.vert"), []byte("changed"), 0o644))
	_, _ = f.wb.vs.Reload()

	require.NoError(t, f.wb.OpenSession(path))

	user := f.wb.Registry().Mutable()
	require.Len(t, user, 3)
	assert.Equal(t, "ambient", user[2].Name())
	assert.Equal(t, 6, f.wb.Registry().Len())

	data, err := os.ReadFile(f.workPath("shader.vert"))
	require.NoError(t, err)
	assert.Equal(t, shaders.VertexShader, string(data))

	sheet, err := os.ReadFile(f.workPath("uniforms.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(sheet), "newUniform")
	assert.NotNil(t, f.wb.Pipeline().Active())
}

func TestOpenSession_WriteFailureKeepsState(t *testing.T) {
	f := newFixture(t, nil)
	path := filepath.Join(f.wb.SessionDir(), "glow.json")
	require.NoError(t, f.wb.SaveSession(path))

	f.wb.AddUniform()
	require.NoError(t, os.WriteFile(f.workPath("shader.vert"), []byte("changed"), 0o644))
	_, _ = f.wb.vs.Reload()

	// A directory in place of the fragment file makes its write fail.
	require.NoError(t, os.Remove(f.workPath("shader.frag")))
	require.NoError(t, os.Mkdir(f.workPath("shader.frag"), 0o755))

	require.Error(t, f.wb.OpenSession(path))
	assert.Len(t, f.wb.Registry().Mutable(), 4, "registry untouched")

	data, err := os.ReadFile(f.workPath("shader.vert"))
	require.NoError(t, err)
	assert.Equal(t, "changed", string(data), "vertex source restored")
	assert.Equal(t, "changed", f.wb.vs.Text())
}

func TestOpenSession_Invalid(t *testing.T) {
	f := newFixture(t, nil)
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"x"}`), 0o644))

	err := f.wb.OpenSession(path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bad.json"))
	assert.Len(t, f.wb.Registry().Mutable(), 3, "registry untouched")

	assert.Error(t, f.wb.OpenSession(filepath.Join(t.TempDir(), "missing.json")))
}
