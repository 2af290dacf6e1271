// Package workbench ties the workspace files, the model scene and the render
// state together. It owns no window: the app turns input into calls on the
// Workbench and drives Update and Frame once per frame on the render thread.
package workbench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderbench/internal/assets"
	"github.com/Faultbox/shaderbench/internal/config"
	"github.com/Faultbox/shaderbench/internal/editor"
	"github.com/Faultbox/shaderbench/internal/engine/camera"
	"github.com/Faultbox/shaderbench/internal/engine/gpu"
	"github.com/Faultbox/shaderbench/internal/engine/renderer"
	"github.com/Faultbox/shaderbench/internal/engine/scene"
	"github.com/Faultbox/shaderbench/internal/engine/shader"
	"github.com/Faultbox/shaderbench/internal/logger"
	"github.com/Faultbox/shaderbench/internal/session"
	"github.com/Faultbox/shaderbench/internal/uniform"
	"github.com/Faultbox/shaderbench/internal/workbench/shaders"
	"github.com/Faultbox/shaderbench/pkg/formats"
)

// Workbench is one editing session: two shader files, a uniform sheet and
// the model they are previewed on.
type Workbench struct {
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger

	camera   *camera.ModelViewer
	registry *uniform.Registry
	pipeline *shader.Pipeline
	state    *renderer.RenderState
	renderer *renderer.Renderer
	binder   *gpu.Binder
	assets   *assets.Manager
	loader   *assets.Loader
	scene    *scene.Scene

	vs, fs, sheet *editor.FileSource
	watcher       *editor.Watcher
	watched       map[string]*editor.FileSource

	models  []formats.ModelIndexEntry
	current int
	session string
}

// New opens the workspace, compiles its shaders and starts loading the
// default model. The GL context behind dev must be current. Shader, sheet
// and model problems are logged and shown, never returned; only a workspace
// that cannot be created is an error.
func New(ctx context.Context, cfg *config.Config, dev gpu.Device) (*Workbench, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := &Workbench{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		log:     logger.Named("workbench"),
		watched: make(map[string]*editor.FileSource),
		session: session.DefaultName,
	}

	cam := camera.NewModelViewer()
	cam.AutoRotate = cfg.Viewer.AutoRotate
	cam.Distance = cfg.Viewer.CameraDistance
	cam.Projection = camera.ParseProjection(cfg.Viewer.Projection)
	cam.SampleFactor = cfg.Graphics.SampleFactor
	cam.Update()
	w.camera = cam

	w.registry = uniform.NewRegistry(cam)
	w.pipeline = shader.NewPipeline(dev)
	w.state = &renderer.RenderState{
		Camera:     cam,
		Registry:   w.registry,
		Pipeline:   w.pipeline,
		ClearColor: cfg.Graphics.ClearColor,
	}
	w.renderer = renderer.New(dev, w.state)
	w.binder = gpu.NewBinder(dev)

	if err := w.openWorkspace(); err != nil {
		cancel()
		return nil, err
	}

	w.assets = assets.NewManager()
	if src, err := assets.NewSource(cfg.Models.Source); err != nil {
		w.log.Warn("model source unavailable", zap.String("source", cfg.Models.Source), zap.Error(err))
	} else {
		w.assets.AddSource(src)
		w.log.Info("model source", zap.Stringer("source", src))
	}
	w.loader = assets.NewLoader(w.assets, cfg.Viewer.FlipTextures)
	w.scene = scene.New(ctx, w.state, w.binder, w.loader)

	_ = w.pipeline.SetVertexSource(w.vs.Text())
	_ = w.pipeline.SetFragmentSource(w.fs.Text())
	w.syncSheet()

	w.loadIndex()
	if path := w.defaultModel(); path != "" {
		w.LoadModel(path)
	}
	return w, nil
}

func (w *Workbench) openWorkspace() error {
	ws := w.cfg.Workspace
	var err error
	if w.vs, err = editor.OpenFile(w.cfg.WorkspacePath(ws.VertexShader), shaders.VertexShader); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if w.fs, err = editor.OpenFile(w.cfg.WorkspacePath(ws.FragmentShader), shaders.FragmentShader); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if w.sheet, err = editor.OpenFile(w.cfg.WorkspacePath(ws.Uniforms), shaders.UniformSheet); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}

	w.watcher, err = editor.NewWatcher()
	if err != nil {
		// Editing still works through R and session loads.
		w.log.Warn("live reload disabled", zap.Error(err))
		return nil
	}
	for _, f := range []*editor.FileSource{w.vs, w.fs, w.sheet} {
		if err := w.watcher.Add(f.Path()); err != nil {
			w.log.Warn("cannot watch workspace file", zap.String("path", f.Path()), zap.Error(err))
			continue
		}
		abs, _ := filepath.Abs(f.Path())
		w.watched[abs] = f
	}
	w.log.Info("workspace open",
		zap.String("vertex", w.vs.Path()),
		zap.String("fragment", w.fs.Path()),
		zap.String("uniforms", w.sheet.Path()),
	)
	return nil
}

func (w *Workbench) loadIndex() {
	if w.cfg.Models.Index == "" {
		return
	}
	idx, err := w.loader.LoadIndex(w.ctx, w.cfg.Models.Index)
	if err != nil {
		w.log.Warn("no model index", zap.Error(err))
		return
	}
	w.models = idx.Entries
	w.log.Info("model index loaded", zap.Int("models", len(w.models)))
}

// defaultModel resolves the configured default as a display name first and
// as a path second. Without one the first indexed model is used.
func (w *Workbench) defaultModel() string {
	name := w.cfg.Models.Default
	for i, e := range w.models {
		if e.Name == name || (name == "" && i == 0) {
			w.current = i
			return e.Path
		}
	}
	return name
}

// Update applies workspace edits and finished model loads. Call it once per
// frame before Frame.
func (w *Workbench) Update() {
	if w.watcher != nil {
		for _, path := range w.watcher.Poll() {
			if f, ok := w.watched[path]; ok {
				w.reload(f)
			}
		}
	}
	w.scene.Poll()
}

func (w *Workbench) reload(f *editor.FileSource) {
	changed, err := f.Reload()
	if err != nil {
		// Editors that save by rename briefly leave no file behind.
		w.log.Debug("reload failed", zap.String("path", f.Path()), zap.Error(err))
		return
	}
	if !changed {
		return
	}
	w.log.Debug("workspace file changed", zap.String("path", f.Path()))

	switch f {
	case w.vs:
		_ = w.pipeline.SetVertexSource(f.Text())
	case w.fs:
		_ = w.pipeline.SetFragmentSource(f.Text())
	case w.sheet:
		w.syncSheet()
	}
}

// syncSheet brings the registry in line with the sheet file.
func (w *Workbench) syncSheet() {
	entries, err := editor.ParseSheet([]byte(w.sheet.Text()))
	if err != nil {
		w.log.Warn("uniform sheet rejected", zap.String("path", w.sheet.Path()), zap.Error(err))
		return
	}
	res, err := editor.SyncSheet(w.registry, entries)
	if err != nil {
		w.log.Warn("uniform values not converted", zap.Error(err))
	}
	if !res.Changed() {
		return
	}
	w.log.Debug("uniforms synced",
		zap.Int("added", res.Added),
		zap.Int("removed", res.Removed),
		zap.Int("renamed", res.Renamed),
		zap.Int("retyped", res.Retyped),
		zap.Int("updated", res.Updated),
	)
	if res.Removed > 0 {
		w.relink()
	}
	if res.Named {
		w.writeSheet()
	}
}

// writeSheet writes the registry back to the sheet file.
func (w *Workbench) writeSheet() {
	data, err := editor.MarshalSheet(w.registry)
	if err != nil {
		w.log.Error("encode uniform sheet", zap.Error(err))
		return
	}
	if err := w.sheet.SetText(string(data)); err != nil {
		w.log.Error("write uniform sheet", zap.Error(err))
	}
}

// relink links a fresh program so uniforms the registry dropped stop
// carrying their last pushed value.
func (w *Workbench) relink() {
	if err := w.pipeline.Relink(); err != nil {
		w.log.Debug("relink failed", zap.Error(err))
	}
}

// Frame draws one frame.
func (w *Workbench) Frame() renderer.FrameResult {
	return w.renderer.Frame()
}

// Resize updates the viewport for a new window size.
func (w *Workbench) Resize(width, height int) {
	w.renderer.Resize(width, height)
}

// Camera returns the viewer camera for input handling.
func (w *Workbench) Camera() *camera.ModelViewer {
	return w.camera
}

// Registry returns the uniform registry.
func (w *Workbench) Registry() *uniform.Registry {
	return w.registry
}

// Pipeline returns the shader pipeline.
func (w *Workbench) Pipeline() *shader.Pipeline {
	return w.pipeline
}

// State returns the render state.
func (w *Workbench) State() *renderer.RenderState {
	return w.state
}

// ToggleAutoRotate flips auto rotation and returns the new setting.
func (w *Workbench) ToggleAutoRotate() bool {
	w.camera.AutoRotate = !w.camera.AutoRotate
	return w.camera.AutoRotate
}

// ToggleProjection switches between perspective and orthographic.
func (w *Workbench) ToggleProjection() camera.Projection {
	p := w.camera.ToggleProjection()
	w.log.Debug("projection", zap.Stringer("projection", p))
	return p
}

// AddUniform adds an auto-named float uniform and writes the sheet.
func (w *Workbench) AddUniform() *uniform.Uniform {
	u := w.registry.AddDefault()
	w.writeSheet()
	return u
}

// RemoveLastUniform removes the most recently added user uniform. It
// reports false when there is none.
func (w *Workbench) RemoveLastUniform() bool {
	user := w.registry.Mutable()
	if len(user) == 0 {
		return false
	}
	if err := w.registry.Remove(user[len(user)-1]); err != nil {
		w.log.Error("remove uniform", zap.Error(err))
		return false
	}
	w.writeSheet()
	w.relink()
	return true
}

// Models returns the indexed models.
func (w *Workbench) Models() []formats.ModelIndexEntry {
	return w.models
}

// NextModel steps through the model index, wrapping at both ends, and starts
// loading the selected model.
func (w *Workbench) NextModel(delta int) (formats.ModelIndexEntry, bool) {
	n := len(w.models)
	if n == 0 {
		return formats.ModelIndexEntry{}, false
	}
	w.current = ((w.current+delta)%n + n) % n
	e := w.models[w.current]
	w.LoadModel(e.Path)
	return e, true
}

// LoadModel starts loading a model by source path.
func (w *Workbench) LoadModel(path string) uint64 {
	gen := w.scene.Load(path)
	w.log.Info("loading model", zap.String("path", path), zap.Uint64("generation", gen))
	return gen
}

// Recompile rereads both shader files and compiles them again.
func (w *Workbench) Recompile() error {
	for _, f := range []*editor.FileSource{w.vs, w.fs} {
		if _, err := f.Reload(); err != nil {
			w.log.Warn("reload before recompile", zap.Error(err))
		}
	}
	var errs []error
	if err := w.pipeline.SetVertexSource(w.vs.Text()); err != nil {
		errs = append(errs, err)
	}
	if err := w.pipeline.SetFragmentSource(w.fs.Text()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SessionDir returns where sessions are saved by default.
func (w *Workbench) SessionDir() string {
	return w.cfg.WorkspacePath(w.cfg.Workspace.SessionsDir)
}

// SessionName returns the name of the current session.
func (w *Workbench) SessionName() string {
	return w.session
}

// DefaultSessionPath returns the save path offered for the current session.
func (w *Workbench) DefaultSessionPath() string {
	st := session.State{Name: w.session}
	return filepath.Join(w.SessionDir(), st.FileName())
}

// SaveSession writes both shader sources and the user uniforms to path. The
// session takes the file's base name.
func (w *Workbench) SaveSession(path string) error {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	st := session.Capture(name, w.vs.Text(), w.fs.Text(), w.registry)
	data, err := session.Marshal(st)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	w.session = st.Name
	w.log.Info("session saved", zap.String("path", path), zap.Int("uniforms", len(st.Uniforms)))
	return nil
}

// OpenSession replaces the shader sources and the user uniforms with a saved
// session. The workspace files are overwritten so editors see the session.
// Uniform values that no longer convert are kept and logged.
func (w *Workbench) OpenSession(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	st, err := session.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("open session %s: %w", path, err)
	}

	// Both sources land on disk before anything else changes.
	prevVS := w.vs.Text()
	if err := w.vs.SetText(st.VS); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	if err := w.fs.SetText(st.FS); err != nil {
		if rerr := w.vs.SetText(prevVS); rerr != nil {
			w.log.Warn("vertex source not restored", zap.Error(rerr))
		}
		return fmt.Errorf("open session: %w", err)
	}

	if err := st.Apply(w.registry); err != nil {
		w.log.Warn("session uniforms not converted", zap.Error(err))
	}
	w.writeSheet()

	// SetFragmentSource relinks when both stages compile.
	_ = w.pipeline.SetVertexSource(st.VS)
	_ = w.pipeline.SetFragmentSource(st.FS)

	w.session = st.Name
	w.log.Info("session opened", zap.String("path", path), zap.String("name", st.Name), zap.Int("uniforms", len(st.Uniforms)))
	return nil
}

// Status summarises compile, link and load state in a few words.
func (w *Workbench) Status() string {
	d := w.pipeline.Diagnostics()
	switch {
	case d.Vertex != "":
		return "vertex shader error"
	case d.Fragment != "":
		return "fragment shader error"
	case d.Link != "":
		return "link error"
	case w.pipeline.Active() == nil:
		return "no program"
	case w.scene.Err() != nil:
		return "model failed"
	case w.state.Model == nil || w.scene.Requested() != w.scene.Shown():
		return "loading"
	case !w.state.Ready:
		return "loading texture"
	}
	return "ok"
}

// ModelName returns the display name of the model on screen.
func (w *Workbench) ModelName() string {
	shown := w.scene.Shown()
	for _, e := range w.models {
		if e.Path == shown {
			return e.Name
		}
	}
	if shown == "" {
		return "no model"
	}
	return shown
}

// Title is the window title.
func (w *Workbench) Title() string {
	return fmt.Sprintf("shaderbench - %s - %s [%s]", w.session, w.ModelName(), w.Status())
}

// Close stops background loads and releases every GPU resource.
func (w *Workbench) Close() {
	w.cancel()
	w.loader.Wait()
	w.scene.Close()
	w.pipeline.Close()
	w.assets.Close()
	if w.watcher != nil {
		if err := w.watcher.Close(); err != nil {
			w.log.Warn("close watcher", zap.Error(err))
		}
	}
}
