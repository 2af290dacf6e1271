// Package scene owns the model on screen. It starts background loads,
// installs finished ones into the render state and releases the GPU
// resources they replace.
package scene

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderbench/internal/assets"
	"github.com/Faultbox/shaderbench/internal/engine/gpu"
	"github.com/Faultbox/shaderbench/internal/engine/renderer"
	"github.com/Faultbox/shaderbench/internal/logger"
)

// Scene swaps models into a render state. All methods run on the render
// thread.
type Scene struct {
	ctx    context.Context
	state  *renderer.RenderState
	binder *gpu.Binder
	loader *assets.Loader

	requested string
	shown     string
	shownGen  uint64
	lastErr   error

	log *zap.Logger
}

// New creates a scene. ctx bounds every background load.
func New(ctx context.Context, state *renderer.RenderState, binder *gpu.Binder, loader *assets.Loader) *Scene {
	return &Scene{
		ctx:    ctx,
		state:  state,
		binder: binder,
		loader: loader,
		log:    logger.Named("scene"),
	}
}

// Load starts loading a model. The current model keeps drawing until the new
// one is uploaded; if it was still waiting for its texture it is drawn
// untextured from now on.
func (s *Scene) Load(path string) uint64 {
	if s.state.Model != nil && !s.state.Ready {
		s.state.Ready = true
	}
	s.requested = path
	s.lastErr = nil
	return s.loader.Load(s.ctx, path)
}

// Poll applies finished loads and returns how many events were applied.
func (s *Scene) Poll() int {
	return s.loader.Poll(s.apply)
}

func (s *Scene) apply(ev assets.Event) {
	switch ev.Kind {
	case assets.EventModel:
		s.applyModel(ev)
	case assets.EventTexture:
		s.applyTexture(ev)
	}
}

func (s *Scene) applyModel(ev assets.Event) {
	if ev.Err != nil {
		s.lastErr = ev.Err
		s.log.Error("model load failed, keeping previous model", zap.String("path", ev.Path), zap.Error(ev.Err))
		return
	}

	m, err := s.binder.UploadModel(ev.Model)
	if err != nil {
		s.lastErr = err
		s.log.Error("model upload failed, keeping previous model", zap.String("path", ev.Path), zap.Error(err))
		return
	}

	prev := s.state.Model
	s.state.Model = m
	s.state.Ready = !ev.ExpectTexture
	s.binder.Release(prev)
	s.shown = ev.Path
	s.shownGen = ev.Generation

	s.log.Info("model ready",
		zap.String("path", ev.Path),
		zap.Uint64("generation", ev.Generation),
		zap.Int32("vertices", m.VertexCount),
		zap.Bool("awaiting_texture", ev.ExpectTexture),
	)

	// Attribute availability changed with the model.
	if s.state.Pipeline != nil {
		if err := s.state.Pipeline.Relink(); err != nil {
			s.log.Warn("relink after model switch failed", zap.Error(err))
		}
	}
}

func (s *Scene) applyTexture(ev assets.Event) {
	if ev.Generation != s.shownGen || s.state.Model == nil {
		// the model of this load never made it onto the screen
		return
	}
	defer func() { s.state.Ready = true }()

	if ev.Err != nil {
		s.log.Warn("texture load failed, drawing untextured", zap.String("path", ev.Path), zap.Error(ev.Err))
		return
	}
	tex, err := s.binder.UploadTexture(ev.Texture)
	if err != nil {
		s.log.Warn("texture upload failed, drawing untextured", zap.String("path", ev.Path), zap.Error(err))
		return
	}
	s.state.Model = s.state.Model.WithTexture(tex)
	s.log.Debug("texture ready", zap.String("path", ev.Path))
}

// Requested returns the path of the most recent Load.
func (s *Scene) Requested() string {
	return s.requested
}

// Shown returns the path of the model currently installed.
func (s *Scene) Shown() string {
	return s.shown
}

// Err returns the failure of the most recent load, if any.
func (s *Scene) Err() error {
	return s.lastErr
}

// Close releases the installed model.
func (s *Scene) Close() {
	s.binder.Release(s.state.Model)
	s.state.Model = nil
	s.state.Ready = false
	s.shown = ""
}
