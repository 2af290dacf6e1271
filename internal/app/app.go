// Package app runs the workbench in an SDL window: it owns the main loop,
// turns input into workbench calls and shows native session dialogs.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sqweek/dialog"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/shaderbench/internal/config"
	"github.com/Faultbox/shaderbench/internal/engine/gpu/gldevice"
	"github.com/Faultbox/shaderbench/internal/engine/input"
	"github.com/Faultbox/shaderbench/internal/engine/renderer"
	"github.com/Faultbox/shaderbench/internal/engine/screenshot"
	"github.com/Faultbox/shaderbench/internal/engine/window"
	"github.com/Faultbox/shaderbench/internal/logger"
	"github.com/Faultbox/shaderbench/internal/workbench"
)

// dialogResult is a path picked in a native dialog.
type dialogResult struct {
	save bool
	path string
}

// App is the running workbench window.
type App struct {
	ctx     context.Context
	cfg     *config.Config
	running bool
	window  *window.Window
	device  *gldevice.Device
	input   *input.Input
	bench   *workbench.Workbench
	log     *zap.Logger

	// Dialogs run on their own goroutine; results are applied on the
	// main thread.
	dialogs    chan dialogResult
	dialogOpen bool

	dragging     bool
	dragX, dragY int

	capture *screenshot.Capture
	shoot   bool

	title string
	skip  renderer.SkipReason
}

// New creates the window, the GL device and the workbench.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		ctx:     ctx,
		cfg:     cfg,
		log:     logger.Named("app"),
		dialogs: make(chan dialogResult, 1),
		capture: screenshot.New(cfg.WorkspacePath(cfg.Workspace.ScreenshotsDir), "shaderbench"),
		skip:    -1,
	}

	var err error
	a.window, err = window.New(window.Config{
		Title:      "shaderbench",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// The device needs the GL context the window just created.
	a.device, err = gldevice.New()
	if err != nil {
		a.window.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	// A factor of 1 means "whatever the display uses".
	if cfg.Graphics.SampleFactor == 1 {
		cfg.Graphics.SampleFactor = a.window.SampleFactor()
	}

	a.bench, err = workbench.New(ctx, cfg, a.device)
	if err != nil {
		a.device.Close()
		a.window.Close()
		return nil, fmt.Errorf("failed to open workbench: %w", err)
	}
	a.bench.Resize(a.window.Size())

	a.input = input.New()

	a.log.Info("workbench ready",
		zap.String("workspace", cfg.Workspace.Dir),
		zap.String("models", cfg.Models.Source),
	)
	return a, nil
}

// Run runs the main loop until the window closes, Esc is pressed or the
// context given to New is cancelled.
func (a *App) Run() error {
	a.running = true

	frameCount := 0
	fpsTimer := time.Now()

	a.log.Info("starting main loop")

	for a.running && a.ctx.Err() == nil {
		// 1. Process input
		if a.input.Update() {
			a.running = false
			break
		}
		for _, ev := range a.input.Events() {
			a.handle(ev)
		}

		// 2. Dialog results
		select {
		case res := <-a.dialogs:
			a.dialogOpen = false
			a.applyDialog(res)
		default:
		}

		// 3. Workspace edits and finished loads
		a.bench.Update()

		// 4. Render
		res := a.bench.Frame()
		if res.Skip != a.skip {
			a.log.Debug("frame", zap.Stringer("state", res.Skip))
			a.skip = res.Skip
		}

		// 5. Present
		if a.shoot {
			a.shoot = false
			a.saveScreenshot()
		}
		a.window.SwapBuffers()
		a.updateTitle()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			a.log.Debug("fps", zap.Int("count", frameCount))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	return nil
}

func (a *App) handle(ev input.Event) {
	cam := a.bench.Camera()
	switch ev.Type {
	case input.EventWindowResize:
		a.bench.Resize(ev.Width, ev.Height)

	case input.EventKeyDown:
		if !ev.Repeat {
			a.key(ev)
		}

	case input.EventMouseDown:
		if ev.Button == sdl.BUTTON_LEFT {
			a.dragging = true
			a.dragX, a.dragY = ev.MouseX, ev.MouseY
			cam.PanStart()
		}
	case input.EventMouseMove:
		if a.dragging {
			cam.PanMove(float32(ev.MouseX-a.dragX), float32(ev.MouseY-a.dragY))
		}
	case input.EventMouseUp:
		if ev.Button == sdl.BUTTON_LEFT && a.dragging {
			a.dragging = false
			cam.PanEnd()
		}

	case input.EventWheel:
		cam.Wheel(ev.DeltaX, ev.DeltaY)
	case input.EventPinchStart:
		cam.PinchStart()
	case input.EventPinch:
		cam.PinchMove(ev.Pinch, ev.Out)

	case input.EventDropFile:
		if strings.EqualFold(filepath.Ext(ev.Path), ".json") {
			a.openSession(ev.Path)
		} else {
			a.log.Warn("dropped file is not a session", zap.String("path", ev.Path))
		}
	}
}

func (a *App) key(ev input.Event) {
	switch ev.Key {
	case sdl.SCANCODE_ESCAPE:
		a.running = false
	case sdl.SCANCODE_A:
		a.log.Info("auto rotate", zap.Bool("on", a.bench.ToggleAutoRotate()))
	case sdl.SCANCODE_P:
		a.log.Info("projection", zap.Stringer("projection", a.bench.ToggleProjection()))
	case sdl.SCANCODE_N:
		u := a.bench.AddUniform()
		a.log.Info("uniform added", zap.String("name", u.Name()))
	case sdl.SCANCODE_BACKSPACE, sdl.SCANCODE_DELETE:
		if !a.bench.RemoveLastUniform() {
			a.log.Info("no user uniform to remove")
		}
	case sdl.SCANCODE_TAB:
		delta := 1
		if ev.Shift() {
			delta = -1
		}
		if e, ok := a.bench.NextModel(delta); ok {
			a.log.Info("model selected", zap.String("name", e.Name))
		}
	case sdl.SCANCODE_R:
		if err := a.bench.Recompile(); err != nil {
			a.log.Warn("recompile failed", zap.String("diagnostics", a.bench.Pipeline().Diagnostics().String()))
		}
	case sdl.SCANCODE_F12:
		a.shoot = true
	case sdl.SCANCODE_S:
		if ev.Ctrl() {
			a.showDialog(true)
		}
	case sdl.SCANCODE_O:
		if ev.Ctrl() {
			a.showDialog(false)
		}
	}
}

// showDialog opens a native file dialog without blocking the loop.
func (a *App) showDialog(save bool) {
	if a.dialogOpen {
		return
	}
	a.dialogOpen = true

	dir := a.bench.SessionDir()
	start := filepath.Base(a.bench.DefaultSessionPath())
	go func() {
		b := dialog.File().
			Filter("Shader Sessions", "json").
			Filter("All Files", "*").
			SetStartDir(dir)

		var (
			path string
			err  error
		)
		if save {
			path, err = b.Title("Save Session").SetStartFile(start).Save()
		} else {
			path, err = b.Title("Open Session").Load()
		}
		if err != nil {
			if !errors.Is(err, dialog.ErrCancelled) {
				a.log.Warn("file dialog failed", zap.Error(err))
			}
			path = ""
		}
		a.dialogs <- dialogResult{save: save, path: path}
	}()
}

func (a *App) applyDialog(res dialogResult) {
	if res.path == "" {
		return
	}
	if !res.save {
		a.openSession(res.path)
		return
	}
	path := res.path
	if filepath.Ext(path) == "" {
		path += ".json"
	}
	if err := a.bench.SaveSession(path); err != nil {
		a.log.Error("save session failed", zap.Error(err))
	}
}

func (a *App) openSession(path string) {
	if err := a.bench.OpenSession(path); err != nil {
		a.log.Error("open session failed", zap.Error(err))
	}
}

// saveScreenshot reads the frame just rendered, before it is swapped out.
func (a *App) saveScreenshot() {
	w, h := a.window.DrawableSize()
	name, err := a.capture.Save(a.device.ReadPixels(w, h), w, h)
	if err != nil {
		a.log.Error("screenshot failed", zap.Error(err))
		return
	}
	a.log.Info("screenshot saved", zap.String("path", name))
}

func (a *App) updateTitle() {
	title := a.bench.Title()
	if title != a.title {
		a.window.SetTitle(title)
		a.title = title
	}
}

// Close releases the workbench, the device and the window.
func (a *App) Close() {
	a.log.Info("closing")

	if a.bench != nil {
		a.bench.Close()
	}
	if a.device != nil {
		a.device.Close()
	}
	if a.window != nil {
		a.window.Close()
	}
}
