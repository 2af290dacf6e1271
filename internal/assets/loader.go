package assets

import (
	"context"
	"fmt"
	"image"
	"path"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderbench/internal/engine/texture"
	"github.com/Faultbox/shaderbench/internal/logger"
	"github.com/Faultbox/shaderbench/pkg/formats"
)

// Fetcher loads raw asset bytes. *Manager implements it.
type Fetcher interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// EventKind tells what finished loading.
type EventKind int

const (
	EventModel EventKind = iota
	EventTexture
)

func (k EventKind) String() string {
	if k == EventTexture {
		return "texture"
	}
	return "model"
}

// Event is a finished background step of a model load.
type Event struct {
	Kind       EventKind
	Generation uint64
	Path       string

	// Set for EventModel. ExpectTexture means an EventTexture follows.
	Model         *formats.DecodedModel
	ExpectTexture bool

	// Set for EventTexture.
	Texture *image.RGBA

	Err error
}

// Loader decodes models and their textures in the background. Load and Poll
// must be called from the same goroutine; results are only ever applied from
// Poll.
type Loader struct {
	fetch        Fetcher
	flipTextures bool
	latest       uint64
	events       chan Event
	wg           sync.WaitGroup
	log          *zap.Logger
}

// NewLoader creates a loader.
func NewLoader(fetch Fetcher, flipTextures bool) *Loader {
	return &Loader{
		fetch:        fetch,
		flipTextures: flipTextures,
		events:       make(chan Event, 16),
		log:          logger.Named("loader"),
	}
}

// LoadIndex fetches and parses a model index.
func (l *Loader) LoadIndex(ctx context.Context, indexPath string) (*formats.ModelIndex, error) {
	data, err := l.fetch.Load(ctx, indexPath)
	if err != nil {
		return nil, fmt.Errorf("model index: %w", err)
	}
	idx, err := formats.ParseModelIndex(data)
	if err != nil {
		return nil, fmt.Errorf("model index %s: %w", indexPath, err)
	}
	return idx, nil
}

// Load starts loading a model and returns its generation. Only events of the
// most recent generation are delivered by Poll; earlier loads keep running
// but their results are dropped.
func (l *Loader) Load(ctx context.Context, modelPath string) uint64 {
	l.latest++
	gen := l.latest

	l.log.Debug("load requested", zap.String("path", modelPath), zap.Uint64("generation", gen))

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(ctx, gen, modelPath)
	}()
	return gen
}

// Latest returns the generation of the most recent Load.
func (l *Loader) Latest() uint64 {
	return l.latest
}

func (l *Loader) run(ctx context.Context, gen uint64, modelPath string) {
	model, err := l.loadModel(ctx, modelPath)
	expect := err == nil && model.TextureFile != ""
	if !l.send(ctx, Event{Kind: EventModel, Generation: gen, Path: modelPath, Model: model, ExpectTexture: expect, Err: err}) || !expect {
		return
	}

	texPath := path.Join(path.Dir(modelPath), model.TextureFile)
	img, err := l.loadTexture(ctx, texPath)
	l.send(ctx, Event{Kind: EventTexture, Generation: gen, Path: texPath, Texture: img, Err: err})
}

func (l *Loader) loadModel(ctx context.Context, modelPath string) (*formats.DecodedModel, error) {
	data, err := l.fetch.Load(ctx, modelPath)
	if err != nil {
		return nil, err
	}
	model, err := formats.ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", modelPath, err)
	}
	return model, nil
}

func (l *Loader) loadTexture(ctx context.Context, texPath string) (*image.RGBA, error) {
	data, err := l.fetch.Load(ctx, texPath)
	if err != nil {
		return nil, err
	}
	return texture.Load(texPath, data, l.flipTextures)
}

func (l *Loader) send(ctx context.Context, ev Event) bool {
	select {
	case l.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Poll delivers every pending event of the latest generation to apply and
// returns how many were delivered. It never blocks.
func (l *Loader) Poll(apply func(Event)) int {
	n := 0
	for {
		select {
		case ev := <-l.events:
			if ev.Generation != l.latest {
				l.log.Debug("stale load dropped",
					zap.Stringer("kind", ev.Kind),
					zap.String("path", ev.Path),
					zap.Uint64("generation", ev.Generation),
					zap.Uint64("latest", l.latest),
				)
				continue
			}
			apply(ev)
			n++
		default:
			return n
		}
	}
}

// Wait blocks until every background load has finished or given up.
// Cancel the context passed to Load first, or keep calling Poll, so no load
// stays blocked on a full queue.
func (l *Loader) Wait() {
	l.wg.Wait()
}
