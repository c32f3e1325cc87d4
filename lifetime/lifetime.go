// Package lifetime owns imported scenes and releases each of them exactly
// once, whichever way the work on the scene ends.
package lifetime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mogaika/sceneimport/logger"
	"github.com/mogaika/sceneimport/scene"
)

// Handle is the only owner of an imported scene. It must not be copied.
type Handle struct {
	path     string
	engine   string
	mu       sync.Mutex
	sc       scene.Scene
	released bool
}

// Acquire imports path with engine. No handle exists and nothing has to be
// released when it fails.
func Acquire(engine scene.Engine, path string) (*Handle, error) {
	sc, err := engine.Import(path)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, &scene.ImportError{Path: path, Engine: engine.Name(), Reason: "engine returned no scene"}
	}
	logger.Named("lifetime").Debug("scene acquired", zap.String("path", path), zap.String("engine", engine.Name()))
	return &Handle{path: path, engine: engine.Name(), sc: sc}, nil
}

func (h *Handle) Path() string { return h.path }

// Scene returns the live scene, or nil after Release.
func (h *Handle) Scene() scene.Scene {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	return h.sc
}

func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Release frees the scene. A second call is a bug: it returns
// DoubleReleaseError without touching the engine and logs at DPanic level,
// which panics in development builds.
func (h *Handle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		err := &scene.DoubleReleaseError{Path: h.path}
		logger.Named("lifetime").DPanic("scene released twice", zap.String("path", h.path), zap.String("engine", h.engine))
		return err
	}
	h.released = true
	sc := h.sc
	h.sc = nil
	h.mu.Unlock()

	sc.Release()
	logger.Named("lifetime").Debug("scene released", zap.String("path", h.path))
	return nil
}

// WithScene imports path, runs fn on the scene and releases the scene on
// every exit: success, error, panic or cancellation. ctx is checked before
// the import and after fn returns; fn itself is never interrupted.
func WithScene(ctx context.Context, engine scene.Engine, path string, fn func(scene.Scene) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	h, err := Acquire(engine, path)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := h.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()

	if err := fn(h.sc); err != nil {
		return err
	}
	return ctx.Err()
}
