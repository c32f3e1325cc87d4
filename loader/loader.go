// Package loader ties the pieces together: import a file, find the target
// node, copy its mesh out and release the scene.
package loader

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/sceneimport/importer"
	"github.com/mogaika/sceneimport/lifetime"
	"github.com/mogaika/sceneimport/logger"
	"github.com/mogaika/sceneimport/marshal"
	"github.com/mogaika/sceneimport/scene"
	"github.com/mogaika/sceneimport/status"
	"github.com/mogaika/sceneimport/texture"
	"github.com/mogaika/sceneimport/walker"
)

type Options struct {
	// MaxDepth <= 0 means walker.DefaultMaxDepth.
	MaxDepth int
	Marshal  marshal.Options
	// Selector picks the target node, walker.FirstWithMesh when nil.
	Selector walker.Selector
}

// Loader is safe for concurrent use as long as its Engine is. Every call
// imports its own scene.
type Loader struct {
	Engine  scene.Engine
	Options Options
	// Status receives one event per import, status.Default when nil.
	Status *status.Hub
}

// New returns a loader over the default engine registry.
func New(opts Options) *Loader {
	return &Loader{Engine: importer.Default, Options: opts}
}

func (l *Loader) engine() scene.Engine {
	if l.Engine == nil {
		return importer.Default
	}
	return l.Engine
}

func (l *Loader) hub() *status.Hub {
	if l.Status == nil {
		return status.Default
	}
	return l.Status
}

// Load returns the first mesh of the target node. The scene is released
// before Load returns, whatever the outcome.
func (l *Loader) Load(ctx context.Context, path string) (*marshal.MarshaledMesh, error) {
	start := time.Now()
	var out *marshal.MarshaledMesh
	err := lifetime.WithScene(ctx, l.engine(), path, func(sc scene.Scene) error {
		target, err := walker.FindTarget(sc, l.Options.Selector, l.Options.MaxDepth)
		if err != nil {
			return withPath(err, path)
		}
		indices := target.Node.MeshIndices()
		if len(indices) == 0 {
			return &scene.NoMeshFoundError{Path: path}
		}
		out, err = l.marshalTarget(sc, path, target, indices[0])
		return err
	})
	l.report(path, start, 1, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadScene returns every mesh of every selected node, in traversal order.
func (l *Loader) LoadScene(ctx context.Context, path string) ([]*marshal.MarshaledMesh, error) {
	start := time.Now()
	var out []*marshal.MarshaledMesh
	err := lifetime.WithScene(ctx, l.engine(), path, func(sc scene.Scene) error {
		targets, err := walker.FindAll(sc, l.Options.Selector, l.Options.MaxDepth)
		if err != nil {
			return withPath(err, path)
		}
		for _, target := range targets {
			for _, idx := range target.Node.MeshIndices() {
				mm, err := l.marshalTarget(sc, path, target, idx)
				if err != nil {
					return err
				}
				out = append(out, mm)
			}
		}
		if len(out) == 0 {
			return &scene.NoMeshFoundError{Path: path}
		}
		return nil
	})
	l.report(path, start, len(out), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) marshalTarget(sc scene.Scene, path string, target walker.Target, meshIndex int) (*marshal.MarshaledMesh, error) {
	mm, err := marshal.Marshal(sc, meshIndex, l.Options.Marshal)
	if err != nil {
		return nil, err
	}
	mm.Transform = target.Transform
	mm.NodePath = target.Path

	if mm.Texture, err = texture.Resolve(sc, mm.MaterialIndex, path); err != nil {
		return nil, err
	}
	if err := mm.Validate(); err != nil {
		return nil, errors.Wrapf(err, "mesh %d of %q", meshIndex, path)
	}
	return mm, nil
}

func withPath(err error, path string) error {
	var nm *scene.NoMeshFoundError
	if errors.As(err, &nm) && nm.Path == "" {
		nm.Path = path
	}
	return err
}

func (l *Loader) report(path string, start time.Time, meshes int, err error) {
	log := logger.Named("loader").With(zap.String("path", path), zap.Duration("took", time.Since(start)))
	if err != nil {
		log.Warn("load failed", zap.Error(err))
		l.hub().Error(path, "%v", err)
		return
	}
	log.Info("loaded", zap.Int("meshes", meshes))
	l.hub().Info(path, "loaded %d meshes", meshes)
}

type Result struct {
	Path string
	Mesh *marshal.MarshaledMesh
	Err  error
}

// LoadFiles loads paths on up to workers goroutines. Results keep the order
// of paths. Files not started before ctx is done fail with ctx's error.
func (l *Loader) LoadFiles(ctx context.Context, paths []string, workers int) []Result {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	results := make([]Result, len(paths))
	jobs := make(chan int)
	var done int
	var doneLock sync.Mutex

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				mm, err := l.Load(ctx, paths[i])
				results[i] = Result{Path: paths[i], Mesh: mm, Err: err}

				doneLock.Lock()
				done++
				doneNow := done
				progress := float32(done) / float32(len(paths))
				doneLock.Unlock()
				l.hub().Progress(paths[i], progress, "%d of %d files", doneNow, len(paths))
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
