package lifetime

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/sceneimport/logger"
	"github.com/mogaika/sceneimport/scene"
	"github.com/mogaika/sceneimport/scene/memscene"
)

type fakeEngine struct {
	scene   *memscene.Scene
	err     error
	imports int
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Import(path string) (scene.Scene, error) {
	e.imports++
	if e.err != nil {
		return nil, e.err
	}
	if e.scene == nil {
		return nil, nil
	}
	return e.scene, nil
}

func newEngine() *fakeEngine {
	return &fakeEngine{scene: memscene.New(memscene.NewNode("root"))}
}

func TestReleaseOnce(t *testing.T) {
	e := newEngine()
	h, err := Acquire(e, "a.obj")
	require.NoError(t, err)
	assert.NotNil(t, h.Scene())

	require.NoError(t, h.Release())
	assert.Equal(t, 1, e.scene.ReleaseCount())
	assert.True(t, h.Released())
	assert.Nil(t, h.Scene())
}

func TestDoubleRelease(t *testing.T) {
	e := newEngine()
	h, err := Acquire(e, "a.obj")
	require.NoError(t, err)
	require.NoError(t, h.Release())

	err = h.Release()
	var double *scene.DoubleReleaseError
	require.True(t, errors.As(err, &double))
	assert.Equal(t, "a.obj", double.Path)
	assert.Equal(t, 1, e.scene.ReleaseCount())
}

func TestDoubleReleasePanicsInDevelopment(t *testing.T) {
	prev := logger.Log
	logger.Log = logger.New("debug", logger.FileConfig{}, false, true)
	defer func() { logger.Log = prev }()

	e := newEngine()
	h, err := Acquire(e, "a.obj")
	require.NoError(t, err)
	require.NoError(t, h.Release())
	assert.Panics(t, func() { h.Release() })
	assert.Equal(t, 1, e.scene.ReleaseCount())
}

func TestWithSceneReleasesOnSuccess(t *testing.T) {
	e := newEngine()
	called := false
	err := WithScene(context.Background(), e, "a.obj", func(sc scene.Scene) error {
		called = true
		assert.Equal(t, 0, e.scene.ReleaseCount())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 1, e.scene.ReleaseCount())
}

func TestWithSceneReleasesOnError(t *testing.T) {
	e := newEngine()
	err := WithScene(context.Background(), e, "a.obj", func(sc scene.Scene) error {
		return &scene.NoMeshFoundError{Path: "a.obj"}
	})
	var noMesh *scene.NoMeshFoundError
	require.True(t, errors.As(err, &noMesh))
	assert.Equal(t, 1, e.scene.ReleaseCount())
}

func TestWithSceneReleasesOnPanic(t *testing.T) {
	e := newEngine()
	assert.PanicsWithValue(t, "boom", func() {
		_ = WithScene(context.Background(), e, "a.obj", func(sc scene.Scene) error {
			panic("boom")
		})
	})
	assert.Equal(t, 1, e.scene.ReleaseCount())
}

func TestWithSceneImportFailure(t *testing.T) {
	e := newEngine()
	e.err = &scene.ImportError{Path: "a.obj", Reason: "Unable to open file"}
	called := false
	err := WithScene(context.Background(), e, "a.obj", func(sc scene.Scene) error {
		called = true
		return nil
	})
	var imp *scene.ImportError
	require.True(t, errors.As(err, &imp))
	assert.Equal(t, "Unable to open file", imp.Reason)
	assert.False(t, called)
	assert.Equal(t, 0, e.scene.ReleaseCount())
}

func TestWithSceneCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	e := newEngine()
	err := WithScene(ctx, e, "a.obj", func(sc scene.Scene) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, e.scene.ReleaseCount())

	e = newEngine()
	err = WithScene(ctx, e, "a.obj", func(sc scene.Scene) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, e.imports)
	assert.Equal(t, 0, e.scene.ReleaseCount())
}

func TestAcquireNilScene(t *testing.T) {
	e := &fakeEngine{}
	_, err := Acquire(e, "a.obj")
	var imp *scene.ImportError
	assert.True(t, errors.As(err, &imp))
}
