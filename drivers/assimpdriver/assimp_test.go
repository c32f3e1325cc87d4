//go:build assimp

package assimpdriver

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportObj(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quad.obj")
	require.NoError(t, os.WriteFile(path, []byte("v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3 4\n"), 0666))

	old := currentOptions()
	defer Configure(old)

	Configure(Options{})
	sc, err := Engine{}.Import(path)
	require.NoError(t, err)
	require.Equal(t, 1, sc.NumMeshes())
	assert.Len(t, sc.Mesh(0).Face(0), 4)
	assert.True(t, mgl64.Ident4().ApproxEqual(sc.Root().Transform()))
	sc.Release()
	sc.Release()
	assert.Nil(t, sc.Root())

	Configure(Options{Triangulate: true})
	sc, err = Engine{}.Import(path)
	require.NoError(t, err)
	defer sc.Release()
	mesh := sc.Mesh(0)
	require.Equal(t, 2, mesh.NumFaces())
	assert.Len(t, mesh.Face(1), 3)
	assert.Equal(t, float32(1), mesh.Vertices().At(2, 1))
}

func TestImportFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.xyz")
	require.NoError(t, os.WriteFile(path, []byte("not a model"), 0666))
	_, err := Engine{}.Import(path)
	require.Error(t, err)
	assert.NotEmpty(t, err.Error())
}

func TestImportFailuresInParallel(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 8)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("junk%d.xyz", i))
		require.NoError(t, os.WriteFile(paths[i], []byte("not a model"), 0666))
	}

	// assimp names the file in its "no suitable reader" diagnostic
	for round := 0; round < 10; round++ {
		reasons := make([]string, len(paths))
		var wg sync.WaitGroup
		for i, path := range paths {
			wg.Add(1)
			go func(i int, path string) {
				defer wg.Done()
				if _, err := (Engine{}).Import(path); err != nil {
					reasons[i] = err.Error()
				}
			}(i, path)
		}
		wg.Wait()
		for i, reason := range reasons {
			assert.Contains(t, reason, filepath.Base(paths[i]))
			for j := range paths {
				if j != i {
					assert.NotContains(t, reason, filepath.Base(paths[j]))
				}
			}
		}
	}
}
