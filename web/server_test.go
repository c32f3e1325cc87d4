package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/sceneimport/drivers/objdriver"
	"github.com/mogaika/sceneimport/importer"
	"github.com/mogaika/sceneimport/loader"
	"github.com/mogaika/sceneimport/status"
	"github.com/mogaika/sceneimport/webutils"
)

const triObj = "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"

func newTestServer(t *testing.T) (*Server, *httptest.Server, string) {
	root := t.TempDir()
	for name, body := range map[string]string{
		"tri.obj":          triObj,
		"quad.obj":         "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3 4\n",
		"sub/two.obj":      triObj + "o second\nf 3 2 1\n",
		".hidden/skip.obj": triObj,
	} {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0777))
		require.NoError(t, os.WriteFile(path, []byte(body), 0666))
	}

	reg := importer.NewRegistry()
	reg.Register(objdriver.Engine{}, objdriver.Format)
	hub := status.NewHub()

	s, err := NewServer(root, &loader.Loader{Engine: reg, Status: hub}, hub)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return s, srv, root
}

func get(t *testing.T, url string) (int, []byte) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestHandlerFiles(t *testing.T) {
	_, srv, _ := newTestServer(t)

	code, body := get(t, srv.URL+"/json/files")
	require.Equal(t, http.StatusOK, code)
	var files []string
	require.NoError(t, json.Unmarshal(body, &files))
	assert.Equal(t, []string{"quad.obj", "sub/two.obj", "tri.obj"}, files)
}

func TestHandlerMesh(t *testing.T) {
	s, srv, _ := newTestServer(t)

	code, body := get(t, srv.URL+"/json/mesh/tri.obj")
	require.Equal(t, http.StatusOK, code, string(body))
	var mesh struct {
		Points struct {
			Shape []int `json:"shape"`
		} `json:"points"`
		Trilist struct {
			Data []int32 `json:"data"`
		} `json:"trilist"`
		NodePath []string `json:"node_path"`
	}
	require.NoError(t, json.Unmarshal(body, &mesh))
	assert.Equal(t, []int{3, 3}, mesh.Points.Shape)
	assert.Equal(t, []int32{0, 1, 2}, mesh.Trilist.Data)
	assert.Equal(t, []string{"root", "default"}, mesh.NodePath)
	assert.Equal(t, 1, s.cache.Len())

	code, body = get(t, srv.URL+"/json/mesh/sub/two.obj?all=1")
	require.Equal(t, http.StatusOK, code, string(body))
	var all []json.RawMessage
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all, 2)
}

func TestHandlerMeshErrors(t *testing.T) {
	_, srv, _ := newTestServer(t)

	code, body := get(t, srv.URL+"/json/mesh/quad.obj")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, string(body), "has 4 vertices")

	code, _ = get(t, srv.URL+"/json/mesh/missing.obj")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, srv.URL+"/json/mesh/sub")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandlerDumpMesh(t *testing.T) {
	_, srv, _ := newTestServer(t)

	code, body := get(t, srv.URL+"/dump/mesh/tri.obj")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "MarshaledMesh")
}

func TestResolveStaysInRoot(t *testing.T) {
	s, _, root := newTestServer(t)

	p, err := s.resolve("sub/two.obj")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sub", "two.obj"), p)

	_, err = s.resolve("../outside.obj")
	var nf *webutils.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestCacheInvalidatedOnChange(t *testing.T) {
	s, srv, root := newTestServer(t)

	code, _ := get(t, srv.URL+"/json/mesh/tri.obj")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, s.cache.Len())

	require.NoError(t, os.WriteFile(filepath.Join(root, "tri.obj"), []byte(triObj+"f 3 2 1\n"), 0666))
	require.Eventually(t, func() bool { return s.cache.Len() == 0 }, 5*time.Second, 20*time.Millisecond)

	code, body := get(t, srv.URL+"/json/mesh/tri.obj")
	require.Equal(t, http.StatusOK, code)
	var mesh struct {
		Trilist struct {
			Shape []int `json:"shape"`
		} `json:"trilist"`
	}
	require.NoError(t, json.Unmarshal(body, &mesh))
	assert.Equal(t, []int{2, 3}, mesh.Trilist.Shape)
}
