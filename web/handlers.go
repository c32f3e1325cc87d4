package web

import (
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mogaika/sceneimport/marshal"
	"github.com/mogaika/sceneimport/utils"
	"github.com/mogaika/sceneimport/webutils"
)

// HandlerFiles lists regular files under the root as slash separated
// relative paths.
func (s *Server) HandlerFiles(w http.ResponseWriter, r *http.Request) {
	files := make([]string, 0)
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != s.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(s.root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	sort.Strings(files)
	webutils.WriteJson(w, files)
}

// meshes loads the requested file, from cache when possible. With ?all=1
// every mesh of the scene is returned, otherwise only the target mesh.
func (s *Server) meshes(r *http.Request) ([]*marshal.MarshaledMesh, error) {
	path, err := s.resolve(mux.Vars(r)["file"])
	if err != nil {
		return nil, err
	}
	if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
		return nil, &webutils.NotFoundError{Path: mux.Vars(r)["file"]}
	}

	all := r.URL.Query().Get("all") == "1"
	key := path
	if all {
		key += "#all"
	}
	if meshes, ok := s.cache.Get(key); ok {
		return meshes, nil
	}

	var meshes []*marshal.MarshaledMesh
	if all {
		meshes, err = s.loader.LoadScene(r.Context(), path)
	} else {
		var mm *marshal.MarshaledMesh
		if mm, err = s.loader.Load(r.Context(), path); err == nil {
			meshes = []*marshal.MarshaledMesh{mm}
		}
	}
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, path, meshes)
	return meshes, nil
}

func (s *Server) HandlerMesh(w http.ResponseWriter, r *http.Request) {
	meshes, err := s.meshes(r)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	if r.URL.Query().Get("all") == "1" {
		webutils.WriteJson(w, meshes)
	} else {
		webutils.WriteJson(w, meshes[0])
	}
}

func (s *Server) HandlerDumpMesh(w http.ResponseWriter, r *http.Request) {
	meshes, err := s.meshes(r)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteText(w, utils.SDump(meshes))
}
