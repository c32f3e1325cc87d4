// Package web serves marshaled meshes of the model files under a directory
// as json, with import progress on a websocket.
package web

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/sceneimport/loader"
	"github.com/mogaika/sceneimport/logger"
	"github.com/mogaika/sceneimport/status"
	"github.com/mogaika/sceneimport/webutils"
)

type Server struct {
	root   string
	loader *loader.Loader
	hub    *status.Hub
	cache  *MeshCache
}

func NewServer(root string, l *loader.Loader, hub *status.Hub) (*Server, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to resolve root %q", root)
	}
	cache, err := NewMeshCache()
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create watcher")
	}
	if hub == nil {
		hub = status.Default
	}
	return &Server{root: abs, loader: l, hub: hub, cache: cache}, nil
}

func (s *Server) Close() error {
	return s.cache.Close()
}

// Handler returns the routes wrapped in request logging and panic recovery.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/json/files", s.HandlerFiles)
	r.HandleFunc("/json/mesh/{file:.*}", s.HandlerMesh)
	r.HandleFunc("/dump/mesh/{file:.*}", s.HandlerDumpMesh)
	r.Handle("/ws/status", s.hub)

	var h http.Handler = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(r)
	return handlers.LoggingHandler(zap.NewStdLog(logger.Named("http")).Writer(), h)
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logger.Named("web").Error("handler panic", zap.Any("panic", v))
}

// resolve maps a url file parameter to a path inside the served root.
func (s *Server) resolve(file string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(file))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &webutils.NotFoundError{Path: file}
	}
	return p, nil
}

func StartServer(addr string, s *Server) error {
	logger.Named("web").Info("starting server", zap.String("addr", addr), zap.String("root", s.root))
	return http.ListenAndServe(addr, s.Handler())
}
