package webutils

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/sceneimport/logger"
	"github.com/mogaika/sceneimport/scene"
)

func WriteJson(w http.ResponseWriter, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		WriteError(w, errors.Wrapf(err, "Failed to marshal"))
	} else {
		w.Header().Set("Content-Type", "application/json")
		WriteResult(w, res)
	}
}

func WriteText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	WriteResult(w, []byte(text))
}

func WriteResult(w http.ResponseWriter, data []byte) {
	if _, err := w.Write(data); err != nil {
		logger.Named("web").Warn("error when writing response", zap.Error(err))
	}
}

// StatusOf maps import failures to http status codes.
func StatusOf(err error) int {
	var (
		imp   *scene.ImportError
		nm    *scene.NoMeshFoundError
		topo  *scene.UnsupportedTopologyError
		malf  *scene.MalformedSceneError
		notFS *NotFoundError
	)
	switch {
	case errors.As(err, &notFS):
		return http.StatusNotFound
	case errors.As(err, &imp), errors.As(err, &nm), errors.As(err, &topo), errors.As(err, &malf):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return "not found: " + e.Path }

func WriteError(w http.ResponseWriter, err error) {
	type jError struct {
		Error string `json:"error"`
	}
	data, mErr := json.Marshal(&jError{Error: err.Error()})
	if mErr != nil {
		logger.Named("web").Error("error marshaling error", zap.NamedError("original", err), zap.Error(mErr))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	logger.Named("web").Info("request failed", zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusOf(err))
	WriteResult(w, data)
}
