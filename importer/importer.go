// Package importer picks an engine for a file and imports it. Engines
// register themselves from init, so importing a driver package is enough to
// make its formats available:
//
//	import _ "github.com/mogaika/sceneimport/drivers/gltfdriver"
package importer

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/sceneimport/logger"
	"github.com/mogaika/sceneimport/scene"
)

// HeaderSize is how much of a file is read for format sniffing.
const HeaderSize = 4096

// Format describes one file format an engine reads.
type Format struct {
	// Name doubles as the sniffing type extension, e.g. "glb".
	Name string
	MIME string
	// Extensions are lower case and include the dot.
	Extensions []string
	// Match reports whether a file header belongs to this format.
	Match func(header []byte) bool
}

type registration struct {
	engine  scene.Engine
	formats []Format
}

// Registry maps formats to engines. It is safe for concurrent use; the
// engines it hands out are not shared between imports.
type Registry struct {
	mu        sync.RWMutex
	byFormat  map[string]scene.Engine
	byExt     map[string]scene.Engine
	fallbacks []scene.Engine
	prefer    []string
	engines   []registration
}

func NewRegistry() *Registry {
	return &Registry{
		byFormat: make(map[string]scene.Engine),
		byExt:    make(map[string]scene.Engine),
	}
}

// Default is the process-wide registry drivers register into. It is filled
// during init and never torn down.
var Default = NewRegistry()

func Register(engine scene.Engine, formats ...Format) { Default.Register(engine, formats...) }

func RegisterFallback(engine scene.Engine) { Default.RegisterFallback(engine) }

func Import(path string) (scene.Scene, error) { return Default.Import(path) }

var matcherLock sync.Mutex

// Register adds engine for formats. Header matchers are installed into the
// filetype sniffer, which is process-wide.
func (r *Registry) Register(engine scene.Engine, formats ...Format) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range formats {
		if f.Match != nil {
			matcherLock.Lock()
			filetype.AddMatcher(filetype.NewType(f.Name, f.MIME), f.Match)
			matcherLock.Unlock()
		}
		r.byFormat[f.Name] = engine
		for _, ext := range f.Extensions {
			r.byExt[strings.ToLower(ext)] = engine
		}
	}
	r.engines = append(r.engines, registration{engine: engine, formats: formats})
}

// RegisterFallback adds an engine that sniffs formats on its own and is tried
// when no format specific engine claims a file.
func (r *Registry) RegisterFallback(engine scene.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, engine)
	r.engines = append(r.engines, registration{engine: engine})
}

// Prefer sets engine names that take precedence over format detection, in order.
func (r *Registry) Prefer(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefer = append([]string(nil), names...)
}

// Engines lists registered engine names in registration order.
func (r *Registry) Engines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.engines))
	for i, reg := range r.engines {
		names[i] = reg.engine.Name()
	}
	return names
}

func (r *Registry) Name() string { return "auto" }

// Import sniffs the file format and runs the matching engine. Every failure
// is an ImportError; engine diagnostics are kept verbatim.
func (r *Registry) Import(path string) (scene.Scene, error) {
	log := logger.Named("importer")

	header, err := readHeader(path)
	if err != nil {
		return nil, &scene.ImportError{Path: path, Reason: errors.Cause(err).Error()}
	}

	engine, kind := r.pick(path, header)
	if engine == nil {
		reason := "unrecognized file format"
		if kind != types.Unknown {
			reason = "unsupported file format " + kind.MIME.Value
		}
		return nil, &scene.ImportError{Path: path, Reason: reason}
	}

	log.Debug("importing", zap.String("path", path), zap.String("engine", engine.Name()), zap.String("sniffed", kind.Extension))

	sc, err := engine.Import(path)
	if err != nil {
		var imp *scene.ImportError
		if errors.As(err, &imp) {
			return nil, err
		}
		return nil, &scene.ImportError{Path: path, Engine: engine.Name(), Reason: err.Error()}
	}
	return sc, nil
}

func (r *Registry) pick(path string, header []byte) (scene.Engine, types.Type) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.prefer {
		for _, reg := range r.engines {
			if reg.engine.Name() == name && reg.claims(path, header) {
				return reg.engine, types.Unknown
			}
		}
	}

	kind, _ := filetype.Match(header)
	if e, ok := r.byFormat[kind.Extension]; ok {
		return e, kind
	}
	if e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return e, kind
	}
	if len(r.fallbacks) > 0 {
		return r.fallbacks[0], kind
	}
	return nil, kind
}

// claims reports whether a registration is willing to read the file.
// Fallback engines claim everything.
func (reg registration) claims(path string, header []byte) bool {
	if len(reg.formats) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range reg.formats {
		if f.Match != nil && f.Match(header) {
			return true
		}
		for _, e := range f.Extensions {
			if strings.ToLower(e) == ext {
				return true
			}
		}
	}
	return false
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open")
	}
	defer f.Close()

	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.Wrapf(err, "Failed to read header")
	}
	if n == 0 {
		return nil, errors.New("file is empty")
	}
	return header[:n], nil
}
