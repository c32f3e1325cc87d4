// Package assimpdriver reads every format the Open Asset Import Library
// knows. It needs libassimp and cgo, and is only compiled in with the
// assimp build tag:
//
//	go build -tags assimp
//
// Without the tag the package still builds, Available is false and no
// engine is registered.
package assimpdriver

import "sync"

// Options are the assimp post processing steps the engine requests.
type Options struct {
	Triangulate           bool
	JoinIdenticalVertices bool
}

// DefaultOptions are used until Configure is called.
func DefaultOptions() Options {
	return Options{Triangulate: false, JoinIdenticalVertices: true}
}

var (
	optionsLock sync.RWMutex
	options     = DefaultOptions()
)

// Configure changes the options used by later imports.
func Configure(o Options) {
	optionsLock.Lock()
	options = o
	optionsLock.Unlock()
}

func currentOptions() Options {
	optionsLock.RLock()
	defer optionsLock.RUnlock()
	return options
}
