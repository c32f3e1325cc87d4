package web

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mogaika/sceneimport/logger"
	"github.com/mogaika/sceneimport/marshal"
)

type cacheEntry struct {
	path   string
	meshes []*marshal.MarshaledMesh
}

// MeshCache keeps marshaled meshes until a file in the same directory
// changes. Directories are watched from the first Put into them.
type MeshCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	watched map[string]bool
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewMeshCache() (*MeshCache, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	c := &MeshCache{
		entries: make(map[string]cacheEntry),
		watched: make(map[string]bool),
		watcher: w,
		done:    make(chan struct{}),
	}
	go c.watch()
	return c, nil
}

func (c *MeshCache) watch() {
	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			// textures and material libraries live next to the model
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				c.InvalidateDir(filepath.Dir(event.Name))
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logger.Named("web").Warn("watcher error", zap.Error(err))
		}
	}
}

func (c *MeshCache) Get(key string) ([]*marshal.MarshaledMesh, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.meshes, ok
}

func (c *MeshCache) Put(key, path string, meshes []*marshal.MarshaledMesh) {
	dir := filepath.Dir(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.watched[dir] {
		if err := c.watcher.Add(dir); err != nil {
			// unwatched entries would go stale
			logger.Named("web").Warn("not caching, failed to watch", zap.String("dir", dir), zap.Error(err))
			return
		}
		c.watched[dir] = true
	}
	c.entries[key] = cacheEntry{path: path, meshes: meshes}
}

func (c *MeshCache) InvalidateDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if filepath.Dir(e.path) == dir {
			delete(c.entries, key)
			logger.Named("web").Debug("cache invalidated", zap.String("path", e.path))
		}
	}
}

func (c *MeshCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MeshCache) Close() error {
	close(c.done)
	return c.watcher.Close()
}
