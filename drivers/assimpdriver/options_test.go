package assimpdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mogaika/sceneimport/config"
)

func TestConfigure(t *testing.T) {
	old := currentOptions()
	defer Configure(old)

	Configure(Options{Triangulate: true})
	assert.Equal(t, Options{Triangulate: true}, currentOptions())
}

func TestDefaultOptionsMatchConfig(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, DefaultOptions(), Options{
		Triangulate:           cfg.Import.Triangulate,
		JoinIdenticalVertices: cfg.Import.JoinIdenticalVertices,
	})
}
