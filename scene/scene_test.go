package scene

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexArrayLayouts(t *testing.T) {
	rows := VertexArray{Data: []float32{1, 2, 3, 4, 5, 6}, Count: 2, Components: 3, Layout: RowMajor}
	cols := VertexArray{Data: []float32{1, 4, 2, 5, 3, 6}, Count: 2, Components: 3, Layout: ColumnMajor}

	for i := 0; i < 2; i++ {
		for c := 0; c < 3; c++ {
			assert.Equal(t, rows.At(i, c), cols.At(i, c), "vertex %d component %d", i, c)
		}
	}
	assert.True(t, rows.Valid())
	assert.False(t, VertexArray{Data: []float32{1}, Count: 2, Components: 3}.Valid())
}

var embeddedTests = []struct {
	in    string
	index int
	ok    bool
}{
	{"*0", 0, true},
	{"*12", 12, true},
	{"*", 0, false},
	{"*-1", 0, false},
	{"tex.png", 0, false},
	{"", 0, false},
}

func TestIsEmbeddedTexture(t *testing.T) {
	for _, test := range embeddedTests {
		index, ok := IsEmbeddedTexture(test.in)
		if ok != test.ok || index != test.index {
			t.Errorf("IsEmbeddedTexture(%q)=%d,%v; expected %d,%v", test.in, index, ok, test.index, test.ok)
		}
	}
	assert.Equal(t, "*3", EmbeddedTextureRef(3))
}

func TestErrorsAs(t *testing.T) {
	err := errors.Wrapf(&UnsupportedTopologyError{Mesh: 0, Face: 2, Vertices: 4}, "marshal")

	var topo *UnsupportedTopologyError
	require.True(t, errors.As(err, &topo))
	assert.Equal(t, 4, topo.Vertices)
	assert.Contains(t, err.Error(), "4 vertices")

	imp := &ImportError{Path: "a.obj", Engine: "obj", Reason: "line 3: bad vertex"}
	assert.Equal(t, `import "a.obj" (obj): line 3: bad vertex`, imp.Error())
}
