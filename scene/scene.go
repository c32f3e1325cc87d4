// Package scene describes the read-only view of an imported scene graph
// that import engines hand out, together with the errors of the import
// pipeline.
//
// Everything reachable from a Scene is owned by it and becomes invalid once
// Release is called. Values returned by the accessors, VertexArray data and
// Face slices included, may alias engine memory and must be copied before
// the scene is released.
package scene

import (
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// EmbeddedTexturePrefix marks a texture reference that points inside the
// source file instead of to an external file, e.g. "*0".
const EmbeddedTexturePrefix = "*"

type Engine interface {
	Name() string
	Import(path string) (Scene, error)
}

type Scene interface {
	Root() Node
	NumMeshes() int
	Mesh(i int) Mesh
	NumMaterials() int
	Material(i int) Material
	// Release frees engine memory. Only the lifetime package calls it.
	Release()
}

type Node interface {
	Name() string
	// Transform is the local transform relative to the parent node.
	Transform() mgl64.Mat4
	MeshIndices() []int
	Children() []Node
}

type Mesh interface {
	Name() string
	NumVertices() int
	Vertices() VertexArray
	NumFaces() int
	Face(i int) []uint32
	Normals() (VertexArray, bool)
	NumTexCoordChannels() int
	TexCoords(channel int) (VertexArray, bool)
	NumColorChannels() int
	Colors(channel int) (VertexArray, bool)
	// MaterialIndex is negative when the mesh has no material.
	MaterialIndex() int
}

type Material interface {
	Name() string
	DiffuseTexture() (string, bool)
}

type Layout int

const (
	// RowMajor stores components of one vertex next to each other: x0 y0 z0 x1 y1 z1 ...
	RowMajor Layout = iota
	// ColumnMajor stores one component for all vertices, then the next: x0 x1 ... y0 y1 ...
	ColumnMajor
)

func (l Layout) String() string {
	switch l {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	default:
		return "Layout(" + strconv.Itoa(int(l)) + ")"
	}
}

// VertexArray is a view of per-vertex engine data.
type VertexArray struct {
	Data       []float32
	Count      int
	Components int
	Layout     Layout
}

// At returns component c of vertex i regardless of layout.
func (a VertexArray) At(i, c int) float32 {
	if a.Layout == ColumnMajor {
		return a.Data[c*a.Count+i]
	}
	return a.Data[i*a.Components+c]
}

// Valid reports whether Data is large enough for Count×Components values.
func (a VertexArray) Valid() bool {
	return a.Count >= 0 && a.Components > 0 && len(a.Data) >= a.Count*a.Components
}

// IsEmbeddedTexture reports whether ref is an embedded texture marker and
// returns the embedded texture index.
func IsEmbeddedTexture(ref string) (int, bool) {
	if !strings.HasPrefix(ref, EmbeddedTexturePrefix) {
		return 0, false
	}
	idx, err := strconv.Atoi(ref[len(EmbeddedTexturePrefix):])
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

func EmbeddedTextureRef(index int) string {
	return EmbeddedTexturePrefix + strconv.Itoa(index)
}
