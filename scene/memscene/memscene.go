// Package memscene implements scene.Scene over Go-owned memory. Pure Go
// engines build their result with it and tests use it as a scene double.
package memscene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/sceneimport/scene"
)

type Scene struct {
	RootNode  *Node
	Meshes    []*Mesh
	Materials []*Material

	// OnRelease is called on every Release with the number of releases so far.
	OnRelease func(count int)

	released int
}

func New(root *Node) *Scene {
	return &Scene{RootNode: root}
}

func (s *Scene) Root() scene.Node {
	if s.RootNode == nil {
		return nil
	}
	return s.RootNode
}

func (s *Scene) NumMeshes() int                { return len(s.Meshes) }
func (s *Scene) Mesh(i int) scene.Mesh         { return s.Meshes[i] }
func (s *Scene) NumMaterials() int             { return len(s.Materials) }
func (s *Scene) Material(i int) scene.Material { return s.Materials[i] }

func (s *Scene) Release() {
	s.released++
	if s.OnRelease != nil {
		s.OnRelease(s.released)
	}
}

// ReleaseCount returns how many times Release was called.
func (s *Scene) ReleaseCount() int { return s.released }

// AddMesh appends m and returns its index.
func (s *Scene) AddMesh(m *Mesh) int {
	s.Meshes = append(s.Meshes, m)
	return len(s.Meshes) - 1
}

// AddMaterial appends m and returns its index.
func (s *Scene) AddMaterial(m *Material) int {
	s.Materials = append(s.Materials, m)
	return len(s.Materials) - 1
}

type Node struct {
	NodeName string
	Local    mgl64.Mat4
	Meshes   []int
	Kids     []*Node
}

// NewNode returns a node with an identity local transform.
func NewNode(name string, meshes ...int) *Node {
	return &Node{NodeName: name, Local: mgl64.Ident4(), Meshes: meshes}
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Kids = append(n.Kids, children...)
	return n
}

func (n *Node) Name() string          { return n.NodeName }
func (n *Node) Transform() mgl64.Mat4 { return n.Local }
func (n *Node) MeshIndices() []int    { return n.Meshes }

func (n *Node) Children() []scene.Node {
	children := make([]scene.Node, len(n.Kids))
	for i, k := range n.Kids {
		children[i] = k
	}
	return children
}

type Mesh struct {
	MeshName  string
	Positions scene.VertexArray
	Faces     [][]uint32
	// NormalArray is nil when the mesh has no normals.
	NormalArray    *scene.VertexArray
	TexCoordArrays []scene.VertexArray
	ColorArrays    []scene.VertexArray
	Material       int
}

// NewMesh returns a row-major mesh from xyz triples and faces. The mesh has no material.
func NewMesh(name string, positions [][3]float32, faces ...[]uint32) *Mesh {
	return &Mesh{
		MeshName:  name,
		Positions: Float3(positions),
		Faces:     faces,
		Material:  -1,
	}
}

func (m *Mesh) Name() string                { return m.MeshName }
func (m *Mesh) NumVertices() int            { return m.Positions.Count }
func (m *Mesh) Vertices() scene.VertexArray { return m.Positions }
func (m *Mesh) NumFaces() int               { return len(m.Faces) }
func (m *Mesh) Face(i int) []uint32         { return m.Faces[i] }
func (m *Mesh) NumTexCoordChannels() int    { return len(m.TexCoordArrays) }
func (m *Mesh) NumColorChannels() int       { return len(m.ColorArrays) }
func (m *Mesh) MaterialIndex() int          { return m.Material }

func (m *Mesh) Normals() (scene.VertexArray, bool) {
	if m.NormalArray == nil {
		return scene.VertexArray{}, false
	}
	return *m.NormalArray, true
}

func (m *Mesh) TexCoords(channel int) (scene.VertexArray, bool) {
	if channel < 0 || channel >= len(m.TexCoordArrays) {
		return scene.VertexArray{}, false
	}
	return m.TexCoordArrays[channel], true
}

func (m *Mesh) Colors(channel int) (scene.VertexArray, bool) {
	if channel < 0 || channel >= len(m.ColorArrays) {
		return scene.VertexArray{}, false
	}
	return m.ColorArrays[channel], true
}

type Material struct {
	MaterialName string
	// Diffuse is the raw diffuse texture reference, empty when there is none.
	Diffuse string
}

func (m *Material) Name() string { return m.MaterialName }

func (m *Material) DiffuseTexture() (string, bool) {
	return m.Diffuse, m.Diffuse != ""
}

func Float2(values [][2]float32) scene.VertexArray {
	data := make([]float32, 0, len(values)*2)
	for _, v := range values {
		data = append(data, v[0], v[1])
	}
	return scene.VertexArray{Data: data, Count: len(values), Components: 2}
}

func Float3(values [][3]float32) scene.VertexArray {
	data := make([]float32, 0, len(values)*3)
	for _, v := range values {
		data = append(data, v[0], v[1], v[2])
	}
	return scene.VertexArray{Data: data, Count: len(values), Components: 3}
}

func Float4(values [][4]float32) scene.VertexArray {
	data := make([]float32, 0, len(values)*4)
	for _, v := range values {
		data = append(data, v[0], v[1], v[2], v[3])
	}
	return scene.VertexArray{Data: data, Count: len(values), Components: 4}
}

// ColumnMajor returns a copy of a with components stored column by column.
func ColumnMajor(a scene.VertexArray) scene.VertexArray {
	data := make([]float32, a.Count*a.Components)
	for i := 0; i < a.Count; i++ {
		for c := 0; c < a.Components; c++ {
			data[c*a.Count+i] = a.At(i, c)
		}
	}
	return scene.VertexArray{Data: data, Count: a.Count, Components: a.Components, Layout: scene.ColumnMajor}
}
