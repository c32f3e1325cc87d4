// Package marshal copies mesh data out of an imported scene into buffers the
// caller owns. Nothing returned from this package aliases engine memory, so
// results stay valid after the scene is released.
package marshal

import (
	"encoding/json"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/sceneimport/scene"
	"github.com/mogaika/sceneimport/texture"
)

type Options struct {
	// TexCoordChannel selects the texture coordinate set to copy.
	TexCoordChannel int
	// ColorChannel selects the vertex color set to copy.
	ColorChannel int
	// TexCoordsWithW keeps the third texture coordinate component. Sets with
	// only u and v get w = 0.
	TexCoordsWithW bool
}

type MarshaledMesh struct {
	Name          string
	MeshIndex     int
	MaterialIndex int
	Points        Float64Buffer           // N×3
	Trilist       Int32Buffer             // M×3
	Normals       Optional[Float64Buffer] // N×3
	TexCoords     Optional[Float64Buffer] // N×2 or N×3 with w, v flipped
	Colors        Optional[Float64Buffer] // N×4 rgba
	Texture       texture.Ref

	// Transform is the world transform of the node the mesh was selected under.
	Transform mgl64.Mat4
	// NodePath lists node names from the scene root to that node.
	NodePath []string
}

func (m *MarshaledMesh) NumPoints() int { return m.Points.Rows }

func (m *MarshaledMesh) NumTriangles() int { return m.Trilist.Rows }

// IsPointCloud reports whether the mesh has vertices but no faces.
func (m *MarshaledMesh) IsPointCloud() bool { return m.Points.Rows > 0 && m.Trilist.Rows == 0 }

// TransformRows returns Transform as rows, row i column j at [i][j].
func (m *MarshaledMesh) TransformRows() [4][4]float64 {
	var rows [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			rows[i][j] = m.Transform.At(i, j)
		}
	}
	return rows
}

// Validate checks the shape invariants every marshaled mesh holds.
func (m *MarshaledMesh) Validate() error {
	n := m.Points.Rows
	if m.Points.Cols != 3 || len(m.Points.Data) != n*3 {
		return errors.Errorf("points buffer is %dx%d with %d values", m.Points.Rows, m.Points.Cols, len(m.Points.Data))
	}
	if m.Trilist.Cols != 3 || len(m.Trilist.Data) != m.Trilist.Rows*3 {
		return errors.Errorf("trilist buffer is %dx%d with %d values", m.Trilist.Rows, m.Trilist.Cols, len(m.Trilist.Data))
	}
	for i, idx := range m.Trilist.Data {
		if idx < 0 || int(idx) >= n {
			return errors.Errorf("triangle %d references vertex %d of %d", i/3, idx, n)
		}
	}
	if normals, ok := m.Normals.Get(); ok && (normals.Rows != n || normals.Cols != 3) {
		return errors.Errorf("normals buffer is %dx%d for %d points", normals.Rows, normals.Cols, n)
	}
	if tcoords, ok := m.TexCoords.Get(); ok && (tcoords.Rows != n || (tcoords.Cols != 2 && tcoords.Cols != 3)) {
		return errors.Errorf("texcoords buffer is %dx%d for %d points", tcoords.Rows, tcoords.Cols, n)
	}
	if colors, ok := m.Colors.Get(); ok && (colors.Rows != n || colors.Cols != 4) {
		return errors.Errorf("colors buffer is %dx%d for %d points", colors.Rows, colors.Cols, n)
	}
	return nil
}

func (m *MarshaledMesh) MarshalJSON() ([]byte, error) {
	type jBuffer struct {
		Shape [2]int    `json:"shape"`
		Data  []float64 `json:"data"`
	}
	opt := func(o Optional[Float64Buffer]) *jBuffer {
		if b, ok := o.Get(); ok {
			return &jBuffer{Shape: [2]int{b.Rows, b.Cols}, Data: b.Data}
		}
		return nil
	}
	type jTrilist struct {
		Shape [2]int  `json:"shape"`
		Data  []int32 `json:"data"`
	}
	return json.Marshal(&struct {
		Name          string        `json:"name"`
		MeshIndex     int           `json:"mesh_index"`
		MaterialIndex int           `json:"material_index"`
		Points        jBuffer       `json:"points"`
		Trilist       jTrilist      `json:"trilist"`
		Normals       *jBuffer      `json:"normals"`
		TexCoords     *jBuffer      `json:"tcoords"`
		Colors        *jBuffer      `json:"colours"`
		Texture       texture.Ref   `json:"texture"`
		Transform     [4][4]float64 `json:"transform"`
		NodePath      []string      `json:"node_path"`
	}{
		Name:          m.Name,
		MeshIndex:     m.MeshIndex,
		MaterialIndex: m.MaterialIndex,
		Points:        jBuffer{Shape: [2]int{m.Points.Rows, m.Points.Cols}, Data: m.Points.Data},
		Trilist:       jTrilist{Shape: [2]int{m.Trilist.Rows, m.Trilist.Cols}, Data: m.Trilist.Data},
		Normals:       opt(m.Normals),
		TexCoords:     opt(m.TexCoords),
		Colors:        opt(m.Colors),
		Texture:       m.Texture,
		Transform:     m.TransformRows(),
		NodePath:      m.NodePath,
	})
}

// FlipV converts a v texture coordinate between top-left and bottom-left origin.
func FlipV(v float64) float64 { return 1 - v }

// Marshal copies mesh meshIndex of sc. It must be called while sc is alive.
// Transform, NodePath and Texture are left for the caller to fill.
func Marshal(sc scene.Scene, meshIndex int, opts Options) (*MarshaledMesh, error) {
	if meshIndex < 0 || meshIndex >= sc.NumMeshes() {
		return nil, &scene.MeshIndexOutOfRangeError{Index: meshIndex, Count: sc.NumMeshes()}
	}
	mesh := sc.Mesh(meshIndex)
	n := mesh.NumVertices()

	points, err := copyArray(mesh.Vertices(), n, 3)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh %d vertices", meshIndex)
	}

	trilist, err := copyFaces(mesh, meshIndex, n)
	if err != nil {
		return nil, err
	}

	mm := &MarshaledMesh{
		Name:          mesh.Name(),
		MeshIndex:     meshIndex,
		MaterialIndex: mesh.MaterialIndex(),
		Points:        points,
		Trilist:       trilist,
		Transform:     mgl64.Ident4(),
	}

	if arr, ok := mesh.Normals(); ok {
		normals, err := copyArray(arr, n, 3)
		if err != nil {
			return nil, errors.Wrapf(err, "mesh %d normals", meshIndex)
		}
		mm.Normals = Some(normals)
	}

	if arr, ok := mesh.TexCoords(opts.TexCoordChannel); ok {
		cols, take := 2, 2
		if opts.TexCoordsWithW {
			cols = 3
			if arr.Components >= 3 {
				take = 3
			}
		}
		tcoords, err := copyArray(arr, n, take)
		if err != nil {
			return nil, errors.Wrapf(err, "mesh %d texture coordinates %d", meshIndex, opts.TexCoordChannel)
		}
		if take < cols {
			tcoords = widen(tcoords, cols)
		}
		for i := 0; i < n; i++ {
			tcoords.Set(i, 1, FlipV(tcoords.At(i, 1)))
		}
		mm.TexCoords = Some(tcoords)
	}

	if arr, ok := mesh.Colors(opts.ColorChannel); ok {
		colors, err := copyArray(arr, n, 4)
		if err != nil {
			return nil, errors.Wrapf(err, "mesh %d colours %d", meshIndex, opts.ColorChannel)
		}
		mm.Colors = Some(colors)
	}

	return mm, nil
}

// copyArray copies the first cols components of every vertex into a row-major buffer.
func copyArray(arr scene.VertexArray, n, cols int) (Float64Buffer, error) {
	if arr.Count != n {
		return Float64Buffer{}, errors.Errorf("array has %d elements, mesh has %d vertices", arr.Count, n)
	}
	if arr.Components < cols {
		return Float64Buffer{}, errors.Errorf("array has %d components, need %d", arr.Components, cols)
	}
	if !arr.Valid() {
		return Float64Buffer{}, errors.Errorf("array holds %d values, need %d", len(arr.Data), arr.Count*arr.Components)
	}

	buf := NewFloat64Buffer(n, cols)
	if arr.Layout == scene.RowMajor && arr.Components == cols {
		for i, v := range arr.Data[:n*cols] {
			buf.Data[i] = float64(v)
		}
		return buf, nil
	}
	for i := 0; i < n; i++ {
		for c := 0; c < cols; c++ {
			buf.Data[i*cols+c] = float64(arr.At(i, c))
		}
	}
	return buf, nil
}

// widen copies b into a buffer with cols columns, zero filling the new ones.
func widen(b Float64Buffer, cols int) Float64Buffer {
	out := NewFloat64Buffer(b.Rows, cols)
	for i := 0; i < b.Rows; i++ {
		copy(out.Row(i), b.Row(i))
	}
	return out
}

func copyFaces(mesh scene.Mesh, meshIndex, n int) (Int32Buffer, error) {
	m := mesh.NumFaces()
	trilist := NewInt32Buffer(m, 3)
	for i := 0; i < m; i++ {
		face := mesh.Face(i)
		if len(face) != 3 {
			return Int32Buffer{}, &scene.UnsupportedTopologyError{Mesh: meshIndex, Face: i, Vertices: len(face)}
		}
		for c, idx := range face {
			if int64(idx) >= int64(n) {
				return Int32Buffer{}, errors.Errorf("mesh %d face %d references vertex %d of %d", meshIndex, i, idx, n)
			}
			trilist.Data[i*3+c] = int32(idx)
		}
	}
	return trilist, nil
}
