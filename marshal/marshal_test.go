package marshal

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/sceneimport/scene"
	"github.com/mogaika/sceneimport/scene/memscene"
)

var quadPositions = [][3]float32{
	{0, 0, 0},
	{1, 0, 0},
	{1, 1, 0},
	{0, 1, 0},
}

func twoTriangles() *memscene.Mesh {
	return memscene.NewMesh("quad", quadPositions, []uint32{0, 1, 2}, []uint32{0, 2, 3})
}

func singleMeshScene(m *memscene.Mesh) *memscene.Scene {
	sc := memscene.New(memscene.NewNode("root", 0))
	sc.AddMesh(m)
	return sc
}

func TestMarshalPointsAndTrilist(t *testing.T) {
	mm, err := Marshal(singleMeshScene(twoTriangles()), 0, Options{})
	require.NoError(t, err)
	require.NoError(t, mm.Validate())

	assert.Equal(t, 4, mm.NumPoints())
	assert.Equal(t, 2, mm.NumTriangles())
	assert.Equal(t, []float64{1, 1, 0}, mm.Points.Row(2))
	assert.Equal(t, []int32{0, 2, 3}, mm.Trilist.Row(1))
	assert.Equal(t, -1, mm.MaterialIndex)
	assert.False(t, mm.IsPointCloud())

	assert.False(t, mm.Normals.Present())
	assert.False(t, mm.TexCoords.Present())
	assert.False(t, mm.Colors.Present())
}

func TestMarshalLayoutNormalization(t *testing.T) {
	rowMesh := twoTriangles()
	rowMesh.NormalArray = &scene.VertexArray{}
	*rowMesh.NormalArray = memscene.Float3([][3]float32{{0, 0, 1}, {0, 1, 0}, {1, 0, 0}, {0, 0, -1}})

	colMesh := twoTriangles()
	colMesh.Positions = memscene.ColumnMajor(rowMesh.Positions)
	colNormals := memscene.ColumnMajor(*rowMesh.NormalArray)
	colMesh.NormalArray = &colNormals

	fromRows, err := Marshal(singleMeshScene(rowMesh), 0, Options{})
	require.NoError(t, err)
	fromCols, err := Marshal(singleMeshScene(colMesh), 0, Options{})
	require.NoError(t, err)

	assert.Equal(t, fromRows.Points, fromCols.Points)
	assert.Equal(t, fromRows.Normals, fromCols.Normals)
	for i, p := range quadPositions {
		assert.Equal(t, []float64{float64(p[0]), float64(p[1]), float64(p[2])}, fromCols.Points.Row(i))
	}
}

func TestMarshalTexCoordsFlipV(t *testing.T) {
	m := twoTriangles()
	m.TexCoordArrays = []scene.VertexArray{
		memscene.Float2([][2]float32{{0, 0}, {1, 0}, {1, 1}, {0.25, 0.75}}),
		memscene.Float2([][2]float32{{9, 9}, {9, 9}, {9, 9}, {9, 9}}),
	}

	mm, err := Marshal(singleMeshScene(m), 0, Options{})
	require.NoError(t, err)
	tcoords, ok := mm.TexCoords.Get()
	require.True(t, ok)
	assert.Equal(t, 4, tcoords.Rows)
	assert.Equal(t, 2, tcoords.Cols)
	assert.Equal(t, []float64{0, 1}, tcoords.Row(0))
	assert.Equal(t, []float64{1, 0}, tcoords.Row(2))
	assert.Equal(t, []float64{0.25, 0.25}, tcoords.Row(3))

	second, err := Marshal(singleMeshScene(m), 0, Options{TexCoordChannel: 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{9, -8}, second.TexCoords.MustGet().Row(0))
}

func TestFlipV(t *testing.T) {
	assert.Equal(t, 1.0, FlipV(0))
	assert.Equal(t, 0.0, FlipV(1))
	for _, v := range []float64{0, 0.125, 0.5, 0.75, 1, 2} {
		assert.Equal(t, v, FlipV(FlipV(v)))
	}
}

func TestMarshalTexCoordsWithThreeComponents(t *testing.T) {
	m := twoTriangles()
	uvw := memscene.Float3([][3]float32{{0, 0, 5}, {1, 0, 5}, {1, 1, 5}, {0, 1, 5}})
	m.TexCoordArrays = []scene.VertexArray{memscene.ColumnMajor(uvw)}

	mm, err := Marshal(singleMeshScene(m), 0, Options{})
	require.NoError(t, err)
	tcoords := mm.TexCoords.MustGet()
	assert.Equal(t, 2, tcoords.Cols)
	assert.Equal(t, []float64{1, 1}, tcoords.Row(1))
	assert.Equal(t, []float64{0, 0}, tcoords.Row(3))
}

func TestMarshalTexCoordsWithW(t *testing.T) {
	m := twoTriangles()
	uvw := memscene.Float3([][3]float32{{0, 0, 5}, {1, 0, 6}, {1, 1, 7}, {0, 1, 8}})
	m.TexCoordArrays = []scene.VertexArray{
		memscene.ColumnMajor(uvw),
		memscene.Float2([][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 0.25}}),
	}

	mm, err := Marshal(singleMeshScene(m), 0, Options{TexCoordsWithW: true})
	require.NoError(t, err)
	require.NoError(t, mm.Validate())
	tcoords := mm.TexCoords.MustGet()
	assert.Equal(t, 4, tcoords.Rows)
	assert.Equal(t, 3, tcoords.Cols)
	assert.Equal(t, []float64{0, 1, 5}, tcoords.Row(0))
	assert.Equal(t, []float64{1, 1, 6}, tcoords.Row(1))
	assert.Equal(t, []float64{0, 0, 8}, tcoords.Row(3))

	// u and v only, w is zero filled
	mm, err = Marshal(singleMeshScene(m), 0, Options{TexCoordChannel: 1, TexCoordsWithW: true})
	require.NoError(t, err)
	require.NoError(t, mm.Validate())
	tcoords = mm.TexCoords.MustGet()
	assert.Equal(t, 3, tcoords.Cols)
	assert.Equal(t, []float64{1, 1, 0}, tcoords.Row(1))
	assert.Equal(t, []float64{0, 0.75, 0}, tcoords.Row(3))

	data, err := json.Marshal(mm)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tcoords":{"shape":[4,3]`)
}

func TestMarshalColors(t *testing.T) {
	m := twoTriangles()
	m.ColorArrays = []scene.VertexArray{memscene.Float4([][4]float32{{1, 0, 0, 1}, {0, 1, 0, 1}, {0, 0, 1, 1}, {1, 1, 1, 0.5}})}

	mm, err := Marshal(singleMeshScene(m), 0, Options{})
	require.NoError(t, err)
	require.NoError(t, mm.Validate())
	assert.Equal(t, []float64{1, 1, 1, 0.5}, mm.Colors.MustGet().Row(3))
}

func TestMarshalNoAliasing(t *testing.T) {
	m := twoTriangles()
	normals := memscene.Float3([][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	m.NormalArray = &normals
	sc := singleMeshScene(m)

	mm, err := Marshal(sc, 0, Options{})
	require.NoError(t, err)

	// scribble over engine memory as a release would
	for i := range m.Positions.Data {
		m.Positions.Data[i] = -100
	}
	for i := range normals.Data {
		normals.Data[i] = -100
	}
	m.Faces[0][0] = 3

	assert.Equal(t, []float64{1, 0, 0}, mm.Points.Row(1))
	assert.Equal(t, []float64{0, 0, 1}, mm.Normals.MustGet().Row(0))
	assert.Equal(t, []int32{0, 1, 2}, mm.Trilist.Row(0))
}

func TestMarshalQuadFace(t *testing.T) {
	m := memscene.NewMesh("quad", quadPositions, []uint32{0, 1, 2, 3})

	_, err := Marshal(singleMeshScene(m), 0, Options{})
	var topo *scene.UnsupportedTopologyError
	require.True(t, errors.As(err, &topo))
	assert.Equal(t, 4, topo.Vertices)
	assert.Equal(t, 0, topo.Face)
	assert.Contains(t, err.Error(), "4")
}

func TestMarshalPointCloud(t *testing.T) {
	mm, err := Marshal(singleMeshScene(memscene.NewMesh("cloud", quadPositions)), 0, Options{})
	require.NoError(t, err)
	require.NoError(t, mm.Validate())
	assert.True(t, mm.IsPointCloud())
	assert.Equal(t, 0, mm.Trilist.Rows)
}

func TestMarshalMeshIndexOutOfRange(t *testing.T) {
	sc := singleMeshScene(twoTriangles())
	for _, idx := range []int{-1, 1, 100} {
		_, err := Marshal(sc, idx, Options{})
		var oor *scene.MeshIndexOutOfRangeError
		if assert.True(t, errors.As(err, &oor), "index %d", idx) {
			assert.Equal(t, idx, oor.Index)
			assert.Equal(t, 1, oor.Count)
		}
	}
}

func TestMarshalFaceIndexOutOfRange(t *testing.T) {
	m := memscene.NewMesh("bad", quadPositions, []uint32{0, 1, 4})
	_, err := Marshal(singleMeshScene(m), 0, Options{})
	assert.Error(t, err)
}

func TestMarshalShortNormals(t *testing.T) {
	m := twoTriangles()
	normals := memscene.Float3([][3]float32{{0, 0, 1}})
	m.NormalArray = &normals
	_, err := Marshal(singleMeshScene(m), 0, Options{})
	assert.Error(t, err)
}

func TestMarshalJSON(t *testing.T) {
	mm, err := Marshal(singleMeshScene(twoTriangles()), 0, Options{})
	require.NoError(t, err)

	data, err := json.Marshal(mm)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["normals"])
	assert.Equal(t, []interface{}{4.0, 3.0}, decoded["points"].(map[string]interface{})["shape"])
	assert.Equal(t, []interface{}{2.0, 3.0}, decoded["trilist"].(map[string]interface{})["shape"])
	assert.Equal(t, "none", decoded["texture"].(map[string]interface{})["kind"])
}

func TestOptional(t *testing.T) {
	var o Optional[int]
	assert.False(t, o.Present())
	assert.Panics(t, func() { o.MustGet() })

	o = Some(0)
	v, ok := o.Get()
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	assert.False(t, None[int]().Present())
}
