// Package gltfdriver imports glTF 2.0 and GLB files with qmuntal/gltf.
//
// Every primitive becomes one scene mesh, so a glTF mesh with several
// primitives shows up as several mesh indices on its node.
package gltfdriver

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/sceneimport/importer"
	"github.com/mogaika/sceneimport/scene"
	"github.com/mogaika/sceneimport/scene/memscene"
)

func init() {
	importer.Register(Engine{}, Formats...)
}

var Formats = []importer.Format{
	{
		Name:       "glb",
		MIME:       "model/gltf-binary",
		Extensions: []string{".glb", ".vrm"},
		Match:      MatchGLB,
	}, {
		Name:       "gltf",
		MIME:       "model/gltf+json",
		Extensions: []string{".gltf"},
		Match:      MatchGLTF,
	},
}

// MatchGLB checks the binary container magic and version 2.
func MatchGLB(header []byte) bool {
	return len(header) >= 8 && bytes.Equal(header[:4], []byte("glTF")) && header[4] == 2
}

// MatchGLTF accepts JSON documents that declare a glTF asset.
func MatchGLTF(header []byte) bool {
	trimmed := bytes.TrimLeft(header, " \t\r\n\xef\xbb\xbf")
	return len(trimmed) > 0 && trimmed[0] == '{' && bytes.Contains(header, []byte(`"asset"`))
}

type Engine struct{}

func (Engine) Name() string { return "gltf" }

func (Engine) Import(path string) (scene.Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}
	return convert(doc)
}

type converter struct {
	doc *gltf.Document
	sc  *memscene.Scene
	// primitives maps a glTF mesh to the scene meshes of its primitives
	primitives [][]int
	// materials maps a glTF material to a scene material
	materials map[uint32]int
}

func convert(doc *gltf.Document) (*memscene.Scene, error) {
	c := &converter{
		doc:       doc,
		sc:        memscene.New(nil),
		materials: make(map[uint32]int),
	}

	for i := range doc.Materials {
		c.materials[uint32(i)] = c.sc.AddMaterial(c.material(doc.Materials[i]))
	}

	c.primitives = make([][]int, len(doc.Meshes))
	for iMesh, mesh := range doc.Meshes {
		for iPrim, prim := range mesh.Primitives {
			m, err := c.primitive(prim)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %d primitive %d", iMesh, iPrim)
			}
			m.MeshName = mesh.Name
			if len(mesh.Primitives) > 1 {
				m.MeshName = fmt.Sprintf("%s_%d", mesh.Name, iPrim)
			}
			c.primitives[iMesh] = append(c.primitives[iMesh], c.sc.AddMesh(m))
		}
	}

	roots, err := c.rootNodes()
	if err != nil {
		return nil, err
	}

	built := make(map[uint32]*memscene.Node)
	var build func(idx uint32, depth int) (*memscene.Node, error)
	build = func(idx uint32, depth int) (*memscene.Node, error) {
		if int(idx) >= len(doc.Nodes) {
			return nil, errors.Errorf("node index %d out of range", idx)
		}
		if _, seen := built[idx]; seen || depth > len(doc.Nodes) {
			return nil, errors.Errorf("node %d is referenced more than once", idx)
		}
		n := doc.Nodes[idx]
		node := memscene.NewNode(n.Name)
		built[idx] = node
		node.Local = nodeTransform(n)
		if n.Mesh != nil {
			if int(*n.Mesh) >= len(c.primitives) {
				return nil, errors.Errorf("node %d references mesh %d of %d", idx, *n.Mesh, len(c.primitives))
			}
			node.Meshes = append(node.Meshes, c.primitives[*n.Mesh]...)
		}
		for _, child := range n.Children {
			cn, err := build(child, depth+1)
			if err != nil {
				return nil, err
			}
			node.Add(cn)
		}
		return node, nil
	}

	var rootNodes []*memscene.Node
	for _, idx := range roots {
		n, err := build(idx, 0)
		if err != nil {
			return nil, err
		}
		rootNodes = append(rootNodes, n)
	}

	if len(rootNodes) == 1 {
		c.sc.RootNode = rootNodes[0]
	} else {
		c.sc.RootNode = memscene.NewNode("root").Add(rootNodes...)
	}
	return c.sc, nil
}

// rootNodes returns the nodes of the default scene, or of the first scene,
// or every parentless node when the file declares no scenes.
func (c *converter) rootNodes() ([]uint32, error) {
	doc := c.doc
	if len(doc.Scenes) > 0 {
		idx := uint32(0)
		if doc.Scene != nil {
			idx = *doc.Scene
		}
		if int(idx) >= len(doc.Scenes) {
			return nil, errors.Errorf("default scene %d out of range", idx)
		}
		return doc.Scenes[idx].Nodes, nil
	}

	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, child := range n.Children {
			if int(child) < len(isChild) {
				isChild[child] = true
			}
		}
	}
	var roots []uint32
	for i := range doc.Nodes {
		if !isChild[i] {
			roots = append(roots, uint32(i))
		}
	}
	return roots, nil
}

func (c *converter) material(m *gltf.Material) *memscene.Material {
	mat := &memscene.Material{MaterialName: m.Name}
	if m.PBRMetallicRoughness == nil || m.PBRMetallicRoughness.BaseColorTexture == nil {
		return mat
	}
	texIdx := m.PBRMetallicRoughness.BaseColorTexture.Index
	if int(texIdx) >= len(c.doc.Textures) || c.doc.Textures[texIdx].Source == nil {
		return mat
	}
	imgIdx := *c.doc.Textures[texIdx].Source
	if int(imgIdx) >= len(c.doc.Images) {
		return mat
	}

	img := c.doc.Images[imgIdx]
	switch {
	case img.BufferView != nil || img.IsEmbeddedResource():
		mat.Diffuse = scene.EmbeddedTextureRef(int(imgIdx))
	case img.URI != "":
		if uri, err := url.PathUnescape(img.URI); err == nil {
			mat.Diffuse = uri
		} else {
			mat.Diffuse = img.URI
		}
	}
	return mat
}

func (c *converter) primitive(prim *gltf.Primitive) (*memscene.Mesh, error) {
	doc := c.doc
	m := &memscene.Mesh{Material: -1}
	if prim.Material != nil {
		if idx, ok := c.materials[*prim.Material]; ok {
			m.Material = idx
		}
	}

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, errors.New("primitive has no POSITION attribute")
	}
	acr, err := c.accessor(posIdx)
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "POSITION")
	}
	m.Positions = memscene.Float3(positions)
	n := len(positions)

	if idx, ok := prim.Attributes["NORMAL"]; ok {
		acr, err := c.accessor(idx)
		if err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(doc, acr, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "NORMAL")
		}
		if len(normals) != n {
			return nil, errors.Errorf("NORMAL has %d elements for %d vertices", len(normals), n)
		}
		arr := memscene.Float3(normals)
		m.NormalArray = &arr
	}

	for ch := 0; ; ch++ {
		idx, ok := prim.Attributes[fmt.Sprintf("TEXCOORD_%d", ch)]
		if !ok {
			break
		}
		acr, err := c.accessor(idx)
		if err != nil {
			return nil, err
		}
		uvs, err := modeler.ReadTextureCoord(doc, acr, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "TEXCOORD_%d", ch)
		}
		if len(uvs) != n {
			return nil, errors.Errorf("TEXCOORD_%d has %d elements for %d vertices", ch, len(uvs), n)
		}
		m.TexCoordArrays = append(m.TexCoordArrays, memscene.Float2(uvs))
	}

	for ch := 0; ; ch++ {
		idx, ok := prim.Attributes[fmt.Sprintf("COLOR_%d", ch)]
		if !ok {
			break
		}
		acr, err := c.accessor(idx)
		if err != nil {
			return nil, err
		}
		colors, err := modeler.ReadColor(doc, acr, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "COLOR_%d", ch)
		}
		if len(colors) != n {
			return nil, errors.Errorf("COLOR_%d has %d elements for %d vertices", ch, len(colors), n)
		}
		rgba := make([][4]float32, len(colors))
		for i, col := range colors {
			rgba[i] = [4]float32{float32(col[0]) / 255, float32(col[1]) / 255, float32(col[2]) / 255, float32(col[3]) / 255}
		}
		m.ColorArrays = append(m.ColorArrays, memscene.Float4(rgba))
	}

	var indices []uint32
	if prim.Indices != nil {
		acr, err := c.accessor(*prim.Indices)
		if err != nil {
			return nil, err
		}
		if indices, err = modeler.ReadIndices(doc, acr, nil); err != nil {
			return nil, errors.Wrapf(err, "indices")
		}
	} else {
		indices = make([]uint32, n)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	m.Faces, err = faces(prim.Mode, indices)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (c *converter) accessor(idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(c.doc.Accessors) {
		return nil, errors.Errorf("accessor %d out of range", idx)
	}
	return c.doc.Accessors[idx], nil
}

// faces splits an index list into faces. Strips and fans are expanded into
// triangles, lines and points stay two and one index faces.
func faces(mode gltf.PrimitiveMode, indices []uint32) ([][]uint32, error) {
	var out [][]uint32
	switch mode {
	case gltf.PrimitiveTriangles:
		if len(indices)%3 != 0 {
			return nil, errors.Errorf("triangle list has %d indices", len(indices))
		}
		out = make([][]uint32, 0, len(indices)/3)
		for i := 0; i < len(indices); i += 3 {
			out = append(out, []uint32{indices[i], indices[i+1], indices[i+2]})
		}
	case gltf.PrimitiveTriangleStrip:
		for i := 2; i < len(indices); i++ {
			if i%2 == 0 {
				out = append(out, []uint32{indices[i-2], indices[i-1], indices[i]})
			} else {
				out = append(out, []uint32{indices[i-1], indices[i-2], indices[i]})
			}
		}
	case gltf.PrimitiveTriangleFan:
		for i := 2; i < len(indices); i++ {
			out = append(out, []uint32{indices[0], indices[i-1], indices[i]})
		}
	case gltf.PrimitiveLines:
		for i := 0; i+1 < len(indices); i += 2 {
			out = append(out, []uint32{indices[i], indices[i+1]})
		}
	case gltf.PrimitiveLineStrip, gltf.PrimitiveLineLoop:
		for i := 1; i < len(indices); i++ {
			out = append(out, []uint32{indices[i-1], indices[i]})
		}
		if mode == gltf.PrimitiveLineLoop && len(indices) > 2 {
			out = append(out, []uint32{indices[len(indices)-1], indices[0]})
		}
	case gltf.PrimitivePoints:
		for _, idx := range indices {
			out = append(out, []uint32{idx})
		}
	default:
		return nil, errors.Errorf("unknown primitive mode %d", mode)
	}
	return out, nil
}

// nodeTransform returns the local matrix of n, composed from translation,
// rotation and scale when no explicit matrix is set.
func nodeTransform(n *gltf.Node) mgl64.Mat4 {
	var m mgl64.Mat4
	explicit := false
	for i, v := range n.Matrix {
		m[i] = float64(v)
		if v != 0 {
			explicit = true
		}
	}
	if explicit && !m.ApproxEqual(mgl64.Ident4()) {
		return m
	}

	t := n.Translation
	r := n.Rotation
	s := n.Scale
	if s == [3]float32{} {
		s = [3]float32{1, 1, 1}
	}
	if r == [4]float32{} {
		r = [4]float32{0, 0, 0, 1}
	}
	q := mgl64.Quat{W: float64(r[3]), V: mgl64.Vec3{float64(r[0]), float64(r[1]), float64(r[2])}}.Normalize()

	return mgl64.Translate3D(float64(t[0]), float64(t[1]), float64(t[2])).
		Mul4(q.Mat4()).
		Mul4(mgl64.Scale3D(float64(s[0]), float64(s[1]), float64(s[2])))
}
