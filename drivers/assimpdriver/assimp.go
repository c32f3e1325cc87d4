//go:build assimp

package assimpdriver

/*
#cgo LDFLAGS: -lassimp
#include <stdlib.h>
#include <assimp/cimport.h>
#include <assimp/scene.h>
#include <assimp/material.h>
#include <assimp/postprocess.h>

static struct aiVector3D* mesh_texcoords(const struct aiMesh* m, unsigned int ch) {
	return ch < AI_MAX_NUMBER_OF_TEXTURECOORDS ? m->mTextureCoords[ch] : NULL;
}

static struct aiColor4D* mesh_colors(const struct aiMesh* m, unsigned int ch) {
	return ch < AI_MAX_NUMBER_OF_COLOR_SETS ? m->mColors[ch] : NULL;
}

static int diffuse_texture(const struct aiMaterial* mat, struct aiString* path) {
	if (aiGetMaterialTextureCount(mat, aiTextureType_DIFFUSE) == 0) {
		return 0;
	}
	return aiGetMaterialTexture(mat, aiTextureType_DIFFUSE, 0, path,
		NULL, NULL, NULL, NULL, NULL, NULL) == AI_SUCCESS;
}

static int material_name(const struct aiMaterial* mat, struct aiString* name) {
	return aiGetMaterialString(mat, AI_MATKEY_NAME, name) == AI_SUCCESS;
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/sceneimport/importer"
	"github.com/mogaika/sceneimport/scene"
)

const Available = true

func init() {
	importer.RegisterFallback(Engine{})
}

// importLock serializes aiImportFile with the aiGetErrorString that follows it.
var importLock sync.Mutex

type Engine struct{}

func (Engine) Name() string { return "assimp" }

func (Engine) Import(path string) (scene.Scene, error) {
	opts := currentOptions()
	var flags C.uint
	if opts.Triangulate {
		flags |= C.uint(C.aiProcess_Triangulate)
	}
	if opts.JoinIdenticalVertices {
		flags |= C.uint(C.aiProcess_JoinIdenticalVertices)
	}

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	// assimp keeps the last error in one process wide string
	importLock.Lock()
	raw := C.aiImportFile(cpath, flags)
	if raw == nil {
		reason := C.GoString(C.aiGetErrorString())
		importLock.Unlock()
		return nil, errors.New(reason)
	}
	importLock.Unlock()

	if raw.mRootNode == nil {
		C.aiReleaseImport(raw)
		return nil, errors.New("scene has no root node")
	}
	return &Scene{raw: raw}, nil
}

func goString(s *C.struct_aiString) string {
	return C.GoStringN(&s.data[0], C.int(s.length))
}

// Scene views assimp owned memory. Vertex arrays handed out by its meshes
// alias that memory and are invalid after Release.
type Scene struct {
	mu  sync.Mutex
	raw *C.struct_aiScene
}

func (s *Scene) Root() scene.Node {
	if s.raw == nil || s.raw.mRootNode == nil {
		return nil
	}
	return node{s.raw.mRootNode}
}

func (s *Scene) NumMeshes() int { return int(s.raw.mNumMeshes) }

func (s *Scene) Mesh(i int) scene.Mesh {
	return mesh{unsafe.Slice(s.raw.mMeshes, s.raw.mNumMeshes)[i]}
}

func (s *Scene) NumMaterials() int { return int(s.raw.mNumMaterials) }

func (s *Scene) Material(i int) scene.Material {
	return material{unsafe.Slice(s.raw.mMaterials, s.raw.mNumMaterials)[i]}
}

func (s *Scene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw != nil {
		C.aiReleaseImport(s.raw)
		s.raw = nil
	}
}

type node struct {
	n *C.struct_aiNode
}

func (n node) Name() string { return goString(&n.n.mName) }

// Transform converts assimp's row major matrix into mgl64's column major one.
func (n node) Transform() mgl64.Mat4 {
	rows := unsafe.Slice((*C.float)(unsafe.Pointer(&n.n.mTransformation)), 16)
	var m mgl64.Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			m[col*4+row] = float64(rows[row*4+col])
		}
	}
	return m
}

func (n node) MeshIndices() []int {
	src := unsafe.Slice(n.n.mMeshes, n.n.mNumMeshes)
	out := make([]int, len(src))
	for i, idx := range src {
		out[i] = int(idx)
	}
	return out
}

func (n node) Children() []scene.Node {
	src := unsafe.Slice(n.n.mChildren, n.n.mNumChildren)
	out := make([]scene.Node, len(src))
	for i, c := range src {
		out[i] = node{c}
	}
	return out
}

type mesh struct {
	m *C.struct_aiMesh
}

func (m mesh) Name() string     { return goString(&m.m.mName) }
func (m mesh) NumVertices() int { return int(m.m.mNumVertices) }
func (m mesh) NumFaces() int    { return int(m.m.mNumFaces) }

func (m mesh) MaterialIndex() int { return int(m.m.mMaterialIndex) }

func (m mesh) floats(ptr unsafe.Pointer, components int) scene.VertexArray {
	n := int(m.m.mNumVertices)
	return scene.VertexArray{
		Data:       unsafe.Slice((*float32)(ptr), n*components),
		Count:      n,
		Components: components,
		Layout:     scene.RowMajor,
	}
}

func (m mesh) Vertices() scene.VertexArray {
	return m.floats(unsafe.Pointer(m.m.mVertices), 3)
}

func (m mesh) Face(i int) []uint32 {
	f := unsafe.Slice(m.m.mFaces, m.m.mNumFaces)[i]
	return unsafe.Slice((*uint32)(unsafe.Pointer(f.mIndices)), f.mNumIndices)
}

func (m mesh) Normals() (scene.VertexArray, bool) {
	if m.m.mNormals == nil {
		return scene.VertexArray{}, false
	}
	return m.floats(unsafe.Pointer(m.m.mNormals), 3), true
}

func (m mesh) NumTexCoordChannels() int {
	n := 0
	for C.mesh_texcoords(m.m, C.uint(n)) != nil {
		n++
	}
	return n
}

// TexCoords are stored as three component vectors whatever mNumUVComponents says.
func (m mesh) TexCoords(channel int) (scene.VertexArray, bool) {
	if channel < 0 {
		return scene.VertexArray{}, false
	}
	ptr := C.mesh_texcoords(m.m, C.uint(channel))
	if ptr == nil {
		return scene.VertexArray{}, false
	}
	return m.floats(unsafe.Pointer(ptr), 3), true
}

func (m mesh) NumColorChannels() int {
	n := 0
	for C.mesh_colors(m.m, C.uint(n)) != nil {
		n++
	}
	return n
}

func (m mesh) Colors(channel int) (scene.VertexArray, bool) {
	if channel < 0 {
		return scene.VertexArray{}, false
	}
	ptr := C.mesh_colors(m.m, C.uint(channel))
	if ptr == nil {
		return scene.VertexArray{}, false
	}
	return m.floats(unsafe.Pointer(ptr), 4), true
}

type material struct {
	m *C.struct_aiMaterial
}

func (m material) Name() string {
	var name C.struct_aiString
	if C.material_name(m.m, &name) == 0 {
		return ""
	}
	return goString(&name)
}

// DiffuseTexture returns the first diffuse texture path, which is "*<n>" for
// textures embedded in the file.
func (m material) DiffuseTexture() (string, bool) {
	var path C.struct_aiString
	if C.diffuse_texture(m.m, &path) == 0 {
		return "", false
	}
	ref := goString(&path)
	return ref, ref != ""
}
