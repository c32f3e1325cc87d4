// Package objdriver imports Wavefront OBJ files together with their MTL
// material libraries.
//
// Every object (o or g) becomes a child node of the root; every material used
// inside an object becomes one mesh of that node. Faces keep their arity, so
// quads stay quads. Position, texture coordinate and normal indices are merged
// into one vertex per distinct combination.
package objdriver

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/text/transform"

	"github.com/mogaika/sceneimport/config"
	"github.com/mogaika/sceneimport/importer"
	"github.com/mogaika/sceneimport/logger"
	"github.com/mogaika/sceneimport/scene"
	"github.com/mogaika/sceneimport/scene/memscene"
)

func init() {
	importer.Register(Engine{}, Format)
}

var Format = importer.Format{
	Name:       "obj",
	MIME:       "model/obj",
	Extensions: []string{".obj"},
	Match:      Match,
}

var objKeywords = map[string]bool{
	"v": true, "vt": true, "vn": true, "vp": true, "f": true, "l": true, "p": true,
	"o": true, "g": true, "s": true, "usemtl": true, "mtllib": true,
}

// Match accepts text whose first statements are OBJ keywords.
func Match(header []byte) bool {
	lines := bytes.Split(header, []byte("\n"))
	if len(lines) > 1 {
		// the last line may be cut by the header size
		lines = lines[:len(lines)-1]
	}
	statements := 0
	for _, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if !objKeywords[string(bytes.Fields(line)[0])] {
			return false
		}
		statements++
		if statements == 4 {
			break
		}
	}
	return statements > 0
}

type Engine struct{}

func (Engine) Name() string { return "obj" }

func (Engine) Import(path string) (scene.Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := newDecoder()
	if err := dec.parse(f, dec.parseObjLine); err != nil {
		return nil, err
	}

	for _, lib := range dec.matlibs {
		libPath := lib
		if !filepath.IsAbs(libPath) {
			libPath = filepath.Join(filepath.Dir(path), lib)
		}
		if err := dec.loadMaterials(libPath); err != nil {
			// a missing library leaves materials without textures
			logger.Named("objdriver").Warn("material library not loaded",
				zap.String("obj", path), zap.String("mtllib", lib), zap.Error(err))
		}
	}

	return dec.build(), nil
}

const noIndex = -1

type corner struct {
	v, vt, vn int
}

type group struct {
	material string
	faces    [][]corner
}

type object struct {
	name   string
	groups []*group
}

func (o *object) group(material string) *group {
	for _, g := range o.groups {
		if g.material == material {
			return g
		}
	}
	g := &group{material: material}
	o.groups = append(o.groups, g)
	return g
}

type material struct {
	name    string
	diffuse string
}

type decoder struct {
	positions [][3]float32
	uvs       [][2]float32
	normals   [][3]float32
	objects   []*object
	matlibs   []string
	materials map[string]*material
	matOrder  []string

	line       int
	objCurrent *object
	matCurrent string
	mtlCurrent *material
}

func newDecoder() *decoder {
	return &decoder{materials: make(map[string]*material)}
}

func (dec *decoder) formatError(format string, args ...interface{}) error {
	return errors.Errorf("line %d: %s", dec.line, fmt.Sprintf(format, args...))
}

func (dec *decoder) parse(r io.Reader, parseLine func(fields []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	dec.line = 0

	var pending string
	for scanner.Scan() {
		dec.line++
		line := strings.TrimRight(scanner.Text(), "\r")
		// backslash continues a statement on the next line
		if strings.HasSuffix(line, "\\") {
			pending += strings.TrimSuffix(line, "\\") + " "
			continue
		}
		line = pending + line
		pending = ""

		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := parseLine(fields); err != nil {
			return err
		}
	}
	return errors.Wrapf(scanner.Err(), "line %d", dec.line)
}

func (dec *decoder) parseObjLine(fields []string) error {
	switch fields[0] {
	case "v":
		v, err := dec.parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.positions = append(dec.positions, [3]float32{v[0], v[1], v[2]})
	case "vn":
		v, err := dec.parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.normals = append(dec.normals, [3]float32{v[0], v[1], v[2]})
	case "vt":
		v, err := dec.parseFloats(fields[1:], 1)
		if err != nil {
			return err
		}
		uv := [2]float32{v[0], 0}
		if len(fields) > 2 {
			val, err := strconv.ParseFloat(fields[2], 32)
			if err != nil {
				return dec.formatError("bad texture coordinate %q", fields[2])
			}
			uv[1] = float32(val)
		}
		dec.uvs = append(dec.uvs, uv)
	case "f", "l", "p":
		return dec.parseFace(fields[0], fields[1:])
	case "o", "g":
		name := strings.Join(fields[1:], " ")
		if name == "" {
			name = fmt.Sprintf("unnamed%d", dec.line)
		}
		dec.objCurrent = &object{name: name}
		dec.objects = append(dec.objects, dec.objCurrent)
	case "usemtl":
		if len(fields) < 2 {
			return dec.formatError("usemtl with no name")
		}
		dec.matCurrent = strings.Join(fields[1:], " ")
	case "mtllib":
		if len(fields) < 2 {
			return dec.formatError("mtllib with no file")
		}
		dec.matlibs = append(dec.matlibs, fields[1:]...)
	case "s", "vp", "cstype", "deg", "curv", "surf", "parm", "end", "mg", "lod", "bevel", "shadow_obj", "trace_obj":
	default:
		return dec.formatError("unknown statement %q", fields[0])
	}
	return nil
}

func (dec *decoder) parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, dec.formatError("expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		val, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, dec.formatError("bad number %q", fields[i])
		}
		out[i] = float32(val)
	}
	return out, nil
}

// resolveIndex converts a 1-based or negative relative OBJ index into a 0-based one.
func (dec *decoder) resolveIndex(s string, count int, kind string) (int, error) {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, dec.formatError("bad %s index %q", kind, s)
	}
	idx := val - 1
	if val < 0 {
		idx = count + val
	}
	if val == 0 || idx < 0 || idx >= count {
		return 0, dec.formatError("%s index %d out of range, %d defined", kind, val, count)
	}
	return idx, nil
}

func (dec *decoder) parseFace(kind string, fields []string) error {
	minCorners := map[string]int{"f": 3, "l": 2, "p": 1}[kind]
	if len(fields) < minCorners {
		return dec.formatError("%s statement with %d vertices", kind, len(fields))
	}
	if dec.objCurrent == nil {
		dec.objCurrent = &object{name: "default"}
		dec.objects = append(dec.objects, dec.objCurrent)
	}

	var err error
	face := make([]corner, len(fields))
	for i, f := range fields {
		parts := strings.Split(f, "/")
		c := corner{vt: noIndex, vn: noIndex}
		if c.v, err = dec.resolveIndex(parts[0], len(dec.positions), "vertex"); err != nil {
			return err
		}
		if len(parts) > 1 && parts[1] != "" {
			if c.vt, err = dec.resolveIndex(parts[1], len(dec.uvs), "texture coordinate"); err != nil {
				return err
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			if c.vn, err = dec.resolveIndex(parts[2], len(dec.normals), "normal"); err != nil {
				return err
			}
		}
		face[i] = c
	}

	if kind == "l" && len(face) > 2 {
		// polylines become segments
		g := dec.objCurrent.group(dec.matCurrent)
		for i := 1; i < len(face); i++ {
			g.faces = append(g.faces, []corner{face[i-1], face[i]})
		}
		return nil
	}
	if kind == "p" {
		g := dec.objCurrent.group(dec.matCurrent)
		for _, c := range face {
			g.faces = append(g.faces, []corner{c})
		}
		return nil
	}

	g := dec.objCurrent.group(dec.matCurrent)
	g.faces = append(g.faces, face)
	return nil
}

func (dec *decoder) loadMaterials(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec.mtlCurrent = nil
	return dec.parse(f, dec.parseMtlLine)
}

// map_Kd options and how many arguments each takes
var textureOptions = map[string]int{
	"-blendu": 1, "-blendv": 1, "-boost": 1, "-cc": 1, "-clamp": 1, "-texres": 1,
	"-bm": 1, "-imfchan": 1, "-type": 1, "-mm": 2, "-o": 3, "-s": 3, "-t": 3,
}

func (dec *decoder) parseMtlLine(fields []string) error {
	switch fields[0] {
	case "newmtl":
		if len(fields) < 2 {
			return dec.formatError("newmtl with no name")
		}
		name := strings.Join(fields[1:], " ")
		dec.mtlCurrent = &material{name: name}
		if _, exists := dec.materials[name]; !exists {
			dec.matOrder = append(dec.matOrder, name)
		}
		dec.materials[name] = dec.mtlCurrent
	case "map_Kd", "map_kd":
		if dec.mtlCurrent == nil {
			return dec.formatError("map_Kd before newmtl")
		}
		args := fields[1:]
		for len(args) > 1 {
			n, isOption := textureOptions[args[0]]
			if !isOption {
				break
			}
			args = args[1:]
			// only the first option argument is mandatory, -o -s and -t take up to three numbers
			for i := 0; i < n && len(args) > 1; i++ {
				if i > 0 {
					if _, err := strconv.ParseFloat(args[0], 64); err != nil {
						break
					}
				}
				args = args[1:]
			}
		}
		if len(args) == 0 {
			return dec.formatError("map_Kd with no file")
		}
		dec.mtlCurrent.diffuse = decodePath(strings.Join(args, " "))
	}
	return nil
}

// decodePath converts texture paths written in a legacy code page to UTF-8.
func decodePath(p string) string {
	if utf8.ValidString(p) {
		return p
	}
	decoded, _, err := transform.String(config.GetEncoding().NewDecoder(), p)
	if err != nil {
		return p
	}
	return decoded
}

type vertexKey struct {
	v, vt, vn int
}

func (dec *decoder) build() *memscene.Scene {
	sc := memscene.New(memscene.NewNode("root"))

	matIndex := make(map[string]int)
	for _, name := range dec.matOrder {
		m := dec.materials[name]
		matIndex[name] = sc.AddMaterial(&memscene.Material{MaterialName: m.name, Diffuse: m.diffuse})
	}

	for _, obj := range dec.objects {
		node := memscene.NewNode(obj.name)
		for _, g := range obj.groups {
			if len(g.faces) == 0 {
				continue
			}
			mesh := dec.buildMesh(obj.name, g)
			if g.material != "" {
				idx, ok := matIndex[g.material]
				if !ok {
					idx = sc.AddMaterial(&memscene.Material{MaterialName: g.material})
					matIndex[g.material] = idx
				}
				mesh.Material = idx
			}
			node.Meshes = append(node.Meshes, sc.AddMesh(mesh))
		}
		sc.RootNode.Add(node)
	}
	return sc
}

func (dec *decoder) buildMesh(name string, g *group) *memscene.Mesh {
	hasUV, hasNormal := true, true
	for _, face := range g.faces {
		for _, c := range face {
			hasUV = hasUV && c.vt != noIndex
			hasNormal = hasNormal && c.vn != noIndex
		}
	}

	remap := make(map[vertexKey]uint32)
	var positions, normals [][3]float32
	var uvs [][2]float32
	faces := make([][]uint32, len(g.faces))
	for iFace, face := range g.faces {
		indices := make([]uint32, len(face))
		for i, c := range face {
			key := vertexKey{v: c.v, vt: noIndex, vn: noIndex}
			if hasUV {
				key.vt = c.vt
			}
			if hasNormal {
				key.vn = c.vn
			}
			idx, ok := remap[key]
			if !ok {
				idx = uint32(len(positions))
				remap[key] = idx
				positions = append(positions, dec.positions[c.v])
				if hasUV {
					uvs = append(uvs, dec.uvs[c.vt])
				}
				if hasNormal {
					normals = append(normals, dec.normals[c.vn])
				}
			}
			indices[i] = idx
		}
		faces[iFace] = indices
	}

	mesh := memscene.NewMesh(name, positions, faces...)
	if g.material != "" {
		mesh.MeshName = name + "_" + g.material
	}
	if hasNormal {
		arr := memscene.Float3(normals)
		mesh.NormalArray = &arr
	}
	if hasUV {
		mesh.TexCoordArrays = []scene.VertexArray{memscene.Float2(uvs)}
	}
	return mesh
}
