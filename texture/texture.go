// Package texture resolves the diffuse texture of a material to something a
// caller can open: an absolute file path or an embedded texture index.
package texture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/sceneimport/scene"
)

type Kind int

const (
	None Kind = iota
	File
	Embedded
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Embedded:
		return "embedded"
	default:
		return "none"
	}
}

// Ref is the resolved diffuse texture of a material.
type Ref struct {
	Kind Kind
	// Path is absolute when Kind is File.
	Path string
	// Embedded is the texture index inside the source file when Kind is Embedded.
	Embedded int
}

func (r Ref) Present() bool { return r.Kind != None }

func (r Ref) String() string {
	switch r.Kind {
	case File:
		return r.Path
	case Embedded:
		return scene.EmbeddedTextureRef(r.Embedded)
	default:
		return "<none>"
	}
}

func (r Ref) MarshalJSON() ([]byte, error) {
	type jRef struct {
		Kind     string `json:"kind"`
		Path     string `json:"path,omitempty"`
		Embedded *int   `json:"embedded,omitempty"`
	}
	j := jRef{Kind: r.Kind.String(), Path: r.Path}
	if r.Kind == Embedded {
		idx := r.Embedded
		j.Embedded = &idx
	}
	return json.Marshal(&j)
}

// Resolve looks up the diffuse texture of material materialIndex. Relative
// references are resolved against the directory of sourcePath, not the
// working directory. The resolved file is not required to exist.
func Resolve(sc scene.Scene, materialIndex int, sourcePath string) (Ref, error) {
	if materialIndex < 0 {
		return Ref{}, nil
	}
	if materialIndex >= sc.NumMaterials() {
		return Ref{}, &scene.MaterialIndexOutOfRangeError{Index: materialIndex, Count: sc.NumMaterials()}
	}

	raw, ok := sc.Material(materialIndex).DiffuseTexture()
	if !ok || strings.TrimSpace(raw) == "" {
		return Ref{}, nil
	}

	if idx, ok := scene.IsEmbeddedTexture(raw); ok {
		return Ref{Kind: Embedded, Embedded: idx}, nil
	}

	path, err := ResolvePath(raw, sourcePath)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Kind: File, Path: path}, nil
}

// ResolvePath turns a texture reference stored in sourcePath into an absolute path.
// Drive letter paths like C:\textures\wood.png are absolute on every host and
// come back as written, with forward slashes where the host uses them.
func ResolvePath(ref, sourcePath string) (string, error) {
	// exporters on windows write backslashes into obj/mtl and fbx files
	ref = filepath.FromSlash(strings.ReplaceAll(strings.TrimSpace(ref), "\\", "/"))
	if filepath.IsAbs(ref) || hasDriveLetter(ref) {
		return filepath.Clean(ref), nil
	}

	dir, err := filepath.Abs(filepath.Dir(sourcePath))
	if err != nil {
		return "", errors.Wrapf(err, "Failed to resolve directory of %q", sourcePath)
	}
	return filepath.Join(dir, ref), nil
}

func hasDriveLetter(p string) bool {
	if len(p) < 3 || p[1] != ':' || !os.IsPathSeparator(p[2]) {
		return false
	}
	c := p[0] | 0x20
	return c >= 'a' && c <= 'z'
}
