package scene

import (
	"fmt"
)

// ImportError is returned when the engine cannot open or parse a file.
// Reason holds the engine diagnostic verbatim.
type ImportError struct {
	Path   string
	Engine string
	Reason string
}

func (e *ImportError) Error() string {
	if e.Engine != "" {
		return fmt.Sprintf("import %q (%s): %s", e.Path, e.Engine, e.Reason)
	}
	return fmt.Sprintf("import %q: %s", e.Path, e.Reason)
}

type NoMeshFoundError struct {
	Path string
}

func (e *NoMeshFoundError) Error() string {
	if e.Path == "" {
		return "no node in scene references a mesh"
	}
	return fmt.Sprintf("no node in scene %q references a mesh", e.Path)
}

type MeshIndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *MeshIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("mesh index %d out of range [0, %d)", e.Index, e.Count)
}

type MaterialIndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *MaterialIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("material index %d out of range [0, %d)", e.Index, e.Count)
}

// UnsupportedTopologyError reports the first face that is not a triangle.
type UnsupportedTopologyError struct {
	Mesh     int
	Face     int
	Vertices int
}

func (e *UnsupportedTopologyError) Error() string {
	return fmt.Sprintf("mesh %d face %d has %d vertices, only triangles are supported", e.Mesh, e.Face, e.Vertices)
}

type MalformedSceneError struct {
	Depth  int
	Limit  int
	Reason string
}

func (e *MalformedSceneError) Error() string {
	if e.Reason != "" {
		return "malformed scene: " + e.Reason
	}
	return fmt.Sprintf("malformed scene: node depth %d exceeds limit %d", e.Depth, e.Limit)
}

// DoubleReleaseError means a scene handle was released twice. It is a bug in
// the caller and never a recoverable condition.
type DoubleReleaseError struct {
	Path string
}

func (e *DoubleReleaseError) Error() string {
	return fmt.Sprintf("scene %q released twice", e.Path)
}
