// Package walker locates the node to import in a scene graph and computes
// its world transform.
package walker

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/sceneimport/scene"
)

// DefaultMaxDepth bounds traversal of scene graphs that are deeper than any
// real asset.
const DefaultMaxDepth = 1024

// Selector decides whether a node is a target.
type Selector func(n scene.Node) bool

// FirstWithMesh selects nodes that reference at least one mesh. Combined with
// pre-order traversal the first such node wins.
func FirstWithMesh(n scene.Node) bool {
	return len(n.MeshIndices()) > 0
}

// ByName selects mesh-bearing nodes with the given name.
func ByName(name string) Selector {
	return func(n scene.Node) bool {
		return n.Name() == name && len(n.MeshIndices()) > 0
	}
}

type Target struct {
	Node scene.Node
	// Path holds node names from the root to Node inclusive.
	Path []string
	// Transform is the product of local transforms from the root down to Node.
	Transform mgl64.Mat4
	Depth     int
}

// FindTarget returns the first node in depth-first pre-order accepted by sel.
// A nil sel means FirstWithMesh and maxDepth <= 0 means DefaultMaxDepth.
func FindTarget(sc scene.Scene, sel Selector, maxDepth int) (Target, error) {
	var found *Target
	err := walk(sc, sel, maxDepth, func(t Target) bool {
		found = &t
		return false
	})
	if err != nil {
		return Target{}, err
	}
	if found == nil {
		return Target{}, &scene.NoMeshFoundError{}
	}
	return *found, nil
}

// FindAll returns every node accepted by sel in depth-first pre-order.
func FindAll(sc scene.Scene, sel Selector, maxDepth int) ([]Target, error) {
	var targets []Target
	err := walk(sc, sel, maxDepth, func(t Target) bool {
		targets = append(targets, t)
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, &scene.NoMeshFoundError{}
	}
	return targets, nil
}

type frame struct {
	node   scene.Node
	parent mgl64.Mat4
	path   []string
	depth  int
}

func walk(sc scene.Scene, sel Selector, maxDepth int, visit func(Target) bool) error {
	if sel == nil {
		sel = FirstWithMesh
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	root := sc.Root()
	if root == nil {
		return &scene.MalformedSceneError{Reason: "scene has no root node"}
	}

	stack := []frame{{node: root, parent: mgl64.Ident4()}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.depth > maxDepth {
			return &scene.MalformedSceneError{Depth: f.depth, Limit: maxDepth}
		}

		world := f.parent.Mul4(f.node.Transform())
		path := append(append(make([]string, 0, len(f.path)+1), f.path...), f.node.Name())

		if sel(f.node) {
			if !visit(Target{Node: f.node, Path: path, Transform: world, Depth: f.depth}) {
				return nil
			}
		}

		// push in reverse so the first child is visited first
		children := f.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			if children[i] == nil {
				continue
			}
			stack = append(stack, frame{node: children[i], parent: world, path: path, depth: f.depth + 1})
		}
	}
	return nil
}
