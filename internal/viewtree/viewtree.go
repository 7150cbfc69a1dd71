package viewtree

import (
	"errors"
	"image"
)

// ErrSurfaceNotFound is returned when no render surface exists in the hierarchy.
var ErrSurfaceNotFound = errors.New("render surface not found")

// Node is a read-only view in the host's view hierarchy.
type Node interface {
	// NodeID uniquely identifies the view within the hierarchy.
	NodeID() uint64
	// Children returns direct children in stacking order (bottom first).
	Children() []Node
}

// Surface is the drawable target the native engine renders into.
type Surface interface {
	Node
	// Valid reports whether the surface currently holds renderable contents.
	Valid() bool
	// Bounds returns the surface rectangle in its own coordinate space.
	Bounds() image.Rectangle
}

// FindSurface walks root depth-first and returns the first Surface found.
//
// The walk uses an explicit stack so depth is bounded by heap, not goroutine
// stack, and a visited set so a node reachable twice is inspected once.
func FindSurface(root Node) (Surface, error) {
	if root == nil {
		return nil, ErrSurfaceNotFound
	}

	visited := make(map[uint64]struct{})
	stack := []Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if _, seen := visited[n.NodeID()]; seen {
			continue
		}
		visited[n.NodeID()] = struct{}{}

		if s, ok := n.(Surface); ok {
			return s, nil
		}

		children := n.Children()
		// Push in reverse so the first child is visited first.
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return nil, ErrSurfaceNotFound
}
