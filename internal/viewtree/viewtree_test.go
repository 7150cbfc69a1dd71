package viewtree

import (
	"errors"
	"image"
	"testing"
)

type group struct {
	id       uint64
	children []Node
}

func (g *group) NodeID() uint64   { return g.id }
func (g *group) Children() []Node { return g.children }

type surface struct {
	group
	valid bool
}

func (s *surface) Valid() bool             { return s.valid }
func (s *surface) Bounds() image.Rectangle { return image.Rect(0, 0, 640, 480) }

func TestFindSurfaceNested(t *testing.T) {
	target := &surface{group: group{id: 9}, valid: true}
	root := &group{id: 1, children: []Node{
		&group{id: 2},
		&group{id: 3, children: []Node{
			&group{id: 4, children: []Node{
				&group{id: 5, children: []Node{target}},
			}},
		}},
	}}

	got, err := FindSurface(root)
	if err != nil {
		t.Fatalf("FindSurface: %v", err)
	}
	if got.NodeID() != 9 {
		t.Fatalf("found node %d, want 9", got.NodeID())
	}
}

func TestFindSurfaceDepthFirstOrder(t *testing.T) {
	deep := &surface{group: group{id: 10}}
	shallowLater := &surface{group: group{id: 20}}
	root := &group{id: 1, children: []Node{
		&group{id: 2, children: []Node{deep}},
		shallowLater,
	}}

	got, err := FindSurface(root)
	if err != nil {
		t.Fatalf("FindSurface: %v", err)
	}
	if got.NodeID() != 10 {
		t.Fatalf("expected depth-first hit 10, got %d", got.NodeID())
	}
}

func TestFindSurfaceNotFound(t *testing.T) {
	root := &group{id: 1, children: []Node{&group{id: 2}, nil}}
	if _, err := FindSurface(root); !errors.Is(err, ErrSurfaceNotFound) {
		t.Fatalf("expected ErrSurfaceNotFound, got %v", err)
	}
	if _, err := FindSurface(nil); !errors.Is(err, ErrSurfaceNotFound) {
		t.Fatalf("expected ErrSurfaceNotFound for nil root, got %v", err)
	}
}

func TestFindSurfaceTerminatesOnCycle(t *testing.T) {
	a := &group{id: 1}
	b := &group{id: 2, children: []Node{a}}
	a.children = []Node{b}

	if _, err := FindSurface(a); !errors.Is(err, ErrSurfaceNotFound) {
		t.Fatalf("expected ErrSurfaceNotFound, got %v", err)
	}
}

func TestFindSurfaceVeryDeepHierarchy(t *testing.T) {
	const depth = 100000
	leaf := &surface{group: group{id: depth + 1}, valid: true}
	var n Node = leaf
	for i := depth; i >= 1; i-- {
		n = &group{id: uint64(i), children: []Node{n}}
	}

	got, err := FindSurface(n)
	if err != nil {
		t.Fatalf("FindSurface: %v", err)
	}
	if got != leaf {
		t.Fatalf("expected leaf surface")
	}
}
