package x11

import (
	"image"
	"strings"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/unmhost/internal/viewtree"
)

// ViewTree exposes the window subtree under root as a read-only view
// hierarchy. Children are queried lazily from the server. A window whose
// WM_CLASS class or instance equals surfaceClass is the render surface.
func (c *Connection) ViewTree(root xproto.Window, surfaceClass string) viewtree.Node {
	t := &windowTree{conn: c, surfaceClass: surfaceClass}
	return t.node(root)
}

type windowTree struct {
	conn         *Connection
	surfaceClass string
}

func (t *windowTree) node(win xproto.Window) viewtree.Node {
	n := &WindowNode{tree: t, win: win}
	class, instance := t.conn.WindowClass(win)
	if matchesClass(class, instance, t.surfaceClass) {
		return &SurfaceNode{WindowNode: n}
	}
	return n
}

func matchesClass(class, instance, want string) bool {
	if want == "" {
		return false
	}
	return strings.EqualFold(class, want) || strings.EqualFold(instance, want)
}

// WindowNode is one X window in the view hierarchy.
type WindowNode struct {
	tree *windowTree
	win  xproto.Window
}

// Window returns the X window ID.
func (n *WindowNode) Window() xproto.Window {
	return n.win
}

func (n *WindowNode) NodeID() uint64 {
	return uint64(n.win)
}

// Children returns the child windows. Query failures yield no children.
func (n *WindowNode) Children() []viewtree.Node {
	kids, err := n.tree.conn.Children(n.win)
	if err != nil {
		return nil
	}
	out := make([]viewtree.Node, 0, len(kids))
	for _, kid := range kids {
		out = append(out, n.tree.node(kid))
	}
	return out
}

// SurfaceNode is the window the native engine renders into.
type SurfaceNode struct {
	*WindowNode
}

// Valid reports whether the surface is viewable with a non-zero size.
func (s *SurfaceNode) Valid() bool {
	if !s.tree.conn.IsViewable(s.win) {
		return false
	}
	return !s.Bounds().Empty()
}

// Bounds returns the surface size with its origin at zero.
func (s *SurfaceNode) Bounds() image.Rectangle {
	geom, err := xproto.GetGeometry(s.tree.conn.XUtil.Conn(), xproto.Drawable(s.win)).Reply()
	if err != nil {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, int(geom.Width), int(geom.Height))
}

var _ viewtree.Surface = (*SurfaceNode)(nil)
