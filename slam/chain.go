package slam

// NodeKind tags what a chain node represents.
type NodeKind int

const (
	NodeFrame NodeKind = iota
	NodeJoint
	NodeLink
	NodeSensor
)

func (k NodeKind) String() string {
	switch k {
	case NodeJoint:
		return "joint"
	case NodeLink:
		return "link"
	case NodeSensor:
		return "sensor"
	default:
		return "frame"
	}
}

// NoParent marks the root node.
const NoParent = -1

// Node is one rigid frame of a kinematic tree. Nodes live in a Chain arena and
// refer to each other by index.
type Node struct {
	Kind     NodeKind
	Parent   int
	Children []int
	Local    Transform2D // author controlled
	Global   Transform2D // derived by Recompute
	Length   float64     // links only
}

// Chain is an arena-backed tree of rigid 2D frames. Index 0 is the root.
// Topology only grows through the Add* methods, so every parent index is
// smaller than its children's and no cycle can be built.
type Chain struct {
	nodes []Node
}

// NewChain returns a chain holding only a root frame at the origin.
func NewChain() *Chain {
	return &Chain{nodes: []Node{{Kind: NodeFrame, Parent: NoParent}}}
}

// Root returns the index of the root node.
func (c *Chain) Root() int { return 0 }

// Len returns the number of nodes.
func (c *Chain) Len() int { return len(c.nodes) }

// Node returns a copy of node i.
func (c *Chain) Node(i int) Node {
	n := c.nodes[i]
	n.Children = append([]int(nil), n.Children...)
	return n
}

func (c *Chain) add(parent int, n Node) int {
	n.Parent = parent
	idx := len(c.nodes)
	c.nodes = append(c.nodes, n)
	c.nodes[parent].Children = append(c.nodes[parent].Children, idx)
	return idx
}

// AddFrame attaches a plain frame under parent.
func (c *Chain) AddFrame(parent int) int {
	return c.add(parent, Node{Kind: NodeFrame})
}

// AddJoint attaches a revolute joint under parent with angle zero.
func (c *Chain) AddJoint(parent int) int {
	return c.add(parent, Node{Kind: NodeJoint})
}

// AddLink attaches a rigid link of the given length along the parent's x-axis.
func (c *Chain) AddLink(parent int, length float64) int {
	return c.add(parent, Node{
		Kind:   NodeLink,
		Length: length,
		Local:  Transform2D{Translation: Point{X: length}},
	})
}

// AddSensor attaches a sensor frame under parent.
func (c *Chain) AddSensor(parent int) int {
	return c.add(parent, Node{Kind: NodeSensor})
}

// SetJointAngle sets the local rotation of joint i. Globals are stale until Recompute.
func (c *Chain) SetJointAngle(i int, q float64) {
	c.nodes[i].Local.Rotation = q
}

// SetLocal replaces the local transform of node i. Link lengths are fixed, so
// a link keeps its translation and only takes the rotation.
func (c *Chain) SetLocal(i int, t Transform2D) {
	if c.nodes[i].Kind == NodeLink {
		c.nodes[i].Local.Rotation = t.Rotation
		return
	}
	c.nodes[i].Local = t
}

// Local returns the local transform of node i.
func (c *Chain) Local(i int) Transform2D { return c.nodes[i].Local }

// Global returns the cached global transform of node i.
func (c *Chain) Global(i int) Transform2D { return c.nodes[i].Global }

// Recompute runs one depth-first top-down pass deriving every global pose.
// A child's rotation accumulates onto its parent's, and its local translation
// is rotated by the negative of the child's own freshly accumulated rotation.
func (c *Chain) Recompute() {
	root := &c.nodes[0]
	root.Global = root.Local

	stack := append([]int(nil), root.Children...)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &c.nodes[i]
		parent := c.nodes[n.Parent].Global
		rot := parent.Rotation + n.Local.Rotation
		n.Global = Transform2D{
			Rotation:    rot,
			Translation: parent.Translation.Add(n.Local.Translation.Rotate(-rot)),
		}
		stack = append(stack, n.Children...)
	}
}
