package heap

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDMode selects how new Node IDs are minted (spec.md §4.3: "Node id
// is either a monotonically increasing counter or a random 32-bit id
// (config flag)").
type IDMode int

const (
	SequentialIDs IDMode = iota
	RandomIDs
)

// DefaultGCThreshold is how many allocations accumulate before
// FreeSpace runs automatically (spec.md §9 Open Question: "the
// specification leaves this to the implementer but requires bounded
// memory in long-running programs" — see SPEC_FULL.md §E).
const DefaultGCThreshold = 4096

// MemoryGraph is the directed multigraph of Nodes described in
// spec.md §4.3: it owns every Node's identity, the root set, and the
// mark-sweep reclamation pass. The access_mutex of spec.md §5 is Mu.
type MemoryGraph struct {
	Mu sync.Mutex // coarse "access_mutex", held across NewNode/FreeSpace/edge mutation

	nodes map[NodeID]*Node
	roots map[NodeID]*Node

	idMode    IDMode
	seqCounter uint64

	allocSinceGC  int
	gcThreshold   int
	lastReclaimed int

	// ReclaimHook, if set, is invoked once per Node FreeSpace deletes,
	// after Mu has been released (spec.md §4.8: "the deconstructor is
	// invoked when the owning Object is reclaimed") -- the engine
	// package sets this to run an external class's deconstructor,
	// since heap itself has no notion of callable methods.
	ReclaimHook func(n *Node)
}

func NewGraph(idMode IDMode, gcThreshold int) *MemoryGraph {
	if gcThreshold <= 0 {
		gcThreshold = DefaultGCThreshold
	}
	return &MemoryGraph{
		nodes:       make(map[NodeID]*Node),
		roots:       make(map[NodeID]*Node),
		idMode:      idMode,
		gcThreshold: gcThreshold,
	}
}

func (g *MemoryGraph) nextID() NodeID {
	if g.idMode == RandomIDs {
		sum := uint32(0)
		for _, b := range uuid.New() {
			sum = sum*31 + uint32(b)
		}
		return NodeID(sum)
	}
	return NodeID(atomic.AddUint64(&g.seqCounter, 1))
}

// NewNode allocates a fresh Object of kind wrapped in a Node, joins
// the graph's node set, and may trigger FreeSpace if the allocation
// threshold has been crossed (spec.md §4.3's "Safe to call between
// instructions" reclamation trigger).
func (g *MemoryGraph) NewNode(kind Kind) *Node {
	obj := newObject(kind)

	g.Mu.Lock()
	id := g.nextID()
	for g.nodes[id] != nil { // guard against (exceedingly unlikely) collisions
		id = g.nextID()
	}
	n := newNode(id, g, obj)
	g.nodes[id] = n
	g.allocSinceGC++
	needsGC := g.allocSinceGC >= g.gcThreshold
	g.Mu.Unlock()

	if needsGC {
		g.FreeSpace()
	}
	return n
}

// CreateRoot allocates a Node like NewNode but also pins it in the
// root set (spec.md §4.3's create_root_element).
func (g *MemoryGraph) CreateRoot(kind Kind) *Node {
	n := g.NewNode(kind)
	g.AddRoot(n)
	return n
}

func (g *MemoryGraph) AddRoot(n *Node) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.roots[n.ID] = n
}

func (g *MemoryGraph) RemoveRoot(n *Node) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	delete(g.roots, n.ID)
}

// IncEdge creates the parent->child edge pair if absent, or bumps
// both directions' RefCount if present (spec.md §4.3).
func (g *MemoryGraph) IncEdge(parent, child *Node) {
	if parent == nil || child == nil {
		return
	}
	unlock := lockPair(parent, child)
	defer unlock()

	if e, ok := parent.Children[child.ID]; ok {
		e.RefCount++
	} else {
		parent.Children[child.ID] = &Edge{Target: child, RefCount: 1}
	}
	if e, ok := child.Parents[parent.ID]; ok {
		e.RefCount++
	} else {
		child.Parents[parent.ID] = &Edge{Target: parent, RefCount: 1}
	}
}

// DecEdge decrements both directions of an existing parent->child
// edge pair. Per spec.md §9's Open Question, the zero-ref-count edge
// is left in place rather than removed (an arena-style choice); every
// traversal below filters on RefCount > 0.
func (g *MemoryGraph) DecEdge(parent, child *Node) {
	if parent == nil || child == nil {
		return
	}
	unlock := lockPair(parent, child)
	defer unlock()

	if e, ok := parent.Children[child.ID]; ok && e.RefCount > 0 {
		e.RefCount--
	}
	if e, ok := child.Parents[parent.ID]; ok && e.RefCount > 0 {
		e.RefCount--
	}
}

// FreeSpace performs the mark-sweep reclamation of spec.md §4.3: mark
// every Node reachable from the root set via Children edges with
// RefCount > 0, then delete every unmarked Node. Returns the number of
// Nodes deleted. Holds Mu for the duration, matching spec.md §5's "no
// thread may execute a field-mutating instruction" while it runs.
func (g *MemoryGraph) FreeSpace() int {
	g.Mu.Lock()

	marked := make(map[NodeID]bool, len(g.nodes))
	var stack []*Node
	for _, r := range g.roots {
		stack = append(stack, r)
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if marked[n.ID] {
			continue
		}
		marked[n.ID] = true
		for _, e := range n.Children {
			if e.RefCount > 0 && !marked[e.Target.ID] {
				stack = append(stack, e.Target)
			}
		}
	}

	var reclaimed []*Node
	deleted := 0
	for id, n := range g.nodes {
		if !marked[id] {
			if g.ReclaimHook != nil && n.Obj.IsExternal {
				reclaimed = append(reclaimed, n)
			}
			delete(g.nodes, id)
			deleted++
		}
	}
	g.allocSinceGC = 0
	g.lastReclaimed = deleted
	g.Mu.Unlock()

	// Deconstructors run outside Mu: they are ordinary external
	// functions and may themselves allocate or look up graph state.
	for _, n := range reclaimed {
		g.ReclaimHook(n)
	}
	return deleted
}

// NodeCount and EdgeCount back the builtin module's gc_stats()
// introspection function (SPEC_FULL.md §D.2).
func (g *MemoryGraph) NodeCount() int {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return len(g.nodes)
}

func (g *MemoryGraph) EdgeCount() int {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	count := 0
	for _, n := range g.nodes {
		for _, e := range n.Children {
			if e.RefCount > 0 {
				count++
			}
		}
	}
	return count
}

func (g *MemoryGraph) LastReclaimed() int {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.lastReclaimed
}

// Lookup returns the Node with the given ID, if still alive.
func (g *MemoryGraph) Lookup(id NodeID) (*Node, bool) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	n, ok := g.nodes[id]
	return n, ok
}
