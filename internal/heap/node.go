package heap

import "sync"

// NodeID uniquely identifies a Node within a graph for its lifetime
// (spec.md §3 invariant).
type NodeID uint64

// Edge is a directed Node→Node entry carrying a reference count
// (spec.md §3: "Edges are looked up by target-id; incrementing an
// existing edge bumps ref_count instead of creating a duplicate").
type Edge struct {
	Target   *Node
	RefCount int
}

// Node wraps one Object with graph identity and edge sets. Every
// parent→child edge in Children has a mirrored child→parent edge in
// the target's Parents with an identical RefCount (spec.md §3's
// symmetry invariant); Graph.IncEdge/DecEdge are the only code paths
// that touch these maps, always in Node-ID order to avoid deadlock
// (spec.md §5).
type Node struct {
	ID    NodeID
	Obj   *Object
	Graph *MemoryGraph

	mu       sync.Mutex
	Children map[NodeID]*Edge // outgoing: this node owns a reference to the target
	Parents  map[NodeID]*Edge // incoming: mirror of some other node's outgoing edge to this one
}

func newNode(id NodeID, g *MemoryGraph, obj *Object) *Node {
	n := &Node{
		ID:       id,
		Obj:      obj,
		Graph:    g,
		Children: make(map[NodeID]*Edge),
		Parents:  make(map[NodeID]*Edge),
	}
	obj.Node = n
	return n
}

// lockPair locks two nodes' mutexes in ID order, preventing the
// classic two-lock deadlock when a single operation mutates edges on
// both ends (spec.md §5: "per-Node mutexes acquired in Node-id order,
// always lower id first").
func lockPair(a, b *Node) func() {
	if a == b {
		a.mu.Lock()
		return a.mu.Unlock
	}
	first, second := a, b
	if b.ID < a.ID {
		first, second = b, a
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
