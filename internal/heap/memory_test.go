package heap

import "testing"

func TestFreeSpaceReclaimsUnreachableNodes(t *testing.T) {
	g := NewGraph(SequentialIDs, DefaultGCThreshold)
	root := g.CreateRoot(KindPlain)
	kept := g.NewNode(KindPlain)
	orphan := g.NewNode(KindPlain)
	g.IncEdge(root, kept)

	if n := g.NodeCount(); n != 3 {
		t.Fatalf("NodeCount() = %d before sweep, want 3", n)
	}

	deleted := g.FreeSpace()
	if deleted != 1 {
		t.Fatalf("FreeSpace() deleted %d nodes, want 1", deleted)
	}
	if _, ok := g.Lookup(orphan.ID); ok {
		t.Error("orphan node survived FreeSpace")
	}
	if _, ok := g.Lookup(kept.ID); !ok {
		t.Error("reachable node was reclaimed")
	}
	if got := g.LastReclaimed(); got != 1 {
		t.Errorf("LastReclaimed() = %d, want 1", got)
	}
}

func TestDecEdgeToZeroMakesChildUnreachable(t *testing.T) {
	g := NewGraph(SequentialIDs, DefaultGCThreshold)
	root := g.CreateRoot(KindPlain)
	child := g.NewNode(KindPlain)
	g.IncEdge(root, child)
	g.DecEdge(root, child)

	g.FreeSpace()
	if _, ok := g.Lookup(child.ID); ok {
		t.Error("child with zero-refcount edge should have been reclaimed")
	}
}

func TestReclaimHookFiresForExternalNodesOnly(t *testing.T) {
	g := NewGraph(SequentialIDs, DefaultGCThreshold)
	var hookCalls []NodeID
	g.ReclaimHook = func(n *Node) { hookCalls = append(hookCalls, n.ID) }

	root := g.CreateRoot(KindPlain)
	_ = root
	plain := g.NewNode(KindPlain)
	ext := g.NewNode(KindPlain)
	ext.Obj.IsExternal = true

	g.FreeSpace()

	if len(hookCalls) != 1 || hookCalls[0] != ext.ID {
		t.Errorf("ReclaimHook calls = %v, want exactly [%v]", hookCalls, ext.ID)
	}
	_ = plain
}

func TestAddRootRemoveRoot(t *testing.T) {
	g := NewGraph(SequentialIDs, DefaultGCThreshold)
	n := g.NewNode(KindPlain)
	g.AddRoot(n)
	if deleted := g.FreeSpace(); deleted != 0 {
		t.Fatalf("rooted node was reclaimed, FreeSpace() deleted %d", deleted)
	}
	g.RemoveRoot(n)
	if deleted := g.FreeSpace(); deleted != 1 {
		t.Fatalf("unrooted node survived, FreeSpace() deleted %d, want 1", deleted)
	}
}
