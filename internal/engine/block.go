package engine

import "jlvm/internal/heap"

// newBlock allocates a fresh frame Object (spec.md §4.5's "chain of
// Block objects on the heap"): its $module, $parent, and self slots
// are set here; $ip is set by the caller once the entry point is
// known.
func newBlock(vm *VM, modNode *heap.Node, parent *heap.Node, self heap.Element) *heap.Node {
	n := vm.Graph.NewNode(heap.KindPlain)
	if modNode != nil {
		n.Obj.SetField(vm.Graph, "$module", heap.FromObject(modNode.Obj))
	}
	if parent != nil {
		n.Obj.SetField(vm.Graph, "$parent", heap.FromObject(parent.Obj))
	}
	if !self.IsNone() {
		n.Obj.SetField(vm.Graph, "self", self)
	}
	return n
}

func blockIP(n *heap.Node) int64 {
	e := n.Obj.Get(heap.KeyIP)
	if e.IsValue() {
		return e.Val.I
	}
	return 0
}

func setBlockIP(vm *VM, n *heap.Node, ip int64) {
	n.Obj.SetField(vm.Graph, "$ip", heap.Int(ip))
}

func blockModuleNode(n *heap.Node) *heap.Node {
	e := n.Obj.Get(heap.KeyModule)
	if e.IsObject() {
		return e.Obj.Node
	}
	return nil
}

func blockParent(n *heap.Node) *heap.Node {
	e := n.Obj.Get(heap.KeyParentBlock)
	if e.IsObject() {
		return e.Obj.Node
	}
	return nil
}

func blockCaller(n *heap.Node) heap.Element {
	return n.Obj.Get(heap.KeyCaller)
}

func blockSelf(n *heap.Node) heap.Element {
	return n.Obj.Get(heap.KeySelf)
}

func blockStackSize(n *heap.Node) int {
	e := n.Obj.Get(heap.KeyStackSize)
	if e.IsValue() {
		return int(e.Val.I)
	}
	return 0
}

func setBlockStackSize(vm *VM, n *heap.Node, depth int) {
	n.Obj.SetField(vm.Graph, "$stack_size", heap.Int(int64(depth)))
}

func blockTryGoto(n *heap.Node) (int64, bool) {
	e := n.Obj.Get(heap.KeyTryGoto)
	if e.IsValue() {
		return e.Val.I, true
	}
	return 0, false
}

func setBlockTryGoto(vm *VM, n *heap.Node, ip int64) {
	n.Obj.SetField(vm.Graph, "$try_goto", heap.Int(ip))
}

func clearBlockTryGoto(vm *VM, n *heap.Node) {
	n.Obj.SetField(vm.Graph, "$try_goto", heap.None)
}

func blockHasError(n *heap.Node) bool {
	return n.Obj.Get(heap.KeyError).Truthy()
}

func setBlockError(vm *VM, n *heap.Node, errObj heap.Element) {
	n.Obj.SetField(vm.Graph, "$error", errObj)
}

func clearBlockError(vm *VM, n *heap.Node) {
	n.Obj.SetField(vm.Graph, "$error", heap.None)
}

// vmLookup implements §4.5's vm_lookup(name): walk the $parent chain
// from the current block outward, returning the first binding found.
func vmLookup(blk *heap.Node, name string) (heap.Element, bool) {
	for b := blk; b != nil; b = blockParent(b) {
		if b.Obj.HasOwnField(name) {
			return b.Obj.GetField(name), true
		}
	}
	return heap.None, false
}
