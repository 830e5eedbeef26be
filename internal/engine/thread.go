package engine

import (
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// Thread is the per-thread execution state of spec.md §4.5: an
// operand stack, a saved-block stack (one entry pushed per CALL,
// popped by RET), the current Block, and the thread-local resval
// register. Per §4.5 ("frames participate in the object graph so
// locals are reachable during reclamation") and §5 ("the operand
// stack and saved-block stack live on the Thread Object"), none of
// this is an off-graph Go slice: Node is a rooted Object holding
// $current and $resval edges directly, with $stack and $saved each an
// Array Object it owns, so a live frame, a block-local written by SET,
// or an operand-stack-only value can never be swept while a thread is
// using it.
type Thread struct {
	ID uint64
	VM *VM

	Node      *heap.Node // rooted KindPlain Object; owns $current, $resval, $stack, $saved
	stackNode *heap.Node // Array Object backing the operand stack
	savedNode *heap.Node // Array Object backing the saved-block stack
}

func (vm *VM) NewThread() *Thread {
	node := vm.Graph.CreateRoot(heap.KindPlain)
	stackNode := vm.Graph.NewArray()
	savedNode := vm.Graph.NewArray()
	node.Obj.SetField(vm.Graph, "$stack", heap.FromObject(stackNode.Obj))
	node.Obj.SetField(vm.Graph, "$saved", heap.FromObject(savedNode.Obj))
	return &Thread{
		ID:        vm.nextThread(),
		VM:        vm,
		Node:      node,
		stackNode: stackNode,
		savedNode: savedNode,
	}
}

// Resval is the thread-local result register (spec.md §5: "resval is
// thread-local... lives on the thread's root, not the VM root").
func (th *Thread) Resval() heap.Element {
	return th.Node.Obj.Get(heap.KeyResval)
}

// SetResval writes the result register through SetField so a freshly
// produced Object stays reachable via the thread's own root edge.
func (th *Thread) SetResval(v heap.Element) {
	th.Node.Obj.SetField(th.VM.Graph, "$resval", v)
}

// Current is the Block the thread is presently executing.
func (th *Thread) Current() *heap.Node {
	e := th.Node.Obj.Get(heap.KeyCurrentBlock)
	if e.IsObject() {
		return e.Obj.Node
	}
	return nil
}

// SetCurrent installs blk as the running frame, again through
// SetField so the frame chain stays reachable from the thread's root
// for as long as it is current.
func (th *Thread) SetCurrent(blk *heap.Node) {
	if blk == nil {
		th.Node.Obj.SetField(th.VM.Graph, "$current", heap.None)
		return
	}
	th.Node.Obj.SetField(th.VM.Graph, "$current", heap.FromObject(blk.Obj))
}

func (th *Thread) push(e heap.Element) {
	th.VM.Graph.ArrayPush(th.stackNode, e)
}

func (th *Thread) pop() (heap.Element, error) {
	e, err := th.VM.Graph.ArrayPop(th.stackNode)
	if err != nil {
		return heap.None, vmerrors.New(vmerrors.InternalError, "operand stack underflow")
	}
	return e, nil
}

func (th *Thread) peek() (heap.Element, error) {
	return th.peekAt(0)
}

// peekAt reads the element distance slots below the top of the stack
// without popping it (vm.c's vm_peekstack(vm, distance), backing both
// the bare PEEK opcode (distance 0) and ValParam PEEK n).
func (th *Thread) peekAt(distance int64) (heap.Element, error) {
	n, _ := heap.ArrayLength(th.stackNode)
	idx := n - 1 - distance
	if idx < 0 || idx >= n {
		return heap.None, vmerrors.New(vmerrors.InternalError, "operand stack peek out of range")
	}
	return heap.ArrayGet(th.stackNode, idx)
}

// StackDepth backs the $stack_size bookkeeping CALL/RET rely on
// (spec.md §8 property 6).
func (th *Thread) StackDepth() int {
	n, _ := heap.ArrayLength(th.stackNode)
	return int(n)
}

func (th *Thread) truncateTo(depth int) {
	for {
		n, _ := heap.ArrayLength(th.stackNode)
		if int(n) <= depth {
			return
		}
		if _, err := th.VM.Graph.ArrayPop(th.stackNode); err != nil {
			return
		}
	}
}

// popN pops n elements off the stack and returns them in the order
// (stack[-n], ..., stack[-1]).
func (th *Thread) popN(n int64) ([]heap.Element, error) {
	depth, _ := heap.ArrayLength(th.stackNode)
	if n < 0 || depth < n {
		return nil, vmerrors.New(vmerrors.InternalError, "operand stack underflow popping %d", n)
	}
	elems := make([]heap.Element, n)
	for i := n - 1; i >= 0; i-- {
		e, err := th.VM.Graph.ArrayPop(th.stackNode)
		if err != nil {
			return nil, err
		}
		elems[i] = e
	}
	return elems, nil
}

// pushBlock saves blk onto the saved-block stack (CALL's frame push).
func (th *Thread) pushBlock(blk *heap.Node) {
	th.VM.Graph.ArrayPush(th.savedNode, heap.FromObject(blk.Obj))
}

// popBlock pops the most recently saved block (RET / exception
// unwinding), reporting false once the saved-block stack is empty.
func (th *Thread) popBlock() (*heap.Node, bool) {
	n, _ := heap.ArrayLength(th.savedNode)
	if n == 0 {
		return nil, false
	}
	e, err := th.VM.Graph.ArrayPop(th.savedNode)
	if err != nil || !e.IsObject() {
		return nil, false
	}
	return e.Obj.Node, true
}

// savedDepth reports how many frames are currently saved.
func (th *Thread) savedDepth() int {
	n, _ := heap.ArrayLength(th.savedNode)
	return int(n)
}
