package heap

import "jlvm/internal/vmerrors"

// NewArray allocates a mutable, growable Array object (spec.md §4.5).
func (g *MemoryGraph) NewArray() *Node {
	n := g.NewNode(KindArray)
	n.Obj.ArrayElems = nil
	n.Obj.SetField(g, "length", Int(0))
	return n
}

// setLength updates a Array/Tuple's own length field to match its
// current element count -- spec.md §4.3 requires every mutator to
// "update the length field atomically with the structural change."
func setLength(g *MemoryGraph, n *Node, count int) {
	n.Obj.SetField(g, "length", Int(int64(count)))
}

// NewTuple allocates a fixed-length Tuple from elems, retaining an
// edge to every Object element so the tuple keeps its members alive
// (spec.md §4.5: "Tuple length is fixed at construction"). The TUPL N
// instruction is pinned (SPEC_FULL.md §E) to pass elems in the order
// (stack[-N], stack[-N+1], ..., stack[-1]) -- i.e. elems[0] is the
// first value pushed, elems[len-1] the last -- so this constructor
// must not reorder its argument.
func (g *MemoryGraph) NewTuple(elems []Element) *Node {
	n := g.NewNode(KindTuple)
	n.Obj.TupleElems = append([]Element{}, elems...)
	for _, e := range n.Obj.TupleElems {
		if e.IsObject() {
			g.IncEdge(n, e.Obj.Node)
		}
	}
	setLength(g, n, len(n.Obj.TupleElems))
	return n
}

func requireArray(o *Object) error {
	if o == nil || o.Kind != KindArray {
		return vmerrors.New(vmerrors.TypeError, "expected Array, got %v", o)
	}
	return nil
}

func requireTuple(o *Object) error {
	if o == nil || o.Kind != KindTuple {
		return vmerrors.New(vmerrors.TypeError, "expected Tuple, got %v", o)
	}
	return nil
}

// ArrayPush appends val to the end of arr (spec.md §4.5 push/append).
func (g *MemoryGraph) ArrayPush(arrNode *Node, val Element) error {
	if err := requireArray(arrNode.Obj); err != nil {
		return err
	}
	arrNode.Obj.ArrayElems = append(arrNode.Obj.ArrayElems, val)
	if val.IsObject() {
		g.IncEdge(arrNode, val.Obj.Node)
	}
	setLength(g, arrNode, len(arrNode.Obj.ArrayElems))
	return nil
}

// ArrayPop removes and returns the last element.
func (g *MemoryGraph) ArrayPop(arrNode *Node) (Element, error) {
	if err := requireArray(arrNode.Obj); err != nil {
		return None, err
	}
	elems := arrNode.Obj.ArrayElems
	if len(elems) == 0 {
		return None, vmerrors.New(vmerrors.IndexError, "pop from empty array")
	}
	last := elems[len(elems)-1]
	arrNode.Obj.ArrayElems = elems[:len(elems)-1]
	if last.IsObject() {
		g.DecEdge(arrNode, last.Obj.Node)
	}
	setLength(g, arrNode, len(arrNode.Obj.ArrayElems))
	return last, nil
}

// ArrayEnqueue appends to the tail, mirroring ArrayPush (queue
// semantics share storage with the array per spec.md §4.5).
func (g *MemoryGraph) ArrayEnqueue(arrNode *Node, val Element) error {
	return g.ArrayPush(arrNode, val)
}

// ArrayDequeue / ArrayShift remove and return the first element.
func (g *MemoryGraph) ArrayDequeue(arrNode *Node) (Element, error) {
	return g.ArrayShift(arrNode)
}

func (g *MemoryGraph) ArrayShift(arrNode *Node) (Element, error) {
	if err := requireArray(arrNode.Obj); err != nil {
		return None, err
	}
	elems := arrNode.Obj.ArrayElems
	if len(elems) == 0 {
		return None, vmerrors.New(vmerrors.IndexError, "shift from empty array")
	}
	first := elems[0]
	arrNode.Obj.ArrayElems = append([]Element{}, elems[1:]...)
	if first.IsObject() {
		g.DecEdge(arrNode, first.Obj.Node)
	}
	setLength(g, arrNode, len(arrNode.Obj.ArrayElems))
	return first, nil
}

// ArrayGet reads index i, bounds-checked (spec.md §4.5, §4.9 edge case
// "index out of range raises IndexError").
func ArrayGet(arrNode *Node, i int64) (Element, error) {
	if err := requireArray(arrNode.Obj); err != nil {
		return None, err
	}
	elems := arrNode.Obj.ArrayElems
	if i < 0 || i >= int64(len(elems)) {
		return None, vmerrors.New(vmerrors.IndexError, "array index %d out of range [0,%d)", i, len(elems))
	}
	return elems[i], nil
}

// ArraySet writes index i, bounds-checked, maintaining edges.
func (g *MemoryGraph) ArraySet(arrNode *Node, i int64, val Element) error {
	if err := requireArray(arrNode.Obj); err != nil {
		return err
	}
	elems := arrNode.Obj.ArrayElems
	if i < 0 || i >= int64(len(elems)) {
		return vmerrors.New(vmerrors.IndexError, "array index %d out of range [0,%d)", i, len(elems))
	}
	prev := elems[i]
	if prev.IsObject() {
		g.DecEdge(arrNode, prev.Obj.Node)
	}
	elems[i] = val
	if val.IsObject() {
		g.IncEdge(arrNode, val.Obj.Node)
	}
	return nil
}

// ArrayRemove deletes the element at index i, shifting subsequent
// elements down by one.
func (g *MemoryGraph) ArrayRemove(arrNode *Node, i int64) (Element, error) {
	if err := requireArray(arrNode.Obj); err != nil {
		return None, err
	}
	elems := arrNode.Obj.ArrayElems
	if i < 0 || i >= int64(len(elems)) {
		return None, vmerrors.New(vmerrors.IndexError, "array index %d out of range [0,%d)", i, len(elems))
	}
	removed := elems[i]
	arrNode.Obj.ArrayElems = append(elems[:i:i], elems[i+1:]...)
	if removed.IsObject() {
		g.DecEdge(arrNode, removed.Obj.Node)
	}
	setLength(g, arrNode, len(arrNode.Obj.ArrayElems))
	return removed, nil
}

func ArrayLength(arrNode *Node) (int64, error) {
	if err := requireArray(arrNode.Obj); err != nil {
		return 0, err
	}
	return int64(len(arrNode.Obj.ArrayElems)), nil
}

// TupleGet reads index i from a Tuple, bounds-checked.
func TupleGet(tupNode *Node, i int64) (Element, error) {
	if err := requireTuple(tupNode.Obj); err != nil {
		return None, err
	}
	elems := tupNode.Obj.TupleElems
	if i < 0 || i >= int64(len(elems)) {
		return None, vmerrors.New(vmerrors.IndexError, "tuple index %d out of range [0,%d)", i, len(elems))
	}
	return elems[i], nil
}

func TupleLength(tupNode *Node) (int64, error) {
	if err := requireTuple(tupNode.Obj); err != nil {
		return 0, err
	}
	return int64(len(tupNode.Obj.TupleElems)), nil
}
