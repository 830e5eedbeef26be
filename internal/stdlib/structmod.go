package stdlib

import (
	"jlvm/internal/engine"
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// buildStruct installs spec.md §4.3's "Array/Tuple helpers" --
// push/enqueue/dequeue/pop/set/remove/shift, plus a tuple_add that
// returns a new, one-longer Tuple since Tuple length is fixed at
// construction -- as the "struct" standard module's top-level
// functions. The engine's own opcodes (ANEW/AIDX/ASET/TUPL) cover
// construction and plain indexing; these fill in the named mutators
// spec.md calls out without assigning an opcode, the way
// original_source's add_*_external functions fill in a module's
// surface beyond what vm.c's instruction set handles directly.
func buildStruct(vm *engine.VM) *heap.Node {
	modNode := vm.Graph.CreateRoot(heap.KindModule)

	vm.RegisterExternalFn(modNode, "push", arrayArgFn(func(g *heap.MemoryGraph, arr *heap.Node, val heap.Element) (heap.Element, error) {
		return heap.None, g.ArrayPush(arr, val)
	}))
	vm.RegisterExternalFn(modNode, "enqueue", arrayArgFn(func(g *heap.MemoryGraph, arr *heap.Node, val heap.Element) (heap.Element, error) {
		return heap.None, g.ArrayEnqueue(arr, val)
	}))
	vm.RegisterExternalFn(modNode, "pop", arrayOnlyFn(func(g *heap.MemoryGraph, arr *heap.Node) (heap.Element, error) {
		return g.ArrayPop(arr)
	}))
	vm.RegisterExternalFn(modNode, "dequeue", arrayOnlyFn(func(g *heap.MemoryGraph, arr *heap.Node) (heap.Element, error) {
		return g.ArrayDequeue(arr)
	}))
	vm.RegisterExternalFn(modNode, "shift", arrayOnlyFn(func(g *heap.MemoryGraph, arr *heap.Node) (heap.Element, error) {
		return g.ArrayShift(arr)
	}))
	vm.RegisterExternalFn(modNode, "set", arraySetFn)
	vm.RegisterExternalFn(modNode, "remove", arrayIndexFn(func(g *heap.MemoryGraph, arr *heap.Node, i int64) (heap.Element, error) {
		return g.ArrayRemove(arr, i)
	}))
	vm.RegisterExternalFn(modNode, "tuple_add", tupleAddFn)

	return modNode
}

func requireArrayArg(arg heap.Element) (*heap.Node, error) {
	if !arg.IsObject() || arg.Obj.Kind != heap.KindArray {
		return nil, vmerrors.New(vmerrors.TypeError, "expected an Array")
	}
	return arg.Obj.Node, nil
}

// arrayArgFn adapts a (graph, array, value) helper to ExternalFunction,
// unpacking the (array, value) 2-tuple every mutator-with-a-value here
// takes (the single-Element calling convention of spec.md §4.8).
func arrayArgFn(f func(g *heap.MemoryGraph, arr *heap.Node, val heap.Element) (heap.Element, error)) engine.ExternalFunction {
	return func(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
		if !arg.IsObject() || arg.Obj.Kind != heap.KindTuple || len(arg.Obj.TupleElems) != 2 {
			return heap.None, vmerrors.New(vmerrors.ArgumentError, "requires a (array, value) tuple")
		}
		arrElem, val := arg.Obj.TupleElems[0], arg.Obj.TupleElems[1]
		arr, err := requireArrayArg(arrElem)
		if err != nil {
			return heap.None, err
		}
		return f(vm.Graph, arr, val)
	}
}

func arrayOnlyFn(f func(g *heap.MemoryGraph, arr *heap.Node) (heap.Element, error)) engine.ExternalFunction {
	return func(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
		arr, err := requireArrayArg(arg)
		if err != nil {
			return heap.None, err
		}
		return f(vm.Graph, arr)
	}
}

func arrayIndexFn(f func(g *heap.MemoryGraph, arr *heap.Node, i int64) (heap.Element, error)) engine.ExternalFunction {
	return func(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
		if !arg.IsObject() || arg.Obj.Kind != heap.KindTuple || len(arg.Obj.TupleElems) != 2 {
			return heap.None, vmerrors.New(vmerrors.ArgumentError, "requires a (array, index) tuple")
		}
		arrElem, idx := arg.Obj.TupleElems[0], arg.Obj.TupleElems[1]
		arr, err := requireArrayArg(arrElem)
		if err != nil {
			return heap.None, err
		}
		if !idx.IsValue() || idx.Val.Kind != heap.KInt {
			return heap.None, vmerrors.New(vmerrors.TypeError, "index must be an Int64")
		}
		return f(vm.Graph, arr, idx.Val.I)
	}
}

func arraySetFn(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	if !arg.IsObject() || arg.Obj.Kind != heap.KindTuple || len(arg.Obj.TupleElems) != 3 {
		return heap.None, vmerrors.New(vmerrors.ArgumentError, "set(array, index, value) requires a 3-tuple")
	}
	elems := arg.Obj.TupleElems
	arr, err := requireArrayArg(elems[0])
	if err != nil {
		return heap.None, err
	}
	if !elems[1].IsValue() || elems[1].Val.Kind != heap.KInt {
		return heap.None, vmerrors.New(vmerrors.TypeError, "index must be an Int64")
	}
	return heap.None, vm.Graph.ArraySet(arr, elems[1].Val.I, elems[2])
}

// tupleAddFn returns a new Tuple one element longer than the input,
// since spec.md §4.3 fixes Tuple length at construction -- there is
// no in-place tuple_add the way push mutates an Array.
func tupleAddFn(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	if !arg.IsObject() || arg.Obj.Kind != heap.KindTuple || len(arg.Obj.TupleElems) != 2 {
		return heap.None, vmerrors.New(vmerrors.ArgumentError, "tuple_add(tuple, value) requires a 2-tuple")
	}
	tupElem, val := arg.Obj.TupleElems[0], arg.Obj.TupleElems[1]
	if !tupElem.IsObject() || tupElem.Obj.Kind != heap.KindTuple {
		return heap.None, vmerrors.New(vmerrors.TypeError, "tuple_add's first argument must be a Tuple")
	}
	extended := append(append([]heap.Element{}, tupElem.Obj.TupleElems...), val)
	return heap.FromObject(vm.Graph.NewTuple(extended).Obj), nil
}
