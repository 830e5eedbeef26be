package stdlib

import (
	"math"

	"jlvm/internal/engine"
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// buildBuiltin wires the top-level helpers original_source's
// add_builtin_external/add_global_builtin_external put directly on the
// builtin module: stringify/pow plus the Int/Float/Char value
// coercions (external.c's Int__/Float__/Char__). The original's
// token__/load_module__ are compiler/loader concerns with no
// counterpart here -- core only ever consumes an already-compiled
// Module (spec.md §1's explicit Non-goal). gc_stats is new (SPEC_FULL
// §D.2): it is the one place a JL program can introspect the memory
// graph the engine otherwise keeps entirely opaque.
func buildBuiltin(vm *engine.VM) *heap.Node {
	modNode := vm.Graph.CreateRoot(heap.KindModule)

	vm.RegisterExternalFn(modNode, "stringify", stringifyFn)
	vm.RegisterExternalFn(modNode, "pow", powFn)
	vm.RegisterExternalFn(modNode, "gc_stats", gcStatsFn)
	vm.RegisterExternalFn(modNode, "Int", intCoerceFn)
	vm.RegisterExternalFn(modNode, "Float", floatCoerceFn)
	vm.RegisterExternalFn(modNode, "Char", charCoerceFn)

	return modNode
}

func stringifyFn(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	return heap.FromObject(vm.Graph.NewString(arg.String()).Obj), nil
}

// powFn takes a (base, exponent) Tuple -- the two-argument shape
// every multi-arg external function here uses, since ExternalFunction
// carries exactly one Element.
func powFn(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	if !arg.IsObject() || arg.Obj.Kind != heap.KindTuple || len(arg.Obj.TupleElems) != 2 {
		return heap.None, vmerrors.New(vmerrors.ArgumentError, "pow(base, exponent) requires a 2-tuple")
	}
	base, exp := arg.Obj.TupleElems[0], arg.Obj.TupleElems[1]
	if !base.IsValue() || !exp.IsValue() {
		return heap.None, vmerrors.New(vmerrors.TypeError, "pow() requires numeric arguments")
	}
	b, _ := numericOf(base.Val)
	e, _ := numericOf(exp.Val)
	r := math.Pow(b, e)
	if base.Val.Kind == heap.KInt && exp.Val.Kind == heap.KInt && exp.Val.I >= 0 {
		return heap.Int(int64(r)), nil
	}
	return heap.FromValue(heap.FloatValue(r)), nil
}

func numericOf(v heap.Value) (float64, bool) {
	switch v.Kind {
	case heap.KInt:
		return float64(v.I), true
	case heap.KChar:
		return float64(v.C), true
	default:
		return v.F, false
	}
}

// gcStatsFn exposes the memory graph's bookkeeping as a
// (node_count, edge_count, last_reclaimed) Tuple (SPEC_FULL.md §D.2)
// -- a machine-usable surface, not a formatted report; cmd/jlvm's
// trace hook is what renders these numbers for a human to read.
func gcStatsFn(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	tup := vm.Graph.NewTuple([]heap.Element{
		heap.Int(int64(vm.Graph.NodeCount())),
		heap.Int(int64(vm.Graph.EdgeCount())),
		heap.Int(int64(vm.Graph.LastReclaimed())),
	})
	return heap.FromObject(tup.Obj), nil
}

func intCoerceFn(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	if arg.IsNone() {
		return heap.Int(0), nil
	}
	if arg.IsValue() {
		v, _ := numericOf(arg.Val)
		return heap.Int(int64(v)), nil
	}
	if arg.IsObject() && arg.Obj.Kind == heap.KindString {
		return heap.None, vmerrors.New(vmerrors.TypeError, "Int() does not parse Strings")
	}
	return heap.None, vmerrors.New(vmerrors.TypeError, "Int() requires a value argument")
}

func floatCoerceFn(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	if arg.IsNone() {
		return heap.FromValue(heap.FloatValue(0)), nil
	}
	if arg.IsValue() {
		v, _ := numericOf(arg.Val)
		return heap.FromValue(heap.FloatValue(v)), nil
	}
	return heap.None, vmerrors.New(vmerrors.TypeError, "Float() requires a value argument")
}

func charCoerceFn(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	if arg.IsNone() {
		return heap.FromValue(heap.CharValue(0)), nil
	}
	if arg.IsValue() {
		v, _ := numericOf(arg.Val)
		return heap.FromValue(heap.CharValue(int8(v))), nil
	}
	return heap.None, vmerrors.New(vmerrors.TypeError, "Char() requires a value argument")
}
