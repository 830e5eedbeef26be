package stdlib

import (
	"testing"

	"jlvm/internal/engine"
	"jlvm/internal/heap"
	"jlvm/internal/module"
)

func newTestVM() *engine.VM {
	graph := heap.NewGraph(heap.SequentialIDs, heap.DefaultGCThreshold)
	return engine.New(graph, module.NewLoader())
}

func TestStringifyFn(t *testing.T) {
	vm := newTestVM()
	result, err := stringifyFn(vm, nil, nil, heap.Int(42))
	if err != nil {
		t.Fatalf("stringify() error: %v", err)
	}
	if !result.IsObject() || result.Obj.Kind != heap.KindString || result.Obj.StrVal != "42" {
		t.Errorf("stringify(42) = %v, want String(\"42\")", result)
	}
}

func TestPowFn(t *testing.T) {
	vm := newTestVM()
	tests := []struct {
		name     string
		base     heap.Element
		exp      heap.Element
		wantKind heap.ValueKind
	}{
		{"int to non-negative int power stays Int", heap.Int(2), heap.Int(10), heap.KInt},
		{"negative exponent promotes to Float", heap.Int(2), heap.Int(-1), heap.KFloat},
		{"float base stays Float", heap.Float(2.5), heap.Int(2), heap.KFloat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arg := heap.FromObject(vm.Graph.NewTuple([]heap.Element{tt.base, tt.exp}).Obj)
			result, err := powFn(vm, nil, nil, arg)
			if err != nil {
				t.Fatalf("pow() error: %v", err)
			}
			if !result.IsValue() || result.Val.Kind != tt.wantKind {
				t.Errorf("pow(%v, %v) = %v, want kind %v", tt.base, tt.exp, result, tt.wantKind)
			}
		})
	}

	if got, err := powFn(vm, nil, nil, heap.Int(2)); err == nil {
		t.Errorf("pow() with a non-tuple argument should error, got %v", got)
	}
}

func TestIntCoerceFn(t *testing.T) {
	vm := newTestVM()
	if result, err := intCoerceFn(vm, nil, nil, heap.None); err != nil || result.Val.I != 0 {
		t.Errorf("Int(None) = %v, %v, want 0, nil", result, err)
	}
	if result, err := intCoerceFn(vm, nil, nil, heap.Float(3.9)); err != nil || result.Val.I != 3 {
		t.Errorf("Int(3.9) = %v, %v, want 3, nil", result, err)
	}
	str := heap.FromObject(vm.Graph.NewString("5").Obj)
	if _, err := intCoerceFn(vm, nil, nil, str); err == nil {
		t.Error("Int() on a String should error (no parsing)")
	}
}

func TestFloatCoerceFn(t *testing.T) {
	vm := newTestVM()
	result, err := floatCoerceFn(vm, nil, nil, heap.Int(7))
	if err != nil {
		t.Fatalf("Float(7) error: %v", err)
	}
	if result.Val.Kind != heap.KFloat || result.Val.F != 7.0 {
		t.Errorf("Float(7) = %v, want Float(7.0)", result)
	}
}

func TestCharCoerceFn(t *testing.T) {
	vm := newTestVM()
	result, err := charCoerceFn(vm, nil, nil, heap.Int(65))
	if err != nil {
		t.Fatalf("Char(65) error: %v", err)
	}
	if result.Val.Kind != heap.KChar || result.Val.C != 65 {
		t.Errorf("Char(65) = %v, want Char(65)", result)
	}
}

func TestGcStatsFnReportsGraphCounts(t *testing.T) {
	vm := newTestVM()
	vm.Graph.CreateRoot(heap.KindPlain)
	result, err := gcStatsFn(vm, nil, nil, heap.None)
	if err != nil {
		t.Fatalf("gc_stats() error: %v", err)
	}
	if !result.IsObject() || result.Obj.Kind != heap.KindTuple || len(result.Obj.TupleElems) != 3 {
		t.Fatalf("gc_stats() = %v, want a (node_count, edge_count, last_reclaimed) Tuple", result)
	}
	if nodes := result.Obj.TupleElems[0]; !nodes.IsValue() || nodes.Val.Kind != heap.KInt || nodes.Val.I < 1 {
		t.Errorf("gc_stats() node_count = %v, want an Int of at least 1", nodes)
	}
}

func TestBuildBuiltinRegistersAllFunctions(t *testing.T) {
	vm := newTestVM()
	modNode := buildBuiltin(vm)
	for _, name := range []string{"stringify", "pow", "gc_stats", "Int", "Float", "Char"} {
		if f := modNode.Obj.GetField(name); !f.IsObject() || f.Obj.Kind != heap.KindExternalFnCell {
			t.Errorf("builtin module missing external function %q", name)
		}
	}
}
