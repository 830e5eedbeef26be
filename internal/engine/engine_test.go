package engine

import (
	"path/filepath"
	"testing"

	"jlvm/internal/bytecode"
	"jlvm/internal/heap"
	"jlvm/internal/module"
)

func newTestVM() *VM {
	graph := heap.NewGraph(heap.SequentialIDs, heap.DefaultGCThreshold)
	return New(graph, module.NewLoader())
}

// runModule installs mod as a fresh root module node and drives its
// top-level code from ip 0 on a new Thread, the same construction
// runModuleTopLevel uses internally -- exposed here with the module
// node returned so tests can inspect whatever it was left holding.
func runModule(vm *VM, mod *module.Module) (*heap.Node, error) {
	modNode := vm.Graph.CreateRoot(heap.KindModule)
	modNode.Obj.Module = mod
	th := vm.NewThread()
	blk := newBlock(vm, modNode, nil, heap.None)
	setBlockIP(vm, blk, 0)
	th.SetCurrent(blk)
	return modNode, vm.Run(th)
}

// TestArithmeticAndModuleDest drives the binop trace operators.go
// documents (RES sets the right-hand operand, PUSH the
// left, the opcode combines popped-lhs <op> resval), then persists the
// result onto the module node via MDST the way top-level code writes
// its own globals.
func TestArithmeticAndModuleDest(t *testing.T) {
	vm := newTestVM()
	b := module.NewBuilder("arith", "<test>")
	b.Val(bytecode.RES, bytecode.IntLiteral(1), 1, 0)
	b.Val(bytecode.PUSH, bytecode.IntLiteral(41), 1, 0)
	b.NoParam(bytecode.ADD, 1, 0)
	b.ID(bytecode.MDST, "answer", 1, 0)
	b.NoParam(bytecode.EXIT, 1, 0)
	mod := b.Build()

	modNode, err := runModule(vm, mod)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got := modNode.Obj.GetField("answer")
	if !got.IsValue() || got.Val.I != 42 {
		t.Errorf("answer = %v, want Int(42)", got)
	}
}

// TestRaiseAndCatch grounds CTCH/RAIS/handleException's own doc
// comments: RES sets resval to the value RAIS will raise, the CTCH
// installed earlier redirects ip there with resval left untouched, and
// the handler persists it so the test can observe the unwind actually
// happened rather than merely not crashing.
func TestRaiseAndCatch(t *testing.T) {
	vm := newTestVM()
	b := module.NewBuilder("raiser", "<test>")
	b.Val(bytecode.CTCH, bytecode.IntLiteral(2), 1, 0) // try_goto = ip+2+1 = 3
	b.Val(bytecode.RES, bytecode.IntLiteral(7), 1, 0)
	b.NoParam(bytecode.RAIS, 1, 0)
	b.ID(bytecode.MDST, "caught", 2, 0) // ip 3: catch handler lands here
	b.NoParam(bytecode.EXIT, 2, 0)
	mod := b.Build()

	modNode, err := runModule(vm, mod)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got := modNode.Obj.GetField("caught")
	if !got.IsValue() || got.Val.I != 7 {
		t.Errorf("caught = %v, want Int(7)", got)
	}
}

// TestUncaughtRaiseReturnsError confirms an error with no installed
// CTCH propagates out of Run as a genuine Go error (handleException's
// "saved-block stack empties" branch) instead of silently continuing.
func TestUncaughtRaiseReturnsError(t *testing.T) {
	vm := newTestVM()
	b := module.NewBuilder("unhandled", "<test>")
	b.Val(bytecode.RES, bytecode.IntLiteral(1), 1, 0)
	b.NoParam(bytecode.RAIS, 1, 0)
	b.NoParam(bytecode.EXIT, 1, 0)
	mod := b.Build()

	if _, err := runModule(vm, mod); err == nil {
		t.Error("Run() with an uncaught RAIS and no CTCH should return an error")
	}
}

// TestQualifiedCallInvokesNativeExternalFunction exercises RMDL +
// qualified CALL id against a Go-backed native module (spec.md §4.8),
// grounded on execCallID's DeepLookup dispatch and callExternalCell's
// synchronous native invocation.
func TestQualifiedCallInvokesNativeExternalFunction(t *testing.T) {
	vm := newTestVM()
	vm.RegisterNativeModule("mathmod", func(vm *VM) *heap.Node {
		modNode := vm.Graph.CreateRoot(heap.KindModule)
		vm.RegisterExternalFn(modNode, "triple", func(vm *VM, th *Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
			if !arg.IsValue() || arg.Val.Kind != heap.KInt {
				return heap.None, nil
			}
			return heap.Int(arg.Val.I * 3), nil
		})
		return modNode
	})

	b := module.NewBuilder("caller", "<test>")
	b.ID(bytecode.RMDL, "mathmod", 1, 0)
	b.NoParam(bytecode.PUSH, 1, 0) // push the resolved module onto the stack
	b.Val(bytecode.RES, bytecode.IntLiteral(7), 1, 0)
	b.ID(bytecode.CALL, "triple", 1, 0)
	b.ID(bytecode.MDST, "result", 1, 0)
	b.NoParam(bytecode.EXIT, 1, 0)
	mod := b.Build()

	modNode, err := runModule(vm, mod)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got := modNode.Obj.GetField("result")
	if !got.IsValue() || got.Val.I != 21 {
		t.Errorf("result = %v, want Int(21)", got)
	}
}

// TestRunMainLoadsAndRunsAModuleFromDisk drives the full cmd/jlvm path:
// Builder -> Save -> Loader -> RunMain, checking via a native module's
// Go-side side effect that a later import of the same module (the
// ensureModuleInitialized path RMDL/MCLL drive) is a no-op once RunMain
// has already marked it initialized -- RunMain itself always runs the
// top level unconditionally; it is a later IMPORT that gets skipped.
func TestRunMainLoadsAndRunsAModuleFromDisk(t *testing.T) {
	b := module.NewBuilder("onceonly", "<test>")
	b.ID(bytecode.RMDL, "counter", 1, 0)
	b.NoParam(bytecode.PUSH, 1, 0)
	b.ID(bytecode.CALL, "bump", 1, 0)
	b.NoParam(bytecode.EXIT, 1, 0)
	mod := b.Build()

	dir := t.TempDir()
	path := filepath.Join(dir, "onceonly.jb")
	if err := module.Save(mod, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loader := module.NewLoader()
	loader.AddSearchPath(dir)
	graph := heap.NewGraph(heap.SequentialIDs, heap.DefaultGCThreshold)
	vm := New(graph, loader)

	calls := 0
	vm.RegisterNativeModule("counter", func(vm *VM) *heap.Node {
		modNode := vm.Graph.CreateRoot(heap.KindModule)
		vm.RegisterExternalFn(modNode, "bump", func(vm *VM, th *Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
			calls++
			return heap.None, nil
		})
		return modNode
	})

	if err := vm.RunMain("onceonly"); err != nil {
		t.Fatalf("RunMain() error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("bump was called %d times by RunMain, want 1", calls)
	}

	modNode, err := vm.ResolveModule("onceonly")
	if err != nil {
		t.Fatalf("ResolveModule() error: %v", err)
	}
	if err := vm.ensureModuleInitialized(vm.NewThread(), modNode); err != nil {
		t.Fatalf("ensureModuleInitialized() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("bump was called %d times after a later import, want 1 (RunMain should have marked the module initialized)", calls)
	}
}
