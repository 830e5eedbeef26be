package engine

import (
	"fmt"

	"jlvm/internal/bytecode"
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// execIDParam handles every IDParam-encoded instruction (vm.c's
// execute_id_param): named-binding reads/writes, field access, the
// qualified CALL id / MCLL id / RMDL id module protocols, and INC/DEC.
func (vm *VM) execIDParam(th *Thread, ins bytecode.Instruction) (bool, error) {
	id := ins.ID

	switch ins.Op {
	case bytecode.SET:
		th.Current().Obj.SetField(vm.Graph, id, th.Resval())
		return advance(vm, th)
	case bytecode.MDST:
		modNode := blockModuleNode(th.Current())
		if modNode == nil {
			return false, vmerrors.New(vmerrors.InternalError, "MDST with no current module")
		}
		modNode.Obj.SetField(vm.Graph, id, th.Resval())
		return advance(vm, th)
	case bytecode.FLD:
		newVal, err := th.pop()
		if err != nil {
			return false, err
		}
		if !th.Resval().IsObject() {
			vm.throwf(th, vmerrors.NilError, "cannot set field '%s' on Nil", id)
			return true, nil
		}
		th.Resval().Obj.SetField(vm.Graph, id, newVal)
		th.SetResval(newVal)
		return advance(vm, th)

	case bytecode.PUSH:
		v, _ := vmLookup(th.Current(), id)
		th.push(v)
		return advance(vm, th)
	case bytecode.PSRS:
		v, _ := vmLookup(th.Current(), id)
		th.push(v)
		th.SetResval(v)
		return advance(vm, th)
	case bytecode.RES:
		v, _ := vmLookup(th.Current(), id)
		th.SetResval(v)
		return advance(vm, th)

	case bytecode.GET:
		result, ok := vm.objectGet(th, id)
		if !ok {
			return true, nil
		}
		th.SetResval(result)
		return advance(vm, th)
	case bytecode.GTSH:
		result, ok := vm.objectGet(th, id)
		if !ok {
			return true, nil
		}
		th.push(result)
		return advance(vm, th)

	case bytecode.INC:
		return vm.incdec(th, id, 1)
	case bytecode.DEC:
		return vm.incdec(th, id, -1)

	case bytecode.CALL:
		return vm.execCallID(th, id)
	case bytecode.MCLL:
		return vm.execMcll(th, id)
	case bytecode.RMDL:
		modNode, err := vm.ResolveModule(id)
		if err != nil {
			return vm.raiseOrFail(th, err)
		}
		th.SetResval(heap.FromObject(modNode.Obj))
		return advance(vm, th)

	case bytecode.PRNT:
		v, _ := vmLookup(th.Current(), id)
		fmt.Fprint(vm.Stdout, displayString(v))
		return advance(vm, th)

	default:
		return false, vmerrors.New(vmerrors.InternalError, "opcode %s is not an IDParam instruction", ins.Op)
	}
}

// objectGet implements vm_object_get: read field name off the current
// resval, raising NilError if resval isn't an Object. Returning
// ok=false means the caller should stop -- an error has already been
// raised onto the current block.
func (vm *VM) objectGet(th *Thread, name string) (heap.Element, bool) {
	if !th.Resval().IsObject() {
		vm.throwf(th, vmerrors.NilError, "cannot get field '%s' from Nil", name)
		return heap.None, false
	}
	result, _ := th.Resval().Obj.DeepLookup(name)
	return result, true
}

// incdec implements INC/DEC id. Unlike the literal original (which
// reads the named field off resval but writes the incremented value
// back as a BLOCK-local variable of the same name -- an inconsistency
// documented in DESIGN.md), this operates uniformly on resval's own
// field: read via DeepLookup, increment, write back onto resval.Obj.
func (vm *VM) incdec(th *Thread, name string, delta int64) (bool, error) {
	if !th.Resval().IsObject() {
		vm.throwf(th, vmerrors.NilError, "cannot get field '%s' from Nil", name)
		return true, nil
	}
	cur, ok := th.Resval().Obj.DeepLookup(name)
	if !ok || !cur.IsValue() {
		vm.throwf(th, vmerrors.TypeError, "cannot increment '%s' because it is not a value-type", name)
		return true, nil
	}
	var next heap.Value
	switch cur.Val.Kind {
	case heap.KInt:
		next = heap.IntValue(cur.Val.I + delta)
	case heap.KFloat:
		next = heap.FloatValue(cur.Val.F + float64(delta))
	case heap.KChar:
		next = heap.CharValue(cur.Val.C + int8(delta))
	}
	result := heap.FromValue(next)
	th.Resval().Obj.SetField(vm.Graph, name, result)
	th.SetResval(result)
	return advance(vm, th)
}

// execCallID implements qualified CALL id (obj.method(...)): pop the
// receiver, resolve id against it via DeepLookup, and dispatch by the
// resolved member's kind exactly like doCall does for a bare callee.
func (vm *VM) execCallID(th *Thread, id string) (bool, error) {
	obj, err := th.pop()
	if err != nil {
		return false, err
	}
	if obj.IsNone() {
		vm.throwf(th, vmerrors.NilError, "cannot dereference Nil")
		return true, nil
	}
	if !obj.IsObject() {
		vm.throwf(th, vmerrors.TypeError, "cannot call a non-object")
		return true, nil
	}
	target, ok := obj.Obj.DeepLookup(id)
	if !ok || !target.IsObject() {
		vm.throwf(th, vmerrors.TypeError, "object has no such function '%s'", id)
		return true, nil
	}

	before := th.Current()
	switch {
	case target.Obj.Kind == heap.KindExternalFnCell:
		if err := vm.callExternalCell(th, target.Obj, obj, th.Resval()); err != nil {
			return false, err
		}
	case isFunctionCell(target.Obj):
		if err := vm.callFunction(th, target.Obj.Node, obj); err != nil {
			return false, err
		}
	case isClassObject(target.Obj):
		if err := vm.callClass(th, target.Obj.Node); err != nil {
			return false, err
		}
	default:
		vm.throwf(th, vmerrors.TypeError, "cannot execute call, '%s' is not a Function or Class", id)
		return true, nil
	}
	if th.Current() == before {
		return advance(vm, th)
	}
	return true, nil
}

// execMcll implements MCLL id (qualified module call `mod.fn(...)`):
// pop the target module, install a new block whose parent AND self
// are both the caller's current block (vm.c's call_fn-adjacent
// vm_new_block(vm, block, block) -- a deliberately dynamic-scoping
// counterpart to CALL's lexical callFunction), and jump directly to
// the resolved ref's entry point.
func (vm *VM) execMcll(th *Thread, id string) (bool, error) {
	modElem, err := th.pop()
	if err != nil {
		return false, err
	}
	if !modElem.IsObject() || modElem.Obj.Kind != heap.KindModule {
		return false, vmerrors.New(vmerrors.InternalError, "MCLL target is not a module")
	}
	mod := modElem.Obj.Module
	if mod == nil {
		return false, vmerrors.New(vmerrors.InternalError, "MCLL target module has no compiled body")
	}
	entryIP, ok := mod.Refs[id]
	if !ok {
		vm.throwf(th, vmerrors.TypeError, "module '%s' has no such function '%s'", mod.Name, id)
		return true, nil
	}

	caller := th.Current()
	newBlk := newBlock(vm, caller, caller, heap.FromObject(caller.Obj))
	newBlk.Obj.SetField(vm.Graph, "$module", modElem)
	setBlockStackSize(vm, newBlk, th.StackDepth())
	setBlockIP(vm, newBlk, int64(entryIP))

	th.pushBlock(th.Current())
	th.SetCurrent(newBlk)
	return true, vm.ensureModuleInitialized(th, modElem.Obj.Node)
}
