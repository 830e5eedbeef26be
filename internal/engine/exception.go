package engine

import (
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// handleException implements spec.md §4.7's catch_error: walk up the
// saved-block chain checking each frame's OWN $try_goto (set by a
// CTCH that already ran in that frame) until one is found or the
// saved-block stack empties. Unlike a propagating panic, the error
// value itself is never copied onto intermediate frames -- only the
// frame that installed the catch needs to see it cleared.
func (vm *VM) handleException(th *Thread) (bool, error) {
	errElem := th.Current().Obj.Get(heap.KeyError)
	for {
		if ip, ok := blockTryGoto(th.Current()); ok {
			setBlockIP(vm, th.Current(), ip)
			clearBlockError(vm, th.Current())
			clearBlockTryGoto(vm, th.Current())
			return true, nil
		}
		prev, ok := th.popBlock()
		if !ok {
			return false, vmerrors.New(vmerrors.InternalError, "uncaught error: %s", errElem.String())
		}
		th.SetCurrent(prev)
	}
}

// raise implements RAIS: the value already computed into resval (by
// a preceding RES/expression, per spec.md §8 scenario 4) becomes the
// propagating error value.
func raise(vm *VM, th *Thread) {
	setBlockError(vm, th.Current(), th.Resval())
}

// throwf is the engine-internal vm_throw_error entry point every
// failing op uses (spec.md §4.7): it raises a VMError message as the
// current error value instead of going through user RES/RAIS.
func (vm *VM) throwf(th *Thread, kind vmerrors.ErrorType, format string, args ...interface{}) {
	verr := vmerrors.New(kind, format, args...)
	th.SetResval(vm.newErrorValue(verr))
	setBlockError(vm, th.Current(), th.Resval())
}

// newErrorValue builds the Element a raised error evaluates to: an
// instance of the error module's Error class once one is registered
// (spec.md §4.7), or a bare string before that module has ever been
// touched -- the engine itself raises a handful of errors (module
// resolution failures) that can occur ahead of any user import.
func (vm *VM) newErrorValue(verr *vmerrors.VMError) heap.Element {
	if vm.ErrorClass == nil {
		return heap.FromObject(vm.Graph.NewString(verr.Error()).Obj)
	}
	inst := vm.createObjOfClass(vm.ErrorClass)
	inst.Obj.SetField(vm.Graph, "message", heap.FromObject(vm.Graph.NewString(verr.Message).Obj))
	inst.Obj.SetField(vm.Graph, "type", heap.FromObject(vm.Graph.NewString(string(verr.Type)).Obj))
	return heap.FromObject(inst.Obj)
}

// raiseOrFail converts an error returned by a lower-level helper
// (heap.Arith, array bounds checks, ...) into a catchable JL exception
// via throwf, UNLESS it is an InternalError -- those are the "should
// not occur" invariant violations spec.md §7 says are fatal, so they
// propagate as a genuine Go error and abort Run entirely rather than
// being walkable by CTCH.
func (vm *VM) raiseOrFail(th *Thread, err error) (bool, error) {
	if verr, ok := err.(*vmerrors.VMError); ok && verr.Type != vmerrors.InternalError {
		vm.throwf(th, verr.Type, "%s", verr.Message)
		return true, nil
	}
	return false, err
}
