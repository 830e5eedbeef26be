package engine

import (
	"jlvm/internal/bytecode"
	"jlvm/internal/vmerrors"
)

// Run drives th's current block to completion: EXIT ends the loop
// cleanly, an uncaught error (after exception handling has exhausted
// every catch frame) ends it with a Go error (spec.md §4.6: "returns
// false only for EXIT").
func (vm *VM) Run(th *Thread) error {
	for {
		cont, err := vm.step(th)
		if err != nil {
			if vm.Debug != nil {
				vm.Debug.OnError(vm, th, err)
			}
			return err
		}
		if !cont {
			return nil
		}
	}
}

// step performs spec.md §4.6's one execution tick: check $error on
// the current block first; otherwise fetch/decode/dispatch by
// ParamKind and let the matching handler advance ip.
func (vm *VM) step(th *Thread) (bool, error) {
	if blockHasError(th.Current()) {
		return vm.handleException(th)
	}

	modNode := blockModuleNode(th.Current())
	if modNode == nil || modNode.Obj.Module == nil {
		return false, vmerrors.New(vmerrors.InternalError, "current block has no module")
	}
	mod := modNode.Obj.Module
	ip := blockIP(th.Current())
	if ip < 0 || int(ip) >= len(mod.Instructions) {
		return false, vmerrors.New(vmerrors.InternalError, "ip %d out of range for module %s (len %d)", ip, mod.Name, len(mod.Instructions))
	}
	ins := mod.Instructions[ip]

	if vm.Debug != nil && !vm.Debug.OnInstruction(vm, th, ins) {
		return false, nil
	}

	switch ins.Param {
	case bytecode.NoParam:
		return vm.execNoParam(th, ins)
	case bytecode.ValParam:
		return vm.execValParam(th, ins)
	case bytecode.IDParam:
		return vm.execIDParam(th, ins)
	case bytecode.StrParam:
		return vm.execStrParam(th, ins)
	default:
		return false, vmerrors.New(vmerrors.InternalError, "unknown param kind %v", ins.Param)
	}
}

// advance is the normal "move to the next instruction" post-step,
// used by every op that doesn't itself redirect ip (jumps, RET).
func advance(vm *VM, th *Thread) (bool, error) {
	setBlockIP(vm, th.Current(), blockIP(th.Current())+1)
	return true, nil
}
