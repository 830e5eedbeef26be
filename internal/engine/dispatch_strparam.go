package engine

import (
	"fmt"

	"jlvm/internal/bytecode"
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// execStrParam handles every StrParam-encoded instruction (vm.c's
// execute_str_param): a new String object is allocated for the literal
// on each dispatch, matching the original's string_create-per-instruction
// behavior rather than caching the Object on the Instruction itself.
func (vm *VM) execStrParam(th *Thread, ins bytecode.Instruction) (bool, error) {
	strNode := vm.Graph.NewString(ins.Str)
	elem := heap.FromObject(strNode.Obj)

	switch ins.Op {
	case bytecode.PUSH:
		th.push(elem)
		return advance(vm, th)
	case bytecode.RES:
		th.SetResval(elem)
		return advance(vm, th)
	case bytecode.PRNT:
		fmt.Fprint(vm.Stdout, displayString(elem))
		return advance(vm, th)
	case bytecode.PSRS:
		th.push(elem)
		th.SetResval(elem)
		return advance(vm, th)
	default:
		return false, vmerrors.New(vmerrors.InternalError, "opcode %s is not a StrParam instruction", ins.Op)
	}
}
