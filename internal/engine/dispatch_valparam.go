package engine

import (
	"fmt"

	"jlvm/internal/bytecode"
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// execValParam handles every ValParam-encoded instruction (vm.c's
// execute_val_param): literal pushes/resval writes, the three relative
// jump forms, and the aggregate constructors, all parameterized by the
// instruction's Int64|Float64|Char8 literal.
func (vm *VM) execValParam(th *Thread, ins bytecode.Instruction) (bool, error) {
	lit := ins.Lit

	switch ins.Op {
	case bytecode.EXIT:
		th.SetResval(litToElement(lit))
		return false, nil

	case bytecode.JMP:
		setBlockIP(vm, th.Current(), blockIP(th.Current())+lit.I)
		return true, nil
	case bytecode.IF:
		if th.Resval().Truthy() {
			setBlockIP(vm, th.Current(), blockIP(th.Current())+lit.I)
			return true, nil
		}
		return advance(vm, th)
	case bytecode.IFN:
		if !th.Resval().Truthy() {
			setBlockIP(vm, th.Current(), blockIP(th.Current())+lit.I)
			return true, nil
		}
		return advance(vm, th)
	case bytecode.GOTO:
		setBlockIP(vm, th.Current(), lit.I)
		return true, nil

	case bytecode.RES:
		th.SetResval(litToElement(lit))
		return advance(vm, th)
	case bytecode.PUSH:
		th.push(litToElement(lit))
		return advance(vm, th)
	case bytecode.PEEK:
		v, err := th.peekAt(lit.I)
		if err != nil {
			return false, err
		}
		th.SetResval(v)
		return advance(vm, th)
	case bytecode.SINC:
		top, err := th.pop()
		if err != nil {
			return false, err
		}
		if !top.IsValue() || top.Val.Kind != heap.KInt {
			return false, vmerrors.New(vmerrors.TypeError, "SINC requires an Int64 on top of stack")
		}
		th.push(heap.Int(top.Val.I + lit.I))
		return advance(vm, th)

	case bytecode.TUPL:
		if _, err := vm.doTupl(th, lit.I); err != nil {
			return false, err
		}
		return advance(vm, th)
	case bytecode.ANEW:
		if _, err := vm.doAnew(th, lit.I); err != nil {
			return false, err
		}
		return advance(vm, th)
	case bytecode.TGET:
		tup := th.Resval()
		if !tup.IsObject() || tup.Obj.Kind != heap.KindTuple {
			vm.throwf(th, vmerrors.TypeError, "attempted to index something not a tuple")
			return true, nil
		}
		result, err := heap.TupleGet(tup.Obj.Node, lit.I)
		if err != nil {
			return vm.raiseOrFail(th, err)
		}
		th.SetResval(result)
		return advance(vm, th)

	case bytecode.CTCH:
		setBlockTryGoto(vm, th.Current(), blockIP(th.Current())+lit.I+1)
		return advance(vm, th)

	case bytecode.PRNT:
		fmt.Fprint(vm.Stdout, displayString(litToElement(lit)))
		return advance(vm, th)

	default:
		return false, vmerrors.New(vmerrors.InternalError, "opcode %s is not a ValParam instruction", ins.Op)
	}
}
