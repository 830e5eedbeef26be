package engine

import (
	"fmt"

	"jlvm/internal/bytecode"
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// execNoParam handles every NoParam-encoded instruction (vm.c's
// execute_no_param): the bulk of the instruction set, including the
// binary operator family that pairs a popped stack operand with
// resval (spec.md §8 scenario 1).
func (vm *VM) execNoParam(th *Thread, ins bytecode.Instruction) (bool, error) {
	switch ins.Op {
	case bytecode.NOP:
		return advance(vm, th)
	case bytecode.EXIT:
		return false, nil
	case bytecode.RET:
		if err := vm.doReturn(th); err != nil {
			return false, err
		}
		return true, nil
	case bytecode.CALL:
		callee, err := th.pop()
		if err != nil {
			return false, err
		}
		before := th.Current()
		if err := vm.doCall(th, callee); err != nil {
			return false, err
		}
		if th.Current() == before {
			return advance(vm, th)
		}
		return true, nil
	case bytecode.RAIS:
		raise(vm, th)
		return true, nil

	case bytecode.PUSH:
		th.push(th.Resval())
		return advance(vm, th)
	case bytecode.RES:
		v, err := th.pop()
		if err != nil {
			return false, err
		}
		th.SetResval(v)
		return advance(vm, th)
	case bytecode.PEEK:
		v, err := th.peek()
		if err != nil {
			return false, err
		}
		th.SetResval(v)
		return advance(vm, th)
	case bytecode.DUP:
		v, err := th.peek()
		if err != nil {
			return false, err
		}
		th.push(v)
		return advance(vm, th)
	case bytecode.PRNT:
		fmt.Fprint(vm.Stdout, displayString(th.Resval()))
		return advance(vm, th)

	case bytecode.ADR:
		if !th.Resval().IsObject() {
			vm.throwf(th, vmerrors.TypeError, "cannot get the address of a non-object")
			return true, nil
		}
		th.SetResval(heap.Int(int64(th.Resval().Obj.Node.ID)))
		return advance(vm, th)

	case bytecode.NOT:
		if th.Resval().Truthy() {
			th.SetResval(heap.None)
		} else {
			th.SetResval(heap.Int(1))
		}
		return advance(vm, th)
	case bytecode.NOTC:
		if !th.Resval().IsValue() || th.Resval().Val.Kind != heap.KInt {
			vm.throwf(th, vmerrors.TypeError, "NOTC requires an Int64 value")
			return true, nil
		}
		th.SetResval(heap.Int(^th.Resval().Val.I))
		return advance(vm, th)

	case bytecode.ADD:
		return vm.binopAdvance(th, "+")
	case bytecode.SUB:
		return vm.binopAdvance(th, "-")
	case bytecode.MULT:
		return vm.binopAdvance(th, "*")
	case bytecode.DIV:
		return vm.binopAdvance(th, "/")
	case bytecode.MOD:
		return vm.binopAdvance(th, "%")

	case bytecode.EQ:
		return vm.compareAdvance(th, "==")
	case bytecode.NEQ:
		return vm.compareAdvance(th, "!=")
	case bytecode.GT:
		return vm.compareAdvance(th, ">")
	case bytecode.GTE:
		return vm.compareAdvance(th, ">=")
	case bytecode.LT:
		return vm.compareAdvance(th, "<")
	case bytecode.LTE:
		return vm.compareAdvance(th, "<=")

	case bytecode.AND:
		return vm.logicAdvance(th, "and")
	case bytecode.OR:
		return vm.logicAdvance(th, "or")
	case bytecode.XOR:
		return vm.logicAdvance(th, "xor")

	case bytecode.IS:
		if _, err := vm.doIs(th); err != nil {
			return false, err
		}
		return advance(vm, th)

	case bytecode.ASET:
		if _, err := vm.doAset(th); err != nil {
			return false, err
		}
		return advance(vm, th)
	case bytecode.AIDX:
		if _, err := vm.doAidx(th); err != nil {
			return false, err
		}
		return advance(vm, th)

	default:
		return false, vmerrors.New(vmerrors.InternalError, "opcode %s is not a NoParam instruction", ins.Op)
	}
}

// binopAdvance/compareAdvance/logicAdvance wrap the operators.go
// helpers (which only report whether dispatch handled the op, not
// whether ip should move) with this table's "always advance after"
// convention, since none of ADD/EQ/AND/etc. touch ip themselves.
func (vm *VM) binopAdvance(th *Thread, sym string) (bool, error) {
	if _, err := vm.binop(th, sym); err != nil {
		return false, err
	}
	return advance(vm, th)
}

func (vm *VM) compareAdvance(th *Thread, sym string) (bool, error) {
	if _, err := vm.compare(th, sym); err != nil {
		return false, err
	}
	return advance(vm, th)
}

func (vm *VM) logicAdvance(th *Thread, sym string) (bool, error) {
	if _, err := vm.logic(th, sym); err != nil {
		return false, err
	}
	return advance(vm, th)
}
