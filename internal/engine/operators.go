package engine

import (
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// operatorMethod maps an arithmetic/compare opcode name to the method
// name a class defines to overload it (spec.md §4.1: "If either side
// is Object and the class defines an operator method, the runtime
// delegates via method lookup").
var operatorMethod = map[string]string{
	"+": "__add__", "-": "__sub__", "*": "__mul__", "/": "__div__", "%": "__mod__",
	"==": "__eq__", "<": "__lt__", "<=": "__le__", ">": "__gt__", ">=": "__ge__",
}

// binop implements the engine's "pop one, combine with resval" shape
// derived directly from spec.md §8 scenario 1's trace (RES 2; PUSH;
// RES 3; ADD -> resval=5, i.e. result = poppedOperand <op> resval):
// pop the left-hand operand off the stack, evaluate
// left <op> th.Resval, and store the result back into Resval.
func (vm *VM) binop(th *Thread, sym string) (bool, error) {
	lhs, err := th.pop()
	if err != nil {
		return false, err
	}
	rhs := th.Resval()

	if lhs.IsObject() || rhs.IsObject() {
		return vm.binopObject(th, sym, lhs, rhs)
	}
	if lhs.IsValue() && rhs.IsValue() {
		result, err := heap.Arith(sym, lhs.Val, rhs.Val)
		if err != nil {
			return vm.raiseOrFail(th, err)
		}
		th.SetResval(heap.FromValue(result))
		return true, nil
	}
	vm.throwf(th, vmerrors.TypeError, "%s requires two Values or two Objects, got %v %s %v", sym, lhs, sym, rhs)
	return true, nil
}

// binopObject implements operator-method delegation: String `+` is
// handled directly (concatenation, §4.1); otherwise the class's
// operator method (if any) is invoked with the other operand as its
// sole argument.
func (vm *VM) binopObject(th *Thread, sym string, lhs, rhs heap.Element) (bool, error) {
	if sym == "+" && lhs.IsObject() && rhs.IsObject() &&
		lhs.Obj.Kind == heap.KindString && rhs.Obj.Kind == heap.KindString {
		n, err := vm.Graph.StringConcat(lhs.Obj.Node, rhs.Obj.Node)
		if err != nil {
			return vm.raiseOrFail(th, err)
		}
		th.SetResval(heap.FromObject(n.Obj))
		return true, nil
	}

	methodName, ok := operatorMethod[sym]
	if !ok || !lhs.IsObject() {
		vm.throwf(th, vmerrors.TypeError, "no operator %s defined for %v and %v", sym, lhs, rhs)
		return true, nil
	}
	method := classOf(lhs.Obj).GetField(methodName)
	if !method.IsObject() {
		vm.throwf(th, vmerrors.TypeError, "class of %v does not define %s", lhs, methodName)
		return true, nil
	}

	var result heap.Element
	var err error
	switch {
	case method.Obj.Kind == heap.KindExternalFnCell:
		err = vm.callExternalCell(th, method.Obj, lhs, rhs)
		result = th.Resval()
	case isFunctionCell(method.Obj):
		result, err = vm.callFunctionSync(th, method.Obj.Node, lhs, rhs)
	default:
		vm.throwf(th, vmerrors.TypeError, "%s on class of %v is not callable", methodName, lhs)
		return true, nil
	}
	if err != nil {
		return false, err
	}
	th.SetResval(result)
	return true, nil
}

// compare implements EQ/NEQ/GT/GTE/LT/LTE: pop one, compare with
// resval, and produce the "truthy-1 or None" convention of spec.md
// §4.4's Compare row.
func (vm *VM) compare(th *Thread, sym string) (bool, error) {
	lhs, err := th.pop()
	if err != nil {
		return false, err
	}
	rhs := th.Resval()

	var truth bool
	switch {
	case lhs.IsValue() && rhs.IsValue():
		switch sym {
		case "==":
			truth = heap.ValueEqual(lhs.Val, rhs.Val)
		case "!=":
			truth = !heap.ValueEqual(lhs.Val, rhs.Val)
		default:
			c := heap.Compare(lhs.Val, rhs.Val)
			truth = compareOp(sym, c)
		}
	case lhs.IsObject() && rhs.IsObject() && lhs.Obj.Kind == heap.KindString && rhs.Obj.Kind == heap.KindString:
		switch sym {
		case "==":
			truth = heap.StringEqual(lhs.Obj, rhs.Obj)
		case "!=":
			truth = !heap.StringEqual(lhs.Obj, rhs.Obj)
		default:
			c := 0
			if lhs.Obj.StrVal < rhs.Obj.StrVal {
				c = -1
			} else if lhs.Obj.StrVal > rhs.Obj.StrVal {
				c = 1
			}
			truth = compareOp(sym, c)
		}
	default:
		if methodName, ok := operatorMethod[sym]; ok && lhs.IsObject() {
			method := classOf(lhs.Obj).GetField(methodName)
			if method.IsObject() && (method.Obj.Kind == heap.KindExternalFnCell || isFunctionCell(method.Obj)) {
				if cont, err := vm.binopObject(th, sym, lhs, rhs); err != nil || !cont {
					return cont, err
				}
				truth = th.Resval().Truthy()
				break
			}
		}
		switch sym {
		case "==":
			truth = heap.Equal(lhs, rhs)
		case "!=":
			truth = !heap.Equal(lhs, rhs)
		default:
			vm.throwf(th, vmerrors.TypeError, "%s is not ordered for %v and %v", sym, lhs, rhs)
			return true, nil
		}
	}

	if truth {
		th.SetResval(heap.Int(1))
	} else {
		th.SetResval(heap.None)
	}
	return true, nil
}

func compareOp(sym string, c int) bool {
	switch sym {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

// logic implements AND/OR/XOR: pop one, combine truthiness with
// resval, producing the truthy-1/None convention (no short-circuit --
// short-circuiting is the compiled IF/IFN jump's job, per §4.4).
func (vm *VM) logic(th *Thread, sym string) (bool, error) {
	lhs, err := th.pop()
	if err != nil {
		return false, err
	}
	a, b := lhs.Truthy(), th.Resval().Truthy()
	var truth bool
	switch sym {
	case "and":
		truth = a && b
	case "or":
		truth = a || b
	case "xor":
		truth = a != b
	}
	if truth {
		th.SetResval(heap.Int(1))
	} else {
		th.SetResval(heap.None)
	}
	return true, nil
}

// doIs implements IS: unlike the arithmetic family it takes both
// operands off the stack rather than pairing one with resval -- vm.c's
// execute_no_param pops rhs then lhs for this whole op group, and
// spec.md §8 scenario 6's literal `PUSH b; PUSH A; IS` only produces
// the documented result if both b and A come from the stack. Both
// sides are resolved to their class via classOf (so pushing either an
// instance or a class directly both work).
func (vm *VM) doIs(th *Thread) (bool, error) {
	rhs, err := th.pop()
	if err != nil {
		return false, err
	}
	lhs, err := th.pop()
	if err != nil {
		return false, err
	}
	if !lhs.IsObject() || !rhs.IsObject() {
		th.SetResval(heap.None)
		return true, nil
	}
	c := classOf(lhs.Obj)
	p := classOf(rhs.Obj)
	if heap.InheritsFrom(c, p) {
		th.SetResval(heap.Int(1))
	} else {
		th.SetResval(heap.None)
	}
	return true, nil
}
