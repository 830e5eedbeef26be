package engine

import (
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// doCall implements spec.md §4.5's CALL protocol for a callee popped
// off the operand stack. An ExternalFunction call resolves inline
// (native Go code runs synchronously); a Function or Class call
// installs a new Current block and lets the ordinary dispatch loop
// drive the callee's body, with RET restoring the caller -- there is
// no separate recursive sub-interpreter for the common path, since
// the flat per-thread loop already handles arbitrary call depth via
// the block chain.
func (vm *VM) doCall(th *Thread, callee heap.Element) error {
	if !callee.IsObject() {
		return vmerrors.New(vmerrors.TypeError, "cannot call non-object value %v", callee)
	}
	o := callee.Obj

	switch {
	case o.Kind == heap.KindExternalFnCell:
		self, _ := vmLookup(th.Current(), "self")
		return vm.callExternalCell(th, o, self, th.Resval())
	case isClassObject(o):
		return vm.callClass(th, o.Node)
	case isFunctionCell(o):
		self, _ := vmLookup(th.Current(), "self")
		return vm.callFunction(th, o.Node, self)
	default:
		return vmerrors.New(vmerrors.TypeError, "value is not callable")
	}
}

// callExternalCell runs a native Go function inline, synchronously --
// external functions never get a Block of their own (vm.c's
// call_external_fn). receiver is the object the call was made through
// (vm_lookup(THIS) for a bare CALL, the popped instance for a
// qualified `obj.method()` CALL id, or the fresh instance for a
// constructor); its ExternalData, if any, is handed to the native fn.
func (vm *VM) callExternalCell(th *Thread, fnObj *heap.Object, receiver, arg heap.Element) error {
	fn, ok := fnObj.Native.(ExternalFunction)
	if !ok || fn == nil {
		return vmerrors.New(vmerrors.InternalError, "external function cell has no native implementation")
	}
	var data *heap.ExternalData
	if receiver.IsObject() {
		data = receiver.Obj.External
	}
	result, err := fn(vm, th, data, arg)
	if err != nil {
		// A catchable VMError an ExternalFunction returns becomes a
		// raised block error, same as raiseOrFail does for core
		// opcodes (spec.md §4.7/§4.9: Thread.wait(timeout) "raises
		// TimeoutError", not an uncatchable VM abort). InternalError
		// is the one kind that still propagates as a fatal Go error.
		if verr, ok := err.(*vmerrors.VMError); ok && verr.Type != vmerrors.InternalError {
			vm.throwf(th, verr.Type, "%s", verr.Message)
			return nil
		}
		return err
	}
	th.SetResval(result)
	return nil
}

// callFunction pushes the caller's block and installs a fresh block
// for fn's body, with self bound for method calls. entryIP is read
// off the Function cell's "$ip" field, the slot newFunctionCell wrote
// the entry point into. The new block's $parent is fn's lexical home
// module, not the caller's block (vm.c's call_fn: vm_new_block(vm,
// parent_module, obj)) -- variable lookup for a function body walks
// out to where it was DEFINED, not where it was called from.
func (vm *VM) callFunction(th *Thread, fnNode *heap.Node, self heap.Element) error {
	lexModule := blockModuleNode(fnNode)
	entryIP := blockIP(fnNode)

	newBlk := newBlock(vm, lexModule, lexModule, self)
	newBlk.Obj.SetField(vm.Graph, "$caller", heap.FromObject(fnNode.Obj))
	setBlockStackSize(vm, newBlk, th.StackDepth())
	setBlockIP(vm, newBlk, entryIP)

	th.pushBlock(th.Current())
	th.SetCurrent(newBlk)
	return vm.ensureModuleInitialized(th, lexModule)
}

// callClass implements CALL's Class branch: allocate an instance,
// then invoke its constructor (if any) with self bound to the new
// instance. By convention the constructor does not need to set resval
// to the instance itself -- doCall/callClass does that before and
// after driving the constructor, mirroring the original's "constructor
// returns void, the new object is resval" contract.
func (vm *VM) callClass(th *Thread, classNode *heap.Node) error {
	inst := vm.createObjOfClass(classNode)
	ctor := classNode.Obj.GetField("constructor")

	if !ctor.IsObject() {
		th.SetResval(heap.FromObject(inst.Obj))
		return nil
	}

	switch {
	case ctor.Obj.Kind == heap.KindExternalFnCell:
		if err := vm.callExternalCell(th, ctor.Obj, heap.FromObject(inst.Obj), th.Resval()); err != nil {
			return err
		}
		th.SetResval(heap.FromObject(inst.Obj))
		return nil
	case isFunctionCell(ctor.Obj):
		th.SetResval(heap.FromObject(inst.Obj))
		return vm.callFunction(th, ctor.Obj.Node, heap.FromObject(inst.Obj))
	default:
		return vmerrors.New(vmerrors.TypeError, "constructor is not callable")
	}
}

// doReturn implements RET (spec.md §4.5, §8 property 6): pop the
// saved block, truncate the operand stack to the depth CALL recorded,
// and restore Current. The resumed block's ip is advanced past its
// own CALL instruction here, since nothing else will -- while it sat
// idle as a SavedBlocks entry it never went through a dispatch tick
// of its own to do so (vm.c's execute() only advances whatever block
// is current_block at the end of each tick, which was the callee's
// new block for the entire duration of the call).
func (vm *VM) doReturn(th *Thread) error {
	prev, ok := th.popBlock()
	if !ok {
		return vmerrors.New(vmerrors.InternalError, "RET with empty saved-block stack")
	}
	saved := blockStackSize(th.Current())
	th.truncateTo(saved)
	th.SetCurrent(prev)
	setBlockIP(vm, th.Current(), blockIP(th.Current())+1)
	return nil
}

// ensureModuleInitialized implements §4.8's module-init-once contract
// with one singleflight.Group per VM: concurrent first-touch calls
// for the same module collapse into a single top-level run.
func (vm *VM) ensureModuleInitialized(th *Thread, modNode *heap.Node) error {
	if modNode == nil {
		return nil
	}
	mod := modNode.Obj.Module
	if mod == nil {
		return nil
	}
	vm.initMu.Lock()
	done := vm.initDone[mod]
	vm.initMu.Unlock()
	if done {
		return nil
	}

	_, err, _ := vm.initGroup.Do(mod.Name, func() (interface{}, error) {
		vm.initMu.Lock()
		already := vm.initDone[mod]
		vm.initMu.Unlock()
		if already {
			return nil, nil
		}
		if err := vm.runModuleTopLevel(modNode); err != nil {
			return nil, err
		}
		vm.initMu.Lock()
		vm.initDone[mod] = true
		vm.initMu.Unlock()
		return nil, nil
	})
	return err
}

// runModuleTopLevel runs mod's top-level code from ip 0 to completion
// on a throwaway Thread sharing the same graph: the synchronous
// sub-interpretation spec.md §4.8 describes ("runs the module's
// top-level code until EXIT, pops the block, restores resval").
func (vm *VM) runModuleTopLevel(modNode *heap.Node) error {
	initTh := vm.NewThread()
	blk := newBlock(vm, modNode, nil, heap.None)
	setBlockIP(vm, blk, 0)
	initTh.SetCurrent(blk)
	return vm.Run(initTh)
}

// callFunctionSync runs fn to completion on th, synchronously, for
// use from within an opcode handler that needs the callee's result
// immediately (operator-method delegation, §4.1's "delegates via
// method lookup"). Unlike callFunction's CALL path, this loops the
// dispatcher itself until control returns to the block active before
// the call, rather than returning to the outer Run loop to do so.
func (vm *VM) callFunctionSync(th *Thread, fnNode *heap.Node, self, arg heap.Element) (heap.Element, error) {
	resumeBlock := th.Current()
	th.push(arg)
	if err := vm.callFunction(th, fnNode, self); err != nil {
		return heap.None, err
	}
	for th.Current() != resumeBlock {
		cont, err := vm.step(th)
		if err != nil {
			return heap.None, err
		}
		if !cont {
			return heap.None, vmerrors.New(vmerrors.InternalError, "operator method hit EXIT before returning")
		}
	}
	// doReturn has already stepped resumeBlock past the calling
	// instruction; undo that so the calling handler's own advance does.
	setBlockIP(vm, resumeBlock, blockIP(resumeBlock)-1)
	return th.Resval(), nil
}

// NewCallThread allocates a Thread whose Current is a bare block
// belonging to no module, existing solely to give InvokeCallable a
// resumeBlock to drive callFunctionSync's loop against. Every native
// Go entry point that needs to re-enter the interpreter rather than
// run inside an already-active dispatch tick (a spawned host Thread's
// body, a timer/socket callback) starts from one of these instead of
// th.Current() left over from whatever happened to call it.
func (vm *VM) NewCallThread() *Thread {
	th := vm.NewThread()
	th.SetCurrent(newBlock(vm, nil, nil, heap.None))
	return th
}

// RunMain executes name's top-level code as the program's entry point
// (spec.md §6's `run <module>.jb`): unlike ensureModuleInitialized's
// skip-if-already-done check (meant for an ordinary import), this
// always drives the module from ip 0 on a fresh Thread, then marks it
// initialized so a later `RMDL`/import of the same name is a no-op.
func (vm *VM) RunMain(name string) error {
	modNode, err := vm.ResolveModule(name)
	if err != nil {
		return err
	}
	if err := vm.runModuleTopLevel(modNode); err != nil {
		return err
	}
	if mod := modNode.Obj.Module; mod != nil {
		vm.initMu.Lock()
		vm.initDone[mod] = true
		vm.initMu.Unlock()
	}
	return nil
}

// InvokeCallable runs fn (a Function or ExternalFunction Object) to
// completion against self/arg and returns its resval, driving th's
// own dispatch loop rather than returning control to an outer Run
// (spec.md §4.8: external code may call back into a Function).
func (vm *VM) InvokeCallable(th *Thread, fn, self, arg heap.Element) (heap.Element, error) {
	if !fn.IsObject() {
		return heap.None, vmerrors.New(vmerrors.TypeError, "value is not callable")
	}
	return vm.invokeMethod(th, self, fn.Obj, arg)
}
