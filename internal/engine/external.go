package engine

import "jlvm/internal/heap"

// ExternalFunction is a native callable (spec.md §4.8): the engine
// invokes it with the VM, the calling Thread, the per-object
// ExternalData (nil for module-level functions with no instance), and
// the single argument Element, getting back the value to assign to
// resval.
type ExternalFunction func(vm *VM, th *Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error)

// RegisterExternal binds fn under a qualified name ("Class.method" or
// "module.fn"); NewExternalFnCell is what actually gets stored as an
// Object field and pushed onto the operand stack for CALL to find.
func (vm *VM) RegisterExternal(name string, fn ExternalFunction) {
	vm.externsMu.Lock()
	defer vm.externsMu.Unlock()
	vm.externs[name] = fn
}

func (vm *VM) LookupExternal(name string) (ExternalFunction, bool) {
	vm.externsMu.RLock()
	defer vm.externsMu.RUnlock()
	fn, ok := vm.externs[name]
	return fn, ok
}

// NewExternalFnCell wraps fn in a heap Object of KindExternalFnCell,
// the Element kind CALL recognizes as "invoke natively" (spec.md
// §4.8's "ExternalFunction Object").
func (vm *VM) NewExternalFnCell(fn ExternalFunction) *heap.Node {
	n := vm.Graph.NewNode(heap.KindExternalFnCell)
	n.Obj.Native = fn
	return n
}

// NewExternalInstance allocates an ExternalDataCell Object for a new
// instance of an external class, attaching an ExternalData record the
// constructor can populate with real host state (spec.md §4.8).
func (vm *VM) NewExternalInstance(class *heap.Node) *heap.Node {
	n := vm.Graph.NewNode(heap.KindExternalDataCell)
	n.Obj.IsExternal = true
	n.Obj.External = heap.NewExternalData(n.Obj)
	n.Obj.SetField(vm.Graph, "class", heap.FromObject(class.Obj))
	return n
}

// NewExternalClass builds a native-backed class Object (spec.md §4.8):
// instantiating it via CALL allocates an ExternalDataCell instance
// instead of a Plain one (createObjOfClass's IsExternal branch), and
// every entry of methods becomes an ExternalFnCell field --
// "constructor"/"deconstructor" included, so they're found and
// invoked by the ordinary CALL/CALL-id paths exactly like a compiled
// class's Function-cell methods. If modNode is non-nil the class is
// also installed as a field of that name on it, so a plain field read
// off the module (what RMDL/MCLL resolve to) finds it by name.
func (vm *VM) NewExternalClass(modNode *heap.Node, name string, methods map[string]ExternalFunction) *heap.Node {
	n := vm.Graph.NewNode(heap.KindPlain)
	n.Obj.IsExternal = true
	if modNode != nil {
		n.Obj.SetField(vm.Graph, "$module", heap.FromObject(modNode.Obj))
	}
	n.Obj.SetField(vm.Graph, markerIsClass, heap.Int(1))
	for methodName, fn := range methods {
		cell := vm.NewExternalFnCell(fn)
		n.Obj.SetField(vm.Graph, methodName, heap.FromObject(cell.Obj))
	}
	if modNode != nil {
		modNode.Obj.SetField(vm.Graph, name, heap.FromObject(n.Obj))
	}
	return n
}

// RegisterExternalFn installs a module-level native function as a
// field directly on modNode, the external equivalent of a compiled
// top-level Ref (spec.md §4.4): CALL pops it off the stack the same
// way it pops any other callable resolved via vmLookup/RMDL.
func (vm *VM) RegisterExternalFn(modNode *heap.Node, name string, fn ExternalFunction) {
	cell := vm.NewExternalFnCell(fn)
	modNode.Obj.SetField(vm.Graph, name, heap.FromObject(cell.Obj))
}
