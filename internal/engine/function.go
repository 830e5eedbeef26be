package engine

import (
	"jlvm/internal/heap"
	"jlvm/internal/module"
)

// Markers distinguishing the three callee kinds CALL must recognize
// (spec.md §4.5: "Validate it is Function / ExternalFunction / Class").
// ExternalFunction already has its own heap.Kind; Function and Class
// both use heap.KindPlain, so engine tags them itself with a field
// name that is deliberately not a CommonKey (kept out of the fixed
// ltable, never visible to user code as a real field).
const (
	markerIsFunction = "$$fn"
	markerIsClass    = "$$class"
)

// newFunctionCell wraps one entry point as a callable Function Object
// bound to the module (or class) it lexically belongs to.
func newFunctionCell(vm *VM, lexModule *heap.Node, entryIP uint32) *heap.Node {
	n := vm.Graph.NewNode(heap.KindPlain)
	n.Obj.SetField(vm.Graph, "$ip", heap.Int(int64(entryIP)))
	if lexModule != nil {
		n.Obj.SetField(vm.Graph, "$module", heap.FromObject(lexModule.Obj))
	}
	n.Obj.SetField(vm.Graph, markerIsFunction, heap.Int(1))
	return n
}

func isFunctionCell(o *heap.Object) bool { return o != nil && o.HasOwnField(markerIsFunction) }
func isClassObject(o *heap.Object) bool  { return o != nil && o.HasOwnField(markerIsClass) }

// ResolveModuleRef looks up name in modNode's top-level ref or class
// table, memoizing the result as a field on the module Object so
// repeat lookups are O(1) map hits (spec.md §4.4's refs table: name ->
// entry ip; classes resolve the same way, lazily, since class
// construction needs each parent already resolved).
func (vm *VM) ResolveModuleRef(modNode *heap.Node, name string) (heap.Element, bool) {
	if modNode.Obj.HasOwnField(name) {
		return modNode.Obj.GetField(name), true
	}
	mod := modNode.Obj.Module
	if mod == nil {
		return heap.None, false
	}
	if ip, ok := mod.Refs[name]; ok {
		fn := newFunctionCell(vm, modNode, ip)
		elem := heap.FromObject(fn.Obj)
		modNode.Obj.SetField(vm.Graph, name, elem)
		return elem, true
	}
	if def, ok := mod.Classes[name]; ok {
		parents := make([]*heap.Node, 0, len(def.ParentNames))
		for _, pname := range def.ParentNames {
			pElem, ok := vm.ResolveModuleRef(modNode, pname)
			if !ok || !pElem.IsObject() {
				return heap.None, false
			}
			parents = append(parents, pElem.Obj.Node)
		}
		classNode, err := vm.NewClass(modNode, def, parents)
		if err != nil {
			return heap.None, false
		}
		elem := heap.FromObject(classNode.Obj)
		modNode.Obj.SetField(vm.Graph, name, elem)
		return elem, true
	}
	return heap.None, false
}

// NewClass builds a Class Object from a module.ClassDef: its methods
// become eagerly-resolved Function cells (fields, so CommonKeys like
// "constructor"/"deconstructor" land in the fast ltable path exactly
// like any other field write), and parents are installed via
// SetParentClasses so cycles are rejected at construction time
// (spec.md §8 property 3).
func (vm *VM) NewClass(modNode *heap.Node, def *module.ClassDef, parents []*heap.Node) (*heap.Node, error) {
	n := vm.Graph.NewNode(heap.KindPlain)
	n.Obj.SetField(vm.Graph, "$module", heap.FromObject(modNode.Obj))
	n.Obj.SetField(vm.Graph, markerIsClass, heap.Int(1))

	for methodName, ip := range def.Methods {
		fn := newFunctionCell(vm, modNode, ip)
		n.Obj.SetField(vm.Graph, methodName, heap.FromObject(fn.Obj))
	}

	parentObjs := make([]*heap.Object, 0, len(parents))
	for _, p := range parents {
		parentObjs = append(parentObjs, p.Obj)
	}
	if err := n.Obj.SetParentClasses(parentObjs); err != nil {
		return nil, err
	}
	return n, nil
}

// classOf resolves an Element to "the class to use for inherits_from
// checks": an instance's own class field if it has one, else the
// Object itself (so pushing a class directly, as in IS checks between
// two classes, works without an extra indirection).
func classOf(o *heap.Object) *heap.Object {
	if o == nil {
		return nil
	}
	if c := o.GetField("class"); c.IsObject() {
		return c.Obj
	}
	return o
}

// createObjOfClass implements CALL's Class branch (spec.md §4.5.2):
// external classes get an ExternalData-backed instance, plain classes
// get a Plain instance whose "class" field points back at classNode.
func (vm *VM) createObjOfClass(classNode *heap.Node) *heap.Node {
	if classNode.Obj.IsExternal {
		inst := vm.NewExternalInstance(classNode)
		return inst
	}
	n := vm.Graph.NewNode(heap.KindPlain)
	n.Obj.SetField(vm.Graph, "class", heap.FromObject(classNode.Obj))
	return n
}
