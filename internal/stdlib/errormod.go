package stdlib

import (
	"jlvm/internal/engine"
	"jlvm/internal/heap"
)

// buildError installs the "error" standard module and, critically,
// sets vm.ErrorClass to its Error class: spec.md §4.7 requires every
// raised error value to be "an instance of the Error class from the
// error module", so throwf needs a class object to instantiate
// against once this module has been resolved at least once. message()
// and type() are plain field readers exposed as functions so
// JL code (which has no "Error.message" attribute syntax assumed by
// spec.md beyond fields) can read them uniformly.
func buildError(vm *engine.VM) *heap.Node {
	modNode := vm.Graph.CreateRoot(heap.KindModule)

	errClass := vm.NewExternalClass(modNode, "Error", map[string]engine.ExternalFunction{
		"constructor": errorConstructor,
		"message":     errorMessage,
		"type":        errorType,
	})
	vm.ErrorClass = errClass

	return modNode
}

// errorConstructor lets user code raise its own Error(message) the
// same way the engine's internal throwf does, with type defaulting to
// the generic ArgumentError kind when constructed directly rather than
// by the engine.
func errorConstructor(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	msg := ""
	if arg.IsObject() && arg.Obj.Kind == heap.KindString {
		msg = arg.Obj.StrVal
	}
	data.Owner.SetField(vm.Graph, "message", heap.FromObject(vm.Graph.NewString(msg).Obj))
	if !data.Owner.HasOwnField("type") {
		data.Owner.SetField(vm.Graph, "type", heap.FromObject(vm.Graph.NewString("ArgumentError").Obj))
	}
	return heap.None, nil
}

func errorMessage(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	return data.Owner.GetField("message"), nil
}

func errorType(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	return data.Owner.GetField("type"), nil
}
