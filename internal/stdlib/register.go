// Package stdlib implements the four standard modules spec.md §6 says
// the core must find at startup -- "builtin", "io", "struct", "error",
// missing any is fatal -- as native modules in the shape
// original_source/JL/external/external.c wires them (add_builtin_external,
// add_io_external, one ExternalFunction per top-level name) rather than
// as compiled .jb files.
package stdlib

import "jlvm/internal/engine"

// Register installs all four standard modules on vm. A caller (cmd/jlvm)
// is expected to probe each name with vm.ResolveModule immediately
// after, and fail startup if any lookup errors -- this package only
// makes them resolvable, the fatal-if-missing check lives at the edge.
func Register(vm *engine.VM) {
	vm.RegisterNativeModule("builtin", buildBuiltin)
	vm.RegisterNativeModule("io", buildIO)
	vm.RegisterNativeModule("struct", buildStruct)
	vm.RegisterNativeModule("error", buildError)
}
