package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"jlvm/internal/bytecode"
	"jlvm/internal/engine"
)

// traceHook is the -debug flag's engine.DebugHook: print each
// instruction, call, return, and error to stderr as it happens, in
// the teacher's debugger.go style of a bare line-oriented trace rather
// than an interactive stepper (SPEC_FULL.md §B scopes an interactive
// debugger out, but the hook point itself is ambient).
type traceHook struct{}

func (traceHook) OnInstruction(vm *engine.VM, th *engine.Thread, ins bytecode.Instruction) bool {
	fmt.Fprintf(os.Stderr, "[thread %d] %s\n", th.ID, ins)
	return true
}

func (traceHook) OnCall(vm *engine.VM, th *engine.Thread, target string) {
	fmt.Fprintf(os.Stderr, "[thread %d] call %s\n", th.ID, target)
}

func (traceHook) OnReturn(vm *engine.VM, th *engine.Thread) {
	fmt.Fprintf(os.Stderr, "[thread %d] return\n", th.ID)
}

func (traceHook) OnError(vm *engine.VM, th *engine.Thread, err error) {
	fmt.Fprintf(os.Stderr, "[thread %d] error: %v\n", th.ID, err)
	fmt.Fprintf(os.Stderr, "[thread %d] heap: %s nodes, %s edges, last reclaim freed %s\n",
		th.ID,
		humanize.Comma(int64(vm.Graph.NodeCount())),
		humanize.Comma(int64(vm.Graph.EdgeCount())),
		humanize.Comma(int64(vm.Graph.LastReclaimed())))
}
