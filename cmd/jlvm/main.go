// cmd/jlvm/main.go
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"jlvm/internal/concurrency"
	"jlvm/internal/dbext"
	"jlvm/internal/engine"
	"jlvm/internal/heap"
	"jlvm/internal/module"
	"jlvm/internal/netext"
	"jlvm/internal/stdlib"
)

const version = "0.1.0"

// Build variables, set during build with ldflags.
var (
	buildDate = time.Now().Format("2006-01-02")
	gitCommit = "unknown"
)

// standardModules are the modules spec.md §6 says must resolve at
// startup -- "missing any is fatal" -- before the target module ever
// runs a single instruction.
var standardModules = []string{"builtin", "io", "struct", "error"}

func main() {
	debug := flag.Bool("debug", false, "trace each instruction to stderr")
	modPath := flag.String("path", "", "extra colon-separated module search path (also honors JL_MODULE_PATH)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("jlvm %s (%s, %s)\n", version, gitCommit, buildDate)
		return
	}

	args := flag.Args()
	if len(args) != 1 {
		usage()
		os.Exit(2)
	}

	if err := run(args[0], *modPath, *debug); err != nil {
		log.Fatalf("jlvm: %v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: jlvm [-debug] [-path dir1:dir2] <module>.jb\n")
	flag.PrintDefaults()
}

func run(target, extraPath string, debug bool) error {
	loader := module.NewLoader()
	if extraPath != "" {
		for _, p := range strings.Split(extraPath, ":") {
			if p != "" {
				loader.AddSearchPath(p)
			}
		}
	}

	graph := heap.NewGraph(heap.SequentialIDs, heap.DefaultGCThreshold)
	vm := engine.New(graph, loader)

	stdlib.Register(vm)
	concurrency.Register(vm)
	dbext.Register(vm)
	netext.Register(vm)

	for _, name := range standardModules {
		if _, err := vm.ResolveModule(name); err != nil {
			return fmt.Errorf("required standard module %q unavailable: %w", name, err)
		}
	}

	if debug {
		vm.Debug = traceHook{}
	}

	return vm.RunMain(moduleName(target))
}

// moduleName strips a ".jb" suffix and any directory component so a
// path given on the command line ("./examples/fib.jb") resolves the
// same way an import of "fib" would (internal/module/loader.go's
// findModuleFile already searches the configured path for the bare
// name).
func moduleName(target string) string {
	name := target
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, ".jb")
	return name
}
