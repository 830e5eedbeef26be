package stdlib

import (
	"bufio"
	"io"
	"os"
	"sync"

	"jlvm/internal/engine"
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// buildIO installs the File external class (spec.md §6's "io" module),
// grounded directly on original_source/JL/external/file.c's
// file_constructor/file_gets/file_puts/file_getline/file_getall/
// file_rewind/file_deconstructor. "__STDOUT__"/"__STDIN__"/"__STDERR__"
// are the magic filenames the original recognizes instead of opening a
// real path.
func buildIO(vm *engine.VM) *heap.Node {
	modNode := vm.Graph.CreateRoot(heap.KindModule)
	vm.NewExternalClass(modNode, "File", map[string]engine.ExternalFunction{
		"constructor":  fileConstructor,
		"deconstructor": fileClose,
		"gets":         fileGets,
		"puts":         filePuts,
		"getline":      fileGetline,
		"getall":       fileGetall,
		"rewind":       fileRewind,
		"close":        fileClose,
	})
	return modNode
}

// fileState holds the real host resource a File instance wraps: the
// open handle, a buffered reader for line-oriented reads, and a mutex
// serializing concurrent puts the way file.c's per-file mutex does.
type fileState struct {
	f      *os.File
	r      *bufio.Reader
	mu     sync.Mutex
	stdLike bool
}

func fileConstructor(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	var name, mode string
	switch {
	case arg.IsObject() && arg.Obj.Kind == heap.KindString:
		name, mode = arg.Obj.StrVal, "r"
	case arg.IsObject() && arg.Obj.Kind == heap.KindTuple:
		elems := arg.Obj.TupleElems
		if len(elems) < 2 || !elems[0].IsObject() || elems[0].Obj.Kind != heap.KindString ||
			!elems[1].IsObject() || elems[1].Obj.Kind != heap.KindString {
			return heap.None, vmerrors.New(vmerrors.ArgumentError, "File(name, mode) requires two Strings")
		}
		name, mode = elems[0].Obj.StrVal, elems[1].Obj.StrVal
	default:
		return heap.None, vmerrors.New(vmerrors.TypeError, "File requires a String path or (path, mode) tuple")
	}

	st := &fileState{}
	switch name {
	case "__STDOUT__":
		st.f, st.stdLike = os.Stdout, true
	case "__STDIN__":
		st.f, st.stdLike = os.Stdin, true
		st.r = bufio.NewReader(st.f)
	case "__STDERR__":
		st.f, st.stdLike = os.Stderr, true
	default:
		f, err := openWithMode(name, mode)
		if err != nil {
			data.Owner.SetField(vm.Graph, "success", heap.None)
			return heap.FromObject(data.Owner), nil
		}
		st.f = f
		st.r = bufio.NewReader(f)
	}
	data.State["s"] = st
	data.Owner.SetField(vm.Graph, "success", heap.Int(1))
	return heap.FromObject(data.Owner), nil
}

func openWithMode(name, mode string) (*os.File, error) {
	switch mode {
	case "r":
		return os.Open(name)
	case "w":
		return os.Create(name)
	case "a":
		return os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	default:
		return os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	}
}

func fileStateOf(data *heap.ExternalData) (*fileState, error) {
	if data == nil {
		return nil, vmerrors.New(vmerrors.InternalError, "File method called without a constructed instance")
	}
	v, ok := data.State["s"]
	if !ok {
		return nil, vmerrors.New(vmerrors.IOError, "File was never successfully opened")
	}
	return v.(*fileState), nil
}

// fileGets reads exactly n bytes, file.c's fgets(buf, n+1, file).
func fileGets(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := fileStateOf(data)
	if err != nil {
		return heap.None, err
	}
	if !arg.IsValue() || arg.Val.Kind != heap.KInt {
		return heap.None, vmerrors.New(vmerrors.TypeError, "File.gets(n) requires an Int64")
	}
	buf := make([]byte, arg.Val.I)
	n, readErr := io.ReadFull(st.r, buf)
	if n == 0 && readErr != nil {
		return heap.None, nil
	}
	return heap.FromObject(vm.Graph.NewString(string(buf[:n])).Obj), nil
}

func filePuts(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := fileStateOf(data)
	if err != nil {
		return heap.None, err
	}
	if !arg.IsObject() || arg.Obj.Kind != heap.KindString {
		return heap.None, nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.f.WriteString(arg.Obj.StrVal); err != nil {
		return heap.None, vmerrors.New(vmerrors.IOError, "File.puts failed: %v", err)
	}
	return heap.None, nil
}

func fileGetline(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := fileStateOf(data)
	if err != nil {
		return heap.None, err
	}
	line, readErr := st.r.ReadString('\n')
	if len(line) == 0 && readErr != nil {
		return heap.None, nil
	}
	return heap.FromObject(vm.Graph.NewString(line).Obj), nil
}

func fileGetall(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := fileStateOf(data)
	if err != nil {
		return heap.None, err
	}
	all, readErr := io.ReadAll(st.r)
	if readErr != nil && len(all) == 0 {
		return heap.None, vmerrors.New(vmerrors.IOError, "File.getall failed: %v", readErr)
	}
	return heap.FromObject(vm.Graph.NewString(string(all)).Obj), nil
}

func fileRewind(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := fileStateOf(data)
	if err != nil {
		return heap.None, err
	}
	if st.stdLike {
		return heap.None, nil
	}
	if _, err := st.f.Seek(0, io.SeekStart); err != nil {
		return heap.None, vmerrors.New(vmerrors.IOError, "File.rewind failed: %v", err)
	}
	st.r.Reset(st.f)
	return heap.None, nil
}

// fileClose backs both the explicit close method and the deconstructor
// the engine invokes when a File instance is reclaimed (spec.md §4.8).
// Standard streams are never actually closed, matching file_deconstructor's
// stdin/stdout/stderr guard.
func fileClose(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	st, err := fileStateOf(data)
	if err != nil {
		return heap.None, nil
	}
	if !st.stdLike {
		st.f.Close()
	}
	return heap.None, nil
}
