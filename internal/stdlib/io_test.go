package stdlib

import (
	"os"
	"path/filepath"
	"testing"

	"jlvm/internal/heap"
)

func newFileExternalData(graph *heap.MemoryGraph) *heap.ExternalData {
	obj := graph.NewNode(heap.KindPlain).Obj
	return heap.NewExternalData(obj)
}

func TestFileWriteReadRoundTrip(t *testing.T) {
	vm := newTestVM()
	path := filepath.Join(t.TempDir(), "greeting.txt")

	wdata := newFileExternalData(vm.Graph)
	pathTuple := heap.FromObject(vm.Graph.NewTuple([]heap.Element{
		heap.FromObject(vm.Graph.NewString(path).Obj),
		heap.FromObject(vm.Graph.NewString("w").Obj),
	}).Obj)
	if _, err := fileConstructor(vm, nil, wdata, pathTuple); err != nil {
		t.Fatalf("File(w) constructor error: %v", err)
	}
	if _, err := filePuts(vm, nil, wdata, heap.FromObject(vm.Graph.NewString("hello\nworld\n").Obj)); err != nil {
		t.Fatalf("puts error: %v", err)
	}
	if _, err := fileClose(vm, nil, wdata, heap.None); err != nil {
		t.Fatalf("close error: %v", err)
	}

	rdata := newFileExternalData(vm.Graph)
	if _, err := fileConstructor(vm, nil, rdata, heap.FromObject(vm.Graph.NewString(path).Obj)); err != nil {
		t.Fatalf("File(r) constructor error: %v", err)
	}
	success := rdata.Owner.GetField("success")
	if !success.IsValue() || success.Val.I != 1 {
		t.Fatalf("File open success field = %v, want Int(1)", success)
	}

	line, err := fileGetline(vm, nil, rdata, heap.None)
	if err != nil {
		t.Fatalf("getline error: %v", err)
	}
	if line.Obj.StrVal != "hello\n" {
		t.Errorf("getline() = %q, want %q", line.Obj.StrVal, "hello\n")
	}

	if _, err := fileRewind(vm, nil, rdata, heap.None); err != nil {
		t.Fatalf("rewind error: %v", err)
	}
	all, err := fileGetall(vm, nil, rdata, heap.None)
	if err != nil {
		t.Fatalf("getall error: %v", err)
	}
	if all.Obj.StrVal != "hello\nworld\n" {
		t.Errorf("getall() = %q, want %q", all.Obj.StrVal, "hello\nworld\n")
	}
	fileClose(vm, nil, rdata, heap.None)
}

func TestFileConstructorMissingFileSetsFailure(t *testing.T) {
	vm := newTestVM()
	data := newFileExternalData(vm.Graph)
	missing := filepath.Join(t.TempDir(), "does-not-exist.txt")

	result, err := fileConstructor(vm, nil, data, heap.FromObject(vm.Graph.NewString(missing).Obj))
	if err != nil {
		t.Fatalf("constructor should not hard-error on a missing file, got %v", err)
	}
	success := result.Obj.GetField("success")
	if !success.IsNone() {
		t.Errorf("success field = %v, want None for a failed open", success)
	}
}

func TestFileStdoutIsNeverClosed(t *testing.T) {
	vm := newTestVM()
	data := newFileExternalData(vm.Graph)
	if _, err := fileConstructor(vm, nil, data, heap.FromObject(vm.Graph.NewString("__STDOUT__").Obj)); err != nil {
		t.Fatalf("constructor error: %v", err)
	}
	if _, err := fileClose(vm, nil, data, heap.None); err != nil {
		t.Fatalf("close error: %v", err)
	}
	if _, err := os.Stdout.Stat(); err != nil {
		t.Errorf("os.Stdout should remain usable after File(__STDOUT__).close(): %v", err)
	}
}

func TestFileGetsReadsExactLength(t *testing.T) {
	vm := newTestVM()
	path := filepath.Join(t.TempDir(), "abc.txt")
	if err := os.WriteFile(path, []byte("abcdef"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	data := newFileExternalData(vm.Graph)
	if _, err := fileConstructor(vm, nil, data, heap.FromObject(vm.Graph.NewString(path).Obj)); err != nil {
		t.Fatalf("constructor error: %v", err)
	}
	got, err := fileGets(vm, nil, data, heap.Int(3))
	if err != nil {
		t.Fatalf("gets error: %v", err)
	}
	if got.Obj.StrVal != "abc" {
		t.Errorf("gets(3) = %q, want %q", got.Obj.StrVal, "abc")
	}
}
