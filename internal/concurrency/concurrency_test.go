package concurrency

import (
	"testing"
	"time"

	"jlvm/internal/engine"
	"jlvm/internal/heap"
)

func newTestVM() *engine.VM {
	graph := heap.NewGraph(heap.SequentialIDs, heap.DefaultGCThreshold)
	return engine.New(graph, nil)
}

func newExternalData(vm *engine.VM) *heap.ExternalData {
	obj := vm.Graph.NewNode(heap.KindPlain).Obj
	return heap.NewExternalData(obj)
}

func TestMutexAcquireRelease(t *testing.T) {
	vm := newTestVM()
	data := newExternalData(vm)
	if _, err := mutexConstructor(vm, nil, data, heap.None); err != nil {
		t.Fatalf("constructor error: %v", err)
	}
	if _, err := mutexAcquire(vm, nil, data, heap.None); err != nil {
		t.Fatalf("acquire error: %v", err)
	}
	if _, err := mutexRelease(vm, nil, data, heap.None); err != nil {
		t.Fatalf("release error: %v", err)
	}
}

func TestMutexReleaseWithoutAcquireErrors(t *testing.T) {
	vm := newTestVM()
	data := newExternalData(vm)
	if _, err := mutexConstructor(vm, nil, data, heap.None); err != nil {
		t.Fatalf("constructor error: %v", err)
	}
	if _, err := mutexRelease(vm, nil, data, heap.None); err == nil {
		t.Error("release without acquire should error")
	}
}

func TestMutexAcquireTimesOutWhileHeld(t *testing.T) {
	vm := newTestVM()
	data := newExternalData(vm)
	mutexConstructor(vm, nil, data, heap.None)
	if _, err := mutexAcquire(vm, nil, data, heap.None); err != nil {
		t.Fatalf("first acquire error: %v", err)
	}

	_, err := mutexAcquire(vm, nil, data, heap.Int(20))
	if err == nil {
		t.Fatal("second acquire on an already-held Mutex with a timeout should error")
	}
}

func TestSemaphoreRespectsCapacity(t *testing.T) {
	vm := newTestVM()
	data := newExternalData(vm)
	if _, err := semConstructor(vm, nil, data, heap.Int(1)); err != nil {
		t.Fatalf("constructor error: %v", err)
	}
	if _, err := semAcquire(vm, nil, data, heap.None); err != nil {
		t.Fatalf("first acquire error: %v", err)
	}
	if _, err := semAcquire(vm, nil, data, heap.Int(20)); err == nil {
		t.Error("acquiring a full Semaphore with a short timeout should time out")
	}
	if _, err := semRelease(vm, nil, data, heap.None); err != nil {
		t.Fatalf("release error: %v", err)
	}
	if _, err := semAcquire(vm, nil, data, heap.Int(20)); err != nil {
		t.Errorf("acquire after release should succeed, got %v", err)
	}
}

func TestSemaphoreConstructorRejectsNonPositiveCapacity(t *testing.T) {
	vm := newTestVM()
	data := newExternalData(vm)
	if _, err := semConstructor(vm, nil, data, heap.Int(0)); err == nil {
		t.Error("Semaphore(0) should be rejected")
	}
}

func TestRwLockAllowsConcurrentReadersExcludesWriter(t *testing.T) {
	vm := newTestVM()
	data := newExternalData(vm)
	rwlockConstructor(vm, nil, data, heap.None)

	if _, err := rwlockAcquireRead(vm, nil, data, heap.None); err != nil {
		t.Fatalf("first read acquire error: %v", err)
	}
	if _, err := rwlockAcquireRead(vm, nil, data, heap.None); err != nil {
		t.Fatalf("second concurrent read acquire error: %v", err)
	}

	if _, err := rwlockAcquireWrite(vm, nil, data, heap.Int(20)); err == nil {
		t.Error("write acquire should block and time out while readers hold the lock")
	}

	rwlockReleaseRead(vm, nil, data, heap.None)
	rwlockReleaseRead(vm, nil, data, heap.None)

	if _, err := rwlockAcquireWrite(vm, nil, data, heap.Int(50)); err != nil {
		t.Errorf("write acquire should succeed once readers release, got %v", err)
	}
}

func TestNextThreadIDIsMonotonic(t *testing.T) {
	a := nextThreadID()
	b := nextThreadID()
	if b <= a {
		t.Errorf("nextThreadID() not monotonic: %d then %d", a, b)
	}
}

func TestSleepFnBlocksForDuration(t *testing.T) {
	vm := newTestVM()
	start := time.Now()
	if _, err := sleepFn(vm, nil, nil, heap.Int(30)); err != nil {
		t.Fatalf("sleep error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("sleep(30) returned after only %v", elapsed)
	}
}

func TestSleepFnRejectsNonInt(t *testing.T) {
	vm := newTestVM()
	if _, err := sleepFn(vm, nil, nil, heap.Float(1.5)); err == nil {
		t.Error("sleep() with a non-Int argument should error")
	}
}

func TestNumCPUsFnReturnsPositive(t *testing.T) {
	vm := newTestVM()
	result, err := numCPUsFn(vm, nil, nil, heap.None)
	if err != nil {
		t.Fatalf("num_cpus() error: %v", err)
	}
	if !result.IsValue() || result.Val.Kind != heap.KInt || result.Val.I < 1 {
		t.Errorf("num_cpus() = %v, want a positive Int64", result)
	}
}

func TestThreadStartGetRoundTrips(t *testing.T) {
	vm := newTestVM()
	data := newExternalData(vm)

	fn := vm.NewExternalFnCell(func(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
		if !arg.IsValue() || arg.Val.Kind != heap.KInt {
			return heap.None, nil
		}
		return heap.Int(arg.Val.I * 2), nil
	})

	if _, err := threadConstructor(vm, nil, data, heap.FromObject(fn.Obj)); err != nil {
		t.Fatalf("Thread constructor error: %v", err)
	}
	constructed := data.State["s"].(*threadState)
	constructed.arg = heap.Int(21)

	if _, err := threadStart(vm, nil, data, heap.None); err != nil {
		t.Fatalf("Thread.start error: %v", err)
	}
	if _, err := threadStart(vm, nil, data, heap.None); err == nil {
		t.Error("starting an already-started Thread should error")
	}

	result, err := threadGet(vm, nil, data, heap.Int(1000))
	if err != nil {
		t.Fatalf("Thread.get error: %v", err)
	}
	if !result.IsValue() || result.Val.I != 42 {
		t.Errorf("Thread.get() = %v, want Int(42)", result)
	}
}
