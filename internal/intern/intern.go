// Package intern implements the load-time string/identifier table
// described in spec.md §5: "The interned-string table is mutated
// during program load only; reads are lock-free after."
package intern

import (
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
)

// Table deduplicates identifier and string-literal text encountered
// while a module is being loaded. Once loading finishes, callers are
// expected to stop calling Intern and only read via Lookup/String,
// which take no lock at all.
type Table struct {
	mu      sync.Mutex // held only during Intern (load phase)
	sealed  atomic.Bool
	byHash  map[[16]byte]int32
	strings []string
}

func New() *Table {
	return &Table{
		byHash:  make(map[[16]byte]int32),
		strings: make([]string, 0, 64),
	}
}

func hashOf(s string) [16]byte {
	sum := blake2b.Sum256([]byte(s))
	var h [16]byte
	copy(h[:], sum[:16])
	return h
}

// Intern returns the pool index for s, adding it if this is the first
// occurrence. Safe to call concurrently during load; panics if called
// after Seal.
func (t *Table) Intern(s string) int32 {
	if t.sealed.Load() {
		panic("intern: Intern called after Seal")
	}
	h := hashOf(s)
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx, ok := t.byHash[h]; ok {
		return idx
	}
	idx := int32(len(t.strings))
	t.strings = append(t.strings, s)
	t.byHash[h] = idx
	return idx
}

// Seal marks the table read-only; subsequent String/Lookup calls need
// no synchronization, matching the "lock-free after load" contract.
func (t *Table) Seal() {
	t.sealed.Store(true)
}

// String returns the interned text for idx. idx must have come from a
// prior Intern call on this table.
func (t *Table) String(idx int32) string {
	return t.strings[idx]
}

// Lookup returns the pool index for s if it was interned, or false.
func (t *Table) Lookup(s string) (int32, bool) {
	h := hashOf(s)
	if t.sealed.Load() {
		idx, ok := t.byHash[h]
		return idx, ok
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.byHash[h]
	return idx, ok
}

// Len returns the number of interned strings.
func (t *Table) Len() int { return len(t.strings) }

// All returns a copy of the interned string slice, e.g. for
// serializing a module's constant pool.
func (t *Table) All() []string {
	out := make([]string, len(t.strings))
	copy(out, t.strings)
	return out
}
