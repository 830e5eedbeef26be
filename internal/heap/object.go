package heap

import (
	"fmt"

	"jlvm/internal/module"
	"jlvm/internal/vmerrors"
)

// Kind is an Object's immutable variant tag (spec.md §3).
type Kind byte

const (
	KindPlain Kind = iota
	KindArray
	KindTuple
	KindModule
	KindExternalFnCell
	KindExternalDataCell
	// KindString carries a raw interned string payload. spec.md §1
	// scopes the *String class* (concat/slice/etc. methods) out of
	// core as a stdlib external class, but the compiled-module wire
	// format (§6) undeniably includes "interned string" as a literal
	// payload kind, so core needs some representation for it; a bare
	// Go string field is the minimal one, with the String class (in
	// internal/stdlib) built as methods layered on top.
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "Plain"
	case KindArray:
		return "Array"
	case KindTuple:
		return "Tuple"
	case KindModule:
		return "Module"
	case KindExternalFnCell:
		return "ExternalFnCell"
	case KindExternalDataCell:
		return "ExternalDataCell"
	case KindString:
		return "String"
	default:
		return "UnknownKind"
	}
}

// ExternalData is the per-instance host-state record an external
// class attaches to its instances (spec.md §4.8): a name→opaque
// mapping populated by the constructor and consulted by every
// external method, e.g. {"handle": *os.File} for a File instance.
type ExternalData struct {
	Owner *Object
	State map[string]interface{}
}

func NewExternalData(owner *Object) *ExternalData {
	return &ExternalData{Owner: owner, State: make(map[string]interface{})}
}

// NativeFunc is the signature engine.ExternalFunction values are
// stored as (via Object.Native, type-asserted by the engine on call).
// Kept out of this package's own declarations to avoid heap importing
// the engine package that constructs Threads/VMs.
type NativeFunc interface{}

// Object is the heap record described in spec.md §3: a kind, the
// fixed-slot ltable, a general fields map, ordered parent classes, an
// optional variant payload, and the is_external/is_const flags. Field
// mutation only ever happens through SetField, which is also
// responsible for keeping the owning Node's edges consistent — this
// is "the only sanctioned way to mutate an Object's field" (§4.2).
type Object struct {
	Kind Kind
	Node *Node // back-pointer to the owning graph Node

	lt     LTable
	Fields map[string]Element

	ParentClasses []*Object

	IsExternal bool
	IsConst    bool

	// Variant payload, exactly one valid per Kind.
	ArrayElems []Element     // KindArray
	TupleElems []Element     // KindTuple (fixed length once constructed)
	Module     *module.Module // KindModule
	Native     NativeFunc    // KindExternalFnCell
	External   *ExternalData // KindExternalDataCell
	StrVal     string        // KindString
}

func newObject(kind Kind) *Object {
	return &Object{
		Kind:   kind,
		Fields: make(map[string]Element),
	}
}

// Get reads a CommonKey through the ltable fast path (spec.md §4.2).
func (o *Object) Get(key CommonKey) Element {
	return o.lt[key]
}

// GetField reads by name: CommonKeys go through ltable, everything
// else falls back to the general fields map.
func (o *Object) GetField(name string) Element {
	if key, ok := LookupCommonKey(name); ok {
		return o.lt[key]
	}
	if v, ok := o.Fields[name]; ok {
		return v
	}
	return None
}

// HasOwnField reports whether name is set directly on this object
// (not inherited), used by DeepLookup and by vm_lookup's "nearest
// enclosing block that already defines name" search.
func (o *Object) HasOwnField(name string) bool {
	if key, ok := LookupCommonKey(name); ok {
		return !o.lt[key].IsNone()
	}
	_, ok := o.Fields[name]
	return ok
}

// SetField is the sole sanctioned mutator (spec.md §4.2): if the
// previous value at name was an Object reference, its outgoing edge
// is decremented; if the new value is an Object reference, an edge is
// incremented; then both fields and (if applicable) ltable are
// updated so they stay coherent (spec.md §3 invariant).
func (o *Object) SetField(g *MemoryGraph, name string, val Element) {
	prev := o.GetField(name)
	if prev.IsObject() && g != nil && o.Node != nil {
		g.DecEdge(o.Node, prev.Obj.Node)
	}
	if val.IsObject() && g != nil && o.Node != nil {
		g.IncEdge(o.Node, val.Obj.Node)
	}

	if key, ok := LookupCommonKey(name); ok {
		o.lt[key] = val
	}
	o.Fields[name] = val
}

// DeepLookup performs obj_deep_lookup: check the object's own fields,
// then breadth-first across ParentClasses (spec.md §4.2).
func (o *Object) DeepLookup(name string) (Element, bool) {
	if o.HasOwnField(name) {
		return o.GetField(name), true
	}
	queue := append([]*Object{}, o.ParentClasses...)
	seen := map[*Object]bool{o: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == nil || seen[cur] {
			continue
		}
		seen[cur] = true
		if cur.HasOwnField(name) {
			return cur.GetField(name), true
		}
		queue = append(queue, cur.ParentClasses...)
	}
	return None, false
}

// InheritsFrom implements spec.md §3: true iff p == c or any ancestor
// of c via ParentClasses transitively equals p.
func InheritsFrom(c, p *Object) bool {
	if c == nil || p == nil {
		return false
	}
	if c == p {
		return true
	}
	queue := append([]*Object{}, c.ParentClasses...)
	seen := map[*Object]bool{c: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == nil || seen[cur] {
			continue
		}
		if cur == p {
			return true
		}
		seen[cur] = true
		queue = append(queue, cur.ParentClasses...)
	}
	return false
}

// SetParentClasses installs parents on a class object, rejecting
// cycles as spec.md §8 property 3 requires (mirroring the original's
// class_parents_action walk).
func (o *Object) SetParentClasses(parents []*Object) error {
	for _, p := range parents {
		if p == o || reachableFrom(p, o) {
			return vmerrors.New(vmerrors.InternalError, "cycle detected in parent_classes for class")
		}
	}
	o.ParentClasses = parents
	return nil
}

// reachableFrom reports whether target is reachable from start by
// walking ParentClasses (used to detect the cycle start->...->target
// before it is installed).
func reachableFrom(start, target *Object) bool {
	if start == target {
		return true
	}
	queue := append([]*Object{}, start.ParentClasses...)
	seen := map[*Object]bool{start: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == nil || seen[cur] {
			continue
		}
		if cur == target {
			return true
		}
		seen[cur] = true
		queue = append(queue, cur.ParentClasses...)
	}
	return false
}

func (o *Object) describe() string {
	if o == nil {
		return "<nil object>"
	}
	id := "?"
	if o.Node != nil {
		id = fmt.Sprintf("%d", o.Node.ID)
	}
	return fmt.Sprintf("<%s#%s>", o.Kind, id)
}
