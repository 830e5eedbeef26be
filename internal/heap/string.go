package heap

import "jlvm/internal/vmerrors"

// NewString allocates a KindString Object carrying s. The "length"
// CommonKey is populated immediately so reads never need to special
// case the variant payload (spec.md §4.2: ltable/fields coherence).
func (g *MemoryGraph) NewString(s string) *Node {
	n := g.NewNode(KindString)
	n.Obj.StrVal = s
	n.Obj.SetField(g, "length", Int(int64(len(s))))
	return n
}

func requireString(o *Object) bool { return o != nil && o.Kind == KindString }

// StringConcat implements spec.md §4.1's String `+`: concatenation,
// checked on both sides (§8's associativity/length-additivity laws).
func (g *MemoryGraph) StringConcat(a, b *Node) (*Node, error) {
	if !requireString(a.Obj) || !requireString(b.Obj) {
		return nil, vmerrors.New(vmerrors.TypeError, "+ requires both operands to be String")
	}
	return g.NewString(a.Obj.StrVal + b.Obj.StrVal), nil
}

func StringEqual(a, b *Object) bool {
	return requireString(a) && requireString(b) && a.StrVal == b.StrVal
}
