package heap

// ElementKind tags which variant of the universal Element union is
// live (spec.md §3: None | Value | Object).
type ElementKind byte

const (
	EKNone ElementKind = iota
	EKValue
	EKObject
)

// Element is the universal value type threaded through the engine:
// the None singleton, a primitive Value, or an owning reference to a
// heap Object.
type Element struct {
	Kind ElementKind
	Val  Value
	Obj  *Object
}

// None is the null/nil singleton element.
var None = Element{Kind: EKNone}

func FromValue(v Value) Element { return Element{Kind: EKValue, Val: v} }
func FromObject(o *Object) Element {
	if o == nil {
		return None
	}
	return Element{Kind: EKObject, Obj: o}
}

func Int(v int64) Element   { return FromValue(IntValue(v)) }
func Float(v float64) Element { return FromValue(FloatValue(v)) }
func Char(v int8) Element   { return FromValue(CharValue(v)) }

func (e Element) IsNone() bool   { return e.Kind == EKNone }
func (e Element) IsValue() bool  { return e.Kind == EKValue }
func (e Element) IsObject() bool { return e.Kind == EKObject }

// Truthy implements spec.md §4.1: None and integer 0 are false; every
// other Value and every Object reference is true.
func (e Element) Truthy() bool {
	switch e.Kind {
	case EKNone:
		return false
	case EKValue:
		return e.Val.Truthy()
	default:
		return true
	}
}

// Equal compares two Elements: Object references compare by Node
// identity, Values compare by tag+payload with numeric promotion, and
// an Element of one kind never equals one of another kind (None only
// equals None).
func Equal(a, b Element) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case EKNone:
		return true
	case EKValue:
		return ValueEqual(a.Val, b.Val)
	case EKObject:
		if a.Obj == nil || b.Obj == nil {
			return a.Obj == b.Obj
		}
		if a.Obj.Node == nil || b.Obj.Node == nil {
			return a.Obj == b.Obj
		}
		return a.Obj.Node.ID == b.Obj.Node.ID
	}
	return false
}

func (e Element) String() string {
	switch e.Kind {
	case EKNone:
		return "None"
	case EKValue:
		return e.Val.String()
	default:
		return e.Obj.describe()
	}
}
