package heap

// CommonKey enumerates the closed set of well-known field names that
// get an O(1) LTable slot instead of a map lookup (spec.md §3/§4.2).
type CommonKey int

const (
	KeyClass CommonKey = iota
	KeyParent
	KeySelf
	KeyIP
	KeyModule
	KeyResval
	KeyLength
	KeyConstructor
	KeyDeconstructor
	KeyCaller
	KeyParentBlock
	KeyTryGoto
	KeyError
	KeyStackSize
	KeyInitialized
	KeyCurrentBlock
	KeyStack
	KeySavedBlocks
	keyCount // sentinel; size of the LTable array
)

var commonKeyNames = [...]string{
	KeyClass:        "class",
	KeyParent:       "parent",
	KeySelf:         "self",
	KeyIP:           "$ip",
	KeyModule:       "$module",
	KeyResval:       "$resval",
	KeyLength:       "length",
	KeyConstructor:  "constructor",
	KeyDeconstructor: "deconstructor",
	KeyCaller:       "$caller",
	KeyParentBlock:  "$parent",
	KeyTryGoto:      "$try_goto",
	KeyError:        "$error",
	KeyStackSize:    "$stack_size",
	KeyInitialized:  "$initialized",
	KeyCurrentBlock: "$current",
	KeyStack:        "$stack",
	KeySavedBlocks:  "$saved",
}

var nameToCommonKey map[string]CommonKey

func init() {
	nameToCommonKey = make(map[string]CommonKey, len(commonKeyNames))
	for k, name := range commonKeyNames {
		if name != "" {
			nameToCommonKey[name] = CommonKey(k)
		}
	}
}

// LookupCommonKey reports whether name is one of the fixed CommonKeys,
// and if so which slot it occupies.
func LookupCommonKey(name string) (CommonKey, bool) {
	k, ok := nameToCommonKey[name]
	return k, ok
}

func (k CommonKey) String() string {
	if int(k) >= 0 && int(k) < len(commonKeyNames) {
		return commonKeyNames[k]
	}
	return "<unknown key>"
}

// LTable is the fixed-slot fast path described in spec.md §4.2:
// reading/writing a CommonKey never touches the general fields map.
type LTable [keyCount]Element
