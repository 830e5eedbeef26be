package bytecode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Magic identifies a compiled JL bytecode file. Version gates the
// layout below; bumping it is a breaking change to the wire format,
// which spec.md §6 calls "the hard compatibility contract".
const (
	Magic   uint32 = 0x4A4C4256 // "JLBV"
	Version uint16 = 1
)

// File mirrors the on-disk layout of spec.md §6: header, string pool,
// instruction list, reference table, class table. It is the
// serialization-only counterpart of module.Module; the module package
// converts between the two so that bytecode stays free of any
// dependency on class/ref semantics.
type File struct {
	Name         string
	Strings      []string // interned identifier/string constant pool
	Instructions []EncodedInstruction
	Refs         []RefEntry
	Classes      []ClassEntry
}

// EncodedInstruction stores payloads as pool indices rather than raw
// strings, matching the "string/identifier constant pool (interned on
// load)" contract.
type EncodedInstruction struct {
	Op       OpCode
	Param    ParamKind
	Lit      Literal
	PoolIdx  int32 // index into File.Strings, valid for IDParam/StrParam
	Row, Col uint16
}

type RefEntry struct {
	NameIdx int32
	IP      uint32
}

type MethodEntry struct {
	NameIdx int32
	IP      uint32
}

type ClassEntry struct {
	NameIdx       int32
	ParentIdxs    []int32
	Methods       []MethodEntry
}

// Write serializes f to w in the format described by spec.md §6.
func Write(w io.Writer, f *File) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, Magic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, Version); err != nil {
		return err
	}
	if err := writeString(bw, f.Name); err != nil {
		return err
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(f.Strings))); err != nil {
		return err
	}
	for _, s := range f.Strings {
		if err := writeString(bw, s); err != nil {
			return err
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(f.Instructions))); err != nil {
		return err
	}
	for _, ins := range f.Instructions {
		if err := writeInstruction(bw, ins); err != nil {
			return err
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(f.Refs))); err != nil {
		return err
	}
	for _, r := range f.Refs {
		if err := binary.Write(bw, binary.LittleEndian, r.NameIdx); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, r.IP); err != nil {
			return err
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(f.Classes))); err != nil {
		return err
	}
	for _, c := range f.Classes {
		if err := binary.Write(bw, binary.LittleEndian, c.NameIdx); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(c.ParentIdxs))); err != nil {
			return err
		}
		for _, p := range c.ParentIdxs {
			if err := binary.Write(bw, binary.LittleEndian, p); err != nil {
				return err
			}
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(c.Methods))); err != nil {
			return err
		}
		for _, m := range c.Methods {
			if err := binary.Write(bw, binary.LittleEndian, m.NameIdx); err != nil {
				return err
			}
			if err := binary.Write(bw, binary.LittleEndian, m.IP); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// Read deserializes a File previously produced by Write.
func Read(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)

	var magic uint32
	if err := binary.Read(br, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("not a JL bytecode file: bad magic %#x", magic)
	}
	var version uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported bytecode version %d (want %d)", version, Version)
	}

	f := &File{}
	var err error
	if f.Name, err = readString(br); err != nil {
		return nil, fmt.Errorf("read module name: %w", err)
	}

	var nstrings uint32
	if err := binary.Read(br, binary.LittleEndian, &nstrings); err != nil {
		return nil, fmt.Errorf("read string pool size: %w", err)
	}
	f.Strings = make([]string, nstrings)
	for i := range f.Strings {
		if f.Strings[i], err = readString(br); err != nil {
			return nil, fmt.Errorf("read string %d: %w", i, err)
		}
	}

	var nins uint32
	if err := binary.Read(br, binary.LittleEndian, &nins); err != nil {
		return nil, fmt.Errorf("read instruction count: %w", err)
	}
	f.Instructions = make([]EncodedInstruction, nins)
	for i := range f.Instructions {
		if f.Instructions[i], err = readInstruction(br); err != nil {
			return nil, fmt.Errorf("read instruction %d: %w", i, err)
		}
	}

	var nrefs uint32
	if err := binary.Read(br, binary.LittleEndian, &nrefs); err != nil {
		return nil, fmt.Errorf("read ref table size: %w", err)
	}
	f.Refs = make([]RefEntry, nrefs)
	for i := range f.Refs {
		if err := binary.Read(br, binary.LittleEndian, &f.Refs[i].NameIdx); err != nil {
			return nil, err
		}
		if err := binary.Read(br, binary.LittleEndian, &f.Refs[i].IP); err != nil {
			return nil, err
		}
	}

	var nclasses uint32
	if err := binary.Read(br, binary.LittleEndian, &nclasses); err != nil {
		return nil, fmt.Errorf("read class table size: %w", err)
	}
	f.Classes = make([]ClassEntry, nclasses)
	for i := range f.Classes {
		c := &f.Classes[i]
		if err := binary.Read(br, binary.LittleEndian, &c.NameIdx); err != nil {
			return nil, err
		}
		var nparents uint32
		if err := binary.Read(br, binary.LittleEndian, &nparents); err != nil {
			return nil, err
		}
		c.ParentIdxs = make([]int32, nparents)
		for j := range c.ParentIdxs {
			if err := binary.Read(br, binary.LittleEndian, &c.ParentIdxs[j]); err != nil {
				return nil, err
			}
		}
		var nmethods uint32
		if err := binary.Read(br, binary.LittleEndian, &nmethods); err != nil {
			return nil, err
		}
		c.Methods = make([]MethodEntry, nmethods)
		for j := range c.Methods {
			if err := binary.Read(br, binary.LittleEndian, &c.Methods[j].NameIdx); err != nil {
				return nil, err
			}
			if err := binary.Read(br, binary.LittleEndian, &c.Methods[j].IP); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeInstruction(w io.Writer, ins EncodedInstruction) error {
	if err := binary.Write(w, binary.LittleEndian, ins.Op); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, ins.Param); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, ins.Row); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, ins.Col); err != nil {
		return err
	}
	switch ins.Param {
	case ValParam:
		if err := binary.Write(w, binary.LittleEndian, ins.Lit.Kind); err != nil {
			return err
		}
		switch ins.Lit.Kind {
		case LitInt:
			return binary.Write(w, binary.LittleEndian, ins.Lit.I)
		case LitFloat:
			return binary.Write(w, binary.LittleEndian, ins.Lit.F)
		default:
			return binary.Write(w, binary.LittleEndian, ins.Lit.C)
		}
	case IDParam, StrParam:
		return binary.Write(w, binary.LittleEndian, ins.PoolIdx)
	default:
		return nil
	}
}

func readInstruction(r io.Reader) (EncodedInstruction, error) {
	var ins EncodedInstruction
	if err := binary.Read(r, binary.LittleEndian, &ins.Op); err != nil {
		return ins, err
	}
	if err := binary.Read(r, binary.LittleEndian, &ins.Param); err != nil {
		return ins, err
	}
	if err := binary.Read(r, binary.LittleEndian, &ins.Row); err != nil {
		return ins, err
	}
	if err := binary.Read(r, binary.LittleEndian, &ins.Col); err != nil {
		return ins, err
	}
	switch ins.Param {
	case ValParam:
		if err := binary.Read(r, binary.LittleEndian, &ins.Lit.Kind); err != nil {
			return ins, err
		}
		switch ins.Lit.Kind {
		case LitInt:
			return ins, binary.Read(r, binary.LittleEndian, &ins.Lit.I)
		case LitFloat:
			return ins, binary.Read(r, binary.LittleEndian, &ins.Lit.F)
		default:
			return ins, binary.Read(r, binary.LittleEndian, &ins.Lit.C)
		}
	case IDParam, StrParam:
		return ins, binary.Read(r, binary.LittleEndian, &ins.PoolIdx)
	default:
		return ins, nil
	}
}
