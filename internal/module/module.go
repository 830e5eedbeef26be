// Package module implements the immutable compiled unit described in
// spec.md §4.4: a Module is a name, ordered instructions, a reference
// table (top-level function name → entry IP), and a class table
// (class name → {method name → IP}, plus declared parent names).
//
// Per spec.md §1, the tokenizer/parser/codegen that produce a Module
// are out of scope for this core; this package only consumes the
// compiled form, either built programmatically (Builder, used by
// tests and by anything embedding the VM) or deserialized from the
// on-disk format of spec.md §6 (Load/Save).
package module

import (
	"fmt"
	"os"

	"jlvm/internal/bytecode"
	"jlvm/internal/intern"
)

// ClassDef is one entry of a Module's class table.
type ClassDef struct {
	Name        string
	ParentNames []string
	Methods     map[string]uint32 // method name -> entry IP
}

// Module is immutable after Freeze/Load: the engine never mutates a
// Module's instructions, refs, or class table while executing it.
type Module struct {
	Name         string
	SourceFile   string
	Instructions []bytecode.Instruction
	Refs         map[string]uint32 // top-level function name -> entry IP
	Classes      map[string]*ClassDef
	frozen       bool

	// Interned is the sealed string/identifier table built while this
	// Module was being loaded (spec.md §5). Nil for a Module built
	// directly via Builder rather than deserialized with Load.
	Interned *intern.Table
}

func New(name, sourceFile string) *Module {
	return &Module{
		Name:       name,
		SourceFile: sourceFile,
		Refs:       make(map[string]uint32),
		Classes:    make(map[string]*ClassDef),
	}
}

// Freeze marks the module as immutable; the engine's module-init
// bookkeeping (spec.md §4.8) assumes Modules don't change shape once
// they're runnable.
func (m *Module) Freeze() { m.frozen = true }

func (m *Module) Frozen() bool { return m.frozen }

// Builder provides the append-only construction API a Module needs in
// lieu of a compiler front end (spec.md §1 scopes codegen out of
// core); it is the direct analogue of the teacher's
// bytecode.Chunk.WriteOp/WriteByte pair, but emits fully-formed
// Instructions instead of raw bytes plus a separate operand stream.
type Builder struct {
	mod *Module
}

func NewBuilder(name, sourceFile string) *Builder {
	return &Builder{mod: New(name, sourceFile)}
}

// IP returns the instruction pointer the next emitted instruction
// will occupy -- useful for patching forward jumps.
func (b *Builder) IP() uint32 { return uint32(len(b.mod.Instructions)) }

func (b *Builder) emit(ins bytecode.Instruction) uint32 {
	ip := b.IP()
	b.mod.Instructions = append(b.mod.Instructions, ins)
	return ip
}

func (b *Builder) NoParam(op bytecode.OpCode, row, col uint16) uint32 {
	return b.emit(bytecode.NoParamIns(op, row, col))
}

func (b *Builder) Val(op bytecode.OpCode, lit bytecode.Literal, row, col uint16) uint32 {
	return b.emit(bytecode.ValParamIns(op, lit, row, col))
}

func (b *Builder) ID(op bytecode.OpCode, id string, row, col uint16) uint32 {
	return b.emit(bytecode.IDParamIns(op, id, row, col))
}

func (b *Builder) Str(op bytecode.OpCode, s string, row, col uint16) uint32 {
	return b.emit(bytecode.StrParamIns(op, s, row, col))
}

// PatchJumpOffset rewrites the literal payload of a previously-emitted
// JMP/IF/IFN/CTCH instruction once its target is known.
func (b *Builder) PatchJumpOffset(ip uint32, offset int64) error {
	if int(ip) >= len(b.mod.Instructions) {
		return fmt.Errorf("module: patch target %d out of range", ip)
	}
	ins := &b.mod.Instructions[ip]
	if ins.Param != bytecode.ValParam {
		return fmt.Errorf("module: instruction at %d is not a ValParam jump", ip)
	}
	ins.Lit = bytecode.IntLiteral(offset)
	return nil
}

// DefineRef registers a top-level function's entry point.
func (b *Builder) DefineRef(name string, ip uint32) {
	b.mod.Refs[name] = ip
}

// DefineClass registers a class's parent names and method table.
func (b *Builder) DefineClass(name string, parents []string, methods map[string]uint32) {
	b.mod.Classes[name] = &ClassDef{Name: name, ParentNames: parents, Methods: methods}
}

// Build freezes and returns the constructed Module.
func (b *Builder) Build() *Module {
	b.mod.Freeze()
	return b.mod
}

// Save serializes m to path using the spec.md §6 binary format.
func Save(m *Module, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return bytecode.Write(f, toFile(m))
}

// Load deserializes a Module previously written by Save.
func Load(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bf, err := bytecode.Read(f)
	if err != nil {
		return nil, fmt.Errorf("module: %w", err)
	}
	return fromFile(bf)
}

func toFile(m *Module) *bytecode.File {
	pool := map[string]int32{}
	var strs []string
	intern := func(s string) int32 {
		if idx, ok := pool[s]; ok {
			return idx
		}
		idx := int32(len(strs))
		pool[s] = idx
		strs = append(strs, s)
		return idx
	}

	bf := &bytecode.File{Name: m.Name}
	for _, ins := range m.Instructions {
		ei := bytecode.EncodedInstruction{Op: ins.Op, Param: ins.Param, Lit: ins.Lit, Row: ins.Row, Col: ins.Col}
		switch ins.Param {
		case bytecode.IDParam:
			ei.PoolIdx = intern(ins.ID)
		case bytecode.StrParam:
			ei.PoolIdx = intern(ins.Str)
		}
		bf.Instructions = append(bf.Instructions, ei)
	}
	for name, ip := range m.Refs {
		bf.Refs = append(bf.Refs, bytecode.RefEntry{NameIdx: intern(name), IP: ip})
	}
	for name, cd := range m.Classes {
		ce := bytecode.ClassEntry{NameIdx: intern(name)}
		for _, p := range cd.ParentNames {
			ce.ParentIdxs = append(ce.ParentIdxs, intern(p))
		}
		for mname, mip := range cd.Methods {
			ce.Methods = append(ce.Methods, bytecode.MethodEntry{NameIdx: intern(mname), IP: mip})
		}
		bf.Classes = append(bf.Classes, ce)
	}
	bf.Strings = strs
	return bf
}

// fromFile rebuilds a Module from its on-disk string pool through an
// intern.Table rather than indexing bf.Strings directly: every IDParam
// or StrParam instruction operand, ref name, and class/method/parent
// name is interned exactly once here, at load time, then the table is
// sealed so the engine's later reads of Module.Interned need no lock
// (spec.md §5's "mutated during program load only; reads are
// lock-free after").
func fromFile(bf *bytecode.File) (*Module, error) {
	m := New(bf.Name, "<loaded>")
	table := intern.New()
	for _, s := range bf.Strings {
		table.Intern(s)
	}
	table.Seal()
	m.Interned = table

	str := func(idx int32) (string, error) {
		if idx < 0 || int(idx) >= len(bf.Strings) {
			return "", fmt.Errorf("module: string pool index %d out of range", idx)
		}
		return table.String(idx), nil
	}

	for _, ei := range bf.Instructions {
		ins := bytecode.Instruction{Op: ei.Op, Param: ei.Param, Lit: ei.Lit, Row: ei.Row, Col: ei.Col}
		switch ei.Param {
		case bytecode.IDParam:
			s, err := str(ei.PoolIdx)
			if err != nil {
				return nil, err
			}
			ins.ID = s
		case bytecode.StrParam:
			s, err := str(ei.PoolIdx)
			if err != nil {
				return nil, err
			}
			ins.Str = s
		}
		m.Instructions = append(m.Instructions, ins)
	}
	for _, r := range bf.Refs {
		name, err := str(r.NameIdx)
		if err != nil {
			return nil, err
		}
		m.Refs[name] = r.IP
	}
	for _, c := range bf.Classes {
		name, err := str(c.NameIdx)
		if err != nil {
			return nil, err
		}
		cd := &ClassDef{Name: name, Methods: make(map[string]uint32)}
		for _, pidx := range c.ParentIdxs {
			pname, err := str(pidx)
			if err != nil {
				return nil, err
			}
			cd.ParentNames = append(cd.ParentNames, pname)
		}
		for _, me := range c.Methods {
			mname, err := str(me.NameIdx)
			if err != nil {
				return nil, err
			}
			cd.Methods[mname] = me.IP
		}
		m.Classes[name] = cd
	}
	m.Freeze()
	return m, nil
}
