package bytecode

import "strconv"

// LitKind tags the payload carried by a ValParam instruction.
type LitKind byte

const (
	LitInt LitKind = iota
	LitFloat
	LitChar
)

// Literal is the immediate value carried by instructions whose
// ParamKind is ValParam (spec.md §4.1's Int64|Float64|Char8 trio).
type Literal struct {
	Kind LitKind
	I    int64
	F    float64
	C    int8
}

func IntLiteral(v int64) Literal   { return Literal{Kind: LitInt, I: v} }
func FloatLiteral(v float64) Literal { return Literal{Kind: LitFloat, F: v} }
func CharLiteral(v int8) Literal   { return Literal{Kind: LitChar, C: v} }

// Instruction is one decoded entry of the flat instruction stream:
// an opcode, a param-kind tag selecting which union field is live,
// and the originating source position for tracebacks.
type Instruction struct {
	Op    OpCode
	Param ParamKind
	Lit   Literal // valid when Param == ValParam
	ID    string  // valid when Param == IDParam (interned identifier)
	Str   string  // valid when Param == StrParam (string literal)
	Row   uint16
	Col   uint16
}

func NoParamIns(op OpCode, row, col uint16) Instruction {
	return Instruction{Op: op, Param: NoParam, Row: row, Col: col}
}

func ValParamIns(op OpCode, lit Literal, row, col uint16) Instruction {
	return Instruction{Op: op, Param: ValParam, Lit: lit, Row: row, Col: col}
}

func IDParamIns(op OpCode, id string, row, col uint16) Instruction {
	return Instruction{Op: op, Param: IDParam, ID: id, Row: row, Col: col}
}

func StrParamIns(op OpCode, s string, row, col uint16) Instruction {
	return Instruction{Op: op, Param: StrParam, Str: s, Row: row, Col: col}
}

func (ins Instruction) String() string {
	switch ins.Param {
	case ValParam:
		switch ins.Lit.Kind {
		case LitInt:
			return ins.Op.String() + " " + strconv.FormatInt(ins.Lit.I, 10)
		case LitFloat:
			return ins.Op.String() + " <float>"
		default:
			return ins.Op.String() + " <char>"
		}
	case IDParam:
		return ins.Op.String() + " " + ins.ID
	case StrParam:
		return ins.Op.String() + " " + ins.Str
	default:
		return ins.Op.String()
	}
}
