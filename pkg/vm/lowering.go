package vm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"n2t.dev/toolchain/pkg/asm"
)

// Maps each indirect (pointer-based) memory segment to the Hack symbol holding its base address.
var segmentPointer = map[SegmentType]string{
	Local:    "LCL",
	Argument: "ARG",
	This:     "THIS",
	That:     "THAT",
}

// Base RAM address of the 'temp' segment (registers R5-R12).
const tempBase = 5

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Program' (one or more parsed modules) and produces its
// 'asm.Program' counterpart, ready to be handed to 'asm.Lowerer' and then 'hack.CodeGenerator'.
//
// Modules are lowered in lexicographic name order so that the same 'vm.Program' always
// produces byte-identical output, even though 'Program' itself is a (unordered) map.
type Lowerer struct {
	program Program

	module  string // Base name (without the '.vm' extension) of the module being lowered
	curFunc string // Fully qualified name of the function being lowered, "" outside of one

	nArith uint // Running counter, disambiguates labels generated for eq/gt/lt comparisons
	nCall  uint // Running counter, disambiguates return-address labels generated for 'call'
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Triggers the lowering process on every module of the program and concatenates their
// translations into a single 'asm.Program'.
func (l *Lowerer) Lowerer() (asm.Program, error) {
	if len(l.program) == 0 {
		return nil, fmt.Errorf("the given 'program' is empty")
	}

	names := make([]string, 0, len(l.program))
	for name := range l.program {
		names = append(names, name)
	}
	sort.Strings(names)

	program := asm.Program{}
	for _, name := range names {
		l.module = strings.TrimSuffix(name, ".vm")
		l.curFunc = ""

		for _, operation := range l.program[name] {
			lowered, err := l.handleOperation(operation)
			if err != nil {
				return nil, fmt.Errorf("module '%s': %w", name, err)
			}
			program = append(program, lowered...)
		}
	}

	return program, nil
}

// Dispatches a single 'vm.Operation' to its specialized handler based on its concrete type.
func (l *Lowerer) handleOperation(op Operation) ([]asm.Statement, error) {
	switch tOp := op.(type) {
	case MemoryOp:
		return l.handleMemoryOp(tOp)
	case ArithmeticOp:
		return l.handleArithmeticOp(tOp)
	case LabelDecl:
		return l.handleLabelDecl(tOp)
	case GotoOp:
		return l.handleGotoOp(tOp)
	case FuncDecl:
		return l.handleFuncDecl(tOp)
	case FuncCallOp:
		return l.handleFuncCallOp(tOp)
	case ReturnOp:
		return l.handleReturnOp()
	default:
		return nil, fmt.Errorf("unrecognized operation '%T'", op)
	}
}

// ----------------------------------------------------------------------------
// Memory Op

func (l *Lowerer) handleMemoryOp(op MemoryOp) ([]asm.Statement, error) {
	switch op.Segment {
	case Temp:
		if op.Offset > 7 {
			return nil, fmt.Errorf("'temp' segment offset out of range: %d", op.Offset)
		}
	case Pointer:
		if op.Offset > 1 {
			return nil, fmt.Errorf("'pointer' segment offset out of range: %d", op.Offset)
		}
	case Constant, Local, Argument, This, That, Static:
		// No further static bound to check for these segments.
	default:
		return nil, fmt.Errorf("unrecognized segment '%s'", op.Segment)
	}

	switch op.Operation {
	case Push:
		return l.lowerPush(op.Segment, op.Offset), nil
	case Pop:
		if op.Segment == Constant {
			return nil, fmt.Errorf("cannot 'pop' into the 'constant' segment")
		}
		return l.lowerPop(op.Segment, op.Offset), nil
	default:
		return nil, fmt.Errorf("unrecognized operation '%s'", op.Operation)
	}
}

// Emits the instructions that push the given segment's value onto the stack.
func (l *Lowerer) lowerPush(segment SegmentType, offset uint16) []asm.Statement {
	pushD := []asm.Statement{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}

	switch segment {
	case Constant:
		return append([]asm.Statement{
			asm.AInstruction{Location: strconv.Itoa(int(offset))},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}, pushD...)

	case Local, Argument, This, That:
		return append([]asm.Statement{
			asm.AInstruction{Location: strconv.Itoa(int(offset))},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: segmentPointer[segment]},
			asm.CInstruction{Dest: "A", Comp: "D+M"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD...)

	case Pointer:
		return append([]asm.Statement{
			asm.AInstruction{Location: "THIS"},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: strconv.Itoa(int(offset))},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD...)

	case Temp:
		return append([]asm.Statement{
			asm.AInstruction{Location: strconv.Itoa(tempBase)},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: strconv.Itoa(int(offset))},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD...)

	default: // Static
		return append([]asm.Statement{
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", l.module, offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}, pushD...)
	}
}

// Emits the instructions that pop the stack's top into the given segment's location.
func (l *Lowerer) lowerPop(segment SegmentType, offset uint16) []asm.Statement {
	if segment == Static {
		return []asm.Statement{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", l.module, offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M-1"},
		}
	}

	// Computes the target address and stashes it in R13 (a scratch register, never
	// addressed directly by VM code), then pops the stack's top value into it.
	var resolveAddr []asm.Statement
	switch segment {
	case Local, Argument, This, That:
		resolveAddr = []asm.Statement{
			asm.AInstruction{Location: strconv.Itoa(int(offset))},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: segmentPointer[segment]},
			asm.CInstruction{Dest: "D", Comp: "D+M"},
		}
	case Pointer:
		resolveAddr = []asm.Statement{
			asm.AInstruction{Location: "THIS"},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: strconv.Itoa(int(offset))},
			asm.CInstruction{Dest: "D", Comp: "D+A"},
		}
	case Temp:
		resolveAddr = []asm.Statement{
			asm.AInstruction{Location: strconv.Itoa(tempBase)},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: strconv.Itoa(int(offset))},
			asm.CInstruction{Dest: "D", Comp: "D+A"},
		}
	}

	return append(append(resolveAddr,
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M-1"},
	))
}

// ----------------------------------------------------------------------------
// Arithmetic Op

func (l *Lowerer) handleArithmeticOp(op ArithmeticOp) ([]asm.Statement, error) {
	switch op.Operation {
	case Add:
		return []asm.Statement{
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"}, asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "D", Comp: "D+M"}, asm.CInstruction{Dest: "M", Comp: "D"},
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M-1"},
		}, nil

	case Sub:
		return []asm.Statement{
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"}, asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: "M-D"},
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M-1"},
		}, nil

	case Neg:
		return []asm.Statement{
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "-M"},
		}, nil

	case And:
		return []asm.Statement{
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"}, asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: "D&M"},
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M-1"},
		}, nil

	case Or:
		return []asm.Statement{
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"}, asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: "D|M"},
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M-1"},
		}, nil

	case Not:
		return []asm.Statement{
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "!M"},
		}, nil

	case ShiftLeft:
		return []asm.Statement{
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "M<<"},
		}, nil

	case ShiftRight:
		return []asm.Statement{
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "M>>"},
		}, nil

	case Eq, Gt, Lt:
		return l.lowerComparison(op.Operation), nil

	default:
		return nil, fmt.Errorf("unrecognized arithmetic operation '%s'", op.Operation)
	}
}

// Lowers eq/gt/lt into a sign-inspecting sequence that never overflows: the naive "x - y"
// subtraction can overflow the 16-bit word when x and y have opposite signs and are both near
// the extremes of the representable range, silently flipping the comparison's outcome. We avoid
// that by special-casing opposite-sign operands (where the sign alone decides the comparison)
// and only ever subtracting two same-signed operands, whose difference can never overflow.
func (l *Lowerer) lowerComparison(op ArithOpType) []asm.Statement {
	n := l.nArith
	l.nArith++

	label := func(tag string) string { return fmt.Sprintf("%s_%s_%d", tag, l.module, n) }
	jump := map[ArithOpType]string{Eq: "JEQ", Gt: "JGT", Lt: "JLT"}[op]

	aInst := func(loc string) asm.Statement { return asm.AInstruction{Location: loc} }

	return []asm.Statement{
		aInst("SP"), asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "D", Comp: "M"},
		aInst("R13"), asm.CInstruction{Dest: "M", Comp: "D"}, // R13 = y

		aInst(label("Y_NEG")), asm.CInstruction{Comp: "D", Jump: "JLT"},

		aInst("SP"), asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "D", Comp: "M"}, // D = x

		aInst(label("Y_POS_X_NEG")), asm.CInstruction{Comp: "D", Jump: "JLT"},

		aInst("R13"), asm.CInstruction{Dest: "D", Comp: "D-M"}, // both >= 0, D = x - y
		aInst(label("END")), asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("Y_NEG")},
		aInst("SP"), asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "D", Comp: "M"}, // D = x

		aInst(label("Y_NEG_X_POS")), asm.CInstruction{Comp: "D", Jump: "JGT"},

		aInst("R13"), asm.CInstruction{Dest: "D", Comp: "D-M"}, // both <= 0, D = x - y
		aInst(label("END")), asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("Y_POS_X_NEG")}, // y >= 0 > x
		asm.CInstruction{Dest: "D", Comp: "-1"},
		aInst(label("END")), asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("Y_NEG_X_POS")}, // x > 0 > y
		asm.CInstruction{Dest: "D", Comp: "1"},
		aInst(label("END")), asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("END")},
		aInst(label("TRUE")), asm.CInstruction{Comp: "D", Jump: jump},
		asm.CInstruction{Dest: "D", Comp: "0"},
		aInst(label("FINALIZE")), asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("TRUE")},
		asm.CInstruction{Dest: "D", Comp: "-1"},
		aInst(label("FINALIZE")), asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: label("FINALIZE")},
		aInst("SP"), asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "D"},
		aInst("SP"), asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

// ----------------------------------------------------------------------------
// Branch Op

// Scopes a label to the enclosing function: "foo" declared inside "Xxx.bar" becomes
// "Xxx.bar$foo", so that two functions can each declare a label with the same name.
func (l *Lowerer) scopedLabel(name string) string {
	if l.curFunc == "" {
		return name
	}
	return fmt.Sprintf("%s$%s", l.curFunc, name)
}

func (l *Lowerer) handleLabelDecl(op LabelDecl) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("empty label declaration")
	}
	return []asm.Statement{asm.LabelDecl{Name: l.scopedLabel(op.Name)}}, nil
}

func (l *Lowerer) handleGotoOp(op GotoOp) ([]asm.Statement, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("empty goto target")
	}

	target := l.scopedLabel(op.Label)
	switch op.Jump {
	case Unconditional:
		return []asm.Statement{
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil

	case Conditional:
		return []asm.Statement{
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M-1"},
			asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: target}, asm.CInstruction{Comp: "D", Jump: "JNE"},
		}, nil

	default:
		return nil, fmt.Errorf("unrecognized jump type '%s'", op.Jump)
	}
}

// ----------------------------------------------------------------------------
// Function Op

func (l *Lowerer) handleFuncDecl(op FuncDecl) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("empty function declaration")
	}
	l.curFunc = op.Name

	program := []asm.Statement{asm.LabelDecl{Name: op.Name}}
	for i := uint8(0); i < op.NLocal; i++ {
		program = append(program, l.lowerPush(Constant, 0)...)
	}
	return program, nil
}

func (l *Lowerer) handleFuncCallOp(op FuncCallOp) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("empty function call target")
	}

	retLabel := fmt.Sprintf("%s.%s$ret.%d", l.module, op.Name, l.nCall)
	l.nCall++

	pushSymbol := func(loc string) []asm.Statement {
		return []asm.Statement{
			asm.AInstruction{Location: loc}, asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
			asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},
		}
	}

	program := []asm.Statement{
		asm.AInstruction{Location: retLabel}, asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		program = append(program, pushSymbol(reg)...)
	}

	program = append(program,
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: strconv.Itoa(int(op.NArgs) + 5)}, asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"}, asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"}, asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: op.Name}, asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: retLabel},
	)

	return program, nil
}

func (l *Lowerer) handleReturnOp() ([]asm.Statement, error) {
	program := []asm.Statement{
		// frame (R13) = LCL
		asm.AInstruction{Location: "LCL"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"}, asm.CInstruction{Dest: "M", Comp: "D"},
		// retAddr (R14) = *(frame - 5)
		asm.AInstruction{Location: "5"}, asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "R13"}, asm.CInstruction{Dest: "A", Comp: "M-D"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"}, asm.CInstruction{Dest: "M", Comp: "D"},
	}

	// *ARG = pop(): repositions the return value for the caller. Written out here rather
	// than through lowerPop, whose use of R13 as scratch would overwrite the frame pointer.
	program = append(program,
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"}, asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)

	program = append(program,
		// SP = ARG + 1
		asm.AInstruction{Location: "ARG"}, asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "D"},
	)

	// THAT, THIS, ARG, LCL are restored in that order by walking the frame pointer down.
	for _, reg := range []string{"THAT", "THIS", "ARG", "LCL"} {
		program = append(program,
			asm.AInstruction{Location: "R13"}, asm.CInstruction{Dest: "M", Comp: "M-1"},
			asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: reg}, asm.CInstruction{Dest: "M", Comp: "D"},
		)
	}

	program = append(program,
		asm.AInstruction{Location: "R14"}, asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	)

	return program, nil
}
