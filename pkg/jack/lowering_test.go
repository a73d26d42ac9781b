package jack_test

import (
	"testing"

	"n2t.dev/toolchain/pkg/jack"
	"n2t.dev/toolchain/pkg/utils"
	"n2t.dev/toolchain/pkg/vm"
)

func countFuncCalls(ops []vm.Operation, name string) int {
	n := 0
	for _, op := range ops {
		if call, ok := op.(vm.FuncCallOp); ok && call.Name == name {
			n++
		}
	}
	return n
}

func TestLowererConstructorAllocatesFields(t *testing.T) {
	program := jack.Program{
		"Point": jack.Class{
			Name: "Point",
			Fields: fieldsOf(
				jack.Variable{Name: "x", VarType: jack.Field, DataType: jack.DataType{Main: jack.Int}},
				jack.Variable{Name: "y", VarType: jack.Field, DataType: jack.DataType{Main: jack.Int}},
			),
			Subroutines: subroutinesOf(jack.Subroutine{
				Name: "new",
				Type: jack.Constructor,
				Statements: []jack.Statement{
					jack.ReturnStmt{Expr: jack.VarExpr{Var: "this"}},
				},
			}),
		},
	}

	lowerer := jack.NewLowerer(program)
	vmProgram, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	module, ok := vmProgram["Point"]
	if !ok {
		t.Fatalf("expected a 'Point' module in the lowered program")
	}

	if countFuncCalls(module, "Memory.alloc") != 1 {
		t.Fatalf("expected the constructor to call Memory.alloc exactly once, got ops: %+v", module)
	}

	first, isFuncDecl := module[0].(vm.FuncDecl)
	if !isFuncDecl || first.Name != "Point.new" {
		t.Fatalf("expected the first op to be a FuncDecl for 'Point.new', got %+v", module[0])
	}
}

func TestLowererMethodPrelude(t *testing.T) {
	program := jack.Program{
		"Point": jack.Class{
			Name: "Point",
			Fields: fieldsOf(
				jack.Variable{Name: "x", VarType: jack.Field, DataType: jack.DataType{Main: jack.Int}},
			),
			Subroutines: subroutinesOf(jack.Subroutine{
				Name: "getX",
				Type: jack.Method,
				Statements: []jack.Statement{
					jack.ReturnStmt{Expr: jack.VarExpr{Var: "x"}},
				},
			}),
		},
	}

	vmProgram, err := func() (vm.Program, error) {
		l := jack.NewLowerer(program)
		return l.Lowerer()
	}()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	module := vmProgram["Point"]
	var sawArgPush, sawPointerPop bool
	for i := 0; i < len(module)-1; i++ {
		push, isPush := module[i].(vm.MemoryOp)
		pop, isPop := module[i+1].(vm.MemoryOp)
		if isPush && isPop && push.Operation == vm.Push && push.Segment == vm.Argument && push.Offset == 0 &&
			pop.Operation == vm.Pop && pop.Segment == vm.Pointer && pop.Offset == 0 {
			sawArgPush, sawPointerPop = true, true
		}
	}
	if !sawArgPush || !sawPointerPop {
		t.Fatalf("expected the method prelude to push argument 0 and pop it into pointer 0, got: %+v", module)
	}
}

func TestLowererStringLiteralExpansion(t *testing.T) {
	program := jack.Program{
		"Main": jack.Class{
			Name: "Main",
			Subroutines: subroutinesOf(jack.Subroutine{
				Name: "run",
				Type: jack.Function,
				Statements: []jack.Statement{
					jack.DoStmt{FuncCall: jack.FuncCallExpr{
						IsExtCall: true, Var: "Output", FuncName: "printString",
						Arguments: []jack.Expression{jack.LiteralExpr{Type: jack.DataType{Main: jack.String}, Value: "hi"}},
					}},
					jack.ReturnStmt{},
				},
			}),
		},
		// External calls resolve against the callee's class, so the stdlib ABI entry is provided
		"Output": jack.StandardLibraryABI["Output"],
	}

	l := jack.NewLowerer(program)
	vmProgram, err := l.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	module := vmProgram["Main"]
	if countFuncCalls(module, "String.new") != 1 {
		t.Fatalf("expected exactly one String.new call, got: %+v", module)
	}
	if n := countFuncCalls(module, "String.appendChar"); n != 2 {
		t.Fatalf("expected 2 String.appendChar calls (one per character of \"hi\"), got %d: %+v", n, module)
	}
}

func TestLowererRejectsEmptyProgram(t *testing.T) {
	l := jack.NewLowerer(jack.Program{})
	if _, err := l.Lowerer(); err == nil {
		t.Fatalf("expected an error when lowering an empty program")
	}
}

func TestLowererWhileLoopLabelsDontCollide(t *testing.T) {
	program := jack.Program{
		"Main": jack.Class{
			Name: "Main",
			Subroutines: subroutinesOf(
				jack.Subroutine{
					Name: "first",
					Type: jack.Function,
					Statements: []jack.Statement{
						jack.WhileStmt{Condition: jack.LiteralExpr{Type: jack.DataType{Main: jack.Bool}, Value: "false"}},
						jack.ReturnStmt{},
					},
				},
				jack.Subroutine{
					Name: "second",
					Type: jack.Function,
					Statements: []jack.Statement{
						jack.WhileStmt{Condition: jack.LiteralExpr{Type: jack.DataType{Main: jack.Bool}, Value: "false"}},
						jack.ReturnStmt{},
					},
				},
			),
		},
	}

	l := jack.NewLowerer(program)
	vmProgram, err := l.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	seen := map[string]bool{}
	for _, op := range vmProgram["Main"] {
		if label, ok := op.(vm.LabelDecl); ok {
			if seen[label.Name] {
				t.Fatalf("label %q declared more than once across subroutines", label.Name)
			}
			seen[label.Name] = true
		}
	}
}

func TestLowererIntLiteralBoundary(t *testing.T) {
	program := jack.Program{
		"Main": jack.Class{
			Name: "Main",
			Subroutines: subroutinesOf(jack.Subroutine{
				Name: "run",
				Type: jack.Function,
				Statements: []jack.Statement{
					jack.ReturnStmt{Expr: jack.LiteralExpr{Type: jack.DataType{Main: jack.Int}, Value: "32767"}},
				},
			}),
		},
	}

	l := jack.NewLowerer(program)
	vmProgram, err := l.Lowerer()
	if err != nil {
		t.Fatalf("expected 32767 to be a valid int literal, got: %s", err)
	}

	push, isPush := vmProgram["Main"][1].(vm.MemoryOp)
	if !isPush || push.Segment != vm.Constant || push.Offset != 32767 {
		t.Fatalf("expected 'push constant 32767', got: %+v", vmProgram["Main"])
	}
}

func TestLowererRejectsIntLiteralAboveBoundary(t *testing.T) {
	program := jack.Program{
		"Main": jack.Class{
			Name: "Main",
			Subroutines: subroutinesOf(jack.Subroutine{
				Name: "run",
				Type: jack.Function,
				Statements: []jack.Statement{
					jack.ReturnStmt{Expr: jack.LiteralExpr{Type: jack.DataType{Main: jack.Int}, Value: "32768"}},
				},
			}),
		},
	}

	l := jack.NewLowerer(program)
	if _, err := l.Lowerer(); err == nil {
		t.Fatalf("expected an error lowering an out-of-range int literal")
	}
}

// ----------------------------------------------------------------------------
// Helpers to build OrderedMap-backed Fields/Subroutines without the parser.

func fieldsOf(vars ...jack.Variable) utils.OrderedMap[string, jack.Variable] {
	m := utils.OrderedMap[string, jack.Variable]{}
	for _, v := range vars {
		m.Set(v.Name, v)
	}
	return m
}

func subroutinesOf(subs ...jack.Subroutine) utils.OrderedMap[string, jack.Subroutine] {
	m := utils.OrderedMap[string, jack.Subroutine]{}
	for _, s := range subs {
		m.Set(s.Name, s)
	}
	return m
}
