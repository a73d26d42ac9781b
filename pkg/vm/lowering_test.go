package vm_test

import (
	"strings"
	"testing"

	"n2t.dev/toolchain/pkg/asm"
	"n2t.dev/toolchain/pkg/vm"
)

// Counts how many times a symbol appears as the target of an asm.AInstruction (a rough
// stand-in for "how many times is this address loaded"), used below to sanity check shape
// without having to run the generated program through an actual Hack CPU emulator.
func countRefs(program asm.Program, location string) int {
	n := 0
	for _, stmt := range program {
		if a, ok := stmt.(asm.AInstruction); ok && a.Location == location {
			n++
		}
	}
	return n
}

func labels(program asm.Program) []string {
	var found []string
	for _, stmt := range program {
		if l, ok := stmt.(asm.LabelDecl); ok {
			found = append(found, l.Name)
		}
	}
	return found
}

func TestLowererMemoryOp(t *testing.T) {
	program := vm.Program{
		"Main.vm": vm.Module{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 42},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 0},
		},
	}

	lowerer := vm.NewLowerer(program)
	asmProgram, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(asmProgram) == 0 {
		t.Fatalf("expected a non-empty asm.Program")
	}
	// Every segment access must keep the stack pointer balanced: one push keeps SP steady
	// at +1 net, the pop brings it back down, both touch "SP" directly rather than leaving
	// its bookkeeping to chance.
	if n := countRefs(asmProgram, "SP"); n == 0 {
		t.Fatalf("expected the lowered program to reference SP, got none")
	}
}

func TestLowererRejectsOutOfRangeSegments(t *testing.T) {
	t.Run("temp offset out of range", func(t *testing.T) {
		program := vm.Program{"Main.vm": vm.Module{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 8},
		}}
		lowerer := vm.NewLowerer(program)
		if _, err := lowerer.Lowerer(); err == nil {
			t.Fatalf("expected an error for temp offset 8")
		}
	})

	t.Run("pointer offset out of range", func(t *testing.T) {
		program := vm.Program{"Main.vm": vm.Module{
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 2},
		}}
		lowerer := vm.NewLowerer(program)
		if _, err := lowerer.Lowerer(); err == nil {
			t.Fatalf("expected an error for pointer offset 2")
		}
	})

	t.Run("pop into constant", func(t *testing.T) {
		program := vm.Program{"Main.vm": vm.Module{
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Constant, Offset: 0},
		}}
		lowerer := vm.NewLowerer(program)
		if _, err := lowerer.Lowerer(); err == nil {
			t.Fatalf("expected an error popping into 'constant'")
		}
	})
}

// Two independent comparisons in the same module must never share a label, or the assembler
// would bind the same symbol twice and silently favor the last definition.
func TestLowererComparisonLabelsDontCollide(t *testing.T) {
	program := vm.Program{
		"Main.vm": vm.Module{
			vm.ArithmeticOp{Operation: vm.Eq},
			vm.ArithmeticOp{Operation: vm.Gt},
		},
	}

	lowerer := vm.NewLowerer(program)
	asmProgram, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	seen := map[string]bool{}
	for _, name := range labels(asmProgram) {
		if seen[name] {
			t.Fatalf("label %q emitted more than once", name)
		}
		seen[name] = true
	}
}

// Grounded on original_source/project08/CodeWriter.py's sign-inspection branch: comparing two
// operands of opposite sign must never compute "x - y" directly (it can overflow a 16-bit word
// when x and y sit near opposite ends of the representable range). Assert the lowered sequence
// takes the sign-inspection path (jumps to "Y_NEG"/"Y_POS_X_NEG"/"Y_NEG_X_POS") rather than
// relying solely on a subtraction.
func TestLowererComparisonAvoidsOverflow(t *testing.T) {
	program := vm.Program{"Main.vm": vm.Module{vm.ArithmeticOp{Operation: vm.Lt}}}

	lowerer := vm.NewLowerer(program)
	asmProgram, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	var sawSignCheck, sawDirectDiff bool
	for i, stmt := range asmProgram {
		if c, ok := stmt.(asm.CInstruction); ok && c.Comp == "D-M" {
			sawDirectDiff = true
		}
		if a, ok := stmt.(asm.AInstruction); ok && strings.HasPrefix(a.Location, "Y_NEG") {
			sawSignCheck = true
			_ = i
		}
	}
	if !sawSignCheck {
		t.Fatalf("expected the lowered comparison to branch on operand sign")
	}
	if !sawDirectDiff {
		t.Fatalf("expected same-signed operands to still be compared via subtraction")
	}
}

func TestLowererFunctionCallReturn(t *testing.T) {
	program := vm.Program{
		"Main.vm": vm.Module{
			vm.FuncDecl{Name: "Main.main", NLocal: 2},
			vm.FuncCallOp{Name: "Math.max", NArgs: 2},
			vm.ReturnOp{},
		},
	}

	lowerer := vm.NewLowerer(program)
	asmProgram, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	found := labels(asmProgram)
	if len(found) == 0 {
		t.Fatalf("expected at least the function entry point and return-address labels")
	}
	if found[0] != "Main.main" {
		t.Fatalf("expected the first label to be the function entry point, got %q", found[0])
	}

	// The two locals must be zero-initialized via pushes onto the stack before the call.
	if n := countRefs(asmProgram, "SP"); n < 4 {
		t.Fatalf("expected local zero-init and call/return frame plumbing to reference SP repeatedly, got %d", n)
	}
	// The callee restores all four segment pointers on return.
	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		if countRefs(asmProgram, reg) == 0 {
			t.Fatalf("expected the call/return sequence to touch %s", reg)
		}
	}
}

func TestLowererLabelScoping(t *testing.T) {
	program := vm.Program{
		"Main.vm": vm.Module{
			vm.FuncDecl{Name: "Main.loop", NLocal: 0},
			vm.LabelDecl{Name: "WHILE_START"},
			vm.GotoOp{Jump: vm.Unconditional, Label: "WHILE_START"},
		},
	}

	lowerer := vm.NewLowerer(program)
	asmProgram, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	want := "Main.loop$WHILE_START"
	found := false
	for _, name := range labels(asmProgram) {
		if name == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected label %q to be scoped to its enclosing function", want)
	}
	if countRefs(asmProgram, want) == 0 {
		t.Fatalf("expected the goto to target the scoped label")
	}
}

func TestLowererRejectsEmptyProgram(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{})
	if _, err := lowerer.Lowerer(); err == nil {
		t.Fatalf("expected an error for an empty program")
	}
}
