package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"n2t.dev/toolchain/pkg/jack"
	"n2t.dev/toolchain/pkg/utils"
	"n2t.dev/toolchain/pkg/vm"
)

// compile runs the same parse/lower/codegen pipeline the Handler runs internally (including
// the stdlib ABI injection, since external calls like Output.printInt resolve against it), used
// here to compute the expected ".vm" output without depending on course fixtures outside this repo.
func compile(t *testing.T, className, source string) []string {
	t.Helper()

	class, err := jack.NewParser(bytes.NewReader([]byte(source))).Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}

	program := jack.Program{className: class}
	for name, abi := range jack.StandardLibraryABI {
		def := jack.Class{Name: name, Subroutines: utils.OrderedMap[string, jack.Subroutine]{}}
		for fName, subroutine := range abi.Subroutines.Entries() {
			def.Subroutines.Set(fName, subroutine)
		}
		program[name] = def
	}

	lowerer := jack.NewLowerer(program)
	vmProgram, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected lowering error: %s", err)
	}

	codegen := vm.NewCodeGenerator(vmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected codegen error: %s", err)
	}
	return compiled[className]
}

func TestJackCompilerWritesSiblingVmFile(t *testing.T) {
	const source = `
		class Main {
			function void main() {
				do Output.printInt(42);
				return;
			}
		}
	`

	dir := t.TempDir()
	input := filepath.Join(dir, "Main.jack")
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}

	if status := Handler([]string{input}, map[string]string{"stdlib": "true"}); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	got, err := os.ReadFile(filepath.Join(dir, "Main.vm"))
	if err != nil {
		t.Fatalf("expected a sibling 'Main.vm' file: %s", err)
	}

	want := strings.Join(compile(t, "Main", source), "\n") + "\n"
	if string(got) != want {
		t.Fatalf("unexpected .vm output:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestJackCompilerTypecheckRejectsUndeclaredVariable(t *testing.T) {
	const source = `
		class Main {
			function void main() {
				do Output.printInt(missing);
				return;
			}
		}
	`

	dir := t.TempDir()
	input := filepath.Join(dir, "Main.jack")
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}

	status := Handler([]string{input}, map[string]string{"stdlib": "true", "typecheck": "true"})
	if status == 0 {
		t.Fatalf("expected type-checking to reject a reference to an undeclared variable")
	}
}

func TestJackCompilerRejectsMissingArgs(t *testing.T) {
	if status := Handler(nil, nil); status == 0 {
		t.Fatalf("expected a non-zero exit status when no input is provided")
	}
}
