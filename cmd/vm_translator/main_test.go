package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"n2t.dev/toolchain/pkg/asm"
	"n2t.dev/toolchain/pkg/vm"
)

// translate runs the same parse/lower/codegen pipeline the Handler runs internally (without
// the bootstrap/Sys.init step), used here to compute the expected ".asm" output without
// depending on course fixtures outside this repo.
func translate(t *testing.T, source string) []string {
	t.Helper()

	module, err := vm.NewParser(bytes.NewReader([]byte(source))).Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}

	lowerer := vm.NewLowerer(vm.Program{"fixture.vm": module})
	asmProgram, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected lowering error: %s", err)
	}

	codegen := asm.NewCodeGenerator(asmProgram)
	compiled, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected codegen error: %s", err)
	}
	return compiled
}

func TestVMTranslatorWritesOutputWithoutImplicitBootstrap(t *testing.T) {
	const source = "push constant 7\npush constant 8\nadd\n"

	dir := t.TempDir()
	input := filepath.Join(dir, "SimpleAdd.vm")
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}
	output := filepath.Join(dir, "SimpleAdd.asm")

	status := Handler([]string{input}, map[string]string{"output": output})
	if status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("expected output file to be written: %s", err)
	}

	want := strings.Join(translate(t, source), "\n") + "\n"
	if string(got) != want {
		t.Fatalf("unexpected .asm output:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestVMTranslatorAutoBootstrapsWhenSysInitDefined(t *testing.T) {
	const source = "function Sys.init 0\npush constant 0\nreturn\n"

	dir := t.TempDir()
	input := filepath.Join(dir, "Main.vm")
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}
	output := filepath.Join(dir, "Main.asm")

	if status := Handler([]string{input}, map[string]string{"output": output}); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("expected output file to be written: %s", err)
	}

	// A module defining Sys.init is bootstrapped implicitly even without --bootstrap, so
	// it should emit strictly more instructions than the un-bootstrapped translation of
	// the same module would on its own.
	gotLines := strings.Split(strings.TrimRight(string(got), "\n"), "\n")
	if len(gotLines) <= len(translate(t, source)) {
		t.Fatalf("expected bootstrap instructions to be prepended when Sys.init is defined")
	}
}

func TestVMTranslatorRejectsMissingOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Empty.vm")
	if err := os.WriteFile(input, []byte(""), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}
	if status := Handler([]string{input}, map[string]string{}); status == 0 {
		t.Fatalf("expected a non-zero exit status when --output is missing")
	}
}
