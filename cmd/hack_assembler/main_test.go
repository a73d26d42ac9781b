package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"n2t.dev/toolchain/pkg/asm"
	"n2t.dev/toolchain/pkg/hack"
)

// assemble runs the same parse/lower/codegen pipeline the Handler runs internally, used here
// to compute the expected ".hack" output without depending on course fixtures outside this repo.
func assemble(t *testing.T, source string) []string {
	t.Helper()

	program, err := asm.NewParser(bytes.NewReader([]byte(source))).Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}

	lowerer := asm.NewLowerer(program)
	hackProgram, table, err := lowerer.Lower()
	if err != nil {
		t.Fatalf("unexpected lowering error: %s", err)
	}

	codegen := hack.NewCodeGenerator(hackProgram, table)
	compiled, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected codegen error: %s", err)
	}
	return compiled
}

func TestHackAssemblerWritesSiblingHackFile(t *testing.T) {
	const source = "@2\nD=A\n@3\nD=D+A\n@0\nM=D\n"

	dir := t.TempDir()
	input := filepath.Join(dir, "Add.asm")
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatalf("unable to write fixture: %s", err)
	}

	if status := Handler([]string{input}, nil); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	got, err := os.ReadFile(filepath.Join(dir, "Add.hack"))
	if err != nil {
		t.Fatalf("expected a sibling 'Add.hack' file: %s", err)
	}

	want := strings.Join(assemble(t, source), "\n") + "\n"
	if string(got) != want {
		t.Fatalf("unexpected .hack output:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestHackAssemblerDiscoversDirectoryOfAsmFiles(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{
		"Add.asm": "@2\nD=A\n@3\nD=D+A\n@0\nM=D\n",
		"Max.asm": "@0\nD=M\n@1\nD=D-M\n@10\nD;JGT\n@1\nD=M\n@12\nD=0;JMP\n@0\nD=M\n@2\nM=D\n",
	}
	for name, src := range sources {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0644); err != nil {
			t.Fatalf("unable to write fixture %s: %s", name, err)
		}
	}

	if status := Handler([]string{dir}, nil); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	for name, src := range sources {
		stem := strings.TrimSuffix(name, ".asm")
		got, err := os.ReadFile(filepath.Join(dir, stem+".hack"))
		if err != nil {
			t.Fatalf("expected a sibling '%s.hack' file: %s", stem, err)
		}
		want := strings.Join(assemble(t, src), "\n") + "\n"
		if string(got) != want {
			t.Fatalf("unexpected .hack output for %s:\ngot:  %q\nwant: %q", name, got, want)
		}
	}
}

func TestHackAssemblerRejectsMissingArgs(t *testing.T) {
	if status := Handler(nil, nil); status == 0 {
		t.Fatalf("expected a non-zero exit status when no input is provided")
	}
}
