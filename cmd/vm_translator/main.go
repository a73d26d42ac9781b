package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/teris-io/cli"
	"n2t.dev/toolchain/pkg/asm"
	"n2t.dev/toolchain/pkg/driver"
	"n2t.dev/toolchain/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of multiple modules/files) written in 
the VM language into Hack assembly code that can be further elaborated. The VM language
is a higher-level (bytecode'like) language tailored for use with the Hack computer arch.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	// 'AsOptional()' allows to have more than one input .vm file
	WithArg(cli.NewArg("inputs", "The bytecode (.vm) file to be compiled").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("output", "The compiled binary output (.asm)").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("bootstrap", "Includes bootstrap code in the final .asm file").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 || options["output"] == "" {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	// Each positional arg may be a single .vm file or a directory of them (one translation
	// unit per file); expand every arg into its matching files before parsing anything.
	var TUs []string
	for _, input := range args {
		found, err := driver.DiscoverFiles(input, ".vm")
		if err != nil {
			fmt.Printf("ERROR: Unable to discover input files: %s\n", err)
			return -1
		}
		TUs = append(TUs, found...)
	}

	// Allocates a 'vm.Program' struct to save all the parsed translation unit
	// (the .vm files) that will be parsed and lowered independently and then
	// sent to the codegen phases (that will create a monolithic compiled output).
	program, mu := vm.Program{}, sync.Mutex{}

	// Every translation unit is independent of the others until the lowering phase, so we
	// parse them concurrently (one goroutine per file, per spec's natural parallelization);
	// the first parsing failure cancels the shared context so not-yet-started files are skipped.
	err := driver.ParallelEach(context.Background(), TUs, func(ctx context.Context, input string) error {
		content, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("unable to open input file '%s': %w", input, err)
		}

		// Instantiate a parser for the Vm program
		parser := vm.NewParser(bytes.NewReader(content))
		// Parses the input file content and extract an AST (as a 'vm.Module') from it.
		module, err := parser.Parse()
		if err != nil {
			return fmt.Errorf("unable to complete 'parsing' pass on '%s': %w", input, err)
		}

		mu.Lock()
		program[path.Base(input)] = module
		mu.Unlock()
		return nil
	})
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return -1
	}

	// Instantiate a lowerer to convert the program from Vm to Asm
	lowerer := vm.NewLowerer(program)
	// Lowers the vm.Program to an in-memory/IR representation of its Asm counterpart 'asm.Program'.
	asmProgram, err := lowerer.Lowerer()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'lowering' pass: %s\n", err)
		return -1
	}

	// When the user opts in to include the 'bootstrap' code as the first instructions of our
	// translated program, this code does the following things:
	// - Sets the Stack Pointer to its base location at memory location 256
	// - Jump to the Sys.init function that (defined by the one of the 'vm.Module')
	//
	// A program is also bootstrapped implicitly whenever one of its modules defines 'Sys.init',
	// since that's always meant to be the program's entry point, flag or no flag.
	_, explicit := options["bootstrap"]
	if explicit || definesSysInit(program) {
		asmProgram = append(asm.Program{
			asm.AInstruction{Location: "256"},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "D"},
			asm.AInstruction{Location: "Sys.init"},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, asmProgram...)
	}

	// Now, instantiates a code generator for the Asm (compiled) program
	codegen := asm.NewCodeGenerator(asmProgram)
	// Iterates over each instruction and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	// Only renamed into place once every instruction has been written successfully, so a
	// failure partway through never leaves a truncated .asm file at the requested path.
	if err := driver.WriteAtomic(options["output"], func(w io.Writer) error {
		for _, comp := range compiled {
			if _, err := fmt.Fprintf(w, "%s\n", comp); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		fmt.Printf("ERROR: Unable to write output file: %s\n", err)
		return -1
	}

	return 0
}

// Reports whether any module in the program declares the "Sys.init" function.
func definesSysInit(program vm.Program) bool {
	for _, module := range program {
		for _, op := range module {
			if decl, ok := op.(vm.FuncDecl); ok && decl.Name == "Sys.init" {
				return true
			}
		}
	}
	return false
}

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }
