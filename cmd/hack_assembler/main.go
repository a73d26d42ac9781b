package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/teris-io/cli"
	"n2t.dev/toolchain/pkg/asm"
	"n2t.dev/toolchain/pkg/driver"
	"n2t.dev/toolchain/pkg/hack"
)

var Description = strings.ReplaceAll(`
The Hack Assembler takes assembly language code written in the Hack assembly language
and translates it into machine code that can be executed by the Hack computer. The process
involves parsing the assembly code, resolving symbols, and generating machine code.
`, "\n", " ")

var HackAssembler = cli.New(Description).
	// 'AsOptional()' allows to have more than one input .asm file
	WithArg(cli.NewArg("inputs", "The assembler (.asm) file(s) to be compiled").
		AsOptional().WithType(cli.TypeString)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	// Each positional arg may be a single .asm file or a directory of them (one translation
	// unit per file); expand every arg into its matching files before assembling anything.
	var TUs []string
	for _, input := range args {
		found, err := driver.DiscoverFiles(input, ".asm")
		if err != nil {
			fmt.Printf("ERROR: Unable to discover input files: %s\n", err)
			return -1
		}
		TUs = append(TUs, found...)
	}

	// Unlike the Vm/Jack translators each .asm file is assembled to its own .hack sibling
	// in total isolation, so the whole pipeline (parse/lower/codegen/write) runs per file,
	// one goroutine per translation unit; the first failure cancels the shared context so
	// not-yet-started files are skipped.
	err := driver.ParallelEach(context.Background(), TUs, func(ctx context.Context, tu string) error {
		content, err := os.ReadFile(tu)
		if err != nil {
			return fmt.Errorf("unable to open input file '%s': %w", tu, err)
		}

		// Instantiate a parser for the Asm program
		parser := asm.NewParser(bytes.NewReader(content))
		// Parses the input file content and extract an AST (as a 'asm.Program') from it.
		asmProgram, err := parser.Parse()
		if err != nil {
			return fmt.Errorf("unable to complete 'parsing' pass on '%s': %w", tu, err)
		}

		// Instantiate a lowerer to convert the program from Asm to Hack
		lowerer := asm.NewLowerer(asmProgram)
		// Lowers the asm.Program to an in-memory/IR representation of its Hack counterpart 'hack.Program'.
		hackProgram, table, err := lowerer.Lower()
		if err != nil {
			return fmt.Errorf("unable to complete 'lowering' pass on '%s': %w", tu, err)
		}

		// Now, instantiates a code generator for the Hack (compiled) program
		codegen := hack.NewCodeGenerator(hackProgram, table)
		// Iterates over each instruction and spits out the relative textual representation.
		compiled, err := codegen.Generate()
		if err != nil {
			return fmt.Errorf("unable to complete 'codegen' pass on '%s': %w", tu, err)
		}

		// Removes file extension and writes the sibling output next to the input; only
		// renamed into place once every instruction has been written successfully, so a
		// failure (or a cancellation from a sibling file's error) never leaves a truncated
		// .hack file behind.
		extension := path.Ext(tu)
		outputPath := fmt.Sprintf("%s.hack", strings.TrimSuffix(tu, extension))
		return driver.WriteAtomic(outputPath, func(w io.Writer) error {
			for _, comp := range compiled {
				if _, err := fmt.Fprintf(w, "%s\n", comp); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return -1
	}

	return 0
}

func main() { os.Exit(HackAssembler.Run(os.Args, os.Stdout)) }
