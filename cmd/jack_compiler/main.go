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

	"n2t.dev/toolchain/pkg/driver"
	"n2t.dev/toolchain/pkg/jack"
	"n2t.dev/toolchain/pkg/utils"
	"n2t.dev/toolchain/pkg/vm"

	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
The Jack Compiler compiles programs (composed of multiple classes/files) written in
the Jack language into VM modules that can be further elaborated. The Jack language
is a higher-level OOP language tailored for use with the Hack computer architecture.
`, "\n", " ")

var JackCompiler = cli.New(Description).
	// 'AsOptional()' allows to have more than one input .jack file
	WithArg(cli.NewArg("inputs", "The source (.jack) files to be compiled").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("stdlib", "Uses the built-in ABI of the standard library for lowering").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("typecheck", "Does a full type check of source code before emitting any output").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	// The first is the aggregation of all the Translation Units (TUs) found during the input walk (just the paths)
	// The second is the container of the full program (a basic collection of parsed modules that can be explored)
	// ! While the Jack language spec follows the same semantic as Java every file is a class and every class is a
	// ! jack.Module, that said in future or other language the same could not apply. By TU we identify the source
	// ! that needs to be parsed, by module we identify the biggest entity extractable from said file. In jack this
	// ! a class but for other language it may be a module (Go), a namespace (C#) or just some basic functions (C).
	TUs, program := []string{}, jack.Program{}

	for _, input := range args {
		found, err := driver.DiscoverFiles(input, ".jack")
		if err != nil {
			fmt.Printf("ERROR: Unable to discover input files: %s\n", err)
			return -1
		}
		TUs = append(TUs, found...)
	}

	// Every translation unit is independent of the others until the lowering phase, so we
	// parse them concurrently (one goroutine per file, per spec's natural parallelization);
	// the first parsing failure cancels the shared context so not-yet-started files are skipped.
	var mu sync.Mutex
	err := driver.ParallelEach(context.Background(), TUs, func(ctx context.Context, tu string) error {
		content, err := os.ReadFile(tu)
		if err != nil {
			return fmt.Errorf("unable to open input file '%s': %w", tu, err)
		}

		// Instantiate a parser for the Jack program
		parser := jack.NewParser(bytes.NewReader(content))
		// Parses the input file content and extract an AST (as a 'jack.Class') from it.
		class, err := parser.Parse()
		if err != nil {
			return fmt.Errorf("unable to complete 'parsing' pass on '%s': %w", tu, err)
		}

		// Removes root directory and file extension to use as module name
		filename, extension := path.Base(tu), path.Ext(tu)

		mu.Lock()
		program[strings.TrimSuffix(filename, extension)] = class
		mu.Unlock()
		return nil
	})
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return -1
	}

	// Adds to the jack.Program the stdlib ABI, this will help resolve stdlib functions w/o adding
	// them to the final executable (they are ignored after the codegen phase). This will enable
	// in future to compile project w/o defining the stdlib and assuming it can be 'linked' if needed.
	if _, enabled := options["stdlib"]; enabled {
		for name, abi := range jack.StandardLibraryABI {
			def := jack.Class{Name: name, Subroutines: utils.OrderedMap[string, jack.Subroutine]{}}
			for fName, subroutine := range abi.Subroutines.Entries() {
				def.Subroutines.Set(fName, subroutine)
			}
			program[name] = def
		}
	}

	if _, enabled := options["typecheck"]; enabled {
		checker := jack.NewTypeChecker(program)
		if _, err := checker.Check(); err != nil {
			fmt.Printf("ERROR: Unable to complete 'typecheck' pass: %s\n", err)
			return -1
		}
	}

	// Instantiate a lowerer to convert the program from Jack to Vm
	lowerer := jack.NewLowerer(program)
	// Lowers the jack.Program to an in-memory/IR representation of its Vm counterpart 'vm.Program'.
	vmProgram, err := lowerer.Lowerer()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'lowering' pass: %s\n", err)
		return -1
	}

	// Now, instantiates a code generator for the Vm (compiled) program
	codegen := vm.NewCodeGenerator(vmProgram)
	// Iterates over each instruction and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	for _, tu := range TUs {
		// Removes root directory and file extension to use as module name
		filename, extension := path.Base(tu), path.Ext(tu)
		module, ok := compiled[strings.TrimSuffix(filename, extension)]
		if !ok {
			fmt.Printf("ERROR: Unable to compile module for class file '%s'\n", tu)
			return -1
		}

		// Only renamed into place once every op has been written successfully, so a failure
		// partway through never leaves a truncated .vm sibling next to the source file.
		outputPath := fmt.Sprintf("%s.vm", strings.TrimSuffix(tu, extension))
		if err := driver.WriteAtomic(outputPath, func(w io.Writer) error {
			for _, ops := range module {
				if _, err := fmt.Fprintf(w, "%s\n", ops); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			fmt.Printf("ERROR: Unable to write output file: %s\n", err)
			return -1
		}
	}

	return 0
}

func main() { os.Exit(JackCompiler.Run(os.Args, os.Stdout)) }
