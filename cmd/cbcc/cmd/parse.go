package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/obastemur/cbcc/internal/cbc"
	"github.com/obastemur/cbcc/pkg/cbcc"
	"github.com/spf13/cobra"
)

var (
	parseExpr   string
	parseDisasm bool
	parseAsEval bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a script and report what the compiler produced",
	Long: `Parse ECMAScript 5.1 source and report a summary of what the
single-pass compiler emitted for it: strict-mode status, identifier/literal
pool sizes, and instruction count.

This compiler has no separate AST stage to dump (spec.md §1: parsing and
bytecode emission happen in one pass) -- "parse" here means "compile and
report", not "build and print a syntax tree". Use --disassemble to see the
actual instruction stream.

If no file is provided, reads from stdin. Use -e to parse a single
expression from the command line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseExpr, "expression", "e", "", "parse an expression from the command line")
	parseCmd.Flags().BoolVar(&parseDisasm, "disassemble", false, "dump the emitted instruction stream")
	parseCmd.Flags().BoolVar(&parseAsEval, "eval", false, "parse as an eval body instead of a global program")
}

func runParse(_ *cobra.Command, args []string) error {
	var input string
	filename := "<stdin>"

	switch {
	case parseExpr != "":
		input = parseExpr
		filename = "<expression>"
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("error reading file: %w", err)
		}
		input = string(data)
		filename = args[0]
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("error reading stdin: %w", err)
		}
		input = string(data)
	}

	mode := cbcc.Global
	if parseAsEval {
		mode = cbcc.Eval
	}

	code, err := cbcc.Compile(input, filename, mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return fmt.Errorf("parsing failed")
	}

	fmt.Printf("OK: %s\n", filename)
	fmt.Printf("  strict mode:  %v\n", code.StatusFlags.Has(cbc.StatusStrictMode))
	fmt.Printf("  instructions: %d bytes\n", code.CodeSize())
	fmt.Printf("  identifiers:  %d\n", code.IdentEnd)
	fmt.Printf("  literals:     %d\n", len(code.Literals)-int(code.IdentEnd))

	if parseDisasm {
		fmt.Println()
		fmt.Print(cbcc.Disassemble(code))
	}

	return nil
}
