package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/obastemur/cbcc/internal/cbc"
	"github.com/obastemur/cbcc/pkg/cbcc"
	"github.com/spf13/cobra"
)

var (
	outputFile     string
	disassemble    bool
	compileAsEval  bool
	compileVerbose bool
)

var compileCmd = &cobra.Command{
	Use:   "compile [file]",
	Short: "Compile a script to CBC bytecode",
	Long: `Compile a script to compact bytecode (CBC) and write it as a .cbc file.

Examples:
  # Compile a script to bytecode
  cbcc compile script.js

  # Compile with a custom output file
  cbcc compile script.js -o output.cbc

  # Compile, write the file, and also show disassembled bytecode on stderr
  cbcc compile script.js --disassemble`,
	Args: cobra.ExactArgs(1),
	RunE: compileScript,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: <input>.cbc)")
	compileCmd.Flags().BoolVar(&disassemble, "disassemble", false, "show disassembled bytecode after compilation")
	compileCmd.Flags().BoolVar(&compileAsEval, "eval", false, "compile as an eval body instead of a global program")
	compileCmd.Flags().BoolVarP(&compileVerbose, "verbose", "v", false, "verbose output")
}

func compileScript(_ *cobra.Command, args []string) error {
	filename := args[0]

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	input := string(content)

	if compileVerbose {
		fmt.Fprintf(os.Stderr, "Compiling %s...\n", filename)
	}

	mode := cbcc.Global
	if compileAsEval {
		mode = cbcc.Eval
	}

	code, err := cbcc.Compile(input, filename, mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return fmt.Errorf("compilation failed")
	}

	if compileVerbose {
		fmt.Fprintf(os.Stderr, "Compilation successful\n")
		fmt.Fprintf(os.Stderr, "  Instructions: %d bytes\n", code.CodeSize())
		fmt.Fprintf(os.Stderr, "  Literals: %d\n", len(code.Literals))
		fmt.Fprintf(os.Stderr, "  Identifiers: %d\n", code.IdentEnd)
	}

	if disassemble {
		fmt.Fprintf(os.Stderr, "\n== Disassembled Bytecode ==\n")
		cbc.NewDisassembler(os.Stderr, code).Disassemble()
		fmt.Fprintln(os.Stderr)
	}

	outFile := outputFile
	if outFile == "" {
		ext := filepath.Ext(filename)
		if ext != "" {
			outFile = strings.TrimSuffix(filename, ext) + ".cbc"
		} else {
			outFile = filename + ".cbc"
		}
	}

	data := cbc.Marshal(code)
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", outFile, err)
	}

	if compileVerbose {
		fmt.Fprintf(os.Stderr, "Bytecode written to %s (%d bytes)\n", outFile, len(data))
	} else {
		fmt.Printf("Compiled %s -> %s\n", filename, outFile)
	}

	return nil
}
