package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "cbcc",
	Short: "Compact-bytecode compiler for ECMAScript 5.1",
	Long: `cbcc is a single-pass ECMAScript 5.1 parser and compact bytecode (CBC)
emitter.

It has no interpreter of its own: it tokenizes, parses, and emits a
CompiledCode blob (opcode stream, literal pool, line table) that a separate
VM can execute. This tool exists to drive and inspect that pipeline:
tokenize a script, or compile one straight to bytecode and disassemble it.`,
	Version: Version,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
}
