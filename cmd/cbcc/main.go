// Command cbcc is the developer-facing CLI for the compiler: lex, parse
// (compile-and-summarize), and compile subcommands, grounded on the
// teacher's cmd/dwscript entry point.
package main

import (
	"fmt"
	"os"

	"github.com/obastemur/cbcc/cmd/cbcc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
