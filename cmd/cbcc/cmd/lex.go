package cmd

import (
	"fmt"
	"os"

	"github.com/obastemur/cbcc/internal/lexer"
	"github.com/spf13/cobra"
)

var (
	evalExpr   string
	showPos    bool
	showType   bool
	onlyErrors bool
)

var lexCmd = &cobra.Command{
	Use:   "lex [file]",
	Short: "Tokenize an ECMAScript 5.1 file or expression",
	Long: `Tokenize (lex) a script and print the resulting tokens.

This command is useful for debugging the lexer and understanding how a
script's source text is tokenized ahead of parsing.

Examples:
  # Tokenize a script file
  cbcc lex script.js

  # Tokenize an inline expression
  cbcc lex -e "var x = 42;"

  # Show token types and positions
  cbcc lex --show-type --show-pos script.js

  # Show only errors (illegal tokens)
  cbcc lex --only-errors script.js`,
	Args: cobra.MaximumNArgs(1),
	RunE: lexScript,
}

func init() {
	rootCmd.AddCommand(lexCmd)

	lexCmd.Flags().StringVarP(&evalExpr, "eval", "e", "", "tokenize inline code instead of reading from file")
	lexCmd.Flags().BoolVar(&showPos, "show-pos", false, "show token positions (line:column)")
	lexCmd.Flags().BoolVar(&showType, "show-type", false, "show token type names")
	lexCmd.Flags().BoolVar(&onlyErrors, "only-errors", false, "show only illegal/error tokens")
}

func lexScript(cmd *cobra.Command, args []string) error {
	input, filename, err := readSource(evalExpr, args)
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		fmt.Printf("Tokenizing: %s\n", filename)
		fmt.Printf("Input length: %d bytes\n", len(input))
		fmt.Println("---")
	}

	l := lexer.New(input)

	tokenCount := 0
	errorCount := 0
	mode := lexer.ModePrimary

	for {
		tok := l.NextToken(mode)
		mode = nextScanMode(tok)

		if onlyErrors && tok.Type != lexer.ILLEGAL {
			if tok.Type == lexer.EOF {
				break
			}
			continue
		}

		tokenCount++
		if tok.Type == lexer.ILLEGAL {
			errorCount++
		}

		printToken(tok)

		if tok.Type == lexer.EOF {
			break
		}
	}

	if verbose {
		fmt.Println("---")
		fmt.Printf("Total tokens: %d\n", tokenCount)
		if errorCount > 0 {
			fmt.Printf("Errors: %d\n", errorCount)
		}
	}

	if onlyErrors && errorCount > 0 {
		return fmt.Errorf("found %d illegal token(s)", errorCount)
	}

	return nil
}

// nextScanMode is the same coarse regex-vs-divide heuristic
// compiler.Compiler.expectsPrimaryNext uses, duplicated here since the CLI
// has no Compiler of its own to ask.
func nextScanMode(tok lexer.Token) lexer.ScanMode {
	switch tok.Type {
	case lexer.IDENT, lexer.NUMBER, lexer.STRING, lexer.REGEX,
		lexer.RPAREN, lexer.RBRACK, lexer.RBRACE,
		lexer.PLUSPLUS, lexer.MINUSMINUS,
		lexer.KEYW_THIS, lexer.KEYW_TRUE, lexer.KEYW_FALSE, lexer.KEYW_NULL:
		return lexer.ModeOperator
	default:
		return lexer.ModePrimary
	}
}

func printToken(tok lexer.Token) {
	var output string

	if showType {
		output = fmt.Sprintf("[%-16s]", tok.Type)
	}

	if tok.Type == lexer.EOF {
		output += " EOF"
	} else if tok.Type == lexer.ILLEGAL {
		output += fmt.Sprintf(" ILLEGAL: %q", tok.Literal)
	} else if tok.Literal == "" {
		output += fmt.Sprintf(" %s", tok.Type)
	} else {
		output += fmt.Sprintf(" %q", tok.Literal)
	}

	if showPos {
		output += fmt.Sprintf(" @%d:%d", tok.Pos.Line, tok.Pos.Column)
	}

	fmt.Println(output)
}

// readSource resolves the lex subcommand's "-e expr or file arg"
// convention; it does not read standard input.
func readSource(eval string, args []string) (input string, filename string, err error) {
	switch {
	case eval != "":
		return eval, "<eval>", nil
	case len(args) == 1:
		content, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
		return string(content), args[0], nil
	default:
		return "", "", fmt.Errorf("either provide a file path or use -e flag for inline code")
	}
}
