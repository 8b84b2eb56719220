package lexer

import (
	"fmt"

	"github.com/stellify/stellify/core/ast"
)

// TokenType represents PHP lexical token categories
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Mode switches
	INLINE_HTML // text outside <?php ... ?>
	OPEN_TAG    // <?php or <?=
	CLOSE_TAG   // ?> (acts as a statement terminator)

	// Names and values
	VARIABLE  // $name (Text holds the name without '$')
	IDENT     // identifiers and keywords (keywords are matched case-insensitively by the parser)
	NAME      // qualified names: Foo\Bar, \Foo\Bar
	INT       // 42, 0x2A, 0b101, 0o17, 1_000
	FLOAT     // 1.5, .5, 1e3
	STRING    // 'single quoted' (Text holds the raw literal with quotes)
	DQ_STRING // "double quoted" (raw, may interpolate)
	HEREDOC   // <<<EOT ... EOT (raw)
	CAST      // (int), (string), ... (Text holds the type word)

	// Operators and punctuation (Text holds the symbol)
	SYMBOL
)

var typeNames = map[TokenType]string{
	EOF:         "EOF",
	ILLEGAL:     "ILLEGAL",
	INLINE_HTML: "INLINE_HTML",
	OPEN_TAG:    "OPEN_TAG",
	CLOSE_TAG:   "CLOSE_TAG",
	VARIABLE:    "VARIABLE",
	IDENT:       "IDENT",
	NAME:        "NAME",
	INT:         "INT",
	FLOAT:       "FLOAT",
	STRING:      "STRING",
	DQ_STRING:   "DQ_STRING",
	HEREDOC:     "HEREDOC",
	CAST:        "CAST",
	SYMBOL:      "SYMBOL",
}

func (t TokenType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Position is re-exported from the syntax tree package so tokens and nodes
// share one location type.
type Position = ast.Position

// Token represents a lexical token
type Token struct {
	Type     TokenType
	Text     string
	Position Position
	// End is the offset just past the token's last byte.
	End int
}

// String returns a debugging representation.
func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "EOF"
	case VARIABLE:
		return "$" + t.Text
	}
	return t.Text
}

// Is reports whether t is the SYMBOL sym.
func (t Token) Is(sym string) bool {
	return t.Type == SYMBOL && t.Text == sym
}

// Symbol returns how the token would be quoted in an error message.
func (t Token) Symbol() string {
	switch t.Type {
	case EOF:
		return "end of file"
	case VARIABLE:
		return "'$" + t.Text + "'"
	case INLINE_HTML:
		return "inline HTML"
	case ILLEGAL:
		return t.Text
	}
	return "'" + t.Text + "'"
}
