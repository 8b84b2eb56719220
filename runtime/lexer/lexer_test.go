package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenExpectation struct {
	Type TokenType
	Text string
}

func kinds(toks []Token) []tokenExpectation {
	out := make([]tokenExpectation, len(toks))
	for i, t := range toks {
		out[i] = tokenExpectation{Type: t.Type, Text: t.Text}
	}
	return out
}

func TestModes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tokenExpectation
	}{
		{
			name:  "html around php",
			input: "<p>hi</p>\n<?php $x = 1; ?>\nrest",
			expected: []tokenExpectation{
				{INLINE_HTML, "<p>hi</p>\n"},
				{OPEN_TAG, "<?php "},
				{VARIABLE, "x"},
				{SYMBOL, "="},
				{INT, "1"},
				{SYMBOL, ";"},
				{CLOSE_TAG, "?>"},
				{INLINE_HTML, "rest"},
				{EOF, ""},
			},
		},
		{
			name:  "short echo tag",
			input: "<?= $name ?>",
			expected: []tokenExpectation{
				{OPEN_TAG, "<?="},
				{IDENT, "echo"},
				{VARIABLE, "name"},
				{CLOSE_TAG, "?>"},
				{EOF, ""},
			},
		},
		{
			name:     "no php at all",
			input:    "<?xml version=\"1.0\"?>",
			expected: []tokenExpectation{{INLINE_HTML, "<?xml version=\"1.0\"?>"}, {EOF, ""}},
		},
		{
			name:     "empty input",
			input:    "",
			expected: []tokenExpectation{{EOF, ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(Tokenize([]byte(tt.input)))
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("tokens mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPHPTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tokenExpectation
	}{
		{
			name:  "numbers",
			input: "0x1F 1_000 1.5 .5 1e3 0b101 017",
			expected: []tokenExpectation{
				{INT, "0x1F"}, {INT, "1_000"}, {FLOAT, "1.5"}, {FLOAT, ".5"},
				{FLOAT, "1e3"}, {INT, "0b101"}, {INT, "017"}, {EOF, ""},
			},
		},
		{
			name:  "strings keep their quotes",
			input: `'a\'b' "x $y"`,
			expected: []tokenExpectation{
				{STRING, `'a\'b'`}, {DQ_STRING, `"x $y"`}, {EOF, ""},
			},
		},
		{
			name:  "interpolation braces inside strings",
			input: `"{$a["k"]}"`,
			expected: []tokenExpectation{
				{DQ_STRING, `"{$a["k"]}"`}, {EOF, ""},
			},
		},
		{
			name:  "casts",
			input: "(int) $x ( string )$y (foo)",
			expected: []tokenExpectation{
				{CAST, "int"}, {VARIABLE, "x"}, {CAST, "string"}, {VARIABLE, "y"},
				{SYMBOL, "("}, {IDENT, "foo"}, {SYMBOL, ")"}, {EOF, ""},
			},
		},
		{
			name:  "trivia is skipped",
			input: "// c\n# d\n/* e */ $a #[Attr(1)] $b",
			expected: []tokenExpectation{
				{VARIABLE, "a"}, {VARIABLE, "b"}, {EOF, ""},
			},
		},
		{
			name:  "longest symbol wins",
			input: "$a?->b ?? $c <=> $d **= 2",
			expected: []tokenExpectation{
				{VARIABLE, "a"}, {SYMBOL, "?->"}, {IDENT, "b"}, {SYMBOL, "??"},
				{VARIABLE, "c"}, {SYMBOL, "<=>"}, {VARIABLE, "d"}, {SYMBOL, "**="},
				{INT, "2"}, {EOF, ""},
			},
		},
		{
			name:  "qualified names",
			input: `\App\User Foo\Bar baz`,
			expected: []tokenExpectation{
				{NAME, `\App\User`}, {NAME, `Foo\Bar`}, {IDENT, "baz"}, {EOF, ""},
			},
		},
		{
			name:  "group use prefix",
			input: `App\{A, B}`,
			expected: []tokenExpectation{
				{IDENT, "App"}, {SYMBOL, `\`}, {SYMBOL, "{"}, {IDENT, "A"},
				{SYMBOL, ","}, {IDENT, "B"}, {SYMBOL, "}"}, {EOF, ""},
			},
		},
		{
			name:  "heredoc",
			input: "<<<EOT\n  hello\n  EOT;",
			expected: []tokenExpectation{
				{HEREDOC, "<<<EOT\n  hello\n  EOT"}, {SYMBOL, ";"}, {EOF, ""},
			},
		},
		{
			name:  "unterminated comment",
			input: "$a /* never closed",
			expected: []tokenExpectation{
				{VARIABLE, "a"}, {ILLEGAL, "unterminated comment"}, {EOF, ""},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(NewPHP(tt.input).All())
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("tokens mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPositions(t *testing.T) {
	toks := Tokenize([]byte("<?php\n  $x;"))
	require.Len(t, toks, 4)

	v := toks[1]
	assert.Equal(t, VARIABLE, v.Type)
	assert.Equal(t, Position{Line: 2, Column: 3, Offset: 8}, v.Position)
	assert.Equal(t, 10, v.End)
}

func TestEOFIsSticky(t *testing.T) {
	l := NewPHP("$a")
	assert.Equal(t, VARIABLE, l.Next().Type)
	assert.Equal(t, EOF, l.Next().Type)
	assert.Equal(t, EOF, l.Next().Type)
}

func TestTokenSymbol(t *testing.T) {
	assert.Equal(t, "end of file", Token{Type: EOF}.Symbol())
	assert.Equal(t, "'$x'", Token{Type: VARIABLE, Text: "x"}.Symbol())
	assert.Equal(t, "'{'", Token{Type: SYMBOL, Text: "{"}.Symbol())
	assert.True(t, Token{Type: SYMBOL, Text: "{"}.Is("{"))
	assert.False(t, Token{Type: IDENT, Text: "{"}.Is("{"))
}
