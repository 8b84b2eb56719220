// Package lexer tokenizes PHP source, including the inline HTML around
// <?php ... ?> blocks.
package lexer

import (
	"io"
	"log/slog"
	"strings"

	"github.com/stellify/stellify/core/invariant"
)

// Opt configures a Lexer.
type Opt func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger routes lexer debug output (mode switches, illegal input) to l.
func WithLogger(l *slog.Logger) Opt {
	return func(c *config) {
		c.logger = l
	}
}

// Lexer produces tokens on demand.
type Lexer struct {
	src    string
	pos    int
	line   int
	column int

	inPHP       bool
	pendingEcho bool // "<?=" behaves like "<?php echo"

	logger *slog.Logger
}

// New creates a lexer over src.
func New(src []byte, opts ...Opt) *Lexer {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, o := range opts {
		o(&cfg)
	}
	return &Lexer{
		src:    string(src),
		line:   1,
		column: 1,
		logger: cfg.logger,
	}
}

// NewPHP creates a lexer that starts in PHP mode, for isolated expressions
// that have no open tag.
func NewPHP(src string, opts ...Opt) *Lexer {
	l := New([]byte(src), opts...)
	l.inPHP = true
	return l
}

// Tokenize returns every token of src up to and including EOF.
func Tokenize(src []byte, opts ...Opt) []Token {
	return New(src, opts...).All()
}

// All drains the lexer, returning tokens up to and including EOF.
func (l *Lexer) All() []Token {
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks
		}
	}
}

func (l *Lexer) here() Position {
	return Position{Line: l.line, Column: l.column, Offset: l.pos}
}

// advance moves n bytes forward keeping line and column current.
func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.pos++
	}
}

func (l *Lexer) peek(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *Lexer) token(typ TokenType, text string, start Position) Token {
	return Token{Type: typ, Text: text, Position: start, End: l.pos}
}

// Next returns the next token. After EOF it keeps returning EOF.
func (l *Lexer) Next() Token {
	if l.pendingEcho {
		l.pendingEcho = false
		return Token{Type: IDENT, Text: "echo", Position: l.here(), End: l.pos}
	}
	if !l.inPHP {
		return l.lexHTML()
	}

	if bad, ok := l.skipTrivia(); !ok {
		return bad
	}
	if l.pos >= len(l.src) {
		return l.token(EOF, "", l.here())
	}

	start := l.here()
	before := l.pos
	tok := l.lexPHP(start)
	invariant.Invariant(l.pos > before || tok.Type == EOF, "lexer must advance at offset %d", before)
	return tok
}

func (l *Lexer) lexPHP(start Position) Token {
	c := l.src[l.pos]
	switch {
	case c == '?' && l.peek(1) == '>':
		l.advance(2)
		if l.peek(0) == '\n' {
			l.advance(1)
		} else if l.peek(0) == '\r' && l.peek(1) == '\n' {
			l.advance(2)
		}
		l.inPHP = false
		l.logger.Debug("leave php mode", "line", start.Line)
		return l.token(CLOSE_TAG, "?>", start)

	case c == '$' && isIdentStart(l.peek(1)):
		l.advance(1)
		name := l.scanIdent()
		return l.token(VARIABLE, name, start)

	case isIdentStart(c) || (c == '\\' && isIdentStart(l.peek(1))):
		return l.lexName(start)

	case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
		return l.lexNumber(start)

	case c == '\'':
		return l.lexQuoted(start, '\'', STRING)

	case c == '"':
		return l.lexQuoted(start, '"', DQ_STRING)

	case c == '<' && strings.HasPrefix(l.src[l.pos:], "<<<"):
		if tok, ok := l.lexHeredoc(start); ok {
			return tok
		}

	case c == '(':
		if tok, ok := l.lexCast(start); ok {
			return tok
		}
	}
	return l.lexSymbol(start)
}

func (l *Lexer) lexHTML() Token {
	start := l.here()
	if l.pos >= len(l.src) {
		return l.token(EOF, "", start)
	}

	rest := l.src[l.pos:]
	idx, tagLen, echo := findOpenTag(rest)
	if idx < 0 {
		l.advance(len(rest))
		return l.token(INLINE_HTML, rest, start)
	}
	if idx > 0 {
		l.advance(idx)
		return l.token(INLINE_HTML, rest[:idx], start)
	}

	text := rest[:tagLen]
	l.advance(tagLen)
	l.inPHP = true
	l.pendingEcho = echo
	l.logger.Debug("enter php mode", "line", start.Line, "echo", echo)
	return l.token(OPEN_TAG, text, start)
}

// findOpenTag locates "<?php" (followed by whitespace or end of input) or
// "<?=" in s.
func findOpenTag(s string) (idx, length int, echo bool) {
	from := 0
	for {
		i := strings.Index(s[from:], "<?")
		if i < 0 {
			return -1, 0, false
		}
		i += from
		after := s[i+2:]
		if strings.HasPrefix(after, "=") {
			return i, 3, true
		}
		if len(after) >= 3 && strings.EqualFold(after[:3], "php") {
			if len(after) == 3 {
				return i, 5, false
			}
			if isSpace(after[3]) {
				return i, 6, false
			}
		}
		from = i + 2
	}
}

// skipTrivia skips whitespace, comments and #[...] attributes. It reports an
// ILLEGAL token for an unterminated block comment.
func (l *Lexer) skipTrivia() (Token, bool) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isSpace(c):
			l.advance(1)
		case c == '#' && l.peek(1) == '[':
			l.skipAttribute()
		case c == '#' || (c == '/' && l.peek(1) == '/'):
			l.skipLineComment()
		case c == '/' && l.peek(1) == '*':
			start := l.here()
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				l.advance(len(l.src) - l.pos)
				return l.token(ILLEGAL, "unterminated comment", start), false
			}
			l.advance(end + 4)
		default:
			return Token{}, true
		}
	}
	return Token{}, true
}

// skipLineComment stops at end of line or before a closing tag.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\n' {
			return
		}
		if c == '?' && l.peek(1) == '>' {
			return
		}
		l.advance(1)
	}
}

func (l *Lexer) skipAttribute() {
	depth := 0
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				l.advance(1)
				return
			}
		case '\'', '"':
			l.skipString(c)
			continue
		}
		l.advance(1)
	}
}

// skipString advances past a quoted string starting at the current quote.
func (l *Lexer) skipString(quote byte) bool {
	l.advance(1)
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' {
			l.advance(2)
			continue
		}
		l.advance(1)
		if c == quote {
			return true
		}
	}
	return false
}

func (l *Lexer) scanIdent() string {
	begin := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.advance(1)
	}
	return l.src[begin:l.pos]
}

func (l *Lexer) lexName(start Position) Token {
	begin := l.pos
	qualified := false
	if l.src[l.pos] == '\\' {
		qualified = true
		l.advance(1)
	}
	l.scanIdent()
	for l.peek(0) == '\\' && isIdentStart(l.peek(1)) {
		qualified = true
		l.advance(1)
		l.scanIdent()
	}
	text := l.src[begin:l.pos]
	if qualified {
		return l.token(NAME, text, start)
	}
	return l.token(IDENT, text, start)
}

func (l *Lexer) lexNumber(start Position) Token {
	begin := l.pos
	if l.src[l.pos] == '0' {
		switch l.peek(1) {
		case 'x', 'X':
			l.advance(2)
			l.scanWhile(func(c byte) bool { return isHex(c) || c == '_' })
			return l.token(INT, l.src[begin:l.pos], start)
		case 'b', 'B':
			l.advance(2)
			l.scanWhile(func(c byte) bool { return c == '0' || c == '1' || c == '_' })
			return l.token(INT, l.src[begin:l.pos], start)
		case 'o', 'O':
			l.advance(2)
			l.scanWhile(func(c byte) bool { return (c >= '0' && c <= '7') || c == '_' })
			return l.token(INT, l.src[begin:l.pos], start)
		}
	}

	isFloat := false
	l.scanWhile(func(c byte) bool { return isDigit(c) || c == '_' })
	if l.peek(0) == '.' && isDigit(l.peek(1)) {
		isFloat = true
		l.advance(1)
		l.scanWhile(func(c byte) bool { return isDigit(c) || c == '_' })
	} else if l.peek(0) == '.' && l.peek(1) != '.' && l.peek(1) != '=' && !isIdentStart(l.peek(1)) && l.pos > begin {
		// "1." is a float
		isFloat = true
		l.advance(1)
	}
	if e := l.peek(0); e == 'e' || e == 'E' {
		n := 1
		if s := l.peek(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(l.peek(n)) {
			isFloat = true
			l.advance(n)
			l.scanWhile(isDigit)
		}
	}
	if isFloat {
		return l.token(FLOAT, l.src[begin:l.pos], start)
	}
	return l.token(INT, l.src[begin:l.pos], start)
}

func (l *Lexer) scanWhile(ok func(byte) bool) {
	for l.pos < len(l.src) && ok(l.src[l.pos]) {
		l.advance(1)
	}
}

func (l *Lexer) lexQuoted(start Position, quote byte, typ TokenType) Token {
	begin := l.pos
	l.advance(1)
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\':
			l.advance(2)
			continue
		case c == quote:
			l.advance(1)
			return l.token(typ, l.src[begin:l.pos], start)
		case quote == '"' && c == '{' && l.peek(1) == '$':
			l.skipInterpolation()
			continue
		}
		l.advance(1)
	}
	l.logger.Debug("unterminated string", "line", start.Line)
	return l.token(ILLEGAL, "unterminated string", start)
}

// skipInterpolation skips a {$...} segment inside a double-quoted string,
// which may itself contain quoted strings and braces.
func (l *Lexer) skipInterpolation() {
	depth := 0
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				l.advance(1)
				return
			}
		case '\'', '"':
			l.skipString(c)
			continue
		}
		l.advance(1)
	}
}

func (l *Lexer) lexHeredoc(start Position) (Token, bool) {
	begin := l.pos
	i := l.pos + 3
	for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
		i++
	}
	quote := byte(0)
	if i < len(l.src) && (l.src[i] == '\'' || l.src[i] == '"') {
		quote = l.src[i]
		i++
	}
	idStart := i
	for i < len(l.src) && isIdentPart(l.src[i]) {
		i++
	}
	label := l.src[idStart:i]
	if label == "" || !isIdentStart(label[0]) {
		return Token{}, false
	}
	if quote != 0 {
		if i >= len(l.src) || l.src[i] != quote {
			return Token{}, false
		}
		i++
	}
	if i >= len(l.src) || (l.src[i] != '\n' && l.src[i] != '\r') {
		return Token{}, false
	}

	// The closing label sits on its own line, optionally indented.
	for lineStart := strings.IndexByte(l.src[i:], '\n'); lineStart >= 0; {
		at := i + lineStart + 1
		j := at
		for j < len(l.src) && (l.src[j] == ' ' || l.src[j] == '\t') {
			j++
		}
		if strings.HasPrefix(l.src[j:], label) {
			end := j + len(label)
			if end >= len(l.src) || !isIdentPart(l.src[end]) {
				l.advance(end - begin)
				return l.token(HEREDOC, l.src[begin:end], start), true
			}
		}
		next := strings.IndexByte(l.src[at:], '\n')
		if next < 0 {
			break
		}
		i = at
		lineStart = next
	}
	l.advance(len(l.src) - l.pos)
	return l.token(ILLEGAL, "unterminated heredoc", start), true
}

var castTypes = map[string]bool{
	"int": true, "integer": true, "bool": true, "boolean": true,
	"float": true, "double": true, "real": true, "string": true,
	"array": true, "object": true, "unset": true, "binary": true,
}

func (l *Lexer) lexCast(start Position) (Token, bool) {
	i := l.pos + 1
	for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
		i++
	}
	wordStart := i
	for i < len(l.src) && isAlpha(l.src[i]) {
		i++
	}
	word := strings.ToLower(l.src[wordStart:i])
	for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
		i++
	}
	if i >= len(l.src) || l.src[i] != ')' || !castTypes[word] {
		return Token{}, false
	}
	l.advance(i + 1 - l.pos)
	return l.token(CAST, word, start), true
}

// symbols is ordered longest first so the first prefix match wins.
var symbols = []string{
	"<<=", ">>=", "**=", "...", "<=>", "===", "!==", "??=", "?->",
	"++", "--", "->", "=>", "::", "==", "!=", "<>", "<=", ">=", "&&", "||", "??",
	"+=", "-=", "*=", "/=", ".=", "%=", "&=", "|=", "^=", "<<", ">>", "**",
	"+", "-", "*", "/", "%", "=", "<", ">", "!", ".", "(", ")", "[", "]",
	"{", "}", ",", ";", "?", ":", "&", "|", "^", "~", "@", "$", "`", `\`,
}

func (l *Lexer) lexSymbol(start Position) Token {
	rest := l.src[l.pos:]
	for _, sym := range symbols {
		if strings.HasPrefix(rest, sym) {
			l.advance(len(sym))
			return l.token(SYMBOL, sym, start)
		}
	}
	bad := rest[:1]
	l.advance(1)
	l.logger.Debug("illegal character", "char", bad, "line", start.Line, "column", start.Column)
	return l.token(ILLEGAL, "unexpected character "+quoteByte(bad), start)
}

func quoteByte(s string) string {
	return "'" + s + "'"
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isIdentStart(c byte) bool { return isAlpha(c) || c == '_' || c >= 0x80 }

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
