// Package parser turns PHP source into the syntax tree of package ast.
//
// It is a hand-written Pratt parser covering the PHP used by Laravel
// applications: namespaces, classes, interfaces, traits and enums, functions
// and closures, control flow in brace and alternative syntax, and the full
// expression grammar. Any syntax error fails the whole unit; all errors found
// before giving up are returned together as an ErrorList.
package parser

import (
	"io"
	"log/slog"
	"strings"

	"github.com/stellify/stellify/core/ast"
	"github.com/stellify/stellify/runtime/lexer"
)

// Opt configures a Parser.
type Opt func(*config)

type config struct {
	logger    *slog.Logger
	maxErrors int
}

// WithLogger sets the logger used for parser and lexer debug output.
func WithLogger(l *slog.Logger) Opt {
	return func(c *config) {
		c.logger = l
	}
}

// WithMaxErrors caps how many errors are collected before parsing stops.
func WithMaxErrors(n int) Opt {
	return func(c *config) {
		if n > 0 {
			c.maxErrors = n
		}
	}
}

// Parser parses PHP files and isolated expressions. It holds only
// configuration and is safe for concurrent use.
type Parser struct {
	cfg config
}

// New creates a Parser.
func New(opts ...Opt) *Parser {
	cfg := config{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxErrors: maxParseErrors,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Parser{cfg: cfg}
}

// ParseFile parses a complete PHP unit.
func (p *Parser) ParseFile(path string, src []byte) (*ast.File, error) {
	toks := lexer.Tokenize(src, lexer.WithLogger(p.cfg.logger))
	s := newState(p.cfg, path, toks)
	stmts := s.parseTopLevel()
	if len(s.errors) > 0 {
		p.cfg.logger.Debug("parse failed", "path", path, "errors", len(s.errors))
		return nil, s.errors
	}
	return &ast.File{Path: path, Stmts: stmts}, nil
}

// ParseExpr parses src as a single PHP expression with no open tag, as found
// inside template directives. A trailing semicolon is allowed.
func (p *Parser) ParseExpr(src string) (ast.Expr, error) {
	toks := lexer.NewPHP(src, lexer.WithLogger(p.cfg.logger)).All()
	s := newState(p.cfg, "", toks)
	if s.isAtEnd() {
		s.error("empty expression", "expression")
		return nil, s.errors
	}
	x := s.parseExpression()
	s.match(";")
	if !s.isAtEnd() && len(s.errors) == 0 {
		s.errorAt(s.peek(), "unexpected "+s.peek().Symbol()+" after expression", "expression")
	}
	if len(s.errors) > 0 {
		return nil, s.errors
	}
	return x, nil
}

// maxParseErrors limits error cascades.
const maxParseErrors = 50

// maxExprDepth guards against stack exhaustion on pathological nesting.
const maxExprDepth = 200

// state is the per-parse cursor over the token slice.
type state struct {
	cfg       config
	filename  string
	tokens    []lexer.Token
	current   int
	errors    ErrorList
	panicMode bool
	exprDepth int
}

func newState(cfg config, filename string, toks []lexer.Token) *state {
	// Open tags carry no syntax; drop them up front.
	filtered := toks[:0:0]
	for _, t := range toks {
		if t.Type != lexer.OPEN_TAG {
			filtered = append(filtered, t)
		}
	}
	return &state{cfg: cfg, filename: filename, tokens: filtered}
}

func (s *state) isAtEnd() bool {
	return s.peek().Type == lexer.EOF
}

func (s *state) peek() lexer.Token {
	return s.tokens[s.current]
}

func (s *state) lookAhead(n int) lexer.Token {
	if s.current+n >= len(s.tokens) {
		return s.tokens[len(s.tokens)-1]
	}
	return s.tokens[s.current+n]
}

func (s *state) previous() lexer.Token {
	if s.current == 0 {
		return s.tokens[0]
	}
	return s.tokens[s.current-1]
}

func (s *state) advance() lexer.Token {
	if !s.isAtEnd() {
		s.current++
	}
	return s.previous()
}

// check reports whether the next token is the symbol sym.
func (s *state) check(sym string) bool {
	return s.peek().Is(sym)
}

func (s *state) checkType(t lexer.TokenType) bool {
	return s.peek().Type == t
}

// checkKeyword reports whether the next token is the keyword kw (PHP
// keywords are case-insensitive).
func (s *state) checkKeyword(kw string) bool {
	return isKeyword(s.peek(), kw)
}

func isKeyword(t lexer.Token, kw string) bool {
	return t.Type == lexer.IDENT && strings.EqualFold(t.Text, kw)
}

func (s *state) match(syms ...string) bool {
	for _, sym := range syms {
		if s.check(sym) {
			s.advance()
			return true
		}
	}
	return false
}

func (s *state) matchKeyword(kws ...string) bool {
	for _, kw := range kws {
		if s.checkKeyword(kw) {
			s.advance()
			return true
		}
	}
	return false
}

// consume expects the symbol sym.
func (s *state) consume(sym, context string) lexer.Token {
	if s.check(sym) {
		return s.advance()
	}
	s.errorExpected("'"+sym+"'", context)
	return lexer.Token{}
}

func (s *state) consumeKeyword(kw, context string) {
	if s.matchKeyword(kw) {
		return
	}
	s.errorExpected("'"+kw+"'", context)
}

// endStatement accepts ';' or a closing tag, which terminates statements too.
func (s *state) endStatement(context string) {
	if s.match(";") {
		return
	}
	if s.checkType(lexer.CLOSE_TAG) {
		s.advance()
		return
	}
	if s.isAtEnd() && s.filename == "" {
		return
	}
	s.errorExpected("';'", context)
}

// identifier consumes any identifier, keywords included (PHP allows keywords
// as method, property and constant names).
func (s *state) identifier(context string) string {
	if s.checkType(lexer.IDENT) {
		return s.advance().Text
	}
	s.errorExpected("identifier", context)
	return ""
}

func (s *state) variableName(context string) string {
	if s.checkType(lexer.VARIABLE) {
		return s.advance().Text
	}
	s.errorExpected("variable", context)
	return ""
}

// name consumes a possibly qualified name and returns it without a leading
// backslash.
func (s *state) name(context string) string {
	switch s.peek().Type {
	case lexer.IDENT:
		return s.advance().Text
	case lexer.NAME:
		return strings.TrimPrefix(s.advance().Text, `\`)
	}
	s.errorExpected("name", context)
	return ""
}

func (s *state) checkName() bool {
	return s.checkType(lexer.IDENT) || s.checkType(lexer.NAME)
}

func (s *state) errorExpected(expected, context string) {
	tok := s.peek()
	s.report(ParseError{
		Filename: s.filename,
		Position: tok.Position,
		Message:  "expected " + expected + ", got " + tok.Symbol(),
		Context:  context,
		Expected: expected,
		Got:      tok.Symbol(),
	})
}

func (s *state) error(message, context string) {
	s.errorAt(s.peek(), message, context)
}

func (s *state) errorAt(tok lexer.Token, message, context string) {
	s.report(ParseError{
		Filename: s.filename,
		Position: tok.Position,
		Message:  message,
		Context:  context,
		Got:      tok.Symbol(),
	})
}

func (s *state) report(e ParseError) {
	if s.panicMode {
		return
	}
	s.panicMode = true
	if n := len(s.errors); n > 0 {
		last := s.errors[n-1]
		if last.Position == e.Position {
			return
		}
	}
	if len(s.errors) >= s.cfg.maxErrors {
		return
	}
	if tok := s.peek(); tok.Type == lexer.ILLEGAL {
		e.Message = tok.Text
		e.Suggestion = ""
	}
	s.errors = append(s.errors, e)
}

// synchronize skips to a likely statement boundary after an error.
func (s *state) synchronize() {
	s.panicMode = false
	if !s.isAtEnd() {
		s.advance()
	}
	for !s.isAtEnd() {
		prev := s.previous()
		if prev.Is(";") || prev.Is("}") || prev.Type == lexer.CLOSE_TAG {
			return
		}
		tok := s.peek()
		if tok.Type == lexer.IDENT {
			switch strings.ToLower(tok.Text) {
			case "class", "interface", "trait", "abstract", "final", "function",
				"public", "protected", "private", "if", "for", "foreach", "while",
				"do", "return", "try", "throw", "namespace", "use", "echo", "switch":
				return
			}
		}
		s.advance()
	}
}

func (s *state) tooManyErrors() bool {
	return len(s.errors) >= s.cfg.maxErrors
}

func pos(t lexer.Token) ast.Base {
	return ast.Base{At: t.Position}
}
