package parser

import (
	"errors"
	"strconv"
	"strings"

	"github.com/stellify/stellify/core/ast"
	"github.com/stellify/stellify/runtime/lexer"
)

// Binding strength, lowest first.
const (
	precLowest = iota
	precOr     // or
	precXor    // xor
	precAnd    // and
	precAssign // = += ... (right associative)
	precTernary
	precCoalesce // ?? (right associative)
	precLogicalOr
	precLogicalAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precComparison
	precConcat
	precShift
	precAdditive
	precMultiplicative
	precNot
	precInstanceof
	precUnary
	precPow // ** (right associative)
	precNew
)

var binaryPrecedence = map[string]int{
	"??": precCoalesce,
	"||": precLogicalOr,
	"&&": precLogicalAnd,
	"|":  precBitOr,
	"^":  precBitXor,
	"&":  precBitAnd,
	"==": precEquality, "!=": precEquality, "===": precEquality, "!==": precEquality, "<>": precEquality, "<=>": precEquality,
	"<": precComparison, "<=": precComparison, ">": precComparison, ">=": precComparison,
	".":  precConcat,
	"<<": precShift, ">>": precShift,
	"+": precAdditive, "-": precAdditive,
	"*": precMultiplicative, "/": precMultiplicative, "%": precMultiplicative,
	"**": precPow,
}

var keywordPrecedence = map[string]int{
	"or":         precOr,
	"xor":        precXor,
	"and":        precAnd,
	"instanceof": precInstanceof,
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, ".=": true, "%=": true,
	"**=": true, "??=": true, "&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
}

// parseExpression parses a full expression, assignments included.
func (s *state) parseExpression() ast.Expr {
	return s.binaryExpr(precLowest)
}

// precedence returns the binding strength of the next token as an infix
// operator, or 0.
func (s *state) precedence() (string, int) {
	tok := s.peek()
	switch tok.Type {
	case lexer.SYMBOL:
		if tok.Text == "?" {
			return "?", precTernary
		}
		if p, ok := binaryPrecedence[tok.Text]; ok {
			return tok.Text, p
		}
	case lexer.IDENT:
		op := strings.ToLower(tok.Text)
		if p, ok := keywordPrecedence[op]; ok {
			return op, p
		}
	}
	return "", 0
}

func (s *state) binaryExpr(minPrec int) ast.Expr {
	s.exprDepth++
	defer func() { s.exprDepth-- }()
	if s.exprDepth > maxExprDepth {
		s.error("expression nested too deeply", "expression")
		return badExpr(s.peek())
	}

	left := s.unary()
	for !s.panicMode {
		tok := s.peek()

		// An assignment binds to an assignable left side whatever the
		// surrounding precedence: !$a = f() is !($a = f()).
		if tok.Type == lexer.SYMBOL && assignOps[tok.Text] && isAssignable(left) {
			s.advance()
			a := &ast.Assign{Base: pos(tok), Op: tok.Text, Var: left}
			if tok.Text == "=" && s.match("&") {
				a.ByRef = true
			}
			a.Value = s.binaryExpr(precAssign)
			left = a
			continue
		}

		op, prec := s.precedence()
		if prec == 0 || prec < minPrec {
			break
		}
		s.advance()

		switch {
		case op == "?":
			left = s.ternary(tok, left)
		case op == "instanceof":
			left = &ast.Binary{Base: pos(tok), Op: op, Left: left, Right: s.classReference()}
		case op == "??" || op == "**":
			left = &ast.Binary{Base: pos(tok), Op: op, Left: left, Right: s.binaryExpr(prec)}
		default:
			left = &ast.Binary{Base: pos(tok), Op: op, Left: left, Right: s.binaryExpr(prec + 1)}
		}
	}
	return left
}

func (s *state) ternary(tok lexer.Token, cond ast.Expr) ast.Expr {
	t := &ast.Ternary{Base: pos(tok), Cond: cond}
	if !s.match(":") {
		t.Then = s.binaryExpr(precAssign)
		s.consume(":", "ternary expression")
	}
	t.Else = s.binaryExpr(precTernary + 1)
	return t
}

func isAssignable(x ast.Expr) bool {
	switch x := x.(type) {
	case *ast.Variable, *ast.VariableVariable, *ast.PropertyFetch, *ast.StaticPropertyFetch, *ast.ArrayDimFetch:
		return true
	case *ast.ArrayLit:
		return x.Syntax != ast.ArrayLong
	}
	return false
}

// badExpr stands in for an expression that failed to parse.
func badExpr(tok lexer.Token) ast.Expr {
	return &ast.ConstFetch{Base: pos(tok), Name: "null"}
}

var prefixOps = map[string]bool{"!": true, "-": true, "+": true, "~": true, "@": true, "++": true, "--": true, "&": true}

// unary parses prefix operators and then a primary with its postfix chain.
func (s *state) unary() ast.Expr {
	tok := s.peek()
	switch {
	case tok.Type == lexer.SYMBOL && prefixOps[tok.Text]:
		s.advance()
		if tok.Text == "&" {
			// Stray reference marker, as in fn(&$x) call-time references.
			return s.unary()
		}
		operand := precUnary
		if tok.Text == "!" {
			operand = precInstanceof
		}
		return &ast.Unary{Base: pos(tok), Op: tok.Text, X: s.binaryExpr(operand)}
	case tok.Type == lexer.CAST:
		s.advance()
		return &ast.Cast{Base: pos(tok), Type: castType(tok.Text), X: s.binaryExpr(precUnary)}
	}
	return s.postfix(s.primary())
}

func castType(word string) string {
	switch word {
	case "integer":
		return "int"
	case "boolean":
		return "bool"
	case "double", "real":
		return "float"
	case "binary":
		return "string"
	}
	return word
}

func (s *state) primary() ast.Expr {
	tok := s.peek()
	switch tok.Type {
	case lexer.VARIABLE:
		s.advance()
		return &ast.Variable{Base: pos(tok), Name: tok.Text}
	case lexer.INT:
		s.advance()
		return intLiteral(tok)
	case lexer.FLOAT:
		s.advance()
		f, _ := strconv.ParseFloat(strings.ReplaceAll(tok.Text, "_", ""), 64)
		return &ast.FloatLit{Base: pos(tok), Value: f, Raw: tok.Text}
	case lexer.STRING:
		s.advance()
		return &ast.StringLit{Base: pos(tok), Value: unquoteSingle(tok.Text[1 : len(tok.Text)-1]), Raw: tok.Text}
	case lexer.DQ_STRING:
		s.advance()
		body := tok.Text[1 : len(tok.Text)-1]
		if interpolates(body) {
			return &ast.StringLit{Base: pos(tok), Value: body, Raw: tok.Text, Interpolated: true}
		}
		return &ast.StringLit{Base: pos(tok), Value: unquoteDouble(body, '"'), Raw: tok.Text}
	case lexer.HEREDOC:
		s.advance()
		return heredocLiteral(tok)
	case lexer.IDENT, lexer.NAME:
		return s.identExpr()
	case lexer.ILLEGAL:
		s.error(tok.Text, "expression")
		return badExpr(tok)
	case lexer.SYMBOL:
		switch tok.Text {
		case "(":
			s.advance()
			x := s.parseExpression()
			s.consume(")", "parenthesized expression")
			return &ast.Paren{Base: pos(tok), X: x}
		case "[":
			s.advance()
			return &ast.ArrayLit{Base: pos(tok), Syntax: ast.ArrayShort, Items: s.arrayItems("]")}
		case "$":
			return s.variableVariable()
		}
	}
	s.errorExpected("expression", "expression")
	return badExpr(tok)
}

// variableVariable parses $$name and ${expr}.
func (s *state) variableVariable() ast.Expr {
	tok := s.advance()
	if s.match("{") {
		x := s.parseExpression()
		s.consume("}", "variable variable")
		return &ast.VariableVariable{Base: pos(tok), X: x}
	}
	inner := s.peek()
	switch {
	case inner.Type == lexer.VARIABLE:
		s.advance()
		return &ast.VariableVariable{Base: pos(tok), X: &ast.Variable{Base: pos(inner), Name: inner.Text}}
	case inner.Is("$"):
		return &ast.VariableVariable{Base: pos(tok), X: s.variableVariable()}
	}
	s.errorExpected("variable", "variable variable")
	return badExpr(tok)
}

// identExpr parses expressions introduced by an identifier: keyword
// constructs, constants, and names that a call or '::' follows.
func (s *state) identExpr() ast.Expr {
	tok := s.peek()
	next := s.lookAhead(1)
	if tok.Type == lexer.IDENT {
		switch kw := strings.ToLower(tok.Text); kw {
		case "new":
			return s.newExpr()
		case "function":
			return s.closure(false)
		case "fn":
			if next.Is("(") || next.Is("&") {
				return s.closure(false)
			}
		case "static":
			if isKeyword(next, "function") || isKeyword(next, "fn") {
				s.advance()
				return s.closure(true)
			}
		case "isset", "empty", "eval":
			s.advance()
			return &ast.FuncCall{Base: pos(tok), Func: &ast.Name{Base: pos(tok), Value: kw}, Args: s.parseArgs(kw)}
		case "exit", "die":
			s.advance()
			call := &ast.FuncCall{Base: pos(tok), Func: &ast.Name{Base: pos(tok), Value: kw}}
			if s.check("(") {
				call.Args = s.parseArgs(kw)
			}
			return call
		case "print", "clone", "include", "include_once", "require", "require_once", "throw":
			s.advance()
			operand := precAssign
			if kw == "clone" {
				operand = precNew
			}
			return &ast.Unary{Base: pos(tok), Op: kw, X: s.binaryExpr(operand)}
		case "yield":
			s.advance()
			if s.matchKeyword("from") {
				return &ast.Unary{Base: pos(tok), Op: "yield from", X: s.binaryExpr(precAssign)}
			}
			if s.check(";") || s.check(")") || s.check(",") || s.check("]") {
				return &ast.Unary{Base: pos(tok), Op: kw, X: &ast.ConstFetch{Base: pos(tok), Name: "null"}}
			}
			x := s.binaryExpr(precAssign)
			if s.match("=>") {
				x = s.binaryExpr(precAssign)
			}
			return &ast.Unary{Base: pos(tok), Op: kw, X: x}
		case "array":
			if next.Is("(") {
				s.advance()
				s.advance()
				return &ast.ArrayLit{Base: pos(tok), Syntax: ast.ArrayLong, Items: s.arrayItems(")")}
			}
		case "list":
			if next.Is("(") {
				s.advance()
				s.advance()
				return &ast.ArrayLit{Base: pos(tok), Syntax: ast.ArrayList, Items: s.arrayItems(")")}
			}
		case "match":
			if next.Is("(") {
				return s.matchExpr()
			}
		case "true", "false", "null":
			s.advance()
			return &ast.ConstFetch{Base: pos(tok), Name: kw}
		}
	}

	s.advance()
	if next.Is("(") || next.Is("::") {
		return nameExpr(tok)
	}
	return &ast.ConstFetch{Base: pos(tok), Name: strings.TrimPrefix(tok.Text, `\`)}
}

func nameExpr(tok lexer.Token) *ast.Name {
	return &ast.Name{
		Base:           pos(tok),
		Value:          strings.TrimPrefix(tok.Text, `\`),
		FullyQualified: strings.HasPrefix(tok.Text, `\`),
	}
}

// postfix applies member access, calls, indexing and ++/-- to x.
func (s *state) postfix(x ast.Expr) ast.Expr {
	for !s.panicMode {
		tok := s.peek()
		switch {
		case tok.Is("["):
			s.advance()
			fetch := &ast.ArrayDimFetch{Base: pos(tok), X: x}
			if !s.check("]") {
				fetch.Dim = s.parseExpression()
			}
			s.consume("]", "array index")
			x = fetch
		case tok.Is("->") || tok.Is("?->"):
			s.advance()
			x = s.member(tok, x)
		case tok.Is("::"):
			s.advance()
			x = s.staticMember(tok, x)
		case tok.Is("("):
			x = &ast.FuncCall{Base: pos(tok), Func: x, Args: s.parseArgs("function call")}
		case (tok.Is("++") || tok.Is("--")) && isAssignable(x):
			s.advance()
			x = &ast.Unary{Base: pos(tok), Op: tok.Text, X: x, Postfix: true}
		default:
			return x
		}
	}
	return x
}

func (s *state) member(op lexer.Token, x ast.Expr) ast.Expr {
	nullsafe := op.Text == "?->"
	var name string
	var dynamic ast.Expr
	braced := false
	tok := s.peek()
	switch {
	case tok.Type == lexer.IDENT:
		name = s.advance().Text
	case tok.Type == lexer.VARIABLE:
		s.advance()
		dynamic = &ast.Variable{Base: pos(tok), Name: tok.Text}
	case tok.Is("{"):
		s.advance()
		dynamic = s.parseExpression()
		braced = true
		s.consume("}", "dynamic member")
	default:
		s.errorExpected("member name", "member access")
		return x
	}
	if s.check("(") {
		return &ast.MethodCall{Base: pos(op), X: x, Name: name, Dynamic: dynamic, Braced: braced, Nullsafe: nullsafe, Args: s.parseArgs("method call")}
	}
	return &ast.PropertyFetch{Base: pos(op), X: x, Name: name, Dynamic: dynamic, Braced: braced, Nullsafe: nullsafe}
}

func (s *state) staticMember(op lexer.Token, class ast.Expr) ast.Expr {
	tok := s.peek()
	switch tok.Type {
	case lexer.IDENT:
		s.advance()
		if s.check("(") {
			return &ast.StaticCall{Base: pos(op), Class: class, Name: tok.Text, Args: s.parseArgs("static call")}
		}
		return &ast.ClassConstFetch{Base: pos(op), Class: class, Name: tok.Text}
	case lexer.VARIABLE:
		s.advance()
		return &ast.StaticPropertyFetch{Base: pos(op), Class: class, Name: tok.Text}
	}
	s.errorExpected("member name", "static access")
	return class
}

// classReference parses the right side of instanceof.
func (s *state) classReference() ast.Expr {
	if s.checkName() {
		return nameExpr(s.advance())
	}
	return s.binaryExpr(precNew)
}

// parseArgs consumes a parenthesized argument list. A first-class callable
// f(...) yields no arguments.
func (s *state) parseArgs(context string) []*ast.Arg {
	s.consume("(", context)
	var args []*ast.Arg
	if s.check("...") && s.lookAhead(1).Is(")") {
		s.advance()
		s.advance()
		return nil
	}
	for !s.check(")") && !s.isAtEnd() && !s.panicMode {
		tok := s.peek()
		a := &ast.Arg{Base: pos(tok)}
		if tok.Type == lexer.IDENT && s.lookAhead(1).Is(":") {
			a.Name = tok.Text
			s.advance()
			s.advance()
		}
		a.Unpack = s.match("...")
		a.Value = s.parseExpression()
		args = append(args, a)
		if !s.match(",") {
			break
		}
	}
	s.consume(")", context)
	return args
}

// arrayItems parses the items of an array literal up to close. Leading or
// doubled commas produce nil items (skipped destructuring slots).
func (s *state) arrayItems(close string) []*ast.ArrayItem {
	var items []*ast.ArrayItem
	for !s.check(close) && !s.isAtEnd() && !s.panicMode {
		if s.match(",") {
			items = append(items, nil)
			continue
		}
		tok := s.peek()
		item := &ast.ArrayItem{Base: pos(tok)}
		if s.match("...") {
			item.Unpack = true
		}
		item.ByRef = s.match("&")
		v := s.parseExpression()
		if s.match("=>") {
			item.Key = v
			item.ByRef = s.match("&")
			v = s.parseExpression()
		}
		item.Value = v
		items = append(items, item)
		if !s.match(",") {
			break
		}
	}
	s.consume(close, "array literal")
	return items
}

func (s *state) newExpr() ast.Expr {
	tok := s.advance()
	n := &ast.New{Base: pos(tok)}

	if s.checkKeyword("class") || (s.checkKeyword("readonly") && isKeyword(s.lookAhead(1), "class")) {
		s.matchKeyword("readonly")
		s.advance()
		if s.check("(") {
			n.Args = s.parseArgs("anonymous class")
		}
		if s.matchKeyword("extends") {
			s.name("extends clause")
		}
		if s.matchKeyword("implements") {
			s.parseNameList("implements clause")
		}
		s.parseClassBody("anonymous class body")
		return n
	}

	switch next := s.peek(); {
	case s.checkName():
		n.Class = nameExpr(s.advance())
	case next.Type == lexer.VARIABLE:
		s.advance()
		var class ast.Expr = &ast.Variable{Base: pos(next), Name: next.Text}
		// new $this->factory, new $classes['x'], new $a::$b
		for !s.panicMode {
			t := s.peek()
			switch {
			case t.Is("->") || t.Is("?->"):
				s.advance()
				class = &ast.PropertyFetch{Base: pos(t), X: class, Name: s.identifier("new expression"), Nullsafe: t.Text == "?->"}
				continue
			case t.Is("::") && s.lookAhead(1).Type == lexer.VARIABLE:
				s.advance()
				class = &ast.StaticPropertyFetch{Base: pos(t), Class: class, Name: s.advance().Text}
				continue
			case t.Is("["):
				s.advance()
				class = &ast.ArrayDimFetch{Base: pos(t), X: class, Dim: s.parseExpression()}
				s.consume("]", "new expression")
				continue
			}
			break
		}
		n.Class = class
	case next.Is("("):
		s.advance()
		x := s.parseExpression()
		s.consume(")", "new expression")
		n.Class = &ast.Paren{Base: pos(next), X: x}
	default:
		s.errorExpected("class name", "new expression")
		return badExpr(tok)
	}
	if s.check("(") {
		n.Args = s.parseArgs("new expression")
	}
	return n
}

func (s *state) closure(static bool) ast.Expr {
	tok := s.advance()
	c := &ast.Closure{Base: pos(tok), Static: static, Arrow: strings.EqualFold(tok.Text, "fn")}
	s.match("&")
	c.Params = s.parseParams("closure parameters")
	if !c.Arrow && s.matchKeyword("use") {
		s.consume("(", "closure use list")
		for !s.check(")") && !s.isAtEnd() && !s.panicMode {
			u := ast.ClosureUse{ByRef: s.match("&")}
			u.Name = s.variableName("closure use list")
			c.Uses = append(c.Uses, u)
			if !s.match(",") {
				break
			}
		}
		s.consume(")", "closure use list")
	}
	if s.match(":") {
		c.ReturnType = s.parseType("closure return type")
	}
	if c.Arrow {
		s.consume("=>", "arrow function")
		c.Expr = s.binaryExpr(precAssign)
		return c
	}
	c.Body = s.parseBlock("closure body")
	return c
}

func (s *state) matchExpr() ast.Expr {
	tok := s.advance()
	m := &ast.Match{Base: pos(tok), Subject: s.parseParenCond("match subject")}
	s.consume("{", "match arms")
	for !s.check("}") && !s.isAtEnd() && !s.panicMode {
		arm := &ast.MatchArm{}
		if s.matchKeyword("default") {
			s.match(",")
		} else {
			for !s.check("=>") && !s.panicMode {
				arm.Conds = append(arm.Conds, s.parseExpression())
				if !s.match(",") {
					break
				}
			}
		}
		s.consume("=>", "match arm")
		arm.Body = s.parseExpression()
		m.Arms = append(m.Arms, arm)
		if !s.match(",") {
			break
		}
	}
	s.consume("}", "match arms")
	return m
}

// intLiteral converts an integer token; values past int64 become floats.
func intLiteral(tok lexer.Token) ast.Expr {
	raw := strings.ReplaceAll(tok.Text, "_", "")
	digits, base := raw, 10
	switch {
	case len(raw) > 1 && (raw[1] == 'x' || raw[1] == 'X'):
		digits, base = raw[2:], 16
	case len(raw) > 1 && (raw[1] == 'b' || raw[1] == 'B'):
		digits, base = raw[2:], 2
	case len(raw) > 1 && (raw[1] == 'o' || raw[1] == 'O'):
		digits, base = raw[2:], 8
	case len(raw) > 1 && raw[0] == '0':
		digits, base = raw[1:], 8
	}
	v, err := strconv.ParseInt(digits, base, 64)
	if err == nil {
		return &ast.IntLit{Base: pos(tok), Value: v, Raw: tok.Text}
	}
	var f float64
	if errors.Is(err, strconv.ErrRange) {
		if u, uerr := strconv.ParseUint(digits, base, 64); uerr == nil {
			f = float64(u)
		} else {
			f, _ = strconv.ParseFloat(digits, 64)
		}
	}
	return &ast.FloatLit{Base: pos(tok), Value: f, Raw: tok.Text}
}

func unquoteSingle(body string) string {
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) && (body[i+1] == '\\' || body[i+1] == '\'') {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String()
}

// interpolates reports whether a double-quoted or heredoc body contains
// variable interpolation.
func interpolates(body string) bool {
	for i := 0; i < len(body)-1; i++ {
		switch body[i] {
		case '\\':
			i++
		case '$':
			if c := body[i+1]; c == '{' || c == '_' || (c|0x20 >= 'a' && c|0x20 <= 'z') || c >= 0x80 {
				return true
			}
		case '{':
			if body[i+1] == '$' {
				return true
			}
		}
	}
	return false
}

// unquoteDouble decodes the escape sequences of a double-quoted or heredoc
// body. Unknown escapes are kept verbatim.
func unquoteDouble(body string, quote byte) string {
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'v':
			b.WriteByte('\v')
		case 'e':
			b.WriteByte(0x1b)
		case 'f':
			b.WriteByte('\f')
		case '\\', '$':
			b.WriteByte(e)
		case 'x':
			j := i + 1
			for j < len(body) && j < i+3 && isHexDigit(body[j]) {
				j++
			}
			if j == i+1 {
				b.WriteString(`\x`)
				continue
			}
			v, _ := strconv.ParseUint(body[i+1:j], 16, 8)
			b.WriteByte(byte(v))
			i = j - 1
		case 'u':
			if i+1 < len(body) && body[i+1] == '{' {
				if end := strings.IndexByte(body[i:], '}'); end > 0 {
					if v, err := strconv.ParseUint(body[i+2:i+end], 16, 32); err == nil {
						b.WriteRune(rune(v))
						i += end
						continue
					}
				}
			}
			b.WriteString(`\u`)
		default:
			switch {
			case e == quote:
				b.WriteByte(e)
			case e >= '0' && e <= '7':
				j := i
				for j < len(body) && j < i+3 && body[j] >= '0' && body[j] <= '7' {
					j++
				}
				v, _ := strconv.ParseUint(body[i:j], 8, 16)
				b.WriteByte(byte(v))
				i = j - 1
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
		}
	}
	return b.String()
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c|0x20 >= 'a' && c|0x20 <= 'f')
}

// heredocLiteral extracts the body of a heredoc or nowdoc, removing the
// closing label's indentation from every line.
func heredocLiteral(tok lexer.Token) ast.Expr {
	raw := tok.Text
	header, rest, _ := strings.Cut(raw, "\n")
	nowdoc := strings.Contains(header, "'")

	lines := strings.Split(rest, "\n")
	closing := lines[len(lines)-1]
	indent := len(closing) - len(strings.TrimLeft(closing, " \t"))
	lines = lines[:len(lines)-1]
	for i, l := range lines {
		l = strings.TrimSuffix(l, "\r")
		if len(l) >= indent {
			l = l[indent:]
		} else {
			l = strings.TrimLeft(l, " \t")
		}
		lines[i] = l
	}
	body := strings.Join(lines, "\n")

	lit := &ast.StringLit{Base: pos(tok), Raw: raw}
	switch {
	case nowdoc:
		lit.Value = body
	case interpolates(body):
		lit.Value = body
		lit.Interpolated = true
	default:
		lit.Value = unquoteDouble(body, 0)
	}
	return lit
}
