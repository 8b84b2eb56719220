package parser

import (
	"strings"

	"github.com/stellify/stellify/core/ast"
	"github.com/stellify/stellify/runtime/lexer"
)

// parseTopLevel parses a whole file. Statements following a semicolon-form
// namespace declaration are attached to it.
func (s *state) parseTopLevel() []ast.Stmt {
	var out []ast.Stmt
	var ns *ast.Namespace
	for !s.isAtEnd() && !s.tooManyErrors() {
		st := s.parseStatement()
		if s.panicMode {
			s.synchronize()
			continue
		}
		if st == nil {
			continue
		}
		if n, ok := st.(*ast.Namespace); ok {
			out = append(out, n)
			ns = nil
			if !n.Braced {
				ns = n
			}
			continue
		}
		if ns != nil {
			ns.Stmts = append(ns.Stmts, st)
			continue
		}
		out = append(out, st)
	}
	return out
}

// parseStatements parses until one of the terminator keywords or symbols
// (or end of input) is next.
func (s *state) parseStatements(until func() bool) []ast.Stmt {
	var out []ast.Stmt
	for !s.isAtEnd() && !until() && !s.tooManyErrors() {
		st := s.parseStatement()
		if s.panicMode {
			s.synchronize()
			continue
		}
		if st != nil {
			out = append(out, st)
		}
	}
	return out
}

func (s *state) parseBlock(context string) []ast.Stmt {
	s.consume("{", context)
	if s.panicMode {
		return nil
	}
	body := s.parseStatements(func() bool { return s.check("}") })
	s.consume("}", context)
	return body
}

// parseBody parses a loop or branch body: a block, a single statement, or
// (when alt is non-empty and a ':' follows) alternative syntax terminated by
// one of the alt keywords.
func (s *state) parseBody(context string, alt ...string) ([]ast.Stmt, bool) {
	if len(alt) > 0 && s.match(":") {
		body := s.parseStatements(func() bool {
			for _, kw := range alt {
				if s.checkKeyword(kw) {
					return true
				}
			}
			return false
		})
		return body, true
	}
	if s.check("{") {
		return s.parseBlock(context), false
	}
	st := s.parseStatement()
	if st == nil {
		return nil, false
	}
	return []ast.Stmt{st}, false
}

func (s *state) parseStatement() ast.Stmt {
	tok := s.peek()
	switch tok.Type {
	case lexer.INLINE_HTML:
		s.advance()
		return &ast.InlineHTML{Base: pos(tok), Text: tok.Text}
	case lexer.CLOSE_TAG:
		s.advance()
		return nil
	case lexer.ILLEGAL:
		s.error(tok.Text, "statement")
		return nil
	case lexer.SYMBOL:
		switch tok.Text {
		case ";":
			s.advance()
			return nil
		case "{":
			return &ast.Block{Base: pos(tok), Stmts: s.parseBlock("block")}
		}
	case lexer.IDENT:
		if st, ok := s.parseKeywordStatement(tok); ok {
			return st
		}
	}

	x := s.parseExpression()
	if s.panicMode {
		return nil
	}
	s.endStatement("expression statement")
	return &ast.ExprStmt{Base: pos(tok), X: x}
}

// parseKeywordStatement handles statements introduced by a keyword. It
// returns ok=false when the identifier starts an expression instead.
func (s *state) parseKeywordStatement(tok lexer.Token) (ast.Stmt, bool) {
	next := s.lookAhead(1)
	switch strings.ToLower(tok.Text) {
	case "namespace":
		if next.Is("(") {
			return nil, false
		}
		return s.parseNamespace(), true
	case "use":
		return s.parseUse(), true
	case "abstract", "final", "readonly":
		if next.Type == lexer.IDENT {
			return s.parseClassLike(), true
		}
	case "class", "interface", "trait":
		if next.Type == lexer.IDENT {
			return s.parseClassLike(), true
		}
	case "enum":
		if next.Type == lexer.IDENT {
			return s.parseClassLike(), true
		}
	case "function":
		if next.Type == lexer.IDENT || (next.Is("&") && s.lookAhead(2).Type == lexer.IDENT) {
			return s.parseFunction(), true
		}
	case "if":
		return s.parseIf(), true
	case "while":
		return s.parseWhile(), true
	case "do":
		return s.parseDoWhile(), true
	case "for":
		return s.parseFor(), true
	case "foreach":
		return s.parseForeach(), true
	case "switch":
		return s.parseSwitch(), true
	case "return":
		s.advance()
		r := &ast.Return{Base: pos(tok)}
		if !s.check(";") && !s.checkType(lexer.CLOSE_TAG) {
			r.X = s.parseExpression()
		}
		s.endStatement("return statement")
		return r, true
	case "echo":
		s.advance()
		e := &ast.Echo{Base: pos(tok), Exprs: s.parseExprList("echo statement")}
		s.endStatement("echo statement")
		return e, true
	case "try":
		return s.parseTry(), true
	case "throw":
		s.advance()
		t := &ast.Throw{Base: pos(tok), X: s.parseExpression()}
		s.endStatement("throw statement")
		return t, true
	case "break", "continue":
		s.advance()
		o := &ast.Other{Base: pos(tok), Keyword: strings.ToLower(tok.Text)}
		if s.checkType(lexer.INT) {
			o.Exprs = []ast.Expr{s.parseExpression()}
		}
		s.endStatement(o.Keyword + " statement")
		return o, true
	case "global":
		s.advance()
		o := &ast.Other{Base: pos(tok), Keyword: "global", Exprs: s.parseExprList("global statement")}
		s.endStatement("global statement")
		return o, true
	case "static":
		if next.Type == lexer.VARIABLE {
			s.advance()
			o := &ast.Other{Base: pos(tok), Keyword: "static", Exprs: s.parseExprList("static declaration")}
			s.endStatement("static declaration")
			return o, true
		}
	case "unset":
		if next.Is("(") {
			s.advance()
			args := s.parseArgs("unset")
			o := &ast.Other{Base: pos(tok), Keyword: "unset"}
			for _, a := range args {
				o.Exprs = append(o.Exprs, a.Value)
			}
			s.endStatement("unset statement")
			return o, true
		}
	case "declare":
		s.advance()
		s.consume("(", "declare")
		for !s.isAtEnd() && !s.check(")") && !s.panicMode {
			s.advance()
		}
		s.consume(")", "declare")
		if !s.match(";") {
			s.parseBody("declare", "enddeclare")
			if s.matchKeyword("enddeclare") {
				s.endStatement("declare")
			}
		}
		return &ast.Other{Base: pos(tok), Keyword: "declare"}, true
	case "const":
		s.advance()
		c := &ast.ClassConst{Base: pos(tok)}
		c.Items = s.parseConstItems()
		s.endStatement("const declaration")
		return c, true
	case "goto":
		s.advance()
		s.identifier("goto")
		s.endStatement("goto")
		return &ast.Other{Base: pos(tok), Keyword: "goto"}, true
	}
	if next.Is(":") && !s.lookAhead(2).Is(":") && isLabelCandidate(tok) {
		s.advance()
		s.advance()
		return &ast.Other{Base: pos(tok), Keyword: "label"}, true
	}
	return nil, false
}

func isLabelCandidate(tok lexer.Token) bool {
	switch strings.ToLower(tok.Text) {
	case "default", "case", "else", "parent", "self", "static":
		return false
	}
	return true
}

func (s *state) parseNamespace() ast.Stmt {
	tok := s.advance()
	ns := &ast.Namespace{Base: pos(tok)}
	if s.checkName() {
		ns.Name = s.name("namespace declaration")
	}
	if s.check("{") {
		ns.Braced = true
		ns.Stmts = s.parseBlock("namespace body")
		return ns
	}
	s.endStatement("namespace declaration")
	return ns
}

func (s *state) parseUse() ast.Stmt {
	tok := s.advance()
	u := &ast.Use{Base: pos(tok)}
	if s.checkKeyword("function") || s.checkKeyword("const") {
		u.Kind = strings.ToLower(s.advance().Text)
	}
	for !s.panicMode {
		name := s.name("use declaration")
		if s.check("\\") && s.lookAhead(1).Is("{") {
			// Group use: use App\{Foo, Bar as Baz};
			prefix := name
			s.advance()
			s.advance()
			for !s.check("}") && !s.panicMode {
				item := ast.UseItem{Name: prefix + `\` + s.name("group use")}
				if s.matchKeyword("as") {
					item.Alias = s.identifier("use alias")
				}
				u.Items = append(u.Items, item)
				if !s.match(",") {
					break
				}
			}
			s.consume("}", "group use")
		} else {
			item := ast.UseItem{Name: name}
			if s.matchKeyword("as") {
				item.Alias = s.identifier("use alias")
			}
			u.Items = append(u.Items, item)
		}
		if !s.match(",") {
			break
		}
	}
	s.endStatement("use declaration")
	return u
}

func (s *state) parseNameList(context string) []string {
	var names []string
	for !s.panicMode {
		names = append(names, s.name(context))
		if !s.match(",") {
			break
		}
	}
	return names
}

func (s *state) parseClassLike() ast.Stmt {
	start := s.peek()
	c := &ast.ClassLike{Base: pos(start)}
	for s.checkKeyword("abstract") || s.checkKeyword("final") || s.checkKeyword("readonly") {
		c.Modifiers = append(c.Modifiers, strings.ToLower(s.advance().Text))
	}
	kw := s.advance()
	c.Kind = ast.ClassKind(strings.ToLower(kw.Text))
	switch c.Kind {
	case ast.KindClass, ast.KindInterface, ast.KindTrait, ast.KindEnum:
	default:
		s.errorAt(kw, "expected class, interface, trait or enum", "declaration")
		return nil
	}
	c.Name = s.identifier(string(c.Kind) + " declaration")

	if c.Kind == ast.KindEnum && s.match(":") {
		s.parseType("enum backing type")
	}
	if s.matchKeyword("extends") {
		c.Extends = s.parseNameList("extends clause")
	}
	if s.matchKeyword("implements") {
		c.Implements = s.parseNameList("implements clause")
	}
	c.Members = s.parseClassBody(string(c.Kind) + " body")
	return c
}

func (s *state) parseClassBody(context string) []ast.Stmt {
	s.consume("{", context)
	var members []ast.Stmt
	for !s.isAtEnd() && !s.check("}") && !s.tooManyErrors() {
		m := s.parseMember()
		if s.panicMode {
			s.synchronize()
			continue
		}
		if m != nil {
			members = append(members, m)
		}
	}
	s.consume("}", context)
	return members
}

var memberModifiers = map[string]bool{
	"public": true, "protected": true, "private": true, "static": true,
	"abstract": true, "final": true, "readonly": true, "var": true,
}

func (s *state) parseMember() ast.Stmt {
	start := s.peek()
	if s.match(";") {
		return nil
	}

	var visibility string
	var static, abstract, final, readonly bool
	for s.checkType(lexer.IDENT) && memberModifiers[strings.ToLower(s.peek().Text)] {
		// "static" followed by '::' or '(' is not a modifier, but neither is
		// valid at member level anyway.
		switch m := strings.ToLower(s.advance().Text); m {
		case "public", "protected", "private":
			visibility = m
		case "static":
			static = true
		case "abstract":
			abstract = true
		case "final":
			final = true
		case "readonly":
			readonly = true
		case "var":
			visibility = "public"
		}
	}

	switch {
	case s.checkKeyword("use"):
		tok := s.advance()
		tu := &ast.TraitUse{Base: pos(tok), Traits: s.parseNameList("trait use")}
		if s.check("{") {
			s.skipBalanced("{", "}")
		} else {
			s.endStatement("trait use")
		}
		return tu
	case s.checkKeyword("case"):
		tok := s.advance()
		ec := &ast.EnumCase{Base: pos(tok), Name: s.identifier("enum case")}
		if s.match("=") {
			ec.Value = s.parseExpression()
		}
		s.endStatement("enum case")
		return ec
	case s.checkKeyword("const"):
		s.advance()
		c := &ast.ClassConst{Base: pos(start), Visibility: visibility}
		if visibility == "" {
			c.Visibility = "public"
		}
		c.Items = s.parseConstItems()
		s.endStatement("class constant")
		return c
	case s.checkKeyword("function"):
		s.advance()
		m := &ast.Method{Base: pos(start), Visibility: visibility, Static: static, Abstract: abstract, Final: final}
		if m.Visibility == "" {
			m.Visibility = "public"
		}
		m.ByRef = s.match("&")
		m.Name = s.identifier("method declaration")
		m.Params = s.parseParams("method parameters")
		if s.match(":") {
			m.ReturnType = s.parseType("return type")
		}
		if s.check("{") {
			m.HasBody = true
			m.Body = s.parseBlock("method body")
		} else {
			s.endStatement("abstract method")
		}
		return m
	}

	// Property declaration: [type] $a [= expr], $b ...;
	p := &ast.Property{Base: pos(start), Visibility: visibility, Static: static, Readonly: readonly}
	if p.Visibility == "" {
		p.Visibility = "public"
	}
	if !s.checkType(lexer.VARIABLE) {
		p.Type = s.parseType("property type")
	}
	for !s.panicMode {
		item := ast.PropertyItem{Name: s.variableName("property declaration")}
		if s.match("=") {
			item.Default = s.parseExpression()
		}
		p.Items = append(p.Items, item)
		if !s.match(",") {
			break
		}
	}
	if s.check("{") {
		// Property hooks.
		s.skipBalanced("{", "}")
		return p
	}
	s.endStatement("property declaration")
	return p
}

func (s *state) parseConstItems() []ast.ConstItem {
	var items []ast.ConstItem
	// Typed constants: const string NAME = ...
	if s.checkType(lexer.IDENT) && s.lookAhead(1).Type == lexer.IDENT {
		s.advance()
	}
	for !s.panicMode {
		item := ast.ConstItem{Name: s.identifier("constant declaration")}
		s.consume("=", "constant declaration")
		item.Value = s.parseExpression()
		items = append(items, item)
		if !s.match(",") {
			break
		}
	}
	return items
}

// skipBalanced skips a bracketed region including nested pairs.
func (s *state) skipBalanced(open, close string) {
	depth := 0
	for !s.isAtEnd() {
		tok := s.advance()
		switch {
		case tok.Is(open):
			depth++
		case tok.Is(close):
			depth--
			if depth == 0 {
				return
			}
		}
	}
	s.errorExpected("'"+close+"'", "block")
}

func (s *state) parseFunction() ast.Stmt {
	tok := s.advance()
	f := &ast.Function{Base: pos(tok)}
	f.ByRef = s.match("&")
	f.Name = s.identifier("function declaration")
	f.Params = s.parseParams("function parameters")
	if s.match(":") {
		f.ReturnType = s.parseType("return type")
	}
	f.Body = s.parseBlock("function body")
	return f
}

func (s *state) parseParams(context string) []*ast.Param {
	s.consume("(", context)
	var params []*ast.Param
	for !s.check(")") && !s.isAtEnd() && !s.panicMode {
		params = append(params, s.parseParam(context))
		if !s.match(",") {
			break
		}
	}
	s.consume(")", context)
	return params
}

func (s *state) parseParam(context string) *ast.Param {
	p := &ast.Param{Base: pos(s.peek())}
	for s.checkType(lexer.IDENT) {
		switch m := strings.ToLower(s.peek().Text); m {
		case "public", "protected", "private":
			p.Promoted = m
			s.advance()
			continue
		case "readonly":
			if p.Promoted == "" {
				p.Promoted = "public"
			}
			s.advance()
			continue
		}
		break
	}
	if !s.checkType(lexer.VARIABLE) && !s.check("&") && !s.check("...") {
		p.Type = s.parseType(context)
	}
	p.ByRef = s.match("&")
	p.Variadic = s.match("...")
	p.Name = s.variableName(context)
	if s.match("=") {
		p.Default = s.parseExpression()
	}
	return p
}

// parseType parses ?T, T, A|B|null or A&B.
func (s *state) parseType(context string) *ast.Type {
	t := &ast.Type{}
	if s.match("?") {
		t.Nullable = true
		t.Names = []string{s.typeName(context)}
		return t
	}
	t.Names = append(t.Names, s.typeName(context))
	for !s.panicMode {
		if s.check("|") {
			s.advance()
			t.Names = append(t.Names, s.typeName(context))
			continue
		}
		// '&' is an intersection only when another type name follows;
		// otherwise it marks a by-reference parameter.
		if s.check("&") && (s.lookAhead(1).Type == lexer.IDENT || s.lookAhead(1).Type == lexer.NAME) {
			s.advance()
			t.Intersection = true
			t.Names = append(t.Names, s.typeName(context))
			continue
		}
		break
	}
	return t
}

func (s *state) typeName(context string) string {
	if s.check("(") {
		// DNF group: (A&B)
		s.advance()
		inner := s.parseType(context)
		s.consume(")", context)
		return "(" + inner.String() + ")"
	}
	return s.name(context)
}

func (s *state) parseIf() ast.Stmt {
	tok := s.advance()
	n := &ast.If{Base: pos(tok)}
	n.Cond = s.parseParenCond("if condition")
	body, alt := s.parseBody("if body", "elseif", "else", "endif")
	n.Then = body
	for !s.panicMode {
		switch {
		case s.checkKeyword("elseif"):
			ei := s.advance()
			branch := &ast.ElseIf{Base: pos(ei), Cond: s.parseParenCond("elseif condition")}
			branch.Body, _ = s.parseBody("elseif body", altKeywords(alt, "elseif", "else", "endif")...)
			n.ElseIfs = append(n.ElseIfs, branch)
			continue
		case s.checkKeyword("else") && isKeyword(s.lookAhead(1), "if") && !alt:
			ei := s.advance()
			s.advance()
			branch := &ast.ElseIf{Base: pos(ei), Cond: s.parseParenCond("else if condition")}
			branch.Body, _ = s.parseBody("else if body")
			n.ElseIfs = append(n.ElseIfs, branch)
			continue
		case s.checkKeyword("else"):
			el := s.advance()
			e := &ast.Else{Base: pos(el)}
			e.Body, _ = s.parseBody("else body", altKeywords(alt, "endif")...)
			n.Else = e
		}
		break
	}
	if alt {
		s.consumeKeyword("endif", "if statement")
		s.endStatement("endif")
	}
	return n
}

func altKeywords(alt bool, kws ...string) []string {
	if !alt {
		return nil
	}
	return kws
}

func (s *state) parseParenCond(context string) ast.Expr {
	s.consume("(", context)
	x := s.parseExpression()
	s.consume(")", context)
	return x
}

func (s *state) parseWhile() ast.Stmt {
	tok := s.advance()
	n := &ast.While{Base: pos(tok), Cond: s.parseParenCond("while condition")}
	body, alt := s.parseBody("while body", "endwhile")
	n.Body = body
	if alt {
		s.consumeKeyword("endwhile", "while statement")
		s.endStatement("endwhile")
	}
	return n
}

func (s *state) parseDoWhile() ast.Stmt {
	tok := s.advance()
	n := &ast.DoWhile{Base: pos(tok)}
	n.Body, _ = s.parseBody("do body")
	s.consumeKeyword("while", "do-while statement")
	n.Cond = s.parseParenCond("do-while condition")
	s.endStatement("do-while statement")
	return n
}

func (s *state) parseFor() ast.Stmt {
	tok := s.advance()
	n := &ast.For{Base: pos(tok)}
	s.consume("(", "for header")
	if !s.check(";") {
		n.Init = s.parseExprList("for initializer")
	}
	s.consume(";", "for header")
	if !s.check(";") {
		n.Cond = s.parseExprList("for condition")
	}
	s.consume(";", "for header")
	if !s.check(")") {
		n.Loop = s.parseExprList("for step")
	}
	s.consume(")", "for header")
	body, alt := s.parseBody("for body", "endfor")
	n.Body = body
	if alt {
		s.consumeKeyword("endfor", "for statement")
		s.endStatement("endfor")
	}
	return n
}

func (s *state) parseForeach() ast.Stmt {
	tok := s.advance()
	n := &ast.Foreach{Base: pos(tok)}
	s.consume("(", "foreach header")
	n.X = s.parseExpression()
	s.consumeKeyword("as", "foreach header")
	byRef := s.match("&")
	first := s.parseExpression()
	if s.match("=>") {
		n.Key = first
		byRef = s.match("&")
		n.Value = s.parseExpression()
	} else {
		n.Value = first
	}
	n.ByRef = byRef
	s.consume(")", "foreach header")
	body, alt := s.parseBody("foreach body", "endforeach")
	n.Body = body
	if alt {
		s.consumeKeyword("endforeach", "foreach statement")
		s.endStatement("endforeach")
	}
	return n
}

func (s *state) parseSwitch() ast.Stmt {
	tok := s.advance()
	n := &ast.Switch{Base: pos(tok), Cond: s.parseParenCond("switch subject")}
	alt := false
	if s.match(":") {
		alt = true
	} else {
		s.consume("{", "switch body")
	}
	for !s.isAtEnd() && !s.panicMode {
		if (!alt && s.check("}")) || (alt && s.checkKeyword("endswitch")) {
			break
		}
		c := &ast.Case{Base: pos(s.peek())}
		switch {
		case s.matchKeyword("case"):
			c.Cond = s.parseExpression()
		case s.matchKeyword("default"):
		default:
			s.errorExpected("'case' or 'default'", "switch body")
			return n
		}
		if !s.match(":") {
			s.consume(";", "switch case")
		}
		c.Body = s.parseStatements(func() bool {
			return s.checkKeyword("case") || s.checkKeyword("default") || s.check("}") || s.checkKeyword("endswitch")
		})
		n.Cases = append(n.Cases, c)
	}
	if alt {
		s.consumeKeyword("endswitch", "switch statement")
		s.endStatement("endswitch")
	} else {
		s.consume("}", "switch body")
	}
	return n
}

func (s *state) parseTry() ast.Stmt {
	tok := s.advance()
	n := &ast.Try{Base: pos(tok), Body: s.parseBlock("try body")}
	for s.checkKeyword("catch") && !s.panicMode {
		ct := s.advance()
		c := &ast.Catch{Base: pos(ct)}
		s.consume("(", "catch clause")
		for !s.panicMode {
			c.Types = append(c.Types, s.name("catch type"))
			if !s.match("|") {
				break
			}
		}
		if s.checkType(lexer.VARIABLE) {
			c.Var = s.advance().Text
		}
		s.consume(")", "catch clause")
		c.Body = s.parseBlock("catch body")
		n.Catches = append(n.Catches, c)
	}
	if s.matchKeyword("finally") {
		n.HasFinally = true
		n.Finally = s.parseBlock("finally body")
	}
	if len(n.Catches) == 0 && !n.HasFinally && !s.panicMode {
		s.error("try without catch or finally", "try statement")
	}
	return n
}

func (s *state) parseExprList(context string) []ast.Expr {
	var xs []ast.Expr
	for !s.panicMode {
		xs = append(xs, s.parseExpression())
		if !s.match(",") {
			break
		}
	}
	return xs
}
