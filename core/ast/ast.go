// Package ast declares the syntax tree for the PHP subset stellify lowers.
//
// Node kinds form a closed set: every expression implements Expr and every
// statement implements Stmt through unexported marker methods, so consumers
// match on them with type switches and handle the remainder in a default arm.
package ast

import (
	"fmt"
	"strings"
)

// Position is a location in source.
type Position struct {
	Line   int // 1-based
	Column int // 1-based, in bytes
	Offset int // 0-based byte offset
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is implemented by every syntax node.
type Node interface {
	Pos() Position
	String() string
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Base carries the start position of a node.
type Base struct {
	At Position
}

func (b Base) Pos() Position { return b.At }

// File is one parsed PHP source unit.
type File struct {
	Path  string
	Stmts []Stmt
}

// Type is a declared type: a single name, a nullable name, or a union or
// intersection of names.
type Type struct {
	Names        []string
	Nullable     bool
	Intersection bool
}

func (t *Type) String() string {
	if t == nil || len(t.Names) == 0 {
		return ""
	}
	if t.Nullable {
		return "?" + t.Names[0]
	}
	sep := "|"
	if t.Intersection {
		sep = "&"
	}
	return strings.Join(t.Names, sep)
}

// Param is a function or method parameter.
type Param struct {
	Base
	Name     string
	Type     *Type
	Default  Expr
	ByRef    bool
	Variadic bool
	Promoted string // visibility when declared as a promoted constructor property
}

func (p *Param) String() string {
	var b strings.Builder
	if p.Promoted != "" {
		b.WriteString(p.Promoted + " ")
	}
	if p.Type != nil {
		b.WriteString(p.Type.String() + " ")
	}
	if p.ByRef {
		b.WriteByte('&')
	}
	if p.Variadic {
		b.WriteString("...")
	}
	b.WriteString("$" + p.Name)
	if p.Default != nil {
		b.WriteString(" = " + p.Default.String())
	}
	return b.String()
}

// Arg is a call argument.
type Arg struct {
	Base
	Name   string // named argument label, empty when positional
	Value  Expr
	Unpack bool
	ByRef  bool
}

func (a *Arg) String() string {
	s := a.Value.String()
	if a.Unpack {
		s = "..." + s
	}
	if a.Name != "" {
		s = a.Name + ": " + s
	}
	return s
}

func joinArgs(args []*Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

func joinParams(params []*Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// StringLit is a quoted string. Value holds the decoded contents for plain
// strings and the raw body for strings with interpolation.
type StringLit struct {
	Base
	Value        string
	Raw          string
	Interpolated bool
}

func (e *StringLit) String() string { return e.Raw }
func (e *StringLit) exprNode()      {}

// IntLit is an integer literal.
type IntLit struct {
	Base
	Value int64
	Raw   string
}

func (e *IntLit) String() string { return e.Raw }
func (e *IntLit) exprNode()      {}

// FloatLit is a floating point literal.
type FloatLit struct {
	Base
	Value float64
	Raw   string
}

func (e *FloatLit) String() string { return e.Raw }
func (e *FloatLit) exprNode()      {}

// Variable is $name.
type Variable struct {
	Base
	Name string
}

func (e *Variable) String() string { return "$" + e.Name }
func (e *Variable) exprNode()      {}

// VariableVariable is $$expr or ${expr}.
type VariableVariable struct {
	Base
	X Expr
}

func (e *VariableVariable) String() string { return "${" + e.X.String() + "}" }
func (e *VariableVariable) exprNode()      {}

// Name is a bare or qualified identifier used as a class, function or
// constant reference.
type Name struct {
	Base
	Value          string // without leading backslash
	FullyQualified bool
}

func (e *Name) String() string {
	if e.FullyQualified {
		return `\` + e.Value
	}
	return e.Value
}
func (e *Name) exprNode() {}

// ConstFetch is a constant reference such as true, null or PHP_EOL.
type ConstFetch struct {
	Base
	Name string
}

func (e *ConstFetch) String() string { return e.Name }
func (e *ConstFetch) exprNode()      {}

// PropertyFetch is $obj->name or $obj?->name. Dynamic replaces Name for
// $obj->{$expr} and $obj->$prop; Braced is set for the first form.
type PropertyFetch struct {
	Base
	X        Expr
	Name     string
	Dynamic  Expr
	Braced   bool
	Nullsafe bool
}

func (e *PropertyFetch) String() string {
	op := "->"
	if e.Nullsafe {
		op = "?->"
	}
	return e.X.String() + op + memberName(e.Name, e.Dynamic, e.Braced)
}
func (e *PropertyFetch) exprNode() {}

// StaticPropertyFetch is Class::$name.
type StaticPropertyFetch struct {
	Base
	Class Expr
	Name  string
}

func (e *StaticPropertyFetch) String() string { return e.Class.String() + "::$" + e.Name }
func (e *StaticPropertyFetch) exprNode()      {}

// ClassConstFetch is Class::NAME, including Class::class.
type ClassConstFetch struct {
	Base
	Class Expr
	Name  string
}

func (e *ClassConstFetch) String() string { return e.Class.String() + "::" + e.Name }
func (e *ClassConstFetch) exprNode()      {}

// MethodCall is $obj->name(args) or $obj?->name(args).
type MethodCall struct {
	Base
	X        Expr
	Name     string
	Dynamic  Expr
	Braced   bool
	Args     []*Arg
	Nullsafe bool
}

func (e *MethodCall) String() string {
	op := "->"
	if e.Nullsafe {
		op = "?->"
	}
	return e.X.String() + op + memberName(e.Name, e.Dynamic, e.Braced) + "(" + joinArgs(e.Args) + ")"
}
func (e *MethodCall) exprNode() {}

func memberName(name string, dynamic Expr, braced bool) string {
	switch {
	case dynamic == nil:
		return name
	case braced:
		return "{" + dynamic.String() + "}"
	}
	return dynamic.String()
}

// StaticCall is Class::name(args).
type StaticCall struct {
	Base
	Class Expr
	Name  string
	Args  []*Arg
}

func (e *StaticCall) String() string {
	return e.Class.String() + "::" + e.Name + "(" + joinArgs(e.Args) + ")"
}
func (e *StaticCall) exprNode() {}

// FuncCall is name(args) or $callable(args). Language constructs with call
// syntax (isset, empty, exit, die, print) are represented as FuncCall.
type FuncCall struct {
	Base
	Func Expr
	Args []*Arg
}

func (e *FuncCall) String() string { return e.Func.String() + "(" + joinArgs(e.Args) + ")" }
func (e *FuncCall) exprNode()      {}

// New is new Class(args). Class is nil for anonymous classes.
type New struct {
	Base
	Class Expr
	Args  []*Arg
}

func (e *New) String() string {
	if e.Class == nil {
		return "new class(" + joinArgs(e.Args) + ") {...}"
	}
	return "new " + e.Class.String() + "(" + joinArgs(e.Args) + ")"
}
func (e *New) exprNode() {}

// ArraySyntax records how an array literal was spelled.
type ArraySyntax uint8

const (
	ArrayShort ArraySyntax = iota // [a, b]
	ArrayLong                     // array(a, b)
	ArrayList                     // list(a, b)
)

// ArrayItem is one element of an array literal. A nil *ArrayItem marks a
// skipped slot in list destructuring.
type ArrayItem struct {
	Base
	Key    Expr
	Value  Expr
	ByRef  bool
	Unpack bool
}

func (i *ArrayItem) String() string {
	if i == nil {
		return ""
	}
	s := i.Value.String()
	if i.ByRef {
		s = "&" + s
	}
	if i.Unpack {
		s = "..." + s
	}
	if i.Key != nil {
		s = i.Key.String() + " => " + s
	}
	return s
}

// ArrayLit is an array literal.
type ArrayLit struct {
	Base
	Items  []*ArrayItem
	Syntax ArraySyntax
}

func (e *ArrayLit) String() string {
	parts := make([]string, len(e.Items))
	for i, it := range e.Items {
		parts[i] = it.String()
	}
	body := strings.Join(parts, ", ")
	switch e.Syntax {
	case ArrayLong:
		return "array(" + body + ")"
	case ArrayList:
		return "list(" + body + ")"
	}
	return "[" + body + "]"
}
func (e *ArrayLit) exprNode() {}

// ArrayDimFetch is $x[dim]; Dim is nil for $x[].
type ArrayDimFetch struct {
	Base
	X   Expr
	Dim Expr
}

func (e *ArrayDimFetch) String() string {
	if e.Dim == nil {
		return e.X.String() + "[]"
	}
	return e.X.String() + "[" + e.Dim.String() + "]"
}
func (e *ArrayDimFetch) exprNode() {}

// Binary is a binary operation, including instanceof.
type Binary struct {
	Base
	Op    string
	Left  Expr
	Right Expr
}

func (e *Binary) String() string {
	return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
}
func (e *Binary) exprNode() {}

// Unary is a prefix or postfix operation. Keyword operators such as clone,
// print, yield and include use their keyword as Op.
type Unary struct {
	Base
	Op      string
	X       Expr
	Postfix bool
}

func (e *Unary) String() string {
	if e.Postfix {
		return "(" + e.X.String() + e.Op + ")"
	}
	if isWordOp(e.Op) {
		return "(" + e.Op + " " + e.X.String() + ")"
	}
	return "(" + e.Op + e.X.String() + ")"
}
func (e *Unary) exprNode() {}

func isWordOp(op string) bool {
	return op != "" && (op[0] >= 'a' && op[0] <= 'z')
}

// Assign is an assignment expression; Op is "=" or a compound operator.
type Assign struct {
	Base
	Op    string
	Var   Expr
	Value Expr
	ByRef bool
}

func (e *Assign) String() string {
	op := e.Op
	if e.ByRef {
		op += "&"
	}
	return e.Var.String() + " " + op + " " + e.Value.String()
}
func (e *Assign) exprNode() {}

// Ternary is cond ? then : else; Then is nil for the short form cond ?: else.
type Ternary struct {
	Base
	Cond Expr
	Then Expr
	Else Expr
}

func (e *Ternary) String() string {
	if e.Then == nil {
		return "(" + e.Cond.String() + " ?: " + e.Else.String() + ")"
	}
	return "(" + e.Cond.String() + " ? " + e.Then.String() + " : " + e.Else.String() + ")"
}
func (e *Ternary) exprNode() {}

// Paren is a parenthesized expression, kept so it can be re-rendered.
type Paren struct {
	Base
	X Expr
}

func (e *Paren) String() string { return "(" + e.X.String() + ")" }
func (e *Paren) exprNode()      {}

// Cast is (type) expr.
type Cast struct {
	Base
	Type string
	X    Expr
}

func (e *Cast) String() string { return "((" + e.Type + ") " + e.X.String() + ")" }
func (e *Cast) exprNode()      {}

// ClosureUse is one variable captured by a closure.
type ClosureUse struct {
	Name  string
	ByRef bool
}

// Closure is an anonymous function or arrow function.
type Closure struct {
	Base
	Static     bool
	Arrow      bool
	Params     []*Param
	Uses       []ClosureUse
	ReturnType *Type
	Body       []Stmt // function body
	Expr       Expr   // arrow function body
}

func (e *Closure) String() string {
	if e.Arrow {
		return "fn(" + joinParams(e.Params) + ") => " + e.Expr.String()
	}
	return "function(" + joinParams(e.Params) + ") {...}"
}
func (e *Closure) exprNode() {}

// MatchArm is one arm of a match expression; Conds is nil for default.
type MatchArm struct {
	Conds []Expr
	Body  Expr
}

// Match is a match expression.
type Match struct {
	Base
	Subject Expr
	Arms    []*MatchArm
}

func (e *Match) String() string { return "match (" + e.Subject.String() + ") {...}" }
func (e *Match) exprNode()      {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// InlineHTML is text outside PHP tags.
type InlineHTML struct {
	Base
	Text string
}

func (s *InlineHTML) String() string { return "?>" + s.Text + "<?php" }
func (s *InlineHTML) stmtNode()      {}

// Namespace is a namespace declaration. Stmts holds the statements that
// belong to it in both the braced and the semicolon form.
type Namespace struct {
	Base
	Name   string
	Stmts  []Stmt
	Braced bool
}

func (s *Namespace) String() string { return "namespace " + s.Name + ";" }
func (s *Namespace) stmtNode()      {}

// UseItem is one imported name.
type UseItem struct {
	Name  string
	Alias string
}

// Use is a use import.
type Use struct {
	Base
	Kind  string // "", "function" or "const"
	Items []UseItem
}

func (s *Use) String() string {
	parts := make([]string, len(s.Items))
	for i, it := range s.Items {
		parts[i] = it.Name
		if it.Alias != "" {
			parts[i] += " as " + it.Alias
		}
	}
	kw := "use "
	if s.Kind != "" {
		kw += s.Kind + " "
	}
	return kw + strings.Join(parts, ", ") + ";"
}
func (s *Use) stmtNode() {}

// ClassKind is the flavour of a class-like declaration.
type ClassKind string

const (
	KindClass     ClassKind = "class"
	KindInterface ClassKind = "interface"
	KindTrait     ClassKind = "trait"
	KindEnum      ClassKind = "enum"
)

// ClassLike is a class, interface, trait or enum declaration.
type ClassLike struct {
	Base
	Kind       ClassKind
	Name       string
	Modifiers  []string
	Extends    []string
	Implements []string
	Members    []Stmt
}

func (s *ClassLike) String() string { return string(s.Kind) + " " + s.Name + " {...}" }
func (s *ClassLike) stmtNode()      {}

// Method is a class method declaration. HasBody is false for abstract and
// interface methods.
type Method struct {
	Base
	Name       string
	Params     []*Param
	ReturnType *Type
	Visibility string
	Static     bool
	Abstract   bool
	Final      bool
	ByRef      bool
	Body       []Stmt
	HasBody    bool
}

func (s *Method) String() string {
	return s.Visibility + " function " + s.Name + "(" + joinParams(s.Params) + ")"
}
func (s *Method) stmtNode() {}

// PropertyItem is one declared property.
type PropertyItem struct {
	Name    string
	Default Expr
}

// Property is a class property declaration.
type Property struct {
	Base
	Visibility string
	Static     bool
	Readonly   bool
	Type       *Type
	Items      []PropertyItem
}

func (s *Property) String() string {
	names := make([]string, len(s.Items))
	for i, it := range s.Items {
		names[i] = "$" + it.Name
	}
	return s.Visibility + " " + strings.Join(names, ", ") + ";"
}
func (s *Property) stmtNode() {}

// ConstItem is one constant of a const declaration.
type ConstItem struct {
	Name  string
	Value Expr
}

// ClassConst is a class constant declaration, or a top-level const
// statement when Visibility is empty.
type ClassConst struct {
	Base
	Visibility string
	Items      []ConstItem
}

func (s *ClassConst) String() string {
	names := make([]string, len(s.Items))
	for i, it := range s.Items {
		names[i] = it.Name
	}
	return "const " + strings.Join(names, ", ") + ";"
}
func (s *ClassConst) stmtNode() {}

// TraitUse is `use A, B;` inside a class body.
type TraitUse struct {
	Base
	Traits []string
}

func (s *TraitUse) String() string { return "use " + strings.Join(s.Traits, ", ") + ";" }
func (s *TraitUse) stmtNode()      {}

// EnumCase is a case of an enum declaration.
type EnumCase struct {
	Base
	Name  string
	Value Expr
}

func (s *EnumCase) String() string { return "case " + s.Name + ";" }
func (s *EnumCase) stmtNode()      {}

// Function is a named function declaration.
type Function struct {
	Base
	Name       string
	Params     []*Param
	ReturnType *Type
	ByRef      bool
	Body       []Stmt
}

func (s *Function) String() string {
	return "function " + s.Name + "(" + joinParams(s.Params) + ")"
}
func (s *Function) stmtNode() {}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	Base
	X Expr
}

func (s *ExprStmt) String() string { return s.X.String() + ";" }
func (s *ExprStmt) stmtNode()      {}

// If is an if statement with its elseif and else branches.
type If struct {
	Base
	Cond    Expr
	Then    []Stmt
	ElseIfs []*ElseIf
	Else    *Else
}

func (s *If) String() string { return "if (" + s.Cond.String() + ")" }
func (s *If) stmtNode()      {}

// ElseIf is an elseif (or `else if`) branch.
type ElseIf struct {
	Base
	Cond Expr
	Body []Stmt
}

func (s *ElseIf) String() string { return "elseif (" + s.Cond.String() + ")" }
func (s *ElseIf) stmtNode()      {}

// Else is an else branch.
type Else struct {
	Base
	Body []Stmt
}

func (s *Else) String() string { return "else" }
func (s *Else) stmtNode()      {}

// For is a C-style for loop.
type For struct {
	Base
	Init []Expr
	Cond []Expr
	Loop []Expr
	Body []Stmt
}

func (s *For) String() string { return "for (...)" }
func (s *For) stmtNode()      {}

// Foreach is a foreach loop; Key is nil without `$k =>`.
type Foreach struct {
	Base
	X     Expr
	Key   Expr
	Value Expr
	ByRef bool
	Body  []Stmt
}

func (s *Foreach) String() string { return "foreach (" + s.X.String() + " as ...)" }
func (s *Foreach) stmtNode()      {}

// While is a while loop.
type While struct {
	Base
	Cond Expr
	Body []Stmt
}

func (s *While) String() string { return "while (" + s.Cond.String() + ")" }
func (s *While) stmtNode()      {}

// DoWhile is a do-while loop.
type DoWhile struct {
	Base
	Body []Stmt
	Cond Expr
}

func (s *DoWhile) String() string { return "do {...} while (" + s.Cond.String() + ")" }
func (s *DoWhile) stmtNode()      {}

// Case is a switch case; Cond is nil for default.
type Case struct {
	Base
	Cond Expr
	Body []Stmt
}

func (s *Case) String() string {
	if s.Cond == nil {
		return "default:"
	}
	return "case " + s.Cond.String() + ":"
}
func (s *Case) stmtNode() {}

// Switch is a switch statement.
type Switch struct {
	Base
	Cond  Expr
	Cases []*Case
}

func (s *Switch) String() string { return "switch (" + s.Cond.String() + ")" }
func (s *Switch) stmtNode()      {}

// Return is a return statement; X is nil for a bare return.
type Return struct {
	Base
	X Expr
}

func (s *Return) String() string {
	if s.X == nil {
		return "return;"
	}
	return "return " + s.X.String() + ";"
}
func (s *Return) stmtNode() {}

// Echo is an echo statement.
type Echo struct {
	Base
	Exprs []Expr
}

func (s *Echo) String() string { return "echo ...;" }
func (s *Echo) stmtNode()      {}

// Block is a braced statement list.
type Block struct {
	Base
	Stmts []Stmt
}

func (s *Block) String() string { return "{...}" }
func (s *Block) stmtNode()      {}

// Catch is a catch clause.
type Catch struct {
	Base
	Types []string
	Var   string
	Body  []Stmt
}

func (s *Catch) String() string { return "catch (" + strings.Join(s.Types, "|") + ")" }
func (s *Catch) stmtNode()      {}

// Try is a try statement.
type Try struct {
	Base
	Body       []Stmt
	Catches    []*Catch
	Finally    []Stmt
	HasFinally bool
}

func (s *Try) String() string { return "try {...}" }
func (s *Try) stmtNode()      {}

// Throw is a throw statement.
type Throw struct {
	Base
	X Expr
}

func (s *Throw) String() string { return "throw " + s.X.String() + ";" }
func (s *Throw) stmtNode()      {}

// Other is a statement stellify does not lower: break, continue, global,
// static, unset, declare, goto and labels. Keyword names it.
type Other struct {
	Base
	Keyword string
	Exprs   []Expr
}

func (s *Other) String() string { return s.Keyword + ";" }
func (s *Other) stmtNode()      {}
