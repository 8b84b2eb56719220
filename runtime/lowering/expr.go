package lowering

import (
	"strconv"
	"strings"

	"github.com/stellify/stellify/core/ast"
	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/core/invariant"
)

// Mode selects how composite sub-expressions are referenced.
type Mode int

const (
	// Inline flattens sub-expressions into the enclosing sequence.
	Inline Mode = iota
	// Statement lowers each composite sub-expression to its own statement
	// and references it.
	Statement
)

func (m Mode) String() string {
	if m == Statement {
		return "statement"
	}
	return "inline"
}

// Result is the outcome of lowering one expression: either a leaf clause or
// a newly created statement. The two cases are closed; switch on the
// concrete type.
type Result interface {
	// Ref is the id to place in an enclosing sequence.
	Ref() graph.ID
	result()
}

// ClauseResult is returned for leaf expressions.
type ClauseResult struct {
	Clause *graph.Clause
}

func (r ClauseResult) Ref() graph.ID { return r.Clause.ID }
func (ClauseResult) result()         {}

// StatementCreated is returned when a composite expression produced a new
// statement.
type StatementCreated struct {
	Statement *graph.Statement
}

func (r StatementCreated) Ref() graph.ID { return r.Statement.ID }
func (StatementCreated) result()         {}

// LowerExpr lowers x under target. A leaf becomes a clause with id target
// (canonical leaves keep their canonical id); a composite becomes an untagged
// statement with id target whose sequence is built in the given mode.
func (p *Pass) LowerExpr(x ast.Expr, target graph.ID, mode Mode) Result {
	if c := p.leaf(x, target); c != nil {
		return ClauseResult{Clause: c}
	}
	var seq []graph.ID
	switch mode {
	case Statement:
		seq = p.shape(x, nil, p.nestedRef)
	default:
		seq = p.shape(x, nil, p.Flatten)
	}
	st := &graph.Statement{ID: target, Sequence: seq}
	p.store.AddStatement(st)
	return StatementCreated{Statement: st}
}

// Flatten appends the tokens of x to seq without creating statements.
func (p *Pass) Flatten(x ast.Expr, seq []graph.ID) []graph.ID {
	if c := p.leaf(x, p.ids.NewID()); c != nil {
		return append(seq, c.ID)
	}
	return p.shape(x, seq, p.Flatten)
}

// Ref lowers x in statement mode under a fresh id and returns the reference.
func (p *Pass) Ref(x ast.Expr) graph.ID {
	return p.LowerExpr(x, p.ids.NewID(), Statement).Ref()
}

func (p *Pass) nestedRef(x ast.Expr, seq []graph.ID) []graph.ID {
	return append(seq, p.Ref(x))
}

// leaf returns the clause for a leaf expression, minting it under id, or nil
// when x is composite. Expressions without a rule degrade to "unknown".
func (p *Pass) leaf(x ast.Expr, id graph.ID) *graph.Clause {
	switch x := x.(type) {
	case *ast.StringLit:
		return p.mintAs(id, graph.ClauseString, x.Value)
	case *ast.IntLit:
		return p.mintAs(id, graph.ClauseInteger, strconv.FormatInt(x.Value, 10))
	case *ast.FloatLit:
		return p.mintAs(id, graph.ClauseFloat, formatFloat(x.Value))
	case *ast.Variable:
		return p.mintAs(id, graph.ClauseVariable, x.Name)
	case *ast.ConstFetch:
		return p.leafCanonical(id, graph.ClauseKeyword, x.Name)
	case *ast.Name:
		return p.className(id, x)

	case *ast.PropertyFetch, *ast.StaticPropertyFetch, *ast.ClassConstFetch,
		*ast.MethodCall, *ast.StaticCall, *ast.FuncCall, *ast.New,
		*ast.ArrayLit, *ast.ArrayDimFetch, *ast.Binary, *ast.Unary,
		*ast.Assign, *ast.Ternary, *ast.Paren, *ast.Cast:
		return nil

	default:
		p.log.Debug("no lowering rule", "expr", describe(x))
		return p.mintAs(id, graph.ClauseUnknown, "")
	}
}

// leafCanonical reuses the canonical clause for (kind, text) if mapped.
func (p *Pass) leafCanonical(id graph.ID, kind graph.ClauseKind, text string) *graph.Clause {
	if e, ok := p.table.Lookup(kind, text); ok {
		return p.store.AddCanonical(e.Clause())
	}
	return p.mintAs(id, kind, text)
}

var classKeywords = map[string]bool{"self": true, "static": true, "parent": true}

func (p *Pass) className(id graph.ID, n *ast.Name) *graph.Clause {
	if lower := strings.ToLower(n.Value); classKeywords[lower] {
		return p.leafCanonical(id, graph.ClauseKeyword, lower)
	}
	if !n.FullyQualified {
		if e, ok := p.table.Lookup(graph.ClauseClass, n.Value); ok {
			return p.store.AddCanonical(e.Clause())
		}
	}
	return p.mintAs(id, graph.ClauseClass, n.String())
}

// formatFloat renders a float so that it still reads as a float.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func describe(x ast.Expr) string {
	if x == nil {
		return "<nil>"
	}
	s := x.String()
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return s
}

// shape appends the token sequence of composite x to seq. sub places each
// child expression, either flattened or as a nested reference.
func (p *Pass) shape(x ast.Expr, seq []graph.ID, sub func(ast.Expr, []graph.ID) []graph.ID) []graph.ID {
	switch x := x.(type) {
	case *ast.PropertyFetch:
		seq = sub(x.X, seq)
		seq = append(seq, p.accessor(x.Nullsafe))
		return p.member(x.Name, x.Dynamic, x.Braced, graph.ClauseProperty, seq, sub)

	case *ast.StaticPropertyFetch:
		seq = p.classRef(x.Class, seq, sub)
		seq = append(seq, p.punct("::"))
		return append(seq, p.mint(graph.ClauseVariable, x.Name).ID)

	case *ast.ClassConstFetch:
		seq = p.classRef(x.Class, seq, sub)
		seq = append(seq, p.punct("::"))
		return append(seq, p.mint(graph.ClauseProperty, x.Name).ID)

	case *ast.MethodCall:
		seq = sub(x.X, seq)
		seq = append(seq, p.accessor(x.Nullsafe))
		seq = p.member(x.Name, x.Dynamic, x.Braced, graph.ClauseMethod, seq, sub)
		return p.args(x.Args, seq, sub)

	case *ast.StaticCall:
		seq = p.classRef(x.Class, seq, sub)
		seq = append(seq, p.punct("::"), p.Canonical(graph.ClauseMethod, x.Name))
		return p.args(x.Args, seq, sub)

	case *ast.FuncCall:
		if n, ok := x.Func.(*ast.Name); ok {
			seq = append(seq, p.functionName(n))
		} else {
			seq = sub(x.Func, seq)
		}
		return p.args(x.Args, seq, sub)

	case *ast.New:
		seq = append(seq, p.keyword("new"))
		if x.Class == nil {
			seq = append(seq, p.keyword("class"))
		} else {
			seq = p.classRef(x.Class, seq, sub)
		}
		return p.args(x.Args, seq, sub)

	case *ast.ArrayLit:
		return p.array(x, seq, sub)

	case *ast.ArrayDimFetch:
		seq = sub(x.X, seq)
		seq = append(seq, p.punct("["))
		if x.Dim != nil {
			seq = sub(x.Dim, seq)
		}
		return append(seq, p.punct("]"))

	case *ast.Binary:
		seq = sub(x.Left, seq)
		seq = append(seq, p.operatorFor(x.Op))
		return sub(x.Right, seq)

	case *ast.Unary:
		if x.Postfix {
			seq = sub(x.X, seq)
			return append(seq, p.operatorFor(x.Op))
		}
		seq = append(seq, p.operatorFor(x.Op))
		return sub(x.X, seq)

	case *ast.Assign:
		seq = sub(x.Var, seq)
		seq = append(seq, p.operator(x.Op))
		if x.ByRef {
			seq = append(seq, p.operator("&"))
		}
		return sub(x.Value, seq)

	case *ast.Ternary:
		seq = sub(x.Cond, seq)
		seq = append(seq, p.punct("?"))
		if x.Then != nil {
			seq = sub(x.Then, seq)
		}
		seq = append(seq, p.punct(":"))
		return sub(x.Else, seq)

	case *ast.Paren:
		seq = append(seq, p.punct("("))
		seq = sub(x.X, seq)
		return append(seq, p.punct(")"))

	case *ast.Cast:
		seq = append(seq, p.operator("("+x.Type+")"))
		return sub(x.X, seq)
	}
	invariant.Invariant(false, "shape called on leaf expression %s", describe(x))
	return seq
}

func (p *Pass) accessor(nullsafe bool) graph.ID {
	if nullsafe {
		return p.punct("?->")
	}
	return p.punct("->")
}

// member appends a property or method name, or the dynamic member
// expression. Braces written in the source are kept.
func (p *Pass) member(name string, dynamic ast.Expr, braced bool, kind graph.ClauseKind, seq []graph.ID, sub func(ast.Expr, []graph.ID) []graph.ID) []graph.ID {
	switch {
	case dynamic == nil:
		if kind == graph.ClauseMethod {
			return append(seq, p.Canonical(kind, name))
		}
		return append(seq, p.mint(kind, name).ID)
	case !braced:
		return sub(dynamic, seq)
	}
	seq = append(seq, p.punct("{"))
	seq = sub(dynamic, seq)
	return append(seq, p.punct("}"))
}

// classRef appends a class reference: a name becomes a class clause, any
// other expression is placed as a child.
func (p *Pass) classRef(class ast.Expr, seq []graph.ID, sub func(ast.Expr, []graph.ID) []graph.ID) []graph.ID {
	if n, ok := class.(*ast.Name); ok {
		return append(seq, p.className(p.ids.NewID(), n).ID)
	}
	return sub(class, seq)
}

// functionName resolves a called name: language constructs with call syntax
// (isset, empty) are keywords, everything else a function clause.
func (p *Pass) functionName(n *ast.Name) graph.ID {
	if !n.FullyQualified {
		if e, ok := p.table.Keyword(strings.ToLower(n.Value)); ok {
			return p.store.AddCanonical(e.Clause()).ID
		}
		if e, ok := p.table.Lookup(graph.ClauseFunction, n.Value); ok {
			return p.store.AddCanonical(e.Clause()).ID
		}
	}
	return p.mint(graph.ClauseFunction, n.String()).ID
}

// operatorFor maps an operator; word operators (clone, print, yield ...)
// are keywords.
func (p *Pass) operatorFor(op string) graph.ID {
	if op != "" && op[0] >= 'a' && op[0] <= 'z' {
		if _, ok := p.table.Operator(op); ok {
			return p.operator(op)
		}
		return p.keyword(op)
	}
	return p.operator(op)
}

func (p *Pass) args(args []*ast.Arg, seq []graph.ID, sub func(ast.Expr, []graph.ID) []graph.ID) []graph.ID {
	seq = append(seq, p.punct("("))
	for i, a := range args {
		if i > 0 {
			seq = append(seq, p.punct(","))
		}
		if a.Name != "" {
			seq = append(seq, p.mint(graph.ClauseProperty, a.Name).ID, p.punct(":"))
		}
		if a.Unpack {
			seq = append(seq, p.punct("..."))
		}
		seq = sub(a.Value, seq)
	}
	return append(seq, p.punct(")"))
}

func (p *Pass) array(x *ast.ArrayLit, seq []graph.ID, sub func(ast.Expr, []graph.ID) []graph.ID) []graph.ID {
	closer := ")"
	switch x.Syntax {
	case ast.ArrayLong:
		seq = append(seq, p.keyword("array"), p.punct("("))
	case ast.ArrayList:
		seq = append(seq, p.keyword("list"), p.punct("("))
	default:
		seq = append(seq, p.punct("["))
		closer = "]"
	}
	for i, it := range x.Items {
		if i > 0 {
			seq = append(seq, p.punct(","))
		}
		if it == nil {
			continue
		}
		if it.Unpack {
			seq = append(seq, p.punct("..."))
		}
		if it.Key != nil {
			seq = sub(it.Key, seq)
			seq = append(seq, p.punct("=>"))
		}
		if it.ByRef {
			seq = append(seq, p.operator("&"))
		}
		seq = sub(it.Value, seq)
	}
	return append(seq, p.punct(closer))
}
