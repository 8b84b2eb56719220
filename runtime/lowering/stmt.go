package lowering

import (
	"github.com/stellify/stellify/core/ast"
	"github.com/stellify/stellify/core/graph"
)

// visitor lowers statements while ast.Walk descends. Function and method
// declarations open a record on Enter and close it on Leave; every emitted
// statement lands in the innermost open record.
type visitor struct {
	p    *Pass
	file *graph.File // nil when lowering loose statements

	routines map[ast.Stmt]*graph.Routine
}

func newVisitor(p *Pass, file *graph.File) *visitor {
	return &visitor{p: p, file: file, routines: map[ast.Stmt]*graph.Routine{}}
}

func (v *visitor) Enter(n ast.Stmt) bool {
	p := v.p
	switch n := n.(type) {
	case *ast.Namespace:
		if v.file != nil && v.file.Namespace == "" {
			v.file.Namespace = n.Name
		}
	case *ast.ClassLike:
		if v.file != nil && v.file.Name == "" {
			v.file.Name = n.Name
			v.file.Kind = string(n.Kind)
			v.file.Extends = n.Extends
			v.file.Implements = n.Implements
		}
	case *ast.Function:
		v.routines[n] = p.openFunction(n)
	case *ast.Method:
		v.routines[n] = p.openMethod(n)

	case *ast.ExprStmt:
		if a, ok := n.X.(*ast.Assign); ok {
			p.assignment(a)
		}
	case *ast.If:
		p.conditional("if", n.Cond)
	case *ast.ElseIf:
		p.conditional("elseif", n.Cond)
	case *ast.Else:
		p.Emit(graph.StatementConditional, []graph.ID{p.keyword("else")})
	case *ast.For:
		p.loop("for")
	case *ast.Foreach:
		p.loop("foreach")
	case *ast.While:
		p.loop("while")
	case *ast.DoWhile:
		p.loop("do")
	case *ast.Return:
		seq := []graph.ID{p.keyword("return")}
		if n.X != nil {
			seq = append(seq, p.Ref(n.X))
		}
		p.Emit(graph.StatementReturn, seq)
	}
	return true
}

func (v *visitor) Leave(n ast.Stmt) {
	if r, ok := v.routines[n]; ok {
		v.p.pop(r)
		delete(v.routines, n)
	}
}

// assignment emits [target, op, &?, value]. A plain variable target is a
// clause; any other target is lowered to its own statement.
func (p *Pass) assignment(a *ast.Assign) graph.ID {
	var target graph.ID
	if v, ok := a.Var.(*ast.Variable); ok {
		target = p.mint(graph.ClauseVariable, v.Name).ID
	} else {
		target = p.Ref(a.Var)
	}
	seq := []graph.ID{target, p.operator(a.Op)}
	if a.ByRef {
		seq = append(seq, p.operator("&"))
	}
	seq = append(seq, p.Ref(a.Value))
	return p.Emit(graph.StatementAssignment, seq)
}

// conditional emits [kw, "(", cond..., ")"] with the condition flattened.
func (p *Pass) conditional(kw string, cond ast.Expr) graph.ID {
	seq := []graph.ID{p.keyword(kw), p.punct("(")}
	seq = p.Flatten(cond, seq)
	seq = append(seq, p.punct(")"))
	return p.Emit(graph.StatementConditional, seq)
}

// loop emits the loop keyword alone; headers are not decomposed.
func (p *Pass) loop(kw string) graph.ID {
	return p.Emit(graph.StatementLoop, []graph.ID{p.keyword(kw)})
}

// LowerStmts lowers loose statements, attaching to whatever record the
// pass has open.
func (p *Pass) LowerStmts(stmts []ast.Stmt) {
	ast.Walk(newVisitor(p, nil), stmts)
}
