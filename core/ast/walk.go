package ast

// Visitor is called by Walk on entering and leaving each statement node.
// If Enter returns false the node's children are skipped and Leave is not
// called for it.
type Visitor interface {
	Enter(n Stmt) bool
	Leave(n Stmt)
}

// Walk traverses stmts in source order, depth first. Nested statement lists
// (bodies, branches, class members) are visited; expressions are not, and
// closure bodies stay opaque.
func Walk(v Visitor, stmts []Stmt) {
	for _, s := range stmts {
		walkStmt(v, s)
	}
}

func walkStmt(v Visitor, s Stmt) {
	if s == nil || !v.Enter(s) {
		return
	}
	switch n := s.(type) {
	case *Namespace:
		Walk(v, n.Stmts)
	case *ClassLike:
		Walk(v, n.Members)
	case *Method:
		Walk(v, n.Body)
	case *Function:
		Walk(v, n.Body)
	case *If:
		Walk(v, n.Then)
		for _, ei := range n.ElseIfs {
			walkStmt(v, ei)
		}
		if n.Else != nil {
			walkStmt(v, n.Else)
		}
	case *ElseIf:
		Walk(v, n.Body)
	case *Else:
		Walk(v, n.Body)
	case *For:
		Walk(v, n.Body)
	case *Foreach:
		Walk(v, n.Body)
	case *While:
		Walk(v, n.Body)
	case *DoWhile:
		Walk(v, n.Body)
	case *Switch:
		for _, c := range n.Cases {
			walkStmt(v, c)
		}
	case *Case:
		Walk(v, n.Body)
	case *Block:
		Walk(v, n.Stmts)
	case *Try:
		Walk(v, n.Body)
		for _, c := range n.Catches {
			walkStmt(v, c)
		}
		Walk(v, n.Finally)
	case *Catch:
		Walk(v, n.Body)
	}
	v.Leave(s)
}

// Inspect calls f for every statement in pre-order; returning false from f
// prunes that subtree.
func Inspect(stmts []Stmt, f func(Stmt) bool) {
	Walk(inspector(f), stmts)
}

type inspector func(Stmt) bool

func (f inspector) Enter(n Stmt) bool { return f(n) }
func (f inspector) Leave(Stmt)        {}
