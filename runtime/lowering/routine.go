package lowering

import (
	"github.com/stellify/stellify/core/ast"
	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/core/invariant"
)

// mixed is the declared type of an unannotated parameter.
const mixed = "mixed"

// openFunction starts a function record and makes it the emit target.
func (p *Pass) openFunction(fn *ast.Function) *graph.Routine {
	return p.push(&graph.Routine{
		Name:       fn.Name,
		Kind:       graph.RoutineFunction,
		Parameters: p.params(fn.Params),
	})
}

// openMethod starts a method record and makes it the emit target.
func (p *Pass) openMethod(m *ast.Method) *graph.Routine {
	return p.push(&graph.Routine{
		Name:       m.Name,
		Kind:       graph.RoutineMethod,
		Scope:      m.Visibility,
		Static:     m.Static,
		Parameters: p.params(m.Params),
	})
}

func (p *Pass) push(r *graph.Routine) *graph.Routine {
	r.ID = p.ids.NewID()
	if r.Parameters == nil {
		r.Parameters = []graph.ID{}
	}
	r.Body = []graph.ID{}
	p.store.AddRoutine(r)
	p.open = append(p.open, r)
	p.routines = append(p.routines, r.ID)
	p.log.Debug("open record", "name", r.Name, "kind", r.Kind)
	return r
}

// pop ends the innermost record, which must be r.
func (p *Pass) pop(r *graph.Routine) {
	n := len(p.open)
	invariant.Precondition(n > 0 && p.open[n-1] == r, "closing record %s that is not innermost", r.Name)
	p.open = p.open[:n-1]
}

func (p *Pass) current() *graph.Routine {
	if len(p.open) == 0 {
		return nil
	}
	return p.open[len(p.open)-1]
}

// params lowers parameters to typed variable clauses.
func (p *Pass) params(params []*ast.Param) []graph.ID {
	ids := make([]graph.ID, 0, len(params))
	for _, param := range params {
		typ := mixed
		if param.Type != nil {
			typ = param.Type.String()
		}
		c := &graph.Clause{ID: p.ids.NewID(), Kind: graph.ClauseVariable, Text: param.Name, Type: typ}
		p.store.AddClause(c)
		ids = append(ids, c.ID)
	}
	return ids
}
