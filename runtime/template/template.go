package template

import (
	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/runtime/lowering"
)

// Result describes one lowered template.
type Result struct {
	Name     string
	Markup   string // the rewritten markup the elements were built from
	Elements []graph.ID
}

// Lower lowers the Blade template src, known as name, into store. Directive
// statements and elements share the store and its id source.
func Lower(l *lowering.Lowerer, store *graph.Store, name string, src []byte) (*Result, error) {
	p := l.NewPass(store, name)
	markup := Rewrite(p, string(src))
	ids, err := BuildElements(p, markup, name)
	if err != nil {
		return nil, err
	}
	p.Logger().Debug("lowered template", "elements", len(ids))
	return &Result{Name: name, Markup: markup, Elements: ids}, nil
}
