// Package lowering decomposes PHP syntax trees into the clause/statement
// graph of package graph.
//
// A Lowerer holds configuration and is shared; each source unit is lowered
// by its own Pass, which exclusively owns the unit's Store and the stack of
// open function/method records. Passes never fail on unfamiliar syntax: an
// expression without a rule becomes one "unknown" clause, a statement
// without a rule is skipped, and a symbol missing from the canonical table
// gets a freshly minted clause.
package lowering

import (
	"io"
	"log/slog"

	"github.com/stellify/stellify/core/ast"
	"github.com/stellify/stellify/core/canon"
	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/core/invariant"
)

// Supplier produces syntax trees. runtime/parser implements it.
type Supplier interface {
	ParseFile(path string, src []byte) (*ast.File, error)
	ParseExpr(src string) (ast.Expr, error)
}

// Opt configures a Lowerer.
type Opt func(*config)

type config struct {
	logger *slog.Logger
	ids    graph.IDSource
	table  *canon.Table
}

// WithLogger sets the logger for debug output about degraded constructs.
func WithLogger(l *slog.Logger) Opt {
	return func(c *config) {
		c.logger = l
	}
}

// WithIDs replaces the default UUID id source. Sources that are not safe for
// concurrent use must not be shared by parallel passes.
func WithIDs(ids graph.IDSource) Opt {
	return func(c *config) {
		c.ids = ids
	}
}

// WithTable replaces the embedded canonical table.
func WithTable(t *canon.Table) Opt {
	return func(c *config) {
		c.table = t
	}
}

// Lowerer creates passes over source units.
type Lowerer struct {
	supplier Supplier
	cfg      config
}

// New creates a Lowerer reading syntax trees from supplier.
func New(supplier Supplier, opts ...Opt) *Lowerer {
	invariant.NotNil(supplier, "supplier")
	cfg := config{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:    graph.UUIDSource{},
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.table == nil {
		cfg.table = canon.Default()
	}
	return &Lowerer{supplier: supplier, cfg: cfg}
}

// Table returns the canonical table in use.
func (l *Lowerer) Table() *canon.Table { return l.cfg.table }

// NewPass starts a pass that records into store.
func (l *Lowerer) NewPass(store *graph.Store, unit string) *Pass {
	invariant.NotNil(store, "store")
	return &Pass{
		store:    store,
		table:    l.cfg.table,
		ids:      l.cfg.ids,
		supplier: l.supplier,
		log:      l.cfg.logger.With("unit", unit),
	}
}

// Pass is the state of one lowering traversal. Not safe for concurrent use.
type Pass struct {
	store    *graph.Store
	table    *canon.Table
	ids      graph.IDSource
	supplier Supplier
	log      *slog.Logger

	open     []*graph.Routine // innermost last
	routines []graph.ID       // every record opened by this pass, in order
}

// Store returns the store the pass records into.
func (p *Pass) Store() *graph.Store { return p.store }

// NewID mints a fresh id.
func (p *Pass) NewID() graph.ID { return p.ids.NewID() }

// Logger returns the pass logger.
func (p *Pass) Logger() *slog.Logger { return p.log }

// ParseExpr parses an isolated expression with the pass's supplier.
func (p *Pass) ParseExpr(src string) (ast.Expr, error) {
	return p.supplier.ParseExpr(src)
}

// Canonical returns the id of the clause (kind, text): the canonical id when
// the table maps it, otherwise a freshly minted clause.
func (p *Pass) Canonical(kind graph.ClauseKind, text string) graph.ID {
	if e, ok := p.table.Lookup(kind, text); ok {
		return p.store.AddCanonical(e.Clause()).ID
	}
	p.log.Debug("no canonical mapping", "kind", kind, "text", text)
	return p.mint(kind, text).ID
}

func (p *Pass) mint(kind graph.ClauseKind, text string) *graph.Clause {
	return p.mintAs(p.ids.NewID(), kind, text)
}

func (p *Pass) mintAs(id graph.ID, kind graph.ClauseKind, text string) *graph.Clause {
	c := &graph.Clause{ID: id, Kind: kind, Text: text}
	p.store.AddClause(c)
	return c
}

// Unknown mints an "unknown" clause with empty text.
func (p *Pass) Unknown() graph.ID {
	return p.mint(graph.ClauseUnknown, "").ID
}

func (p *Pass) punct(sym string) graph.ID    { return p.Canonical(graph.ClausePunctuation, sym) }
func (p *Pass) operator(sym string) graph.ID { return p.Canonical(graph.ClauseOperator, sym) }
func (p *Pass) keyword(kw string) graph.ID   { return p.Canonical(graph.ClauseKeyword, kw) }

// Emit stores a statement with a fresh id and attaches it to the innermost
// open record, if any.
func (p *Pass) Emit(kind graph.StatementKind, seq []graph.ID) graph.ID {
	st := &graph.Statement{ID: p.ids.NewID(), Kind: kind, Sequence: seq}
	p.store.AddStatement(st)
	if r := p.current(); r != nil {
		p.store.AppendBody(r.ID, st.ID)
	}
	return st.ID
}
