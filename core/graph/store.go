package graph

import (
	"github.com/stellify/stellify/core/invariant"
)

// Store is the append-only record collection of one lowering pass. A Store is
// owned by a single pass and is not safe for concurrent use; parallel passes
// each get their own Store and are merged afterwards.
type Store struct {
	files      []*File
	routines   []*Routine
	statements []*Statement
	clauses    []*Clause
	elements   []*Element

	index     map[ID]any
	canonical map[ID]bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		index:     make(map[ID]any),
		canonical: make(map[ID]bool),
	}
}

// Stats counts the records of each kind.
type Stats struct {
	Files      int `json:"files"`
	Routines   int `json:"methods"`
	Statements int `json:"statements"`
	Clauses    int `json:"clauses"`
	Elements   int `json:"elements"`
}

// Stats returns record counts.
func (s *Store) Stats() Stats {
	return Stats{
		Files:      len(s.files),
		Routines:   len(s.routines),
		Statements: len(s.statements),
		Clauses:    len(s.clauses),
		Elements:   len(s.elements),
	}
}

func (s *Store) claim(id ID, rec any) {
	invariant.Precondition(id != "", "record id must not be empty")
	_, taken := s.index[id]
	invariant.Invariant(!taken, "record id %s already used", id)
	s.index[id] = rec
}

// AddClause stores a freshly minted clause.
func (s *Store) AddClause(c *Clause) {
	invariant.NotNil(c, "clause")
	invariant.Precondition(c.Kind.Valid(), "clause %s has unknown kind %q", c.ID, c.Kind)
	s.claim(c.ID, c)
	s.clauses = append(s.clauses, c)
}

// AddCanonical stores a canonical clause the first time it is referenced and
// is a no-op afterwards. It returns the stored clause.
func (s *Store) AddCanonical(c *Clause) *Clause {
	invariant.NotNil(c, "clause")
	if rec, ok := s.index[c.ID]; ok {
		existing, isClause := rec.(*Clause)
		invariant.Invariant(isClause && s.canonical[c.ID], "canonical id %s collides with a minted record", c.ID)
		return existing
	}
	s.AddClause(c)
	s.canonical[c.ID] = true
	return c
}

// IsCanonical reports whether id was stored through AddCanonical.
func (s *Store) IsCanonical(id ID) bool {
	return s.canonical[id]
}

// AddStatement stores a statement.
func (s *Store) AddStatement(st *Statement) {
	invariant.NotNil(st, "statement")
	s.claim(st.ID, st)
	s.statements = append(s.statements, st)
}

// AddRoutine stores a function or method record. The record stays mutable
// through AppendBody while its declaration is being traversed.
func (s *Store) AddRoutine(r *Routine) {
	invariant.NotNil(r, "routine")
	s.claim(r.ID, r)
	s.routines = append(s.routines, r)
}

// AppendBody appends a statement id to a routine body.
func (s *Store) AppendBody(routine ID, stmt ID) {
	r, ok := s.Routine(routine)
	invariant.Precondition(ok, "routine %s not in store", routine)
	before := len(r.Body)
	r.Body = append(r.Body, stmt)
	invariant.Postcondition(len(r.Body) == before+1, "body must grow by one")
}

// AddElement stores a finalized element.
func (s *Store) AddElement(e *Element) {
	invariant.NotNil(e, "element")
	s.claim(e.ID, e)
	s.elements = append(s.elements, e)
}

// AddFile stores a file record.
func (s *Store) AddFile(f *File) {
	invariant.NotNil(f, "file")
	s.claim(f.ID, f)
	s.files = append(s.files, f)
}

// Clause looks up a clause by id.
func (s *Store) Clause(id ID) (*Clause, bool) {
	c, ok := s.index[id].(*Clause)
	return c, ok
}

// Statement looks up a statement by id.
func (s *Store) Statement(id ID) (*Statement, bool) {
	st, ok := s.index[id].(*Statement)
	return st, ok
}

// Routine looks up a routine by id.
func (s *Store) Routine(id ID) (*Routine, bool) {
	r, ok := s.index[id].(*Routine)
	return r, ok
}

// Element looks up an element by id.
func (s *Store) Element(id ID) (*Element, bool) {
	e, ok := s.index[id].(*Element)
	return e, ok
}

// Has reports whether any record uses id.
func (s *Store) Has(id ID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *Store) Files() []*File           { return s.files }
func (s *Store) Routines() []*Routine     { return s.routines }
func (s *Store) Statements() []*Statement { return s.statements }
func (s *Store) Clauses() []*Clause       { return s.clauses }
func (s *Store) Elements() []*Element     { return s.elements }

// Merge appends every record of other to s in other's order. Canonical
// clauses already present in s are skipped; any other id collision panics.
func (s *Store) Merge(other *Store) {
	invariant.NotNil(other, "other")
	for _, c := range other.clauses {
		if other.canonical[c.ID] {
			s.AddCanonical(c)
			continue
		}
		s.AddClause(c)
	}
	for _, st := range other.statements {
		s.AddStatement(st)
	}
	for _, r := range other.routines {
		s.AddRoutine(r)
	}
	for _, e := range other.elements {
		s.AddElement(e)
	}
	for _, f := range other.files {
		s.AddFile(f)
	}
}
