package graph

import (
	"errors"
	"fmt"
)

// ErrDangling is wrapped by every referential error returned from Validate.
var ErrDangling = errors.New("dangling reference")

// ErrTree is wrapped by every element-tree shape error returned from Validate.
var ErrTree = errors.New("malformed element tree")

// RefError describes one reference that does not resolve to a record of the
// expected kind.
type RefError struct {
	Owner ID
	Field string
	Ref   ID
	Want  string
}

func (e *RefError) Error() string {
	return fmt.Sprintf("%s.%s -> %s: no %s with that id", e.Owner, e.Field, e.Ref, e.Want)
}

func (e *RefError) Unwrap() error { return ErrDangling }

// Validate checks referential closure of every record in s and the shape of
// the element forest. All problems are reported, joined into one error.
func Validate(s *Store) error {
	var errs []error
	ref := func(owner ID, field string, id ID, want string, ok bool) {
		if !ok {
			errs = append(errs, &RefError{Owner: owner, Field: field, Ref: id, Want: want})
		}
	}

	for _, st := range s.statements {
		for _, id := range st.Sequence {
			_, isClause := s.Clause(id)
			_, isStmt := s.Statement(id)
			ref(st.ID, "sequence", id, "clause or statement", isClause || isStmt)
		}
	}
	for _, r := range s.routines {
		for _, id := range r.Parameters {
			_, ok := s.Clause(id)
			ref(r.ID, "parameters", id, "clause", ok)
		}
		for _, id := range r.Body {
			_, ok := s.Statement(id)
			ref(r.ID, "body", id, "statement", ok)
		}
	}
	for _, f := range s.files {
		for _, id := range f.Routines {
			_, ok := s.Routine(id)
			ref(f.ID, "routines", id, "routine", ok)
		}
	}
	for _, e := range s.elements {
		if e.Statement != "" {
			_, ok := s.Statement(e.Statement)
			ref(e.ID, "statement", e.Statement, "statement", ok)
		}
		if e.Parent != "" {
			p, ok := s.Element(e.Parent)
			ref(e.ID, "parent", e.Parent, "element", ok)
			if ok && !contains(p.Children, e.ID) {
				errs = append(errs, fmt.Errorf("%w: %s names parent %s which does not list it", ErrTree, e.ID, e.Parent))
			}
		}
		for _, id := range e.Children {
			c, ok := s.Element(id)
			ref(e.ID, "children", id, "element", ok)
			if ok && c.Parent != e.ID {
				errs = append(errs, fmt.Errorf("%w: child %s of %s has parent %q", ErrTree, id, e.ID, c.Parent))
			}
		}
	}
	errs = append(errs, checkAcyclic(s)...)

	return errors.Join(errs...)
}

// checkAcyclic walks statement sequences and element children looking for
// cycles.
func checkAcyclic(s *Store) []error {
	const (
		unvisited = iota
		active
		done
	)
	var errs []error
	state := make(map[ID]int)

	var visit func(id ID, next func(ID) []ID) bool
	visit = func(id ID, next func(ID) []ID) bool {
		switch state[id] {
		case active:
			return false
		case done:
			return true
		}
		state[id] = active
		for _, n := range next(id) {
			if !visit(n, next) {
				return false
			}
		}
		state[id] = done
		return true
	}

	seq := func(id ID) []ID {
		if st, ok := s.Statement(id); ok {
			return st.Sequence
		}
		return nil
	}
	for _, st := range s.statements {
		if !visit(st.ID, seq) {
			errs = append(errs, fmt.Errorf("%w: statement cycle through %s", ErrTree, st.ID))
			break
		}
	}

	kids := func(id ID) []ID {
		if e, ok := s.Element(id); ok {
			return e.Children
		}
		return nil
	}
	for _, e := range s.elements {
		if !visit(e.ID, kids) {
			errs = append(errs, fmt.Errorf("%w: element cycle through %s", ErrTree, e.ID))
			break
		}
	}
	return errs
}

func contains(ids []ID, id ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
