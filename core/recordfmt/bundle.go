// Package recordfmt is the interchange format for lowered records: a Bundle
// of flat record sets, encodable as JSON or deterministic CBOR, with a
// format version gate, schema validation and a structural fingerprint.
package recordfmt

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/stellify/stellify/core/canon"
	"github.com/stellify/stellify/core/graph"
)

// Version is the bundle format version. Readers accept any bundle with the
// same major version; additions bump the minor version.
const Version = "v1.0.0"

var (
	// ErrVersion reports a bundle whose format version cannot be read.
	ErrVersion = errors.New("incompatible bundle format")
	// ErrDuplicate reports two records sharing an id.
	ErrDuplicate = errors.New("duplicate record id")
)

// Bundle holds the records of one or more lowered units.
type Bundle struct {
	Format     string             `json:"format"`
	Files      []*graph.File      `json:"files"`
	Methods    []*graph.Routine   `json:"methods"`
	Statements []*graph.Statement `json:"statements"`
	Clauses    []*graph.Clause    `json:"clauses"`
	Elements   []*graph.Element   `json:"elements"`
}

// FromStore builds a bundle sharing the records of s.
func FromStore(s *graph.Store) *Bundle {
	return &Bundle{
		Format:     Version,
		Files:      orEmpty(s.Files()),
		Methods:    orEmpty(s.Routines()),
		Statements: orEmpty(s.Statements()),
		Clauses:    orEmpty(s.Clauses()),
		Elements:   orEmpty(s.Elements()),
	}
}

func orEmpty[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

// Stats counts the records of each kind.
func (b *Bundle) Stats() graph.Stats {
	return graph.Stats{
		Files:      len(b.Files),
		Routines:   len(b.Methods),
		Statements: len(b.Statements),
		Clauses:    len(b.Clauses),
		Elements:   len(b.Elements),
	}
}

// CheckVersion rejects bundles written by an incompatible format version.
func CheckVersion(format string) error {
	if !semver.IsValid(format) {
		return fmt.Errorf("%w: invalid version %q", ErrVersion, format)
	}
	if semver.Major(format) != semver.Major(Version) {
		return fmt.Errorf("%w: got %s, want %s.x", ErrVersion, format, semver.Major(Version))
	}
	return nil
}

// Store loads the bundle into a new store. Clauses whose ids belong to
// table are stored as canonical; any other repeated id is an error.
func (b *Bundle) Store(table *canon.Table) (*graph.Store, error) {
	if err := CheckVersion(b.Format); err != nil {
		return nil, err
	}
	seen := map[graph.ID]bool{}
	claim := func(id graph.ID) error {
		if id == "" {
			return errors.New("record without id")
		}
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicate, id)
		}
		seen[id] = true
		return nil
	}

	s := graph.NewStore()
	for _, c := range b.Clauses {
		if table.IsCanonical(c.ID) {
			if !seen[c.ID] {
				seen[c.ID] = true
				s.AddCanonical(c)
			}
			continue
		}
		if err := claim(c.ID); err != nil {
			return nil, err
		}
		if !c.Kind.Valid() {
			return nil, fmt.Errorf("clause %s: unknown kind %q", c.ID, c.Kind)
		}
		s.AddClause(c)
	}
	for _, st := range b.Statements {
		if err := claim(st.ID); err != nil {
			return nil, err
		}
		s.AddStatement(st)
	}
	for _, r := range b.Methods {
		if err := claim(r.ID); err != nil {
			return nil, err
		}
		s.AddRoutine(r)
	}
	for _, e := range b.Elements {
		if err := claim(e.ID); err != nil {
			return nil, err
		}
		s.AddElement(e)
	}
	for _, f := range b.Files {
		if err := claim(f.ID); err != nil {
			return nil, err
		}
		s.AddFile(f)
	}
	return s, nil
}
