// Package canon holds the canonical clause table: the fixed mapping from
// well-known tokens (operators, punctuation, keywords, Blade directives,
// template output markers and common Laravel names) to ids that are stable
// across runs, files and machines.
//
// The table is read-only after loading and safe to share between goroutines.
package canon

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/stellify/stellify/core/graph"
)

//go:embed canon.yaml
var embedded []byte

// Entry is one canonical clause.
type Entry struct {
	ID   graph.ID
	Kind graph.ClauseKind
	Text string
}

// Clause returns a new clause record for the entry.
func (e Entry) Clause() *graph.Clause {
	return &graph.Clause{ID: e.ID, Kind: e.Kind, Text: e.Text}
}

type key struct {
	kind graph.ClauseKind
	text string
}

// Table maps (kind, text) pairs to canonical entries.
type Table struct {
	version int
	byKey   map[key]Entry
	byID    map[graph.ID]Entry
}

type section struct {
	Kind    graph.ClauseKind  `yaml:"kind"`
	Entries map[string]string `yaml:"entries"`
}

type document struct {
	Version  int                `yaml:"version"`
	Sections map[string]section `yaml:",inline"`
}

// Parse builds a table from its YAML form. Every id must be a UUID and
// appear once; a (kind, text) pair may appear in only one section.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode canonical table: %w", err)
	}
	if doc.Version < 1 {
		return nil, fmt.Errorf("canonical table: missing or invalid version %d", doc.Version)
	}

	t := &Table{
		version: doc.Version,
		byKey:   make(map[key]Entry),
		byID:    make(map[graph.ID]Entry),
	}
	for name, sec := range doc.Sections {
		if !sec.Kind.Valid() || sec.Kind == graph.ClauseUnknown {
			return nil, fmt.Errorf("canonical table: section %q has invalid kind %q", name, sec.Kind)
		}
		for text, raw := range sec.Entries {
			if _, err := uuid.Parse(raw); err != nil {
				return nil, fmt.Errorf("canonical table: %s %q: %w", name, text, err)
			}
			e := Entry{ID: graph.ID(raw), Kind: sec.Kind, Text: text}
			k := key{sec.Kind, text}
			if prev, dup := t.byKey[k]; dup {
				return nil, fmt.Errorf("canonical table: %s %q defined twice (%s, %s)", sec.Kind, text, prev.ID, e.ID)
			}
			if prev, dup := t.byID[e.ID]; dup {
				return nil, fmt.Errorf("canonical table: id %s used by %q and %q", e.ID, prev.Text, text)
			}
			t.byKey[k] = e
			t.byID[e.ID] = e
		}
	}
	return t, nil
}

var loadDefault = sync.OnceValue(func() *Table {
	t, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("embedded canonical table: %v", err))
	}
	return t
})

// Default returns the table compiled into the binary. It is loaded once.
func Default() *Table {
	return loadDefault()
}

// Version is the table format version.
func (t *Table) Version() int { return t.version }

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.byID) }

// Lookup finds the entry for text of the given kind. Matching is exact and
// case-sensitive since the clause text must re-render verbatim.
func (t *Table) Lookup(kind graph.ClauseKind, text string) (Entry, bool) {
	e, ok := t.byKey[key{kind, text}]
	return e, ok
}

// ByID finds an entry by its id.
func (t *Table) ByID(id graph.ID) (Entry, bool) {
	e, ok := t.byID[id]
	return e, ok
}

// IsCanonical reports whether id belongs to the table.
func (t *Table) IsCanonical(id graph.ID) bool {
	_, ok := t.byID[id]
	return ok
}

// Operator, Punctuation, Keyword and Directive are Lookup shorthands.

func (t *Table) Operator(sym string) (Entry, bool) { return t.Lookup(graph.ClauseOperator, sym) }

func (t *Table) Punctuation(sym string) (Entry, bool) {
	return t.Lookup(graph.ClausePunctuation, sym)
}

func (t *Table) Keyword(word string) (Entry, bool) { return t.Lookup(graph.ClauseKeyword, word) }

// Directive looks up a Blade directive by name, with or without the leading '@'.
func (t *Table) Directive(name string) (Entry, bool) {
	if len(name) == 0 || name[0] != '@' {
		name = "@" + name
	}
	return t.Lookup(graph.ClauseKeyword, name)
}
