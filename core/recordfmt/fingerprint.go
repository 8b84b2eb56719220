package recordfmt

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/stellify/stellify/core/canon"
	"github.com/stellify/stellify/core/graph"
)

// Fingerprint is the BLAKE2b-256 digest of a bundle's structure.
type Fingerprint [32]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// shape is the id-independent form of a bundle. Fresh ids are replaced by
// their ordinal of first appearance; canonical ids are kept, so two
// lowerings of the same sources fingerprint equal whatever ids they drew.
type shape struct {
	Version    string
	Files      []graph.File
	Methods    []graph.Routine
	Statements []graph.Statement
	Clauses    []graph.Clause
	Elements   []graph.Element
}

type relabeler struct {
	table *canon.Table
	ids   map[graph.ID]graph.ID
}

func (r *relabeler) id(id graph.ID) graph.ID {
	if id == "" || r.table.IsCanonical(id) {
		return id
	}
	if n, ok := r.ids[id]; ok {
		return n
	}
	n := graph.ID(fmt.Sprintf("#%d", len(r.ids)+1))
	r.ids[id] = n
	return n
}

func (r *relabeler) list(ids []graph.ID) []graph.ID {
	out := make([]graph.ID, len(ids))
	for i, id := range ids {
		out[i] = r.id(id)
	}
	return out
}

// Shape computes the structural fingerprint of b. Canonical ids are those
// of table.
func Shape(b *Bundle, table *canon.Table) (Fingerprint, error) {
	r := &relabeler{table: table, ids: map[graph.ID]graph.ID{}}
	s := shape{Version: b.Format}

	for _, f := range b.Files {
		c := *f
		c.ID = r.id(f.ID)
		c.Routines = r.list(f.Routines)
		s.Files = append(s.Files, c)
	}
	for _, m := range b.Methods {
		c := *m
		c.ID = r.id(m.ID)
		c.Parameters = r.list(m.Parameters)
		c.Body = r.list(m.Body)
		s.Methods = append(s.Methods, c)
	}
	for _, st := range b.Statements {
		c := *st
		c.ID = r.id(st.ID)
		c.Sequence = r.list(st.Sequence)
		s.Statements = append(s.Statements, c)
	}
	for _, cl := range b.Clauses {
		c := *cl
		c.ID = r.id(cl.ID)
		s.Clauses = append(s.Clauses, c)
	}
	for _, e := range b.Elements {
		c := *e
		c.ID = r.id(e.ID)
		c.Statement = r.id(e.Statement)
		c.Parent = r.id(e.Parent)
		c.Children = r.list(e.Children)
		s.Elements = append(s.Elements, c)
	}

	em, err := encMode()
	if err != nil {
		return Fingerprint{}, fmt.Errorf("create CBOR encoder: %w", err)
	}
	data, err := em.Marshal(s)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("encode shape: %w", err)
	}
	return blake2b.Sum256(data), nil
}
