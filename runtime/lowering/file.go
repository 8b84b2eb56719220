package lowering

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/stellify/stellify/core/ast"
	"github.com/stellify/stellify/core/graph"
)

// LowerFile parses src with the supplier and lowers it into store. The
// store is left untouched when parsing fails.
func (l *Lowerer) LowerFile(store *graph.Store, path string, src []byte) (*graph.File, error) {
	file, err := l.supplier.ParseFile(path, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return l.LowerAST(store, file, src), nil
}

// LowerAST lowers an already parsed unit and records its File entry.
func (l *Lowerer) LowerAST(store *graph.Store, file *ast.File, src []byte) *graph.File {
	p := l.NewPass(store, file.Path)
	rec := &graph.File{ID: p.NewID(), Path: file.Path}

	ast.Walk(newVisitor(p, rec), file.Stmts)

	rec.Routines = append([]graph.ID{}, p.routines...)
	rec.Hash = Hash(src)
	store.AddFile(rec)

	st := store.Stats()
	p.log.Debug("lowered unit",
		"routines", len(rec.Routines),
		"statements", st.Statements,
		"clauses", st.Clauses)
	return rec
}

// Hash is the hex BLAKE2b-256 digest of a unit's source.
func Hash(src []byte) string {
	sum := blake2b.Sum256(src)
	return hex.EncodeToString(sum[:])
}
