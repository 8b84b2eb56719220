package lowering

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellify/stellify/core/ast"
	"github.com/stellify/stellify/core/canon"
	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/runtime/parser"
)

func newLowerer() *Lowerer {
	return New(parser.New(), WithIDs(&graph.SequenceSource{}))
}

func lower(t *testing.T, src string) (*graph.Store, *graph.File) {
	t.Helper()
	store := graph.NewStore()
	f, err := newLowerer().LowerFile(store, "test.php", []byte(src))
	require.NoError(t, err)
	require.NoError(t, graph.Validate(store))
	return store, f
}

func renders(s *graph.Store, ids []graph.ID) [][]string {
	out := make([][]string, len(ids))
	for i, id := range ids {
		out[i] = s.Render(id)
	}
	return out
}

func topLevel(s *graph.Store) []*graph.Statement {
	var out []*graph.Statement
	for _, st := range s.Statements() {
		if st.Kind != "" {
			out = append(out, st)
		}
	}
	return out
}

func TestFunctionScenario(t *testing.T) {
	store, f := lower(t, `<?php function add($a, $b) { return $a + $b; }`)

	require.Len(t, store.Routines(), 1)
	r := store.Routines()[0]
	assert.Equal(t, "add", r.Name)
	assert.Equal(t, graph.RoutineFunction, r.Kind)
	assert.Equal(t, []graph.ID{r.ID}, f.Routines)

	require.Len(t, r.Parameters, 2)
	for i, name := range []string{"a", "b"} {
		c, ok := store.Clause(r.Parameters[i])
		require.True(t, ok)
		assert.Equal(t, graph.ClauseVariable, c.Kind)
		assert.Equal(t, name, c.Text)
		assert.Equal(t, "mixed", c.Type)
	}

	require.Len(t, r.Body, 1)
	ret, ok := store.Statement(r.Body[0])
	require.True(t, ok)
	assert.Equal(t, graph.StatementReturn, ret.Kind)
	require.Len(t, ret.Sequence, 2)

	kw, _ := canon.Default().Keyword("return")
	assert.Equal(t, kw.ID, ret.Sequence[0])

	sum, ok := store.Statement(ret.Sequence[1])
	require.True(t, ok, "the returned expression is a nested statement")
	assert.Empty(t, sum.Kind)

	plus, _ := canon.Default().Operator("+")
	assert.Equal(t, plus.ID, sum.Sequence[1])

	if diff := cmp.Diff([]string{"return", "a", "+", "b"}, store.Render(ret.ID)); diff != "" {
		t.Errorf("Render mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(
		[]graph.ClauseKind{graph.ClauseKeyword, graph.ClauseVariable, graph.ClauseOperator, graph.ClauseVariable},
		store.RenderKinds(ret.ID),
	); diff != "" {
		t.Errorf("RenderKinds mismatch (-want +got):\n%s", diff)
	}
}

func TestStatements(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want [][]string
		kind []graph.StatementKind
	}{
		{
			name: "assignment",
			src:  `$x = 1;`,
			want: [][]string{{"x", "=", "1"}},
			kind: []graph.StatementKind{graph.StatementAssignment},
		},
		{
			name: "compound assignment with call",
			src:  `$y .= foo($a, 2);`,
			want: [][]string{{"y", ".=", "foo", "(", "a", ",", "2", ")"}},
			kind: []graph.StatementKind{graph.StatementAssignment},
		},
		{
			name: "property target",
			src:  `$this->name = $n;`,
			want: [][]string{{"this", "->", "name", "=", "n"}},
			kind: []graph.StatementKind{graph.StatementAssignment},
		},
		{
			name: "conditional flattens its condition",
			src:  `if ($a && !$b) { $c = 0x1F; }`,
			want: [][]string{
				{"if", "(", "a", "&&", "!", "b", ")"},
				{"c", "=", "31"},
			},
			kind: []graph.StatementKind{graph.StatementConditional, graph.StatementAssignment},
		},
		{
			name: "loops keep only their keyword",
			src:  `foreach ($xs as $x) {} for ($i = 0; $i < 3; $i++) {} while (true) {} do {} while (false);`,
			want: [][]string{{"foreach"}, {"for"}, {"while"}, {"do"}},
			kind: []graph.StatementKind{graph.StatementLoop, graph.StatementLoop, graph.StatementLoop, graph.StatementLoop},
		},
		{
			name: "bare return",
			src:  `return;`,
			want: [][]string{{"return"}},
			kind: []graph.StatementKind{graph.StatementReturn},
		},
		{
			name: "other statements are skipped but traversed",
			src:  `try { echo 1; $z = 2; } catch (Exception $e) {}`,
			want: [][]string{{"z", "=", "2"}},
			kind: []graph.StatementKind{graph.StatementAssignment},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := lower(t, "<?php "+tt.src)
			top := topLevel(store)

			var ids []graph.ID
			var kinds []graph.StatementKind
			for _, st := range top {
				ids = append(ids, st.ID)
				kinds = append(kinds, st.Kind)
			}
			if diff := cmp.Diff(tt.want, renders(store, ids)); diff != "" {
				t.Errorf("Render mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.kind, kinds)
			assert.Empty(t, store.Routines(), "top-level statements are unattached")
		})
	}
}

func TestMethodRecord(t *testing.T) {
	store, f := lower(t, `<?php
namespace App\Services;

class Billing extends Base implements Payable, Countable
{
    public static function make(?User $u, int|string $id, $rest)
    {
        if ($u) {
            $x = 1;
        } elseif ($id > 2) {
        } else {
            return;
        }
        foreach ($rest as $r) {}
    }

    private function helper() { return null; }
}
`)

	assert.Equal(t, `App\Services`, f.Namespace)
	assert.Equal(t, "Billing", f.Name)
	assert.Equal(t, "class", f.Kind)
	assert.Equal(t, []string{"Base"}, f.Extends)
	assert.Equal(t, []string{"Payable", "Countable"}, f.Implements)
	assert.Len(t, f.Hash, 64)

	require.Len(t, store.Routines(), 2)
	mk, helper := store.Routines()[0], store.Routines()[1]
	assert.Equal(t, []graph.ID{mk.ID, helper.ID}, f.Routines)

	assert.Equal(t, graph.RoutineMethod, mk.Kind)
	assert.Equal(t, "public", mk.Scope)
	assert.True(t, mk.Static)
	assert.Equal(t, "private", helper.Scope)
	assert.False(t, helper.Static)

	var types []string
	for _, id := range mk.Parameters {
		c, _ := store.Clause(id)
		types = append(types, c.Type)
	}
	assert.Equal(t, []string{"?User", "int|string", "mixed"}, types)

	want := [][]string{
		{"if", "(", "u", ")"},
		{"x", "=", "1"},
		{"elseif", "(", "id", ">", "2", ")"},
		{"else"},
		{"return"},
		{"foreach"},
	}
	if diff := cmp.Diff(want, renders(store, mk.Body)); diff != "" {
		t.Errorf("method body mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"return", "null"}}, renders(store, helper.Body)); diff != "" {
		t.Errorf("helper body mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownConstructsDegrade(t *testing.T) {
	store, _ := lower(t, `<?php
function f() {
    $cb = function () { return 1; };
    $m = match ($x) { 1 => 'a', default => 'b' };
}
`)
	r := store.Routines()[0]
	if diff := cmp.Diff([][]string{{"cb", "=", ""}, {"m", "=", ""}}, renders(store, r.Body)); diff != "" {
		t.Errorf("Render mismatch (-want +got):\n%s", diff)
	}

	kinds := store.RenderKinds(r.Body[0])
	assert.Equal(t, graph.ClauseUnknown, kinds[len(kinds)-1])
	assert.Len(t, store.Statements(), 2, "closure bodies are opaque")
}

func TestCanonicalStability(t *testing.T) {
	l := New(parser.New())
	eq, _ := l.Table().Operator("=")
	kw, _ := l.Table().Keyword("if")

	for _, src := range []string{`<?php $a = 1;`, `<?php if ($b) { $c = 2; }`} {
		store := graph.NewStore()
		_, err := l.LowerFile(store, "unit.php", []byte(src))
		require.NoError(t, err)

		for _, st := range topLevel(store) {
			switch st.Kind {
			case graph.StatementAssignment:
				assert.Equal(t, eq.ID, st.Sequence[1])
			case graph.StatementConditional:
				assert.Equal(t, kw.ID, st.Sequence[0])
			}
		}
		assert.True(t, store.IsCanonical(eq.ID))
	}
}

func TestUnmappedOperatorsAreMinted(t *testing.T) {
	tests := []struct {
		sym  string
		src  string
		want [][]string
	}{
		{
			sym:  "<=>",
			src:  `$x = $a <=> $b; $y = $c <=> $d;`,
			want: [][]string{{"x", "=", "a", "<=>", "b"}, {"y", "=", "c", "<=>", "d"}},
		},
		{
			sym:  "**",
			src:  `$x = $a ** $b; $y = $c ** $d;`,
			want: [][]string{{"x", "=", "a", "**", "b"}, {"y", "=", "c", "**", "d"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.sym, func(t *testing.T) {
			_, mapped := newLowerer().Table().Operator(tt.sym)
			require.False(t, mapped, "%s has a canonical id", tt.sym)

			store, _ := lower(t, "<?php "+tt.src)
			var ids []graph.ID
			for _, st := range topLevel(store) {
				ids = append(ids, st.ID)
			}
			if diff := cmp.Diff(tt.want, renders(store, ids)); diff != "" {
				t.Errorf("Render mismatch (-want +got):\n%s", diff)
			}

			var minted []graph.ID
			for _, c := range store.Clauses() {
				if c.Text == tt.sym {
					assert.Equal(t, graph.ClauseOperator, c.Kind)
					assert.False(t, store.IsCanonical(c.ID))
					minted = append(minted, c.ID)
				}
			}
			require.Len(t, minted, 2, "one clause per occurrence")
			assert.NotEqual(t, minted[0], minted[1])
		})
	}
}

func TestLowerExprModes(t *testing.T) {
	x, err := parser.New().ParseExpr(`$a + $b * $c`)
	require.NoError(t, err)

	p := newLowerer().NewPass(graph.NewStore(), "expr")

	nested, ok := p.LowerExpr(x, "n", Statement).(StatementCreated)
	require.True(t, ok)
	assert.Equal(t, graph.ID("n"), nested.Ref())
	require.Len(t, nested.Statement.Sequence, 3)
	_, isStmt := p.Store().Statement(nested.Statement.Sequence[2])
	assert.True(t, isStmt, "composite operands are referenced in statement mode")

	flat, ok := p.LowerExpr(x, "f", Inline).(StatementCreated)
	require.True(t, ok)
	assert.Len(t, flat.Statement.Sequence, 5)
	for _, id := range flat.Statement.Sequence {
		_, isClause := p.Store().Clause(id)
		assert.True(t, isClause)
	}

	assert.Equal(t, p.Store().Render("n"), p.Store().Render("f"))

	leaf, ok := p.LowerExpr(&ast.Variable{Name: "q"}, "v", Statement).(ClauseResult)
	require.True(t, ok)
	assert.Equal(t, "v", string(leaf.Ref()))
	assert.Equal(t, "q", leaf.Clause.Text)
}

func TestFlattenShapes(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{`User::find($id)`, []string{"User", "::", "find", "(", "id", ")"}},
		{`$u?->profile`, []string{"u", "?->", "profile"}},
		{`$obj->{$dyn}`, []string{"obj", "->", "{", "dyn", "}"}},
		{`$obj->$dyn`, []string{"obj", "->", "dyn"}},
		{`$obj->{$m}()`, []string{"obj", "->", "{", "m", "}", "(", ")"}},
		{`$obj->$m()`, []string{"obj", "->", "m", "(", ")"}},
		{`self::LIMIT`, []string{"self", "::", "LIMIT"}},
		{`static::$cache`, []string{"static", "::", "cache"}},
		{`new Post(title: $t)`, []string{"new", "Post", "(", "title", ":", "t", ")"}},
		{`['a' => 1, ...$rest]`, []string{"[", "a", "=>", "1", ",", "...", "rest", "]"}},
		{`array(1, 2)`, []string{"array", "(", "1", ",", "2", ")"}},
		{`$xs[0]`, []string{"xs", "[", "0", "]"}},
		{`$a ?: $b`, []string{"a", "?", ":", "b"}},
		{`(int) $n`, []string{"(int)", "n"}},
		{`$i++`, []string{"i", "++"}},
		{`isset($a)`, []string{"isset", "(", "a", ")"}},
		{`1.0 + 1_000`, []string{"1.0", "+", "1000"}},
		{`$a <=> $b`, []string{"a", "<=>", "b"}},
		{`2 ** $n`, []string{"2", "**", "n"}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			x, err := parser.New().ParseExpr(tt.src)
			require.NoError(t, err)
			p := newLowerer().NewPass(graph.NewStore(), "expr")

			var got []string
			for _, id := range p.Flatten(x, nil) {
				c, ok := p.Store().Clause(id)
				require.True(t, ok)
				got = append(got, c.Text)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Flatten mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLowerFileParseError(t *testing.T) {
	store := graph.NewStore()
	_, err := newLowerer().LowerFile(store, "broken.php", []byte(`<?php function (`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.php")
	assert.Equal(t, graph.Stats{}, store.Stats())
}

func TestPopRequiresInnermostRecord(t *testing.T) {
	p := newLowerer().NewPass(graph.NewStore(), "unit")
	assert.Panics(t, func() {
		p.pop(&graph.Routine{Name: "ghost"})
	})
}

// Lowering the same source with a fresh deterministic id source must yield
// the same records.
func TestLoweringIsDeterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same source, same records", prop.ForAll(
		func(name string, n int) bool {
			src := fmt.Sprintf("<?php function f($%s) { $%s = %d + $%s; return $%s; }", name, name, n, name, name)
			a, b := graph.NewStore(), graph.NewStore()
			if _, err := newLowerer().LowerFile(a, "f.php", []byte(src)); err != nil {
				return false
			}
			if _, err := newLowerer().LowerFile(b, "f.php", []byte(src)); err != nil {
				return false
			}
			return graph.Validate(a) == nil &&
				cmp.Equal(a.Statements(), b.Statements()) &&
				cmp.Equal(a.Clauses(), b.Clauses()) &&
				cmp.Equal(a.Routines(), b.Routines())
		},
		gen.Identifier(),
		gen.IntRange(0, 1_000_000),
	))

	properties.TestingRun(t)
}
