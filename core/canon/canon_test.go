package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellify/stellify/core/graph"
)

func TestDefaultTableLoads(t *testing.T) {
	tbl := Default()
	require.NotNil(t, tbl)
	assert.Equal(t, 1, tbl.Version())
	assert.Greater(t, tbl.Len(), 200)
	assert.Same(t, tbl, Default(), "table must be loaded once")
}

func TestDirectiveIDsArePinned(t *testing.T) {
	// Published ids; downstream databases already reference them.
	pinned := map[string]graph.ID{
		"@if":      "4b19462a-3fc3-47dd-bd83-9a3635e4d20b",
		"@elseif":  "cc34e605-8390-4f18-a66f-4885621a1693",
		"@else":    "41a55d66-fdf8-4345-979b-3714453af961",
		"@foreach": "13a0ed23-5db6-411c-8efc-37313ae8b3b3",
		"@while":   "ec038718-675a-4bd8-aa9d-47ff22be44c4",
	}
	for name, want := range pinned {
		e, ok := Default().Directive(name)
		require.True(t, ok, name)
		assert.Equal(t, want, e.ID, name)
		assert.Equal(t, graph.ClauseKeyword, e.Kind)
	}

	e, ok := Default().Directive("unless")
	require.True(t, ok, "lookup without '@' prefix")
	assert.Equal(t, "@unless", e.Text)

	start, ok := Default().Punctuation("{{")
	require.True(t, ok)
	assert.Equal(t, graph.ID("2f0c88fe-1c1d-48e9-9704-d6ae707525d7"), start.ID)
}

func TestLookupIsKindAndCaseSensitive(t *testing.T) {
	tbl := Default()

	fn, ok := tbl.Lookup(graph.ClauseFunction, "count")
	require.True(t, ok)
	m, ok := tbl.Lookup(graph.ClauseMethod, "count")
	require.True(t, ok)
	assert.NotEqual(t, fn.ID, m.ID, "same text under different kinds gets different ids")

	_, ok = tbl.Keyword("IF")
	assert.False(t, ok)
	_, ok = tbl.Operator("<=>")
	assert.False(t, ok, "spaceship operator is deliberately unmapped")
}

func TestEntryClauseAndReverseLookup(t *testing.T) {
	tbl := Default()
	arrow, ok := tbl.Punctuation("->")
	require.True(t, ok)

	c := arrow.Clause()
	assert.Equal(t, &graph.Clause{ID: arrow.ID, Kind: graph.ClausePunctuation, Text: "->"}, c)

	back, ok := tbl.ByID(arrow.ID)
	require.True(t, ok)
	assert.Equal(t, arrow, back)
	assert.True(t, tbl.IsCanonical(arrow.ID))
	assert.False(t, tbl.IsCanonical("not-an-entry"))
}

func TestParseRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"no version": `
ops:
  kind: operator
  entries:
    "+": 0828d26d-c8cf-4260-9b0e-b7aa4ee15ca9
`,
		"bad kind": `
version: 1
ops:
  kind: banana
  entries:
    "+": 0828d26d-c8cf-4260-9b0e-b7aa4ee15ca9
`,
		"not a uuid": `
version: 1
ops:
  kind: operator
  entries:
    "+": plus
`,
		"reused id": `
version: 1
ops:
  kind: operator
  entries:
    "+": 0828d26d-c8cf-4260-9b0e-b7aa4ee15ca9
    "-": 0828d26d-c8cf-4260-9b0e-b7aa4ee15ca9
`,
		"duplicate key across sections": `
version: 1
a:
  kind: keyword
  entries:
    "if": 0828d26d-c8cf-4260-9b0e-b7aa4ee15ca9
b:
  kind: keyword
  entries:
    "if": 1828d26d-c8cf-4260-9b0e-b7aa4ee15ca9
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}
