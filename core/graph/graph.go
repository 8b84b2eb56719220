// Package graph defines the records produced by lowering: clauses, statements,
// routines (function and method records), elements and files. Records refer to
// each other only by ID, so a set of records can be stored, merged and shipped
// without pointers and re-rendered by an editor that never saw the source.
package graph

// ID identifies a record. Canonical IDs come from the canonical table and are
// stable across runs; all other IDs are minted fresh by an IDSource.
type ID string

// ClauseKind is the lexical category of a clause.
type ClauseKind string

const (
	ClauseString      ClauseKind = "string"
	ClauseInteger     ClauseKind = "integer"
	ClauseFloat       ClauseKind = "float"
	ClauseVariable    ClauseKind = "variable"
	ClauseOperator    ClauseKind = "operator"
	ClauseKeyword     ClauseKind = "keyword"
	ClauseClass       ClauseKind = "class"
	ClauseMethod      ClauseKind = "method"
	ClauseFunction    ClauseKind = "function"
	ClauseProperty    ClauseKind = "property"
	ClausePunctuation ClauseKind = "punctuation"
	ClauseUnknown     ClauseKind = "unknown"
)

// Valid reports whether k is one of the known clause kinds.
func (k ClauseKind) Valid() bool {
	switch k {
	case ClauseString, ClauseInteger, ClauseFloat, ClauseVariable, ClauseOperator,
		ClauseKeyword, ClauseClass, ClauseMethod, ClauseFunction, ClauseProperty,
		ClausePunctuation, ClauseUnknown:
		return true
	}
	return false
}

// Clause is an atomic token of the graph. Clauses are immutable once stored.
type Clause struct {
	ID   ID         `json:"id"`
	Kind ClauseKind `json:"kind"`
	Text string     `json:"text"`
	// Type is the declared type of a parameter clause ("mixed" when absent,
	// a leading '?' marks a nullable annotation). Empty for other clauses.
	Type string `json:"type,omitempty"`
}

// StatementKind tags top-level statements. Nested expression statements carry
// no kind.
type StatementKind string

const (
	StatementAssignment  StatementKind = "assignment"
	StatementConditional StatementKind = "conditional"
	StatementLoop        StatementKind = "loop"
	StatementReturn      StatementKind = "return"
	StatementDirective   StatementKind = "directive"
	StatementOutput      StatementKind = "output"
)

// Statement is an ordered sequence of clause and statement references in
// re-rendering order.
type Statement struct {
	ID       ID            `json:"id"`
	Kind     StatementKind `json:"kind,omitempty"`
	Sequence []ID          `json:"sequence"`
}

// RoutineKind distinguishes free functions from class methods.
type RoutineKind string

const (
	RoutineFunction RoutineKind = "function"
	RoutineMethod   RoutineKind = "method"
)

// Routine is a function or method record. Body only ever grows.
type Routine struct {
	ID         ID          `json:"id"`
	Name       string      `json:"name"`
	Kind       RoutineKind `json:"kind"`
	Scope      string      `json:"scope,omitempty"`
	Static     bool        `json:"static,omitempty"`
	Parameters []ID        `json:"parameters"`
	Body       []ID        `json:"body"`
}

// Category classifies elements for the editor.
type Category string

const (
	CategoryLayout    Category = "s-layout"
	CategoryDirective Category = "s-directive"
	CategoryInput     Category = "s-input"
)

// Element is one node of a template's markup tree.
type Element struct {
	ID         ID                `json:"id"`
	Tag        string            `json:"tag"`
	Category   Category          `json:"category"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Text       string            `json:"text,omitempty"`
	Statement  ID                `json:"statement,omitempty"`
	Parent     ID                `json:"parent,omitempty"`
	Children   []ID              `json:"children"`
	Name       string            `json:"name,omitempty"`
}

// AddChild appends child unless it is already present.
func (e *Element) AddChild(child ID) {
	for _, c := range e.Children {
		if c == child {
			return
		}
	}
	e.Children = append(e.Children, child)
}

// File describes one lowered PHP source unit.
type File struct {
	ID         ID       `json:"id"`
	Path       string   `json:"path"`
	Namespace  string   `json:"namespace,omitempty"`
	Name       string   `json:"name,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Extends    []string `json:"extends,omitempty"`
	Implements []string `json:"implements,omitempty"`
	Routines   []ID     `json:"routines"`
	Hash       string   `json:"hash"`
}
