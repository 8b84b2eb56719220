package mongo

import "github.com/stellify/stellify/core/graph"

type fileDocument struct {
	ID         string   `bson:"_id"`
	Ord        int      `bson:"ord"`
	Path       string   `bson:"path"`
	Namespace  string   `bson:"namespace,omitempty"`
	Name       string   `bson:"name,omitempty"`
	Kind       string   `bson:"kind,omitempty"`
	Extends    []string `bson:"extends,omitempty"`
	Implements []string `bson:"implements,omitempty"`
	Routines   []string `bson:"routines"`
	Hash       string   `bson:"hash"`
}

type methodDocument struct {
	ID         string   `bson:"_id"`
	Ord        int      `bson:"ord"`
	Name       string   `bson:"name"`
	Kind       string   `bson:"kind"`
	Scope      string   `bson:"scope,omitempty"`
	Static     bool     `bson:"static,omitempty"`
	Parameters []string `bson:"parameters"`
	Body       []string `bson:"body"`
}

type statementDocument struct {
	ID       string   `bson:"_id"`
	Ord      int      `bson:"ord"`
	Kind     string   `bson:"kind,omitempty"`
	Sequence []string `bson:"sequence"`
}

type clauseDocument struct {
	ID   string `bson:"_id"`
	Ord  int    `bson:"ord"`
	Kind string `bson:"kind"`
	Text string `bson:"text"`
	Type string `bson:"type,omitempty"`
}

type elementDocument struct {
	ID         string            `bson:"_id"`
	Ord        int               `bson:"ord"`
	Tag        string            `bson:"tag"`
	Category   string            `bson:"category"`
	Attributes map[string]string `bson:"attributes,omitempty"`
	Text       string            `bson:"text,omitempty"`
	Statement  string            `bson:"statement,omitempty"`
	Parent     string            `bson:"parent,omitempty"`
	Children   []string          `bson:"children"`
	Name       string            `bson:"name,omitempty"`
}

func (d fileDocument) key() string      { return d.ID }
func (d methodDocument) key() string    { return d.ID }
func (d statementDocument) key() string { return d.ID }
func (d clauseDocument) key() string    { return d.ID }
func (d elementDocument) key() string   { return d.ID }

func strs(ids []graph.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func ids(ss []string) []graph.ID {
	out := make([]graph.ID, len(ss))
	for i, s := range ss {
		out[i] = graph.ID(s)
	}
	return out
}

func fileDoc(f *graph.File, ord int) fileDocument {
	return fileDocument{
		ID:         string(f.ID),
		Ord:        ord,
		Path:       f.Path,
		Namespace:  f.Namespace,
		Name:       f.Name,
		Kind:       f.Kind,
		Extends:    f.Extends,
		Implements: f.Implements,
		Routines:   strs(f.Routines),
		Hash:       f.Hash,
	}
}

func fromFileDoc(d *fileDocument) *graph.File {
	return &graph.File{
		ID:         graph.ID(d.ID),
		Path:       d.Path,
		Namespace:  d.Namespace,
		Name:       d.Name,
		Kind:       d.Kind,
		Extends:    d.Extends,
		Implements: d.Implements,
		Routines:   ids(d.Routines),
		Hash:       d.Hash,
	}
}

func methodDoc(r *graph.Routine, ord int) methodDocument {
	return methodDocument{
		ID:         string(r.ID),
		Ord:        ord,
		Name:       r.Name,
		Kind:       string(r.Kind),
		Scope:      r.Scope,
		Static:     r.Static,
		Parameters: strs(r.Parameters),
		Body:       strs(r.Body),
	}
}

func fromMethodDoc(d *methodDocument) *graph.Routine {
	return &graph.Routine{
		ID:         graph.ID(d.ID),
		Name:       d.Name,
		Kind:       graph.RoutineKind(d.Kind),
		Scope:      d.Scope,
		Static:     d.Static,
		Parameters: ids(d.Parameters),
		Body:       ids(d.Body),
	}
}

func statementDoc(st *graph.Statement, ord int) statementDocument {
	return statementDocument{
		ID:       string(st.ID),
		Ord:      ord,
		Kind:     string(st.Kind),
		Sequence: strs(st.Sequence),
	}
}

func fromStatementDoc(d *statementDocument) *graph.Statement {
	return &graph.Statement{
		ID:       graph.ID(d.ID),
		Kind:     graph.StatementKind(d.Kind),
		Sequence: ids(d.Sequence),
	}
}

func clauseDoc(c *graph.Clause, ord int) clauseDocument {
	return clauseDocument{
		ID:   string(c.ID),
		Ord:  ord,
		Kind: string(c.Kind),
		Text: c.Text,
		Type: c.Type,
	}
}

func fromClauseDoc(d *clauseDocument) *graph.Clause {
	return &graph.Clause{
		ID:   graph.ID(d.ID),
		Kind: graph.ClauseKind(d.Kind),
		Text: d.Text,
		Type: d.Type,
	}
}

func elementDoc(e *graph.Element, ord int) elementDocument {
	return elementDocument{
		ID:         string(e.ID),
		Ord:        ord,
		Tag:        e.Tag,
		Category:   string(e.Category),
		Attributes: e.Attributes,
		Text:       e.Text,
		Statement:  string(e.Statement),
		Parent:     string(e.Parent),
		Children:   strs(e.Children),
		Name:       e.Name,
	}
}

func fromElementDoc(d *elementDocument) *graph.Element {
	return &graph.Element{
		ID:         graph.ID(d.ID),
		Tag:        d.Tag,
		Category:   graph.Category(d.Category),
		Attributes: d.Attributes,
		Text:       d.Text,
		Statement:  graph.ID(d.Statement),
		Parent:     graph.ID(d.Parent),
		Children:   ids(d.Children),
		Name:       d.Name,
	}
}
