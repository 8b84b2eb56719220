package graph

// Render expands id into the flat list of clause texts an editor would emit,
// descending into nested statements. Unknown ids render as nothing.
func (s *Store) Render(id ID) []string {
	var out []string
	s.render(id, &out, 0)
	return out
}

// maxRenderDepth bounds recursion on malformed (cyclic) input.
const maxRenderDepth = 512

func (s *Store) render(id ID, out *[]string, depth int) {
	if depth > maxRenderDepth {
		return
	}
	switch rec := s.index[id].(type) {
	case *Clause:
		*out = append(*out, rec.Text)
	case *Statement:
		for _, child := range rec.Sequence {
			s.render(child, out, depth+1)
		}
	}
}

// RenderKinds is Render but yields clause kinds instead of texts.
func (s *Store) RenderKinds(id ID) []ClauseKind {
	var out []ClauseKind
	var walk func(ID, int)
	walk = func(id ID, depth int) {
		if depth > maxRenderDepth {
			return
		}
		switch rec := s.index[id].(type) {
		case *Clause:
			out = append(out, rec.Kind)
		case *Statement:
			for _, child := range rec.Sequence {
				walk(child, depth+1)
			}
		}
	}
	walk(id, 0)
	return out
}
