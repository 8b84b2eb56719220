// Package template lowers Blade templates: control directives and output
// expressions become placeholder tags bound to statements, and the rewritten
// markup becomes a tree of graph elements.
package template

import (
	"sort"
	"strings"

	"github.com/stellify/stellify/core/ast"
	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/internal/suggest"
	"github.com/stellify/stellify/runtime/lowering"
)

// Prefix starts every placeholder tag.
const Prefix = "blade-"

// StatementAttr carries the bound statement id on a placeholder tag.
const StatementAttr = "data-statement"

type role uint8

const (
	opener role = iota
	branch
	closer
)

type directive struct {
	family string
	role   role
}

// directives lists the control directives that become placeholders. Branch
// directives are valid inside any family listed in branches.
var directives = map[string]directive{
	"if":            {"if", opener},
	"elseif":        {"if", branch},
	"else":          {"if", branch},
	"endif":         {"if", closer},
	"unless":        {"unless", opener},
	"endunless":     {"unless", closer},
	"isset":         {"isset", opener},
	"endisset":      {"isset", closer},
	"empty":         {"empty", opener},
	"endempty":      {"empty", closer},
	"auth":          {"auth", opener},
	"endauth":       {"auth", closer},
	"guest":         {"guest", opener},
	"endguest":      {"guest", closer},
	"production":    {"production", opener},
	"endproduction": {"production", closer},
	"foreach":       {"foreach", opener},
	"endforeach":    {"foreach", closer},
	"forelse":       {"forelse", opener},
	"endforelse":    {"forelse", closer},
	"for":           {"for", opener},
	"endfor":        {"for", closer},
	"while":         {"while", opener},
	"endwhile":      {"while", closer},
}

var branches = map[string][]string{
	"elseif": {"if", "unless"},
	"else":   {"if", "unless", "isset", "empty", "auth", "guest", "production"},
	"empty":  {"forelse"},
}

var directiveNames = func() []string {
	names := make([]string, 0, len(directives))
	for n := range directives {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}()

type placeholder struct {
	family string
	tag    string
}

type rewriter struct {
	p     *lowering.Pass
	src   string
	pos   int
	out   strings.Builder
	stack []placeholder
}

// Rewrite replaces the control directives and output expressions of src
// with placeholder tags, creating a bound statement for each. Malformed
// input never aborts the rewrite: unbalanced directives are left as text
// and unparsable expressions degrade to unknown clauses.
func Rewrite(p *lowering.Pass, src string) string {
	r := &rewriter{p: p, src: src}
	r.out.Grow(len(src))
	r.run()
	return r.out.String()
}

func (r *rewriter) run() {
	for r.pos < len(r.src) {
		rest := r.src[r.pos:]
		switch {
		case strings.HasPrefix(rest, "{{--"):
			r.comment()
		case strings.HasPrefix(rest, "@{{"):
			r.out.WriteString("{{")
			r.pos += 3
		case strings.HasPrefix(rest, "{!!"):
			r.output("{!!", "!!}", "blade-raw")
		case strings.HasPrefix(rest, "{{"):
			r.output("{{", "}}", "blade-output")
		case rest[0] == '@':
			r.at()
		default:
			r.out.WriteByte(rest[0])
			r.pos++
		}
	}
	for i := len(r.stack) - 1; i >= 0; i-- {
		r.p.Logger().Warn("unclosed directive", "directive", "@"+r.stack[i].family)
		r.out.WriteString("</" + r.stack[i].tag + ">")
	}
	r.stack = nil
}

func (r *rewriter) comment() {
	end := strings.Index(r.src[r.pos+4:], "--}}")
	if end < 0 {
		r.pos = len(r.src)
		return
	}
	r.pos += 4 + end + 4
}

func (r *rewriter) output(opening, closing, tag string) {
	body := r.src[r.pos+len(opening):]
	end := strings.Index(body, closing)
	if end < 0 {
		r.out.WriteString(opening)
		r.pos += len(opening)
		return
	}
	inner := strings.TrimSpace(body[:end])
	r.pos += len(opening) + end + len(closing)

	seq := []graph.ID{r.p.Canonical(graph.ClausePunctuation, opening)}
	if x := r.parse(inner); x != nil {
		seq = append(seq, r.p.Ref(x))
	} else {
		seq = append(seq, r.p.Unknown())
	}
	seq = append(seq, r.p.Canonical(graph.ClausePunctuation, closing))
	id := r.p.Emit(graph.StatementOutput, seq)
	r.out.WriteString("<" + tag + " " + StatementAttr + `="` + string(id) + `"></` + tag + ">")
}

func (r *rewriter) at() {
	start := r.pos
	if strings.HasPrefix(r.src[start:], "@@") {
		r.out.WriteByte('@')
		r.pos += 2
		return
	}
	if start > 0 && isWord(r.src[start-1]) {
		r.out.WriteByte('@')
		r.pos++
		return
	}

	end := start + 1
	for end < len(r.src) && isWord(r.src[end]) {
		end++
	}
	name := r.src[start+1 : end]
	d, known := directives[name]
	if !known {
		r.suggest(name)
		r.out.WriteString(r.src[start:end])
		r.pos = end
		return
	}

	args, after, hasArgs := r.arguments(end)
	if name == "empty" && !hasArgs && r.inFamily(branches["empty"]) {
		d = directive{"forelse", branch}
	}

	switch d.role {
	case opener:
		id := r.directive(name, args, hasArgs)
		tag := Prefix + name
		r.stack = append(r.stack, placeholder{family: d.family, tag: tag})
		r.out.WriteString("<" + tag + " " + StatementAttr + `="` + string(id) + `">`)
	case branch:
		if !r.inFamily(branches[name]) {
			r.unbalanced(name, start, end)
			return
		}
		top := r.stack[len(r.stack)-1]
		id := r.directive(name, args, hasArgs)
		tag := Prefix + name
		r.stack[len(r.stack)-1] = placeholder{family: top.family, tag: tag}
		r.out.WriteString("</" + top.tag + "><" + tag + " " + StatementAttr + `="` + string(id) + `">`)
	case closer:
		if !r.inFamily([]string{d.family}) {
			r.unbalanced(name, start, end)
			return
		}
		top := r.stack[len(r.stack)-1]
		r.stack = r.stack[:len(r.stack)-1]
		r.out.WriteString("</" + top.tag + ">")
		// Closing directives never take arguments; keep anything that
		// looked like them.
		after = end
	}
	r.pos = after
}

func (r *rewriter) unbalanced(name string, start, end int) {
	r.p.Logger().Warn("unbalanced directive left as text", "directive", "@"+name, "offset", start)
	r.out.WriteString(r.src[start:end])
	r.pos = end
}

func (r *rewriter) inFamily(families []string) bool {
	if len(r.stack) == 0 {
		return false
	}
	top := r.stack[len(r.stack)-1].family
	for _, f := range families {
		if f == top {
			return true
		}
	}
	return false
}

// arguments reads a parenthesized argument list starting at or after
// spaces from i. It returns the inner text and the offset after ')'.
func (r *rewriter) arguments(i int) (string, int, bool) {
	j := i
	for j < len(r.src) && (r.src[j] == ' ' || r.src[j] == '\t') {
		j++
	}
	if j >= len(r.src) || r.src[j] != '(' {
		return "", i, false
	}
	depth := 0
	var quote byte
	for k := j; k < len(r.src); k++ {
		c := r.src[k]
		switch {
		case quote != 0:
			if c == '\\' {
				k++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return r.src[j+1 : k], k + 1, true
			}
		}
	}
	return "", i, false
}

// directive emits the statement for an opening or branch directive.
func (r *rewriter) directive(name, args string, hasArgs bool) graph.ID {
	seq := []graph.ID{r.p.Canonical(graph.ClauseKeyword, "@"+name)}
	if hasArgs {
		seq = append(seq, r.p.Canonical(graph.ClausePunctuation, "("))
		switch name {
		case "foreach", "forelse":
			seq = r.iteration(args, seq)
		case "for":
			seq = r.header(args, seq)
		default:
			seq = r.flatten(args, seq)
		}
		seq = append(seq, r.p.Canonical(graph.ClausePunctuation, ")"))
	}
	return r.p.Emit(graph.StatementDirective, seq)
}

// iteration lowers "items as $k => $v".
func (r *rewriter) iteration(args string, seq []graph.ID) []graph.ID {
	items, binding, ok := splitTop(args, " as ")
	if !ok {
		return r.flatten(args, seq)
	}
	seq = r.flatten(items, seq)
	seq = append(seq, r.p.Canonical(graph.ClauseKeyword, "as"))
	if key, value, ok := splitTop(binding, "=>"); ok {
		seq = r.flatten(key, seq)
		seq = append(seq, r.p.Canonical(graph.ClausePunctuation, "=>"))
		return r.flatten(value, seq)
	}
	return r.flatten(binding, seq)
}

// header lowers the three clauses of a for loop header.
func (r *rewriter) header(args string, seq []graph.ID) []graph.ID {
	for i, part := range splitAllTop(args, ";") {
		if i > 0 {
			seq = append(seq, r.p.Canonical(graph.ClausePunctuation, ";"))
		}
		if strings.TrimSpace(part) != "" {
			seq = r.flatten(part, seq)
		}
	}
	return seq
}

func (r *rewriter) flatten(src string, seq []graph.ID) []graph.ID {
	if x := r.parse(src); x != nil {
		return r.p.Flatten(x, seq)
	}
	return append(seq, r.p.Unknown())
}

func (r *rewriter) parse(src string) ast.Expr {
	x, err := r.p.ParseExpr(src)
	if err != nil {
		r.p.Logger().Debug("expression did not parse", "src", src, "error", err)
		return nil
	}
	return x
}

// suggest warns about a near miss of a control directive.
func (r *rewriter) suggest(name string) {
	if name == "" {
		return
	}
	if match := closest(name); match != "" {
		r.p.Logger().Warn("unknown directive", "directive", "@"+name, "suggestion", "@"+match)
	}
}

// closest returns the control directive name that name most likely
// misspells, or "" when nothing is close.
func closest(name string) string {
	if _, ok := directives[name]; ok || len(name) < 3 {
		return ""
	}
	return suggest.Closest(name, directiveNames)
}

func isWord(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// splitTop splits s at the first occurrence of sep outside brackets and
// quotes.
func splitTop(s, sep string) (string, string, bool) {
	if i := indexTop(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

func splitAllTop(s, sep string) []string {
	var parts []string
	for {
		i := indexTop(s, sep)
		if i < 0 {
			return append(parts, s)
		}
		parts = append(parts, s[:i])
		s = s[i+len(sep):]
	}
}

func indexTop(s, sep string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		case c == '\'' || c == '"':
			quote = c
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
			continue
		case c == ')' || c == ']' || c == '}':
			depth--
			continue
		}
		if depth == 0 && strings.HasPrefix(s[i:], sep) {
			return i
		}
	}
	return -1
}
