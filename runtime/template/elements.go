package template

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/runtime/lowering"
)

// wrappers are document-level elements. They are dropped from the output
// and their children become roots.
var wrappers = map[string]bool{"html": true, "head": true, "body": true}

// voids never have children or an end tag.
var voids = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "param": true,
	"source": true, "track": true, "wbr": true,
}

// rawText elements hold script or style text. Only placeholders are
// elements inside them.
var rawText = map[string]bool{"script": true, "style": true}

var paragraphClosers = closers("address", "article", "aside", "blockquote", "div", "dl",
	"fieldset", "footer", "form", "h1", "h2", "h3", "h4", "h5", "h6", "header", "hgroup",
	"hr", "main", "nav", "ol", "p", "pre", "section", "table", "ul")

// closedByChildren lists, per open element, the start tags that end it
// implicitly when it is the innermost open element.
var closedByChildren = map[string]map[string]bool{
	"li":       closers("li"),
	"dt":       closers("dt", "dd"),
	"dd":       closers("dt", "dd"),
	"option":   closers("option", "optgroup"),
	"optgroup": closers("optgroup"),
	"tr":       closers("tr"),
	"td":       closers("td", "th", "tr"),
	"th":       closers("td", "th", "tr"),
	"p":        paragraphClosers,
}

func closers(tags ...string) map[string]bool {
	m := make(map[string]bool, len(tags))
	for _, t := range tags {
		m[t] = true
	}
	return m
}

// Category classifies a tag.
func Category(tag string) graph.Category {
	switch {
	case strings.HasPrefix(tag, Prefix):
		return graph.CategoryDirective
	case tag == "input" || tag == "textarea" || tag == "select":
		return graph.CategoryInput
	}
	return graph.CategoryLayout
}

// builder turns a token stream into elements. Unlike an HTML5 tree
// builder it never moves or drops elements: every start tag becomes a
// child of the innermost open element, so placeholders stay where the
// directive was written, inside tables and selects too.
type builder struct {
	p     *lowering.Pass
	elems []*graph.Element
	open  []*graph.Element
	texts map[graph.ID]*strings.Builder
	bound map[graph.ID]graph.ID // statement -> element
}

// BuildElements parses rewritten markup and stores its elements in
// document order. The first element that is not a document wrapper is
// named name. It returns the ids of the stored elements.
func BuildElements(p *lowering.Pass, markup, name string) ([]graph.ID, error) {
	b := &builder{
		p:     p,
		texts: map[graph.ID]*strings.Builder{},
		bound: map[graph.ID]graph.ID{},
	}
	if err := b.build(html.NewTokenizer(strings.NewReader(markup))); err != nil {
		return nil, fmt.Errorf("parse markup of %s: %w", name, err)
	}

	stripped := map[graph.ID]bool{}
	for _, e := range b.elems {
		if wrappers[e.Tag] {
			stripped[e.ID] = true
		}
	}
	var ids []graph.ID
	named := false
	for _, e := range b.elems {
		if stripped[e.ID] {
			continue
		}
		if stripped[e.Parent] {
			e.Parent = ""
		}
		e.Children = slices.DeleteFunc(e.Children, func(id graph.ID) bool { return stripped[id] })
		if !named {
			e.Name = name
			named = true
		}
		if t, ok := b.texts[e.ID]; ok {
			e.Text = t.String()
		}
		p.Store().AddElement(e)
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (b *builder) build(z *html.Tokenizer) error {
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		case html.TextToken:
			b.text(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := string(z.Raw())
			tok := z.Token()
			// The tokenizer reads script, textarea and friends as raw
			// text. Placeholders inside them must still be seen as tags.
			z.NextIsNotRawText()
			if b.inRawText() && !strings.HasPrefix(tok.Data, Prefix) {
				b.text(raw)
				continue
			}
			b.start(tok, tt == html.SelfClosingTagToken)
		case html.EndTagToken:
			raw := string(z.Raw())
			tok := z.Token()
			if b.inRawText() && !rawText[tok.Data] && !strings.HasPrefix(tok.Data, Prefix) {
				b.text(raw)
				continue
			}
			b.end(tok.Data)
		}
	}
}

func (b *builder) top() *graph.Element {
	if len(b.open) == 0 {
		return nil
	}
	return b.open[len(b.open)-1]
}

// inRawText reports whether the innermost non-placeholder open element is
// a script or style.
func (b *builder) inRawText() bool {
	for i := len(b.open) - 1; i >= 0; i-- {
		if tag := b.open[i].Tag; !strings.HasPrefix(tag, Prefix) {
			return rawText[tag]
		}
	}
	return false
}

func (b *builder) start(tok html.Token, selfClosing bool) {
	if top := b.top(); top != nil && closedByChildren[top.Tag][tok.Data] {
		b.open = b.open[:len(b.open)-1]
	}
	var parent graph.ID
	top := b.top()
	if top != nil {
		parent = top.ID
	}
	e := b.element(tok, parent)
	if top != nil {
		top.AddChild(e.ID)
	}
	b.elems = append(b.elems, e)
	if !selfClosing && !voids[e.Tag] {
		b.open = append(b.open, e)
	}
}

// end closes the innermost open element named tag and everything opened
// inside it. An end tag with no open element is ignored.
func (b *builder) end(tag string) {
	for i := len(b.open) - 1; i >= 0; i-- {
		if b.open[i].Tag == tag {
			b.open = b.open[:i]
			return
		}
	}
	b.p.Logger().Debug("stray end tag", "tag", tag)
}

func (b *builder) text(s string) {
	top := b.top()
	if top == nil {
		return
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	t, ok := b.texts[top.ID]
	if !ok {
		t = &strings.Builder{}
		b.texts[top.ID] = t
	}
	t.WriteString(s)
}

func (b *builder) element(tok html.Token, parent graph.ID) *graph.Element {
	tag := strings.ToLower(tok.Data)
	e := &graph.Element{
		ID:       b.p.NewID(),
		Tag:      tag,
		Category: Category(tag),
		Parent:   parent,
		Children: []graph.ID{},
	}
	for _, a := range tok.Attr {
		if a.Key == StatementAttr {
			if e.Category == graph.CategoryDirective {
				b.bind(e, graph.ID(a.Val))
			}
			continue
		}
		if e.Attributes == nil {
			e.Attributes = map[string]string{}
		}
		if _, dup := e.Attributes[a.Key]; !dup {
			e.Attributes[a.Key] = a.Val
		}
	}
	return e
}

func (b *builder) bind(e *graph.Element, id graph.ID) {
	if _, ok := b.p.Store().Statement(id); !ok {
		b.p.Logger().Debug("placeholder bound to unknown statement", "tag", e.Tag, "statement", id)
		return
	}
	if prev, ok := b.bound[id]; ok {
		b.p.Logger().Debug("statement already bound", "tag", e.Tag, "statement", id, "element", prev)
		return
	}
	b.bound[id] = e.ID
	e.Statement = id
}

// ViewName is the logical name of the template at path under root:
// "admin/users/index.blade.php" becomes "admin.users.index".
func ViewName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, ".blade.php")
	rel = strings.TrimSuffix(rel, ".php")
	return strings.ReplaceAll(rel, "/", ".")
}
