// Package document converts between the parsed element tree and the flat
// block document the structured editor works on, and serializes block
// documents back to page source. Conversion normalizes: inline formatting
// folds into run marks, comments and layout whitespace drop, and a lone
// block-level wrapper dissolves one level so its children edit as
// top-level blocks.
package document

import (
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
)

// wrapperTags are the native containers that dissolve when they are the
// sole top-level element and hold only block-level children.
var wrapperTags = map[atom.Atom]bool{
	atom.Div:     true,
	atom.Section: true,
	atom.Main:    true,
	atom.Article: true,
}

// FromTree flattens a parsed tree into the block document. A nil root (an
// empty body) yields a single empty paragraph so the editor always has a
// block to type into.
func FromTree(root model.Node) *model.Document {
	var top []model.Node

	switch t := root.(type) {
	case nil:
	case *model.Element:
		if t.IsFragment() || isWrapper(t) {
			top = t.Children
		} else {
			top = []model.Node{t}
		}
	default:
		top = []model.Node{root}
	}

	blocks := convertChildren(top)
	if len(blocks) == 0 {
		blocks = []*model.Block{emptyParagraph()}
	}

	return &model.Document{Blocks: blocks}
}

func emptyParagraph() *model.Block {
	return &model.Block{
		Type:     model.BlockParagraph,
		ID:       model.PathID(model.BlockParagraph, []int{0}),
		Children: model.Placeholder(),
	}
}

// isWrapper reports whether an element is a dissolvable layout container:
// a generic native wrapper whose children are all block-level (plus
// ignorable whitespace and comments), with at least one element among
// them.
func isWrapper(el *model.Element) bool {
	if el.Fence != nil || !wrapperTags[atom.Lookup([]byte(el.Tag))] {
		return false
	}

	elems := 0
	for _, c := range el.Children {
		switch t := c.(type) {
		case *model.Element:
			if t.Fence == nil && !markup.IsBlockLike(t.Tag) {
				return false
			}
			elems++
		case *model.Text:
			if !t.Comment && strings.TrimSpace(t.Value) != "" {
				return false
			}
		}
	}

	return elems > 0
}

// convertChildren turns sibling nodes into blocks. Whitespace-only runs
// and comments vanish; loose text becomes a paragraph; stray inline
// elements get a paragraph wrapper so every block is block-level.
func convertChildren(nodes []model.Node) []*model.Block {
	var blocks []*model.Block

	for _, n := range nodes {
		switch t := n.(type) {
		case *model.Text:
			if t.Comment || strings.TrimSpace(t.Value) == "" {
				continue
			}
			blocks = append(blocks, &model.Block{
				Type:     model.BlockParagraph,
				ID:       t.ID,
				Children: []model.Inline{model.TextRun{Text: strings.TrimSpace(t.Value)}},
			})

		case *model.Element:
			if t.Fence == nil && markup.IsInline(t.Tag) {
				blocks = append(blocks, &model.Block{
					Type:     model.BlockParagraph,
					ID:       t.ID,
					Children: inlinesOf([]model.Node{t}),
				})
				continue
			}
			blocks = append(blocks, convertElement(t))
		}
	}

	return blocks
}

// convertElement turns one element into a block. Code fences become code
// blocks carrying their raw body and a lang property; custom components
// keep their tag as the block type and their attributes verbatim; native
// voids become non-editable placeholder blocks.
func convertElement(el *model.Element) *model.Block {
	if el.Fence != nil {
		return fenceBlock(el)
	}

	b := &model.Block{
		Type:  el.Tag,
		ID:    el.ID,
		Props: append([]model.Prop(nil), el.Props...),
	}

	if markup.IsNative(el.Tag) && markup.IsVoid(el.Tag) {
		b.Void = true
		b.Children = model.Placeholder()
		return b
	}

	if !markup.IsNative(el.Tag) && !hasMeaningfulChildren(el) {
		b.Void = true
		b.Children = model.Placeholder()
		return b
	}

	b.Children = inlinesOf(el.Children)
	if len(b.Children) == 0 {
		b.Children = model.Placeholder()
	}

	return b
}

func fenceBlock(el *model.Element) *model.Block {
	b := &model.Block{Type: model.BlockCode, ID: el.ID}

	if el.Fence.Info != "" {
		b.Props = []model.Prop{{Name: "lang", Val: model.StringValue(el.Fence.Info)}}
	}

	var body strings.Builder
	for _, c := range el.Children {
		if t, ok := c.(*model.Text); ok && !t.Comment {
			body.WriteString(t.Value)
		}
	}

	b.Children = []model.Inline{model.TextRun{Text: body.String()}}
	return b
}

func hasMeaningfulChildren(el *model.Element) bool {
	for _, c := range el.Children {
		switch t := c.(type) {
		case *model.Element:
			return true
		case *model.Text:
			if !t.Comment && strings.TrimSpace(t.Value) != "" {
				return true
			}
		}
	}
	return false
}

// runState carries the inline formatting accumulated while descending
// through folded inline elements.
type runState struct {
	marks model.Marks
	href  string
}

// inlinesOf converts an element's child nodes to inline content. Inline
// formatting tags fold into run marks; anything block-level nests as a
// child block. When block-level children are present the layout
// whitespace between them drops, otherwise inter-run spacing is content
// and stays.
func inlinesOf(nodes []model.Node) []model.Inline {
	container := false
	for _, n := range nodes {
		if el, ok := n.(*model.Element); ok && (el.Fence != nil || !markup.IsInline(el.Tag)) {
			container = true
			break
		}
	}

	return appendInlines(nil, nodes, runState{}, container)
}

func appendInlines(out []model.Inline, nodes []model.Node, st runState, container bool) []model.Inline {
	for _, n := range nodes {
		switch t := n.(type) {
		case *model.Text:
			if t.Comment {
				continue
			}
			if container && strings.TrimSpace(t.Value) == "" {
				continue
			}
			out = append(out, model.TextRun{Text: t.Value, Marks: st.marks, Href: st.href})

		case *model.Element:
			if t.Fence == nil && markup.IsInline(t.Tag) {
				out = append(out, appendInlines(nil, t.Children, foldMark(t, st), container)...)
				continue
			}
			out = append(out, convertElement(t))
		}
	}

	return out
}

// foldMark merges one inline element's formatting into the run state.
// Links contribute their href when it is a plain string; attributes that
// have no run-mark equivalent are normalized away.
func foldMark(el *model.Element, st runState) runState {
	switch atom.Lookup([]byte(el.Tag)) {
	case atom.B, atom.Strong:
		st.marks.Bold = true
	case atom.I, atom.Em:
		st.marks.Italic = true
	case atom.Code:
		st.marks.Code = true
	case atom.U:
		st.marks.Underline = true
	case atom.S, atom.Del:
		st.marks.Strike = true
	case atom.A:
		if p, ok := el.Prop("href"); ok && p.Val.Kind == model.PropString {
			st.href = p.Val.Str
		}
	}
	return st
}
