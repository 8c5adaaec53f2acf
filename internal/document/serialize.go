package document

import (
	"reflect"
	"strings"

	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
)

// ToTree rebuilds an element tree from a block document: nil for an empty
// document, the element itself for a single block, and a fragment with
// blank-line gaps for several.
func ToTree(doc *model.Document) model.Node {
	if doc == nil || len(doc.Blocks) == 0 {
		return nil
	}

	if len(doc.Blocks) == 1 {
		return toElement(doc.Blocks[0])
	}

	children := make([]model.Node, 0, 2*len(doc.Blocks)-1)
	for i, b := range doc.Blocks {
		if i > 0 {
			children = append(children, &model.Text{Value: "\n\n"})
		}
		children = append(children, toElement(b))
	}

	return &model.Element{Tag: model.FragmentTag, Children: children}
}

// Serialize renders a complete page: frontmatter header, then the blocks
// separated by blank lines. It is the full-rewrite path used when
// surgical mutation cannot resolve, so the output is normalized rather
// than faithful to any previous layout.
func Serialize(doc *model.Document, fm *model.Frontmatter) (string, error) {
	header, err := markup.SerializeFrontmatter(fm)
	if err != nil {
		return "", err
	}

	var parts []string
	if doc != nil {
		for _, b := range doc.Blocks {
			parts = append(parts, strings.TrimSuffix(BlockMarkup(b), "\n"))
		}
	}
	body := strings.Join(parts, "\n\n")

	switch {
	case header == "" && body == "":
		return "", nil
	case body == "":
		return header, nil
	case header == "":
		return body + "\n", nil
	default:
		return header + "\n" + body + "\n", nil
	}
}

// BlockMarkup renders one block as standalone source markup.
func BlockMarkup(b *model.Block) string {
	return markup.SerializeNode(toElement(b))
}

// InlineMarkup renders a block's content only: what goes between its tags,
// or the raw body for a code block. Void blocks have no content. Fence
// bodies stay newline-terminated so a spliced-in body never swallows the
// closing fence line.
func InlineMarkup(b *model.Block) string {
	if b.Type == model.BlockCode {
		body := rawText(b.Children)
		if body != "" && !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		return body
	}
	if b.Void {
		return ""
	}

	var sb strings.Builder
	for _, n := range inlineNodes(b.Children) {
		sb.WriteString(markup.SerializeNode(n))
	}
	return sb.String()
}

// toElement is the block-to-element counterpart of convertElement. Code
// blocks re-emit as fences regardless of how the editor built them.
func toElement(b *model.Block) *model.Element {
	if b.Type == model.BlockCode {
		el := &model.Element{
			Tag:   model.BlockCode,
			ID:    b.ID,
			Fence: &model.FenceInfo{},
		}
		if p, ok := b.Prop("lang"); ok {
			el.Fence.Info = p.Val.Str
		}
		if body := rawText(b.Children); body != "" {
			el.Children = []model.Node{&model.Text{Value: body}}
		}
		return el
	}

	el := &model.Element{
		Tag:   b.Type,
		ID:    b.ID,
		Props: append([]model.Prop(nil), b.Props...),
	}

	if b.Void {
		if !markup.IsVoid(b.Type) {
			el.SelfClosing = true
		}
		return el
	}

	el.Children = inlineNodes(b.Children)
	return el
}

// inlineNodes renders block children as tree nodes, re-wrapping marked
// runs in their formatting tags. Empty unmarked runs (the placeholder)
// render to nothing.
func inlineNodes(children []model.Inline) []model.Node {
	var nodes []model.Node

	for _, c := range children {
		switch t := c.(type) {
		case model.TextRun:
			if t.Text == "" && t.Marks.None() && t.Href == "" {
				continue
			}
			nodes = append(nodes, wrapRun(t))
		case *model.Block:
			nodes = append(nodes, toElement(t))
		}
	}

	return nodes
}

// wrapRun nests a text run in its mark tags, innermost formatting closest
// to the text and the link outermost.
func wrapRun(run model.TextRun) model.Node {
	var n model.Node = &model.Text{Value: markup.EscapeText(run.Text)}

	if run.Marks.Code {
		n = wrapTag("code", n)
	}
	if run.Marks.Strike {
		n = wrapTag("s", n)
	}
	if run.Marks.Underline {
		n = wrapTag("u", n)
	}
	if run.Marks.Italic {
		n = wrapTag("em", n)
	}
	if run.Marks.Bold {
		n = wrapTag("strong", n)
	}

	if run.Href != "" {
		n = &model.Element{
			Tag:      "a",
			Props:    []model.Prop{{Name: "href", Val: model.StringValue(run.Href)}},
			Children: []model.Node{n},
		}
	}

	return n
}

func wrapTag(tag string, child model.Node) model.Node {
	return &model.Element{Tag: tag, Children: []model.Node{child}}
}

func rawText(children []model.Inline) string {
	var sb strings.Builder
	for _, c := range children {
		if t, ok := c.(model.TextRun); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// InlinesEqual compares inline content structurally: runs by text, marks,
// and link; nested blocks recursively, ignoring identifiers.
func InlinesEqual(a, b []model.Inline) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		switch at := a[i].(type) {
		case model.TextRun:
			bt, ok := b[i].(model.TextRun)
			if !ok || at != bt {
				return false
			}
		case *model.Block:
			bb, ok := b[i].(*model.Block)
			if !ok || !BlocksEqual(at, bb) {
				return false
			}
		default:
			return false
		}
	}

	return true
}

// BlocksEqual compares two blocks structurally, ignoring identifiers and
// anchors: identity is the pairing's concern, not equality's.
func BlocksEqual(a, b *model.Block) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.Type == b.Type &&
		a.Void == b.Void &&
		PropsEqual(a.Props, b.Props) &&
		InlinesEqual(a.Children, b.Children)
}

// PropsEqual compares attribute sets by decoded value. Named attributes
// compare orderlessly; spread attributes compare by raw text in order.
func PropsEqual(a, b []model.Prop) bool {
	var aspr, bspr []string
	am := make(map[string]any, len(a))
	bm := make(map[string]any, len(b))

	for _, p := range a {
		if p.Spread {
			aspr = append(aspr, p.Val.Raw)
			continue
		}
		am[p.Name] = markup.PropValueOf(p)
	}
	for _, p := range b {
		if p.Spread {
			bspr = append(bspr, p.Val.Raw)
			continue
		}
		bm[p.Name] = markup.PropValueOf(p)
	}

	if len(aspr) != len(bspr) || len(am) != len(bm) {
		return false
	}
	for i := range aspr {
		if aspr[i] != bspr[i] {
			return false
		}
	}
	for k, v := range am {
		bv, ok := bm[k]
		if !ok || !reflect.DeepEqual(v, bv) {
			return false
		}
	}

	return true
}
