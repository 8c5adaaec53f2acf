package markup

import (
	"fmt"
	"strings"

	"github.com/quire-dev/quire/internal/model"
)

// Result is the outcome of parsing one page source.
type Result struct {
	// Root is the element tree, nil when the body holds nothing parseable.
	// When the body has exactly one top-level element it is the root;
	// otherwise the top-level nodes become children of a synthetic
	// fragment root.
	Root model.Node

	// Frontmatter is the decoded header block, empty when absent.
	Frontmatter *model.Frontmatter

	// Errors collects recoverable parse problems in source order. A
	// non-nil Root alongside errors is a best-effort partial tree.
	Errors []string

	// Source is the exact text the tree was parsed from. Node locations
	// are byte ranges into it.
	Source string
}

// OK reports whether the source parsed cleanly.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Parse decodes frontmatter and body markup from a full page source.
// Every location in the returned tree is an absolute byte range into
// source, so mutations computed against the tree splice the original
// text directly.
func Parse(source string) Result {
	res := Result{Source: source}

	fm, err := ParseFrontmatter(source)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	res.Frontmatter = fm

	p := &parser{src: source, pos: fm.BodyStart, base: fm.BodyStart}
	nodes, _ := p.parseNodes("")
	res.Errors = append(res.Errors, p.errs...)

	res.Root = chooseRoot(nodes, fm.BodyStart, len(source))
	if res.Root != nil {
		assignIDs(res.Root, []int{0})
	}

	return res
}

// chooseRoot picks the tree root from the top-level nodes. A single
// element surrounded only by whitespace and comments is the root itself;
// anything else non-empty gets a synthetic fragment wrapper so sibling
// paths stay stable.
func chooseRoot(nodes []model.Node, bodyStart, bodyEnd int) model.Node {
	var lone *model.Element
	count := 0
	meaningful := false

	for _, n := range nodes {
		switch t := n.(type) {
		case *model.Element:
			lone = t
			count++
			meaningful = true
		case *model.Text:
			if !t.Comment && strings.TrimSpace(t.Value) != "" {
				meaningful = true
				count += 2 // forces a fragment
			}
		}
	}

	if !meaningful {
		return nil
	}

	if count == 1 {
		return lone
	}

	return &model.Element{
		Tag:      model.FragmentTag,
		Children: nodes,
		Loc:      model.Span{Start: bodyStart, End: bodyEnd},
	}
}

// assignIDs stamps every node with its path-derived identifier. Paths
// number all children, text nodes included, so identical tree shapes
// always yield identical identifiers.
func assignIDs(n model.Node, path []int) {
	switch t := n.(type) {
	case *model.Element:
		t.ID = model.PathID(t.Tag, path)
		for i, c := range t.Children {
			child := make([]int, len(path), len(path)+1)
			copy(child, path)
			assignIDs(c, append(child, i))
		}
	case *model.Text:
		t.ID = model.PathID(model.TextTag, path)
	}
}

type parser struct {
	src  string
	pos  int
	base int

	stack []string
	errs  []string
}

func (p *parser) errorf(at int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errs = append(p.errs, fmt.Sprintf("offset %d: %s", at, msg))
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

// atLineStart reports whether pos sits at the start of a body line.
func (p *parser) atLineStart() bool {
	return p.pos == p.base || p.src[p.pos-1] == '\n'
}

func (p *parser) atFence() bool {
	return p.atLineStart() && p.hasPrefix("```")
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isNameByte(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '-' || c == '_' || c == '.'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) readName() string {
	start := p.pos
	for !p.eof() && isNameByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// parseNodes consumes siblings until the closing tag of parent, a
// recoverable mismatch, or end of input. The boolean reports whether the
// matching close tag was actually consumed.
func (p *parser) parseNodes(parent string) ([]model.Node, bool) {
	var nodes []model.Node

	for {
		if p.eof() {
			if parent != "" {
				p.errorf(p.pos, "missing closing tag for <%s>", parent)
			}
			return nodes, false
		}

		if p.atFence() {
			nodes = append(nodes, p.parseFence())
			continue
		}

		if p.src[p.pos] == '<' {
			rest := p.src[p.pos:]
			switch {
			case strings.HasPrefix(rest, "<!--"):
				nodes = append(nodes, p.parseComment())
				continue

			case strings.HasPrefix(rest, "</"):
				name, width, ok := p.peekCloseTag()
				if !ok {
					break // stray "</" scans as text
				}
				if name == parent {
					p.pos += width
					return nodes, true
				}
				if p.openAbove(name) {
					// An ancestor's close tag: this element was left
					// unclosed, unwind without consuming.
					p.errorf(p.pos, "missing closing tag for <%s>", parent)
					return nodes, false
				}
				p.errorf(p.pos, "stray closing tag </%s>", name)
				p.pos += width
				continue

			case len(rest) > 1 && isNameStart(rest[1]):
				nodes = append(nodes, p.parseElement())
				continue
			}
		}

		nodes = append(nodes, p.scanText())
	}
}

// openAbove reports whether name matches an element still open beneath
// the current one on the stack.
func (p *parser) openAbove(name string) bool {
	for i := len(p.stack) - 2; i >= 0; i-- {
		if p.stack[i] == name {
			return true
		}
	}
	return false
}

// peekCloseTag matches "</name>" (spaces allowed before '>') without
// consuming it. width is the full byte length of the close tag.
func (p *parser) peekCloseTag() (name string, width int, ok bool) {
	i := p.pos + 2
	start := i
	for i < len(p.src) && isNameByte(p.src[i]) {
		i++
	}
	if i == start {
		return "", 0, false
	}
	name = p.src[start:i]
	for i < len(p.src) && isSpace(p.src[i]) {
		i++
	}
	if i >= len(p.src) || p.src[i] != '>' {
		return "", 0, false
	}
	return name, i + 1 - p.pos, true
}

// scanText consumes at least one byte of plain text, stopping before the
// next tag-like '<' or a fence opener at line start.
func (p *parser) scanText() *model.Text {
	start := p.pos
	p.pos++ // always make progress, even when stuck on a lone '<'

	for !p.eof() {
		if p.atFence() {
			break
		}
		if p.src[p.pos] == '<' {
			if p.pos+1 < len(p.src) {
				c := p.src[p.pos+1]
				if isNameStart(c) || c == '/' || c == '!' {
					break
				}
			}
		}
		p.pos++
	}

	return &model.Text{
		Value: p.src[start:p.pos],
		Loc:   model.Span{Start: start, End: p.pos},
	}
}

// parseComment consumes "<!--" through "-->". An unterminated comment
// swallows the rest of the input.
func (p *parser) parseComment() *model.Text {
	start := p.pos
	end := strings.Index(p.src[p.pos:], "-->")
	if end < 0 {
		p.errorf(start, "unterminated comment")
		p.pos = len(p.src)
	} else {
		p.pos += end + len("-->")
	}

	return &model.Text{
		Value:   p.src[start:p.pos],
		Comment: true,
		Loc:     model.Span{Start: start, End: p.pos},
	}
}

// parseFence consumes a fenced code region: an opener line whose first
// bytes are ``` with an optional info word, raw body lines, and a closer
// line of ```. The body text child keeps every byte between the two
// marker lines.
func (p *parser) parseFence() model.Node {
	start := p.pos
	p.pos += 3

	infoStart := p.pos
	nl := strings.IndexByte(p.src[p.pos:], '\n')
	if nl < 0 {
		p.errorf(start, "unterminated code fence")
		info := strings.TrimSpace(p.src[infoStart:])
		p.pos = len(p.src)
		return &model.Element{
			Tag:   model.BlockCode,
			Fence: &model.FenceInfo{Info: info},
			Loc:   model.Span{Start: start, End: p.pos},
		}
	}
	info := strings.TrimSpace(p.src[infoStart : p.pos+nl])
	bodyStart := p.pos + nl + 1

	bodyEnd, end := p.findFenceClose(bodyStart)
	p.pos = end

	body := &model.Text{
		Value: p.src[bodyStart:bodyEnd],
		Loc:   model.Span{Start: bodyStart, End: bodyEnd},
	}
	return &model.Element{
		Tag:      model.BlockCode,
		Fence:    &model.FenceInfo{Info: info},
		Children: []model.Node{body},
		Loc:      model.Span{Start: start, End: end},
	}
}

// findFenceClose locates the closing ``` line at or after from. It
// returns the body end (exclusive) and the position just past the closer
// and its newline. A missing closer claims the rest of the input.
func (p *parser) findFenceClose(from int) (bodyEnd, end int) {
	i := from
	for i <= len(p.src)-3 {
		if (i == p.base || p.src[i-1] == '\n') && p.src[i:i+3] == "```" {
			rest := i + 3
			if rest >= len(p.src) {
				return i, rest
			}
			if p.src[rest] == '\n' {
				return i, rest + 1
			}
			if p.src[rest] == '\r' && rest+1 < len(p.src) && p.src[rest+1] == '\n' {
				return i, rest + 2
			}
		}
		next := strings.IndexByte(p.src[i:], '\n')
		if next < 0 {
			break
		}
		i += next + 1
	}

	p.errorf(from, "unterminated code fence")
	return len(p.src), len(p.src)
}

// parseElement consumes one element from '<' through its close tag,
// self-close, or recovery point.
func (p *parser) parseElement() model.Node {
	start := p.pos
	p.pos++
	tag := p.readName()

	props := p.parseProps(tag)

	switch {
	case p.hasPrefix("/>"):
		p.pos += 2
		return &model.Element{
			Tag:         tag,
			Props:       props,
			SelfClosing: true,
			Loc:         model.Span{Start: start, End: p.pos},
		}

	case !p.eof() && p.src[p.pos] == '>':
		p.pos++
		if IsVoid(tag) {
			return &model.Element{
				Tag:   tag,
				Props: props,
				Loc:   model.Span{Start: start, End: p.pos},
			}
		}

		p.stack = append(p.stack, tag)
		children, _ := p.parseNodes(tag)
		p.stack = p.stack[:len(p.stack)-1]

		return &model.Element{
			Tag:      tag,
			Props:    props,
			Children: children,
			Loc:      model.Span{Start: start, End: p.pos},
		}

	default:
		p.errorf(start, "unterminated tag <%s>", tag)
		return &model.Element{
			Tag:   tag,
			Props: props,
			Loc:   model.Span{Start: start, End: p.pos},
		}
	}
}

// parseProps consumes attributes up to but not including the tag
// terminator. Each property location covers its full source segment,
// name through value.
func (p *parser) parseProps(tag string) []model.Prop {
	var props []model.Prop

	for {
		p.skipSpace()
		if p.eof() {
			return props
		}

		c := p.src[p.pos]
		if c == '>' || p.hasPrefix("/>") {
			return props
		}

		if c == '{' {
			prop, ok := p.parseSpread()
			if !ok {
				return props
			}
			props = append(props, prop)
			continue
		}

		if !isNameStart(c) {
			p.errorf(p.pos, "unexpected %q in <%s> attributes", string(c), tag)
			p.pos++
			continue
		}

		start := p.pos
		name := p.readName()
		p.skipSpace()

		if p.eof() || p.src[p.pos] != '=' {
			props = append(props, model.Prop{
				Name: name,
				Val:  model.BareValue(),
				Loc:  model.Span{Start: start, End: start + len(name)},
			})
			continue
		}

		p.pos++
		p.skipSpace()
		val, end := p.parsePropValue(tag, name)
		props = append(props, model.Prop{
			Name: name,
			Val:  val,
			Loc:  model.Span{Start: start, End: end},
		})
	}
}

// parseSpread consumes a braced attribute segment, normally {...expr}.
func (p *parser) parseSpread() (model.Prop, bool) {
	start := p.pos
	raw, ok := p.parseBraced()
	if !ok {
		return model.Prop{}, false
	}

	return model.Prop{
		Val:    model.ExprValue(raw),
		Spread: strings.HasPrefix(strings.TrimSpace(raw), "..."),
		Loc:    model.Span{Start: start, End: p.pos},
	}, true
}

// parsePropValue consumes a quoted string, a braced expression, or a
// bare word. Bare words decode as strings and re-serialize quoted.
func (p *parser) parsePropValue(tag, name string) (model.PropValue, int) {
	if p.eof() {
		p.errorf(p.pos, "missing value for %s in <%s>", name, tag)
		return model.BareValue(), p.pos
	}

	switch c := p.src[p.pos]; {
	case c == '"' || c == '\'':
		s, ok := p.parseQuoted(c)
		if !ok {
			p.errorf(p.pos, "unterminated string for %s in <%s>", name, tag)
		}
		return model.StringValue(s), p.pos

	case c == '{':
		raw, ok := p.parseBraced()
		if !ok {
			p.errorf(p.pos, "unterminated expression for %s in <%s>", name, tag)
		}
		return model.ExprValue(raw), p.pos

	default:
		start := p.pos
		for !p.eof() {
			c := p.src[p.pos]
			if isSpace(c) || c == '>' || c == '/' {
				break
			}
			p.pos++
		}
		return model.StringValue(p.src[start:p.pos]), p.pos
	}
}

// parseQuoted consumes a quoted string with backslash escapes and
// returns its decoded value.
func (p *parser) parseQuoted(quote byte) (string, bool) {
	p.pos++
	var b strings.Builder

	for !p.eof() {
		c := p.src[p.pos]
		switch c {
		case quote:
			p.pos++
			return b.String(), true
		case '\\':
			if p.pos+1 < len(p.src) {
				p.pos++
				b.WriteByte(p.src[p.pos])
				p.pos++
				continue
			}
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}

	return b.String(), false
}

// parseBraced consumes a balanced {...} segment, string-literal aware,
// and returns the raw text between the outer braces.
func (p *parser) parseBraced() (string, bool) {
	open := p.pos
	p.pos++
	depth := 1

	for !p.eof() {
		switch c := p.src[p.pos]; c {
		case '{':
			depth++
			p.pos++
		case '}':
			depth--
			p.pos++
			if depth == 0 {
				return p.src[open+1 : p.pos-1], true
			}
		case '"', '\'', '`':
			p.skipStringLiteral(c)
		default:
			p.pos++
		}
	}

	return p.src[open+1:], false
}

// skipStringLiteral advances past a string literal inside a braced
// expression, honoring backslash escapes.
func (p *parser) skipStringLiteral(quote byte) {
	p.pos++
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		if c == '\\' && !p.eof() {
			p.pos++
			continue
		}
		if c == quote {
			return
		}
	}
}
