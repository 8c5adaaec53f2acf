// Package model defines the data structures shared by the quire engine:
// the annotated element tree produced by parsing, the flat block document
// edited by the structured editor, and the mutations that bridge the two.
package model

import (
	"strconv"
	"strings"
)

// FragmentTag is the reserved tag of the synthetic root element used when a
// source has multiple top-level siblings.
const FragmentTag = "#fragment"

// TextTag is the identifier prefix used for text nodes.
const TextTag = "text"

// NodeID is a deterministic node identifier derived from the node's
// structural path, e.g. "h1_0.0" for tag "h1" at path [0,0]. Identical path
// implies identical id, which also means ids change when siblings reorder:
// an id is only a reliable lookup key against the single parse it came from.
type NodeID string

// PathID builds the identifier for a node from its tag and tree path.
func PathID(tag string, path []int) NodeID {
	var b strings.Builder

	b.WriteString(tag)
	b.WriteByte('_')

	for i, step := range path {
		if i > 0 {
			b.WriteByte('.')
		}

		b.WriteString(strconv.Itoa(step))
	}

	return NodeID(b.String())
}

// Node is the closed set of element-tree node kinds: *Element (native
// markup, custom components, and the #fragment root) and *Text.
type Node interface {
	// Ref returns the node's path-derived identifier.
	Ref() NodeID
	// Bounds returns the node's byte range within the parsed source.
	Bounds() Span

	node()
}

// PropKind classifies how an attribute value appeared in the source.
type PropKind int

const (
	// PropString is a quoted string literal value.
	PropString PropKind = iota
	// PropExpr is a braced expression; the raw source between the braces
	// is preserved verbatim.
	PropExpr
	// PropBare is a valueless attribute name, read as boolean true.
	PropBare
)

// PropValue holds one attribute value.
type PropValue struct {
	Kind PropKind
	// Str is the decoded literal for PropString values.
	Str string
	// Raw is the expression source (without braces) for PropExpr values.
	Raw string
}

// StringValue builds a quoted-literal prop value.
func StringValue(s string) PropValue { return PropValue{Kind: PropString, Str: s} }

// ExprValue builds a braced-expression prop value from raw source.
func ExprValue(raw string) PropValue { return PropValue{Kind: PropExpr, Raw: raw} }

// BareValue builds a valueless (boolean true) prop value.
func BareValue() PropValue { return PropValue{Kind: PropBare} }

// Prop is a single ordered attribute of an element. Spread props preserve
// an explicit `{...expr}` marker: Name is empty and Val carries the raw
// expression including the dots.
type Prop struct {
	Name   string
	Val    PropValue
	Spread bool
	// Loc covers the full attribute segment (name through value end) so a
	// property rewrite can replace exactly this range.
	Loc Span
}

// FenceInfo records that an element was written as a fenced code block
// rather than tag markup, so serialization can re-emit the fence form.
type FenceInfo struct {
	// Info is the fence info string (typically a language name).
	Info string `json:"info"`
}

// Element is a tagged node: native markup, a custom component, or the
// synthetic #fragment root.
type Element struct {
	Tag         string
	Props       []Prop
	Children    []Node
	SelfClosing bool
	// Fence is non-nil when the element came from a fenced code block.
	Fence *FenceInfo

	ID  NodeID
	Loc Span
}

func (e *Element) Ref() NodeID  { return e.ID }
func (e *Element) Bounds() Span { return e.Loc }
func (e *Element) node()        {}

// IsFragment reports whether the element is the synthetic multi-root
// wrapper.
func (e *Element) IsFragment() bool { return e.Tag == FragmentTag }

// Prop returns the named attribute and whether it exists.
func (e *Element) Prop(name string) (Prop, bool) {
	for _, p := range e.Props {
		if !p.Spread && p.Name == name {
			return p, true
		}
	}

	return Prop{}, false
}

// Text is a run of raw character data between tags. Comment runs
// (`<!-- -->`) are carried as text so their bytes survive round-trips; the
// converter skips them.
type Text struct {
	Value   string
	Comment bool

	ID  NodeID
	Loc Span
}

func (t *Text) Ref() NodeID  { return t.ID }
func (t *Text) Bounds() Span { return t.Loc }
func (t *Text) node()        {}
