package model

import "strings"

// Reserved block types produced by the converter for native markup. Any
// other Type value is the tag name of a custom component (or a native tag
// without a dedicated kind, carried through as-is).
const (
	BlockParagraph   = "p"
	BlockQuote       = "blockquote"
	BlockRule        = "hr"
	BlockCode        = "code"
	BlockList        = "ul"
	BlockListOrdered = "ol"
	BlockListItem    = "li"
)

// HeadingType returns the heading block type for a level in 1..6.
func HeadingType(level int) string {
	if level < 1 {
		level = 1
	}

	if level > 6 {
		level = 6
	}

	return "h" + string(rune('0'+level))
}

// Marks are the inline formatting flags a text run can carry.
type Marks struct {
	Bold      bool `json:"bold,omitempty"`
	Italic    bool `json:"italic,omitempty"`
	Code      bool `json:"code,omitempty"`
	Underline bool `json:"underline,omitempty"`
	Strike    bool `json:"strike,omitempty"`
}

// None reports whether no mark is set.
func (m Marks) None() bool { return m == Marks{} }

// Inline is the closed set of block children: TextRun or a nested *Block.
type Inline interface {
	inline()
}

// TextRun is a contiguous run of text with uniform marks. Href is set when
// the run is a link.
type TextRun struct {
	Text  string `json:"text"`
	Marks Marks  `json:"marks,omitempty"`
	Href  string `json:"href,omitempty"`
}

func (TextRun) inline() {}

// Block is one entry of the flat document model. Void blocks are not
// text-editable and always carry a single empty TextRun placeholder, which
// the structured editor requires.
type Block struct {
	Type string `json:"type"`
	ID   NodeID `json:"id"`
	// Anchor is the permanent identity assigned by an anchor registry; it
	// survives reorders while ID does not. Empty when no registry is
	// attached.
	Anchor string `json:"anchor,omitempty"`
	Void   bool   `json:"void,omitempty"`
	Props  []Prop `json:"-"`

	Children []Inline `json:"-"`
}

func (*Block) inline() {}

// Placeholder returns the single empty run void blocks carry.
func Placeholder() []Inline { return []Inline{TextRun{}} }

// PlainText concatenates the block's text runs, recursing into nested
// blocks. Useful for previews and for text-equality checks in the differ.
func (b *Block) PlainText() string {
	var sb strings.Builder

	for _, child := range b.Children {
		switch c := child.(type) {
		case TextRun:
			sb.WriteString(c.Text)
		case *Block:
			sb.WriteString(c.PlainText())
		}
	}

	return sb.String()
}

// Prop returns the named block property and whether it exists.
func (b *Block) Prop(name string) (Prop, bool) {
	for _, p := range b.Props {
		if !p.Spread && p.Name == name {
			return p, true
		}
	}

	return Prop{}, false
}

// Document is the flat, ordered block list handed to the structured editor.
type Document struct {
	Blocks []*Block
}

// Find returns the top-level block with the given id and its index, or
// (nil, -1) when absent.
func (d *Document) Find(id NodeID) (*Block, int) {
	for i, b := range d.Blocks {
		if b.ID == id {
			return b, i
		}
	}

	return nil, -1
}

// IDs returns the top-level block ids in order.
func (d *Document) IDs() []NodeID {
	ids := make([]NodeID, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		ids = append(ids, b.ID)
	}

	return ids
}
