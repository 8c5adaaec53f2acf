// Package patch computes and applies surgical source edits: a byte-range
// index over one parse, a structural differ that turns block-document
// changes into mutations, an operation mapper for editor ops, and an
// applier that splices all mutations of a batch into the original source
// in one pass.
package patch

import (
	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
)

// entry locates one node inside the indexed tree.
type entry struct {
	node   model.Node
	parent *model.Element
	// pos is the node's slot in parent.Children, -1 for the root.
	pos int
}

// Index maps node identifiers to their tree positions and byte ranges for
// one parse result. It is valid only against the exact source string that
// produced the parse; applying any mutation invalidates it.
type Index struct {
	source    string
	root      model.Node
	bodyStart int
	byID      map[model.NodeID]entry
}

// NewIndex builds the identifier index for a parse result.
func NewIndex(res markup.Result) *Index {
	x := &Index{
		source: res.Source,
		root:   res.Root,
		byID:   make(map[model.NodeID]entry),
	}

	if res.Frontmatter != nil {
		x.bodyStart = res.Frontmatter.BodyStart
	}

	if res.Root != nil {
		x.add(res.Root, nil, -1)
	}

	return x
}

func (x *Index) add(n model.Node, parent *model.Element, pos int) {
	x.byID[n.Ref()] = entry{node: n, parent: parent, pos: pos}

	if el, ok := n.(*model.Element); ok {
		for i, c := range el.Children {
			x.add(c, el, i)
		}
	}
}

// Root returns the indexed tree root, nil for an empty body.
func (x *Index) Root() model.Node { return x.root }

// BodyStart returns the byte offset where the body begins, just past the
// frontmatter block when one exists.
func (x *Index) BodyStart() int { return x.bodyStart }

// Source returns the exact source string the index was built from.
func (x *Index) Source() string { return x.source }

// Resolve returns the node with the given identifier.
func (x *Index) Resolve(id model.NodeID) (model.Node, bool) {
	e, ok := x.byID[id]
	if !ok {
		return nil, false
	}

	return e.node, true
}

// Element resolves an identifier to an element node.
func (x *Index) Element(id model.NodeID) (*model.Element, bool) {
	e, ok := x.byID[id]
	if !ok {
		return nil, false
	}

	el, ok := e.node.(*model.Element)
	return el, ok
}

// Parent returns the parent element of the identified node and the node's
// slot among its parent's children. The root reports (nil, -1, true).
func (x *Index) Parent(id model.NodeID) (*model.Element, int, bool) {
	e, ok := x.byID[id]
	if !ok {
		return nil, -1, false
	}

	return e.parent, e.pos, true
}
