package model

// MutationKind is the category of a surgical source edit.
type MutationKind string

const (
	// MutInsertText inserts Text at byte offset At.
	MutInsertText MutationKind = "insert-text"
	// MutDeleteText removes the bytes covered by Range.
	MutDeleteText MutationKind = "delete-text"
	// MutReplaceRange replaces the bytes covered by Range with Text.
	MutReplaceRange MutationKind = "replace-range"
	// MutInsertNode inserts serialized markup Node under Parent at Index.
	MutInsertNode MutationKind = "insert-node"
	// MutDeleteNode removes the node Target and its subtree.
	MutDeleteNode MutationKind = "delete-node"
	// MutMoveNode moves Target under Parent to sibling position Index.
	MutMoveNode MutationKind = "move-node"
	// MutSetProp sets attribute Name to Value on element Target.
	MutSetProp MutationKind = "set-prop"
	// MutDeleteProp removes attribute Name from element Target.
	MutDeleteProp MutationKind = "delete-prop"
)

// Mutation is one surgical edit, positional against a single source-text
// snapshot. Text mutations are offset-addressed; node and property
// mutations are id-addressed and resolved to ranges by the patcher against
// the original, unmutated source.
type Mutation struct {
	Kind   MutationKind `json:"kind"`
	At     int          `json:"at,omitempty"`
	Range  Span         `json:"range,omitempty"`
	Text   string       `json:"text,omitempty"`
	Target NodeID       `json:"target,omitempty"`
	Parent NodeID       `json:"parent,omitempty"`
	Index  int          `json:"index,omitempty"`
	Name   string       `json:"name,omitempty"`
	Value  any          `json:"value,omitempty"`
	Node   string       `json:"node,omitempty"`
}

// InsertText builds an insert-text mutation.
func InsertText(at int, text string) Mutation {
	return Mutation{Kind: MutInsertText, At: at, Text: text}
}

// DeleteText builds a delete-text mutation.
func DeleteText(r Span) Mutation {
	return Mutation{Kind: MutDeleteText, Range: r}
}

// ReplaceRange builds a replace-range mutation.
func ReplaceRange(r Span, text string) Mutation {
	return Mutation{Kind: MutReplaceRange, Range: r, Text: text}
}
