package model

import "fmt"

// OpKind is the category of a discrete editing operation submitted by the
// structured editor (or by `quire apply` from a JSON op stream).
type OpKind string

const (
	// OpInsertText inserts Text at a byte offset within a text node.
	OpInsertText OpKind = "insert-text"
	// OpDeleteText removes Length bytes at a byte offset within a text node.
	OpDeleteText OpKind = "delete-text"
	// OpInsertNode inserts serialized markup under Parent at Index.
	OpInsertNode OpKind = "insert-node"
	// OpRemoveNode deletes the node Target.
	OpRemoveNode OpKind = "remove-node"
	// OpMoveNode moves Target under Parent to sibling position Index.
	OpMoveNode OpKind = "move-node"
	// OpSetProp sets attribute Name to Value on element Target.
	OpSetProp OpKind = "set-prop"
	// OpDeleteProp removes attribute Name from element Target.
	OpDeleteProp OpKind = "delete-prop"
)

// Op is one editing operation addressed by node identifiers from the
// current parse. The operation mapper turns it into Mutations using the
// identifier->location index.
type Op struct {
	Kind   OpKind `json:"kind"`
	Target NodeID `json:"target,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Length int    `json:"length,omitempty"`
	Text   string `json:"text,omitempty"`
	Parent NodeID `json:"parent,omitempty"`
	Index  int    `json:"index,omitempty"`
	Name   string `json:"name,omitempty"`
	Value  any    `json:"value,omitempty"`
	Node   string `json:"node,omitempty"`
}

// String renders a short human-readable form for logs and apply summaries.
func (o Op) String() string {
	switch o.Kind {
	case OpInsertText:
		return fmt.Sprintf("%s %s+%d %q", o.Kind, o.Target, o.Offset, o.Text)
	case OpDeleteText:
		return fmt.Sprintf("%s %s+%d len %d", o.Kind, o.Target, o.Offset, o.Length)
	case OpInsertNode:
		return fmt.Sprintf("%s %s[%d]", o.Kind, o.Parent, o.Index)
	case OpRemoveNode:
		return fmt.Sprintf("%s %s", o.Kind, o.Target)
	case OpMoveNode:
		return fmt.Sprintf("%s %s -> %s[%d]", o.Kind, o.Target, o.Parent, o.Index)
	case OpSetProp:
		return fmt.Sprintf("%s %s.%s=%v", o.Kind, o.Target, o.Name, o.Value)
	case OpDeleteProp:
		return fmt.Sprintf("%s %s.%s", o.Kind, o.Target, o.Name)
	default:
		return string(o.Kind)
	}
}
