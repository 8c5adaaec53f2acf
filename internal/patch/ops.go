package patch

import (
	"errors"
	"fmt"

	"github.com/quire-dev/quire/internal/model"
)

// ErrInvalidOp reports an operation that is malformed regardless of the
// source it targets: bad offsets, negative lengths, ambiguous text
// targets. Unlike ErrUnresolvedTarget it is not a fallback signal.
var ErrInvalidOp = errors.New("patch: invalid operation")

// FromOp maps one editor operation to its mutations. A (nil, nil) return
// is a recognized no-op: moving a node onto its current position, or
// deleting an attribute that is not set.
func FromOp(op model.Op, idx *Index) ([]model.Mutation, error) {
	if idx == nil {
		return nil, fmt.Errorf("%w: nil index", ErrUnresolvedTarget)
	}

	switch op.Kind {
	case model.OpInsertText:
		t, err := textTarget(op.Target, idx)
		if err != nil {
			return nil, err
		}
		if op.Offset < 0 || op.Offset > len(t.Value) {
			return nil, fmt.Errorf("%w: offset %d outside %s", ErrInvalidOp, op.Offset, op.Target)
		}
		if op.Text == "" {
			return nil, nil
		}
		return []model.Mutation{model.InsertText(t.Loc.Start+op.Offset, op.Text)}, nil

	case model.OpDeleteText:
		t, err := textTarget(op.Target, idx)
		if err != nil {
			return nil, err
		}
		if op.Length < 0 || op.Offset < 0 || op.Offset+op.Length > len(t.Value) {
			return nil, fmt.Errorf("%w: range %d+%d outside %s", ErrInvalidOp, op.Offset, op.Length, op.Target)
		}
		if op.Length == 0 {
			return nil, nil
		}
		start := t.Loc.Start + op.Offset
		return []model.Mutation{model.DeleteText(model.Span{Start: start, End: start + op.Length})}, nil

	case model.OpInsertNode:
		return []model.Mutation{{
			Kind:   model.MutInsertNode,
			Parent: op.Parent,
			Index:  op.Index,
			Node:   op.Node,
		}}, nil

	case model.OpRemoveNode:
		if _, ok := idx.Resolve(op.Target); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedTarget, op.Target)
		}
		return []model.Mutation{{Kind: model.MutDeleteNode, Target: op.Target}}, nil

	case model.OpMoveNode:
		mut := model.Mutation{
			Kind:   model.MutMoveNode,
			Target: op.Target,
			Parent: op.Parent,
			Index:  op.Index,
		}
		// Resolve eagerly so a move onto the current position maps to
		// nothing instead of a dirty no-op batch.
		_, mv, err := resolveMoveNode(mut, idx, 0)
		if err != nil {
			return nil, err
		}
		if mv == nil {
			return nil, nil
		}
		return []model.Mutation{mut}, nil

	case model.OpSetProp:
		if op.Name == "" {
			return nil, fmt.Errorf("%w: set-prop without a name", ErrInvalidOp)
		}
		if _, err := propTarget(op.Target, idx); err != nil {
			return nil, err
		}
		return []model.Mutation{{
			Kind:   model.MutSetProp,
			Target: op.Target,
			Name:   op.Name,
			Value:  op.Value,
		}}, nil

	case model.OpDeleteProp:
		el, err := propTarget(op.Target, idx)
		if err != nil {
			return nil, err
		}
		if _, has := el.Prop(op.Name); !has {
			return nil, nil
		}
		return []model.Mutation{{Kind: model.MutDeleteProp, Target: op.Target, Name: op.Name}}, nil

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidOp, op.Kind)
	}
}

// FromOps maps a batch of operations, concatenating their mutations in
// order. All operations address the same snapshot; the batch fails on the
// first unmappable operation.
func FromOps(ops []model.Op, idx *Index) ([]model.Mutation, error) {
	var muts []model.Mutation

	for i, op := range ops {
		m, err := FromOp(op, idx)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		muts = append(muts, m...)
	}

	return muts, nil
}

// textTarget resolves a text operation's target to a concrete text node.
// A text node id is used as-is; an element id resolves through to its
// body when that is unambiguous: the raw body of a code fence, or an
// element's single text child.
func textTarget(id model.NodeID, idx *Index) (*model.Text, error) {
	n, ok := idx.Resolve(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedTarget, id)
	}

	switch t := n.(type) {
	case *model.Text:
		if t.Comment {
			return nil, fmt.Errorf("%w: %s is a comment", ErrUnresolvedTarget, id)
		}
		return t, nil

	case *model.Element:
		var only *model.Text
		for _, c := range t.Children {
			ct, ok := c.(*model.Text)
			if !ok || ct.Comment {
				if t.Fence == nil {
					return nil, fmt.Errorf("%w: %s has non-text content", ErrUnresolvedTarget, id)
				}
				continue
			}
			if only != nil {
				return nil, fmt.Errorf("%w: %s has several text children", ErrInvalidOp, id)
			}
			only = ct
		}
		if only == nil {
			return nil, fmt.Errorf("%w: %s has no text child", ErrUnresolvedTarget, id)
		}
		return only, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedTarget, id)
	}
}
