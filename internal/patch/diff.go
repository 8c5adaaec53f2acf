package patch

import (
	"github.com/quire-dev/quire/internal/document"
	"github.com/quire-dev/quire/internal/model"
)

// Diff compares two block documents and produces the mutation batch that
// carries the old source to the new document's shape. Blocks pair up by
// id: ids in newDoc refer to nodes of the parse that produced oldDoc and
// idx, and blocks the editor created carry an empty id. Ids must be
// unique within each document.
//
// The result favors surgical edits: unmatched old blocks delete, unmatched
// new blocks insert serialized markup next to their nearest stable
// neighbor, reordered blocks move (a minimal set, the complement of the
// longest stable run), and blocks whose content or attributes changed
// rewrite only the affected ranges. A block whose type changes rewrites
// wholesale.
func Diff(oldDoc, newDoc *model.Document, idx *Index) []model.Mutation {
	if oldDoc == nil {
		oldDoc = &model.Document{}
	}
	if newDoc == nil {
		newDoc = &model.Document{}
	}

	oldPos := make(map[model.NodeID]int, len(oldDoc.Blocks))
	for i, b := range oldDoc.Blocks {
		oldPos[b.ID] = i
	}

	newPos := make(map[model.NodeID]int, len(newDoc.Blocks))
	for i, b := range newDoc.Blocks {
		if b.ID != "" {
			newPos[b.ID] = i
		}
	}

	var muts []model.Mutation

	for _, b := range oldDoc.Blocks {
		if _, kept := newPos[b.ID]; !kept {
			muts = append(muts, model.Mutation{Kind: model.MutDeleteNode, Target: b.ID})
		}
	}

	moved := movedSet(oldPos, newDoc)
	parent := topParent(oldDoc, idx)

	for i, nb := range newDoc.Blocks {
		oi, shared := -1, false
		if nb.ID != "" {
			oi, shared = lookupPos(oldPos, nb.ID)
		}

		if !shared {
			muts = append(muts, model.Mutation{
				Kind:   model.MutInsertNode,
				Parent: parent,
				Index:  insertSlot(newDoc, i, oldPos, moved, idx),
				Node:   document.BlockMarkup(nb),
			})
			continue
		}

		if moved[nb.ID] {
			muts = append(muts, model.Mutation{
				Kind:   model.MutMoveNode,
				Target: nb.ID,
				Parent: parent,
				Index:  moveSlot(newDoc, i, oldPos, moved, idx, nb.ID),
			})
		}

		muts = append(muts, contentMutations(oldDoc.Blocks[oi], nb, idx)...)
	}

	return muts
}

func lookupPos(pos map[model.NodeID]int, id model.NodeID) (int, bool) {
	i, ok := pos[id]
	return i, ok
}

// movedSet marks the smallest set of shared blocks whose relocation
// explains the new order: everything outside the longest run of blocks
// already in ascending old order.
func movedSet(oldPos map[model.NodeID]int, newDoc *model.Document) map[model.NodeID]bool {
	var ids []model.NodeID
	var seq []int
	for _, b := range newDoc.Blocks {
		if oi, ok := oldPos[b.ID]; ok && b.ID != "" {
			ids = append(ids, b.ID)
			seq = append(seq, oi)
		}
	}

	stable := longestAscending(seq)
	moved := make(map[model.NodeID]bool)
	for i, id := range ids {
		if !stable[i] {
			moved[id] = true
		}
	}

	return moved
}

// longestAscending reports, per position, membership in one longest
// strictly ascending subsequence of seq.
func longestAscending(seq []int) []bool {
	n := len(seq)
	member := make([]bool, n)
	if n == 0 {
		return member
	}

	// Patience algorithm: tails[k] is the index of the smallest value
	// ending an ascending run of length k+1.
	tails := make([]int, 0, n)
	prev := make([]int, n)

	for i, v := range seq {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if seq[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}

		if lo > 0 {
			prev[i] = tails[lo-1]
		} else {
			prev[i] = -1
		}

		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}

	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		member[i] = true
	}

	return member
}

// topParent identifies the element whose children are the document's
// top-level blocks: the fragment root, a flattened wrapper, or nothing
// when a lone root block (or an empty body) leaves no enclosing element.
func topParent(oldDoc *model.Document, idx *Index) model.NodeID {
	for _, b := range oldDoc.Blocks {
		if par, _, ok := idx.Parent(b.ID); ok && par != nil {
			return par.ID
		}
	}
	return ""
}

// insertSlot picks the tree slot just past the nearest stable predecessor
// of newDoc.Blocks[i], or slot zero when nothing stable precedes it.
func insertSlot(newDoc *model.Document, i int, oldPos map[model.NodeID]int, moved map[model.NodeID]bool, idx *Index) int {
	if pb := stablePredecessor(newDoc, i, oldPos, moved); pb != nil {
		if _, pos, ok := idx.Parent(pb.ID); ok {
			return pos + 1
		}
	}
	return 0
}

// moveSlot is insertSlot in the coordinate space the applier uses for
// moves: sibling slots counted after the moved node and its travelling
// gap leave the child list.
func moveSlot(newDoc *model.Document, i int, oldPos map[model.NodeID]int, moved map[model.NodeID]bool, idx *Index, target model.NodeID) int {
	parentEl, tpos, ok := idx.Parent(target)
	if !ok || parentEl == nil {
		return 0
	}

	gap := gapIndex(parentEl.Children, tpos)

	pb := stablePredecessor(newDoc, i, oldPos, moved)
	if pb == nil {
		return 0
	}
	_, pos, ok := idx.Parent(pb.ID)
	if !ok {
		return 0
	}

	slot := pos + 1
	if tpos < pos {
		slot--
	}
	if gap >= 0 && gap < pos {
		slot--
	}

	return slot
}

func stablePredecessor(newDoc *model.Document, i int, oldPos map[model.NodeID]int, moved map[model.NodeID]bool) *model.Block {
	for j := i - 1; j >= 0; j-- {
		pb := newDoc.Blocks[j]
		if pb.ID == "" || moved[pb.ID] {
			continue
		}
		if _, ok := oldPos[pb.ID]; !ok {
			continue
		}
		return pb
	}
	return nil
}

// contentMutations rewrites what changed inside one matched block pair:
// attribute edits when only properties differ, a content-range rewrite
// when the inline content differs, and a wholesale block rewrite when the
// block changed kind.
func contentMutations(ob, nb *model.Block, idx *Index) []model.Mutation {
	if ob.Type != nb.Type || ob.Void != nb.Void {
		return []model.Mutation{replaceWhole(nb, ob.ID, idx)}
	}

	var muts []model.Mutation

	if !document.PropsEqual(ob.Props, nb.Props) {
		pm, ok := propMutations(ob, nb)
		if !ok {
			return []model.Mutation{replaceWhole(nb, ob.ID, idx)}
		}
		muts = append(muts, pm...)
	}

	if nb.Void {
		return muts
	}

	if !document.InlinesEqual(ob.Children, nb.Children) {
		span, err := contentSpan(idx, ob.ID)
		if err != nil {
			return []model.Mutation{replaceWhole(nb, ob.ID, idx)}
		}
		muts = append(muts, model.ReplaceRange(span, document.InlineMarkup(nb)))
	}

	return muts
}

// replaceWhole rewrites a block's full source range with fresh markup. An
// unresolvable target degrades to an invalid range, which the applier
// rejects so the caller re-serializes instead.
func replaceWhole(nb *model.Block, oldID model.NodeID, idx *Index) model.Mutation {
	n, ok := idx.Resolve(oldID)
	if !ok {
		return model.ReplaceRange(model.Span{Start: -1, End: -1}, "")
	}
	return model.ReplaceRange(n.Bounds(), document.BlockMarkup(nb))
}

// contentSpan returns the replaceable content range behind a block: the
// inner range of its element, or the bare text node itself for blocks
// lifted from loose text.
func contentSpan(idx *Index, id model.NodeID) (model.Span, error) {
	n, ok := idx.Resolve(id)
	if !ok {
		return model.Span{}, ErrUnresolvedTarget
	}

	switch t := n.(type) {
	case *model.Element:
		return innerSpan(idx.Source(), t)
	case *model.Text:
		return t.Loc, nil
	default:
		return model.Span{}, ErrUnresolvedTarget
	}
}

// propMutations emits attribute-level edits between two same-type blocks.
// It refuses (ok=false) when spread attributes differ, those have no
// stable per-name identity to edit.
func propMutations(ob, nb *model.Block) ([]model.Mutation, bool) {
	oldSpreads := spreadRaws(ob.Props)
	newSpreads := spreadRaws(nb.Props)
	if len(oldSpreads) != len(newSpreads) {
		return nil, false
	}
	for i := range oldSpreads {
		if oldSpreads[i] != newSpreads[i] {
			return nil, false
		}
	}

	var muts []model.Mutation

	for _, np := range nb.Props {
		if np.Spread {
			continue
		}
		op, has := ob.Prop(np.Name)
		if has && propValueEqual(op, np) {
			continue
		}
		muts = append(muts, model.Mutation{
			Kind:   model.MutSetProp,
			Target: ob.ID,
			Name:   np.Name,
			Value:  np.Val,
		})
	}

	for _, op := range ob.Props {
		if op.Spread {
			continue
		}
		if _, has := nb.Prop(op.Name); !has {
			muts = append(muts, model.Mutation{
				Kind:   model.MutDeleteProp,
				Target: ob.ID,
				Name:   op.Name,
			})
		}
	}

	return muts, true
}

func spreadRaws(props []model.Prop) []string {
	var raws []string
	for _, p := range props {
		if p.Spread {
			raws = append(raws, p.Val.Raw)
		}
	}
	return raws
}

func propValueEqual(a, b model.Prop) bool {
	return document.PropsEqual([]model.Prop{a}, []model.Prop{b})
}
