package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
)

// ErrTargetNotFound reports an operation addressing no top-level block of
// the document.
var ErrTargetNotFound = errors.New("document: op target not found")

// ErrInvalidOp reports an operation the block model cannot express: bad
// offsets, unparseable markup, edits inside container blocks.
var ErrInvalidOp = errors.New("document: invalid op")

// ApplyOps evaluates operations against the block document itself. This
// is the rewrite path: when surgical source mutation cannot resolve, the
// editor replays its operations here and serializes the result wholesale.
// The input document is left untouched; the returned document reflects
// all operations or none.
//
// Operations address top-level blocks. Edits inside nested structure
// (list items, quoted blocks) are reported as invalid rather than
// guessed at.
func ApplyOps(doc *model.Document, ops []model.Op) (*model.Document, error) {
	out := cloneDocument(doc)

	for i, op := range ops {
		if err := applyOp(out, op); err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
	}

	if len(out.Blocks) == 0 {
		out.Blocks = []*model.Block{emptyParagraph()}
	}

	return out, nil
}

func applyOp(doc *model.Document, op model.Op) error {
	switch op.Kind {
	case model.OpInsertText:
		return insertText(doc, op)
	case model.OpDeleteText:
		return deleteText(doc, op)
	case model.OpInsertNode:
		return insertBlocks(doc, op)
	case model.OpRemoveNode:
		return removeBlock(doc, op)
	case model.OpMoveNode:
		return moveBlock(doc, op)
	case model.OpSetProp:
		return setBlockProp(doc, op)
	case model.OpDeleteProp:
		return deleteBlockProp(doc, op)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOp, op.Kind)
	}
}

func cloneDocument(doc *model.Document) *model.Document {
	out := &model.Document{}
	if doc == nil {
		return out
	}

	out.Blocks = make([]*model.Block, len(doc.Blocks))
	for i, b := range doc.Blocks {
		out.Blocks[i] = cloneBlock(b)
	}

	return out
}

func cloneBlock(b *model.Block) *model.Block {
	c := *b
	c.Props = append([]model.Prop(nil), b.Props...)

	if b.Children != nil {
		c.Children = make([]model.Inline, len(b.Children))
		for i, ch := range b.Children {
			if nb, ok := ch.(*model.Block); ok {
				c.Children[i] = cloneBlock(nb)
			} else {
				c.Children[i] = ch
			}
		}
	}

	return &c
}

// findBlock resolves an operation target to a top-level block. Targets
// produced against the parse tree may name the text node inside a block
// rather than the block itself; those resolve to the enclosing block by
// path.
func findBlock(doc *model.Document, id model.NodeID) (*model.Block, int, error) {
	if id == "" {
		return nil, -1, fmt.Errorf("%w: empty target", ErrTargetNotFound)
	}

	if b, i := doc.Find(id); b != nil {
		return b, i, nil
	}

	if path, ok := strings.CutPrefix(string(id), model.TextTag+"_"); ok {
		if dot := strings.LastIndexByte(path, '.'); dot >= 0 {
			parentPath := path[:dot]
			for i, b := range doc.Blocks {
				if _, bpath, ok := strings.Cut(string(b.ID), "_"); ok && bpath == parentPath {
					return b, i, nil
				}
			}
		}
	}

	return nil, -1, fmt.Errorf("%w: %s", ErrTargetNotFound, id)
}

// editableRuns checks that a block's content is plain runs, so text
// offsets have one unambiguous meaning.
func editableRuns(b *model.Block) error {
	if b.Void {
		return fmt.Errorf("%w: %s is not text-editable", ErrInvalidOp, b.ID)
	}

	for _, ch := range b.Children {
		if _, ok := ch.(*model.Block); ok {
			return fmt.Errorf("%w: %s has nested blocks", ErrInvalidOp, b.ID)
		}
	}

	return nil
}

func insertText(doc *model.Document, op model.Op) error {
	b, _, err := findBlock(doc, op.Target)
	if err != nil {
		return err
	}
	if err := editableRuns(b); err != nil {
		return err
	}
	if op.Offset < 0 {
		return fmt.Errorf("%w: offset %d outside %s", ErrInvalidOp, op.Offset, op.Target)
	}
	if op.Text == "" {
		return nil
	}

	// Boundary offsets extend the earlier run, so typed text takes on
	// the formatting of what precedes it.
	cum := 0
	for i, ch := range b.Children {
		run := ch.(model.TextRun)
		if op.Offset <= cum+len(run.Text) {
			at := op.Offset - cum
			run.Text = run.Text[:at] + op.Text + run.Text[at:]
			b.Children[i] = run

			return nil
		}
		cum += len(run.Text)
	}

	return fmt.Errorf("%w: offset %d outside %s", ErrInvalidOp, op.Offset, op.Target)
}

func deleteText(doc *model.Document, op model.Op) error {
	b, _, err := findBlock(doc, op.Target)
	if err != nil {
		return err
	}
	if err := editableRuns(b); err != nil {
		return err
	}
	if op.Offset < 0 || op.Length < 0 {
		return fmt.Errorf("%w: range %d+%d outside %s", ErrInvalidOp, op.Offset, op.Length, op.Target)
	}
	if op.Length == 0 {
		return nil
	}

	total := 0
	for _, ch := range b.Children {
		total += len(ch.(model.TextRun).Text)
	}
	if op.Offset+op.Length > total {
		return fmt.Errorf("%w: range %d+%d outside %s", ErrInvalidOp, op.Offset, op.Length, op.Target)
	}

	start, end := op.Offset, op.Offset+op.Length
	kept := b.Children[:0]
	cum := 0

	for _, ch := range b.Children {
		run := ch.(model.TextRun)
		rs, re := cum, cum+len(run.Text)
		cum = re

		if re <= start || rs >= end {
			kept = append(kept, run)
			continue
		}

		cutFrom := max(start-rs, 0)
		cutTo := min(end-rs, len(run.Text))
		run.Text = run.Text[:cutFrom] + run.Text[cutTo:]

		if run.Text != "" {
			kept = append(kept, run)
		}
	}

	b.Children = kept
	if len(b.Children) == 0 {
		b.Children = model.Placeholder()
	}

	return nil
}

// rootParent checks that an insert or move stays at the top level. The
// operation's parent may name the page root (whose id never matches a
// block), or be empty; naming an actual block asks for nesting, which
// the rewrite path does not do.
func rootParent(doc *model.Document, parent model.NodeID) error {
	if parent == "" {
		return nil
	}
	if b, _ := doc.Find(parent); b != nil {
		return fmt.Errorf("%w: cannot nest under %s in rewrite mode", ErrInvalidOp, parent)
	}

	return nil
}

func insertBlocks(doc *model.Document, op model.Op) error {
	if err := rootParent(doc, op.Parent); err != nil {
		return err
	}
	if strings.TrimSpace(op.Node) == "" {
		return fmt.Errorf("%w: insert-node without markup", ErrInvalidOp)
	}

	res := markup.Parse(op.Node)
	if len(res.Errors) > 0 {
		return fmt.Errorf("%w: markup: %s", ErrInvalidOp, res.Errors[0])
	}
	if res.Root == nil {
		return fmt.Errorf("%w: insert-node without markup", ErrInvalidOp)
	}

	sub := FromTree(res.Root)

	// Ids from the standalone parse of op.Node would collide with ids in
	// this document. Inserted blocks stay id-less until the next parse,
	// which is also when they obtain anchors.
	for _, b := range sub.Blocks {
		clearIDs(b)
	}

	at := clampIndex(op.Index, len(doc.Blocks))
	doc.Blocks = append(doc.Blocks[:at], append(sub.Blocks, doc.Blocks[at:]...)...)

	return nil
}

func clearIDs(b *model.Block) {
	b.ID = ""
	for _, c := range b.Children {
		if nb, ok := c.(*model.Block); ok {
			clearIDs(nb)
		}
	}
}

func removeBlock(doc *model.Document, op model.Op) error {
	_, i, err := findBlock(doc, op.Target)
	if err != nil {
		return err
	}

	doc.Blocks = append(doc.Blocks[:i], doc.Blocks[i+1:]...)

	return nil
}

// moveBlock places the target at the given position of the final
// arrangement: remove, then insert at the (clamped) index.
func moveBlock(doc *model.Document, op model.Op) error {
	if err := rootParent(doc, op.Parent); err != nil {
		return err
	}

	b, pos, err := findBlock(doc, op.Target)
	if err != nil {
		return err
	}

	doc.Blocks = append(doc.Blocks[:pos], doc.Blocks[pos+1:]...)
	at := clampIndex(op.Index, len(doc.Blocks))
	doc.Blocks = append(doc.Blocks[:at], append([]*model.Block{b}, doc.Blocks[at:]...)...)

	return nil
}

func setBlockProp(doc *model.Document, op model.Op) error {
	if op.Name == "" {
		return fmt.Errorf("%w: set-prop without a name", ErrInvalidOp)
	}

	b, _, err := findBlock(doc, op.Target)
	if err != nil {
		return err
	}

	val, keep, err := propValueFor(op.Name, op.Value)
	if err != nil {
		return err
	}
	if !keep {
		removeProp(b, op.Name)

		return nil
	}

	for i := range b.Props {
		if !b.Props[i].Spread && b.Props[i].Name == op.Name {
			b.Props[i].Val = val
			b.Props[i].Loc = model.Span{}

			return nil
		}
	}

	b.Props = append(b.Props, model.Prop{Name: op.Name, Val: val})

	return nil
}

func deleteBlockProp(doc *model.Document, op model.Op) error {
	b, _, err := findBlock(doc, op.Target)
	if err != nil {
		return err
	}

	removeProp(b, op.Name)

	return nil
}

func removeProp(b *model.Block, name string) {
	kept := b.Props[:0]
	for _, p := range b.Props {
		if !p.Spread && p.Name == name {
			continue
		}
		kept = append(kept, p)
	}

	b.Props = kept
}

// propValueFor converts an operation's decoded value into a prop value,
// with the same dispositions as attribute formatting: nil and false mean
// the attribute is dropped, true renders bare, strings quote, numbers
// and structured values become braced expressions.
func propValueFor(name string, value any) (model.PropValue, bool, error) {
	switch v := value.(type) {
	case nil:
		return model.PropValue{}, false, nil
	case model.PropValue:
		return v, true, nil
	case bool:
		if !v {
			return model.PropValue{}, false, nil
		}

		return model.BareValue(), true, nil
	case string:
		return model.StringValue(v), true, nil
	case int:
		return model.ExprValue(strconv.Itoa(v)), true, nil
	case int64:
		return model.ExprValue(strconv.FormatInt(v, 10)), true, nil
	case float64:
		return model.ExprValue(strconv.FormatFloat(v, 'f', -1, 64)), true, nil
	case json.Number:
		return model.ExprValue(v.String()), true, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return model.PropValue{}, false, fmt.Errorf("%w: property %s: %v", ErrInvalidOp, name, err)
		}

		return model.ExprValue(string(raw)), true, nil
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}

	return i
}
