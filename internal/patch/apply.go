package patch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
)

var (
	// ErrUnresolvedTarget reports a mutation whose target cannot be located
	// in the indexed source. Callers fall back to full re-serialization.
	ErrUnresolvedTarget = errors.New("patch: unresolved mutation target")

	// ErrOverlap reports two mutations of one batch resolving to
	// overlapping byte ranges.
	ErrOverlap = errors.New("patch: overlapping mutation ranges")
)

// edit is one resolved text splice against the original source.
type edit struct {
	span model.Span
	text string
	// seq is the mutation's batch position; same-offset insertions apply
	// in batch order.
	seq int
}

// move is a resolved move-node: the extracted range, the re-insertion
// point, and the pieces that reassemble the moved text. Edits that land
// inside the moved node travel with it.
type move struct {
	extract  model.Span
	nodeSpan model.Span
	at       int
	prefix   string
	suffix   string
	inner    []edit
	seq      int
}

// Apply splices a batch of mutations into source in one pass. All offsets
// and identifiers are interpreted against the single snapshot the index
// was built from; the batch applies fully or not at all. Unresolvable
// targets return ErrUnresolvedTarget and overlapping ranges ErrOverlap,
// both signals for the caller to re-serialize instead.
func Apply(source string, muts []model.Mutation, idx *Index) (string, error) {
	if idx == nil {
		return "", fmt.Errorf("%w: nil index", ErrUnresolvedTarget)
	}
	if source != idx.Source() {
		return "", fmt.Errorf("%w: source does not match indexed snapshot", ErrUnresolvedTarget)
	}

	var plain []edit
	var moves []*move

	for seq, mut := range muts {
		edits, mv, err := resolve(source, mut, idx, seq)
		if err != nil {
			return "", err
		}
		plain = append(plain, edits...)
		if mv != nil {
			moves = append(moves, mv)
		}
	}

	// Moved ranges must not overlap each other before anything can be
	// rebased into them.
	for i := 0; i < len(moves); i++ {
		for j := i + 1; j < len(moves); j++ {
			if moves[i].extract.Overlaps(moves[j].extract) {
				return "", fmt.Errorf("%w: two moves extract overlapping ranges", ErrOverlap)
			}
		}
	}

	plain = rebaseIntoMoves(plain, moves)

	all := make([]edit, 0, len(plain)+2*len(moves))
	all = append(all, plain...)
	for _, m := range moves {
		all = append(all, edit{span: m.extract, seq: m.seq})
		all = append(all, edit{
			span: model.Span{Start: m.at, End: m.at},
			text: m.render(source),
			seq:  m.seq,
		})
	}

	for _, e := range all {
		if e.span.Start < 0 || e.span.End > len(source) || e.span.Start > e.span.End {
			return "", fmt.Errorf("%w: range [%d,%d) outside source", ErrUnresolvedTarget, e.span.Start, e.span.End)
		}
	}

	if err := checkOverlap(all); err != nil {
		return "", err
	}

	return splice(source, all), nil
}

// rebaseIntoMoves reassigns edits that land inside a moved node to that
// move, shifting them into the moved text's coordinate space at render
// time. Insertions rebase only when strictly inside the node, so an
// insertion at the node's boundary stays put in the source.
func rebaseIntoMoves(plain []edit, moves []*move) []edit {
	if len(moves) == 0 {
		return plain
	}

	kept := plain[:0]
	for _, e := range plain {
		owner := (*move)(nil)
		for _, m := range moves {
			if e.span.Empty() {
				if e.span.Start > m.nodeSpan.Start && e.span.Start < m.nodeSpan.End {
					owner = m
					break
				}
				continue
			}
			if e.span.Within(m.nodeSpan) {
				owner = m
				break
			}
		}

		if owner != nil {
			owner.inner = append(owner.inner, e)
			continue
		}
		kept = append(kept, e)
	}

	return kept
}

// render reassembles the moved text, applying any rebased edits to the
// node's original bytes.
func (m *move) render(source string) string {
	core := source[m.nodeSpan.Start:m.nodeSpan.End]

	if len(m.inner) > 0 {
		rebased := make([]edit, len(m.inner))
		for i, e := range m.inner {
			rebased[i] = edit{
				span: e.span.Shift(-m.nodeSpan.Start),
				text: e.text,
				seq:  e.seq,
			}
		}
		core = splice(core, rebased)
	}

	return m.prefix + core + m.suffix
}

// checkOverlap rejects batches whose non-empty ranges share bytes, and
// insertion points that fall strictly inside a replaced range. Insertion
// points may touch range boundaries.
func checkOverlap(edits []edit) error {
	spans := make([]model.Span, 0, len(edits))
	var points []int
	for _, e := range edits {
		if e.span.Empty() {
			points = append(points, e.span.Start)
			continue
		}
		spans = append(spans, e.span)
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	maxEnd := -1
	for _, s := range spans {
		if s.Start < maxEnd {
			return fmt.Errorf("%w: [%d,%d)", ErrOverlap, s.Start, s.End)
		}
		if s.End > maxEnd {
			maxEnd = s.End
		}
	}

	for _, p := range points {
		for _, s := range spans {
			if p > s.Start && p < s.End {
				return fmt.Errorf("%w: insertion at %d inside [%d,%d)", ErrOverlap, p, s.Start, s.End)
			}
		}
	}

	return nil
}

// splice applies edits back to front so earlier offsets stay valid. Ties
// on the start offset apply longer ranges first, then later batch entries
// first, which makes same-point insertions come out in batch order.
func splice(source string, edits []edit) string {
	ordered := make([]edit, len(edits))
	copy(ordered, edits)

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.span.Start != b.span.Start {
			return a.span.Start > b.span.Start
		}
		if a.span.End != b.span.End {
			return a.span.End > b.span.End
		}
		return a.seq > b.seq
	})

	out := source
	for _, e := range ordered {
		out = out[:e.span.Start] + e.text + out[e.span.End:]
	}

	return out
}

// resolve turns one mutation into primitive edits. A (nil, nil, nil)
// return is a recognized no-op.
func resolve(source string, mut model.Mutation, idx *Index, seq int) ([]edit, *move, error) {
	switch mut.Kind {
	case model.MutInsertText:
		if mut.At < 0 || mut.At > len(source) {
			return nil, nil, fmt.Errorf("%w: insert offset %d", ErrUnresolvedTarget, mut.At)
		}
		return []edit{{span: model.Span{Start: mut.At, End: mut.At}, text: mut.Text, seq: seq}}, nil, nil

	case model.MutDeleteText:
		return []edit{{span: mut.Range, seq: seq}}, nil, nil

	case model.MutReplaceRange:
		return []edit{{span: mut.Range, text: mut.Text, seq: seq}}, nil, nil

	case model.MutDeleteNode:
		span, err := removalSpan(idx, mut.Target)
		if err != nil {
			return nil, nil, err
		}
		return []edit{{span: span, seq: seq}}, nil, nil

	case model.MutInsertNode:
		e, err := resolveInsertNode(source, mut, idx, seq)
		if err != nil {
			return nil, nil, err
		}
		return []edit{e}, nil, nil

	case model.MutMoveNode:
		return resolveMoveNode(mut, idx, seq)

	case model.MutSetProp:
		return resolveSetProp(source, mut, idx, seq)

	case model.MutDeleteProp:
		return resolveDeleteProp(source, mut, idx, seq)

	default:
		return nil, nil, fmt.Errorf("%w: unknown mutation kind %q", ErrUnresolvedTarget, mut.Kind)
	}
}

// gapText returns children[i] when it is a whitespace-only text node.
func gapText(children []model.Node, i int) (*model.Text, bool) {
	if i < 0 || i >= len(children) {
		return nil, false
	}

	t, ok := children[i].(*model.Text)
	if !ok || t.Comment || strings.TrimSpace(t.Value) != "" {
		return nil, false
	}

	return t, true
}

// gapIndex returns the slot of the blank-text gap that travels with
// children[pos] on removal: the trailing gap when present, else the
// leading one, else -1.
func gapIndex(children []model.Node, pos int) int {
	if _, ok := gapText(children, pos+1); ok {
		return pos + 1
	}
	if _, ok := gapText(children, pos-1); ok {
		return pos - 1
	}
	return -1
}

// removalSpan widens a node's range to swallow the blank run separating it
// from its siblings, so deleting a block doesn't leave doubled gaps.
func removalSpan(idx *Index, id model.NodeID) (model.Span, error) {
	e, ok := idx.byID[id]
	if !ok {
		return model.Span{}, fmt.Errorf("%w: %s", ErrUnresolvedTarget, id)
	}

	span := e.node.Bounds()
	if e.parent == nil {
		return span, nil
	}

	switch g := gapIndex(e.parent.Children, e.pos); {
	case g == e.pos+1:
		span.End = e.parent.Children[g].Bounds().End
	case g == e.pos-1:
		span.Start = e.parent.Children[g].Bounds().Start
	}

	return span, nil
}

// blockGap picks the separator for inserted children: a blank line when
// the parent's children sit on separate lines, nothing for compact
// single-line markup.
func blockGap(parent *model.Element) string {
	for _, c := range parent.Children {
		if t, ok := c.(*model.Text); ok && !t.Comment &&
			strings.TrimSpace(t.Value) == "" && strings.Contains(t.Value, "\n") {
			return "\n\n"
		}
	}
	return ""
}

// lastMeaningful returns the index of the last child that is not a blank
// gap, or -1.
func lastMeaningful(children []model.Node) int {
	for i := len(children) - 1; i >= 0; i-- {
		if _, ok := gapText(children, i); !ok {
			return i
		}
	}
	return -1
}

// advancePastGaps moves an insertion slot forward over blank-text
// children so new nodes anchor next to real content.
func advancePastGaps(children []model.Node, i int) int {
	for i < len(children) {
		if _, ok := gapText(children, i); !ok {
			break
		}
		i++
	}
	return i
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

func resolveInsertNode(source string, mut model.Mutation, idx *Index, seq int) (edit, error) {
	if strings.TrimSpace(mut.Node) == "" {
		return edit{}, fmt.Errorf("%w: insert-node without markup", ErrUnresolvedTarget)
	}

	if mut.Parent == "" {
		return resolveTopLevelInsert(mut, idx, seq)
	}

	parent, ok := idx.Element(mut.Parent)
	if !ok {
		return edit{}, fmt.Errorf("%w: parent %s", ErrUnresolvedTarget, mut.Parent)
	}
	if parent.Fence != nil {
		return edit{}, fmt.Errorf("%w: parent %s is a code block", ErrUnresolvedTarget, mut.Parent)
	}

	sibs := parent.Children
	i := advancePastGaps(sibs, clampIndex(mut.Index, len(sibs)))
	gap := blockGap(parent)

	if i < len(sibs) {
		at := sibs[i].Bounds().Start
		return edit{span: model.Span{Start: at, End: at}, text: mut.Node + gap, seq: seq}, nil
	}

	if last := lastMeaningful(sibs); last >= 0 {
		at := sibs[last].Bounds().End
		return edit{span: model.Span{Start: at, End: at}, text: gap + mut.Node, seq: seq}, nil
	}

	at, err := openTagEnd(source, parent)
	if err != nil {
		return edit{}, err
	}
	return edit{span: model.Span{Start: at, End: at}, text: mut.Node, seq: seq}, nil
}

// resolveTopLevelInsert places markup beside the root when no enclosing
// element exists: before it for index zero, after it otherwise, or at the
// body start of an empty page.
func resolveTopLevelInsert(mut model.Mutation, idx *Index, seq int) (edit, error) {
	root := idx.Root()
	if root == nil {
		at := idx.BodyStart()
		return edit{span: model.Span{Start: at, End: at}, text: mut.Node, seq: seq}, nil
	}

	if mut.Index <= 0 {
		at := root.Bounds().Start
		return edit{span: model.Span{Start: at, End: at}, text: mut.Node + "\n\n", seq: seq}, nil
	}

	at := root.Bounds().End
	return edit{span: model.Span{Start: at, End: at}, text: "\n\n" + mut.Node, seq: seq}, nil
}

// resolveMoveNode extracts the target (with its separating gap) and
// re-inserts it at the requested slot. Index counts the parent's children
// as they stand after the removal; a move that lands back inside its own
// extraction range is a no-op.
func resolveMoveNode(mut model.Mutation, idx *Index, seq int) ([]edit, *move, error) {
	e, ok := idx.byID[mut.Target]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnresolvedTarget, mut.Target)
	}
	if e.parent == nil {
		return nil, nil, fmt.Errorf("%w: cannot move root %s", ErrUnresolvedTarget, mut.Target)
	}

	parent, ok := idx.Element(mut.Parent)
	if !ok {
		return nil, nil, fmt.Errorf("%w: parent %s", ErrUnresolvedTarget, mut.Parent)
	}
	if parent.Fence != nil {
		return nil, nil, fmt.Errorf("%w: parent %s is a code block", ErrUnresolvedTarget, mut.Parent)
	}

	nodeSpan := e.node.Bounds()
	extract := nodeSpan
	gapStr := ""
	var gapNode model.Node

	if g := gapIndex(e.parent.Children, e.pos); g >= 0 {
		gapNode = e.parent.Children[g]
		gapStr = gapNode.(*model.Text).Value
		if g > e.pos {
			extract.End = gapNode.Bounds().End
		} else {
			extract.Start = gapNode.Bounds().Start
		}
	}

	// The insertion slot counts siblings as they stand once the node and
	// its gap are gone.
	sibs := make([]model.Node, 0, len(parent.Children))
	for _, c := range parent.Children {
		if c == e.node || c == gapNode {
			continue
		}
		sibs = append(sibs, c)
	}

	mv := &move{extract: extract, nodeSpan: nodeSpan, seq: seq}
	i := advancePastGaps(sibs, clampIndex(mut.Index, len(sibs)))

	switch {
	case i < len(sibs):
		mv.at = sibs[i].Bounds().Start
		mv.suffix = gapStr

	case lastMeaningful(sibs) >= 0:
		mv.at = sibs[lastMeaningful(sibs)].Bounds().End
		mv.prefix = gapStr

	default:
		at, err := openTagEnd(idx.Source(), parent)
		if err != nil {
			return nil, nil, err
		}
		mv.at = at
	}

	if mv.at >= extract.Start && mv.at <= extract.End {
		return nil, nil, nil
	}

	return nil, mv, nil
}

func resolveSetProp(source string, mut model.Mutation, idx *Index, seq int) ([]edit, *move, error) {
	if el, ok := idx.Element(mut.Target); ok && el.Fence != nil && mut.Name == "lang" {
		info, ok := langString(mut.Value)
		if !ok {
			return nil, nil, fmt.Errorf("%w: lang on %s must be a string", ErrInvalidOp, mut.Target)
		}
		return []edit{{span: fenceInfoSpan(source, el), text: info, seq: seq}}, nil, nil
	}

	el, err := propTarget(mut.Target, idx)
	if err != nil {
		return nil, nil, err
	}
	if mut.Name == "" {
		return nil, nil, fmt.Errorf("%w: set-prop without a name on %s", ErrUnresolvedTarget, mut.Target)
	}

	segment, err := markup.FormatPropValue(mut.Name, mut.Value)
	if err != nil {
		return nil, nil, err
	}

	existing, has := el.Prop(mut.Name)

	// False and nil render to nothing, which erases the attribute.
	if segment == "" {
		if !has {
			return nil, nil, nil
		}
		return []edit{propRemovalEdit(source, el, existing, seq)}, nil, nil
	}

	if has {
		return []edit{{span: existing.Loc, text: segment, seq: seq}}, nil, nil
	}

	at := propAppendAt(el)
	return []edit{{span: model.Span{Start: at, End: at}, text: " " + segment, seq: seq}}, nil, nil
}

func resolveDeleteProp(source string, mut model.Mutation, idx *Index, seq int) ([]edit, *move, error) {
	if el, ok := idx.Element(mut.Target); ok && el.Fence != nil && mut.Name == "lang" {
		return []edit{{span: fenceInfoSpan(source, el), seq: seq}}, nil, nil
	}

	el, err := propTarget(mut.Target, idx)
	if err != nil {
		return nil, nil, err
	}

	existing, has := el.Prop(mut.Name)
	if !has {
		return nil, nil, nil
	}

	return []edit{propRemovalEdit(source, el, existing, seq)}, nil, nil
}

// fenceInfoSpan covers the info word of a fence opener: everything between
// the backticks and the end of their line.
func fenceInfoSpan(source string, el *model.Element) model.Span {
	start := el.Loc.Start + 3
	end := start
	for end < len(source) && source[end] != '\n' && source[end] != '\r' {
		end++
	}
	return model.Span{Start: start, End: end}
}

// langString accepts the value shapes a code block language arrives in.
func langString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case model.PropValue:
		if t.Kind == model.PropString {
			return t.Str, true
		}
		return "", false
	case nil:
		return "", true
	default:
		return "", false
	}
}

// propTarget resolves an attribute mutation's element. Code blocks and the
// synthetic fragment root have no opening tag to edit.
func propTarget(id model.NodeID, idx *Index) (*model.Element, error) {
	el, ok := idx.Element(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedTarget, id)
	}
	if el.Fence != nil {
		return nil, fmt.Errorf("%w: %s is a code block", ErrUnresolvedTarget, id)
	}
	if el.IsFragment() {
		return nil, fmt.Errorf("%w: %s has no opening tag", ErrUnresolvedTarget, id)
	}
	return el, nil
}

// propAppendAt returns the offset where a new attribute segment goes:
// after the last attribute, or right after the tag name.
func propAppendAt(el *model.Element) int {
	if n := len(el.Props); n > 0 {
		return el.Props[n-1].Loc.End
	}
	return el.Loc.Start + 1 + len(el.Tag)
}

// propRemovalEdit deletes an attribute along with the spaces before it.
func propRemovalEdit(source string, el *model.Element, p model.Prop, seq int) edit {
	start := p.Loc.Start
	for start > el.Loc.Start && (source[start-1] == ' ' || source[start-1] == '\t' ||
		source[start-1] == '\n' || source[start-1] == '\r') {
		start--
	}

	return edit{span: model.Span{Start: start, End: p.Loc.End}, seq: seq}
}

// openTagEnd returns the offset just past the '>' of el's opening tag.
func openTagEnd(source string, el *model.Element) (int, error) {
	if el.IsFragment() {
		return el.Loc.Start, nil
	}

	pos := el.Loc.Start + 1 + len(el.Tag)
	if n := len(el.Props); n > 0 {
		pos = el.Props[n-1].Loc.End
	}

	for pos < len(source) && pos <= el.Loc.End {
		switch source[pos] {
		case '>':
			return pos + 1, nil
		case '/', ' ', '\t', '\n', '\r':
			pos++
		default:
			return 0, fmt.Errorf("%w: malformed opening tag for %s", ErrUnresolvedTarget, el.ID)
		}
	}

	return 0, fmt.Errorf("%w: unterminated opening tag for %s", ErrUnresolvedTarget, el.ID)
}

// innerSpan returns the byte range of an element's content: everything
// between the opening and closing tags, the raw body of a code fence, or
// the gap between the tags of an empty element. Void and self-closing
// elements have no inner range.
func innerSpan(source string, el *model.Element) (model.Span, error) {
	if el.Fence != nil {
		for _, c := range el.Children {
			if t, ok := c.(*model.Text); ok {
				return t.Loc, nil
			}
		}
		return model.Span{}, fmt.Errorf("%w: fence %s has no body", ErrUnresolvedTarget, el.ID)
	}

	if len(el.Children) > 0 {
		return model.Span{
			Start: el.Children[0].Bounds().Start,
			End:   el.Children[len(el.Children)-1].Bounds().End,
		}, nil
	}

	if el.IsFragment() {
		return model.Span{Start: el.Loc.Start, End: el.Loc.Start}, nil
	}
	if el.SelfClosing || markup.IsVoid(el.Tag) {
		return model.Span{}, fmt.Errorf("%w: %s has no content range", ErrUnresolvedTarget, el.ID)
	}

	start, err := openTagEnd(source, el)
	if err != nil {
		return model.Span{}, err
	}

	closing := "</" + el.Tag + ">"
	end := el.Loc.End - len(closing)
	if end < start || source[end:el.Loc.End] != closing {
		return model.Span{}, fmt.Errorf("%w: closing tag for %s not where expected", ErrUnresolvedTarget, el.ID)
	}

	return model.Span{Start: start, End: end}, nil
}
