package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quire-dev/quire/internal/anchor"
	"github.com/quire-dev/quire/internal/document"
	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
	"github.com/quire-dev/quire/internal/patch"
	"github.com/quire-dev/quire/internal/session"
)

// editorModel is the interactive block editor for one open page. It keeps
// a parsed snapshot of the session's source: the block document plus the
// identifier->location index over the exact same text. Every structural
// key builds an editing operation, applied surgically when its targets
// resolve and through a full re-serialization when they do not; either
// way the result is re-parsed, anchors are carried over, and the new
// source is pushed into the session.
type editorModel struct {
	sess    EditSession
	anchors *anchor.Registry

	width  int
	height int

	src       string
	doc       *model.Document
	idx       *patch.Index
	fm        *model.Frontmatter
	parseErrs []string

	cursor int
	status session.Status
	note   string
}

func newEditorModel(sess EditSession) editorModel {
	m := editorModel{
		sess:    sess,
		anchors: anchor.New(),
	}
	m = m.adopt(sess.Source())
	m.status = sess.Status()

	return m
}

// adopt replaces the parsed snapshot with a fresh parse of source.
// Anchors carry over positionally. When the source does not parse, the
// snapshot is dropped and structural editing is disabled until parseable
// content arrives.
func (m editorModel) adopt(source string) editorModel {
	m.src = source

	res := markup.Parse(source)
	if !res.OK() {
		m.doc = nil
		m.idx = nil
		m.fm = res.Frontmatter
		m.parseErrs = res.Errors
		m.cursor = 0

		return m
	}

	parsed := document.FromTree(res.Root)

	if m.doc != nil {
		m.anchors.Rebind(m.doc, parsed)
	} else {
		m.anchors.Assign(parsed)
	}

	m.doc = parsed
	m.idx = patch.NewIndex(res)
	m.fm = res.Frontmatter
	m.parseErrs = nil
	m.cursor = clampCursor(m.cursor, len(parsed.Blocks))

	return m
}

func (m editorModel) Init() tea.Cmd {
	return editorTick()
}

func editorTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		return m, nil

	case tickMsg:
		// The grace window expires without an event, so the status bar
		// refreshes on a timer too.
		m.status = m.sess.Status()

		return m, editorTick()

	case sessionEventMsg:
		return m.handleSessionEvent(msg.event), nil

	case savedNowMsg:
		m.status = m.sess.Status()

		if msg.err != nil {
			m.note = "save failed: " + msg.err.Error()
		} else {
			m.note = "saved"
		}

		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m editorModel) handleSessionEvent(ev model.Event) editorModel {
	m.status = m.sess.Status()

	switch ev.Kind {
	case model.EventLoaded:
		m = m.adopt(m.sess.Source())
		m.note = "loaded"

	case model.EventSaved:
		m.note = fmt.Sprintf("saved v%d", ev.Version)

	case model.EventSaveFailed:
		m.note = "save failed"
		if ev.Err != nil {
			m.note = "save failed: " + ev.Err.Error()
		}

	case model.EventExternalChange:
		m = m.adopt(m.sess.Source())
		m.note = fmt.Sprintf("page changed in store, reloaded (resync %d)", ev.Version)
	}

	return m
}

func (m editorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "up", "k":
		m.cursor = clampCursor(m.cursor-1, m.blockCount())
		return m, nil

	case "down", "j":
		m.cursor = clampCursor(m.cursor+1, m.blockCount())
		return m, nil

	case "K", "shift+up":
		return m.moveSelected(-1), nil

	case "J", "shift+down":
		return m.moveSelected(1), nil

	case "d":
		return m.removeSelected(), nil

	case "a":
		return m.appendParagraph(), nil

	case "ctrl+s":
		return m, m.saveNow()
	}

	return m, nil
}

func (m editorModel) blockCount() int {
	if m.doc == nil {
		return 0
	}

	return len(m.doc.Blocks)
}

const editsDisabledNote = "page has parse errors, structural edits are disabled"

func (m editorModel) moveSelected(delta int) editorModel {
	if m.doc == nil {
		m.note = editsDisabledNote
		return m
	}

	n := m.blockCount()
	if n < 2 {
		return m
	}

	to := m.cursor + delta
	if to < 0 || to >= n {
		return m
	}

	b := m.doc.Blocks[m.cursor]

	next, ok := m.applyOp(model.Op{Kind: model.OpMoveNode, Target: b.ID, Index: to})
	if ok {
		next.cursor = clampCursor(to, next.blockCount())
	}

	return next
}

func (m editorModel) removeSelected() editorModel {
	if m.doc == nil {
		m.note = editsDisabledNote
		return m
	}

	if m.blockCount() == 0 {
		return m
	}

	b := m.doc.Blocks[m.cursor]

	next, ok := m.applyOp(model.Op{Kind: model.OpRemoveNode, Target: b.ID})
	if ok {
		next.cursor = clampCursor(next.cursor, next.blockCount())
	}

	return next
}

// appendParagraph inserts an empty paragraph after the selected block.
func (m editorModel) appendParagraph() editorModel {
	if m.doc == nil {
		m.note = editsDisabledNote
		return m
	}

	at := m.cursor + 1
	if m.blockCount() == 0 {
		at = 0
	}

	next, ok := m.applyOp(model.Op{
		Kind:  model.OpInsertNode,
		Index: at,
		Node:  "<p></p>",
	})
	if ok {
		next.cursor = clampCursor(at, next.blockCount())
	}

	return next
}

// applyOp funnels every structural edit: map the operation, splice the
// source surgically, fall back to re-serializing the edited document when
// the surgical path cannot resolve its targets. The result is re-parsed
// so identifiers and the location index stay valid, then pushed into the
// session for the debounced save.
func (m editorModel) applyOp(op model.Op) (editorModel, bool) {
	if m.doc == nil || m.idx == nil {
		m.note = editsDisabledNote
		return m, false
	}

	edited, err := document.ApplyOps(m.doc, []model.Op{op})
	if err != nil {
		m.note = err.Error()
		return m, false
	}

	next, fellBack, err := m.mutateSource(op, edited)
	if err != nil {
		m.note = err.Error()
		return m, false
	}

	res := markup.Parse(next)
	if !res.OK() {
		// Refuse the edit rather than corrupt the snapshot; the session
		// keeps the previous source.
		m.note = "edit refused: result did not parse"
		return m, false
	}

	parsed := document.FromTree(res.Root)
	m.anchors.Rebind(edited, parsed)

	m.src = next
	m.doc = parsed
	m.idx = patch.NewIndex(res)
	m.fm = res.Frontmatter
	m.parseErrs = nil

	m.sess.Edit(next)
	m.status = m.sess.Status()

	if fellBack {
		m.note = fmt.Sprintf("%s (full serialize)", op)
	} else {
		m.note = op.String()
	}

	m.cursor = clampCursor(m.cursor, len(parsed.Blocks))

	return m, true
}

// mutateSource tries the surgical path first. Resolution failures fall
// back to serializing the edited document wholesale; anything else is a
// real error.
func (m editorModel) mutateSource(op model.Op, edited *model.Document) (string, bool, error) {
	muts, err := patch.FromOp(op, m.idx)
	if err == nil {
		var next string

		next, err = patch.Apply(m.src, muts, m.idx)
		if err == nil {
			return next, false, nil
		}
	}

	if !errors.Is(err, patch.ErrUnresolvedTarget) && !errors.Is(err, patch.ErrOverlap) {
		return "", false, err
	}

	next, serr := document.Serialize(edited, m.fm)
	if serr != nil {
		return "", false, serr
	}

	return next, true, nil
}

func (m editorModel) saveNow() tea.Cmd {
	sess := m.sess

	return func() tea.Msg {
		return savedNowMsg{err: sess.SaveNow(context.Background())}
	}
}

func (m editorModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Bold(true).
		Padding(1, 0, 0, 2)

	title := titleStyle.Render(fmt.Sprintf("Quire Edit: %s", m.sess.Page()))

	noteStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Padding(0, 0, 0, 2)

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Align(lipgloss.Center).
		Width(m.width)

	footer := footerStyle.Render("↑/k ↓/j select • K/J move • a add • d delete • ctrl+s save • q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.statusLine(),
		m.renderBlocks(),
		noteStyle.Render(truncateToWidth(m.note, max(m.width-4, 20))),
		footer,
	)
}

func (m editorModel) statusLine() string {
	st := m.status

	chip := func(label, color string) string {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color(color)).
			Padding(0, 1).
			Render(label)
	}

	parts := make([]string, 0, 5)
	parts = append(parts, chip(st.State.String(), "6"))

	if st.Dirty {
		parts = append(parts, chip("dirty", "11"))
	} else {
		parts = append(parts, chip("clean", "2"))
	}

	if st.Saving {
		parts = append(parts, chip("saving…", "13"))
	}

	if st.InGrace {
		parts = append(parts, chip("grace", "5"))
	}

	if st.ResyncVersion > 0 {
		parts = append(parts, chip(fmt.Sprintf("resync %d", st.ResyncVersion), "3"))
	}

	return lipgloss.NewStyle().
		Padding(0, 0, 1, 2).
		Render(strings.Join(parts, " "))
}

func (m editorModel) renderBlocks() string {
	if m.doc == nil {
		errStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Padding(0, 0, 0, 2)

		lines := []string{errStyle.Render("page has parse errors; fix the source to edit blocks")}
		for _, e := range m.parseErrs {
			lines = append(lines, errStyle.Render("  "+e))
		}

		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	visible := m.visibleRows()
	start, end := windowAround(m.cursor, len(m.doc.Blocks), visible)

	width := m.width - 6
	if width < 20 {
		width = 20
	}

	typeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	voidStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("6")).
		Bold(true)

	rows := make([]string, 0, end-start)

	for i := start; i < end; i++ {
		b := m.doc.Blocks[i]

		preview := clipText(b.PlainText(), width-16)

		switch {
		case b.Void:
			preview = "(void)"
		case preview == "":
			preview = "(empty)"
		}

		if i == m.cursor {
			rows = append(rows, "❯ "+selectedStyle.Render(fmt.Sprintf("%-12s %s", b.Type, preview)))
			continue
		}

		style := textStyle
		if b.Void {
			style = voidStyle
		}

		rows = append(rows, "  "+typeStyle.Render(fmt.Sprintf("%-12s", b.Type))+" "+style.Render(preview))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("6")).
		Margin(0, 1).
		Padding(0, 1)

	return box.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// visibleRows is the number of block rows that fit between the chrome.
func (m editorModel) visibleRows() int {
	if m.height == 0 {
		return 10
	}

	// Title (2) + status (2) + note (1) + footer (1) + border and
	// padding (3).
	available := m.height - 9
	if available < 3 {
		return 3
	}

	return available
}

// windowAround centers a window of size visible on cursor within n rows.
func windowAround(cursor, n, visible int) (start, end int) {
	if n <= visible {
		return 0, n
	}

	start = cursor - visible/2
	if start < 0 {
		start = 0
	}

	if start+visible > n {
		start = n - visible
	}

	return start, start + visible
}

func clampCursor(c, n int) int {
	if n == 0 {
		return 0
	}

	if c >= n {
		return n - 1
	}

	if c < 0 {
		return 0
	}

	return c
}
