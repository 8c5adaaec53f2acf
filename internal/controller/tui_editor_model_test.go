package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
	"github.com/quire-dev/quire/internal/session"
)

// fakeEditSession records what the editor pushes into it. Source returns
// whatever the last Edit set, mirroring the real session.
type fakeEditSession struct {
	page    model.PageID
	source  string
	edits   []string
	saves   int
	saveErr error
	status  session.Status
}

func (f *fakeEditSession) Page() model.PageID { return f.page }
func (f *fakeEditSession) Source() string     { return f.source }

func (f *fakeEditSession) Edit(source string) {
	f.source = source
	f.edits = append(f.edits, source)
	f.status.Dirty = true
}

func (f *fakeEditSession) SaveNow(context.Context) error {
	f.saves++
	return f.saveErr
}

func (f *fakeEditSession) Status() session.Status { return f.status }

func pressKey(t *testing.T, m editorModel, key string) editorModel {
	t.Helper()

	var msg tea.KeyMsg

	switch key {
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+s":
		msg = tea.KeyMsg{Type: tea.KeyCtrlS}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}

	updated, _ := m.Update(msg)

	return updated.(editorModel)
}

func blockTexts(doc *model.Document) []string {
	out := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		out = append(out, b.PlainText())
	}

	return out
}

func TestEditorModel_AdoptsSessionSource(t *testing.T) {
	sess := &fakeEditSession{
		page:   "notes",
		source: "<h1>Title</h1>\n\n<p>alpha</p>\n\n<p>beta</p>\n",
		status: session.Status{State: session.StateSynced},
	}

	m := newEditorModel(sess)

	require.NotNil(t, m.doc)
	require.NotNil(t, m.idx)
	require.Len(t, m.doc.Blocks, 3)
	assert.Equal(t, "h1", m.doc.Blocks[0].Type)

	for _, b := range m.doc.Blocks {
		assert.NotEmpty(t, b.Anchor)
	}

	view := m.View()
	assert.Contains(t, view, "Quire Edit: notes")
	assert.Contains(t, view, "synced")
	assert.Contains(t, view, "clean")
	assert.Contains(t, view, "Title")
}

func TestEditorModel_CursorNavigation(t *testing.T) {
	sess := &fakeEditSession{page: "notes", source: "<p>a</p>\n\n<p>b</p>\n\n<p>c</p>\n"}
	m := newEditorModel(sess)

	m = pressKey(t, m, "k")
	assert.Equal(t, 0, m.cursor, "k at the top stays")

	m = pressKey(t, m, "j")
	m = pressKey(t, m, "down")
	assert.Equal(t, 2, m.cursor)

	m = pressKey(t, m, "j")
	assert.Equal(t, 2, m.cursor, "j at the bottom stays")

	m = pressKey(t, m, "up")
	assert.Equal(t, 1, m.cursor)

	assert.Empty(t, sess.edits, "navigation must not edit")
}

func TestEditorModel_MoveBlockKeepsAnchor(t *testing.T) {
	sess := &fakeEditSession{
		page:   "notes",
		source: "<h1>Title</h1>\n\n<p>alpha</p>\n\n<p>beta</p>\n",
	}

	m := newEditorModel(sess)
	movedAnchor := m.doc.Blocks[0].Anchor

	m = pressKey(t, m, "J")

	require.Len(t, sess.edits, 1)
	require.Len(t, m.doc.Blocks, 3)
	assert.Equal(t, []string{"alpha", "Title", "beta"}, blockTexts(m.doc))
	assert.Equal(t, "h1", m.doc.Blocks[1].Type)
	assert.Equal(t, movedAnchor, m.doc.Blocks[1].Anchor, "anchor follows the moved block")
	assert.Equal(t, 1, m.cursor, "selection follows the moved block")
	assert.Contains(t, m.note, "move-node")
	assert.NotContains(t, m.note, "full serialize")

	res := markup.Parse(sess.source)
	require.True(t, res.OK(), "pushed source must parse: %v", res.Errors)
}

func TestEditorModel_MoveAtEdgeIsNoop(t *testing.T) {
	sess := &fakeEditSession{page: "notes", source: "<p>a</p>\n\n<p>b</p>\n"}
	m := newEditorModel(sess)

	m = pressKey(t, m, "K")
	assert.Empty(t, sess.edits)
	assert.Equal(t, 0, m.cursor)

	m = pressKey(t, m, "j")
	m = pressKey(t, m, "J")
	assert.Empty(t, sess.edits)
}

func TestEditorModel_DeleteBlock(t *testing.T) {
	sess := &fakeEditSession{page: "notes", source: "<p>alpha</p>\n\n<p>beta</p>\n"}
	m := newEditorModel(sess)

	m = pressKey(t, m, "d")

	require.Len(t, m.doc.Blocks, 1)
	assert.Equal(t, "beta", m.doc.Blocks[0].PlainText())
	assert.Equal(t, 0, m.cursor)
	require.Len(t, sess.edits, 1)

	// Deleting the survivor leaves the placeholder paragraph.
	m = pressKey(t, m, "d")

	require.Len(t, m.doc.Blocks, 1)
	assert.Equal(t, "", m.doc.Blocks[0].PlainText())
	assert.Len(t, sess.edits, 2)
}

func TestEditorModel_AppendParagraph(t *testing.T) {
	sess := &fakeEditSession{page: "notes", source: "<p>alpha</p>\n"}
	m := newEditorModel(sess)

	m = pressKey(t, m, "a")

	require.Len(t, m.doc.Blocks, 2)
	assert.Equal(t, "p", m.doc.Blocks[1].Type)
	assert.Equal(t, "", m.doc.Blocks[1].PlainText())
	assert.Equal(t, 1, m.cursor, "selection lands on the new paragraph")

	assert.NotEmpty(t, m.doc.Blocks[1].Anchor)
	assert.NotEqual(t, m.doc.Blocks[0].Anchor, m.doc.Blocks[1].Anchor,
		"inserted block mints its own anchor")

	require.Len(t, sess.edits, 1)
	res := markup.Parse(sess.source)
	require.True(t, res.OK())
}

func TestEditorModel_EmptyPageFallsBackToSerialize(t *testing.T) {
	sess := &fakeEditSession{page: "blank", source: ""}
	m := newEditorModel(sess)

	// An empty page parses to the placeholder paragraph, which has no
	// span in the source, so surgical mutation cannot resolve it.
	require.Len(t, m.doc.Blocks, 1)

	m = pressKey(t, m, "d")

	assert.Contains(t, m.note, "full serialize")
	require.Len(t, sess.edits, 1)
	assert.Equal(t, "<p></p>\n", sess.source)
}

func TestEditorModel_ParseErrorsDisableEditing(t *testing.T) {
	sess := &fakeEditSession{page: "broken", source: "<div><p>oops"}
	m := newEditorModel(sess)

	require.Nil(t, m.doc)
	require.NotEmpty(t, m.parseErrs)
	assert.Contains(t, m.View(), "parse errors")

	for _, key := range []string{"d", "a", "J"} {
		m = pressKey(t, m, key)
		assert.Equal(t, editsDisabledNote, m.note)
	}

	assert.Empty(t, sess.edits)

	// Externally fixed content re-enables editing.
	sess.source = "<p>fixed</p>\n"
	m = m.handleSessionEvent(model.Event{Kind: model.EventExternalChange, Page: "broken", Version: 1})

	require.NotNil(t, m.doc)
	assert.Equal(t, "fixed", m.doc.Blocks[0].PlainText())
	assert.Contains(t, m.note, "reloaded")
}

func TestEditorModel_SessionEvents(t *testing.T) {
	sess := &fakeEditSession{page: "notes", source: "<p>one</p>\n\n<p>two</p>\n"}
	m := newEditorModel(sess)

	first := m.doc.Blocks[0].Anchor
	second := m.doc.Blocks[1].Anchor

	sess.status = session.Status{State: session.StateSynced, Dirty: true}
	m = m.handleSessionEvent(model.Event{Kind: model.EventSaved, Page: "notes", Version: 4})
	assert.Equal(t, "saved v4", m.note)
	assert.True(t, m.status.Dirty, "status refreshed from the session")

	m = m.handleSessionEvent(model.Event{Kind: model.EventSaveFailed, Page: "notes", Err: errors.New("store down")})
	assert.Contains(t, m.note, "store down")

	m = m.handleSessionEvent(model.Event{Kind: model.EventLoaded, Page: "notes"})
	assert.Equal(t, "loaded", m.note)

	sess.source = "<p>uno</p>\n\n<p>two</p>\n\n<p>three</p>\n"
	m = m.handleSessionEvent(model.Event{Kind: model.EventExternalChange, Page: "notes", Version: 2})

	require.Len(t, m.doc.Blocks, 3)
	assert.Contains(t, m.note, "resync 2")
	assert.Equal(t, first, m.doc.Blocks[0].Anchor, "anchors survive the resync")
	assert.Equal(t, second, m.doc.Blocks[1].Anchor)
	assert.NotEmpty(t, m.doc.Blocks[2].Anchor)
	assert.NotEqual(t, first, m.doc.Blocks[2].Anchor)
}

func TestEditorModel_SaveNow(t *testing.T) {
	sess := &fakeEditSession{page: "notes", source: "<p>x</p>\n"}
	m := newEditorModel(sess)

	_, cmd := m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)

	msg := cmd()
	saved, ok := msg.(savedNowMsg)
	require.True(t, ok, "ctrl+s cmd must yield savedNowMsg, got %T", msg)
	require.NoError(t, saved.err)
	assert.Equal(t, 1, sess.saves)

	updated, _ := m.Update(saved)
	assert.Equal(t, "saved", updated.(editorModel).note)

	sess.saveErr = errors.New("boom")
	_, cmd = m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyCtrlS})
	updated, _ = m.Update(cmd())
	assert.Contains(t, updated.(editorModel).note, "boom")
}

func TestEditorModel_UpdateBranches(t *testing.T) {
	sess := &fakeEditSession{page: "notes", source: "<p>x</p>\n"}
	m := newEditorModel(sess)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 90, Height: 30})
	m = updated.(editorModel)
	assert.Equal(t, 90, m.width)
	assert.Equal(t, 30, m.height)

	sess.status = session.Status{State: session.StateSynced, InGrace: true, ResyncVersion: 3}
	updated, cmd := m.Update(tickMsg(time.Now()))
	m = updated.(editorModel)
	require.NotNil(t, cmd, "tick must re-arm")
	assert.True(t, m.status.InGrace)
	assert.Contains(t, m.View(), "grace")
	assert.Contains(t, m.View(), "resync 3")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	assert.Contains(t, m.View(), "ctrl+s save")
}

func TestWindowAround(t *testing.T) {
	start, end := windowAround(0, 3, 10)
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, end, "everything fits")

	start, end = windowAround(0, 20, 5)
	assert.Equal(t, 0, start)
	assert.Equal(t, 5, end)

	start, end = windowAround(10, 20, 5)
	assert.Equal(t, 8, start)
	assert.Equal(t, 13, end, "window centers on the cursor")

	start, end = windowAround(19, 20, 5)
	assert.Equal(t, 15, start)
	assert.Equal(t, 20, end, "window clamps at the end")
}

func TestClampCursor(t *testing.T) {
	assert.Equal(t, 0, clampCursor(5, 0))
	assert.Equal(t, 2, clampCursor(5, 3))
	assert.Equal(t, 0, clampCursor(-1, 3))
	assert.Equal(t, 1, clampCursor(1, 3))
}
