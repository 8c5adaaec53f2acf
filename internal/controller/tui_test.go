package controller

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quire-dev/quire/internal/model"
)

type quitModel struct{}

func (m quitModel) Init() tea.Cmd { return tea.Quit }
func (m quitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, tea.Quit
}
func (m quitModel) View() string { return "" }

func TestTUI_StartWithModel_WaitAndClose(t *testing.T) {
	var buf bytes.Buffer
	tui := NewTUI(&buf)

	if err := tui.startWithModel(quitModel{}); err != nil {
		t.Fatalf("startWithModel error = %v", err)
	}

	// send while running should go through program.Send
	tui.send(blocksMsg{})

	waitDone := make(chan struct{})
	go func() {
		tui.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() timed out")
	}

	closeDone := make(chan struct{})
	go func() {
		tui.Close()
		close(closeDone)
	}()

	select {
	case <-closeDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() timed out")
	}
}

func TestTUI_Send_And_EnsureStarted_NoPanic(t *testing.T) {
	var buf bytes.Buffer
	tui := NewTUI(&buf)

	// send before start should be no-op
	tui.send(blocksMsg{})

	// ensureStarted should not re-start when already started
	tui.started = true
	tui.ensureStarted()
}

func TestTUI_StartEditMode_NeedsSession(t *testing.T) {
	var buf bytes.Buffer
	tui := NewTUI(&buf)

	if err := tui.Start(WithEditMode(nil)); err == nil {
		t.Fatalf("Start(edit) without a session should error")
	}
}

func TestTUI_ShowBlocksStartsProgram(t *testing.T) {
	var buf bytes.Buffer
	tui := NewTUI(&buf)

	reports := []model.PageReport{
		reportFromSource(t, "notes.qd", "<p>hello</p>\n"),
	}

	if err := tui.ShowBlocks(reports); err != nil {
		t.Fatalf("ShowBlocks error = %v", err)
	}

	// Session events route through the running program without panicking.
	tui.Notify(model.Event{Kind: model.EventSaved, Page: "notes", Version: 1})

	tui.Close()
}

func TestTUI_StartDefaultsToBlocks(t *testing.T) {
	var buf bytes.Buffer
	tui := NewTUI(&buf)

	if err := tui.Start(); err != nil {
		t.Fatalf("Start error = %v", err)
	}

	tui.Close()
}

func TestTUI_MultipleClose(t *testing.T) {
	var buf bytes.Buffer
	tui := NewTUI(&buf)

	tui.Close()
	tui.Close() // Close again should be safe

	tui2 := NewTUI(&buf)
	tui2.Wait() // Wait without start should be no-op

	tui3 := NewTUI(&buf)
	tui3.Close() // Close without start should be no-op
}

func TestTUI_OneShotOutputs_NoProgram(t *testing.T) {
	var buf bytes.Buffer
	tui := NewTUI(&buf)

	// Avoid starting a Bubble Tea program in this test
	tui.started = true

	report := reportFromSource(t, "demo.qd", "---\ntitle: Demo\n---\n<h1>Hi</h1>\n")

	if err := tui.ShowTree(report, false); err != nil {
		t.Fatalf("ShowTree error = %v", err)
	}
	if !strings.Contains(buf.String(), "title: Demo") {
		t.Fatalf("ShowTree outline missing title\n%s", buf.String())
	}

	buf.Reset()
	if err := tui.ShowTree(report, true); err != nil {
		t.Fatalf("ShowTree JSON error = %v", err)
	}
	if !strings.Contains(buf.String(), `"tree"`) {
		t.Fatalf("ShowTree JSON missing tree field\n%s", buf.String())
	}

	buf.Reset()
	tui.ShowSource("<p>verbatim</p>\n")
	if buf.String() != "<p>verbatim</p>\n" {
		t.Fatalf("ShowSource = %q", buf.String())
	}

	buf.Reset()
	tui.ShowApply(model.ApplySummary{Path: "a.qd", Ops: 1, Mutations: 1, Written: 10})
	if !strings.Contains(buf.String(), "surgical") {
		t.Fatalf("ShowApply = %q", buf.String())
	}

	// Notify without a running program is a no-op.
	tui.Notify(model.Event{Kind: model.EventSaved, Page: "a", Version: 1})

	if err := tui.ShowBlocks(nil); err != nil {
		t.Fatalf("ShowBlocks error = %v", err)
	}
}
