package controller

import (
	"errors"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quire-dev/quire/internal/model"
)

// TUI implements UI with a Bubble Tea program. One-shot output (tree
// outlines, apply summaries, page sources) prints straight to the writer;
// the blocks browser and the editor run behind Start/Wait/Close.
type TUI struct {
	output io.Writer

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
	started bool
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start launches the interactive view for the selected mode. Starting an
// already-running TUI is a no-op.
func (t *TUI) Start(options ...StartOption) error {
	cfg := &StartConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	if cfg.mode == ModeEdit {
		if cfg.sess == nil {
			return errors.New("controller: edit mode needs a session")
		}

		return t.startWithModel(newEditorModel(cfg.sess))
	}

	return t.startWithModel(newBlocksModel())
}

func (t *TUI) startWithModel(m tea.Model) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}

	program := tea.NewProgram(m,
		tea.WithOutput(t.output),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	done := make(chan struct{})

	t.program = program
	t.done = done
	t.started = true
	t.mu.Unlock()

	go func() {
		_, _ = program.Run()
		close(done)
	}()

	return nil
}

// ensureStarted launches the blocks view when no program runs yet, so the
// Show methods can stream into it.
func (t *TUI) ensureStarted() {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()

	if !started {
		_ = t.startWithModel(newBlocksModel())
	}
}

func (t *TUI) send(msg tea.Msg) {
	t.mu.Lock()
	program := t.program
	t.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

// Wait blocks until the user closes the interactive view.
func (t *TUI) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Close stops the program and waits for it to wind down. Safe to call
// repeatedly and without a prior Start.
func (t *TUI) Close() {
	t.mu.Lock()
	program := t.program
	t.mu.Unlock()

	if program != nil {
		program.Quit()
	}

	t.Wait()
}

// Notify forwards a session event into the running view.
func (t *TUI) Notify(ev model.Event) {
	t.send(sessionEventMsg{event: ev})
}

// ShowBlocks streams reports into the blocks browser, starting it if
// needed. Wait for the user afterwards.
func (t *TUI) ShowBlocks(reports []model.PageReport) error {
	t.ensureStarted()
	t.send(blocksMsg{reports: reports})

	return nil
}

// ShowTree prints the parse outline directly; inspection has no
// interactive view.
func (t *TUI) ShowTree(report model.PageReport, asJSON bool) error {
	return renderTree(t.output, report, asJSON)
}

// ShowSource prints a page source verbatim.
func (t *TUI) ShowSource(source string) {
	_, _ = fmt.Fprint(t.output, source)
}

// ShowApply prints a one-line apply summary.
func (t *TUI) ShowApply(sum model.ApplySummary) {
	_, _ = fmt.Fprintf(t.output, "%s\n", applySummaryLine(sum))
}
