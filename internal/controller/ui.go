// Package controller provides the output side of the CLI: a plain-text
// renderer for piped output and a Bubble Tea front end for interactive
// terminals. Both speak the same UI interface so the workflow layer never
// knows which one it is driving.
package controller

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quire-dev/quire/internal/model"
	"github.com/quire-dev/quire/internal/session"
)

// StartMode selects which interactive view Start launches.
type StartMode int

// Available StartMode values.
const (
	ModeBlocks StartMode = iota
	ModeEdit
)

// StartOption is a functional option for the Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode StartMode
	sess EditSession
}

// Mode returns the selected start mode.
func (c *StartConfig) Mode() StartMode { return c.mode }

// Session returns the edit session bound by WithEditMode, or nil.
func (c *StartConfig) Session() EditSession { return c.sess }

// WithBlocksMode starts the block outline browser.
func WithBlocksMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeBlocks
	}
}

// WithEditMode starts the interactive editor bound to sess.
func WithEditMode(sess EditSession) StartOption {
	return func(c *StartConfig) {
		c.mode = ModeEdit
		c.sess = sess
	}
}

// EditSession is the slice of session behavior the editor view drives.
// *session.Session satisfies it; tests substitute fakes.
type EditSession interface {
	Page() model.PageID
	Source() string
	Edit(source string)
	SaveNow(ctx context.Context) error
	Status() session.Status
}

// UI is the display surface the workflow layer renders through.
// Implementations can use different output methods (simple text, TUI).
type UI interface {
	Start(options ...StartOption) error
	Close()
	Wait() // Wait for the interactive view to finish (user closes it).
	Notify(ev model.Event)
	ShowBlocks(reports []model.PageReport) error
	ShowTree(report model.PageReport, asJSON bool) error
	ShowSource(source string)
	ShowApply(sum model.ApplySummary)
}

// NewUI creates a UI based on whether TTY mode is enabled.
// When useTTY is true, it returns a TUI (Bubble Tea).
// When useTTY is false, it returns a SimpleUI (plain text).
func NewUI(cmd *cobra.Command, useTTY bool) UI {
	if useTTY {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY checks if the given writer is an interactive terminal. Returns
// false when the output is redirected to a file or pipe.
func IsTTY(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(file.Fd()))
}
