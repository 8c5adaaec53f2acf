package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
)

// SimpleUI implements UI using cobra Command's output writer. It renders
// tables and outlines for piped or scripted use; it has no interactive
// views.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI. Edit mode needs a terminal and is refused.
func (s *SimpleUI) Start(options ...StartOption) error {
	cfg := &StartConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	if cfg.mode == ModeEdit {
		return errors.New("controller: interactive editing needs a terminal, output is piped")
	}

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close() {

}

// Wait returns immediately; nothing runs in the background.
func (s *SimpleUI) Wait() {

}

// Notify prints a session event.
func (s *SimpleUI) Notify(ev model.Event) {
	s.printf("%s\n", ev)
}

// ShowBlocks prints one table row per top-level block across all reports,
// followed by the parse problems of pages that did not load cleanly.
func (s *SimpleUI) ShowBlocks(reports []model.PageReport) error {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Page", "Block", "Type", "Void", "Anchor", "Text"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
	})

	blockCount := 0

	for _, report := range reports {
		if report.Doc == nil {
			continue
		}

		page := string(report.Path.PageID())

		for _, b := range report.Doc.Blocks {
			void := ""
			if b.Void {
				void = "yes"
			}

			table.Append([]string{
				page,
				string(b.ID),
				b.Type,
				void,
				b.Anchor,
				clipText(b.PlainText(), 40),
			})

			blockCount++
		}
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Pages %d", len(reports)),
		"", "", "", "",
		fmt.Sprintf("%d", blockCount),
	})

	table.Render()
	s.printf("\n%s", tableBuffer.String())

	s.printProblems(reports)

	return nil
}

// ShowTree prints a page's parse outcome: the title, the element outline
// with identifiers and byte ranges, and any parse problems. With asJSON
// the same report renders as one JSON document.
func (s *SimpleUI) ShowTree(report model.PageReport, asJSON bool) error {
	return renderTree(s.cmd.OutOrStdout(), report, asJSON)
}

// ShowSource prints a page source verbatim.
func (s *SimpleUI) ShowSource(source string) {
	s.printf("%s", source)
}

// ShowApply prints a one-line apply summary.
func (s *SimpleUI) ShowApply(sum model.ApplySummary) {
	s.printf("%s\n", applySummaryLine(sum))
}

func (s *SimpleUI) printProblems(reports []model.PageReport) {
	for _, report := range reports {
		for _, e := range report.Errors {
			s.printf("%s: %s\n", report.Path, e)
		}
	}
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

// pageJSON is the JSON rendering of one parse report.
type pageJSON struct {
	Path   string     `json:"path"`
	Title  string     `json:"title,omitempty"`
	Errors []string   `json:"errors,omitempty"`
	Tree   model.Node `json:"tree"`
}

// renderTree writes a parse report as an outline or a JSON document. Both
// UI implementations share it.
func renderTree(w io.Writer, report model.PageReport, asJSON bool) error {
	if asJSON {
		out, err := json.MarshalIndent(pageJSON{
			Path:   string(report.Path),
			Title:  report.Title,
			Errors: report.Errors,
			Tree:   report.Root,
		}, "", "  ")
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(w, "%s\n", out)

		return err
	}

	_, err := io.WriteString(w, treeOutline(report))

	return err
}

// applySummaryLine renders an apply outcome for both UI implementations.
func applySummaryLine(sum model.ApplySummary) string {
	mode := "surgical"
	if sum.Fallback {
		mode = "full serialize"
	}

	return fmt.Sprintf("%s: %d op(s) -> %d mutation(s), %s, wrote %d bytes",
		sum.Path, sum.Ops, sum.Mutations, mode, sum.Written)
}

// treeOutline renders a parse report as an indented element outline.
func treeOutline(report model.PageReport) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n", report.Path)

	if report.Title != "" {
		fmt.Fprintf(&sb, "title: %s\n", report.Title)
	}

	if report.Root == nil {
		sb.WriteString("(empty body)\n")
	} else {
		writeOutline(&sb, report.Root, 0)
	}

	for _, e := range report.Errors {
		fmt.Fprintf(&sb, "error: %s\n", e)
	}

	return sb.String()
}

func writeOutline(sb *strings.Builder, n model.Node, depth int) {
	pad := strings.Repeat("  ", depth)

	switch t := n.(type) {
	case *model.Element:
		fmt.Fprintf(sb, "%s<%s>", pad, t.Tag)

		for _, p := range t.Props {
			fmt.Fprintf(sb, " %s", markup.FormatProp(p))
		}

		fmt.Fprintf(sb, "  %s [%d:%d)\n", t.ID, t.Loc.Start, t.Loc.End)

		for _, c := range t.Children {
			writeOutline(sb, c, depth+1)
		}

	case *model.Text:
		if t.Comment {
			fmt.Fprintf(sb, "%scomment  %s [%d:%d)\n", pad, t.ID, t.Loc.Start, t.Loc.End)
			return
		}

		if strings.TrimSpace(t.Value) == "" {
			return
		}

		fmt.Fprintf(sb, "%s%q  %s [%d:%d)\n", pad, clipText(t.Value, 40), t.ID, t.Loc.Start, t.Loc.End)
	}
}

// clipText collapses runs of whitespace and truncates to max runes.
func clipText(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	if max <= 1 {
		return "…"
	}

	return string(runes[:max-1]) + "…"
}
