// Package domain contains the workflows the CLI drives: scanning page
// trees, inspecting parses, listing blocks, normalizing, applying
// operation streams, interactive editing, and serving a page store over
// HTTP. Workflows read through the adapter seams and report through the
// controller UI, so every one of them runs unchanged against a fake
// filesystem, an in-memory store, or a scripted display.
package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/quire-dev/quire/internal/adapter"
	"github.com/quire-dev/quire/internal/controller"
	"github.com/quire-dev/quire/internal/document"
	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
)

// InspectArgs selects one page for a parse report.
type InspectArgs struct {
	Path   model.Path
	AsJSON bool
}

// BlocksArgs selects the pages for a cross-page block listing. Roots may
// carry the `/...` suffix for recursive scans; Excludes are regular
// expressions matched against candidate paths.
type BlocksArgs struct {
	Roots    []model.Path
	Excludes []string
}

// FormatArgs selects one page for normalization.
type FormatArgs struct {
	Path  model.Path
	Write bool
}

// ApplyArgs names the page to patch and the JSON file carrying the
// operations. FallbackOnly skips the surgical path entirely.
type ApplyArgs struct {
	Path         model.Path
	OpsPath      model.Path
	FallbackOnly bool
}

// EditArgs opens one page in the interactive editor. Store selects the
// backing store kind ("fs", "mem", "http"); with Server set the page is
// edited against a remote quire server instead of the local filesystem.
type EditArgs struct {
	Path     model.Path
	Store    string
	Server   string
	Debounce time.Duration
	Poll     time.Duration
	Grace    time.Duration
}

// ServeArgs exposes a page directory over HTTP.
type ServeArgs struct {
	Dir  model.Path
	Addr string
}

// Workflow defines the operations the CLI surfaces.
type Workflow interface {
	Inspect(ctx context.Context, args InspectArgs) error
	Blocks(ctx context.Context, args BlocksArgs) error
	Format(ctx context.Context, args FormatArgs) error
	Apply(ctx context.Context, args ApplyArgs) error
	Edit(ctx context.Context, args EditArgs) error
	Serve(ctx context.Context, args ServeArgs) error
}

type workflow struct {
	fs adapter.FileSystem
	ui controller.UI
}

// NewWorkflow creates a Workflow reading pages through fs and reporting
// through ui.
func NewWorkflow(fs adapter.FileSystem, ui controller.UI) Workflow {
	return &workflow{fs: fs, ui: ui}
}

// Inspect parses one page and displays the element tree, the page title,
// and any recoverable parse problems.
func (w *workflow) Inspect(_ context.Context, args InspectArgs) error {
	raw, err := w.fs.ReadFile(args.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", args.Path, err)
	}

	report := buildReport(args.Path, string(raw), false)

	return w.ui.ShowTree(report, args.AsJSON)
}

// Blocks scans the given roots for pages, converts each to its block
// document, and displays the combined listing. Pages that fail to read
// or parse contribute their problems instead of aborting the scan.
func (w *workflow) Blocks(_ context.Context, args BlocksArgs) error {
	paths, err := w.collectPages(args.Roots, args.Excludes)
	if err != nil {
		return err
	}

	glog.V(1).Infof("blocks: scanning %d page(s)", len(paths))

	reports := w.loadReports(paths)

	kept := reports[:0]
	for _, r := range reports {
		if r.Ignored {
			glog.V(2).Infof("blocks: %s ignored via frontmatter", r.Path)
			continue
		}

		kept = append(kept, r)
	}

	if err := w.ui.ShowBlocks(kept); err != nil {
		return err
	}

	// Interactive displays run until dismissed; plain output returns at
	// once.
	w.ui.Wait()

	return nil
}

// Format re-serializes a page into normalized form: frontmatter header,
// blocks separated by blank lines, canonical tag rendering. The page must
// parse cleanly; normalizing a page with parse errors would drop content.
func (w *workflow) Format(_ context.Context, args FormatArgs) error {
	raw, err := w.fs.ReadFile(args.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", args.Path, err)
	}

	res := markup.Parse(string(raw))
	if !res.OK() {
		return fmt.Errorf("format %s: page has parse errors: %s", args.Path, res.Errors[0])
	}

	doc := document.FromTree(res.Root)

	out, err := document.Serialize(doc, res.Frontmatter)
	if err != nil {
		return fmt.Errorf("format %s: %w", args.Path, err)
	}

	if !args.Write {
		w.ui.ShowSource(out)
		return nil
	}

	if out != string(raw) {
		if err := w.fs.WriteFile(args.Path, []byte(out), 0o644); err != nil {
			return fmt.Errorf("format %s: %w", args.Path, err)
		}

		glog.V(1).Infof("format: rewrote %s (%d bytes)", args.Path, len(out))
	}

	return nil
}
