package domain

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/quire-dev/quire/internal/anchor"
	"github.com/quire-dev/quire/internal/document"
	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
)

// scanWorkers bounds the pages parsed concurrently during a scan.
const scanWorkers = 8

// parseRootPath extracts the root path and recursive flag from a path
// string. A trailing `/...` requests a recursive scan.
func parseRootPath(rootStr string) (path string, recursive bool) {
	if len(rootStr) >= 4 && rootStr[len(rootStr)-4:] == "/..." {
		return rootStr[:len(rootStr)-4], true
	}

	return rootStr, false
}

func compileExcludes(patterns []string) ([]*regexp.Regexp, error) {
	filters := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}

		filters = append(filters, re)
	}

	return filters, nil
}

func matchesAny(filters []*regexp.Regexp, path string) bool {
	for _, re := range filters {
		if re.MatchString(path) {
			return true
		}
	}

	return false
}

func isPagePath(path string) bool {
	return strings.HasSuffix(path, model.PageExt)
}

// collectPages resolves scan roots to the distinct page files under
// them. Roots may name a page file directly or a directory, with `/...`
// descending into subdirectories.
func (w *workflow) collectPages(roots []model.Path, excludes []string) ([]model.Path, error) {
	filters, err := compileExcludes(excludes)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)

	var pages []model.Path

	include := func(path string) {
		if !isPagePath(path) || matchesAny(filters, path) || seen[path] {
			return
		}

		seen[path] = true
		pages = append(pages, model.Path(path))
	}

	for _, root := range roots {
		rootStr, recursive := parseRootPath(string(root))

		info, err := w.fs.FileInfo(model.Path(rootStr))
		if err != nil {
			return nil, fmt.Errorf("root path error: %w", err)
		}

		if !info.IsDir() {
			include(rootStr)
			continue
		}

		err = w.fs.Walk(model.Path(rootStr), recursive, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if !info.IsDir() {
				include(path)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", rootStr, err)
		}
	}

	return pages, nil
}

// loadReports parses the pages concurrently, preserving input order.
func (w *workflow) loadReports(paths []model.Path) []model.PageReport {
	reports := make([]model.PageReport, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(scanWorkers)

	for i, path := range paths {
		g.Go(func() error {
			reports[i] = w.loadReport(path)
			return nil
		})
	}

	// Workers only write their own slot and never fail.
	_ = g.Wait()

	return reports
}

func (w *workflow) loadReport(path model.Path) model.PageReport {
	raw, err := w.fs.ReadFile(path)
	if err != nil {
		return model.PageReport{Path: path, Errors: []string{err.Error()}}
	}

	return buildReport(path, string(raw), true)
}

// buildReport runs the parse and convert pipeline for one page. Listings
// mint run-scoped anchors so the identity column is populated; inspection
// output leaves them out.
func buildReport(path model.Path, source string, withAnchors bool) model.PageReport {
	res := markup.Parse(source)

	report := model.PageReport{
		Path:   path,
		Root:   res.Root,
		Doc:    document.FromTree(res.Root),
		Errors: res.Errors,
	}

	if res.Frontmatter != nil {
		report.Title = res.Frontmatter.Title()
		report.Ignored = res.Frontmatter.Ignored()
	}

	if withAnchors {
		anchor.New().Assign(report.Doc)
	}

	return report
}
