package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/quire-dev/quire/internal/document"
	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
	"github.com/quire-dev/quire/internal/patch"
)

// Apply patches one page with a JSON operation stream. Operations map to
// byte-range mutations against the page's current parse; when every
// target resolves the mutations splice into the source untouched
// elsewhere, and when resolution fails (or FallbackOnly forces it) the
// edited document is re-serialized wholesale instead. The result must
// re-parse before it is written back.
func (w *workflow) Apply(_ context.Context, args ApplyArgs) error {
	raw, err := w.fs.ReadFile(args.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", args.Path, err)
	}

	ops, err := w.readOps(args.OpsPath)
	if err != nil {
		return err
	}

	res := markup.Parse(string(raw))
	if !res.OK() {
		return fmt.Errorf("apply %s: page has parse errors: %s", args.Path, res.Errors[0])
	}

	doc := document.FromTree(res.Root)

	// The rewritten document is always computed: it validates the ops and
	// is the fallback payload.
	edited, err := document.ApplyOps(doc, ops)
	if err != nil {
		return fmt.Errorf("apply %s: %w", args.Path, err)
	}

	next, mutations, fellBack, err := w.mutatePage(string(raw), ops, res, edited, args.FallbackOnly)
	if err != nil {
		return fmt.Errorf("apply %s: %w", args.Path, err)
	}

	if check := markup.Parse(next); !check.OK() {
		return fmt.Errorf("apply %s: result does not parse: %s", args.Path, check.Errors[0])
	}

	if err := w.fs.WriteFile(args.Path, []byte(next), 0o644); err != nil {
		return fmt.Errorf("apply %s: %w", args.Path, err)
	}

	glog.V(1).Infof("apply: %s ops=%d mutations=%d fallback=%v", args.Path, len(ops), mutations, fellBack)

	w.ui.ShowApply(model.ApplySummary{
		Path:      args.Path,
		Ops:       len(ops),
		Mutations: mutations,
		Fallback:  fellBack,
		Written:   len(next),
	})

	return nil
}

// mutatePage runs the surgical path and arbitrates the fallback: target
// resolution failures and overlapping spans re-serialize, anything else
// is a real error.
func (w *workflow) mutatePage(source string, ops []model.Op, res markup.Result, edited *model.Document, fallbackOnly bool) (string, int, bool, error) {
	if !fallbackOnly {
		idx := patch.NewIndex(res)

		muts, err := patch.FromOps(ops, idx)
		if err == nil {
			var next string

			next, err = patch.Apply(source, muts, idx)
			if err == nil {
				return next, len(muts), false, nil
			}
		}

		if !errors.Is(err, patch.ErrUnresolvedTarget) && !errors.Is(err, patch.ErrOverlap) {
			return "", 0, false, err
		}

		glog.V(1).Infof("apply: surgical path failed (%v), re-serializing", err)
	}

	next, err := document.Serialize(edited, res.Frontmatter)
	if err != nil {
		return "", 0, false, err
	}

	return next, 0, true, nil
}

// readOps loads a JSON array of operations.
func (w *workflow) readOps(path model.Path) ([]model.Op, error) {
	raw, err := w.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ops %s: %w", path, err)
	}

	var ops []model.Op
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("decode ops %s: %w", path, err)
	}

	if len(ops) == 0 {
		return nil, fmt.Errorf("decode ops %s: no operations", path)
	}

	return ops, nil
}
