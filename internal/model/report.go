package model

// PageReport is the outcome of loading one page: its parsed metadata, the
// element tree, the converted block document, and any recoverable parse
// problems.
type PageReport struct {
	Path   Path
	Title  string
	Root   Node
	Doc    *Document
	Errors []string
	// Ignored is set when the page opts out of listings via frontmatter.
	Ignored bool
}

// BlockCount returns the number of top-level blocks.
func (r *PageReport) BlockCount() int {
	if r.Doc == nil {
		return 0
	}

	return len(r.Doc.Blocks)
}

// OK reports whether the page loaded without parse errors.
func (r *PageReport) OK() bool { return len(r.Errors) == 0 }

// ApplySummary describes one apply run: how many operations came in, how
// many mutations they mapped to, and whether the surgical path succeeded
// or the page was re-serialized wholesale.
type ApplySummary struct {
	Path      Path
	Ops       int
	Mutations int
	Fallback  bool
	// Written is the byte size of the resulting source.
	Written int
}
