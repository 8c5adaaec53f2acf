package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quire-dev/quire/internal/document"
	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
)

const container = `<div className="container"><h1>Title</h1><p>First</p><p>Second</p></div>`

const spaced = "<h1>T</h1>\n\n<p>a</p>\n\n<p>b</p>"

// parseIndex parses source and indexes the result, failing the test on
// parse errors so fixtures stay honest.
func parseIndex(t *testing.T, source string) *Index {
	t.Helper()

	res := markup.Parse(source)
	require.Empty(t, res.Errors, "fixture must parse cleanly")

	return NewIndex(res)
}

func TestApply_TextMutations(t *testing.T) {
	src := `<p>Hello</p>` // text child spans [3,8)

	t.Run("insert at start and end of one batch", func(t *testing.T) {
		idx := parseIndex(t, src)

		out, err := Apply(src, []model.Mutation{
			model.InsertText(3, "A"),
			model.InsertText(8, "Z"),
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, `<p>AHelloZ</p>`, out)
	})

	t.Run("same-point insertions keep batch order", func(t *testing.T) {
		idx := parseIndex(t, src)

		out, err := Apply(src, []model.Mutation{
			model.InsertText(3, "A"),
			model.InsertText(3, "B"),
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, `<p>ABHello</p>`, out)
	})

	t.Run("delete", func(t *testing.T) {
		idx := parseIndex(t, src)

		out, err := Apply(src, []model.Mutation{
			model.DeleteText(model.Span{Start: 4, End: 7}),
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, `<p>Ho</p>`, out)
	})

	t.Run("replace", func(t *testing.T) {
		idx := parseIndex(t, src)

		out, err := Apply(src, []model.Mutation{
			model.ReplaceRange(model.Span{Start: 3, End: 8}, "Bye"),
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, `<p>Bye</p>`, out)
	})

	t.Run("insertion may touch a replaced boundary", func(t *testing.T) {
		idx := parseIndex(t, src)

		out, err := Apply(src, []model.Mutation{
			model.ReplaceRange(model.Span{Start: 3, End: 8}, "x"),
			model.InsertText(8, "y"),
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, `<p>xy</p>`, out)
	})
}

func TestApply_Atomicity(t *testing.T) {
	t.Run("source mismatch", func(t *testing.T) {
		idx := parseIndex(t, container)

		_, err := Apply(`<p>other</p>`, []model.Mutation{model.InsertText(0, "x")}, idx)
		require.ErrorIs(t, err, ErrUnresolvedTarget)
	})

	t.Run("unknown target fails the whole batch", func(t *testing.T) {
		idx := parseIndex(t, container)

		out, err := Apply(container, []model.Mutation{
			{Kind: model.MutDeleteNode, Target: "p_0.1"},
			{Kind: model.MutDeleteNode, Target: "nope_9"},
		}, idx)

		require.ErrorIs(t, err, ErrUnresolvedTarget)
		assert.Empty(t, out)
	})

	t.Run("overlapping ranges", func(t *testing.T) {
		idx := parseIndex(t, container)

		_, err := Apply(container, []model.Mutation{
			model.ReplaceRange(model.Span{Start: 31, End: 36}, "x"),
			model.DeleteText(model.Span{Start: 33, End: 44}),
		}, idx)

		require.ErrorIs(t, err, ErrOverlap)
	})

	t.Run("insertion inside a replaced range", func(t *testing.T) {
		idx := parseIndex(t, container)

		_, err := Apply(container, []model.Mutation{
			model.ReplaceRange(model.Span{Start: 31, End: 36}, "x"),
			model.InsertText(33, "y"),
		}, idx)

		require.ErrorIs(t, err, ErrOverlap)
	})

	t.Run("range outside source", func(t *testing.T) {
		idx := parseIndex(t, container)

		_, err := Apply(container, []model.Mutation{model.InsertText(9999, "x")}, idx)
		require.ErrorIs(t, err, ErrUnresolvedTarget)
	})
}

func TestApply_DeleteNode(t *testing.T) {
	t.Run("compact siblings", func(t *testing.T) {
		idx := parseIndex(t, container)

		out, err := Apply(container, []model.Mutation{
			{Kind: model.MutDeleteNode, Target: "p_0.1"},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, `<div className="container"><h1>Title</h1><p>Second</p></div>`, out)
	})

	t.Run("trailing gap travels with the node", func(t *testing.T) {
		idx := parseIndex(t, spaced)

		out, err := Apply(spaced, []model.Mutation{
			{Kind: model.MutDeleteNode, Target: "p_0.2"},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, "<h1>T</h1>\n\n<p>b</p>", out)
	})

	t.Run("first node takes its separator too", func(t *testing.T) {
		idx := parseIndex(t, spaced)

		out, err := Apply(spaced, []model.Mutation{
			{Kind: model.MutDeleteNode, Target: "h1_0.0"},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, "<p>a</p>\n\n<p>b</p>", out)
	})

	t.Run("following blocks renumber on reparse", func(t *testing.T) {
		idx := parseIndex(t, spaced)

		out, err := Apply(spaced, []model.Mutation{
			{Kind: model.MutDeleteNode, Target: "p_0.2"},
		}, idx)
		require.NoError(t, err)

		doc := document.FromTree(markup.Parse(out).Root)
		require.Len(t, doc.Blocks, 2)
		assert.Equal(t, model.NodeID("h1_0.0"), doc.Blocks[0].ID)
		assert.Equal(t, model.NodeID("p_0.2"), doc.Blocks[1].ID)
		assert.Equal(t, "b", doc.Blocks[1].PlainText())
	})
}

func TestApply_MoveNode(t *testing.T) {
	t.Run("heading to the back", func(t *testing.T) {
		idx := parseIndex(t, container)

		out, err := Apply(container, []model.Mutation{
			{Kind: model.MutMoveNode, Target: "h1_0.0", Parent: "div_0", Index: 2},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, `<div className="container"><p>First</p><p>Second</p><h1>Title</h1></div>`, out)

		doc := document.FromTree(markup.Parse(out).Root)
		require.Len(t, doc.Blocks, 3)
		assert.Equal(t, model.NodeID("p_0.0"), doc.Blocks[0].ID)
		assert.Equal(t, model.NodeID("p_0.1"), doc.Blocks[1].ID)
		assert.Equal(t, model.NodeID("h1_0.2"), doc.Blocks[2].ID)
		assert.Equal(t, "Title", doc.Blocks[2].PlainText())
	})

	t.Run("last to the front", func(t *testing.T) {
		idx := parseIndex(t, container)

		out, err := Apply(container, []model.Mutation{
			{Kind: model.MutMoveNode, Target: "p_0.2", Parent: "div_0", Index: 0},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, `<div className="container"><p>Second</p><h1>Title</h1><p>First</p></div>`, out)
	})

	t.Run("gap travels with the moved node", func(t *testing.T) {
		idx := parseIndex(t, spaced)

		out, err := Apply(spaced, []model.Mutation{
			{Kind: model.MutMoveNode, Target: "h1_0.0", Parent: "#fragment_0", Index: 3},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, "<p>a</p>\n\n<p>b</p>\n\n<h1>T</h1>", out)
	})

	t.Run("move onto own position is a no-op", func(t *testing.T) {
		idx := parseIndex(t, container)

		out, err := Apply(container, []model.Mutation{
			{Kind: model.MutMoveNode, Target: "h1_0.0", Parent: "div_0", Index: 0},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, container, out)
	})

	t.Run("edits inside the moved node travel with it", func(t *testing.T) {
		idx := parseIndex(t, container)

		out, err := Apply(container, []model.Mutation{
			{Kind: model.MutMoveNode, Target: "h1_0.0", Parent: "div_0", Index: 2},
			model.InsertText(36, "!"), // end of "Title", inside the moved range
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, `<div className="container"><p>First</p><p>Second</p><h1>Title!</h1></div>`, out)
	})

	t.Run("two moves extracting the same range", func(t *testing.T) {
		idx := parseIndex(t, container)

		_, err := Apply(container, []model.Mutation{
			{Kind: model.MutMoveNode, Target: "h1_0.0", Parent: "div_0", Index: 2},
			{Kind: model.MutMoveNode, Target: "h1_0.0", Parent: "div_0", Index: 1},
		}, idx)

		require.ErrorIs(t, err, ErrOverlap)
	})
}

func TestApply_InsertNode(t *testing.T) {
	t.Run("between compact siblings", func(t *testing.T) {
		idx := parseIndex(t, container)

		out, err := Apply(container, []model.Mutation{
			{Kind: model.MutInsertNode, Parent: "div_0", Index: 1, Node: `<h2>x</h2>`},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, `<div className="container"><h1>Title</h1><h2>x</h2><p>First</p><p>Second</p></div>`, out)
	})

	t.Run("append keeps the blank-line convention", func(t *testing.T) {
		idx := parseIndex(t, spaced)

		out, err := Apply(spaced, []model.Mutation{
			{Kind: model.MutInsertNode, Parent: "#fragment_0", Index: 5, Node: `<h2>x</h2>`},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, spaced+"\n\n<h2>x</h2>", out)
	})

	t.Run("before a spaced sibling", func(t *testing.T) {
		idx := parseIndex(t, spaced)

		out, err := Apply(spaced, []model.Mutation{
			{Kind: model.MutInsertNode, Parent: "#fragment_0", Index: 1, Node: `<h2>x</h2>`},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, "<h1>T</h1>\n\n<h2>x</h2>\n\n<p>a</p>\n\n<p>b</p>", out)
	})

	t.Run("beside a lone root", func(t *testing.T) {
		idx := parseIndex(t, container)

		before, err := Apply(container, []model.Mutation{
			{Kind: model.MutInsertNode, Index: 0, Node: `<h2>x</h2>`},
		}, idx)
		require.NoError(t, err)
		assert.Equal(t, "<h2>x</h2>\n\n"+container, before)

		after, err := Apply(container, []model.Mutation{
			{Kind: model.MutInsertNode, Index: 1, Node: `<h2>x</h2>`},
		}, idx)
		require.NoError(t, err)
		assert.Equal(t, container+"\n\n<h2>x</h2>", after)
	})

	t.Run("into an empty page", func(t *testing.T) {
		idx := parseIndex(t, "")

		out, err := Apply("", []model.Mutation{
			{Kind: model.MutInsertNode, Index: 0, Node: `<p>hi</p>`},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, `<p>hi</p>`, out)
	})

	t.Run("without markup", func(t *testing.T) {
		idx := parseIndex(t, container)

		_, err := Apply(container, []model.Mutation{
			{Kind: model.MutInsertNode, Parent: "div_0", Index: 0, Node: "  "},
		}, idx)

		require.ErrorIs(t, err, ErrUnresolvedTarget)
	})
}

func TestApply_Props(t *testing.T) {
	src := `<Callout tone="info" pinned>Note</Callout>`

	set := func(name string, value any) model.Mutation {
		return model.Mutation{Kind: model.MutSetProp, Target: "Callout_0", Name: name, Value: value}
	}

	tests := []struct {
		name string
		mut  model.Mutation
		want string
	}{
		{
			name: "replace string value in place",
			mut:  set("tone", "warn"),
			want: `<Callout tone="warn" pinned>Note</Callout>`,
		},
		{
			name: "false erases the attribute",
			mut:  set("pinned", false),
			want: `<Callout tone="info">Note</Callout>`,
		},
		{
			name: "nil erases the attribute",
			mut:  set("tone", nil),
			want: `<Callout pinned>Note</Callout>`,
		},
		{
			name: "new numeric appends braced",
			mut:  set("width", 320),
			want: `<Callout tone="info" pinned width={320}>Note</Callout>`,
		},
		{
			name: "new bool appends bare",
			mut:  set("draft", true),
			want: `<Callout tone="info" pinned draft>Note</Callout>`,
		},
		{
			name: "quotes in strings are escaped",
			mut:  set("tone", `a"b`),
			want: `<Callout tone="a\"b" pinned>Note</Callout>`,
		},
		{
			name: "false on an absent attribute is a no-op",
			mut:  set("ghost", false),
			want: src,
		},
		{
			name: "delete",
			mut:  model.Mutation{Kind: model.MutDeleteProp, Target: "Callout_0", Name: "tone"},
			want: `<Callout pinned>Note</Callout>`,
		},
		{
			name: "delete absent is a no-op",
			mut:  model.Mutation{Kind: model.MutDeleteProp, Target: "Callout_0", Name: "ghost"},
			want: src,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			idx := parseIndex(t, src)

			out, err := Apply(src, []model.Mutation{tc.mut}, idx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}

	t.Run("unknown element", func(t *testing.T) {
		idx := parseIndex(t, src)

		_, err := Apply(src, []model.Mutation{
			{Kind: model.MutSetProp, Target: "div_9", Name: "tone", Value: "x"},
		}, idx)

		require.ErrorIs(t, err, ErrUnresolvedTarget)
	})
}

func TestApply_FenceLang(t *testing.T) {
	src := "```go\nfmt.Println()\n```"

	t.Run("set", func(t *testing.T) {
		idx := parseIndex(t, src)

		out, err := Apply(src, []model.Mutation{
			{Kind: model.MutSetProp, Target: "code_0", Name: "lang", Value: "js"},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, "```js\nfmt.Println()\n```", out)
	})

	t.Run("delete", func(t *testing.T) {
		idx := parseIndex(t, src)

		out, err := Apply(src, []model.Mutation{
			{Kind: model.MutDeleteProp, Target: "code_0", Name: "lang"},
		}, idx)

		require.NoError(t, err)
		assert.Equal(t, "```\nfmt.Println()\n```", out)
	})

	t.Run("non-string lang", func(t *testing.T) {
		idx := parseIndex(t, src)

		_, err := Apply(src, []model.Mutation{
			{Kind: model.MutSetProp, Target: "code_0", Name: "lang", Value: 7},
		}, idx)

		require.ErrorIs(t, err, ErrInvalidOp)
	})
}
