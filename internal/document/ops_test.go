package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quire-dev/quire/internal/markup"
	"github.com/quire-dev/quire/internal/model"
)

func opsDoc(t *testing.T, source string) *model.Document {
	t.Helper()

	res := markup.Parse(source)
	require.True(t, res.OK(), "parse errors: %v", res.Errors)

	return FromTree(res.Root)
}

func plainTexts(doc *model.Document) []string {
	out := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		out = append(out, b.PlainText())
	}

	return out
}

func TestApplyOps_InsertText(t *testing.T) {
	t.Run("into a plain paragraph", func(t *testing.T) {
		doc := opsDoc(t, `<p>Hello</p>`)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertText, Target: "p_0", Offset: 5, Text: "!"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Hello!", got.Blocks[0].PlainText())
	})

	t.Run("text node target resolves to its block", func(t *testing.T) {
		doc := opsDoc(t, `<p>Hello</p>`)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertText, Target: "text_0.0", Offset: 0, Text: "A"},
		})
		require.NoError(t, err)
		assert.Equal(t, "AHello", got.Blocks[0].PlainText())
	})

	t.Run("boundary offsets extend the earlier run", func(t *testing.T) {
		doc := opsDoc(t, `<p><strong>bold</strong> tail</p>`)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertText, Target: doc.Blocks[0].ID, Offset: 4, Text: "er"},
		})
		require.NoError(t, err)

		require.Len(t, got.Blocks[0].Children, 2)
		assert.Equal(t, model.TextRun{Text: "bolder", Marks: model.Marks{Bold: true}}, got.Blocks[0].Children[0])
		assert.Equal(t, model.TextRun{Text: " tail"}, got.Blocks[0].Children[1])
	})

	t.Run("empty text is a no-op", func(t *testing.T) {
		doc := opsDoc(t, `<p>Hello</p>`)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertText, Target: "p_0", Offset: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, "Hello", got.Blocks[0].PlainText())
	})

	t.Run("offset past the text fails", func(t *testing.T) {
		doc := opsDoc(t, `<p>Hello</p>`)

		_, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertText, Target: "p_0", Offset: 6, Text: "x"},
		})
		require.ErrorIs(t, err, ErrInvalidOp)
	})

	t.Run("void blocks are not editable", func(t *testing.T) {
		doc := opsDoc(t, "<p>a</p>\n\n<hr />")

		_, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertText, Target: doc.Blocks[1].ID, Offset: 0, Text: "x"},
		})
		require.ErrorIs(t, err, ErrInvalidOp)
	})

	t.Run("container blocks are rejected", func(t *testing.T) {
		doc := opsDoc(t, "<ul><li>one</li><li>two</li></ul>")

		_, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertText, Target: doc.Blocks[0].ID, Offset: 1, Text: "x"},
		})
		require.ErrorIs(t, err, ErrInvalidOp)
	})

	t.Run("unknown target", func(t *testing.T) {
		doc := opsDoc(t, `<p>Hello</p>`)

		_, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertText, Target: "p_9", Offset: 0, Text: "x"},
		})
		require.ErrorIs(t, err, ErrTargetNotFound)
	})
}

func TestApplyOps_DeleteText(t *testing.T) {
	t.Run("across run boundaries", func(t *testing.T) {
		doc := opsDoc(t, `<p><strong>bold</strong> tail</p>`)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpDeleteText, Target: doc.Blocks[0].ID, Offset: 2, Length: 4},
		})
		require.NoError(t, err)

		require.Len(t, got.Blocks[0].Children, 2)
		assert.Equal(t, model.TextRun{Text: "bo", Marks: model.Marks{Bold: true}}, got.Blocks[0].Children[0])
		assert.Equal(t, model.TextRun{Text: "ail"}, got.Blocks[0].Children[1])
	})

	t.Run("deleting everything leaves the placeholder", func(t *testing.T) {
		doc := opsDoc(t, `<p>Hi</p>`)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpDeleteText, Target: "p_0", Offset: 0, Length: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, model.Placeholder(), got.Blocks[0].Children)
	})

	t.Run("zero length is a no-op", func(t *testing.T) {
		doc := opsDoc(t, `<p>Hi</p>`)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpDeleteText, Target: "p_0", Offset: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, "Hi", got.Blocks[0].PlainText())
	})

	t.Run("range past the end fails", func(t *testing.T) {
		doc := opsDoc(t, `<p>Hi</p>`)

		_, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpDeleteText, Target: "p_0", Offset: 1, Length: 5},
		})
		require.ErrorIs(t, err, ErrInvalidOp)
	})
}

func TestApplyOps_InsertNode(t *testing.T) {
	const page = "<h1>T</h1>\n\n<p>a</p>"

	t.Run("between blocks", func(t *testing.T) {
		doc := opsDoc(t, page)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertNode, Index: 1, Node: `<p>mid</p>`},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"T", "mid", "a"}, plainTexts(got))
	})

	t.Run("parent outside the document means top level", func(t *testing.T) {
		doc := opsDoc(t, page)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertNode, Parent: "#fragment_0", Index: 0, Node: `<p>lead</p>`},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"lead", "T", "a"}, plainTexts(got))
	})

	t.Run("parent naming a block refuses to nest", func(t *testing.T) {
		doc := opsDoc(t, page)

		_, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertNode, Parent: doc.Blocks[1].ID, Index: 0, Node: `<p>x</p>`},
		})
		require.ErrorIs(t, err, ErrInvalidOp)
	})

	t.Run("index clamps to the end", func(t *testing.T) {
		doc := opsDoc(t, page)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertNode, Index: 99, Node: `<p>tail</p>`},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"T", "a", "tail"}, plainTexts(got))
	})

	t.Run("multi-block markup inserts all blocks", func(t *testing.T) {
		doc := opsDoc(t, page)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertNode, Index: 1, Node: "<p>x</p>\n\n<p>y</p>"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"T", "x", "y", "a"}, plainTexts(got))
	})

	t.Run("blank markup fails", func(t *testing.T) {
		doc := opsDoc(t, page)

		_, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpInsertNode, Index: 0, Node: "   "},
		})
		require.ErrorIs(t, err, ErrInvalidOp)
	})
}

func TestApplyOps_RemoveAndMove(t *testing.T) {
	const page = "<h1>T</h1>\n\n<p>a</p>\n\n<p>b</p>"

	t.Run("remove", func(t *testing.T) {
		doc := opsDoc(t, page)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpRemoveNode, Target: "h1_0.0"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, plainTexts(got))
	})

	t.Run("removing the last block leaves an empty paragraph", func(t *testing.T) {
		doc := opsDoc(t, `<p>only</p>`)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpRemoveNode, Target: "p_0"},
		})
		require.NoError(t, err)

		require.Len(t, got.Blocks, 1)
		assert.Equal(t, model.BlockParagraph, got.Blocks[0].Type)
		assert.Equal(t, "", got.Blocks[0].PlainText())
	})

	t.Run("move to the end", func(t *testing.T) {
		doc := opsDoc(t, page)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpMoveNode, Target: "h1_0.0", Index: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "T"}, plainTexts(got))
	})

	t.Run("move onto the current position changes nothing", func(t *testing.T) {
		doc := opsDoc(t, page)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpMoveNode, Target: "p_0.2", Index: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"T", "a", "b"}, plainTexts(got))
	})

	t.Run("unknown target", func(t *testing.T) {
		doc := opsDoc(t, page)

		_, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpMoveNode, Target: "p_0.9", Index: 0},
		})
		require.ErrorIs(t, err, ErrTargetNotFound)
	})
}

func TestApplyOps_Props(t *testing.T) {
	t.Run("replace and add", func(t *testing.T) {
		doc := opsDoc(t, `<Callout tone="info">Note</Callout>`)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpSetProp, Target: "Callout_0", Name: "tone", Value: "warn"},
			{Kind: model.OpSetProp, Target: "Callout_0", Name: "width", Value: 320},
			{Kind: model.OpSetProp, Target: "Callout_0", Name: "pinned", Value: true},
		})
		require.NoError(t, err)

		b := got.Blocks[0]
		require.Len(t, b.Props, 3)

		tone, ok := b.Prop("tone")
		require.True(t, ok)
		assert.Equal(t, model.StringValue("warn"), tone.Val)

		width, ok := b.Prop("width")
		require.True(t, ok)
		assert.Equal(t, model.ExprValue("320"), width.Val)

		pinned, ok := b.Prop("pinned")
		require.True(t, ok)
		assert.Equal(t, model.BareValue(), pinned.Val)
	})

	t.Run("false and nil erase", func(t *testing.T) {
		doc := opsDoc(t, `<Callout tone="info" pinned>Note</Callout>`)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpSetProp, Target: "Callout_0", Name: "pinned", Value: false},
			{Kind: model.OpSetProp, Target: "Callout_0", Name: "tone", Value: nil},
		})
		require.NoError(t, err)
		assert.Empty(t, got.Blocks[0].Props)
	})

	t.Run("delete and delete-absent", func(t *testing.T) {
		doc := opsDoc(t, `<Callout tone="info">Note</Callout>`)

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpDeleteProp, Target: "Callout_0", Name: "tone"},
			{Kind: model.OpDeleteProp, Target: "Callout_0", Name: "ghost"},
		})
		require.NoError(t, err)
		assert.Empty(t, got.Blocks[0].Props)
	})

	t.Run("set without a name fails", func(t *testing.T) {
		doc := opsDoc(t, `<Callout>Note</Callout>`)

		_, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpSetProp, Target: "Callout_0", Value: "x"},
		})
		require.ErrorIs(t, err, ErrInvalidOp)
	})

	t.Run("fence language is the lang prop", func(t *testing.T) {
		doc := opsDoc(t, "```go\nx := 1\n```")

		got, err := ApplyOps(doc, []model.Op{
			{Kind: model.OpSetProp, Target: doc.Blocks[0].ID, Name: "lang", Value: "js"},
		})
		require.NoError(t, err)

		out, err := Serialize(got, nil)
		require.NoError(t, err)
		assert.Equal(t, "```js\nx := 1\n```\n", out)
	})
}

func TestApplyOps_InputUntouched(t *testing.T) {
	doc := opsDoc(t, `<p>Hello</p>`)

	_, err := ApplyOps(doc, []model.Op{
		{Kind: model.OpInsertText, Target: "p_0", Offset: 0, Text: "X"},
		{Kind: model.OpSetProp, Target: "p_0", Name: "id", Value: "intro"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello", doc.Blocks[0].PlainText())
	assert.Empty(t, doc.Blocks[0].Props)
}

func TestApplyOps_BatchFailsAtomically(t *testing.T) {
	doc := opsDoc(t, `<p>Hello</p>`)

	got, err := ApplyOps(doc, []model.Op{
		{Kind: model.OpInsertText, Target: "p_0", Offset: 0, Text: "X"},
		{Kind: model.OpRemoveNode, Target: "p_9"},
	})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "op 1:")
}

func TestApplyOps_SerializeRoundTrip(t *testing.T) {
	doc := opsDoc(t, "<h1>Title</h1>\n\n<p>body</p>")

	got, err := ApplyOps(doc, []model.Op{
		{Kind: model.OpInsertText, Target: "p_0.2", Offset: 4, Text: " text"},
		{Kind: model.OpInsertNode, Index: 2, Node: `<hr />`},
	})
	require.NoError(t, err)

	out, err := Serialize(got, nil)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Title</h1>\n\n<p>body text</p>\n\n<hr>\n", out)
}
