package markup

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/quire-dev/quire/internal/model"
)

// SerializeTree renders a full element tree back to body source. Fragment
// roots render as their concatenated children. Parsed text nodes carry
// their original bytes, so serializing an unmodified parsed tree
// reproduces the body up to documented normalization of tag spacing and
// attribute quoting.
func SerializeTree(root model.Node) string {
	if root == nil {
		return ""
	}

	var b strings.Builder
	if el, ok := root.(*model.Element); ok && el.IsFragment() {
		for _, c := range el.Children {
			writeNode(&b, c)
		}
		return b.String()
	}

	writeNode(&b, root)
	return b.String()
}

// SerializeNode renders a single node to source text.
func SerializeNode(n model.Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n model.Node) {
	switch t := n.(type) {
	case *model.Text:
		b.WriteString(t.Value)

	case *model.Element:
		if t.Fence != nil {
			writeFence(b, t)
			return
		}
		writeElement(b, t)
	}
}

func writeFence(b *strings.Builder, el *model.Element) {
	b.WriteString("```")
	b.WriteString(el.Fence.Info)
	b.WriteByte('\n')

	for _, c := range el.Children {
		if text, ok := c.(*model.Text); ok {
			b.WriteString(text.Value)
			if text.Value != "" && !strings.HasSuffix(text.Value, "\n") {
				b.WriteByte('\n')
			}
		}
	}

	b.WriteString("```\n")
}

func writeElement(b *strings.Builder, el *model.Element) {
	b.WriteByte('<')
	b.WriteString(el.Tag)
	for _, p := range el.Props {
		b.WriteByte(' ')
		b.WriteString(FormatProp(p))
	}

	if el.SelfClosing {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	if IsVoid(el.Tag) && len(el.Children) == 0 {
		return
	}

	for _, c := range el.Children {
		writeNode(b, c)
	}

	b.WriteString("</")
	b.WriteString(el.Tag)
	b.WriteByte('>')
}

// FormatProp renders one attribute segment exactly as it belongs in a
// tag, without surrounding spaces.
func FormatProp(p model.Prop) string {
	if p.Spread {
		return "{" + p.Val.Raw + "}"
	}

	switch p.Val.Kind {
	case model.PropBare:
		return p.Name
	case model.PropExpr:
		return p.Name + "={" + p.Val.Raw + "}"
	default:
		return p.Name + `="` + escapeAttr(p.Val.Str) + `"`
	}
}

// FormatPropValue renders a decoded property value as an attribute
// segment. The empty string with a nil error means the attribute is
// omitted entirely, which is how false and nil values render. A
// model.PropValue renders in its original shape, so expressions stay
// braced instead of collapsing to quoted strings.
func FormatPropValue(name string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case model.PropValue:
		return FormatProp(model.Prop{Name: name, Val: v}), nil
	case bool:
		if !v {
			return "", nil
		}
		return name, nil
	case string:
		return name + `="` + escapeAttr(v) + `"`, nil
	case int:
		return name + "={" + strconv.Itoa(v) + "}", nil
	case int64:
		return name + "={" + strconv.FormatInt(v, 10) + "}", nil
	case float64:
		return name + "={" + strconv.FormatFloat(v, 'f', -1, 64) + "}", nil
	case json.Number:
		return name + "={" + v.String() + "}", nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("property %s: %w", name, err)
		}
		return name + "={" + string(raw) + "}", nil
	}
}

// PropValueOf decodes a rendered attribute back to the value space used
// by FormatPropValue, for comparing structural equality of properties.
func PropValueOf(p model.Prop) any {
	if p.Spread {
		return "{..." + p.Val.Raw + "}"
	}

	switch p.Val.Kind {
	case model.PropBare:
		return true
	case model.PropExpr:
		raw := strings.TrimSpace(p.Val.Raw)
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
		return "{" + p.Val.Raw + "}"
	default:
		return p.Val.Str
	}
}

func escapeAttr(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// EscapeText rewrites the '<' runs in plain text that would otherwise
// open a tag on reparse. Text lifted from a parsed tree never contains
// such runs, so escaping it is the identity.
func EscapeText(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '<' && i+1 < len(s) {
			n := s[i+1]
			if isNameStart(n) || n == '/' || n == '!' {
				b.WriteString("&lt;")
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
