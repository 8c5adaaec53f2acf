package markup

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quire-dev/quire/internal/model"
)

const fenceLine = "---"

// ParseFrontmatter decodes the leading --- delimited YAML header of a
// page source. A header exists only when the delimiter opens the very
// first line. The returned value always carries a usable BodyStart, even
// on error.
func ParseFrontmatter(source string) (*model.Frontmatter, error) {
	fm := model.NewFrontmatter(nil)

	if !hasOpenFence(source) {
		return fm, nil
	}

	openEnd := lineEnd(source, 0)
	closeStart, headerEnd, ok := findCloseFence(source, openEnd)
	if !ok {
		return fm, fmt.Errorf("frontmatter: missing closing %s", fenceLine)
	}

	fm.Loc = &model.Span{Start: 0, End: headerEnd}
	fm.BodyStart = headerEnd

	raw := source[openEnd:closeStart]
	if strings.TrimSpace(raw) == "" {
		return fm, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return fm, fmt.Errorf("frontmatter: %w", err)
	}
	if len(doc.Content) == 0 {
		return fm, nil
	}

	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return fm, fmt.Errorf("frontmatter: header must be a key/value mapping")
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode, valNode := mapping.Content[i], mapping.Content[i+1]

		var val any
		if err := valNode.Decode(&val); err != nil {
			return fm, fmt.Errorf("frontmatter: key %q: %w", keyNode.Value, err)
		}
		fm.Set(keyNode.Value, val)
	}

	return fm, nil
}

// SerializeFrontmatter renders a header back to source form. Field order
// is preserved exactly as held by fm. An empty header renders as the
// empty string so header-less pages stay header-less.
func SerializeFrontmatter(fm *model.Frontmatter) (string, error) {
	if fm == nil || fm.Empty() {
		return "", nil
	}

	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, f := range fm.Fields() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key}

		val := &yaml.Node{}
		if err := val.Encode(f.Value); err != nil {
			return "", fmt.Errorf("frontmatter: key %q: %w", f.Key, err)
		}

		mapping.Content = append(mapping.Content, key, val)
	}

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return "", fmt.Errorf("frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("frontmatter: %w", err)
	}

	return fenceLine + "\n" + b.String() + fenceLine + "\n", nil
}

func hasOpenFence(source string) bool {
	if !strings.HasPrefix(source, fenceLine) {
		return false
	}
	rest := source[len(fenceLine):]
	return rest == "" || rest[0] == '\n' || strings.HasPrefix(rest, "\r\n")
}

// lineEnd returns the offset just past the newline ending the line that
// starts at from.
func lineEnd(s string, from int) int {
	if i := strings.IndexByte(s[from:], '\n'); i >= 0 {
		return from + i + 1
	}
	return len(s)
}

// findCloseFence scans line by line for the closing delimiter. It
// returns the delimiter line's start and the offset just past it.
func findCloseFence(s string, from int) (closeStart, headerEnd int, ok bool) {
	for i := from; i < len(s); {
		end := lineEnd(s, i)
		line := strings.TrimRight(s[i:end], "\r\n")
		if line == fenceLine {
			return i, end, true
		}
		i = end
	}
	return 0, 0, false
}
