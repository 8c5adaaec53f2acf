// Package markup turns page source text into an annotated element tree with
// byte-range locations and deterministic identifiers, and renders trees back
// to source. It also owns the frontmatter codec.
package markup

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html/atom"

	"github.com/quire-dev/quire/internal/model"
)

// voidTags are the intrinsically-childless native tags.
var voidTags = map[atom.Atom]bool{
	atom.Area:   true,
	atom.Base:   true,
	atom.Br:     true,
	atom.Col:    true,
	atom.Embed:  true,
	atom.Hr:     true,
	atom.Img:    true,
	atom.Input:  true,
	atom.Link:   true,
	atom.Meta:   true,
	atom.Param:  true,
	atom.Source: true,
	atom.Track:  true,
	atom.Wbr:    true,
}

// inlineTags are native tags that fold into text-run marks instead of
// forming blocks of their own.
var inlineTags = map[atom.Atom]bool{
	atom.A:      true,
	atom.B:      true,
	atom.Strong: true,
	atom.I:      true,
	atom.Em:     true,
	atom.Code:   true,
	atom.U:      true,
	atom.S:      true,
	atom.Del:    true,
	atom.Span:   true,
}

// IsNative reports whether a tag is native markup: it starts with a
// lower-case letter and is in the fixed registry of known markup tags.
// Everything else is a custom component, opaque to this engine.
func IsNative(tag string) bool {
	if tag == "" || tag == model.FragmentTag {
		return false
	}

	r, _ := utf8.DecodeRuneInString(tag)
	if unicode.IsUpper(r) {
		return false
	}

	return atom.Lookup([]byte(tag)) != 0
}

// IsVoid reports whether a native tag is intrinsically childless.
func IsVoid(tag string) bool {
	return voidTags[atom.Lookup([]byte(tag))]
}

// IsInline reports whether a native tag contributes inline formatting
// rather than a block.
func IsInline(tag string) bool {
	return inlineTags[atom.Lookup([]byte(tag))]
}

// IsBlockLike reports whether an element of this tag can stand as a
// document block: custom components and non-inline, non-void natives
// qualify, and so do rules (void but block-forming).
func IsBlockLike(tag string) bool {
	if !IsNative(tag) {
		return tag != "" && tag != model.FragmentTag
	}

	if IsInline(tag) {
		return false
	}

	if IsVoid(tag) {
		// Of the void set only the thematic break forms a block.
		return atom.Lookup([]byte(tag)) == atom.Hr
	}

	return true
}
