package model

import (
	"path/filepath"
	"strings"
)

// Path represents a file system path.
type Path string

// PageExt is the file extension of page sources on disk.
const PageExt = ".qd"

func (p Path) String() string { return string(p) }

// IsPage reports whether the path names a page source file.
func (p Path) IsPage() bool {
	return strings.HasSuffix(string(p), PageExt)
}

// PageID derives the page identifier from the path: the base name without
// the page extension.
func (p Path) PageID() PageID {
	base := filepath.Base(string(p))
	return PageID(strings.TrimSuffix(base, PageExt))
}

// Dir returns the directory portion of the path.
func (p Path) Dir() Path {
	return Path(filepath.Dir(string(p)))
}
