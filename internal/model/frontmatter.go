package model

import "reflect"

// Reserved frontmatter keys with dedicated accessors.
const (
	FrontmatterTitle       = "title"
	FrontmatterDescription = "description"
	FrontmatterIgnore      = "ignore"
)

// Field is one ordered frontmatter entry.
type Field struct {
	Key   string
	Value any
}

// Frontmatter is the ordered string-keyed metadata header of a page, plus
// the exact byte range it occupied in the source (nil when absent) and the
// offset at which the body begins.
type Frontmatter struct {
	fields []Field

	Loc       *Span
	BodyStart int
}

// NewFrontmatter builds a frontmatter map from ordered fields. A nil slice
// is an empty header.
func NewFrontmatter(fields []Field) *Frontmatter {
	return &Frontmatter{fields: fields}
}

// Len returns the number of fields.
func (f *Frontmatter) Len() int { return len(f.fields) }

// Empty reports whether the map has no fields.
func (f *Frontmatter) Empty() bool { return len(f.fields) == 0 }

// Get returns the value for key and whether it exists.
func (f *Frontmatter) Get(key string) (any, bool) {
	for _, fd := range f.fields {
		if fd.Key == key {
			return fd.Value, true
		}
	}

	return nil, false
}

// Set replaces the value for key in place, or appends a new field while
// preserving the order of existing ones.
func (f *Frontmatter) Set(key string, value any) {
	for i, fd := range f.fields {
		if fd.Key == key {
			f.fields[i].Value = value
			return
		}
	}

	f.fields = append(f.fields, Field{Key: key, Value: value})
}

// Delete removes key and reports whether it was present.
func (f *Frontmatter) Delete(key string) bool {
	for i, fd := range f.fields {
		if fd.Key == key {
			f.fields = append(f.fields[:i], f.fields[i+1:]...)
			return true
		}
	}

	return false
}

// Keys returns the field keys in order.
func (f *Frontmatter) Keys() []string {
	keys := make([]string, 0, len(f.fields))
	for _, fd := range f.fields {
		keys = append(keys, fd.Key)
	}

	return keys
}

// Fields returns a copy of the ordered fields.
func (f *Frontmatter) Fields() []Field {
	out := make([]Field, len(f.fields))
	copy(out, f.fields)

	return out
}

// Title returns the title field as a string, or "".
func (f *Frontmatter) Title() string { return f.stringField(FrontmatterTitle) }

// Description returns the description field as a string, or "".
func (f *Frontmatter) Description() string { return f.stringField(FrontmatterDescription) }

// Ignored reports whether the page opts out of listings via a boolean
// ignore field. Non-boolean values do not count.
func (f *Frontmatter) Ignored() bool {
	v, ok := f.Get(FrontmatterIgnore)
	if !ok {
		return false
	}

	b, _ := v.(bool)

	return b
}

func (f *Frontmatter) stringField(key string) string {
	v, ok := f.Get(key)
	if !ok {
		return ""
	}

	s, _ := v.(string)

	return s
}

// Equal compares two frontmatter maps by ordered key/value pairs, ignoring
// location bookkeeping.
func (f *Frontmatter) Equal(other *Frontmatter) bool {
	if len(f.fields) != len(other.fields) {
		return false
	}

	for i, fd := range f.fields {
		o := other.fields[i]
		if fd.Key != o.Key || !reflect.DeepEqual(fd.Value, o.Value) {
			return false
		}
	}

	return true
}
