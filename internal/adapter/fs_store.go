package adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"

	"github.com/quire-dev/quire/internal/model"
)

// FSStore persists each page as a <id>.qd file inside one directory.
// Writes go through a temp file and a rename so concurrent readers never
// observe a torn page.
type FSStore struct {
	root string
}

// NewFSStore returns a store rooted at dir. The directory is created on
// the first save if it does not exist yet.
func NewFSStore(dir model.Path) *FSStore {
	return &FSStore{root: string(dir)}
}

// pageFile maps a page id onto its backing file, rejecting ids that
// would escape the store root.
func (s *FSStore) pageFile(page model.PageID) (string, error) {
	id := string(page)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("adapter: invalid page id %q", id)
	}

	return filepath.Join(s.root, id+model.PageExt), nil
}

// GetSource reads the backing file of a page.
func (s *FSStore) GetSource(_ context.Context, page model.PageID) (string, error) {
	path, err := s.pageFile(page)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from a validated page id
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrPageNotFound, page)
	}
	if err != nil {
		return "", err
	}

	glog.V(2).Infof("[fs]get %s (%d bytes)", page, len(data))

	return string(data), nil
}

// SaveSource writes the page atomically: a temp file in the store
// directory, then a rename over the target.
func (s *FSStore) SaveSource(_ context.Context, page model.PageID, source string) error {
	path, err := s.pageFile(page)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.root, "."+string(page)+"-*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.WriteString(source); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil { // #nosec G302 -- pages are plain documents
		_ = os.Remove(tmp.Name())

		return err
	}

	glog.V(2).Infof("[fs]save %s (%d bytes)", page, len(source))

	return os.Rename(tmp.Name(), path)
}

// Rename moves a page to a new id. It fails when the source page is
// missing or the target id is already taken.
func (s *FSStore) Rename(_ context.Context, page, to model.PageID) error {
	from, err := s.pageFile(page)
	if err != nil {
		return err
	}

	dst, err := s.pageFile(to)
	if err != nil {
		return err
	}

	if _, err := os.Stat(from); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrPageNotFound, page)
	} else if err != nil {
		return err
	}

	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("adapter: page %q already exists", to)
	}

	glog.V(2).Infof("[fs]rename %s -> %s", page, to)

	return os.Rename(from, dst)
}

// List returns the ids of all stored pages in lexical order. A missing
// store directory reads as an empty store.
func (s *FSStore) List(_ context.Context) ([]model.PageID, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []model.PageID

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, model.PageExt) {
			continue
		}

		ids = append(ids, model.PageID(strings.TrimSuffix(name, model.PageExt)))
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}
