package adapter

import (
	"os"
	"path/filepath"

	"github.com/quire-dev/quire/internal/model"
)

// FileSystem abstracts the filesystem operations the workflow layer
// relies on when scanning page trees. It hides direct `os` access so
// workflow logic can be tested without touching the disk.
type FileSystem interface {
	// Walk traverses the provided root path. When recursive is false the
	// implementation limits itself to the root directory (no sub-dirs).
	Walk(root model.Path, recursive bool, fn WalkFunc) error

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(path model.Path) ([]byte, error)

	// WriteFile writes content to a file with the given permissions.
	WriteFile(path model.Path, content []byte, perm os.FileMode) error

	// FileInfo returns metadata for a path so callers can check
	// existence or distinguish files from directories.
	FileInfo(path model.Path) (os.FileInfo, error)
}

// WalkFunc mirrors the callback shape of filepath.Walk. It is redeclared
// here so the domain layer depends on this package, not on path/filepath.
type WalkFunc func(path string, info os.FileInfo, err error) error

// LocalFS is the os-backed FileSystem.
type LocalFS struct{}

// NewLocalFS returns a FileSystem reading and writing the real disk.
func NewLocalFS() *LocalFS {
	return &LocalFS{}
}

// Walk iterates over files under root, optionally descending into
// subdirectories.
func (a *LocalFS) Walk(root model.Path, recursive bool, fn WalkFunc) error {
	rootStr := string(root)

	return filepath.Walk(rootStr, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fn(path, info, err)
		}

		if info.IsDir() && !recursive && path != rootStr {
			return filepath.SkipDir
		}

		return fn(path, info, nil)
	})
}

// ReadFile loads the file at path.
func (a *LocalFS) ReadFile(path model.Path) ([]byte, error) {
	return os.ReadFile(string(path)) // #nosec G304 -- paths come from user-provided scan roots
}

// WriteFile writes content to path with the given permissions.
func (a *LocalFS) WriteFile(path model.Path, content []byte, perm os.FileMode) error {
	return os.WriteFile(string(path), content, perm) // #nosec G306 -- permissions chosen by the caller
}

// FileInfo returns metadata for path.
func (a *LocalFS) FileInfo(path model.Path) (os.FileInfo, error) {
	return os.Stat(string(path))
}
