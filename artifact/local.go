package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalBackend stores artifacts as files under a root directory.
//
// Writes go to a temporary file in the target directory followed by a
// rename, so a name never becomes visible before its content is
// complete. This is what makes the batch skip-if-exists check safe.
type LocalBackend struct {
	root string
}

// NewLocalBackend creates a LocalBackend rooted at the given directory.
func NewLocalBackend(root string) *LocalBackend {
	return &LocalBackend{root: root}
}

func (b *LocalBackend) path(name string) string {
	return filepath.Join(b.root, filepath.FromSlash(name))
}

// Get reads the file stored under name.
func (b *LocalBackend) Get(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(b.path(name))
}

// Put writes data under name atomically.
func (b *LocalBackend) Put(_ context.Context, name string, data []byte) error {
	p := b.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %q: %w", p, err)
	}
	return nil
}

// Exists reports whether a file is present under name.
func (b *LocalBackend) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(b.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// List returns all stored names with the given prefix, sorted.
func (b *LocalBackend) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.Walk(b.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
