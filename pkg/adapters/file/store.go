package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
)

// DefaultExt is the extension of definition files.
const DefaultExt = ".yaml"

// Store implements ports.DefinitionStore on a directory, one file per
// definition named "<name><ext>".
type Store struct {
	BasePath string
	Ext      string
}

var _ ports.DefinitionStore = (*Store)(nil)

// NewStore creates a store rooted at basePath.
// If basePath is empty, it defaults to ".hsmgrid/definitions".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".hsmgrid", "definitions")
	}
	return &Store{BasePath: basePath, Ext: DefaultExt}
}

func (f *Store) path(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("definition name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid definition name %q", name)
	}
	return filepath.Join(f.BasePath, name+f.Ext), nil
}

// Save writes data to the definition file, creating the directory if needed.
func (f *Store) Save(ctx context.Context, name string, data []byte) error {
	path, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.BasePath, 0o755); err != nil {
		return &domain.PersistenceIOError{Path: f.BasePath, Err: err}
	}
	if err := writeAtomic(f.BasePath, path, data); err != nil {
		return &domain.PersistenceIOError{Path: path, Err: err}
	}
	return nil
}

// writeAtomic writes to a temp file in dir, syncs it and renames it over path.
func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "tmp-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// os.Rename does not replace an existing file on Windows.
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to replace existing file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the definition file.
func (f *Store) Load(ctx context.Context, name string) ([]byte, error) {
	path, err := f.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrDefinitionNotFound
		}
		return nil, &domain.PersistenceIOError{Path: path, Err: err}
	}
	return data, nil
}

// Delete removes the definition file. A missing file is not an error.
func (f *Store) Delete(ctx context.Context, name string) error {
	path, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.PersistenceIOError{Path: path, Err: err}
	}
	return nil
}

// List returns the names of every definition file, sorted.
func (f *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.BasePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, &domain.PersistenceIOError{Path: f.BasePath, Err: err}
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != f.Ext || strings.HasPrefix(entry.Name(), "tmp-") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), f.Ext))
	}
	sort.Strings(names)
	return names, nil
}
