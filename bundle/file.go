package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps each bundle in <Root>/<outlet>_models/.
type FileStore struct {
	Root string
}

// NewFileStore creates a store under root.
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

// Dir returns the directory of outlet's bundle.
func (s *FileStore) Dir(outlet string) string {
	return filepath.Join(s.Root, outlet+"_models")
}

// Save writes the bundle into a temporary directory and renames it into
// place, so a reader sees either the old or the new bundle.
func (s *FileStore) Save(ctx context.Context, b *Bundle) error {
	data, err := encode(b)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return err
	}

	tmp, err := os.MkdirTemp(s.Root, "."+b.Outlet+"_models.tmp-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	for name, content := range data {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(tmp, name+".json"), content, 0o644); err != nil {
			return fmt.Errorf("bundle: write %s: %w", name, err)
		}
	}

	dir := s.Dir(b.Outlet)
	old := dir + ".old"
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	if err := os.Rename(dir, old); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(tmp, dir); err != nil {
		// put the previous bundle back
		_ = os.Rename(old, dir)
		return err
	}
	return os.RemoveAll(old)
}

// Load reads outlet's bundle.
func (s *FileStore) Load(ctx context.Context, outlet string) (*Bundle, error) {
	dir := s.Dir(outlet)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, outlet)
	}

	data := make(map[string][]byte, len(artifacts))
	for _, name := range artifacts {
		content, err := os.ReadFile(filepath.Join(dir, name+".json"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		data[name] = content
	}
	return decode(outlet, data)
}

// Delete removes outlet's bundle. Deleting a missing bundle is not an error.
func (s *FileStore) Delete(ctx context.Context, outlet string) error {
	return os.RemoveAll(s.Dir(outlet))
}
