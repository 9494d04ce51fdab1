package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileRepository keeps the portfolio as a JSON document on disk.
type FileRepository struct {
	path string
}

// NewFileRepository builds a repository writing to path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Load reads and decodes the document.
func (r *FileRepository) Load(_ context.Context) (Portfolio, error) {
	doc, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Portfolio{}, ErrNotFound
		}
		return Portfolio{}, fmt.Errorf("read portfolio file: %w", err)
	}
	return Decode(doc)
}

// Save replaces the document atomically by writing a sibling file and renaming it.
func (r *FileRepository) Save(_ context.Context, p Portfolio) error {
	doc, err := Encode(p)
	if err != nil {
		return err
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create portfolio dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".portfolio-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("write portfolio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close portfolio file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace portfolio file: %w", err)
	}
	return nil
}
