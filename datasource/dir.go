package datasource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirSource serves database files from a local directory, e.g. an offline
// copy produced by the database builder. Files are read in their canonical
// uncompressed form; no gzip twins are involved.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at the given directory.
func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

func (s *DirSource) FetchWhole(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return data, nil
}

func (s *DirSource) FetchRange(_ context.Context, name string, start, length int64) ([]byte, error) {
	if start < 0 || length < 0 {
		return nil, fmt.Errorf("%w: %s [%d,+%d)", ErrOutOfBounds, name, start, length)
	}

	f, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer f.Close() //nolint:errcheck

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, start); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: %s [%d,+%d)", ErrOutOfBounds, name, start, length)
		}
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return buf, nil
}
