package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/HendryAvila/adtree/internal/capec"
)

// DirStore reads the split layout written by SplitCSV: one
// capec_<id>.csv file per pattern, header plus a single row.
type DirStore struct {
	dir string
}

// NewDirStore creates a DirStore rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// GetRecord opens capec_<id>.csv and returns its first row.
func (d *DirStore) GetRecord(_ context.Context, id string) (*capec.Record, error) {
	id = capec.NormalizeID(id)
	if !validFileID(id) {
		return nil, ErrNotFound
	}

	path := filepath.Join(d.dir, splitFileName(id))
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("knowledge: %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}
