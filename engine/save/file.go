package save

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// FilePersister keeps the snapshot in a single JSON file.
type FilePersister struct {
	Path string
}

// NewFilePersister returns a persister writing to path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: path}
}

// Load reads the snapshot file. A missing file yields ErrNoSnapshot.
func (p *FilePersister) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, oops.Code(CodePersistFailed).With("path", p.Path).Wrapf(err, "reading snapshot")
	}
	return data, nil
}

// Save writes the snapshot through a temp file and rename so a crash
// never leaves a half-written document behind.
func (p *FilePersister) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return oops.Code(CodePersistFailed).With("path", p.Path).Wrapf(err, "creating save directory")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(p.Path)+".*.tmp")
	if err != nil {
		return oops.Code(CodePersistFailed).With("path", p.Path).Wrapf(err, "creating temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return oops.Code(CodePersistFailed).With("path", p.Path).Wrapf(err, "writing snapshot")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return oops.Code(CodePersistFailed).With("path", p.Path).Wrapf(err, "closing snapshot")
	}
	if err := os.Rename(tmpName, p.Path); err != nil {
		os.Remove(tmpName)
		return oops.Code(CodePersistFailed).With("path", p.Path).Wrapf(err, "replacing snapshot")
	}
	return nil
}
