package upload

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	imagepkg "github.com/youruser/imagemerger/internal/image"
	"github.com/youruser/imagemerger/internal/util"
)

// FileSystem is scratch storage for turning blobs into local files.
type FileSystem interface {
	WriteTemp(ctx context.Context, name string, data []byte) (string, error)
	ReadFile(ctx context.Context, path, name, mimeType string) (*imagepkg.LocalFile, error)
	Remove(path string) error
}

// TempFS keeps each written file in its own directory under Dir so equal
// names never collide.
type TempFS struct {
	Dir string
}

// NewTempFS uses dir, or the OS temp directory when dir is empty.
func NewTempFS(dir string) *TempFS {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "imagemerger")
	}
	return &TempFS{Dir: dir}
}

func (t *TempFS) WriteTemp(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(t.Dir, uuid.NewString(), filepath.Base(name))
	if err := util.WriteFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func (t *TempFS) ReadFile(ctx context.Context, path, name, mimeType string) (*imagepkg.LocalFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return imagepkg.OpenLocalFileAs(path, name, mimeType)
}

// Remove deletes path, and its per-file directory when path lives under Dir.
func (t *TempFS) Remove(path string) error {
	dir := filepath.Dir(path)
	root, err := filepath.Abs(t.Dir)
	if err == nil {
		if parent, _ := filepath.Abs(filepath.Dir(dir)); parent == root {
			return os.RemoveAll(dir)
		}
	}
	return os.Remove(path)
}
