package imagepkg

import (
	"bytes"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileHandle is a raw file supplied by whoever picked the photo.
// Type may be empty when the picker did not report one.
type FileHandle interface {
	Name() string
	Type() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// File is a named in-memory file.
type File struct {
	name     string
	mimeType string
	data     []byte
}

// NewFile wraps data as a named file with an optional MIME type.
func NewFile(name, mimeType string, data []byte) *File {
	return &File{name: name, mimeType: mimeType, data: data}
}

func (f *File) Name() string  { return f.name }
func (f *File) Type() string  { return f.mimeType }
func (f *File) Size() int64   { return int64(len(f.data)) }
func (f *File) Bytes() []byte { return f.data }

func (f *File) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// Blob is binary data without a first-class file identity. Name and Type are
// stamped on after the fact and may be empty.
type Blob struct {
	Name string
	Type string
	Data []byte
}

func (b *Blob) Size() int64 { return int64(len(b.Data)) }

// LocalFile is a file backed by the local filesystem.
type LocalFile struct {
	name     string
	mimeType string
	path     string
	size     int64
}

// OpenLocalFile stats path and returns a handle for it. The MIME type is left
// empty so that the decoder infers it.
func OpenLocalFile(path string) (*LocalFile, error) {
	return OpenLocalFileAs(path, filepath.Base(path), "")
}

// OpenLocalFileAs is like OpenLocalFile but with an explicit name and type.
func OpenLocalFileAs(path, name, mimeType string) (*LocalFile, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &LocalFile{name: name, mimeType: mimeType, path: abs, size: st.Size()}, nil
}

func (f *LocalFile) Name() string { return f.name }
func (f *LocalFile) Type() string { return f.mimeType }
func (f *LocalFile) Size() int64  { return f.size }
func (f *LocalFile) Path() string { return f.path }

// LocalURL returns the file:// URL of the backing file.
func (f *LocalFile) LocalURL() string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(f.path)}
	return u.String()
}

func (f *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// FileNameWithExt returns the handle's name, appending an extension derived
// from its MIME type when the name has none.
func FileNameWithExt(h FileHandle) string {
	name := h.Name()
	if strings.Contains(name, ".") {
		return name
	}
	if ext := ExtByType(h.Type()); ext != "" {
		return name + "." + ext
	}
	return name
}
