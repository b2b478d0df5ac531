package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem archives journal exports as files under baseDir.
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates a FileSystem sink, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

func (fs *FileSystem) Name() string { return "filesystem" }

// Path returns where an export with the given name is stored.
func (fs *FileSystem) Path(name string) string {
	return filepath.Join(fs.baseDir, name)
}

// Put writes data to {baseDir}/{name}, replacing an earlier export of the
// same day.
func (fs *FileSystem) Put(_ context.Context, name string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	path := fs.Path(name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing export file: %w", err)
	}
	return path, nil
}

// Get returns a previously archived export.
// Go note: os.ReadFile hands back the whole file as a []byte, which is what
// journal.Import reads through a bytes.Reader.
func (fs *FileSystem) Get(_ context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fs.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrExportNotFound, name)
		}
		return nil, fmt.Errorf("reading export file: %w", err)
	}
	return data, nil
}

// validName rejects names that would escape the sink's directory or bucket.
func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid export name %q", name)
	}
	return nil
}
