package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalReader reads source files from the local filesystem.
type LocalReader struct{}

// NewLocalReader creates a new LocalReader
func NewLocalReader() *LocalReader {
	return &LocalReader{}
}

// List returns the regular files under root, walking subdirectories. A root
// that is itself a regular file yields exactly that file.
func (r *LocalReader) List(ctx context.Context, root string) ([]SourceFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source root: %w", err)
	}

	if !info.IsDir() {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve source path: %w", err)
		}
		return []SourceFile{{Path: abs, Name: info.Name(), ModTime: info.ModTime()}}, nil
	}

	var files []SourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fileInfo, err := d.Info()
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		files = append(files, SourceFile{Path: abs, Name: d.Name(), ModTime: fileInfo.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk source root: %w", err)
	}

	return files, nil
}

// Read returns the contents of one file. Not-found is left unwrapped enough
// for callers to distinguish via errors.Is(err, fs.ErrNotExist).
func (r *LocalReader) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return data, nil
}
