// Package editor exposes shader sources and the uniform sheet as plain files
// edited in any text editor, and reports when they change on disk.
package editor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSource is the current text of one workspace file.
type FileSource struct {
	path string
	text string
}

// OpenFile loads a workspace file, creating it with fallback content when it
// does not exist yet.
func OpenFile(path, fallback string) (*FileSource, error) {
	f := &FileSource{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		if err := f.SetText(fallback); err != nil {
			return nil, err
		}
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	f.text = string(data)
	return f, nil
}

// Path returns the file path.
func (f *FileSource) Path() string {
	return f.path
}

// Text returns the text as of the last Reload or SetText.
func (f *FileSource) Text() string {
	return f.text
}

// Reload reads the file again and reports whether the text changed.
func (f *FileSource) Reload() (bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false, fmt.Errorf("reload %s: %w", f.path, err)
	}
	if string(data) == f.text {
		return false, nil
	}
	f.text = string(data)
	return true, nil
}

// SetText replaces the text and writes it through to disk. A following
// Reload reports no change.
func (f *FileSource) SetText(text string) error {
	if err := os.WriteFile(f.path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	f.text = text
	return nil
}
