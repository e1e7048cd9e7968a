package terraform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
)

// Save writes files into dir, creating it when needed, and returns the
// written paths.
func Save(dir string, files []File) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	unlock, err := lockDir(dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		content := f.Content
		if content != "" && content[len(content)-1] != '\n' {
			content += "\n"
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Diff returns a unified diff per file that already exists in dir with
// different content. New and unchanged files are left out.
func Diff(dir string, files []File) (map[string]string, error) {
	diffs := make(map[string]string)
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		old, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		content := f.Content
		if content != "" && content[len(content)-1] != '\n' {
			content += "\n"
		}
		if string(old) == content {
			continue
		}

		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(old)),
			B:        difflib.SplitLines(content),
			FromFile: "a/" + f.Name,
			ToFile:   "b/" + f.Name,
			Context:  3,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to diff %s: %w", f.Name, err)
		}
		diffs[f.Name] = text
	}
	return diffs, nil
}
