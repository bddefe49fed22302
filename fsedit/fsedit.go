// Package fsedit implements the file mutation engine: exact-string
// patch edits, full-file writes, line-set diffs, and atomic persistence.
// Mutations are computed as a Change first so callers can show the diff
// and ask for confirmation before anything touches disk.
package fsedit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrOldStringNotFound means the exact text to replace does not
	// occur in the file.
	ErrOldStringNotFound = errors.New("old_string not found")

	// ErrOldStringAmbiguous means the text to replace occurs more than
	// once and the edit cannot be applied unambiguously.
	ErrOldStringAmbiguous = errors.New("old_string is ambiguous")
)

// Edit replaces an exact string occurrence in an existing file.
type Edit struct {
	Path       string
	OldString  string
	NewString  string
	ReplaceAll bool
}

// Write replaces a file's entire content, creating it if needed.
type Write struct {
	Path    string
	Content string
}

// Change is a computed, not-yet-applied file mutation.
type Change struct {
	Path         string
	OldContent   string
	NewContent   string
	Created      bool
	Replacements int
	Diff         Diff
}

// Preview computes the edit without writing. The old string must occur
// exactly once unless ReplaceAll is set.
func (e Edit) Preview() (*Change, error) {
	data, err := os.ReadFile(e.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}
	content := string(data)

	if e.OldString == "" {
		return nil, fmt.Errorf("old_string must not be empty")
	}
	count := strings.Count(content, e.OldString)
	if count == 0 {
		return nil, fmt.Errorf("%w in %s", ErrOldStringNotFound, e.Path)
	}
	if count > 1 && !e.ReplaceAll {
		return nil, fmt.Errorf("%w: found %d times in %s, provide more surrounding context or set replace_all", ErrOldStringAmbiguous, count, e.Path)
	}

	var newContent string
	replacements := 1
	if e.ReplaceAll {
		newContent = strings.ReplaceAll(content, e.OldString, e.NewString)
		replacements = count
	} else {
		newContent = strings.Replace(content, e.OldString, e.NewString, 1)
	}

	return &Change{
		Path:         e.Path,
		OldContent:   content,
		NewContent:   newContent,
		Replacements: replacements,
		Diff:         LineSetDiff(content, newContent),
	}, nil
}

// Preview computes the write without touching disk.
func (w Write) Preview() (*Change, error) {
	var old string
	created := false
	data, err := os.ReadFile(w.Path)
	switch {
	case err == nil:
		old = string(data)
	case os.IsNotExist(err):
		created = true
	default:
		return nil, fmt.Errorf("read %s: %w", w.Path, err)
	}

	return &Change{
		Path:       w.Path,
		OldContent: old,
		NewContent: w.Content,
		Created:    created,
		Diff:       LineSetDiff(old, w.Content),
	}, nil
}

// Apply persists the change atomically.
func (c *Change) Apply() error {
	return WriteAtomic(c.Path, c.NewContent)
}

// WriteAtomic writes content to path via a temp sibling and rename, so
// a crash mid-write never leaves a half-written file. Parent
// directories are created as needed.
func WriteAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
