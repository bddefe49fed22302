package fsedit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestEditExactlyOnce(t *testing.T) {
	path := writeFixture(t, "alpha\nbeta\ngamma\n")

	change, err := Edit{Path: path, OldString: "beta", NewString: "delta"}.Preview()
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if change.Replacements != 1 {
		t.Errorf("expected 1 replacement, got %d", change.Replacements)
	}
	if err := change.Apply(); err != nil {
		t.Fatalf("apply: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "alpha\ndelta\ngamma\n" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestEditNotFound(t *testing.T) {
	path := writeFixture(t, "alpha\n")

	_, err := Edit{Path: path, OldString: "missing", NewString: "x"}.Preview()
	if !errors.Is(err, ErrOldStringNotFound) {
		t.Errorf("expected ErrOldStringNotFound, got %v", err)
	}
}

func TestEditAmbiguous(t *testing.T) {
	path := writeFixture(t, "dup\nother\ndup\n")

	_, err := Edit{Path: path, OldString: "dup", NewString: "x"}.Preview()
	if !errors.Is(err, ErrOldStringAmbiguous) {
		t.Errorf("expected ErrOldStringAmbiguous, got %v", err)
	}

	// The file must be untouched after a rejected edit.
	data, _ := os.ReadFile(path)
	if string(data) != "dup\nother\ndup\n" {
		t.Errorf("file modified by failed edit: %q", data)
	}
}

func TestEditReplaceAll(t *testing.T) {
	path := writeFixture(t, "dup\nother\ndup\n")

	change, err := Edit{Path: path, OldString: "dup", NewString: "uniq", ReplaceAll: true}.Preview()
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if change.Replacements != 2 {
		t.Errorf("expected 2 replacements, got %d", change.Replacements)
	}
}

func TestEditMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.txt")
	_, err := Edit{Path: path, OldString: "a", NewString: "b"}.Preview()
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWriteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "new.txt")

	change, err := Write{Path: path, Content: "one\ntwo\n"}.Preview()
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !change.Created {
		t.Error("expected Created for a new file")
	}
	if len(change.Diff.Added) != 2 || len(change.Diff.Removed) != 0 {
		t.Errorf("unexpected diff: %+v", change.Diff)
	}
	if err := change.Apply(); err != nil {
		t.Fatalf("apply: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "one\ntwo\n" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestWriteOverwriteDiff(t *testing.T) {
	path := writeFixture(t, "keep\ndrop\n")

	change, err := Write{Path: path, Content: "keep\nnew\n"}.Preview()
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if change.Created {
		t.Error("expected Created false for existing file")
	}
	if len(change.Diff.Removed) != 1 || change.Diff.Removed[0] != "drop" {
		t.Errorf("unexpected removed lines: %v", change.Diff.Removed)
	}
	if len(change.Diff.Added) != 1 || change.Diff.Added[0] != "new" {
		t.Errorf("unexpected added lines: %v", change.Diff.Added)
	}
}

func TestLineSetDiffIgnoresMoves(t *testing.T) {
	d := LineSetDiff("a\nb\nc\n", "c\nb\na\n")
	if !d.Empty() {
		t.Errorf("reordered lines should produce an empty set diff, got %+v", d)
	}
}

func TestDiffSummary(t *testing.T) {
	d := LineSetDiff("a\nb\n", "a\nc\nd\n")
	if got := d.Summary(); got != "+2 -1 lines" {
		t.Errorf("unexpected summary: %q", got)
	}
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := WriteAtomic(path, "hello"); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteAtomicPreservesMode(t *testing.T) {
	path := writeFixture(t, "x")
	if err := os.Chmod(path, 0755); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := WriteAtomic(path, "y"); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("expected mode 0755 preserved, got %v", info.Mode().Perm())
	}
}
