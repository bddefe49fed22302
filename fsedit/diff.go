package fsedit

import (
	"fmt"
	"strings"
)

// Diff is a line-set difference between two file contents: lines that
// appear only in the old content and lines that appear only in the new
// content. It summarizes what changed without positional information.
type Diff struct {
	Removed []string
	Added   []string
}

// Empty reports whether the contents have the same line sets.
func (d Diff) Empty() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0
}

// Summary returns a short human-readable description like "+3 -1 lines".
func (d Diff) Summary() string {
	if d.Empty() {
		return "no line changes"
	}
	return fmt.Sprintf("+%d -%d lines", len(d.Added), len(d.Removed))
}

// Render returns the diff in a unified-style textual form, removed
// lines prefixed with "- " and added lines with "+ ".
func (d Diff) Render() string {
	var sb strings.Builder
	for _, line := range d.Removed {
		sb.WriteString("- ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	for _, line := range d.Added {
		sb.WriteString("+ ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// LineSetDiff computes the set difference between the lines of two
// contents. Duplicate lines collapse; order of first appearance is
// preserved.
func LineSetDiff(oldContent, newContent string) Diff {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	oldSet := make(map[string]struct{}, len(oldLines))
	for _, line := range oldLines {
		oldSet[line] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newLines))
	for _, line := range newLines {
		newSet[line] = struct{}{}
	}

	var d Diff
	seen := make(map[string]struct{})
	for _, line := range oldLines {
		if _, inNew := newSet[line]; inNew {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		d.Removed = append(d.Removed, line)
	}
	seen = make(map[string]struct{})
	for _, line := range newLines {
		if _, inOld := oldSet[line]; inOld {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		d.Added = append(d.Added, line)
	}
	return d
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}
