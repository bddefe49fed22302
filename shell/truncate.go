package shell

import (
	"fmt"
	"strings"
)

const (
	// TruncateHeadLines and TruncateTailLines define the head/tail
	// split for model-facing output truncation.
	TruncateHeadLines = 100
	TruncateTailLines = 50
)

// TruncateForModel reduces long command output to its first
// TruncateHeadLines and last TruncateTailLines lines with a marker
// stating how many lines were removed. Output at or under the combined
// limit passes through unmodified. The full output stays available to
// the host; this only shapes what the model sees.
func TruncateForModel(output string) string {
	lines := strings.Split(output, "\n")
	limit := TruncateHeadLines + TruncateTailLines
	if len(lines) <= limit {
		return output
	}

	omitted := len(lines) - limit
	return strings.Join(lines[:TruncateHeadLines], "\n") +
		fmt.Sprintf("\n[... %d lines truncated ...]\n", omitted) +
		strings.Join(lines[len(lines)-TruncateTailLines:], "\n")
}
