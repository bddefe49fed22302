package agent

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const maxProjectDocBytes = 32 * 1024 // 32KB

const basePrompt = `You are tern, a coding assistant running in the user's terminal.

You help with software engineering tasks: reading and editing code,
searching the working tree, running shell commands, and fetching web
content. Use the provided tools; do not guess at file contents or
command output when a tool can tell you.

Guidelines:
- Prefer small, targeted edits over full-file rewrites.
- Read a file before editing it.
- When a command or edit fails, report the error and adjust; do not
  repeat the identical call.
- Keep answers concise. The user is in a terminal.`

// BuildSystemPrompt assembles the full system prompt: the base
// instructions, the environment context block, and any discovered
// project instruction files.
func BuildSystemPrompt(workDir, model string) string {
	parts := []string{basePrompt, EnvironmentContext(workDir, model)}

	if docs := DiscoverProjectDocs(workDir); docs != "" {
		parts = append(parts, "# Project instructions\n\n"+docs)
	}
	return strings.Join(parts, "\n\n")
}

// EnvironmentContext generates the structured environment context block.
func EnvironmentContext(workDir, model string) string {
	isGitRepo := isGitRepository(workDir)
	gitBranch := ""
	if isGitRepo {
		gitBranch = gitBranchName(workDir)
	}

	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", workDir)
	fmt.Fprintf(&sb, "Is git repository: %v\n", isGitRepo)
	if gitBranch != "" {
		fmt.Fprintf(&sb, "Git branch: %s\n", gitBranch)
	}
	fmt.Fprintf(&sb, "Platform: %s\n", runtime.GOOS)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}

// DiscoverProjectDocs finds and loads AGENTS.md instruction files. It
// walks from the git root (or the working directory when outside a
// repository) down to the working directory, concatenating every
// AGENTS.md it finds, capped at 32KB total.
func DiscoverProjectDocs(workDir string) string {
	root := gitRoot(workDir)
	if root == "" {
		root = workDir
	}

	var docs []string
	totalBytes := 0

	for _, dir := range collectPathHierarchy(root, workDir) {
		path := filepath.Join(dir, "AGENTS.md")
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		remaining := maxProjectDocBytes - totalBytes
		if remaining <= 0 {
			docs = append(docs, "[Project instructions truncated at 32KB]")
			break
		}

		text := string(content)
		if len(text) > remaining {
			text = text[:remaining] + "\n[Project instructions truncated at 32KB]"
		}

		header := fmt.Sprintf("# AGENTS.md (from %s)", dir)
		docs = append(docs, header+"\n\n"+text)
		totalBytes += len(text)
	}

	return strings.Join(docs, "\n\n---\n\n")
}

// collectPathHierarchy returns directories from root to target, inclusive.
func collectPathHierarchy(root, target string) []string {
	root = filepath.Clean(root)
	target = filepath.Clean(target)

	if root == target {
		return []string{root}
	}

	dirs := []string{root}
	rel, err := filepath.Rel(root, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return dirs
	}

	current := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "." {
			continue
		}
		current = filepath.Join(current, part)
		dirs = append(dirs, current)
	}
	return dirs
}

func isGitRepository(dir string) bool {
	out := runGitCommand(dir, "rev-parse", "--is-inside-work-tree")
	return strings.TrimSpace(out) == "true"
}

func gitRoot(dir string) string {
	return strings.TrimSpace(runGitCommand(dir, "rev-parse", "--show-toplevel"))
}

func gitBranchName(dir string) string {
	return strings.TrimSpace(runGitCommand(dir, "rev-parse", "--abbrev-ref", "HEAD"))
}

func runGitCommand(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}
