package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// readDenyPatterns block credential material from the read tool. The
// deny-list is fixed and cannot be overridden by configuration.
var readDenyPatterns = []string{
	"**/.env",
	"**/.env.*",
	"**/*.pem",
	"**/id_rsa*",
	"**/id_ed25519*",
	"**/.ssh/**",
	"**/.aws/**",
	"**/.gnupg/**",
	"**/.netrc",
	"**/credentials",
	"**/credentials.json",
}

const maxGlobResults = 500

// resolvePath resolves a possibly-relative path against root.
func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// isDeniedPath checks a resolved path against the read deny-list.
func isDeniedPath(path string) bool {
	slashed := strings.TrimPrefix(filepath.ToSlash(path), "/")
	for _, pattern := range readDenyPatterns {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}

// NewReadTool returns the read tool rooted at root. Output is
// line-numbered so the model can reference positions in later edits.
func NewReadTool(root string) Tool {
	return Tool{
		Name:        "read",
		Description: "Read a file. Returns line-numbered content. Supports an optional 1-based offset and a line limit.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the file, absolute or relative to the working directory.",
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "1-based line to start from.",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of lines to return.",
				},
			},
			"required": []interface{}{"path"},
		},
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params struct {
				Path   string `json:"path"`
				Offset int    `json:"offset"`
				Limit  int    `json:"limit"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return "", err
			}

			resolved := resolvePath(root, params.Path)
			if isDeniedPath(resolved) {
				return "", fmt.Errorf("access to %s is blocked: credential files cannot be read", params.Path)
			}

			data, err := os.ReadFile(resolved)
			if err != nil {
				return "", fmt.Errorf("read %s: %w", params.Path, err)
			}

			lines := strings.Split(string(data), "\n")
			start := 0
			if params.Offset > 0 {
				start = params.Offset - 1
			}
			if start >= len(lines) {
				return "", nil
			}
			end := len(lines)
			if params.Limit > 0 && start+params.Limit < end {
				end = start + params.Limit
			}

			var sb strings.Builder
			for i := start; i < end; i++ {
				fmt.Fprintf(&sb, "%d | %s\n", i+1, lines[i])
			}
			return sb.String(), nil
		},
	}
}

// NewGlobTool returns the glob tool rooted at root. Patterns use
// doublestar syntax, so ** crosses directory boundaries.
func NewGlobTool(root string) Tool {
	return Tool{
		Name:        "glob",
		Description: "Find files matching a glob pattern like **/*.go. Paths are relative to the working directory.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Glob pattern, e.g. internal/**/*_test.go.",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Directory to search in. Defaults to the working directory.",
				},
			},
			"required": []interface{}{"pattern"},
		},
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params struct {
				Pattern string `json:"pattern"`
				Path    string `json:"path"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return "", err
			}

			base := root
			if params.Path != "" {
				base = resolvePath(root, params.Path)
			}

			matches, err := doublestar.Glob(os.DirFS(base), params.Pattern)
			if err != nil {
				return "", fmt.Errorf("glob %s: %w", params.Pattern, err)
			}
			sort.Strings(matches)

			if len(matches) == 0 {
				return "no files match " + params.Pattern, nil
			}
			truncated := false
			if len(matches) > maxGlobResults {
				matches = matches[:maxGlobResults]
				truncated = true
			}
			out := strings.Join(matches, "\n")
			if truncated {
				out += fmt.Sprintf("\n[... results capped at %d ...]", maxGlobResults)
			}
			return out, nil
		},
	}
}

// NewGrepTool returns the grep tool rooted at root. It shells out to
// ripgrep when available and falls back to grep.
func NewGrepTool(root string) Tool {
	return Tool{
		Name:        "grep",
		Description: "Search file contents with a regular expression. Returns file:line matches.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Regular expression to search for.",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File or directory to search. Defaults to the working directory.",
				},
				"glob": map[string]interface{}{
					"type":        "string",
					"description": "Restrict the search to files matching this glob.",
				},
				"case_insensitive": map[string]interface{}{
					"type": "boolean",
				},
			},
			"required": []interface{}{"pattern"},
		},
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params struct {
				Pattern         string `json:"pattern"`
				Path            string `json:"path"`
				Glob            string `json:"glob"`
				CaseInsensitive bool   `json:"case_insensitive"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return "", err
			}

			target := root
			if params.Path != "" {
				target = resolvePath(root, params.Path)
			}

			rgPath, err := exec.LookPath("rg")
			if err != nil {
				return grepFallback(ctx, root, params.Pattern, target, params.CaseInsensitive)
			}

			rgArgs := []string{params.Pattern, target, "--line-number", "--no-heading"}
			if params.CaseInsensitive {
				rgArgs = append(rgArgs, "-i")
			}
			if params.Glob != "" {
				rgArgs = append(rgArgs, "--glob", params.Glob)
			}

			cmd := exec.CommandContext(ctx, rgPath, rgArgs...)
			cmd.Dir = root
			var stdout bytes.Buffer
			cmd.Stdout = &stdout
			_ = cmd.Run() // rg exits 1 on no matches, which is fine.

			out := stdout.String()
			if out == "" {
				return "no matches for " + params.Pattern, nil
			}
			return out, nil
		},
	}
}

func grepFallback(ctx context.Context, root, pattern, target string, caseInsensitive bool) (string, error) {
	grepArgs := []string{"-rn", pattern, target}
	if caseInsensitive {
		grepArgs = append([]string{"-i"}, grepArgs...)
	}
	cmd := exec.CommandContext(ctx, "grep", grepArgs...)
	cmd.Dir = root
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	_ = cmd.Run()

	out := stdout.String()
	if out == "" {
		return "no matches for " + pattern, nil
	}
	return out, nil
}
