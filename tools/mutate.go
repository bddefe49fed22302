package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/ternlabs/tern/fsedit"
)

// NewEditTool returns the edit tool. The change is previewed, shown to
// the confirmation gate with its diff, and only applied on approval.
func NewEditTool(root string, confirmer Confirmer) Tool {
	return Tool{
		Name:         "edit",
		Description:  "Replace an exact string occurrence in a file. The old_string must occur exactly once unless replace_all is set.",
		NeedsConfirm: true,
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the file to edit.",
				},
				"old_string": map[string]interface{}{
					"type":        "string",
					"description": "Exact text to find in the file.",
				},
				"new_string": map[string]interface{}{
					"type":        "string",
					"description": "Replacement text.",
				},
				"replace_all": map[string]interface{}{
					"type":        "boolean",
					"description": "Replace all occurrences. Default: false.",
				},
			},
			"required": []interface{}{"path", "old_string", "new_string"},
		},
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params struct {
				Path       string `json:"path"`
				OldString  string `json:"old_string"`
				NewString  string `json:"new_string"`
				ReplaceAll bool   `json:"replace_all"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return "", err
			}

			change, err := fsedit.Edit{
				Path:       resolvePath(root, params.Path),
				OldString:  params.OldString,
				NewString:  params.NewString,
				ReplaceAll: params.ReplaceAll,
			}.Preview()
			if err != nil {
				return "", err
			}

			if err := confirm(ctx, confirmer, ConfirmRequest{
				Tool:    "edit",
				Summary: fmt.Sprintf("edit %s (%s)", displayPath(root, change.Path), change.Diff.Summary()),
				Detail:  change.Diff.Render(),
			}); err != nil {
				return "", err
			}

			if err := change.Apply(); err != nil {
				return "", err
			}
			return fmt.Sprintf("Replaced %d occurrence(s) in %s (%s)",
				change.Replacements, displayPath(root, change.Path), change.Diff.Summary()), nil
		},
	}
}

// NewWriteTool returns the write tool. The line-set diff against the
// existing content goes through the confirmation gate before the
// atomic write happens.
func NewWriteTool(root string, confirmer Confirmer) Tool {
	return Tool{
		Name:         "write",
		Description:  "Write full content to a file, creating it and its parent directories if needed.",
		NeedsConfirm: true,
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to write to.",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "The full file content.",
				},
			},
			"required": []interface{}{"path", "content"},
		},
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params struct {
				Path    string `json:"path"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return "", err
			}

			change, err := fsedit.Write{
				Path:    resolvePath(root, params.Path),
				Content: params.Content,
			}.Preview()
			if err != nil {
				return "", err
			}

			verb := "overwrite"
			if change.Created {
				verb = "create"
			}
			if err := confirm(ctx, confirmer, ConfirmRequest{
				Tool:    "write",
				Summary: fmt.Sprintf("%s %s (%s)", verb, displayPath(root, change.Path), change.Diff.Summary()),
				Detail:  change.Diff.Render(),
			}); err != nil {
				return "", err
			}

			if err := change.Apply(); err != nil {
				return "", err
			}
			return fmt.Sprintf("Wrote %d bytes to %s (%s)",
				len(params.Content), displayPath(root, change.Path), change.Diff.Summary()), nil
		},
	}
}

// displayPath shortens a resolved path to be relative to root when
// possible.
func displayPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || len(rel) >= len(path) {
		return path
	}
	return rel
}
