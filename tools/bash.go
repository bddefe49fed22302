package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternlabs/tern/shell"
)

// NewBashTool returns the bash tool. The command is checked against
// the denylist before confirmation, so a hard-blocked command is
// rejected without bothering the user. Run returns the full capture;
// the registry truncates the model-facing copy and keeps the full
// output in Result.Display.
func NewBashTool(runner *shell.Runner, confirmer Confirmer) Tool {
	return Tool{
		Name:           "bash",
		Description:    "Run a shell command in the working directory. Times out after 30 seconds.",
		NeedsConfirm:   true,
		TruncateOutput: true,
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "The command to run with bash -c.",
				},
			},
			"required": []interface{}{"command"},
		},
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params struct {
				Command string `json:"command"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return "", err
			}
			command := strings.TrimSpace(params.Command)
			if command == "" {
				return "", fmt.Errorf("command must not be empty")
			}

			if err := runner.Check(command); err != nil {
				return "", err
			}

			if err := confirm(ctx, confirmer, ConfirmRequest{
				Tool:    "bash",
				Summary: "run: " + firstLine(command),
				Detail:  command,
			}); err != nil {
				return "", err
			}

			result, err := runner.Run(ctx, command)
			if err != nil {
				return "", err
			}

			output := result.Output()
			switch {
			case result.TimedOut:
				return output, fmt.Errorf("command timed out after %s", runner.Timeout())
			case result.ExitCode != 0:
				return output, fmt.Errorf("command exited with code %d", result.ExitCode)
			}
			if output == "" {
				output = "(no output)"
			}
			return output, nil
		},
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx] + " ..."
	}
	return s
}
