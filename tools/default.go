package tools

import "github.com/ternlabs/tern/shell"

// NewDefaultRegistry builds the built-in tool set rooted at workDir.
// Mutating tools (edit, write, bash) route through the given
// Confirmer; a nil Confirmer auto-approves.
func NewDefaultRegistry(workDir string, runner *shell.Runner, confirmer Confirmer) *Registry {
	if runner == nil {
		runner = shell.NewRunner(workDir)
	}

	reg := NewRegistry()
	reg.MustRegister(NewReadTool(workDir))
	reg.MustRegister(NewGlobTool(workDir))
	reg.MustRegister(NewGrepTool(workDir))
	reg.MustRegister(NewEditTool(workDir, confirmer))
	reg.MustRegister(NewWriteTool(workDir, confirmer))
	reg.MustRegister(NewBashTool(runner, confirmer))
	reg.MustRegister(NewWebFetchTool())
	reg.MustRegister(NewWebSearchTool())
	return reg
}
