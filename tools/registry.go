// Package tools implements the tool registry and the built-in tools
// the model can call: file reads and mutations, glob and grep search,
// sandboxed shell execution, and web fetch/search. Tool failures are
// results handed back to the model, never process crashes.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ternlabs/tern/llm"
	"github.com/ternlabs/tern/shell"
)

// Result is the outcome of one tool execution. A non-empty Error marks
// it as failed; Content still carries whatever output was produced.
// Display holds the full untruncated output when Content was cut down
// for the model; it is never fed back to the model.
type Result struct {
	Content string `json:"content,omitempty"`
	Display string `json:"display,omitempty"`
	Error   string `json:"error,omitempty"`
}

// IsError reports whether the execution failed.
func (r Result) IsError() bool {
	return r.Error != ""
}

// Errorf builds a failed Result.
func Errorf(format string, args ...interface{}) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// RunFunc executes a tool with validated JSON arguments.
type RunFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Tool pairs a definition with its executor. NeedsConfirm marks tools
// whose Run mutates state and must pass the confirmation gate.
// TruncateOutput trims the model-facing content of long outputs while
// keeping the full text in Result.Display for the host.
type Tool struct {
	Name           string
	Description    string
	Parameters     map[string]interface{}
	NeedsConfirm   bool
	TruncateOutput bool
	Run            RunFunc

	schema *jsonschema.Schema
}

// Registry manages tool registration, lookup and execution.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds or replaces a tool, compiling its parameter schema.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if tool.Run == nil {
		return fmt.Errorf("tool %s has no run function", tool.Name)
	}

	raw, err := json.Marshal(tool.Parameters)
	if err != nil {
		return fmt.Errorf("marshal schema for %s: %w", tool.Name, err)
	}
	schema, err := jsonschema.CompileString(tool.Name+".json", string(raw))
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", tool.Name, err)
	}
	tool.schema = schema

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = &tool
	return nil
}

// MustRegister registers a tool and panics on schema errors. Built-in
// tools use it; their schemas are static.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get returns a registered tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the names of all registered tools, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns all tool definitions in name order for the
// model request.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, llm.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs the named tool. Unknown tools, invalid arguments, run
// errors and panics all come back as failed Results.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (result Result) {
	tool := r.Get(name)
	if tool == nil {
		return Errorf("unknown tool: %s", name)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var decoded interface{}
	if err := json.Unmarshal(args, &decoded); err != nil {
		return Errorf("invalid arguments for %s: %v", name, err)
	}
	if err := tool.schema.Validate(decoded); err != nil {
		return Errorf("arguments for %s failed validation: %v", name, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = Errorf("tool %s panicked: %v", name, rec)
		}
	}()

	content, err := tool.Run(ctx, args)
	result = Result{Content: content}
	if err != nil {
		result.Error = err.Error()
	}
	if tool.TruncateOutput {
		if truncated := shell.TruncateForModel(result.Content); truncated != result.Content {
			result.Display = result.Content
			result.Content = truncated
		}
	}
	return result
}
