package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ternlabs/tern/shell"
)

// recordingConfirmer approves or denies everything and remembers the
// requests it saw.
type recordingConfirmer struct {
	approve  bool
	requests []ConfirmRequest
}

func (c *recordingConfirmer) Confirm(ctx context.Context, req ConfirmRequest) (bool, error) {
	c.requests = append(c.requests, req)
	return c.approve, nil
}

func TestEditToolAppliesOnApproval(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "f.txt", "hello world\n")
	gate := &recordingConfirmer{approve: true}

	out, err := runTool(t, NewEditTool(dir, gate), `{"path":"f.txt","old_string":"world","new_string":"there"}`)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !strings.Contains(out, "Replaced 1 occurrence") {
		t.Errorf("unexpected output: %q", out)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "hello there\n" {
		t.Errorf("file not edited: %q", data)
	}

	if len(gate.requests) != 1 {
		t.Fatalf("expected 1 confirmation request, got %d", len(gate.requests))
	}
	req := gate.requests[0]
	if req.Tool != "edit" {
		t.Errorf("unexpected tool in request: %s", req.Tool)
	}
	if !strings.Contains(req.Detail, "- hello world") || !strings.Contains(req.Detail, "+ hello there") {
		t.Errorf("diff missing from confirmation detail: %q", req.Detail)
	}
}

func TestEditToolDeniedLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "f.txt", "hello world\n")
	gate := &recordingConfirmer{approve: false}

	_, err := runTool(t, NewEditTool(dir, gate), `{"path":"f.txt","old_string":"world","new_string":"there"}`)
	if err == nil {
		t.Fatal("expected denial error")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "hello world\n" {
		t.Errorf("file changed despite denial: %q", data)
	}
}

func TestEditToolAmbiguousSkipsConfirmation(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "f.txt", "dup\ndup\n")
	gate := &recordingConfirmer{approve: true}

	_, err := runTool(t, NewEditTool(dir, gate), `{"path":"f.txt","old_string":"dup","new_string":"x"}`)
	if err == nil {
		t.Fatal("expected ambiguity error")
	}
	if len(gate.requests) != 0 {
		t.Error("a rejected edit must not reach the confirmation gate")
	}
}

func TestWriteToolCreatesWithConfirmation(t *testing.T) {
	dir := t.TempDir()
	gate := &recordingConfirmer{approve: true}

	out, err := runTool(t, NewWriteTool(dir, gate), `{"path":"new/file.txt","content":"data\n"}`)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(out, "Wrote 5 bytes") {
		t.Errorf("unexpected output: %q", out)
	}

	if len(gate.requests) != 1 || !strings.Contains(gate.requests[0].Summary, "create") {
		t.Errorf("expected create summary, got %+v", gate.requests)
	}

	data, err := os.ReadFile(filepath.Join(dir, "new", "file.txt"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "data\n" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestBashToolDeniedBypassesGate(t *testing.T) {
	dir := t.TempDir()
	gate := &recordingConfirmer{approve: true}
	tool := NewBashTool(shell.NewRunner(dir), gate)

	_, err := runTool(t, tool, `{"command":"rm -rf /"}`)
	if err == nil {
		t.Fatal("expected denial")
	}
	if len(gate.requests) != 0 {
		t.Error("denylisted command must be rejected before confirmation")
	}
}

func TestBashToolRunsOnApproval(t *testing.T) {
	dir := t.TempDir()
	gate := &recordingConfirmer{approve: true}
	tool := NewBashTool(shell.NewRunner(dir), gate)

	out, err := runTool(t, tool, `{"command":"echo hi"}`)
	if err != nil {
		t.Fatalf("bash: %v", err)
	}
	if !strings.Contains(out, "hi") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestBashToolExitCodeIsError(t *testing.T) {
	dir := t.TempDir()
	tool := NewBashTool(shell.NewRunner(dir), AutoApprove{})

	out, err := runTool(t, tool, `{"command":"echo partial; exit 2"}`)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "code 2") {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "partial") {
		t.Errorf("output lost on failure: %q", out)
	}
}

func TestDefaultRegistryToolSet(t *testing.T) {
	reg := NewDefaultRegistry(t.TempDir(), nil, AutoApprove{})
	want := []string{"bash", "edit", "glob", "grep", "read", "webFetch", "webSearch", "write"}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d tools, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tool %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	for _, name := range []string{"edit", "write", "bash"} {
		if !reg.Get(name).NeedsConfirm {
			t.Errorf("%s must require confirmation", name)
		}
	}
	for _, name := range []string{"read", "glob", "grep"} {
		if reg.Get(name).NeedsConfirm {
			t.Errorf("%s must not require confirmation", name)
		}
	}
}
