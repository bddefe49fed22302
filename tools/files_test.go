package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func runTool(t *testing.T, tool Tool, args string) (string, error) {
	t.Helper()
	return tool.Run(context.Background(), json.RawMessage(args))
}

func TestReadToolLineNumbers(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")

	out, err := runTool(t, NewReadTool(dir), `{"path":"main.go"}`)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(out, "1 | package main") {
		t.Errorf("expected line-numbered output, got %q", out)
	}
}

func TestReadToolOffsetLimit(t *testing.T) {
	dir := t.TempDir()
	var content strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&content, "line%d\n", i)
	}
	writeTestFile(t, dir, "f.txt", content.String())

	out, err := runTool(t, NewReadTool(dir), `{"path":"f.txt","offset":3,"limit":2}`)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(out, "3 | line3") || !strings.Contains(out, "4 | line4") {
		t.Errorf("offset/limit not applied: %q", out)
	}
	if strings.Contains(out, "line5") {
		t.Errorf("limit exceeded: %q", out)
	}
}

func TestReadToolDenyList(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, ".env", "SECRET=x\n")
	writeTestFile(t, dir, ".env.production", "SECRET=y\n")
	writeTestFile(t, dir, ".ssh/id_rsa", "PRIVATE KEY\n")
	writeTestFile(t, dir, ".aws/credentials", "aws_secret\n")
	writeTestFile(t, dir, "server.pem", "CERT\n")

	tool := NewReadTool(dir)
	for _, path := range []string{".env", ".env.production", ".ssh/id_rsa", ".aws/credentials", "server.pem"} {
		_, err := runTool(t, tool, `{"path":"`+path+`"}`)
		if err == nil {
			t.Errorf("expected %s to be blocked", path)
		} else if !strings.Contains(err.Error(), "blocked") {
			t.Errorf("unexpected error for %s: %v", path, err)
		}
	}

	// Ordinary files still read fine.
	writeTestFile(t, dir, "env.go", "package env\n")
	if _, err := runTool(t, tool, `{"path":"env.go"}`); err != nil {
		t.Errorf("ordinary file blocked: %v", err)
	}
}

func TestGlobTool(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.go", "package a\n")
	writeTestFile(t, dir, "sub/b.go", "package b\n")
	writeTestFile(t, dir, "sub/c.txt", "text\n")

	out, err := runTool(t, NewGlobTool(dir), `{"pattern":"**/*.go"}`)
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if !strings.Contains(out, "a.go") || !strings.Contains(out, "sub/b.go") {
		t.Errorf("missing matches: %q", out)
	}
	if strings.Contains(out, "c.txt") {
		t.Errorf("unexpected match: %q", out)
	}
}

func TestGlobToolNoMatches(t *testing.T) {
	dir := t.TempDir()
	out, err := runTool(t, NewGlobTool(dir), `{"pattern":"**/*.rs"}`)
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if !strings.Contains(out, "no files match") {
		t.Errorf("expected no-match message, got %q", out)
	}
}

func TestGrepTool(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "x.go", "package x\n\nfunc Needle() {}\n")

	out, err := runTool(t, NewGrepTool(dir), `{"pattern":"Needle"}`)
	if err != nil {
		t.Fatalf("grep: %v", err)
	}
	if !strings.Contains(out, "x.go") {
		t.Errorf("expected match in x.go, got %q", out)
	}
}
