package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnvironmentContext(t *testing.T) {
	dir := t.TempDir()
	got := EnvironmentContext(dir, "claude-sonnet-4-5")

	for _, want := range []string{
		"<environment>",
		"Working directory: " + dir,
		"Is git repository: false",
		"Model: claude-sonnet-4-5",
		"</environment>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
}

func TestDiscoverProjectDocs(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "pkg", "server")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "AGENTS.md"), []byte("root rules"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "AGENTS.md"), []byte("server rules"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := DiscoverProjectDocs(sub)
	if !strings.Contains(got, "root rules") {
		t.Errorf("missing root doc:\n%s", got)
	}
	if !strings.Contains(got, "server rules") {
		t.Errorf("missing nested doc:\n%s", got)
	}
	if strings.Index(got, "root rules") > strings.Index(got, "server rules") {
		t.Error("root doc should come before nested doc")
	}
}

func TestDiscoverProjectDocsEmpty(t *testing.T) {
	if got := DiscoverProjectDocs(t.TempDir()); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestDiscoverProjectDocsTruncation(t *testing.T) {
	root := t.TempDir()
	big := strings.Repeat("x", maxProjectDocBytes+100)
	if err := os.WriteFile(filepath.Join(root, "AGENTS.md"), []byte(big), 0o644); err != nil {
		t.Fatal(err)
	}

	got := DiscoverProjectDocs(root)
	if !strings.Contains(got, "truncated at 32KB") {
		t.Error("expected truncation marker")
	}
}

func TestCollectPathHierarchy(t *testing.T) {
	got := collectPathHierarchy("/a", "/a/b/c")
	want := []string{"/a", "/a/b", "/a/b/c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dirs[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if got := collectPathHierarchy("/a", "/a"); len(got) != 1 || got[0] != "/a" {
		t.Errorf("same dir: %v", got)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	dir := t.TempDir()
	got := BuildSystemPrompt(dir, "claude-sonnet-4-5")

	if !strings.Contains(got, "coding assistant") {
		t.Error("missing base instructions")
	}
	if !strings.Contains(got, "<environment>") {
		t.Error("missing environment block")
	}
}
