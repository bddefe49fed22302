package llm

import (
	"encoding/json"
	"testing"
)

func TestMessageTextContent(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Content: []ContentPart{
			TextPart("hello "),
			ToolCallPart("call_1", "read", json.RawMessage(`{}`)),
			TextPart("world"),
		},
	}
	if got := msg.TextContent(); got != "hello world" {
		t.Errorf("expected %q, got %q", "hello world", got)
	}
}

func TestMessageToolCalls(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Content: []ContentPart{
			TextPart("running a command"),
			ToolCallPart("call_1", "bash", json.RawMessage(`{"command":"ls"}`)),
			ToolCallPart("call_2", "read", json.RawMessage(`{"path":"main.go"}`)),
		},
	}
	calls := msg.ToolCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(calls))
	}
	if calls[0].Name != "bash" || calls[1].Name != "read" {
		t.Errorf("unexpected call order: %s, %s", calls[0].Name, calls[1].Name)
	}
}

func TestUsageAdd(t *testing.T) {
	a := Usage{InputTokens: 100, OutputTokens: 20}
	b := Usage{InputTokens: 150, OutputTokens: 30}
	sum := a.Add(b)
	if sum.InputTokens != 250 || sum.OutputTokens != 50 {
		t.Errorf("unexpected sum: %+v", sum)
	}
}

func TestToolResultMessageRoundTrip(t *testing.T) {
	msg := ToolResultMessage("call_9", "42 files", false)
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Role != RoleTool {
		t.Errorf("expected tool role, got %s", back.Role)
	}
	if back.Content[0].ToolResult == nil || back.Content[0].ToolResult.Content != "42 files" {
		t.Errorf("tool result did not survive round trip: %+v", back.Content[0])
	}
}
