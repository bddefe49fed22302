// Package anthropic implements llm.StreamProvider over the official
// Anthropic SDK, translating the SSE event stream into llm.StreamEvent
// values.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ternlabs/tern/llm"
)

// maxEmptyStreamEvents guards against a malformed stream that keeps
// delivering events none of which carry content.
const maxEmptyStreamEvents = 300

const defaultMaxTokens = 8192

// Adapter is an llm.StreamProvider backed by the Anthropic API.
type Adapter struct {
	client       sdk.Client
	defaultModel string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithDefaultModel sets the model used when a request leaves Model empty.
func WithDefaultModel(model string) Option {
	return func(a *Adapter) {
		a.defaultModel = model
	}
}

// New creates an Adapter. If apiKey is empty the SDK reads
// ANTHROPIC_API_KEY from the environment.
func New(apiKey string, opts ...Option) *Adapter {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	a := &Adapter{
		client:       sdk.NewClient(clientOpts...),
		defaultModel: "claude-sonnet-4-5",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider identifier.
func (a *Adapter) Name() string {
	return "anthropic"
}

// Stream opens a streaming model call and returns its event channel.
func (a *Adapter) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	params, err := a.buildParams(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamEvent, 64)
	go func() {
		defer close(ch)
		stream := a.client.Messages.NewStreaming(ctx, params)
		a.processStream(ctx, stream, ch)
	}()
	return ch, nil
}

func (a *Adapter) buildParams(req llm.Request) (sdk.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = a.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	messages, err := convertMessages(req.Messages)
	if err != nil {
		return sdk.MessageNewParams{}, err
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return sdk.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

// processStream translates SDK events into llm.StreamEvent values.
// Tool input JSON arrives as fragments and is assembled until the
// content block closes.
func (a *Adapter) processStream(ctx context.Context, stream interface {
	Next() bool
	Current() sdk.MessageStreamEventUnion
	Err() error
}, ch chan<- llm.StreamEvent) {
	ch <- llm.StreamEvent{Type: llm.StreamStart}

	var usage llm.Usage
	var currentTool *llm.ToolCall
	var currentInput strings.Builder
	finish := llm.FinishStop
	emptyEvents := 0

	for stream.Next() {
		if ctx.Err() != nil {
			ch <- llm.StreamEvent{Type: llm.StreamError, Error: ctx.Err()}
			return
		}

		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			if start.Message.Usage.InputTokens > 0 {
				usage.InputTokens = int(start.Message.Usage.InputTokens)
			}
			processed = true

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				currentTool = &llm.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				currentInput.Reset()
				ch <- llm.StreamEvent{
					Type:     llm.ToolCallStart,
					ToolCall: &llm.ToolCall{ID: toolUse.ID, Name: toolUse.Name},
				}
			}
			processed = true

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					ch <- llm.StreamEvent{Type: llm.TextDelta, Delta: delta.Text}
					processed = true
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					ch <- llm.StreamEvent{Type: llm.ThinkingDelta, Delta: delta.Thinking}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					currentInput.WriteString(delta.PartialJSON)
					if currentTool != nil {
						ch <- llm.StreamEvent{
							Type:     llm.ToolCallDelta,
							Delta:    delta.PartialJSON,
							ToolCall: &llm.ToolCall{ID: currentTool.ID, Name: currentTool.Name},
						}
					}
					processed = true
				}
			}

		case "content_block_stop":
			if currentTool != nil {
				args := currentInput.String()
				if args == "" {
					args = "{}"
				}
				currentTool.Arguments = json.RawMessage(args)
				ch <- llm.StreamEvent{Type: llm.ToolCallEnd, ToolCall: currentTool}
				currentTool = nil
			}
			processed = true

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				usage.OutputTokens = int(md.Usage.OutputTokens)
			}
			switch md.Delta.StopReason {
			case "tool_use":
				finish = llm.FinishToolCalls
			case "max_tokens":
				finish = llm.FinishLength
			case "end_turn", "stop_sequence":
				finish = llm.FinishStop
			}
			processed = true

		case "message_stop":
			ch <- llm.StreamEvent{Type: llm.StreamFinish, FinishReason: finish, Usage: &usage}
			return

		case "error":
			ch <- llm.StreamEvent{
				Type:  llm.StreamError,
				Error: wrapError(errors.New("server reported a stream error")),
			}
			return
		}

		if processed {
			emptyEvents = 0
		} else {
			emptyEvents++
			if emptyEvents >= maxEmptyStreamEvents {
				ch <- llm.StreamEvent{
					Type:  llm.StreamError,
					Error: wrapError(fmt.Errorf("stream malformed: %d consecutive empty events", emptyEvents)),
				}
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		ch <- llm.StreamEvent{Type: llm.StreamError, Error: wrapError(err)}
		return
	}
	// Stream ended without message_stop.
	ch <- llm.StreamEvent{Type: llm.StreamFinish, FinishReason: finish, Usage: &usage}
}

// convertMessages maps conversation messages to the SDK's format.
// Assistant tool calls become tool_use blocks; tool results become
// tool_result blocks on a user message.
func convertMessages(messages []llm.Message) ([]sdk.MessageParam, error) {
	var result []sdk.MessageParam
	for _, msg := range messages {
		var blocks []sdk.ContentBlockParamUnion
		for _, part := range msg.Content {
			switch part.Kind {
			case llm.ContentText:
				if part.Text != "" {
					blocks = append(blocks, sdk.NewTextBlock(part.Text))
				}
			case llm.ContentToolCall:
				if part.ToolCall != nil {
					var input any
					if err := json.Unmarshal(part.ToolCall.Arguments, &input); err != nil {
						input = map[string]any{}
					}
					blocks = append(blocks, sdk.NewToolUseBlock(part.ToolCall.ID, input, part.ToolCall.Name))
				}
			case llm.ContentToolResult:
				if part.ToolResult != nil {
					blocks = append(blocks, sdk.NewToolResultBlock(
						part.ToolResult.ToolCallID,
						part.ToolResult.Content,
						part.ToolResult.IsError,
					))
				}
			}
		}
		if len(blocks) == 0 {
			continue
		}

		switch msg.Role {
		case llm.RoleAssistant:
			result = append(result, sdk.NewAssistantMessage(blocks...))
		case llm.RoleUser, llm.RoleTool:
			result = append(result, sdk.NewUserMessage(blocks...))
		case llm.RoleSystem:
			// System content travels in params.System, not the history.
		default:
			return nil, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}
	return result, nil
}

func convertTools(tools []llm.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	var result []sdk.ToolUnionParam
	for _, tool := range tools {
		raw, err := json.Marshal(tool.Parameters)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for tool %s: %w", tool.Name, err)
		}
		var schema sdk.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("convert schema for tool %s: %w", tool.Name, err)
		}

		param := sdk.ToolUnionParamOfTool(schema, tool.Name)
		if tool.Description != "" {
			param.OfTool.Description = sdk.String(tool.Description)
		}
		result = append(result, param)
	}
	return result, nil
}

// wrapError classifies an SDK error into an llm.ProviderError.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Error()
		var payload struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if raw := apiErr.RawJSON(); raw != "" {
			if json.Unmarshal([]byte(raw), &payload) == nil && payload.Error.Message != "" {
				message = payload.Error.Message
			}
		}
		return llm.ErrorFromStatusCode("anthropic", apiErr.StatusCode, message, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &llm.ProviderError{
		Kind:     llm.KindNetwork,
		Provider: "anthropic",
		Message:  err.Error(),
		Cause:    err,
	}
}
