// Package agent implements the turn engine: the control loop that
// drives one user turn through streaming model calls, sequential tool
// execution behind the confirmation gate, retry, step budgeting, and
// cancellation.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ternlabs/tern/llm"
	"github.com/ternlabs/tern/tools"
)

// ErrTurnInFlight means RunTurn was called while another turn was
// still running. The engine is not reentrant; the caller must queue or
// reject concurrent submissions.
var ErrTurnInFlight = errors.New("a turn is already in flight")

// TurnStatus is the terminal state of a turn.
type TurnStatus string

const (
	// TurnCompleted means the model finished without further tool calls.
	TurnCompleted TurnStatus = "completed"
	// TurnLimitReached means the step budget was exhausted. Not an
	// error; the transcript up to the limit is committed.
	TurnLimitReached TurnStatus = "limit_reached"
	// TurnCancelled means the caller cancelled the context. The
	// in-progress step is discarded; prior steps remain committed.
	TurnCancelled TurnStatus = "cancelled"
	// TurnFailed means an unrecoverable provider error ended the turn.
	TurnFailed TurnStatus = "failed"
)

// Committed reports whether the transcript reached a state worth
// persisting. Cancelled and failed turns are not saved.
func (s TurnStatus) Committed() bool {
	return s == TurnCompleted || s == TurnLimitReached
}

// TurnResult is the outcome of one RunTurn call. Messages is the full
// updated history including every committed step of this turn.
type TurnResult struct {
	Status       TurnStatus
	Messages     []llm.Message
	Usage        llm.Usage
	FinishReason llm.FinishReason
	Steps        int
	Err          error
}

// Config holds turn engine settings.
type Config struct {
	Model               string
	SystemPrompt        string
	MaxTokens           int
	StepBudget          int           // default 20
	CoalesceInterval    time.Duration // default 50ms
	Retry               llm.RetryPolicy
	EnableLoopDetection bool
	LoopDetectionWindow int
	Logger              *slog.Logger
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		StepBudget:          20,
		CoalesceInterval:    50 * time.Millisecond,
		Retry:               llm.DefaultRetryPolicy(),
		EnableLoopDetection: true,
		LoopDetectionWindow: 10,
	}
}

// Engine drives turns against a provider and a tool registry. One
// Engine serves one interactive session; it is not reentrant.
type Engine struct {
	provider llm.StreamProvider
	registry *tools.Registry
	emitter  *EventEmitter
	config   Config
	logger   *slog.Logger
	running  atomic.Bool
}

// NewEngine creates an Engine. A nil emitter disables events.
func NewEngine(provider llm.StreamProvider, registry *tools.Registry, emitter *EventEmitter, config Config) *Engine {
	if config.StepBudget <= 0 {
		config.StepBudget = 20
	}
	if config.CoalesceInterval <= 0 {
		config.CoalesceInterval = 50 * time.Millisecond
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = llm.DefaultRetryPolicy()
	}
	if config.LoopDetectionWindow <= 0 {
		config.LoopDetectionWindow = 10
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider: provider,
		registry: registry,
		emitter:  emitter,
		config:   config,
		logger:   logger,
	}
}

// stepOutcome is one consumed model stream: the finalized assistant
// message, the tool calls it emitted in order, and usage.
type stepOutcome struct {
	assistant llm.Message
	toolCalls []llm.ToolCall
	finish    llm.FinishReason
	usage     llm.Usage
}

// RunTurn executes one user turn to a terminal state. history must end
// with the newly appended user message. The returned Messages slice
// contains history plus every committed step; on cancellation or
// failure the in-progress step is absent.
func (e *Engine) RunTurn(ctx context.Context, history []llm.Message) TurnResult {
	if !e.running.CompareAndSwap(false, true) {
		return TurnResult{Status: TurnFailed, Messages: history, Err: ErrTurnInFlight}
	}
	defer e.running.Store(false)

	messages := make([]llm.Message, len(history))
	copy(messages, history)

	var usage llm.Usage
	e.emitter.Emit(EventTurnStart, map[string]interface{}{
		"model": e.config.Model,
	})

	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return e.finish(TurnResult{Status: TurnCancelled, Messages: messages, Usage: usage, Steps: steps, Err: err})
		}

		if steps >= e.config.StepBudget {
			diag := fmt.Sprintf("Stopped: the step limit of %d model calls for this turn was reached before the task finished. The transcript above is complete up to that point; ask to continue if needed.", e.config.StepBudget)
			messages = append(messages, llm.AssistantMessage(diag))
			e.emitter.Emit(EventStepLimit, map[string]interface{}{
				"budget": e.config.StepBudget,
			})
			return e.finish(TurnResult{Status: TurnLimitReached, Messages: messages, Usage: usage, Steps: steps})
		}

		step, err := e.runStep(ctx, messages)
		if err != nil {
			if ctx.Err() != nil {
				return e.finish(TurnResult{Status: TurnCancelled, Messages: messages, Usage: usage, Steps: steps, Err: ctx.Err()})
			}
			e.emitter.Emit(EventError, map[string]interface{}{
				"error": err.Error(),
				"kind":  string(llm.KindOf(err)),
			})
			return e.finish(TurnResult{Status: TurnFailed, Messages: messages, Usage: usage, Steps: steps, Err: err})
		}
		steps++
		usage = usage.Add(step.usage)

		if len(step.toolCalls) == 0 {
			messages = append(messages, step.assistant)
			e.checkContextUsage(messages)
			return e.finish(TurnResult{
				Status:       TurnCompleted,
				Messages:     messages,
				Usage:        usage,
				FinishReason: step.finish,
				Steps:        steps,
			})
		}

		// The step commits atomically: the assistant message and all
		// its tool results, or nothing on cancellation.
		stepMsgs := []llm.Message{step.assistant}
		cancelled := false
		for _, call := range step.toolCalls {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			result := e.executeTool(ctx, call)
			stepMsgs = append(stepMsgs, llm.ToolResultMessage(call.ID, resultContent(result), result.IsError()))
		}
		if cancelled || ctx.Err() != nil {
			return e.finish(TurnResult{Status: TurnCancelled, Messages: messages, Usage: usage, Steps: steps, Err: context.Canceled})
		}
		messages = append(messages, stepMsgs...)

		if e.config.EnableLoopDetection && DetectLoop(messages, e.config.LoopDetectionWindow) {
			warning := fmt.Sprintf("The last %d tool calls follow a repeating pattern. Try a different approach.", e.config.LoopDetectionWindow)
			messages = append(messages, llm.UserMessage(warning))
			e.emitter.Emit(EventLoopDetected, map[string]interface{}{
				"message": warning,
			})
		}

		e.checkContextUsage(messages)
	}
}

func (e *Engine) finish(result TurnResult) TurnResult {
	e.emitter.Emit(EventTurnEnd, map[string]interface{}{
		"status":        string(result.Status),
		"steps":         result.Steps,
		"input_tokens":  result.Usage.InputTokens,
		"output_tokens": result.Usage.OutputTokens,
	})
	return result
}

// runStep performs one model call, retrying the whole stream on
// retryable provider errors. Partial text from a failed attempt is
// discarded; the UI is told to reset via EventTextReset.
func (e *Engine) runStep(ctx context.Context, messages []llm.Message) (stepOutcome, error) {
	policy := e.config.Retry
	userCallback := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		e.logger.Warn("retrying model call",
			"attempt", attempt,
			"delay", delay,
			"error", err)
		e.emitter.Emit(EventTextReset, nil)
		e.emitter.Emit(EventRetry, map[string]interface{}{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})
		if userCallback != nil {
			userCallback(attempt, delay, err)
		}
	}

	return llm.Retry(ctx, policy, func(ctx context.Context) (stepOutcome, error) {
		return e.consumeStream(ctx, messages)
	})
}

// consumeStream opens one provider stream and drains it into a
// stepOutcome, emitting coalesced text batches along the way.
func (e *Engine) consumeStream(ctx context.Context, messages []llm.Message) (stepOutcome, error) {
	var zero stepOutcome

	req := llm.Request{
		Model:     e.config.Model,
		System:    e.config.SystemPrompt,
		Messages:  messages,
		Tools:     e.registry.Definitions(),
		MaxTokens: e.config.MaxTokens,
	}

	ch, err := e.provider.Stream(ctx, req)
	if err != nil {
		return zero, err
	}

	var out stepOutcome
	var text strings.Builder
	batcher := newTextBatcher(e.emitter, e.config.CoalesceInterval)

	for event := range ch {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		switch event.Type {
		case llm.TextDelta:
			text.WriteString(event.Delta)
			batcher.Add(event.Delta)
		case llm.ToolCallEnd:
			if event.ToolCall != nil {
				out.toolCalls = append(out.toolCalls, *event.ToolCall)
			}
		case llm.StreamFinish:
			out.finish = event.FinishReason
			if event.Usage != nil {
				out.usage = out.usage.Add(*event.Usage)
			}
		case llm.StreamError:
			if event.Error != nil {
				return zero, event.Error
			}
			return zero, fmt.Errorf("stream ended with unspecified error")
		}
	}

	batcher.Flush()

	var parts []llm.ContentPart
	if text.Len() > 0 {
		parts = append(parts, llm.TextPart(text.String()))
	}
	for _, call := range out.toolCalls {
		parts = append(parts, llm.ToolCallPart(call.ID, call.Name, call.Arguments))
	}
	out.assistant = llm.Message{Role: llm.RoleAssistant, Content: parts}

	e.emitter.Emit(EventTextFinal, map[string]interface{}{
		"text": text.String(),
	})
	return out, nil
}

// executeTool runs one tool call through the registry, which handles
// validation, the confirmation gate, and panic recovery.
func (e *Engine) executeTool(ctx context.Context, call llm.ToolCall) tools.Result {
	e.emitter.Emit(EventToolStart, map[string]interface{}{
		"tool":      call.Name,
		"call_id":   call.ID,
		"arguments": string(call.Arguments),
	})
	start := time.Now()

	result := e.registry.Execute(ctx, call.Name, call.Arguments)

	// The event carries the full output; only the tool-result message
	// fed back to the model is truncated.
	output := result.Content
	if result.Display != "" {
		output = result.Display
	}
	data := map[string]interface{}{
		"tool":        call.Name,
		"call_id":     call.ID,
		"duration_ms": time.Since(start).Milliseconds(),
		"output":      output,
	}
	if result.IsError() {
		data["error"] = result.Error
		e.logger.Debug("tool failed", "tool", call.Name, "error", result.Error)
	}
	e.emitter.Emit(EventToolEnd, data)
	return result
}

// resultContent renders a tool result for the model. Failures lead
// with the error message; any partial output follows.
func resultContent(result tools.Result) string {
	if !result.IsError() {
		return result.Content
	}
	if result.Content == "" {
		return result.Error
	}
	return result.Error + "\n" + result.Content
}

// checkContextUsage emits a warning when the transcript approaches the
// model's context window (chars/4 token estimate, 80% threshold).
func (e *Engine) checkContextUsage(messages []llm.Message) {
	info := llm.GetModelInfo(e.config.Model)
	if info == nil || info.ContextWindow <= 0 {
		return
	}

	totalChars := 0
	for _, msg := range messages {
		for _, part := range msg.Content {
			totalChars += len(part.Text)
			if part.ToolResult != nil {
				totalChars += len(part.ToolResult.Content)
			}
			if part.ToolCall != nil {
				totalChars += len(part.ToolCall.Arguments)
			}
		}
	}

	approxTokens := totalChars / 4
	threshold := int(float64(info.ContextWindow) * 0.8)
	if approxTokens > threshold {
		pct := int(float64(approxTokens) / float64(info.ContextWindow) * 100)
		e.emitter.Emit(EventWarning, map[string]interface{}{
			"message": fmt.Sprintf("Context usage at ~%d%% of the model's window", pct),
		})
	}
}

// textBatcher coalesces text deltas so the event channel sees at most
// one batch per interval. Batching never changes the text itself; the
// concatenation of all batches equals the full stream text.
type textBatcher struct {
	emitter   *EventEmitter
	interval  time.Duration
	pending   strings.Builder
	lastFlush time.Time
}

func newTextBatcher(emitter *EventEmitter, interval time.Duration) *textBatcher {
	return &textBatcher{
		emitter:   emitter,
		interval:  interval,
		lastFlush: time.Now(),
	}
}

func (b *textBatcher) Add(delta string) {
	b.pending.WriteString(delta)
	if time.Since(b.lastFlush) >= b.interval {
		b.Flush()
	}
}

func (b *textBatcher) Flush() {
	if b.pending.Len() == 0 {
		return
	}
	b.emitter.Emit(EventTextBatch, map[string]interface{}{
		"text": b.pending.String(),
	})
	b.pending.Reset()
	b.lastFlush = time.Now()
}
