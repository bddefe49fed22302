package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/ternlabs/tern/agent"
	"github.com/ternlabs/tern/config"
	"github.com/ternlabs/tern/llm"
	"github.com/ternlabs/tern/session"
	"github.com/ternlabs/tern/shell"
	"github.com/ternlabs/tern/tools"
)

// repl drives the interactive loop: read a prompt, run a turn, render
// its events, persist the transcript on committed outcomes.
type repl struct {
	cfg       config.Config
	workDir   string
	store     *session.Store
	engine    *agent.Engine
	emitter   *agent.EventEmitter
	gate      *agent.Gate
	sessionID string
	messages  []llm.Message
	in        *bufio.Reader
	out       io.Writer
}

func runREPL(cfg config.Config, resumeID string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	store, err := session.NewStore(cfg.SessionRoot, workDir)
	if err != nil {
		return err
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	r := &repl{
		cfg:     cfg,
		workDir: workDir,
		store:   store,
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}

	if resumeID != "" {
		entry, messages, err := store.Load(resumeID)
		if err != nil {
			return err
		}
		r.sessionID = entry.ID
		r.messages = messages
		fmt.Fprintf(r.out, "%s\n", renderDim(fmt.Sprintf("resumed session %s (%d messages)", session.ShortID(entry.ID), len(messages))))
	} else {
		r.sessionID = session.NewID()
	}

	// SkipConfirm only holds when no human can answer the prompt.
	autoApprove := cfg.SkipConfirm && !isTerminal(os.Stdin)
	r.gate = agent.NewGate(autoApprove)

	runner := shell.NewRunner(workDir)
	if cfg.CommandTimeoutSeconds > 0 {
		runner.SetTimeout(time.Duration(cfg.CommandTimeoutSeconds) * time.Second)
	}
	registry := tools.NewDefaultRegistry(workDir, runner, r.gate)

	r.emitter = agent.NewEventEmitter(256)
	engineCfg := agent.DefaultConfig()
	engineCfg.Model = resolveModelID(cfg.Model)
	engineCfg.SystemPrompt = agent.BuildSystemPrompt(workDir, engineCfg.Model)
	engineCfg.MaxTokens = cfg.MaxTokens
	if cfg.StepBudget > 0 {
		engineCfg.StepBudget = cfg.StepBudget
	}
	r.engine = agent.NewEngine(provider, registry, r.emitter, engineCfg)

	defer r.emitter.Close()
	return r.loop()
}

func (r *repl) loop() error {
	fmt.Fprintf(r.out, "%s\n", renderDim(fmt.Sprintf("tern %s | %s | session %s", version, r.cfg.Model, session.ShortID(r.sessionID))))
	fmt.Fprintf(r.out, "%s\n", renderDim(`type a prompt, "exit" to quit`))

	for {
		fmt.Fprint(r.out, renderPrompt())
		line, err := r.in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		r.messages = append(r.messages, llm.UserMessage(line))
		result := r.runTurn()
		r.messages = result.Messages

		switch result.Status {
		case agent.TurnCancelled:
			fmt.Fprintf(r.out, "\n%s\n", renderDim("interrupted"))
		case agent.TurnFailed:
			fmt.Fprintf(r.out, "\n%s\n", renderError(fmt.Sprintf("turn failed (%s): %v", llm.KindOf(result.Err), result.Err)))
		}

		if result.Status.Committed() {
			if err := r.store.Save(r.sessionID, r.messages); err != nil {
				slog.Warn("saving session failed", "error", err)
			}
		}
	}
}

// runTurn executes one turn in the background while the foreground
// renders events and answers confirmation prompts. Ctrl-C cancels the
// turn, not the process.
func (r *repl) runTurn() agent.TurnResult {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	done := make(chan agent.TurnResult, 1)
	go func() {
		done <- r.engine.RunTurn(ctx, r.messages)
	}()

	for {
		select {
		case result := <-done:
			r.drainEvents()
			return result
		case event := <-r.emitter.Events():
			r.renderEvent(event)
		case pc := <-r.gate.Requests():
			pc.Resolve(r.promptConfirmation(ctx, pc.Request))
		}
	}
}

// drainEvents renders whatever is still buffered after the turn ended.
func (r *repl) drainEvents() {
	for {
		select {
		case event := <-r.emitter.Events():
			r.renderEvent(event)
		default:
			return
		}
	}
}

func (r *repl) renderEvent(event agent.Event) {
	switch event.Kind {
	case agent.EventTextBatch:
		fmt.Fprint(r.out, dataString(event, "text"))
	case agent.EventTextFinal:
		if dataString(event, "text") != "" {
			fmt.Fprintln(r.out)
		}
	case agent.EventTextReset:
		fmt.Fprintf(r.out, "\n%s\n", renderDim("(discarding partial response)"))
	case agent.EventToolStart:
		fmt.Fprintf(r.out, "%s\n", renderToolHeader(dataString(event, "tool"), dataString(event, "arguments")))
	case agent.EventToolEnd:
		if errMsg := dataString(event, "error"); errMsg != "" {
			fmt.Fprintf(r.out, "%s\n", renderError(errMsg))
		}
	case agent.EventRetry:
		fmt.Fprintf(r.out, "%s\n", renderDim(fmt.Sprintf("retrying in %vms (attempt %v): %s",
			event.Data["delay_ms"], event.Data["attempt"], dataString(event, "error"))))
	case agent.EventStepLimit:
		fmt.Fprintf(r.out, "%s\n", renderWarning(fmt.Sprintf("step limit reached (%v model calls)", event.Data["budget"])))
	case agent.EventLoopDetected:
		fmt.Fprintf(r.out, "%s\n", renderWarning(dataString(event, "message")))
	case agent.EventWarning:
		fmt.Fprintf(r.out, "%s\n", renderWarning(dataString(event, "message")))
	case agent.EventError:
		fmt.Fprintf(r.out, "%s\n", renderError(dataString(event, "error")))
	}
}

// promptConfirmation renders the pending action and reads y/n from the
// terminal. A cancelled context denies without waiting for input.
func (r *repl) promptConfirmation(ctx context.Context, req tools.ConfirmRequest) bool {
	fmt.Fprint(r.out, renderConfirm(req))

	answer := make(chan bool, 1)
	go func() {
		line, err := r.in.ReadString('\n')
		if err != nil {
			answer <- false
			return
		}
		line = strings.ToLower(strings.TrimSpace(line))
		answer <- line == "y" || line == "yes"
	}()

	select {
	case approved := <-answer:
		return approved
	case <-ctx.Done():
		fmt.Fprintf(r.out, "\n%s\n", renderDim("denied (interrupted)"))
		return false
	}
}

func dataString(event agent.Event, key string) string {
	if event.Data == nil {
		return ""
	}
	s, _ := event.Data[key].(string)
	return s
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
