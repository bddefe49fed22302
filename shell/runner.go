// Package shell executes model-requested commands inside a guarded
// subprocess: a fixed denylist, a working-directory boundary check, a
// wall-clock timeout, an output cap, and sensitive-environment
// filtering.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"
)

const (
	// DefaultTimeout bounds a single command's wall clock time.
	DefaultTimeout = 30 * time.Second

	// MaxOutputBytes caps captured stdout+stderr.
	MaxOutputBytes = 10 * 1024 * 1024
)

// ErrDenied means the command matched the safety denylist or tried to
// leave the working-directory boundary. Denied commands never reach a
// subprocess.
var ErrDenied = errors.New("command denied")

// denyPatterns match commands that are rejected outright regardless of
// confirmation: recursive deletion of the filesystem root or home,
// piping downloads into a shell, fork bombs, raw block-device writes,
// and filesystem formatting.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+(-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*|-[a-zA-Z]*f[a-zA-Z]*r[a-zA-Z]*)\s+(/|~|\$HOME)\s*(;|&|\||$)`),
	regexp.MustCompile(`\b(curl|wget)\b[^|;&]*\|\s*(sudo\s+)?(ba|z|da)?sh\b`),
	regexp.MustCompile(`:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`),
	regexp.MustCompile(`\bdd\b[^;|&]*\bof=/dev/(sd|hd|nvme|vd|disk)`),
	regexp.MustCompile(`\bmkfs(\.[a-z0-9]+)?\b`),
}

// sensitiveEnvPatterns are case-insensitive suffixes for environment
// variables excluded from subprocesses.
var sensitiveEnvPatterns = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

// safeEnvVars are always included regardless of filtering.
var safeEnvVars = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "TERM": true, "TMPDIR": true,
	"GOPATH": true, "GOROOT": true, "CARGO_HOME": true,
	"NVM_DIR": true, "RUSTUP_HOME": true, "PYENV_ROOT": true,
	"XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true, "XDG_CACHE_HOME": true,
}

// Result holds the outcome of a command execution.
type Result struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	Truncated  bool   `json:"truncated"`
	DurationMs int64  `json:"duration_ms"`
}

// Output returns combined stdout and stderr.
func (r Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Runner executes commands rooted at a working directory.
type Runner struct {
	workDir string
	timeout time.Duration
}

// NewRunner creates a Runner rooted at workDir. An empty workDir means
// the process working directory.
func NewRunner(workDir string) *Runner {
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	return &Runner{workDir: workDir, timeout: DefaultTimeout}
}

// SetTimeout overrides the default command timeout.
func (r *Runner) SetTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// WorkDir returns the runner's root directory.
func (r *Runner) WorkDir() string {
	return r.workDir
}

// Timeout returns the current command timeout.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Check validates a command against the denylist and the directory
// boundary without running it.
func (r *Runner) Check(command string) error {
	for _, pattern := range denyPatterns {
		if pattern.MatchString(command) {
			return fmt.Errorf("%w: matches blocked pattern %q", ErrDenied, pattern.String())
		}
	}
	if err := checkCdBoundary(command, r.workDir); err != nil {
		return err
	}
	return nil
}

// Run executes the command under bash -c after Check passes. The
// subprocess gets its own process group so a timeout kills the whole
// tree. Exceeding the timeout or the output cap terminates the command
// and reports a synthetic exit code -1. Non-zero exits are reported in
// the Result, not as an error.
func (r *Runner) Run(ctx context.Context, command string) (*Result, error) {
	if err := r.Check(command); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// A separate cancel lets the output buffers terminate the command
	// the moment either one overflows.
	runCtx, stopOverflow := context.WithCancel(ctx)
	defer stopOverflow()

	cmd := exec.CommandContext(runCtx, "/bin/bash", "-c", command)
	cmd.Dir = r.workDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = filterEnvironment()
	// On cancellation, kill the whole process group so pipeline
	// children die with the shell, and stop waiting on their pipes
	// shortly after.
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}
	cmd.WaitDelay = time.Second

	stdout := newCapBuffer(MaxOutputBytes, stopOverflow)
	stderr := newCapBuffer(MaxOutputBytes, stopOverflow)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &Result{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Truncated:  stdout.Truncated() || stderr.Truncated(),
		DurationMs: duration.Milliseconds(),
	}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.ExitCode = -1
	case result.Truncated:
		result.ExitCode = -1
	case err != nil:
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("exec: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

// checkCdBoundary scans the command text for cd targets that would
// escape root. This is a textual heuristic: it catches the common
// forms but not paths built dynamically at run time.
func checkCdBoundary(command, root string) error {
	for _, segment := range splitSegments(command) {
		fields := strings.Fields(segment)
		if len(fields) < 2 || fields[0] != "cd" {
			continue
		}
		target := strings.Trim(fields[1], `"'`)
		if target == "-" {
			continue
		}
		if escapesRoot(target, root) {
			return fmt.Errorf("%w: cd %s leaves the working directory", ErrDenied, target)
		}
	}
	return nil
}

// splitSegments splits a shell command on ;, &&, || and | separators.
func splitSegments(command string) []string {
	var segments []string
	current := strings.Builder{}
	i := 0
	for i < len(command) {
		c := command[i]
		if c == ';' || c == '|' || c == '&' {
			segments = append(segments, current.String())
			current.Reset()
			// Skip doubled operators.
			if i+1 < len(command) && (command[i+1] == '|' || command[i+1] == '&') {
				i++
			}
		} else {
			current.WriteByte(c)
		}
		i++
	}
	segments = append(segments, current.String())
	return segments
}

func escapesRoot(target, root string) bool {
	if strings.HasPrefix(target, "~") || strings.HasPrefix(target, "$HOME") {
		return true
	}
	resolved := target
	if !strings.HasPrefix(target, "/") {
		resolved = root + "/" + target
	}
	cleaned := cleanPath(resolved)
	return cleaned != root && !strings.HasPrefix(cleaned, root+"/")
}

// cleanPath normalizes "." and ".." components without consulting the
// filesystem.
func cleanPath(path string) string {
	parts := strings.Split(path, "/")
	var stack []string
	for _, part := range parts {
		switch part {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}
	return "/" + strings.Join(stack, "/")
}

// isSensitiveEnvVar checks a variable name against sensitive suffixes.
func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, pattern := range sensitiveEnvPatterns {
		if strings.HasSuffix(upper, pattern) {
			return true
		}
	}
	return false
}

// filterEnvironment returns the process environment minus sensitive
// variables.
func filterEnvironment() []string {
	var filtered []string
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := parts[0]
		if safeEnvVars[name] || !isSensitiveEnvVar(name) {
			filtered = append(filtered, env)
		}
	}
	return filtered
}

// capBuffer is a bytes.Buffer that stops storing past a cap and
// reports the first overflow so the runner can kill the command.
type capBuffer struct {
	buf        bytes.Buffer
	cap        int
	truncated  bool
	onTruncate func()
}

func newCapBuffer(cap int, onTruncate func()) *capBuffer {
	return &capBuffer{cap: cap, onTruncate: onTruncate}
}

func (b *capBuffer) Write(p []byte) (int, error) {
	remaining := b.cap - b.buf.Len()
	if remaining <= 0 {
		b.markTruncated()
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.markTruncated()
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *capBuffer) markTruncated() {
	if b.truncated {
		return
	}
	b.truncated = true
	if b.onTruncate != nil {
		b.onTruncate()
	}
}

func (b *capBuffer) String() string {
	return b.buf.String()
}

func (b *capBuffer) Truncated() bool {
	return b.truncated
}
