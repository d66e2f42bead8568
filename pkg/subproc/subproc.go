// Package subproc implements the subprocess tool shape described in spec
// §6.3: {code, timeoutSeconds} in, {stdout, stderr, exitCode,
// executionTimeMs} out, timeout enforced by the tool itself. Grounded on
// stdlib os/exec plus context.WithTimeout — no pack repo wraps os/exec in a
// third-party sandboxing or process-supervision library, so this is the
// one ambient concern implemented directly on the standard library (see
// DESIGN.md).
package subproc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// Request is the subprocess tool's input shape.
type Request struct {
	Code           string `json:"code"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// Result is the subprocess tool's output shape. On timeout, ExitCode is
// negative and Stderr carries a timeout marker.
type Result struct {
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	ExitCode        int    `json:"exitCode"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

const timeoutExitCode = -1

// Executor runs Request.Code as a shell command under shell, bounded by
// the request's timeout. It satisfies process.ToolInvoker once wrapped by
// Invoke below (text-in/text-out).
type Executor struct {
	// Shell is the interpreter invoked with "-c", code. Defaults to
	// "/bin/sh" when empty.
	Shell string
}

// New creates an Executor using /bin/sh.
func New() *Executor {
	return &Executor{Shell: "/bin/sh"}
}

// Run executes req.Code with a context-enforced timeout.
func (e *Executor) Run(ctx context.Context, req Request) Result {
	shell := e.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, shell, "-c", req.Code)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{
			Stdout:          stdout.String(),
			Stderr:          stderr.String() + "\n[subproc: timed out after " + timeout.String() + "]",
			ExitCode:        timeoutExitCode,
			ExecutionTimeMs: elapsed,
		}
	}

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = timeoutExitCode
			stderr.WriteString("\n[subproc: " + err.Error() + "]")
		}
	}

	return Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExitCode:        exitCode,
		ExecutionTimeMs: elapsed,
	}
}

// Invoke adapts Run to process.ToolInvoker's text-in/text-out shape: the
// request is a JSON-encoded Request, the output a JSON-encoded Result.
func (e *Executor) Invoke(ctx context.Context, request string) (string, error) {
	var req Request
	if err := json.Unmarshal([]byte(request), &req); err != nil {
		return "", fmt.Errorf("subproc: decode request: %w", err)
	}
	result := e.Run(ctx, req)
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("subproc: encode result: %w", err)
	}
	return string(out), nil
}
