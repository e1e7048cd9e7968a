package util

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs external tools (trivy, docker, terraform).
type Runner interface {
	// LookPath reports whether name is installed.
	LookPath(name string) error
	// Run executes name with args in dir and returns stdout. A non-zero exit
	// is returned as *CommandError carrying stderr.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// CommandError describes a failed external command.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Command, msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct{}

// LookPath implements Runner.
func (ExecRunner) LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return Invalid("%s is not installed or not on PATH", name)
	}
	return nil
}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		ce := &CommandError{
			Command:  name + " " + strings.Join(args, " "),
			ExitCode: -1,
			Stderr:   stderr.String(),
			Err:      err,
		}
		if ctx.Err() != nil {
			ce.Err = ctx.Err()
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			ce.ExitCode = exitErr.ExitCode()
		}
		return stdout.Bytes(), ce
	}
	return stdout.Bytes(), nil
}
