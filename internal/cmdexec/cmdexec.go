// Package cmdexec isolates external process execution so callers can be
// exercised against canned output.
package cmdexec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var ErrNotFound = errors.New("command not found")

// DefaultTimeout bounds a single command when the caller's context has no deadline.
const DefaultTimeout = 10 * time.Second

// Runner abstracts external command execution.
type Runner interface {
	Exists(name string) bool
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Timeout time.Duration
}

// NewRunner returns the production runner.
func NewRunner() *ExecRunner {
	return &ExecRunner{Timeout: DefaultTimeout}
}

func (r *ExecRunner) Exists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if _, ok := ctx.Deadline(); !ok && r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// StaticRunner replays fixed output per command line. Keys are the command
// name followed by its arguments joined with single spaces.
type StaticRunner struct {
	Outputs map[string][]byte
	Errors  map[string]error
	Calls   []string
}

func (s *StaticRunner) Exists(name string) bool { return true }

func (s *StaticRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	key := name
	for _, a := range args {
		key += " " + a
	}
	s.Calls = append(s.Calls, key)
	if err, ok := s.Errors[key]; ok {
		return nil, err
	}
	out, ok := s.Outputs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return out, nil
}
