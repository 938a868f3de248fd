package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command describes an external process invocation.
type Command struct {
	Name string
	Args []string
	// ExtraEnv is appended to the current process environment.
	ExtraEnv []string
}

// String renders the command line for logging.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes external processes. It exists so that tests can substitute
// a fake implementation instead of invoking real binaries.
type Runner interface {
	// Output runs the command and returns its stdout. Stderr is attached to
	// the returned error on failure.
	Output(ctx context.Context, cmd Command) ([]byte, error)
	// Run runs the command, discarding output on success. On failure the
	// combined output is attached to the returned error.
	Run(ctx context.Context, cmd Command) error
}

// Shell implements Runner using os/exec.
type Shell struct{}

// NewShell creates a Runner backed by os/exec.
func NewShell() *Shell {
	return &Shell{}
}

// Output runs the command and returns its stdout.
func (s *Shell) Output(ctx context.Context, cmd Command) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Env = append(os.Environ(), cmd.ExtraEnv...)

	out, err := c.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", cmd.Name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return out, nil
}

// Run runs the command, discarding output on success.
func (s *Shell) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Env = append(os.Environ(), cmd.ExtraEnv...)

	out, err := c.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", cmd.Name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
