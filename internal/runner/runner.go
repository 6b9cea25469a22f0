// Package runner executes external tools with captured exit status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// stderrTail is how much trailing stderr an ExitError keeps.
const stderrTail = 4096

// ExitError reports an external command that ran and exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Runner handles external command execution.
type Runner struct {
	log    *logrus.Entry
	stdout io.Writer
	stderr io.Writer
	env    []string
}

// New creates a runner that streams command output to stdout and stderr.
func New(log *logrus.Entry) *Runner {
	return &Runner{
		log:    log,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// WithOutput returns a copy of the runner writing command output to the given
// writers. A nil writer discards that stream.
func (r *Runner) WithOutput(stdout, stderr io.Writer) *Runner {
	c := *r
	c.stdout = orDiscard(stdout)
	c.stderr = orDiscard(stderr)
	return &c
}

// WithEnv returns a copy of the runner that appends env to the inherited
// environment of every command.
func (r *Runner) WithEnv(env ...string) *Runner {
	c := *r
	c.env = append(append([]string{}, r.env...), env...)
	return &c
}

// Run executes name with args in dir and waits for it to finish.
//
// A command that cannot be started returns the underlying error. A command
// that exits non-zero returns an *ExitError carrying the tail of its stderr.
// Cancelling ctx kills the process.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	tail := &tailBuffer{max: stderrTail}
	cmd.Stdout = r.stdout
	cmd.Stderr = io.MultiWriter(r.stderr, tail)

	command := commandString(name, args)
	r.log.WithField("dir", dir).Debugf("running %s", command)

	before := time.Now()
	err := cmd.Run()
	r.log.Debugf("'%s': %s", command, time.Since(before))

	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", command, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Command: command,
			Code:    exitErr.ExitCode(),
			Stderr:  tail.String(),
		}
	}

	return fmt.Errorf("failed to run %s: %w", command, err)
}

// LookPath resolves a binary in PATH, naming it in the error.
func LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

func commandString(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
