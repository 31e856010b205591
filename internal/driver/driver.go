// Package driver invokes the external embedded build system as an
// opaque subprocess: <driver> <board> <verb> per phase, or a custom
// command replacing the whole sequence.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/boardci/boardci/internal/logfields"
)

// Verb is a build phase verb understood by the external driver.
type Verb string

const (
	VerbCleanTarget Verb = "clean-target"
	VerbDistclean   Verb = "distclean"
	VerbAll         Verb = "all"
	VerbMkrelease   Verb = "mkrelease"
)

// Runner abstracts the external build driver for the phase sequencer.
type Runner interface {
	// Run invokes the driver for one phase and blocks until it exits.
	Run(ctx context.Context, board string, verb Verb) error
	// RunCustom executes the custom-command bypass through a shell.
	RunCustom(ctx context.Context, command string) error
}

// ExitStatusError reports a nonzero exit from a delegated command.
type ExitStatusError struct {
	Command string
	Status  int
}

func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Status)
}

// StatusOf extracts the delegated command's exit status from err,
// returning 0 when err carries none.
func StatusOf(err error) int {
	var ese *ExitStatusError
	if errors.As(err, &ese) {
		return ese.Status
	}
	return 0
}

// Exec is the Runner used in production. It runs the configured driver
// binary in the checkout directory with the build metadata environment.
type Exec struct {
	path string
	dir  string
	env  []string
}

// NewExec creates a Runner invoking path with the checkout as working
// directory.
func NewExec(path, dir string) *Exec {
	return &Exec{path: path, dir: dir}
}

// WithEnv adds a build metadata variable to every driver invocation.
func (e *Exec) WithEnv(key, value string) *Exec {
	e.env = append(e.env, key+"="+value)
	return e
}

func (e *Exec) Run(ctx context.Context, board string, verb Verb) error {
	slog.Info("Invoking build driver", logfields.Board(board), logfields.Verb(string(verb)))
	cmd := exec.CommandContext(ctx, e.path, board, string(verb))
	return e.run(cmd, fmt.Sprintf("%s %s %s", e.path, board, verb))
}

func (e *Exec) RunCustom(ctx context.Context, command string) error {
	slog.Info("Running custom command", slog.String("command", command))
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	return e.run(cmd, command)
}

func (e *Exec) run(cmd *exec.Cmd, display string) error {
	cmd.Dir = e.dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), e.env...)

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitStatusError{Command: display, Status: exitErr.ExitCode()}
	}
	return fmt.Errorf("failed to run %s: %w", display, err)
}
