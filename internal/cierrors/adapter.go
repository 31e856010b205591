package cierrors

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// CLIAdapter handles error presentation and exit code determination for
// the command line entry point.
type CLIAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIAdapter creates a new CLI error adapter.
func NewCLIAdapter(verbose bool, logger *slog.Logger) *CLIAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor determines the process exit code for an error.
// Configuration errors exit 1; failures caused by a delegated external
// command propagate that command's exit status; anything else exits 1.
func (a *CLIAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	var ce *Error
	if errors.As(err, &ce) {
		if ce.Kind == KindConfiguration {
			return 1
		}
		if ce.Status > 0 {
			return ce.Status
		}
	}
	return 1
}

// FormatError formats an error for display on stderr.
func (a *CLIAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	var ce *Error
	if errors.As(err, &ce) {
		if a.verbose {
			return ce.Error()
		}
		if ce.Kind == KindConfiguration {
			return ce.Message
		}
		return ce.Error()
	}
	return fmt.Sprintf("Error: %v", err)
}

// HandleError reports an error and exits with the appropriate code.
func (a *CLIAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	if kind, ok := KindOf(err); ok {
		a.logger.Error("Pipeline failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
	} else {
		a.logger.Error("Pipeline failed", slog.String("error", err.Error()))
	}

	fmt.Fprintf(os.Stderr, "%s\n", a.FormatError(err))
	os.Exit(a.ExitCodeFor(err))
}
