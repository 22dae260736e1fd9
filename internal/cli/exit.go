package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tOgg1/scriptdeck/internal/api"
	"github.com/tOgg1/scriptdeck/internal/engine"
)

// Process exit codes.
const (
	ExitCodeFailure     = 1
	ExitCodeUsage       = 2
	ExitCodeUnreachable = 3
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code int
	Err  error

	// Printed is set when the command already reported the error.
	Printed bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Exitf builds an ExitError from a format string.
func Exitf(code int, format string, args ...any) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

func usageError(cmd *cobra.Command, message string) error {
	return &ExitError{Code: ExitCodeUsage, Err: fmt.Errorf("%s (see %s --help)", message, cmd.CommandPath())}
}

// commandError turns an engine or client error into an ExitError with an
// operator-facing message.
func commandError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	code := ExitCodeFailure
	if api.IsTransport(err) {
		code = ExitCodeUnreachable
	}
	return &ExitError{Code: code, Err: errors.New(engine.Message(err))}
}
