package engine

import (
	"errors"
	"fmt"

	"github.com/tOgg1/scriptdeck/internal/api"
	"github.com/tOgg1/scriptdeck/internal/models"
)

// Engine errors.
var (
	ErrFetcherAlreadyRunning = errors.New("fetcher already running")
	ErrFetcherNotRunning     = errors.New("fetcher not running")
	ErrEmptySelection        = errors.New("no scripts selected")
	ErrLogStreamUnavailable  = errors.New("log streaming is not configured")
)

// genericFailure is shown when the server gave no detail.
const genericFailure = "could not reach the server"

// ActionError is a failed single-script action.
type ActionError struct {
	// Op is the operator-level action (run, stop, save, delete, restart).
	Op       string
	ScriptID int64
	// Step names the failing call of a multi-step action, e.g. "stop".
	Step string
	Err  error
}

func (e *ActionError) Error() string {
	target := "new script"
	if e.ScriptID != 0 {
		target = fmt.Sprintf("script %d", e.ScriptID)
	}
	if e.Step != "" && e.Step != e.Op {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, target, e.Step, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Detail is the server-provided reason, or a generic message when the
// failure never reached the server or carried no detail.
func (e *ActionError) Detail() string {
	if detail := api.Detail(e.Err); detail != "" {
		return detail
	}
	var validation *models.ValidationErrors
	if errors.As(e.Err, &validation) {
		return e.Err.Error()
	}
	return genericFailure
}

// Message renders the status-line text.
func (e *ActionError) Message() string {
	if e.Step != "" && e.Step != e.Op {
		return fmt.Sprintf("%s failed at %s: %s", e.Op, e.Step, e.Detail())
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Detail())
}

// Message extracts an operator-facing message from any engine error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Message()
	}
	if detail := api.Detail(err); detail != "" {
		return "operation failed: " + detail
	}
	return err.Error()
}
