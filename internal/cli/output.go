package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/reconcile"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // action rejected, sync failed or a scenario failed
	ExitCommandError = 2 // bad flags, unreadable config, unusable database
)

// Codes for failures that have no attendance or sync code of their own.
const (
	CodeCommandError = "E_COMMAND"
	CodeTestFailed   = "E_TEST_FAILED"
)

// ExitError carries the process exit code up to main.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError with no cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps a command error to the process exit code. Errors that
// are not ExitErrors exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitFailure
	}
}

// errorCode returns the code reported for err: the attendance or sync code
// when it carries one, CodeCommandError otherwise.
func errorCode(err error) string {
	if code := attendance.CodeOf(err); code != "" {
		return string(code)
	}
	var re *reconcile.Error
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return CodeCommandError
}

// exitCodeFor classifies err: rule violations and sync failures are
// failures, anything else is a command error.
func exitCodeFor(err error) int {
	if errorCode(err) == CodeCommandError {
		return ExitCommandError
	}
	return ExitFailure
}

// CLIResponse is the envelope every --format json result is written in.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error half of CLIResponse. Code is an attendance code
// such as NOT_CLOCKED_IN, a sync code, or one of the Code* constants.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or JSON lines.
// Diagnostics go to ErrWriter, or to Writer when ErrWriter is nil.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success writes data. Text output uses the value's String method when it
// has one.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a failure. Text output shows details only when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format and returns the ExitError the
// command should return.
func (f *OutputFormatter) Fail(message string, err error) error {
	if werr := f.Error(errorCode(err), err.Error(), nil); werr != nil {
		return werr
	}
	return WrapExitError(exitCodeFor(err), message, err)
}

// VerboseLog writes a diagnostic line when --verbose is set. It never
// touches Writer in JSON mode if ErrWriter is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns the diagnostics writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter == nil {
		return f.Writer
	}
	return f.ErrWriter
}
